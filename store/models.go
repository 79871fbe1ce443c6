// Package store contains the GORM-backed SQLite models persisted by the
// faucet. Only the rate limiter writes here; losing this file costs
// rate-limit history, never correctness.
package store

import (
	"gorm.io/gorm"
)

// RateLimitRecord holds one sliding-window counter. Key is either
// "addr:<hex20>" (lowercase) or "ip:<client-ip>". Hits is a JSON array of
// unix-millisecond timestamps, sorted ascending and trimmed to the window on
// every write.
type RateLimitRecord struct {
	gorm.Model
	Key  string `gorm:"uniqueIndex;not null"`
	Hits string `gorm:"type:text;not null;default:'[]'"`
}
