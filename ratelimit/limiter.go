// Package ratelimit gates dispenses behind persistent sliding windows, one
// per recipient address and one per client IP. Quota is only consumed on an
// end-to-end successful dispense.
package ratelimit

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/testnetops/faucetd/config"
	"github.com/testnetops/faucetd/db"
	"github.com/testnetops/faucetd/store"
)

const (
	addrKeyPrefix = "addr:"
	ipKeyPrefix   = "ip:"
)

// Limiter enforces the two key families. Mutations are serialized through a
// single writer mutex; reads go straight to the store.
type Limiter struct {
	db     *db.DB
	limits config.RateLimits
	logger zerolog.Logger

	writeMu sync.Mutex

	// now is swappable in tests.
	now func() time.Time
}

// NewLimiter creates a limiter on top of the given store.
func NewLimiter(database *db.DB, limits config.RateLimits, logger zerolog.Logger) *Limiter {
	return &Limiter{
		db:     database,
		limits: limits,
		logger: logger.With().Str("component", "ratelimit").Logger(),
		now:    time.Now,
	}
}

// Check reports whether a dispense for (addrHex, ip) is currently allowed.
// When blocked, retryAt is the earliest instant at which the client may try
// again.
func (l *Limiter) Check(addrHex, ip string) (bool, time.Time, error) {
	now := l.now()

	families := []struct {
		key    string
		window time.Duration
		limit  int
	}{
		{addrKey(addrHex), l.limits.AddrWindowDuration(), l.limits.AddrLimit},
		{ipKey(ip), l.limits.IPWindowDuration(), l.limits.IPLimit},
	}

	allowed := true
	var retryAt time.Time
	for _, f := range families {
		hits, err := l.loadHits(f.key)
		if err != nil {
			return false, time.Time{}, err
		}
		inWindow := hitsWithin(hits, now, f.window)
		if len(inWindow) >= f.limit {
			allowed = false
			// The earliest in-window hit ages out first.
			candidate := time.UnixMilli(inWindow[0]).Add(f.window)
			if candidate.After(retryAt) {
				retryAt = candidate
			}
		}
	}

	return allowed, retryAt, nil
}

// Record appends the current instant to both key families and compacts away
// timestamps older than the window. Called only after a successful dispense.
func (l *Limiter) Record(addrHex, ip string) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	now := l.now()
	if err := l.appendHit(addrKey(addrHex), now, l.limits.AddrWindowDuration()); err != nil {
		return err
	}
	return l.appendHit(ipKey(ip), now, l.limits.IPWindowDuration())
}

func (l *Limiter) appendHit(key string, now time.Time, window time.Duration) error {
	hits, err := l.loadHits(key)
	if err != nil {
		return err
	}

	hits = append(hits, now.UnixMilli())
	hits = compact(hits, now, window)

	raw, err := json.Marshal(hits)
	if err != nil {
		return errors.Wrap(err, "failed to marshal hit timestamps")
	}

	record := store.RateLimitRecord{Key: key, Hits: string(raw)}
	err = l.db.Client().
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"hits", "updated_at"}),
		}).
		Create(&record).Error
	if err != nil {
		return errors.Wrapf(err, "failed to persist rate-limit record %s", key)
	}

	l.logger.Debug().Str("key", key).Int("hits", len(hits)).Msg("recorded rate-limit hit")
	return nil
}

func (l *Limiter) loadHits(key string) ([]int64, error) {
	var record store.RateLimitRecord
	err := l.db.Client().Where("key = ?", key).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load rate-limit record %s", key)
	}

	var hits []int64
	if err := json.Unmarshal([]byte(record.Hits), &hits); err != nil {
		// A corrupted row costs history, not correctness. Start over.
		l.logger.Warn().Str("key", key).Msg("discarding unparseable rate-limit record")
		return nil, nil
	}
	return hits, nil
}

// hitsWithin returns the sorted timestamps younger than the window.
func hitsWithin(hits []int64, now time.Time, window time.Duration) []int64 {
	cutoff := now.Add(-window).UnixMilli()
	out := make([]int64, 0, len(hits))
	for _, h := range hits {
		if h > cutoff {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// compact sorts, deduplicates, and trims the hit list to the window, so
// recording the same instant twice collapses to one hit.
func compact(hits []int64, now time.Time, window time.Duration) []int64 {
	inWindow := hitsWithin(hits, now, window)
	out := inWindow[:0]
	var last int64 = -1
	for _, h := range inWindow {
		if h != last {
			out = append(out, h)
			last = h
		}
	}
	return out
}

func addrKey(addrHex string) string {
	return addrKeyPrefix + strings.TrimPrefix(strings.ToLower(addrHex), "0x")
}

func ipKey(ip string) string {
	return ipKeyPrefix + ip
}
