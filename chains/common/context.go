// Package common holds helpers shared by both chain submission paths.
package common

import (
	"context"
	"time"
)

// DetachedContext derives the context for the fetch-sign-broadcast leg of a
// submission. Caller cancellation is ignored — abandoning a submission
// mid-broadcast risks a stuck nonce — but the leg stays bounded by the RPC
// timeout. Values (trace metadata) still flow through.
func DetachedContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}
