// Package errors defines the closed set of error kinds a dispense can fail
// with, together with the typed payloads callers need (retry-at instants,
// revert reasons). Every error that crosses a component boundary in the
// faucet is either one of these or is wrapped into one by the dispatcher.
package errors

import (
	"fmt"
	"time"
)

// Kind categorizes a dispense failure. The set is closed: callers switch on
// it and the HTTP shim maps it onto response codes.
type Kind string

const (
	// KindInvalidAddress means recipient classification failed.
	KindInvalidAddress Kind = "invalid-address"

	// KindRateLimited means the client exceeded a sliding window; the error
	// carries the earliest retry instant.
	KindRateLimited Kind = "rate-limited"

	// KindSufficientBalance means the plan was empty: every configured token
	// is already at (or above) its target ceiling.
	KindSufficientBalance Kind = "sufficient-balance"

	// KindBalanceQueryFailed means every probe for a required token failed.
	KindBalanceQueryFailed Kind = "balance-query-failed"

	// KindOperatorUnderfunded means the operator account lacks gas, token
	// balance, or batch-contract allowance.
	KindOperatorUnderfunded Kind = "operator-underfunded"

	// KindSignatureRejected means the chain reported signature verification
	// failure. Never retried; logged at alert level so operators can inspect
	// the key and pubkey type URL configuration.
	KindSignatureRejected Kind = "signature-rejected"

	// KindNonceDrift means the submitted nonce or sequence no longer matched
	// chain state. Internal: retried inside the submitters and only surfaced
	// after attempts are exhausted.
	KindNonceDrift Kind = "nonce-drift"

	// KindTransientNetwork means the node never judged the request: a
	// connection failure, reset, or RPC deadline before any chain-side
	// verdict. Internal: retried inside the submitters like nonce drift.
	KindTransientNetwork Kind = "transient-network"

	// KindBroadcastTimeout means no receipt arrived within the deadline. The
	// nonce is treated as consumed but the outcome is unknown.
	KindBroadcastTimeout Kind = "broadcast-timeout"

	// KindChainReverted means the transaction landed with a non-success
	// status; the revert reason is attached when the node exposes one.
	KindChainReverted Kind = "chain-reverted"

	// KindBusy means submission-mutex acquisition timed out under load.
	KindBusy Kind = "busy"
)

// Severity tags how loudly a failure should be reported.
type Severity string

const (
	SeverityAlert Severity = "ALERT"
	SeverityError Severity = "ERROR"
	SeverityInfo  Severity = "INFO"
)

// DispenseError is the single error type crossing the dispatcher boundary.
type DispenseError struct {
	Kind    Kind
	Chain   string // "evm", "cosmos", or empty when not interface-specific
	Message string
	Cause   error

	// RetryAt is set for KindRateLimited and KindBusy.
	RetryAt time.Time

	// RevertReason is set for KindChainReverted when the node exposed one.
	RevertReason string
}

// New creates a DispenseError of the given kind.
func New(kind Kind, chain, message string, cause error) *DispenseError {
	return &DispenseError{
		Kind:    kind,
		Chain:   chain,
		Message: message,
		Cause:   cause,
	}
}

// Newf creates a DispenseError with a formatted message.
func Newf(kind Kind, chain string, cause error, format string, args ...any) *DispenseError {
	return New(kind, chain, fmt.Sprintf(format, args...), cause)
}

// RateLimited builds the rate-limited error with its retry instant.
func RateLimited(retryAt time.Time) *DispenseError {
	e := New(KindRateLimited, "", fmt.Sprintf("rate limited until %s", retryAt.UTC().Format(time.RFC3339)), nil)
	e.RetryAt = retryAt
	return e
}

// Reverted builds the chain-reverted error carrying the revert reason.
func Reverted(chain, reason string, cause error) *DispenseError {
	e := New(KindChainReverted, chain, "transaction reverted on chain", cause)
	e.RevertReason = reason
	return e
}

// Error implements the error interface.
func (e *DispenseError) Error() string {
	if e.Chain != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Chain, e.Kind, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DispenseError) Unwrap() error {
	return e.Cause
}

// Severity maps the kind onto a reporting level. Signature rejection and an
// underfunded operator need a human, everything else is routine.
func (e *DispenseError) Severity() Severity {
	switch e.Kind {
	case KindSignatureRejected, KindOperatorUnderfunded:
		return SeverityAlert
	case KindRateLimited, KindSufficientBalance:
		return SeverityInfo
	default:
		return SeverityError
	}
}

// Retryable reports whether the submitters may retry the attempt.
func (e *DispenseError) Retryable() bool {
	return e.Kind == KindNonceDrift || e.Kind == KindTransientNetwork
}
