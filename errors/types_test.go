package errors

import (
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	e := New(KindNonceDrift, "evm", "operator nonce drifted", nil)
	assert.Equal(t, "[evm:nonce-drift] operator nonce drifted", e.Error())

	e = New(KindInvalidAddress, "", "bad recipient", nil)
	assert.Equal(t, "[invalid-address] bad recipient", e.Error())
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := New(KindOperatorUnderfunded, "cosmos", "broke", nil)
	wrapped := pkgerrors.Wrap(inner, "dispense failed")

	assert.True(t, IsKind(wrapped, KindOperatorUnderfunded))
	assert.Equal(t, KindOperatorUnderfunded, KindOf(wrapped, KindChainReverted))

	de := AsDispense(wrapped)
	require.NotNil(t, de)
	assert.Equal(t, "cosmos", de.Chain)
}

func TestKindOfFallback(t *testing.T) {
	plain := pkgerrors.New("some io error")
	assert.Equal(t, KindChainReverted, KindOf(plain, KindChainReverted))
	assert.Nil(t, AsDispense(plain))
	assert.False(t, IsKind(plain, KindChainReverted))
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, SeverityAlert, New(KindSignatureRejected, "", "", nil).Severity())
	assert.Equal(t, SeverityAlert, New(KindOperatorUnderfunded, "", "", nil).Severity())
	assert.Equal(t, SeverityInfo, RateLimited(time.Now()).Severity())
	assert.Equal(t, SeverityError, New(KindBroadcastTimeout, "", "", nil).Severity())
}

// The retryable set is exactly the two internal kinds: nonce drift and
// transient transport failure. Everything else surfaces on first occurrence.
func TestRetryable(t *testing.T) {
	assert.True(t, New(KindNonceDrift, "evm", "", nil).Retryable())
	assert.True(t, New(KindTransientNetwork, "cosmos", "", nil).Retryable())

	for _, k := range []Kind{
		KindInvalidAddress, KindRateLimited, KindSufficientBalance,
		KindBalanceQueryFailed, KindOperatorUnderfunded, KindSignatureRejected,
		KindBroadcastTimeout, KindChainReverted, KindBusy,
	} {
		assert.False(t, New(k, "", "", nil).Retryable(), "kind %s", k)
	}
}

func TestConstructors(t *testing.T) {
	retryAt := time.Now().Add(time.Hour)
	rl := RateLimited(retryAt)
	assert.Equal(t, KindRateLimited, rl.Kind)
	assert.Equal(t, retryAt, rl.RetryAt)

	rv := Reverted("evm", "ERC20: transfer amount exceeds balance", nil)
	assert.Equal(t, KindChainReverted, rv.Kind)
	assert.Equal(t, "ERC20: transfer amount exceeds balance", rv.RevertReason)

	cause := pkgerrors.New("root")
	assert.Equal(t, cause, New(KindBusy, "", "busy", cause).Unwrap())
}
