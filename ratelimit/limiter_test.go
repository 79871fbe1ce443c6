package ratelimit

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testnetops/faucetd/config"
	"github.com/testnetops/faucetd/db"
)

const (
	testAddr  = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	otherAddr = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	testIP    = "203.0.113.7"
	otherIP   = "203.0.113.8"
)

func newTestLimiter(t *testing.T, limits config.RateLimits) (*Limiter, *time.Time) {
	t.Helper()

	database, err := db.OpenInMemoryDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	l := NewLimiter(database, limits, zerolog.Nop())
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func defaultLimits() config.RateLimits {
	return config.RateLimits{AddrWindow: 86400, AddrLimit: 1, IPWindow: 86400, IPLimit: 5}
}

func TestCheckAllowsFreshKeys(t *testing.T) {
	l, _ := newTestLimiter(t, defaultLimits())

	allowed, retryAt, err := l.Check(testAddr, testIP)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.True(t, retryAt.IsZero())
}

func TestAddressWindowBlocksSecondDispense(t *testing.T) {
	l, now := newTestLimiter(t, defaultLimits())

	require.NoError(t, l.Record(testAddr, testIP))

	allowed, retryAt, err := l.Check(testAddr, otherIP)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, now.Add(24*time.Hour), retryAt)

	// A different address from the same IP still fits under the IP limit.
	allowed, _, err = l.Check(otherAddr, testIP)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestAddressKeyIsCaseInsensitive(t *testing.T) {
	l, _ := newTestLimiter(t, defaultLimits())

	require.NoError(t, l.Record(testAddr, testIP))

	allowed, _, err := l.Check("0xF39FD6E51AAD88F6F4CE6AB8827279CFFFB92266", otherIP)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestIPWindowBlocksAfterLimit(t *testing.T) {
	limits := defaultLimits()
	limits.IPLimit = 2
	l, now := newTestLimiter(t, limits)

	addrs := []string{testAddr, otherAddr}
	for _, a := range addrs {
		allowed, _, err := l.Check(a, testIP)
		require.NoError(t, err)
		require.True(t, allowed)
		require.NoError(t, l.Record(a, testIP))
		*now = now.Add(time.Minute)
	}

	allowed, retryAt, err := l.Check("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC", testIP)
	require.NoError(t, err)
	assert.False(t, allowed)
	// The earliest hit ages out first; retryAt is its instant plus window.
	assert.Equal(t, now.Add(-2*time.Minute).Add(24*time.Hour), retryAt)
}

func TestWindowExpiry(t *testing.T) {
	l, now := newTestLimiter(t, defaultLimits())

	require.NoError(t, l.Record(testAddr, testIP))

	*now = now.Add(24*time.Hour - time.Second)
	allowed, _, err := l.Check(testAddr, testIP)
	require.NoError(t, err)
	assert.False(t, allowed)

	*now = now.Add(2 * time.Second)
	allowed, _, err = l.Check(testAddr, testIP)
	require.NoError(t, err)
	assert.True(t, allowed)
}

// Recording the same instant twice collapses to a single hit, so a retried
// persistence call cannot double-charge quota.
func TestRecordSameInstantIsIdempotent(t *testing.T) {
	limits := defaultLimits()
	limits.IPLimit = 2
	l, _ := newTestLimiter(t, limits)

	require.NoError(t, l.Record(testAddr, testIP))
	require.NoError(t, l.Record(otherAddr, testIP))
	require.NoError(t, l.Record(otherAddr, testIP))

	allowed, _, err := l.Check("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC", testIP)
	require.NoError(t, err)
	assert.True(t, allowed, "duplicate timestamps must collapse to one hit")
}

func TestHitsSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/ratelimit.db"

	database, err := db.OpenFileDB(path)
	require.NoError(t, err)

	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(database, defaultLimits(), zerolog.Nop())
	l.now = func() time.Time { return now }
	require.NoError(t, l.Record(testAddr, testIP))
	require.NoError(t, database.Close())

	database, err = db.OpenFileDB(path)
	require.NoError(t, err)
	defer database.Close()

	l = NewLimiter(database, defaultLimits(), zerolog.Nop())
	l.now = func() time.Time { return now.Add(time.Minute) }
	allowed, _, err := l.Check(testAddr, otherIP)
	require.NoError(t, err)
	assert.False(t, allowed)
}
