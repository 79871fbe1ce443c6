package planner

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testnetops/faucetd/config"
	"github.com/testnetops/faucetd/oracle"
)

func testTokens() []config.TokenDescriptor {
	return []config.TokenDescriptor{
		{
			Symbol:           "ATOM",
			Denom:            "uatom",
			Decimals:         6,
			PerRequestAmount: sdkmath.NewInt(1_000_000),
			TargetAmount:     sdkmath.NewInt(1_000_000_000),
		},
		{
			Symbol:           "WILD",
			Denom:            "awild",
			Decimals:         18,
			Erc20Address:     config.NativeTokenSentinel,
			PerRequestAmount: sdkmath.NewIntFromUint64(1_000_000_000_000_000_000),
			TargetAmount:     sdkmath.NewIntFromUint64(1_000_000_000_000_000_000).MulRaw(1000),
		},
	}
}

func known(n int64) oracle.Balance {
	return oracle.Balance{Amount: sdkmath.NewInt(n), Known: true}
}

func TestBuildTopsUpTowardsTarget(t *testing.T) {
	tokens := testTokens()
	plan := Build(tokens, oracle.Balances{
		"ATOM": known(0),
		"WILD": known(0),
	})

	require.Len(t, plan.Items, 2)
	assert.Equal(t, "ATOM", plan.Items[0].Token.Symbol)
	assert.Equal(t, sdkmath.NewInt(1_000_000), plan.Items[0].Amount)
	assert.Equal(t, "WILD", plan.Items[1].Token.Symbol)
	assert.Equal(t, tokens[1].PerRequestAmount, plan.Items[1].Amount)
	assert.Empty(t, plan.Skipped)
}

func TestBuildSaturatesAtRemainingNeed(t *testing.T) {
	tokens := testTokens()

	// One base unit below target: send exactly the gap, not perRequest.
	plan := Build(tokens, oracle.Balances{
		"ATOM": known(999_999_999),
		"WILD": {Amount: tokens[1].TargetAmount, Known: true},
	})

	require.Len(t, plan.Items, 1)
	assert.Equal(t, "ATOM", plan.Items[0].Token.Symbol)
	assert.Equal(t, sdkmath.NewInt(1), plan.Items[0].Amount)

	require.Len(t, plan.Skipped, 1)
	assert.Equal(t, SkippedToken{Symbol: "WILD", Reason: ReasonSufficientBalance}, plan.Skipped[0])
}

func TestBuildSkipsAtOrAboveTarget(t *testing.T) {
	tokens := testTokens()
	plan := Build(tokens, oracle.Balances{
		"ATOM": known(1_000_000_000),
		"WILD": {Amount: tokens[1].TargetAmount.AddRaw(5), Known: true},
	})

	assert.True(t, plan.Empty())
	require.Len(t, plan.Skipped, 2)
	for _, s := range plan.Skipped {
		assert.Equal(t, ReasonSufficientBalance, s.Reason)
	}
}

func TestBuildSkipsUnknownBalances(t *testing.T) {
	tokens := testTokens()
	plan := Build(tokens, oracle.Balances{
		"ATOM": known(0),
		"WILD": {Amount: sdkmath.ZeroInt(), Known: false},
	})

	require.Len(t, plan.Items, 1)
	assert.Equal(t, "ATOM", plan.Items[0].Token.Symbol)
	require.Len(t, plan.Skipped, 1)
	assert.Equal(t, SkippedToken{Symbol: "WILD", Reason: ReasonBalanceUnavailable}, plan.Skipped[0])
}

func TestBuildNeverOvershoots(t *testing.T) {
	tokens := testTokens()
	for _, current := range []int64{0, 1, 999_000_000, 999_999_999, 1_000_000_000} {
		plan := Build(tokens[:1], oracle.Balances{"ATOM": known(current)})
		for _, item := range plan.Items {
			after := sdkmath.NewInt(current).Add(item.Amount)
			assert.True(t, after.LTE(tokens[0].TargetAmount),
				"current %d plus %s overshoots target", current, item.Amount)
			assert.True(t, item.Amount.IsPositive())
		}
	}
}

// Identical inputs must always yield an identical plan, in config order.
func TestBuildIsDeterministic(t *testing.T) {
	tokens := testTokens()
	balances := oracle.Balances{"ATOM": known(42), "WILD": known(7)}

	first := Build(tokens, balances)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Build(tokens, balances))
	}
}
