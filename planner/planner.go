// Package planner decides what to send. For each configured token the
// recipient is topped up towards its target ceiling, never past it, and
// never by more than the per-request amount.
package planner

import (
	sdkmath "cosmossdk.io/math"

	"github.com/testnetops/faucetd/config"
	"github.com/testnetops/faucetd/oracle"
)

// Skip reasons, surfaced per token in results.
const (
	ReasonSufficientBalance  = "sufficient-balance"
	ReasonBalanceUnavailable = "balance-unavailable"
)

// Item is one transfer in a plan.
type Item struct {
	Token  *config.TokenDescriptor
	Amount sdkmath.Int
}

// SkippedToken names a token left out of the plan and why.
type SkippedToken struct {
	Symbol string
	Reason string
}

// Plan is the ordered transfer list for one dispense. Items follow the
// configuration order, so re-planning with the same inputs yields an
// identical plan.
type Plan struct {
	Items   []Item
	Skipped []SkippedToken
}

// Empty reports whether the plan carries no transfers.
func (p Plan) Empty() bool {
	return len(p.Items) == 0
}

// Build produces the plan: amount = min(perRequest, target - current),
// clamped at zero; zero items are omitted. Tokens with unknown balances are
// skipped rather than risking an overshoot.
func Build(tokens []config.TokenDescriptor, current oracle.Balances) Plan {
	var plan Plan
	for i := range tokens {
		t := &tokens[i]

		bal, ok := current[t.Symbol]
		if !ok || !bal.Known {
			plan.Skipped = append(plan.Skipped, SkippedToken{Symbol: t.Symbol, Reason: ReasonBalanceUnavailable})
			continue
		}

		need := t.TargetAmount.Sub(bal.Amount)
		if !need.IsPositive() {
			plan.Skipped = append(plan.Skipped, SkippedToken{Symbol: t.Symbol, Reason: ReasonSufficientBalance})
			continue
		}

		amount := sdkmath.MinInt(t.PerRequestAmount, need)
		plan.Items = append(plan.Items, Item{Token: t, Amount: amount})
	}
	return plan
}
