package api

import (
	"context"

	"github.com/testnetops/faucetd/dispatcher"
)

// Faucet is the dispatcher surface the HTTP handlers depend on.
type Faucet interface {
	Serve(ctx context.Context, rawAddress, clientIP string) *dispatcher.Result
	InspectBalance(ctx context.Context, rawAddress string) (map[string]dispatcher.TokenBalanceView, error)
}
