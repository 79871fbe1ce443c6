// Package oracle reads a recipient's current holding for every configured
// token, choosing the data source per interface: one bank query for
// Cosmos-kind recipients, native balance plus parallel balanceOf calls for
// EVM-kind recipients.
package oracle

import (
	"context"
	"math/big"
	"sync"

	sdkmath "cosmossdk.io/math"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/testnetops/faucetd/address"
	"github.com/testnetops/faucetd/config"
	fauceterrors "github.com/testnetops/faucetd/errors"
)

// Balance is one token's observed holding. Known is false when every probe
// for the token failed; the planner skips such tokens.
type Balance struct {
	Amount sdkmath.Int
	Known  bool
}

// Balances maps token symbol to observed holding. Every configured token is
// present.
type Balances map[string]Balance

// EvmReader is the JSON-RPC surface the oracle needs.
type EvmReader interface {
	NativeBalance(ctx context.Context, addr ethcommon.Address) (*big.Int, error)
	Erc20BalanceOf(ctx context.Context, token, holder ethcommon.Address) (*big.Int, error)
}

// CosmosReader is the bank-query surface the oracle needs.
type CosmosReader interface {
	Balances(ctx context.Context, bech32Addr string) (map[string]sdkmath.Int, error)
}

// Oracle joins both interfaces behind one Read call.
type Oracle struct {
	tokens []config.TokenDescriptor
	evm    EvmReader
	cosmos CosmosReader
	logger zerolog.Logger
}

// New creates an oracle over the configured token list.
func New(tokens []config.TokenDescriptor, evm EvmReader, cosmos CosmosReader, logger zerolog.Logger) *Oracle {
	return &Oracle{
		tokens: tokens,
		evm:    evm,
		cosmos: cosmos,
		logger: logger.With().Str("component", "balance_oracle").Logger(),
	}
}

// Read returns the recipient's current holding per configured token, in the
// token's smallest unit. It fails only when every probe failed; individual
// token failures degrade to Known=false.
func (o *Oracle) Read(ctx context.Context, recipient address.Recipient) (Balances, error) {
	switch recipient.Kind {
	case address.KindCosmos:
		return o.readCosmos(ctx, recipient)
	case address.KindEvm:
		return o.readEvm(ctx, recipient)
	default:
		return nil, fauceterrors.New(fauceterrors.KindInvalidAddress, "", "cannot read balances for invalid recipient", nil)
	}
}

// readCosmos resolves all denoms with a single bank query. Tokens absent
// from the response hold zero.
func (o *Oracle) readCosmos(ctx context.Context, recipient address.Recipient) (Balances, error) {
	byDenom, err := o.cosmos.Balances(ctx, recipient.Bech32)
	if err != nil {
		o.logger.Warn().Err(err).Str("recipient", recipient.Bech32).Msg("bank balance query failed")
		return nil, fauceterrors.New(fauceterrors.KindBalanceQueryFailed, "cosmos", "bank balance query failed", err)
	}

	out := make(Balances, len(o.tokens))
	for i := range o.tokens {
		t := &o.tokens[i]
		amount, ok := byDenom[t.Denom]
		if !ok {
			amount = sdkmath.ZeroInt()
		}
		out[t.Symbol] = Balance{Amount: amount, Known: true}
	}
	return out, nil
}

// readEvm probes tokens in parallel: eth_getBalance for the native sentinel,
// balanceOf for ERC-20s.
func (o *Oracle) readEvm(ctx context.Context, recipient address.Recipient) (Balances, error) {
	type probe struct {
		symbol string
		bal    Balance
	}

	results := make([]probe, len(o.tokens))
	var wg sync.WaitGroup
	for i := range o.tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			t := &o.tokens[i]

			var raw *big.Int
			var err error
			if t.IsNative() {
				raw, err = o.evm.NativeBalance(ctx, recipient.Hex)
			} else {
				raw, err = o.evm.Erc20BalanceOf(ctx, t.ContractAddress(), recipient.Hex)
			}

			if err != nil {
				o.logger.Warn().Err(err).Str("token", t.Symbol).Msg("balance probe failed")
				results[i] = probe{symbol: t.Symbol, bal: Balance{Amount: sdkmath.ZeroInt(), Known: false}}
				return
			}
			results[i] = probe{symbol: t.Symbol, bal: Balance{Amount: sdkmath.NewIntFromBigInt(raw), Known: true}}
		}(i)
	}
	wg.Wait()

	out := make(Balances, len(o.tokens))
	anyKnown := false
	for _, r := range results {
		out[r.symbol] = r.bal
		anyKnown = anyKnown || r.bal.Known
	}
	if !anyKnown {
		return nil, fauceterrors.New(fauceterrors.KindBalanceQueryFailed, "evm", "every balance probe failed", nil)
	}
	return out, nil
}
