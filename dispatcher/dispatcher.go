// Package dispatcher orchestrates a dispense: classify the recipient, gate
// on rate limits, read balances, plan the top-up, submit it on the matching
// interface, verify, and record. It is the only component that sees the
// whole request.
package dispatcher

import (
	"context"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/testnetops/faucetd/address"
	"github.com/testnetops/faucetd/chains/cosmos"
	"github.com/testnetops/faucetd/chains/evm"
	"github.com/testnetops/faucetd/config"
	fauceterrors "github.com/testnetops/faucetd/errors"
	"github.com/testnetops/faucetd/metrics"
	"github.com/testnetops/faucetd/oracle"
	"github.com/testnetops/faucetd/planner"
)

// BalanceReader reads current holdings for a recipient.
type BalanceReader interface {
	Read(ctx context.Context, recipient address.Recipient) (oracle.Balances, error)
}

// EvmSubmitter submits one atomic batch on the EVM interface.
type EvmSubmitter interface {
	Submit(ctx context.Context, recipient ethcommon.Address, plan planner.Plan) (*evm.Result, error)
}

// CosmosSubmitter submits one multi-MsgSend transaction on the Cosmos
// interface.
type CosmosSubmitter interface {
	Submit(ctx context.Context, recipientBech32 string, plan planner.Plan) (*cosmos.Result, error)
}

// RateGate is the rate-limiter surface the dispatcher needs.
type RateGate interface {
	Check(addrHex, ip string) (bool, time.Time, error)
	Record(addrHex, ip string) error
}

// Dispatcher wires the pipeline together.
type Dispatcher struct {
	classifier *address.Classifier
	gate       RateGate
	balances   BalanceReader
	evm        EvmSubmitter
	cosmos     CosmosSubmitter
	tokens     []config.TokenDescriptor

	evmExplorer    string
	cosmosExplorer string

	logger zerolog.Logger
}

// New creates a dispatcher.
func New(
	classifier *address.Classifier,
	gate RateGate,
	balances BalanceReader,
	evmSub EvmSubmitter,
	cosmosSub CosmosSubmitter,
	cfg *config.Config,
	logger zerolog.Logger,
) *Dispatcher {
	return &Dispatcher{
		classifier:     classifier,
		gate:           gate,
		balances:       balances,
		evm:            evmSub,
		cosmos:         cosmosSub,
		tokens:         cfg.Tokens,
		evmExplorer:    cfg.EvmExplorerUrl,
		cosmosExplorer: cfg.CosmosExplorerUrl,
		logger:         logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Serve runs one dispense end to end. Failures never consume rate-limit
// quota; only a confirmed on-chain transfer does.
func (d *Dispatcher) Serve(ctx context.Context, rawAddress, clientIP string) *Result {
	start := time.Now()
	result := d.serve(ctx, rawAddress, clientIP)
	metrics.ObserveDispense(string(result.Status), time.Since(start))
	return result
}

func (d *Dispatcher) serve(ctx context.Context, rawAddress, clientIP string) *Result {
	recipient := d.classifier.Classify(rawAddress)
	if recipient.Kind == address.KindInvalid {
		d.logger.Debug().Str("address", rawAddress).Msg("rejected invalid recipient")
		return &Result{
			Status:    StatusFailed,
			ErrorKind: fauceterrors.KindInvalidAddress,
			Error:     "address is neither 0x-hex nor bech32 under the configured prefix",
		}
	}

	log := d.logger.With().
		Str("recipient", recipient.Hex.Hex()).
		Str("kind", recipient.Kind.String()).
		Str("ip", clientIP).
		Logger()

	allowed, retryAt, err := d.gate.Check(recipient.Hex.Hex(), clientIP)
	if err != nil {
		log.Error().Err(err).Msg("rate-limit check failed")
		return d.failure(fauceterrors.New(fauceterrors.KindBusy, "", "rate-limit store unavailable", err))
	}
	if !allowed {
		log.Info().Time("retry_at", retryAt).Msg("rate limited")
		return &Result{
			Status:    StatusRateLimited,
			ErrorKind: fauceterrors.KindRateLimited,
			RetryAt:   &retryAt,
		}
	}

	current, err := d.balances.Read(ctx, recipient)
	if err != nil {
		log.Warn().Err(err).Msg("balance read failed")
		return d.failure(err)
	}

	plan := planner.Build(d.tokens, current)
	if plan.Empty() {
		log.Info().Msg("recipient already at target for every token")
		return &Result{
			Status:    StatusSkipped,
			ErrorKind: fauceterrors.KindSufficientBalance,
			Items:     d.itemStatuses(plan),
		}
	}

	var txHash string
	var gasUsed uint64
	var explorer string
	switch recipient.Kind {
	case address.KindEvm:
		res, err := d.evm.Submit(ctx, recipient.Hex, plan)
		if err != nil {
			metrics.ObserveSubmission("evm", "failed")
			return d.submitFailure(log, err, plan)
		}
		metrics.ObserveSubmission("evm", "confirmed")
		txHash, gasUsed, explorer = res.TxHash, res.GasUsed, d.evmExplorer
	case address.KindCosmos:
		res, err := d.cosmos.Submit(ctx, recipient.Bech32, plan)
		if err != nil {
			metrics.ObserveSubmission("cosmos", "failed")
			return d.submitFailure(log, err, plan)
		}
		metrics.ObserveSubmission("cosmos", "confirmed")
		txHash, gasUsed, explorer = res.TxHash, res.GasUsed, d.cosmosExplorer
	}

	d.verify(ctx, log, recipient, current, plan)

	if err := d.gate.Record(recipient.Hex.Hex(), clientIP); err != nil {
		// The transfer is on chain; a record failure only loosens limits.
		log.Error().Err(err).Msg("failed to record rate-limit hit")
	}

	log.Info().Str("tx_hash", txHash).Uint64("gas_used", gasUsed).Msg("dispense succeeded")
	return &Result{
		Status:      StatusSuccess,
		TxHash:      txHash,
		GasUsed:     gasUsed,
		Items:       d.itemStatuses(plan),
		ExplorerURL: explorerURL(explorer, txHash),
	}
}

// InspectBalance reports current vs target for every configured token.
func (d *Dispatcher) InspectBalance(ctx context.Context, rawAddress string) (map[string]TokenBalanceView, error) {
	recipient := d.classifier.Classify(rawAddress)
	if recipient.Kind == address.KindInvalid {
		return nil, fauceterrors.New(fauceterrors.KindInvalidAddress, "", "invalid recipient address", nil)
	}

	current, err := d.balances.Read(ctx, recipient)
	if err != nil {
		return nil, err
	}

	out := make(map[string]TokenBalanceView, len(d.tokens))
	for i := range d.tokens {
		t := &d.tokens[i]
		view := TokenBalanceView{Target: t.TargetAmount.String(), Decimals: t.Decimals}
		if bal, ok := current[t.Symbol]; ok && bal.Known {
			view.Current = bal.Amount.String()
		}
		out[t.Symbol] = view
	}
	return out, nil
}

// verify re-reads balances after a confirmed submission and flags any token
// that did not land where the plan put it. Diagnostic only: the transaction
// is already final.
func (d *Dispatcher) verify(ctx context.Context, log zerolog.Logger, recipient address.Recipient, before oracle.Balances, plan planner.Plan) {
	after, err := d.balances.Read(ctx, recipient)
	if err != nil {
		log.Warn().Err(err).Msg("post-dispense verification read failed")
		return
	}

	for _, item := range plan.Items {
		prev := before[item.Token.Symbol]
		next, ok := after[item.Token.Symbol]
		if !ok || !next.Known || !prev.Known {
			continue
		}
		expected := prev.Amount.Add(item.Amount)
		if !next.Amount.Equal(expected) {
			log.Warn().
				Str("token", item.Token.Symbol).
				Str("expected", expected.String()).
				Str("observed", next.Amount.String()).
				Msg("post-dispense balance mismatch")
		}
		if next.Amount.GT(item.Token.TargetAmount) {
			log.Warn().Str("token", item.Token.Symbol).Msg("recipient above target after dispense")
		}
	}
}

func (d *Dispatcher) submitFailure(log zerolog.Logger, err error, plan planner.Plan) *Result {
	de := fauceterrors.AsDispense(err)
	if de != nil && de.Severity() == fauceterrors.SeverityAlert {
		log.Error().Err(err).Msg("dispense failed, operator attention required")
	} else {
		log.Warn().Err(err).Msg("dispense failed")
	}
	result := d.failure(err)
	result.Items = d.itemStatuses(plan)
	return result
}

func (d *Dispatcher) failure(err error) *Result {
	result := &Result{Status: StatusFailed, Error: err.Error()}
	if de := fauceterrors.AsDispense(err); de != nil {
		result.ErrorKind = de.Kind
		if !de.RetryAt.IsZero() {
			result.RetryAt = &de.RetryAt
		}
		if de.Kind == fauceterrors.KindRateLimited {
			result.Status = StatusRateLimited
		}
	}
	return result
}

func (d *Dispatcher) itemStatuses(plan planner.Plan) []ItemStatus {
	out := make([]ItemStatus, 0, len(plan.Items)+len(plan.Skipped))
	for _, item := range plan.Items {
		out = append(out, ItemStatus{
			Symbol: item.Token.Symbol,
			Amount: item.Amount.String(),
			Sent:   true,
		})
	}
	for _, skipped := range plan.Skipped {
		out = append(out, ItemStatus{Symbol: skipped.Symbol, Reason: skipped.Reason})
	}
	return out
}

func explorerURL(base, txHash string) string {
	if base == "" || txHash == "" {
		return ""
	}
	return base + "/tx/" + txHash
}
