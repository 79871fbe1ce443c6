package cosmos

import (
	"context"
	"strings"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	"github.com/rs/zerolog"

	"github.com/testnetops/faucetd/chains/common"
	"github.com/testnetops/faucetd/config"
	fauceterrors "github.com/testnetops/faucetd/errors"
	"github.com/testnetops/faucetd/keys"
	"github.com/testnetops/faucetd/planner"
)

const (
	maxSubmitAttempts = 3

	// fallbackGasPerMsg sizes the transaction when simulation is
	// unavailable.
	fallbackGasPerMsg = 120000

	// CheckTx/DeliverTx codes from the SDK error registry.
	codeUnauthorized      = 4 // signature verification failed
	codeInsufficientFunds = 5
	codeWrongSequence     = 32
)

// Result reports a committed submission.
type Result struct {
	TxHash  string
	GasUsed uint64
}

// Submitter serializes Cosmos submissions for the operator account. One
// transaction per dispense, carrying one MsgSend per token; atomicity comes
// from the transaction being single-signed.
type Submitter struct {
	client   *Client
	keys     *keys.OperatorKeys
	chainID  string
	hrp      string
	fees     config.FeePolicy
	pubkeyTU string

	rpcTimeout     time.Duration
	receiptTimeout time.Duration
	lockTimeout    time.Duration

	sem chan struct{}

	logger zerolog.Logger
}

// NewSubmitter creates the single Cosmos submission path.
func NewSubmitter(
	client *Client,
	operator *keys.OperatorKeys,
	chainID, hrp, pubkeyTypeURL string,
	fees config.FeePolicy,
	rpcTimeout, receiptTimeout, lockTimeout time.Duration,
	logger zerolog.Logger,
) *Submitter {
	return &Submitter{
		client:         client,
		keys:           operator,
		chainID:        chainID,
		hrp:            hrp,
		fees:           fees,
		pubkeyTU:       pubkeyTypeURL,
		rpcTimeout:     rpcTimeout,
		receiptTimeout: receiptTimeout,
		lockTimeout:    lockTimeout,
		sem:            make(chan struct{}, 1),
		logger:         logger.With().Str("component", "cosmos_submitter").Logger(),
	}
}

// Submit executes the plan as one bank multi-message transaction. Sequence
// drift and transient transport failures are retried with refetched account
// state up to maxSubmitAttempts.
func (s *Submitter) Submit(ctx context.Context, recipientBech32 string, plan planner.Plan) (*Result, error) {
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-time.After(s.lockTimeout):
		e := fauceterrors.New(fauceterrors.KindBusy, "cosmos", "submission mutex acquisition timed out", nil)
		e.RetryAt = time.Now().Add(s.lockTimeout)
		return nil, e
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	operatorAddr, err := s.keys.CosmosAddress(s.hrp)
	if err != nil {
		return nil, fauceterrors.New(fauceterrors.KindSignatureRejected, "cosmos", "cannot derive operator address", err)
	}

	msgs := make([]*banktypes.MsgSend, 0, len(plan.Items))
	for _, it := range plan.Items {
		msgs = append(msgs, &banktypes.MsgSend{
			FromAddress: operatorAddr,
			ToAddress:   recipientBech32,
			Amount:      sdk.Coins{sdk.Coin{Denom: it.Token.Denom, Amount: it.Amount}},
		})
	}

	var lastErr error
	for attempt := 1; attempt <= maxSubmitAttempts; attempt++ {
		result, err := s.attempt(ctx, operatorAddr, msgs)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if de := fauceterrors.AsDispense(err); de == nil || !de.Retryable() {
			return nil, err
		}
		s.logger.Warn().Int("attempt", attempt).Err(err).Msg("submission attempt failed, refetching account state")
		select {
		case <-time.After(time.Duration(1<<(attempt-1)) * 500 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// attempt runs one fetch-sign-broadcast-confirm cycle. The fetch-sign-
// broadcast leg runs detached from caller cancellation: a client disconnect
// mid-broadcast would otherwise strand the sequence. Only the commit wait
// stays on the request context.
func (s *Submitter) attempt(ctx context.Context, operatorAddr string, msgs []*banktypes.MsgSend) (*Result, error) {
	sctx, stop := common.DetachedContext(ctx, s.rpcTimeout)
	defer stop()

	account, err := s.client.AccountInfo(sctx, operatorAddr)
	if err != nil {
		return nil, fauceterrors.New(fauceterrors.KindTransientNetwork, "cosmos", "failed to fetch operator account", err)
	}

	params := SignParams{
		ChainID:       s.chainID,
		AccountNumber: account.AccountNumber,
		Sequence:      account.Sequence,
		PubKeyTypeURL: s.pubkeyTU,
	}

	gasLimit := s.estimateGas(sctx, msgs, params)
	fee, err := ComputeFee(s.fees.CosmosGasPrice, gasLimit)
	if err != nil {
		return nil, fauceterrors.New(fauceterrors.KindOperatorUnderfunded, "cosmos", "cannot price transaction", err)
	}
	params.GasLimit = gasLimit
	params.Fee = fee

	txBytes, err := BuildAndSign(s.keys, msgs, params)
	if err != nil {
		return nil, fauceterrors.New(fauceterrors.KindSignatureRejected, "cosmos", "local signing failed", err)
	}

	s.logger.Debug().
		Uint64("sequence", account.Sequence).
		Uint64("gas_limit", gasLimit).
		Int("msgs", len(msgs)).
		Msg("broadcasting bank transaction")

	br, err := s.client.BroadcastSync(sctx, txBytes)
	if err != nil {
		// Transport failure: CheckTx never ran, so the sequence is intact
		// and the attempt loop may resubmit.
		return nil, fauceterrors.New(fauceterrors.KindTransientNetwork, "cosmos", "broadcast transport failed", err)
	}
	if br.Code != 0 {
		return nil, classifyTxError(br.Code, br.RawLog)
	}

	committed, err := s.client.WaitForTx(ctx, br.TxHash, s.receiptTimeout)
	if err != nil {
		// The sequence is consumed; the outcome is unknown.
		return nil, fauceterrors.New(fauceterrors.KindBroadcastTimeout, "cosmos", "transaction not committed before deadline", err)
	}
	if committed.Code != 0 {
		return nil, classifyTxError(committed.Code, committed.RawLog)
	}

	s.logger.Info().
		Str("tx_hash", committed.TxHash).
		Uint64("gas_used", committed.GasUsed).
		Msg("bank transaction committed")

	return &Result{TxHash: committed.TxHash, GasUsed: committed.GasUsed}, nil
}

// estimateGas simulates the unsigned transaction and applies the configured
// buffer, falling back to a per-message constant when simulation fails.
func (s *Submitter) estimateGas(ctx context.Context, msgs []*banktypes.MsgSend, params SignParams) uint64 {
	unsigned, err := BuildUnsigned(msgs, s.keys.PubKeyBytes(), params)
	if err == nil {
		if gasUsed, simErr := s.client.Simulate(ctx, unsigned); simErr == nil && gasUsed > 0 {
			return uint64(float64(gasUsed) * s.fees.CosmosGasBuffer)
		}
	}
	s.logger.Debug().Int("msgs", len(msgs)).Msg("gas simulation unavailable, using fallback")
	return uint64(len(msgs)) * fallbackGasPerMsg
}

// classifyTxError maps CheckTx/DeliverTx failures onto dispense error kinds.
func classifyTxError(code uint32, rawLog string) error {
	logLower := strings.ToLower(rawLog)
	switch {
	case code == codeWrongSequence || strings.Contains(logLower, "account sequence mismatch"):
		return fauceterrors.Newf(fauceterrors.KindNonceDrift, "cosmos", nil, "sequence drift: %s", rawLog)
	case code == codeUnauthorized && strings.Contains(logLower, "signature"):
		return fauceterrors.Newf(fauceterrors.KindSignatureRejected, "cosmos", nil, "chain rejected signature: %s", rawLog)
	case code == codeInsufficientFunds || strings.Contains(logLower, "insufficient funds"):
		return fauceterrors.Newf(fauceterrors.KindOperatorUnderfunded, "cosmos", nil, "operator underfunded: %s", rawLog)
	default:
		e := fauceterrors.Newf(fauceterrors.KindChainReverted, "cosmos", nil, "transaction failed with code %d", code)
		e.RevertReason = rawLog
		return e
	}
}
