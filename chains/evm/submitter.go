package evm

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/testnetops/faucetd/chains/common"
	"github.com/testnetops/faucetd/config"
	fauceterrors "github.com/testnetops/faucetd/errors"
	"github.com/testnetops/faucetd/keys"
	"github.com/testnetops/faucetd/planner"
)

const maxSubmitAttempts = 3

// Result reports a confirmed submission.
type Result struct {
	TxHash  string
	GasUsed uint64
}

// Submitter serializes EVM submissions for the operator account. One batch
// call per dispense; the nonce space belongs to this struct alone.
type Submitter struct {
	client    *Client
	keys      *keys.OperatorKeys
	batchAddr ethcommon.Address
	fees      config.FeePolicy

	rpcTimeout     time.Duration
	receiptTimeout time.Duration
	lockTimeout    time.Duration

	// sem is the submission mutex. A channel rather than sync.Mutex so
	// acquisition can carry a deadline.
	sem chan struct{}

	logger zerolog.Logger
}

// NewSubmitter creates the single EVM submission path.
func NewSubmitter(
	client *Client,
	operator *keys.OperatorKeys,
	batchContract string,
	fees config.FeePolicy,
	rpcTimeout, receiptTimeout, lockTimeout time.Duration,
	logger zerolog.Logger,
) *Submitter {
	return &Submitter{
		client:         client,
		keys:           operator,
		batchAddr:      ethcommon.HexToAddress(batchContract),
		fees:           fees,
		rpcTimeout:     rpcTimeout,
		receiptTimeout: receiptTimeout,
		lockTimeout:    lockTimeout,
		sem:            make(chan struct{}, 1),
		logger:         logger.With().Str("component", "evm_submitter").Logger(),
	}
}

// Submit executes the plan as one atomic multiSend call. Nonce drift and
// transient transport failures are retried with fresh state up to
// maxSubmitAttempts; everything else surfaces immediately as a typed
// dispense error.
func (s *Submitter) Submit(ctx context.Context, recipient ethcommon.Address, plan planner.Plan) (*Result, error) {
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-time.After(s.lockTimeout):
		retryAt := time.Now().Add(s.lockTimeout)
		e := fauceterrors.New(fauceterrors.KindBusy, "evm", "submission mutex acquisition timed out", nil)
		e.RetryAt = retryAt
		return nil, e
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	items := make([]BatchItem, 0, len(plan.Items))
	for _, it := range plan.Items {
		token := ethcommon.Address{} // address(0) = native line item
		if !it.Token.IsNative() {
			token = it.Token.ContractAddress()
		}
		items = append(items, BatchItem{Token: token, Amount: it.Amount.BigInt()})
	}

	calldata, value, err := PackMultiSend(recipient, items)
	if err != nil {
		return nil, fauceterrors.New(fauceterrors.KindChainReverted, "evm", "failed to encode batch calldata", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxSubmitAttempts; attempt++ {
		result, err := s.attempt(ctx, recipient, calldata, value)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if de := fauceterrors.AsDispense(err); de == nil || !de.Retryable() {
			return nil, err
		}
		s.logger.Warn().Int("attempt", attempt).Err(err).Msg("submission attempt failed, refetching state")
		// Exponential backoff before refetching the pending nonce.
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
// mid-broadcast would otherwise strand the nonce. Only the receipt wait
// stays on the request context.
func (s *Submitter) attempt(ctx context.Context, recipient ethcommon.Address, calldata []byte, value *big.Int) (*Result, error) {
	operator := s.keys.EvmAddress()

	sctx, stop := common.DetachedContext(ctx, s.rpcTimeout)
	defer stop()

	nonce, err := s.client.PendingNonce(sctx, operator)
	if err != nil {
		return nil, fauceterrors.New(fauceterrors.KindTransientNetwork, "evm", "failed to fetch pending nonce", err)
	}

	tipCap, ok := new(big.Int).SetString(s.fees.EvmPriorityFeeCap, 10)
	if !ok {
		tipCap = nil
	}
	gasTip, gasFee, err := s.client.SuggestFees(sctx, tipCap)
	if err != nil {
		return nil, fauceterrors.New(fauceterrors.KindTransientNetwork, "evm", "failed to derive EIP-1559 fees", err)
	}

	tx, err := signBatch(s.keys.ECDSA(), s.client.ChainID(), nonce, gasTip, gasFee, s.fees.EvmGasLimitBatch, s.batchAddr, value, calldata)
	if err != nil {
		return nil, fauceterrors.New(fauceterrors.KindSignatureRejected, "evm", "local signing failed", err)
	}

	s.logger.Debug().
		Uint64("nonce", nonce).
		Str("recipient", recipient.Hex()).
		Str("tx_hash", tx.Hash().Hex()).
		Msg("broadcasting batch transaction")

	if err := s.client.SendTransaction(sctx, tx); err != nil {
		return nil, classifySendError(err)
	}

	receipt, err := s.client.WaitForReceipt(ctx, tx.Hash(), s.receiptTimeout)
	if err != nil {
		// The nonce is consumed whether or not the receipt ever shows up.
		return nil, fauceterrors.New(fauceterrors.KindBroadcastTimeout, "evm", "no receipt before deadline", err)
	}

	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		reason := s.client.ReplayForRevert(ctx, operator, s.batchAddr, value, calldata, receipt.BlockNumber)
		return nil, fauceterrors.Reverted("evm", reason, nil)
	}

	s.logger.Info().
		Str("tx_hash", tx.Hash().Hex()).
		Uint64("gas_used", receipt.GasUsed).
		Msg("batch transaction confirmed")

	return &Result{TxHash: tx.Hash().Hex(), GasUsed: receipt.GasUsed}, nil
}

// signBatch assembles and signs the type-0x02 batch call. The EIP-1559
// signer puts the chain id in the payload and emits parity-convention v.
func signBatch(key *ecdsa.PrivateKey, chainID *big.Int, nonce uint64, gasTip, gasFee *big.Int, gasLimit uint64, to ethcommon.Address, value *big.Int, calldata []byte) (*ethtypes.Transaction, error) {
	return ethtypes.SignNewTx(key, ethtypes.LatestSignerForChainID(chainID), &ethtypes.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: gasTip,
		GasFeeCap: gasFee,
		Gas:       gasLimit,
		To:        &to,
		Value:     value,
		Data:      calldata,
	})
}

// classifySendError maps node errors onto the closed dispense error kinds.
// Transport failures are transient: the chain never judged the transaction,
// so the attempt loop may rebroadcast under the same nonce.
func classifySendError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "nonce too low"),
		strings.Contains(msg, "nonce too high"),
		strings.Contains(msg, "invalid nonce"),
		strings.Contains(msg, "already known"),
		strings.Contains(msg, "replacement transaction underpriced"):
		return fauceterrors.New(fauceterrors.KindNonceDrift, "evm", "operator nonce drifted", err)
	case strings.Contains(msg, "insufficient funds"):
		return fauceterrors.New(fauceterrors.KindOperatorUnderfunded, "evm", "operator cannot cover value plus gas", err)
	case strings.Contains(msg, "invalid sender"), strings.Contains(msg, "invalid signature"):
		return fauceterrors.New(fauceterrors.KindSignatureRejected, "evm", "chain rejected the signature", err)
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "i/o timeout"),
		strings.Contains(msg, "context deadline exceeded"),
		strings.Contains(msg, "context canceled"),
		strings.Contains(msg, "eof"):
		return fauceterrors.New(fauceterrors.KindTransientNetwork, "evm", "broadcast transport failed", err)
	default:
		return fauceterrors.New(fauceterrors.KindChainReverted, "evm", "broadcast rejected", err)
	}
}
