// Package evm talks to the execution interface: balance reads over JSON-RPC
// and the atomic batch submission path for EVM-kind recipients.
package evm

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Client wraps a single JSON-RPC endpoint. The chain ID is verified once at
// construction; a mismatch is a configuration error and aborts startup.
type Client struct {
	eth     *ethclient.Client
	chainID *big.Int
	logger  zerolog.Logger
}

// NewClient dials the endpoint and verifies the chain ID.
func NewClient(ctx context.Context, rpcURL string, expectedChainID int64, logger zerolog.Logger) (*Client, error) {
	log := logger.With().Str("component", "evm_client").Logger()

	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to EVM RPC %s", rpcURL)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, errors.Wrap(err, "failed to fetch EVM chain ID")
	}
	if chainID.Int64() != expectedChainID {
		eth.Close()
		return nil, errors.Errorf("EVM chain ID mismatch: endpoint reports %d, configured %d",
			chainID.Int64(), expectedChainID)
	}

	log.Info().Str("url", rpcURL).Int64("chain_id", expectedChainID).Msg("connected to EVM RPC")
	return &Client{eth: eth, chainID: chainID, logger: log}, nil
}

// ChainID returns the verified chain ID.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// PendingNonce returns the account's pending nonce.
func (c *Client) PendingNonce(ctx context.Context, addr ethcommon.Address) (uint64, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, errors.Wrap(err, "failed to fetch pending nonce")
	}
	return nonce, nil
}

// NativeBalance returns the native token balance at the latest block.
func (c *Client) NativeBalance(ctx context.Context, addr ethcommon.Address) (*big.Int, error) {
	bal, err := c.eth.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch native balance")
	}
	return bal, nil
}

// SuggestFees derives the EIP-1559 fee pair: the node's suggested tip capped
// at tipCap, and a fee cap of twice the current base fee plus the tip.
func (c *Client) SuggestFees(ctx context.Context, tipCap *big.Int) (gasTipCap, gasFeeCap *big.Int, err error) {
	tip, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to fetch suggested priority fee")
	}
	if tipCap != nil && tipCap.Sign() > 0 && tip.Cmp(tipCap) > 0 {
		tip = new(big.Int).Set(tipCap)
	}

	head, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to fetch chain head")
	}
	baseFee := head.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(0)
	}

	feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
	feeCap.Add(feeCap, tip)
	return tip, feeCap, nil
}

// SendTransaction broadcasts a signed transaction.
func (c *Client) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	return c.eth.SendTransaction(ctx, tx)
}

// WaitForReceipt polls for the receipt until the deadline.
func (c *Client) WaitForReceipt(ctx context.Context, hash ethcommon.Hash, timeout time.Duration) (*ethtypes.Receipt, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}

		if time.Now().After(deadline) {
			return nil, errors.Errorf("no receipt for %s within %s", hash.Hex(), timeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// ReplayForRevert re-executes a failed transaction as an eth_call at its
// block to recover the revert reason. Best effort: an empty string means the
// node did not expose one.
func (c *Client) ReplayForRevert(ctx context.Context, from, to ethcommon.Address, value *big.Int, data []byte, blockNumber *big.Int) string {
	_, err := c.eth.CallContract(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: value,
		Data:  data,
	}, blockNumber)
	if err == nil {
		return ""
	}
	return err.Error()
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}
