package evm

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// erc20ABIJSON covers the IERC20 surface the faucet touches plus metadata.
const erc20ABIJSON = `[
	{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"constant":false,"inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transferFrom","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

var erc20ABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic(errors.Wrap(err, "invalid embedded ERC-20 ABI"))
	}
	erc20ABI = parsed
}

// Erc20BalanceOf reads balanceOf(holder) on the token contract.
func (c *Client) Erc20BalanceOf(ctx context.Context, token, holder ethcommon.Address) (*big.Int, error) {
	data, err := erc20ABI.Pack("balanceOf", holder)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack balanceOf call")
	}

	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "balanceOf call to %s failed", token.Hex())
	}

	results, err := erc20ABI.Unpack("balanceOf", out)
	if err != nil || len(results) != 1 {
		return nil, errors.Wrap(err, "failed to unpack balanceOf result")
	}
	balance, ok := results[0].(*big.Int)
	if !ok {
		return nil, errors.New("balanceOf returned a non-integer result")
	}
	return balance, nil
}

// Erc20Allowance reads allowance(owner, spender), used at startup to verify
// the batch contract can pull operator funds.
func (c *Client) Erc20Allowance(ctx context.Context, token, owner, spender ethcommon.Address) (*big.Int, error) {
	data, err := erc20ABI.Pack("allowance", owner, spender)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack allowance call")
	}

	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "allowance call to %s failed", token.Hex())
	}

	results, err := erc20ABI.Unpack("allowance", out)
	if err != nil || len(results) != 1 {
		return nil, errors.Wrap(err, "failed to unpack allowance result")
	}
	allowance, ok := results[0].(*big.Int)
	if !ok {
		return nil, errors.New("allowance returned a non-integer result")
	}
	return allowance, nil
}
