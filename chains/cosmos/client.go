// Package cosmos talks to the bank-module interface: REST queries for
// account state and balances, SIGN_MODE_DIRECT transaction assembly, and
// SYNC-mode broadcast. A gRPC connection, when configured, replaces the REST
// path for balance queries and broadcast.
package cosmos

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	sdkmath "cosmossdk.io/math"
	sdktx "github.com/cosmos/cosmos-sdk/types/tx"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// BroadcastResult is the immediate (CheckTx) outcome of a SYNC broadcast.
type BroadcastResult struct {
	TxHash string
	Code   uint32
	RawLog string
}

// TxResult is the committed outcome of a transaction.
type TxResult struct {
	TxHash  string
	Code    uint32
	GasUsed uint64
	RawLog  string
}

// Client queries and broadcasts against one Cosmos chain.
type Client struct {
	restURL string
	httpc   *http.Client
	grpc    *grpc.ClientConn
	logger  zerolog.Logger
}

// NewClient builds the REST client and, when grpcAddr is non-empty, a gRPC
// connection used for bank queries and broadcast.
func NewClient(restURL, grpcAddr string, rpcTimeout time.Duration, logger zerolog.Logger) (*Client, error) {
	c := &Client{
		restURL: restURL,
		httpc:   &http.Client{Timeout: rpcTimeout},
		logger:  logger.With().Str("component", "cosmos_client").Logger(),
	}

	if grpcAddr != "" {
		conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create gRPC client for %s", grpcAddr)
		}
		c.grpc = conn
		c.logger.Info().Str("grpc", grpcAddr).Msg("cosmos gRPC path enabled")
	}

	return c, nil
}

// Close releases the gRPC connection if one was opened.
func (c *Client) Close() error {
	if c.grpc != nil {
		return c.grpc.Close()
	}
	return nil
}

// AccountInfo fetches the operator's account number and sequence. Always
// REST: the response shape is a tagged union (BaseAccount vs EthAccount)
// that parseAccountResponse pattern-matches.
func (c *Client) AccountInfo(ctx context.Context, bech32Addr string) (*AccountInfo, error) {
	body, err := c.get(ctx, fmt.Sprintf("/cosmos/auth/v1beta1/accounts/%s", bech32Addr))
	if err != nil {
		return nil, errors.Wrap(err, "account query failed")
	}
	return parseAccountResponse(body)
}

// Balances returns every denom the address holds, via gRPC when available.
func (c *Client) Balances(ctx context.Context, bech32Addr string) (map[string]sdkmath.Int, error) {
	if c.grpc != nil {
		return c.balancesGrpc(ctx, bech32Addr)
	}
	return c.balancesRest(ctx, bech32Addr)
}

func (c *Client) balancesGrpc(ctx context.Context, bech32Addr string) (map[string]sdkmath.Int, error) {
	resp, err := banktypes.NewQueryClient(c.grpc).AllBalances(ctx, &banktypes.QueryAllBalancesRequest{
		Address: bech32Addr,
	})
	if err != nil {
		return nil, errors.Wrap(err, "gRPC bank query failed")
	}

	out := make(map[string]sdkmath.Int, len(resp.Balances))
	for _, coin := range resp.Balances {
		out[coin.Denom] = coin.Amount
	}
	return out, nil
}

func (c *Client) balancesRest(ctx context.Context, bech32Addr string) (map[string]sdkmath.Int, error) {
	body, err := c.get(ctx, fmt.Sprintf("/cosmos/bank/v1beta1/balances/%s", bech32Addr))
	if err != nil {
		return nil, errors.Wrap(err, "bank query failed")
	}

	var resp struct {
		Balances []struct {
			Denom  string `json:"denom"`
			Amount string `json:"amount"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to decode bank response")
	}

	out := make(map[string]sdkmath.Int, len(resp.Balances))
	for _, coin := range resp.Balances {
		amount, ok := sdkmath.NewIntFromString(coin.Amount)
		if !ok {
			return nil, errors.Errorf("invalid amount %q for denom %s", coin.Amount, coin.Denom)
		}
		out[coin.Denom] = amount
	}
	return out, nil
}

// Simulate estimates gas for the given TxRaw bytes (signature may be empty).
func (c *Client) Simulate(ctx context.Context, txBytes []byte) (uint64, error) {
	if c.grpc != nil {
		resp, err := sdktx.NewServiceClient(c.grpc).Simulate(ctx, &sdktx.SimulateRequest{TxBytes: txBytes})
		if err != nil {
			return 0, errors.Wrap(err, "gRPC simulate failed")
		}
		return resp.GasInfo.GasUsed, nil
	}

	reqBody, err := json.Marshal(map[string]string{
		"tx_bytes": base64.StdEncoding.EncodeToString(txBytes),
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to encode simulate request")
	}

	body, err := c.post(ctx, "/cosmos/tx/v1beta1/simulate", reqBody)
	if err != nil {
		return 0, errors.Wrap(err, "simulate failed")
	}

	var resp struct {
		GasInfo struct {
			GasUsed string `json:"gas_used"`
		} `json:"gas_info"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, errors.Wrap(err, "failed to decode simulate response")
	}

	var gasUsed uint64
	if _, err := fmt.Sscan(resp.GasInfo.GasUsed, &gasUsed); err != nil {
		return 0, errors.Wrapf(err, "invalid gas_used %q", resp.GasInfo.GasUsed)
	}
	return gasUsed, nil
}

// BroadcastSync submits TxRaw bytes in SYNC mode and returns the CheckTx
// outcome. A zero code means the transaction entered the mempool; commit is
// observed separately via WaitForTx.
func (c *Client) BroadcastSync(ctx context.Context, txBytes []byte) (*BroadcastResult, error) {
	if c.grpc != nil {
		resp, err := sdktx.NewServiceClient(c.grpc).BroadcastTx(ctx, &sdktx.BroadcastTxRequest{
			TxBytes: txBytes,
			Mode:    sdktx.BroadcastMode_BROADCAST_MODE_SYNC,
		})
		if err != nil {
			return nil, errors.Wrap(err, "gRPC broadcast failed")
		}
		return &BroadcastResult{
			TxHash: resp.TxResponse.TxHash,
			Code:   resp.TxResponse.Code,
			RawLog: resp.TxResponse.RawLog,
		}, nil
	}

	reqBody, err := json.Marshal(map[string]string{
		"tx_bytes": base64.StdEncoding.EncodeToString(txBytes),
		"mode":     "BROADCAST_MODE_SYNC",
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode broadcast request")
	}

	body, err := c.post(ctx, "/cosmos/tx/v1beta1/txs", reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "broadcast failed")
	}

	var resp struct {
		TxResponse struct {
			TxHash string `json:"txhash"`
			Code   uint32 `json:"code"`
			RawLog string `json:"raw_log"`
		} `json:"tx_response"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to decode broadcast response")
	}
	return &BroadcastResult{
		TxHash: resp.TxResponse.TxHash,
		Code:   resp.TxResponse.Code,
		RawLog: resp.TxResponse.RawLog,
	}, nil
}

// WaitForTx polls the tx endpoint until the transaction is committed or the
// deadline passes.
func (c *Client) WaitForTx(ctx context.Context, txHash string, timeout time.Duration) (*TxResult, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		result, err := c.queryTx(ctx, txHash)
		if err == nil && result != nil {
			return result, nil
		}

		if time.Now().After(deadline) {
			return nil, errors.Errorf("transaction %s not committed within %s", txHash, timeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// queryTx returns (nil, nil) while the transaction is still pending.
func (c *Client) queryTx(ctx context.Context, txHash string) (*TxResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.restURL+"/cosmos/tx/v1beta1/txs/"+txHash, nil)
	if err != nil {
		return nil, err
	}
	httpResp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var resp struct {
		TxResponse struct {
			Height  string `json:"height"`
			TxHash  string `json:"txhash"`
			Code    uint32 `json:"code"`
			GasUsed string `json:"gas_used"`
			RawLog  string `json:"raw_log"`
		} `json:"tx_response"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.TxResponse.Height == "" || resp.TxResponse.Height == "0" {
		return nil, nil
	}

	var gasUsed uint64
	_, _ = fmt.Sscan(resp.TxResponse.GasUsed, &gasUsed)

	return &TxResult{
		TxHash:  resp.TxResponse.TxHash,
		Code:    resp.TxResponse.Code,
		GasUsed: gasUsed,
		RawLog:  resp.TxResponse.RawLog,
	}, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.restURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.restURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, truncate(body, 256))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
