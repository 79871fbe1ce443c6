package dispatcher

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testnetops/faucetd/address"
	"github.com/testnetops/faucetd/chains/cosmos"
	"github.com/testnetops/faucetd/chains/evm"
	"github.com/testnetops/faucetd/config"
	fauceterrors "github.com/testnetops/faucetd/errors"
	"github.com/testnetops/faucetd/oracle"
	"github.com/testnetops/faucetd/planner"
)

const (
	evmRecipient = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	clientIP     = "203.0.113.7"
)

type fakeGate struct {
	allowed  bool
	retryAt  time.Time
	checkErr error
	recorded int
}

func (g *fakeGate) Check(addrHex, ip string) (bool, time.Time, error) {
	return g.allowed, g.retryAt, g.checkErr
}

func (g *fakeGate) Record(addrHex, ip string) error {
	g.recorded++
	return nil
}

type fakeReader struct {
	balances oracle.Balances
	err      error
	reads    int
}

func (r *fakeReader) Read(ctx context.Context, recipient address.Recipient) (oracle.Balances, error) {
	r.reads++
	return r.balances, r.err
}

type fakeEvmSubmitter struct {
	result *evm.Result
	err    error
	calls  int
}

func (s *fakeEvmSubmitter) Submit(ctx context.Context, recipient ethcommon.Address, plan planner.Plan) (*evm.Result, error) {
	s.calls++
	return s.result, s.err
}

type fakeCosmosSubmitter struct {
	result *cosmos.Result
	err    error
	calls  int
}

func (s *fakeCosmosSubmitter) Submit(ctx context.Context, recipientBech32 string, plan planner.Plan) (*cosmos.Result, error) {
	s.calls++
	return s.result, s.err
}

type fixture struct {
	disp   *Dispatcher
	gate   *fakeGate
	reader *fakeReader
	evm    *fakeEvmSubmitter
	cosmos *fakeCosmosSubmitter
}

func newFixture(balances oracle.Balances) *fixture {
	cfg := &config.Config{
		HRP: "cosmos",
		Tokens: []config.TokenDescriptor{{
			Symbol:           "ATOM",
			Denom:            "uatom",
			Decimals:         6,
			Erc20Address:     "0x0000000000000000000000000000000000000001",
			PerRequestAmount: sdkmath.NewInt(1_000_000),
			TargetAmount:     sdkmath.NewInt(1_000_000_000),
		}},
		EvmExplorerUrl: "https://evm.example.org",
	}

	f := &fixture{
		gate:   &fakeGate{allowed: true},
		reader: &fakeReader{balances: balances},
		evm:    &fakeEvmSubmitter{result: &evm.Result{TxHash: "0xabc", GasUsed: 21000}},
		cosmos: &fakeCosmosSubmitter{result: &cosmos.Result{TxHash: "DEF", GasUsed: 90000}},
	}
	f.disp = New(address.NewClassifier("cosmos"), f.gate, f.reader, f.evm, f.cosmos, cfg, zerolog.Nop())
	return f
}

func emptyBalances() oracle.Balances {
	return oracle.Balances{"ATOM": {Amount: sdkmath.ZeroInt(), Known: true}}
}

func TestServeRejectsInvalidAddress(t *testing.T) {
	f := newFixture(emptyBalances())

	result := f.disp.Serve(context.Background(), "not-an-address", clientIP)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, fauceterrors.KindInvalidAddress, result.ErrorKind)
	assert.Zero(t, f.reader.reads, "invalid addresses never reach the oracle")
	assert.Zero(t, f.gate.recorded)
}

func TestServeRateLimited(t *testing.T) {
	f := newFixture(emptyBalances())
	retryAt := time.Now().Add(3 * time.Hour).Truncate(time.Second)
	f.gate.allowed = false
	f.gate.retryAt = retryAt

	result := f.disp.Serve(context.Background(), evmRecipient, clientIP)

	assert.Equal(t, StatusRateLimited, result.Status)
	require.NotNil(t, result.RetryAt)
	assert.Equal(t, retryAt, *result.RetryAt)
	assert.Zero(t, f.evm.calls)
	assert.Zero(t, f.gate.recorded)
}

func TestServeSkipsWhenAtTarget(t *testing.T) {
	f := newFixture(oracle.Balances{
		"ATOM": {Amount: sdkmath.NewInt(1_000_000_000), Known: true},
	})

	result := f.disp.Serve(context.Background(), evmRecipient, clientIP)

	assert.Equal(t, StatusSkipped, result.Status)
	assert.Equal(t, fauceterrors.KindSufficientBalance, result.ErrorKind)
	assert.Zero(t, f.evm.calls)
	assert.Zero(t, f.gate.recorded, "a skipped dispense consumes no quota")
}

func TestServeEvmSuccess(t *testing.T) {
	f := newFixture(emptyBalances())

	result := f.disp.Serve(context.Background(), evmRecipient, clientIP)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, "0xabc", result.TxHash)
	assert.Equal(t, uint64(21000), result.GasUsed)
	assert.Equal(t, "https://evm.example.org/tx/0xabc", result.ExplorerURL)
	assert.Equal(t, 1, f.evm.calls)
	assert.Zero(t, f.cosmos.calls)
	assert.Equal(t, 1, f.gate.recorded, "quota is consumed exactly once on success")

	require.Len(t, result.Items, 1)
	assert.Equal(t, "ATOM", result.Items[0].Symbol)
	assert.True(t, result.Items[0].Sent)
	assert.Equal(t, "1000000", result.Items[0].Amount)
}

func TestServeRoutesCosmosRecipients(t *testing.T) {
	f := newFixture(emptyBalances())
	b32, err := address.NewClassifier("cosmos").ToBech32(ethcommon.HexToAddress(evmRecipient))
	require.NoError(t, err)

	result := f.disp.Serve(context.Background(), b32, clientIP)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, "DEF", result.TxHash)
	assert.Equal(t, 1, f.cosmos.calls)
	assert.Zero(t, f.evm.calls)
}

func TestServeSubmitFailureConsumesNoQuota(t *testing.T) {
	f := newFixture(emptyBalances())
	f.evm.result = nil
	f.evm.err = fauceterrors.New(fauceterrors.KindOperatorUnderfunded, "evm", "out of gas money", nil)

	result := f.disp.Serve(context.Background(), evmRecipient, clientIP)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, fauceterrors.KindOperatorUnderfunded, result.ErrorKind)
	assert.Zero(t, f.gate.recorded, "failed dispenses never consume quota")
}

func TestServeBusyCarriesRetryAt(t *testing.T) {
	f := newFixture(emptyBalances())
	busy := fauceterrors.New(fauceterrors.KindBusy, "evm", "mutex timeout", nil)
	busy.RetryAt = time.Now().Add(20 * time.Second)
	f.evm.result = nil
	f.evm.err = busy

	result := f.disp.Serve(context.Background(), evmRecipient, clientIP)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, fauceterrors.KindBusy, result.ErrorKind)
	require.NotNil(t, result.RetryAt)
	assert.Equal(t, busy.RetryAt, *result.RetryAt)
}

func TestServeBalanceReadFailure(t *testing.T) {
	f := newFixture(nil)
	f.reader.err = fauceterrors.New(fauceterrors.KindBalanceQueryFailed, "evm", "every probe failed", nil)

	result := f.disp.Serve(context.Background(), evmRecipient, clientIP)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, fauceterrors.KindBalanceQueryFailed, result.ErrorKind)
	assert.Zero(t, f.evm.calls)
}

func TestInspectBalance(t *testing.T) {
	f := newFixture(oracle.Balances{
		"ATOM": {Amount: sdkmath.NewInt(123), Known: true},
	})

	views, err := f.disp.InspectBalance(context.Background(), evmRecipient)
	require.NoError(t, err)

	require.Contains(t, views, "ATOM")
	assert.Equal(t, "123", views["ATOM"].Current)
	assert.Equal(t, "1000000000", views["ATOM"].Target)
	assert.Equal(t, uint8(6), views["ATOM"].Decimals)

	_, err = f.disp.InspectBalance(context.Background(), "garbage")
	assert.True(t, fauceterrors.IsKind(err, fauceterrors.KindInvalidAddress))
}
