// Package core wires the faucet together: keys, chain clients, the rate
// limiter, the dispatcher, and the HTTP surface, with startup validation
// before the first request is served.
package core

import (
	"context"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/testnetops/faucetd/address"
	"github.com/testnetops/faucetd/api"
	"github.com/testnetops/faucetd/chains/cosmos"
	"github.com/testnetops/faucetd/chains/evm"
	"github.com/testnetops/faucetd/config"
	"github.com/testnetops/faucetd/db"
	"github.com/testnetops/faucetd/dispatcher"
	"github.com/testnetops/faucetd/keys"
	"github.com/testnetops/faucetd/metrics"
	"github.com/testnetops/faucetd/oracle"
	"github.com/testnetops/faucetd/ratelimit"
)

// balanceRefreshInterval paces the operator-balance gauge updates.
const balanceRefreshInterval = time.Minute

// Daemon is the assembled faucet process.
type Daemon struct {
	cfg    *config.Config
	log    zerolog.Logger
	keys   *keys.OperatorKeys
	db     *db.DB
	evm    *evm.Client
	cosmos *cosmos.Client
	oracle *oracle.Oracle
	disp   *dispatcher.Dispatcher
	api    *api.Server
}

// NewDaemon builds every component from a validated config. The mnemonic is
// consumed here; callers should not retain it.
func NewDaemon(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Daemon, error) {
	operator, err := keys.NewOperatorKeys(cfg.Mnemonic)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive operator keys")
	}

	evmClient, err := evm.NewClient(ctx, cfg.Endpoints.EvmJsonRpc, cfg.EvmChainID, log)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect EVM endpoint")
	}

	cosmosClient, err := cosmos.NewClient(cfg.Endpoints.CosmosRest, cfg.Endpoints.CosmosGrpc, cfg.RPCTimeout(), log)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect Cosmos endpoint")
	}

	database, err := db.OpenFileDB(cfg.RatelimitStorePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open rate-limit store")
	}

	balances := oracle.New(cfg.Tokens, evmClient, cosmosClient, log)
	limiter := ratelimit.NewLimiter(database, cfg.RateLimits, log)

	evmSubmitter := evm.NewSubmitter(
		evmClient, operator, cfg.AtomicBatchContract,
		cfg.FeePolicy, cfg.RPCTimeout(), cfg.ReceiptTimeout(), cfg.LockTimeout(), log,
	)
	cosmosSubmitter := cosmos.NewSubmitter(
		cosmosClient, operator, cfg.CosmosChainID, cfg.HRP, cfg.CosmosPubkeyTypeUrl,
		cfg.FeePolicy, cfg.RPCTimeout(), cfg.ReceiptTimeout(), cfg.LockTimeout(), log,
	)

	disp := dispatcher.New(
		address.NewClassifier(cfg.HRP),
		limiter, balances, evmSubmitter, cosmosSubmitter, cfg, log,
	)

	d := &Daemon{
		cfg:    cfg,
		log:    log.With().Str("component", "daemon").Logger(),
		keys:   operator,
		db:     database,
		evm:    evmClient,
		cosmos: cosmosClient,
		oracle: balances,
		disp:   disp,
		api:    api.NewServer(log, disp, cfg.APIPort),
	}

	if err := d.validateStartup(ctx); err != nil {
		d.close()
		return nil, err
	}
	return d, nil
}

// validateStartup confirms both interfaces resolve the same operator and
// that the operator can actually fund dispenses.
func (d *Daemon) validateStartup(ctx context.Context) error {
	evmAddr := d.keys.EvmAddress()
	cosmosAddr, err := d.keys.CosmosAddress(d.cfg.HRP)
	if err != nil {
		return errors.Wrap(err, "failed to derive operator bech32 address")
	}

	d.log.Info().
		Str("evm_address", evmAddr.Hex()).
		Str("cosmos_address", cosmosAddr).
		Msg("operator identity derived")

	if _, err := d.cosmos.AccountInfo(ctx, cosmosAddr); err != nil {
		return errors.Wrap(err, "operator account not found on chain; fund it before starting")
	}

	native, err := d.evm.NativeBalance(ctx, evmAddr)
	if err != nil {
		return errors.Wrap(err, "cannot read operator native balance")
	}
	if native.Sign() == 0 {
		return errors.New("operator holds no native balance; it cannot pay EVM gas")
	}

	d.refreshOperatorGauges(ctx)

	for i := range d.cfg.Tokens {
		t := &d.cfg.Tokens[i]
		if t.IsNative() {
			continue
		}
		allowance, err := d.evm.Erc20Allowance(ctx, t.ContractAddress(), evmAddr, ethcommon.HexToAddress(d.cfg.AtomicBatchContract))
		if err != nil {
			d.log.Warn().Err(err).Str("token", t.Symbol).Msg("cannot read batch-contract allowance")
			continue
		}
		if allowance.Cmp(t.PerRequestAmount.BigInt()) < 0 {
			d.log.Warn().
				Str("token", t.Symbol).
				Str("allowance", allowance.String()).
				Msg("batch-contract allowance below one dispense; approve more before serving EVM requests")
		}
	}

	d.log.Info().Msg("startup validation passed")
	return nil
}

// Start serves requests until the context is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.api.Start(); err != nil {
		return errors.Wrap(err, "failed to start api server")
	}
	d.log.Info().Int("port", d.cfg.APIPort).Msg("faucet is serving")

	go d.gaugeLoop(ctx)

	<-ctx.Done()
	d.log.Info().Msg("shutting down faucet")
	return d.close()
}

// Dispatcher exposes the assembled dispatcher, mainly for tooling.
func (d *Daemon) Dispatcher() *dispatcher.Dispatcher {
	return d.disp
}

func (d *Daemon) gaugeLoop(ctx context.Context) {
	ticker := time.NewTicker(balanceRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.refreshOperatorGauges(ctx)
		}
	}
}

// refreshOperatorGauges publishes operator holdings per token. Failures are
// logged and skipped; the gauge keeps its last value.
func (d *Daemon) refreshOperatorGauges(ctx context.Context) {
	evmAddr := d.keys.EvmAddress()
	for i := range d.cfg.Tokens {
		t := &d.cfg.Tokens[i]

		var raw *big.Int
		var err error
		if t.IsNative() {
			raw, err = d.evm.NativeBalance(ctx, evmAddr)
		} else {
			raw, err = d.evm.Erc20BalanceOf(ctx, t.ContractAddress(), evmAddr)
		}
		if err != nil {
			d.log.Debug().Err(err).Str("token", t.Symbol).Msg("operator balance probe failed")
			continue
		}

		units, _ := new(big.Float).SetInt(raw).Float64()
		metrics.SetOperatorBalance(t.Symbol, units)

		if raw.Cmp(t.PerRequestAmount.BigInt()) < 0 {
			d.log.Warn().
				Str("token", t.Symbol).
				Str("balance", raw.String()).
				Msg("operator cannot fund one more dispense of this token")
		}
	}
}

func (d *Daemon) close() error {
	var firstErr error
	if err := d.api.Stop(); err != nil {
		firstErr = err
	}
	if err := d.cosmos.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	d.evm.Close()
	if err := d.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	d.keys.Zero()
	return firstErr
}
