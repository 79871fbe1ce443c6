package config

import (
	"bytes"
	_ "embed"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

//go:embed default_config.json
var defaultConfigJSON []byte

// Load reads the configuration from the given JSON file, layered on top of
// the embedded defaults, with FAUCET_* environment overrides for the ambient
// fields. An empty path loads defaults only (useful for tests).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")

	if err := v.ReadConfig(bytes.NewReader(defaultConfigJSON)); err != nil {
		return nil, errors.Wrap(err, "failed to read embedded defaults")
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// applyEnvOverrides layers FAUCET_* environment variables over the file
// values. The mnemonic is environment-only.
func applyEnvOverrides(cfg *Config) {
	cfg.Mnemonic = os.Getenv("FAUCET_MNEMONIC")

	if s := os.Getenv("FAUCET_LOG_LEVEL"); s != "" {
		cfg.LogLevel = cast.ToInt(s)
	}
	if s := os.Getenv("FAUCET_LOG_FORMAT"); s != "" {
		cfg.LogFormat = s
	}
	if s := os.Getenv("FAUCET_API_PORT"); s != "" {
		cfg.APIPort = cast.ToInt(s)
	}
	if s := os.Getenv("FAUCET_RATELIMIT_STORE_PATH"); s != "" {
		cfg.RatelimitStorePath = s
	}
}

// Validate checks the configuration and fills in defaults. Token amount
// strings are parsed into integers here, once.
func (c *Config) Validate() error {
	if c.LogLevel < -1 || c.LogLevel > 5 {
		return errors.New("logLevel must be between -1 and 5")
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return errors.New("logFormat must be 'json' or 'console'")
	}

	if c.CosmosChainID == "" {
		return errors.New("cosmosChainId is required")
	}
	if c.EvmChainID <= 0 {
		return errors.New("evmChainId must be positive")
	}
	if c.HRP == "" {
		return errors.New("hrp is required")
	}

	if c.Endpoints.CosmosRest == "" {
		return errors.New("endpoints.cosmosRest is required")
	}
	if c.Endpoints.EvmJsonRpc == "" {
		return errors.New("endpoints.evmJsonRpc is required")
	}

	if len(c.Tokens) == 0 {
		return errors.New("at least one token must be configured")
	}
	seen := make(map[string]struct{}, len(c.Tokens))
	for i := range c.Tokens {
		if err := c.Tokens[i].validate(); err != nil {
			return err
		}
		if _, dup := seen[c.Tokens[i].Symbol]; dup {
			return errors.Errorf("duplicate token symbol %s", c.Tokens[i].Symbol)
		}
		seen[c.Tokens[i].Symbol] = struct{}{}
	}

	if c.AtomicBatchContract == "" {
		return errors.New("atomicBatchContract is required")
	}

	if c.RateLimits.AddrWindow <= 0 {
		c.RateLimits.AddrWindow = 24 * 60 * 60
	}
	if c.RateLimits.AddrLimit <= 0 {
		c.RateLimits.AddrLimit = 1
	}
	if c.RateLimits.IPWindow <= 0 {
		c.RateLimits.IPWindow = 24 * 60 * 60
	}
	if c.RateLimits.IPLimit <= 0 {
		c.RateLimits.IPLimit = 5
	}

	if c.FeePolicy.EvmGasLimitBatch == 0 {
		c.FeePolicy.EvmGasLimitBatch = 600000
	}
	if c.FeePolicy.CosmosGasBuffer <= 0 {
		c.FeePolicy.CosmosGasBuffer = 1.4
	}
	if c.FeePolicy.EvmPriorityFeeCap == "" {
		c.FeePolicy.EvmPriorityFeeCap = "1000000000" // 1 gwei
	}
	if c.FeePolicy.CosmosGasPrice == "" {
		return errors.New("feePolicy.cosmosGasPrice is required")
	}

	if c.RatelimitStorePath == "" {
		c.RatelimitStorePath = "faucet_ratelimit.db"
	}

	if c.CosmosPubkeyTypeUrl == "" {
		c.CosmosPubkeyTypeUrl = "/cosmos.evm.crypto.v1.ethsecp256k1.PubKey"
	}

	if c.APIPort == 0 {
		c.APIPort = 8080
	}
	if c.RPCTimeoutSeconds == 0 {
		c.RPCTimeoutSeconds = 10
	}
	if c.ReceiptTimeoutSeconds == 0 {
		c.ReceiptTimeoutSeconds = 30
	}
	if c.LockTimeoutSeconds == 0 {
		c.LockTimeoutSeconds = 20
	}

	return nil
}
