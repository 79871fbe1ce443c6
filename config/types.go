package config

import (
	"fmt"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// NativeTokenSentinel is the ERC-20 address that denotes the native token's
// precompile view in a token descriptor. The atomic batch contract expects
// address(0) for native line items; the planner performs that mapping.
const NativeTokenSentinel = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"

// TokenDescriptor describes one dispensable token. Immutable after load.
type TokenDescriptor struct {
	Symbol       string `mapstructure:"symbol" json:"symbol"`
	Name         string `mapstructure:"name" json:"name"`
	Denom        string `mapstructure:"denom" json:"denom"`
	Decimals     uint8  `mapstructure:"decimals" json:"decimals"`
	Erc20Address string `mapstructure:"erc20Address" json:"erc20Address"`
	PerRequest   string `mapstructure:"perRequest" json:"perRequest"`
	Target       string `mapstructure:"target" json:"target"`
	IBCTrace     string `mapstructure:"ibcTrace,omitempty" json:"ibcTrace,omitempty"`

	// Parsed at validation time from the string fields above.
	PerRequestAmount sdkmath.Int `mapstructure:"-" json:"-"`
	TargetAmount     sdkmath.Int `mapstructure:"-" json:"-"`
}

// IsNative reports whether the descriptor uses the native-token sentinel.
func (t *TokenDescriptor) IsNative() bool {
	return strings.EqualFold(t.Erc20Address, NativeTokenSentinel)
}

// ContractAddress returns the ERC-20 contract address for non-native tokens.
func (t *TokenDescriptor) ContractAddress() ethcommon.Address {
	return ethcommon.HexToAddress(t.Erc20Address)
}

func (t *TokenDescriptor) validate() error {
	if t.Symbol == "" {
		return fmt.Errorf("token symbol is required")
	}
	if t.Denom == "" {
		return fmt.Errorf("token %s: denom is required", t.Symbol)
	}
	if t.Decimals > 18 {
		return fmt.Errorf("token %s: decimals must be in [0,18], got %d", t.Symbol, t.Decimals)
	}
	if !t.IsNative() && !ethcommon.IsHexAddress(t.Erc20Address) {
		return fmt.Errorf("token %s: invalid erc20Address %q", t.Symbol, t.Erc20Address)
	}

	perRequest, ok := sdkmath.NewIntFromString(t.PerRequest)
	if !ok || !perRequest.IsPositive() {
		return fmt.Errorf("token %s: invalid perRequest amount %q", t.Symbol, t.PerRequest)
	}
	target, ok := sdkmath.NewIntFromString(t.Target)
	if !ok || !target.IsPositive() {
		return fmt.Errorf("token %s: invalid target amount %q", t.Symbol, t.Target)
	}
	if perRequest.GT(target) {
		return fmt.Errorf("token %s: perRequest %s exceeds target %s", t.Symbol, perRequest, target)
	}

	t.PerRequestAmount = perRequest
	t.TargetAmount = target
	return nil
}

// Endpoints groups the network endpoints for both interfaces.
type Endpoints struct {
	CosmosRest string `mapstructure:"cosmosRest" json:"cosmosRest"`
	CosmosGrpc string `mapstructure:"cosmosGrpc" json:"cosmosGrpc"`
	CosmosRpc  string `mapstructure:"cosmosRpc" json:"cosmosRpc"`
	EvmJsonRpc string `mapstructure:"evmJsonRpc" json:"evmJsonRpc"`
	EvmWs      string `mapstructure:"evmWs" json:"evmWs"`
}

// RateLimits holds the sliding-window parameters per key family. Windows are
// expressed in seconds.
type RateLimits struct {
	AddrWindow int `mapstructure:"addrWindow" json:"addrWindow"`
	AddrLimit  int `mapstructure:"addrLimit" json:"addrLimit"`
	IPWindow   int `mapstructure:"ipWindow" json:"ipWindow"`
	IPLimit    int `mapstructure:"ipLimit" json:"ipLimit"`
}

// AddrWindowDuration returns the per-address window as a duration.
func (r RateLimits) AddrWindowDuration() time.Duration {
	return time.Duration(r.AddrWindow) * time.Second
}

// IPWindowDuration returns the per-IP window as a duration.
func (r RateLimits) IPWindowDuration() time.Duration {
	return time.Duration(r.IPWindow) * time.Second
}

// FeePolicy carries the economic knobs for both interfaces.
type FeePolicy struct {
	// CosmosGasPrice is a decimal coin, e.g. "0.08utoken".
	CosmosGasPrice string `mapstructure:"cosmosGasPrice" json:"cosmosGasPrice"`

	// EvmPriorityFeeCap caps the EIP-1559 priority fee, in wei.
	EvmPriorityFeeCap string `mapstructure:"evmPriorityFeeCap" json:"evmPriorityFeeCap"`

	// EvmGasLimitBatch is the fixed gas limit for an atomic batch call.
	EvmGasLimitBatch uint64 `mapstructure:"evmGasLimitBatch" json:"evmGasLimitBatch"`

	// CosmosGasBuffer multiplies simulated gas before submission.
	CosmosGasBuffer float64 `mapstructure:"cosmosGasBuffer" json:"cosmosGasBuffer"`
}

// Config is the full faucet configuration, loaded once at startup and shared
// read-only afterwards. The mnemonic never appears in the config file; it is
// read from the FAUCET_MNEMONIC environment variable.
type Config struct {
	// Log config
	LogLevel   int    `mapstructure:"logLevel" json:"logLevel"`
	LogFormat  string `mapstructure:"logFormat" json:"logFormat"`
	LogSampler bool   `mapstructure:"logSampler" json:"logSampler"`

	// Chain identity
	CosmosChainID string `mapstructure:"cosmosChainId" json:"cosmosChainId"`
	EvmChainID    int64  `mapstructure:"evmChainId" json:"evmChainId"`
	HRP           string `mapstructure:"hrp" json:"hrp"`

	Endpoints Endpoints `mapstructure:"endpoints" json:"endpoints"`

	Tokens []TokenDescriptor `mapstructure:"tokens" json:"tokens"`

	AtomicBatchContract string `mapstructure:"atomicBatchContract" json:"atomicBatchContract"`

	RateLimits RateLimits `mapstructure:"rateLimits" json:"rateLimits"`
	FeePolicy  FeePolicy  `mapstructure:"feePolicy" json:"feePolicy"`

	RatelimitStorePath string `mapstructure:"ratelimitStorePath" json:"ratelimitStorePath"`

	// CosmosPubkeyTypeUrl overrides the Any type URL used for the operator
	// pubkey in Cosmos transactions. Ethermint-family chains disagree on it.
	CosmosPubkeyTypeUrl string `mapstructure:"cosmosPubkeyTypeUrl" json:"cosmosPubkeyTypeUrl"`

	// HTTP shim
	APIPort int `mapstructure:"apiPort" json:"apiPort"`

	// Explorer URL hints, optional. "/tx/<hash>" is appended.
	EvmExplorerUrl    string `mapstructure:"evmExplorerUrl" json:"evmExplorerUrl"`
	CosmosExplorerUrl string `mapstructure:"cosmosExplorerUrl" json:"cosmosExplorerUrl"`

	// Per-operation timeouts, in seconds.
	RPCTimeoutSeconds     int `mapstructure:"rpcTimeoutSeconds" json:"rpcTimeoutSeconds"`
	ReceiptTimeoutSeconds int `mapstructure:"receiptTimeoutSeconds" json:"receiptTimeoutSeconds"`
	LockTimeoutSeconds    int `mapstructure:"lockTimeoutSeconds" json:"lockTimeoutSeconds"`

	// Mnemonic is injected from the environment, never from the file.
	Mnemonic string `mapstructure:"-" json:"-"`
}

// RPCTimeout returns the per-call network timeout.
func (c *Config) RPCTimeout() time.Duration {
	return time.Duration(c.RPCTimeoutSeconds) * time.Second
}

// ReceiptTimeout returns the receipt/commit wait deadline.
func (c *Config) ReceiptTimeout() time.Duration {
	return time.Duration(c.ReceiptTimeoutSeconds) * time.Second
}

// LockTimeout returns the submission-mutex acquisition deadline.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutSeconds) * time.Second
}

// TokenBySymbol returns the descriptor for a symbol, or nil.
func (c *Config) TokenBySymbol(symbol string) *TokenDescriptor {
	for i := range c.Tokens {
		if c.Tokens[i].Symbol == symbol {
			return &c.Tokens[i]
		}
	}
	return nil
}
