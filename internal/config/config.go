package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for TALON.
type Config struct {
	General   GeneralConfig   `yaml:"general"`
	Chain     ChainConfig     `yaml:"chain"`
	Providers ProvidersConfig `yaml:"providers"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Proxy     ProxyConfig     `yaml:"proxy"`
	Storage   StorageConfig   `yaml:"storage"`
}

type GeneralConfig struct {
	InstanceID  string `yaml:"instance_id"`
	Environment string `yaml:"environment"` // production|staging|development
	DryRun      bool   `yaml:"dry_run"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"` // json|text
}

type ChainConfig struct {
	Name           string        `yaml:"name"` // e.g. "bsc", "ethereum"
	ChainID        int64         `yaml:"chain_id"`
	RPCEndpoint    string        `yaml:"rpc_endpoint"`
	WSEndpoint     string        `yaml:"ws_endpoint"`
	FactoryAddress string        `yaml:"factory_address"` // DEX factory emitting PairCreated
	WrappedNative  string        `yaml:"wrapped_native"`  // e.g. WBNB/WETH address
	PrivateKey     string        `yaml:"private_key"`     // hex, usually ${TALON_PRIVATE_KEY}
	CallTimeout    time.Duration `yaml:"call_timeout"`
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
}

type ProvidersConfig struct {
	FetchTimeout  time.Duration        `yaml:"fetch_timeout"` // per-provider budget
	DexScreener   ProviderDetailConfig `yaml:"dexscreener"`
	GeckoTerminal ProviderDetailConfig `yaml:"geckoterminal"`
	GoPlus        ProviderDetailConfig `yaml:"goplus"` // token security provider
}

type ProviderDetailConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

type DiscoveryConfig struct {
	IntervalMs      int    `yaml:"interval_ms"`       // discovery cycle interval
	PageLimit       int    `yaml:"page_limit"`        // pools fetched per cycle
	SortBy          string `yaml:"sort_by"`           // marketCap|volume|holderCount|createdAt
	SortOrder       string `yaml:"sort_order"`        // asc|desc
	MaxTrackedPools int    `yaml:"max_tracked_pools"` // dedup window size
}

type ProxyConfig struct {
	FactoryAddress string `yaml:"factory_address"` // proxy wallet factory contract
	GasLimit       uint64 `yaml:"gas_limit"`
	MaxGasGwei     int64  `yaml:"max_gas_gwei"`
}

type StorageConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"` // empty = in-memory stores
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.General.InstanceID == "" {
		cfg.General.InstanceID = "talon-1"
	}
	if cfg.General.Environment == "" {
		cfg.General.Environment = "development"
	}
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}
	if cfg.General.LogFormat == "" {
		cfg.General.LogFormat = "json"
	}
	if cfg.Chain.Name == "" {
		cfg.Chain.Name = "bsc"
	}
	if cfg.Chain.ChainID == 0 {
		cfg.Chain.ChainID = 56
	}
	if cfg.Chain.CallTimeout == 0 {
		cfg.Chain.CallTimeout = 10 * time.Second
	}
	if cfg.Chain.ConfirmTimeout == 0 {
		cfg.Chain.ConfirmTimeout = 2 * time.Minute
	}
	if cfg.Providers.FetchTimeout == 0 {
		cfg.Providers.FetchTimeout = 10 * time.Second
	}
	if cfg.Discovery.IntervalMs == 0 {
		cfg.Discovery.IntervalMs = 15000
	}
	if cfg.Discovery.PageLimit == 0 {
		cfg.Discovery.PageLimit = 50
	}
	if cfg.Discovery.SortBy == "" {
		cfg.Discovery.SortBy = "createdAt"
	}
	if cfg.Discovery.SortOrder == "" {
		cfg.Discovery.SortOrder = "desc"
	}
	if cfg.Discovery.MaxTrackedPools == 0 {
		cfg.Discovery.MaxTrackedPools = 500
	}
	if cfg.Proxy.GasLimit == 0 {
		cfg.Proxy.GasLimit = 1_500_000
	}
	if cfg.Proxy.MaxGasGwei == 0 {
		cfg.Proxy.MaxGasGwei = 30
	}
}

// Validate checks configuration invariants that defaults cannot repair.
func (c *Config) Validate() error {
	switch c.General.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log_format %q (want json|text)", c.General.LogFormat)
	}

	switch c.Discovery.SortBy {
	case "marketCap", "volume", "holderCount", "createdAt":
	default:
		return fmt.Errorf("invalid discovery.sort_by %q", c.Discovery.SortBy)
	}

	switch c.Discovery.SortOrder {
	case "asc", "desc":
	default:
		return fmt.Errorf("invalid discovery.sort_order %q", c.Discovery.SortOrder)
	}

	if c.Chain.WrappedNative != "" && !strings.HasPrefix(c.Chain.WrappedNative, "0x") {
		return fmt.Errorf("chain.wrapped_native must be a 0x address, got %q", c.Chain.WrappedNative)
	}
	if c.Chain.FactoryAddress != "" && !strings.HasPrefix(c.Chain.FactoryAddress, "0x") {
		return fmt.Errorf("chain.factory_address must be a 0x address, got %q", c.Chain.FactoryAddress)
	}

	return nil
}
