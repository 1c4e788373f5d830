package sniper

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/talon-trading/talon/internal/market"
)

func basePool() market.Pool {
	return market.Pool{
		Chain:        "bsc",
		Exchange:     "pancakeswap",
		BaseToken:    market.Token{Address: "0xtoken", Symbol: "FOO"},
		LiquidityUSD: decimal.NewFromInt(50_000),
		MarketCapUSD: decimal.NewFromInt(2_000_000),
		BuyTaxPct:    decimal.NewFromInt(2),
		SellTaxPct:   decimal.NewFromInt(2),
		IsHoneypot:   false,
		Lock:         market.LockInfo{IsLocked: true},
	}
}

func baseConfig() Config {
	return Config{
		ID:            "cfg-1",
		OwnerIdentity: "user-1",
		TargetChains:  []string{"bsc"},
		TargetDexs:    []string{"pancakeswap"},
		MinLiquidity:  decimal.NewFromInt(10_000),
		MinMarketCap:  decimal.NewFromInt(100_000),
		MaxMarketCap:  decimal.NewFromInt(10_000_000),
		MaxBuyTax:     decimal.NewFromInt(10),
		MaxSellTax:    decimal.NewFromInt(10),
		HoneypotCheck: true,
		IsActive:      true,
	}
}

func TestMatch_QualifyingPool(t *testing.T) {
	assert.True(t, Match(basePool(), baseConfig()))
	assert.Equal(t, PredPass, Explain(basePool(), baseConfig()))
}

func TestMatch_HoneypotRejected(t *testing.T) {
	pool := basePool()
	pool.IsHoneypot = true

	assert.False(t, Match(pool, baseConfig()))
	assert.Equal(t, PredHoneypot, Explain(pool, baseConfig()))
}

func TestMatch_ReferentiallyTransparent(t *testing.T) {
	pool := basePool()
	cfg := baseConfig()

	first := Match(pool, cfg)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Match(pool, cfg))
	}
}

func TestMatch_WrongChainShortCircuits(t *testing.T) {
	// Everything beyond the chain is malformed; the chain predicate must
	// reject before any other field is consulted.
	pool := market.Pool{Chain: "solana"}

	assert.False(t, Match(pool, baseConfig()))
	assert.Equal(t, PredChain, Explain(pool, baseConfig()))
}

func TestMatch_PredicateOrder(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *market.Pool, c *Config)
		want   string
	}{
		{"wrong dex", func(p *market.Pool, _ *Config) { p.Exchange = "sushiswap" }, PredExchange},
		{"low liquidity", func(p *market.Pool, _ *Config) { p.LiquidityUSD = decimal.NewFromInt(500) }, PredLiquidity},
		{"below cap floor", func(p *market.Pool, _ *Config) { p.MarketCapUSD = decimal.NewFromInt(50_000) }, PredMarketCap},
		{"above cap ceiling", func(p *market.Pool, _ *Config) { p.MarketCapUSD = decimal.NewFromInt(20_000_000) }, PredMarketCap},
		{"buy tax too high", func(p *market.Pool, _ *Config) { p.BuyTaxPct = decimal.NewFromInt(25) }, PredTax},
		{"sell tax too high", func(p *market.Pool, _ *Config) { p.SellTaxPct = decimal.NewFromInt(25) }, PredTax},
		{"lock required", func(p *market.Pool, c *Config) { c.LockCheck = true; p.Lock.IsLocked = false }, PredLock},
		{"blacklisted", func(_ *market.Pool, c *Config) { c.Blacklist = []string{"0xTOKEN"} }, PredBlacklist},
		{"not whitelisted", func(_ *market.Pool, c *Config) { c.Whitelist = []string{"0xother"} }, PredWhitelist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := basePool()
			cfg := baseConfig()
			tt.mutate(&pool, &cfg)

			assert.False(t, Match(pool, cfg))
			assert.Equal(t, tt.want, Explain(pool, cfg))
		})
	}
}

func TestMatch_EmptyAllowlistsAreUnrestricted(t *testing.T) {
	// A config that pins no chains or venues accepts any of them, the same
	// way a zero numeric threshold disables its bound.
	pool := basePool()
	pool.Chain = "base"
	pool.Exchange = "factory" // chain-derived provisional records carry this

	cfg := baseConfig()
	cfg.TargetChains = nil
	cfg.TargetDexs = nil

	assert.True(t, Match(pool, cfg))
	assert.Equal(t, PredPass, Explain(pool, cfg))
}

func TestMatch_WhitelistAdmits(t *testing.T) {
	cfg := baseConfig()
	cfg.Whitelist = []string{"0xTOKEN"} // case-insensitive

	assert.True(t, Match(basePool(), cfg))
}

func TestMatch_ZeroCeilingsMeanUnbounded(t *testing.T) {
	pool := basePool()
	pool.MarketCapUSD = decimal.NewFromInt(900_000_000)
	pool.BuyTaxPct = decimal.NewFromInt(40)

	cfg := baseConfig()
	cfg.MaxMarketCap = decimal.Zero
	cfg.MaxBuyTax = decimal.Zero
	cfg.MaxSellTax = decimal.Zero

	assert.True(t, Match(pool, cfg))
}

func TestMatch_HoneypotCheckDisabled(t *testing.T) {
	pool := basePool()
	pool.IsHoneypot = true

	cfg := baseConfig()
	cfg.HoneypotCheck = false

	assert.True(t, Match(pool, cfg))
}
