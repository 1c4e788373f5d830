package sniper

import "github.com/talon-trading/talon/internal/market"

// ---------------------------------------------------------------------------
// Criteria Matcher — pure pool-vs-config predicate chain
// ---------------------------------------------------------------------------

// Predicate names, surfaced by Explain for alert metadata.
const (
	PredChain     = "target_chain"
	PredExchange  = "target_dex"
	PredLiquidity = "min_liquidity"
	PredMarketCap = "market_cap_range"
	PredTax       = "max_tax"
	PredHoneypot  = "honeypot_check"
	PredLock      = "lock_check"
	PredBlacklist = "blacklist"
	PredWhitelist = "whitelist"

	// PredPass means every predicate held.
	PredPass = "pass"
)

// Match reports whether the pool qualifies under the config. It is a pure
// function: no I/O, no state, identical inputs always produce the same
// answer. Predicates evaluate in a fixed order and short-circuit on the
// first failure, so a pool on the wrong chain is rejected before any of its
// other fields are read.
func Match(pool market.Pool, cfg Config) bool {
	return Explain(pool, cfg) == PredPass
}

// Explain runs the predicate chain and returns the name of the first failed
// predicate, or PredPass. Callers use it to annotate alerts with the reason
// a pool was filtered.
func Explain(pool market.Pool, cfg Config) string {
	// 1. Chain allowlist. Empty means any chain, matching the zero-value
	// convention the numeric thresholds follow.
	if len(cfg.TargetChains) > 0 && !containsFold(cfg.TargetChains, pool.Chain) {
		return PredChain
	}

	// 2. Exchange allowlist. Empty means any DEX, which is what lets
	// chain-derived provisional pools (exchange "factory") reach configs
	// that did not pin a venue.
	if len(cfg.TargetDexs) > 0 && !containsFold(cfg.TargetDexs, pool.Exchange) {
		return PredExchange
	}

	// 3. Liquidity floor.
	if pool.LiquidityUSD.LessThan(cfg.MinLiquidity) {
		return PredLiquidity
	}

	// 4. Market cap window. A zero max means unbounded.
	if pool.MarketCapUSD.LessThan(cfg.MinMarketCap) {
		return PredMarketCap
	}
	if cfg.MaxMarketCap.IsPositive() && pool.MarketCapUSD.GreaterThan(cfg.MaxMarketCap) {
		return PredMarketCap
	}

	// 5. Tax ceilings. A zero ceiling means the user set no limit.
	if cfg.MaxBuyTax.IsPositive() && pool.BuyTaxPct.GreaterThan(cfg.MaxBuyTax) {
		return PredTax
	}
	if cfg.MaxSellTax.IsPositive() && pool.SellTaxPct.GreaterThan(cfg.MaxSellTax) {
		return PredTax
	}

	// 6. Honeypot verdict.
	if cfg.HoneypotCheck && pool.IsHoneypot {
		return PredHoneypot
	}

	// 7. Liquidity lock.
	if cfg.LockCheck && !pool.Lock.IsLocked {
		return PredLock
	}

	// 8. Token blacklist.
	if containsFold(cfg.Blacklist, pool.BaseToken.Address) {
		return PredBlacklist
	}

	// 9. Whitelist, when configured, restricts to listed tokens only.
	if len(cfg.Whitelist) > 0 && !containsFold(cfg.Whitelist, pool.BaseToken.Address) {
		return PredWhitelist
	}

	return PredPass
}
