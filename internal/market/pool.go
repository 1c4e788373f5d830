package market

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Canonical pool model — the single shape every data source is mapped into
// ---------------------------------------------------------------------------

// Token describes one side of a liquidity pair.
type Token struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
}

// LockInfo describes the liquidity lock status of a pool.
type LockInfo struct {
	IsLocked      bool            `json:"is_locked"`
	PercentLocked decimal.Decimal `json:"percent_locked"`
}

// Pool is the canonical liquidity pool record. On-chain creation events and
// every market-data provider are normalized into this shape before ranking.
type Pool struct {
	Chain        string          `json:"chain"`    // bsc|ethereum|base|...
	Exchange     string          `json:"exchange"` // pancakeswap|uniswap|...
	PairAddress  string          `json:"pair_address"`
	BaseToken    Token           `json:"base_token"`
	QuoteToken   Token           `json:"quote_token"`
	LiquidityUSD decimal.Decimal `json:"liquidity_usd"`
	VolumeUSD    decimal.Decimal `json:"volume_usd"`
	MarketCapUSD decimal.Decimal `json:"market_cap_usd"`
	HolderCount  int             `json:"holder_count"`
	BuyTaxPct    decimal.Decimal `json:"buy_tax_pct"`
	SellTaxPct   decimal.Decimal `json:"sell_tax_pct"`
	IsHoneypot   bool            `json:"is_honeypot"`
	Lock         LockInfo        `json:"lock"`
	CreatedAtUnix int64          `json:"created_at_unix"`

	// Synthetic marks placeholder records generated when every provider
	// failed. Downstream consumers must never mistake them for live data.
	Synthetic bool `json:"synthetic"`

	// Source names the provider or event stream the record came from.
	Source string `json:"source,omitempty"`
}

// DedupKey is the identity used when merging records from multiple sources:
// the lowercased base token address.
func (p Pool) DedupKey() string {
	return strings.ToLower(p.BaseToken.Address)
}

// Query selects and orders a ranking batch.
type Query struct {
	Chain     string `json:"chain,omitempty"`
	SortBy    string `json:"sort_by"`    // marketCap|volume|holderCount|createdAt
	SortOrder string `json:"sort_order"` // asc|desc
	Page      int    `json:"page"`       // 1-based
	Limit     int    `json:"limit"`
}

// Normalize fills zero-valued query fields with ranking defaults.
func (q Query) Normalize() Query {
	if q.SortBy == "" {
		q.SortBy = SortByCreatedAt
	}
	if q.SortOrder == "" {
		q.SortOrder = SortOrderDesc
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 50
	}
	return q
}

// RankedPage is one page of canonicalized, ranked pools.
type RankedPage struct {
	Pools   []Pool `json:"pools"`
	Total   int    `json:"total"`
	Page    int    `json:"page"`
	Limit   int    `json:"limit"`
	HasMore bool   `json:"has_more"`
}

// Sort keys and orders accepted by Canonicalize.
const (
	SortByMarketCap   = "marketCap"
	SortByVolume      = "volume"
	SortByHolderCount = "holderCount"
	SortByCreatedAt   = "createdAt"

	SortOrderAsc  = "asc"
	SortOrderDesc = "desc"
)
