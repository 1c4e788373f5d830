package sniper

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is a user-defined set of thresholds that decides whether a
// discovered pool triggers an alert or an automated trade. Configs are
// long-lived and owned by the collaborator layer; the core only reads them.
type Config struct {
	ID            string `json:"id" yaml:"id"`
	OwnerIdentity string `json:"owner_identity" yaml:"owner_identity"` // chat/user identity the config belongs to
	UserAddress   string `json:"user_address" yaml:"user_address"`     // on-chain address for automated trades

	TargetChains []string `json:"target_chains" yaml:"target_chains"`
	TargetDexs   []string `json:"target_dexs" yaml:"target_dexs"`

	MinLiquidity decimal.Decimal `json:"min_liquidity" yaml:"min_liquidity"`
	MinMarketCap decimal.Decimal `json:"min_market_cap" yaml:"min_market_cap"`
	MaxMarketCap decimal.Decimal `json:"max_market_cap" yaml:"max_market_cap"` // zero = unbounded
	MaxBuyTax    decimal.Decimal `json:"max_buy_tax" yaml:"max_buy_tax"`       // zero = no limit
	MaxSellTax   decimal.Decimal `json:"max_sell_tax" yaml:"max_sell_tax"`     // zero = no limit

	HoneypotCheck bool `json:"honeypot_check" yaml:"honeypot_check"`
	LockCheck     bool `json:"lock_check" yaml:"lock_check"`

	Blacklist []string `json:"blacklist" yaml:"blacklist"`
	Whitelist []string `json:"whitelist" yaml:"whitelist"` // non-empty = allowlist mode

	// AutoTrade routes matches into the trade executor instead of
	// alert-only delivery.
	AutoTrade   bool            `json:"auto_trade" yaml:"auto_trade"`
	TradeAmount decimal.Decimal `json:"trade_amount" yaml:"trade_amount"` // native units to spend per snipe

	IsActive  bool      `json:"is_active" yaml:"is_active"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// containsFold reports whether list contains s, case-insensitively.
func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
