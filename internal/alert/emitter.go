package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/talon-trading/talon/internal/market"
	"github.com/talon-trading/talon/internal/sniper"
	"github.com/talon-trading/talon/internal/storage"
)

// Emitter builds alerts, persists them, and fans them out to every
// configured notifier. Persistence happens before delivery so a flaky
// notifier can never lose the audit record.
type Emitter struct {
	store     storage.AlertStore
	notifiers []Notifier
}

func NewEmitter(store storage.AlertStore, notifiers ...Notifier) *Emitter {
	return &Emitter{store: store, notifiers: notifiers}
}

// PoolMatch emits an alert for a pool that passed a user's criteria. The
// metadata snapshot captures both sides of the match: the pool as evaluated
// and the config thresholds it cleared.
func (e *Emitter) PoolMatch(ctx context.Context, pool market.Pool, cfg sniper.Config) {
	a := &storage.Alert{
		ID:            uuid.NewString(),
		Type:          TypePoolMatch,
		Severity:      SeverityInfo,
		OwnerIdentity: cfg.OwnerIdentity,
		Message: fmt.Sprintf("pool match: %s (%s) on %s/%s",
			pool.BaseToken.Symbol, pool.BaseToken.Address, pool.Chain, pool.Exchange),
		Metadata: map[string]any{
			"config_id":      cfg.ID,
			"chain":          pool.Chain,
			"exchange":       pool.Exchange,
			"pair_address":   pool.PairAddress,
			"base_token":     pool.BaseToken.Address,
			"base_symbol":    pool.BaseToken.Symbol,
			"liquidity_usd":  pool.LiquidityUSD.String(),
			"market_cap_usd": pool.MarketCapUSD.String(),
			"volume_usd":     pool.VolumeUSD.String(),
			"holder_count":   pool.HolderCount,
			"buy_tax_pct":    pool.BuyTaxPct.String(),
			"sell_tax_pct":   pool.SellTaxPct.String(),
			"synthetic":      pool.Synthetic,
			"source":         pool.Source,
			"min_liquidity":  cfg.MinLiquidity.String(),
			"min_market_cap": cfg.MinMarketCap.String(),
			"max_market_cap": cfg.MaxMarketCap.String(),
			"auto_trade":     cfg.AutoTrade,
		},
		CreatedAt: time.Now(),
	}
	e.emit(ctx, a)
}

// TradeTerminal emits an alert for a trade that reached a terminal state.
func (e *Emitter) TradeTerminal(ctx context.Context, identity string, trade *storage.ProxyTrade) {
	typ := TypeTradeExecuted
	sev := SeverityInfo
	msg := fmt.Sprintf("trade executed: %s -> %s amount=%s", trade.TokenIn, trade.TokenOut, trade.AmountIn.String())
	if trade.Status == storage.TradeFailed {
		typ = TypeTradeFailed
		sev = SeverityWarning
		msg = fmt.Sprintf("trade failed: %s -> %s: %s", trade.TokenIn, trade.TokenOut, trade.FailReason)
	}

	a := &storage.Alert{
		ID:            uuid.NewString(),
		Type:          typ,
		Severity:      sev,
		OwnerIdentity: identity,
		Message:       msg,
		Metadata: map[string]any{
			"trade_id":       trade.TradeID,
			"user_address":   trade.UserAddress,
			"proxy_address":  trade.ProxyAddress,
			"token_in":       trade.TokenIn,
			"token_out":      trade.TokenOut,
			"amount_in":      trade.AmountIn.String(),
			"min_amount_out": trade.MinAmountOut.String(),
			"tx_hash":        trade.TxHash,
			"status":         string(trade.Status),
			"fail_reason":    trade.FailReason,
		},
		CreatedAt: time.Now(),
	}
	e.emit(ctx, a)
}

func (e *Emitter) emit(ctx context.Context, a *storage.Alert) {
	if err := e.store.Insert(ctx, a); err != nil {
		log.Error().Str("alert_id", a.ID).Err(err).Msg("failed to persist alert")
	}

	for _, n := range e.notifiers {
		if err := n.Notify(ctx, a); err != nil {
			log.Warn().
				Str("alert_id", a.ID).
				Str("notifier", n.Name()).
				Err(err).
				Msg("alert delivery failed")
		}
	}
}
