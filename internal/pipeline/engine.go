// Package pipeline runs the discovery loop: fetch market data, fold in
// on-chain pair creation events, evaluate every new pool against active
// sniper configs, and route matches into alerts and automated trades.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/talon-trading/talon/internal/alert"
	"github.com/talon-trading/talon/internal/config"
	"github.com/talon-trading/talon/internal/evm"
	"github.com/talon-trading/talon/internal/market"
	"github.com/talon-trading/talon/internal/observability"
	"github.com/talon-trading/talon/internal/proxy"
	"github.com/talon-trading/talon/internal/sniper"
	"github.com/talon-trading/talon/internal/storage"
)

// ErrDryRun is returned by chain-writing operations while dry-run mode is
// on. Reads and matching keep working; nothing is broadcast.
var ErrDryRun = errors.New("pipeline: dry-run mode, chain writes disabled")

// pendingCap bounds the buffer of event-derived pools between cycles.
const pendingCap = 256

// autoTradeDeadline is the swap deadline attached to automated trades.
const autoTradeDeadline = 5 * time.Minute

// Deps carries the collaborators the engine wires together.
type Deps struct {
	Aggregator *market.Aggregator
	Configs    storage.SniperConfigStore
	Emitter    *alert.Emitter
	Wallets    *proxy.Manager
	Executor   *proxy.Executor

	TradeStore    storage.TradeStore
	ApprovalStore storage.ApprovalStore

	// EventSource is optional. Nil disables the on-chain creation feed and
	// leaves discovery purely provider-driven.
	EventSource evm.Source

	Metrics *observability.Registry
}

// Engine is the long-running core. One discovery cycle runs at a time:
// cycles never overlap, a slow cycle delays the next tick instead of
// stacking goroutines.
type Engine struct {
	cfg  *config.Config
	deps Deps

	seen *seenWindow

	pendingMu sync.Mutex
	pending   []market.Pool

	watcher     *evm.PairWatcher
	unsubscribe func()

	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewEngine(cfg *config.Config, deps Deps) *Engine {
	if deps.Metrics == nil {
		deps.Metrics = observability.TalonMetrics()
	}

	e := &Engine{
		cfg:  cfg,
		deps: deps,
		seen: newSeenWindow(cfg.Discovery.MaxTrackedPools),
		done: make(chan struct{}),
	}

	deps.Executor.OnTerminal(e.onTradeTerminal)
	deps.Aggregator.OnProviderError(func(string, error) {
		deps.Metrics.GetCounter("talon_provider_errors_total").Inc()
	})

	if deps.EventSource != nil {
		e.watcher = evm.NewPairWatcher(
			deps.EventSource,
			common.HexToAddress(cfg.Chain.FactoryAddress),
			common.HexToAddress(cfg.Chain.WrappedNative),
			e.onPairCreated,
			e.onWatchError,
		)
	}

	return e
}

// Start launches the event subscription and the discovery loop.
func (e *Engine) Start(ctx context.Context) error {
	ctx, e.cancel = context.WithCancel(ctx)

	if e.watcher != nil {
		unsubscribe, err := e.watcher.Start()
		if err != nil {
			e.cancel()
			return err
		}
		e.unsubscribe = unsubscribe
		e.deps.Metrics.GetGauge("talon_ws_connected").Set(1)
	}

	e.started = true
	go e.run(ctx)

	log.Info().
		Str("chain", e.cfg.Chain.Name).
		Int("interval_ms", e.cfg.Discovery.IntervalMs).
		Bool("dry_run", e.cfg.General.DryRun).
		Bool("event_feed", e.watcher != nil).
		Msg("pipeline started")

	return nil
}

// Stop shuts the engine down and waits for the in-flight cycle to finish.
// Safe to call when Start failed or was never called.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.deps.Metrics.GetGauge("talon_ws_connected").Set(0)
	}
	if !e.started {
		return
	}
	<-e.done
	log.Info().Msg("pipeline stopped")
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)

	interval := time.Duration(e.cfg.Discovery.IntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First cycle immediately, then on the ticker.
	e.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.runCycle(ctx)
		}
	}
}

// runCycle executes one discovery pass synchronously.
func (e *Engine) runCycle(ctx context.Context) {
	start := time.Now()

	q := market.Query{
		Chain:     e.cfg.Chain.Name,
		SortBy:    e.cfg.Discovery.SortBy,
		SortOrder: e.cfg.Discovery.SortOrder,
		Limit:     e.cfg.Discovery.PageLimit,
	}

	pools := e.deps.Aggregator.Fetch(ctx, q)
	e.deps.Metrics.GetCounter("talon_pools_fetched_total").Add(float64(len(pools)))

	synthetic := 0
	for _, p := range pools {
		if p.Synthetic {
			synthetic++
		}
	}
	if synthetic > 0 {
		e.deps.Metrics.GetCounter("talon_pools_synthetic_total").Add(float64(synthetic))
	}

	pools = append(pools, e.drainPending()...)
	pools = market.Dedup(pools)

	configs, err := e.deps.Configs.ListActive(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list active configs")
		return
	}
	e.deps.Metrics.GetGauge("talon_active_configs").Set(float64(len(configs)))

	matched := 0
	for _, pool := range pools {
		if !e.seen.MarkSeen(pool.DedupKey()) {
			continue
		}
		for _, cfg := range configs {
			if verdict := sniper.Explain(pool, cfg); verdict != sniper.PredPass {
				log.Trace().
					Str("config_id", cfg.ID).
					Str("pair", pool.PairAddress).
					Str("failed", verdict).
					Msg("pool rejected")
				continue
			}
			matched++
			e.deps.Metrics.GetCounter("talon_matches_total").Inc()
			e.deps.Emitter.PoolMatch(ctx, pool, cfg)
			e.deps.Metrics.GetCounter("talon_alerts_total").Inc()

			if cfg.AutoTrade {
				e.autoTrade(ctx, pool, cfg)
			}
		}
	}

	e.deps.Metrics.GetCounter("talon_discovery_cycles_total").Inc()
	e.deps.Metrics.GetGauge("talon_tracked_pools").Set(float64(e.seen.Len()))
	e.deps.Metrics.GetHistogram("talon_discovery_cycle_ms").Observe(float64(time.Since(start).Milliseconds()))

	log.Debug().
		Int("pools", len(pools)).
		Int("configs", len(configs)).
		Int("matches", matched).
		Dur("elapsed", time.Since(start)).
		Msg("discovery cycle complete")
}

// autoTrade buys the matched pool's base token through the owner's proxy
// wallet. Synthetic fallback records are never traded: they describe no real
// pool.
func (e *Engine) autoTrade(ctx context.Context, pool market.Pool, cfg sniper.Config) {
	if pool.Synthetic {
		log.Debug().
			Str("config_id", cfg.ID).
			Str("token", pool.BaseToken.Address).
			Msg("skipping auto-trade on synthetic record")
		return
	}
	if e.cfg.General.DryRun {
		log.Info().
			Str("config_id", cfg.ID).
			Str("token", pool.BaseToken.Address).
			Str("amount", cfg.TradeAmount.String()).
			Msg("dry-run: auto-trade suppressed")
		return
	}

	req := proxy.TradeRequest{
		TokenIn:      e.cfg.Chain.WrappedNative,
		TokenOut:     pool.BaseToken.Address,
		AmountIn:     cfg.TradeAmount,
		MinAmountOut: decimal.Zero,
		Deadline:     time.Now().Add(autoTradeDeadline),
	}

	tradeStart := time.Now()
	tradeID, err := e.deps.Executor.ExecuteTrade(ctx, cfg.UserAddress, cfg.OwnerIdentity, req)
	e.deps.Metrics.GetHistogram("talon_trade_latency_ms").Observe(float64(time.Since(tradeStart).Milliseconds()))
	if err != nil {
		log.Warn().
			Str("config_id", cfg.ID).
			Str("trade_id", tradeID).
			Str("token", pool.BaseToken.Address).
			Err(err).
			Msg("auto-trade failed")
		return
	}

	log.Info().
		Str("config_id", cfg.ID).
		Str("trade_id", tradeID).
		Str("token", pool.BaseToken.Address).
		Msg("auto-trade executed")
}

// onTradeTerminal fans terminal trade outcomes into alerts and metrics.
func (e *Engine) onTradeTerminal(identity string, trade *storage.ProxyTrade) {
	if trade.Status == storage.TradeExecuted {
		e.deps.Metrics.GetCounter("talon_trades_executed_total").Inc()
	} else {
		e.deps.Metrics.GetCounter("talon_trades_failed_total").Inc()
	}
	e.deps.Emitter.TradeTerminal(context.Background(), identity, trade)
	e.deps.Metrics.GetCounter("talon_alerts_total").Inc()
}

// onPairCreated buffers an on-chain creation event as a provisional pool
// record for the next cycle. Providers usually have no data for a pair this
// fresh; the record carries the addresses and lets configs with no market
// thresholds react immediately.
func (e *Engine) onPairCreated(ev evm.PairCreated) {
	pool := market.Pool{
		Chain:         e.cfg.Chain.Name,
		Exchange:      "factory",
		PairAddress:   ev.Pair.Hex(),
		BaseToken:     market.Token{Address: ev.TokenAddress.Hex()},
		CreatedAtUnix: time.Now().Unix(),
		Source:        "chain",
	}

	e.pendingMu.Lock()
	if len(e.pending) < pendingCap {
		e.pending = append(e.pending, pool)
	}
	e.pendingMu.Unlock()

	e.deps.Metrics.GetCounter("talon_pair_events_total").Inc()

	log.Info().
		Str("pair", ev.Pair.Hex()).
		Str("token", ev.TokenAddress.Hex()).
		Uint64("block", ev.BlockNumber).
		Msg("new pair from chain")
}

func (e *Engine) onWatchError(err error) {
	log.Warn().Err(err).Msg("pair event feed error")
}

func (e *Engine) drainPending() []market.Pool {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	out := e.pending
	e.pending = nil
	return out
}
