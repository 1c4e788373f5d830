package pipeline

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/talon-trading/talon/internal/market"
	"github.com/talon-trading/talon/internal/observability"
	"github.com/talon-trading/talon/internal/proxy"
	"github.com/talon-trading/talon/internal/storage"
)

// ProxyStatus is the full view of a user's proxy wallet: the wallet row,
// current token approvals, and recent terminal trades.
type ProxyStatus struct {
	Wallet       *storage.ProxyWallet    `json:"wallet"`
	Approvals    []storage.ProxyApproval `json:"approvals"`
	RecentTrades []storage.ProxyTrade    `json:"recent_trades"`
}

// recentTradeLimit caps the trade history returned by GetProxyStatus.
const recentTradeLimit = 20

// GetRankedPools fetches the current provider view and returns one
// canonical ranked page.
func (e *Engine) GetRankedPools(ctx context.Context, q market.Query) market.RankedPage {
	pools := e.deps.Aggregator.Fetch(ctx, q)
	return market.Canonicalize(pools, q)
}

// DeployProxyWallet deploys (or returns the existing) proxy wallet for the
// identity pair. Refused in dry-run mode unless the wallet already exists.
func (e *Engine) DeployProxyWallet(ctx context.Context, userAddress, identity string, params proxy.DeployParams) (*storage.ProxyWallet, error) {
	existing, err := e.deps.Wallets.Lookup(ctx, userAddress, identity)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	if e.cfg.General.DryRun {
		return nil, ErrDryRun
	}

	wallet, err := e.deps.Wallets.Deploy(ctx, userAddress, identity, params)
	if err != nil {
		return nil, err
	}
	e.deps.Metrics.GetCounter("talon_wallets_deployed_total").Inc()
	return wallet, nil
}

// ExecuteTrade runs a user-requested trade through their proxy wallet.
func (e *Engine) ExecuteTrade(ctx context.Context, userAddress, identity string, req proxy.TradeRequest) (string, error) {
	if e.cfg.General.DryRun {
		return "", ErrDryRun
	}
	return e.deps.Executor.ExecuteTrade(ctx, userAddress, identity, req)
}

// UpdateApproval sets a token spending approval on the user's proxy wallet.
func (e *Engine) UpdateApproval(ctx context.Context, userAddress, identity, tokenAddress string, amount decimal.Decimal) (string, error) {
	if e.cfg.General.DryRun {
		return "", ErrDryRun
	}
	return e.deps.Executor.UpdateApproval(ctx, userAddress, identity, tokenAddress, amount)
}

// GetProxyStatus returns the wallet, approvals, and recent trades for the
// identity pair. storage.ErrNotFound if no wallet exists.
func (e *Engine) GetProxyStatus(ctx context.Context, userAddress, identity string) (*ProxyStatus, error) {
	wallet, err := e.deps.Wallets.Lookup(ctx, userAddress, identity)
	if err != nil {
		return nil, err
	}

	approvals, err := e.deps.ApprovalStore.ListByUser(ctx, userAddress)
	if err != nil {
		return nil, err
	}

	trades, err := e.deps.TradeStore.ListByUser(ctx, userAddress, recentTradeLimit)
	if err != nil {
		return nil, err
	}

	return &ProxyStatus{
		Wallet:       wallet,
		Approvals:    approvals,
		RecentTrades: trades,
	}, nil
}

// Metrics exposes the engine's registry for exporters and stats dumps.
func (e *Engine) Metrics() *observability.Registry {
	return e.deps.Metrics
}

// Stats returns a snapshot of every registered metric.
func (e *Engine) Stats() []observability.MetricEntry {
	return e.deps.Metrics.AllMetrics()
}
