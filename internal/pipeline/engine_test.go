package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talon-trading/talon/internal/alert"
	"github.com/talon-trading/talon/internal/config"
	"github.com/talon-trading/talon/internal/evm"
	"github.com/talon-trading/talon/internal/market"
	"github.com/talon-trading/talon/internal/observability"
	"github.com/talon-trading/talon/internal/proxy"
	"github.com/talon-trading/talon/internal/sniper"
	"github.com/talon-trading/talon/internal/storage"
	"github.com/talon-trading/talon/internal/storage/memory"
)

const (
	wrappedNative = "0x00000000000000000000000000000000000000aa"
	factoryAddr   = "0x00000000000000000000000000000000000000bb"
)

type testHarness struct {
	engine   *Engine
	chain    *evm.StubClient
	provider *market.StubProvider
	source   *evm.StubSource
	configs  *memory.ConfigStore
	alerts   *memory.AlertStore
	notifier *alert.StubNotifier
	trades   *memory.TradeStore
	wallets  *memory.WalletStore
}

func testConfig() *config.Config {
	return &config.Config{
		General: config.GeneralConfig{InstanceID: "test", LogLevel: "disabled"},
		Chain: config.ChainConfig{
			Name:           "bsc",
			ChainID:        56,
			FactoryAddress: factoryAddr,
			WrappedNative:  wrappedNative,
		},
		Discovery: config.DiscoveryConfig{
			IntervalMs:      10_000,
			PageLimit:       50,
			SortBy:          market.SortByCreatedAt,
			SortOrder:       market.SortOrderDesc,
			MaxTrackedPools: 100,
		},
		Proxy: config.ProxyConfig{FactoryAddress: factoryAddr},
	}
}

func goodPool(addr string) market.Pool {
	return market.Pool{
		Chain:        "bsc",
		Exchange:     "pancakeswap",
		PairAddress:  "0xpair-" + addr,
		BaseToken:    market.Token{Address: addr, Symbol: "MEME"},
		QuoteToken:   market.Token{Address: wrappedNative, Symbol: "WBNB"},
		LiquidityUSD: decimal.NewFromInt(50_000),
		MarketCapUSD: decimal.NewFromInt(2_000_000),
		HolderCount:  120,
		Source:       "stub",
	}
}

func activeConfig(autoTrade bool) sniper.Config {
	return sniper.Config{
		ID:            "cfg-1",
		OwnerIdentity: "tg:1",
		UserAddress:   "0x1111111111111111111111111111111111111111",
		TargetChains:  []string{"bsc"},
		MinLiquidity:  decimal.NewFromInt(10_000),
		AutoTrade:     autoTrade,
		TradeAmount:   decimal.NewFromFloat(0.1),
		IsActive:      true,
	}
}

func newHarness(t *testing.T, cfg *config.Config, pools []market.Pool) *testHarness {
	t.Helper()

	chain := evm.NewStubClient()
	provider := market.NewStubProvider("stub", pools)
	source := evm.NewStubSource()

	wallets := memory.NewWalletStore()
	trades := memory.NewTradeStore()
	approvals := memory.NewApprovalStore()
	configs := memory.NewConfigStore()
	alertStore := memory.NewAlertStore()
	notifier := alert.NewStubNotifier()

	emitter := alert.NewEmitter(alertStore, notifier)
	manager := proxy.NewManager(chain, wallets, cfg.Proxy.FactoryAddress)
	executor := proxy.NewExecutor(chain, wallets, trades, approvals)

	engine := NewEngine(cfg, Deps{
		Aggregator:    market.NewAggregator(market.AggregatorConfig{FetchTimeout: time.Second}, provider),
		Configs:       configs,
		Emitter:       emitter,
		Wallets:       manager,
		Executor:      executor,
		TradeStore:    trades,
		ApprovalStore: approvals,
		EventSource:   source,
		Metrics:       observability.TalonMetrics(),
	})

	return &testHarness{
		engine:   engine,
		chain:    chain,
		provider: provider,
		source:   source,
		configs:  configs,
		alerts:   alertStore,
		notifier: notifier,
		trades:   trades,
		wallets:  wallets,
	}
}

func (h *testHarness) deployWallet(t *testing.T, user, identity string) {
	t.Helper()
	require.NoError(t, h.wallets.Insert(context.Background(), &storage.ProxyWallet{
		UserAddress:   user,
		OwnerIdentity: identity,
		ProxyAddress:  evm.DeterministicAddress(user).Hex(),
		IsActive:      true,
	}))
}

// ---------------------------------------------------------------------------
// Discovery cycle
// ---------------------------------------------------------------------------

func TestCycleEmitsAlertOnMatch(t *testing.T) {
	h := newHarness(t, testConfig(), []market.Pool{goodPool("0xaaa1")})
	h.configs.Put(activeConfig(false))

	h.engine.runCycle(context.Background())

	delivered := h.notifier.Delivered()
	require.Len(t, delivered, 1)
	assert.Equal(t, alert.TypePoolMatch, delivered[0].Type)
	assert.Equal(t, "tg:1", delivered[0].OwnerIdentity)

	// Alert-only config: no chain writes.
	assert.Equal(t, 0, h.chain.SentCount())
}

func TestCycleMatchesPoolOnlyOnce(t *testing.T) {
	h := newHarness(t, testConfig(), []market.Pool{goodPool("0xaaa1")})
	h.configs.Put(activeConfig(false))

	ctx := context.Background()
	h.engine.runCycle(ctx)
	h.engine.runCycle(ctx)
	h.engine.runCycle(ctx)

	assert.Len(t, h.notifier.Delivered(), 1)
}

func TestSeenWindowEvictionReopensPool(t *testing.T) {
	cfg := testConfig()
	cfg.Discovery.MaxTrackedPools = 1
	h := newHarness(t, cfg, []market.Pool{goodPool("0xaaa1")})
	h.configs.Put(activeConfig(false))

	ctx := context.Background()
	h.engine.runCycle(ctx)
	require.Len(t, h.notifier.Delivered(), 1)

	// Another key evicts the pool from the one-slot window, making it
	// eligible for matching again on the next cycle.
	h.engine.seen.MarkSeen(goodPool("0xbbb2").DedupKey())

	h.engine.runCycle(ctx)
	assert.Len(t, h.notifier.Delivered(), 2)
}

func TestCycleWithNoActiveConfigsEmitsNothing(t *testing.T) {
	h := newHarness(t, testConfig(), []market.Pool{goodPool("0xaaa1")})

	h.engine.runCycle(context.Background())

	assert.Empty(t, h.notifier.Delivered())
}

func TestAutoTradeExecutesThroughProxy(t *testing.T) {
	h := newHarness(t, testConfig(), []market.Pool{goodPool("0xaaa1")})
	cfg := activeConfig(true)
	h.configs.Put(cfg)
	h.deployWallet(t, cfg.UserAddress, cfg.OwnerIdentity)

	h.engine.runCycle(context.Background())

	assert.Equal(t, 1, h.chain.SentCount())
	assert.Equal(t, 1, h.trades.Count())

	// Match alert plus trade-executed alert.
	delivered := h.notifier.Delivered()
	require.Len(t, delivered, 2)
	assert.Equal(t, alert.TypePoolMatch, delivered[0].Type)
	assert.Equal(t, alert.TypeTradeExecuted, delivered[1].Type)
}

func TestAutoTradeSkipsSyntheticPools(t *testing.T) {
	synth := goodPool("0xaaa1")
	synth.Synthetic = true
	h := newHarness(t, testConfig(), []market.Pool{synth})
	cfg := activeConfig(true)
	h.configs.Put(cfg)
	h.deployWallet(t, cfg.UserAddress, cfg.OwnerIdentity)

	h.engine.runCycle(context.Background())

	// Matched and alerted, but never traded.
	require.Len(t, h.notifier.Delivered(), 1)
	assert.Equal(t, 0, h.chain.SentCount())
}

func TestDryRunSuppressesAutoTrade(t *testing.T) {
	cfg := testConfig()
	cfg.General.DryRun = true
	h := newHarness(t, cfg, []market.Pool{goodPool("0xaaa1")})
	sc := activeConfig(true)
	h.configs.Put(sc)
	h.deployWallet(t, sc.UserAddress, sc.OwnerIdentity)

	h.engine.runCycle(context.Background())

	require.Len(t, h.notifier.Delivered(), 1) // match alert still fires
	assert.Equal(t, 0, h.chain.SentCount())
	assert.Equal(t, 0, h.trades.Count())
}

// ---------------------------------------------------------------------------
// Event feed
// ---------------------------------------------------------------------------

func TestPairEventFeedsNextCycle(t *testing.T) {
	// The provider serves an off-chain-filtered pool so the batch is never
	// empty, keeping the synthetic fallback out of the picture.
	otherChain := goodPool("0xeee5")
	otherChain.Chain = "ethereum"
	h := newHarness(t, testConfig(), []market.Pool{otherChain})

	// Config with no market thresholds: reacts to fresh chain-only records.
	sc := activeConfig(false)
	sc.MinLiquidity = decimal.Zero
	h.configs.Put(sc)

	unsubscribe, err := h.engine.watcher.Start()
	require.NoError(t, err)
	defer unsubscribe()

	token := common.HexToAddress("0xccc3")
	pair := common.HexToAddress("0xddd4")
	h.source.Emit([]evm.LogEvent{pairCreatedLog(t, token, pair)})

	// Wait for the handler to buffer the event.
	require.Eventually(t, func() bool {
		h.engine.pendingMu.Lock()
		defer h.engine.pendingMu.Unlock()
		return len(h.engine.pending) == 1
	}, time.Second, 10*time.Millisecond)

	h.engine.runCycle(context.Background())

	delivered := h.notifier.Delivered()
	require.Len(t, delivered, 1)
	assert.Equal(t, token.Hex(), delivered[0].Metadata["base_token"])
	assert.Equal(t, "chain", delivered[0].Metadata["source"])
}

// pairCreatedLog builds a PairCreated log with the wrapped native token as
// token1 so the watcher accepts it.
func pairCreatedLog(t *testing.T, token, pair common.Address) evm.LogEvent {
	t.Helper()

	eventID := common.HexToHash("0x0d3648bd0f6ba80134a33ba9275ac585d9d315f0ad8355cddefde31afa28d0e9")
	data := make([]byte, 64)
	copy(data[12:32], pair.Bytes())

	return evm.LogEvent{
		Address: common.HexToAddress(factoryAddr),
		Topics: []common.Hash{
			eventID,
			common.BytesToHash(token.Bytes()),
			common.BytesToHash(common.HexToAddress(wrappedNative).Bytes()),
		},
		Data:        data,
		BlockNumber: 100,
	}
}

func TestStartStopLifecycle(t *testing.T) {
	h := newHarness(t, testConfig(), []market.Pool{goodPool("0xaaa1")})
	h.configs.Put(activeConfig(false))

	require.NoError(t, h.engine.Start(context.Background()))

	// The initial cycle runs on start, before the first tick.
	require.Eventually(t, func() bool {
		return len(h.notifier.Delivered()) == 1
	}, time.Second, 10*time.Millisecond)

	h.engine.Stop()
	assert.Equal(t, 0, h.source.SubscriberCount())
}

func TestStopSafeWhenStartFailed(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	h.source.FailSubscribe(errors.New("node unavailable"))

	require.Error(t, h.engine.Start(context.Background()))
	requireStopReturns(t, h.engine)
}

func TestStopSafeWithoutStart(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	requireStopReturns(t, h.engine)
}

func requireStopReturns(t *testing.T, e *Engine) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		e.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked instead of returning")
	}
}

// slowCountingProvider stalls every fetch long enough for ticks to stack up
// if cycles ever ran concurrently.
type slowCountingProvider struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	calls       int
}

func (p *slowCountingProvider) Name() string { return "slow" }

func (p *slowCountingProvider) Fetch(ctx context.Context, _ market.Query) ([]market.Pool, error) {
	p.mu.Lock()
	p.inFlight++
	if p.inFlight > p.maxInFlight {
		p.maxInFlight = p.inFlight
	}
	p.calls++
	p.mu.Unlock()

	select {
	case <-time.After(30 * time.Millisecond):
	case <-ctx.Done():
	}

	p.mu.Lock()
	p.inFlight--
	p.mu.Unlock()
	return []market.Pool{goodPool("0xslow")}, nil
}

func TestCyclesNeverOverlap(t *testing.T) {
	cfg := testConfig()
	cfg.Discovery.IntervalMs = 5 // tick far faster than a cycle completes

	provider := &slowCountingProvider{}
	chain := evm.NewStubClient()
	trades := memory.NewTradeStore()
	approvals := memory.NewApprovalStore()

	engine := NewEngine(cfg, Deps{
		Aggregator:    market.NewAggregator(market.AggregatorConfig{FetchTimeout: time.Second}, provider),
		Configs:       memory.NewConfigStore(),
		Emitter:       alert.NewEmitter(memory.NewAlertStore(), alert.NewStubNotifier()),
		Wallets:       proxy.NewManager(chain, memory.NewWalletStore(), factoryAddr),
		Executor:      proxy.NewExecutor(chain, memory.NewWalletStore(), trades, approvals),
		TradeStore:    trades,
		ApprovalStore: approvals,
		Metrics:       observability.TalonMetrics(),
	})

	require.NoError(t, engine.Start(context.Background()))
	time.Sleep(150 * time.Millisecond)
	engine.Stop()

	provider.mu.Lock()
	defer provider.mu.Unlock()
	require.GreaterOrEqual(t, provider.calls, 2, "several cycles should have run")
	assert.Equal(t, 1, provider.maxInFlight, "a cycle must finish before the next begins")
}

// ---------------------------------------------------------------------------
// Public surface
// ---------------------------------------------------------------------------

func TestGetRankedPools(t *testing.T) {
	pools := []market.Pool{goodPool("0xaaa1"), goodPool("0xbbb2")}
	pools[1].MarketCapUSD = decimal.NewFromInt(9_000_000)
	h := newHarness(t, testConfig(), pools)

	page := h.engine.GetRankedPools(context.Background(), market.Query{
		Chain:  "bsc",
		SortBy: market.SortByMarketCap,
	})

	require.Len(t, page.Pools, 2)
	assert.Equal(t, "0xbbb2", page.Pools[0].BaseToken.Address)
	assert.False(t, page.HasMore)
}

func TestDeployProxyWalletViaEngine(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	h.chain.SetSimReturn(evm.AddressReturn(evm.DeterministicAddress("proxy")))
	ctx := context.Background()

	wallet, err := h.engine.DeployProxyWallet(ctx, "0x1111111111111111111111111111111111111111", "tg:1", proxy.DeployParams{
		MaxTradeAmount: decimal.NewFromFloat(0.5),
	})
	require.NoError(t, err)
	assert.Equal(t, evm.DeterministicAddress("proxy").Hex(), wallet.ProxyAddress)
}

func TestDryRunBlocksChainWrites(t *testing.T) {
	cfg := testConfig()
	cfg.General.DryRun = true
	h := newHarness(t, cfg, nil)
	ctx := context.Background()

	_, err := h.engine.DeployProxyWallet(ctx, "0x1", "tg:1", proxy.DeployParams{})
	assert.ErrorIs(t, err, ErrDryRun)

	_, err = h.engine.ExecuteTrade(ctx, "0x1", "tg:1", proxy.TradeRequest{})
	assert.ErrorIs(t, err, ErrDryRun)

	assert.Equal(t, 0, h.chain.SentCount())
}

func TestGetProxyStatus(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	ctx := context.Background()

	_, err := h.engine.GetProxyStatus(ctx, "0x1", "tg:1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	h.deployWallet(t, "0x1", "tg:1")
	status, err := h.engine.GetProxyStatus(ctx, "0x1", "tg:1")
	require.NoError(t, err)
	assert.Equal(t, "0x1", status.Wallet.UserAddress)
	assert.Empty(t, status.RecentTrades)
}

func TestStatsReflectCycleActivity(t *testing.T) {
	h := newHarness(t, testConfig(), []market.Pool{goodPool("0xaaa1")})
	h.configs.Put(activeConfig(false))

	h.engine.runCycle(context.Background())

	assert.InDelta(t, 1, h.engine.Metrics().GetCounter("talon_discovery_cycles_total").Value(), 1e-9)
	assert.InDelta(t, 1, h.engine.Metrics().GetCounter("talon_matches_total").Value(), 1e-9)
	assert.InDelta(t, 1, h.engine.Metrics().GetGauge("talon_tracked_pools").Value(), 1e-9)
	assert.NotEmpty(t, h.engine.Stats())
}

// ---------------------------------------------------------------------------
// Seen window
// ---------------------------------------------------------------------------

func TestSeenWindowEvictsOldest(t *testing.T) {
	w := newSeenWindow(2)

	assert.True(t, w.MarkSeen("a"))
	assert.True(t, w.MarkSeen("b"))
	assert.False(t, w.MarkSeen("a"))

	// "c" evicts "a".
	assert.True(t, w.MarkSeen("c"))
	assert.Equal(t, 2, w.Len())
	assert.True(t, w.MarkSeen("a"))
}
