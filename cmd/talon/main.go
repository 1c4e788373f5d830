package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/talon-trading/talon/internal/alert"
	"github.com/talon-trading/talon/internal/config"
	"github.com/talon-trading/talon/internal/evm"
	"github.com/talon-trading/talon/internal/market"
	"github.com/talon-trading/talon/internal/observability"
	"github.com/talon-trading/talon/internal/pipeline"
	"github.com/talon-trading/talon/internal/proxy"
	"github.com/talon-trading/talon/internal/storage"
	"github.com/talon-trading/talon/internal/storage/memory"
	"github.com/talon-trading/talon/internal/storage/postgres"
)

func main() {
	// 1. Parse flags.
	configPath := flag.String("config", "config/config.yaml", "Path to configuration file")
	stubMode := flag.Bool("stub", false, "Use stub chain client (no real node connection)")
	metricsAddr := flag.String("metrics-addr", "", "Address for the /metrics and /healthz endpoints (empty = disabled)")
	flag.Parse()

	// 2. Load configuration. A .env file, if present, seeds the variables
	// the YAML expands.
	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config from %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	// 3. Setup logging.
	setupLogging(cfg.General)

	log.Info().Msg("=============================================")
	log.Info().Msg("TALON Pool Sniper - Starting")
	log.Info().Msg("DISCOVER -> RANK -> MATCH -> EXECUTE")
	log.Info().Msg("=============================================")

	log.Info().
		Str("instance_id", cfg.General.InstanceID).
		Str("chain", cfg.Chain.Name).
		Int64("chain_id", cfg.Chain.ChainID).
		Bool("dry_run", cfg.General.DryRun).
		Bool("stub_mode", *stubMode).
		Int("interval_ms", cfg.Discovery.IntervalMs).
		Str("sort_by", cfg.Discovery.SortBy).
		Msg("Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Build storage.
	stores, cleanup, err := buildStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer cleanup()

	// 5. Create the chain client and event source.
	var chain evm.Client
	var source evm.Source
	if *stubMode {
		stub := evm.NewStubClient()
		stub.SetSimReturn(evm.AddressReturn(evm.DeterministicAddress(cfg.General.InstanceID)))
		chain = stub
		source = evm.NewStubSource()
		log.Info().Msg("Chain client: STUB mode")
	} else {
		live, err := evm.NewLiveClient(ctx, evm.LiveConfig{
			ChainID:        cfg.Chain.ChainID,
			RPCEndpoint:    cfg.Chain.RPCEndpoint,
			PrivateKey:     cfg.Chain.PrivateKey,
			GasLimit:       cfg.Proxy.GasLimit,
			CallTimeout:    cfg.Chain.CallTimeout,
			ConfirmTimeout: cfg.Chain.ConfirmTimeout,
			MaxGasGwei:     cfg.Proxy.MaxGasGwei,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to chain")
		}
		defer live.Close()
		chain = live

		if cfg.Chain.WSEndpoint != "" {
			source = evm.NewWSSource(evm.DefaultWSSourceConfig(cfg.Chain.WSEndpoint))
		}
		log.Info().
			Str("endpoint", cfg.Chain.RPCEndpoint).
			Str("from", live.From().Hex()).
			Bool("event_feed", source != nil).
			Msg("Chain client: LIVE - connected")
	}

	// 6. Market data providers.
	aggregator := market.NewAggregator(
		market.AggregatorConfig{FetchTimeout: cfg.Providers.FetchTimeout},
		buildProviders(cfg)...,
	)

	// 7. Wire the core.
	metrics := observability.TalonMetrics()
	emitter := alert.NewEmitter(stores.alerts, alert.LogNotifier{})
	manager := proxy.NewManager(chain, stores.wallets, cfg.Proxy.FactoryAddress)
	executor := proxy.NewExecutor(chain, stores.wallets, stores.trades, stores.approvals)

	engine := pipeline.NewEngine(cfg, pipeline.Deps{
		Aggregator:    aggregator,
		Configs:       stores.configs,
		Emitter:       emitter,
		Wallets:       manager,
		Executor:      executor,
		TradeStore:    stores.trades,
		ApprovalStore: stores.approvals,
		EventSource:   source,
		Metrics:       metrics,
	})

	// 8. Optional observability endpoint.
	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, metrics, chain)
	}

	// 9. Run until signalled.
	if err := engine.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start pipeline")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	cancel()
	engine.Stop()

	for _, entry := range engine.Stats() {
		log.Info().
			Str("metric", entry.Name).
			Float64("value", entry.Value).
			Msg("final stats")
	}

	log.Info().Msg("TALON stopped")
}

// stores groups the five persistence interfaces behind one wiring decision.
type stores struct {
	wallets   storage.WalletStore
	trades    storage.TradeStore
	approvals storage.ApprovalStore
	configs   storage.SniperConfigStore
	alerts    storage.AlertStore
}

// buildStores selects Postgres or in-memory storage from the DSN.
func buildStores(ctx context.Context, cfg *config.Config) (*stores, func(), error) {
	if cfg.Storage.PostgresDSN == "" {
		log.Info().Msg("Storage: in-memory (no postgres_dsn configured)")
		return &stores{
			wallets:   memory.NewWalletStore(),
			trades:    memory.NewTradeStore(),
			approvals: memory.NewApprovalStore(),
			configs:   memory.NewConfigStore(),
			alerts:    memory.NewAlertStore(),
		}, func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	log.Info().Msg("Storage: postgres")
	return &stores{
		wallets:   postgres.NewWalletStore(pool),
		trades:    postgres.NewTradeStore(pool),
		approvals: postgres.NewApprovalStore(pool),
		configs:   postgres.NewSniperConfigStore(pool),
		alerts:    postgres.NewAlertStore(pool),
	}, pool.Close, nil
}

// buildProviders instantiates every enabled market-data adapter.
func buildProviders(cfg *config.Config) []market.Provider {
	var providers []market.Provider

	if cfg.Providers.DexScreener.Enabled {
		providers = append(providers, market.NewDexScreenerClient(cfg.Providers.DexScreener.BaseURL))
	}
	if cfg.Providers.GeckoTerminal.Enabled {
		providers = append(providers, market.NewGeckoTerminalClient(cfg.Providers.GeckoTerminal.BaseURL))
	}
	if cfg.Providers.GoPlus.Enabled {
		providers = append(providers, market.NewGoPlusClient(cfg.Providers.GoPlus.BaseURL))
	}

	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	log.Info().Strs("providers", names).Msg("Market data providers configured")

	return providers
}

// serveMetrics exposes Prometheus metrics and a health endpoint.
func serveMetrics(addr string, metrics *observability.Registry, chain evm.Reader) {
	checker := observability.NewHealthChecker()
	checker.Register("chain", func(ctx context.Context) observability.ComponentHealth {
		// A cheap liveness signal: the client exists and the process is up.
		// Deep RPC probes belong to the node's own monitoring.
		if chain == nil {
			return observability.ComponentHealth{Status: observability.StatusUnhealthy, Message: "no chain client"}
		}
		return observability.ComponentHealth{Status: observability.StatusHealthy}
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.NewPrometheusExporter(metrics))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		health := checker.Check(r.Context())
		if health.Status != observability.StatusHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprintf(w, "%s\n", health.Status)
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("Observability endpoint listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Observability endpoint failed")
	}
}

func setupLogging(general config.GeneralConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	level, err := zerolog.ParseLevel(general.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if general.LogFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Str("service", "talon").
			Str("instance", general.InstanceID).Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).
			With().Timestamp().Str("service", "talon").
			Str("instance", general.InstanceID).Logger()
	}
}
