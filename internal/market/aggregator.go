package market

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ---------------------------------------------------------------------------
// Aggregator — parallel provider fan-out with partial-failure tolerance
// ---------------------------------------------------------------------------

// AggregatorConfig configures the provider fan-out.
type AggregatorConfig struct {
	// Per-provider fetch budget. A provider that misses it contributes
	// nothing to the batch.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// TripThreshold consecutive failures open a provider's circuit; the
	// provider then sits out OpenBatches fetches before being retried.
	TripThreshold int `yaml:"trip_threshold"`
	OpenBatches   int `yaml:"open_batches"`
}

// DefaultAggregatorConfig returns defaults matching public API latencies.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		FetchTimeout:  10 * time.Second,
		TripThreshold: 3,
		OpenBatches:   5,
	}
}

// Aggregator queries every registered provider in parallel and collects the
// union of their results. Provider failures are logged and contribute zero
// records; they never abort the batch. When every provider fails, a
// deterministic synthetic batch keeps the pipeline serving data.
type Aggregator struct {
	config    AggregatorConfig
	providers []Provider
	synth     *SyntheticGenerator
	onError   func(provider string, err error)

	mu       sync.Mutex
	circuits []circuit
}

// circuit tracks one provider's consecutive failures. A tripped circuit
// sits the provider out for a few batches instead of hammering a dead API.
type circuit struct {
	streak   int
	skipLeft int
}

// NewAggregator creates an aggregator over the given providers.
func NewAggregator(config AggregatorConfig, providers ...Provider) *Aggregator {
	def := DefaultAggregatorConfig()
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = def.FetchTimeout
	}
	if config.TripThreshold <= 0 {
		config.TripThreshold = def.TripThreshold
	}
	if config.OpenBatches <= 0 {
		config.OpenBatches = def.OpenBatches
	}
	return &Aggregator{
		config:    config,
		providers: providers,
		synth:     NewSyntheticGenerator(),
		circuits:  make([]circuit, len(providers)),
	}
}

// OnProviderError registers a hook invoked once per failed provider fetch.
// Call before Fetch; not safe to set concurrently with it.
func (a *Aggregator) OnProviderError(fn func(provider string, err error)) {
	a.onError = fn
}

// fetchOutcome is one provider's settled result.
type fetchOutcome struct {
	provider string
	pools    []Pool
	err      error
}

// Fetch fans out to all providers, waits for every outcome, and returns the
// union of successful results. Ranking needs the full candidate set, so
// there is no racing ahead on first response.
func (a *Aggregator) Fetch(ctx context.Context, q Query) []Pool {
	q = q.Normalize()
	active := a.admit()
	outcomes := a.settleAll(ctx, q, active)

	var pools []Pool
	failures := 0
	for i, out := range outcomes {
		if !active[i] {
			continue
		}
		if out.err != nil {
			failures++
			log.Warn().
				Err(out.err).
				Str("provider", out.provider).
				Msg("aggregator: provider fetch failed")
			if a.onError != nil {
				a.onError(out.provider, out.err)
			}
			a.recordFailure(i, out.provider)
			continue
		}
		a.recordSuccess(i)
		pools = append(pools, out.pools...)
	}

	log.Debug().
		Int("providers", len(a.providers)).
		Int("failures", failures).
		Int("records", len(pools)).
		Msg("aggregator: batch settled")

	// Availability fallback: every provider down still yields a full,
	// explicitly tagged batch.
	if len(pools) == 0 {
		log.Warn().
			Str("chain", q.Chain).
			Int("limit", q.Limit).
			Msg("aggregator: all providers failed, generating synthetic batch")
		return a.synth.Generate(q)
	}

	return pools
}

// admit decrements open circuits and reports which providers run this batch.
func (a *Aggregator) admit() []bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	active := make([]bool, len(a.providers))
	for i := range a.circuits {
		if a.circuits[i].skipLeft > 0 {
			a.circuits[i].skipLeft--
			continue
		}
		active[i] = true
	}
	return active
}

func (a *Aggregator) recordFailure(i int, name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.circuits[i].streak++
	if a.circuits[i].streak >= a.config.TripThreshold {
		a.circuits[i].streak = 0
		a.circuits[i].skipLeft = a.config.OpenBatches
		log.Warn().
			Str("provider", name).
			Int("skip_batches", a.config.OpenBatches).
			Msg("aggregator: provider circuit opened")
	}
}

func (a *Aggregator) recordSuccess(i int) {
	a.mu.Lock()
	a.circuits[i].streak = 0
	a.mu.Unlock()
}

// settleAll runs one goroutine per admitted provider with an independent
// timeout and collects every outcome, success or failure.
func (a *Aggregator) settleAll(ctx context.Context, q Query, active []bool) []fetchOutcome {
	outcomes := make([]fetchOutcome, len(a.providers))

	var wg sync.WaitGroup
	for i, p := range a.providers {
		if !active[i] {
			continue
		}
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()

			fetchCtx, cancel := context.WithTimeout(ctx, a.config.FetchTimeout)
			defer cancel()

			pools, err := p.Fetch(fetchCtx, q)
			outcomes[i] = fetchOutcome{provider: p.Name(), pools: pools, err: err}
		}(i, p)
	}
	wg.Wait()

	return outcomes
}

// Providers returns the registered provider names.
func (a *Aggregator) Providers() []string {
	names := make([]string, len(a.providers))
	for i, p := range a.providers {
		names[i] = p.Name()
	}
	return names
}
