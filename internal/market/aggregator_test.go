package market

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregator_UnionOfProviders(t *testing.T) {
	p1 := NewStubProvider("one", []Pool{poolWithToken("0xaa", 100)})
	p2 := NewStubProvider("two", []Pool{poolWithToken("0xbb", 200)})

	agg := NewAggregator(DefaultAggregatorConfig(), p1, p2)
	pools := agg.Fetch(context.Background(), Query{Chain: "bsc", Limit: 10})

	assert.Len(t, pools, 2)
	assert.Equal(t, 1, p1.Calls())
	assert.Equal(t, 1, p2.Calls())
}

func TestAggregator_PartialFailureContinues(t *testing.T) {
	good := NewStubProvider("good", []Pool{poolWithToken("0xaa", 100)})
	bad := NewStubProvider("bad", nil)
	bad.SetHealthy(false)

	agg := NewAggregator(DefaultAggregatorConfig(), good, bad)
	pools := agg.Fetch(context.Background(), Query{Chain: "bsc", Limit: 10})

	require.Len(t, pools, 1)
	assert.Equal(t, "0xaa", pools[0].BaseToken.Address)
	assert.False(t, pools[0].Synthetic)
}

func TestAggregator_AllFailedYieldsSyntheticBatch(t *testing.T) {
	bad1 := NewStubProvider("bad1", nil)
	bad1.SetHealthy(false)
	bad2 := NewStubProvider("bad2", nil)
	bad2.SetHealthy(false)

	agg := NewAggregator(DefaultAggregatorConfig(), bad1, bad2)
	pools := agg.Fetch(context.Background(), Query{Chain: "bsc", Limit: 25})

	require.Len(t, pools, 25)
	for _, p := range pools {
		assert.True(t, p.Synthetic, "fallback records must be tagged synthetic")
	}
}

func TestAggregator_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	good := NewStubProvider("good", []Pool{poolWithToken("0xaa", 100)})
	flaky := NewStubProvider("flaky", []Pool{poolWithToken("0xbb", 200)})
	flaky.SetHealthy(false)

	cfg := AggregatorConfig{TripThreshold: 2, OpenBatches: 3}
	agg := NewAggregator(cfg, good, flaky)

	// Two failed batches trip the circuit.
	agg.Fetch(context.Background(), Query{Chain: "bsc", Limit: 10})
	agg.Fetch(context.Background(), Query{Chain: "bsc", Limit: 10})
	require.Equal(t, 2, flaky.Calls())

	// The next three batches skip the tripped provider entirely.
	flaky.SetHealthy(true)
	for i := 0; i < 3; i++ {
		pools := agg.Fetch(context.Background(), Query{Chain: "bsc", Limit: 10})
		assert.Len(t, pools, 1)
	}
	assert.Equal(t, 2, flaky.Calls())

	// After the open window the provider is retried and contributes again.
	pools := agg.Fetch(context.Background(), Query{Chain: "bsc", Limit: 10})
	assert.Len(t, pools, 2)
	assert.Equal(t, 3, flaky.Calls())
}

func TestAggregator_SlowProviderTimedOut(t *testing.T) {
	slow := slowProvider{delay: 200 * time.Millisecond}
	fast := NewStubProvider("fast", []Pool{poolWithToken("0xaa", 100)})

	agg := NewAggregator(AggregatorConfig{FetchTimeout: 20 * time.Millisecond}, slow, fast)

	start := time.Now()
	pools := agg.Fetch(context.Background(), Query{Chain: "bsc", Limit: 10})
	elapsed := time.Since(start)

	require.Len(t, pools, 1)
	assert.Less(t, elapsed, 150*time.Millisecond, "slow provider must not hold the batch past its timeout")
}

func TestSynthetic_Deterministic(t *testing.T) {
	gen := NewSyntheticGenerator()
	q := Query{Chain: "bsc", Limit: 5}

	first := gen.Generate(q)
	second := gen.Generate(q)

	require.Len(t, first, 5)
	for i := range first {
		assert.Equal(t, first[i].BaseToken.Address, second[i].BaseToken.Address)
		assert.True(t, first[i].LiquidityUSD.Equal(second[i].LiquidityUSD))
	}
}

// slowProvider blocks until its context expires.
type slowProvider struct {
	delay time.Duration
}

func (s slowProvider) Name() string { return "slow" }

func (s slowProvider) Fetch(ctx context.Context, _ Query) ([]Pool, error) {
	select {
	case <-time.After(s.delay):
		return []Pool{poolWithToken("0xslow", 1)}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
