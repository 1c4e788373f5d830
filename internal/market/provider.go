package market

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"
)

// hundred converts fractional tax/percent fields into percentage points.
var hundred = decimal.NewFromInt(100)

// Provider is a single external market-data source. Each implementation owns
// its own HTTP client and timeout and maps its raw response into []Pool.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, q Query) ([]Pool, error)
}

// parseDecimal converts provider numerics (which arrive as strings, floats,
// or garbage depending on the API) into a decimal, defaulting to zero on any
// parse failure so one malformed field never costs the whole record.
func parseDecimal(v any) decimal.Decimal {
	switch x := v.(type) {
	case nil:
		return decimal.Zero
	case float64:
		return decimal.NewFromFloat(x)
	case int64:
		return decimal.NewFromInt(x)
	case int:
		return decimal.NewFromInt(int64(x))
	case string:
		d, err := decimal.NewFromString(x)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

// parseInt is parseDecimal's integer sibling.
func parseInt(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case int:
		return x
	case int64:
		return int(x)
	case string:
		n, err := strconv.Atoi(x)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// ---------------------------------------------------------------------------
// Stub provider (testing)
// ---------------------------------------------------------------------------

// StubProvider is a deterministic provider for tests. It returns pre-loaded
// pools, or errors while marked unhealthy.
type StubProvider struct {
	mu      sync.Mutex
	name    string
	pools   []Pool
	healthy bool
	calls   int
}

// NewStubProvider creates a stub provider with the given name and pools.
func NewStubProvider(name string, pools []Pool) *StubProvider {
	return &StubProvider{name: name, pools: pools, healthy: true}
}

func (s *StubProvider) Name() string { return s.name }

// Fetch returns the pre-loaded pools, or an error if the stub is unhealthy.
func (s *StubProvider) Fetch(_ context.Context, _ Query) ([]Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if !s.healthy {
		return nil, fmt.Errorf("provider %s is unhealthy", s.name)
	}

	out := make([]Pool, len(s.pools))
	copy(out, s.pools)
	return out, nil
}

// SetHealthy toggles whether Fetch succeeds.
func (s *StubProvider) SetHealthy(healthy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = healthy
}

// Calls returns the number of Fetch invocations.
func (s *StubProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
