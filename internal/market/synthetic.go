package market

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SyntheticGenerator produces deterministic placeholder pools when every
// real provider is down. Records are always tagged Synthetic=true so no
// downstream consumer can mistake them for live market data.
type SyntheticGenerator struct {
	now func() time.Time
}

// NewSyntheticGenerator creates a generator using wall-clock time.
func NewSyntheticGenerator() *SyntheticGenerator {
	return &SyntheticGenerator{now: time.Now}
}

// Generate returns q.Limit synthetic pools for the queried chain. The same
// query always produces the same addresses and amounts, so consumers see a
// stable placeholder set across an outage.
func (g *SyntheticGenerator) Generate(q Query) []Pool {
	q = q.Normalize()
	chain := q.Chain
	if chain == "" {
		chain = "bsc"
	}

	createdAt := g.now().Unix()
	pools := make([]Pool, 0, q.Limit)
	for i := 0; i < q.Limit; i++ {
		n := int64(i + 1)
		pools = append(pools, Pool{
			Chain:       chain,
			Exchange:    "synthetic",
			PairAddress: fmt.Sprintf("0xsynthpair%040d", n),
			BaseToken: Token{
				Address:  fmt.Sprintf("0xsynthtoken%039d", n),
				Symbol:   fmt.Sprintf("SYN%d", n),
				Name:     fmt.Sprintf("Synthetic Token %d", n),
				Decimals: 18,
			},
			QuoteToken: Token{
				Symbol:   "WNATIVE",
				Decimals: 18,
			},
			LiquidityUSD:  decimal.NewFromInt(10_000 * n),
			VolumeUSD:     decimal.NewFromInt(1_000 * n),
			MarketCapUSD:  decimal.NewFromInt(100_000 * n),
			HolderCount:   int(10 * n),
			CreatedAtUnix: createdAt,
			Synthetic:     true,
			Source:        "synthetic",
		})
	}
	return pools
}
