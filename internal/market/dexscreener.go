package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ---------------------------------------------------------------------------
// DexScreener adapter — https://api.dexscreener.com
// ---------------------------------------------------------------------------

const defaultDexScreenerURL = "https://api.dexscreener.com/latest/dex"

// DexScreenerClient fetches new pairs from the DexScreener API.
type DexScreenerClient struct {
	baseURL    string
	httpClient *http.Client
}

// dexScreenerPair mirrors the provider's pair shape. Numeric fields are
// decoded as `any` so one malformed value degrades to zero instead of
// failing the whole response.
type dexScreenerPair struct {
	ChainID     string `json:"chainId"`
	DexID       string `json:"dexId"`
	PairAddress string `json:"pairAddress"`
	BaseToken   struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	QuoteToken struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"quoteToken"`
	Liquidity struct {
		USD any `json:"usd"`
	} `json:"liquidity"`
	Volume struct {
		H24 any `json:"h24"`
	} `json:"volume"`
	FDV           any   `json:"fdv"`
	MarketCap     any   `json:"marketCap"`
	PairCreatedAt int64 `json:"pairCreatedAt"` // unix millis
}

type dexScreenerResponse struct {
	Pairs []dexScreenerPair `json:"pairs"`
}

// NewDexScreenerClient creates a DexScreener provider. An empty baseURL
// selects the public endpoint.
func NewDexScreenerClient(baseURL string) *DexScreenerClient {
	if baseURL == "" {
		baseURL = defaultDexScreenerURL
	}
	return &DexScreenerClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DexScreenerClient) Name() string { return "dexscreener" }

// Fetch returns the latest pairs for the queried chain mapped into the
// canonical Pool shape.
func (d *DexScreenerClient) Fetch(ctx context.Context, q Query) ([]Pool, error) {
	url := fmt.Sprintf("%s/search?q=%s", d.baseURL, q.Chain)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dexscreener: build request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dexscreener: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dexscreener: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("dexscreener: read body: %w", err)
	}

	var parsed dexScreenerResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("dexscreener: decode: %w", err)
	}

	pools := make([]Pool, 0, len(parsed.Pairs))
	for _, pair := range parsed.Pairs {
		pools = append(pools, d.mapPair(pair))
	}
	return pools, nil
}

func (d *DexScreenerClient) mapPair(pair dexScreenerPair) Pool {
	marketCap := parseDecimal(pair.MarketCap)
	if marketCap.IsZero() {
		// DexScreener reports FDV for pairs without circulating supply data.
		marketCap = parseDecimal(pair.FDV)
	}

	return Pool{
		Chain:       pair.ChainID,
		Exchange:    pair.DexID,
		PairAddress: pair.PairAddress,
		BaseToken: Token{
			Address: pair.BaseToken.Address,
			Symbol:  pair.BaseToken.Symbol,
			Name:    pair.BaseToken.Name,
		},
		QuoteToken: Token{
			Address: pair.QuoteToken.Address,
			Symbol:  pair.QuoteToken.Symbol,
			Name:    pair.QuoteToken.Name,
		},
		LiquidityUSD:  parseDecimal(pair.Liquidity.USD),
		VolumeUSD:     parseDecimal(pair.Volume.H24),
		MarketCapUSD:  marketCap,
		CreatedAtUnix: pair.PairCreatedAt / 1000,
		Source:        d.Name(),
	}
}
