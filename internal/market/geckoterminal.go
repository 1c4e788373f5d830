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
// GeckoTerminal adapter — https://api.geckoterminal.com/api/v2
// JSON:API shape: data[].attributes + relationships.
// ---------------------------------------------------------------------------

const defaultGeckoTerminalURL = "https://api.geckoterminal.com/api/v2"

// GeckoTerminalClient fetches newly listed pools from GeckoTerminal.
type GeckoTerminalClient struct {
	baseURL    string
	httpClient *http.Client
}

type geckoPool struct {
	ID         string `json:"id"`
	Attributes struct {
		Name           string `json:"name"`
		Address        string `json:"address"`
		BaseTokenPrice any    `json:"base_token_price_usd"`
		ReserveUSD     any    `json:"reserve_in_usd"`
		MarketCapUSD   any    `json:"market_cap_usd"`
		FDVUSD         any    `json:"fdv_usd"`
		PoolCreatedAt  string `json:"pool_created_at"` // RFC3339
		VolumeUSD      struct {
			H24 any `json:"h24"`
		} `json:"volume_usd"`
	} `json:"attributes"`
	Relationships struct {
		BaseToken struct {
			Data struct {
				ID string `json:"id"` // "<network>_<address>"
			} `json:"data"`
		} `json:"base_token"`
		QuoteToken struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"quote_token"`
		Dex struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"dex"`
	} `json:"relationships"`
}

type geckoResponse struct {
	Data []geckoPool `json:"data"`
}

// NewGeckoTerminalClient creates a GeckoTerminal provider. An empty baseURL
// selects the public endpoint.
func NewGeckoTerminalClient(baseURL string) *GeckoTerminalClient {
	if baseURL == "" {
		baseURL = defaultGeckoTerminalURL
	}
	return &GeckoTerminalClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *GeckoTerminalClient) Name() string { return "geckoterminal" }

// Fetch returns the network's newest pools in the canonical Pool shape.
func (g *GeckoTerminalClient) Fetch(ctx context.Context, q Query) ([]Pool, error) {
	url := fmt.Sprintf("%s/networks/%s/new_pools", g.baseURL, q.Chain)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("geckoterminal: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geckoterminal: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geckoterminal: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("geckoterminal: read body: %w", err)
	}

	var parsed geckoResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("geckoterminal: decode: %w", err)
	}

	pools := make([]Pool, 0, len(parsed.Data))
	for _, gp := range parsed.Data {
		pools = append(pools, g.mapPool(q.Chain, gp))
	}
	return pools, nil
}

func (g *GeckoTerminalClient) mapPool(chain string, gp geckoPool) Pool {
	attrs := gp.Attributes

	marketCap := parseDecimal(attrs.MarketCapUSD)
	if marketCap.IsZero() {
		marketCap = parseDecimal(attrs.FDVUSD)
	}

	var createdAt int64
	if t, err := time.Parse(time.RFC3339, attrs.PoolCreatedAt); err == nil {
		createdAt = t.Unix()
	}

	return Pool{
		Chain:       chain,
		Exchange:    gp.Relationships.Dex.Data.ID,
		PairAddress: attrs.Address,
		BaseToken: Token{
			Address: tokenAddressFromID(gp.Relationships.BaseToken.Data.ID),
		},
		QuoteToken: Token{
			Address: tokenAddressFromID(gp.Relationships.QuoteToken.Data.ID),
		},
		LiquidityUSD:  parseDecimal(attrs.ReserveUSD),
		VolumeUSD:     parseDecimal(attrs.VolumeUSD.H24),
		MarketCapUSD:  marketCap,
		CreatedAtUnix: createdAt,
		Source:        g.Name(),
	}
}

// tokenAddressFromID strips the network prefix from a JSON:API token id
// like "bsc_0xabc..." -> "0xabc...".
func tokenAddressFromID(id string) string {
	for i := 0; i < len(id); i++ {
		if id[i] == '_' {
			return id[i+1:]
		}
	}
	return id
}
