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
// GoPlus adapter — https://api.gopluslabs.io
// Token security feed: taxes, honeypot verdicts, LP lock data.
// ---------------------------------------------------------------------------

const defaultGoPlusURL = "https://api.gopluslabs.io/api/v1"

// GoPlusClient fetches token security records from the GoPlus Labs API.
type GoPlusClient struct {
	baseURL    string
	httpClient *http.Client
}

type goPlusToken struct {
	BuyTax      string `json:"buy_tax"`
	SellTax     string `json:"sell_tax"`
	CannotBuy   string `json:"cannot_buy"`
	CannotSell  string `json:"cannot_sell_all"`
	IsHoneypot  string `json:"is_honeypot"`
	HolderCount string `json:"holder_count"`
	TokenName   string `json:"token_name"`
	TokenSymbol string `json:"token_symbol"`
	DexInfo     []struct {
		Name      string `json:"name"`
		Pair      string `json:"pair"`
		Liquidity string `json:"liquidity"`
	} `json:"dex"`
	LPHolders []struct {
		Address  string `json:"address"`
		Percent  string `json:"percent"`
		IsLocked int    `json:"is_locked"`
	} `json:"lp_holders"`
}

type goPlusResponse struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Result  map[string]goPlusToken `json:"result"` // token address -> record
}

// NewGoPlusClient creates a GoPlus provider. An empty baseURL selects the
// public endpoint.
func NewGoPlusClient(baseURL string) *GoPlusClient {
	if baseURL == "" {
		baseURL = defaultGoPlusURL
	}
	return &GoPlusClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *GoPlusClient) Name() string { return "goplus" }

// chainIDs maps canonical chain names to GoPlus numeric chain ids.
var chainIDs = map[string]string{
	"ethereum": "1",
	"bsc":      "56",
	"base":     "8453",
	"arbitrum": "42161",
}

// Fetch returns recently screened tokens for the chain as canonical pools.
// Tax, honeypot, and lock fields come from here; liquidity comes from the
// token's primary DEX entry.
func (g *GoPlusClient) Fetch(ctx context.Context, q Query) ([]Pool, error) {
	chainID, ok := chainIDs[q.Chain]
	if !ok {
		chainID = "56"
	}
	url := fmt.Sprintf("%s/token_security/%s", g.baseURL, chainID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("goplus: build request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("goplus: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("goplus: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("goplus: read body: %w", err)
	}

	var parsed goPlusResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("goplus: decode: %w", err)
	}
	if parsed.Code != 1 {
		return nil, fmt.Errorf("goplus: api error code=%d message=%s", parsed.Code, parsed.Message)
	}

	pools := make([]Pool, 0, len(parsed.Result))
	for addr, tok := range parsed.Result {
		pools = append(pools, g.mapToken(q.Chain, addr, tok))
	}
	return pools, nil
}

func (g *GoPlusClient) mapToken(chain, address string, tok goPlusToken) Pool {
	pool := Pool{
		Chain: chain,
		BaseToken: Token{
			Address: address,
			Symbol:  tok.TokenSymbol,
			Name:    tok.TokenName,
		},
		// GoPlus reports taxes as fractions ("0.05" = 5%).
		BuyTaxPct:   parseDecimal(tok.BuyTax).Mul(hundred),
		SellTaxPct:  parseDecimal(tok.SellTax).Mul(hundred),
		IsHoneypot:  tok.IsHoneypot == "1" || tok.CannotSell == "1",
		HolderCount: parseInt(tok.HolderCount),
		Source:      g.Name(),
	}

	if len(tok.DexInfo) > 0 {
		pool.Exchange = tok.DexInfo[0].Name
		pool.PairAddress = tok.DexInfo[0].Pair
		pool.LiquidityUSD = parseDecimal(tok.DexInfo[0].Liquidity)
	}

	for _, lp := range tok.LPHolders {
		if lp.IsLocked == 1 {
			pool.Lock.IsLocked = true
			pool.Lock.PercentLocked = pool.Lock.PercentLocked.Add(parseDecimal(lp.Percent).Mul(hundred))
		}
	}

	return pool
}
