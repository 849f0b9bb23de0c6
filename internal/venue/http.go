// Package venue provides quote adapters for the supported liquidity venues.
package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/LimitlessJacko/LimitlessFlashBot/internal/domain"
)

// RouterClient quotes against a DEX router/aggregator REST API (Jupiter-style
// price endpoint). The request carries input token, output token, and amount;
// the response carries the projected output amount and pool liquidity.
type RouterClient struct {
	name       string
	baseURL    string
	feeBps     float64
	httpClient *http.Client
	limiter    domain.RateLimiter
	ratePerSec int
}

// NewRouterClient creates a router venue client.
//
// baseURL is the API root, e.g. "https://quote-api.jup.ag/v6". feeBps is the
// venue's swap fee in basis points, already reflected in returned quotes by
// most routers but kept for liquidity-side estimates. limiter, when non-nil,
// throttles outbound calls to ratePerSec requests per second under the key
// "venue:{name}".
func NewRouterClient(name, baseURL string, feeBps float64, limiter domain.RateLimiter, ratePerSec int) *RouterClient {
	return &RouterClient{
		name:    name,
		baseURL: baseURL,
		feeBps:  feeBps,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter:    limiter,
		ratePerSec: ratePerSec,
	}
}

// Name returns the venue identifier.
func (c *RouterClient) Name() string {
	return c.name
}

// routerQuoteResponse is the JSON shape of the router's quote endpoint.
type routerQuoteResponse struct {
	OutAmount string  `json:"outAmount"`
	InAmount  string  `json:"inAmount"`
	Liquidity float64 `json:"liquidity"`
}

// Quote asks the router how much tokenOut the given amount of tokenIn buys.
func (c *RouterClient) Quote(ctx context.Context, tokenIn, tokenOut string, amountIn float64) (domain.Quote, error) {
	params := url.Values{}
	params.Set("inputMint", tokenIn)
	params.Set("outputMint", tokenOut)
	params.Set("amount", strconv.FormatFloat(amountIn, 'f', -1, 64))

	body, err := c.doGet(ctx, "/quote?"+params.Encode())
	if err != nil {
		return domain.Quote{}, fmt.Errorf("venue/%s: quote %s->%s: %w", c.name, tokenIn, tokenOut, err)
	}

	var resp routerQuoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("venue/%s: decode quote: %w", c.name, err)
	}

	out, err := strconv.ParseFloat(resp.OutAmount, 64)
	if err != nil || out <= 0 {
		return domain.Quote{}, fmt.Errorf("venue/%s: bad out amount %q: %w", c.name, resp.OutAmount, domain.ErrVenueUnavailable)
	}

	return domain.Quote{
		Venue:      c.name,
		TokenIn:    tokenIn,
		TokenOut:   tokenOut,
		AmountIn:   amountIn,
		AmountOut:  out,
		Liquidity:  resp.Liquidity,
		ObservedAt: time.Now().UTC(),
	}, nil
}

// Liquidity returns the router-reported pool liquidity for the pair.
func (c *RouterClient) Liquidity(ctx context.Context, pair domain.Pair) (float64, error) {
	params := url.Values{}
	params.Set("inputMint", pair.Base)
	params.Set("outputMint", pair.Quote)

	body, err := c.doGet(ctx, "/liquidity?"+params.Encode())
	if err != nil {
		return 0, fmt.Errorf("venue/%s: liquidity %s: %w", c.name, pair, err)
	}

	var resp struct {
		Liquidity float64 `json:"liquidity"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("venue/%s: decode liquidity: %w", c.name, err)
	}
	return resp.Liquidity, nil
}

func (c *RouterClient) doGet(ctx context.Context, path string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, "venue:"+c.name, c.ratePerSec, time.Second); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrVenueUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrVenueUnavailable, resp.StatusCode, string(body))
	}
	return body, nil
}
