package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/LimitlessJacko/LimitlessFlashBot/internal/domain"
)

// HTTPReserveSource fetches constant-product pool reserves from the venue's
// pool-state REST endpoint.
type HTTPReserveSource struct {
	name       string
	baseURL    string
	httpClient *http.Client
	limiter    domain.RateLimiter
	ratePerSec int
}

// NewHTTPReserveSource creates a reserve source. limiter, when non-nil,
// shares the venue's request budget of ratePerSec requests per second under
// the key "venue:{name}".
func NewHTTPReserveSource(name, baseURL string, limiter domain.RateLimiter, ratePerSec int) *HTTPReserveSource {
	return &HTTPReserveSource{
		name:    name,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter:    limiter,
		ratePerSec: ratePerSec,
	}
}

// Reserves returns the pool's current base and quote token reserves.
func (s *HTTPReserveSource) Reserves(ctx context.Context, pair domain.Pair) (PoolReserves, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, "venue:"+s.name, s.ratePerSec, time.Second); err != nil {
			return PoolReserves{}, fmt.Errorf("venue/%s: reserves %s: %w", s.name, pair, err)
		}
	}

	params := url.Values{}
	params.Set("pair", pair.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/pool?"+params.Encode(), nil)
	if err != nil {
		return PoolReserves{}, fmt.Errorf("venue/%s: create request: %w", s.name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return PoolReserves{}, fmt.Errorf("venue/%s: reserves %s: %w: %v", s.name, pair, domain.ErrVenueUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return PoolReserves{}, fmt.Errorf("venue/%s: read body: %w", s.name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return PoolReserves{}, fmt.Errorf("venue/%s: reserves %s: %w: status %d", s.name, pair, domain.ErrVenueUnavailable, resp.StatusCode)
	}

	var out struct {
		BaseReserve  float64 `json:"baseReserve"`
		QuoteReserve float64 `json:"quoteReserve"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return PoolReserves{}, fmt.Errorf("venue/%s: decode reserves: %w", s.name, err)
	}
	if out.BaseReserve <= 0 || out.QuoteReserve <= 0 {
		return PoolReserves{}, fmt.Errorf("venue/%s: empty pool %s: %w", s.name, pair, domain.ErrVenueUnavailable)
	}
	return PoolReserves{Base: out.BaseReserve, Quote: out.QuoteReserve}, nil
}

var _ ReserveSource = (*HTTPReserveSource)(nil)
