package domain

import (
	"fmt"
	"strings"
	"time"
)

// Pair identifies a token pair, e.g. SOL/USDC. Base is the token being
// priced, Quote is the token it is priced in. The quote token is also the
// asset borrowed through the flash loan when a round trip is executed.
type Pair struct {
	Base  string
	Quote string
}

// ParsePair parses a "BASE/QUOTE" string.
func ParsePair(s string) (Pair, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, fmt.Errorf("domain: invalid pair %q", s)
	}
	return Pair{Base: parts[0], Quote: parts[1]}, nil
}

// String returns the canonical "BASE/QUOTE" form.
func (p Pair) String() string {
	return p.Base + "/" + p.Quote
}

// Quote is a single observed price point on one venue: swapping AmountIn of
// TokenIn yielded (or would yield) AmountOut of TokenOut at ObservedAt.
// Quotes are immutable once recorded; a newer quote for the same venue/pair
// supersedes an older one.
type Quote struct {
	Venue      string
	TokenIn    string
	TokenOut   string
	AmountIn   float64
	AmountOut  float64
	Liquidity  float64 // quoted-side pool liquidity, in TokenOut units
	ObservedAt time.Time
}

// Price returns the effective exchange rate of the quote.
func (q Quote) Price() float64 {
	if q.AmountIn == 0 {
		return 0
	}
	return q.AmountOut / q.AmountIn
}

// Age returns how old the quote is relative to now.
func (q Quote) Age(now time.Time) time.Duration {
	return now.Sub(q.ObservedAt)
}

// PricePoint is one sample in a price series.
type PricePoint struct {
	Price      float64
	ObservedAt time.Time
}
