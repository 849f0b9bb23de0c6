// Package quote maintains per-venue quotes for tracked pairs, bounded price
// history, and derived volatility.
package quote

import (
	"math"
	"time"

	"github.com/LimitlessJacko/LimitlessFlashBot/internal/domain"
)

// defaultSeriesCap bounds each price series to the most recent samples.
const defaultSeriesCap = 1000

// series is a bounded, append-only price history with oldest eviction.
// Appends are accepted only for strictly newer timestamps. Not safe for
// concurrent use; the aggregator serializes access.
type series struct {
	points []domain.PricePoint
	cap    int
}

func newSeries(capacity int) *series {
	if capacity <= 0 {
		capacity = defaultSeriesCap
	}
	return &series{cap: capacity}
}

// Append records a sample if ts is strictly newer than the last sample.
// It returns false when the sample was rejected as stale.
func (s *series) Append(price float64, ts time.Time) bool {
	if n := len(s.points); n > 0 && !ts.After(s.points[n-1].ObservedAt) {
		return false
	}
	s.points = append(s.points, domain.PricePoint{Price: price, ObservedAt: ts})
	if len(s.points) > s.cap {
		s.points = s.points[len(s.points)-s.cap:]
	}
	return true
}

// Len returns the number of retained samples.
func (s *series) Len() int {
	return len(s.points)
}

// Last returns the most recent sample.
func (s *series) Last() (domain.PricePoint, bool) {
	if len(s.points) == 0 {
		return domain.PricePoint{}, false
	}
	return s.points[len(s.points)-1], true
}

// Volatility computes the standard deviation of successive fractional returns
// over the last window samples. Fewer than 2 samples yields 0.
func (s *series) Volatility(window int) float64 {
	pts := s.points
	if window > 0 && len(pts) > window {
		pts = pts[len(pts)-window:]
	}
	if len(pts) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(pts)-1)
	for i := 1; i < len(pts); i++ {
		prev := pts[i-1].Price
		if prev == 0 {
			continue
		}
		returns = append(returns, (pts[i].Price-prev)/prev)
	}
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sq float64
	for _, r := range returns {
		d := r - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(returns)))
}
