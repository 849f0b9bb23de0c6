package domain

import "time"

// Route describes the two-hop round trip of an arbitrage: buy the base token
// on BuyVenue, sell it back on SellVenue.
type Route struct {
	BuyVenue  string
	SellVenue string
}

// Opportunity is a detected cross-venue price discrepancy that is profitable
// after fees. It is created by the scanner, consumed exactly once by the
// score -> gate -> execute pipeline, and then discarded. Opportunities are
// immutable after construction.
type Opportunity struct {
	ID     string
	Pair   Pair
	Asset  string  // the borrowed asset (the pair's quote token)
	Amount float64 // flash-loan principal in Asset units

	Route Route

	// EstimatedProfit is the projected net profit in Asset units after the
	// flash-loan fee and gas estimate. Always positive: the scanner never
	// constructs a loss-guaranteed trade.
	EstimatedProfit float64

	// MinAcceptableProfit is the on-chain minimum-output guard, always
	// less than or equal to EstimatedProfit.
	MinAcceptableProfit float64

	// EstimatedFee is the total fee estimate (flash-loan fee + gas) that was
	// already subtracted from EstimatedProfit.
	EstimatedFee float64

	DiscoveredAt time.Time
}

// ProfitRatio returns profit relative to the borrowed principal.
func (o Opportunity) ProfitRatio() float64 {
	if o.Amount == 0 {
		return 0
	}
	return o.EstimatedProfit / o.Amount
}

// Expired reports whether the opportunity is older than maxAge. Price
// conditions move quickly; stale opportunities must not be executed.
func (o Opportunity) Expired(now time.Time, maxAge time.Duration) bool {
	return now.Sub(o.DiscoveredAt) > maxAge
}
