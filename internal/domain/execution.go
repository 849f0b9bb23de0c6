package domain

import "time"

// RouteParams encodes an approved route for the settlement program, including
// the minimum-output guard that makes the round trip revert instead of
// settling at a loss.
type RouteParams struct {
	BuyVenue     string  `json:"buy_venue"`
	SellVenue    string  `json:"sell_venue"`
	TokenIn      string  `json:"token_in"`
	TokenOut     string  `json:"token_out"`
	AmountIn     float64 `json:"amount_in"`
	MinAmountOut float64 `json:"min_amount_out"`
}

// TxSet is the transaction set submitted through the private relay: the
// flash-loan execute call plus its signature over the canonical payload.
type TxSet struct {
	OpportunityID string      `json:"opportunity_id"`
	Asset         string      `json:"asset"`
	Amount        float64     `json:"amount"`
	Route         RouteParams `json:"route"`
	MinProfit     float64     `json:"min_profit"`
	Payload       []byte      `json:"payload"`
	Signature     []byte      `json:"signature"`
}

// SubmissionState is the relay's view of a submitted transaction set.
type SubmissionState string

const (
	SubmissionIncluded SubmissionState = "included"
	SubmissionPending  SubmissionState = "pending"
	SubmissionAbsent   SubmissionState = "absent"
)

// SubmissionStatus is one poll result from the relay's status endpoint.
// SettlementRef and ObservedProfit are only meaningful when State is
// SubmissionIncluded; ObservedProfit may still be zero when the relay cannot
// read back the realized outcome.
type SubmissionStatus struct {
	State          SubmissionState
	SettlementRef  string
	ObservedProfit float64
}

// ExecutionResult is the terminal outcome of one execution attempt. It is
// created exactly once per attempt, fed back into risk accounting, and then
// handed to the orchestrator for reporting. Failed attempts are never retried
// with the same parameters.
type ExecutionResult struct {
	OpportunityID  string
	Asset          string
	Success        bool
	SettlementRef  string
	Reason         string // failure reason, empty on success
	ObservedProfit float64
	CompletedAt    time.Time
}

// FeeEstimate is the projected cost of executing one flash-loan round trip,
// in the borrowed asset's units.
type FeeEstimate struct {
	BaseFee      float64
	PriorityFee  float64
	FlashLoanFee float64
}

// Total returns the sum of all fee components.
func (f FeeEstimate) Total() float64 {
	return f.BaseFee + f.PriorityFee + f.FlashLoanFee
}
