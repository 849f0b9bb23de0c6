package domain

import (
	"context"
	"io"
	"time"
)

// VenueQuoter is the quote capability of a single venue (DEX router, pool, or
// aggregator API). Implementations must honour ctx deadlines; a slow venue is
// abandoned, not waited on.
type VenueQuoter interface {
	// Name returns the venue identifier, e.g. "raydium".
	Name() string
	// Quote returns how much tokenOut amountIn of tokenIn currently buys.
	// It returns ErrVenueUnavailable (possibly wrapped) when the venue cannot
	// produce a quote.
	Quote(ctx context.Context, tokenIn, tokenOut string, amountIn float64) (Quote, error)
	// Liquidity returns the venue's available liquidity for the pair, in
	// quote-token units. Used as the slippage and utilization proxy.
	Liquidity(ctx context.Context, pair Pair) (float64, error)
}

// FeeEstimator projects the cost of a flash-loan execution before the trade
// is constructed.
type FeeEstimator interface {
	Estimate(ctx context.Context, asset string, amount float64) (FeeEstimate, error)
}

// Scorer is the external scoring capability. It may be slow, unavailable, or
// return garbage; callers must validate the result and fall back.
type Scorer interface {
	Score(ctx context.Context, features ScoreFeatures) (strength, confidence float64, err error)
}

// Relay is the private submission channel. Submit places a transaction set
// for inclusion at targetSlot; Status reports whether it landed.
type Relay interface {
	Submit(ctx context.Context, set TxSet, targetSlot uint64) (submissionID string, err error)
	Status(ctx context.Context, submissionID string, slot uint64) (SubmissionStatus, error)
	CurrentSlot(ctx context.Context) (uint64, error)
}

// PriceCache shares the latest observed mid price per pair with reporting
// collaborators outside the core loop. Failures are logged, never fatal.
type PriceCache interface {
	SetPrice(ctx context.Context, pair string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, pair string) (float64, time.Time, error)
}

// ReportBus publishes structured summaries and execution outcomes to external
// consumers (dashboards, alerting pipelines).
type ReportBus interface {
	// Publish fans the payload out to live subscribers on channel.
	Publish(ctx context.Context, channel string, payload []byte) error
	// StreamAppend records the payload durably so consumers that were not
	// connected at publish time can still replay it.
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

// RateLimiter throttles outbound venue API calls across bot instances.
type RateLimiter interface {
	// Allow reports whether one more request under key fits the window,
	// counting it when it does.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	// Wait blocks until one more request under key fits the window or ctx
	// is done.
	Wait(ctx context.Context, key string, limit int, window time.Duration) error
}

// Lock is a held distributed lock. Extend pushes the expiry forward;
// Release frees the lock and is safe to call more than once.
type Lock interface {
	Extend(ctx context.Context, ttl time.Duration) error
	Release()
}

// LockManager hands out distributed locks so that at most one bot instance
// submits trades at a time.
type LockManager interface {
	// Acquire obtains the lock for key with the given TTL. It returns
	// ErrLockHeld when another party holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// ExecutionStore persists execution outcomes and daily summaries.
type ExecutionStore interface {
	Insert(ctx context.Context, res ExecutionResult) error
	ListRecent(ctx context.Context, limit int) ([]ExecutionResult, error)
	ListDay(ctx context.Context, day time.Time) ([]ExecutionResult, error)
	SummarizeDay(ctx context.Context, day time.Time) (DailySummary, error)
}

// BlobWriter archives report objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
