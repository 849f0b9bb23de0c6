// Package orchestrator runs the bot's main loops: quote refreshing, the
// scan -> score -> gate -> execute pipeline, and periodic reporting. It owns
// the aggregate execution counters and exposes a status snapshot.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LimitlessJacko/LimitlessFlashBot/internal/domain"
)

// ReportChannel is the bus channel daily summaries are published on.
const ReportChannel = "reports:daily"

// ExecutionChannel is the bus channel per-execution outcomes are published on.
const ExecutionChannel = "reports:executions"

// OpportunityChannel is the bus channel approved opportunities are published
// on, in both trading and detection-only operation.
const OpportunityChannel = "reports:opportunities"

// Refresher updates the quote snapshot across all venues.
type Refresher interface {
	Refresh(ctx context.Context)
}

// Scanner detects the best current opportunity for a pair, or nil.
type Scanner interface {
	Scan(ctx context.Context, pair domain.Pair) *domain.Opportunity
}

// Scorer assesses a detected opportunity. It never fails; degraded inputs
// produce a fallback signal.
type Scorer interface {
	Score(ctx context.Context, opp domain.Opportunity) domain.Signal
}

// Gate approves or denies opportunities and accounts for outcomes.
type Gate interface {
	Evaluate(ctx context.Context, opp domain.Opportunity, sig domain.Signal) domain.RiskDecision
	RecordOutcome(opp domain.Opportunity, res domain.ExecutionResult)
	Snapshot() domain.RiskState
	Pause(reason string)
	Resume()
}

// Executor carries an approved opportunity through relay submission to a
// terminal result.
type Executor interface {
	Execute(ctx context.Context, opp domain.Opportunity) domain.ExecutionResult
	InFlightCount() int
}

// FeeFeedback receives inclusion outcomes to adapt the priority fee.
type FeeFeedback interface {
	RecordOutcome(included bool)
}

// Archiver persists daily reports and raw execution logs to blob storage.
type Archiver interface {
	ArchiveSummary(ctx context.Context, summary domain.DailySummary) error
	ArchiveExecutions(ctx context.Context, day time.Time, results []domain.ExecutionResult) (int64, error)
}

// Notifier delivers operator-facing event notifications. NotifyAll skips the
// per-event subscription filter; it carries events that must always reach the
// operator.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
	NotifyAll(ctx context.Context, title, message string) error
}

// Config holds the orchestrator's loop tunables.
type Config struct {
	Mode              string
	Asset             string
	Pairs             []domain.Pair
	ScanInterval      time.Duration
	RefreshInterval   time.Duration
	OpportunityMaxAge time.Duration
	ReportInterval    time.Duration
}

// Orchestrator wires the pipeline stages together and drives them on
// tickers. Executor, fees, store, bus, archiver, and notifier are all
// optional: a nil executor turns the pipeline into detection-only mode, and
// nil reporting collaborators are skipped.
type Orchestrator struct {
	cfg       Config
	refresher Refresher
	scanner   Scanner
	scorer    Scorer
	gate      Gate
	executor  Executor
	fees      FeeFeedback
	store     domain.ExecutionStore
	bus       domain.ReportBus
	archiver  Archiver
	notifier  Notifier
	dedup     *routeDedup
	logger    *slog.Logger

	mu           sync.Mutex
	running      bool
	startedAt    time.Time
	totalExecs   int64
	successExecs int64
	totalProfit  float64
	lastReportAt time.Time
	lastDay      string // YYYY-MM-DD of the current accounting day

	now func() time.Time
}

// New creates an Orchestrator. refresher, scanner, scorer, and gate are
// required; the remaining collaborators may be nil.
func New(
	cfg Config,
	refresher Refresher,
	scanner Scanner,
	scorer Scorer,
	gate Gate,
	executor Executor,
	logger *slog.Logger,
) *Orchestrator {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = 2 * time.Second
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = time.Second
	}
	if cfg.OpportunityMaxAge <= 0 {
		cfg.OpportunityMaxAge = 10 * time.Second
	}
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = time.Hour
	}
	return &Orchestrator{
		cfg:       cfg,
		refresher: refresher,
		scanner:   scanner,
		scorer:    scorer,
		gate:      gate,
		executor:  executor,
		dedup:     newRouteDedup(cfg.OpportunityMaxAge),
		logger:    logger.With(slog.String("component", "orchestrator")),
		now:       time.Now,
	}
}

// WithFeeFeedback attaches priority-fee adaptation.
func (o *Orchestrator) WithFeeFeedback(f FeeFeedback) *Orchestrator {
	o.fees = f
	return o
}

// WithStore attaches execution persistence.
func (o *Orchestrator) WithStore(s domain.ExecutionStore) *Orchestrator {
	o.store = s
	return o
}

// WithBus attaches the report bus.
func (o *Orchestrator) WithBus(b domain.ReportBus) *Orchestrator {
	o.bus = b
	return o
}

// WithArchiver attaches blob archival of daily summaries.
func (o *Orchestrator) WithArchiver(a Archiver) *Orchestrator {
	o.archiver = a
	return o
}

// WithNotifier attaches operator notifications.
func (o *Orchestrator) WithNotifier(n Notifier) *Orchestrator {
	o.notifier = n
	return o
}

// Run drives all loops until ctx is cancelled. It returns ctx.Err() on
// shutdown, or the first loop error otherwise. Calling Run while already
// running is a logged no-op.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		o.logger.Warn("already running, ignoring start")
		return nil
	}
	o.running = true
	o.startedAt = o.now()
	o.lastDay = o.startedAt.UTC().Format("2006-01-02")
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	o.logger.Info("starting",
		slog.String("mode", o.cfg.Mode),
		slog.Int("pairs", len(o.cfg.Pairs)),
		slog.Bool("execution_enabled", o.executor != nil),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return o.refreshLoop(ctx) })
	g.Go(func() error { return o.scanLoop(ctx) })
	g.Go(func() error { return o.reportLoop(ctx) })
	return g.Wait()
}

// Pause stops approvals until Resume is called and notifies the operator.
func (o *Orchestrator) Pause(ctx context.Context, reason string) {
	o.gate.Pause(reason)
	o.notify(ctx, "paused", "Trading paused", reason)
}

// Resume lifts a pause and notifies the operator.
func (o *Orchestrator) Resume(ctx context.Context) {
	o.gate.Resume()
	o.notify(ctx, "resumed", "Trading resumed", "risk gate active")
}

// Status returns an aggregate snapshot of the orchestrator's state.
func (o *Orchestrator) Status() domain.BotStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := domain.BotStatus{
		Running:              o.running,
		Mode:                 o.cfg.Mode,
		TotalExecutions:      o.totalExecs,
		SuccessfulExecutions: o.successExecs,
		TotalProfit:          o.totalProfit,
		Risk:                 o.gate.Snapshot(),
		LastReportAt:         o.lastReportAt,
	}
	if o.running {
		st.UptimeSeconds = int64(o.now().Sub(o.startedAt).Seconds())
	}
	if o.executor != nil {
		st.InFlight = o.executor.InFlightCount()
	}
	return st
}

func (o *Orchestrator) refreshLoop(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.RefreshInterval)
	defer ticker.Stop()

	o.refresher.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			o.refresher.Refresh(ctx)
		}
	}
}

func (o *Orchestrator) scanLoop(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			o.scanOnce(ctx)
		}
	}
}

// scanOnce runs the full pipeline across all tracked pairs. Each pair's
// opportunity is consumed exactly once; a denied or expired opportunity is
// dropped, never retried.
func (o *Orchestrator) scanOnce(ctx context.Context) {
	for _, pair := range o.cfg.Pairs {
		opp := o.scanner.Scan(ctx, pair)
		if opp == nil {
			continue
		}

		if o.dedup.isDuplicate(*opp) {
			o.logger.Debug("route recently acted on",
				slog.String("pair", pair.String()),
				slog.String("buy_venue", opp.Route.BuyVenue),
				slog.String("sell_venue", opp.Route.SellVenue),
			)
			continue
		}

		sig := o.scorer.Score(ctx, *opp)
		dec := o.gate.Evaluate(ctx, *opp, sig)
		if !dec.Approved {
			o.logger.Debug("opportunity denied",
				slog.String("opportunity_id", opp.ID),
				slog.String("pair", pair.String()),
				slog.Float64("risk_score", dec.RiskScore),
				slog.String("reason", dec.Reason),
			)
			continue
		}

		o.publish(ctx, OpportunityChannel, opp)

		if o.executor == nil {
			o.logger.Info("opportunity approved (detection only)",
				slog.String("opportunity_id", opp.ID),
				slog.String("pair", pair.String()),
				slog.Float64("estimated_profit", opp.EstimatedProfit),
				slog.String("buy_venue", opp.Route.BuyVenue),
				slog.String("sell_venue", opp.Route.SellVenue),
			)
			continue
		}

		// Prices move under us while scoring and gating ran.
		if opp.Expired(o.now(), o.cfg.OpportunityMaxAge) {
			o.logger.Warn("opportunity expired before execution",
				slog.String("opportunity_id", opp.ID),
				slog.String("pair", pair.String()),
			)
			continue
		}

		o.execute(ctx, *opp)
	}
}

func (o *Orchestrator) execute(ctx context.Context, opp domain.Opportunity) {
	wasPaused := o.gate.Snapshot().IsPaused

	res := o.executor.Execute(ctx, opp)

	o.gate.RecordOutcome(opp, res)
	if o.fees != nil {
		o.fees.RecordOutcome(res.Success)
	}

	// A landed trade may settle before realized profit is observable; book
	// the estimate then, matching the risk gate's daily accounting.
	profit := res.ObservedProfit
	if res.Success && profit == 0 {
		profit = opp.EstimatedProfit
	}

	o.mu.Lock()
	o.totalExecs++
	if res.Success {
		o.successExecs++
	}
	o.totalProfit += profit
	o.mu.Unlock()

	if res.Success {
		o.logger.Info("execution landed",
			slog.String("opportunity_id", res.OpportunityID),
			slog.String("settlement_ref", res.SettlementRef),
			slog.Float64("observed_profit", res.ObservedProfit),
		)
	} else {
		o.logger.Warn("execution failed",
			slog.String("opportunity_id", res.OpportunityID),
			slog.String("reason", res.Reason),
		)
		o.notify(ctx, "error", "Execution failed",
			fmt.Sprintf("opportunity %s: %s", res.OpportunityID, res.Reason))
	}

	// The circuit breaker tripping must always reach the operator, even
	// when the "paused" event is not subscribed.
	if snap := o.gate.Snapshot(); snap.IsPaused && !wasPaused {
		o.notifyAll(ctx, "Trading auto-paused", snap.PauseReason)
	}

	if o.store != nil {
		if err := o.store.Insert(ctx, res); err != nil {
			o.logger.Error("persist execution failed",
				slog.String("opportunity_id", res.OpportunityID),
				slog.String("error", err.Error()),
			)
		}
	}
	o.publishExecution(ctx, res)
}

func (o *Orchestrator) reportLoop(ctx context.Context) error {
	if o.store == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(o.cfg.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			o.reportOnce(ctx)
		}
	}
}

// reportOnce publishes the running day's summary and, on a UTC day rollover,
// archives and announces the completed day.
func (o *Orchestrator) reportOnce(ctx context.Context) {
	now := o.now().UTC()

	o.mu.Lock()
	prevDay := o.lastDay
	today := now.Format("2006-01-02")
	rolled := today != prevDay
	if rolled {
		o.lastDay = today
	}
	o.mu.Unlock()

	if rolled {
		o.closeDay(ctx, prevDay)
	}

	summary, err := o.store.SummarizeDay(ctx, now)
	if err != nil {
		o.logger.Error("daily summary failed", slog.String("error", err.Error()))
		return
	}
	o.publish(ctx, ReportChannel, summary)

	o.mu.Lock()
	o.lastReportAt = o.now()
	o.mu.Unlock()
}

// closeDay produces the final summary for a completed UTC day.
func (o *Orchestrator) closeDay(ctx context.Context, day string) {
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		o.logger.Error("bad accounting day", slog.String("day", day))
		return
	}
	summary, err := o.store.SummarizeDay(ctx, t)
	if err != nil {
		o.logger.Error("day close summary failed",
			slog.String("day", day),
			slog.String("error", err.Error()),
		)
		return
	}

	if o.archiver != nil {
		if err := o.archiver.ArchiveSummary(ctx, summary); err != nil {
			o.logger.Error("archive summary failed",
				slog.String("day", day),
				slog.String("error", err.Error()),
			)
		}
		results, err := o.store.ListDay(ctx, t)
		if err != nil {
			o.logger.Error("day execution listing failed",
				slog.String("day", day),
				slog.String("error", err.Error()),
			)
		} else if n, err := o.archiver.ArchiveExecutions(ctx, t, results); err != nil {
			o.logger.Error("archive executions failed",
				slog.String("day", day),
				slog.String("error", err.Error()),
			)
		} else if n > 0 {
			o.logger.Info("executions archived",
				slog.String("day", day),
				slog.Int64("count", n),
			)
		}
	}
	o.notify(ctx, "daily_summary", "Daily summary "+day,
		fmt.Sprintf("executions=%d successes=%d profit=%.4f",
			summary.Executions, summary.Successes, summary.TotalProfit))
	o.logger.Info("day closed",
		slog.String("day", day),
		slog.Int64("executions", summary.Executions),
		slog.Float64("total_profit", summary.TotalProfit),
	)
}

func (o *Orchestrator) publish(ctx context.Context, channel string, v any) {
	if o.bus == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		o.logger.Error("marshal report failed", slog.String("error", err.Error()))
		return
	}
	if err := o.bus.Publish(ctx, channel, payload); err != nil {
		o.logger.Warn("publish report failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

// publishExecution fans an execution outcome out to live subscribers and
// appends it to the durable execution stream, so restarted consumers can
// replay recent outcomes.
func (o *Orchestrator) publishExecution(ctx context.Context, res domain.ExecutionResult) {
	if o.bus == nil {
		return
	}
	payload, err := json.Marshal(res)
	if err != nil {
		o.logger.Error("marshal execution failed", slog.String("error", err.Error()))
		return
	}
	if err := o.bus.Publish(ctx, ExecutionChannel, payload); err != nil {
		o.logger.Warn("publish execution failed", slog.String("error", err.Error()))
	}
	if err := o.bus.StreamAppend(ctx, ExecutionChannel, payload); err != nil {
		o.logger.Warn("stream execution failed", slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) notify(ctx context.Context, event, title, message string) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(ctx, event, title, message); err != nil {
		o.logger.Warn("notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (o *Orchestrator) notifyAll(ctx context.Context, title, message string) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.NotifyAll(ctx, title, message); err != nil {
		o.logger.Warn("broadcast notification failed", slog.String("error", err.Error()))
	}
}
