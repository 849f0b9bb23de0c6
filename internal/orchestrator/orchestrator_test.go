package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LimitlessJacko/LimitlessFlashBot/internal/domain"
)

type stubRefresher struct{ calls int }

func (r *stubRefresher) Refresh(context.Context) { r.calls++ }

type stubScanner struct {
	opp *domain.Opportunity
}

func (s *stubScanner) Scan(_ context.Context, pair domain.Pair) *domain.Opportunity {
	if s.opp == nil {
		return nil
	}
	opp := *s.opp
	opp.Pair = pair
	return &opp
}

type stubScorer struct{ sig domain.Signal }

func (s *stubScorer) Score(context.Context, domain.Opportunity) domain.Signal { return s.sig }

type stubGate struct {
	decision       domain.RiskDecision
	outcomes       []domain.ExecutionResult
	paused         bool
	reason         string
	pauseOnFailure bool
}

func (g *stubGate) Evaluate(context.Context, domain.Opportunity, domain.Signal) domain.RiskDecision {
	return g.decision
}

func (g *stubGate) RecordOutcome(_ domain.Opportunity, res domain.ExecutionResult) {
	g.outcomes = append(g.outcomes, res)
	if g.pauseOnFailure && !res.Success {
		g.paused, g.reason = true, "consecutive failures"
	}
}

func (g *stubGate) Snapshot() domain.RiskState {
	return domain.RiskState{IsPaused: g.paused, PauseReason: g.reason}
}

func (g *stubGate) Pause(reason string) { g.paused, g.reason = true, reason }
func (g *stubGate) Resume()             { g.paused, g.reason = false, "" }

type stubExecutor struct {
	result   domain.ExecutionResult
	executed []domain.Opportunity
}

func (e *stubExecutor) Execute(_ context.Context, opp domain.Opportunity) domain.ExecutionResult {
	e.executed = append(e.executed, opp)
	res := e.result
	res.OpportunityID = opp.ID
	res.Asset = opp.Asset
	return res
}

func (e *stubExecutor) InFlightCount() int { return 0 }

type stubFees struct{ outcomes []bool }

func (f *stubFees) RecordOutcome(included bool) { f.outcomes = append(f.outcomes, included) }

type stubBus struct {
	mu       sync.Mutex
	messages map[string][][]byte
	streamed map[string][][]byte
}

func (b *stubBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.messages == nil {
		b.messages = make(map[string][][]byte)
	}
	b.messages[channel] = append(b.messages[channel], payload)
	return nil
}

func (b *stubBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.streamed == nil {
		b.streamed = make(map[string][][]byte)
	}
	b.streamed[stream] = append(b.streamed[stream], payload)
	return nil
}

func (b *stubBus) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages[channel])
}

func (b *stubBus) streamCount(stream string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.streamed[stream])
}

type stubStore struct {
	inserted   []domain.ExecutionResult
	summary    domain.DailySummary
	summaryErr error
	summarized []string // YYYY-MM-DD per call
	dayResults []domain.ExecutionResult
	listedDays []string
}

func (s *stubStore) Insert(_ context.Context, res domain.ExecutionResult) error {
	s.inserted = append(s.inserted, res)
	return nil
}

func (s *stubStore) ListRecent(_ context.Context, limit int) ([]domain.ExecutionResult, error) {
	if limit > 0 && limit < len(s.inserted) {
		return s.inserted[:limit], nil
	}
	return s.inserted, nil
}

func (s *stubStore) ListDay(_ context.Context, day time.Time) ([]domain.ExecutionResult, error) {
	s.listedDays = append(s.listedDays, day.UTC().Format("2006-01-02"))
	return s.dayResults, nil
}

func (s *stubStore) SummarizeDay(_ context.Context, day time.Time) (domain.DailySummary, error) {
	s.summarized = append(s.summarized, day.UTC().Format("2006-01-02"))
	if s.summaryErr != nil {
		return domain.DailySummary{}, s.summaryErr
	}
	return s.summary, nil
}

type stubNotifier struct {
	events     []string
	broadcasts []string // titles delivered regardless of event filters
}

func (n *stubNotifier) Notify(_ context.Context, event, _, _ string) error {
	n.events = append(n.events, event)
	return nil
}

func (n *stubNotifier) NotifyAll(_ context.Context, title, _ string) error {
	n.broadcasts = append(n.broadcasts, title)
	return nil
}

type stubArchiver struct {
	archived      []domain.DailySummary
	executionDays []string
	executions    [][]domain.ExecutionResult
}

func (a *stubArchiver) ArchiveSummary(_ context.Context, s domain.DailySummary) error {
	a.archived = append(a.archived, s)
	return nil
}

func (a *stubArchiver) ArchiveExecutions(_ context.Context, day time.Time, results []domain.ExecutionResult) (int64, error) {
	a.executionDays = append(a.executionDays, day.UTC().Format("2006-01-02"))
	a.executions = append(a.executions, results)
	return int64(len(results)), nil
}

func testOpp() *domain.Opportunity {
	return &domain.Opportunity{
		ID:                  "opp-1",
		Asset:               "USDC",
		Amount:              1000,
		Route:               domain.Route{BuyVenue: "jupiter", SellVenue: "raydium"},
		EstimatedProfit:     5,
		MinAcceptableProfit: 4,
		EstimatedFee:        1,
		DiscoveredAt:        time.Now().UTC(),
	}
}

func testConfig() Config {
	return Config{
		Mode:  "trade",
		Asset: "USDC",
		Pairs: []domain.Pair{{Base: "SOL", Quote: "USDC"}},
	}
}

func newTestOrchestrator(scan *stubScanner, gate *stubGate, exec Executor) *Orchestrator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	scorer := &stubScorer{sig: domain.Signal{Strength: 0.8, Confidence: 0.9}}
	return New(testConfig(), &stubRefresher{}, scan, scorer, gate, exec, logger)
}

func TestScanOnce_ExecutesApprovedOpportunity(t *testing.T) {
	scan := &stubScanner{opp: testOpp()}
	gate := &stubGate{decision: domain.RiskDecision{Approved: true, Reason: "approved"}}
	exec := &stubExecutor{result: domain.ExecutionResult{Success: true, ObservedProfit: 4.5}}
	fees := &stubFees{}
	bus := &stubBus{}
	store := &stubStore{}

	o := newTestOrchestrator(scan, gate, exec).
		WithFeeFeedback(fees).
		WithBus(bus).
		WithStore(store)

	o.scanOnce(context.Background())

	require.Len(t, exec.executed, 1)
	assert.Equal(t, "SOL", exec.executed[0].Pair.Base)

	require.Len(t, gate.outcomes, 1)
	assert.True(t, gate.outcomes[0].Success)
	assert.Equal(t, []bool{true}, fees.outcomes)

	assert.Equal(t, 1, bus.count(OpportunityChannel))
	assert.Equal(t, 1, bus.count(ExecutionChannel))
	require.Len(t, store.inserted, 1)
	assert.Equal(t, "opp-1", store.inserted[0].OpportunityID)

	st := o.Status()
	assert.Equal(t, int64(1), st.TotalExecutions)
	assert.Equal(t, int64(1), st.SuccessfulExecutions)
	assert.InDelta(t, 4.5, st.TotalProfit, 1e-9)
}

func TestScanOnce_DeniedOpportunityIsDropped(t *testing.T) {
	scan := &stubScanner{opp: testOpp()}
	gate := &stubGate{decision: domain.RiskDecision{Approved: false, Reason: "risk score 0.85 exceeds threshold"}}
	exec := &stubExecutor{}
	bus := &stubBus{}

	o := newTestOrchestrator(scan, gate, exec).WithBus(bus)
	o.scanOnce(context.Background())

	assert.Empty(t, exec.executed)
	assert.Zero(t, bus.count(OpportunityChannel))
	assert.Equal(t, int64(0), o.Status().TotalExecutions)
}

func TestScanOnce_NilOpportunityIsSkipped(t *testing.T) {
	scan := &stubScanner{opp: nil}
	gate := &stubGate{decision: domain.RiskDecision{Approved: true}}
	exec := &stubExecutor{}

	o := newTestOrchestrator(scan, gate, exec)
	o.scanOnce(context.Background())

	assert.Empty(t, exec.executed)
}

func TestScanOnce_SameRouteActedOnOncePerWindow(t *testing.T) {
	scan := &stubScanner{opp: testOpp()}
	gate := &stubGate{decision: domain.RiskDecision{Approved: true}}
	exec := &stubExecutor{result: domain.ExecutionResult{Success: true}}

	o := newTestOrchestrator(scan, gate, exec)

	o.scanOnce(context.Background())
	o.scanOnce(context.Background())

	assert.Len(t, exec.executed, 1, "second pickup of the same route is suppressed")
}

func TestScanOnce_DetectionOnlyPublishesWithoutExecuting(t *testing.T) {
	scan := &stubScanner{opp: testOpp()}
	gate := &stubGate{decision: domain.RiskDecision{Approved: true}}
	bus := &stubBus{}

	o := newTestOrchestrator(scan, gate, nil).WithBus(bus)
	o.scanOnce(context.Background())

	assert.Equal(t, 1, bus.count(OpportunityChannel))
	assert.Zero(t, bus.count(ExecutionChannel))
	assert.Equal(t, int64(0), o.Status().TotalExecutions)
}

func TestScanOnce_ExpiredOpportunityIsNotExecuted(t *testing.T) {
	opp := testOpp()
	opp.DiscoveredAt = time.Now().UTC().Add(-time.Minute)
	scan := &stubScanner{opp: opp}
	gate := &stubGate{decision: domain.RiskDecision{Approved: true}}
	exec := &stubExecutor{}
	bus := &stubBus{}

	o := newTestOrchestrator(scan, gate, exec).WithBus(bus)
	o.scanOnce(context.Background())

	assert.Empty(t, exec.executed)
	// the approval was still published for observers
	assert.Equal(t, 1, bus.count(OpportunityChannel))
}

func TestExecute_FailureNotifiesAndBooksOutcome(t *testing.T) {
	scan := &stubScanner{opp: testOpp()}
	gate := &stubGate{decision: domain.RiskDecision{Approved: true}}
	exec := &stubExecutor{result: domain.ExecutionResult{Success: false, Reason: "not included"}}
	fees := &stubFees{}
	notifier := &stubNotifier{}

	o := newTestOrchestrator(scan, gate, exec).
		WithFeeFeedback(fees).
		WithNotifier(notifier)

	o.scanOnce(context.Background())

	require.Len(t, gate.outcomes, 1)
	assert.False(t, gate.outcomes[0].Success)
	assert.Equal(t, []bool{false}, fees.outcomes)
	assert.Equal(t, []string{"error"}, notifier.events)

	st := o.Status()
	assert.Equal(t, int64(1), st.TotalExecutions)
	assert.Equal(t, int64(0), st.SuccessfulExecutions)
}

func TestExecute_SuccessWithoutObservedProfitBooksEstimate(t *testing.T) {
	scan := &stubScanner{opp: testOpp()}
	gate := &stubGate{decision: domain.RiskDecision{Approved: true}}
	exec := &stubExecutor{result: domain.ExecutionResult{Success: true, ObservedProfit: 0}}

	o := newTestOrchestrator(scan, gate, exec)
	o.scanOnce(context.Background())

	// settled before realized profit was observable; the estimate is booked
	assert.InDelta(t, 5, o.Status().TotalProfit, 1e-9)
}

func TestExecute_AutoPauseAlwaysReachesOperator(t *testing.T) {
	scan := &stubScanner{opp: testOpp()}
	gate := &stubGate{decision: domain.RiskDecision{Approved: true}, pauseOnFailure: true}
	exec := &stubExecutor{result: domain.ExecutionResult{Success: false, Reason: "bundle not included"}}
	notifier := &stubNotifier{}

	o := newTestOrchestrator(scan, gate, exec).WithNotifier(notifier)
	o.scanOnce(context.Background())

	assert.Equal(t, []string{"error"}, notifier.events)
	assert.Equal(t, []string{"Trading auto-paused"}, notifier.broadcasts)
}

func TestExecute_OperatorPauseIsNotBroadcast(t *testing.T) {
	scan := &stubScanner{opp: testOpp()}
	gate := &stubGate{decision: domain.RiskDecision{Approved: true}, paused: true, reason: "operator pause"}
	exec := &stubExecutor{result: domain.ExecutionResult{Success: true}}
	notifier := &stubNotifier{}

	o := newTestOrchestrator(scan, gate, exec).WithNotifier(notifier)
	o.scanOnce(context.Background())

	assert.Empty(t, notifier.broadcasts, "an already-paused gate is not re-announced")
}

func TestExecute_OutcomeIsStreamedDurably(t *testing.T) {
	scan := &stubScanner{opp: testOpp()}
	gate := &stubGate{decision: domain.RiskDecision{Approved: true}}
	exec := &stubExecutor{result: domain.ExecutionResult{Success: true, ObservedProfit: 4.5}}
	bus := &stubBus{}

	o := newTestOrchestrator(scan, gate, exec).WithBus(bus)
	o.scanOnce(context.Background())

	require.Equal(t, 1, bus.count(ExecutionChannel))
	require.Equal(t, 1, bus.streamCount(ExecutionChannel))
	assert.Equal(t, bus.messages[ExecutionChannel][0], bus.streamed[ExecutionChannel][0])
}

func TestReportOnce_PublishesRunningDaySummary(t *testing.T) {
	gate := &stubGate{}
	store := &stubStore{summary: domain.DailySummary{Date: "2026-02-10", Executions: 12, Successes: 9, TotalProfit: 42.5}}
	bus := &stubBus{}

	o := newTestOrchestrator(&stubScanner{}, gate, nil).
		WithStore(store).
		WithBus(bus)
	o.now = func() time.Time { return time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC) }
	o.lastDay = "2026-02-10"

	o.reportOnce(context.Background())

	require.Equal(t, 1, bus.count(ReportChannel))
	var got domain.DailySummary
	require.NoError(t, json.Unmarshal(bus.messages[ReportChannel][0], &got))
	assert.Equal(t, int64(12), got.Executions)
	assert.False(t, o.Status().LastReportAt.IsZero())
}

func TestReportOnce_DayRolloverArchivesAndNotifies(t *testing.T) {
	gate := &stubGate{}
	store := &stubStore{
		summary:    domain.DailySummary{Date: "2026-02-10", Executions: 3},
		dayResults: []domain.ExecutionResult{{OpportunityID: "opp-1", Success: true}},
	}
	archiver := &stubArchiver{}
	notifier := &stubNotifier{}
	bus := &stubBus{}

	o := newTestOrchestrator(&stubScanner{}, gate, nil).
		WithStore(store).
		WithBus(bus).
		WithArchiver(archiver).
		WithNotifier(notifier)
	o.now = func() time.Time { return time.Date(2026, 2, 11, 0, 30, 0, 0, time.UTC) }
	o.lastDay = "2026-02-10"

	o.reportOnce(context.Background())

	// yesterday is summarized for the close, today for the running report
	assert.Equal(t, []string{"2026-02-10", "2026-02-11"}, store.summarized)
	assert.Len(t, archiver.archived, 1)
	require.Equal(t, []string{"2026-02-10"}, archiver.executionDays)
	require.Len(t, archiver.executions, 1)
	assert.Equal(t, "opp-1", archiver.executions[0][0].OpportunityID)
	assert.Equal(t, []string{"daily_summary"}, notifier.events)
	assert.Equal(t, "2026-02-11", o.lastDay)
}

func TestReportOnce_SummaryErrorIsNonFatal(t *testing.T) {
	gate := &stubGate{}
	store := &stubStore{summaryErr: errors.New("pg down")}
	bus := &stubBus{}

	o := newTestOrchestrator(&stubScanner{}, gate, nil).
		WithStore(store).
		WithBus(bus)
	o.lastDay = time.Now().UTC().Format("2006-01-02")

	o.reportOnce(context.Background())
	assert.Zero(t, bus.count(ReportChannel))
}

func TestPauseResumeDelegateToGateAndNotify(t *testing.T) {
	gate := &stubGate{}
	notifier := &stubNotifier{}
	o := newTestOrchestrator(&stubScanner{}, gate, nil).WithNotifier(notifier)

	o.Pause(context.Background(), "operator pause")
	assert.True(t, gate.paused)
	assert.Equal(t, "operator pause", gate.reason)

	o.Resume(context.Background())
	assert.False(t, gate.paused)
	assert.Equal(t, []string{"paused", "resumed"}, notifier.events)
}

func TestRun_SecondStartIsBenignNoOp(t *testing.T) {
	o := newTestOrchestrator(&stubScanner{}, &stubGate{}, nil)
	o.mu.Lock()
	o.running = true
	o.mu.Unlock()

	require.NoError(t, o.Run(context.Background()))
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	refresher := &stubRefresher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig()
	cfg.RefreshInterval = 10 * time.Millisecond
	cfg.ScanInterval = 10 * time.Millisecond
	o := New(cfg, refresher, &stubScanner{}, &stubScorer{}, &stubGate{}, nil, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := o.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, refresher.calls, 1)
	assert.False(t, o.Status().Running)
}
