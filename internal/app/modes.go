package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LimitlessJacko/LimitlessFlashBot/internal/crypto"
	"github.com/LimitlessJacko/LimitlessFlashBot/internal/domain"
	"github.com/LimitlessJacko/LimitlessFlashBot/internal/executor"
	"github.com/LimitlessJacko/LimitlessFlashBot/internal/feed"
	"github.com/LimitlessJacko/LimitlessFlashBot/internal/orchestrator"
	"github.com/LimitlessJacko/LimitlessFlashBot/internal/quote"
	"github.com/LimitlessJacko/LimitlessFlashBot/internal/relay"
	"github.com/LimitlessJacko/LimitlessFlashBot/internal/risk"
	"github.com/LimitlessJacko/LimitlessFlashBot/internal/scanner"
	"github.com/LimitlessJacko/LimitlessFlashBot/internal/server"
	"github.com/LimitlessJacko/LimitlessFlashBot/internal/signal"
	"github.com/LimitlessJacko/LimitlessFlashBot/internal/venue"
)

// pipeline bundles the detection-side components shared by the trade and
// scan modes.
type pipeline struct {
	pairs  []domain.Pair
	venues []domain.VenueQuoter
	feeds  []*feed.VenueWSFeed
	agg    *quote.Aggregator
	scan   *scanner.Scanner
	scorer *signal.Scorer
	gate   *risk.Gate
	relay  *relay.Client
	fees   *relay.FeeEstimator
}

// buildPipeline constructs venues, the aggregator, the scanner, the scorer,
// and the risk gate from configuration.
func (a *App) buildPipeline(deps *Dependencies) (*pipeline, error) {
	cfg := a.cfg

	pairs := make([]domain.Pair, 0, len(cfg.Trading.Pairs))
	for _, s := range cfg.Trading.Pairs {
		p, err := domain.ParsePair(s)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		pairs = append(pairs, p)
	}

	// Venue rate limiting is opt-in; a zero limit disables it.
	var limiter domain.RateLimiter
	rate := cfg.Trading.VenueRateLimit
	if rate > 0 {
		limiter = deps.RateLimiter
	}

	venues := make([]domain.VenueQuoter, 0, len(cfg.Venues))
	feeds := make([]*feed.VenueWSFeed, 0, len(cfg.Venues))
	for _, vc := range cfg.Venues {
		switch vc.Kind {
		case "router":
			venues = append(venues, venue.NewRouterClient(vc.Name, vc.BaseURL, vc.FeeBps, limiter, rate))
		case "amm":
			source := venue.NewHTTPReserveSource(vc.Name, vc.BaseURL, limiter, rate)
			venues = append(venues, venue.NewAMMVenue(vc.Name, source, vc.FeeBps))
		default:
			return nil, fmt.Errorf("app: unknown venue kind %q", vc.Kind)
		}
	}

	agg := quote.NewAggregator(venues, pairs, quote.AggregatorConfig{
		VenueTimeout: cfg.Trading.QuoteTimeout.Duration,
		MaxQuoteAge:  cfg.Trading.MaxQuoteAge.Duration,
	}, deps.PriceCache, a.logger)

	// Streaming price feeds supplement the polling refresh for venues that
	// expose a WebSocket endpoint.
	for _, vc := range cfg.Venues {
		if vc.WsURL != "" {
			feeds = append(feeds, feed.NewVenueWSFeed(vc.WsURL, pairs, agg, a.logger))
		}
	}

	var auth *crypto.RelayAuth
	if cfg.Relay.ApiKey != "" {
		auth = &crypto.RelayAuth{Key: cfg.Relay.ApiKey, Secret: cfg.Relay.ApiSecret}
	}
	relayClient := relay.NewClient(cfg.Relay.BaseURL, auth)
	feeEst := relay.NewFeeEstimator(relayClient, a.logger)

	scan := scanner.New(venues, feeEst, scanner.Config{
		MinTradeSize:  cfg.Trading.MinTradeSize,
		MaxTradeSize:  cfg.Trading.MaxTradeSize,
		LadderSteps:   cfg.Trading.LadderSteps,
		MinProfit:     cfg.Trading.MinProfit,
		ProfitEpsilon: cfg.Trading.ProfitEpsilon,
		QuoteTimeout:  cfg.Trading.QuoteTimeout.Duration,
	}, a.logger)

	var remote domain.Scorer
	if cfg.Scorer.URL != "" {
		remote = signal.NewRemoteScorer(cfg.Scorer.URL)
	}
	scorer := signal.NewScorer(remote, agg, signal.ScorerConfig{
		Timeout:          cfg.Scorer.Timeout.Duration,
		VolatilityWindow: cfg.Scorer.VolatilityWindow,
		MaxTradeSize:     cfg.Trading.MaxTradeSize,
	}, a.logger)

	market := orchestrator.NewMarket(agg, venues, a.logger)
	gate := risk.NewGate(risk.Config{
		MinProfit:               cfg.Risk.MinProfit,
		MaxDailyLoss:            cfg.Risk.MaxDailyLoss,
		MaxTradeLoss:            cfg.Risk.MaxTradeLoss,
		MaxSlippageBps:          cfg.Risk.MaxSlippageBps,
		MaxFee:                  cfg.Risk.MaxFee,
		MaxLiquidityUtilization: cfg.Risk.MaxLiquidityUtilization,
		Cooldown:                cfg.Risk.Cooldown.Duration,
		MaxConsecutiveFailures:  cfg.Risk.MaxConsecutiveFailures,
		VolatilityCeiling:       cfg.Risk.VolatilityCeiling,
		VolatilityWindow:        cfg.Scorer.VolatilityWindow,
		LiquidityFloor:          cfg.Risk.LiquidityFloor,
		ApprovalThreshold:       cfg.Risk.ApprovalThreshold,
		ConfidenceFloor:         cfg.Risk.ConfidenceFloor,
		AutoResumeAfter:         cfg.Risk.AutoResumeAfter.Duration,
	}, market, a.logger)

	return &pipeline{
		pairs:  pairs,
		venues: venues,
		feeds:  feeds,
		agg:    agg,
		scan:   scan,
		scorer: scorer,
		gate:   gate,
		relay:  relayClient,
		fees:   feeEst,
	}, nil
}

// newOrchestrator assembles an orchestrator over the pipeline. exec may be
// nil for detection-only operation.
func (a *App) newOrchestrator(p *pipeline, deps *Dependencies, exec orchestrator.Executor) *orchestrator.Orchestrator {
	cfg := a.cfg
	orch := orchestrator.New(orchestrator.Config{
		Mode:              cfg.Mode,
		Asset:             cfg.Trading.Asset,
		Pairs:             p.pairs,
		ScanInterval:      cfg.Trading.ScanInterval.Duration,
		RefreshInterval:   cfg.Trading.RefreshInterval.Duration,
		OpportunityMaxAge: cfg.Trading.OpportunityMaxAge.Duration,
	}, p.agg, p.scan, p.scorer, p.gate, exec, a.logger)

	orch.WithBus(deps.ReportBus).WithNotifier(deps.Notifier)
	if exec != nil {
		orch.WithFeeFeedback(p.fees)
	}
	if deps.ExecutionStore != nil {
		orch.WithStore(deps.ExecutionStore)
	}
	if deps.Archiver != nil {
		orch.WithArchiver(deps.Archiver)
	}
	return orch
}

// leaderLockTTL bounds how long a crashed instance blocks a replacement.
const leaderLockTTL = 30 * time.Second

// TradeMode runs the full loop: refresh quotes, detect opportunities, score
// and gate them, and execute approvals through the private relay. A
// distributed leader lock ensures at most one instance trades at a time.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "entering trade mode")

	lock, err := deps.LockManager.Acquire(ctx, "trade-leader", leaderLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return fmt.Errorf("app: another instance is already trading: %w", err)
		}
		return fmt.Errorf("app: leader lock: %w", err)
	}
	defer lock.Release()

	p, err := a.buildPipeline(deps)
	if err != nil {
		return err
	}

	key, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    a.cfg.Wallet.PrivateKey,
		EncryptedKeyPath: a.cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      a.cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return fmt.Errorf("app: load wallet key: %w", err)
	}
	signer, err := crypto.NewSigner(key)
	if err != nil {
		return fmt.Errorf("app: wallet signer: %w", err)
	}
	a.logger.InfoContext(ctx, "wallet loaded",
		slog.String("address", signer.Address().Hex()),
	)

	inflight := executor.NewInFlight(a.cfg.Trading.MaxInFlight)
	coord := executor.NewCoordinator(p.relay, signer, inflight, executor.Config{
		TargetSlotOffset:   uint64(a.cfg.Relay.TargetSlotOffset),
		InclusionWaitSlots: a.cfg.Relay.InclusionWaitSlots,
		StatusTimeout:      a.cfg.Relay.StatusTimeout.Duration,
		SlotInterval:       a.cfg.Relay.SlotInterval.Duration,
	}, a.logger)

	orch := a.newOrchestrator(p, deps, coord)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return orch.Run(ctx) })
	g.Go(func() error { return holdLeaderLock(ctx, lock) })
	for _, f := range p.feeds {
		g.Go(func() error { return f.Run(ctx) })
	}
	a.startHTTPServer(ctx, g, deps, orch)
	return g.Wait()
}

// holdLeaderLock keeps the leader lock alive until ctx is done. Losing the
// lock is fatal: another instance may already be submitting.
func holdLeaderLock(ctx context.Context, lock domain.Lock) error {
	ticker := time.NewTicker(leaderLockTTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := lock.Extend(ctx, leaderLockTTL); err != nil {
				return fmt.Errorf("app: leader lock lost: %w", err)
			}
		}
	}
}

// ScanMode runs detection only: opportunities are scanned, scored, and
// gated, then logged and published without execution.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "entering scan mode")

	p, err := a.buildPipeline(deps)
	if err != nil {
		return err
	}
	orch := a.newOrchestrator(p, deps, nil)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return orch.Run(ctx) })
	for _, f := range p.feeds {
		g.Go(func() error { return f.Run(ctx) })
	}
	a.startHTTPServer(ctx, g, deps, orch)
	return g.Wait()
}

// MonitorMode consumes the report bus and logs everything another instance
// publishes. It runs no detection or execution of its own.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "entering monitor mode")

	channels := []string{
		orchestrator.ReportChannel,
		orchestrator.ExecutionChannel,
		orchestrator.OpportunityChannel,
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, channel := range channels {
		ch, err := deps.ReportBus.Subscribe(ctx, channel)
		if err != nil {
			return fmt.Errorf("app: subscribe %s: %w", channel, err)
		}
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case payload, ok := <-ch:
					if !ok {
						return nil
					}
					a.logger.InfoContext(ctx, "report received",
						slog.String("channel", channel),
						slog.String("payload", string(payload)),
					)
				}
			}
		})
	}
	g.Go(func() error {
		return watchPrices(ctx, deps.PriceCache, a.cfg.Trading.Pairs, a.cfg.Trading.RefreshInterval.Duration, a.logger)
	})
	return g.Wait()
}

// watchPrices periodically reads the shared price cache and logs the latest
// mid per pair, so a monitor instance reflects what the trading instance sees
// even between bus reports.
func watchPrices(ctx context.Context, cache domain.PriceCache, pairs []string, interval time.Duration, logger *slog.Logger) error {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, pair := range pairs {
				price, ts, err := cache.GetPrice(ctx, pair)
				if err != nil {
					if errors.Is(err, domain.ErrNotFound) {
						continue
					}
					logger.WarnContext(ctx, "price cache read failed",
						slog.String("pair", pair),
						slog.String("error", err.Error()),
					)
					continue
				}
				logger.InfoContext(ctx, "latest mid",
					slog.String("pair", pair),
					slog.Float64("price", price),
					slog.Duration("age", time.Since(ts)),
				)
			}
		}
	}
}

// startHTTPServer adds the operator API goroutines to the given errgroup
// when the server is enabled. The server is shut down gracefully when the
// context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, orch *orchestrator.Orchestrator) {
	if !a.cfg.Server.Enabled {
		return
	}

	srv := server.New(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, orch, orch, deps.RateLimiter, deps.ExecutionStore, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
