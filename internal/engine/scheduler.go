package engine

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/metrics"
)

// Scheduler drives the market's periodic work. Each cadence runs on its
// own ticker goroutine, so ticks of one kind never overlap while different
// kinds may interleave.
type Scheduler struct {
	market           *Market
	snapshotInterval time.Duration
	metrics          *metrics.Metrics
	logger           *slog.Logger
}

// NewScheduler creates a Scheduler. A non-positive snapshotInterval
// disables instrument snapshots.
func NewScheduler(market *Market, snapshotInterval time.Duration, m *metrics.Metrics, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		market:           market,
		snapshotInterval: snapshotInterval,
		metrics:          m,
		logger:           logger,
	}
}

// Run blocks until ctx is cancelled. Pricing, matching and news intervals
// are re-read from the market parameters after every tick, so a parameter
// update takes effect without a restart.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.loop(ctx, "pricing",
			func(p domain.MarketParameters) time.Duration { return p.PricingInterval },
			func() { _ = s.market.PricingTick() },
		)
	})
	g.Go(func() error {
		return s.loop(ctx, "matching",
			func(p domain.MarketParameters) time.Duration { return p.MatchingInterval },
			func() { s.market.MatchingTick() },
		)
	})
	g.Go(func() error {
		return s.loop(ctx, "news",
			func(p domain.MarketParameters) time.Duration { return p.NewsInterval },
			func() { s.market.NewsTick() },
		)
	})
	if s.snapshotInterval > 0 {
		g.Go(func() error {
			return s.loop(ctx, "snapshot",
				func(domain.MarketParameters) time.Duration { return s.snapshotInterval },
				s.market.SnapshotTick,
			)
		})
	}

	s.logger.Info("scheduler started")
	err := g.Wait()
	s.logger.Info("scheduler stopped")
	return err
}

func (s *Scheduler) loop(ctx context.Context, kind string, interval func(domain.MarketParameters) time.Duration, tick func()) error {
	current := interval(s.market.Parameters())
	ticker := time.NewTicker(current)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			start := time.Now()
			tick()
			s.metrics.ObserveTick(kind, time.Since(start))

			if next := interval(s.market.Parameters()); next != current {
				s.logger.Info("tick interval changed",
					slog.String("kind", kind),
					slog.Duration("interval", next),
				)
				ticker.Reset(next)
				current = next
			}
		}
	}
}
