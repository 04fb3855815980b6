package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/metrics"
)

func fastMarket(t *testing.T) *testMarket {
	t.Helper()
	m := newTestMarket(t, nil)
	pricing, matching, news := 5*time.Millisecond, 5*time.Millisecond, 5*time.Millisecond
	if _, err := m.SetParameters(domain.ParameterPatch{
		PricingInterval:  &pricing,
		MatchingInterval: &matching,
		NewsInterval:     &news,
	}); err != nil {
		t.Fatalf("SetParameters: %v", err)
	}
	return m
}

func TestScheduler_RunsTicksUntilCancelled(t *testing.T) {
	m := fastMarket(t)
	m.SubmitOrder(newOrder("AAPL", domain.OrderSideBuy, 200, 5))
	m.SubmitOrder(newOrder("AAPL", domain.OrderSideSell, 100, 5))

	s := NewScheduler(m.Market, 5*time.Millisecond, metrics.New(), discardLog)
	ctx, cancel := context.WithCancel(context.Background())

	var (
		wg     sync.WaitGroup
		runErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		runErr = s.Run(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hist, _ := m.GetPriceHistory("AAPL")
		txs, _ := m.RecentTransactions("AAPL", 0)
		m.sink.mu.Lock()
		snaps := len(m.sink.snapshots)
		m.sink.mu.Unlock()
		if len(hist) >= 3 && len(txs) == 1 && snaps > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	wg.Wait()

	if runErr != nil {
		t.Fatalf("Run returned %v after cancel", runErr)
	}
	if hist, _ := m.GetPriceHistory("AAPL"); len(hist) < 3 {
		t.Errorf("pricing ticks did not run, history %v", hist)
	}
	if txs, _ := m.RecentTransactions("AAPL", 0); len(txs) != 1 {
		t.Errorf("matching tick did not run, transactions %v", txs)
	}
	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	if len(m.sink.snapshots) == 0 {
		t.Error("snapshot tick did not run")
	}
}

func TestScheduler_SnapshotDisabled(t *testing.T) {
	m := fastMarket(t)
	s := NewScheduler(m.Market, 0, nil, discardLog)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run: %v", err)
	}

	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	if len(m.sink.snapshots) != 0 {
		t.Errorf("expected no snapshots, got %d", len(m.sink.snapshots))
	}
}

func TestScheduler_PicksUpIntervalChange(t *testing.T) {
	m := newTestMarket(t, nil)
	s := NewScheduler(m.Market, 0, nil, discardLog)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// Default pricing interval is a second; shorten it and expect ticks to
	// speed up once the current one fires.
	fast := 5 * time.Millisecond
	m.SetParameters(domain.ParameterPatch{PricingInterval: &fast})

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if hist, _ := m.GetPriceHistory("AAPL"); len(hist) >= 10 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if hist, _ := m.GetPriceHistory("AAPL"); len(hist) < 10 {
		t.Errorf("interval change not applied, history length %d", len(hist))
	}
}
