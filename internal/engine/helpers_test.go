package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/efreitasn/marketsim/internal/domain"
)

// scriptedSource returns the scripted draws in order, then 0.5 forever.
type scriptedSource struct {
	mu    sync.Mutex
	draws []float64
}

func script(draws ...float64) *scriptedSource {
	return &scriptedSource{draws: draws}
}

func (s *scriptedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.draws) == 0 {
		return 0.5
	}
	v := s.draws[0]
	s.draws = s.draws[1:]
	return v
}

type published struct {
	topic   string
	symbol  string
	payload any
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []published
}

func (b *recordingBroadcaster) Publish(topic, symbol string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, published{topic, symbol, payload})
}

func (b *recordingBroadcaster) byTopic(topic string) []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []published
	for _, e := range b.events {
		if e.topic == topic {
			out = append(out, e)
		}
	}
	return out
}

type recordingSink struct {
	mu        sync.Mutex
	orders    []domain.Order
	txs       []domain.Transaction
	statuses  map[string]domain.OrderStatus
	snapshots []domain.Instrument
	err       error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{statuses: make(map[string]domain.OrderStatus)}
}

func (s *recordingSink) RecordOrder(_ context.Context, o domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, o)
	return s.err
}

func (s *recordingSink) RecordTransaction(_ context.Context, tx domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = append(s.txs, tx)
	return s.err
}

func (s *recordingSink) UpdateOrderStatus(_ context.Context, id string, status domain.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[id] = status
	return s.err
}

func (s *recordingSink) SnapshotInstrument(_ context.Context, inst domain.Instrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, inst)
	return s.err
}

var (
	baseTime   = time.Date(2025, 1, 1, 9, 30, 0, 0, time.UTC)
	discardLog = slog.New(slog.NewTextHandler(io.Discard, nil))
)

// onlyRandomWalk zeroes every effect except the random walk.
func onlyRandomWalk() domain.MarketParameters {
	p := domain.DefaultParameters()
	p.MomentumFactor = 0
	p.MarketSentiment = 0
	p.OrderImpactFactor = 0
	p.TradingVolumeFactor = 0
	return p
}

type testMarket struct {
	*Market
	sink *recordingSink
	pub  *recordingBroadcaster
}

func newTestMarket(t *testing.T, src Source, listings ...domain.Listing) *testMarket {
	t.Helper()
	if len(listings) == 0 {
		listings = []domain.Listing{
			{Symbol: "AAPL", Name: "Apple Inc.", Price: 150},
			{Symbol: "MSFT", Name: "Microsoft Corporation", Price: 400},
		}
	}
	if src == nil {
		src = NewSource(42)
	}
	sink := newRecordingSink()
	pub := &recordingBroadcaster{}
	m, err := NewMarket(listings, Options{
		Source:      src,
		Sink:        sink,
		Broadcaster: pub,
		Logger:      discardLog,
		Now:         func() time.Time { return baseTime },
	})
	if err != nil {
		t.Fatalf("NewMarket: %v", err)
	}
	return &testMarket{Market: m, sink: sink, pub: pub}
}

func newOrder(symbol string, side domain.OrderSide, price float64, qty int64) domain.Order {
	return domain.Order{Symbol: symbol, Side: side, LimitPrice: price, Quantity: qty, UserID: "user-1"}
}
