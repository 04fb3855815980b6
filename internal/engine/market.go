package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/metrics"
	"github.com/efreitasn/marketsim/internal/store"
)

// DefaultMarketBroadcastEvery is how many pricing ticks pass between
// full-market snapshots.
const DefaultMarketBroadcastEvery = 5

// Options configures a Market. Zero values select defaults.
type Options struct {
	Params               domain.MarketParameters
	Source               Source
	Sink                 Sink
	Broadcaster          Broadcaster
	Metrics              *metrics.Metrics
	Logger               *slog.Logger
	Now                  func() time.Time
	MarketBroadcastEvery int
	TransactionRetention int
}

// symbolState pairs an instrument with its book. mu guards both, so a
// pricing tick, a match pass, an order intake or a news shock on one
// symbol never interleave.
type symbolState struct {
	mu   sync.Mutex
	inst *domain.Instrument
	book *OrderBook
}

// BookSnapshot is a copy of the resting orders of a symbol.
type BookSnapshot struct {
	Symbol string
	Buy    []domain.Order
	Sell   []domain.Order
}

// Depth is the aggregated view of a book.
type Depth struct {
	Symbol string
	Buy    []PriceLevel
	Sell   []PriceLevel
	Spread *float64 // nil if either side is empty
}

// Market owns every instrument and order book and runs the ticks.
type Market struct {
	symbols []string // catalog order
	states  map[string]*symbolState

	paramsMu sync.RWMutex
	params   domain.MarketParameters

	rng     Source
	model   *PriceModel
	matcher *Matcher
	news    *NewsInjector

	orders *store.OrderStore
	trades *store.TransactionStore

	sink    Sink
	pub     Broadcaster
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	broadcastEvery int
	pricingTicks   atomic.Uint64
}

// NewMarket creates a market seeded from listings. Each instrument gets a
// volatility factor in [0.5, 1.3).
func NewMarket(listings []domain.Listing, opts Options) (*Market, error) {
	if len(listings) == 0 {
		return nil, errors.New("no instruments to list")
	}
	if opts.Params == (domain.MarketParameters{}) {
		opts.Params = domain.DefaultParameters()
	}
	if err := opts.Params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if opts.Source == nil {
		opts.Source = NewSource(0)
	}
	if opts.Sink == nil {
		opts.Sink = nopSink{}
	}
	if opts.Broadcaster == nil {
		opts.Broadcaster = nopBroadcaster{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MarketBroadcastEvery <= 0 {
		opts.MarketBroadcastEvery = DefaultMarketBroadcastEvery
	}

	m := &Market{
		states:         make(map[string]*symbolState, len(listings)),
		params:         opts.Params,
		rng:            opts.Source,
		model:          NewPriceModel(opts.Source),
		matcher:        NewMatcher(),
		news:           NewNewsInjector(opts.Source),
		orders:         store.NewOrderStore(),
		trades:         store.NewTransactionStore(opts.TransactionRetention),
		sink:           opts.Sink,
		pub:            opts.Broadcaster,
		metrics:        opts.Metrics,
		logger:         opts.Logger,
		now:            opts.Now,
		broadcastEvery: opts.MarketBroadcastEvery,
	}

	now := m.now()
	for _, l := range listings {
		if err := l.Validate(); err != nil {
			return nil, err
		}
		if _, dup := m.states[l.Symbol]; dup {
			return nil, fmt.Errorf("duplicate listing %s", l.Symbol)
		}
		vf := 0.5 + m.rng.Float64()*0.8
		m.states[l.Symbol] = &symbolState{
			inst: domain.NewInstrument(l, vf, now),
			book: NewOrderBook(l.Symbol),
		}
		m.symbols = append(m.symbols, l.Symbol)
	}
	return m, nil
}

// Symbols returns the listed symbols in catalog order.
func (m *Market) Symbols() []string {
	return append([]string(nil), m.symbols...)
}

func (m *Market) state(symbol string) (*symbolState, bool) {
	st, ok := m.states[symbol]
	return st, ok
}

// GetInstrument returns a copy of the instrument or
// domain.ErrInstrumentNotFound.
func (m *Market) GetInstrument(symbol string) (domain.Instrument, error) {
	st, ok := m.state(symbol)
	if !ok {
		return domain.Instrument{}, domain.ErrInstrumentNotFound
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.inst.Clone(), nil
}

// GetAllInstruments returns copies of every instrument in catalog order.
func (m *Market) GetAllInstruments() []domain.Instrument {
	out := make([]domain.Instrument, 0, len(m.symbols))
	for _, sym := range m.symbols {
		st := m.states[sym]
		st.mu.Lock()
		out = append(out, st.inst.Clone())
		st.mu.Unlock()
	}
	return out
}

// GetPriceHistory returns up to the 100 most recent prices, oldest first.
func (m *Market) GetPriceHistory(symbol string) ([]float64, error) {
	st, ok := m.state(symbol)
	if !ok {
		return nil, domain.ErrInstrumentNotFound
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.inst.History.Values(), nil
}

// GetOrderBook returns the resting orders of symbol. A symbol without
// orders yields empty sides.
func (m *Market) GetOrderBook(symbol string) (BookSnapshot, error) {
	st, ok := m.state(symbol)
	if !ok {
		return BookSnapshot{}, domain.ErrInstrumentNotFound
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return snapshotBook(st.book), nil
}

func snapshotBook(b *OrderBook) BookSnapshot {
	buys, sells := b.Orders()
	return BookSnapshot{Symbol: b.Symbol(), Buy: buys, Sell: sells}
}

// GetDepth returns up to n aggregated price levels per side.
func (m *Market) GetDepth(symbol string, n int) (Depth, error) {
	st, ok := m.state(symbol)
	if !ok {
		return Depth{}, domain.ErrInstrumentNotFound
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	d := Depth{Symbol: symbol, Buy: st.book.TopBuys(n), Sell: st.book.TopSells(n)}
	bestBuy, okB := st.book.BestBuy()
	bestSell, okS := st.book.BestSell()
	if okB && okS {
		spread := domain.RoundPrice(bestSell.Price - bestBuy.Price)
		d.Spread = &spread
	}
	return d, nil
}

// SubmitOrder validates an order and rests it on its book. Matching only
// happens on the matching tick, so submission never produces
// transactions. The returned order carries the assigned id.
func (m *Market) SubmitOrder(o domain.Order) (domain.Order, error) {
	st, ok := m.state(o.Symbol)
	if !ok {
		m.metrics.Order("rejected")
		return domain.Order{}, domain.ErrInvalidSymbol
	}
	if err := o.Validate(); err != nil {
		m.metrics.Order("rejected")
		return domain.Order{}, err
	}

	if o.UserID == "" {
		o.UserID = domain.AnonymousUser
	}
	o.ID = uuid.NewString()
	o.OriginalQuantity = o.Quantity
	o.Status = domain.OrderStatusActive
	o.CreatedAt = m.now()

	order := &o
	st.mu.Lock()
	st.book.Insert(order)
	m.orders.Create(order)
	accepted := *order
	book := snapshotBook(st.book)
	st.mu.Unlock()

	m.metrics.Order("accepted")
	m.persist("record_order", func(ctx context.Context) error {
		return m.sink.RecordOrder(ctx, accepted)
	})
	m.pub.Publish(TopicOrderBook, accepted.Symbol, NewBookView(book))

	return accepted, nil
}

// GetOrder returns a copy of an order accepted this session.
func (m *Market) GetOrder(id string) (domain.Order, error) {
	o, err := m.orders.Get(id)
	if err != nil {
		return domain.Order{}, err
	}
	st := m.states[o.Symbol]
	st.mu.Lock()
	defer st.mu.Unlock()
	return *o, nil
}

// CancelOrder removes an active order from its book.
func (m *Market) CancelOrder(id string) (domain.Order, error) {
	o, err := m.orders.Get(id)
	if err != nil {
		return domain.Order{}, err
	}
	st := m.states[o.Symbol]

	st.mu.Lock()
	// Re-check under the lock; a match pass may have filled it.
	if o.Status != domain.OrderStatusActive || !st.book.Remove(o.ID) {
		st.mu.Unlock()
		return domain.Order{}, domain.ErrOrderNotCancellable
	}
	o.Status = domain.OrderStatusCancelled
	cancelled := *o
	book := snapshotBook(st.book)
	st.mu.Unlock()

	m.persist("update_order_status", func(ctx context.Context) error {
		return m.sink.UpdateOrderStatus(ctx, cancelled.ID, cancelled.Status)
	})
	m.pub.Publish(TopicOrderBook, cancelled.Symbol, NewBookView(book))

	return cancelled, nil
}

// ListOrders returns a user's orders newest first, optionally filtered by
// status, with 1-based pagination.
func (m *Market) ListOrders(userID string, status *domain.OrderStatus, page, limit int) ([]domain.Order, int) {
	var filter func(*domain.Order) bool
	if status != nil {
		filter = func(o *domain.Order) bool {
			st := m.states[o.Symbol]
			st.mu.Lock()
			defer st.mu.Unlock()
			return o.Status == *status
		}
	}
	ptrs, total := m.orders.ListByUser(userID, filter, page, limit)

	out := make([]domain.Order, len(ptrs))
	for i, o := range ptrs {
		st := m.states[o.Symbol]
		st.mu.Lock()
		out[i] = *o
		st.mu.Unlock()
	}
	return out, total
}

// RecentTransactions returns up to limit of the newest transactions for
// symbol, newest first.
func (m *Market) RecentTransactions(symbol string, limit int) ([]domain.Transaction, error) {
	if _, ok := m.state(symbol); !ok {
		return nil, domain.ErrInstrumentNotFound
	}
	return m.trades.Recent(symbol, limit), nil
}

// Parameters returns the current parameter set.
func (m *Market) Parameters() domain.MarketParameters {
	m.paramsMu.RLock()
	defer m.paramsMu.RUnlock()
	return m.params
}

// SetParameters merges patch into the current parameters and returns the
// merged set. Nothing changes if the merged set is invalid.
func (m *Market) SetParameters(patch domain.ParameterPatch) (domain.MarketParameters, error) {
	m.paramsMu.Lock()
	defer m.paramsMu.Unlock()

	merged, err := patch.Merge(m.params)
	if err != nil {
		return domain.MarketParameters{}, err
	}
	m.params = merged
	m.metrics.Sentiment(merged.MarketSentiment)
	m.logger.Info("market parameters updated")
	return merged, nil
}

// PricingTick advances every instrument by one step of the price model,
// then moves market sentiment. A symbol whose step fails is logged and
// left untouched; the others still tick. The returned error joins every
// per-symbol failure.
func (m *Market) PricingTick() error {
	params := m.Parameters()
	now := m.now()

	var errs []error
	updates := make([]domain.Instrument, 0, len(m.symbols))
	for _, sym := range m.symbols {
		st := m.states[sym]
		st.mu.Lock()
		_, err := m.model.Tick(st.inst, params, st.book.Imbalance(), now)
		if err == nil {
			updates = append(updates, st.inst.Clone())
		}
		st.mu.Unlock()

		if err != nil {
			m.metrics.TickError("pricing")
			m.logger.Error("pricing tick aborted",
				slog.String("symbol", sym),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
		}
	}

	m.paramsMu.Lock()
	m.params.MarketSentiment = NextSentiment(m.rng, m.params)
	sentiment := m.params.MarketSentiment
	m.paramsMu.Unlock()
	m.metrics.Sentiment(sentiment)

	for _, inst := range updates {
		m.pub.Publish(TopicInstrument, inst.Symbol, NewInstrumentView(inst))
	}
	if m.pricingTicks.Add(1)%uint64(m.broadcastEvery) == 0 {
		all := m.GetAllInstruments()
		views := make([]InstrumentView, len(all))
		for i, inst := range all {
			views[i] = NewInstrumentView(inst)
		}
		m.pub.Publish(TopicMarket, "", views)
	}

	return errors.Join(errs...)
}

// MatchOnce runs one match pass on symbol and returns the transactions it
// produced.
func (m *Market) MatchOnce(symbol string) ([]domain.Transaction, error) {
	st, ok := m.state(symbol)
	if !ok {
		return nil, domain.ErrInvalidSymbol
	}

	st.mu.Lock()
	res := m.matcher.Match(st.book, st.inst, m.now())
	var book BookSnapshot
	if len(res.Transactions) > 0 {
		book = snapshotBook(st.book)
	}
	st.mu.Unlock()

	if len(res.Transactions) == 0 {
		return res.Transactions, nil
	}

	m.trades.Append(res.Transactions...)
	for _, tx := range res.Transactions {
		tx := tx
		m.metrics.Transaction(tx.Quantity)
		m.persist("record_transaction", func(ctx context.Context) error {
			return m.sink.RecordTransaction(ctx, tx)
		})
		m.pub.Publish(TopicTransaction, "", NewTransactionView(tx))
	}
	for _, o := range res.Filled {
		id, status := o.ID, o.Status
		m.persist("update_order_status", func(ctx context.Context) error {
			return m.sink.UpdateOrderStatus(ctx, id, status)
		})
	}
	m.pub.Publish(TopicOrderBook, symbol, NewBookView(book))

	return res.Transactions, nil
}

// MatchingTick runs MatchOnce on every symbol and returns every
// transaction produced.
func (m *Market) MatchingTick() []domain.Transaction {
	var all []domain.Transaction
	for _, sym := range m.symbols {
		txs, _ := m.MatchOnce(sym)
		all = append(all, txs...)
	}
	return all
}

// NewsTick rolls for a news event and, if one fires, shocks the affected
// instruments and broadcasts it.
func (m *Market) NewsTick() (domain.NewsEvent, bool) {
	ev, ok := m.news.Draw(m.Parameters(), m.symbols, m.now())
	if !ok {
		return domain.NewsEvent{}, false
	}

	for _, sym := range ev.Symbols {
		st := m.states[sym]
		st.mu.Lock()
		st.inst.SetPrice(ApplyShock(st.inst.Price, ev.Impact), ev.Timestamp)
		st.mu.Unlock()
	}

	m.metrics.News()
	m.logger.Info("news event",
		slog.String("kind", string(ev.Kind)),
		slog.Float64("impact", ev.Impact),
		slog.Int("symbols", len(ev.Symbols)),
	)
	m.pub.Publish(TopicNews, "", NewNewsView(ev))
	return ev, true
}

// SnapshotTick hands the current state of every instrument to the sink.
func (m *Market) SnapshotTick() {
	for _, inst := range m.GetAllInstruments() {
		inst := inst
		m.persist("snapshot_instrument", func(ctx context.Context) error {
			return m.sink.SnapshotInstrument(ctx, inst)
		})
	}
}

// persist calls the sink and logs a failure. The sink handed to the market
// is expected to be non-blocking, so failures here are enqueue failures.
func (m *Market) persist(op string, fn func(ctx context.Context) error) {
	if err := fn(context.Background()); err != nil {
		m.logger.Warn("persistence failed",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
	}
}
