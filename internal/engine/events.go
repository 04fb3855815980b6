package engine

import (
	"context"
	"time"

	"github.com/efreitasn/marketsim/internal/domain"
)

// Broadcast topics.
const (
	TopicMarket      = "market"
	TopicInstrument  = "instrument"
	TopicOrderBook   = "orderbook"
	TopicTransaction = "transaction"
	TopicNews        = "news"
)

// Broadcaster delivers events to subscribers. An empty symbol addresses
// every subscriber; otherwise only subscribers of that symbol receive it.
// Publish must not block.
type Broadcaster interface {
	Publish(topic, symbol string, payload any)
}

// BroadcasterFunc adapts a function to Broadcaster.
type BroadcasterFunc func(topic, symbol string, payload any)

func (f BroadcasterFunc) Publish(topic, symbol string, payload any) {
	f(topic, symbol, payload)
}

// Sink receives durable copies of market state. The market calls it from
// tick and intake paths, so implementations handed to the market must
// return promptly (see persist.Queue).
type Sink interface {
	RecordOrder(ctx context.Context, o domain.Order) error
	RecordTransaction(ctx context.Context, tx domain.Transaction) error
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error
	SnapshotInstrument(ctx context.Context, inst domain.Instrument) error
}

type nopBroadcaster struct{}

func (nopBroadcaster) Publish(string, string, any) {}

type nopSink struct{}

func (nopSink) RecordOrder(context.Context, domain.Order) error             { return nil }
func (nopSink) RecordTransaction(context.Context, domain.Transaction) error { return nil }
func (nopSink) UpdateOrderStatus(context.Context, string, domain.OrderStatus) error {
	return nil
}
func (nopSink) SnapshotInstrument(context.Context, domain.Instrument) error { return nil }

// InstrumentView is the wire form of an instrument.
type InstrumentView struct {
	Symbol           string    `json:"symbol"`
	Name             string    `json:"name"`
	Price            float64   `json:"price"`
	PreviousClose    float64   `json:"previousClose"`
	Open             float64   `json:"open"`
	High             float64   `json:"high"`
	Low              float64   `json:"low"`
	Volume           int64     `json:"volume"`
	Change           float64   `json:"change"`
	ChangePercent    float64   `json:"changePercent"`
	VolatilityFactor float64   `json:"volatilityFactor"`
	LastUpdated      time.Time `json:"lastUpdated"`
}

// NewInstrumentView rounds prices to cents.
func NewInstrumentView(inst domain.Instrument) InstrumentView {
	return InstrumentView{
		Symbol:           inst.Symbol,
		Name:             inst.Name,
		Price:            domain.RoundPrice(inst.Price),
		PreviousClose:    domain.RoundPrice(inst.PreviousClose),
		Open:             domain.RoundPrice(inst.Open),
		High:             domain.RoundPrice(inst.High),
		Low:              domain.RoundPrice(inst.Low),
		Volume:           inst.Volume,
		Change:           domain.RoundPrice(inst.Change),
		ChangePercent:    domain.RoundPercent(inst.ChangePercent),
		VolatilityFactor: domain.RoundPercent(inst.VolatilityFactor),
		LastUpdated:      inst.LastUpdated.UTC(),
	}
}

// OrderView is the wire form of an order.
type OrderView struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	Symbol           string    `json:"symbol"`
	Side             string    `json:"side"`
	Quantity         int64     `json:"quantity"`
	OriginalQuantity int64     `json:"originalQuantity"`
	Filled           int64     `json:"filled"`
	LimitPrice       float64   `json:"limitPrice"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
}

// NewOrderView converts an order.
func NewOrderView(o domain.Order) OrderView {
	return OrderView{
		ID:               o.ID,
		UserID:           o.UserID,
		Symbol:           o.Symbol,
		Side:             string(o.Side),
		Quantity:         o.Quantity,
		OriginalQuantity: o.OriginalQuantity,
		Filled:           o.Filled(),
		LimitPrice:       o.LimitPrice,
		Status:           string(o.Status),
		CreatedAt:        o.CreatedAt.UTC(),
	}
}

// BookView lists the resting orders of a symbol in priority order.
type BookView struct {
	Symbol string      `json:"symbol"`
	Buy    []OrderView `json:"buy"`
	Sell   []OrderView `json:"sell"`
}

// NewBookView converts a book snapshot.
func NewBookView(b BookSnapshot) BookView {
	v := BookView{
		Symbol: b.Symbol,
		Buy:    make([]OrderView, len(b.Buy)),
		Sell:   make([]OrderView, len(b.Sell)),
	}
	for i, o := range b.Buy {
		v.Buy[i] = NewOrderView(o)
	}
	for i, o := range b.Sell {
		v.Sell[i] = NewOrderView(o)
	}
	return v
}

// TransactionView is the wire form of a transaction.
type TransactionView struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	BuyOrderID  string    `json:"buyOrderId"`
	SellOrderID string    `json:"sellOrderId"`
	BuyerID     string    `json:"buyerId"`
	SellerID    string    `json:"sellerId"`
	Price       float64   `json:"price"`
	Quantity    int64     `json:"quantity"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewTransactionView converts a transaction.
func NewTransactionView(tx domain.Transaction) TransactionView {
	return TransactionView{
		ID:          tx.ID,
		Symbol:      tx.Symbol,
		BuyOrderID:  tx.BuyOrderID,
		SellOrderID: tx.SellOrderID,
		BuyerID:     tx.BuyerID,
		SellerID:    tx.SellerID,
		Price:       domain.RoundPrice(tx.Price),
		Quantity:    tx.Quantity,
		Timestamp:   tx.Timestamp.UTC(),
	}
}

// NewsView is the wire form of a news event.
type NewsView struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Positive    bool      `json:"positive"`
	Impact      float64   `json:"impact"`
	Symbols     []string  `json:"symbols"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewNewsView converts a news event.
func NewNewsView(ev domain.NewsEvent) NewsView {
	return NewsView{
		ID:          ev.ID,
		Kind:        string(ev.Kind),
		Positive:    ev.Positive,
		Impact:      domain.RoundPercent(ev.Impact),
		Symbols:     ev.Symbols,
		Description: ev.Description,
		Timestamp:   ev.Timestamp.UTC(),
	}
}
