package service

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/engine"
)

func newTestMarket(t *testing.T) *engine.Market {
	t.Helper()
	m, err := engine.NewMarket([]domain.Listing{
		{Symbol: "AAPL", Name: "Apple Inc.", Price: 150},
		{Symbol: "MSFT", Name: "Microsoft Corporation", Price: 400},
	}, engine.Options{
		Source: engine.NewSource(7),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return m
}

func floatPtr(f float64) *float64 { return &f }

func int64Ptr(n int64) *int64 { return &n }

func TestSubmitOrder(t *testing.T) {
	svc := NewOrderService(newTestMarket(t))

	order, err := svc.SubmitOrder(SubmitOrderRequest{
		UserID:     "trader-1",
		Symbol:     "AAPL",
		Side:       domain.OrderSideBuy,
		Quantity:   10,
		LimitPrice: floatPtr(149.5),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, "trader-1", order.UserID)
	assert.Equal(t, domain.OrderStatusActive, order.Status)
	assert.Equal(t, int64(10), order.OriginalQuantity)

	got, err := svc.GetOrder(order.ID)
	require.NoError(t, err)
	assert.Equal(t, order, got)
}

func TestSubmitOrder_Validation(t *testing.T) {
	svc := NewOrderService(newTestMarket(t))

	tests := []struct {
		name string
		req  SubmitOrderRequest
		want error
	}{
		{
			name: "missing limit price",
			req:  SubmitOrderRequest{Symbol: "AAPL", Side: domain.OrderSideBuy, Quantity: 1},
			want: domain.ErrInvalidOrder,
		},
		{
			name: "bad user id",
			req:  SubmitOrderRequest{UserID: "no spaces", Symbol: "AAPL", Side: domain.OrderSideBuy, Quantity: 1, LimitPrice: floatPtr(1)},
			want: domain.ErrInvalidOrder,
		},
		{
			name: "bad side",
			req:  SubmitOrderRequest{Symbol: "AAPL", Side: "long", Quantity: 1, LimitPrice: floatPtr(1)},
			want: domain.ErrInvalidOrder,
		},
		{
			name: "unknown symbol",
			req:  SubmitOrderRequest{Symbol: "ZZZ", Side: domain.OrderSideBuy, Quantity: 1, LimitPrice: floatPtr(1)},
			want: domain.ErrInvalidSymbol,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SubmitOrder(tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCancelOrder(t *testing.T) {
	svc := NewOrderService(newTestMarket(t))
	order, err := svc.SubmitOrder(SubmitOrderRequest{Symbol: "MSFT", Side: domain.OrderSideSell, Quantity: 3, LimitPrice: floatPtr(401)})
	require.NoError(t, err)

	cancelled, err := svc.CancelOrder(order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)

	_, err = svc.CancelOrder(order.ID)
	assert.ErrorIs(t, err, domain.ErrOrderNotCancellable)
}

func TestListOrders(t *testing.T) {
	svc := NewOrderService(newTestMarket(t))
	for i := 0; i < 3; i++ {
		_, err := svc.SubmitOrder(SubmitOrderRequest{UserID: "u1", Symbol: "AAPL", Side: domain.OrderSideBuy, Quantity: 1, LimitPrice: floatPtr(100)})
		require.NoError(t, err)
	}

	orders, total, err := svc.ListOrders("u1", nil, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, orders, 2)

	filled := domain.OrderStatusFilled
	orders, total, err = svc.ListOrders("u1", &filled, 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, orders)
}

func TestListOrders_Validation(t *testing.T) {
	svc := NewOrderService(newTestMarket(t))
	bogus := domain.OrderStatus("executed")

	tests := []struct {
		name        string
		status      *domain.OrderStatus
		page, limit int
	}{
		{"unknown status", &bogus, 1, 20},
		{"page zero", nil, 0, 20},
		{"limit zero", nil, 1, 0},
		{"limit too large", nil, 1, 101},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.ListOrders("u1", tt.status, tt.page, tt.limit)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}
}

func TestMarketService_Queries(t *testing.T) {
	m := newTestMarket(t)
	svc := NewMarketService(m)

	all := svc.ListInstruments()
	require.Len(t, all, 2)
	assert.Equal(t, "AAPL", all[0].Symbol)

	inst, err := svc.GetInstrument("MSFT")
	require.NoError(t, err)
	assert.Equal(t, 400.0, inst.Price)

	_, err = svc.GetInstrument("ZZZ")
	assert.ErrorIs(t, err, domain.ErrInstrumentNotFound)

	hist, err := svc.GetHistory("AAPL")
	require.NoError(t, err)
	assert.Equal(t, []float64{150}, hist)

	book, err := svc.GetBook("AAPL")
	require.NoError(t, err)
	assert.Empty(t, book.Buy)
	assert.Empty(t, book.Sell)
}

func TestMarketService_GetDepth(t *testing.T) {
	m := newTestMarket(t)
	svc := NewMarketService(m)
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	orders := NewOrderService(m)
	for _, p := range []float64{99, 99, 98} {
		_, err := orders.SubmitOrder(SubmitOrderRequest{Symbol: "AAPL", Side: domain.OrderSideBuy, Quantity: 2, LimitPrice: floatPtr(p)})
		require.NoError(t, err)
	}
	_, err := orders.SubmitOrder(SubmitOrderRequest{Symbol: "AAPL", Side: domain.OrderSideSell, Quantity: 2, LimitPrice: floatPtr(100)})
	require.NoError(t, err)

	resp, err := svc.GetDepth("AAPL", 1)
	require.NoError(t, err)
	require.Len(t, resp.Buy, 1)
	assert.Equal(t, engine.PriceLevel{Price: 99, TotalQuantity: 4, OrderCount: 2}, resp.Buy[0])
	require.NotNil(t, resp.Spread)
	assert.Equal(t, 1.0, *resp.Spread)
	assert.Equal(t, fixed, resp.SnapshotAt)

	_, err = svc.GetDepth("AAPL", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	_, err = svc.GetDepth("AAPL", MaxBookDepth+1)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	_, err = svc.GetDepth("ZZZ", 10)
	assert.ErrorIs(t, err, domain.ErrInstrumentNotFound)
}

func TestMarketService_RecentTransactions(t *testing.T) {
	m := newTestMarket(t)
	svc := NewMarketService(m)
	orders := NewOrderService(m)

	_, err := orders.SubmitOrder(SubmitOrderRequest{Symbol: "AAPL", Side: domain.OrderSideBuy, Quantity: 5, LimitPrice: floatPtr(101)})
	require.NoError(t, err)
	_, err = orders.SubmitOrder(SubmitOrderRequest{Symbol: "AAPL", Side: domain.OrderSideSell, Quantity: 5, LimitPrice: floatPtr(99)})
	require.NoError(t, err)
	m.MatchingTick()

	txs, err := svc.RecentTransactions("AAPL", DefaultTransactionsLimit)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, 100.0, txs[0].Price)

	_, err = svc.RecentTransactions("AAPL", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestMarketService_UpdateParameters(t *testing.T) {
	svc := NewMarketService(newTestMarket(t))

	got, err := svc.UpdateParameters(ParametersUpdate{
		MarketSentiment:   floatPtr(0.4),
		PricingIntervalMs: int64Ptr(250),
	})
	require.NoError(t, err)
	assert.Equal(t, 0.4, got.MarketSentiment)
	assert.Equal(t, 250*time.Millisecond, got.PricingInterval)
	assert.Equal(t, got, svc.Parameters())

	_, err = svc.UpdateParameters(ParametersUpdate{NewsIntervalMs: int64Ptr(0)})
	assert.ErrorIs(t, err, domain.ErrInvalidParameters)
	assert.Equal(t, got, svc.Parameters())
}
