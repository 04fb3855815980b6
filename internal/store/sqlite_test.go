package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efreitasn/marketsim/internal/domain"
)

func openTestDB(t *testing.T) *SQLite {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "market.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLite_OrderLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	o := *newTestOrder("order-1", "user-1", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, db.RecordOrder(ctx, o))
	require.NoError(t, db.UpdateOrderStatus(ctx, "order-1", domain.OrderStatusFilled))

	var status string
	var qty int64
	err := db.db.QueryRowContext(ctx, `SELECT status, quantity FROM orders WHERE id = ?`, "order-1").Scan(&status, &qty)
	require.NoError(t, err)
	assert.Equal(t, "filled", status)
	assert.Equal(t, int64(0), qty)
}

func TestSQLite_UpdateOrderStatus_Unknown(t *testing.T) {
	db := openTestDB(t)

	err := db.UpdateOrderStatus(context.Background(), "missing", domain.OrderStatusCancelled)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestSQLite_RecordTransaction_Idempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	tx := domain.Transaction{
		ID: "tx-1", Symbol: "AAPL", BuyOrderID: "b", SellOrderID: "s",
		BuyerID: "u1", SellerID: "u2", Price: 100.004, Quantity: 6, Timestamp: time.Now(),
	}
	require.NoError(t, db.RecordTransaction(ctx, tx))
	require.NoError(t, db.RecordTransaction(ctx, tx))

	var n int
	var price float64
	require.NoError(t, db.db.QueryRowContext(ctx, `SELECT COUNT(*), MAX(price) FROM transactions`).Scan(&n, &price))
	assert.Equal(t, 1, n)
	assert.Equal(t, 100.0, price)
}

func TestSQLite_SnapshotAndLoadInstruments(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	empty, err := db.LoadInstruments(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	inst := domain.NewInstrument(domain.Listing{Symbol: "MSFT", Name: "Microsoft Corporation", Price: 405.75}, 1, time.Now())
	require.NoError(t, db.SnapshotInstrument(ctx, inst.Clone()))

	inst.SetPrice(410.123, time.Now())
	inst.Volume = 42
	require.NoError(t, db.SnapshotInstrument(ctx, inst.Clone()))

	listings, err := db.LoadInstruments(ctx)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, domain.Listing{Symbol: "MSFT", Name: "Microsoft Corporation", Price: 410.12, Volume: 42}, listings[0])
}

func TestSQLite_SeedInstrumentsKeepsExisting(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SeedInstruments(ctx, []domain.Listing{{Symbol: "AAPL", Name: "Apple Inc.", Price: 190.5}}))
	require.NoError(t, db.SeedInstruments(ctx, []domain.Listing{
		{Symbol: "AAPL", Name: "Apple Inc.", Price: 1},
		{Symbol: "INTC", Name: "Intel Corporation", Price: 30.15},
	}))

	listings, err := db.LoadInstruments(ctx)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, "AAPL", listings[0].Symbol)
	assert.Equal(t, 190.5, listings[0].Price)
	assert.Equal(t, "INTC", listings[1].Symbol)
}
