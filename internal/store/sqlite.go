package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/efreitasn/marketsim/internal/domain"
)

// Schema creates the tables used by SQLite. Timestamps are unix
// milliseconds.
const Schema = `
CREATE TABLE IF NOT EXISTS instruments (
	symbol         TEXT PRIMARY KEY,
	name           TEXT NOT NULL DEFAULT '',
	price          REAL NOT NULL,
	previous_close REAL NOT NULL DEFAULT 0,
	open           REAL NOT NULL DEFAULT 0,
	high           REAL NOT NULL DEFAULT 0,
	low            REAL NOT NULL DEFAULT 0,
	volume         INTEGER NOT NULL DEFAULT 0,
	change         REAL NOT NULL DEFAULT 0,
	change_percent REAL NOT NULL DEFAULT 0,
	updated_at     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS orders (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	symbol            TEXT NOT NULL,
	side              TEXT NOT NULL,
	quantity          INTEGER NOT NULL,
	original_quantity INTEGER NOT NULL,
	limit_price       REAL NOT NULL,
	status            TEXT NOT NULL,
	created_at        INTEGER NOT NULL,
	updated_at        INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id);

CREATE TABLE IF NOT EXISTS transactions (
	id            TEXT PRIMARY KEY,
	symbol        TEXT NOT NULL,
	buy_order_id  TEXT NOT NULL,
	sell_order_id TEXT NOT NULL,
	buyer_id      TEXT NOT NULL,
	seller_id     TEXT NOT NULL,
	price         REAL NOT NULL,
	quantity      INTEGER NOT NULL,
	executed_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_symbol ON transactions(symbol, executed_at);
`

// SQLite persists orders, transactions and instrument snapshots, and
// serves as an instrument catalog.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies Schema.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; the persistence queue is the only caller on the hot path.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// RecordOrder inserts or replaces an order row.
func (s *SQLite) RecordOrder(ctx context.Context, o domain.Order) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders
		(id, user_id, symbol, side, quantity, original_quantity, limit_price, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			quantity=excluded.quantity,
			status=excluded.status,
			updated_at=excluded.updated_at`,
		o.ID, o.UserID, o.Symbol, string(o.Side), o.Quantity, o.OriginalQuantity,
		o.LimitPrice, string(o.Status), o.CreatedAt.UnixMilli(), o.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record order %s: %w", o.ID, err)
	}
	return nil
}

// RecordTransaction inserts a transaction row. Replaying the same
// transaction is a no-op.
func (s *SQLite) RecordTransaction(ctx context.Context, tx domain.Transaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO transactions
		(id, symbol, buy_order_id, sell_order_id, buyer_id, seller_id, price, quantity, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.Symbol, tx.BuyOrderID, tx.SellOrderID, tx.BuyerID, tx.SellerID,
		domain.RoundPrice(tx.Price), tx.Quantity, tx.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record transaction %s: %w", tx.ID, err)
	}
	return nil
}

// UpdateOrderStatus sets the status of a recorded order. It returns
// domain.ErrOrderNotFound if the order was never recorded.
func (s *SQLite) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = ?,
		    quantity = CASE WHEN ? = 'filled' THEN 0 ELSE quantity END,
		    updated_at = CAST(strftime('%s','now') AS INTEGER) * 1000
		WHERE id = ?`,
		string(status), string(status), orderID,
	)
	if err != nil {
		return fmt.Errorf("update order %s: %w", orderID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order %s: %w", orderID, err)
	}
	if n == 0 {
		return fmt.Errorf("update order %s: %w", orderID, domain.ErrOrderNotFound)
	}
	return nil
}

// SnapshotInstrument upserts the current state of an instrument.
func (s *SQLite) SnapshotInstrument(ctx context.Context, inst domain.Instrument) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO instruments
		(symbol, name, price, previous_close, open, high, low, volume, change, change_percent, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			price=excluded.price,
			high=excluded.high,
			low=excluded.low,
			volume=excluded.volume,
			change=excluded.change,
			change_percent=excluded.change_percent,
			updated_at=excluded.updated_at`,
		inst.Symbol, inst.Name, domain.RoundPrice(inst.Price), domain.RoundPrice(inst.PreviousClose),
		domain.RoundPrice(inst.Open), domain.RoundPrice(inst.High), domain.RoundPrice(inst.Low),
		inst.Volume, domain.RoundPrice(inst.Change), domain.RoundPercent(inst.ChangePercent),
		inst.LastUpdated.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("snapshot instrument %s: %w", inst.Symbol, err)
	}
	return nil
}

// LoadInstruments returns every stored instrument as a listing, ordered
// by symbol.
func (s *SQLite) LoadInstruments(ctx context.Context) ([]domain.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol, name, price, volume FROM instruments ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("load instruments: %w", err)
	}
	defer rows.Close()

	var listings []domain.Listing
	for rows.Next() {
		var l domain.Listing
		if err := rows.Scan(&l.Symbol, &l.Name, &l.Price, &l.Volume); err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load instruments: %w", err)
	}
	return listings, nil
}

// SeedInstruments inserts listings that are not stored yet. Existing rows
// are left alone.
func (s *SQLite) SeedInstruments(ctx context.Context, listings []domain.Listing) error {
	for _, l := range listings {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO instruments
			(symbol, name, price, previous_close, open, high, low, volume)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			l.Symbol, l.Name, l.Price, l.Price, l.Price, l.Price, l.Price, l.Volume,
		)
		if err != nil {
			return fmt.Errorf("seed instrument %s: %w", l.Symbol, err)
		}
	}
	return nil
}
