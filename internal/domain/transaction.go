package domain

import "time"

// Transaction is an execution between a crossing buy and sell order.
// Transactions are only created by the matcher and never change.
type Transaction struct {
	ID          string
	Symbol      string
	BuyOrderID  string
	SellOrderID string
	BuyerID     string
	SellerID    string
	Price       float64
	Quantity    int64
	Timestamp   time.Time
}
