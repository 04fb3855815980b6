package domain

import "time"

// OrderSide indicates whether an order buys or sells.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Valid reports whether s is a known side.
func (s OrderSide) Valid() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusActive    OrderStatus = "active"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// AnonymousUser is recorded when an order arrives without a user id.
const AnonymousUser = "anonymous"

// Order is a limit instruction resting on a book until it is filled or
// cancelled. Only Quantity and Status change after submission.
type Order struct {
	ID               string
	UserID           string
	Symbol           string
	Side             OrderSide
	Quantity         int64 // remaining
	OriginalQuantity int64
	LimitPrice       float64
	Status           OrderStatus
	CreatedAt        time.Time
}

// Filled returns the quantity executed so far.
func (o *Order) Filled() int64 {
	return o.OriginalQuantity - o.Quantity
}

// Validate checks the submission fields. It does not check the symbol.
func (o *Order) Validate() error {
	if !o.Side.Valid() {
		return InvalidOrder("side must be one of: buy, sell")
	}
	if o.Quantity <= 0 {
		return InvalidOrder("quantity must be greater than 0")
	}
	if !(o.LimitPrice > 0) {
		return InvalidOrder("limit price must be greater than 0")
	}
	return nil
}
