package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/marketsim/internal/domain"
)

// MatchResult is the outcome of one pass over a book.
type MatchResult struct {
	Transactions []domain.Transaction
	Filled       []domain.Order // orders that reached zero quantity
}

// Matcher crosses the top of a book until the best buy no longer meets the
// best sell. Trades execute at the midpoint of the two limit prices.
type Matcher struct {
	newID func() string
}

// NewMatcher creates a Matcher that assigns uuid transaction ids.
func NewMatcher() *Matcher {
	return &Matcher{newID: uuid.NewString}
}

// Match runs a single pass over book and applies each fill to inst: the
// last price becomes the execution price and the fill is added to volume.
// The caller must hold the symbol lock for the whole pass.
func (m *Matcher) Match(book *OrderBook, inst *domain.Instrument, now time.Time) MatchResult {
	res := MatchResult{Transactions: []domain.Transaction{}}

	for {
		buy, ok := book.BestBuy()
		if !ok {
			break
		}
		sell, ok := book.BestSell()
		if !ok {
			break
		}
		if buy.Price < sell.Price {
			break
		}

		price := domain.Midpoint(buy.Price, sell.Price)
		qty := min(buy.Order.Quantity, sell.Order.Quantity)

		buy.Order.Quantity -= qty
		sell.Order.Quantity -= qty

		res.Transactions = append(res.Transactions, domain.Transaction{
			ID:          m.newID(),
			Symbol:      book.Symbol(),
			BuyOrderID:  buy.Order.ID,
			SellOrderID: sell.Order.ID,
			BuyerID:     buy.Order.UserID,
			SellerID:    sell.Order.UserID,
			Price:       price,
			Quantity:    qty,
			Timestamp:   now,
		})

		for _, e := range []OrderBookEntry{buy, sell} {
			if e.Order.Quantity == 0 {
				e.Order.Status = domain.OrderStatusFilled
				book.Remove(e.Order.ID)
				res.Filled = append(res.Filled, *e.Order)
			}
		}

		inst.SetPrice(price, now)
		inst.Volume += qty
	}

	return res
}
