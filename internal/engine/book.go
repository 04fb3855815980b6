package engine

import (
	"github.com/google/btree"

	"github.com/efreitasn/marketsim/internal/domain"
)

// OrderBookEntry represents a single order resting on the book.
type OrderBookEntry struct {
	Price float64
	Seq   uint64
	Order *domain.Order
}

// PriceLevel represents an aggregated price level in the order book.
type PriceLevel struct {
	Price         float64
	TotalQuantity int64
	OrderCount    int
}

// buyLess orders the buy side by price descending, then by insertion
// sequence. Min() returns the best bid.
func buyLess(a, b OrderBookEntry) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	return a.Seq < b.Seq
}

// sellLess orders the sell side by price ascending, then by insertion
// sequence. Min() returns the best ask.
func sellLess(a, b OrderBookEntry) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.Seq < b.Seq
}

// OrderBook holds the resting orders of one symbol. It is not safe for
// concurrent use; the market serializes access with the symbol lock.
type OrderBook struct {
	symbol string
	seq    uint64
	buys   *btree.BTreeG[OrderBookEntry]
	sells  *btree.BTreeG[OrderBookEntry]
	index  map[string]OrderBookEntry // order id → entry
}

// NewOrderBook creates an order book for the given symbol.
func NewOrderBook(symbol string) *OrderBook {
	const degree = 32
	return &OrderBook{
		symbol: symbol,
		buys:   btree.NewG[OrderBookEntry](degree, buyLess),
		sells:  btree.NewG[OrderBookEntry](degree, sellLess),
		index:  make(map[string]OrderBookEntry),
	}
}

// Symbol returns the symbol the book belongs to.
func (ob *OrderBook) Symbol() string {
	return ob.symbol
}

// Insert rests an order on its side. Equal-priced orders keep their
// arrival order.
func (ob *OrderBook) Insert(o *domain.Order) {
	ob.seq++
	entry := OrderBookEntry{Price: o.LimitPrice, Seq: ob.seq, Order: o}
	if o.Side == domain.OrderSideBuy {
		ob.buys.ReplaceOrInsert(entry)
	} else {
		ob.sells.ReplaceOrInsert(entry)
	}
	ob.index[o.ID] = entry
}

// Remove deletes an order by id. It reports whether the order was resting.
func (ob *OrderBook) Remove(orderID string) bool {
	entry, ok := ob.index[orderID]
	if !ok {
		return false
	}
	delete(ob.index, orderID)
	if entry.Order.Side == domain.OrderSideBuy {
		ob.buys.Delete(entry)
	} else {
		ob.sells.Delete(entry)
	}
	return true
}

// Contains reports whether the order is resting on the book.
func (ob *OrderBook) Contains(orderID string) bool {
	_, ok := ob.index[orderID]
	return ok
}

// BestBuy returns the highest-priority buy order.
func (ob *OrderBook) BestBuy() (OrderBookEntry, bool) {
	return ob.buys.Min()
}

// BestSell returns the highest-priority sell order.
func (ob *OrderBook) BestSell() (OrderBookEntry, bool) {
	return ob.sells.Min()
}

// BuyCount returns the number of resting buy orders.
func (ob *OrderBook) BuyCount() int {
	return ob.buys.Len()
}

// SellCount returns the number of resting sell orders.
func (ob *OrderBook) SellCount() int {
	return ob.sells.Len()
}

// Imbalance returns (buys - sells) / (buys + sells) over order counts, or
// zero for an empty book.
func (ob *OrderBook) Imbalance() float64 {
	b, s := ob.BuyCount(), ob.SellCount()
	if b+s == 0 {
		return 0
	}
	return float64(b-s) / float64(b+s)
}

// TopBuys returns up to n aggregated price levels from the buy side,
// ordered by price descending.
func (ob *OrderBook) TopBuys(n int) []PriceLevel {
	return topLevels(ob.buys, n)
}

// TopSells returns up to n aggregated price levels from the sell side,
// ordered by price ascending.
func (ob *OrderBook) TopSells(n int) []PriceLevel {
	return topLevels(ob.sells, n)
}

func topLevels(tree *btree.BTreeG[OrderBookEntry], n int) []PriceLevel {
	if n <= 0 {
		return []PriceLevel{}
	}
	levels := make([]PriceLevel, 0, n)
	tree.Ascend(func(entry OrderBookEntry) bool {
		if len(levels) > 0 && levels[len(levels)-1].Price == entry.Price {
			levels[len(levels)-1].TotalQuantity += entry.Order.Quantity
			levels[len(levels)-1].OrderCount++
			return true
		}
		if len(levels) >= n {
			return false
		}
		levels = append(levels, PriceLevel{
			Price:         entry.Price,
			TotalQuantity: entry.Order.Quantity,
			OrderCount:    1,
		})
		return true
	})
	return levels
}

// WalkBuys iterates buys in priority order. Return false to stop.
func (ob *OrderBook) WalkBuys(fn func(OrderBookEntry) bool) {
	ob.buys.Ascend(fn)
}

// WalkSells iterates sells in priority order. Return false to stop.
func (ob *OrderBook) WalkSells(fn func(OrderBookEntry) bool) {
	ob.sells.Ascend(fn)
}

// Orders returns copies of the resting orders on both sides, each in
// priority order.
func (ob *OrderBook) Orders() (buys, sells []domain.Order) {
	buys = make([]domain.Order, 0, ob.buys.Len())
	sells = make([]domain.Order, 0, ob.sells.Len())
	ob.WalkBuys(func(e OrderBookEntry) bool {
		buys = append(buys, *e.Order)
		return true
	})
	ob.WalkSells(func(e OrderBookEntry) bool {
		sells = append(sells, *e.Order)
		return true
	})
	return buys, sells
}
