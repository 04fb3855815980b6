package engine

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/efreitasn/marketsim/internal/domain"
)

// Intake and every tick kind run at once. Run with -race.
func TestMarket_ConcurrentIntakeAndTicks(t *testing.T) {
	m := newTestMarket(t, NewSource(7))

	const (
		workers  = 4
		perUser  = 300
		symbolsN = 2
	)
	symbols := [symbolsN]string{"AAPL", "MSFT"}
	base := map[string]float64{"AAPL": 150, "MSFT": 400}

	var (
		mu     sync.Mutex
		traded = make(map[string]int64)
		ids    []string
	)
	record := func(txs []domain.Transaction) {
		mu.Lock()
		defer mu.Unlock()
		for _, tx := range txs {
			traded[tx.Symbol] += tx.Quantity
		}
	}

	done := make(chan struct{})
	ticks := make(chan struct{})
	go func() {
		defer close(ticks)
		for {
			select {
			case <-done:
				return
			default:
			}
			record(m.MatchingTick())
			_ = m.PricingTick()
			m.NewsTick()
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", w)
			for i := 0; i < perUser; i++ {
				sym := symbols[i%symbolsN]
				side := domain.OrderSideBuy
				if (i+w)%2 == 1 {
					side = domain.OrderSideSell
				}
				price := base[sym] - 2 + float64((i*7+w)%5)
				o, err := m.SubmitOrder(domain.Order{
					UserID:     user,
					Symbol:     sym,
					Side:       side,
					Quantity:   int64(1 + (i+w)%9),
					LimitPrice: price,
				})
				if err != nil {
					t.Errorf("SubmitOrder: %v", err)
					return
				}
				mu.Lock()
				ids = append(ids, o.ID)
				mu.Unlock()

				if i%5 == 0 {
					if _, err := m.CancelOrder(o.ID); err != nil && !errors.Is(err, domain.ErrOrderNotCancellable) {
						t.Errorf("CancelOrder: %v", err)
					}
				}
				if i%20 == 0 {
					m.ListOrders(user, nil, 1, 10)
				}
			}
		}(w)
	}
	wg.Wait()
	close(done)
	<-ticks
	record(m.MatchingTick())

	if len(ids) != workers*perUser {
		t.Fatalf("submitted %d orders, want %d", len(ids), workers*perUser)
	}

	filledBuy := make(map[string]int64)
	filledSell := make(map[string]int64)
	for _, id := range ids {
		o, err := m.GetOrder(id)
		if err != nil {
			t.Fatalf("GetOrder(%s): %v", id, err)
		}
		if o.Quantity < 0 || o.Quantity > o.OriginalQuantity {
			t.Errorf("order %s has quantity %d of %d", id, o.Quantity, o.OriginalQuantity)
		}
		if o.Side == domain.OrderSideBuy {
			filledBuy[o.Symbol] += o.Filled()
		} else {
			filledSell[o.Symbol] += o.Filled()
		}
	}

	for _, sym := range symbols {
		inst, err := m.GetInstrument(sym)
		if err != nil {
			t.Fatalf("GetInstrument(%s): %v", sym, err)
		}
		if inst.Volume != traded[sym] {
			t.Errorf("%s: volume %d, want traded quantity %d", sym, inst.Volume, traded[sym])
		}
		if filledBuy[sym] != traded[sym] || filledSell[sym] != traded[sym] {
			t.Errorf("%s: filled buy %d sell %d, traded %d", sym, filledBuy[sym], filledSell[sym], traded[sym])
		}

		st := m.states[sym]
		st.mu.Lock()
		buy, okB := st.book.BestBuy()
		sell, okS := st.book.BestSell()
		st.mu.Unlock()
		if okB && okS && buy.Price >= sell.Price {
			t.Errorf("%s: book still crossed after final match, buy %v sell %v", sym, buy.Price, sell.Price)
		}
	}
}

func TestNewOrderView_ReportsFilledQuantity(t *testing.T) {
	v := NewOrderView(domain.Order{ID: "o1", Quantity: 4, OriginalQuantity: 10, Status: domain.OrderStatusActive})
	if v.Filled != 6 {
		t.Errorf("Filled = %d, want 6", v.Filled)
	}
	if v.Quantity != 4 || v.OriginalQuantity != 10 {
		t.Errorf("quantities = %d/%d, want 4/10", v.Quantity, v.OriginalQuantity)
	}
}
