package store

import (
	"sync"

	"github.com/efreitasn/marketsim/internal/domain"
)

// OrderStore is a thread-safe in-memory index of every order accepted
// this session, by order id and by user id. It stores the same pointers
// the books hold; callers read fields under the owning symbol's lock.
type OrderStore struct {
	mu         sync.RWMutex
	orders     map[string]*domain.Order
	userOrders map[string][]*domain.Order // user id → orders (append-only)
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:     make(map[string]*domain.Order),
		userOrders: make(map[string][]*domain.Order),
	}
}

// Create adds an order to both indexes.
func (s *OrderStore) Create(o *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[o.ID] = o
	s.userOrders[o.UserID] = append(s.userOrders[o.UserID], o)
}

// Get retrieves an order by ID. It returns
// domain.ErrOrderNotFound if the order does not exist.
func (s *OrderStore) Get(id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

// ListByUser returns a user's orders newest first. The filter runs on
// each order and may be nil; it must do its own locking if it reads
// mutable fields. Pagination is 1-based. The total counts matches before
// pagination.
func (s *OrderStore) ListByUser(userID string, filter func(*domain.Order) bool, page, limit int) ([]*domain.Order, int) {
	s.mu.RLock()
	all := make([]*domain.Order, len(s.userOrders[userID]))
	copy(all, s.userOrders[userID])
	s.mu.RUnlock()

	filtered := make([]*domain.Order, 0)
	for i := len(all) - 1; i >= 0; i-- {
		if filter != nil && !filter(all[i]) {
			continue
		}
		filtered = append(filtered, all[i])
	}

	total := len(filtered)

	start := (page - 1) * limit
	if start >= total || start < 0 {
		return []*domain.Order{}, total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return filtered[start:end], total
}

// Len returns the number of orders stored.
func (s *OrderStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}
