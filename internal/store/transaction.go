package store

import (
	"sync"

	"github.com/efreitasn/marketsim/internal/domain"
)

// DefaultTransactionRetention is how many transactions are kept per symbol.
const DefaultTransactionRetention = 500

// TransactionStore keeps the most recent transactions per symbol in
// memory, oldest first. Older entries are dropped past the retention;
// the durable record lives in the sink.
type TransactionStore struct {
	mu        sync.RWMutex
	retention int
	txs       map[string][]domain.Transaction
}

// NewTransactionStore creates an empty store. A non-positive retention
// uses DefaultTransactionRetention.
func NewTransactionStore(retention int) *TransactionStore {
	if retention <= 0 {
		retention = DefaultTransactionRetention
	}
	return &TransactionStore{
		retention: retention,
		txs:       make(map[string][]domain.Transaction),
	}
}

// Append adds transactions, each to its symbol's list.
func (s *TransactionStore) Append(txs ...domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range txs {
		list := append(s.txs[tx.Symbol], tx)
		if over := len(list) - s.retention; over > 0 {
			list = append([]domain.Transaction(nil), list[over:]...)
		}
		s.txs[tx.Symbol] = list
	}
}

// Recent returns up to limit of the newest transactions for symbol,
// newest first. A non-positive limit returns all retained transactions.
func (s *TransactionStore) Recent(symbol string, limit int) []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.txs[symbol]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]domain.Transaction, 0, limit)
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, list[i])
	}
	return out
}
