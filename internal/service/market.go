package service

import (
	"time"

	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/engine"
)

const (
	MaxBookDepth             = 50
	MaxTransactionsLimit     = 500
	DefaultTransactionsLimit = 50
)

// BookResponse is the aggregated view of a book.
type BookResponse struct {
	engine.Depth
	SnapshotAt time.Time
}

// ParametersUpdate is a partial parameter update. Intervals are given in
// milliseconds.
type ParametersUpdate struct {
	BaseVolatility      *float64
	MarketSentiment     *float64
	TradingVolumeFactor *float64
	OrderImpactFactor   *float64
	MomentumFactor      *float64
	RandomWalkFactor    *float64
	SentimentChangeRate *float64
	NewsImpactFactor    *float64
	NewsProbability     *float64
	PricingIntervalMs   *int64
	MatchingIntervalMs  *int64
	NewsIntervalMs      *int64
}

// MarketService handles instrument, book, transaction and parameter
// queries.
type MarketService struct {
	market *engine.Market
	now    func() time.Time
}

// NewMarketService creates a new MarketService.
func NewMarketService(market *engine.Market) *MarketService {
	return &MarketService{market: market, now: time.Now}
}

// ListInstruments returns every instrument in catalog order.
func (s *MarketService) ListInstruments() []domain.Instrument {
	return s.market.GetAllInstruments()
}

func (s *MarketService) GetInstrument(symbol string) (domain.Instrument, error) {
	return s.market.GetInstrument(symbol)
}

func (s *MarketService) GetHistory(symbol string) ([]float64, error) {
	return s.market.GetPriceHistory(symbol)
}

// GetBook returns every resting order of a symbol in priority order.
func (s *MarketService) GetBook(symbol string) (engine.BookSnapshot, error) {
	return s.market.GetOrderBook(symbol)
}

// GetDepth returns the top depth aggregated price levels per side.
func (s *MarketService) GetDepth(symbol string, depth int) (BookResponse, error) {
	if _, err := s.market.GetInstrument(symbol); err != nil {
		return BookResponse{}, err
	}
	if depth < 1 || depth > MaxBookDepth {
		return BookResponse{}, domain.InvalidRequest("depth must be between 1 and %d", MaxBookDepth)
	}

	d, err := s.market.GetDepth(symbol, depth)
	if err != nil {
		return BookResponse{}, err
	}
	return BookResponse{Depth: d, SnapshotAt: s.now()}, nil
}

// RecentTransactions returns up to limit of the newest transactions on a
// symbol, newest first.
func (s *MarketService) RecentTransactions(symbol string, limit int) ([]domain.Transaction, error) {
	if _, err := s.market.GetInstrument(symbol); err != nil {
		return nil, err
	}
	if limit < 1 || limit > MaxTransactionsLimit {
		return nil, domain.InvalidRequest("limit must be between 1 and %d", MaxTransactionsLimit)
	}
	return s.market.RecentTransactions(symbol, limit)
}

func (s *MarketService) Parameters() domain.MarketParameters {
	return s.market.Parameters()
}

// UpdateParameters applies a partial update. The whole update is rejected
// if the result is invalid.
func (s *MarketService) UpdateParameters(u ParametersUpdate) (domain.MarketParameters, error) {
	return s.market.SetParameters(domain.ParameterPatch{
		BaseVolatility:      u.BaseVolatility,
		MarketSentiment:     u.MarketSentiment,
		TradingVolumeFactor: u.TradingVolumeFactor,
		OrderImpactFactor:   u.OrderImpactFactor,
		MomentumFactor:      u.MomentumFactor,
		RandomWalkFactor:    u.RandomWalkFactor,
		SentimentChangeRate: u.SentimentChangeRate,
		NewsImpactFactor:    u.NewsImpactFactor,
		NewsProbability:     u.NewsProbability,
		PricingInterval:     millis(u.PricingIntervalMs),
		MatchingInterval:    millis(u.MatchingIntervalMs),
		NewsInterval:        millis(u.NewsIntervalMs),
	})
}

func millis(ms *int64) *time.Duration {
	if ms == nil {
		return nil
	}
	d := time.Duration(*ms) * time.Millisecond
	return &d
}
