package handler

import (
	"net/http"

	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/service"
)

// ParametersHandler exposes the live market parameters.
type ParametersHandler struct {
	marketSvc *service.MarketService
}

func NewParametersHandler(marketSvc *service.MarketService) *ParametersHandler {
	return &ParametersHandler{marketSvc: marketSvc}
}

type parametersResponse struct {
	BaseVolatility      float64 `json:"baseVolatility"`
	MarketSentiment     float64 `json:"marketSentiment"`
	TradingVolumeFactor float64 `json:"tradingVolumeFactor"`
	OrderImpactFactor   float64 `json:"orderImpactFactor"`
	MomentumFactor      float64 `json:"momentumFactor"`
	RandomWalkFactor    float64 `json:"randomWalkFactor"`
	SentimentChangeRate float64 `json:"sentimentChangeRate"`
	NewsImpactFactor    float64 `json:"newsImpactFactor"`
	NewsProbability     float64 `json:"newsProbability"`
	PricingIntervalMs   int64   `json:"pricingIntervalMs"`
	MatchingIntervalMs  int64   `json:"matchingIntervalMs"`
	NewsIntervalMs      int64   `json:"newsIntervalMs"`
}

// parametersRequest is the JSON body for PATCH /parameters. Absent fields
// are left unchanged.
type parametersRequest struct {
	BaseVolatility      *float64 `json:"baseVolatility"`
	MarketSentiment     *float64 `json:"marketSentiment"`
	TradingVolumeFactor *float64 `json:"tradingVolumeFactor"`
	OrderImpactFactor   *float64 `json:"orderImpactFactor"`
	MomentumFactor      *float64 `json:"momentumFactor"`
	RandomWalkFactor    *float64 `json:"randomWalkFactor"`
	SentimentChangeRate *float64 `json:"sentimentChangeRate"`
	NewsImpactFactor    *float64 `json:"newsImpactFactor"`
	NewsProbability     *float64 `json:"newsProbability"`
	PricingIntervalMs   *int64   `json:"pricingIntervalMs"`
	MatchingIntervalMs  *int64   `json:"matchingIntervalMs"`
	NewsIntervalMs      *int64   `json:"newsIntervalMs"`
}

func newParametersResponse(p domain.MarketParameters) parametersResponse {
	return parametersResponse{
		BaseVolatility:      p.BaseVolatility,
		MarketSentiment:     domain.RoundPercent(p.MarketSentiment),
		TradingVolumeFactor: p.TradingVolumeFactor,
		OrderImpactFactor:   p.OrderImpactFactor,
		MomentumFactor:      p.MomentumFactor,
		RandomWalkFactor:    p.RandomWalkFactor,
		SentimentChangeRate: p.SentimentChangeRate,
		NewsImpactFactor:    p.NewsImpactFactor,
		NewsProbability:     p.NewsProbability,
		PricingIntervalMs:   p.PricingInterval.Milliseconds(),
		MatchingIntervalMs:  p.MatchingInterval.Milliseconds(),
		NewsIntervalMs:      p.NewsInterval.Milliseconds(),
	}
}

// Get handles GET /parameters.
func (h *ParametersHandler) Get(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, newParametersResponse(h.marketSvc.Parameters()))
}

// Update handles PATCH /parameters.
func (h *ParametersHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req parametersRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	p, err := h.marketSvc.UpdateParameters(service.ParametersUpdate{
		BaseVolatility:      req.BaseVolatility,
		MarketSentiment:     req.MarketSentiment,
		TradingVolumeFactor: req.TradingVolumeFactor,
		OrderImpactFactor:   req.OrderImpactFactor,
		MomentumFactor:      req.MomentumFactor,
		RandomWalkFactor:    req.RandomWalkFactor,
		SentimentChangeRate: req.SentimentChangeRate,
		NewsImpactFactor:    req.NewsImpactFactor,
		NewsProbability:     req.NewsProbability,
		PricingIntervalMs:   req.PricingIntervalMs,
		MatchingIntervalMs:  req.MatchingIntervalMs,
		NewsIntervalMs:      req.NewsIntervalMs,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, newParametersResponse(p))
}
