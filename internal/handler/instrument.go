package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/engine"
	"github.com/efreitasn/marketsim/internal/service"
)

// InstrumentHandler handles HTTP requests for instrument endpoints.
type InstrumentHandler struct {
	marketSvc *service.MarketService
}

// NewInstrumentHandler creates a new InstrumentHandler.
func NewInstrumentHandler(marketSvc *service.MarketService) *InstrumentHandler {
	return &InstrumentHandler{marketSvc: marketSvc}
}

type priceLevelResponse struct {
	Price         float64 `json:"price"`
	TotalQuantity int64   `json:"totalQuantity"`
	OrderCount    int     `json:"orderCount"`
}

type depthResponse struct {
	Symbol     string               `json:"symbol"`
	Buy        []priceLevelResponse `json:"buy"`
	Sell       []priceLevelResponse `json:"sell"`
	Spread     *float64             `json:"spread"`
	SnapshotAt time.Time            `json:"snapshotAt"`
}

type historyResponse struct {
	Symbol string    `json:"symbol"`
	Prices []float64 `json:"prices"`
}

type transactionsResponse struct {
	Symbol       string                   `json:"symbol"`
	Transactions []engine.TransactionView `json:"transactions"`
}

// List handles GET /instruments.
func (h *InstrumentHandler) List(w http.ResponseWriter, r *http.Request) {
	all := h.marketSvc.ListInstruments()
	views := make([]engine.InstrumentView, len(all))
	for i, inst := range all {
		views[i] = engine.NewInstrumentView(inst)
	}
	WriteJSON(w, http.StatusOK, views)
}

// Get handles GET /instruments/{symbol}.
func (h *InstrumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	inst, err := h.marketSvc.GetInstrument(chi.URLParam(r, "symbol"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, engine.NewInstrumentView(inst))
}

// History handles GET /instruments/{symbol}/history.
func (h *InstrumentHandler) History(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	prices, err := h.marketSvc.GetHistory(symbol)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	for i, p := range prices {
		prices[i] = domain.RoundPrice(p)
	}
	WriteJSON(w, http.StatusOK, historyResponse{Symbol: symbol, Prices: prices})
}

// Book handles GET /instruments/{symbol}/book. Without a depth parameter
// it lists every resting order; with one it aggregates price levels.
func (h *InstrumentHandler) Book(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	if r.URL.Query().Get("depth") == "" {
		book, err := h.marketSvc.GetBook(symbol)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, engine.NewBookView(book))
		return
	}

	depth, err := queryInt(r, "depth", 10)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	book, err := h.marketSvc.GetDepth(symbol, depth)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, depthResponse{
		Symbol:     book.Symbol,
		Buy:        levels(book.Buy),
		Sell:       levels(book.Sell),
		Spread:     book.Spread,
		SnapshotAt: book.SnapshotAt.UTC(),
	})
}

func levels(in []engine.PriceLevel) []priceLevelResponse {
	out := make([]priceLevelResponse, len(in))
	for i, pl := range in {
		out[i] = priceLevelResponse{
			Price:         domain.RoundPrice(pl.Price),
			TotalQuantity: pl.TotalQuantity,
			OrderCount:    pl.OrderCount,
		}
	}
	return out
}

// Transactions handles GET /instruments/{symbol}/transactions.
func (h *InstrumentHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	limit, err := queryInt(r, "limit", service.DefaultTransactionsLimit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	txs, err := h.marketSvc.RecentTransactions(symbol, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	views := make([]engine.TransactionView, len(txs))
	for i, tx := range txs {
		views[i] = engine.NewTransactionView(tx)
	}
	WriteJSON(w, http.StatusOK, transactionsResponse{Symbol: symbol, Transactions: views})
}
