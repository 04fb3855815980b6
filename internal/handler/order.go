package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/engine"
	"github.com/efreitasn/marketsim/internal/service"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// submitOrderRequest is the JSON request body for POST /orders.
type submitOrderRequest struct {
	UserID     string   `json:"userId"`
	Symbol     string   `json:"symbol"`
	Side       string   `json:"side"`
	Quantity   int64    `json:"quantity"`
	LimitPrice *float64 `json:"limitPrice"`
}

type submitOrderResponse struct {
	Success bool             `json:"success"`
	OrderID string           `json:"orderId"`
	Order   engine.OrderView `json:"order"`
}

type orderListResponse struct {
	Orders []engine.OrderView `json:"orders"`
	Total  int                `json:"total"`
	Page   int                `json:"page"`
	Limit  int                `json:"limit"`
}

// SubmitOrder handles POST /orders.
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	order, err := h.orderSvc.SubmitOrder(service.SubmitOrderRequest{
		UserID:     req.UserID,
		Symbol:     req.Symbol,
		Side:       domain.OrderSide(req.Side),
		Quantity:   req.Quantity,
		LimitPrice: req.LimitPrice,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, submitOrderResponse{
		Success: true,
		OrderID: order.ID,
		Order:   engine.NewOrderView(order),
	})
}

// GetOrder handles GET /orders/{order_id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderSvc.GetOrder(chi.URLParam(r, "order_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, engine.NewOrderView(order))
}

// CancelOrder handles DELETE /orders/{order_id}.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderSvc.CancelOrder(chi.URLParam(r, "order_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, engine.NewOrderView(order))
}

// ListOrders handles GET /users/{user_id}/orders.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	var statusFilter *domain.OrderStatus
	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.OrderStatus(s)
		statusFilter = &status
	}

	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	orders, total, err := h.orderSvc.ListOrders(userID, statusFilter, page, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	views := make([]engine.OrderView, len(orders))
	for i, o := range orders {
		views[i] = engine.NewOrderView(o)
	}
	WriteJSON(w, http.StatusOK, orderListResponse{
		Orders: views,
		Total:  total,
		Page:   page,
		Limit:  limit,
	})
}
