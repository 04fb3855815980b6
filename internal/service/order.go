package service

import (
	"regexp"

	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/engine"
)

var userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidOrderStatuses lists all valid order status values for validation.
var ValidOrderStatuses = map[domain.OrderStatus]bool{
	domain.OrderStatusActive:    true,
	domain.OrderStatusFilled:    true,
	domain.OrderStatusCancelled: true,
}

// SubmitOrderRequest represents the input for order submission.
type SubmitOrderRequest struct {
	UserID     string // optional, defaults to anonymous
	Symbol     string
	Side       domain.OrderSide
	Quantity   int64
	LimitPrice *float64 // required
}

// OrderService handles order submission, retrieval, cancellation, and listing.
type OrderService struct {
	market *engine.Market
}

// NewOrderService creates a new OrderService.
func NewOrderService(market *engine.Market) *OrderService {
	return &OrderService{market: market}
}

// SubmitOrder validates the request and rests the order on its book. The
// order only trades on a later matching tick.
func (s *OrderService) SubmitOrder(req SubmitOrderRequest) (domain.Order, error) {
	if req.UserID != "" && !userIDRegex.MatchString(req.UserID) {
		return domain.Order{}, domain.InvalidOrder("userId must match ^[a-zA-Z0-9_-]{1,64}$")
	}
	if req.LimitPrice == nil {
		return domain.Order{}, domain.InvalidOrder("limitPrice is required")
	}

	return s.market.SubmitOrder(domain.Order{
		UserID:     req.UserID,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Quantity:   req.Quantity,
		LimitPrice: *req.LimitPrice,
	})
}

// GetOrder retrieves an order by ID.
func (s *OrderService) GetOrder(orderID string) (domain.Order, error) {
	return s.market.GetOrder(orderID)
}

// CancelOrder cancels an active order.
func (s *OrderService) CancelOrder(orderID string) (domain.Order, error) {
	return s.market.CancelOrder(orderID)
}

// ListOrders returns a paginated list of a user's orders, newest first,
// with optional status filtering.
func (s *OrderService) ListOrders(userID string, status *domain.OrderStatus, page, limit int) ([]domain.Order, int, error) {
	if status != nil && !ValidOrderStatuses[*status] {
		return nil, 0, domain.InvalidRequest("Invalid status filter: '%s'. Must be one of: active, filled, cancelled", *status)
	}
	if err := validatePage(page, limit); err != nil {
		return nil, 0, err
	}

	orders, total := s.market.ListOrders(userID, status, page, limit)
	return orders, total, nil
}

func validatePage(page, limit int) error {
	if page < 1 {
		return domain.InvalidRequest("page must be >= 1")
	}
	if limit < 1 || limit > 100 {
		return domain.InvalidRequest("limit must be between 1 and 100")
	}
	return nil
}
