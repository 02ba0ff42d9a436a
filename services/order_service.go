package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/commerce-backend/common/logger"
	"github.com/storefront/commerce-backend/kafka"
	"github.com/storefront/commerce-backend/models"
	"github.com/storefront/commerce-backend/repository"
	"go.uber.org/zap"
)

// OrderPlacedEvent is published after a placement commits.
type OrderPlacedEvent struct {
	OrderID     string    `json:"order_id"`
	UserID      string    `json:"user_id"`
	TotalAmount float64   `json:"total_amount"`
	Timestamp   time.Time `json:"timestamp"`
}

// OrderStatusChangedEvent is published after a status update.
type OrderStatusChangedEvent struct {
	OrderID   string    `json:"order_id"`
	Field     string    `json:"field"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type OrderListResponse struct {
	Orders []models.Order `json:"orders"`
	Meta   MetaData       `json:"meta"`
}

type MetaData struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalOrders int64 `json:"total_orders"`
	TotalPages  int64 `json:"total_pages"`
	HasMore     bool  `json:"has_more"`
}

// OrderService coordinates order placement across the cart/stock document
// store and the relational order ledger. The two stores share no transaction
// coordinator, so placement runs as a saga: stock reservations applied along
// the way are tracked and reversed on any abort path.
type OrderService struct {
	orderRepo   repository.OrderRepository
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	producer    kafka.ProducerAPI
	logger      *zap.Logger
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	producer kafka.ProducerAPI,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		producer:    producer,
		logger:      logger,
	}
}

type appliedReservation struct {
	productID string
	quantity  int
}

// PlaceOrder turns the user's cart into an order.
//
// Steps, in order: read the cart (empty carts fail before anything is
// written); reserve stock per line item through the store's atomic
// conditional decrement, pushing each success onto an undo stack; persist the
// order header and all item rows in one relational transaction; only after
// commit, clear the cart and publish the placement event, both best-effort.
//
// Any failure after the first reservation reverses exactly the reservations
// applied so far, in reverse order, so an aborted attempt leaves stock as it
// was. No order row ever exists without its stock decrements and no
// decrement survives without its order.
func (s *OrderService) PlaceOrder(ctx context.Context, userID string, address models.ShippingAddress) (*models.Order, error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return nil, &ValidationError{Message: "invalid user ID format"}
	}

	cart, err := s.cartRepo.Get(ctx, userID)
	if err != nil {
		return nil, &PersistenceError{Err: fmt.Errorf("load cart: %w", err)}
	}
	if len(cart.Items) == 0 {
		return nil, ErrCartEmpty
	}

	total := 0.0
	for _, item := range cart.Items {
		total += item.Price * float64(item.Quantity)
	}

	order := &models.Order{
		UserID:          userUUID,
		TotalAmount:     math.Round(total*100) / 100,
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		ShippingAddress: address,
		Items:           make([]models.OrderItem, 0, len(cart.Items)),
	}

	var applied []appliedReservation

	for _, item := range cart.Items {
		if err := s.productRepo.ReserveStock(ctx, item.ProductID, item.Quantity); err != nil {
			s.releaseReservations(ctx, applied)

			switch {
			case errors.Is(err, repository.ErrInsufficientStock):
				return nil, &StockError{ProductID: item.ProductID, ProductName: s.productName(ctx, item)}
			case errors.Is(err, repository.ErrNotFound):
				return nil, fmt.Errorf("product %s: %w", item.ProductID, repository.ErrNotFound)
			default:
				return nil, &PersistenceError{Err: fmt.Errorf("reserve stock for %s: %w", item.ProductID, err)}
			}
		}
		applied = append(applied, appliedReservation{productID: item.ProductID, quantity: item.Quantity})

		order.Items = append(order.Items, models.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Name:      item.Name,
		})
	}

	if err := s.orderRepo.CreateWithItems(ctx, order); err != nil {
		s.releaseReservations(ctx, applied)
		return nil, &PersistenceError{Err: fmt.Errorf("create order: %w", err)}
	}

	// The order is committed; everything below is best-effort. A stale cart
	// is a UX inconvenience, not a data-integrity violation.
	if err := s.cartRepo.Clear(ctx, userID); err != nil {
		s.logger.Warn("cart clear failed after order commit",
			logger.RequestID(ctx),
			zap.String("order_id", order.ID.String()),
			zap.String("user_id", userID),
			zap.Error(err))
	}

	s.publishEvent(order.ID.String(), OrderPlacedEvent{
		OrderID:     order.ID.String(),
		UserID:      userID,
		TotalAmount: order.TotalAmount,
		Timestamp:   time.Now().UTC(),
	})

	return order, nil
}

// releaseReservations runs the undo stack in reverse. Compensation must
// complete even if the caller's context was cancelled mid-placement.
func (s *OrderService) releaseReservations(ctx context.Context, applied []appliedReservation) {
	ctx = context.WithoutCancel(ctx)
	for i := len(applied) - 1; i >= 0; i-- {
		r := applied[i]
		if err := s.productRepo.ReleaseStock(ctx, r.productID, r.quantity); err != nil {
			s.logger.Error("stock release failed during placement rollback",
				logger.RequestID(ctx),
				zap.String("product_id", r.productID),
				zap.Int("quantity", r.quantity),
				zap.Error(err))
		}
	}
}

// productName prefers the live catalog name for error messages, falling back
// to the cart's snapshot.
func (s *OrderService) productName(ctx context.Context, item models.CartItem) string {
	if p, err := s.productRepo.FindByID(ctx, item.ProductID); err == nil {
		return p.Name
	}
	return item.Name
}

func (s *OrderService) publishEvent(key string, event interface{}) {
	if s.producer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to marshal order event", zap.Error(err))
		return
	}
	// Best-effort: a lost event never fails the request.
	if err := s.producer.Publish(context.Background(), key, data); err != nil {
		s.logger.Warn("order event publish failed", zap.String("key", key), zap.Error(err))
	}
}

// GetOrder returns a single order. Only the owning user or an admin may read
// it.
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID, requestingUserID string, isAdmin bool) (*models.Order, error) {
	if isAdmin {
		return s.orderRepo.FindByID(ctx, orderID)
	}

	userUUID, err := uuid.Parse(requestingUserID)
	if err != nil {
		return nil, &ValidationError{Message: "invalid user ID format"}
	}
	return s.orderRepo.FindByIDAndUserID(ctx, orderID, userUUID)
}

// ListOrders retrieves paginated orders for a specific user
func (s *OrderService) ListOrders(ctx context.Context, userID string, page, limit int) (*OrderListResponse, error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return nil, &ValidationError{Message: "invalid user ID format"}
	}

	orders, total, err := s.orderRepo.FindByUserID(ctx, userUUID, page, limit)
	if err != nil {
		return nil, err
	}

	return &OrderListResponse{
		Orders: orders,
		Meta: MetaData{
			Page:        page,
			Limit:       limit,
			TotalOrders: total,
			TotalPages:  calculateTotalPages(total, limit),
			HasMore:     total > int64(page*limit),
		},
	}, nil
}

// UpdateStatus writes a new order status. The value must be a member of the
// status enum; transitions between members are not validated.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status models.OrderStatus) error {
	if !status.Valid() {
		return &ValidationError{Message: fmt.Sprintf("invalid order status %q", status)}
	}
	if err := s.orderRepo.UpdateStatus(ctx, orderID, status); err != nil {
		return err
	}

	s.publishEvent(orderID.String(), OrderStatusChangedEvent{
		OrderID:   orderID.String(),
		Field:     "status",
		Status:    string(status),
		Timestamp: time.Now().UTC(),
	})
	return nil
}

// UpdatePaymentStatus writes a new payment status, independent of the order
// status.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status models.PaymentStatus) error {
	if !status.Valid() {
		return &ValidationError{Message: fmt.Sprintf("invalid payment status %q", status)}
	}
	if err := s.orderRepo.UpdatePaymentStatus(ctx, orderID, status); err != nil {
		return err
	}

	s.publishEvent(orderID.String(), OrderStatusChangedEvent{
		OrderID:   orderID.String(),
		Field:     "payment_status",
		Status:    string(status),
		Timestamp: time.Now().UTC(),
	})
	return nil
}

func calculateTotalPages(total int64, limit int) int64 {
	if limit == 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}
