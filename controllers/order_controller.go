package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/storefront/commerce-backend/common/logger"
	"github.com/storefront/commerce-backend/middleware"
	"github.com/storefront/commerce-backend/models"
	"github.com/storefront/commerce-backend/repository"
	"github.com/storefront/commerce-backend/services"
	"go.uber.org/zap"
)

type OrderController struct {
	orderService *services.OrderService
	logger       *zap.Logger
}

func NewOrderController(orderService *services.OrderService, logger *zap.Logger) *OrderController {
	return &OrderController{orderService: orderService, logger: logger}
}

type placeOrderRequest struct {
	ShippingAddress models.ShippingAddress `json:"shipping_address" binding:"required"`
}

// PlaceOrder turns the caller's cart into an order. Every failure maps to a
// distinguishable reason so the client can tell "pick another product" from
// "try again later".
func (oc *OrderController) PlaceOrder(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	order, err := oc.orderService.PlaceOrder(c.Request.Context(), userID, req.ShippingAddress)
	if err != nil {
		oc.respondPlacementError(c, userID, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Order created successfully", "order": order})
}

func (oc *OrderController) respondPlacementError(c *gin.Context, userID string, err error) {
	var stockErr *services.StockError
	var validationErr *services.ValidationError
	var persistenceErr *services.PersistenceError

	switch {
	case errors.Is(err, services.ErrCartEmpty):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cart is empty", "code": "cart_empty"})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":   stockErr.Error(),
			"code":    "insufficient_stock",
			"product": stockErr.ProductName,
		})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found", "code": "not_found"})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message, "code": "validation"})
	case errors.As(err, &persistenceErr):
		oc.logger.Error("order placement failed",
			logger.RequestID(c.Request.Context()), zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to place order", "code": "persistence"})
	default:
		oc.logger.Error("order placement failed",
			logger.RequestID(c.Request.Context()), zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to place order", "code": "persistence"})
	}
}

// GetOrders returns paginated orders for the authenticated user.
func (oc *OrderController) GetOrders(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	page, limit := parsePaginationParams(c)

	result, err := oc.orderService.ListOrders(c.Request.Context(), userID, page, limit)
	if err != nil {
		var validationErr *services.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message})
			return
		}
		oc.logger.Error("failed to fetch orders",
			logger.RequestID(c.Request.Context()), zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetOrderByID returns one order; only its owner or an admin may read it.
func (oc *OrderController) GetOrderByID(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	orderUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID format"})
		return
	}

	order, err := oc.orderService.GetOrder(c.Request.Context(), orderUUID, userID, middleware.IsAdmin(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		oc.logger.Error("failed to fetch order",
			logger.RequestID(c.Request.Context()), zap.String("order_id", orderUUID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus writes a new order status (admin only). Unknown values are
// rejected; transitions between known values are not validated.
func (oc *OrderController) UpdateStatus(c *gin.Context) {
	orderUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID format"})
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	err = oc.orderService.UpdateStatus(c.Request.Context(), orderUUID, models.OrderStatus(req.Status))
	if err != nil {
		oc.respondStatusError(c, orderUUID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Order status updated", "status": req.Status})
}

type updatePaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" binding:"required"`
}

// UpdatePaymentStatus writes a new payment status (admin only), independent
// of the order status.
func (oc *OrderController) UpdatePaymentStatus(c *gin.Context) {
	orderUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID format"})
		return
	}

	var req updatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	err = oc.orderService.UpdatePaymentStatus(c.Request.Context(), orderUUID, models.PaymentStatus(req.PaymentStatus))
	if err != nil {
		oc.respondStatusError(c, orderUUID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Payment status updated", "payment_status": req.PaymentStatus})
}

func (oc *OrderController) respondStatusError(c *gin.Context, orderID uuid.UUID, err error) {
	var validationErr *services.ValidationError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
	default:
		oc.logger.Error("failed to update order",
			logger.RequestID(c.Request.Context()), zap.String("order_id", orderID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order"})
	}
}
