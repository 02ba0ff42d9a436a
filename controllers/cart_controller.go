package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/storefront/commerce-backend/common/logger"
	"github.com/storefront/commerce-backend/middleware"
	"github.com/storefront/commerce-backend/repository"
	"github.com/storefront/commerce-backend/services"
	"go.uber.org/zap"
)

type CartController struct {
	cartService *services.CartService
	logger      *zap.Logger
}

func NewCartController(cartService *services.CartService, logger *zap.Logger) *CartController {
	return &CartController{cartService: cartService, logger: logger}
}

// GetCart returns the current cart for a user, creating it on first access.
func (cc *CartController) GetCart(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	cart, err := cc.cartService.Get(c.Request.Context(), userID)
	if err != nil {
		cc.logger.Error("failed to get cart",
			logger.RequestID(c.Request.Context()), zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get cart"})
		return
	}

	c.JSON(http.StatusOK, cart)
}

type addItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// AddItem adds a product to the cart or increments its quantity.
func (cc *CartController) AddItem(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	cart, err := cc.cartService.AddItem(c.Request.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		cc.respondCartError(c, userID, err)
		return
	}

	c.JSON(http.StatusOK, cart)
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" binding:"required,min=0"`
}

// UpdateItem sets the quantity of a cart line; zero removes it.
func (cc *CartController) UpdateItem(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	productID := c.Param("product_id")

	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	cart, err := cc.cartService.UpdateQuantity(c.Request.Context(), userID, productID, *req.Quantity)
	if err != nil {
		cc.respondCartError(c, userID, err)
		return
	}

	c.JSON(http.StatusOK, cart)
}

// RemoveItem removes one product line from the cart.
func (cc *CartController) RemoveItem(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	productID := c.Param("product_id")

	cart, err := cc.cartService.RemoveItem(c.Request.Context(), userID, productID)
	if err != nil {
		cc.respondCartError(c, userID, err)
		return
	}

	c.JSON(http.StatusOK, cart)
}

// ClearCart empties the cart without deleting it.
func (cc *CartController) ClearCart(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	cart, err := cc.cartService.Clear(c.Request.Context(), userID)
	if err != nil {
		cc.respondCartError(c, userID, err)
		return
	}

	c.JSON(http.StatusOK, cart)
}

func (cc *CartController) respondCartError(c *gin.Context, userID string, err error) {
	var stockErr *services.StockError
	var validationErr *services.ValidationError

	switch {
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{"error": stockErr.Error(), "product": stockErr.ProductName})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	default:
		cc.logger.Error("cart operation failed",
			logger.RequestID(c.Request.Context()), zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cart operation failed"})
	}
}
