package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/storefront/commerce-backend/models"
	"github.com/storefront/commerce-backend/repository"
	"go.uber.org/zap"
)

type ProductController struct {
	productRepo repository.ProductRepository
	cache       *CacheManager
	logger      *zap.Logger
}

func NewProductController(productRepo repository.ProductRepository, cache *CacheManager, logger *zap.Logger) *ProductController {
	return &ProductController{
		productRepo: productRepo,
		cache:       cache,
		logger:      logger,
	}
}

// GetProducts lists catalog products, optionally filtered by category.
func (pc *ProductController) GetProducts(c *gin.Context) {
	page, limit := parsePaginationParams(c)
	category := c.Query("category")

	products, err := pc.productRepo.Find(c.Request.Context(), category, limit, (page-1)*limit)
	if err != nil {
		pc.logger.Error("failed to list products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products, "page": page, "limit": limit})
}

// GetProduct returns one product, read through the cache.
func (pc *ProductController) GetProduct(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	if product, ok := pc.cache.GetProduct(ctx, id); ok {
		c.JSON(http.StatusOK, product)
		return
	}

	product, err := pc.productRepo.FindByID(ctx, id)
	if err == repository.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	if err != nil {
		pc.logger.Error("failed to fetch product", zap.String("product_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return
	}

	pc.cache.SetProduct(ctx, product)
	c.JSON(http.StatusOK, product)
}

func (pc *ProductController) GetCategories(c *gin.Context) {
	categories, err := pc.productRepo.Categories(c.Request.Context())
	if err != nil {
		pc.logger.Error("failed to list categories", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch categories"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

type createProductRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Price       float64  `json:"price" binding:"required,gt=0"`
	Stock       int      `json:"stock" binding:"min=0"`
	Category    string   `json:"category" binding:"required"`
	Images      []string `json:"images"`
}

// CreateProduct adds a product to the catalog (admin only).
func (pc *ProductController) CreateProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	product := &models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Category:    req.Category,
		Images:      req.Images,
	}

	if err := pc.productRepo.Create(c.Request.Context(), product); err != nil {
		pc.logger.Error("failed to create product", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
		return
	}

	c.JSON(http.StatusCreated, product)
}

// UpdateProduct applies a partial update to a product (admin only).
func (pc *ProductController) UpdateProduct(c *gin.Context) {
	id := c.Param("id")

	var req map[string]interface{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	allowed := map[string]bool{"name": true, "description": true, "price": true, "category": true, "images": true}
	updates := make(map[string]interface{})
	for k, v := range req {
		if allowed[k] {
			updates[k] = v
		}
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No updatable fields in request"})
		return
	}

	ctx := c.Request.Context()
	if err := pc.productRepo.Update(ctx, id, updates); err != nil {
		if err == repository.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		pc.logger.Error("failed to update product", zap.String("product_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update product"})
		return
	}

	pc.cache.InvalidateProduct(ctx, id)
	c.JSON(http.StatusOK, gin.H{"message": "Product updated"})
}

type setStockRequest struct {
	Stock *int `json:"stock" binding:"required,min=0"`
}

// SetStock is the admin direct-set path for stock. Placement never calls
// this; it uses the conditional decrement.
func (pc *ProductController) SetStock(c *gin.Context) {
	id := c.Param("id")

	var req setStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := pc.productRepo.SetStock(ctx, id, *req.Stock); err != nil {
		if err == repository.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		pc.logger.Error("failed to set stock", zap.String("product_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to set stock"})
		return
	}

	pc.cache.InvalidateProduct(ctx, id)
	c.JSON(http.StatusOK, gin.H{"message": "Stock updated"})
}

// DeleteProduct removes a product from the catalog (admin only).
func (pc *ProductController) DeleteProduct(c *gin.Context) {
	id := c.Param("id")

	ctx := c.Request.Context()
	if err := pc.productRepo.Delete(ctx, id); err != nil {
		if err == repository.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		pc.logger.Error("failed to delete product", zap.String("product_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete product"})
		return
	}

	pc.cache.InvalidateProduct(ctx, id)
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
}

// parsePaginationParams extracts and validates pagination parameters
func parsePaginationParams(c *gin.Context) (int, int) {
	const maxLimit = 100

	pageInt := 1
	limitInt := 10

	if p, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && p > 0 {
		pageInt = p
	}
	if l, err := strconv.Atoi(c.DefaultQuery("limit", "10")); err == nil && l > 0 {
		limitInt = l
		if limitInt > maxLimit {
			limitInt = maxLimit
		}
	}

	return pageInt, limitInt
}
