package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/storefront/commerce-backend/controllers"
	"github.com/storefront/commerce-backend/middleware"
)

func RegisterRoutes(
	r *gin.Engine,
	pc *controllers.ProductController,
	cc *controllers.CartController,
	oc *controllers.OrderController,
	rc *controllers.ReportController,
) {
	// Public catalog routes
	products := r.Group("/products")
	products.GET("/", pc.GetProducts)
	products.GET("/categories", pc.GetCategories)
	products.GET("/:id", pc.GetProduct)

	// Admin catalog routes
	adminProducts := r.Group("/products")
	adminProducts.Use(middleware.AuthMiddleware(), middleware.AdminOnly())
	adminProducts.POST("/", pc.CreateProduct)
	adminProducts.PUT("/:id", pc.UpdateProduct)
	adminProducts.PUT("/:id/stock", pc.SetStock)
	adminProducts.DELETE("/:id", pc.DeleteProduct)

	// Cart routes
	cart := r.Group("/cart")
	cart.Use(middleware.AuthMiddleware())
	cart.GET("/", cc.GetCart)
	cart.POST("/items", cc.AddItem)
	cart.PUT("/items/:product_id", cc.UpdateItem)
	cart.DELETE("/items/:product_id", cc.RemoveItem)
	cart.DELETE("/", cc.ClearCart)

	// Order routes
	orders := r.Group("/orders")
	orders.Use(middleware.AuthMiddleware())
	orders.POST("/", oc.PlaceOrder)
	orders.GET("/", oc.GetOrders)
	orders.GET("/:id", oc.GetOrderByID)

	adminOrders := r.Group("/orders")
	adminOrders.Use(middleware.AuthMiddleware(), middleware.AdminOnly())
	adminOrders.PUT("/:id/status", oc.UpdateStatus)
	adminOrders.PUT("/:id/payment", oc.UpdatePaymentStatus)

	// Report routes (admin only)
	reports := r.Group("/reports")
	reports.Use(middleware.AuthMiddleware(), middleware.AdminOnly())
	reports.GET("/sales", rc.GetSalesReport)
	reports.GET("/products", rc.GetProductPerformance)
	reports.GET("/inventory", rc.GetInventoryReport)
	reports.GET("/categories", rc.GetCategoryReport)
}
