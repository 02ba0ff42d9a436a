package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/storefront/commerce-backend/services"
	"go.uber.org/zap"
)

type ReportController struct {
	reportService *services.ReportService
	logger        *zap.Logger
}

func NewReportController(reportService *services.ReportService, logger *zap.Logger) *ReportController {
	return &ReportController{reportService: reportService, logger: logger}
}

// GetSalesReport aggregates delivered, paid orders, optionally within a
// start_date/end_date range (YYYY-MM-DD).
func (rc *ReportController) GetSalesReport(c *gin.Context) {
	start, end, ok := parseDateRange(c)
	if !ok {
		return
	}

	report, err := rc.reportService.SalesReport(c.Request.Context(), start, end)
	if err != nil {
		rc.logger.Error("failed to generate sales report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate sales report"})
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetInventoryReport lists current stock and its value per product.
func (rc *ReportController) GetInventoryReport(c *gin.Context) {
	rows, err := rc.reportService.InventoryReport(c.Request.Context())
	if err != nil {
		rc.logger.Error("failed to generate inventory report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate inventory report"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"inventory": rows})
}

// GetProductPerformance aggregates sold quantity and revenue per product
// across orders of every status.
func (rc *ReportController) GetProductPerformance(c *gin.Context) {
	start, end, ok := parseDateRange(c)
	if !ok {
		return
	}

	performance, err := rc.reportService.ProductPerformance(c.Request.Context(), start, end)
	if err != nil {
		rc.logger.Error("failed to generate product performance report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate product performance report"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": performance})
}

// GetCategoryReport aggregates sold quantity and revenue per category.
func (rc *ReportController) GetCategoryReport(c *gin.Context) {
	start, end, ok := parseDateRange(c)
	if !ok {
		return
	}

	report, err := rc.reportService.CategoryReport(c.Request.Context(), start, end)
	if err != nil {
		rc.logger.Error("failed to generate category report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate category report"})
		return
	}

	c.JSON(http.StatusOK, report)
}

// parseDateRange reads start_date and end_date query params. Both must be
// present for a range to apply; a malformed date writes the error response
// and returns ok=false.
func parseDateRange(c *gin.Context) (*time.Time, *time.Time, bool) {
	startStr := c.Query("start_date")
	endStr := c.Query("end_date")
	if startStr == "" || endStr == "" {
		return nil, nil, true
	}

	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start_date, expected YYYY-MM-DD"})
		return nil, nil, false
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end_date, expected YYYY-MM-DD"})
		return nil, nil, false
	}

	// Include the whole end day.
	end = end.Add(24*time.Hour - time.Nanosecond)
	return &start, &end, true
}
