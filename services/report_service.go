package services

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/storefront/commerce-backend/models"
	"github.com/storefront/commerce-backend/repository"
)

// Reports are read-side projections over already-committed order rows and
// the current stock snapshot. They run outside any transaction and carry no
// consistency contract beyond reflecting committed state at read time.

type ProductSales struct {
	ProductID     string  `json:"product_id"`
	Name          string  `json:"name"`
	TotalQuantity int     `json:"total_quantity"`
	TotalRevenue  float64 `json:"total_revenue"`
}

type SalesReport struct {
	TotalOrders        int                `json:"total_orders"`
	TotalRevenue       float64            `json:"total_revenue"`
	AverageOrderValue  float64            `json:"average_order_value"`
	TopSellingProducts []ProductSales     `json:"top_selling_products"`
	SalesByDate        map[string]float64 `json:"sales_by_date"`
}

type InventoryRow struct {
	ProductID  string  `json:"product_id"`
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Stock      int     `json:"stock"`
	Price      float64 `json:"price"`
	TotalValue float64 `json:"total_value"`
}

type CategoryPerformance struct {
	TotalQuantity int     `json:"total_quantity"`
	TotalRevenue  float64 `json:"total_revenue"`
	ProductCount  int     `json:"product_count"`
}

type ReportService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
}

func NewReportService(orderRepo repository.OrderRepository, productRepo repository.ProductRepository) *ReportService {
	return &ReportService{orderRepo: orderRepo, productRepo: productRepo}
}

// SalesReport aggregates delivered, paid orders: revenue totals, revenue per
// UTC date, and products ranked by units sold.
func (s *ReportService) SalesReport(ctx context.Context, start, end *time.Time) (*SalesReport, error) {
	orders, err := s.orderRepo.FindCompleted(ctx, start, end)
	if err != nil {
		return nil, err
	}

	report := &SalesReport{
		TotalOrders: len(orders),
		SalesByDate: make(map[string]float64),
	}

	byProduct := make(map[string]*ProductSales)

	for _, order := range orders {
		report.TotalRevenue += order.TotalAmount

		date := order.CreatedAt.UTC().Format("2006-01-02")
		report.SalesByDate[date] += order.TotalAmount

		for _, item := range order.Items {
			ps, ok := byProduct[item.ProductID]
			if !ok {
				ps = &ProductSales{ProductID: item.ProductID, Name: item.Name}
				byProduct[item.ProductID] = ps
			}
			ps.TotalQuantity += item.Quantity
			ps.TotalRevenue += float64(item.Quantity) * item.Price
		}
	}

	if len(orders) > 0 {
		report.AverageOrderValue = round2(report.TotalRevenue / float64(len(orders)))
	}
	report.TotalRevenue = round2(report.TotalRevenue)

	report.TopSellingProducts = make([]ProductSales, 0, len(byProduct))
	for _, ps := range byProduct {
		ps.TotalRevenue = round2(ps.TotalRevenue)
		report.TopSellingProducts = append(report.TopSellingProducts, *ps)
	}
	sort.Slice(report.TopSellingProducts, func(i, j int) bool {
		return report.TopSellingProducts[i].TotalQuantity > report.TopSellingProducts[j].TotalQuantity
	})

	return report, nil
}

// InventoryReport lists every product with its current stock and the value
// tied up in it.
func (s *ReportService) InventoryReport(ctx context.Context) ([]InventoryRow, error) {
	products, err := s.productRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]InventoryRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, InventoryRow{
			ProductID:  p.ID.Hex(),
			Name:       p.Name,
			Category:   p.Category,
			Stock:      p.Stock,
			Price:      p.Price,
			TotalValue: round2(float64(p.Stock) * p.Price),
		})
	}
	return rows, nil
}

// ProductPerformance aggregates sold quantity and revenue per product over
// all orders in a date range, regardless of status. Unlike the sales report's
// top-sellers list, cancelled and unpaid orders count too.
func (s *ReportService) ProductPerformance(ctx context.Context, start, end *time.Time) ([]ProductSales, error) {
	orders, err := s.orderRepo.FindBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}

	byProduct := make(map[string]*ProductSales)
	for _, order := range orders {
		for _, item := range order.Items {
			ps, ok := byProduct[item.ProductID]
			if !ok {
				ps = &ProductSales{ProductID: item.ProductID, Name: item.Name}
				byProduct[item.ProductID] = ps
			}
			ps.TotalQuantity += item.Quantity
			ps.TotalRevenue += float64(item.Quantity) * item.Price
		}
	}

	performance := make([]ProductSales, 0, len(byProduct))
	for _, ps := range byProduct {
		ps.TotalRevenue = round2(ps.TotalRevenue)
		performance = append(performance, *ps)
	}
	sort.Slice(performance, func(i, j int) bool {
		return performance[i].TotalQuantity > performance[j].TotalQuantity
	})

	return performance, nil
}

// CategoryReport aggregates sold quantity and revenue per product category.
// Order items carry only the opaque product id, so the category comes from a
// catalog lookup of the products that actually sold.
func (s *ReportService) CategoryReport(ctx context.Context, start, end *time.Time) (map[string]*CategoryPerformance, error) {
	orders, err := s.orderRepo.FindBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}

	type perf struct {
		quantity int
		revenue  float64
	}
	byProduct := make(map[string]*perf)
	for _, order := range orders {
		for _, item := range order.Items {
			p, ok := byProduct[item.ProductID]
			if !ok {
				p = &perf{}
				byProduct[item.ProductID] = p
			}
			p.quantity += item.Quantity
			p.revenue += float64(item.Quantity) * item.Price
		}
	}

	report := make(map[string]*CategoryPerformance)
	for productID, p := range byProduct {
		product, err := s.productRepo.FindByID(ctx, productID)
		if err != nil {
			// The product may have been removed from the catalog since the
			// sale; its rows still count, under an unknown category.
			if err == repository.ErrNotFound {
				product = &models.Product{Category: "unknown"}
			} else {
				return nil, err
			}
		}

		cp, ok := report[product.Category]
		if !ok {
			cp = &CategoryPerformance{}
			report[product.Category] = cp
		}
		cp.TotalQuantity += p.quantity
		cp.TotalRevenue = round2(cp.TotalRevenue + p.revenue)
		cp.ProductCount++
	}

	return report, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
