package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/afbrilian/mincommerce-sub000/internal/model"
)

// OrderStatsInterface defines the order aggregation the stats read model needs.
type OrderStatsInterface interface {
	StatusCounts(ctx context.Context, productID uuid.UUID) (map[string]int, error)
}

// StatsService is the admin-facing read model over orders and stock.
// Read-only and not latency-critical.
type StatsService struct {
	sales    SaleRepositoryInterface
	products ProductRepositoryInterface
	stock    StockReaderInterface
	orders   OrderStatsInterface
}

// NewStatsService creates a new StatsService.
func NewStatsService(sales SaleRepositoryInterface, products ProductRepositoryInterface, stock StockReaderInterface, orders OrderStatsInterface) *StatsService {
	return &StatsService{sales: sales, products: products, stock: stock, orders: orders}
}

// GetSaleStats aggregates order counts and stock for a sale.
// Cancelled orders surface as failedOrders; soldQuantity equals
// confirmedOrders by invariant.
func (s *StatsService) GetSaleStats(ctx context.Context, saleID uuid.UUID) (*model.SaleStats, error) {
	sale, err := s.sales.GetByID(ctx, saleID)
	if err != nil {
		return nil, err
	}

	product, err := s.products.GetByID(ctx, sale.ProductID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	stock, err := s.stock.GetByProduct(ctx, sale.ProductID)
	if err != nil {
		return nil, fmt.Errorf("get stock: %w", err)
	}
	if stock == nil {
		return nil, ErrStockNotFound
	}

	counts, err := s.orders.StatusCounts(ctx, sale.ProductID)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	confirmed := counts[model.OrderConfirmed]
	pending := counts[model.OrderPending]
	failed := counts[model.OrderCancelled]

	return &model.SaleStats{
		TotalOrders:       confirmed + pending + failed,
		ConfirmedOrders:   confirmed,
		PendingOrders:     pending,
		FailedOrders:      failed,
		TotalQuantity:     stock.TotalQuantity,
		AvailableQuantity: stock.AvailableQuantity,
		SoldQuantity:      confirmed,
		TotalRevenue:      product.Price.Mul(decimal.NewFromInt(int64(confirmed))),
	}, nil
}
