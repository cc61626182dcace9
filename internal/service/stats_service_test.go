package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afbrilian/mincommerce-sub000/internal/model"
)

// mockOrderStats is a mock implementation of OrderStatsInterface.
type mockOrderStats struct {
	statusCountsFn func(ctx context.Context, productID uuid.UUID) (map[string]int, error)
}

func (m *mockOrderStats) StatusCounts(ctx context.Context, productID uuid.UUID) (map[string]int, error) {
	if m.statusCountsFn != nil {
		return m.statusCountsFn(ctx, productID)
	}
	return map[string]int{}, nil
}

func TestStatsService_GetSaleStats(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sale, product, stock := activeSaleFixture(now)
	stock.TotalQuantity = 100
	stock.AvailableQuantity = 53

	sales := &mockSaleRepository{
		getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.FlashSale, error) { return sale, nil },
	}
	products := &mockProductRepository{
		getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Product, error) { return product, nil },
	}
	stockRepo := &mockStockReader{
		getByProductFn: func(ctx context.Context, productID uuid.UUID) (*model.Stock, error) { return stock, nil },
	}
	orders := &mockOrderStats{
		statusCountsFn: func(ctx context.Context, productID uuid.UUID) (map[string]int, error) {
			return map[string]int{
				model.OrderConfirmed: 47,
				model.OrderPending:   2,
				model.OrderCancelled: 5,
			}, nil
		},
	}

	svc := NewStatsService(sales, products, stockRepo, orders)
	stats, err := svc.GetSaleStats(context.Background(), sale.ID)

	require.NoError(t, err)
	assert.Equal(t, 54, stats.TotalOrders)
	assert.Equal(t, 47, stats.ConfirmedOrders)
	assert.Equal(t, 2, stats.PendingOrders)
	assert.Equal(t, 5, stats.FailedOrders, "cancelled orders surface as failed")
	assert.Equal(t, 100, stats.TotalQuantity)
	assert.Equal(t, 53, stats.AvailableQuantity)
	assert.Equal(t, 47, stats.SoldQuantity)

	wantRevenue := product.Price.Mul(decimal.NewFromInt(47))
	assert.True(t, wantRevenue.Equal(stats.TotalRevenue), "revenue = price * confirmed")
}

func TestStatsService_GetSaleStats_NoOrders(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sale, product, stock := activeSaleFixture(now)

	sales := &mockSaleRepository{
		getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.FlashSale, error) { return sale, nil },
	}
	products := &mockProductRepository{
		getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Product, error) { return product, nil },
	}
	stockRepo := &mockStockReader{
		getByProductFn: func(ctx context.Context, productID uuid.UUID) (*model.Stock, error) { return stock, nil },
	}

	svc := NewStatsService(sales, products, stockRepo, &mockOrderStats{})
	stats, err := svc.GetSaleStats(context.Background(), sale.ID)

	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalOrders)
	assert.Equal(t, 0, stats.SoldQuantity)
	assert.True(t, stats.TotalRevenue.IsZero())
}

func TestStatsService_GetSaleStats_SaleNotFound(t *testing.T) {
	svc := NewStatsService(&mockSaleRepository{}, &mockProductRepository{}, &mockStockReader{}, &mockOrderStats{})

	_, err := svc.GetSaleStats(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrSaleNotFound)
}

func TestStatsService_GetSaleStats_OrderCountError(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sale, product, stock := activeSaleFixture(now)

	sales := &mockSaleRepository{
		getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.FlashSale, error) { return sale, nil },
	}
	products := &mockProductRepository{
		getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Product, error) { return product, nil },
	}
	stockRepo := &mockStockReader{
		getByProductFn: func(ctx context.Context, productID uuid.UUID) (*model.Stock, error) { return stock, nil },
	}
	orders := &mockOrderStats{
		statusCountsFn: func(ctx context.Context, productID uuid.UUID) (map[string]int, error) {
			return nil, errors.New("database connection failed")
		},
	}

	svc := NewStatsService(sales, products, stockRepo, orders)
	_, err := svc.GetSaleStats(context.Background(), sale.ID)
	require.Error(t, err)
}
