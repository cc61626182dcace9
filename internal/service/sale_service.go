package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/afbrilian/mincommerce-sub000/internal/cache"
	"github.com/afbrilian/mincommerce-sub000/internal/model"
)

// SaleRepositoryInterface defines the interface for sale data access.
type SaleRepositoryInterface interface {
	GetLatest(ctx context.Context) (*model.FlashSale, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.FlashSale, error)
	Insert(ctx context.Context, sale *model.FlashSale) error
	Update(ctx context.Context, sale *model.FlashSale) error
}

// ProductRepositoryInterface defines the interface for product data access.
type ProductRepositoryInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
}

// StockReaderInterface defines the read-side stock access.
type StockReaderInterface interface {
	GetByProduct(ctx context.Context, productID uuid.UUID) (*model.Stock, error)
}

// SaleCacheInterface defines the sale-status projection cache.
type SaleCacheInterface interface {
	GetSaleStatus(ctx context.Context, key string) (*model.SaleStatusResponse, error)
	SetSaleStatus(ctx context.Context, key string, status *model.SaleStatusResponse) error
	InvalidateSaleStatus(ctx context.Context, saleID uuid.UUID) error
}

// SaleService serves the sale-status projection and the admin write path.
// Status is always derived from wall-clock, never stored.
type SaleService struct {
	sales    SaleRepositoryInterface
	products ProductRepositoryInterface
	stock    StockReaderInterface
	cache    SaleCacheInterface
	clock    func() time.Time
}

// NewSaleService creates a new SaleService.
func NewSaleService(sales SaleRepositoryInterface, products ProductRepositoryInterface, stock StockReaderInterface, c SaleCacheInterface) *SaleService {
	return &SaleService{sales: sales, products: products, stock: stock, cache: c, clock: time.Now}
}

// NewSaleServiceWithClock creates a SaleService with a custom clock.
// Primarily used for testing the time-based state machine.
func NewSaleServiceWithClock(sales SaleRepositoryInterface, products ProductRepositoryInterface, stock StockReaderInterface, c SaleCacheInterface, clock func() time.Time) *SaleService {
	return &SaleService{sales: sales, products: products, stock: stock, cache: c, clock: clock}
}

// GetSaleStatus returns the projection for the given sale, or the latest
// sale when saleID is nil. Returns nil, nil when no sale exists.
// Served from cache when possible; a miss reads sale+product+stock and
// back-fills the cache with a short TTL.
func (s *SaleService) GetSaleStatus(ctx context.Context, saleID *uuid.UUID) (*model.SaleStatusResponse, error) {
	key := cache.CurrentSaleKey
	if saleID != nil {
		key = saleID.String()
	}

	cached, err := s.cache.GetSaleStatus(ctx, key)
	if err == nil {
		// Recompute the wall-clock fields; the cached row may straddle a
		// status boundary within its TTL.
		refreshStatus(cached, s.clock())
		return cached, nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		log.Warn().Err(err).Str("key", key).Msg("sale status cache read failed")
	}

	var sale *model.FlashSale
	if saleID != nil {
		sale, err = s.sales.GetByID(ctx, *saleID)
	} else {
		sale, err = s.sales.GetLatest(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("get sale: %w", err)
	}
	if sale == nil {
		return nil, nil
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

	status := buildSaleStatus(sale, product, stock, s.clock())
	if err := s.cache.SetSaleStatus(ctx, key, status); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("sale status cache write failed")
	}
	return status, nil
}

// CreateOrUpdateSale validates and writes a sale window, then invalidates
// the projection. A request with saleId updates; without, it creates.
func (s *SaleService) CreateOrUpdateSale(ctx context.Context, req *model.CreateSaleRequest) (*model.SaleResponse, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, ErrInvalidTimeRange
	}

	product, err := s.products.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	stock, err := s.stock.GetByProduct(ctx, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("get stock: %w", err)
	}
	if stock == nil {
		return nil, ErrStockNotFound
	}

	var sale *model.FlashSale
	if req.SaleID != nil {
		sale, err = s.sales.GetByID(ctx, *req.SaleID)
		if err != nil {
			return nil, err
		}
		sale.ProductID = req.ProductID
		sale.StartTime = req.StartTime.UTC()
		sale.EndTime = req.EndTime.UTC()
		if err := s.sales.Update(ctx, sale); err != nil {
			return nil, err
		}
	} else {
		sale = &model.FlashSale{
			ID:        uuid.New(),
			ProductID: req.ProductID,
			StartTime: req.StartTime.UTC(),
			EndTime:   req.EndTime.UTC(),
		}
		if err := s.sales.Insert(ctx, sale); err != nil {
			return nil, err
		}
	}

	if err := s.cache.InvalidateSaleStatus(ctx, sale.ID); err != nil {
		log.Warn().Err(err).Str("sale_id", sale.ID.String()).Msg("sale status cache invalidation failed")
	}

	return &model.SaleResponse{
		SaleID:    sale.ID,
		ProductID: sale.ProductID,
		StartTime: sale.StartTime,
		EndTime:   sale.EndTime,
		Status:    sale.StatusAt(s.clock()),
	}, nil
}

// GetSale returns a sale by id for the admin read endpoint.
func (s *SaleService) GetSale(ctx context.Context, saleID uuid.UUID) (*model.SaleResponse, error) {
	sale, err := s.sales.GetByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	return &model.SaleResponse{
		SaleID:    sale.ID,
		ProductID: sale.ProductID,
		StartTime: sale.StartTime,
		EndTime:   sale.EndTime,
		Status:    sale.StatusAt(s.clock()),
	}, nil
}

func buildSaleStatus(sale *model.FlashSale, product *model.Product, stock *model.Stock, now time.Time) *model.SaleStatusResponse {
	status := &model.SaleStatusResponse{
		SaleID:            sale.ID,
		ProductID:         sale.ProductID,
		ProductName:       product.Name,
		ProductPrice:      product.Price,
		StartTime:         sale.StartTime,
		EndTime:           sale.EndTime,
		TotalQuantity:     stock.TotalQuantity,
		AvailableQuantity: stock.AvailableQuantity,
	}
	refreshStatus(status, now)
	return status
}

func refreshStatus(status *model.SaleStatusResponse, now time.Time) {
	sale := model.FlashSale{StartTime: status.StartTime, EndTime: status.EndTime}
	status.Status = sale.StatusAt(now)
	status.TimeUntilStart = clampMillis(status.StartTime.Sub(now))
	status.TimeUntilEnd = clampMillis(status.EndTime.Sub(now))
}

func clampMillis(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return d.Milliseconds()
}
