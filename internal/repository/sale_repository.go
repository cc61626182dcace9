package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/afbrilian/mincommerce-sub000/internal/model"
	"github.com/afbrilian/mincommerce-sub000/internal/service"
)

// SaleRepository provides data access for flash sales using pgx.
type SaleRepository struct {
	pool PoolInterface
}

// NewSaleRepository creates a new SaleRepository with the given pool.
func NewSaleRepository(pool *pgxpool.Pool) *SaleRepository {
	return &SaleRepository{pool: pool}
}

// NewSaleRepositoryWithPool creates a SaleRepository with a custom pool
// interface. This is primarily used for testing.
func NewSaleRepositoryWithPool(pool PoolInterface) *SaleRepository {
	return &SaleRepository{pool: pool}
}

// GetLatest retrieves the most recently created sale. One flash sale binds
// to one product, so "the current sale" is simply the newest row.
// Returns nil, nil when no sale exists.
func (r *SaleRepository) GetLatest(ctx context.Context) (*model.FlashSale, error) {
	query := `SELECT id, product_id, start_time, end_time, created_at, updated_at
		FROM flash_sales ORDER BY created_at DESC LIMIT 1`

	var sale model.FlashSale
	err := r.pool.QueryRow(ctx, query).Scan(
		&sale.ID,
		&sale.ProductID,
		&sale.StartTime,
		&sale.EndTime,
		&sale.CreatedAt,
		&sale.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // No sale configured yet
		}
		return nil, fmt.Errorf("get latest sale: %w", err)
	}
	return &sale, nil
}

// GetByID retrieves a sale by id.
// Returns service.ErrSaleNotFound if the sale doesn't exist.
func (r *SaleRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.FlashSale, error) {
	query := `SELECT id, product_id, start_time, end_time, created_at, updated_at
		FROM flash_sales WHERE id = $1`

	var sale model.FlashSale
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&sale.ID,
		&sale.ProductID,
		&sale.StartTime,
		&sale.EndTime,
		&sale.CreatedAt,
		&sale.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrSaleNotFound
		}
		return nil, fmt.Errorf("get sale by id %s: %w", id, err)
	}
	return &sale, nil
}

// Insert inserts a new sale row.
func (r *SaleRepository) Insert(ctx context.Context, sale *model.FlashSale) error {
	query := `INSERT INTO flash_sales (id, product_id, start_time, end_time)
		VALUES ($1, $2, $3, $4)`

	_, err := r.pool.Exec(ctx, query, sale.ID, sale.ProductID, sale.StartTime, sale.EndTime)
	if err != nil {
		return fmt.Errorf("insert sale %s: %w", sale.ID, err)
	}
	return nil
}

// Update rewrites an existing sale's window and product binding.
func (r *SaleRepository) Update(ctx context.Context, sale *model.FlashSale) error {
	query := `UPDATE flash_sales
		SET product_id = $2, start_time = $3, end_time = $4, updated_at = now()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, sale.ID, sale.ProductID, sale.StartTime, sale.EndTime)
	if err != nil {
		return fmt.Errorf("update sale %s: %w", sale.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrSaleNotFound
	}
	return nil
}
