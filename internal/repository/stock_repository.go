package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/afbrilian/mincommerce-sub000/internal/model"
	"github.com/afbrilian/mincommerce-sub000/pkg/database"
)

// StockRepository owns available_quantity. The conditional decrement here
// is the only statement in the system that lowers it.
type StockRepository struct {
	pool PoolInterface
}

// NewStockRepository creates a new StockRepository with the given pool.
func NewStockRepository(pool *pgxpool.Pool) *StockRepository {
	return &StockRepository{pool: pool}
}

// NewStockRepositoryWithPool creates a StockRepository with a custom pool
// interface. This is primarily used for testing.
func NewStockRepositoryWithPool(pool PoolInterface) *StockRepository {
	return &StockRepository{pool: pool}
}

// GetByProduct retrieves the stock row for a product.
// Returns nil, nil if no stock row exists (service layer handles this).
func (r *StockRepository) GetByProduct(ctx context.Context, productID uuid.UUID) (*model.Stock, error) {
	query := `SELECT product_id, total_quantity, available_quantity, reserved_quantity, updated_at
		FROM stock WHERE product_id = $1`

	var stock model.Stock
	err := r.pool.QueryRow(ctx, query, productID).Scan(
		&stock.ProductID,
		&stock.TotalQuantity,
		&stock.AvailableQuantity,
		&stock.ReservedQuantity,
		&stock.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found - let service handle
		}
		return nil, fmt.Errorf("get stock for product %s: %w", productID, err)
	}
	return &stock, nil
}

// LockProduct acquires the per-product advisory lock for the remainder of
// the transaction, serializing critical sections across all workers.
func (r *StockRepository) LockProduct(ctx context.Context, tx database.TxQuerier, productID uuid.UUID) error {
	return database.AdvisoryXactLock(ctx, tx, "stock:"+productID.String())
}

// AvailableForUpdate reads available_quantity inside the transaction.
// Must be called after LockProduct.
func (r *StockRepository) AvailableForUpdate(ctx context.Context, tx database.TxQuerier, productID uuid.UUID) (int, error) {
	var available int
	err := tx.QueryRow(ctx,
		`SELECT available_quantity FROM stock WHERE product_id = $1`,
		productID).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("stock row missing for product %s", productID)
		}
		return 0, fmt.Errorf("read available quantity for %s: %w", productID, err)
	}
	return available, nil
}

// DecrementAvailable performs the conditional decrement. The WHERE guard is
// the authoritative oversell check; the advisory lock only keeps the
// failure rate low. Returns false when no stock remained.
func (r *StockRepository) DecrementAvailable(ctx context.Context, tx database.TxQuerier, productID uuid.UUID) (bool, error) {
	query := `UPDATE stock
		SET available_quantity = available_quantity - 1, updated_at = now()
		WHERE product_id = $1 AND available_quantity > 0`

	tag, err := tx.Exec(ctx, query, productID)
	if err != nil {
		return false, fmt.Errorf("decrement stock for %s: %w", productID, err)
	}
	return tag.RowsAffected() == 1, nil
}
