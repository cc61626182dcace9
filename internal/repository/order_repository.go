package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/afbrilian/mincommerce-sub000/internal/model"
	"github.com/afbrilian/mincommerce-sub000/internal/service"
	"github.com/afbrilian/mincommerce-sub000/pkg/database"
)

// OrderPoolInterface defines the database operations needed by OrderRepository.
type OrderPoolInterface interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OrderRepository provides data access for orders using pgx.
type OrderRepository struct {
	pool OrderPoolInterface
}

// NewOrderRepository creates a new OrderRepository with the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// NewOrderRepositoryWithPool creates an OrderRepository with a custom pool
// interface. This is primarily used for testing.
func NewOrderRepositoryWithPool(pool OrderPoolInterface) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Insert inserts an order row within a transaction.
// Returns service.ErrAlreadyPurchased when the (user_id, product_id)
// unique constraint fires, the last line of defence against duplicates.
func (r *OrderRepository) Insert(ctx context.Context, tx database.TxQuerier, order *model.Order) error {
	query := `INSERT INTO orders (id, user_id, product_id, status) VALUES ($1, $2, $3, $4)`

	_, err := tx.Exec(ctx, query, order.ID, order.UserID, order.ProductID, order.Status)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return service.ErrAlreadyPurchased
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByUserAndProduct retrieves the user's order for a product.
// Returns nil, nil if no order exists. The worker uses this to detect its
// own earlier insert when a retried job hits the unique constraint.
func (r *OrderRepository) GetByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*model.Order, error) {
	query := `SELECT id, user_id, product_id, status, created_at
		FROM orders WHERE user_id = $1 AND product_id = $2`

	var order model.Order
	err := r.pool.QueryRow(ctx, query, userID, productID).Scan(
		&order.ID,
		&order.UserID,
		&order.ProductID,
		&order.Status,
		&order.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found - let caller handle
		}
		return nil, fmt.Errorf("get order for user %s product %s: %w", userID, productID, err)
	}
	return &order, nil
}

// StatusCounts returns order counts per status for a product.
func (r *OrderRepository) StatusCounts(ctx context.Context, productID uuid.UUID) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM orders WHERE product_id = $1 GROUP BY status`

	rows, err := r.pool.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("count orders for product %s: %w", productID, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan order count: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order counts: %w", err)
	}
	return counts, nil
}
