// Package worker executes purchase jobs. All stock mutation in the system
// happens here, inside one short transaction per job: advisory lock,
// conditional decrement, order insert. Rolling back the transaction undoes
// the decrement, so no separate compensation step exists.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/afbrilian/mincommerce-sub000/internal/model"
	"github.com/afbrilian/mincommerce-sub000/internal/queue"
	"github.com/afbrilian/mincommerce-sub000/internal/service"
	"github.com/afbrilian/mincommerce-sub000/pkg/database"
)

// SaleStoreInterface reads the sale window for the authoritative re-check.
type SaleStoreInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.FlashSale, error)
}

// StockStoreInterface is the transactional stock access the worker needs.
type StockStoreInterface interface {
	LockProduct(ctx context.Context, tx database.TxQuerier, productID uuid.UUID) error
	AvailableForUpdate(ctx context.Context, tx database.TxQuerier, productID uuid.UUID) (int, error)
	DecrementAvailable(ctx context.Context, tx database.TxQuerier, productID uuid.UUID) (bool, error)
}

// OrderStoreInterface is the order access the worker needs.
type OrderStoreInterface interface {
	Insert(ctx context.Context, tx database.TxQuerier, order *model.Order) error
	GetByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*model.Order, error)
}

// StatusCacheInterface is the cache surface the worker writes through.
type StatusCacheInterface interface {
	SetPurchase(ctx context.Context, status *model.PurchaseStatus) error
	InvalidateSaleStatus(ctx context.Context, saleID uuid.UUID) error
}

// PurchaseWorker consumes purchase jobs and settles them against Postgres.
type PurchaseWorker struct {
	db      database.TxBeginner
	sales   SaleStoreInterface
	stock   StockStoreInterface
	orders  OrderStoreInterface
	cache   StatusCacheInterface
	timeout time.Duration
	clock   func() time.Time
}

// NewPurchaseWorker creates a new PurchaseWorker.
func NewPurchaseWorker(db database.TxBeginner, sales SaleStoreInterface, stock StockStoreInterface, orders OrderStoreInterface, c StatusCacheInterface, timeout time.Duration) *PurchaseWorker {
	return &PurchaseWorker{
		db:      db,
		sales:   sales,
		stock:   stock,
		orders:  orders,
		cache:   c,
		timeout: timeout,
		clock:   time.Now,
	}
}

// Register attaches the worker to the queue with the given concurrency.
func (w *PurchaseWorker) Register(q queue.Queue, concurrency int) error {
	return q.Process(service.JobTypePurchase, concurrency, w.Handle)
}

// Handle processes one purchase job attempt.
//
// Business outcomes (AlreadyPurchased, OutOfStock, SaleNotOpen) are encoded
// in the returned result so the queue marks the job completed and never
// retries it. Only transient failures return an error.
func (w *PurchaseWorker) Handle(ctx context.Context, job *queue.Job) ([]byte, error) {
	var payload model.PurchaseJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		// A payload that never parses would retry forever for nothing.
		log.Error().Err(err).Str("job_id", job.ID).Msg("unreadable purchase payload")
		return json.Marshal(failure(model.ReasonInternal))
	}

	if err := w.markProcessing(ctx, &payload); err != nil {
		log.Warn().Err(err).Str("job_id", payload.JobID).Msg("processing status write failed")
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	// Admission checked the sale against a cached projection; the worker
	// re-checks against the row so a job that waited past the end of the
	// window is rejected.
	sale, err := w.sales.GetByID(ctx, payload.SaleID)
	if err != nil {
		return nil, fmt.Errorf("load sale %s: %w", payload.SaleID, err)
	}
	if sale.StatusAt(w.clock()) != model.SaleActive {
		return w.settle(ctx, &payload, job.ID, failure(model.ReasonSaleNotOpen))
	}

	result, err := w.attemptPurchase(ctx, &payload)
	if err != nil {
		return nil, err
	}
	return w.settle(ctx, &payload, job.ID, result)
}

// attemptPurchase runs the critical section. The advisory lock serializes
// workers per product; the conditional decrement and the unique order
// constraint are the correctness guarantees, the lock just keeps contention
// off the row.
func (w *PurchaseWorker) attemptPurchase(ctx context.Context, payload *model.PurchaseJobPayload) (*model.PurchaseResult, error) {
	orderID, err := uuid.Parse(payload.JobID)
	if err != nil {
		return failure(model.ReasonInternal), nil
	}

	// At-least-once delivery means this job may already have committed on
	// an attempt whose ack was lost. The order id doubles as the job id,
	// so a natural-key lookup settles a redelivery up front. Without it, a
	// committed order that consumed the last unit would make the stock
	// check below misread the retry as OutOfStock.
	existing, err := w.orders.GetByUserAndProduct(ctx, payload.UserID, payload.ProductID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.ID == orderID {
			return success(existing.ID), nil
		}
		return failure(model.ReasonAlreadyPurchased), nil
	}

	tx, err := w.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin purchase tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := w.stock.LockProduct(ctx, tx, payload.ProductID); err != nil {
		return nil, err
	}

	available, err := w.stock.AvailableForUpdate(ctx, tx, payload.ProductID)
	if err != nil {
		return nil, err
	}
	if available <= 0 {
		return failure(model.ReasonOutOfStock), nil
	}

	ok, err := w.stock.DecrementAvailable(ctx, tx, payload.ProductID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return failure(model.ReasonOutOfStock), nil
	}

	order := &model.Order{
		ID:        orderID,
		UserID:    payload.UserID,
		ProductID: payload.ProductID,
		Status:    model.OrderConfirmed,
	}
	if err := w.orders.Insert(ctx, tx, order); err != nil {
		if errors.Is(err, service.ErrAlreadyPurchased) {
			// The rollback releases the decrement. An existing order with
			// this job's ID means a retried job that already committed, so
			// the attempt is an idempotent success, not a duplicate.
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, context.Canceled) {
				log.Warn().Err(rbErr).Str("job_id", payload.JobID).Msg("rollback after duplicate order failed")
			}
			existing, lookupErr := w.orders.GetByUserAndProduct(ctx, payload.UserID, payload.ProductID)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if existing != nil && existing.ID == orderID {
				return success(existing.ID), nil
			}
			return failure(model.ReasonAlreadyPurchased), nil
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit purchase tx: %w", err)
	}

	log.Info().
		Str("job_id", payload.JobID).
		Str("user_id", payload.UserID.String()).
		Str("product_id", payload.ProductID.String()).
		Msg("purchase confirmed")

	return success(orderID), nil
}

// settle writes the terminal snapshot to the cache and encodes the result
// for the queue. Cache failures are logged, not returned: the queue record
// still carries the outcome and the snapshot TTL bounds the staleness.
func (w *PurchaseWorker) settle(ctx context.Context, payload *model.PurchaseJobPayload, jobID string, result *model.PurchaseResult) ([]byte, error) {
	status := model.JobFailed
	if result.Success {
		status = model.JobCompleted
	}

	now := w.clock().UTC()
	snapshot := &model.PurchaseStatus{
		JobID:     jobID,
		UserID:    payload.UserID,
		ProductID: payload.ProductID,
		SaleID:    payload.SaleID,
		Status:    status,
		OrderID:   result.OrderID,
		Reason:    result.Reason,
		UpdatedAt: now,
	}
	if err := w.cache.SetPurchase(ctx, snapshot); err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("terminal status write failed")
	}

	if result.Success {
		if err := w.cache.InvalidateSaleStatus(ctx, payload.SaleID); err != nil {
			log.Warn().Err(err).Str("sale_id", payload.SaleID.String()).Msg("sale status invalidation failed")
		}
	}

	return json.Marshal(result)
}

func (w *PurchaseWorker) markProcessing(ctx context.Context, payload *model.PurchaseJobPayload) error {
	return w.cache.SetPurchase(ctx, &model.PurchaseStatus{
		JobID:     payload.JobID,
		UserID:    payload.UserID,
		ProductID: payload.ProductID,
		SaleID:    payload.SaleID,
		Status:    model.JobProcessing,
		UpdatedAt: w.clock().UTC(),
	})
}

func success(orderID uuid.UUID) *model.PurchaseResult {
	return &model.PurchaseResult{Success: true, OrderID: &orderID}
}

func failure(reason string) *model.PurchaseResult {
	return &model.PurchaseResult{Success: false, Reason: reason}
}
