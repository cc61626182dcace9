// Package cache is the short-TTL Redis projection of sale and purchase
// state. It serves the high-traffic read path so clients can poll without
// touching Postgres.
//
// Key ownership:
//   - purchase:user:{userId} / purchase:job:{jobId}: written by admission
//     (initial queued snapshot) and then exclusively by the worker.
//   - sale:status:{saleId} and sale:status:current: pure projections; any
//     mutation path must invalidate them.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/afbrilian/mincommerce-sub000/internal/model"
)

const (
	saleStatusPrefix   = "sale:status:"
	purchaseUserPrefix = "purchase:user:"
	purchaseJobPrefix  = "purchase:job:"
	rateLimitPrefix    = "ratelimit:purchase:"

	// CurrentSaleKey addresses the latest sale's projection.
	CurrentSaleKey = "current"
)

// ErrNotFound is returned when a key does not exist or has expired.
var ErrNotFound = errors.New("cache: key not found")

// Cache wraps the Redis client and exposes domain-level operations.
type Cache struct {
	rdb         *redis.Client
	saleTTL     time.Duration
	purchaseTTL time.Duration
}

// New creates a Redis-backed cache and verifies the connection with a PING.
func New(addr, password string, db int, saleTTL, purchaseTTL time.Duration) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewWithClient(rdb, saleTTL, purchaseTTL), nil
}

// NewWithClient wraps an existing client. Used by tests and by callers that
// share one client between the cache and the queue.
func NewWithClient(rdb *redis.Client, saleTTL, purchaseTTL time.Duration) *Cache {
	return &Cache{rdb: rdb, saleTTL: saleTTL, purchaseTTL: purchaseTTL}
}

// Ping verifies the Redis connection. Used by the readiness probe.
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close shuts down the underlying connection pool.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// GetSaleStatus fetches a sale projection. key is a saleId or CurrentSaleKey.
func (c *Cache) GetSaleStatus(ctx context.Context, key string) (*model.SaleStatusResponse, error) {
	data, err := c.rdb.Get(ctx, saleStatusPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var status model.SaleStatusResponse
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SetSaleStatus stores a sale projection under the given key with the short
// sale TTL.
func (c *Cache) SetSaleStatus(ctx context.Context, key string, status *model.SaleStatusResponse) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, saleStatusPrefix+key, data, c.saleTTL).Err()
}

// InvalidateSaleStatus drops both the per-sale and the current projection.
// Called on every successful purchase and on every admin edit.
func (c *Cache) InvalidateSaleStatus(ctx context.Context, saleID uuid.UUID) error {
	return c.rdb.Del(ctx, saleStatusPrefix+saleID.String(), saleStatusPrefix+CurrentSaleKey).Err()
}

// SetPurchase writes the snapshot under both the userId and jobId keys.
// Redis serves reads of a single key after the write completes, which gives
// the read-your-writes ordering the admission fast path relies on.
func (c *Cache) SetPurchase(ctx context.Context, status *model.PurchaseStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}

	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, purchaseUserPrefix+status.UserID.String(), data, c.purchaseTTL)
	pipe.Set(ctx, purchaseJobPrefix+status.JobID, data, c.purchaseTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// GetUserPurchase fetches the latest purchase snapshot for a user.
func (c *Cache) GetUserPurchase(ctx context.Context, userID uuid.UUID) (*model.PurchaseStatus, error) {
	return c.getPurchase(ctx, purchaseUserPrefix+userID.String())
}

// GetJobPurchase fetches the purchase snapshot for a job.
func (c *Cache) GetJobPurchase(ctx context.Context, jobID string) (*model.PurchaseStatus, error) {
	return c.getPurchase(ctx, purchaseJobPrefix+jobID)
}

func (c *Cache) getPurchase(ctx context.Context, key string) (*model.PurchaseStatus, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var status model.PurchaseStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// IncrAttempts counts a purchase admission for the user within the sliding
// window and returns the running total. The expiry is set only when the
// counter is created so the window does not slide on every attempt.
func (c *Cache) IncrAttempts(ctx context.Context, userID uuid.UUID, window time.Duration) (int64, error) {
	key := rateLimitPrefix + userID.String()

	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := c.rdb.Expire(ctx, key, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}
