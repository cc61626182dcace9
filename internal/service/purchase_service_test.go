package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afbrilian/mincommerce-sub000/internal/cache"
	"github.com/afbrilian/mincommerce-sub000/internal/model"
	"github.com/afbrilian/mincommerce-sub000/internal/queue"
)

// mockQueue is a mock implementation of queue.Queue.
type mockQueue struct {
	addJobFn   func(ctx context.Context, jobType string, payload []byte, opts queue.AddOptions) (string, error)
	getJobFn   func(ctx context.Context, jobID string) (*queue.Job, error)
	getStatsFn func(ctx context.Context, jobType string) (queue.Stats, error)
}

func (m *mockQueue) AddJob(ctx context.Context, jobType string, payload []byte, opts queue.AddOptions) (string, error) {
	if m.addJobFn != nil {
		return m.addJobFn(ctx, jobType, payload, opts)
	}
	return opts.JobID, nil
}

func (m *mockQueue) Process(jobType string, concurrency int, handler queue.Handler) error {
	return nil
}

func (m *mockQueue) GetJob(ctx context.Context, jobID string) (*queue.Job, error) {
	if m.getJobFn != nil {
		return m.getJobFn(ctx, jobID)
	}
	return nil, queue.ErrJobNotFound
}

func (m *mockQueue) GetStats(ctx context.Context, jobType string) (queue.Stats, error) {
	if m.getStatsFn != nil {
		return m.getStatsFn(ctx, jobType)
	}
	return queue.Stats{}, nil
}

func (m *mockQueue) Close() error { return nil }

// mockStatusCache is a mock implementation of StatusCacheInterface.
type mockStatusCache struct {
	getUserPurchaseFn func(ctx context.Context, userID uuid.UUID) (*model.PurchaseStatus, error)
	getJobPurchaseFn  func(ctx context.Context, jobID string) (*model.PurchaseStatus, error)
	setPurchaseFn     func(ctx context.Context, status *model.PurchaseStatus) error
	incrAttemptsFn    func(ctx context.Context, userID uuid.UUID, window time.Duration) (int64, error)
}

func (m *mockStatusCache) GetUserPurchase(ctx context.Context, userID uuid.UUID) (*model.PurchaseStatus, error) {
	if m.getUserPurchaseFn != nil {
		return m.getUserPurchaseFn(ctx, userID)
	}
	return nil, cache.ErrNotFound
}

func (m *mockStatusCache) GetJobPurchase(ctx context.Context, jobID string) (*model.PurchaseStatus, error) {
	if m.getJobPurchaseFn != nil {
		return m.getJobPurchaseFn(ctx, jobID)
	}
	return nil, cache.ErrNotFound
}

func (m *mockStatusCache) SetPurchase(ctx context.Context, status *model.PurchaseStatus) error {
	if m.setPurchaseFn != nil {
		return m.setPurchaseFn(ctx, status)
	}
	return nil
}

func (m *mockStatusCache) IncrAttempts(ctx context.Context, userID uuid.UUID, window time.Duration) (int64, error) {
	if m.incrAttemptsFn != nil {
		return m.incrAttemptsFn(ctx, userID, window)
	}
	return 1, nil
}

// mockSaleProvider is a mock implementation of SaleStatusProvider.
type mockSaleProvider struct {
	getSaleStatusFn func(ctx context.Context, saleID *uuid.UUID) (*model.SaleStatusResponse, error)
}

func (m *mockSaleProvider) GetSaleStatus(ctx context.Context, saleID *uuid.UUID) (*model.SaleStatusResponse, error) {
	if m.getSaleStatusFn != nil {
		return m.getSaleStatusFn(ctx, saleID)
	}
	return nil, nil
}

func activeSaleStatus() *model.SaleStatusResponse {
	return &model.SaleStatusResponse{
		SaleID:    uuid.New(),
		ProductID: uuid.New(),
		Status:    model.SaleActive,
	}
}

func newPurchaseService(q queue.Queue, c StatusCacheInterface, sales SaleStatusProvider) *PurchaseService {
	return NewPurchaseService(q, c, sales, 5, time.Minute, 500*time.Millisecond)
}

func TestPurchaseService_EnqueuePurchase_Success(t *testing.T) {
	sale := activeSaleStatus()
	userID := uuid.New()

	var snapshotWritten *model.PurchaseStatus
	var enqueuedPayload []byte
	var enqueuedOpts queue.AddOptions
	setBeforeAdd := false

	c := &mockStatusCache{
		setPurchaseFn: func(ctx context.Context, status *model.PurchaseStatus) error {
			snapshotWritten = status
			return nil
		},
	}
	q := &mockQueue{
		addJobFn: func(ctx context.Context, jobType string, payload []byte, opts queue.AddOptions) (string, error) {
			setBeforeAdd = snapshotWritten != nil
			enqueuedPayload = payload
			enqueuedOpts = opts
			return opts.JobID, nil
		},
		getStatsFn: func(ctx context.Context, jobType string) (queue.Stats, error) {
			return queue.Stats{Waiting: 3, Active: 1}, nil
		},
	}
	sales := &mockSaleProvider{
		getSaleStatusFn: func(ctx context.Context, saleID *uuid.UUID) (*model.SaleStatusResponse, error) {
			assert.Nil(t, saleID, "admission resolves the current sale")
			return sale, nil
		},
	}

	svc := newPurchaseService(q, c, sales)
	resp, err := svc.EnqueuePurchase(context.Background(), userID)

	require.NoError(t, err)
	assert.Equal(t, model.JobQueued, resp.Status)
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, int64(4*500), resp.EstimatedWaitTime, "backlog times per-job estimate")

	assert.True(t, setBeforeAdd, "queued snapshot must be visible before the job exists")
	assert.Equal(t, resp.JobID, enqueuedOpts.JobID)
	assert.Equal(t, model.JobQueued, snapshotWritten.Status)
	assert.Equal(t, userID, snapshotWritten.UserID)

	var payload model.PurchaseJobPayload
	require.NoError(t, json.Unmarshal(enqueuedPayload, &payload))
	assert.Equal(t, resp.JobID, payload.JobID)
	assert.Equal(t, sale.SaleID, payload.SaleID)
	assert.Equal(t, sale.ProductID, payload.ProductID)
}

func TestPurchaseService_EnqueuePurchase_AlreadyPending(t *testing.T) {
	for _, status := range []model.JobStatus{model.JobQueued, model.JobProcessing} {
		c := &mockStatusCache{
			getUserPurchaseFn: func(ctx context.Context, userID uuid.UUID) (*model.PurchaseStatus, error) {
				return &model.PurchaseStatus{Status: status}, nil
			},
		}
		q := &mockQueue{
			addJobFn: func(ctx context.Context, jobType string, payload []byte, opts queue.AddOptions) (string, error) {
				t.Fatal("a pending user must never reach the queue")
				return "", nil
			},
		}

		svc := newPurchaseService(q, c, &mockSaleProvider{})
		_, err := svc.EnqueuePurchase(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ErrAlreadyPending, "status %s", status)
	}
}

func TestPurchaseService_EnqueuePurchase_AlreadyPurchased(t *testing.T) {
	c := &mockStatusCache{
		getUserPurchaseFn: func(ctx context.Context, userID uuid.UUID) (*model.PurchaseStatus, error) {
			return &model.PurchaseStatus{Status: model.JobCompleted}, nil
		},
	}

	svc := newPurchaseService(&mockQueue{}, c, &mockSaleProvider{})
	_, err := svc.EnqueuePurchase(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrAlreadyPurchased)
}

func TestPurchaseService_EnqueuePurchase_FailedAttemptAllowsRetry(t *testing.T) {
	c := &mockStatusCache{
		getUserPurchaseFn: func(ctx context.Context, userID uuid.UUID) (*model.PurchaseStatus, error) {
			return &model.PurchaseStatus{Status: model.JobFailed, Reason: model.ReasonOutOfStock}, nil
		},
	}
	sales := &mockSaleProvider{
		getSaleStatusFn: func(ctx context.Context, saleID *uuid.UUID) (*model.SaleStatusResponse, error) {
			return activeSaleStatus(), nil
		},
	}

	svc := newPurchaseService(&mockQueue{}, c, sales)
	resp, err := svc.EnqueuePurchase(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.Equal(t, model.JobQueued, resp.Status)
}

func TestPurchaseService_EnqueuePurchase_RateLimited(t *testing.T) {
	c := &mockStatusCache{
		incrAttemptsFn: func(ctx context.Context, userID uuid.UUID, window time.Duration) (int64, error) {
			return 6, nil
		},
		getUserPurchaseFn: func(ctx context.Context, userID uuid.UUID) (*model.PurchaseStatus, error) {
			t.Fatal("rate limit must run before the duplicate check")
			return nil, nil
		},
	}

	svc := newPurchaseService(&mockQueue{}, c, &mockSaleProvider{})
	_, err := svc.EnqueuePurchase(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrTooManyAttempts)
}

func TestPurchaseService_EnqueuePurchase_NoActiveSale(t *testing.T) {
	svc := newPurchaseService(&mockQueue{}, &mockStatusCache{}, &mockSaleProvider{})

	_, err := svc.EnqueuePurchase(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNoActiveSale)
}

func TestPurchaseService_EnqueuePurchase_SaleNotOpen(t *testing.T) {
	for _, status := range []model.SaleStatus{model.SaleUpcoming, model.SaleEnded} {
		sales := &mockSaleProvider{
			getSaleStatusFn: func(ctx context.Context, saleID *uuid.UUID) (*model.SaleStatusResponse, error) {
				s := activeSaleStatus()
				s.Status = status
				return s, nil
			},
		}

		svc := newPurchaseService(&mockQueue{}, &mockStatusCache{}, sales)
		_, err := svc.EnqueuePurchase(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ErrSaleNotOpen, "status %s", status)
	}
}

func TestPurchaseService_EnqueuePurchase_QueueError(t *testing.T) {
	q := &mockQueue{
		addJobFn: func(ctx context.Context, jobType string, payload []byte, opts queue.AddOptions) (string, error) {
			return "", errors.New("redis down")
		},
	}
	sales := &mockSaleProvider{
		getSaleStatusFn: func(ctx context.Context, saleID *uuid.UUID) (*model.SaleStatusResponse, error) {
			return activeSaleStatus(), nil
		},
	}

	svc := newPurchaseService(q, &mockStatusCache{}, sales)
	_, err := svc.EnqueuePurchase(context.Background(), uuid.New())
	require.Error(t, err)
}

func TestPurchaseService_GetPurchaseStatus_None(t *testing.T) {
	svc := newPurchaseService(&mockQueue{}, &mockStatusCache{}, &mockSaleProvider{})

	resp, err := svc.GetPurchaseStatus(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.Equal(t, model.JobNone, resp.Status)
	assert.Empty(t, resp.JobID)
}

func TestPurchaseService_GetPurchaseStatus_Completed(t *testing.T) {
	orderID := uuid.New()
	purchasedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := &mockStatusCache{
		getUserPurchaseFn: func(ctx context.Context, userID uuid.UUID) (*model.PurchaseStatus, error) {
			return &model.PurchaseStatus{
				JobID:     "job-1",
				Status:    model.JobCompleted,
				OrderID:   &orderID,
				UpdatedAt: purchasedAt,
			}, nil
		},
	}

	svc := newPurchaseService(&mockQueue{}, c, &mockSaleProvider{})
	resp, err := svc.GetPurchaseStatus(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, resp.Status)
	require.NotNil(t, resp.OrderID)
	assert.Equal(t, orderID, *resp.OrderID)
	require.NotNil(t, resp.PurchasedAt)
	assert.Equal(t, purchasedAt, *resp.PurchasedAt)
	assert.Nil(t, resp.EstimatedWaitTime)
}

func TestPurchaseService_GetPurchaseStatus_QueuedCarriesWaitHint(t *testing.T) {
	c := &mockStatusCache{
		getUserPurchaseFn: func(ctx context.Context, userID uuid.UUID) (*model.PurchaseStatus, error) {
			return &model.PurchaseStatus{JobID: "job-1", Status: model.JobQueued}, nil
		},
	}
	q := &mockQueue{
		getStatsFn: func(ctx context.Context, jobType string) (queue.Stats, error) {
			return queue.Stats{Waiting: 10}, nil
		},
	}

	svc := newPurchaseService(q, c, &mockSaleProvider{})
	resp, err := svc.GetPurchaseStatus(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.Equal(t, model.JobQueued, resp.Status)
	require.NotNil(t, resp.EstimatedWaitTime)
	assert.Equal(t, int64(5000), *resp.EstimatedWaitTime)
}

func TestPurchaseService_GetJob_OwnJob(t *testing.T) {
	userID := uuid.New()
	c := &mockStatusCache{
		getJobPurchaseFn: func(ctx context.Context, jobID string) (*model.PurchaseStatus, error) {
			return &model.PurchaseStatus{JobID: jobID, UserID: userID, Status: model.JobProcessing}, nil
		},
	}

	svc := newPurchaseService(&mockQueue{}, c, &mockSaleProvider{})
	resp, err := svc.GetJob(context.Background(), "job-1", userID, false)

	require.NoError(t, err)
	assert.Equal(t, model.JobProcessing, resp.Status)
}

func TestPurchaseService_GetJob_ForeignJobReadsAsNotFound(t *testing.T) {
	owner := uuid.New()
	c := &mockStatusCache{
		getJobPurchaseFn: func(ctx context.Context, jobID string) (*model.PurchaseStatus, error) {
			return &model.PurchaseStatus{JobID: jobID, UserID: owner, Status: model.JobQueued}, nil
		},
	}

	svc := newPurchaseService(&mockQueue{}, c, &mockSaleProvider{})

	_, err := svc.GetJob(context.Background(), "job-1", uuid.New(), false)
	assert.ErrorIs(t, err, ErrJobNotFound)

	// An admin sees any job.
	resp, err := svc.GetJob(context.Background(), "job-1", uuid.New(), true)
	require.NoError(t, err)
	assert.Equal(t, model.JobQueued, resp.Status)
}

func TestPurchaseService_GetJob_FallsBackToQueueRecord(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()
	payload, err := json.Marshal(model.PurchaseJobPayload{JobID: "job-1", UserID: userID})
	require.NoError(t, err)
	result, err := json.Marshal(model.PurchaseResult{Success: true, OrderID: &orderID})
	require.NoError(t, err)

	q := &mockQueue{
		getJobFn: func(ctx context.Context, jobID string) (*queue.Job, error) {
			return &queue.Job{
				ID:      jobID,
				Status:  queue.StatusCompleted,
				Payload: payload,
				Result:  result,
			}, nil
		},
	}

	svc := newPurchaseService(q, &mockStatusCache{}, &mockSaleProvider{})
	resp, err := svc.GetJob(context.Background(), "job-1", userID, false)

	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, resp.Status)
	require.NotNil(t, resp.OrderID)
	assert.Equal(t, orderID, *resp.OrderID)
}

func TestPurchaseService_GetJob_QueueRecordWithBusinessFailure(t *testing.T) {
	userID := uuid.New()
	payload, err := json.Marshal(model.PurchaseJobPayload{JobID: "job-1", UserID: userID})
	require.NoError(t, err)
	result, err := json.Marshal(model.PurchaseResult{Success: false, Reason: model.ReasonOutOfStock})
	require.NoError(t, err)

	q := &mockQueue{
		getJobFn: func(ctx context.Context, jobID string) (*queue.Job, error) {
			return &queue.Job{ID: jobID, Status: queue.StatusCompleted, Payload: payload, Result: result}, nil
		},
	}

	svc := newPurchaseService(q, &mockStatusCache{}, &mockSaleProvider{})
	resp, err := svc.GetJob(context.Background(), "job-1", userID, false)

	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, resp.Status, "a completed job with success=false is a business failure")
	assert.Equal(t, model.ReasonOutOfStock, resp.Reason)
}

func TestPurchaseService_GetJob_QueueRecordWithCorruptResult(t *testing.T) {
	userID := uuid.New()
	payload, err := json.Marshal(model.PurchaseJobPayload{JobID: "job-1", UserID: userID})
	require.NoError(t, err)

	q := &mockQueue{
		getJobFn: func(ctx context.Context, jobID string) (*queue.Job, error) {
			return &queue.Job{ID: jobID, Status: queue.StatusCompleted, Payload: payload, Result: []byte(`{broken`)}, nil
		},
	}

	svc := newPurchaseService(q, &mockStatusCache{}, &mockSaleProvider{})
	resp, err := svc.GetJob(context.Background(), "job-1", userID, false)

	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, resp.Status, "an unreadable result must not read as a success")
	assert.Equal(t, model.ReasonInternal, resp.Reason)
	assert.Nil(t, resp.OrderID)
}

func TestPurchaseService_GetJob_Unknown(t *testing.T) {
	svc := newPurchaseService(&mockQueue{}, &mockStatusCache{}, &mockSaleProvider{})

	_, err := svc.GetJob(context.Background(), "missing", uuid.New(), false)
	assert.ErrorIs(t, err, ErrJobNotFound)
}
