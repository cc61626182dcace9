package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/afbrilian/mincommerce-sub000/internal/cache"
	"github.com/afbrilian/mincommerce-sub000/internal/model"
	"github.com/afbrilian/mincommerce-sub000/internal/queue"
)

// JobTypePurchase is the queue job type for purchase jobs.
const JobTypePurchase = "purchase"

// StatusCacheInterface defines the purchase-status cache operations.
type StatusCacheInterface interface {
	GetUserPurchase(ctx context.Context, userID uuid.UUID) (*model.PurchaseStatus, error)
	GetJobPurchase(ctx context.Context, jobID string) (*model.PurchaseStatus, error)
	SetPurchase(ctx context.Context, status *model.PurchaseStatus) error
	IncrAttempts(ctx context.Context, userID uuid.UUID, window time.Duration) (int64, error)
}

// SaleStatusProvider resolves the current sale projection.
type SaleStatusProvider interface {
	GetSaleStatus(ctx context.Context, saleID *uuid.UUID) (*model.SaleStatusResponse, error)
}

// PurchaseService is the admission path: it validates a purchase intent,
// rejects duplicates fast, and hands the job to the queue. It never touches
// the stock or order tables; that is the worker's job.
type PurchaseService struct {
	q          queue.Queue
	cache      StatusCacheInterface
	sales      SaleStatusProvider
	rateMax    int
	rateWindow time.Duration
	avgService time.Duration
	clock      func() time.Time
}

// NewPurchaseService creates a new PurchaseService.
func NewPurchaseService(q queue.Queue, c StatusCacheInterface, sales SaleStatusProvider, rateMax int, rateWindow, avgService time.Duration) *PurchaseService {
	return &PurchaseService{
		q:          q,
		cache:      c,
		sales:      sales,
		rateMax:    rateMax,
		rateWindow: rateWindow,
		avgService: avgService,
		clock:      time.Now,
	}
}

// EnqueuePurchase admits a purchase intent for the current sale.
//
// The queued snapshot is written to the cache before the enqueue: a
// concurrent second submission from the same user then observes the
// pending state. A crash between the two steps leaves at worst a ghost
// queued entry that the TTL clears.
func (s *PurchaseService) EnqueuePurchase(ctx context.Context, userID uuid.UUID) (*model.PurchaseResponse, error) {
	// Rate limit runs before everything else so a hot-looping client
	// cannot even reach the cache checks.
	attempts, err := s.cache.IncrAttempts(ctx, userID, s.rateWindow)
	if err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}
	if attempts > int64(s.rateMax) {
		return nil, ErrTooManyAttempts
	}

	existing, err := s.cache.GetUserPurchase(ctx, userID)
	if err != nil && !errors.Is(err, cache.ErrNotFound) {
		return nil, fmt.Errorf("read purchase status: %w", err)
	}
	if existing != nil {
		switch existing.Status {
		case model.JobQueued, model.JobProcessing:
			return nil, ErrAlreadyPending
		case model.JobCompleted:
			return nil, ErrAlreadyPurchased
		}
		// A failed attempt does not block a fresh one.
	}

	sale, err := s.sales.GetSaleStatus(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("resolve sale: %w", err)
	}
	if sale == nil {
		return nil, ErrNoActiveSale
	}
	if sale.Status != model.SaleActive {
		return nil, ErrSaleNotOpen
	}

	jobID := uuid.NewString()
	now := s.clock().UTC()
	snapshot := &model.PurchaseStatus{
		JobID:      jobID,
		UserID:     userID,
		ProductID:  sale.ProductID,
		SaleID:     sale.SaleID,
		Status:     model.JobQueued,
		EnqueuedAt: now,
		UpdatedAt:  now,
	}
	if err := s.cache.SetPurchase(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("write queued status: %w", err)
	}

	payload, err := json.Marshal(model.PurchaseJobPayload{
		JobID:     jobID,
		UserID:    userID,
		ProductID: sale.ProductID,
		SaleID:    sale.SaleID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}

	if _, err := s.q.AddJob(ctx, JobTypePurchase, payload, queue.AddOptions{JobID: jobID}); err != nil {
		return nil, fmt.Errorf("enqueue purchase: %w", err)
	}

	log.Info().
		Str("job_id", jobID).
		Str("user_id", userID.String()).
		Str("sale_id", sale.SaleID.String()).
		Msg("purchase admitted")

	return &model.PurchaseResponse{
		JobID:             jobID,
		Status:            model.JobQueued,
		EstimatedWaitTime: s.estimatedWait(ctx),
	}, nil
}

// GetPurchaseStatus returns the user's latest purchase snapshot, or a
// "none" response when there is nothing on record.
func (s *PurchaseService) GetPurchaseStatus(ctx context.Context, userID uuid.UUID) (*model.PurchaseStatusResponse, error) {
	snapshot, err := s.cache.GetUserPurchase(ctx, userID)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return &model.PurchaseStatusResponse{Status: model.JobNone}, nil
		}
		return nil, fmt.Errorf("read purchase status: %w", err)
	}
	return s.toResponse(ctx, snapshot), nil
}

// GetJob returns the snapshot for a job, falling back to the queue record
// when the cache entry has expired. Non-admin callers only see their own
// jobs; anything else reads as not found.
func (s *PurchaseService) GetJob(ctx context.Context, jobID string, callerID uuid.UUID, isAdmin bool) (*model.PurchaseStatusResponse, error) {
	snapshot, err := s.cache.GetJobPurchase(ctx, jobID)
	if err == nil {
		if snapshot.UserID != callerID && !isAdmin {
			return nil, ErrJobNotFound
		}
		return s.toResponse(ctx, snapshot), nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		return nil, fmt.Errorf("read job status: %w", err)
	}

	job, err := s.q.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}

	var payload model.PurchaseJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode job payload: %w", err)
	}
	if payload.UserID != callerID && !isAdmin {
		return nil, ErrJobNotFound
	}

	return jobToResponse(job), nil
}

func (s *PurchaseService) toResponse(ctx context.Context, snapshot *model.PurchaseStatus) *model.PurchaseStatusResponse {
	resp := &model.PurchaseStatusResponse{
		Status:  snapshot.Status,
		JobID:   snapshot.JobID,
		OrderID: snapshot.OrderID,
		Reason:  snapshot.Reason,
	}
	switch snapshot.Status {
	case model.JobCompleted:
		purchasedAt := snapshot.UpdatedAt
		resp.PurchasedAt = &purchasedAt
	case model.JobQueued, model.JobProcessing:
		wait := s.estimatedWait(ctx)
		resp.EstimatedWaitTime = &wait
	}
	return resp
}

// jobToResponse maps a raw queue record. A completed job may still carry a
// business failure in its result; the result is authoritative.
func jobToResponse(job *queue.Job) *model.PurchaseStatusResponse {
	resp := &model.PurchaseStatusResponse{JobID: job.ID}

	switch job.Status {
	case queue.StatusCompleted:
		var result model.PurchaseResult
		switch {
		case json.Unmarshal(job.Result, &result) != nil:
			// A completed job with an unreadable result must not read as
			// a success with no order.
			resp.Status = model.JobFailed
			resp.Reason = model.ReasonInternal
		case !result.Success:
			resp.Status = model.JobFailed
			resp.Reason = result.Reason
		default:
			resp.Status = model.JobCompleted
			resp.OrderID = result.OrderID
		}
	case queue.StatusFailed:
		resp.Status = model.JobFailed
		resp.Reason = model.ReasonInternal
	case queue.StatusProcessing:
		resp.Status = model.JobProcessing
	default:
		resp.Status = model.JobQueued
	}
	return resp
}

// estimatedWait derives a best-effort wait hint in milliseconds from the
// backlog. Advisory only.
func (s *PurchaseService) estimatedWait(ctx context.Context) int64 {
	stats, err := s.q.GetStats(ctx, JobTypePurchase)
	if err != nil {
		return s.avgService.Milliseconds()
	}
	backlog := stats.Waiting + stats.Active
	if backlog < 1 {
		backlog = 1
	}
	return backlog * s.avgService.Milliseconds()
}
