package model

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle of a purchase job. A job reaches exactly one
// terminal status (completed or failed) and never leaves it.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"

	// JobNone is the polled status for a user with no purchase on record.
	// Never stored.
	JobNone JobStatus = "none"
)

// Failure reasons carried in terminal job results.
const (
	ReasonAlreadyPurchased = "AlreadyPurchased"
	ReasonOutOfStock       = "OutOfStock"
	ReasonSaleNotOpen      = "SaleNotOpen"
	ReasonInternal         = "Internal"
)

// PurchaseJobPayload is the queue payload for a purchase job.
type PurchaseJobPayload struct {
	JobID     string    `json:"jobId"`
	UserID    uuid.UUID `json:"userId"`
	ProductID uuid.UUID `json:"productId"`
	SaleID    uuid.UUID `json:"saleId"`
}

// PurchaseResult is the terminal outcome stored as the job result.
type PurchaseResult struct {
	Success bool       `json:"success"`
	OrderID *uuid.UUID `json:"orderId,omitempty"`
	Reason  string     `json:"reason,omitempty"`
}

// PurchaseStatus is the cache snapshot of a job, keyed by both jobId and
// userId. Admission writes the initial queued snapshot; the worker owns
// every write after that.
type PurchaseStatus struct {
	JobID      string     `json:"jobId"`
	UserID     uuid.UUID  `json:"userId"`
	ProductID  uuid.UUID  `json:"productId"`
	SaleID     uuid.UUID  `json:"saleId"`
	Status     JobStatus  `json:"status"`
	OrderID    *uuid.UUID `json:"orderId,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	EnqueuedAt time.Time  `json:"enqueuedAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Terminal reports whether the snapshot has reached a final status.
func (p *PurchaseStatus) Terminal() bool {
	return p.Status == JobCompleted || p.Status == JobFailed
}

// PurchaseResponse is the API response DTO for POST /purchase (202).
type PurchaseResponse struct {
	JobID             string    `json:"jobId"`
	Status            JobStatus `json:"status"`
	EstimatedWaitTime int64     `json:"estimatedWaitTime"` // milliseconds, advisory
}

// PurchaseStatusResponse is the API response DTO for GET /purchase/status
// and GET /purchase/job/:jobId.
type PurchaseStatusResponse struct {
	Status            JobStatus  `json:"status"`
	JobID             string     `json:"jobId,omitempty"`
	OrderID           *uuid.UUID `json:"orderId,omitempty"`
	Reason            string     `json:"reason,omitempty"`
	PurchasedAt       *time.Time `json:"purchasedAt,omitempty"`
	EstimatedWaitTime *int64     `json:"estimatedWaitTime,omitempty"`
}
