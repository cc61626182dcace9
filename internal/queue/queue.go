// Package queue defines the durable job queue the purchase pipeline runs
// on. The rest of the system depends only on the Queue interface; a backend
// is chosen once at startup through the Factory and never swapped.
//
// Delivery contract: at-least-once, bounded retries with exponential
// backoff, stable job IDs across retries. Ordering across different job IDs
// is not guaranteed.
package queue

import (
	"context"
	"errors"
	"time"
)

// Job statuses as stored by a backend.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ErrJobNotFound is returned by GetJob for unknown or expired job IDs.
var ErrJobNotFound = errors.New("queue: job not found")

// Job is a unit of work with its current backend state.
type Job struct {
	ID          string
	Type        string
	Payload     []byte
	Status      string
	Attempts    int
	MaxAttempts int
	Priority    int
	Result      []byte
	LastError   string
	EnqueuedAt  time.Time
}

// Stats is a point-in-time view of a job type's backlog.
type Stats struct {
	Waiting   int64
	Active    int64
	Completed int64
	Failed    int64
}

// AddOptions tunes a single enqueue.
type AddOptions struct {
	// JobID pins the job's identity. Empty means the backend assigns one.
	JobID string
	// Priority > 0 pushes the job ahead of the normal backlog. A hint, not
	// a guarantee.
	Priority int
	// Delay defers the first delivery.
	Delay time.Duration
}

// Handler processes one job attempt. A nil error with a result marks the
// job completed; a non-nil error triggers a retry until the attempt
// ceiling, after which the job is marked failed. Terminal business outcomes
// must therefore be encoded in the result, not returned as errors.
type Handler func(ctx context.Context, job *Job) ([]byte, error)

// Queue is the capability set every backend must provide.
type Queue interface {
	// AddJob enqueues a job and returns its ID.
	AddJob(ctx context.Context, jobType string, payload []byte, opts AddOptions) (string, error)
	// Process starts `concurrency` workers for the given job type and
	// returns immediately. Workers run until Close.
	Process(jobType string, concurrency int, handler Handler) error
	// GetJob looks up a job by ID.
	GetJob(ctx context.Context, jobID string) (*Job, error)
	// GetStats reports backlog counts for a job type.
	GetStats(ctx context.Context, jobType string) (Stats, error)
	// Close stops workers and waits for in-flight attempts to finish.
	Close() error
}
