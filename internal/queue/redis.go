package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	popTimeout      = 2 * time.Second
	promoteInterval = 500 * time.Millisecond
	promoteBatch    = 128
	reclaimInterval = 30 * time.Second
)

// RedisQueue is the Redis-backed Queue.
//
// Layout per job type:
//   - queue:{type}:ready      list of job IDs awaiting delivery
//   - queue:{type}:processing list of job IDs with an active attempt
//   - queue:{type}:delayed    zset of job IDs scored by delivery time
//   - queue:{type}:completed_count / failed_count counters
//   - queue:job:{id}          hash holding the job record
//
// BRPOPLPUSH moves a job into the processing list atomically, so a crash
// between pop and handler leaves the ID recoverable. Each attempt stamps
// claimed_at on the job hash; a reclaimer returns jobs whose claim is
// older than the visibility timeout to the ready list. Live claims held
// by other worker processes are left alone, so several processes may
// share a job type. A reclaim that races a slow handler redelivers the
// job, which at-least-once semantics already require handlers to absorb.
type RedisQueue struct {
	rdb            *redis.Client
	maxAttempts    int
	initialBackoff time.Duration
	retention      time.Duration
	visibility     time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// RedisOptions tunes the Redis backend.
type RedisOptions struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	Retention      time.Duration
	// VisibilityTimeout is how long an in-flight claim is trusted before a
	// reclaimer may redeliver the job. Must exceed the handler's hard
	// per-job timeout.
	VisibilityTimeout time.Duration
}

// NewRedisQueue wraps an existing client. The client is owned by the
// caller and is not closed by Close.
func NewRedisQueue(rdb *redis.Client, opts RedisOptions) *RedisQueue {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	if opts.Retention <= 0 {
		opts.Retention = 24 * time.Hour
	}
	if opts.VisibilityTimeout <= 0 {
		opts.VisibilityTimeout = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &RedisQueue{
		rdb:            rdb,
		maxAttempts:    opts.MaxAttempts,
		initialBackoff: opts.InitialBackoff,
		retention:      opts.Retention,
		visibility:     opts.VisibilityTimeout,
		ctx:            ctx,
		cancel:         cancel,
	}
}

func readyKey(jobType string) string      { return "queue:" + jobType + ":ready" }
func processingKey(jobType string) string { return "queue:" + jobType + ":processing" }
func delayedKey(jobType string) string    { return "queue:" + jobType + ":delayed" }
func completedKey(jobType string) string  { return "queue:" + jobType + ":completed_count" }
func failedKey(jobType string) string     { return "queue:" + jobType + ":failed_count" }
func jobKey(id string) string             { return "queue:job:" + id }

// AddJob writes the job hash and places the ID on the ready list (or the
// delayed zset). The job ID is stable across retries.
func (q *RedisQueue) AddJob(ctx context.Context, jobType string, payload []byte, opts AddOptions) (string, error) {
	id := opts.JobID
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now().UTC()
	pipe := q.rdb.TxPipeline()
	pipe.HSet(ctx, jobKey(id), map[string]any{
		"type":         jobType,
		"payload":      payload,
		"status":       StatusQueued,
		"attempts":     0,
		"max_attempts": q.maxAttempts,
		"priority":     opts.Priority,
		"enqueued_at":  now.Format(time.RFC3339Nano),
	})
	pipe.Expire(ctx, jobKey(id), q.retention)

	if opts.Delay > 0 {
		pipe.ZAdd(ctx, delayedKey(jobType), redis.Z{
			Score:  float64(now.Add(opts.Delay).UnixMilli()),
			Member: id,
		})
	} else if opts.Priority > 0 {
		// Front of the line. Consumers pop from the tail.
		pipe.RPush(ctx, readyKey(jobType), id)
	} else {
		pipe.LPush(ctx, readyKey(jobType), id)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("queue: add job: %w", err)
	}
	return id, nil
}

// Process reclaims stale-claimed jobs, starts the delayed-job promoter
// and the reclaimer, and launches `concurrency` workers. It returns
// immediately.
func (q *RedisQueue) Process(jobType string, concurrency int, handler Handler) error {
	if concurrency < 1 {
		concurrency = 1
	}

	if err := q.reclaimExpired(jobType); err != nil {
		return err
	}

	q.wg.Add(1)
	go q.promoteLoop(jobType)

	q.wg.Add(1)
	go q.reclaimLoop(jobType)

	for i := 0; i < concurrency; i++ {
		q.wg.Add(1)
		go q.workerLoop(jobType, handler)
	}
	return nil
}

// GetJob looks up a job hash by ID.
func (q *RedisQueue) GetJob(ctx context.Context, jobID string) (*Job, error) {
	fields, err := q.rdb.HGetAll(ctx, jobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: get job %s: %w", jobID, err)
	}
	if len(fields) == 0 {
		return nil, ErrJobNotFound
	}

	job := &Job{
		ID:        jobID,
		Type:      fields["type"],
		Payload:   []byte(fields["payload"]),
		Status:    fields["status"],
		Result:    []byte(fields["result"]),
		LastError: fields["last_error"],
	}
	job.Attempts, _ = strconv.Atoi(fields["attempts"])
	job.MaxAttempts, _ = strconv.Atoi(fields["max_attempts"])
	job.Priority, _ = strconv.Atoi(fields["priority"])
	if ts, err := time.Parse(time.RFC3339Nano, fields["enqueued_at"]); err == nil {
		job.EnqueuedAt = ts
	}
	return job, nil
}

// GetStats reports backlog counts for a job type.
func (q *RedisQueue) GetStats(ctx context.Context, jobType string) (Stats, error) {
	pipe := q.rdb.Pipeline()
	ready := pipe.LLen(ctx, readyKey(jobType))
	delayed := pipe.ZCard(ctx, delayedKey(jobType))
	active := pipe.LLen(ctx, processingKey(jobType))
	completed := pipe.Get(ctx, completedKey(jobType))
	failed := pipe.Get(ctx, failedKey(jobType))

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Stats{}, fmt.Errorf("queue: get stats: %w", err)
	}

	stats := Stats{
		Waiting: ready.Val() + delayed.Val(),
		Active:  active.Val(),
	}
	stats.Completed, _ = completed.Int64()
	stats.Failed, _ = failed.Int64()
	return stats, nil
}

// Close stops the workers and waits for in-flight attempts. The Redis
// client stays open; the caller owns it.
func (q *RedisQueue) Close() error {
	q.once.Do(q.cancel)
	q.wg.Wait()
	return nil
}

// reclaimExpired returns processing-list jobs whose claim has gone stale
// to the ready list. Stale means no worker stamped the claim within the
// visibility timeout, which covers a crashed process and a handler that
// died mid-attempt alike. A job with no claim stamp at all crashed
// between pop and stamp; its enqueue time ages it instead.
func (q *RedisQueue) reclaimExpired(jobType string) error {
	ctx, cancel := context.WithTimeout(q.ctx, 10*time.Second)
	defer cancel()

	ids, err := q.rdb.LRange(ctx, processingKey(jobType), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("queue: scan processing list: %w", err)
	}
	cutoff := time.Now().UTC().Add(-q.visibility)

	for _, id := range ids {
		fields, err := q.rdb.HMGet(ctx, jobKey(id), "claimed_at", "enqueued_at").Result()
		if err != nil {
			continue
		}
		if fields[0] == nil && fields[1] == nil {
			// Record expired while the ID sat on the list.
			q.rdb.LRem(ctx, processingKey(jobType), 1, id)
			continue
		}
		claimed := parseStamp(fields[0])
		if claimed.IsZero() {
			claimed = parseStamp(fields[1])
		}
		if claimed.IsZero() || claimed.After(cutoff) {
			continue
		}

		// LRem before LPush: if the owner finished concurrently it already
		// removed the ID, and the zero count skips the redelivery.
		removed, err := q.rdb.LRem(ctx, processingKey(jobType), 1, id).Result()
		if err != nil || removed == 0 {
			continue
		}
		q.rdb.HSet(ctx, jobKey(id), "status", StatusQueued)
		if err := q.rdb.LPush(ctx, readyKey(jobType), id).Err(); err != nil {
			log.Error().Err(err).Str("job_id", id).Msg("failed to requeue reclaimed job")
			continue
		}
		log.Warn().Str("job_id", id).Str("job_type", jobType).Msg("reclaimed stale job")
	}
	return nil
}

func parseStamp(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// reclaimLoop periodically sweeps for stale claims so a crashed sibling
// process's jobs recover without waiting for a restart.
func (q *RedisQueue) reclaimLoop(jobType string) {
	defer q.wg.Done()

	ticker := time.NewTicker(reclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			if err := q.reclaimExpired(jobType); err != nil {
				log.Warn().Err(err).Str("job_type", jobType).Msg("reclaim sweep failed")
			}
		}
	}
}

// promoteLoop moves due jobs from the delayed zset onto the ready list.
func (q *RedisQueue) promoteLoop(jobType string) {
	defer q.wg.Done()

	ticker := time.NewTicker(promoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.promoteDue(jobType)
		}
	}
}

func (q *RedisQueue) promoteDue(jobType string) {
	now := time.Now().UTC().UnixMilli()
	ids, err := q.rdb.ZRangeByScore(q.ctx, delayedKey(jobType), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now, 10),
		Count: promoteBatch,
	}).Result()
	if err != nil || len(ids) == 0 {
		return
	}

	for _, id := range ids {
		// ZRem guards against a concurrent promoter claiming the same job.
		removed, err := q.rdb.ZRem(q.ctx, delayedKey(jobType), id).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := q.rdb.LPush(q.ctx, readyKey(jobType), id).Err(); err != nil {
			log.Error().Err(err).Str("job_id", id).Msg("failed to promote delayed job")
		}
	}
}

func (q *RedisQueue) workerLoop(jobType string, handler Handler) {
	defer q.wg.Done()

	for {
		if q.ctx.Err() != nil {
			return
		}

		id, err := q.rdb.BRPopLPush(q.ctx, readyKey(jobType), processingKey(jobType), popTimeout).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if q.ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("job_type", jobType).Msg("queue pop failed, backing off")
			time.Sleep(300 * time.Millisecond)
			continue
		}

		q.execute(jobType, id, handler)
	}
}

// execute runs one attempt. The handler context is detached from Close so
// an in-flight job always runs to its terminal state.
func (q *RedisQueue) execute(jobType, id string, handler Handler) {
	ctx := context.Background()

	attempts, err := q.rdb.HIncrBy(ctx, jobKey(id), "attempts", 1).Result()
	if err != nil {
		log.Error().Err(err).Str("job_id", id).Msg("failed to record attempt")
		q.rdb.LRem(ctx, processingKey(jobType), 1, id)
		return
	}
	q.rdb.HSet(ctx, jobKey(id),
		"status", StatusProcessing,
		"claimed_at", time.Now().UTC().Format(time.RFC3339Nano),
	)

	job, err := q.GetJob(ctx, id)
	if err != nil {
		// Hash expired while the ID sat on a list. Nothing to run.
		log.Warn().Err(err).Str("job_id", id).Msg("dropping job without record")
		q.rdb.LRem(ctx, processingKey(jobType), 1, id)
		return
	}
	job.Attempts = int(attempts)

	result, handlerErr := handler(ctx, job)

	pipe := q.rdb.TxPipeline()
	switch {
	case handlerErr == nil:
		pipe.HSet(ctx, jobKey(id), map[string]any{
			"status": StatusCompleted,
			"result": result,
		})
		pipe.Incr(ctx, completedKey(jobType))

	case job.Attempts >= job.MaxAttempts:
		pipe.HSet(ctx, jobKey(id), map[string]any{
			"status":     StatusFailed,
			"last_error": handlerErr.Error(),
		})
		pipe.Incr(ctx, failedKey(jobType))
		log.Error().Err(handlerErr).Str("job_id", id).Int("attempts", job.Attempts).
			Msg("job failed, retry budget exhausted")

	default:
		delay := q.retryDelay(job.Attempts)
		pipe.HSet(ctx, jobKey(id), map[string]any{
			"status":     StatusQueued,
			"last_error": handlerErr.Error(),
		})
		pipe.ZAdd(ctx, delayedKey(jobType), redis.Z{
			Score:  float64(time.Now().UTC().Add(delay).UnixMilli()),
			Member: id,
		})
		log.Warn().Err(handlerErr).Str("job_id", id).Int("attempt", job.Attempts).
			Dur("retry_in", delay).Msg("job attempt failed, scheduling retry")
	}
	pipe.Expire(ctx, jobKey(id), q.retention)
	pipe.LRem(ctx, processingKey(jobType), 1, id)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Error().Err(err).Str("job_id", id).Msg("failed to record attempt outcome")
	}
}

// retryDelay computes the backoff for the given attempt number (1-based).
func (q *RedisQueue) retryDelay(attempt int) time.Duration {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = q.initialBackoff
	bo.RandomizationFactor = 0.2
	bo.Multiplier = 2
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0 // the attempt ceiling bounds retries, not time

	delay := bo.NextBackOff()
	for i := 1; i < attempt; i++ {
		delay = bo.NextBackOff()
	}
	return delay
}
