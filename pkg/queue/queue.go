package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueExports is the Redis list key for export jobs.
	QueueExports = "worker:exports"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
	// StatusTTL is how long export status hashes are kept.
	StatusTTL = 24 * time.Hour

	statusKeyPrefix = "export:"
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeExport JobType = "export"
)

// Export job states.
const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// ErrStatusNotFound is returned when no status exists for a job id.
var ErrStatusNotFound = errors.New("export status not found")

// ExportPayload is the payload for export jobs.
type ExportPayload struct {
	Collection  string `json:"collection"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// ExportStatus is the progress record of one export job.
type ExportStatus struct {
	JobID      string `json:"jobId"`
	Collection string `json:"collection"`
	Status     string `json:"status"`
	URL        string `json:"url,omitempty"`
	Rows       int    `json:"rows,omitempty"`
	Error      string `json:"error,omitempty"`
	UpdatedAt  string `json:"updatedAt"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis and keeps export status hashes.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// EnqueueExport enqueues an export job, marks it queued and returns its id.
func (q *Queue) EnqueueExport(ctx context.Context, payload ExportPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      JobTypeExport,
		Payload:   body,
		Attempt:   0,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}
	if err := q.SetStatus(ctx, ExportStatus{JobID: job.ID, Collection: payload.Collection, Status: StatusQueued}); err != nil {
		return "", err
	}
	if err := q.client.RPush(ctx, QueueExports, raw).Err(); err != nil {
		return "", fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued export job", zap.String("job_id", job.ID), zap.String("collection", payload.Collection))
	return job.ID, nil
}

// Dequeue blocks until a job is available, timeout elapses or ctx is done.
// It returns a nil job on timeout or an unreadable payload.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, QueueExports).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead
// and reports true.
func (q *Queue) Retry(ctx context.Context, job *Job) (bool, error) {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return false, err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return false, err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return true, nil
	}
	if err := q.client.RPush(ctx, QueueExports, raw).Err(); err != nil {
		return false, err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return false, nil
}

// SetStatus stores s under export:<jobId> with StatusTTL.
func (q *Queue) SetStatus(ctx context.Context, s ExportStatus) error {
	if s.UpdatedAt == "" {
		s.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	key := statusKeyPrefix + s.JobID
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"collection": s.Collection,
		"status":     s.Status,
		"url":        s.URL,
		"rows":       s.Rows,
		"error":      s.Error,
		"updatedAt":  s.UpdatedAt,
	})
	pipe.Expire(ctx, key, StatusTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set export status: %w", err)
	}
	return nil
}

// Status returns the stored status of an export job.
func (q *Queue) Status(ctx context.Context, jobID string) (*ExportStatus, error) {
	vals, err := q.client.HGetAll(ctx, statusKeyPrefix+jobID).Result()
	if err != nil {
		return nil, fmt.Errorf("get export status: %w", err)
	}
	if len(vals) == 0 {
		return nil, ErrStatusNotFound
	}
	rows, _ := strconv.Atoi(vals["rows"])
	return &ExportStatus{
		JobID:      jobID,
		Collection: vals["collection"],
		Status:     vals["status"],
		URL:        vals["url"],
		Rows:       rows,
		Error:      vals["error"],
		UpdatedAt:  vals["updatedAt"],
	}, nil
}
