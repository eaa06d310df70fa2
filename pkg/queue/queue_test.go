package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewQueue(client, nil), mr
}

func TestEnqueueExportThenDequeue(t *testing.T) {
	q, mr := newQueue(t)
	ctx := context.Background()

	id, err := q.EnqueueExport(ctx, ExportPayload{Collection: "orders", RequestedBy: "admin@example.com"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	st, err := q.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, st.Status)
	assert.Equal(t, "orders", st.Collection)
	assert.NotEmpty(t, st.UpdatedAt)
	assert.Equal(t, StatusTTL, mr.TTL(statusKeyPrefix+id))

	job, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, JobTypeExport, job.Type)
	assert.Zero(t, job.Attempt)

	var payload ExportPayload
	require.NoError(t, json.Unmarshal(job.Payload, &payload))
	assert.Equal(t, "admin@example.com", payload.RequestedBy)
}

func TestDequeueSkipsGarbage(t *testing.T) {
	q, mr := newQueue(t)
	_, err := mr.RPush(QueueExports, "not json")
	require.NoError(t, err)

	job, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestRetryMovesToDLQAtMaxRetries(t *testing.T) {
	q, mr := newQueue(t)
	ctx := context.Background()
	job := &Job{ID: "job-1", Type: JobTypeExport, Payload: json.RawMessage(`{"collection":"orders"}`)}

	for i := 1; i < MaxRetries; i++ {
		dead, err := q.Retry(ctx, job)
		require.NoError(t, err)
		assert.False(t, dead, "attempt %d", i)
		assert.Equal(t, i, job.Attempt)
	}
	queued, err := mr.List(QueueExports)
	require.NoError(t, err)
	assert.Len(t, queued, MaxRetries-1)
	assert.False(t, mr.Exists(QueueDLQ))

	dead, err := q.Retry(ctx, job)
	require.NoError(t, err)
	assert.True(t, dead)

	dlq, err := mr.List(QueueDLQ)
	require.NoError(t, err)
	require.Len(t, dlq, 1)
	var moved Job
	require.NoError(t, json.Unmarshal([]byte(dlq[0]), &moved))
	assert.Equal(t, "job-1", moved.ID)
	assert.Equal(t, MaxRetries, moved.Attempt)

	queued, err = mr.List(QueueExports)
	require.NoError(t, err)
	assert.Len(t, queued, MaxRetries-1)
}

func TestSetStatusRoundTrip(t *testing.T) {
	q, mr := newQueue(t)
	ctx := context.Background()

	require.NoError(t, q.SetStatus(ctx, ExportStatus{
		JobID:      "job-2",
		Collection: "workshop",
		Status:     StatusDone,
		URL:        "https://exports.example/workshop.csv",
		Rows:       12,
		UpdatedAt:  "2026-01-01T00:00:00Z",
	}))

	st, err := q.Status(ctx, "job-2")
	require.NoError(t, err)
	assert.Equal(t, &ExportStatus{
		JobID:      "job-2",
		Collection: "workshop",
		Status:     StatusDone,
		URL:        "https://exports.example/workshop.csv",
		Rows:       12,
		UpdatedAt:  "2026-01-01T00:00:00Z",
	}, st)

	mr.FastForward(StatusTTL + time.Second)
	_, err = q.Status(ctx, "job-2")
	assert.ErrorIs(t, err, ErrStatusNotFound)
}

func TestStatusUnknownJob(t *testing.T) {
	q, _ := newQueue(t)
	_, err := q.Status(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrStatusNotFound)
}
