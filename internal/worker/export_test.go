package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clc-ministry/forms-backend/internal/models"
	"github.com/clc-ministry/forms-backend/internal/records"
	"github.com/clc-ministry/forms-backend/pkg/dynamo/dynamotest"
	"github.com/clc-ministry/forms-backend/pkg/queue"
)

type fakeQueue struct {
	mu       sync.Mutex
	statuses []queue.ExportStatus
	retried  []*queue.Job
	jobs     chan *queue.Job
}

func newFakeQueue() *fakeQueue { return &fakeQueue{jobs: make(chan *queue.Job, 4)} }

func (q *fakeQueue) Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case j := <-q.jobs:
		return j, nil
	case <-time.After(10 * time.Millisecond):
		return nil, nil
	}
}

func (q *fakeQueue) Retry(_ context.Context, job *queue.Job) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job.Attempt++
	q.retried = append(q.retried, job)
	return job.Attempt >= queue.MaxRetries, nil
}

func (q *fakeQueue) SetStatus(_ context.Context, s queue.ExportStatus) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.statuses = append(q.statuses, s)
	return nil
}

func (q *fakeQueue) last() queue.ExportStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.statuses[len(q.statuses)-1]
}

type fakeUploader struct {
	key  string
	body string
	err  error
}

func (u *fakeUploader) UploadExport(_ context.Context, key string, body io.Reader) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	u.key, u.body = key, string(b)
	return "https://exports.example/" + key, nil
}

func exportJob(t *testing.T, collection string) *queue.Job {
	t.Helper()
	payload, err := json.Marshal(queue.ExportPayload{Collection: collection, RequestedBy: "pastor"})
	require.NoError(t, err)
	return &queue.Job{ID: "job-1", Type: queue.JobTypeExport, Payload: payload}
}

func seededStore(t *testing.T) (records.Store, records.Collections) {
	t.Helper()
	db := dynamotest.New()
	db.CreateTable("workshop", "registrationId")
	db.CreateTable("orders", "orderId")
	store := records.NewDynamoStore(db)
	colls := records.NewCollections("workshop", "orders")
	ctx := context.Background()

	older := &models.SpaghettiOrder{Name: "Ann", Phone: "555-0100", Quantity: 2, Notes: "no onions, please"}
	older.Stamp("o1", "2026-03-01T10:00:00.000Z")
	newer := &models.SpaghettiOrder{Name: "Ben", Phone: "555-0101", Email: "ben@example.com", Quantity: 1}
	newer.Stamp("o2", "2026-03-02T10:00:00.000Z")
	require.NoError(t, store.Create(ctx, colls[models.KindOrder], "o1", older))
	require.NoError(t, store.Create(ctx, colls[models.KindOrder], "o2", newer))
	return store, colls
}

func TestProcessExportsOrders(t *testing.T) {
	store, colls := seededStore(t)
	q := newFakeQueue()
	up := &fakeUploader{}
	p := NewExportProcessor(store, colls, up, q, nil)

	require.NoError(t, p.Process(context.Background(), exportJob(t, "orders")))

	assert.Equal(t, "exports/orders/job-1.csv", up.key)
	lines := strings.Split(strings.TrimSpace(up.body), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "orderId,name,phone,email,quantity,notes,status,createdAt,updatedAt", lines[0])
	assert.Equal(t, "o2,Ben,555-0101,ben@example.com,1,,pending,2026-03-02T10:00:00.000Z,", lines[1])
	assert.Equal(t, `o1,Ann,555-0100,,2,"no onions, please",pending,2026-03-01T10:00:00.000Z,`, lines[2])

	require.Len(t, q.statuses, 2)
	assert.Equal(t, queue.StatusRunning, q.statuses[0].Status)
	done := q.last()
	assert.Equal(t, queue.StatusDone, done.Status)
	assert.Equal(t, 2, done.Rows)
	assert.Equal(t, "https://exports.example/exports/orders/job-1.csv", done.URL)
}

func TestProcessRejectsBadJobs(t *testing.T) {
	store, colls := seededStore(t)
	p := NewExportProcessor(store, colls, &fakeUploader{}, newFakeQueue(), nil)
	ctx := context.Background()

	err := p.Process(ctx, &queue.Job{ID: "x", Type: "other"})
	assert.ErrorContains(t, err, "unknown job type")

	err = p.Process(ctx, exportJob(t, "members"))
	assert.ErrorContains(t, err, "unknown collection")
}

func TestRunRetriesThenFails(t *testing.T) {
	store, colls := seededStore(t)
	q := newFakeQueue()
	p := NewExportProcessor(store, colls, &fakeUploader{err: errors.New("bucket gone")}, q, nil)
	p.backoff = time.Millisecond

	job := exportJob(t, "orders")
	job.Attempt = queue.MaxRetries - 1
	q.jobs <- job

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		n := len(q.statuses)
		return n > 0 && q.statuses[n-1].Status == queue.StatusFailed
	}, time.Second, 5*time.Millisecond)
	cancel()

	final := q.last()
	assert.Equal(t, "orders", final.Collection)
	assert.Contains(t, final.Error, "bucket gone")
	q.mu.Lock()
	assert.Len(t, q.retried, 1)
	q.mu.Unlock()
}

func TestWriteCSVWorkshop(t *testing.T) {
	var sb strings.Builder
	docs := []records.Document{{
		"registrationId": "r1", "firstName": "Ada", "lastName": "Lee", "phoneNumber": "555",
		"yearsAtClc": 2.5, "encounterCollide": true, "dateOfBirth": "2010-01-01", "grade": "9",
		"audition": false, "present": true, "createdAt": "2026-03-01T10:00:00.000Z",
	}}
	require.NoError(t, WriteCSV(&sb, models.KindWorkshop, docs))
	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "r1,Ada,Lee,555,2.5,true,2010-01-01,9,false,true,2026-03-01T10:00:00.000Z,", lines[1])

	assert.Error(t, WriteCSV(&sb, models.Kind("nope"), nil))
}
