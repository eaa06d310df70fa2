// Package worker runs background jobs pulled from the Redis queue.
package worker

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/clc-ministry/forms-backend/internal/models"
	"github.com/clc-ministry/forms-backend/internal/records"
	"github.com/clc-ministry/forms-backend/pkg/queue"
	"github.com/clc-ministry/forms-backend/pkg/storage"
)

// DequeueTimeout bounds one blocking pop so the loop notices cancellation.
const DequeueTimeout = 5 * time.Second

// JobQueue is the part of *queue.Queue the processor needs.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) (bool, error)
	SetStatus(ctx context.Context, s queue.ExportStatus) error
}

// Uploader stores a finished export and returns a download URL.
type Uploader interface {
	UploadExport(ctx context.Context, key string, body io.Reader) (string, error)
}

var exportColumns = map[models.Kind][]string{
	models.KindWorkshop: {
		"registrationId", "firstName", "lastName", "phoneNumber", "yearsAtClc", "encounterCollide",
		"dateOfBirth", "grade", "audition", "present", "createdAt", "updatedAt",
	},
	models.KindOrder: {
		"orderId", "name", "phone", "email", "quantity", "notes", "status", "createdAt", "updatedAt",
	},
}

// ExportProcessor processes export jobs: scan a collection, render CSV, upload to S3, record the URL.
type ExportProcessor struct {
	store       records.Store
	collections records.Collections
	uploader    Uploader
	queue       JobQueue
	logger      *zap.Logger
	backoff     time.Duration
}

// NewExportProcessor creates an export processor.
func NewExportProcessor(store records.Store, colls records.Collections, uploader Uploader, q JobQueue, logger *zap.Logger) *ExportProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportProcessor{
		store:       store,
		collections: colls,
		uploader:    uploader,
		queue:       q,
		logger:      logger,
		backoff:     queue.RetryBackoff,
	}
}

// Process executes one export job.
func (p *ExportProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeExport {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.ExportPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	kind, ok := models.KindForCollection(payload.Collection)
	if !ok {
		return fmt.Errorf("unknown collection: %s", payload.Collection)
	}
	status := queue.ExportStatus{JobID: job.ID, Collection: payload.Collection, Status: queue.StatusRunning}
	if err := p.queue.SetStatus(ctx, status); err != nil {
		return err
	}

	docs, err := p.store.Scan(ctx, p.collections[kind])
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	records.SortNewestFirst(docs)

	var buf bytes.Buffer
	if err := WriteCSV(&buf, kind, docs); err != nil {
		return fmt.Errorf("render csv: %w", err)
	}
	url, err := p.uploader.UploadExport(ctx, storage.ExportKey(payload.Collection, job.ID), &buf)
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}

	status.Status = queue.StatusDone
	status.URL = url
	status.Rows = len(docs)
	if err := p.queue.SetStatus(ctx, status); err != nil {
		return err
	}
	p.logger.Info("export completed",
		zap.String("job_id", job.ID),
		zap.String("collection", payload.Collection),
		zap.Int("rows", len(docs)),
		zap.String("requested_by", payload.RequestedBy),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ExportProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("export worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, DequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.fail(ctx, job, err)
			p.sleep(ctx)
		}
	}
}

func (p *ExportProcessor) fail(ctx context.Context, job *queue.Job, cause error) {
	p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(cause))
	dead, err := p.queue.Retry(ctx, job)
	if err != nil {
		p.logger.Error("retry enqueue failed", zap.Error(err))
	}
	state := queue.StatusQueued
	if dead || err != nil {
		state = queue.StatusFailed
	}
	var payload queue.ExportPayload
	_ = json.Unmarshal(job.Payload, &payload)
	status := queue.ExportStatus{JobID: job.ID, Collection: payload.Collection, Status: state, Error: cause.Error()}
	if err := p.queue.SetStatus(ctx, status); err != nil {
		p.logger.Error("set export status failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (p *ExportProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// WriteCSV renders docs as CSV with a header row of the kind's columns.
func WriteCSV(w io.Writer, kind models.Kind, docs []records.Document) error {
	columns, ok := exportColumns[kind]
	if !ok {
		return fmt.Errorf("no export columns for %q", kind)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	row := make([]string, len(columns))
	for _, doc := range docs {
		for i, col := range columns {
			row[i] = cell(doc[col])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
