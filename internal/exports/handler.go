// Package exports lets admins request CSV exports of a collection and poll their status.
package exports

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clc-ministry/forms-backend/internal/middleware"
	"github.com/clc-ministry/forms-backend/internal/models"
	"github.com/clc-ministry/forms-backend/pkg/queue"
	"github.com/clc-ministry/forms-backend/pkg/response"
)

// Jobs is the part of *queue.Queue the handler needs.
type Jobs interface {
	EnqueueExport(ctx context.Context, payload queue.ExportPayload) (string, error)
	Status(ctx context.Context, jobID string) (*queue.ExportStatus, error)
}

// Handler handles export endpoints.
type Handler struct {
	jobs   Jobs
	logger *zap.Logger
}

// NewHandler creates an export handler. A nil jobs disables exports (503).
func NewHandler(jobs Jobs, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{jobs: jobs, logger: logger}
}

// Request handles POST /admin/:collection/export.
func (h *Handler) Request(c *gin.Context) {
	collection, ok := h.collection(c)
	if !ok {
		return
	}
	payload := queue.ExportPayload{Collection: collection}
	if id, ok := middleware.IdentityFrom(c); ok {
		payload.RequestedBy = id.Username
	}
	jobID, err := h.jobs.EnqueueExport(c.Request.Context(), payload)
	if err != nil {
		h.logger.Error("enqueue export", zap.String("collection", collection), zap.Error(err))
		response.Internal(c, "Server error")
		return
	}
	h.logger.Info("export requested",
		zap.String("job_id", jobID),
		zap.String("collection", collection),
		zap.String("admin", payload.RequestedBy),
	)
	response.Accepted(c, gin.H{"jobId": jobID, "status": queue.StatusQueued})
}

// Status handles GET /admin/:collection/export/:jobId.
func (h *Handler) Status(c *gin.Context) {
	collection, ok := h.collection(c)
	if !ok {
		return
	}
	st, err := h.jobs.Status(c.Request.Context(), c.Param("jobId"))
	if errors.Is(err, queue.ErrStatusNotFound) || (err == nil && st.Collection != collection) {
		response.NotFound(c, "Not found")
		return
	}
	if err != nil {
		h.logger.Error("export status", zap.String("job_id", c.Param("jobId")), zap.Error(err))
		response.Internal(c, "Server error")
		return
	}
	body := gin.H{"jobId": st.JobID, "status": st.Status}
	if st.URL != "" {
		body["url"] = st.URL
		body["rows"] = st.Rows
	}
	if st.Error != "" {
		body["error"] = st.Error
	}
	if st.UpdatedAt != "" {
		body["updatedAt"] = st.UpdatedAt
	}
	response.OK(c, body)
}

func (h *Handler) collection(c *gin.Context) (string, bool) {
	if h.jobs == nil {
		response.ServiceUnavailable(c, "Exports disabled")
		return "", false
	}
	name := c.Param("collection")
	if _, ok := models.KindForCollection(name); !ok {
		response.NotFound(c, "Not found")
		return "", false
	}
	return name, true
}
