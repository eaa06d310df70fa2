package exports

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clc-ministry/forms-backend/internal/auth"
	"github.com/clc-ministry/forms-backend/internal/middleware"
	"github.com/clc-ministry/forms-backend/pkg/queue"
)

type fakeJobs struct {
	enqueued []queue.ExportPayload
	statuses map[string]*queue.ExportStatus
	err      error
}

func (f *fakeJobs) EnqueueExport(_ context.Context, p queue.ExportPayload) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.enqueued = append(f.enqueued, p)
	return "job-42", nil
}

func (f *fakeJobs) Status(_ context.Context, id string) (*queue.ExportStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	st, ok := f.statuses[id]
	if !ok {
		return nil, queue.ErrStatusNotFound
	}
	return st, nil
}

func router(jobs Jobs) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(jobs, nil)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextIdentity, &auth.Identity{Username: "pastor"})
	})
	r.POST("/admin/:collection/export", h.Request)
	r.GET("/admin/:collection/export/:jobId", h.Status)
	return r
}

func serve(r *gin.Engine, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestRequestExport(t *testing.T) {
	jobs := &fakeJobs{}
	w, body := serve(router(jobs), http.MethodPost, "/admin/orders/export")

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "job-42", body["jobId"])
	assert.Equal(t, "queued", body["status"])
	require.Len(t, jobs.enqueued, 1)
	assert.Equal(t, queue.ExportPayload{Collection: "orders", RequestedBy: "pastor"}, jobs.enqueued[0])
}

func TestRequestExportErrors(t *testing.T) {
	w, _ := serve(router(&fakeJobs{}), http.MethodPost, "/admin/members/export")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body := serve(router(&fakeJobs{err: errors.New("redis down")}), http.MethodPost, "/admin/workshop/export")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Server error", body["message"])

	w, body = serve(router(nil), http.MethodPost, "/admin/workshop/export")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "Exports disabled", body["message"])
}

func TestExportStatus(t *testing.T) {
	jobs := &fakeJobs{statuses: map[string]*queue.ExportStatus{
		"done": {JobID: "done", Collection: "orders", Status: queue.StatusDone, URL: "https://x/y.csv", Rows: 3, UpdatedAt: "2026-04-02T09:00:00Z"},
		"bad":  {JobID: "bad", Collection: "workshop", Status: queue.StatusFailed, Error: "scan: boom"},
	}}
	r := router(jobs)

	w, body := serve(r, http.MethodGet, "/admin/orders/export/done")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "done", body["status"])
	assert.Equal(t, "https://x/y.csv", body["url"])
	assert.Equal(t, float64(3), body["rows"])

	w, body = serve(r, http.MethodGet, "/admin/workshop/export/bad")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "failed", body["status"])
	assert.Equal(t, "scan: boom", body["error"])
	assert.NotContains(t, body, "url")

	w, _ = serve(r, http.MethodGet, "/admin/workshop/export/done")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = serve(r, http.MethodGet, "/admin/orders/export/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
