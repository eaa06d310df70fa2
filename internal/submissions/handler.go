// Package submissions serves the public form endpoints.
package submissions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clc-ministry/forms-backend/internal/forms"
	"github.com/clc-ministry/forms-backend/internal/models"
	"github.com/clc-ministry/forms-backend/internal/records"
	"github.com/clc-ministry/forms-backend/pkg/response"
)

var (
	errEmptyBody   = errors.New("missing request body")
	errInvalidJSON = errors.New("invalid JSON body")
)

// Handler handles form submission endpoints.
type Handler struct {
	store       records.Store
	collections records.Collections
	logger      *zap.Logger

	newID func() string
	now   func() time.Time
}

// NewHandler creates a submissions handler.
func NewHandler(store records.Store, collections records.Collections, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:       store,
		collections: collections,
		logger:      logger,
		newID:       uuid.NewString,
		now:         time.Now,
	}
}

// Submit returns the POST handler for one form kind, e.g. POST /workshop.
func (h *Handler) Submit(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.GetRawData()
		if err != nil {
			response.BadRequest(c, "Missing request body")
			return
		}
		payload, err := decodePayload(raw)
		switch {
		case errors.Is(err, errEmptyBody):
			response.BadRequest(c, "Missing request body")
			return
		case err != nil:
			response.BadRequest(c, "Invalid JSON body")
			return
		}

		id, err := h.Create(c.Request.Context(), kind, payload)
		if err != nil {
			if verr, ok := forms.AsValidationError(err); ok {
				response.Invalid(c, verr.Message(), verr.Missing, verr.Details())
				return
			}
			h.logger.Error("submission failed", zap.Error(err), zap.String("kind", string(kind)))
			response.Internal(c, "Server error")
			return
		}
		response.OK(c, gin.H{kind.KeyAttr(): id})
	}
}

// Create validates payload, stamps a fresh identifier and creation time and
// writes the record once. Validation failures are returned as *forms.ValidationError.
func (h *Handler) Create(ctx context.Context, kind models.Kind, payload map[string]any) (string, error) {
	coll, ok := h.collections[kind]
	if !ok {
		return "", fmt.Errorf("no collection for %s", kind)
	}
	rec, err := forms.Validate(kind, payload)
	if err != nil {
		return "", err
	}
	id := h.newID()
	rec.Stamp(id, models.Timestamp(h.now()))
	if err := h.store.Create(ctx, coll, id, rec); err != nil {
		return "", fmt.Errorf("create %s: %w", kind, err)
	}
	h.logger.Info("submission stored", zap.String("kind", string(kind)), zap.String(kind.KeyAttr(), id))
	return id, nil
}

func decodePayload(raw []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errEmptyBody
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, errInvalidJSON
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errInvalidJSON
	}
	if payload == nil {
		return nil, errEmptyBody
	}
	return payload, nil
}
