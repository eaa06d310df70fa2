// Package admin serves the authenticated list and mutation endpoints over stored records.
package admin

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clc-ministry/forms-backend/internal/middleware"
	"github.com/clc-ministry/forms-backend/internal/models"
	"github.com/clc-ministry/forms-backend/internal/records"
	"github.com/clc-ministry/forms-backend/pkg/response"
)

// Admin methods selected with ?method=.
const (
	MethodList       = "list"
	MethodApprove    = "approve"
	MethodAttendance = "attendance"
	MethodDelete     = "delete"
)

var errBadBody = errors.New("invalid JSON body")

type collection struct {
	kind    models.Kind
	coll    records.Collection
	methods map[string]bool
}

// Handler handles admin HTTP endpoints.
type Handler struct {
	store       records.Store
	collections map[string]collection
	logger      *zap.Logger
	now         func() time.Time
}

// NewHandler creates an admin handler. Collections are addressed as
// /admin/workshop and /admin/orders.
func NewHandler(store records.Store, colls records.Collections, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store: store,
		collections: map[string]collection{
			models.KindWorkshop.Collection(): {
				kind:    models.KindWorkshop,
				coll:    colls[models.KindWorkshop],
				methods: map[string]bool{MethodList: true, MethodAttendance: true, MethodDelete: true},
			},
			models.KindOrder.Collection(): {
				kind:    models.KindOrder,
				coll:    colls[models.KindOrder],
				methods: map[string]bool{MethodList: true, MethodApprove: true, MethodDelete: true},
			},
		},
		logger: logger,
		now:    time.Now,
	}
}

// Dispatch handles /admin/:collection. GET without a method lists and DELETE
// deletes; otherwise
// ?method=list|approve|attendance|delete selects the operation.
func (h *Handler) Dispatch(c *gin.Context) {
	col, ok := h.collections[c.Param("collection")]
	if !ok {
		response.NotFound(c, "Not found")
		return
	}
	method := strings.ToLower(strings.TrimSpace(c.Query("method")))
	if method == "" {
		switch c.Request.Method {
		case http.MethodGet:
			method = MethodList
		case http.MethodDelete:
			method = MethodDelete
		default:
			response.BadRequest(c, "Missing method")
			return
		}
	}
	h.run(c, col, method)
}

// Method returns a handler bound to a fixed collection and method, for the
// routes kept from the original deployment (GET /workshop, POST /workshop/attendance).
func (h *Handler) Method(name, method string) gin.HandlerFunc {
	return func(c *gin.Context) {
		col, ok := h.collections[name]
		if !ok {
			response.NotFound(c, "Not found")
			return
		}
		h.run(c, col, method)
	}
}

func (h *Handler) run(c *gin.Context, col collection, method string) {
	if !col.methods[method] {
		response.BadRequest(c, "Unsupported method")
		return
	}
	switch method {
	case MethodList:
		h.list(c, col)
	case MethodApprove:
		h.approve(c, col)
	case MethodAttendance:
		h.attendance(c, col)
	case MethodDelete:
		h.delete(c, col)
	}
}

func (h *Handler) list(c *gin.Context, col collection) {
	items, err := h.store.Scan(c.Request.Context(), col.coll)
	if err != nil {
		h.fail(c, "list", col, "", err)
		return
	}
	records.SortNewestFirst(items)
	response.OK(c, gin.H{"items": items})
}

func (h *Handler) approve(c *gin.Context, col collection) {
	_, id, ok := h.target(c, col)
	if !ok {
		return
	}
	fields := records.Document{
		"status":    models.OrderStatusApproved,
		"updatedAt": models.Timestamp(h.now()),
	}
	if err := h.store.Update(c.Request.Context(), col.coll, id, fields); err != nil {
		h.fail(c, MethodApprove, col, id, err)
		return
	}
	h.audit(c, MethodApprove, col, id)
	response.OK(c, gin.H{col.coll.KeyAttr: id, "status": models.OrderStatusApproved})
}

func (h *Handler) attendance(c *gin.Context, col collection) {
	body, id, ok := h.target(c, col)
	if !ok {
		return
	}
	present, err := presentFlag(c, body)
	if err != nil {
		response.BadRequest(c, "Invalid present")
		return
	}
	fields := records.Document{
		"present":   present,
		"updatedAt": models.Timestamp(h.now()),
	}
	if err := h.store.Update(c.Request.Context(), col.coll, id, fields); err != nil {
		h.fail(c, MethodAttendance, col, id, err)
		return
	}
	h.audit(c, MethodAttendance, col, id)
	response.OK(c, gin.H{col.coll.KeyAttr: id, "present": present})
}

func (h *Handler) delete(c *gin.Context, col collection) {
	_, id, ok := h.target(c, col)
	if !ok {
		return
	}
	existed, err := h.store.Delete(c.Request.Context(), col.coll, id)
	if err != nil {
		h.fail(c, MethodDelete, col, id, err)
		return
	}
	h.audit(c, MethodDelete, col, id)
	response.OK(c, gin.H{col.coll.KeyAttr: id, "deleted": existed})
}

// target reads the optional JSON body and the record identifier, taken from the
// query string first and then the body, under the key attribute or "id".
func (h *Handler) target(c *gin.Context, col collection) (map[string]any, string, bool) {
	body, err := readBody(c)
	if err != nil {
		response.BadRequest(c, "Invalid JSON body")
		return nil, "", false
	}
	key := col.coll.KeyAttr
	id := strings.TrimSpace(c.Query(key))
	if id == "" {
		id = strings.TrimSpace(c.Query("id"))
	}
	if id == "" {
		for _, k := range []string{key, "id"} {
			if s, ok := body[k].(string); ok && strings.TrimSpace(s) != "" {
				id = strings.TrimSpace(s)
				break
			}
		}
	}
	if id == "" {
		response.BadRequest(c, "Missing "+key)
		return nil, "", false
	}
	return body, id, true
}

func readBody(c *gin.Context) (map[string]any, error) {
	raw, err := c.GetRawData()
	if err != nil {
		return nil, errBadBody
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, errBadBody
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, nil
}

// presentFlag reads "present" from the body (boolean) or the query string; absent means false.
func presentFlag(c *gin.Context, body map[string]any) (bool, error) {
	if v, ok := body["present"]; ok && v != nil {
		b, ok := v.(bool)
		if !ok {
			return false, errBadBody
		}
		return b, nil
	}
	if q := c.Query("present"); q != "" {
		return strconv.ParseBool(q)
	}
	return false, nil
}

func (h *Handler) fail(c *gin.Context, op string, col collection, id string, err error) {
	if errors.Is(err, records.ErrNotFound) {
		h.logger.Info("admin target not found", zap.String("op", op), zap.String("table", col.coll.Table), zap.String("id", id))
		response.NotFound(c, "Not found")
		return
	}
	h.logger.Error("admin operation failed", zap.String("op", op), zap.String("table", col.coll.Table),
		zap.String("id", id), zap.Error(err))
	response.Internal(c, "Server error")
}

func (h *Handler) audit(c *gin.Context, op string, col collection, id string) {
	who := ""
	if ident, ok := middleware.IdentityFrom(c); ok {
		who = ident.Username
	}
	h.logger.Info("admin mutation", zap.String("op", op), zap.String("kind", string(col.kind)),
		zap.String("id", id), zap.String("admin", who))
}
