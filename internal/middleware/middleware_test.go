package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/clc-ministry/forms-backend/internal/auth"
)

type stubVerifier map[string]*auth.Identity

func (s stubVerifier) Verify(_ context.Context, token string) (*auth.Identity, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return nil, errors.New("nope")
}

func router(groups ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	v := stubVerifier{
		"admin-token":     {Subject: "a", Groups: []string{"admins"}},
		"volunteer-token": {Subject: "v", Groups: []string{"volunteers"}},
	}
	r := gin.New()
	r.GET("/x", Bearer(v), RequireGroup(groups...), func(c *gin.Context) {
		id, _ := IdentityFrom(c)
		c.String(http.StatusOK, id.Subject)
	})
	return r
}

func get(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBearer(t *testing.T) {
	r := router()

	assert.Equal(t, http.StatusUnauthorized, get(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "Bearer ").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "Bearer unknown").Code)

	w := get(r, "Bearer volunteer-token")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "v", w.Body.String())

	assert.Equal(t, http.StatusOK, get(r, "bearer admin-token").Code)
}

func TestRequireGroup(t *testing.T) {
	r := router("admins")

	assert.Equal(t, http.StatusOK, get(r, "Bearer admin-token").Code)
	w := get(r, "Bearer volunteer-token")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"ok":false,"message":"Forbidden"}`, w.Body.String())
}

func TestCORSAllowList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS("https://clc.church, http://localhost:5173"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://clc.church")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://clc.church", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
