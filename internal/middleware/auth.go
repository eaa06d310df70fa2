package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clc-ministry/forms-backend/internal/auth"
	"github.com/clc-ministry/forms-backend/pkg/response"
)

// ContextIdentity is the key for the authenticated *auth.Identity in gin context.
const ContextIdentity = "identity"

// Bearer returns a middleware that requires a valid bearer token of either kind
// (identity or access) and stores the caller's identity in context.
func Bearer(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "Unauthorized")
			c.Abort()
			return
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			response.Unauthorized(c, "Unauthorized")
			c.Abort()
			return
		}
		id, err := verifier.Verify(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			response.Unauthorized(c, "Unauthorized")
			c.Abort()
			return
		}
		c.Set(ContextIdentity, id)
		c.Next()
	}
}

// IdentityFrom returns the identity stored by Bearer.
func IdentityFrom(c *gin.Context) (*auth.Identity, bool) {
	v, ok := c.Get(ContextIdentity)
	if !ok {
		return nil, false
	}
	id, ok := v.(*auth.Identity)
	return id, ok
}
