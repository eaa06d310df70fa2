package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/clc-ministry/forms-backend/pkg/response"
)

// RequireGroup returns a middleware that allows only callers in one of the given groups.
// With no groups it allows every authenticated caller.
func RequireGroup(groups ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			response.Unauthorized(c, "Unauthorized")
			c.Abort()
			return
		}
		if len(groups) == 0 {
			c.Next()
			return
		}
		for _, g := range groups {
			if id.InGroup(g) {
				c.Next()
				return
			}
		}
		response.Forbidden(c, "Forbidden")
		c.Abort()
	}
}
