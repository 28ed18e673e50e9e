package middleware

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/core/security"
)

// Scope resolves the caller's access scope once per request.
//
// Must run after Auth. Domain services read it through security.GetScope.
func Scope() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		c.Request = c.Request.WithContext(security.WithScope(ctx, security.NewAccessScope(ctx)))
		c.Next()
	}
}
