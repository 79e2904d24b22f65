package gate

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/cerberus/internal/common"
	"github.com/gin-gonic/gin"
)

// Gin adapts the gate to a gin middleware. Every rejection gets the same
// 401 body so clients cannot tell which stage failed; only a store outage
// is reported as a 500.
func (g *Gate) Gin() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		path := c.Request.URL.Path

		claims, err := g.Authenticate(ctx, path, c.GetHeader(common.AuthorizationHeaderName))
		if err != nil {
			if errors.Is(err, common.ErrStoreUnavailable) {
				g.logger.Error(ctx, "request rejected", "path", path, "reason", reason(err), "error", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
				return
			}
			g.logger.Warn(ctx, "request rejected", "path", path, "reason", reason(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authentication required"})
			return
		}

		if claims != nil {
			c.Request = c.Request.WithContext(WithClaims(ctx, claims))
		}
		c.Next()
	}
}
