package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	TenantHeader = "X-Tenant-ID"
	tenantKey    = "tenant_id"
)

// Tenant rejects requests that do not name a tenant and stores the id on the
// context for handlers.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := strings.TrimSpace(c.GetHeader(TenantHeader))
		if tenantID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing " + TenantHeader + " header"})
			return
		}
		c.Set(tenantKey, tenantID)
		c.Next()
	}
}

// TenantID returns the tenant set by Tenant.
func TenantID(c *gin.Context) string {
	return c.GetString(tenantKey)
}
