package rbac

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"voice-campaigns/internal/auth"
)

// RequireOrganization enforces the multi-tenant invariant: organization_id must exist in context.
func RequireOrganization() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := auth.OrganizationID(c.Request.Context()); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "organization_id required"})
			return
		}
		c.Next()
	}
}

// RequireAnyRole allows access if the caller has any of the provided roles.
// super_admin bypasses the check; hidden roles are denied unless listed explicitly.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		if IsSuperAdmin(role) {
			c.Next()
			return
		}
		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// CanAccessOrganization reports whether the caller may act on organizationID.
// Callers are bound to their token's organization; super_admin may act on any.
func CanAccessOrganization(ctx context.Context, organizationID string) bool {
	id, err := auth.IdentityFrom(ctx)
	if err != nil || organizationID == "" {
		return false
	}
	return IsSuperAdmin(id.Role) || id.OrganizationID == organizationID
}
