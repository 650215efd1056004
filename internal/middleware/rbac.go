// Package middleware (rbac.go) implements role- and permission-based authorization
// middleware.
//
// Roles and permissions are read from the identity snapshot AuthMiddleware placed
// in the request context, which in turn comes from the JWT claims. The gate never
// queries the database: an authorization decision costs no round-trip, at the
// price that a role change only lands when the user's next token is issued.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hiring-pipeline/hiring-pipeline/internal/auth"
)

// accessDenied rejects the request without naming the missing role or
// permission.
func accessDenied(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"error": "Insufficient permissions",
	})
}

// RequireAnyRole allows the request through when the authenticated user holds at
// least one of the named roles. An empty role list allows any authenticated
// user.
func RequireAnyRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rolesVal, exists := c.Get(ContextRoles)
		if !exists {
			accessDenied(c)
			return
		}

		userRoles, ok := rolesVal.([]string)
		if !ok {
			accessDenied(c)
			return
		}

		if !auth.HasAnyRole(userRoles, roles) {
			accessDenied(c)
			return
		}

		c.Next()
	}
}

// RequirePermission allows the request through when the authenticated user's
// resolved permissions contain the named permission.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		permsVal, exists := c.Get(ContextPermissions)
		if !exists {
			accessDenied(c)
			return
		}

		userPerms, ok := permsVal.([]string)
		if !ok {
			accessDenied(c)
			return
		}

		for _, p := range userPerms {
			if p == permission {
				c.Next()
				return
			}
		}

		accessDenied(c)
	}
}

// RequireAdmin is shorthand for the admin-only gate used on user, role, and
// audit-log management routes.
func RequireAdmin() gin.HandlerFunc {
	return RequireAnyRole(auth.RoleAdmin)
}
