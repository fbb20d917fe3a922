package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"learnhub/internal/authz"
	"learnhub/internal/domain"
	"learnhub/internal/pkg/response"
)

const accessDeniedMessage = "Access denied: you do not have permission to access this resource"

// RequireRoles allows the request when the caller holds any of roles. An
// empty list allows everyone. A denied request has its body drained before
// the 403 is written.
func RequireRoles(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(roles) == 0 {
			c.Next()
			return
		}

		if _, ok := UserID(c); !ok {
			authz.DrainBody(c.Request.Body, authz.DrainTimeout)
			response.CustomError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}

		if !authz.Allowed(roles, Roles(c)) {
			authz.DrainBody(c.Request.Body, authz.DrainTimeout)
			response.CustomError(c, http.StatusForbidden, "FORBIDDEN", accessDeniedMessage)
			return
		}

		c.Next()
	}
}

// RequirePolicy applies the roles registered for op in p.
func RequirePolicy(p authz.Policy, op string) gin.HandlerFunc {
	return RequireRoles(p.Roles(op)...)
}
