package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"learnhub/internal/domain"
	"learnhub/internal/pkg/jwt"
	"learnhub/internal/pkg/response"
)

const (
	ctxUserID = "user_id"
	ctxEmail  = "email"
	ctxRoles  = "roles"
)

type TokenVerifier interface {
	Verify(token string) (*jwt.Claims, error)
}

// JWTAuth requires a valid bearer access token and stores the caller's
// identity in the gin context.
func JWTAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.CustomError(c, http.StatusUnauthorized, "AUTH_HEADER_MISSING", "Missing Authorization header")
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			response.CustomError(c, http.StatusUnauthorized, "INVALID_AUTH_FORMAT", "Authorization header must be: Bearer <token>")
			return
		}

		claims, err := verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			if errors.Is(err, jwt.ErrExpired) {
				response.CustomError(c, http.StatusUnauthorized, "TOKEN_EXPIRED", "Access token has expired")
				return
			}
			response.CustomError(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid access token")
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			response.CustomError(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid access token")
			return
		}

		roles := make(domain.Roles, 0, len(claims.Roles))
		for _, r := range claims.Roles {
			roles = append(roles, domain.Role(r))
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxEmail, claims.Email)
		c.Set(ctxRoles, roles)

		c.Next()
	}
}

// UserID returns the authenticated caller's id.
func UserID(c *gin.Context) (int64, bool) {
	id := c.GetInt64(ctxUserID)
	return id, id != 0
}

func Email(c *gin.Context) string {
	return c.GetString(ctxEmail)
}

// Roles returns the caller's roles from the verified access token.
func Roles(c *gin.Context) domain.Roles {
	v, ok := c.Get(ctxRoles)
	if !ok {
		return nil
	}
	roles, _ := v.(domain.Roles)
	return roles
}
