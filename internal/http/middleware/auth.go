package middleware

import (
	"net/http"
	"slices"
	"strings"

	"busbooking/internal/domain"

	"github.com/gin-gonic/gin"
)

const authKey = "auth"

// TokenParser turns a bearer token into the caller identity.
type TokenParser interface {
	ParseToken(raw string) (domain.RequestContext, error)
}

// Auth reads an optional bearer token. Requests without one pass through
// anonymously; a malformed or expired token is rejected.
func Auth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			c.Next()
			return
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			abortAuth(c, http.StatusUnauthorized, "authorization header must be a bearer token")
			return
		}
		rc, err := parser.ParseToken(strings.TrimSpace(raw))
		if err != nil {
			abortAuth(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		c.Set(authKey, rc)
		c.Next()
	}
}

// RequireRoles admits authenticated callers holding one of roles.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc, ok := GetAuth(c)
		if !ok {
			abortAuth(c, http.StatusUnauthorized, "authentication required")
			return
		}
		if !slices.Contains(roles, rc.Role) {
			abortAuth(c, http.StatusForbidden, "insufficient role")
			return
		}
		c.Next()
	}
}

// GetAuth returns the caller identity set by Auth.
func GetAuth(c *gin.Context) (domain.RequestContext, bool) {
	v, ok := c.Get(authKey)
	if !ok {
		return domain.RequestContext{}, false
	}
	rc, ok := v.(domain.RequestContext)
	return rc, ok
}

func abortAuth(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":      message,
		"code":       "unauthorized",
		"request_id": GetRequestID(c),
	})
}
