package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenVerifier is kept small so tests can fake it easily.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

type AuthMiddleware struct {
	jwt TokenVerifier
}

func NewAuthMiddleware(jwt TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

const ctxUserIDKey = "auth.userID"

// tokenScheme is the Authorization scheme the API speaks: "Token <jwt>".
const tokenScheme = "Token "

// RequireAuth verifies the Authorization header and stashes the resolved
// user id on the context. Every failure is a 401 with the errors envelope
// the clients rely on: a message string plus a diagnostic error object.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, tokenScheme) {
			abortUnauthorized(c, "missing authorization token", gin.H{
				"name": "UnauthorizedError",
			})
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, tokenScheme))
		if raw == "" {
			abortUnauthorized(c, "missing authorization token", gin.H{
				"name": "UnauthorizedError",
			})
			return
		}

		userID, err := m.jwt.Verify(raw)
		if err != nil {
			abortUnauthorized(c, "invalid or expired token", gin.H{
				"name":   "UnauthorizedError",
				"reason": err.Error(),
			})
			return
		}

		c.Set(ctxUserIDKey, userID)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string, detail gin.H) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"errors": gin.H{
			"message": message,
			"error":   detail,
		},
	})
}

// UserIDFromContext spares handlers from knowing the magic context key.
func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}
