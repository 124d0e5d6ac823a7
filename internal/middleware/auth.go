package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"messaging-core/internal/identity"
)

const (
	UserIDKey   = "userID"
	UsernameKey = "username"
)

// Auth validates the Authorization header through the identity boundary
// and stores the caller's identity on the request context.
func Auth(verifier identity.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		user, err := verifier.VerifyCredential(c.Request.Context(), parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credential"})
			return
		}

		c.Set(UserIDKey, user.ID)
		c.Set(UsernameKey, user.Username)
		c.Next()
	}
}

// CallerFromContext returns the identity stored by Auth.
func CallerFromContext(c *gin.Context) identity.User {
	user := identity.User{}
	if v, ok := c.Get(UserIDKey); ok {
		if id, ok := v.(int64); ok {
			user.ID = id
		}
	}
	if v, ok := c.Get(UsernameKey); ok {
		if name, ok := v.(string); ok {
			user.Username = name
		}
	}
	return user
}
