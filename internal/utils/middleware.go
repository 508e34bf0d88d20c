package utils

import (
	"errors"
	"net/http"
	"strings"

	"storefront/support-service/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const identityKey = "identity"

// AuthMiddleware verifies the bearer token and stores the identity in the gin
// context. With required=false a request without Authorization passes through
// anonymously; a present but bad token is still rejected.
func AuthMiddleware(verifier IdentityVerifier, required bool, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			if !required {
				c.Next()
				return
			}
			AbortWithError(c, http.StatusUnauthorized, "authorization header required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, http.StatusUnauthorized, "invalid authorization header")
			return
		}

		identity, err := verifier.Verify(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			if errors.Is(err, models.ErrAuthenticationRequired) {
				AbortWithError(c, http.StatusUnauthorized, "invalid token")
				return
			}
			logger.Error("Identity verification failed", zap.Error(err))
			AbortWithError(c, http.StatusInternalServerError, "could not verify credentials")
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequireRoles allows the request only for the listed roles.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok {
			AbortWithError(c, http.StatusUnauthorized, "authentication required")
			return
		}
		for _, allowed := range roles {
			if identity.Role == allowed {
				c.Next()
				return
			}
		}
		AbortWithError(c, http.StatusForbidden, "access denied")
	}
}

// IdentityFrom returns the identity stored by AuthMiddleware.
func IdentityFrom(c *gin.Context) (models.Identity, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return models.Identity{}, false
	}
	identity, ok := v.(models.Identity)
	return identity, ok && identity.Authenticated()
}

func AbortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, models.APIResponse{
		Data:       nil,
		Message:    message,
		Success:    false,
		StatusCode: status,
	})
}
