package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"realtime-service/internal/auth"
	"realtime-service/internal/models"
)

const (
	ContextUserID   = "userID"
	ContextUsername = "username"
)

// AuthMiddleware validates the bearer token and stores the caller identity
// in the gin context.
func AuthMiddleware(validator auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.TokenFromRequest(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		identity, err := validator.Validate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ContextUserID, identity.UserID)
		c.Set(ContextUsername, identity.Username)
		c.Next()
	}
}

// Identity returns the caller identity stored by AuthMiddleware.
func Identity(c *gin.Context) models.Identity {
	return models.Identity{
		UserID:   c.GetInt64(ContextUserID),
		Username: c.GetString(ContextUsername),
	}
}
