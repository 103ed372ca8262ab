package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"realtime-service/internal/auth"
	"realtime-service/internal/middleware"
	"realtime-service/internal/models"
	"realtime-service/internal/telemetry"
	"realtime-service/internal/ws"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, signer *auth.JWTValidator, hub *ws.Hub, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", requestIDFromContext(c), middleware.Identity(c).UserID)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Issues a short-lived token for local testing of the socket endpoints.
	router.GET("/debug/token", func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
		if err != nil || userID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
			return
		}
		token, err := signer.Sign(models.Identity{UserID: userID, Username: c.Query("username")}, time.Hour)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	})

	router.GET("/debug/hub", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"channels": hub.Snapshot()})
	})
}
