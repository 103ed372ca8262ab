package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"realtime-service/internal/middleware"
	"realtime-service/internal/telemetry"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

// audit records a user action on the logs exchange. A nil emitter is a no-op.
func audit(c *gin.Context, emitter *telemetry.AuditEmitter, text string) {
	emitter.Emit(c.Request.Context(), "INFO", text, requestIDFromContext(c), middleware.Identity(c).UserID)
}
