package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"realtime-service/internal/middleware"
	"realtime-service/internal/models"
	"realtime-service/internal/observability"
	"realtime-service/internal/services"
)

// ActivityHandler accepts content activity reported over HTTP. The actor is
// always the authenticated caller.
type ActivityHandler struct {
	notifier *services.Notifier
	logger   *zap.Logger
}

func NewActivityHandler(notifier *services.Notifier, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{notifier: notifier, logger: logger}
}

func (h *ActivityHandler) Report(c *gin.Context) {
	var activity models.Activity
	if err := c.ShouldBindJSON(&activity); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	caller := middleware.Identity(c)
	activity.ActorID = caller.UserID
	activity.ActorName = caller.Username

	if err := h.notifier.Activity(c.Request.Context(), activity); err != nil {
		observability.IncActivityConsumed("http", observability.StatusFailed)
		writeServiceError(c, h.logger, err, "failed to record activity")
		return
	}
	observability.IncActivityConsumed("http", observability.StatusSuccess)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
