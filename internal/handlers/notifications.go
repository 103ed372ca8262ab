package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"realtime-service/internal/middleware"
	"realtime-service/internal/services"
)

// NotificationHandler serves the caller's notification log. Read-state
// changes are pushed to the caller's open notification sessions.
type NotificationHandler struct {
	notifications *services.NotificationService
	notifier      *services.Notifier
	logger        *zap.Logger
}

func NewNotificationHandler(notifications *services.NotificationService, notifier *services.Notifier, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, notifier: notifier, logger: logger}
}

func (h *NotificationHandler) List(c *gin.Context) {
	unreadOnly := c.Query("unread_only") == "true"
	list, err := h.notifications.Recent(c.Request.Context(), middleware.Identity(c).UserID, parseLimit(c, services.DefaultNotificationLimit), unreadOnly)
	if err != nil {
		writeServiceError(c, h.logger, err, "failed to load notifications")
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

func (h *NotificationHandler) Unread(c *gin.Context) {
	count, err := h.notifications.UnreadCount(c.Request.Context(), middleware.Identity(c).UserID)
	if err != nil {
		writeServiceError(c, h.logger, err, "failed to count notifications")
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// MarkRead marks one of the caller's notifications as read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "invalid notification id")
	if !ok {
		return
	}

	me := middleware.Identity(c).UserID
	if err := h.notifications.MarkRead(c.Request.Context(), id, me); err != nil {
		writeServiceError(c, h.logger, err, "failed to mark notification read")
		return
	}
	h.notifier.PushUnreadCount(c.Request.Context(), me)
	c.Status(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	me := middleware.Identity(c).UserID
	marked, err := h.notifications.MarkAllRead(c.Request.Context(), me)
	if err != nil {
		writeServiceError(c, h.logger, err, "failed to mark notifications read")
		return
	}
	h.notifier.PushUnreadCount(c.Request.Context(), me)
	c.JSON(http.StatusOK, gin.H{"marked": marked})
}
