package ws

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"realtime-service/internal/models"
	"realtime-service/internal/observability"
	"realtime-service/internal/services"
)

// NotifyWebSocketHandler serves /ws/notifications.
type NotifyWebSocketHandler struct {
	endpoint      Endpoint
	notifications *services.NotificationService
}

// NewNotifyWebSocketHandler constructs a NotifyWebSocketHandler.
func NewNotifyWebSocketHandler(endpoint Endpoint, notifications *services.NotificationService) *NotifyWebSocketHandler {
	return &NotifyWebSocketHandler{endpoint: endpoint, notifications: notifications}
}

// Handle upgrades the connection, joins the caller's notification channel
// and sends the current unread count.
func (h *NotifyWebSocketHandler) Handle(c *gin.Context) {
	span, identity, ok := h.endpoint.handshake(c, KindNotify)
	if !ok {
		return
	}

	session := &notifySession{notifications: h.notifications, logger: h.endpoint.Logger}
	h.endpoint.serve(c, span, KindNotify, identity.UserID, identity, session, func(ctx context.Context, s *Session) {
		s.Join(models.NotifyChannel(identity.UserID))
		session.replyCount(ctx, s)
	})
}

// notifySession is the protocol of a notification stream connection.
type notifySession struct {
	notifications *services.NotificationService
	logger        *zap.Logger
}

type notifyFrame struct {
	Action         string `json:"action"`
	NotificationID *int64 `json:"notification_id"`
}

func (h *notifySession) HandleFrame(ctx context.Context, s *Session, data []byte) {
	var frame notifyFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		observability.IncWSEvent(KindNotify, "malformed_frame")
		return
	}
	owner := s.Identity().UserID

	switch frame.Action {
	case "mark_read":
		if frame.NotificationID == nil {
			s.Reply(models.ErrorEvent{Error: "notification_id is required"})
			return
		}
		err := h.notifications.MarkRead(ctx, *frame.NotificationID, owner)
		if errors.Is(err, services.ErrNotFound) {
			s.Reply(models.ErrorEvent{Error: "notification not found"})
			return
		}
		if err != nil {
			h.logger.Error("mark notification read failed", zap.Error(err))
			return
		}
	case "mark_all_read":
		if _, err := h.notifications.MarkAllRead(ctx, owner); err != nil {
			h.logger.Error("mark all notifications read failed", zap.Error(err))
			return
		}
	default:
		return
	}
	h.replyCount(ctx, s)
}

func (h *notifySession) HandleDelivery(_ context.Context, _ *Session, d Delivery) {
	switch d.Event.(type) {
	case models.UnreadCountEvent, models.NewNotificationEvent, models.SendNotificationEvent, models.ErrorEvent:
	case models.ChatMessageEvent:
		h.logger.Debug("chat event on notification session")
	default:
		h.logger.Warn("unhandled event", zap.String("event", d.Event.EventType()))
	}
}

func (h *notifySession) replyCount(ctx context.Context, s *Session) {
	count, err := h.notifications.UnreadCount(ctx, s.Identity().UserID)
	if err != nil {
		h.logger.Error("unread notification count failed", zap.Error(err))
		return
	}
	s.Reply(models.UnreadCountEvent{Count: count})
}
