package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"realtime-service/internal/models"
	"realtime-service/internal/observability"
	"realtime-service/internal/services"
)

// ChatWebSocketHandler serves /ws/chats/:chat_id.
type ChatWebSocketHandler struct {
	endpoint      Endpoint
	conversations *services.ConversationService
}

// NewChatWebSocketHandler constructs a ChatWebSocketHandler.
func NewChatWebSocketHandler(endpoint Endpoint, conversations *services.ConversationService) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{endpoint: endpoint, conversations: conversations}
}

// Handle authenticates the caller, checks room membership, upgrades the
// connection and joins the room channel.
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	span, identity, ok := h.endpoint.handshake(c, KindChat)
	if !ok {
		return
	}

	room, err := h.conversations.ParticipantRoom(c.Request.Context(), chatID, identity.UserID)
	if err != nil {
		if !errors.Is(err, services.ErrNotParticipant) && !errors.Is(err, services.ErrNotFound) {
			h.endpoint.Logger.Error("load chat room failed", zap.Int64("room_id", chatID), zap.Error(err))
		}
		reject(c, span, http.StatusForbidden, "not authorized for chat")
		return
	}

	session := &chatSession{roomID: room.ID, conversations: h.conversations, logger: h.endpoint.Logger}
	h.endpoint.serve(c, span, KindChat, room.ID, identity, session, func(ctx context.Context, s *Session) {
		s.Join(models.ChatChannel(room.ID))
		session.markRead(ctx, s)
	})
}

// chatSession is the protocol of a chat room connection.
type chatSession struct {
	roomID        int64
	conversations *services.ConversationService
	logger        *zap.Logger
}

type chatFrame struct {
	Message *string `json:"message"`
}

func (h *chatSession) HandleFrame(ctx context.Context, s *Session, data []byte) {
	var frame chatFrame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Message == nil {
		observability.IncWSEvent(KindChat, "malformed_frame")
		return
	}

	_, err := h.conversations.PostMessage(ctx, h.roomID, s.Identity(), *frame.Message)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrNotParticipant), errors.Is(err, services.ErrNotFound):
		s.Close(err.Error())
	case errors.Is(err, services.ErrEmptyBody), errors.Is(err, services.ErrBodyTooLong):
		s.Reply(models.ErrorEvent{Error: err.Error()})
	default:
		h.logger.Error("post message failed", zap.Int64("room_id", h.roomID), zap.Error(err))
		s.Reply(models.ErrorEvent{Error: "failed to send message"})
	}
}

func (h *chatSession) HandleDelivery(ctx context.Context, s *Session, d Delivery) {
	switch ev := d.Event.(type) {
	case models.ChatMessageEvent:
		if ev.Message.SenderID != s.Identity().UserID {
			h.markRead(ctx, s)
		}
	case models.ErrorEvent:
	case models.UnreadCountEvent, models.NewNotificationEvent, models.SendNotificationEvent:
		h.logger.Debug("notification event on chat session", zap.String("event", ev.EventType()))
	default:
		h.logger.Warn("unhandled event", zap.String("event", d.Event.EventType()))
	}
}

func (h *chatSession) markRead(ctx context.Context, s *Session) {
	if _, err := h.conversations.MarkRead(ctx, h.roomID, s.Identity().UserID); err != nil {
		h.logger.Warn("mark chat read failed", zap.Int64("room_id", h.roomID), zap.Error(err))
	}
}
