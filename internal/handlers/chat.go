package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"realtime-service/internal/middleware"
	"realtime-service/internal/services"
)

// ChatHandler manages private chat endpoints. Messages posted here take the
// same publish path as messages sent over the chat socket.
type ChatHandler struct {
	conversations *services.ConversationService
	recentLimit   int
	logger        *zap.Logger
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(conversations *services.ConversationService, recentLimit int, logger *zap.Logger) *ChatHandler {
	if recentLimit <= 0 {
		recentLimit = services.DefaultRecentLimit
	}
	return &ChatHandler{conversations: conversations, recentLimit: recentLimit, logger: logger}
}

// ListChats returns the caller's rooms, most recently active first.
func (h *ChatHandler) ListChats(c *gin.Context) {
	rooms, err := h.conversations.ListRooms(c.Request.Context(), middleware.Identity(c).UserID)
	if err != nil {
		writeServiceError(c, h.logger, err, "failed to load chats")
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": rooms})
}

// StartChat creates or returns the room between the caller and a friend.
func (h *ChatHandler) StartChat(c *gin.Context) {
	var req struct {
		FriendID int64 `json:"friend_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.conversations.StartChat(c.Request.Context(), middleware.Identity(c).UserID, req.FriendID)
	if err != nil {
		writeServiceError(c, h.logger, err, "could not create chat")
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": room.ID})
}

// ShareWithFriend sends a message with a content link to a friend.
func (h *ChatHandler) ShareWithFriend(c *gin.Context) {
	var req struct {
		FriendID int64  `json:"friend_id" binding:"required"`
		Message  string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, msg, err := h.conversations.ShareWithFriend(c.Request.Context(), middleware.Identity(c), req.FriendID, req.Message)
	if err != nil {
		writeServiceError(c, h.logger, err, "failed to share")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"chat_id": room.ID, "message": msg})
}

// GetChatMessages returns the latest messages of a room the caller belongs to.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	chatID, ok := parseIDParam(c, "chat_id", "invalid chat id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.conversations.ParticipantRoom(ctx, chatID, middleware.Identity(c).UserID); err != nil {
		writeServiceError(c, h.logger, err, "failed to verify membership")
		return
	}

	msgs, err := h.conversations.RecentMessages(ctx, chatID, parseLimit(c, h.recentLimit))
	if err != nil {
		writeServiceError(c, h.logger, err, "failed to load messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostChatMessage stores a chat message and broadcasts it.
func (h *ChatHandler) PostChatMessage(c *gin.Context) {
	chatID, ok := parseIDParam(c, "chat_id", "invalid chat id")
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.conversations.PostMessage(c.Request.Context(), chatID, middleware.Identity(c), req.Content)
	if err != nil {
		writeServiceError(c, h.logger, err, "failed to store message")
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// MarkRead marks every message the caller received in the room as read.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	chatID, ok := parseIDParam(c, "chat_id", "invalid chat id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	me := middleware.Identity(c).UserID
	if _, err := h.conversations.ParticipantRoom(ctx, chatID, me); err != nil {
		writeServiceError(c, h.logger, err, "failed to verify membership")
		return
	}

	marked, err := h.conversations.MarkRead(ctx, chatID, me)
	if err != nil {
		writeServiceError(c, h.logger, err, "failed to mark chat read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": marked})
}

// Unread returns the caller's unread message total across rooms.
func (h *ChatHandler) Unread(c *gin.Context) {
	count, err := h.conversations.UnreadCountForUser(c.Request.Context(), middleware.Identity(c).UserID)
	if err != nil {
		writeServiceError(c, h.logger, err, "failed to count unread messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}
