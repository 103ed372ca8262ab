package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"realtime-service/internal/middleware"
	"realtime-service/internal/models"
	"realtime-service/internal/observability"
	"realtime-service/internal/services"
	"realtime-service/internal/telemetry"
)

// FriendsHandler exposes the friendship state machine.
type FriendsHandler struct {
	friends *services.FriendshipService
	audit   *telemetry.AuditEmitter
	logger  *zap.Logger
}

func NewFriendsHandler(friends *services.FriendshipService, audit *telemetry.AuditEmitter, logger *zap.Logger) *FriendsHandler {
	return &FriendsHandler{friends: friends, audit: audit, logger: logger}
}

// SendRequest creates a pending request from the caller.
func (h *FriendsHandler) SendRequest(c *gin.Context) {
	var req struct {
		ToUserID int64 `json:"to_user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f, err := h.friends.SendRequest(c.Request.Context(), middleware.Identity(c), req.ToUserID)
	record("request", err)
	if err != nil {
		writeServiceError(c, h.logger, err, "failed to send friend request")
		return
	}
	audit(c, h.audit, "friend request sent")
	c.JSON(http.StatusCreated, f)
}

// Accept moves a pending request addressed to the caller to accepted.
func (h *FriendsHandler) Accept(c *gin.Context) {
	h.decide(c, "accept", h.friends.Accept)
}

// Reject moves a pending request addressed to the caller to rejected.
func (h *FriendsHandler) Reject(c *gin.Context) {
	h.decide(c, "reject", h.friends.Reject)
}

type decision func(ctx context.Context, requestID int64, actor models.Identity) (models.Friendship, error)

func (h *FriendsHandler) decide(c *gin.Context, action string, apply decision) {
	requestID, ok := parseIDParam(c, "id", "invalid request id")
	if !ok {
		return
	}

	f, err := apply(c.Request.Context(), requestID, middleware.Identity(c))
	record(action, err)
	if err != nil {
		writeServiceError(c, h.logger, err, "failed to "+action+" friend request")
		return
	}
	audit(c, h.audit, "friend request "+string(f.Status))
	c.JSON(http.StatusOK, f)
}

func (h *FriendsHandler) Incoming(c *gin.Context) {
	requests, err := h.friends.PendingReceived(c.Request.Context(), middleware.Identity(c).UserID)
	if err != nil {
		writeServiceError(c, h.logger, err, "failed to load friend requests")
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

func (h *FriendsHandler) Outgoing(c *gin.Context) {
	requests, err := h.friends.PendingSent(c.Request.Context(), middleware.Identity(c).UserID)
	if err != nil {
		writeServiceError(c, h.logger, err, "failed to load friend requests")
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

// ListFriends returns the IDs of the caller's accepted friends.
func (h *FriendsHandler) ListFriends(c *gin.Context) {
	friends, err := h.friends.ListFriends(c.Request.Context(), middleware.Identity(c).UserID)
	if err != nil {
		writeServiceError(c, h.logger, err, "failed to load friends")
		return
	}
	if friends == nil {
		friends = []int64{}
	}
	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

// Remove deletes the relationship between the caller and :user_id.
func (h *FriendsHandler) Remove(c *gin.Context) {
	other, ok := parseIDParam(c, "user_id", "invalid user id")
	if !ok {
		return
	}

	err := h.friends.Remove(c.Request.Context(), middleware.Identity(c).UserID, other)
	record("remove", err)
	if err != nil {
		writeServiceError(c, h.logger, err, "failed to remove friend")
		return
	}
	audit(c, h.audit, "friendship removed")
	c.Status(http.StatusNoContent)
}

func (h *FriendsHandler) Block(c *gin.Context) {
	target, ok := parseIDParam(c, "user_id", "invalid user id")
	if !ok {
		return
	}

	f, err := h.friends.Block(c.Request.Context(), middleware.Identity(c).UserID, target)
	record("block", err)
	if err != nil {
		writeServiceError(c, h.logger, err, "failed to block user")
		return
	}
	audit(c, h.audit, "user blocked")
	c.JSON(http.StatusOK, f)
}

func record(action string, err error) {
	status := observability.StatusSuccess
	if err != nil {
		status = observability.StatusFailed
	}
	observability.IncFriendAction(action, status)
}
