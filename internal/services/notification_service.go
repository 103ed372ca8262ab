package services

import (
	"context"
	"errors"

	"realtime-service/internal/models"
	"realtime-service/internal/repositories"
)

const (
	DefaultNotificationLimit = 50
	MaxNotificationLimit     = 500
)

// NotificationService is the per-recipient notification log.
type NotificationService struct {
	repo repositories.NotificationRepository
}

func NewNotificationService(repo repositories.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

// Create appends an unread notification. Self-addressed notifications are
// refused; callers are expected to skip them beforehand.
func (s *NotificationService) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	if n.SenderID != nil && *n.SenderID == n.RecipientID {
		return models.Notification{}, ErrSelfNotification
	}
	return s.repo.Create(ctx, n)
}

func (s *NotificationService) MarkRead(ctx context.Context, id, ownerID int64) error {
	err := s.repo.MarkRead(ctx, id, ownerID)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *NotificationService) MarkAllRead(ctx context.Context, ownerID int64) (int64, error) {
	return s.repo.MarkAllRead(ctx, ownerID)
}

func (s *NotificationService) UnreadCount(ctx context.Context, ownerID int64) (int, error) {
	return s.repo.UnreadCount(ctx, ownerID)
}

func (s *NotificationService) Recent(ctx context.Context, ownerID int64, limit int, unreadOnly bool) ([]models.Notification, error) {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}
	if limit > MaxNotificationLimit {
		limit = MaxNotificationLimit
	}
	return s.repo.Recent(ctx, ownerID, limit, unreadOnly)
}

func (s *NotificationService) DeleteMatching(ctx context.Context, recipientID, senderID int64, typ models.NotificationType, link string) (int64, error) {
	return s.repo.DeleteMatching(ctx, recipientID, senderID, typ, link)
}
