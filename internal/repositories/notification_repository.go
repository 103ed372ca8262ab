package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"realtime-service/internal/models"
)

// NotificationRepository persists per-user notification logs.
type NotificationRepository interface {
	Create(ctx context.Context, n models.Notification) (models.Notification, error)
	// MarkRead flags the notification as read. Notifications of other
	// recipients are reported as ErrNotFound.
	MarkRead(ctx context.Context, id, recipientID int64) error
	MarkAllRead(ctx context.Context, recipientID int64) (int64, error)
	UnreadCount(ctx context.Context, recipientID int64) (int, error)
	Recent(ctx context.Context, recipientID int64, limit int, unreadOnly bool) ([]models.Notification, error)
	DeleteMatching(ctx context.Context, recipientID, senderID int64, typ models.NotificationType, link string) (int64, error)
}

const notificationColumns = `id, recipient_id, sender_id, sender_name, type, message, link, is_read, created_at`

// NotificationRepo is a sqlx implementation of NotificationRepository.
type NotificationRepo struct {
	db *sqlx.DB
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

func (r *NotificationRepo) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	var out models.Notification
	err := r.db.GetContext(ctx, &out, `INSERT INTO notifications (recipient_id, sender_id, sender_name, type, message, link)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+notificationColumns,
		n.RecipientID, n.SenderID, n.SenderName, n.Type, n.Message, n.Link)
	return out, err
}

func (r *NotificationRepo) MarkRead(ctx context.Context, id, recipientID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id=$1 AND recipient_id=$2`, id, recipientID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context, recipientID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE recipient_id=$1 AND is_read = FALSE`, recipientID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *NotificationRepo) UnreadCount(ctx context.Context, recipientID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notifications WHERE recipient_id=$1 AND is_read = FALSE`, recipientID)
	return count, err
}

// Recent returns the newest notifications first.
func (r *NotificationRepo) Recent(ctx context.Context, recipientID int64, limit int, unreadOnly bool) ([]models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient_id=$1`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT $2`

	out := []models.Notification{}
	err := r.db.SelectContext(ctx, &out, query, recipientID, limit)
	return out, err
}

func (r *NotificationRepo) DeleteMatching(ctx context.Context, recipientID, senderID int64, typ models.NotificationType, link string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications
        WHERE recipient_id=$1 AND sender_id=$2 AND type=$3 AND link=$4`, recipientID, senderID, typ, link)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
