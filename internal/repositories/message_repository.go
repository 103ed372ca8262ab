package repositories

import (
	"context"

	"github.com/cockroachdb/cockroach-go/v2/crdb/crdbsqlx"
	"github.com/jmoiron/sqlx"

	"realtime-service/internal/models"
)

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	// Append stores a message and bumps the room activity. Appends to the
	// same room are serialized so history order matches commit order.
	Append(ctx context.Context, roomID, senderID int64, senderName, content string) (models.Message, error)
	Recent(ctx context.Context, roomID int64, limit int) ([]models.Message, error)
	MarkRoomRead(ctx context.Context, roomID, readerID int64) (int64, error)
	UnreadCountForUser(ctx context.Context, userID int64) (int, error)
}

const messageColumns = `id, room_id, sender_id, sender_name, content, is_read, created_at`

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) Append(ctx context.Context, roomID, senderID int64, senderName, content string) (models.Message, error) {
	var msg models.Message
	err := crdbsqlx.ExecuteTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		var locked int64
		if err := tx.GetContext(ctx, &locked, `SELECT id FROM chat_rooms WHERE id=$1 FOR UPDATE`, roomID); err != nil {
			return notFound(err)
		}
		// clock_timestamp is taken after the row lock so timestamps follow
		// the serialized order of appends.
		if err := tx.GetContext(ctx, &msg, `INSERT INTO messages (room_id, sender_id, sender_name, content, created_at)
            VALUES ($1, $2, $3, $4, clock_timestamp())
            RETURNING `+messageColumns, roomID, senderID, senderName, content); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE chat_rooms SET last_activity_at=$2 WHERE id=$1`, roomID, msg.CreatedAt)
		return err
	})
	if err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// Recent returns the newest limit messages of the room in chronological order.
func (r *MessageRepo) Recent(ctx context.Context, roomID int64, limit int) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM (
            SELECT ` + messageColumns + ` FROM messages WHERE room_id=$1
            ORDER BY created_at DESC, id DESC LIMIT $2
        ) recent
        ORDER BY created_at ASC, id ASC`
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, query, roomID, limit)
	return msgs, err
}

// MarkRoomRead flags every message in the room not sent by readerID as read.
func (r *MessageRepo) MarkRoomRead(ctx context.Context, roomID, readerID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_read = TRUE
        WHERE room_id=$1 AND sender_id<>$2 AND is_read = FALSE`, roomID, readerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UnreadCountForUser counts unread messages addressed to the user across all rooms.
func (r *MessageRepo) UnreadCountForUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages m
        JOIN chat_rooms r ON r.id = m.room_id
        WHERE (r.user1_id=$1 OR r.user2_id=$1) AND m.sender_id<>$1 AND m.is_read = FALSE`, userID)
	return count, err
}
