package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"realtime-service/internal/models"
)

// ChatRepository abstracts chat room persistence.
type ChatRepository interface {
	// GetOrCreateRoom returns the single room of the unordered pair, creating
	// it when absent. created reports whether this call inserted it.
	GetOrCreateRoom(ctx context.Context, userA, userB int64) (room models.ChatRoom, created bool, err error)
	GetRoom(ctx context.Context, roomID int64) (models.ChatRoom, error)
	ListRooms(ctx context.Context, userID int64) ([]models.RoomSummary, error)
}

const roomColumns = `id, user1_id, user2_id, created_at, last_activity_at`

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

func (r *ChatRepo) GetOrCreateRoom(ctx context.Context, userA, userB int64) (models.ChatRoom, bool, error) {
	user1, user2 := models.OrderedPair(userA, userB)

	var room models.ChatRoom
	err := r.db.GetContext(ctx, &room, `INSERT INTO chat_rooms (user1_id, user2_id) VALUES ($1, $2)
        ON CONFLICT (user1_id, user2_id) DO NOTHING
        RETURNING `+roomColumns, user1, user2)
	if err == nil {
		return room, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.ChatRoom{}, false, err
	}

	// Someone else created the room first.
	err = r.db.GetContext(ctx, &room, `SELECT `+roomColumns+` FROM chat_rooms WHERE user1_id=$1 AND user2_id=$2`, user1, user2)
	if err != nil {
		return models.ChatRoom{}, false, notFound(err)
	}
	return room, false, nil
}

// GetRoom fetches a room by id.
func (r *ChatRepo) GetRoom(ctx context.Context, roomID int64) (models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.db.GetContext(ctx, &room, `SELECT `+roomColumns+` FROM chat_rooms WHERE id=$1`, roomID)
	if err != nil {
		return models.ChatRoom{}, notFound(err)
	}
	return room, nil
}

type roomSummaryRow struct {
	models.ChatRoom
	LastMessage string `db:"last_message"`
	UnreadCount int    `db:"unread_count"`
}

// ListRooms returns the user's rooms, most recently active first, with the
// number of messages the user has not read yet.
func (r *ChatRepo) ListRooms(ctx context.Context, userID int64) ([]models.RoomSummary, error) {
	query := `SELECT r.id, r.user1_id, r.user2_id, r.created_at, r.last_activity_at,
            COALESCE((SELECT m.content FROM messages m WHERE m.room_id = r.id
                ORDER BY m.created_at DESC, m.id DESC LIMIT 1), '') AS last_message,
            (SELECT COUNT(*) FROM messages m WHERE m.room_id = r.id
                AND m.is_read = FALSE AND m.sender_id <> $1) AS unread_count
        FROM chat_rooms r
        WHERE r.user1_id=$1 OR r.user2_id=$1
        ORDER BY r.last_activity_at DESC, r.id DESC`

	var rows []roomSummaryRow
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}
	result := make([]models.RoomSummary, 0, len(rows))
	for _, row := range rows {
		result = append(result, models.RoomSummary{
			RoomID:         row.ID,
			FriendID:       row.Counterpart(userID),
			LastMessage:    row.LastMessage,
			UnreadCount:    row.UnreadCount,
			LastActivityAt: row.LastActivityAt,
		})
	}
	return result, nil
}
