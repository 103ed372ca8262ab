package models

import "time"

// Message represents a chat message.
type Message struct {
	ID         int64     `db:"id" json:"id"`
	RoomID     int64     `db:"room_id" json:"chat_id"`
	SenderID   int64     `db:"sender_id" json:"sender_id"`
	SenderName string    `db:"sender_name" json:"sender"`
	Content    string    `db:"content" json:"content"`
	IsRead     bool      `db:"is_read" json:"is_read"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Payload converts the message into its websocket representation.
func (m Message) Payload() ChatMessagePayload {
	return ChatMessagePayload{
		ID:        m.ID,
		Content:   m.Content,
		Sender:    m.SenderName,
		SenderID:  m.SenderID,
		CreatedAt: m.CreatedAt,
	}
}
