package models

import "time"

type NotificationType string

const (
	NotificationLike       NotificationType = "like"
	NotificationComment    NotificationType = "comment"
	NotificationSave       NotificationType = "save"
	NotificationFollow     NotificationType = "follow"
	NotificationNewMessage NotificationType = "new_message"
)

// Notification is an entry in a recipient's event log.
type Notification struct {
	ID          int64            `db:"id" json:"id"`
	RecipientID int64            `db:"recipient_id" json:"recipient_id"`
	SenderID    *int64           `db:"sender_id" json:"sender_id,omitempty"`
	SenderName  string           `db:"sender_name" json:"sender,omitempty"`
	Type        NotificationType `db:"type" json:"type"`
	Message     string           `db:"message" json:"message"`
	Link        string           `db:"link" json:"link"`
	IsRead      bool             `db:"is_read" json:"is_read"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

// Payload converts the notification into its websocket representation.
func (n Notification) Payload() NotificationPayload {
	return NotificationPayload{
		ID:        n.ID,
		Type:      n.Type,
		Message:   n.Message,
		Link:      n.Link,
		Sender:    n.SenderName,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}
