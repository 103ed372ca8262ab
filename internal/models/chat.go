package models

import "time"

// ChatRoom represents a private chat between exactly two users.
// User1ID is always the smaller id of the pair.
type ChatRoom struct {
	ID             int64     `db:"id" json:"id"`
	User1ID        int64     `db:"user1_id" json:"user1_id"`
	User2ID        int64     `db:"user2_id" json:"user2_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	LastActivityAt time.Time `db:"last_activity_at" json:"last_activity_at"`
}

// HasParticipant reports whether userID is one of the two room members.
func (r ChatRoom) HasParticipant(userID int64) bool {
	return r.User1ID == userID || r.User2ID == userID
}

// Counterpart returns the other participant of the room.
func (r ChatRoom) Counterpart(userID int64) int64 {
	if r.User1ID == userID {
		return r.User2ID
	}
	return r.User1ID
}

// RoomSummary provides API-friendly view of a chat room for a user.
type RoomSummary struct {
	RoomID         int64     `db:"id" json:"chat_id"`
	FriendID       int64     `json:"friend_id"`
	LastMessage    string    `db:"last_message" json:"last_message,omitempty"`
	UnreadCount    int       `db:"unread_count" json:"unread_count"`
	LastActivityAt time.Time `db:"last_activity_at" json:"last_activity_at"`
}

// OrderedPair normalises an unordered pair of user ids.
func OrderedPair(a, b int64) (int64, int64) {
	if a < b {
		return a, b
	}
	return b, a
}
