package models

import "time"

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
	FriendshipRejected FriendshipStatus = "rejected"
	FriendshipBlocked  FriendshipStatus = "blocked"
)

// Friendship is the single relationship row kept for an unordered pair of users.
type Friendship struct {
	ID          int64            `db:"id" json:"id"`
	RequesterID int64            `db:"requester_id" json:"requester_id"`
	RecipientID int64            `db:"recipient_id" json:"recipient_id"`
	Status      FriendshipStatus `db:"status" json:"status"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// Involves reports whether userID is either side of the relationship.
func (f Friendship) Involves(userID int64) bool {
	return f.RequesterID == userID || f.RecipientID == userID
}

// Counterpart returns the other side of the relationship.
func (f Friendship) Counterpart(userID int64) int64 {
	if f.RequesterID == userID {
		return f.RecipientID
	}
	return f.RequesterID
}
