package models

type ActivityKind string

const (
	ActivityLike        ActivityKind = "like"
	ActivityUnlike      ActivityKind = "unlike"
	ActivityLikeComment ActivityKind = "like_comment"
	ActivityComment     ActivityKind = "comment"
	ActivityReply       ActivityKind = "reply"
	ActivitySave        ActivityKind = "save"
)

// Activity is reported by the content subsystem whenever a user acts on
// something owned by another user (a pin, a comment).
type Activity struct {
	Kind        ActivityKind `json:"kind"`
	ActorID     int64        `json:"actor_id"`
	ActorName   string       `json:"actor_name"`
	OwnerID     int64        `json:"owner_id"`
	TargetTitle string       `json:"target_title,omitempty"`
	BoardTitle  string       `json:"board_title,omitempty"`
	Text        string       `json:"text,omitempty"`
	Link        string       `json:"link"`
}
