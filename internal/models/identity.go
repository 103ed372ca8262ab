package models

// Identity is the authenticated caller of a request or socket session.
type Identity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}
