package models

import "fmt"

// ChatChannel names the fan-out group of a chat room.
func ChatChannel(roomID int64) string {
	return fmt.Sprintf("chat:%d", roomID)
}

// NotifyChannel names the fan-out group of a user's notification stream.
func NotifyChannel(userID int64) string {
	return fmt.Sprintf("notify:%d", userID)
}
