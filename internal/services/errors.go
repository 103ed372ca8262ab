package services

import "errors"

var (
	ErrSelfRequest       = errors.New("cannot target yourself")
	ErrDuplicateRequest  = errors.New("a relationship already exists between these users")
	ErrNotAuthorized     = errors.New("not authorized")
	ErrRequestNotPending = errors.New("friend request is not pending")
	ErrNotFriends        = errors.New("you can only chat with friends")
	ErrEmptyBody         = errors.New("message body is empty")
	ErrBodyTooLong       = errors.New("message body is too long")
	ErrNotParticipant    = errors.New("user is not a participant of this chat")
	ErrSelfNotification  = errors.New("cannot notify yourself")
	ErrNotFound          = errors.New("not found")
	ErrInvalidActivity   = errors.New("invalid activity")
)
