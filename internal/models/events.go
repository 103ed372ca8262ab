package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Wire type tags of realtime events.
const (
	EventTypeChatMessage     = "message"
	EventTypeUnreadCount     = "unread_count"
	EventTypeNewNotification = "new_notification"
	EventTypeNewMessage      = "new_message"
	EventTypeError           = "error"
)

var ErrUnknownEvent = errors.New("unknown event type")

// Event is a realtime event pushed to websocket sessions. The set of
// implementations is closed; consumers switch over the concrete types.
type Event interface {
	EventType() string
	isEvent()
}

type ChatMessagePayload struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	SenderID  int64     `json:"sender_id"`
	CreatedAt time.Time `json:"created_at"`
}

type NotificationPayload struct {
	ID        int64            `json:"id"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	Link      string           `json:"link"`
	Sender    string           `json:"sender,omitempty"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

// ChatMessageEvent carries a freshly posted chat message to a room.
type ChatMessageEvent struct {
	Message ChatMessagePayload `json:"message"`
}

// UnreadCountEvent reports the current unread notification count.
type UnreadCountEvent struct {
	Count int `json:"count"`
}

// NewNotificationEvent carries a new notification and the updated count.
type NewNotificationEvent struct {
	Notification NotificationPayload `json:"notification"`
	Count        int                 `json:"count"`
}

// SendNotificationEvent tells a user that someone wrote to them.
// UnreadCount is the recipient's unread chat message total.
type SendNotificationEvent struct {
	Message     string `json:"message"`
	Sender      string `json:"sender"`
	Link        string `json:"link"`
	UnreadCount int    `json:"unread_count"`
}

// ErrorEvent is sent back to a single session when a frame is rejected.
type ErrorEvent struct {
	Error string `json:"error"`
}

func (ChatMessageEvent) EventType() string      { return EventTypeChatMessage }
func (UnreadCountEvent) EventType() string      { return EventTypeUnreadCount }
func (NewNotificationEvent) EventType() string  { return EventTypeNewNotification }
func (SendNotificationEvent) EventType() string { return EventTypeNewMessage }
func (ErrorEvent) EventType() string            { return EventTypeError }

func (ChatMessageEvent) isEvent()      {}
func (UnreadCountEvent) isEvent()      {}
func (NewNotificationEvent) isEvent()  {}
func (SendNotificationEvent) isEvent() {}
func (ErrorEvent) isEvent()            {}

// EncodeEvent renders the event as a JSON object whose "type" field is the
// event tag and whose remaining fields are the event body.
func EncodeEvent(ev Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	tag, _ := json.Marshal(ev.EventType())
	fields["type"] = tag
	return json.Marshal(fields)
}

// DecodeEvent parses a payload produced by EncodeEvent.
func DecodeEvent(data []byte) (Event, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	var ev Event
	switch head.Type {
	case EventTypeChatMessage:
		var e ChatMessageEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		ev = e
	case EventTypeUnreadCount:
		var e UnreadCountEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		ev = e
	case EventTypeNewNotification:
		var e NewNotificationEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		ev = e
	case EventTypeNewMessage:
		var e SendNotificationEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		ev = e
	case EventTypeError:
		var e ErrorEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		ev = e
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, head.Type)
	}
	return ev, nil
}
