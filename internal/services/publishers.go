package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"realtime-service/internal/models"
	"realtime-service/internal/observability"
)

// RealtimePublisher fans an event out to the live sessions of a channel.
type RealtimePublisher interface {
	Publish(ctx context.Context, channel string, event models.Event)
}

// EventPublisher ships domain events to the message bus.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// Domain event routing keys.
const (
	EventFriendshipRequested = "friendship.requested"
	EventFriendshipAccepted  = "friendship.accepted"
	EventFriendshipRejected  = "friendship.rejected"
	EventFriendshipRemoved   = "friendship.removed"
	EventFriendshipBlocked   = "friendship.blocked"
	EventChatRoomCreated     = "chat.room.created"
	EventChatMessagePosted   = "chat.message.posted"
	EventNotificationCreated = "notification.created"
)

// DomainEvent is the envelope of everything sent to the events exchange.
type DomainEvent struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type noopRealtime struct{}

func (noopRealtime) Publish(context.Context, string, models.Event) {}

type eventLog struct {
	publisher EventPublisher
	logger    *zap.Logger
}

func (l eventLog) emit(ctx context.Context, routingKey string, payload any) {
	if l.publisher == nil {
		return
	}
	event := DomainEvent{Type: routingKey, OccurredAt: time.Now().UTC(), Payload: payload}
	if err := l.publisher.Publish(ctx, routingKey, event); err != nil {
		observability.IncAMQPPublishError()
		l.logger.Warn("failed to publish domain event", zap.String("routing_key", routingKey), zap.Error(err))
	}
}
