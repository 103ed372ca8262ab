package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"realtime-service/internal/models"
)

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

// Published is one event captured by RealtimeRecorder.
type Published struct {
	Channel string
	Event   models.Event
}

// RealtimeRecorder records realtime fan-out instead of delivering it.
type RealtimeRecorder struct {
	mu     sync.Mutex
	events []Published
}

func (r *RealtimeRecorder) Publish(_ context.Context, channel string, event models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Published{Channel: channel, Event: event})
}

// On returns the events published to channel, oldest first.
func (r *RealtimeRecorder) On(channel string) []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Event
	for _, p := range r.events {
		if p.Channel == channel {
			out = append(out, p.Event)
		}
	}
	return out
}

func (r *RealtimeRecorder) All() []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Published, len(r.events))
	copy(out, r.events)
	return out
}
