package ws

import (
	"sync"
)

// Subscriber is a live session that can be registered under a channel.
type Subscriber interface {
	ID() string
	// Deliver hands the event to the subscriber without blocking. It reports
	// false when the event was dropped.
	Deliver(d Delivery) bool
}

// Hub is the presence registry: it maps channel names to the sessions
// currently joined to them. Empty channels are pruned.
type Hub struct {
	channels map[string]map[Subscriber]struct{}
	mu       sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		channels: make(map[string]map[Subscriber]struct{}),
	}
}

// Join registers the subscriber under channel. Joining twice is a no-op.
func (h *Hub) Join(channel string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.channels[channel]
	if !ok {
		members = make(map[Subscriber]struct{})
		h.channels[channel] = members
	}
	members[sub] = struct{}{}
}

// Leave removes the subscriber from channel. Leaving a channel the
// subscriber is not in is a no-op.
func (h *Hub) Leave(channel string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.channels[channel]
	if !ok {
		return
	}
	delete(members, sub)
	if len(members) == 0 {
		delete(h.channels, channel)
	}
}

// Members returns a snapshot of the channel members. The slice is owned by
// the caller and unaffected by later joins or leaves.
func (h *Hub) Members(channel string) []Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := h.channels[channel]
	out := make([]Subscriber, 0, len(members))
	for sub := range members {
		out = append(out, sub)
	}
	return out
}

// ChannelCount reports the number of non-empty channels.
func (h *Hub) ChannelCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels)
}

// Snapshot returns member counts per channel, for diagnostics.
func (h *Hub) Snapshot() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]int, len(h.channels))
	for name, members := range h.channels {
		out[name] = len(members)
	}
	return out
}
