package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"realtime-service/internal/models"
)

type relayRecorder struct {
	forwarded []string
}

func (r *relayRecorder) Forward(_ context.Context, channel string, _ []byte) {
	r.forwarded = append(r.forwarded, channel)
}

func TestDispatcherPublishSharesPayload(t *testing.T) {
	hub := NewHub()
	d := NewDispatcher(hub, zap.NewNop())
	relay := &relayRecorder{}
	d.SetRelay(relay)

	a := &fakeSubscriber{id: "a"}
	b := &fakeSubscriber{id: "b"}
	other := &fakeSubscriber{id: "other"}
	hub.Join("notify:1", a)
	hub.Join("notify:1", b)
	hub.Join("notify:2", other)

	d.Publish(context.Background(), "notify:1", models.UnreadCountEvent{Count: 3})

	require.Len(t, a.deliveries(), 1)
	require.Len(t, b.deliveries(), 1)
	assert.Empty(t, other.deliveries())
	assert.Equal(t, a.deliveries()[0].Payload, b.deliveries()[0].Payload)
	assert.JSONEq(t, `{"type":"unread_count","count":3}`, string(a.deliveries()[0].Payload))
	assert.Equal(t, []string{"notify:1"}, relay.forwarded)
}

func TestDispatcherDropsForFullSubscriberOnly(t *testing.T) {
	hub := NewHub()
	d := NewDispatcher(hub, zap.NewNop())
	slow := &fakeSubscriber{id: "slow", full: true}
	fast := &fakeSubscriber{id: "fast"}
	hub.Join("chat:9", slow)
	hub.Join("chat:9", fast)

	delivered := d.deliver(Delivery{Channel: "chat:9", Event: models.ErrorEvent{Error: "x"}, Payload: []byte(`{}`)})

	assert.Equal(t, 1, delivered)
	assert.Len(t, fast.deliveries(), 1)
	assert.Empty(t, slow.deliveries())
}

func TestDispatcherDeliverLocal(t *testing.T) {
	hub := NewHub()
	d := NewDispatcher(hub, zap.NewNop())
	relay := &relayRecorder{}
	d.SetRelay(relay)
	sub := &fakeSubscriber{id: "a"}
	hub.Join("chat:4", sub)

	payload, err := models.EncodeEvent(models.ChatMessageEvent{Message: models.ChatMessagePayload{ID: 1, Content: "hi", Sender: "alice", SenderID: 1}})
	require.NoError(t, err)
	require.NoError(t, d.DeliverLocal("chat:4", payload))

	got := sub.deliveries()
	require.Len(t, got, 1)
	ev, ok := got[0].Event.(models.ChatMessageEvent)
	require.True(t, ok)
	assert.Equal(t, "hi", ev.Message.Content)
	assert.Empty(t, relay.forwarded)

	assert.ErrorIs(t, d.DeliverLocal("chat:4", []byte(`{"type":"bogus"}`)), models.ErrUnknownEvent)
}

func TestSessionDeliverBoundedBuffer(t *testing.T) {
	s := newSession(nil, NewHub(), nil, models.Identity{UserID: 1}, ConnInfo{ConnID: "c1"}, SessionConfig{SendBuffer: 1}, zap.NewNop())

	assert.True(t, s.Deliver(Delivery{Payload: []byte(`{}`)}))
	assert.False(t, s.Deliver(Delivery{Payload: []byte(`{}`)}))
	assert.Equal(t, StateConnecting, s.State())
}

func TestRelayIgnoresOwnEnvelopes(t *testing.T) {
	hub := NewHub()
	d := NewDispatcher(hub, zap.NewNop())
	sub := &fakeSubscriber{id: "a"}
	hub.Join("notify:5", sub)
	relay := NewRedisRelay(nil, "realtime:relay", zap.NewNop())

	payload, err := models.EncodeEvent(models.UnreadCountEvent{Count: 1})
	require.NoError(t, err)

	own, err := json.Marshal(relayEnvelope{Origin: relay.InstanceID(), Channel: "notify:5", Payload: payload})
	require.NoError(t, err)
	relay.handle(d, own)
	assert.Empty(t, sub.deliveries())

	foreign, err := json.Marshal(relayEnvelope{Origin: "other-instance", Channel: "notify:5", Payload: payload})
	require.NoError(t, err)
	relay.handle(d, foreign)
	assert.Len(t, sub.deliveries(), 1)

	relay.handle(d, []byte("not json"))
	assert.Len(t, sub.deliveries(), 1)
}
