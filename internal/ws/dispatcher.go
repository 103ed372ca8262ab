package ws

import (
	"context"

	"go.uber.org/zap"

	"realtime-service/internal/models"
	"realtime-service/internal/observability"
)

// Delivery is one event addressed to a session. Payload is the encoded
// event, shared by every recipient of the same publish.
type Delivery struct {
	Channel string
	Event   models.Event
	Payload []byte
}

// Relay forwards encoded events to other service instances.
type Relay interface {
	Forward(ctx context.Context, channel string, payload []byte)
}

// Dispatcher fans events out to the sessions joined to a channel. Publishing
// never blocks on a slow session and never fails.
type Dispatcher struct {
	hub    *Hub
	relay  Relay
	logger *zap.Logger
}

func NewDispatcher(hub *Hub, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{hub: hub, logger: logger}
}

// SetRelay enables cross-instance forwarding. It must be called before the
// dispatcher is used.
func (d *Dispatcher) SetRelay(r Relay) {
	d.relay = r
}

// Publish encodes the event once and hands it to every local member of the
// channel, then forwards it to the relay if one is configured.
func (d *Dispatcher) Publish(ctx context.Context, channel string, event models.Event) {
	payload, err := models.EncodeEvent(event)
	if err != nil {
		d.logger.Error("encode event failed", zap.String("channel", channel), zap.String("event", event.EventType()), zap.Error(err))
		return
	}
	d.deliver(Delivery{Channel: channel, Event: event, Payload: payload})
	if d.relay != nil {
		d.relay.Forward(ctx, channel, payload)
	}
}

// DeliverLocal hands an event received from another instance to local
// members only.
func (d *Dispatcher) DeliverLocal(channel string, payload []byte) error {
	event, err := models.DecodeEvent(payload)
	if err != nil {
		return err
	}
	d.deliver(Delivery{Channel: channel, Event: event, Payload: payload})
	return nil
}

func (d *Dispatcher) deliver(del Delivery) int {
	delivered := 0
	for _, member := range d.hub.Members(del.Channel) {
		if member.Deliver(del) {
			delivered++
			observability.IncFanout(del.Event.EventType(), "delivered")
			continue
		}
		observability.IncFanout(del.Event.EventType(), "dropped")
		d.logger.Debug("event dropped for session",
			zap.String("channel", del.Channel), zap.String("conn_id", member.ID()), zap.String("event", del.Event.EventType()))
	}
	return delivered
}
