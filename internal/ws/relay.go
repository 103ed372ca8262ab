package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"realtime-service/internal/observability"
)

const relayPublishTimeout = 2 * time.Second

// relayEnvelope is the message exchanged between instances on the relay
// channel. Payload is the encoded event, forwarded unchanged.
type relayEnvelope struct {
	Origin  string          `json:"origin"`
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

// RedisRelay shares published events with other instances through a Redis
// pub/sub channel. Each instance ignores the envelopes it sent itself.
type RedisRelay struct {
	client     *redis.Client
	channel    string
	instanceID string
	logger     *zap.Logger
}

func NewRedisRelay(client *redis.Client, channel string, logger *zap.Logger) *RedisRelay {
	return &RedisRelay{
		client:     client,
		channel:    channel,
		instanceID: newConnID(),
		logger:     logger,
	}
}

// InstanceID identifies this instance on the relay channel.
func (r *RedisRelay) InstanceID() string {
	return r.instanceID
}

// Forward publishes the event for other instances. It does not block the
// caller; failures are logged and counted.
func (r *RedisRelay) Forward(ctx context.Context, channel string, payload []byte) {
	data, err := json.Marshal(relayEnvelope{Origin: r.instanceID, Channel: channel, Payload: payload})
	if err != nil {
		observability.IncRelay("out", observability.StatusFailed)
		r.logger.Error("encode relay envelope failed", zap.String("channel", channel), zap.Error(err))
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), relayPublishTimeout)
	go func() {
		defer cancel()
		if err := r.client.Publish(pubCtx, r.channel, data).Err(); err != nil {
			observability.IncRelay("out", observability.StatusFailed)
			r.logger.Warn("relay publish failed", zap.String("channel", channel), zap.Error(err))
			return
		}
		observability.IncRelay("out", observability.StatusSuccess)
	}()
}

// Run subscribes to the relay channel and delivers foreign envelopes to
// local sessions until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context, dispatcher *Dispatcher) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	r.logger.Info("relay subscribed", zap.String("channel", r.channel), zap.String("instance_id", r.instanceID))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(dispatcher, []byte(msg.Payload))
		}
	}
}

func (r *RedisRelay) handle(dispatcher *Dispatcher, data []byte) {
	var env relayEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		observability.IncRelay("in", observability.StatusFailed)
		r.logger.Warn("relay envelope decode failed", zap.Error(err))
		return
	}
	if env.Origin == r.instanceID {
		return
	}
	if err := dispatcher.DeliverLocal(env.Channel, env.Payload); err != nil {
		observability.IncRelay("in", observability.StatusFailed)
		r.logger.Warn("relay event rejected", zap.String("channel", env.Channel), zap.Error(err))
		return
	}
	observability.IncRelay("in", observability.StatusSuccess)
}
