package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"realtime-service/internal/models"
	"realtime-service/internal/observability"
	"realtime-service/internal/services"
)

const sourceKafka = "kafka"

// Config selects the brokers, group and topic of the activity consumer.
type Config struct {
	Brokers []string
	GroupID string
	Topic   string
}

// ActivitySink applies one content activity record.
type ActivitySink interface {
	Activity(ctx context.Context, a models.Activity) error
}

// ActivityConsumer reads content activity from a Kafka topic as part of a
// consumer group and hands every record to the notification policy.
type ActivityConsumer struct {
	group  sarama.ConsumerGroup
	topics []string
	sink   ActivitySink
	logger *zap.Logger
	ready  chan struct{}

	newBackOff func() backoff.BackOff
}

func NewActivityConsumer(cfg Config, sink ActivitySink, logger *zap.Logger) (*ActivityConsumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Return.Errors = true
	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, config)
	if err != nil {
		return nil, err
	}
	return newActivityConsumer(group, []string{cfg.Topic}, sink, logger), nil
}

func newActivityConsumer(group sarama.ConsumerGroup, topics []string, sink ActivitySink, logger *zap.Logger) *ActivityConsumer {
	return &ActivityConsumer{
		group:  group,
		topics: topics,
		sink:   sink,
		logger: logger,
		ready:  make(chan struct{}),

		newBackOff: defaultBackOff,
	}
}

// defaultBackOff retries a failed record until the group session ends.
func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Run consumes until ctx is cancelled, rejoining the group after every
// rebalance.
func (c *ActivityConsumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.logger.Warn("kafka consumer error", zap.Error(err))
		}
	}()

	for {
		if err := c.group.Consume(ctx, c.topics, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.logger.Error("kafka consume failed", zap.Strings("topics", c.topics), zap.Error(err))
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Ready is closed once the first group session has been set up.
func (c *ActivityConsumer) Ready() <-chan struct{} {
	return c.ready
}

func (c *ActivityConsumer) Close() error {
	return c.group.Close()
}

func (c *ActivityConsumer) Setup(_ sarama.ConsumerGroupSession) error {
	select {
	case <-c.ready:
	default:
		close(c.ready)
	}
	c.logger.Info("kafka consumer joined group", zap.Strings("topics", c.topics))
	return nil
}

func (c *ActivityConsumer) Cleanup(_ sarama.ConsumerGroupSession) error {
	return nil
}

func (c *ActivityConsumer) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-sess.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := c.apply(sess.Context(), msg); err != nil {
				// Unmarked; the next session resumes from the committed offset.
				return nil
			}
			sess.MarkMessage(msg, "")
		}
	}
}

// apply retries HandleMessage until it succeeds or ctx is done. Records after
// a failing one are not read until it has been applied.
func (c *ActivityConsumer) apply(ctx context.Context, msg *sarama.ConsumerMessage) error {
	policy := backoff.WithContext(c.newBackOff(), ctx)
	return backoff.RetryNotify(func() error {
		return c.HandleMessage(ctx, msg)
	}, policy, func(err error, wait time.Duration) {
		c.logger.Warn("retrying activity",
			zap.Int32("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Duration("wait", wait), zap.Error(err))
	})
}

// HandleMessage applies one record. Undecodable and invalid records are
// skipped; an error is returned only when the record should be retried.
func (c *ActivityConsumer) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var activity models.Activity
	if err := json.Unmarshal(msg.Value, &activity); err != nil {
		observability.IncActivityConsumed(sourceKafka, "malformed")
		c.logger.Warn("skipping malformed activity",
			zap.String("topic", msg.Topic), zap.Int32("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Error(err))
		return nil
	}

	err := c.sink.Activity(ctx, activity)
	switch {
	case err == nil:
		observability.IncActivityConsumed(sourceKafka, observability.StatusSuccess)
		return nil
	case errors.Is(err, services.ErrInvalidActivity):
		observability.IncActivityConsumed(sourceKafka, "invalid")
		c.logger.Warn("skipping invalid activity", zap.Int64("offset", msg.Offset), zap.Error(err))
		return nil
	default:
		observability.IncActivityConsumed(sourceKafka, observability.StatusFailed)
		c.logger.Error("apply activity failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		return err
	}
}
