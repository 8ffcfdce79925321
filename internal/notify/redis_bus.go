package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/barforge/sessionengine/internal/storage"
	"github.com/barforge/sessionengine/pkg/logger"
)

const (
	barAppendedStream       = "sessionengine.bar_appended"
	indicatorsUpdatedStream = "sessionengine.indicators_updated"
)

// RedisBus is a Bus backed by Redis Streams, grounded on the
// XADD/XREADGROUP batching-and-ack shape of the teacher's stream
// publisher/consumer pair. Unlike those, each publish is a single XADD
// (bar/indicator events are latency-sensitive and already arrive one at a
// time from the coordinator) but consumption still goes through a
// consumer group so multiple subscribers never duplicate delivery within
// a group.
type RedisBus struct {
	redis storage.RedisClient
}

// NewRedisBus wraps an existing Redis client as a Bus.
func NewRedisBus(redis storage.RedisClient) *RedisBus {
	return &RedisBus{redis: redis}
}

func (b *RedisBus) PublishBarAppended(ctx context.Context, evt BarAppendedEvent) error {
	return b.publish(ctx, barAppendedStream, evt)
}

func (b *RedisBus) PublishIndicatorsUpdated(ctx context.Context, evt IndicatorsUpdatedEvent) error {
	return b.publish(ctx, indicatorsUpdatedStream, evt)
}

func (b *RedisBus) publish(ctx context.Context, stream string, evt interface{}) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("notify: marshaling event for %q: %w", stream, err)
	}
	if err := b.redis.PublishToStream(ctx, stream, "event", string(payload)); err != nil {
		return fmt.Errorf("notify: publishing to %q: %w", stream, err)
	}
	return nil
}

func (b *RedisBus) SubscribeBarAppended(ctx context.Context, group, consumer string) (<-chan BarAppendedEvent, error) {
	raw, err := b.redis.ConsumeFromStream(ctx, barAppendedStream, group, consumer)
	if err != nil {
		return nil, fmt.Errorf("notify: subscribing to %q: %w", barAppendedStream, err)
	}

	out := make(chan BarAppendedEvent, channelBufferSize)
	go func() {
		defer close(out)
		for msg := range raw {
			var evt BarAppendedEvent
			payload, _ := msg.Values["event"].(string)
			if err := json.Unmarshal([]byte(payload), &evt); err != nil {
				logger.Warn("notify: dropping malformed bar-appended message",
					logger.String("message_id", msg.ID), logger.ErrorField(err))
				continue
			}
			select {
			case out <- evt:
				_ = b.redis.AcknowledgeMessage(ctx, barAppendedStream, group, msg.ID)
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *RedisBus) SubscribeIndicatorsUpdated(ctx context.Context, group, consumer string) (<-chan IndicatorsUpdatedEvent, error) {
	raw, err := b.redis.ConsumeFromStream(ctx, indicatorsUpdatedStream, group, consumer)
	if err != nil {
		return nil, fmt.Errorf("notify: subscribing to %q: %w", indicatorsUpdatedStream, err)
	}

	out := make(chan IndicatorsUpdatedEvent, channelBufferSize)
	go func() {
		defer close(out)
		for msg := range raw {
			var evt IndicatorsUpdatedEvent
			payload, _ := msg.Values["event"].(string)
			if err := json.Unmarshal([]byte(payload), &evt); err != nil {
				logger.Warn("notify: dropping malformed indicators-updated message",
					logger.String("message_id", msg.ID), logger.ErrorField(err))
				continue
			}
			select {
			case out <- evt:
				_ = b.redis.AcknowledgeMessage(ctx, indicatorsUpdatedStream, group, msg.ID)
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
