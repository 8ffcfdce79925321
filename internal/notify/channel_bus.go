package notify

import (
	"context"
	"sync"

	"github.com/barforge/sessionengine/pkg/logger"
)

const channelBufferSize = 256

// ChannelBus is an in-process Bus backed by buffered Go channels. It has no
// external dependency, so the backtest composition root and tests can run a
// full session without a Redis instance.
type ChannelBus struct {
	mu              sync.Mutex
	barSubs         map[string]chan BarAppendedEvent
	indicatorSubs   map[string]chan IndicatorsUpdatedEvent
}

// NewChannelBus creates an empty ChannelBus.
func NewChannelBus() *ChannelBus {
	return &ChannelBus{
		barSubs:       make(map[string]chan BarAppendedEvent),
		indicatorSubs: make(map[string]chan IndicatorsUpdatedEvent),
	}
}

func subKey(group, consumer string) string {
	return group + "/" + consumer
}

func (b *ChannelBus) PublishBarAppended(ctx context.Context, evt BarAppendedEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, ch := range b.barSubs {
		select {
		case ch <- evt:
		default:
			logger.Warn("notify: bar-appended subscriber channel full, dropping event",
				logger.String("subscriber", key),
				logger.String("symbol", evt.Symbol),
			)
		}
	}
	return nil
}

func (b *ChannelBus) SubscribeBarAppended(ctx context.Context, group, consumer string) (<-chan BarAppendedEvent, error) {
	b.mu.Lock()
	ch := make(chan BarAppendedEvent, channelBufferSize)
	key := subKey(group, consumer)
	b.barSubs[key] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.barSubs, key)
		close(ch)
		b.mu.Unlock()
	}()

	return ch, nil
}

func (b *ChannelBus) PublishIndicatorsUpdated(ctx context.Context, evt IndicatorsUpdatedEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, ch := range b.indicatorSubs {
		select {
		case ch <- evt:
		default:
			logger.Warn("notify: indicators-updated subscriber channel full, dropping event",
				logger.String("subscriber", key),
				logger.String("symbol", evt.Symbol),
			)
		}
	}
	return nil
}

func (b *ChannelBus) SubscribeIndicatorsUpdated(ctx context.Context, group, consumer string) (<-chan IndicatorsUpdatedEvent, error) {
	b.mu.Lock()
	ch := make(chan IndicatorsUpdatedEvent, channelBufferSize)
	key := subKey(group, consumer)
	b.indicatorSubs[key] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.indicatorSubs, key)
		close(ch)
		b.mu.Unlock()
	}()

	return ch, nil
}
