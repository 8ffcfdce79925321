package notify

import (
	"context"
	"testing"
	"time"

	"github.com/barforge/sessionengine/internal/interval"
	"github.com/barforge/sessionengine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelBus_PublishBarAppended_DeliversToSubscriber(t *testing.T) {
	bus := NewChannelBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.SubscribeBarAppended(ctx, "derived", "worker-1")
	require.NoError(t, err)

	evt := BarAppendedEvent{Symbol: "AAPL", Interval: interval.MustParse("1m"), Bar: models.Bar{Symbol: "AAPL"}}
	require.NoError(t, bus.PublishBarAppended(ctx, evt))

	select {
	case got := <-ch:
		assert.Equal(t, "AAPL", got.Symbol)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestChannelBus_PublishWithNoSubscribersIsANoop(t *testing.T) {
	bus := NewChannelBus()
	err := bus.PublishIndicatorsUpdated(context.Background(), IndicatorsUpdatedEvent{Symbol: "AAPL"})
	assert.NoError(t, err)
}

func TestChannelBus_UnsubscribeOnContextCancel(t *testing.T) {
	bus := NewChannelBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := bus.SubscribeBarAppended(ctx, "derived", "worker-1")
	require.NoError(t, err)

	cancel()
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after context cancellation")
}

func TestChannelBus_MultipleSubscribersEachReceive(t *testing.T) {
	bus := NewChannelBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch1, err := bus.SubscribeBarAppended(ctx, "derived", "worker-1")
	require.NoError(t, err)
	ch2, err := bus.SubscribeBarAppended(ctx, "quality", "worker-1")
	require.NoError(t, err)

	require.NoError(t, bus.PublishBarAppended(ctx, BarAppendedEvent{Symbol: "MSFT"}))

	for _, ch := range []<-chan BarAppendedEvent{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Equal(t, "MSFT", got.Symbol)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}
