package notify

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/barforge/sessionengine/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingRedisClient wraps MockRedisClient, recording PublishToStream
// calls into StreamData the way PublishBatchToStream already does, so a
// single publish can be asserted on and fed back through ConsumeFromStream.
type recordingRedisClient struct {
	*storage.MockRedisClient
}

func newRecordingRedisClient() *recordingRedisClient {
	return &recordingRedisClient{MockRedisClient: storage.NewMockRedisClient()}
}

func (r *recordingRedisClient) PublishToStream(ctx context.Context, stream, key string, value interface{}) error {
	r.StreamData = append(r.StreamData, storage.StreamMessage{
		ID:     "1",
		Stream: stream,
		Values: map[string]interface{}{key: value},
	})
	return nil
}

func TestRedisBus_PublishBarAppended_WritesToStream(t *testing.T) {
	client := newRecordingRedisClient()
	bus := NewRedisBus(client)

	evt := BarAppendedEvent{Symbol: "AAPL"}
	require.NoError(t, bus.PublishBarAppended(context.Background(), evt))

	require.Len(t, client.StreamData, 1)
	assert.Equal(t, barAppendedStream, client.StreamData[0].Stream)

	var roundTripped BarAppendedEvent
	require.NoError(t, json.Unmarshal([]byte(client.StreamData[0].Values["event"].(string)), &roundTripped))
	assert.Equal(t, "AAPL", roundTripped.Symbol)
}

func TestRedisBus_SubscribeBarAppended_Delivers(t *testing.T) {
	client := newRecordingRedisClient()
	bus := NewRedisBus(client)

	payload, err := json.Marshal(BarAppendedEvent{Symbol: "MSFT"})
	require.NoError(t, err)
	client.StreamData = []storage.StreamMessage{
		{ID: "1", Stream: barAppendedStream, Values: map[string]interface{}{"event": string(payload)}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := bus.SubscribeBarAppended(ctx, "group", "consumer")
	require.NoError(t, err)

	got, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, "MSFT", got.Symbol)
}

func TestRedisBus_SubscribeSkipsMalformedMessages(t *testing.T) {
	client := newRecordingRedisClient()
	bus := NewRedisBus(client)

	client.StreamData = []storage.StreamMessage{
		{ID: "1", Stream: barAppendedStream, Values: map[string]interface{}{"event": "not json"}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := bus.SubscribeBarAppended(ctx, "group", "consumer")
	require.NoError(t, err)

	_, ok := <-ch
	assert.False(t, ok, "channel should close after the only message fails to decode")
}
