package liveprovider

import (
	"context"
	"testing"
	"time"

	"github.com/barforge/sessionengine/internal/interval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockProvider_SubscribeDeliversBars(t *testing.T) {
	p := NewMockProvider()
	require.NoError(t, p.Connect(context.Background()))

	ch, err := p.Subscribe(context.Background(), "AAPL", []interval.Interval{interval.MustParse("1s")})
	require.NoError(t, err)

	select {
	case bar := <-ch:
		assert.Equal(t, "AAPL", bar.Symbol)
		assert.Greater(t, bar.Close, 0.0)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a bar")
	}

	require.NoError(t, p.Close())
}

func TestMockProvider_SubscribeRequiresConnection(t *testing.T) {
	p := NewMockProvider()
	_, err := p.Subscribe(context.Background(), "AAPL", nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestMockProvider_SubscribeRejectsEmptySymbol(t *testing.T) {
	p := NewMockProvider()
	require.NoError(t, p.Connect(context.Background()))
	_, err := p.Subscribe(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrInvalidSymbol)
}

func TestMockProvider_RetryBarsSynthesizesWindow(t *testing.T) {
	p := NewMockProvider()
	require.NoError(t, p.Connect(context.Background()))

	start := time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)
	end := start.Add(4 * time.Minute)
	bars, err := p.RetryBars(context.Background(), "MSFT", interval.MustParse("1m"), start, end)
	require.NoError(t, err)
	assert.Len(t, bars, 5)
}

func TestMockProvider_DoubleConnectErrors(t *testing.T) {
	p := NewMockProvider()
	require.NoError(t, p.Connect(context.Background()))
	assert.ErrorIs(t, p.Connect(context.Background()), ErrAlreadyConnected)
}

func TestMockProvider_UnsubscribeRemovesSymbol(t *testing.T) {
	p := NewMockProvider()
	require.NoError(t, p.Connect(context.Background()))
	_, err := p.Subscribe(context.Background(), "AAPL", []interval.Interval{interval.MustParse("1s")})
	require.NoError(t, err)
	require.NoError(t, p.Unsubscribe(context.Background(), "AAPL"))
}
