package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barforge/sessionengine/internal/models"
)

func closeBar(symbol string, ts time.Time, close float64) models.Bar {
	return models.Bar{Symbol: symbol, Timestamp: ts, Open: close, High: close, Low: close, Close: close, Volume: 100}
}

func TestSMA_NewSMA(t *testing.T) {
	sma, err := NewSMA(20)
	require.NoError(t, err)
	assert.Equal(t, "sma_20", sma.Name())

	_, err = NewSMA(0)
	assert.Error(t, err)
}

func TestSMA_Update(t *testing.T) {
	sma, _ := NewSMA(5)
	base := time.Now()

	for i := 0; i < 4; i++ {
		res, err := sma.Update(closeBar("AAPL", base.Add(time.Duration(i)*time.Minute), 100.0+float64(i)))
		require.NoError(t, err)
		assert.False(t, sma.IsReady())
		assert.Zero(t, res.Scalar)
	}

	res, err := sma.Update(closeBar("AAPL", base.Add(4*time.Minute), 104.0))
	require.NoError(t, err)
	assert.True(t, sma.IsReady())
	expected := (100.0 + 101.0 + 102.0 + 103.0 + 104.0) / 5.0
	assert.Equal(t, expected, res.Scalar)
}

func TestSMA_RollingWindow(t *testing.T) {
	sma, _ := NewSMA(5)
	base := time.Now()

	for i := 0; i < 10; i++ {
		_, _ = sma.Update(closeBar("AAPL", base.Add(time.Duration(i)*time.Minute), 100.0+float64(i)))
	}

	res, _ := sma.Value()
	expected := (105.0 + 106.0 + 107.0 + 108.0 + 109.0) / 5.0
	assert.Equal(t, expected, res.Scalar)
}

func TestSMA_Reset(t *testing.T) {
	sma, _ := NewSMA(5)
	base := time.Now()
	for i := 0; i < 10; i++ {
		_, _ = sma.Update(closeBar("AAPL", base.Add(time.Duration(i)*time.Minute), 100.0+float64(i)))
	}

	sma.Reset()
	assert.False(t, sma.IsReady())

	_, err := sma.Value()
	assert.Error(t, err)
}

func TestSMA_ConstantPrice(t *testing.T) {
	sma, _ := NewSMA(10)
	base := time.Now()
	for i := 0; i < 10; i++ {
		_, _ = sma.Update(closeBar("AAPL", base.Add(time.Duration(i)*time.Minute), 100.0))
	}

	res, _ := sma.Value()
	assert.Equal(t, 100.0, res.Scalar)
}
