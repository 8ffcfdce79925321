package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEMA_NewEMA(t *testing.T) {
	ema, err := NewEMA(20)
	require.NoError(t, err)
	assert.Equal(t, "ema_20", ema.Name())

	_, err = NewEMA(0)
	assert.Error(t, err)
}

func TestEMA_Update(t *testing.T) {
	ema, _ := NewEMA(20)
	base := time.Now()

	res, err := ema.Update(closeBar("AAPL", base, 100.0))
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.Scalar)
	assert.True(t, ema.IsReady())

	res, err = ema.Update(closeBar("AAPL", base.Add(time.Minute), 105.0))
	require.NoError(t, err)
	assert.True(t, res.Scalar >= 100.0 && res.Scalar <= 105.0)
}

func TestEMA_Convergence(t *testing.T) {
	ema, _ := NewEMA(20)
	base := time.Now()
	price := 100.0

	for i := 0; i < 100; i++ {
		res, _ := ema.Update(closeBar("AAPL", base.Add(time.Duration(i)*time.Minute), price))
		if i > 50 {
			assert.InDelta(t, price, res.Scalar, 0.1)
		}
	}
}

func TestEMA_Reset(t *testing.T) {
	ema, _ := NewEMA(20)
	base := time.Now()
	for i := 0; i < 10; i++ {
		_, _ = ema.Update(closeBar("AAPL", base.Add(time.Duration(i)*time.Minute), 100.0+float64(i)))
	}

	ema.Reset()
	assert.False(t, ema.IsReady())

	_, err := ema.Value()
	assert.Error(t, err)
}

func TestEMA_IncreasingPrice(t *testing.T) {
	ema, _ := NewEMA(20)
	base := time.Now()

	var prev float64
	for i := 0; i < 50; i++ {
		res, _ := ema.Update(closeBar("AAPL", base.Add(time.Duration(i)*time.Minute), 100.0+float64(i)))
		if i > 0 {
			assert.GreaterOrEqual(t, res.Scalar, prev)
		}
		prev = res.Scalar
	}
}

func TestEMA_HandleNaN(t *testing.T) {
	ema, _ := NewEMA(20)
	_, _ = ema.Update(closeBar("AAPL", time.Now(), 100.0))

	res, _ := ema.Value()
	assert.False(t, math.IsNaN(res.Scalar))
	assert.False(t, math.IsInf(res.Scalar, 0))
}

func TestEMA_CarryState(t *testing.T) {
	ema, _ := NewEMA(20)
	base := time.Now()
	for i := 0; i < 10; i++ {
		_, _ = ema.Update(closeBar("AAPL", base.Add(time.Duration(i)*time.Minute), 100.0+float64(i)))
	}

	state := ema.CarryState()

	restored, _ := NewEMA(20)
	require.NoError(t, restored.RestoreCarryState(state))
	assert.True(t, restored.IsReady())

	origVal, _ := ema.Value()
	restoredVal, _ := restored.Value()
	assert.Equal(t, origVal.Scalar, restoredVal.Scalar)
}
