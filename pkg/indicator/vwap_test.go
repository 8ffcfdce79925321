package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barforge/sessionengine/internal/models"
)

func hlcBar(symbol string, ts time.Time, high, low, close float64, volume int64) models.Bar {
	return models.Bar{Symbol: symbol, Timestamp: ts, Open: close, High: high, Low: low, Close: close, Volume: volume}
}

func TestVWAP_NewVWAP(t *testing.T) {
	vwap, err := NewVWAP("1m")
	require.NoError(t, err)
	assert.Equal(t, "vwap_1m", vwap.Name())

	_, err = NewVWAP("")
	assert.Error(t, err)
}

func TestVWAP_Update(t *testing.T) {
	vwap, _ := NewVWAP("1m")
	base := time.Now()

	for i := 0; i < 5; i++ {
		res, err := vwap.Update(hlcBar("AAPL", base.Add(time.Duration(i)*time.Minute), 105.0, 99.0, 103.0, 1000))
		require.NoError(t, err)
		assert.True(t, vwap.IsReady())
		assert.Greater(t, res.Scalar, 0.0)
	}
}

func TestVWAP_ZeroVolumeNotReady(t *testing.T) {
	vwap, _ := NewVWAP("1m")
	res, err := vwap.Update(hlcBar("AAPL", time.Now(), 105.0, 99.0, 103.0, 0))
	require.NoError(t, err)
	assert.False(t, vwap.IsReady())
	assert.Zero(t, res.Scalar)
}

func TestVWAP_Calculation(t *testing.T) {
	vwap, _ := NewVWAP("1m")
	base := time.Now()

	bars := []models.Bar{
		hlcBar("AAPL", base, 102.0, 98.0, 100.0, 1000),
		hlcBar("AAPL", base.Add(time.Minute), 107.0, 103.0, 105.0, 2000),
		hlcBar("AAPL", base.Add(2*time.Minute), 112.0, 108.0, 110.0, 1500),
	}

	for _, bar := range bars {
		_, _ = vwap.Update(bar)
	}

	res, _ := vwap.Value()
	expected := (100.0*1000 + 105.0*2000 + 110.0*1500) / (1000 + 2000 + 1500)
	assert.InDelta(t, expected, res.Scalar, 1.0)
}

func TestVWAP_Reset(t *testing.T) {
	vwap, _ := NewVWAP("1m")
	base := time.Now()
	for i := 0; i < 3; i++ {
		_, _ = vwap.Update(hlcBar("AAPL", base.Add(time.Duration(i)*time.Minute), 101.0, 99.0, 100.0, 1000))
	}

	vwap.Reset()
	assert.False(t, vwap.IsReady())

	_, err := vwap.Value()
	assert.Error(t, err)
}

func TestVWAP_CarryState(t *testing.T) {
	vwap, _ := NewVWAP("1m")
	base := time.Now()
	for i := 0; i < 3; i++ {
		_, _ = vwap.Update(hlcBar("AAPL", base.Add(time.Duration(i)*time.Minute), 101.0, 99.0, 100.0, 1000))
	}

	state := vwap.CarryState()

	restored, _ := NewVWAP("1m")
	require.NoError(t, restored.RestoreCarryState(state))
	assert.True(t, restored.IsReady())

	origVal, _ := vwap.Value()
	restoredVal, _ := restored.Value()
	assert.Equal(t, origVal.Scalar, restoredVal.Scalar)
}
