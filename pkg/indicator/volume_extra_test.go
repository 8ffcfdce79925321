package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barforge/sessionengine/internal/models"
)

func closeVolBar(symbol string, ts time.Time, close float64, volume int64) models.Bar {
	return models.Bar{Symbol: symbol, Timestamp: ts, Open: close, High: close, Low: close, Close: close, Volume: volume}
}

func TestOBV_AccumulatesOnDirection(t *testing.T) {
	obv := NewOBV()
	base := time.Now()

	_, _ = obv.Update(closeVolBar("AAPL", base, 100, 1000))
	res, err := obv.Update(closeVolBar("AAPL", base.Add(time.Minute), 105, 1000))
	require.NoError(t, err)
	assert.Equal(t, 1000.0, res.Scalar)

	res, err = obv.Update(closeVolBar("AAPL", base.Add(2*time.Minute), 95, 500))
	require.NoError(t, err)
	assert.Equal(t, 500.0, res.Scalar)
}

func TestOBV_CarryState(t *testing.T) {
	obv := NewOBV()
	base := time.Now()
	_, _ = obv.Update(closeVolBar("AAPL", base, 100, 1000))
	_, _ = obv.Update(closeVolBar("AAPL", base.Add(time.Minute), 105, 1000))

	state := obv.CarryState()
	restored := NewOBV()
	require.NoError(t, restored.RestoreCarryState(state))
	assert.True(t, restored.IsReady())
}

func TestPVT_Accumulates(t *testing.T) {
	pvt := NewPVT()
	base := time.Now()
	_, _ = pvt.Update(closeVolBar("AAPL", base, 100, 1000))
	res, err := pvt.Update(closeVolBar("AAPL", base.Add(time.Minute), 110, 1000))
	require.NoError(t, err)
	assert.InDelta(t, 100.0, res.Scalar, 0.01)
}

func TestAvgVolume_Rolls(t *testing.T) {
	av, err := NewAvgVolume(3)
	require.NoError(t, err)
	base := time.Now()

	_, _ = av.Update(volumeBar("AAPL", base, 1000))
	_, _ = av.Update(volumeBar("AAPL", base.Add(time.Minute), 2000))
	res, err := av.Update(volumeBar("AAPL", base.Add(2*time.Minute), 3000))
	require.NoError(t, err)
	assert.True(t, av.IsReady())
	assert.Equal(t, 2000.0, res.Scalar)
}

func TestAvgRange_Rolls(t *testing.T) {
	ar, err := NewAvgRange(2)
	require.NoError(t, err)
	base := time.Now()

	_, _ = ar.Update(hlcBar("AAPL", base, 105, 95, 100, 1000))
	res, err := ar.Update(hlcBar("AAPL", base.Add(time.Minute), 110, 100, 105, 1000))
	require.NoError(t, err)
	assert.True(t, ar.IsReady())
	assert.Equal(t, 10.0, res.Scalar)
}
