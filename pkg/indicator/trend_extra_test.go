package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWMA_WeightsRecentBarsMore(t *testing.T) {
	wma, err := NewWMA(3)
	require.NoError(t, err)
	assert.Equal(t, "wma_3", wma.Name())

	base := time.Now()
	_, _ = wma.Update(closeBar("AAPL", base, 100.0))
	_, _ = wma.Update(closeBar("AAPL", base.Add(time.Minute), 100.0))
	res, err := wma.Update(closeBar("AAPL", base.Add(2*time.Minute), 106.0))
	require.NoError(t, err)
	assert.True(t, wma.IsReady())
	// weighted average pulls above the unweighted mean since the newest bar
	// (106) carries the highest weight
	assert.Greater(t, res.Scalar, (100.0+100.0+106.0)/3.0)
}

func TestDEMA_ReadyAfterBothEMAsWarm(t *testing.T) {
	dema, err := NewDEMA(5)
	require.NoError(t, err)
	base := time.Now()

	for i := 0; i < 20; i++ {
		_, _ = dema.Update(closeBar("AAPL", base.Add(time.Duration(i)*time.Minute), 100.0+float64(i)))
	}
	assert.True(t, dema.IsReady())
	res, err := dema.Value()
	require.NoError(t, err)
	assert.Greater(t, res.Scalar, 0.0)
}

func TestTEMA_ReadyAfterAllThreeEMAsWarm(t *testing.T) {
	tema, err := NewTEMA(5)
	require.NoError(t, err)
	base := time.Now()

	for i := 0; i < 30; i++ {
		_, _ = tema.Update(closeBar("AAPL", base.Add(time.Duration(i)*time.Minute), 100.0+float64(i)))
	}
	assert.True(t, tema.IsReady())
}

func TestHMA_ConstantPriceConverges(t *testing.T) {
	hma, err := NewHMA(9)
	require.NoError(t, err)
	base := time.Now()

	var res Result
	for i := 0; i < 30; i++ {
		res, _ = hma.Update(closeBar("AAPL", base.Add(time.Duration(i)*time.Minute), 100.0))
	}
	assert.True(t, hma.IsReady())
	assert.InDelta(t, 100.0, res.Scalar, 0.01)
}

func TestTWAP_Average(t *testing.T) {
	twap, err := NewTWAP(3)
	require.NoError(t, err)
	assert.Equal(t, "twap_3", twap.Name())

	base := time.Now()
	_, _ = twap.Update(hlcBar("AAPL", base, 102, 98, 100, 1000))
	_, _ = twap.Update(hlcBar("AAPL", base.Add(time.Minute), 107, 103, 105, 1000))
	res, err := twap.Update(hlcBar("AAPL", base.Add(2*time.Minute), 112, 108, 110, 1000))
	require.NoError(t, err)
	assert.True(t, twap.IsReady())
	expected := (100.0 + 105.0 + 110.0) / 3.0
	assert.InDelta(t, expected, res.Scalar, 0.01)
}
