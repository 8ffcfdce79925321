package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPivotPoints_ReadyAfterOneBar(t *testing.T) {
	pp := NewPivotPoints()
	res, err := pp.Update(hlcBar("AAPL", time.Now(), 110, 90, 100, 1000))
	require.NoError(t, err)
	assert.True(t, pp.IsReady())
	assert.Equal(t, 100.0, res.Fields["pivot"])
	assert.Equal(t, 110.0, res.Fields["r1"])
	assert.Equal(t, 90.0, res.Fields["s1"])
}

func TestHighLowN_TracksWindowExtremes(t *testing.T) {
	hl, err := NewHighLowN(3)
	require.NoError(t, err)
	base := time.Now()

	_, _ = hl.Update(hlcBar("AAPL", base, 105, 95, 100, 1000))
	_, _ = hl.Update(hlcBar("AAPL", base.Add(time.Minute), 112, 98, 105, 1000))
	res, err := hl.Update(hlcBar("AAPL", base.Add(2*time.Minute), 108, 90, 100, 1000))
	require.NoError(t, err)
	assert.Equal(t, 112.0, res.Fields["high"])
	assert.Equal(t, 90.0, res.Fields["low"])
}

func TestSwingHighLow_ConfirmsCenterExtreme(t *testing.T) {
	swing, err := NewSwingHighLow(1)
	require.NoError(t, err)
	base := time.Now()

	bars := []struct{ high, low float64 }{
		{100, 90},
		{120, 95}, // center: should confirm as swing high
		{105, 92},
	}
	var res Result
	for i, b := range bars {
		res, _ = swing.Update(hlcBar("AAPL", base.Add(time.Duration(i)*time.Minute), b.high, b.low, (b.high+b.low)/2, 1000))
	}
	assert.True(t, swing.IsReady())
	assert.Equal(t, 120.0, res.Fields["swing_high"])
}

func TestGapStats_ComputesGapFromPriorClose(t *testing.T) {
	gs := NewGapStats()
	base := time.Now()

	_, _ = gs.Update(closeBar("AAPL", base, 100.0))
	bar := closeBar("AAPL", base.Add(24*time.Hour), 106.0)
	bar.Open = 103.0
	res, err := gs.Update(bar)
	require.NoError(t, err)
	assert.Equal(t, 3.0, res.Fields["gap"])
	assert.InDelta(t, 3.0, res.Fields["gap_pct"], 0.01)
}

func TestRangeRatio_AboveOneForWiderBar(t *testing.T) {
	rr, err := NewRangeRatio(3)
	require.NoError(t, err)
	base := time.Now()

	_, _ = rr.Update(hlcBar("AAPL", base, 102, 98, 100, 1000))
	_, _ = rr.Update(hlcBar("AAPL", base.Add(time.Minute), 103, 97, 100, 1000))
	res, err := rr.Update(hlcBar("AAPL", base.Add(2*time.Minute), 120, 80, 100, 1000))
	require.NoError(t, err)
	assert.Greater(t, res.Scalar, 1.0)
}
