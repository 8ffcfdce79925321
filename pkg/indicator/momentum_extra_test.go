package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCCI_NotReadyThenCalculates(t *testing.T) {
	cci, err := NewCCI(5)
	require.NoError(t, err)
	base := time.Now()

	for i := 0; i < 4; i++ {
		res, _ := cci.Update(hlcBar("AAPL", base.Add(time.Duration(i)*time.Minute), 102, 98, 100, 1000))
		assert.False(t, cci.IsReady())
		assert.Zero(t, res.Scalar)
	}

	res, err := cci.Update(hlcBar("AAPL", base.Add(4*time.Minute), 110, 106, 108, 1000))
	require.NoError(t, err)
	assert.True(t, cci.IsReady())
	assert.Greater(t, res.Scalar, 0.0)
}

func TestROC_MatchesPercentChange(t *testing.T) {
	roc, err := NewROC(1)
	require.NoError(t, err)
	base := time.Now()

	_, _ = roc.Update(closeBar("AAPL", base, 100.0))
	res, err := roc.Update(closeBar("AAPL", base.Add(time.Minute), 110.0))
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.Scalar)
}

func TestWilliamsR_RangeIsNegative(t *testing.T) {
	wr, err := NewWilliamsR(5)
	require.NoError(t, err)
	base := time.Now()

	for i := 0; i < 5; i++ {
		_, _ = wr.Update(hlcBar("AAPL", base.Add(time.Duration(i)*time.Minute), 110, 90, 100, 1000))
	}
	res, err := wr.Value()
	require.NoError(t, err)
	assert.True(t, res.Scalar <= 0 && res.Scalar >= -100)
}

func TestUltimateOscillator_RequiresPeriodOrdering(t *testing.T) {
	_, err := NewUltimateOscillator(14, 7, 28)
	assert.Error(t, err)

	uo, err := NewUltimateOscillator(2, 4, 6)
	require.NoError(t, err)

	base := time.Now()
	for i := 0; i < 8; i++ {
		_, _ = uo.Update(hlcBar("AAPL", base.Add(time.Duration(i)*time.Minute), 110, 95, 100+float64(i), 1000))
	}
	assert.True(t, uo.IsReady())
	res, err := uo.Value()
	require.NoError(t, err)
	assert.True(t, res.Scalar >= 0 && res.Scalar <= 100)
}
