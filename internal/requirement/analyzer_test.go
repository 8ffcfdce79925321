package requirement

import (
	"testing"
	"time"

	"github.com/barforge/sessionengine/internal/indicator"
	"github.com/barforge/sessionengine/internal/interval"
	"github.com/barforge/sessionengine/internal/store"
	"github.com/barforge/sessionengine/internal/timeservice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCalendar() *timeservice.Calendar {
	return timeservice.NewCalendar(time.UTC, nil, nil)
}

func TestAnalyze_ChoosesMinimalCommonBase(t *testing.T) {
	in := Input{
		SessionIntervals: []string{"5m", "1d"},
		Indicators: []indicator.Config{
			{Name: "sma", Period: 20, Interval: interval.MustParse("5m"), Type: store.IndicatorTrend},
		},
	}

	req, err := Analyze(in, testCalendar())
	require.NoError(t, err)
	assert.Equal(t, interval.MustParse("1m"), req.BaseInterval)
	assert.Contains(t, req.DerivedIntervals, interval.MustParse("5m"))
	assert.Contains(t, req.DerivedIntervals, interval.MustParse("1d"))
	assert.Contains(t, req.StreamIntervals, interval.MustParse("1m"))
}

func TestAnalyze_BaseOnlyNoDerivedIntervals(t *testing.T) {
	in := Input{
		SessionIntervals: []string{"1m"},
		Indicators: []indicator.Config{
			{Name: "vwap", Interval: interval.MustParse("1m"), Type: store.IndicatorTrend},
		},
	}

	req, err := Analyze(in, testCalendar())
	require.NoError(t, err)
	assert.Equal(t, interval.MustParse("1m"), req.BaseInterval)
	assert.Empty(t, req.DerivedIntervals)
	assert.Equal(t, []interval.Interval{interval.MustParse("1m")}, req.StreamIntervals)
}

func TestAnalyze_AvailableIntervalClassifiedAsStream(t *testing.T) {
	in := Input{
		SessionIntervals: []string{"1m", "5m"},
		Available:        map[string]bool{"5m": true},
	}

	req, err := Analyze(in, testCalendar())
	require.NoError(t, err)
	assert.Contains(t, req.StreamIntervals, interval.MustParse("5m"))
	assert.NotContains(t, req.DerivedIntervals, interval.MustParse("5m"))
}

func TestAnalyze_DeclaredBaseMustBeBaseInterval(t *testing.T) {
	in := Input{
		BaseInterval:     "5m",
		SessionIntervals: []string{"5m"},
	}

	_, err := Analyze(in, testCalendar())
	assert.Error(t, err)
}

func TestAnalyze_RejectsHourlyToken(t *testing.T) {
	in := Input{SessionIntervals: []string{"1h"}}
	_, err := Analyze(in, testCalendar())
	assert.ErrorContains(t, err, "hourly")
}

func TestAnalyze_WeekAloneResolvesToDayBase(t *testing.T) {
	// A week is always derivable straight from a day, so a session that
	// only ever declares "1w" gets the coarsest possible base (1d) rather
	// than streaming minute or tick data it has no other use for.
	in := Input{SessionIntervals: []string{"1w"}}
	req, err := Analyze(in, testCalendar())
	require.NoError(t, err)
	assert.Equal(t, interval.MustParse("1d"), req.BaseInterval)
	assert.Contains(t, req.DerivedIntervals, interval.MustParse("1w"))
}

func TestAnalyze_SubMinuteForcesSecondBase(t *testing.T) {
	in := Input{SessionIntervals: []string{"1m", "15s"}}
	req, err := Analyze(in, testCalendar())
	require.NoError(t, err)
	assert.Equal(t, interval.MustParse("1s"), req.BaseInterval)
	assert.Contains(t, req.DerivedIntervals, interval.MustParse("1m"))
	assert.Contains(t, req.StreamIntervals, interval.MustParse("1s"))
}

func TestAnalyze_WarmupLookbackExpandedToBaseBars(t *testing.T) {
	in := Input{
		SessionIntervals: []string{"1m", "5m"},
		Indicators: []indicator.Config{
			{Name: "sma", Period: 10, Interval: interval.MustParse("5m"), Type: store.IndicatorTrend},
		},
	}

	req, err := Analyze(in, testCalendar())
	require.NoError(t, err)
	assert.Equal(t, interval.MustParse("1m"), req.BaseInterval)
	// period(10) * WarmupMultiplier(2) 5m-bars * 5 (ratio 5m/1m) base bars.
	assert.Equal(t, 100, req.HistoricalLookback[interval.MustParse("5m")])
}

func TestAnalyze_NoIntervalsDeclaredErrors(t *testing.T) {
	_, err := Analyze(Input{}, testCalendar())
	assert.Error(t, err)
}
