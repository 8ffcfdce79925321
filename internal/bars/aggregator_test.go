package bars

import (
	"testing"
	"time"

	"github.com/barforge/sessionengine/internal/interval"
	"github.com/barforge/sessionengine/internal/models"
	"github.com/barforge/sessionengine/internal/timeservice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nyc() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	return loc
}

func minuteBar(t time.Time, o, h, l, c float64, v int64) models.Bar {
	return models.Bar{Symbol: "AAPL", Timestamp: t, Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestSelectMode(t *testing.T) {
	assert.Equal(t, TimeWindow, SelectMode(interval.Interval{}, interval.MustParse("1s")))
	assert.Equal(t, FixedChunk, SelectMode(interval.MustParse("1m"), interval.MustParse("5m")))
	assert.Equal(t, Calendar, SelectMode(interval.MustParse("5m"), interval.MustParse("1d")))
	assert.Equal(t, Calendar, SelectMode(interval.MustParse("1d"), interval.MustParse("1w")))
}

func TestAggregate_FixedChunk_390OneMinuteBarsInto78FiveMinuteBars(t *testing.T) {
	tz := nyc()
	start := time.Date(2026, 7, 30, 9, 30, 0, 0, tz)

	var source []models.Bar
	for i := 0; i < 390; i++ {
		ts := start.Add(time.Duration(i) * time.Minute)
		price := 100.0 + float64(i)*0.01
		source = append(source, minuteBar(ts, price, price+0.5, price-0.5, price+0.1, 1000))
	}

	result, err := Aggregate(source, interval.MustParse("1m"), interval.MustParse("5m"), nil, Options{})
	require.NoError(t, err)
	require.Len(t, result.Bars, 78)
	assert.Equal(t, 78, result.Diagnostics.GroupsSeen)
	assert.Equal(t, 0, result.Diagnostics.IncompleteDropped)

	first := result.Bars[0]
	assert.True(t, first.Timestamp.Equal(start))
	assert.Equal(t, source[0].Open, first.Open)
	assert.Equal(t, source[4].Close, first.Close)
	assert.Equal(t, int64(5000), first.Volume)

	last := result.Bars[77]
	assert.Equal(t, source[389].Close, last.Close)
}

func TestAggregate_FixedChunk_RequireCompleteDropsPartialTrailingChunk(t *testing.T) {
	tz := nyc()
	start := time.Date(2026, 7, 30, 9, 30, 0, 0, tz)

	var source []models.Bar
	for i := 0; i < 7; i++ { // 7 one-minute bars -> one full 5m chunk + a partial 2m chunk
		ts := start.Add(time.Duration(i) * time.Minute)
		source = append(source, minuteBar(ts, 100, 101, 99, 100.5, 1000))
	}

	result, err := Aggregate(source, interval.MustParse("1m"), interval.MustParse("5m"), nil, Options{RequireComplete: true})
	require.NoError(t, err)
	require.Len(t, result.Bars, 1)
	assert.Equal(t, 1, result.Diagnostics.IncompleteDropped)
}

func TestAggregate_FixedChunk_CheckContinuityDropsChunkWithInternalGap(t *testing.T) {
	tz := nyc()
	start := time.Date(2026, 7, 30, 9, 30, 0, 0, tz)

	source := []models.Bar{
		minuteBar(start, 100, 101, 99, 100, 1000),
		minuteBar(start.Add(1*time.Minute), 100, 101, 99, 100, 1000),
		// gap: skip minute 2
		minuteBar(start.Add(3*time.Minute), 100, 101, 99, 100, 1000),
		minuteBar(start.Add(4*time.Minute), 100, 101, 99, 100, 1000),
		minuteBar(start.Add(5*time.Minute), 100, 101, 99, 100, 1000),
	}

	result, err := Aggregate(source, interval.MustParse("1m"), interval.MustParse("5m"), nil,
		Options{RequireComplete: true, CheckContinuity: true})
	require.NoError(t, err)
	assert.Empty(t, result.Bars)
	assert.Equal(t, 1, result.Diagnostics.IncompleteDropped)
	require.Len(t, result.Diagnostics.Gaps, 1)
}

func TestAggregate_FixedChunk_RejectsNonIntegerMultiple(t *testing.T) {
	_, err := Aggregate(nil, interval.MustParse("3m"), interval.MustParse("5m"), nil, Options{})
	require.Error(t, err)
}

func TestAggregate_Calendar_MinutesToDay(t *testing.T) {
	tz := nyc()
	cal := timeservice.NewCalendar(tz, nil, nil)
	day1 := time.Date(2026, 7, 30, 9, 30, 0, 0, tz)
	day2 := time.Date(2026, 7, 31, 9, 30, 0, 0, tz)

	source := []models.Bar{
		minuteBar(day1, 100, 105, 95, 102, 1000),
		minuteBar(day1.Add(1*time.Minute), 102, 106, 101, 103, 500),
		minuteBar(day2, 103, 108, 100, 107, 700),
	}

	result, err := Aggregate(source, interval.MustParse("1m"), interval.MustParse("1d"), cal, Options{})
	require.NoError(t, err)
	require.Len(t, result.Bars, 2)

	assert.Equal(t, 100.0, result.Bars[0].Open)
	assert.Equal(t, 106.0, result.Bars[0].High)
	assert.Equal(t, 95.0, result.Bars[0].Low)
	assert.Equal(t, 103.0, result.Bars[0].Close)
	assert.Equal(t, int64(1500), result.Bars[0].Volume)

	assert.Equal(t, 107.0, result.Bars[1].Close)
}

func TestAggregate_Calendar_DaysToWeek(t *testing.T) {
	tz := nyc()
	// Monday 2026-07-27 is a holiday; the ISO week should still produce a
	// week bar folding the remaining 4 trading days; the skipped holiday is
	// not recorded as a gap.
	cal := timeservice.NewCalendar(tz, []time.Time{time.Date(2026, 7, 27, 0, 0, 0, 0, tz)}, nil)

	mkDay := func(d int, o, h, l, c float64) models.Bar {
		return minuteBar(time.Date(2026, 7, d, 0, 0, 0, 0, tz), o, h, l, c, 1000)
	}

	source := []models.Bar{
		mkDay(28, 100, 110, 95, 101),
		mkDay(29, 101, 111, 96, 102),
		mkDay(30, 102, 112, 97, 103),
		mkDay(31, 103, 113, 98, 104),
	}

	result, err := Aggregate(source, interval.MustParse("1d"), interval.MustParse("1w"), cal, Options{})
	require.NoError(t, err)
	require.Len(t, result.Bars, 1)

	week := result.Bars[0]
	assert.Equal(t, 100.0, week.Open)
	assert.Equal(t, 113.0, week.High)
	assert.Equal(t, 95.0, week.Low)
	assert.Equal(t, 104.0, week.Close)
	assert.Equal(t, int64(4000), week.Volume)
	assert.Equal(t, time.Date(2026, 7, 28, 0, 0, 0, 0, tz), week.Timestamp)
}

