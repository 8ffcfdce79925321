package timeservice

import (
	"testing"
	"time"

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

func TestCalendar_RegularSession(t *testing.T) {
	tz := nyc()
	cal := NewCalendar(tz, nil, nil)

	date := time.Date(2026, 7, 30, 0, 0, 0, 0, tz) // a Thursday
	session := cal.GetTradingSession(date)

	assert.False(t, session.IsHoliday)
	assert.Equal(t, 9, session.Open.Hour())
	assert.Equal(t, 30, session.Open.Minute())
	assert.Equal(t, 16, session.Close.Hour())
	assert.Equal(t, 390, cal.TradingMinutes(date))
}

func TestCalendar_Weekend(t *testing.T) {
	tz := nyc()
	cal := NewCalendar(tz, nil, nil)

	saturday := time.Date(2026, 8, 1, 0, 0, 0, 0, tz)
	session := cal.GetTradingSession(saturday)
	assert.True(t, session.IsHoliday)
	assert.Equal(t, 0, cal.TradingMinutes(saturday))
}

func TestCalendar_Holiday(t *testing.T) {
	tz := nyc()
	holiday := time.Date(2026, 12, 25, 0, 0, 0, 0, tz)
	cal := NewCalendar(tz, []time.Time{holiday}, nil)

	assert.True(t, cal.IsHoliday(holiday))
	assert.Equal(t, 0, cal.TradingMinutes(holiday))
}

func TestCalendar_EarlyClose(t *testing.T) {
	tz := nyc()
	earlyDay := time.Date(2026, 11, 27, 0, 0, 0, 0, tz)
	cal := NewCalendar(tz, nil, []EarlyClose{{Date: earlyDay, MinutesBefore: 180}})

	assert.Equal(t, 390-180, cal.TradingMinutes(earlyDay))
}

func TestCalendar_NextTradingDate_SkipsWeekend(t *testing.T) {
	tz := nyc()
	cal := NewCalendar(tz, nil, nil)

	friday := time.Date(2026, 7, 31, 0, 0, 0, 0, tz)
	next, ok := cal.GetNextTradingDate(friday)
	require.True(t, ok)
	assert.Equal(t, time.Monday, next.Weekday())
}

func TestCalendar_PreviousTradingDate(t *testing.T) {
	tz := nyc()
	cal := NewCalendar(tz, nil, nil)

	monday := time.Date(2026, 8, 3, 0, 0, 0, 0, tz)
	prev := cal.GetPreviousTradingDate(monday, 1)
	assert.Equal(t, time.Friday, prev.Weekday())
}

func TestCalendar_TradingDaysInWeek_ExcludesHoliday(t *testing.T) {
	tz := nyc()
	wednesday := time.Date(2026, 7, 29, 0, 0, 0, 0, tz)
	cal := NewCalendar(tz, []time.Time{time.Date(2026, 7, 27, 0, 0, 0, 0, tz)}, nil)

	days := cal.TradingDaysInWeek(wednesday)
	assert.Len(t, days, 4)
	for _, d := range days {
		assert.NotEqual(t, 27, d.Day())
	}
}

func TestCalendar_SimulatedClock(t *testing.T) {
	tz := nyc()
	cal := NewCalendar(tz, nil, nil)

	sim := time.Date(2026, 7, 30, 10, 0, 0, 0, tz)
	cal.SetSimulatedTime(sim)
	assert.Equal(t, sim, cal.CurrentTime())
}
