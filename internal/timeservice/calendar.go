package timeservice

import (
	"sort"
	"sync"
	"time"
)

// EarlyClose names a trading date (in the market timezone) that closes
// before the regular close time, and the minutes-before-close it shortens
// by (e.g. the day after Thanksgiving closes 180 minutes early).
type EarlyClose struct {
	Date            time.Time
	MinutesBefore   int
}

// Calendar is a configurable NYSE-shaped TimeManager: regular session
//09:30-16:00 in the given timezone, a fixed holiday set, weekend skipping,
// and optional early closes. It also carries the simulated clock used by
// clock-driven backtests.
type Calendar struct {
	mu sync.RWMutex

	tz                 *time.Location
	openHour, openMin   int
	closeHour, closeMin int
	holidays           map[string]bool // "YYYY-MM-DD" -> true
	earlyCloses        map[string]int  // "YYYY-MM-DD" -> minutes before close

	simulated time.Time
	useSim    bool
}

// NewCalendar creates a Calendar for the given timezone with a regular
// 09:30-16:00 session, the supplied holiday dates, and early closes.
func NewCalendar(tz *time.Location, holidays []time.Time, earlyCloses []EarlyClose) *Calendar {
	c := &Calendar{
		tz:          tz,
		openHour:    9,
		openMin:     30,
		closeHour:   16,
		closeMin:    0,
		holidays:    make(map[string]bool, len(holidays)),
		earlyCloses: make(map[string]int, len(earlyCloses)),
	}
	for _, h := range holidays {
		c.holidays[dateKey(h)] = true
	}
	for _, e := range earlyCloses {
		c.earlyCloses[dateKey(e.Date)] = e.MinutesBefore
	}
	return c
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// CurrentTime returns the simulated time if SetSimulatedTime has been
// called, else the wall clock.
func (c *Calendar) CurrentTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.useSim {
		return c.simulated
	}
	return time.Now().In(c.tz)
}

// SetSimulatedTime switches the calendar into simulated-clock mode.
func (c *Calendar) SetSimulatedTime(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.simulated = t
	c.useSim = true
}

func (c *Calendar) isWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (c *Calendar) IsHoliday(date time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.holidays[dateKey(date)]
}

// GetTradingSession returns open/close/holiday for date. Open and Close are
// zero-valued when IsHoliday or the date is a weekend.
func (c *Calendar) GetTradingSession(date time.Time) Session {
	date = date.In(c.tz)
	if c.isWeekend(date) || c.IsHoliday(date) {
		return Session{IsHoliday: true}
	}

	open := time.Date(date.Year(), date.Month(), date.Day(), c.openHour, c.openMin, 0, 0, c.tz)
	closeT := time.Date(date.Year(), date.Month(), date.Day(), c.closeHour, c.closeMin, 0, 0, c.tz)

	c.mu.RLock()
	minutesBefore, early := c.earlyCloses[dateKey(date)]
	c.mu.RUnlock()
	if early {
		closeT = closeT.Add(-time.Duration(minutesBefore) * time.Minute)
	}

	return Session{Open: open, Close: closeT}
}

// GetNextTradingDate returns the next trading date after date.
func (c *Calendar) GetNextTradingDate(date time.Time) (time.Time, bool) {
	candidate := date.AddDate(0, 0, 1)
	for i := 0; i < 14; i++ { // generous bound against pathological holiday configs
		if !c.isWeekend(candidate) && !c.IsHoliday(candidate) {
			return candidate, true
		}
		candidate = candidate.AddDate(0, 0, 1)
	}
	return time.Time{}, false
}

// GetPreviousTradingDate returns the nth trading date before date.
func (c *Calendar) GetPreviousTradingDate(date time.Time, n int) time.Time {
	candidate := date
	found := 0
	for found < n {
		candidate = candidate.AddDate(0, 0, -1)
		if !c.isWeekend(candidate) && !c.IsHoliday(candidate) {
			found++
		}
	}
	return candidate
}

func (c *Calendar) MarketTimezone() *time.Location {
	return c.tz
}

func (c *Calendar) RegularSessionMinutes() int {
	return (c.closeHour*60 + c.closeMin) - (c.openHour*60 + c.openMin)
}

// TradingMinutes returns minutes in the session for date, honoring early
// closes; zero on a holiday or weekend.
func (c *Calendar) TradingMinutes(date time.Time) int {
	s := c.GetTradingSession(date)
	if s.IsHoliday {
		return 0
	}
	return int(s.Close.Sub(s.Open).Minutes())
}

// TradingDaysInWeek returns the trading dates in the ISO week containing
// date, in ascending order.
func (c *Calendar) TradingDaysInWeek(date time.Time) []time.Time {
	date = date.In(c.tz)
	year, week := date.ISOWeek()

	// Walk back to the Monday of this ISO week, then forward 7 days,
	// collecting any date that shares the same ISO (year, week) and is a
	// trading day.
	monday := date
	for {
		y, w := monday.ISOWeek()
		if y == year && w == week && monday.Weekday() == time.Monday {
			break
		}
		monday = monday.AddDate(0, 0, -1)
	}

	var days []time.Time
	for i := 0; i < 7; i++ {
		d := monday.AddDate(0, 0, i)
		y, w := d.ISOWeek()
		if y != year || w != week {
			continue
		}
		if !c.isWeekend(d) && !c.IsHoliday(d) {
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}
