// Package bars implements the bar aggregator: a pure function that folds a
// sequence of source bars into a sequence of target-interval bars, in one
// of three modes selected automatically from the source/target intervals.
package bars

import (
	"fmt"
	"time"

	"github.com/barforge/sessionengine/internal/interval"
	"github.com/barforge/sessionengine/internal/models"
	"github.com/barforge/sessionengine/internal/quality"
	"github.com/barforge/sessionengine/internal/timeservice"
)

// Mode is the aggregation strategy selected for a given source/target pair.
type Mode int

const (
	// TimeWindow groups by timestamp truncated to the target window. Used
	// for tick -> base-interval aggregation; a window is complete once it
	// has seen at least one print.
	TimeWindow Mode = iota
	// FixedChunk groups consecutive N-sized chunks of same-unit bars
	// (1s->Ns, 1m->Nm); a chunk is complete only at exactly N bars.
	FixedChunk
	// Calendar groups by trading-date or ISO-week, consulting the time
	// service for holiday/weekend skipping; partial groups are allowed
	// (early closes, short weeks) unless RequireComplete is set.
	Calendar
)

// Options configures one Aggregate call.
type Options struct {
	// RequireComplete, when true, drops any group that did not meet its
	// completeness rule instead of emitting a partial bar.
	RequireComplete bool
	// CheckContinuity, when true (FixedChunk only), verifies that bars
	// within a chunk have strictly consecutive expected timestamps and
	// drops chunks with an internal gap even if the count is right.
	CheckContinuity bool
}

// Diagnostics reports what Aggregate observed while folding.
type Diagnostics struct {
	GroupsSeen        int
	IncompleteDropped int
	Gaps              []quality.Gap
}

// Result is the output of one Aggregate call.
type Result struct {
	Bars        []models.Bar
	Diagnostics Diagnostics
}

// SelectMode chooses the aggregation mode for a source -> target pair. A
// zero-value source (Value == 0) signals a synthetic tick source, which is
// always TimeWindow. Same-unit pairs are FixedChunk; unit-crossing pairs
// are Calendar.
func SelectMode(source, target interval.Interval) Mode {
	if source.Value == 0 {
		return TimeWindow
	}
	if source.Unit == target.Unit {
		return FixedChunk
	}
	return Calendar
}

// Aggregate folds source bars (assumed pre-sorted ascending by timestamp)
// into targetInterval bars. cal is required whenever Calendar mode is
// selected (any unit-crossing derivation); it may be nil for FixedChunk/
// TimeWindow aggregation.
func Aggregate(source []models.Bar, sourceInterval, targetInterval interval.Interval, cal timeservice.TimeManager, opts Options) (Result, error) {
	mode := SelectMode(sourceInterval, targetInterval)

	switch mode {
	case TimeWindow:
		return aggregateTimeWindow(source, targetInterval), nil
	case FixedChunk:
		return aggregateFixedChunk(source, sourceInterval, targetInterval, opts)
	case Calendar:
		if cal == nil {
			return Result{}, fmt.Errorf("bars: calendar-mode aggregation from %q to %q requires a time service", sourceInterval, targetInterval)
		}
		return aggregateCalendar(source, sourceInterval, targetInterval, cal, opts)
	default:
		return Result{}, fmt.Errorf("bars: unknown aggregation mode %d", mode)
	}
}

// aggregateTimeWindow buckets bars by floor(unix_seconds / window_seconds).
// Used for synthetic tick bars (one models.Bar per print, Open==Close==
// High==Low==price) folding into a base interval.
func aggregateTimeWindow(source []models.Bar, target interval.Interval) Result {
	windowSeconds, err := target.Seconds(nil)
	if err != nil || windowSeconds <= 0 {
		windowSeconds = int64(target.Value)
		if windowSeconds <= 0 {
			windowSeconds = 1
		}
	}

	var out []models.Bar
	var diag Diagnostics

	var acc models.Bar
	var bucketStart time.Time
	open := false

	flush := func() {
		if !open {
			return
		}
		acc.Timestamp = bucketStart
		out = append(out, acc)
	}

	for _, b := range source {
		start := bucketTime(b.Timestamp, windowSeconds)
		if !open {
			open = true
			bucketStart = start
			acc = models.Fold(models.Bar{}, b)
			diag.GroupsSeen++
			continue
		}
		if start.Equal(bucketStart) {
			acc = models.Fold(acc, b)
			continue
		}
		flush()
		bucketStart = start
		acc = models.Fold(models.Bar{}, b)
		diag.GroupsSeen++
	}
	flush()

	return Result{Bars: out, Diagnostics: diag}
}

func bucketTime(t time.Time, windowSeconds int64) time.Time {
	unix := t.Unix()
	floored := (unix / windowSeconds) * windowSeconds
	return time.Unix(floored, 0).In(t.Location())
}

// aggregateFixedChunk groups source (already at sourceInterval) into
// chunks of N = target/source bars, where N is required to be an exact
// integer multiple.
func aggregateFixedChunk(source []models.Bar, sourceInterval, targetInterval interval.Interval, opts Options) (Result, error) {
	if sourceInterval.Unit != targetInterval.Unit {
		return Result{}, fmt.Errorf("bars: fixed-chunk aggregation requires matching units, got %q -> %q", sourceInterval, targetInterval)
	}
	if sourceInterval.Value <= 0 || targetInterval.Value%sourceInterval.Value != 0 {
		return Result{}, fmt.Errorf("bars: target %q is not an integer multiple of source %q", targetInterval, sourceInterval)
	}
	chunkSize := targetInterval.Value / sourceInterval.Value
	if chunkSize < 1 {
		return Result{}, fmt.Errorf("bars: target %q is not larger than source %q", targetInterval, sourceInterval)
	}

	sourceSeconds, err := sourceInterval.Seconds(nil)
	if err != nil {
		return Result{}, err
	}

	var out []models.Bar
	var diag Diagnostics

	for i := 0; i < len(source); i += chunkSize {
		end := i + chunkSize
		if end > len(source) {
			end = len(source)
		}
		chunk := source[i:end]
		diag.GroupsSeen++

		complete := len(chunk) == chunkSize
		if opts.CheckContinuity && complete {
			for j := 1; j < len(chunk); j++ {
				expected := chunk[j-1].Timestamp.Add(time.Duration(sourceSeconds) * time.Second)
				if !chunk[j].Timestamp.Equal(expected) {
					complete = false
					diag.Gaps = append(diag.Gaps, quality.Gap{Start: chunk[0].Timestamp, MissingCount: chunkSize - len(chunk)})
					break
				}
			}
		}

		if !complete {
			if opts.RequireComplete {
				diag.IncompleteDropped++
				continue
			}
			if len(chunk) < chunkSize {
				diag.Gaps = append(diag.Gaps, quality.Gap{Start: chunk[0].Timestamp, MissingCount: chunkSize - len(chunk)})
			}
		}

		var acc models.Bar
		for _, b := range chunk {
			acc = models.Fold(acc, b)
		}
		acc.Timestamp = chunk[0].Timestamp
		acc.Symbol = chunk[0].Symbol
		out = append(out, acc)
	}

	return Result{Bars: out, Diagnostics: diag}, nil
}

// aggregateCalendar groups source bars by trading date (day target) or by
// ISO week of trading dates (week target), using cal to determine session
// boundaries and skip weekends/holidays.
func aggregateCalendar(source []models.Bar, sourceInterval, targetInterval interval.Interval, cal timeservice.TimeManager, opts Options) (Result, error) {
	switch targetInterval.Unit {
	case interval.Day:
		return aggregateToDay(source, targetInterval, cal, opts)
	case interval.Week:
		return aggregateToWeek(source, targetInterval, cal, opts)
	default:
		return Result{}, fmt.Errorf("bars: calendar-mode aggregation does not support target unit %q", targetInterval.Unit)
	}
}

func aggregateToDay(source []models.Bar, targetInterval interval.Interval, cal timeservice.TimeManager, opts Options) (Result, error) {
	if targetInterval.Value != 1 {
		return Result{}, fmt.Errorf("bars: multi-day targets are not supported, got %q", targetInterval)
	}

	tz := cal.MarketTimezone()
	type key struct{ y, m, d int }
	order := []key{}
	groups := map[key][]models.Bar{}

	for _, b := range source {
		local := b.Timestamp.In(tz)
		k := key{local.Year(), int(local.Month()), local.Day()}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], b)
	}

	var out []models.Bar
	var diag Diagnostics

	for _, k := range order {
		chunk := groups[k]
		diag.GroupsSeen++

		day := time.Date(k.y, time.Month(k.m), k.d, 0, 0, 0, 0, tz)
		session := cal.GetTradingSession(day)
		complete := !session.IsHoliday

		if opts.RequireComplete && !complete {
			diag.IncompleteDropped++
			continue
		}

		var acc models.Bar
		for _, b := range chunk {
			acc = models.Fold(acc, b)
		}
		acc.Timestamp = day
		acc.Symbol = chunk[0].Symbol
		out = append(out, acc)
	}

	return Result{Bars: out, Diagnostics: diag}, nil
}

func aggregateToWeek(source []models.Bar, targetInterval interval.Interval, cal timeservice.TimeManager, opts Options) (Result, error) {
	tz := cal.MarketTimezone()
	type weekKey struct{ y, w int }
	order := []weekKey{}
	groups := map[weekKey][]models.Bar{}

	for _, b := range source {
		local := b.Timestamp.In(tz)
		y, w := local.ISOWeek()
		k := weekKey{y, w}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], b)
	}

	var out []models.Bar
	var diag Diagnostics

	for _, k := range order {
		chunk := groups[k]
		diag.GroupsSeen++

		expectedDays := cal.TradingDaysInWeek(chunk[0].Timestamp.In(tz))
		complete := len(chunk) >= len(expectedDays) && len(expectedDays) > 0

		if opts.RequireComplete && !complete {
			diag.IncompleteDropped++
			if len(expectedDays) > len(chunk) {
				diag.Gaps = append(diag.Gaps, quality.Gap{Start: chunk[0].Timestamp, MissingCount: len(expectedDays) - len(chunk)})
			}
			continue
		}
		if len(expectedDays) > len(chunk) {
			diag.Gaps = append(diag.Gaps, quality.Gap{Start: chunk[0].Timestamp, MissingCount: len(expectedDays) - len(chunk)})
		}

		var acc models.Bar
		for _, b := range chunk {
			acc = models.Fold(acc, b)
		}
		// A week bar is stamped at the first trading day of its ISO week
		// (the Tuesday when Monday is a holiday), regardless of which day
		// the first observed bar fell on.
		if len(expectedDays) > 0 {
			acc.Timestamp = expectedDays[0]
		} else {
			acc.Timestamp = chunk[0].Timestamp
		}
		acc.Symbol = chunk[0].Symbol
		out = append(out, acc)
	}

	return Result{Bars: out, Diagnostics: diag}, nil
}
