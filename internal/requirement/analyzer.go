// Package requirement implements the requirement analyzer (SPEC_FULL.md
// §4.7): it turns a symbol's declared bars and indicators into a concrete
// plan — which interval is the base, which intervals stream directly and
// which must be derived, and how much history each indicator needs to warm
// up — or rejects the declaration with a precise error.
package requirement

import (
	"fmt"
	"sort"

	"github.com/barforge/sessionengine/internal/indicator"
	"github.com/barforge/sessionengine/internal/interval"
)

// Input is the declared, unresolved set of bars and indicators for one
// symbol (or for the session as a whole, at config-load time).
type Input struct {
	// BaseInterval, if non-empty, pins the base instead of letting Analyze
	// choose the minimum-duration common one.
	BaseInterval string

	SessionIntervals    []string
	HistoricalIntervals []string

	Indicators           []indicator.Config
	HistoricalIndicators []indicator.Config

	// Available lists interval tokens already sourced from the columnar
	// store or the live provider; Analyze prefers these over deriving.
	Available map[string]bool
}

// Requirements is the resolved plan Analyze produces.
type Requirements struct {
	BaseInterval interval.Interval

	StreamIntervals  []interval.Interval
	DerivedIntervals []interval.Interval

	// HistoricalLookback maps an interval to how many BASE-interval bars
	// must be loaded (and, where the interval isn't itself the base,
	// aggregated up) to warm up every indicator registered on it.
	HistoricalLookback map[interval.Interval]int

	Indicators           []indicator.Config
	HistoricalIndicators []indicator.Config
}

// baseCandidates is ordered coarsest-first: resolveBase picks the first
// candidate that covers every declared interval, so a session that only
// ever needs daily and weekly bars gets a 1d base rather than streaming
// ticks it has no use for. Only intervals that genuinely require
// finer-grained derivation (e.g. 5m alongside 1d) push the choice down to
// 1m, and only a bare second-level requirement pushes it to 1s.
var baseCandidates = []interval.Interval{
	{Unit: interval.Day, Value: 1},
	{Unit: interval.Minute, Value: 1},
	{Unit: interval.Second, Value: 1},
}

// Analyze runs the five-step algorithm: collect every interval explicit or
// implied by an indicator, pick the coarsest common base that still covers
// every declared interval, confirm every interval is derivable from it,
// expand each indicator's warmup into base-interval bar counts, and reject
// the plan outright if no base exists, an interval can't be derived, or an
// hourly token appears anywhere (Parse already refuses those).
func Analyze(in Input, cal interval.Calendar) (*Requirements, error) {
	needed := make(map[interval.Interval]bool)

	for _, tok := range in.SessionIntervals {
		iv, err := interval.Parse(tok)
		if err != nil {
			return nil, fmt.Errorf("requirement: session interval: %w", err)
		}
		needed[iv] = true
	}
	for _, tok := range in.HistoricalIntervals {
		iv, err := interval.Parse(tok)
		if err != nil {
			return nil, fmt.Errorf("requirement: historical interval: %w", err)
		}
		needed[iv] = true
	}
	for _, cfg := range in.Indicators {
		needed[cfg.Interval] = true
	}
	for _, cfg := range in.HistoricalIndicators {
		needed[cfg.Interval] = true
	}
	if len(needed) == 0 {
		return nil, fmt.Errorf("requirement: no intervals declared")
	}

	base, err := resolveBase(in.BaseInterval, needed, cal)
	if err != nil {
		return nil, err
	}
	needed[base] = true

	sorted := sortIntervals(needed, cal)
	for _, iv := range sorted {
		if iv == base {
			continue
		}
		if !reachableFrom(base, iv) {
			return nil, fmt.Errorf("requirement: interval %q is not derivable from base %q", iv, base)
		}
	}

	var stream, derived []interval.Interval
	for _, iv := range sorted {
		if iv == base || in.Available[iv.String()] {
			stream = append(stream, iv)
			continue
		}
		derived = append(derived, iv)
	}

	lookback := make(map[interval.Interval]int)
	for _, cfg := range in.Indicators {
		if err := accumulateLookback(lookback, cfg, base, cal); err != nil {
			return nil, err
		}
	}
	for _, cfg := range in.HistoricalIndicators {
		if err := accumulateLookback(lookback, cfg, base, cal); err != nil {
			return nil, err
		}
	}

	return &Requirements{
		BaseInterval:         base,
		StreamIntervals:      stream,
		DerivedIntervals:     derived,
		HistoricalLookback:   lookback,
		Indicators:           in.Indicators,
		HistoricalIndicators: in.HistoricalIndicators,
	}, nil
}

func resolveBase(declared string, needed map[interval.Interval]bool, cal interval.Calendar) (interval.Interval, error) {
	if declared != "" {
		b, err := interval.Parse(declared)
		if err != nil {
			return interval.Interval{}, fmt.Errorf("requirement: declared base: %w", err)
		}
		if !b.IsBase() {
			return interval.Interval{}, fmt.Errorf("requirement: declared base %q is not a base interval", declared)
		}
		return b, nil
	}

	for _, candidate := range baseCandidates {
		ok := true
		for iv := range needed {
			if iv == candidate {
				continue
			}
			if !reachableFrom(candidate, iv) {
				ok = false
				break
			}
		}
		if ok {
			return candidate, nil
		}
	}
	return interval.Interval{}, fmt.Errorf("requirement: no valid base interval covers the declared intervals")
}

// reachableFrom reports whether target can be built, directly or through a
// chain of derivations, starting from base. Every candidate
// DerivationSourcePriority returns is itself a base-level interval, so one
// hop resolves everything except weeks, which derive from a day that must
// in turn be reachable from base.
func reachableFrom(base, target interval.Interval) bool {
	if base == target {
		return true
	}
	if target.Unit == interval.Week {
		day := interval.Interval{Unit: interval.Day, Value: 1}
		if base == day {
			return true
		}
		return reachableFrom(base, day)
	}
	priority, err := interval.DerivationSourcePriority(target)
	if err != nil {
		return false
	}
	for _, candidate := range priority {
		if candidate == base {
			return true
		}
	}
	return false
}

func accumulateLookback(lookback map[interval.Interval]int, cfg indicator.Config, base interval.Interval, cal interval.Calendar) error {
	ratio, err := ratioToBase(cfg.Interval, base, cal)
	if err != nil {
		return fmt.Errorf("requirement: computing lookback for %s: %w", cfg.Key(), err)
	}
	bars := cfg.WarmupBars() * ratio
	if bars > lookback[cfg.Interval] {
		lookback[cfg.Interval] = bars
	}
	return nil
}

func ratioToBase(iv, base interval.Interval, cal interval.Calendar) (int, error) {
	ivSeconds, err := iv.Seconds(cal)
	if err != nil {
		return 0, err
	}
	baseSeconds, err := base.Seconds(cal)
	if err != nil {
		return 0, err
	}
	if baseSeconds <= 0 {
		return 0, fmt.Errorf("base interval %q has zero duration", base)
	}
	ratio := ivSeconds / baseSeconds
	if ratio < 1 {
		ratio = 1
	}
	return int(ratio), nil
}

func sortIntervals(needed map[interval.Interval]bool, cal interval.Calendar) []interval.Interval {
	out := make([]interval.Interval, 0, len(needed))
	for iv := range needed {
		out = append(out, iv)
	}
	sort.Slice(out, func(i, j int) bool {
		cmp, err := interval.Compare(out[i], out[j], cal)
		if err != nil {
			return out[i].String() < out[j].String()
		}
		return cmp < 0
	})
	return out
}
