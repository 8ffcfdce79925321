package interval

import "fmt"

// DerivationSourcePriority returns the ordered list of acceptable source
// intervals for target, most preferred first, per the rules:
//
//   - sub-minute targets (second units with value > 1) derive only from 1s.
//   - minute targets prefer 1m, fall back to 1s.
//   - day targets prefer 1d, else 1m, else 1s.
//   - week targets derive only from 1d. A week over a 1m base goes through
//     an intermediate 1d step, which the requirement analyzer resolves
//     transitively; CanDerive itself reports 1m -> 1w as not derivable.
func DerivationSourcePriority(target Interval) ([]Interval, error) {
	oneSecond := Interval{Unit: Second, Value: 1}
	oneMinute := Interval{Unit: Minute, Value: 1}
	oneDay := Interval{Unit: Day, Value: 1}

	switch target.Unit {
	case Second:
		if target.Value == 1 {
			// 1s is itself a base interval; nothing derives it except a
			// tick stream, which is handled outside the interval algebra.
			return nil, nil
		}
		return []Interval{oneSecond}, nil
	case Minute:
		return []Interval{oneMinute, oneSecond}, nil
	case Day:
		return []Interval{oneDay, oneMinute, oneSecond}, nil
	case Week:
		return []Interval{oneDay}, nil
	default:
		return nil, fmt.Errorf("interval: unknown unit %q in target %q", target.Unit, target)
	}
}

// CanDerive reports whether target can be derived from source, and if not,
// why. It requires source.Seconds() < target.Seconds() and that source
// appears in target's derivation-source priority list (or, for weeks,
// that source is a day interval — week-from-day is always legal since the
// CALENDAR aggregator mode resolves ISO-week grouping itself).
func CanDerive(source, target Interval, cal Calendar) (bool, string) {
	sourceSeconds, err := source.Seconds(cal)
	if err != nil {
		return false, err.Error()
	}
	targetSeconds, err := target.Seconds(cal)
	if err != nil {
		return false, err.Error()
	}
	if sourceSeconds >= targetSeconds {
		return false, fmt.Sprintf("source %q is not strictly shorter than target %q", source, target)
	}

	if target.Unit == Week {
		if source.Unit == Day {
			return true, ""
		}
		return false, fmt.Sprintf("week target %q can only derive from a day interval, got %q", target, source)
	}

	priority, err := DerivationSourcePriority(target)
	if err != nil {
		return false, err.Error()
	}
	for _, candidate := range priority {
		if candidate == source {
			return true, ""
		}
	}
	return false, fmt.Sprintf("interval %q is not an acceptable source for target %q", source, target)
}

// ChooseBase picks the best available source for target out of the
// available bases, in priority order. It returns false if none qualify.
func ChooseBase(target Interval, available []Interval, cal Calendar) (Interval, bool) {
	priority, err := DerivationSourcePriority(target)
	if err != nil {
		return Interval{}, false
	}
	avail := make(map[Interval]bool, len(available))
	for _, a := range available {
		avail[a] = true
	}
	for _, candidate := range priority {
		if avail[candidate] {
			if ok, _ := CanDerive(candidate, target, cal); ok {
				return candidate, true
			}
		}
	}
	if target.Unit == Week {
		for _, a := range available {
			if a.Unit == Day {
				return a, true
			}
		}
	}
	return Interval{}, false
}
