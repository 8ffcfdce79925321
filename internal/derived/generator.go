// Package derived implements the derived-bar generator (SPEC_FULL.md
// §4.6): on every base-bar arrival it discovers a symbol's derived
// intervals from the store's self-describing structure and folds them
// through the bar aggregator, with no pushed configuration of its own.
package derived

import (
	"fmt"

	"github.com/barforge/sessionengine/internal/bars"
	"github.com/barforge/sessionengine/internal/interval"
	"github.com/barforge/sessionengine/internal/models"
	"github.com/barforge/sessionengine/internal/store"
	"github.com/barforge/sessionengine/internal/timeservice"
)

// Update is one freshly produced derived bar, reported so callers (the
// indicator manager, quality engine) can react without re-querying the
// store.
type Update struct {
	Interval interval.Interval
	Bar      models.Bar
}

// BarHook is invoked once per newly produced derived bar, in order.
type BarHook func(symbol string, iv interval.Interval, bar models.Bar) error

// Generator is the derived-bar generator. It holds no per-symbol
// configuration; every piece of work is discovered from the store.
type Generator struct {
	store *store.Store
	cal   timeservice.TimeManager
	onBar BarHook
}

// NewGenerator creates a Generator backed by st, using cal for
// calendar-mode (day/week) aggregation.
func NewGenerator(st *store.Store, cal timeservice.TimeManager) *Generator {
	return &Generator{store: st, cal: cal}
}

// SetBarHook installs a callback fired for every new derived bar produced
// (the indicator manager's OnBar, typically). Replaces any previous hook.
func (g *Generator) SetBarHook(hook BarHook) {
	g.onBar = hook
}

// OnBaseBarAppended is called after a new base bar has been appended to
// symbol's base interval. It regenerates every derived interval the store
// currently lists for symbol and returns the bars that were newly
// produced, in interval-then-time order.
func (g *Generator) OnBaseBarAppended(symbol string) ([]Update, error) {
	data := g.store.GetSymbolData(symbol, true)
	if data == nil {
		return nil, models.ErrSymbolNotFound
	}

	base := data.BaseInterval
	baseBD, ok := data.Bars[base]
	if !ok || len(baseBD.Bars) == 0 {
		return nil, nil
	}

	derivedIntervals := g.store.GetSymbolsWithDerived()[symbol]
	if len(derivedIntervals) == 0 {
		return nil, nil
	}

	var updates []Update
	for _, iv := range derivedIntervals {
		existing := 0
		if bd, ok := data.Bars[iv]; ok {
			existing = len(bd.Bars)
		}

		result, err := bars.Aggregate(baseBD.Bars, base, iv, g.cal, optionsFor(base, iv))
		if err != nil {
			return updates, fmt.Errorf("derived: aggregating %s -> %s for %s: %w", base, iv, symbol, err)
		}

		if err := g.store.ReplaceDerivedBars(symbol, iv, base, result.Bars); err != nil {
			return updates, err
		}

		if len(result.Bars) <= existing {
			continue
		}
		for _, b := range result.Bars[existing:] {
			updates = append(updates, Update{Interval: iv, Bar: b})
			if g.onBar != nil {
				if err := g.onBar(symbol, iv, b); err != nil {
					return updates, err
				}
			}
		}
	}

	return updates, nil
}

// optionsFor picks aggregation options appropriate to live, incremental
// generation: fixed-chunk targets (1m -> 5m, ...) must never emit a
// trailing partial chunk — more base bars are still coming this session —
// so completeness and continuity are required. Calendar targets (day,
// week) are allowed to extend in place as the session progresses (an
// early close or a short week is still a valid, if partial, bar).
func optionsFor(base, target interval.Interval) bars.Options {
	if bars.SelectMode(base, target) == bars.FixedChunk {
		return bars.Options{RequireComplete: true, CheckContinuity: true}
	}
	return bars.Options{RequireComplete: false}
}
