// Package indicator implements the session-facing indicator manager
// described in SPEC_FULL.md §4.4: it owns a per-(symbol, interval)
// calculator state built on pkg/indicator, replays historical bars for
// warmup, updates calculators on bar arrival, and writes the results into
// the session store's IndicatorData records. Strategy-facing reads go
// directly through the store's accessors (GetIndicatorValue,
// IsIndicatorReady, GetAllIndicators) — the manager is write-path only.
package indicator

import (
	"fmt"
	"sync"
	"time"

	"github.com/barforge/sessionengine/internal/interval"
	"github.com/barforge/sessionengine/internal/models"
	"github.com/barforge/sessionengine/internal/store"
	"github.com/barforge/sessionengine/internal/timeservice"
	pkgindicator "github.com/barforge/sessionengine/pkg/indicator"
)

// WarmupMultiplier is how many multiples of an indicator's period are
// replayed from history before it is considered warmed up, per
// SPEC_FULL.md §4.4 ("period * warmup_multiplier ~= 2").
const WarmupMultiplier = 2

// MinWarmupBars is the floor applied to period-less indicators (VWAP, OBV,
// PVT, Pivot Points, Gap Stats) when computing a warmup window.
const MinWarmupBars = 20

// Config declares one indicator registration: its family name (dispatched
// in factory.go), period (ignored by period-less indicators), the
// interval whose bars feed it, and its store classification. Optional
// fields tune indicators whose formula needs more than one number.
type Config struct {
	Name              string
	Period            int
	Interval          interval.Interval
	Type              store.IndicatorType
	Multiplier        float64 // Bollinger Bands / Keltner Channels band width
	MACDParams        []int   // [fast, slow, signal], overrides Period-derived defaults
	StochasticDPeriod int
	PeriodsPerYear    float64 // HistoricalVol annualization factor
}

// Key renders the canonical indicator key: "name_period_interval" when
// Period is set, "name_interval" otherwise (e.g. vwap has no period).
func (c Config) Key() string {
	if c.Period > 0 {
		return fmt.Sprintf("%s_%d_%s", c.Name, c.Period, c.Interval)
	}
	return fmt.Sprintf("%s_%s", c.Name, c.Interval)
}

// WarmupBars returns how many historical bars of c.Interval should be
// replayed before session start so the indicator emits a valid value
// immediately.
func (c Config) WarmupBars() int {
	if c.Period > 0 {
		return c.Period * WarmupMultiplier
	}
	return MinWarmupBars
}

type registration struct {
	cfg      Config
	calcName string
}

// Manager owns the live calculator state for every registered indicator
// and is the only writer of store.IndicatorData.
type Manager struct {
	mu      sync.Mutex
	store   *store.Store
	cal     timeservice.TimeManager
	maxBars int

	states map[string]map[string]*pkgindicator.SymbolState // symbol -> interval token -> state
	regs   map[string]map[string]registration               // symbol -> key -> registration
}

// NewManager creates a Manager backed by st, using cal to size techan
// candle periods, retaining up to maxBars per (symbol, interval) window.
func NewManager(st *store.Store, cal timeservice.TimeManager, maxBars int) *Manager {
	return &Manager{
		store:   st,
		cal:     cal,
		maxBars: maxBars,
		states:  make(map[string]map[string]*pkgindicator.SymbolState),
		regs:    make(map[string]map[string]registration),
	}
}

func (m *Manager) stateFor(symbol string, iv interval.Interval) *pkgindicator.SymbolState {
	m.mu.Lock()
	defer m.mu.Unlock()
	bySym, ok := m.states[symbol]
	if !ok {
		bySym = make(map[string]*pkgindicator.SymbolState)
		m.states[symbol] = bySym
	}
	token := iv.String()
	st, ok := bySym[token]
	if !ok {
		st = pkgindicator.NewSymbolState(symbol, m.maxBars)
		bySym[token] = st
	}
	return st
}

func (m *Manager) candlePeriod(iv interval.Interval) time.Duration {
	seconds, err := iv.Seconds(m.cal)
	if err != nil || seconds <= 0 {
		return time.Minute
	}
	return time.Duration(seconds) * time.Second
}

// Register creates (or, for an existing key, replaces in place) the
// calculator for cfg under symbol, replaying history for warmup and
// writing the first result into the store.
func (m *Manager) Register(symbol string, cfg Config, history []models.Bar) error {
	calc, err := newCalculator(cfg, m.candlePeriod(cfg.Interval))
	if err != nil {
		return fmt.Errorf("indicator: registering %q for %s: %w", cfg.Key(), symbol, err)
	}

	key := cfg.Key()
	state := m.stateFor(symbol, cfg.Interval)
	state.RemoveCalculator(calc.Name())
	state.AddCalculator(calc)

	m.mu.Lock()
	bySym, ok := m.regs[symbol]
	if !ok {
		bySym = make(map[string]registration)
		m.regs[symbol] = bySym
	}
	bySym[key] = registration{cfg: cfg, calcName: calc.Name()}
	m.mu.Unlock()

	for _, bar := range history {
		_, _ = calc.Update(bar)
	}

	return m.writeResult(symbol, key, cfg, state, calc.Name())
}

// Unregister removes symbol's key indicator entirely (used when a symbol
// or interval is torn down).
func (m *Manager) Unregister(symbol, key string) {
	m.mu.Lock()
	reg, ok := m.regs[symbol][key]
	if ok {
		delete(m.regs[symbol], key)
	}
	m.mu.Unlock()
	if ok {
		if state, exists := m.states[symbol][reg.cfg.Interval.String()]; exists {
			state.RemoveCalculator(reg.calcName)
		}
	}
}

// OnBar updates every indicator registered on (symbol, iv) with bar and
// writes the refreshed results into the store. Called by the coordinator
// after a base bar append and by the derived-bar generator after each
// derived bar append — the manager never cares which.
func (m *Manager) OnBar(symbol string, iv interval.Interval, bar models.Bar) error {
	state := m.stateFor(symbol, iv)
	if err := state.Update(bar); err != nil {
		return err
	}

	m.mu.Lock()
	var matching []struct {
		key string
		reg registration
	}
	for key, reg := range m.regs[symbol] {
		if reg.cfg.Interval == iv {
			matching = append(matching, struct {
				key string
				reg registration
			}{key, reg})
		}
	}
	m.mu.Unlock()

	for _, item := range matching {
		if err := m.writeResult(symbol, item.key, item.reg.cfg, state, item.reg.calcName); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) writeResult(symbol, key string, cfg Config, state *pkgindicator.SymbolState, calcName string) error {
	val, _ := state.GetValue(calcName)
	ready := state.IsReady(calcName)

	return m.store.SetIndicator(symbol, key, store.IndicatorData{
		Name:        cfg.Name,
		Type:        cfg.Type,
		Interval:    cfg.Interval,
		Current:     store.IndicatorValue{Scalar: val.Scalar, Fields: val.Fields},
		LastUpdated: state.GetLastUpdate(),
		Valid:       ready,
	})
}
