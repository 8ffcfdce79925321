package store

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/barforge/sessionengine/internal/interval"
	"github.com/barforge/sessionengine/internal/models"
	"github.com/barforge/sessionengine/internal/quality"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeSymbolsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_symbols_active",
			Help: "Number of symbols currently registered in the session store",
		},
	)

	storeBarsAppendedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_bars_appended_total",
			Help: "Total number of bars appended to the session store",
		},
		[]string{"interval", "derived"},
	)

	storeQualityUpdatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_quality_updates_total",
			Help: "Total number of quality/gap updates written to the session store",
		},
	)

	storeReadsBlockedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_reads_blocked_total",
			Help: "Total number of external reads blocked because the session is inactive",
		},
	)

	storeIndicatorUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_indicator_updates_total",
			Help: "Total number of indicator value writes to the session store",
		},
		[]string{"valid"},
	)
)

// Store is the session data store described in SPEC_FULL.md §4.3: a
// single shared map of symbol -> SymbolSessionData, gated for external
// readers by session_active, with internal callers bypassing the gate.
type Store struct {
	mu            sync.RWMutex
	symbols       map[string]*SymbolSessionData
	sessionActive bool
	sessionDate   time.Time
	ticksCap      int
}

// New creates an empty, inactive store. ticksCap sets the per-symbol tick
// ring buffer capacity (0 disables tick retention).
func New(ticksCap int) *Store {
	return &Store{
		symbols:  make(map[string]*SymbolSessionData),
		ticksCap: ticksCap,
	}
}

// RegisterSymbolData inserts symbolData, failing if the symbol already
// exists.
func (s *Store) RegisterSymbolData(data *SymbolSessionData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.symbols[data.Symbol]; exists {
		return models.ErrDuplicateSymbol
	}
	s.symbols[data.Symbol] = data
	storeSymbolsActive.Set(float64(len(s.symbols)))
	return nil
}

// RemoveSymbol atomically deletes symbol's data. The caller is
// responsible for draining any outstanding work (indicator warmup,
// in-flight derived-bar generation) before calling this.
func (s *Store) RemoveSymbol(symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.symbols[symbol]; !exists {
		return models.ErrSymbolNotFound
	}
	delete(s.symbols, symbol)
	storeSymbolsActive.Set(float64(len(s.symbols)))
	return nil
}

// GetSymbolData returns symbol's data. External callers (internal=false)
// receive nil whenever the session is inactive, regardless of whether the
// symbol exists — this is the gate that hides half-provisioned state from
// strategies. Internal callers (coordinator, derived generator, quality
// engine, indicator manager) pass internal=true to bypass it.
func (s *Store) GetSymbolData(symbol string, internal bool) *SymbolSessionData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !internal && !s.sessionActive {
		storeReadsBlockedTotal.Inc()
		return nil
	}
	return s.symbols[symbol]
}

// GetActiveSymbols returns a snapshot of the registered symbol set. This
// is always exactly keys(symbols) — there is no parallel tracking set.
func (s *Store) GetActiveSymbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.symbols))
	for sym := range s.symbols {
		out = append(out, sym)
	}
	return out
}

// GetSymbolsWithDerived returns, for every registered symbol, the list of
// intervals marked derived — the derived-bar generator's query of record.
func (s *Store) GetSymbolsWithDerived() map[string][]interval.Interval {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]interval.Interval, len(s.symbols))
	for sym, data := range s.symbols {
		var derived []interval.Interval
		for iv, bd := range data.Bars {
			if bd.Derived {
				derived = append(derived, iv)
			}
		}
		if len(derived) > 0 {
			out[sym] = derived
		}
	}
	return out
}

// AppendBaseBar appends bar to symbol's base interval, updating session
// metrics. It is a no-op error if symbol is not registered.
func (s *Store) AppendBaseBar(symbol string, bar models.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.symbols[symbol]
	if !ok {
		return models.ErrSymbolNotFound
	}
	bd, ok := data.Bars[data.BaseInterval]
	if !ok {
		bd = &BarIntervalData{Derived: false}
		data.Bars[data.BaseInterval] = bd
	}
	bd.Bars = append(bd.Bars, bar)
	bd.Updated = true

	s.applyMetrics(data, bar)
	storeBarsAppendedTotal.WithLabelValues(data.BaseInterval.String(), "false").Inc()
	return nil
}

// InsertBaseBarSorted splices bar into symbol's base interval at the
// position that keeps the series in strictly increasing timestamp order,
// replacing any existing bar at the same timestamp. Used by the live gap
// filler to repair a bar discovered after later bars have already
// streamed in, where a plain append would violate the series' ordering
// invariant.
func (s *Store) InsertBaseBarSorted(symbol string, bar models.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.symbols[symbol]
	if !ok {
		return models.ErrSymbolNotFound
	}
	bd, ok := data.Bars[data.BaseInterval]
	if !ok {
		bd = &BarIntervalData{Derived: false}
		data.Bars[data.BaseInterval] = bd
	}

	idx := sort.Search(len(bd.Bars), func(i int) bool {
		return !bd.Bars[i].Timestamp.Before(bar.Timestamp)
	})
	if idx < len(bd.Bars) && bd.Bars[idx].Timestamp.Equal(bar.Timestamp) {
		bd.Bars[idx] = bar
	} else {
		bd.Bars = append(bd.Bars, models.Bar{})
		copy(bd.Bars[idx+1:], bd.Bars[idx:])
		bd.Bars[idx] = bar
	}
	bd.Updated = true

	s.applyMetrics(data, bar)
	storeBarsAppendedTotal.WithLabelValues(data.BaseInterval.String(), "false").Inc()
	return nil
}

// AppendDerivedBars appends bars to symbol's derived interval iv, marking
// it derived from base if not already present.
func (s *Store) AppendDerivedBars(symbol string, iv interval.Interval, base interval.Interval, bars []models.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.symbols[symbol]
	if !ok {
		return models.ErrSymbolNotFound
	}
	bd, ok := data.Bars[iv]
	if !ok {
		baseCopy := base
		bd = &BarIntervalData{Derived: true, Base: &baseCopy}
		data.Bars[iv] = bd
	}
	bd.Bars = append(bd.Bars, bars...)
	bd.Updated = true
	storeBarsAppendedTotal.WithLabelValues(iv.String(), "true").Add(float64(len(bars)))
	return nil
}

// ReplaceDerivedBars overwrites symbol's iv interval with bars, replacing
// whatever was previously recorded. The aggregator is a pure function of
// the full base window, so the derived-bar generator recomputes the whole
// derived series on every base-bar arrival instead of trying to patch one
// bar at a time; this is the simplest way to guarantee "derived bars are
// exactly the aggregator's output of the base bars" holds at every point
// in the session, including calendar-mode bars that keep extending in
// place (e.g. the current day's partial daily bar) rather than only ever
// appending.
func (s *Store) ReplaceDerivedBars(symbol string, iv interval.Interval, base interval.Interval, bars []models.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.symbols[symbol]
	if !ok {
		return models.ErrSymbolNotFound
	}
	bd, ok := data.Bars[iv]
	if !ok {
		baseCopy := base
		bd = &BarIntervalData{Derived: true, Base: &baseCopy}
		data.Bars[iv] = bd
	}
	added := len(bars) - len(bd.Bars)
	bd.Bars = bars
	bd.Updated = true
	if added > 0 {
		storeBarsAppendedTotal.WithLabelValues(iv.String(), "true").Add(float64(added))
	}
	return nil
}

// EnsureInterval creates symbol's iv bar bucket if it doesn't already
// exist (Derived/Base set as given), and is a no-op otherwise — the
// idempotent primitive the provisioning pipeline's add_interval step
// builds on.
func (s *Store) EnsureInterval(symbol string, iv interval.Interval, derived bool, base interval.Interval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.symbols[symbol]
	if !ok {
		return models.ErrSymbolNotFound
	}
	if _, exists := data.Bars[iv]; exists {
		return nil
	}
	bd := &BarIntervalData{Derived: derived}
	if derived {
		baseCopy := base
		bd.Base = &baseCopy
	}
	data.Bars[iv] = bd
	return nil
}

func (s *Store) applyMetrics(data *SymbolSessionData, bar models.Bar) {
	if !s.sessionActive {
		return
	}
	m := &data.Metrics
	if m.LastUpdateTime.IsZero() {
		m.High = bar.High
		m.Low = bar.Low
	} else {
		if bar.High > m.High {
			m.High = bar.High
		}
		if bar.Low < m.Low {
			m.Low = bar.Low
		}
	}
	m.Volume += bar.Volume
	m.LastUpdateTime = bar.Timestamp
}

// AppendTick records a tick into symbol's bounded ring buffer, if enabled.
func (s *Store) AppendTick(symbol string, tick models.Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.symbols[symbol]
	if !ok {
		return models.ErrSymbolNotFound
	}
	data.appendTick(tick)
	return nil
}

// SetQuote overwrites symbol's latest bid/ask snapshot (synthesized from a
// bar's close in backtest, or received directly from the live provider).
func (s *Store) SetQuote(symbol string, q QuoteState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.symbols[symbol]
	if !ok {
		return models.ErrSymbolNotFound
	}
	data.Quotes = &q
	return nil
}

// SetQuality sets the quality figure and gap list for symbol's interval.
func (s *Store) SetQuality(symbol string, iv interval.Interval, pct float64, gaps []quality.Gap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.symbols[symbol]
	if !ok {
		return models.ErrSymbolNotFound
	}
	bd, ok := data.Bars[iv]
	if !ok {
		return models.ErrIntervalNotFound
	}
	bd.Quality = pct
	bd.Gaps = gaps
	storeQualityUpdatesTotal.Inc()
	return nil
}

// SetUpdated sets or clears the updated flag for symbol's interval, the
// read-and-clear mechanism observers use to detect new bars.
func (s *Store) SetUpdated(symbol string, iv interval.Interval, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.symbols[symbol]
	if !ok {
		return models.ErrSymbolNotFound
	}
	bd, ok := data.Bars[iv]
	if !ok {
		return models.ErrIntervalNotFound
	}
	bd.Updated = value
	return nil
}

// ActivateSession opens the external-read gate.
func (s *Store) ActivateSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionActive = true
}

// DeactivateSession closes the external-read gate.
func (s *Store) DeactivateSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionActive = false
}

// SessionActive reports the current gate state.
func (s *Store) SessionActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionActive
}

// SetSessionDate records the current trading date (phase 0 bookkeeping).
func (s *Store) SetSessionDate(date time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionDate = date
}

// SessionDate returns the current trading date.
func (s *Store) SessionDate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionDate
}

// SetIndicator writes (or replaces in place) one indicator's data for
// symbol under key. Re-registering an existing key overwrites it; indicator
// keys are unique per symbol.
func (s *Store) SetIndicator(symbol, key string, data IndicatorData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sym, ok := s.symbols[symbol]
	if !ok {
		return models.ErrSymbolNotFound
	}
	sym.Indicators[key] = &data
	storeIndicatorUpdatesTotal.WithLabelValues(strconv.FormatBool(data.Valid)).Inc()
	return nil
}

// GetIndicatorValue returns the named field of symbol's key indicator (or
// its scalar, when field is empty), or (0, false) if the symbol/key is
// absent, not yet warmed up, or multi-valued without a field name.
// External callers (internal=false) always receive (0, false) while the
// session is inactive.
func (s *Store) GetIndicatorValue(symbol, key, field string, internal bool) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !internal && !s.sessionActive {
		return 0, false
	}
	sym, ok := s.symbols[symbol]
	if !ok {
		return 0, false
	}
	ind, ok := sym.Indicators[key]
	if !ok || !ind.Valid {
		return 0, false
	}
	if field == "" {
		if ind.Current.Fields != nil {
			return 0, false
		}
		return ind.Current.Scalar, true
	}
	v, ok := ind.Current.Fields[field]
	return v, ok
}

// IsIndicatorReady reports whether symbol's key indicator has completed
// warmup. External callers receive false while the session is inactive.
func (s *Store) IsIndicatorReady(symbol, key string, internal bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !internal && !s.sessionActive {
		return false
	}
	sym, ok := s.symbols[symbol]
	if !ok {
		return false
	}
	ind, ok := sym.Indicators[key]
	return ok && ind.Valid
}

// GetAllIndicators returns a snapshot of symbol's indicators, optionally
// filtered by typ (pass "" for every type). External callers receive an
// empty map while the session is inactive.
func (s *Store) GetAllIndicators(symbol string, typ IndicatorType, internal bool) map[string]IndicatorData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]IndicatorData)
	if !internal && !s.sessionActive {
		return out
	}
	sym, ok := s.symbols[symbol]
	if !ok {
		return out
	}
	for k, v := range sym.Indicators {
		if typ != "" && v.Type != typ {
			continue
		}
		out[k] = *v
	}
	return out
}

// HasSymbol reports whether symbol is registered, regardless of session
// activity — provisioning uses this to decide create_symbol vs. reuse.
func (s *Store) HasSymbol(symbol string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.symbols[symbol]
	return ok
}

// SetProvisioningMeta overwrites symbol's provisioning record (how and why
// it entered the store, whether it meets full session requirements).
func (s *Store) SetProvisioningMeta(symbol string, meta ProvisioningMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.symbols[symbol]
	if !ok {
		return models.ErrSymbolNotFound
	}
	data.Provisioning = meta
	return nil
}

// MarkDegraded flags symbol as degraded with reason, leaving the rest of
// its provisioning record untouched — used when a non-critical
// provisioning step fails but the symbol can still stream.
func (s *Store) MarkDegraded(symbol, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.symbols[symbol]
	if !ok {
		return models.ErrSymbolNotFound
	}
	data.Provisioning.Degraded = true
	data.Provisioning.DegradedReason = reason
	return nil
}

// SetHistoricalBars records symbol's prior-day bars for iv under date
// (YYYY-MM-DD), the warmup and historical-indicator source window.
func (s *Store) SetHistoricalBars(symbol string, iv interval.Interval, date string, bars []models.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.symbols[symbol]
	if !ok {
		return models.ErrSymbolNotFound
	}
	byDate, ok := data.Historical.Bars[iv]
	if !ok {
		byDate = make(map[string][]models.Bar)
		data.Historical.Bars[iv] = byDate
	}
	byDate[date] = bars
	return nil
}

// GetHistoricalBars returns every bar recorded for symbol's iv across all
// retained dates, oldest date first, flattened into one warmup window.
func (s *Store) GetHistoricalBars(symbol string, iv interval.Interval) []models.Bar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.symbols[symbol]
	if !ok {
		return nil
	}
	byDate, ok := data.Historical.Bars[iv]
	if !ok {
		return nil
	}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	var out []models.Bar
	for _, d := range dates {
		out = append(out, byDate[d]...)
	}
	return out
}

// ClearAll removes every symbol's data — phase 0 teardown for a new
// trading day. No state persists across days.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbols = make(map[string]*SymbolSessionData)
	storeSymbolsActive.Set(0)
}
