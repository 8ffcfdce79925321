// Package store implements the session data store: the single shared
// in-memory model every other component reads from and writes into.
// Mutation goes through the exported operations only — nothing outside
// this package touches the maps directly — so the invariants in
// SPEC_FULL.md §3 (one base interval per symbol, derived/base consistency,
// the active-symbols set being exactly the key set) hold everywhere.
package store

import (
	"time"

	"github.com/barforge/sessionengine/internal/interval"
	"github.com/barforge/sessionengine/internal/models"
	"github.com/barforge/sessionengine/internal/quality"
)

// IndicatorType classifies an IndicatorData entry.
type IndicatorType string

const (
	IndicatorTrend            IndicatorType = "trend"
	IndicatorMomentum         IndicatorType = "momentum"
	IndicatorVolatility       IndicatorType = "volatility"
	IndicatorVolume           IndicatorType = "volume"
	IndicatorSupportResistance IndicatorType = "support_resistance"
	IndicatorHistorical       IndicatorType = "historical"
)

// QuoteState is the latest bid/ask snapshot for a symbol.
type QuoteState struct {
	Bid        float64
	Ask        float64
	BidSize    int64
	AskSize    int64
	LastUpdate time.Time
}

// BarIntervalData holds one symbol's bars at one interval, plus the
// quality/derivation metadata that the store (and only the store) owns.
type BarIntervalData struct {
	Bars    []models.Bar
	Derived bool
	Base    *interval.Interval // nil when Derived is false
	Quality float64
	Gaps    []quality.Gap
	Updated bool // set on new bars; observers may read-and-clear
}

// SessionMetrics accumulates cumulative per-symbol figures for the
// current trading session.
type SessionMetrics struct {
	Volume         int64
	High           float64
	Low            float64
	LastUpdateTime time.Time
}

// IndicatorValue is either a single scalar (Fields nil) or a mapping of
// named fields (e.g. Bollinger Bands -> upper/middle/lower).
type IndicatorValue struct {
	Scalar float64
	Fields map[string]float64
}

// IndicatorData is the manager's record for one (symbol, key) pair.
type IndicatorData struct {
	Name        string
	Type        IndicatorType
	Interval    interval.Interval
	Current     IndicatorValue
	LastUpdated time.Time
	Valid       bool // warmup complete
	CarryState  interface{}
}

// HistoricalData holds the rolling prior-days bars and indicators used for
// warmup and historical-context indicators (Avg Volume, Avg Range, ...).
type HistoricalData struct {
	Bars       map[interval.Interval]map[string][]models.Bar // interval -> date(YYYY-MM-DD) -> bars
	Indicators map[string]IndicatorData
}

// ProvisioningMeta records how and why a symbol entered the store.
type ProvisioningMeta struct {
	MeetsSessionConfigRequirements bool
	AutoProvisioned                bool
	UpgradedFromAdhoc              bool
	AddedBy                        string
	AddedAt                        time.Time
	Degraded                       bool
	DegradedReason                 string
}

// SymbolSessionData is the hub record for one symbol: its base and
// derived bars, indicators, session metrics, historical window, and
// quote/tick containers.
type SymbolSessionData struct {
	Symbol       string
	BaseInterval interval.Interval
	Bars         map[interval.Interval]*BarIntervalData
	Indicators   map[string]*IndicatorData
	Metrics      SessionMetrics
	Historical   HistoricalData
	Quotes       *QuoteState
	Ticks        []models.Tick // bounded ring buffer, capacity 0 = disabled
	ticksCap     int
	Provisioning ProvisioningMeta
}

// NewSymbolSessionData creates an empty record for symbol at baseInterval.
// ticksCap of 0 disables tick retention.
func NewSymbolSessionData(symbol string, baseInterval interval.Interval, ticksCap int) *SymbolSessionData {
	return &SymbolSessionData{
		Symbol:       symbol,
		BaseInterval: baseInterval,
		Bars: map[interval.Interval]*BarIntervalData{
			baseInterval: {Derived: false},
		},
		Indicators: make(map[string]*IndicatorData),
		Historical: HistoricalData{
			Bars:       make(map[interval.Interval]map[string][]models.Bar),
			Indicators: make(map[string]IndicatorData),
		},
		ticksCap: ticksCap,
	}
}

func (s *SymbolSessionData) appendTick(t models.Tick) {
	if s.ticksCap <= 0 {
		return
	}
	s.Ticks = append(s.Ticks, t)
	if len(s.Ticks) > s.ticksCap {
		copy(s.Ticks, s.Ticks[1:])
		s.Ticks = s.Ticks[:s.ticksCap]
	}
}
