package coordinator

import (
	"time"

	"github.com/barforge/sessionengine/internal/indicator"
)

// Mode selects the coordinator's operating mode.
type Mode string

const (
	ModeBacktest Mode = "backtest"
	ModeLive     Mode = "live"
)

// GapFillerConfig controls retry-driven repair of quality gaps left behind
// by a provider timeout or a missing historical bar.
type GapFillerConfig struct {
	Enabled       bool
	MaxRetries    int
	RetryInterval time.Duration
}

// SessionRequirements is the per-session data requirement declaration from
// configuration: the symbol list and the bars/indicators every one of them
// gets, applied uniformly at phase 2.
type SessionRequirements struct {
	Symbols []string

	SessionIntervals    []string
	HistoricalIntervals []string
	HistoricalDays      int

	SessionIndicators    []indicator.Config
	HistoricalIndicators []indicator.Config

	GapFiller GapFillerConfig
}

// Config is the coordinator's full configuration, ingested once at start.
type Config struct {
	Mode Mode

	// BacktestStart/BacktestEnd bound a backtest run (inclusive); BacktestEnd
	// is ignored in live mode, where the day loop runs until ctx is done.
	BacktestStart time.Time
	BacktestEnd   time.Time

	// SpeedMultiplier selects clock-driven streaming when > 0 (backtest
	// only); 0 selects data-driven streaming. Ignored in live mode, which is
	// always driven by provider arrival.
	SpeedMultiplier float64

	Session SessionRequirements

	// LagThreshold/LagCheckEvery configure the lag watchdog: every
	// LagCheckEvery delivered bars, any active symbol whose latest bar lags
	// the current time by more than LagThreshold trips a deactivate/
	// catch-up/reactivate cycle. Either being zero disables the watchdog.
	LagThreshold  time.Duration
	LagCheckEvery int

	// TicksCap sizes the store's per-symbol tick ring buffer (0 disables
	// tick retention — the coordinator never needs ticks itself, only the
	// store's bar/indicator path, so this is typically left at 0).
	TicksCap int
}
