// Package coordinator implements the session coordinator (SPEC_FULL.md
// §4.9): the per-day state machine that drives the store through
// pre-session cleanup, provisioning, priming, activation, streaming, and
// post-session teardown, in both backtest and live mode. It is grounded on
// the teacher's scan loop: a ticker-driven run loop behind Start/Stop,
// built from collaborators supplied at construction rather than reached
// for globally.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/barforge/sessionengine/internal/derived"
	"github.com/barforge/sessionengine/internal/indicator"
	"github.com/barforge/sessionengine/internal/interval"
	"github.com/barforge/sessionengine/internal/liveprovider"
	"github.com/barforge/sessionengine/internal/models"
	"github.com/barforge/sessionengine/internal/notify"
	"github.com/barforge/sessionengine/internal/provisioning"
	"github.com/barforge/sessionengine/internal/quality"
	"github.com/barforge/sessionengine/internal/requirement"
	"github.com/barforge/sessionengine/internal/store"
	"github.com/barforge/sessionengine/internal/timeservice"
	"github.com/barforge/sessionengine/pkg/logger"
	"go.uber.org/zap"
)

// PreSessionHook runs once per day in phase 1, after first-day system
// validation, before provisioning. Scanner-style hooks that mutate the
// store before the session activates are registered here.
type PreSessionHook func(ctx context.Context) error

// Deps bundles the coordinator's collaborators. Historical is required in
// backtest mode (priming and catch-up both read through it); Live is
// required in live mode. Bus may be nil — the coordinator simply stops
// publishing notifications.
type Deps struct {
	Store      *store.Store
	Pipeline   *provisioning.Pipeline
	Generator  *derived.Generator
	Indicators *indicator.Manager
	Calendar   timeservice.TimeManager
	Historical provisioning.HistoricalSource
	Live       liveprovider.Provider
	Bus        notify.Bus
}

type insertRequest struct {
	symbol string
	resp   chan error
}

type symbolBar struct {
	symbol string
	bar    models.Bar
}

// Stats holds running counters for one coordinator's lifetime.
type Stats struct {
	mu            sync.RWMutex
	DaysRun       int64
	BarsDelivered int64
	Deactivations int64
}

// Coordinator drives the day loop described in SPEC_FULL.md §4.9.
type Coordinator struct {
	cfg  Config
	deps Deps

	mu                sync.Mutex
	stopCh            chan struct{}
	stopped           bool
	preSessionHooks   []PreSessionHook
	pending           chan insertRequest
	liveBarCh         chan symbolBar
	liveCancel        map[string]context.CancelFunc
	gapFillersActive  map[string]bool
	barsSinceLagCheck int

	stats Stats
}

// New creates a Coordinator. It panics if a collaborator the configured
// mode requires is missing — the same "fail fast on a nil dependency"
// discipline the rest of this codebase uses at construction time.
func New(cfg Config, deps Deps) *Coordinator {
	if deps.Store == nil {
		panic("coordinator: store cannot be nil")
	}
	if deps.Pipeline == nil {
		panic("coordinator: pipeline cannot be nil")
	}
	if deps.Generator == nil {
		panic("coordinator: generator cannot be nil")
	}
	if deps.Indicators == nil {
		panic("coordinator: indicators cannot be nil")
	}
	if deps.Calendar == nil {
		panic("coordinator: calendar cannot be nil")
	}
	if cfg.Mode == ModeBacktest && deps.Historical == nil {
		panic("coordinator: backtest mode requires a historical source")
	}
	if cfg.Mode == ModeLive && deps.Live == nil {
		panic("coordinator: live mode requires a live provider")
	}

	c := &Coordinator{
		cfg:              cfg,
		deps:             deps,
		stopCh:           make(chan struct{}),
		pending:          make(chan insertRequest, 32),
		liveBarCh:        make(chan symbolBar, 1024),
		liveCancel:       make(map[string]context.CancelFunc),
		gapFillersActive: make(map[string]bool),
	}
	deps.Generator.SetBarHook(func(symbol string, iv interval.Interval, bar models.Bar) error {
		return c.onDerivedBar(symbol, iv, bar)
	})
	return c
}

// AddPreSessionHook registers hook to run every day in phase 1.
func (c *Coordinator) AddPreSessionHook(hook PreSessionHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.preSessionHooks = append(c.preSessionHooks, hook)
}

// Stop requests the day loop exit at the next phase boundary or streaming
// suspension point.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	close(c.stopCh)
}

// Stats returns a snapshot of the coordinator's running counters.
func (c *Coordinator) Stats() Stats {
	c.stats.mu.RLock()
	defer c.stats.mu.RUnlock()
	return Stats{DaysRun: c.stats.DaysRun, BarsDelivered: c.stats.BarsDelivered, Deactivations: c.stats.Deactivations}
}

// RequestAddSymbol is the strategy-facing mid-session insertion call. In
// backtest mode it enqueues the request for the streaming loop to pick up
// between ticks and blocks until processed; in live mode it runs the
// provisioning/subscribe flow directly, per SPEC_FULL.md §4.9.
func (c *Coordinator) RequestAddSymbol(ctx context.Context, symbol string) error {
	if c.cfg.Mode == ModeLive {
		return c.addSymbolLive(ctx, symbol)
	}

	resp := make(chan error, 1)
	select {
	case c.pending <- insertRequest{symbol: symbol, resp: resp}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the day loop until ctx is cancelled, Stop is called, or (in
// backtest mode) the configured end date is passed.
func (c *Coordinator) Run(ctx context.Context) error {
	first := true
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return nil
		default:
		}

		cont, err := c.runDay(ctx, first)
		if err != nil {
			logger.Get().Error("coordinator: day failed", zap.Error(err))
			return err
		}
		if !cont {
			return nil
		}
		first = false
	}
}

func (c *Coordinator) runDay(ctx context.Context, firstDay bool) (bool, error) {
	sessionDate, ok, err := c.phase0(firstDay)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	sess := c.deps.Calendar.GetTradingSession(sessionDate)

	if err := c.phase1(ctx, firstDay); err != nil {
		return false, err
	}

	active, err := c.phase2(ctx)
	if err != nil {
		return false, err
	}
	if len(active) == 0 {
		return false, fmt.Errorf("coordinator: every configured symbol failed provisioning on %s", sessionDate.Format("2006-01-02"))
	}

	queues, err := c.phase3(ctx, active, sess)
	if err != nil {
		return false, err
	}

	c.phase4()

	streamErr := c.phase5(ctx, sess, queues)
	c.phase6(ctx)
	if streamErr != nil {
		return false, streamErr
	}

	c.stats.mu.Lock()
	c.stats.DaysRun++
	c.stats.mu.Unlock()
	return true, nil
}

// phase0 clears the store and advances the simulated clock to the next
// trading day's open. The very first call anchors on BacktestStart minus
// one day, so the first session lands on BacktestStart itself when it is a
// trading date (live callers set BacktestStart to today's date for the
// same effect on today).
func (c *Coordinator) phase0(firstDay bool) (time.Time, bool, error) {
	prev := c.deps.Store.SessionDate()
	c.deps.Store.ClearAll()

	anchor := prev
	if firstDay {
		anchor = c.cfg.BacktestStart.Add(-24 * time.Hour)
	}

	sessionDate, ok := c.deps.Calendar.GetNextTradingDate(anchor)
	if !ok {
		return time.Time{}, false, nil
	}
	if c.cfg.Mode == ModeBacktest && !c.cfg.BacktestEnd.IsZero() && sessionDate.After(c.cfg.BacktestEnd) {
		return time.Time{}, false, nil
	}

	sess := c.deps.Calendar.GetTradingSession(sessionDate)
	c.deps.Calendar.SetSimulatedTime(sess.Open)
	c.deps.Store.SetSessionDate(sessionDate)
	return sessionDate, true, nil
}

// phase1 runs first-day system-wide stream validation, then every day's
// pre-session hooks.
func (c *Coordinator) phase1(ctx context.Context, firstDay bool) error {
	if firstDay {
		if _, err := requirement.Analyze(c.cfg.requirementInput(), c.deps.Calendar); err != nil {
			return fmt.Errorf("coordinator: system-wide stream validation failed: %w", err)
		}
	}

	c.mu.Lock()
	hooks := append([]PreSessionHook(nil), c.preSessionHooks...)
	c.mu.Unlock()

	for _, hook := range hooks {
		if err := hook(ctx); err != nil {
			return fmt.Errorf("coordinator: pre-session hook failed: %w", err)
		}
	}
	return nil
}

// phase2 provisions every configured symbol with source=config, dropping
// (not aborting on) individual failures; the session only aborts if every
// symbol fails.
func (c *Coordinator) phase2(ctx context.Context) ([]string, error) {
	in := c.cfg.requirementInput()
	var active []string
	for _, symbol := range c.cfg.Session.Symbols {
		req, err := c.deps.Pipeline.AddSymbol(ctx, symbol, provisioning.SourceConfig, in, c.cfg.Session.HistoricalDays)
		if err != nil || req == nil || !req.CanProceed {
			logger.Get().Warn("coordinator: symbol failed provisioning, dropping for the session",
				zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		active = append(active, symbol)
	}
	return active, nil
}

func (c *Coordinator) phase4() {
	c.deps.Store.ActivateSession()
}

func (c *Coordinator) phase5(ctx context.Context, sess timeservice.Session, queues map[string]*barQueue) error {
	switch {
	case c.cfg.Mode == ModeLive:
		return c.streamLive(ctx, sess)
	case c.cfg.SpeedMultiplier > 0:
		return c.streamClockDriven(ctx, sess, queues)
	default:
		return c.streamDataDriven(ctx, sess, queues)
	}
}

func (c *Coordinator) phase6(ctx context.Context) {
	c.deps.Store.DeactivateSession()
	if c.cfg.Mode == ModeLive {
		c.unsubscribeAllLive(ctx)
	}
}

// requirementInput builds the shared requirement.Input every symbol in the
// session is provisioned against — the session's data requirements are
// declared once, globally, not per symbol.
func (c Config) requirementInput() requirement.Input {
	return requirement.Input{
		SessionIntervals:     c.Session.SessionIntervals,
		HistoricalIntervals:  c.Session.HistoricalIntervals,
		Indicators:           c.Session.SessionIndicators,
		HistoricalIndicators: c.Session.HistoricalIndicators,
	}
}

// onDerivedBar is the derived generator's bar hook: update indicators,
// recompute quality, and publish, mirroring what deliverBar does for the
// base interval.
func (c *Coordinator) onDerivedBar(symbol string, iv interval.Interval, bar models.Bar) error {
	if err := c.deps.Indicators.OnBar(symbol, iv, bar); err != nil {
		return err
	}
	c.recomputeQuality(symbol, iv)
	c.publishBar(context.Background(), symbol, iv, true, bar)
	return nil
}

// recomputeQuality mirrors provisioning's calculate_quality step, run
// continuously as bars accumulate instead of once at provisioning time.
func (c *Coordinator) recomputeQuality(symbol string, iv interval.Interval) {
	data := c.deps.Store.GetSymbolData(symbol, true)
	if data == nil {
		return
	}
	bd, ok := data.Bars[iv]
	if !ok {
		return
	}
	expected, err := quality.ExpectedBarCount(iv, c.deps.Calendar.CurrentTime(), c.deps.Calendar)
	if err != nil {
		return
	}
	pct := quality.Percent(len(bd.Bars), expected)

	timestamps := make([]time.Time, len(bd.Bars))
	for i, b := range bd.Bars {
		timestamps[i] = b.Timestamp
	}
	gaps, err := quality.FindGaps(timestamps, iv, c.deps.Calendar)
	if err != nil {
		return
	}
	_ = c.deps.Store.SetQuality(symbol, iv, pct, gaps)
}

func (c *Coordinator) publishBar(ctx context.Context, symbol string, iv interval.Interval, isDerived bool, bar models.Bar) {
	_ = c.deps.Store.SetUpdated(symbol, iv, true)
	if c.deps.Bus == nil {
		return
	}
	_ = c.deps.Bus.PublishBarAppended(ctx, notify.BarAppendedEvent{Symbol: symbol, Interval: iv, Derived: isDerived, Bar: bar})
	_ = c.deps.Bus.PublishIndicatorsUpdated(ctx, notify.IndicatorsUpdatedEvent{Symbol: symbol, Interval: iv, Timestamp: bar.Timestamp})
}

// synthesizeQuote resolves the backtest quote-synthesis open question: the
// base interval is always the finest interval streamed for a symbol, so
// synthesizing a zero-spread quote from its close on every base bar
// automatically gives 1s > 1m > 1d priority with no separate bookkeeping.
// Never gap-filled: a symbol simply has no quote until its first base bar.
func (c *Coordinator) synthesizeQuote(symbol string, bar models.Bar) {
	_ = c.deps.Store.SetQuote(symbol, store.QuoteState{
		Bid: bar.Close, Ask: bar.Close, LastUpdate: bar.Timestamp,
	})
}

// deliverBar is the single path every new base bar flows through,
// regardless of mode or phase: append, indicator update, quality,
// notification, derived generation (which recurses through onDerivedBar),
// quote synthesis, and the lag watchdog.
func (c *Coordinator) deliverBar(ctx context.Context, symbol string, bar models.Bar) {
	if err := c.deps.Store.AppendBaseBar(symbol, bar); err != nil {
		logger.Get().Warn("coordinator: append base bar failed", zap.String("symbol", symbol), zap.Error(err))
		return
	}
	data := c.deps.Store.GetSymbolData(symbol, true)
	if data == nil {
		return
	}
	base := data.BaseInterval

	if err := c.deps.Indicators.OnBar(symbol, base, bar); err != nil {
		logger.Get().Warn("coordinator: indicator update failed", zap.String("symbol", symbol), zap.Error(err))
	}
	c.recomputeQuality(symbol, base)
	c.publishBar(ctx, symbol, base, false, bar)

	if _, err := c.deps.Generator.OnBaseBarAppended(symbol); err != nil {
		logger.Get().Warn("coordinator: derived bar generation failed", zap.String("symbol", symbol), zap.Error(err))
	}

	if c.cfg.Mode == ModeBacktest {
		c.synthesizeQuote(symbol, bar)
	}

	c.stats.mu.Lock()
	c.stats.BarsDelivered++
	c.stats.mu.Unlock()

	c.maybeStartGapFiller(ctx, symbol, base)
	c.checkLagWatchdog(ctx, symbol)
}

// checkLagWatchdog implements the lag watchdog from SPEC_FULL.md §4.9: every
// LagCheckEvery delivered bars, any active symbol whose latest base bar
// lags the current time by more than LagThreshold trips a
// deactivate/catch-up/reactivate cycle. At clock-driven steady state this
// never trips (every symbol's latest bar is at most one tick old); it is
// the mid-session-insertion catch-up path that can actually lag.
func (c *Coordinator) checkLagWatchdog(ctx context.Context, symbol string) {
	if c.cfg.LagCheckEvery <= 0 || c.cfg.LagThreshold <= 0 {
		return
	}
	c.mu.Lock()
	c.barsSinceLagCheck++
	due := c.barsSinceLagCheck >= c.cfg.LagCheckEvery
	if due {
		c.barsSinceLagCheck = 0
	}
	c.mu.Unlock()
	if !due {
		return
	}

	now := c.deps.Calendar.CurrentTime()
	if !c.anySymbolLagging(now) {
		return
	}

	c.deps.Store.DeactivateSession()
	c.stats.mu.Lock()
	c.stats.Deactivations++
	c.stats.mu.Unlock()

	c.waitForCatchUp(ctx, now)
	c.deps.Store.ActivateSession()
}

func (c *Coordinator) anySymbolLagging(asOf time.Time) bool {
	for _, sym := range c.deps.Store.GetActiveSymbols() {
		data := c.deps.Store.GetSymbolData(sym, true)
		if data == nil {
			continue
		}
		bd, ok := data.Bars[data.BaseInterval]
		if !ok || len(bd.Bars) == 0 {
			continue
		}
		if asOf.Sub(bd.Bars[len(bd.Bars)-1].Timestamp) > c.cfg.LagThreshold {
			return true
		}
	}
	return false
}

// waitForCatchUp polls, bounded by a wall-clock timeout, until no symbol is
// lagging. Backtest catch-up is already synchronous by the time this runs
// (handleBacktestInsertion delivers every preceding bar before returning),
// so this loop exits immediately in that case; in live mode it genuinely
// waits for further provider arrivals to close the gap.
func (c *Coordinator) waitForCatchUp(ctx context.Context, asOf time.Time) {
	const maxWait = 30 * time.Second
	deadline := time.Now().Add(maxWait)
	for time.Now().Before(deadline) {
		if !c.anySymbolLagging(asOf) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}
