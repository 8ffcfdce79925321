// Package provisioning implements the three-phase provisioning pipeline
// (SPEC_FULL.md §4.8): every symbol, bar, or indicator addition — whether
// at session start from configuration, mid-session from a strategy, or
// ad-hoc from a scanner — goes through the same analyze, validate, execute
// sequence, producing a ProvisioningRequirements record the caller can
// inspect before (and after) the work runs.
package provisioning

import (
	"context"
	"fmt"
	"time"

	"github.com/barforge/sessionengine/internal/bars"
	"github.com/barforge/sessionengine/internal/indicator"
	"github.com/barforge/sessionengine/internal/interval"
	"github.com/barforge/sessionengine/internal/models"
	"github.com/barforge/sessionengine/internal/quality"
	"github.com/barforge/sessionengine/internal/requirement"
	"github.com/barforge/sessionengine/internal/store"
	"github.com/barforge/sessionengine/internal/timeservice"
	"github.com/barforge/sessionengine/pkg/logger"
	"go.uber.org/zap"
)

// OperationType classifies a provisioning request.
type OperationType string

const (
	OperationSymbol    OperationType = "symbol"
	OperationBar       OperationType = "bar"
	OperationIndicator OperationType = "indicator"
)

// Source names who asked for the provisioning.
type Source string

const (
	SourceConfig   Source = "config"
	SourceStrategy Source = "strategy"
	SourceScanner  Source = "scanner"
)

// Step names one provisioning primitive.
type Step string

const (
	StepCreateSymbol      Step = "create_symbol"
	StepAddInterval       Step = "add_interval"
	StepLoadHistorical    Step = "load_historical"
	StepRegisterIndicator Step = "register_indicator"
	StepCalculateQuality  Step = "calculate_quality"
	StepUpgradeSymbol     Step = "upgrade_symbol"
)

// PlannedStep is one step in a Requirements' step list, carrying whatever
// parameters Execute needs to actually run it.
type PlannedStep struct {
	Kind       Step
	Interval   interval.Interval
	Derived    bool
	Base       interval.Interval
	Days       int
	WarmupOnly bool
	Indicator  indicator.Config
}

// Requirements is the ProvisioningRequirements record from SPEC_FULL.md
// §4.8 phase 1.
type Requirements struct {
	OperationType     OperationType
	Symbol            string
	Source            Source
	SymbolExists      bool
	RequiredIntervals []interval.Interval
	HistoricalDays    int
	Steps             []PlannedStep
	CanProceed        bool
	ValidationErrors  []string
}

// HistoricalSource is the columnar-store collaborator's read side — the
// only external dependency the pipeline's load_historical step needs.
type HistoricalSource interface {
	ReadBars(ctx context.Context, symbol string, iv interval.Interval, start, end time.Time) ([]models.Bar, error)
}

// Pipeline runs the three-phase provisioning flow against a single session
// store, historical source, and indicator manager.
type Pipeline struct {
	store      *store.Store
	historical HistoricalSource
	indicators *indicator.Manager
	cal        timeservice.TimeManager
	ticksCap   int
}

// NewPipeline creates a Pipeline. historical may be nil for configurations
// that never load historical data (pure live streaming with no warmup);
// any plan that needs a load_historical step then fails validation.
func NewPipeline(st *store.Store, historical HistoricalSource, indicators *indicator.Manager, cal timeservice.TimeManager, ticksCap int) *Pipeline {
	return &Pipeline{store: st, historical: historical, indicators: indicators, cal: cal, ticksCap: ticksCap}
}

// AddSymbol is the add_symbol(symbol, added_by) entry point: provisions a
// symbol from a full declared requirement set, used at session start for
// configured symbols and for ad-hoc full adds from a scanner or strategy.
func (p *Pipeline) AddSymbol(ctx context.Context, symbol string, source Source, in requirement.Input, historicalDays int) (*Requirements, error) {
	req, err := p.analyze(OperationSymbol, symbol, source, in, historicalDays, true)
	if err != nil || !req.CanProceed {
		return req, err
	}
	return req, p.Execute(ctx, req)
}

// AddIndicatorUnified is the add_indicator_unified(symbol, indicator_config,
// source) entry point: resolves what cfg needs (its interval, that
// interval's base, warmup history) and provisions only the gap between
// that and what the symbol already has.
func (p *Pipeline) AddIndicatorUnified(ctx context.Context, symbol string, cfg indicator.Config, source Source) (*Requirements, error) {
	in := requirement.Input{Indicators: []indicator.Config{cfg}}
	req, err := p.analyze(OperationIndicator, symbol, source, in, 0, true)
	if err != nil || !req.CanProceed {
		return req, err
	}
	return req, p.Execute(ctx, req)
}

// AddBarUnified is the add_bar_unified(symbol, interval, days, source)
// entry point: provisions (or backfills) one bar interval with days of
// trailing history.
func (p *Pipeline) AddBarUnified(ctx context.Context, symbol string, iv interval.Interval, days int, source Source) (*Requirements, error) {
	in := requirement.Input{SessionIntervals: []string{iv.String()}}
	req, err := p.analyze(OperationBar, symbol, source, in, days, true)
	if err != nil || !req.CanProceed {
		return req, err
	}
	return req, p.Execute(ctx, req)
}

// UpgradeSymbol flips an ad-hoc symbol to full session-config status: loads
// whatever history a warmup-only provisioning skipped and recomputes
// quality for every interval the symbol already carries.
func (p *Pipeline) UpgradeSymbol(ctx context.Context, symbol string, in requirement.Input, historicalDays int) (*Requirements, error) {
	if !p.store.HasSymbol(symbol) {
		return nil, fmt.Errorf("provisioning: cannot upgrade unknown symbol %q", symbol)
	}
	req, err := p.analyze(OperationSymbol, symbol, SourceConfig, in, historicalDays, false)
	if err != nil {
		return req, err
	}
	req.Steps = append([]PlannedStep{{Kind: StepUpgradeSymbol}}, req.Steps...)
	if !req.CanProceed {
		return req, nil
	}
	return req, p.Execute(ctx, req)
}

// analyze runs phases 1 and 2: build the requirement plan, classify steps,
// and validate it. allowCreate controls whether a create_symbol step is
// planned for a missing symbol (ad-hoc indicator/bar adds on a symbol that
// truly doesn't exist also get one; the distinction only matters for
// UpgradeSymbol, which requires the symbol to already exist).
func (p *Pipeline) analyze(op OperationType, symbol string, source Source, in requirement.Input, historicalDays int, allowCreate bool) (*Requirements, error) {
	req := &Requirements{
		OperationType:  op,
		Symbol:         symbol,
		Source:         source,
		SymbolExists:   p.store.HasSymbol(symbol),
		HistoricalDays: historicalDays,
	}

	resolved, err := requirement.Analyze(in, p.cal)
	if err != nil {
		req.CanProceed = false
		req.ValidationErrors = append(req.ValidationErrors, err.Error())
		return req, nil
	}
	req.RequiredIntervals = append([]interval.Interval{resolved.BaseInterval}, resolved.DerivedIntervals...)
	req.RequiredIntervals = append(req.RequiredIntervals, diffIntervals(resolved.StreamIntervals, []interval.Interval{resolved.BaseInterval})...)

	if !req.SymbolExists {
		if !allowCreate {
			req.CanProceed = false
			req.ValidationErrors = append(req.ValidationErrors, fmt.Sprintf("symbol %q does not exist", symbol))
			return req, nil
		}
		req.Steps = append(req.Steps, PlannedStep{Kind: StepCreateSymbol, Interval: resolved.BaseInterval})
	}

	existing := p.existingIntervals(symbol)
	for _, iv := range resolved.StreamIntervals {
		if iv == resolved.BaseInterval || existing[iv] {
			continue
		}
		req.Steps = append(req.Steps, PlannedStep{Kind: StepAddInterval, Interval: iv, Derived: false})
	}
	for _, iv := range resolved.DerivedIntervals {
		if existing[iv] {
			continue
		}
		req.Steps = append(req.Steps, PlannedStep{Kind: StepAddInterval, Interval: iv, Derived: true, Base: resolved.BaseInterval})
	}

	warmupOnly := historicalDays <= 0
	if warmupOnly {
		if barsNeeded := resolved.HistoricalLookback[resolved.BaseInterval]; barsNeeded > 0 {
			days := warmupDaysFor(resolved.BaseInterval, barsNeeded, p.cal)
			req.Steps = append(req.Steps, PlannedStep{Kind: StepLoadHistorical, Interval: resolved.BaseInterval, Days: days, WarmupOnly: true})
		}
	} else {
		req.Steps = append(req.Steps, PlannedStep{Kind: StepLoadHistorical, Interval: resolved.BaseInterval, Days: historicalDays, WarmupOnly: false})
	}

	for _, cfg := range resolved.Indicators {
		req.Steps = append(req.Steps, PlannedStep{Kind: StepRegisterIndicator, Interval: cfg.Interval, Indicator: cfg})
	}
	for _, cfg := range resolved.HistoricalIndicators {
		req.Steps = append(req.Steps, PlannedStep{Kind: StepRegisterIndicator, Interval: cfg.Interval, Indicator: cfg})
	}

	if !warmupOnly {
		for _, iv := range req.RequiredIntervals {
			req.Steps = append(req.Steps, PlannedStep{Kind: StepCalculateQuality, Interval: iv})
		}
	}

	if hasLoadHistorical(req.Steps) && p.historical == nil {
		req.CanProceed = false
		req.ValidationErrors = append(req.ValidationErrors, "no historical data source configured")
		return req, nil
	}

	req.CanProceed = true
	return req, nil
}

// Execute runs phase 3: each step is one existing primitive, idempotent
// where natural. A failure in create_symbol, add_interval, or
// register_indicator fails the whole provisioning; a failure in
// load_historical or calculate_quality is logged and the symbol is marked
// degraded instead.
func (p *Pipeline) Execute(ctx context.Context, req *Requirements) error {
	log := logger.Get().With(zap.String("symbol", req.Symbol), zap.String("operation", string(req.OperationType)))

	for _, step := range req.Steps {
		var err error
		critical := true

		switch step.Kind {
		case StepCreateSymbol:
			err = p.store.RegisterSymbolData(store.NewSymbolSessionData(req.Symbol, step.Interval, p.ticksCap))
			if err == models.ErrDuplicateSymbol {
				err = nil
			}
		case StepUpgradeSymbol:
			err = p.store.SetProvisioningMeta(req.Symbol, store.ProvisioningMeta{
				MeetsSessionConfigRequirements: true,
				UpgradedFromAdhoc:              true,
				AddedBy:                        string(req.Source),
				AddedAt:                        p.cal.CurrentTime(),
			})
		case StepAddInterval:
			err = p.store.EnsureInterval(req.Symbol, step.Interval, step.Derived, step.Base)
		case StepLoadHistorical:
			critical = false
			err = p.loadHistorical(ctx, req.Symbol, step)
		case StepRegisterIndicator:
			var history []models.Bar
			history, err = p.historyFor(req.Symbol, step.Indicator.Interval)
			if err == nil {
				err = p.indicators.Register(req.Symbol, step.Indicator, history)
			}
		case StepCalculateQuality:
			critical = false
			err = p.calculateQuality(req.Symbol, step.Interval)
		default:
			err = fmt.Errorf("provisioning: unknown step %q", step.Kind)
		}

		if err == nil {
			continue
		}
		if critical {
			log.Error("provisioning step failed", zap.String("step", string(step.Kind)), zap.Error(err))
			return fmt.Errorf("provisioning: step %q failed for %q: %w", step.Kind, req.Symbol, err)
		}
		log.Warn("non-critical provisioning step failed, marking degraded", zap.String("step", string(step.Kind)), zap.Error(err))
		_ = p.store.MarkDegraded(req.Symbol, fmt.Sprintf("%s: %v", step.Kind, err))
	}

	if req.OperationType == OperationSymbol && req.HistoricalDays > 0 && !hasStep(req.Steps, StepUpgradeSymbol) {
		_ = p.store.SetProvisioningMeta(req.Symbol, store.ProvisioningMeta{
			MeetsSessionConfigRequirements: true,
			AddedBy:                        string(req.Source),
			AddedAt:                        p.cal.CurrentTime(),
		})
	}
	return nil
}

func hasStep(steps []PlannedStep, kind Step) bool {
	for _, s := range steps {
		if s.Kind == kind {
			return true
		}
	}
	return false
}

func (p *Pipeline) loadHistorical(ctx context.Context, symbol string, step PlannedStep) error {
	if p.historical == nil {
		return fmt.Errorf("no historical data source configured")
	}
	now := p.cal.CurrentTime()
	start := p.cal.GetPreviousTradingDate(now, step.Days)
	bars, err := p.historical.ReadBars(ctx, symbol, step.Interval, start, now)
	if err != nil {
		return err
	}
	return p.store.SetHistoricalBars(symbol, step.Interval, start.Format("2006-01-02"), bars)
}

func (p *Pipeline) calculateQuality(symbol string, iv interval.Interval) error {
	data := p.store.GetSymbolData(symbol, true)
	if data == nil {
		return models.ErrSymbolNotFound
	}
	bd, ok := data.Bars[iv]
	if !ok {
		return models.ErrIntervalNotFound
	}

	expected, err := quality.ExpectedBarCount(iv, p.cal.CurrentTime(), p.cal)
	if err != nil {
		return err
	}
	pct := quality.Percent(len(bd.Bars), expected)

	timestamps := make([]time.Time, len(bd.Bars))
	for i, b := range bd.Bars {
		timestamps[i] = b.Timestamp
	}
	gaps, err := quality.FindGaps(timestamps, iv, p.cal)
	if err != nil {
		return err
	}
	return p.store.SetQuality(symbol, iv, pct, gaps)
}

// historyFor returns the historical bars available to warm up an
// indicator on iv. When iv is the symbol's base interval, the loaded
// history applies directly; otherwise it is folded through the bar
// aggregator the same way the derived-bar generator would, since only
// base-interval history is ever fetched from the historical source.
func (p *Pipeline) historyFor(symbol string, iv interval.Interval) ([]models.Bar, error) {
	data := p.store.GetSymbolData(symbol, true)
	if data == nil {
		return nil, models.ErrSymbolNotFound
	}
	base := data.BaseInterval
	baseHistory := p.store.GetHistoricalBars(symbol, base)
	if iv == base {
		return baseHistory, nil
	}
	if len(baseHistory) == 0 {
		return nil, nil
	}
	opts := bars.Options{RequireComplete: false}
	if bars.SelectMode(base, iv) == bars.FixedChunk {
		opts = bars.Options{RequireComplete: true, CheckContinuity: true}
	}
	result, err := bars.Aggregate(baseHistory, base, iv, p.cal, opts)
	if err != nil {
		return nil, fmt.Errorf("provisioning: deriving historical %s from %s: %w", iv, base, err)
	}
	return result.Bars, nil
}

func (p *Pipeline) existingIntervals(symbol string) map[interval.Interval]bool {
	data := p.store.GetSymbolData(symbol, true)
	if data == nil {
		return nil
	}
	out := make(map[interval.Interval]bool, len(data.Bars))
	for iv := range data.Bars {
		out[iv] = true
	}
	return out
}

func diffIntervals(from, without []interval.Interval) []interval.Interval {
	exclude := make(map[interval.Interval]bool, len(without))
	for _, iv := range without {
		exclude[iv] = true
	}
	var out []interval.Interval
	for _, iv := range from {
		if !exclude[iv] {
			out = append(out, iv)
		}
	}
	return out
}

func hasLoadHistorical(steps []PlannedStep) bool {
	for _, s := range steps {
		if s.Kind == StepLoadHistorical {
			return true
		}
	}
	return false
}

// warmupDaysFor converts a base-interval bar count into a trading-day
// count, rounding up, using today's expected bar count as the per-day
// estimate.
func warmupDaysFor(base interval.Interval, bars int, cal timeservice.TimeManager) int {
	perDay, err := quality.ExpectedBarCount(base, cal.CurrentTime(), cal)
	if err != nil || perDay <= 0 {
		return 1
	}
	days := (bars + perDay - 1) / perDay
	if days < 1 {
		days = 1
	}
	return days
}
