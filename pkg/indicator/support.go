package indicator

import (
	"fmt"

	"github.com/barforge/sessionengine/internal/models"
)

// PivotPoints calculates standard floor-trader pivot levels from the most
// recently closed bar: pivot = (H+L+C)/3, with two support/resistance
// bands derived from it. Each Update treats the bar just closed as the
// "prior period" and returns the levels that apply to the next one.
type PivotPoints struct {
	name      string
	fields    map[string]float64
	ready     bool
	processed int
}

func NewPivotPoints() *PivotPoints {
	return &PivotPoints{name: "pivot_points"}
}

func (p *PivotPoints) Name() string { return p.name }

func (p *PivotPoints) Update(bar models.Bar) (Result, error) {
	pivot := (bar.High + bar.Low + bar.Close) / 3.0
	rng := bar.High - bar.Low

	p.fields = map[string]float64{
		"pivot": pivot,
		"r1":    2*pivot - bar.Low,
		"s1":    2*pivot - bar.High,
		"r2":    pivot + rng,
		"s2":    pivot - rng,
	}
	p.ready = true
	p.processed++
	return Result{Scalar: pivot, Fields: p.fields}, nil
}

func (p *PivotPoints) Value() (Result, error) {
	if !p.ready {
		return Result{}, fmt.Errorf("pivot points not ready: need at least 1 completed bar")
	}
	return Result{Scalar: p.fields["pivot"], Fields: p.fields}, nil
}

func (p *PivotPoints) Reset() {
	p.fields = nil
	p.ready = false
	p.processed = 0
}

func (p *PivotPoints) IsReady() bool      { return p.ready }
func (p *PivotPoints) WindowSize() int    { return 1 }
func (p *PivotPoints) BarsProcessed() int { return p.processed }

// HighLowN is the unified high/low-over-N indicator: one implementation
// parameterized by a bar-count period that covers N-day, N-week, or any
// intraday window depending on which interval's bar series feeds it.
type HighLowN struct {
	period    int
	name      string
	highs     []float64
	lows      []float64
	ready     bool
	processed int
}

func NewHighLowN(period int) (*HighLowN, error) {
	if period < 1 {
		return nil, fmt.Errorf("high/low N period must be at least 1, got %d", period)
	}
	return &HighLowN{period: period, name: fmt.Sprintf("high_low_%d", period), highs: make([]float64, 0, period), lows: make([]float64, 0, period)}, nil
}

func (h *HighLowN) Name() string { return h.name }

func (h *HighLowN) Update(bar models.Bar) (Result, error) {
	h.highs = pushWindow(h.highs, bar.High, h.period)
	h.lows = pushWindow(h.lows, bar.Low, h.period)
	h.processed++
	if len(h.highs) < h.period {
		return Result{}, nil
	}
	h.ready = true
	return h.calculate(), nil
}

func (h *HighLowN) calculate() Result {
	high := maxFloat(h.highs)
	low := minFloat(h.lows)
	return Result{Scalar: high, Fields: map[string]float64{"high": high, "low": low}}
}

func (h *HighLowN) Value() (Result, error) {
	if !h.ready {
		return Result{}, fmt.Errorf("high/low N not ready: need at least %d bars", h.period)
	}
	return h.calculate(), nil
}

func (h *HighLowN) Reset() {
	h.highs = h.highs[:0]
	h.lows = h.lows[:0]
	h.ready = false
	h.processed = 0
}

func (h *HighLowN) IsReady() bool      { return h.ready }
func (h *HighLowN) WindowSize() int    { return h.period }
func (h *HighLowN) BarsProcessed() int { return h.processed }

// SwingHighLow detects confirmed swing points using a symmetric fractal
// window: a bar is a swing high/low if it is the highest/lowest within
// lookback bars on both sides. Because future bars are required,
// confirmation lags the live bar by `lookback` bars.
type SwingHighLow struct {
	lookback   int
	name       string
	highs      []float64
	lows       []float64
	swingHigh  float64
	swingLow   float64
	haveSwing  bool
	ready      bool
	processed  int
}

func NewSwingHighLow(lookback int) (*SwingHighLow, error) {
	if lookback < 1 {
		return nil, fmt.Errorf("swing high/low lookback must be at least 1, got %d", lookback)
	}
	windowSize := 2*lookback + 1
	return &SwingHighLow{lookback: lookback, name: fmt.Sprintf("swing_%d", lookback), highs: make([]float64, 0, windowSize), lows: make([]float64, 0, windowSize)}, nil
}

func (s *SwingHighLow) Name() string { return s.name }

func (s *SwingHighLow) Update(bar models.Bar) (Result, error) {
	windowSize := 2*s.lookback + 1
	s.highs = pushWindow(s.highs, bar.High, windowSize)
	s.lows = pushWindow(s.lows, bar.Low, windowSize)
	s.processed++

	if len(s.highs) < windowSize {
		return Result{}, nil
	}

	mid := s.lookback
	if s.highs[mid] == maxFloat(s.highs) {
		s.swingHigh = s.highs[mid]
		s.haveSwing = true
	}
	if s.lows[mid] == minFloat(s.lows) {
		s.swingLow = s.lows[mid]
		s.haveSwing = true
	}

	if !s.haveSwing {
		return Result{}, nil
	}
	s.ready = true
	return s.calculate(), nil
}

func (s *SwingHighLow) calculate() Result {
	return Result{Scalar: s.swingHigh, Fields: map[string]float64{"swing_high": s.swingHigh, "swing_low": s.swingLow}}
}

func (s *SwingHighLow) Value() (Result, error) {
	if !s.ready {
		return Result{}, fmt.Errorf("swing high/low not ready: no confirmed swing yet")
	}
	return s.calculate(), nil
}

func (s *SwingHighLow) Reset() {
	s.highs = s.highs[:0]
	s.lows = s.lows[:0]
	s.swingHigh = 0
	s.swingLow = 0
	s.haveSwing = false
	s.ready = false
	s.processed = 0
}

func (s *SwingHighLow) IsReady() bool      { return s.ready }
func (s *SwingHighLow) WindowSize() int    { return 2*s.lookback + 1 }
func (s *SwingHighLow) BarsProcessed() int { return s.processed }

// GapStats reports the open-vs-prior-close gap for the current bar, in
// both absolute and percentage terms.
type GapStats struct {
	name      string
	prevClose float64
	hasPrev   bool
	ready     bool
	processed int
	gap       float64
	gapPct    float64
}

func NewGapStats() *GapStats {
	return &GapStats{name: "gap_stats"}
}

func (g *GapStats) Name() string { return g.name }

func (g *GapStats) Update(bar models.Bar) (Result, error) {
	g.processed++
	if !g.hasPrev {
		g.prevClose = bar.Close
		g.hasPrev = true
		return Result{}, nil
	}

	g.gap = bar.Open - g.prevClose
	if g.prevClose != 0 {
		g.gapPct = (g.gap / g.prevClose) * 100.0
	}
	g.prevClose = bar.Close
	g.ready = true
	return g.calculate(), nil
}

func (g *GapStats) calculate() Result {
	return Result{Scalar: g.gapPct, Fields: map[string]float64{"gap": g.gap, "gap_pct": g.gapPct}}
}

func (g *GapStats) Value() (Result, error) {
	if !g.ready {
		return Result{}, fmt.Errorf("gap stats not ready: need at least 2 bars")
	}
	return g.calculate(), nil
}

func (g *GapStats) Reset() {
	g.hasPrev = false
	g.ready = false
	g.processed = 0
	g.gap = 0
	g.gapPct = 0
}

func (g *GapStats) IsReady() bool      { return g.ready }
func (g *GapStats) WindowSize() int    { return 2 }
func (g *GapStats) BarsProcessed() int { return g.processed }

// RangeRatio reports the current bar's range (high - low) relative to the
// trailing average range (AvgRange), e.g. 2.0 meaning today's range is
// double the recent average.
type RangeRatio struct {
	avg       *AvgRange
	name      string
	lastValue float64
	ready     bool
}

func NewRangeRatio(period int) (*RangeRatio, error) {
	avg, err := NewAvgRange(period)
	if err != nil {
		return nil, err
	}
	return &RangeRatio{avg: avg, name: fmt.Sprintf("range_ratio_%d", period)}, nil
}

func (r *RangeRatio) Name() string { return r.name }

func (r *RangeRatio) Update(bar models.Bar) (Result, error) {
	if _, err := r.avg.Update(bar); err != nil {
		return Result{}, err
	}
	if !r.avg.IsReady() {
		return Result{}, nil
	}

	avgRange := sumFloat(r.avg.ranges) / float64(len(r.avg.ranges))
	if avgRange == 0 {
		return Result{}, nil
	}

	r.lastValue = (bar.High - bar.Low) / avgRange
	r.ready = true
	return scalar(r.lastValue), nil
}

func (r *RangeRatio) Value() (Result, error) {
	if !r.ready {
		return Result{}, fmt.Errorf("range ratio not ready")
	}
	return scalar(r.lastValue), nil
}

func (r *RangeRatio) Reset() {
	r.avg.Reset()
	r.lastValue = 0
	r.ready = false
}

func (r *RangeRatio) IsReady() bool { return r.ready }
