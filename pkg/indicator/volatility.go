package indicator

import (
	"fmt"
	"math"

	"github.com/barforge/sessionengine/internal/models"
)

// averageTrueRange is a small internal Wilder's-smoothed ATR helper shared
// by KeltnerChannels and ATRDaily, which both need true-range smoothing
// but present it under a different outer name/token.
type averageTrueRange struct {
	period    int
	prevClose float64
	hasPrev   bool
	avgTR     float64
	ready     bool
	processed int
}

func newAverageTrueRange(period int) *averageTrueRange {
	return &averageTrueRange{period: period}
}

func (a *averageTrueRange) update(bar models.Bar) (float64, bool) {
	if !a.hasPrev {
		a.prevClose = bar.Close
		a.hasPrev = true
		a.processed++
		return 0, false
	}

	highLow := bar.High - bar.Low
	highClose := math.Abs(bar.High - a.prevClose)
	lowClose := math.Abs(bar.Low - a.prevClose)
	tr := math.Max(highLow, math.Max(highClose, lowClose))
	a.prevClose = bar.Close
	a.processed++

	if !a.ready {
		a.avgTR = tr
		if a.processed >= a.period {
			a.ready = true
		}
		return a.avgTR, a.ready
	}

	a.avgTR = ((a.avgTR * float64(a.period-1)) + tr) / float64(a.period)
	return a.avgTR, true
}

func (a *averageTrueRange) reset() {
	a.hasPrev = false
	a.avgTR = 0
	a.ready = false
	a.processed = 0
}

// KeltnerChannels calculates middle = EMA(close, period), upper/lower =
// middle +/- multiplier*ATR(period).
type KeltnerChannels struct {
	period     int
	multiplier float64
	name       string
	middle     *EMA
	atr        *averageTrueRange
	ready      bool
}

func NewKeltnerChannels(period int, multiplier float64) (*KeltnerChannels, error) {
	middle, err := NewEMA(period)
	if err != nil {
		return nil, fmt.Errorf("keltner channels: %w", err)
	}
	return &KeltnerChannels{
		period: period, multiplier: multiplier,
		name:   fmt.Sprintf("keltner_%d_%.1f", period, multiplier),
		middle: middle,
		atr:    newAverageTrueRange(period),
	}, nil
}

func (k *KeltnerChannels) Name() string { return k.name }

func (k *KeltnerChannels) Update(bar models.Bar) (Result, error) {
	mid, _ := k.middle.Update(bar)
	atrVal, atrReady := k.atr.update(bar)
	if !atrReady {
		return Result{}, nil
	}

	k.ready = true
	return Result{
		Scalar: mid.Scalar,
		Fields: map[string]float64{
			"middle": mid.Scalar,
			"upper":  mid.Scalar + k.multiplier*atrVal,
			"lower":  mid.Scalar - k.multiplier*atrVal,
		},
	}, nil
}

func (k *KeltnerChannels) Value() (Result, error) {
	if !k.ready {
		return Result{}, fmt.Errorf("keltner channels not ready: need at least %d bars", k.period)
	}
	mid, _ := k.middle.Value()
	return Result{
		Scalar: mid.Scalar,
		Fields: map[string]float64{
			"middle": mid.Scalar,
			"upper":  mid.Scalar + k.multiplier*k.atr.avgTR,
			"lower":  mid.Scalar - k.multiplier*k.atr.avgTR,
		},
	}, nil
}

func (k *KeltnerChannels) Reset() {
	k.middle.Reset()
	k.atr.reset()
	k.ready = false
}

func (k *KeltnerChannels) IsReady() bool      { return k.ready }
func (k *KeltnerChannels) WindowSize() int    { return k.period }
func (k *KeltnerChannels) BarsProcessed() int { return k.middle.BarsProcessed() }

// DonchianChannels calculates upper = HighestHigh(period), lower =
// LowestLow(period), middle = (upper+lower)/2.
type DonchianChannels struct {
	period    int
	name      string
	highs     []float64
	lows      []float64
	ready     bool
	processed int
}

func NewDonchianChannels(period int) (*DonchianChannels, error) {
	if period < 1 {
		return nil, fmt.Errorf("donchian channels period must be at least 1, got %d", period)
	}
	return &DonchianChannels{period: period, name: fmt.Sprintf("donchian_%d", period), highs: make([]float64, 0, period), lows: make([]float64, 0, period)}, nil
}

func (d *DonchianChannels) Name() string { return d.name }

func (d *DonchianChannels) Update(bar models.Bar) (Result, error) {
	d.highs = pushWindow(d.highs, bar.High, d.period)
	d.lows = pushWindow(d.lows, bar.Low, d.period)
	d.processed++
	if len(d.highs) < d.period {
		return Result{}, nil
	}
	d.ready = true
	return d.calculate(), nil
}

func (d *DonchianChannels) calculate() Result {
	upper := maxFloat(d.highs)
	lower := minFloat(d.lows)
	middle := (upper + lower) / 2.0
	return Result{Scalar: middle, Fields: map[string]float64{"upper": upper, "middle": middle, "lower": lower}}
}

func (d *DonchianChannels) Value() (Result, error) {
	if !d.ready {
		return Result{}, fmt.Errorf("donchian channels not ready: need at least %d bars", d.period)
	}
	return d.calculate(), nil
}

func (d *DonchianChannels) Reset() {
	d.highs = d.highs[:0]
	d.lows = d.lows[:0]
	d.ready = false
	d.processed = 0
}

func (d *DonchianChannels) IsReady() bool      { return d.ready }
func (d *DonchianChannels) WindowSize() int    { return d.period }
func (d *DonchianChannels) BarsProcessed() int { return d.processed }

// StdDev calculates the population standard deviation of close price over
// a rolling bar-count window.
type StdDev struct {
	period    int
	name      string
	prices    []float64
	ready     bool
	processed int
}

func NewStdDev(period int) (*StdDev, error) {
	if period < 2 {
		return nil, fmt.Errorf("stddev period must be at least 2, got %d", period)
	}
	return &StdDev{period: period, name: fmt.Sprintf("stddev_%d", period), prices: make([]float64, 0, period)}, nil
}

func (s *StdDev) Name() string { return s.name }

func (s *StdDev) Update(bar models.Bar) (Result, error) {
	s.prices = pushWindow(s.prices, bar.Close, s.period)
	s.processed++
	if len(s.prices) < s.period {
		return Result{}, nil
	}
	s.ready = true
	return scalar(s.calculate()), nil
}

func (s *StdDev) calculate() float64 {
	mean := sumFloat(s.prices) / float64(len(s.prices))
	var variance float64
	for _, p := range s.prices {
		d := p - mean
		variance += d * d
	}
	variance /= float64(len(s.prices))
	return math.Sqrt(variance)
}

func (s *StdDev) Value() (Result, error) {
	if !s.ready {
		return Result{}, fmt.Errorf("stddev not ready: need at least %d bars", s.period)
	}
	return scalar(s.calculate()), nil
}

func (s *StdDev) Reset() {
	s.prices = s.prices[:0]
	s.ready = false
	s.processed = 0
}

func (s *StdDev) IsReady() bool      { return s.ready }
func (s *StdDev) WindowSize() int    { return s.period }
func (s *StdDev) BarsProcessed() int { return s.processed }

// HistoricalVol calculates annualized historical volatility: the standard
// deviation of log returns over a rolling window, scaled by
// sqrt(periodsPerYear). periodsPerYear is typically 252 for daily bars.
type HistoricalVol struct {
	period        int
	periodsPerYear float64
	name          string
	returns       []float64
	prevClose     float64
	hasPrev       bool
	ready         bool
	processed     int
}

func NewHistoricalVol(period int, periodsPerYear float64) (*HistoricalVol, error) {
	if period < 2 {
		return nil, fmt.Errorf("historical vol period must be at least 2, got %d", period)
	}
	if periodsPerYear <= 0 {
		periodsPerYear = 252
	}
	return &HistoricalVol{period: period, periodsPerYear: periodsPerYear, name: fmt.Sprintf("hist_vol_%d", period), returns: make([]float64, 0, period)}, nil
}

func (h *HistoricalVol) Name() string { return h.name }

func (h *HistoricalVol) Update(bar models.Bar) (Result, error) {
	if !h.hasPrev {
		h.prevClose = bar.Close
		h.hasPrev = true
		h.processed++
		return Result{}, nil
	}

	var logReturn float64
	if h.prevClose > 0 && bar.Close > 0 {
		logReturn = math.Log(bar.Close / h.prevClose)
	}
	h.returns = pushWindow(h.returns, logReturn, h.period)
	h.prevClose = bar.Close
	h.processed++

	if len(h.returns) < h.period {
		return Result{}, nil
	}
	h.ready = true
	return scalar(h.calculate()), nil
}

func (h *HistoricalVol) calculate() float64 {
	mean := sumFloat(h.returns) / float64(len(h.returns))
	var variance float64
	for _, r := range h.returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(h.returns))
	return math.Sqrt(variance) * math.Sqrt(h.periodsPerYear)
}

func (h *HistoricalVol) Value() (Result, error) {
	if !h.ready {
		return Result{}, fmt.Errorf("historical vol not ready: need at least %d bars", h.period+1)
	}
	return scalar(h.calculate()), nil
}

func (h *HistoricalVol) Reset() {
	h.returns = h.returns[:0]
	h.hasPrev = false
	h.ready = false
	h.processed = 0
}

func (h *HistoricalVol) IsReady() bool      { return h.ready }
func (h *HistoricalVol) WindowSize() int    { return h.period + 1 }
func (h *HistoricalVol) BarsProcessed() int { return h.processed }

// ATRDaily is the Wilder's-smoothed Average True Range, named distinctly
// because strategies request it specifically against daily bars as
// historical context rather than live-bar volatility.
type ATRDaily struct {
	period int
	name   string
	atr    *averageTrueRange
}

func NewATRDaily(period int) (*ATRDaily, error) {
	if period < 1 {
		return nil, fmt.Errorf("ATR daily period must be at least 1, got %d", period)
	}
	return &ATRDaily{period: period, name: fmt.Sprintf("atr_daily_%d", period), atr: newAverageTrueRange(period)}, nil
}

func (a *ATRDaily) Name() string { return a.name }

func (a *ATRDaily) Update(bar models.Bar) (Result, error) {
	val, ready := a.atr.update(bar)
	if !ready {
		return Result{}, nil
	}
	return scalar(val), nil
}

func (a *ATRDaily) Value() (Result, error) {
	if !a.atr.ready {
		return Result{}, fmt.Errorf("ATR daily not ready: need at least %d bars", a.period+1)
	}
	return scalar(a.atr.avgTR), nil
}

func (a *ATRDaily) Reset()          { a.atr.reset() }
func (a *ATRDaily) IsReady() bool   { return a.atr.ready }
func (a *ATRDaily) WindowSize() int { return a.period + 1 }
func (a *ATRDaily) BarsProcessed() int { return a.atr.processed }
