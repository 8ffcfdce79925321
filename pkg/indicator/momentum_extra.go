package indicator

import (
	"fmt"

	"github.com/barforge/sessionengine/internal/models"
)

// CCI calculates the Commodity Channel Index:
// CCI = (TypicalPrice - SMA(TypicalPrice, period)) / (0.015 * MeanDeviation)
type CCI struct {
	period    int
	name      string
	prices    []float64
	ready     bool
	processed int
}

func NewCCI(period int) (*CCI, error) {
	if period < 1 {
		return nil, fmt.Errorf("CCI period must be at least 1, got %d", period)
	}
	return &CCI{period: period, name: fmt.Sprintf("cci_%d", period), prices: make([]float64, 0, period)}, nil
}

func (c *CCI) Name() string { return c.name }

func (c *CCI) Update(bar models.Bar) (Result, error) {
	typicalPrice := (bar.High + bar.Low + bar.Close) / 3.0
	c.prices = pushWindow(c.prices, typicalPrice, c.period)
	c.processed++
	if len(c.prices) < c.period {
		return Result{}, nil
	}
	c.ready = true
	return scalar(c.calculate()), nil
}

func (c *CCI) calculate() float64 {
	mean := sumFloat(c.prices) / float64(len(c.prices))

	var meanDeviation float64
	for _, p := range c.prices {
		d := p - mean
		if d < 0 {
			d = -d
		}
		meanDeviation += d
	}
	meanDeviation /= float64(len(c.prices))

	if meanDeviation == 0 {
		return 0
	}

	current := c.prices[len(c.prices)-1]
	return (current - mean) / (0.015 * meanDeviation)
}

func (c *CCI) Value() (Result, error) {
	if !c.ready {
		return Result{}, fmt.Errorf("CCI not ready: need at least %d bars", c.period)
	}
	return scalar(c.calculate()), nil
}

func (c *CCI) Reset() {
	c.prices = c.prices[:0]
	c.ready = false
	c.processed = 0
}

func (c *CCI) IsReady() bool      { return c.ready }
func (c *CCI) WindowSize() int    { return c.period }
func (c *CCI) BarsProcessed() int { return c.processed }

// ROC calculates the Rate of Change: ((close - close[period ago]) /
// close[period ago]) * 100. Identical shape to Momentum, kept as a
// separate calculator so strategies can request either name independently.
type ROC struct {
	period    int
	name      string
	closes    []float64
	ready     bool
	processed int
	lastValue float64
}

func NewROC(period int) (*ROC, error) {
	if period < 1 {
		return nil, fmt.Errorf("ROC period must be at least 1, got %d", period)
	}
	return &ROC{period: period, name: fmt.Sprintf("roc_%d", period), closes: make([]float64, 0, period+1)}, nil
}

func (r *ROC) Name() string { return r.name }

func (r *ROC) Update(bar models.Bar) (Result, error) {
	r.closes = pushWindow(r.closes, bar.Close, r.period+1)
	r.processed++
	if len(r.closes) < r.period+1 {
		return Result{}, nil
	}
	r.lastValue = r.calculate()
	r.ready = true
	return scalar(r.lastValue), nil
}

func (r *ROC) calculate() float64 {
	oldest := r.closes[0]
	newest := r.closes[len(r.closes)-1]
	if oldest == 0 {
		return 0
	}
	return ((newest - oldest) / oldest) * 100.0
}

func (r *ROC) Value() (Result, error) {
	if !r.ready {
		return Result{}, fmt.Errorf("ROC not ready: need at least %d bars", r.period+1)
	}
	return scalar(r.lastValue), nil
}

func (r *ROC) Reset() {
	r.closes = r.closes[:0]
	r.ready = false
	r.processed = 0
	r.lastValue = 0
}

func (r *ROC) IsReady() bool      { return r.ready }
func (r *ROC) WindowSize() int    { return r.period + 1 }
func (r *ROC) BarsProcessed() int { return r.processed }

// WilliamsR calculates Williams %R:
// %R = (HighestHigh(period) - close) / (HighestHigh(period) - LowestLow(period)) * -100
type WilliamsR struct {
	period     int
	name       string
	highs      []float64
	lows       []float64
	lastClose  float64
	ready      bool
	processed  int
}

func NewWilliamsR(period int) (*WilliamsR, error) {
	if period < 1 {
		return nil, fmt.Errorf("Williams %%R period must be at least 1, got %d", period)
	}
	return &WilliamsR{period: period, name: fmt.Sprintf("williams_r_%d", period), highs: make([]float64, 0, period), lows: make([]float64, 0, period)}, nil
}

func (w *WilliamsR) Name() string { return w.name }

func (w *WilliamsR) Update(bar models.Bar) (Result, error) {
	w.highs = pushWindow(w.highs, bar.High, w.period)
	w.lows = pushWindow(w.lows, bar.Low, w.period)
	w.lastClose = bar.Close
	w.processed++
	if len(w.highs) < w.period {
		return Result{}, nil
	}
	w.ready = true
	return scalar(w.calculate()), nil
}

func (w *WilliamsR) calculate() float64 {
	highestHigh := maxFloat(w.highs)
	lowestLow := minFloat(w.lows)
	denom := highestHigh - lowestLow
	if denom == 0 {
		return 0
	}
	return (highestHigh - w.lastClose) / denom * -100.0
}

func (w *WilliamsR) Value() (Result, error) {
	if !w.ready {
		return Result{}, fmt.Errorf("Williams %%R not ready: need at least %d bars", w.period)
	}
	return scalar(w.calculate()), nil
}

func (w *WilliamsR) Reset() {
	w.highs = w.highs[:0]
	w.lows = w.lows[:0]
	w.ready = false
	w.processed = 0
}

func (w *WilliamsR) IsReady() bool      { return w.ready }
func (w *WilliamsR) WindowSize() int    { return w.period }
func (w *WilliamsR) BarsProcessed() int { return w.processed }

// UltimateOscillator blends three Buying Pressure / True Range averages at
// short, medium, and long periods (classically 7/14/28) into one weighted
// momentum reading between 0 and 100.
type UltimateOscillator struct {
	shortP, mediumP, longP int
	name                   string
	bp                     []float64
	tr                     []float64
	prevClose              float64
	hasPrev                bool
	ready                  bool
	processed              int
}

func NewUltimateOscillator(shortP, mediumP, longP int) (*UltimateOscillator, error) {
	if shortP < 1 || mediumP <= shortP || longP <= mediumP {
		return nil, fmt.Errorf("ultimate oscillator requires shortP < mediumP < longP, got %d/%d/%d", shortP, mediumP, longP)
	}
	return &UltimateOscillator{
		shortP: shortP, mediumP: mediumP, longP: longP,
		name: fmt.Sprintf("ultimate_osc_%d_%d_%d", shortP, mediumP, longP),
		bp:   make([]float64, 0, longP),
		tr:   make([]float64, 0, longP),
	}, nil
}

func (u *UltimateOscillator) Name() string { return u.name }

func (u *UltimateOscillator) Update(bar models.Bar) (Result, error) {
	if !u.hasPrev {
		u.prevClose = bar.Close
		u.hasPrev = true
		u.processed++
		return Result{}, nil
	}

	low := bar.Low
	if u.prevClose < low {
		low = u.prevClose
	}
	high := bar.High
	if u.prevClose > high {
		high = u.prevClose
	}

	buyingPressure := bar.Close - low
	trueRange := high - low

	u.bp = pushWindow(u.bp, buyingPressure, u.longP)
	u.tr = pushWindow(u.tr, trueRange, u.longP)
	u.prevClose = bar.Close
	u.processed++

	if len(u.bp) < u.longP {
		return Result{}, nil
	}

	u.ready = true
	return scalar(u.calculate()), nil
}

func (u *UltimateOscillator) average(n int) float64 {
	bpSum := sumFloat(u.bp[len(u.bp)-n:])
	trSum := sumFloat(u.tr[len(u.tr)-n:])
	if trSum == 0 {
		return 0
	}
	return bpSum / trSum
}

func (u *UltimateOscillator) calculate() float64 {
	avgShort := u.average(u.shortP)
	avgMedium := u.average(u.mediumP)
	avgLong := u.average(u.longP)
	return 100.0 * (4*avgShort + 2*avgMedium + avgLong) / 7.0
}

func (u *UltimateOscillator) Value() (Result, error) {
	if !u.ready {
		return Result{}, fmt.Errorf("ultimate oscillator not ready: need at least %d bars", u.longP+1)
	}
	return scalar(u.calculate()), nil
}

func (u *UltimateOscillator) Reset() {
	u.bp = u.bp[:0]
	u.tr = u.tr[:0]
	u.hasPrev = false
	u.ready = false
	u.processed = 0
}

func (u *UltimateOscillator) IsReady() bool      { return u.ready }
func (u *UltimateOscillator) WindowSize() int    { return u.longP + 1 }
func (u *UltimateOscillator) BarsProcessed() int { return u.processed }
