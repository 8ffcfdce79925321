package indicator

import (
	"fmt"
	"math"

	"github.com/barforge/sessionengine/internal/models"
)

// WMA calculates the Weighted Moving Average, giving linearly increasing
// weight to more recent bars: weight_i = i for i in [1, period].
type WMA struct {
	period    int
	name      string
	prices    []float64
	ready     bool
	processed int
}

func NewWMA(period int) (*WMA, error) {
	if period < 1 {
		return nil, fmt.Errorf("WMA period must be at least 1, got %d", period)
	}
	return &WMA{period: period, name: fmt.Sprintf("wma_%d", period), prices: make([]float64, 0, period)}, nil
}

func (w *WMA) Name() string { return w.name }

func (w *WMA) Update(bar models.Bar) (Result, error) {
	w.prices = pushWindow(w.prices, bar.Close, w.period)
	w.processed++
	if len(w.prices) >= w.period {
		w.ready = true
		return scalar(weightedAverage(w.prices)), nil
	}
	return Result{}, nil
}

func weightedAverage(values []float64) float64 {
	var weightedSum, weightTotal float64
	for i, v := range values {
		weight := float64(i + 1)
		weightedSum += v * weight
		weightTotal += weight
	}
	if weightTotal == 0 {
		return 0
	}
	return weightedSum / weightTotal
}

func (w *WMA) Value() (Result, error) {
	if !w.ready {
		return Result{}, fmt.Errorf("WMA not ready: need at least %d bars", w.period)
	}
	return scalar(weightedAverage(w.prices)), nil
}

func (w *WMA) Reset() {
	w.prices = w.prices[:0]
	w.ready = false
	w.processed = 0
}

func (w *WMA) IsReady() bool      { return w.ready }
func (w *WMA) WindowSize() int    { return w.period }
func (w *WMA) BarsProcessed() int { return w.processed }

// DEMA calculates the Double Exponential Moving Average:
// DEMA = 2*EMA(price) - EMA(EMA(price)), reducing EMA's inherent lag.
type DEMA struct {
	period int
	name   string
	ema1   *EMA
	ema2   *EMA
	ready  bool
}

func NewDEMA(period int) (*DEMA, error) {
	ema1, err := NewEMA(period)
	if err != nil {
		return nil, fmt.Errorf("DEMA: %w", err)
	}
	ema2, _ := NewEMA(period)
	return &DEMA{period: period, name: fmt.Sprintf("dema_%d", period), ema1: ema1, ema2: ema2}, nil
}

func (d *DEMA) Name() string { return d.name }

func (d *DEMA) Update(bar models.Bar) (Result, error) {
	r1, err := d.ema1.Update(bar)
	if err != nil {
		return Result{}, err
	}
	if !d.ema1.IsReady() {
		return Result{}, nil
	}

	r2, err := d.ema2.Update(models.Bar{Symbol: bar.Symbol, Timestamp: bar.Timestamp, Close: r1.Scalar})
	if err != nil {
		return Result{}, err
	}
	if !d.ema2.IsReady() {
		return Result{}, nil
	}

	d.ready = true
	return scalar(2*r1.Scalar - r2.Scalar), nil
}

func (d *DEMA) Value() (Result, error) {
	if !d.ready {
		return Result{}, fmt.Errorf("DEMA not ready: need at least %d bars", d.period)
	}
	v1, _ := d.ema1.Value()
	v2, _ := d.ema2.Value()
	return scalar(2*v1.Scalar - v2.Scalar), nil
}

func (d *DEMA) Reset() {
	d.ema1.Reset()
	d.ema2.Reset()
	d.ready = false
}

func (d *DEMA) IsReady() bool      { return d.ready }
func (d *DEMA) WindowSize() int    { return d.period }
func (d *DEMA) BarsProcessed() int { return d.ema1.BarsProcessed() }

// TEMA calculates the Triple Exponential Moving Average:
// TEMA = 3*EMA1 - 3*EMA2 + EMA3, where EMA2 is EMA of EMA1 and EMA3 is EMA
// of EMA2.
type TEMA struct {
	period int
	name   string
	ema1   *EMA
	ema2   *EMA
	ema3   *EMA
	ready  bool
}

func NewTEMA(period int) (*TEMA, error) {
	ema1, err := NewEMA(period)
	if err != nil {
		return nil, fmt.Errorf("TEMA: %w", err)
	}
	ema2, _ := NewEMA(period)
	ema3, _ := NewEMA(period)
	return &TEMA{period: period, name: fmt.Sprintf("tema_%d", period), ema1: ema1, ema2: ema2, ema3: ema3}, nil
}

func (t *TEMA) Name() string { return t.name }

func (t *TEMA) Update(bar models.Bar) (Result, error) {
	r1, _ := t.ema1.Update(bar)
	if !t.ema1.IsReady() {
		return Result{}, nil
	}
	r2, _ := t.ema2.Update(models.Bar{Symbol: bar.Symbol, Timestamp: bar.Timestamp, Close: r1.Scalar})
	if !t.ema2.IsReady() {
		return Result{}, nil
	}
	r3, _ := t.ema3.Update(models.Bar{Symbol: bar.Symbol, Timestamp: bar.Timestamp, Close: r2.Scalar})
	if !t.ema3.IsReady() {
		return Result{}, nil
	}

	t.ready = true
	return scalar(3*r1.Scalar - 3*r2.Scalar + r3.Scalar), nil
}

func (t *TEMA) Value() (Result, error) {
	if !t.ready {
		return Result{}, fmt.Errorf("TEMA not ready: need at least %d bars", t.period)
	}
	v1, _ := t.ema1.Value()
	v2, _ := t.ema2.Value()
	v3, _ := t.ema3.Value()
	return scalar(3*v1.Scalar - 3*v2.Scalar + v3.Scalar), nil
}

func (t *TEMA) Reset() {
	t.ema1.Reset()
	t.ema2.Reset()
	t.ema3.Reset()
	t.ready = false
}

func (t *TEMA) IsReady() bool      { return t.ready }
func (t *TEMA) WindowSize() int    { return t.period }
func (t *TEMA) BarsProcessed() int { return t.ema1.BarsProcessed() }

// HMA calculates the Hull Moving Average:
// HMA = WMA(2*WMA(price, period/2) - WMA(price, period), sqrt(period)),
// trading a little extra lag for a much smoother, faster-turning average.
type HMA struct {
	period    int
	sqrtN     int
	name      string
	wmaHalf   *WMA
	wmaFull   *WMA
	diffs     []float64
	ready     bool
	processed int
}

func NewHMA(period int) (*HMA, error) {
	if period < 2 {
		return nil, fmt.Errorf("HMA period must be at least 2, got %d", period)
	}
	half, err := NewWMA(period / 2)
	if err != nil {
		return nil, fmt.Errorf("HMA: %w", err)
	}
	full, _ := NewWMA(period)
	sqrtN := int(math.Round(math.Sqrt(float64(period))))
	if sqrtN < 1 {
		sqrtN = 1
	}
	return &HMA{period: period, sqrtN: sqrtN, name: fmt.Sprintf("hma_%d", period), wmaHalf: half, wmaFull: full, diffs: make([]float64, 0, sqrtN)}, nil
}

func (h *HMA) Name() string { return h.name }

func (h *HMA) Update(bar models.Bar) (Result, error) {
	h.processed++
	rHalf, _ := h.wmaHalf.Update(bar)
	rFull, _ := h.wmaFull.Update(bar)
	if !h.wmaFull.IsReady() {
		return Result{}, nil
	}

	diff := 2*rHalf.Scalar - rFull.Scalar
	h.diffs = pushWindow(h.diffs, diff, h.sqrtN)
	if len(h.diffs) < h.sqrtN {
		return Result{}, nil
	}

	h.ready = true
	return scalar(weightedAverage(h.diffs)), nil
}

func (h *HMA) Value() (Result, error) {
	if !h.ready {
		return Result{}, fmt.Errorf("HMA not ready: need at least %d bars", h.period)
	}
	return scalar(weightedAverage(h.diffs)), nil
}

func (h *HMA) Reset() {
	h.wmaHalf.Reset()
	h.wmaFull.Reset()
	h.diffs = h.diffs[:0]
	h.ready = false
	h.processed = 0
}

func (h *HMA) IsReady() bool      { return h.ready }
func (h *HMA) WindowSize() int    { return h.period }
func (h *HMA) BarsProcessed() int { return h.processed }

// TWAP calculates the unweighted Time Weighted Average Price over a fixed
// bar-count window: the mean typical price across the window, assuming
// uniform bar spacing.
type TWAP struct {
	period    int
	name      string
	prices    []float64
	ready     bool
	processed int
}

func NewTWAP(period int) (*TWAP, error) {
	if period < 1 {
		return nil, fmt.Errorf("TWAP period must be at least 1, got %d", period)
	}
	return &TWAP{period: period, name: fmt.Sprintf("twap_%d", period), prices: make([]float64, 0, period)}, nil
}

func (t *TWAP) Name() string { return t.name }

func (t *TWAP) Update(bar models.Bar) (Result, error) {
	typicalPrice := (bar.High + bar.Low + bar.Close) / 3.0
	t.prices = pushWindow(t.prices, typicalPrice, t.period)
	t.processed++
	if len(t.prices) >= t.period {
		t.ready = true
		return scalar(sumFloat(t.prices) / float64(len(t.prices))), nil
	}
	return Result{}, nil
}

func (t *TWAP) Value() (Result, error) {
	if !t.ready {
		return Result{}, fmt.Errorf("TWAP not ready: need at least %d bars", t.period)
	}
	return scalar(sumFloat(t.prices) / float64(len(t.prices))), nil
}

func (t *TWAP) Reset() {
	t.prices = t.prices[:0]
	t.ready = false
	t.processed = 0
}

func (t *TWAP) IsReady() bool      { return t.ready }
func (t *TWAP) WindowSize() int    { return t.period }
func (t *TWAP) BarsProcessed() int { return t.processed }
