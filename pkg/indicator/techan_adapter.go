package indicator

import (
	"fmt"
	"time"

	"github.com/sdcoffey/big"
	"github.com/sdcoffey/techan"

	"github.com/barforge/sessionengine/internal/models"
)

// TechanCalculator wraps one or more techan.Indicator instances, all
// computed against a shared techan.TimeSeries, to implement Calculator.
// A single scalar indicator (ATR) uses only primary; a
// multi-valued indicator (Bollinger Bands) also populates fields, whose
// values are reported through Result.Fields.
type TechanCalculator struct {
	name         string
	series       *techan.TimeSeries
	primary      techan.Indicator
	fields       map[string]techan.Indicator
	period       int
	candlePeriod time.Duration
	ready        bool
}

// NewTechanCalculator creates a scalar Techan-backed calculator. candlePeriod
// is the duration represented by one bar (e.g. time.Minute for a 1m base
// interval) and must match the interval the caller feeds through Update.
func NewTechanCalculator(name string, primary techan.Indicator, period int, candlePeriod time.Duration) *TechanCalculator {
	return &TechanCalculator{
		name:         name,
		series:       techan.NewTimeSeries(),
		primary:      primary,
		period:       period,
		candlePeriod: candlePeriod,
	}
}

// NewTechanMultiCalculator creates a Techan-backed calculator that reports
// a primary scalar plus named auxiliary fields (e.g. Bollinger Bands'
// upper/middle/lower).
func NewTechanMultiCalculator(name string, primary techan.Indicator, fields map[string]techan.Indicator, period int, candlePeriod time.Duration) *TechanCalculator {
	calc := NewTechanCalculator(name, primary, period, candlePeriod)
	calc.fields = fields
	return calc
}

func (t *TechanCalculator) Name() string { return t.name }

func (t *TechanCalculator) Update(bar models.Bar) (Result, error) {
	timePeriod := techan.NewTimePeriod(bar.Timestamp, t.candlePeriod)
	candle := techan.NewCandle(timePeriod)
	candle.OpenPrice = big.NewDecimal(bar.Open)
	candle.MaxPrice = big.NewDecimal(bar.High)
	candle.MinPrice = big.NewDecimal(bar.Low)
	candle.ClosePrice = big.NewDecimal(bar.Close)
	candle.Volume = big.NewDecimal(float64(bar.Volume))

	t.series.AddCandle(candle)

	lastIndex := t.series.LastIndex()
	if lastIndex < 0 {
		return Result{}, nil
	}

	res := t.calculate(lastIndex)
	if !isNaN(res.Scalar) {
		t.ready = true
		return res, nil
	}
	return Result{}, nil
}

func (t *TechanCalculator) calculate(index int) Result {
	res := scalar(t.primary.Calculate(index).Float())
	if len(t.fields) == 0 {
		return res
	}

	res.Fields = make(map[string]float64, len(t.fields))
	for name, ind := range t.fields {
		res.Fields[name] = ind.Calculate(index).Float()
	}
	return res
}

func (t *TechanCalculator) Value() (Result, error) {
	if !t.ready {
		return Result{}, fmt.Errorf("indicator not ready: need at least %d bars", t.period)
	}
	return t.calculate(t.series.LastIndex()), nil
}

func (t *TechanCalculator) Reset() {
	t.series = techan.NewTimeSeries()
	t.ready = false
}

func (t *TechanCalculator) IsReady() bool { return t.ready }

func (t *TechanCalculator) WindowSize() int { return t.period }

func (t *TechanCalculator) BarsProcessed() int { return t.series.LastIndex() + 1 }
