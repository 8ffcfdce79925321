package indicator

import (
	"fmt"
	"math"

	"github.com/barforge/sessionengine/internal/models"
)

// EMA calculates the Exponential Moving Average:
// EMA = (Price - Previous EMA) * Multiplier + Previous EMA,
// Multiplier = 2 / (Period + 1). O(1) carry state, warmup in one bar.
type EMA struct {
	period     int
	name       string
	multiplier float64
	value      float64
	ready      bool
	processed  int
}

// NewEMA creates an EMA calculator with the given period.
func NewEMA(period int) (*EMA, error) {
	if period < 1 {
		return nil, fmt.Errorf("EMA period must be at least 1, got %d", period)
	}
	return &EMA{
		period:     period,
		name:       fmt.Sprintf("ema_%d", period),
		multiplier: 2.0 / float64(period+1),
	}, nil
}

func (e *EMA) Name() string { return e.name }

func (e *EMA) Update(bar models.Bar) (Result, error) {
	price := bar.Close

	if !e.ready {
		e.value = price
		e.ready = true
		e.processed++
		return scalar(e.value), nil
	}

	e.value = (price-e.value)*e.multiplier + e.value
	e.processed++

	if math.IsNaN(e.value) || math.IsInf(e.value, 0) {
		e.value = price
	}

	return scalar(e.value), nil
}

func (e *EMA) Value() (Result, error) {
	if !e.ready {
		return Result{}, fmt.Errorf("EMA not ready: need at least 1 bar")
	}
	return scalar(e.value), nil
}

func (e *EMA) Reset() {
	e.value = 0
	e.ready = false
	e.processed = 0
}

func (e *EMA) IsReady() bool     { return e.ready }
func (e *EMA) WindowSize() int   { return 1 }
func (e *EMA) BarsProcessed() int { return e.processed }

// emaCarryState is the O(1) snapshot an EMA-family indicator persists
// between sessions to avoid replaying full history on warmup.
type emaCarryState struct {
	Value     float64
	Ready     bool
	Processed int
}

func (e *EMA) CarryState() interface{} {
	return emaCarryState{Value: e.value, Ready: e.ready, Processed: e.processed}
}

func (e *EMA) RestoreCarryState(state interface{}) error {
	cs, ok := state.(emaCarryState)
	if !ok {
		return fmt.Errorf("EMA: incompatible carry state type %T", state)
	}
	e.value = cs.Value
	e.ready = cs.Ready
	e.processed = cs.Processed
	return nil
}
