// Package indicator implements the technical-indicator library: one
// Calculator interface and 37 concrete indicators across five categories
// (trend, momentum, volatility, volume, support/resistance + historical),
// each computable from OHLCV alone and able to carry incremental state.
package indicator

import (
	"github.com/barforge/sessionengine/internal/models"
)

// Result is an indicator's output: a bare scalar for single-valued
// indicators (SMA, RSI, ...), or a named field map for multi-valued ones
// (Bollinger Bands -> upper/middle/lower). Fields is nil for scalar
// results.
type Result struct {
	Scalar float64
	Fields map[string]float64
}

// Calculator computes one technical indicator incrementally, one bar at a
// time. Each indicator type implements this interface.
type Calculator interface {
	// Name returns the unique name of this indicator (e.g., "rsi_14").
	Name() string

	// Update processes a new bar and updates the indicator state,
	// returning the new value once warmed up (IsReady() becomes true).
	Update(bar models.Bar) (Result, error)

	// Value returns the current indicator value. Returns an error if not
	// enough data has been processed yet.
	Value() (Result, error)

	// Reset clears the indicator state (used for rehydration and tests).
	Reset()

	// IsReady returns true once the indicator has enough data for a
	// valid value.
	IsReady() bool
}

// WindowedCalculator extends Calculator for indicators that require a
// fixed window of bars to warm up.
type WindowedCalculator interface {
	Calculator

	// WindowSize returns the number of bars required for this indicator.
	WindowSize() int

	// BarsProcessed returns the number of bars processed so far.
	BarsProcessed() int
}

// CarryStateful is implemented by indicators whose internal state can be
// extracted and restored, supporting O(1) incremental warmup from a
// previously computed carry state instead of replaying full history.
type CarryStateful interface {
	Calculator

	// CarryState returns an opaque snapshot of the indicator's internal
	// accumulator.
	CarryState() interface{}

	// RestoreCarryState re-seeds the indicator from a snapshot previously
	// returned by CarryState, on the same concrete type.
	RestoreCarryState(state interface{}) error
}

func scalar(v float64) Result { return Result{Scalar: v} }
