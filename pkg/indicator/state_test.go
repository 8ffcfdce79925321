package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barforge/sessionengine/internal/models"
)

func TestSymbolState_Update(t *testing.T) {
	state := NewSymbolState("AAPL", 10)

	calc := &mockCalculator{name: "test"}
	state.AddCalculator(calc)

	bar := models.Bar{Symbol: "AAPL", Timestamp: time.Now(), Open: 100.0, High: 105.0, Low: 99.0, Close: 103.0, Volume: 1000}

	require.NoError(t, state.Update(bar))

	bars := state.GetBars()
	require.Len(t, bars, 1)
	assert.Equal(t, "AAPL", bars[0].Symbol)
}

func TestSymbolState_RingBuffer(t *testing.T) {
	state := NewSymbolState("AAPL", 3)

	for i := 0; i < 5; i++ {
		bar := models.Bar{Symbol: "AAPL", Timestamp: time.Now().Add(time.Duration(i) * time.Minute), Close: float64(i)}
		_ = state.Update(bar)
	}

	bars := state.GetBars()
	require.Len(t, bars, 3)
	assert.Equal(t, 2.0, bars[0].Close)
	assert.Equal(t, 4.0, bars[2].Close)
}

func TestSymbolState_GetValue(t *testing.T) {
	state := NewSymbolState("AAPL", 10)

	calc := &mockCalculator{name: "test"}
	state.AddCalculator(calc)

	now := time.Now()
	_ = state.Update(models.Bar{Symbol: "AAPL", Timestamp: now})
	_ = state.Update(models.Bar{Symbol: "AAPL", Timestamp: now})

	value, err := state.GetValue("test")
	require.NoError(t, err)
	assert.Equal(t, 2.0, value.Scalar)

	value, err = state.GetValue("nonexistent")
	require.NoError(t, err)
	assert.Zero(t, value.Scalar)
}

func TestSymbolState_GetAllValues(t *testing.T) {
	state := NewSymbolState("AAPL", 10)

	calc1 := &mockCalculator{name: "test1"}
	calc2 := &mockCalculator{name: "test2"}
	state.AddCalculator(calc1)
	state.AddCalculator(calc2)

	now := time.Now()
	_ = state.Update(models.Bar{Symbol: "AAPL", Timestamp: now})
	_ = state.Update(models.Bar{Symbol: "AAPL", Timestamp: now})

	values := state.GetAllValues()
	require.Len(t, values, 2)
	assert.Equal(t, 2.0, values["test1"].Scalar)
	assert.Equal(t, 2.0, values["test2"].Scalar)
}

func TestSymbolState_Reset(t *testing.T) {
	state := NewSymbolState("AAPL", 10)

	calc := &mockCalculator{name: "test"}
	state.AddCalculator(calc)

	bar := models.Bar{Symbol: "AAPL", Timestamp: time.Now()}
	_ = state.Update(bar)
	_ = state.Update(bar)

	state.Reset()

	assert.Empty(t, state.GetBars())

	value, _ := state.GetValue("test")
	assert.Zero(t, value.Scalar)
}

func TestSymbolState_Rehydrate(t *testing.T) {
	state := NewSymbolState("AAPL", 10)

	calc := &mockCalculator{name: "test"}
	state.AddCalculator(calc)

	bars := make([]models.Bar, 5)
	for i := 0; i < 5; i++ {
		bars[i] = models.Bar{Symbol: "AAPL", Timestamp: time.Now().Add(time.Duration(i) * time.Minute), Close: float64(i)}
	}

	require.NoError(t, state.Rehydrate(bars))

	stateBars := state.GetBars()
	assert.Len(t, stateBars, 5)

	value, _ := state.GetValue("test")
	assert.Equal(t, 5.0, value.Scalar)
}

func TestSymbolState_IgnoreWrongSymbol(t *testing.T) {
	state := NewSymbolState("AAPL", 10)

	calc := &mockCalculator{name: "test"}
	state.AddCalculator(calc)

	bar := models.Bar{Symbol: "MSFT", Timestamp: time.Now()}
	require.NoError(t, state.Update(bar))

	assert.Empty(t, state.GetBars())
}
