package indicator

import (
	"sync"
	"time"

	"github.com/barforge/sessionengine/internal/models"
)

// SymbolState manages a rolling bar window and a set of calculators for a
// single symbol. It is the per-symbol engine underneath the session
// indicator manager: one SymbolState per (symbol, interval) pair.
type SymbolState struct {
	symbol      string
	mu          sync.RWMutex
	calculators map[string]Calculator
	bars        []models.Bar
	maxBars     int
	lastUpdate  time.Time
}

// NewSymbolState creates a new symbol state retaining up to maxBars bars.
func NewSymbolState(symbol string, maxBars int) *SymbolState {
	return &SymbolState{
		symbol:      symbol,
		calculators: make(map[string]Calculator),
		bars:        make([]models.Bar, 0, maxBars),
		maxBars:     maxBars,
	}
}

// AddCalculator adds a calculator to this symbol's state.
func (s *SymbolState) AddCalculator(calc Calculator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculators[calc.Name()] = calc
}

// RemoveCalculator removes a calculator from this symbol's state.
func (s *SymbolState) RemoveCalculator(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.calculators, name)
}

// Update processes a new bar and updates all calculators.
func (s *SymbolState) Update(bar models.Bar) error {
	if bar.Symbol != s.symbol {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.bars = append(s.bars, bar)
	if len(s.bars) > s.maxBars {
		copy(s.bars, s.bars[1:])
		s.bars = s.bars[:len(s.bars)-1]
	}

	for _, calc := range s.calculators {
		_, _ = calc.Update(bar)
	}

	s.lastUpdate = bar.Timestamp
	return nil
}

// GetValue retrieves the current value of an indicator. A missing
// calculator returns a zero Result, not an error, mirroring the teacher's
// "absent means not-yet-provisioned" convention.
func (s *SymbolState) GetValue(calculatorName string) (Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	calc, exists := s.calculators[calculatorName]
	if !exists {
		return Result{}, nil
	}
	return calc.Value()
}

// IsReady reports whether the named calculator has completed warmup. A
// missing calculator is not ready.
func (s *SymbolState) IsReady(calculatorName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	calc, exists := s.calculators[calculatorName]
	return exists && calc.IsReady()
}

// GetAllValues returns all currently ready indicator values.
func (s *SymbolState) GetAllValues() map[string]Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make(map[string]Result)
	for name, calc := range s.calculators {
		if calc.IsReady() {
			if val, err := calc.Value(); err == nil {
				values[name] = val
			}
		}
	}
	return values
}

// GetBars returns a copy of the current bars window.
func (s *SymbolState) GetBars() []models.Bar {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bars := make([]models.Bar, len(s.bars))
	copy(bars, s.bars)
	return bars
}

// GetLastUpdate returns the time of the last update.
func (s *SymbolState) GetLastUpdate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdate
}

// Reset clears all state, including every registered calculator.
func (s *SymbolState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bars = s.bars[:0]
	for _, calc := range s.calculators {
		calc.Reset()
	}
	s.lastUpdate = time.Time{}
}

// Rehydrate replays historical bars through the calculators, used when
// warming up an indicator after a mid-session add or a worker restart.
func (s *SymbolState) Rehydrate(bars []models.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bars = s.bars[:0]
	for _, calc := range s.calculators {
		calc.Reset()
	}

	for _, bar := range bars {
		if bar.Symbol != s.symbol {
			continue
		}

		s.bars = append(s.bars, bar)
		if len(s.bars) > s.maxBars {
			copy(s.bars, s.bars[1:])
			s.bars = s.bars[:len(s.bars)-1]
		}

		for _, calc := range s.calculators {
			_, _ = calc.Update(bar)
		}
	}

	if len(bars) > 0 {
		s.lastUpdate = bars[len(bars)-1].Timestamp
	}

	return nil
}
