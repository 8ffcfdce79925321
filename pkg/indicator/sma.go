package indicator

import (
	"fmt"

	"github.com/barforge/sessionengine/internal/models"
)

// SMA calculates the Simple Moving Average: sum of closes over period /
// period.
type SMA struct {
	period    int
	name      string
	prices    []float64
	ready     bool
	processed int
}

// NewSMA creates an SMA calculator with the given period.
func NewSMA(period int) (*SMA, error) {
	if period < 1 {
		return nil, fmt.Errorf("SMA period must be at least 1, got %d", period)
	}
	return &SMA{
		period: period,
		name:   fmt.Sprintf("sma_%d", period),
		prices: make([]float64, 0, period),
	}, nil
}

func (s *SMA) Name() string { return s.name }

func (s *SMA) Update(bar models.Bar) (Result, error) {
	s.prices = pushWindow(s.prices, bar.Close, s.period)
	s.processed++

	if len(s.prices) >= s.period {
		s.ready = true
		return scalar(s.calculate()), nil
	}
	return Result{}, nil
}

func (s *SMA) calculate() float64 {
	if len(s.prices) == 0 {
		return 0
	}
	return sumFloat(s.prices) / float64(len(s.prices))
}

func (s *SMA) Value() (Result, error) {
	if !s.ready {
		return Result{}, fmt.Errorf("SMA not ready: need at least %d bars", s.period)
	}
	return scalar(s.calculate()), nil
}

func (s *SMA) Reset() {
	s.prices = s.prices[:0]
	s.ready = false
	s.processed = 0
}

func (s *SMA) IsReady() bool { return s.ready }
func (s *SMA) WindowSize() int { return s.period }
func (s *SMA) BarsProcessed() int { return s.processed }
