package indicator

import (
	"fmt"

	"github.com/barforge/sessionengine/internal/models"
)

// Momentum (MOM) calculates the percentage price change between the
// current close and the close from `period` bars ago. Unlike techan's
// indicator set, nothing in techan computes this directly, so it is
// hand-rolled following the rolling-window shape used by sma.go.
type Momentum struct {
	period    int
	name      string
	closes    []float64
	ready     bool
	processed int
	lastValue float64
}

// NewMomentum creates a MOM calculator over the given bar-count period.
func NewMomentum(period int) (*Momentum, error) {
	if period < 1 {
		return nil, fmt.Errorf("momentum period must be at least 1, got %d", period)
	}
	return &Momentum{
		period: period,
		name:   fmt.Sprintf("mom_%d_pct", period),
		closes: make([]float64, 0, period+1),
	}, nil
}

func (m *Momentum) Name() string { return m.name }

func (m *Momentum) Update(bar models.Bar) (Result, error) {
	m.closes = pushWindow(m.closes, bar.Close, m.period+1)
	m.processed++

	if len(m.closes) < m.period+1 {
		return Result{}, nil
	}

	m.lastValue = m.calculate()
	m.ready = true
	return scalar(m.lastValue), nil
}

func (m *Momentum) calculate() float64 {
	oldest := m.closes[0]
	newest := m.closes[len(m.closes)-1]
	if oldest == 0 {
		return 0
	}
	return ((newest - oldest) / oldest) * 100.0
}

func (m *Momentum) Value() (Result, error) {
	if !m.ready {
		return Result{}, fmt.Errorf("momentum not ready: need at least %d bars", m.period+1)
	}
	return scalar(m.lastValue), nil
}

func (m *Momentum) Reset() {
	m.closes = m.closes[:0]
	m.ready = false
	m.processed = 0
	m.lastValue = 0
}

func (m *Momentum) IsReady() bool      { return m.ready }
func (m *Momentum) WindowSize() int    { return m.period + 1 }
func (m *Momentum) BarsProcessed() int { return m.processed }
