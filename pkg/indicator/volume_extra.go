package indicator

import (
	"fmt"

	"github.com/barforge/sessionengine/internal/models"
)

// OBV calculates On Balance Volume: a cumulative running total that adds
// the bar's volume when close rises, subtracts it when close falls, and
// leaves the total unchanged on a flat close. O(1) carry state.
type OBV struct {
	name      string
	total     float64
	prevClose float64
	hasPrev   bool
	ready     bool
	processed int
}

func NewOBV() *OBV {
	return &OBV{name: "obv"}
}

func (o *OBV) Name() string { return o.name }

func (o *OBV) Update(bar models.Bar) (Result, error) {
	o.processed++
	if !o.hasPrev {
		o.prevClose = bar.Close
		o.hasPrev = true
		o.ready = true
		return scalar(o.total), nil
	}

	switch {
	case bar.Close > o.prevClose:
		o.total += float64(bar.Volume)
	case bar.Close < o.prevClose:
		o.total -= float64(bar.Volume)
	}
	o.prevClose = bar.Close
	return scalar(o.total), nil
}

func (o *OBV) Value() (Result, error) {
	if !o.ready {
		return Result{}, fmt.Errorf("OBV not ready: no bars processed")
	}
	return scalar(o.total), nil
}

func (o *OBV) Reset() {
	o.total = 0
	o.hasPrev = false
	o.ready = false
	o.processed = 0
}

func (o *OBV) IsReady() bool      { return o.ready }
func (o *OBV) WindowSize() int    { return 1 }
func (o *OBV) BarsProcessed() int { return o.processed }

type obvCarryState struct {
	Total     float64
	PrevClose float64
}

func (o *OBV) CarryState() interface{} {
	return obvCarryState{Total: o.total, PrevClose: o.prevClose}
}

func (o *OBV) RestoreCarryState(state interface{}) error {
	cs, ok := state.(obvCarryState)
	if !ok {
		return fmt.Errorf("OBV: incompatible carry state type %T", state)
	}
	o.total = cs.Total
	o.prevClose = cs.PrevClose
	o.hasPrev = true
	o.ready = true
	return nil
}

// PVT calculates the Price Volume Trend: a cumulative running total that
// adds volume scaled by the bar's percentage price change. O(1) carry
// state, same shape as OBV but continuous rather than sign-only.
type PVT struct {
	name      string
	total     float64
	prevClose float64
	hasPrev   bool
	ready     bool
	processed int
}

func NewPVT() *PVT {
	return &PVT{name: "pvt"}
}

func (p *PVT) Name() string { return p.name }

func (p *PVT) Update(bar models.Bar) (Result, error) {
	p.processed++
	if !p.hasPrev {
		p.prevClose = bar.Close
		p.hasPrev = true
		p.ready = true
		return scalar(p.total), nil
	}

	if p.prevClose != 0 {
		p.total += float64(bar.Volume) * ((bar.Close - p.prevClose) / p.prevClose)
	}
	p.prevClose = bar.Close
	return scalar(p.total), nil
}

func (p *PVT) Value() (Result, error) {
	if !p.ready {
		return Result{}, fmt.Errorf("PVT not ready: no bars processed")
	}
	return scalar(p.total), nil
}

func (p *PVT) Reset() {
	p.total = 0
	p.hasPrev = false
	p.ready = false
	p.processed = 0
}

func (p *PVT) IsReady() bool      { return p.ready }
func (p *PVT) WindowSize() int    { return 1 }
func (p *PVT) BarsProcessed() int { return p.processed }

type pvtCarryState struct {
	Total     float64
	PrevClose float64
}

func (p *PVT) CarryState() interface{} {
	return pvtCarryState{Total: p.total, PrevClose: p.prevClose}
}

func (p *PVT) RestoreCarryState(state interface{}) error {
	cs, ok := state.(pvtCarryState)
	if !ok {
		return fmt.Errorf("PVT: incompatible carry state type %T", state)
	}
	p.total = cs.Total
	p.prevClose = cs.PrevClose
	p.hasPrev = true
	p.ready = true
	return nil
}

// AvgVolume is the longer-horizon, historical-context sibling of
// VolumeSMA: a plain rolling average of bar volume, exposed under its own
// name/token for strategies that want session-context volume rather than
// a live short-window signal.
type AvgVolume struct {
	period    int
	name      string
	volumes   []float64
	ready     bool
	processed int
}

func NewAvgVolume(period int) (*AvgVolume, error) {
	if period < 1 {
		return nil, fmt.Errorf("avg volume period must be at least 1, got %d", period)
	}
	return &AvgVolume{period: period, name: fmt.Sprintf("avg_volume_%d", period), volumes: make([]float64, 0, period)}, nil
}

func (a *AvgVolume) Name() string { return a.name }

func (a *AvgVolume) Update(bar models.Bar) (Result, error) {
	a.volumes = pushWindow(a.volumes, float64(bar.Volume), a.period)
	a.processed++
	if len(a.volumes) < a.period {
		return Result{}, nil
	}
	a.ready = true
	return scalar(sumFloat(a.volumes) / float64(len(a.volumes))), nil
}

func (a *AvgVolume) Value() (Result, error) {
	if !a.ready {
		return Result{}, fmt.Errorf("avg volume not ready: need at least %d bars", a.period)
	}
	return scalar(sumFloat(a.volumes) / float64(len(a.volumes))), nil
}

func (a *AvgVolume) Reset() {
	a.volumes = a.volumes[:0]
	a.ready = false
	a.processed = 0
}

func (a *AvgVolume) IsReady() bool      { return a.ready }
func (a *AvgVolume) WindowSize() int    { return a.period }
func (a *AvgVolume) BarsProcessed() int { return a.processed }

// AvgRange is the rolling average bar range (high - low) over period bars,
// used as historical context for volatility-relative sizing.
type AvgRange struct {
	period    int
	name      string
	ranges    []float64
	ready     bool
	processed int
}

func NewAvgRange(period int) (*AvgRange, error) {
	if period < 1 {
		return nil, fmt.Errorf("avg range period must be at least 1, got %d", period)
	}
	return &AvgRange{period: period, name: fmt.Sprintf("avg_range_%d", period), ranges: make([]float64, 0, period)}, nil
}

func (a *AvgRange) Name() string { return a.name }

func (a *AvgRange) Update(bar models.Bar) (Result, error) {
	a.ranges = pushWindow(a.ranges, bar.High-bar.Low, a.period)
	a.processed++
	if len(a.ranges) < a.period {
		return Result{}, nil
	}
	a.ready = true
	return scalar(sumFloat(a.ranges) / float64(len(a.ranges))), nil
}

func (a *AvgRange) Value() (Result, error) {
	if !a.ready {
		return Result{}, fmt.Errorf("avg range not ready: need at least %d bars", a.period)
	}
	return scalar(sumFloat(a.ranges) / float64(len(a.ranges))), nil
}

func (a *AvgRange) Reset() {
	a.ranges = a.ranges[:0]
	a.ready = false
	a.processed = 0
}

func (a *AvgRange) IsReady() bool      { return a.ready }
func (a *AvgRange) WindowSize() int    { return a.period }
func (a *AvgRange) BarsProcessed() int { return a.processed }
