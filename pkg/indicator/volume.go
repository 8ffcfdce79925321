package indicator

import (
	"fmt"

	"github.com/barforge/sessionengine/internal/models"
)

// VolumeSMA calculates the simple moving average of bar volume over a
// fixed period.
type VolumeSMA struct {
	period    int
	name      string
	volumes   []float64
	ready     bool
	processed int
}

// NewVolumeSMA creates a volume-SMA calculator with the given period.
func NewVolumeSMA(period int) (*VolumeSMA, error) {
	if period < 1 {
		return nil, fmt.Errorf("volume SMA period must be at least 1, got %d", period)
	}
	return &VolumeSMA{period: period, name: fmt.Sprintf("volume_sma_%d", period), volumes: make([]float64, 0, period)}, nil
}

func (v *VolumeSMA) Name() string { return v.name }

func (v *VolumeSMA) Update(bar models.Bar) (Result, error) {
	v.volumes = pushWindow(v.volumes, float64(bar.Volume), v.period)
	v.processed++

	if len(v.volumes) >= v.period {
		v.ready = true
		return scalar(v.calculate()), nil
	}
	return Result{}, nil
}

func (v *VolumeSMA) calculate() float64 {
	if len(v.volumes) == 0 {
		return 0
	}
	return sumFloat(v.volumes) / float64(len(v.volumes))
}

func (v *VolumeSMA) Value() (Result, error) {
	if !v.ready {
		return Result{}, fmt.Errorf("volume SMA not ready: need at least %d bars", v.period)
	}
	return scalar(v.calculate()), nil
}

func (v *VolumeSMA) Reset() {
	v.volumes = v.volumes[:0]
	v.ready = false
	v.processed = 0
}

func (v *VolumeSMA) IsReady() bool      { return v.ready }
func (v *VolumeSMA) WindowSize() int    { return v.period }
func (v *VolumeSMA) BarsProcessed() int { return v.processed }

// VolumeRatio reports the current bar's volume relative to the trailing
// average (VolumeSMA), e.g. 1.5 meaning 50% above average.
type VolumeRatio struct {
	avg       *VolumeSMA
	name      string
	lastValue float64
	ready     bool
}

// NewVolumeRatio creates a volume-ratio calculator averaged over period bars.
func NewVolumeRatio(period int) (*VolumeRatio, error) {
	avg, err := NewVolumeSMA(period)
	if err != nil {
		return nil, err
	}
	return &VolumeRatio{avg: avg, name: fmt.Sprintf("volume_ratio_%d", period)}, nil
}

func (r *VolumeRatio) Name() string { return r.name }

func (r *VolumeRatio) Update(bar models.Bar) (Result, error) {
	if _, err := r.avg.Update(bar); err != nil {
		return Result{}, err
	}
	if !r.avg.IsReady() {
		return Result{}, nil
	}

	avgVol := r.avg.calculate()
	if avgVol == 0 {
		return Result{}, nil
	}

	r.lastValue = float64(bar.Volume) / avgVol
	r.ready = true
	return scalar(r.lastValue), nil
}

func (r *VolumeRatio) Value() (Result, error) {
	if !r.ready {
		return Result{}, fmt.Errorf("volume ratio not ready")
	}
	return scalar(r.lastValue), nil
}

func (r *VolumeRatio) Reset() {
	r.avg.Reset()
	r.lastValue = 0
	r.ready = false
}

func (r *VolumeRatio) IsReady() bool { return r.ready }
