package indicator

import (
	"fmt"

	"github.com/barforge/sessionengine/internal/models"
)

// VWAP calculates the cumulative session Volume Weighted Average Price:
// VWAP = Sum(typical_price * volume) / Sum(volume) since the last Reset.
// O(1) carry state (two running sums), no bar retention.
type VWAP struct {
	name             string
	totalPriceVolume float64
	totalVolume      int64
	ready            bool
	processed        int
}

// NewVWAP creates a session-cumulative VWAP calculator keyed by interval
// token (e.g. "vwap_1m").
func NewVWAP(intervalToken string) (*VWAP, error) {
	if intervalToken == "" {
		return nil, fmt.Errorf("VWAP requires a non-empty interval token")
	}
	return &VWAP{name: fmt.Sprintf("vwap_%s", intervalToken)}, nil
}

func (v *VWAP) Name() string { return v.name }

func (v *VWAP) Update(bar models.Bar) (Result, error) {
	typicalPrice := (bar.High + bar.Low + bar.Close) / 3.0
	v.totalPriceVolume += typicalPrice * float64(bar.Volume)
	v.totalVolume += bar.Volume
	v.processed++

	if v.totalVolume > 0 {
		v.ready = true
		return scalar(v.calculate()), nil
	}
	return Result{}, nil
}

func (v *VWAP) calculate() float64 {
	if v.totalVolume == 0 {
		return 0
	}
	return v.totalPriceVolume / float64(v.totalVolume)
}

func (v *VWAP) Value() (Result, error) {
	if !v.ready {
		return Result{}, fmt.Errorf("VWAP not ready: no volume accumulated this session")
	}
	return scalar(v.calculate()), nil
}

func (v *VWAP) Reset() {
	v.totalPriceVolume = 0
	v.totalVolume = 0
	v.ready = false
	v.processed = 0
}

func (v *VWAP) IsReady() bool     { return v.ready }
func (v *VWAP) WindowSize() int   { return 1 }
func (v *VWAP) BarsProcessed() int { return v.processed }

type vwapCarryState struct {
	TotalPriceVolume float64
	TotalVolume      int64
}

func (v *VWAP) CarryState() interface{} {
	return vwapCarryState{TotalPriceVolume: v.totalPriceVolume, TotalVolume: v.totalVolume}
}

func (v *VWAP) RestoreCarryState(state interface{}) error {
	cs, ok := state.(vwapCarryState)
	if !ok {
		return fmt.Errorf("VWAP: incompatible carry state type %T", state)
	}
	v.totalPriceVolume = cs.TotalPriceVolume
	v.totalVolume = cs.TotalVolume
	v.ready = cs.TotalVolume > 0
	return nil
}
