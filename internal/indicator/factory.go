package indicator

import (
	"fmt"
	"time"

	pkgindicator "github.com/barforge/sessionengine/pkg/indicator"
)

// ultimateOscillatorScaleFactor derives the Ultimate Oscillator's
// short/medium/long lookbacks from one number: the "period" a Config
// carries selects the short leg, with the medium/long legs scaled 2x/4x
// from it, matching the indicator's usual 7/14/28 default shape.
const ultimateOscillatorScaleFactor = 2

// newCalculator builds the Calculator for cfg, dispatching by cfg.Name.
// candlePeriod is the wall-clock duration one bar of cfg.Interval
// represents, used only by the techan-backed adapters to stamp candles.
func newCalculator(cfg Config, candlePeriod time.Duration) (pkgindicator.Calculator, error) {
	switch cfg.Name {
	// techan-backed
	case "macd":
		fast, slow, signal := cfg.Period, cfg.Period*2+4, 9
		if cfg.MACDParams != nil {
			fast, slow, signal = cfg.MACDParams[0], cfg.MACDParams[1], cfg.MACDParams[2]
		}
		return pkgindicator.CreateTechanMACD(fast, slow, signal, candlePeriod)()
	case "atr":
		return pkgindicator.CreateTechanATR(cfg.Period, candlePeriod)()
	case "bb", "bollinger_bands":
		mult := cfg.Multiplier
		if mult == 0 {
			mult = 2.0
		}
		return pkgindicator.CreateTechanBollingerBands(cfg.Period, mult, candlePeriod)()
	case "stoch", "stochastic":
		d := cfg.StochasticDPeriod
		if d == 0 {
			d = 3
		}
		return pkgindicator.CreateTechanStochastic(cfg.Period, d, candlePeriod)()

	// hand-rolled
	case "sma":
		return pkgindicator.NewSMA(cfg.Period)
	case "ema":
		return pkgindicator.NewEMA(cfg.Period)
	case "rsi":
		return pkgindicator.NewRSI(cfg.Period)
	case "vwap":
		return pkgindicator.NewVWAP(cfg.Interval.String())
	case "wma":
		return pkgindicator.NewWMA(cfg.Period)
	case "dema":
		return pkgindicator.NewDEMA(cfg.Period)
	case "tema":
		return pkgindicator.NewTEMA(cfg.Period)
	case "hma":
		return pkgindicator.NewHMA(cfg.Period)
	case "twap":
		return pkgindicator.NewTWAP(cfg.Period)
	case "cci":
		return pkgindicator.NewCCI(cfg.Period)
	case "roc":
		return pkgindicator.NewROC(cfg.Period)
	case "williams_r":
		return pkgindicator.NewWilliamsR(cfg.Period)
	case "ultimate_oscillator":
		short := cfg.Period
		return pkgindicator.NewUltimateOscillator(short, short*ultimateOscillatorScaleFactor, short*ultimateOscillatorScaleFactor*ultimateOscillatorScaleFactor)
	case "mom", "momentum":
		return pkgindicator.NewMomentum(cfg.Period)
	case "keltner_channels":
		mult := cfg.Multiplier
		if mult == 0 {
			mult = 2.0
		}
		return pkgindicator.NewKeltnerChannels(cfg.Period, mult)
	case "donchian_channels":
		return pkgindicator.NewDonchianChannels(cfg.Period)
	case "stddev":
		return pkgindicator.NewStdDev(cfg.Period)
	case "historical_vol":
		periodsPerYear := cfg.PeriodsPerYear
		if periodsPerYear == 0 {
			periodsPerYear = 252
		}
		return pkgindicator.NewHistoricalVol(cfg.Period, periodsPerYear)
	case "atr_daily":
		return pkgindicator.NewATRDaily(cfg.Period)
	case "obv":
		return pkgindicator.NewOBV(), nil
	case "pvt":
		return pkgindicator.NewPVT(), nil
	case "volume_sma":
		return pkgindicator.NewVolumeSMA(cfg.Period)
	case "volume_ratio":
		return pkgindicator.NewVolumeRatio(cfg.Period)
	case "pivot_points":
		return pkgindicator.NewPivotPoints(), nil
	case "high_low":
		return pkgindicator.NewHighLowN(cfg.Period)
	case "swing_high_low":
		return pkgindicator.NewSwingHighLow(cfg.Period)
	case "avg_volume":
		return pkgindicator.NewAvgVolume(cfg.Period)
	case "avg_range":
		return pkgindicator.NewAvgRange(cfg.Period)
	case "gap_stats":
		return pkgindicator.NewGapStats(), nil
	case "range_ratio":
		return pkgindicator.NewRangeRatio(cfg.Period)
	default:
		return nil, fmt.Errorf("indicator: unknown indicator name %q", cfg.Name)
	}
}
