package indicator

import (
	"fmt"
	"time"

	"github.com/sdcoffey/techan"
)

// CreateTechanMACD creates a MACD indicator using Techan. candlePeriod is
// the duration one bar represents (e.g. time.Minute for a 1m base interval).
func CreateTechanMACD(fastPeriod, slowPeriod, signalPeriod int, candlePeriod time.Duration) func() (Calculator, error) {
	return func() (Calculator, error) {
		series := techan.NewTimeSeries()
		closePrice := techan.NewClosePriceIndicator(series)
		macd := techan.NewMACDIndicator(closePrice, fastPeriod, slowPeriod)
		signal := techan.NewEMAIndicator(macd, signalPeriod)

		calc := NewTechanMultiCalculator(
			fmt.Sprintf("macd_%d_%d_%d", fastPeriod, slowPeriod, signalPeriod),
			macd,
			map[string]techan.Indicator{"signal": signal},
			slowPeriod,
			candlePeriod,
		)
		calc.series = series
		return calc, nil
	}
}

// CreateTechanATR creates an Average True Range indicator using Techan.
func CreateTechanATR(period int, candlePeriod time.Duration) func() (Calculator, error) {
	return func() (Calculator, error) {
		series := techan.NewTimeSeries()
		atr := techan.NewAverageTrueRangeIndicator(series, period)

		calc := NewTechanCalculator(fmt.Sprintf("atr_%d", period), atr, period, candlePeriod)
		calc.series = series
		return calc, nil
	}
}

// CreateTechanBollingerBands creates Bollinger Bands using Techan, reporting
// the middle band as Result.Scalar and upper/lower as Result.Fields.
func CreateTechanBollingerBands(period int, multiplier float64, candlePeriod time.Duration) func() (Calculator, error) {
	return func() (Calculator, error) {
		series := techan.NewTimeSeries()
		closePrice := techan.NewClosePriceIndicator(series)
		middle := techan.NewMMAIndicator(closePrice, period) // MMA is SMA in Techan
		upper := techan.NewBollingerUpperBandIndicator(middle, period, multiplier)
		lower := techan.NewBollingerLowerBandIndicator(middle, period, multiplier)

		calc := NewTechanMultiCalculator(
			fmt.Sprintf("bb_%d_%.1f", period, multiplier),
			middle,
			map[string]techan.Indicator{"upper": upper, "lower": lower, "middle": middle},
			period,
			candlePeriod,
		)
		calc.series = series
		return calc, nil
	}
}

// CreateTechanStochastic creates a Stochastic Oscillator (%K, %D) using
// Techan.
func CreateTechanStochastic(kPeriod, dPeriod int, candlePeriod time.Duration) func() (Calculator, error) {
	return func() (Calculator, error) {
		series := techan.NewTimeSeries()
		fastK := techan.NewFastStochasticIndicator(series, kPeriod)
		slowD := techan.NewSlowStochasticIndicator(fastK, dPeriod)

		calc := NewTechanMultiCalculator(
			fmt.Sprintf("stoch_%d_%d", kPeriod, dPeriod),
			fastK,
			map[string]techan.Indicator{"d": slowD},
			kPeriod,
			candlePeriod,
		)
		calc.series = series
		return calc, nil
	}
}
