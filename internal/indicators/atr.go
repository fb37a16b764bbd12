package indicators

import (
	"errors"
	"math"

	"github.com/ducminhle1904/dca-ladder-backtest/pkg/types"
)

// ErrInsufficientData is returned when a series is shorter than the warm-up.
var ErrInsufficientData = errors.New("insufficient data points")

// ATR represents the Average True Range technical indicator
// ATR measures market volatility by decomposing the entire range of an asset price for that period
type ATR struct {
	period int
}

// NewATR creates a new ATR indicator
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

// Series returns one value per candle using Wilder's smoothing. Entries
// before the warm-up are NaN.
func (a *ATR) Series(data []types.OHLCV) []float64 {
	out := nanSeries(len(data))
	if a.period <= 0 || len(data) < a.period {
		return out
	}

	var sum, atr float64
	for i, candle := range data {
		tr := candle.High - candle.Low // first candle has no previous close
		if i > 0 {
			tr = trueRange(candle, data[i-1].Close)
		}

		switch {
		case i < a.period-1:
			sum += tr
		case i == a.period-1:
			sum += tr
			atr = sum / float64(a.period)
			out[i] = atr
		default:
			atr = (atr*float64(a.period-1) + tr) / float64(a.period)
			out[i] = atr
		}
	}
	return out
}

// Calculate returns the latest ATR value
func (a *ATR) Calculate(data []types.OHLCV) (float64, error) {
	if len(data) < a.period {
		return 0, ErrInsufficientData
	}
	s := a.Series(data)
	return s[len(s)-1], nil
}

// GetName returns the indicator name
func (a *ATR) GetName() string { return "ATR" }

// GetRequiredPeriods returns the minimum number of periods needed
func (a *ATR) GetRequiredPeriods() int { return a.period }

// trueRange = max(High-Low, |High-PrevClose|, |Low-PrevClose|)
func trueRange(current types.OHLCV, prevClose float64) float64 {
	hl := current.High - current.Low
	hc := math.Abs(current.High - prevClose)
	lc := math.Abs(current.Low - prevClose)
	return math.Max(hl, math.Max(hc, lc))
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
