package indicators

import (
	"math"

	"github.com/ducminhle1904/dca-ladder-backtest/pkg/types"
)

const (
	// DefaultSuperTrendPeriod is the default period value for ATR calculation
	DefaultSuperTrendPeriod = 10

	// DefaultSuperTrendMultiplier is the default multiplier value for bands calculation
	DefaultSuperTrendMultiplier = 3.0
)

// SuperTrend is a trend-following indicator that uses ATR to build dynamic
// support and resistance bands. Here it is used for its trend state.
type SuperTrend struct {
	period     int
	multiplier float64
}

// NewSuperTrendWithParams creates a new SuperTrend indicator with custom parameters
func NewSuperTrendWithParams(period int, multiplier float64) *SuperTrend {
	return &SuperTrend{period: period, multiplier: multiplier}
}

// NewSuperTrend creates a new SuperTrend indicator with default parameters
func NewSuperTrend() *SuperTrend {
	return NewSuperTrendWithParams(DefaultSuperTrendPeriod, DefaultSuperTrendMultiplier)
}

// TrendSeries returns the trend state per candle; TrendUnknown during warm-up.
func (st *SuperTrend) TrendSeries(data []types.OHLCV) []types.TrendState {
	out := make([]types.TrendState, len(data))
	atr := NewATR(st.period).Series(data)

	var (
		initialized    bool
		upTrend        bool
		finalUpperBand float64
		finalLowerBand float64
	)
	for i, candle := range data {
		if math.IsNaN(atr[i]) {
			continue
		}

		median := (candle.High + candle.Low) / 2.0
		basicUpper := median + st.multiplier*atr[i]
		basicLower := median - st.multiplier*atr[i]

		if !initialized {
			finalUpperBand, finalLowerBand = basicUpper, basicLower
			upTrend = candle.Close >= median
			initialized = true
		} else {
			prevClose := data[i-1].Close
			if basicUpper < finalUpperBand || prevClose > finalUpperBand {
				finalUpperBand = basicUpper
			}
			if basicLower > finalLowerBand || prevClose < finalLowerBand {
				finalLowerBand = basicLower
			}

			if upTrend && candle.Close < finalLowerBand {
				upTrend = false
			} else if !upTrend && candle.Close > finalUpperBand {
				upTrend = true
			}
		}

		if upTrend {
			out[i] = types.TrendUp
		} else {
			out[i] = types.TrendDown
		}
	}
	return out
}

// GetName returns the indicator name
func (st *SuperTrend) GetName() string { return "SuperTrend" }
