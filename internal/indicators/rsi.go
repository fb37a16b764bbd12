package indicators

import (
	"math"

	"github.com/ducminhle1904/dca-ladder-backtest/pkg/types"
)

// RSI calculates the Relative Strength Index from simple averages of the
// last period gains and losses.
type RSI struct {
	period int
}

// NewRSI creates a new RSI instance with the given period
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

// Series returns one value per candle; the first period entries are NaN.
func (r *RSI) Series(data []types.OHLCV) []float64 {
	out := nanSeries(len(data))
	if r.period <= 0 || len(data) < r.period+1 {
		return out
	}

	gains := make([]float64, len(data))
	losses := make([]float64, len(data))
	for i := 1; i < len(data); i++ {
		change := data[i].Close - data[i-1].Close
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = math.Abs(change)
		}
	}

	var gainSum, lossSum float64
	for i := 1; i < len(data); i++ {
		gainSum += gains[i]
		lossSum += losses[i]
		if i > r.period {
			gainSum -= gains[i-r.period]
			lossSum -= losses[i-r.period]
		}
		if i < r.period {
			continue
		}
		out[i] = rsiFromAverages(gainSum/float64(r.period), lossSum/float64(r.period))
	}
	return out
}

// Calculate computes the latest RSI value
func (r *RSI) Calculate(data []types.OHLCV) (float64, error) {
	if len(data) < r.period+1 {
		return 0, ErrInsufficientData
	}
	s := r.Series(data)
	return s[len(s)-1], nil
}

// GetName returns the indicator name
func (r *RSI) GetName() string { return "RSI" }

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss <= 1e-12 {
		if avgGain <= 1e-12 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}
