// Package indicators computes the indicator series the data layer attaches
// to bars before a run. Nothing here is consulted during the simulation.
package indicators

import (
	"math"

	"github.com/ducminhle1904/dca-ladder-backtest/pkg/config"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/types"
)

// Params selects the indicator periods.
type Params struct {
	ATRPeriod            int
	RSIPeriod            int
	SuperTrendPeriod     int
	SuperTrendMultiplier float64
}

// ParamsFromSettings maps the indicator settings block.
func ParamsFromSettings(s config.IndicatorSettings) Params {
	return Params{
		ATRPeriod:            s.ATRPeriod,
		RSIPeriod:            s.RSIPeriod,
		SuperTrendPeriod:     s.SuperTrendPeriod,
		SuperTrendMultiplier: s.SuperTrendMultiplier,
	}
}

// Enrich converts candles into bars carrying ATR, RSI and SuperTrend state.
// Warm-up bars keep nil indicators and TrendUnknown.
func Enrich(candles []types.OHLCV, p Params) []types.Bar {
	bars := make([]types.Bar, len(candles))

	atr := NewATR(p.ATRPeriod).Series(candles)
	rsi := NewRSI(p.RSIPeriod).Series(candles)
	trend := NewSuperTrendWithParams(p.SuperTrendPeriod, p.SuperTrendMultiplier).TrendSeries(candles)

	for i, c := range candles {
		bars[i] = types.NewBar(c)
		if v := atr[i]; !math.IsNaN(v) {
			bars[i].ATR = &v
		}
		if v := rsi[i]; !math.IsNaN(v) {
			bars[i].RSI = &v
		}
		bars[i].Trend = trend[i]
	}
	return bars
}

// WarmUp is the number of leading bars without a complete indicator set.
func WarmUp(p Params) int {
	n := p.ATRPeriod
	if p.RSIPeriod+1 > n {
		n = p.RSIPeriod + 1
	}
	if p.SuperTrendPeriod > n {
		n = p.SuperTrendPeriod
	}
	return n - 1
}
