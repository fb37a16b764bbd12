package backtest

import (
	"github.com/ducminhle1904/dca-ladder-backtest/internal/indicators"
	"github.com/ducminhle1904/dca-ladder-backtest/internal/strategy"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/config"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/types"
)

// RunCandles attaches the configured indicators to candles, runs one
// backtest and summarises it. signal may be nil.
func RunCandles(settings *config.StrategySettings, candles []types.OHLCV, signal strategy.SignalGenerator, opts ...Option) (*BacktestResult, Summary, error) {
	engine, err := NewEngine(settings, signal, opts...)
	if err != nil {
		return nil, Summary{}, err
	}

	bars := indicators.Enrich(candles, indicators.ParamsFromSettings(settings.Indicators))
	result, err := engine.Run(bars)
	if err != nil {
		return nil, Summary{}, err
	}
	return result, Summarize(result), nil
}
