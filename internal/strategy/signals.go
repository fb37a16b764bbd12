package strategy

import (
	"fmt"
	"time"

	"github.com/ducminhle1904/dca-ladder-backtest/pkg/types"
)

// RSIReversion goes long when RSI is at or below the oversold threshold and
// short when it is at or above the overbought threshold.
type RSIReversion struct {
	Oversold   float64
	Overbought float64
}

// NewRSIReversion creates an RSI mean-reversion generator.
func NewRSIReversion(oversold, overbought float64) *RSIReversion {
	return &RSIReversion{Oversold: oversold, Overbought: overbought}
}

func (r *RSIReversion) Evaluate(window []types.Bar) (Signal, error) {
	bar, ok := lastBar(window)
	if !ok {
		return None("empty window"), nil
	}
	rsi, ok := bar.RSIValue()
	if !ok {
		return None("rsi unavailable"), nil
	}

	switch {
	case rsi <= r.Oversold:
		return Long(fmt.Sprintf("RSI %.2f <= %.2f", rsi, r.Oversold)), nil
	case rsi >= r.Overbought:
		return Short(fmt.Sprintf("RSI %.2f >= %.2f", rsi, r.Overbought)), nil
	}
	return None(""), nil
}

func (r *RSIReversion) Name() string { return "RSI Reversion" }

// TrendFollow enters in the direction of the SuperTrend state, but only on
// the bar where the state flips.
type TrendFollow struct{}

func (TrendFollow) Evaluate(window []types.Bar) (Signal, error) {
	if len(window) < 2 {
		return None("not enough bars"), nil
	}
	prev, cur := window[len(window)-2].Trend, window[len(window)-1].Trend
	if cur == prev {
		return None(""), nil
	}

	switch cur {
	case types.TrendUp:
		return Long("supertrend flipped up"), nil
	case types.TrendDown:
		return Short("supertrend flipped down"), nil
	}
	return None(""), nil
}

func (TrendFollow) Name() string { return "SuperTrend Follow" }

// Constant always returns the same action.
type Constant struct {
	Action SignalAction
}

func (c Constant) Evaluate(window []types.Bar) (Signal, error) {
	if len(window) == 0 {
		return None("empty window"), nil
	}
	return Signal{Action: c.Action, Reason: "constant"}, nil
}

func (c Constant) Name() string { return "Always " + c.Action.String() }

// Scripted replays decisions keyed by bar timestamp. Bars without an entry
// yield no signal.
type Scripted struct {
	signals map[time.Time]Signal
}

// NewScripted creates an empty scripted generator.
func NewScripted() *Scripted {
	return &Scripted{signals: make(map[time.Time]Signal)}
}

// At registers a decision for the bar stamped ts.
func (s *Scripted) At(ts time.Time, sig Signal) *Scripted {
	s.signals[ts] = sig
	return s
}

func (s *Scripted) Evaluate(window []types.Bar) (Signal, error) {
	bar, ok := lastBar(window)
	if !ok {
		return None("empty window"), nil
	}
	if sig, found := s.signals[bar.Timestamp]; found {
		return sig, nil
	}
	return None(""), nil
}

func (s *Scripted) Name() string { return "Scripted" }
