package backtest

import (
	"time"

	"github.com/ducminhle1904/dca-ladder-backtest/internal/position"
)

// BacktestResult is everything one run produced. It carries no formatting
// knowledge; reporting and persistence translate it.
type BacktestResult struct {
	RunID    string
	Symbol   string
	Interval string

	InitialBalance float64
	FinalBalance   float64 // initial plus realised net P&L
	FinalEquity    float64

	StartTime time.Time
	EndTime   time.Time
	Bars      int

	Trades      []position.Trade
	EquityCurve []EquityPoint
	Warnings    []Warning
}

// EquityPoint is the account snapshot taken after each bar.
type EquityPoint struct {
	Timestamp time.Time
	Balance   float64
	Equity    float64
	Drawdown  float64 // fraction of the running equity peak
}

// Warning records a degraded decision the run took instead of failing.
type Warning struct {
	BarIndex  int
	Timestamp time.Time
	Site      string
	Message   string
}

// Warning sites
const (
	SiteDCALevel  = "dca_level"
	SiteStopLoss  = "stop_loss"
	SiteMargin    = "margin"
	SiteHedgeSize = "hedge_size"
	SiteHedgeCap  = "hedge_pyramiding"
	SiteEntrySize = "entry_size"
	SiteSignal    = "signal"
)

// MainTrades returns the non-hedge trades.
func (r *BacktestResult) MainTrades() []position.Trade {
	out := make([]position.Trade, 0, len(r.Trades))
	for _, t := range r.Trades {
		if !t.Hedge {
			out = append(out, t)
		}
	}
	return out
}

// HedgeTrades returns the hedge trades.
func (r *BacktestResult) HedgeTrades() []position.Trade {
	out := make([]position.Trade, 0)
	for _, t := range r.Trades {
		if t.Hedge {
			out = append(out, t)
		}
	}
	return out
}

// MaxDrawdown is the largest drawdown on the equity curve.
func (r *BacktestResult) MaxDrawdown() float64 {
	worst := 0.0
	for _, p := range r.EquityCurve {
		if p.Drawdown > worst {
			worst = p.Drawdown
		}
	}
	return worst
}

// Observer receives engine events as they happen. Implementations must not
// retain the trade slices.
type Observer interface {
	OnFill(side, action string, price, quantity float64)
	OnTradeClosed(trade position.Trade)
	OnWarning(w Warning)
	OnEquity(p EquityPoint)
}

type nopObserver struct{}

func (nopObserver) OnFill(string, string, float64, float64) {}
func (nopObserver) OnTradeClosed(position.Trade)            {}
func (nopObserver) OnWarning(Warning)                       {}
func (nopObserver) OnEquity(EquityPoint)                    {}
