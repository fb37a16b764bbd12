package backtest

import (
	"math"
	"time"

	"github.com/ducminhle1904/dca-ladder-backtest/internal/position"
)

// Summary holds post-hoc statistics over a result. Win/loss counts cover
// main trades only; hedge trades are reported separately.
type Summary struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	HedgeTrades   int
	WinRate       float64 // percent

	NetProfit    float64
	GrossProfit  float64
	GrossLoss    float64
	TotalFees    float64
	ProfitFactor float64
	TotalReturn  float64 // fraction of initial balance

	MaxDrawdown      float64
	SharpeRatio      float64
	SortinoRatio     float64
	AnnualizedReturn float64
	CalmarRatio      float64

	AvgDCACount     float64
	MaxDCACount     int
	AvgHoldDuration time.Duration
	ExitReasons     map[position.ExitReason]int
	Warnings        int
}

// Summarize computes the summary of r. It never mutates r.
func Summarize(r *BacktestResult) Summary {
	s := Summary{ExitReasons: make(map[position.ExitReason]int)}
	if r == nil {
		return s
	}

	var dcaSum int
	var hold time.Duration
	for _, t := range r.Trades {
		s.NetProfit += t.PnL
		s.TotalFees += t.Fees
		if t.PnL > 0 {
			s.GrossProfit += t.PnL
		} else {
			s.GrossLoss += math.Abs(t.PnL)
		}

		if t.Hedge {
			s.HedgeTrades++
			continue
		}
		s.TotalTrades++
		if t.IsWin() {
			s.WinningTrades++
		} else {
			s.LosingTrades++
		}
		s.ExitReasons[t.ExitReason]++
		dcaSum += t.DCACount
		if t.DCACount > s.MaxDCACount {
			s.MaxDCACount = t.DCACount
		}
		hold += t.Duration()
	}

	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
		s.AvgDCACount = float64(dcaSum) / float64(s.TotalTrades)
		s.AvgHoldDuration = hold / time.Duration(s.TotalTrades)
	}
	s.ProfitFactor = profitFactor(s.GrossProfit, s.GrossLoss)
	if r.InitialBalance > 0 {
		s.TotalReturn = (r.FinalBalance - r.InitialBalance) / r.InitialBalance
	}

	s.MaxDrawdown = r.MaxDrawdown()
	s.SharpeRatio = sharpeRatio(r.Trades)
	s.SortinoRatio = sortinoRatio(r.EquityCurve)
	s.AnnualizedReturn = annualizedReturn(r.EquityCurve)
	if s.MaxDrawdown > 0 {
		s.CalmarRatio = s.AnnualizedReturn / s.MaxDrawdown
	}
	s.Warnings = len(r.Warnings)
	return s
}

func profitFactor(profit, loss float64) float64 {
	if loss == 0 {
		if profit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return profit / loss
}

// sharpeRatio uses per-trade returns on investment with a zero risk-free rate.
func sharpeRatio(trades []position.Trade) float64 {
	returns := make([]float64, 0, len(trades))
	for _, t := range trades {
		if t.TotalInvestment > 0 {
			returns = append(returns, t.PnL/t.TotalInvestment)
		}
	}
	mean, std := meanStd(returns)
	if std < 1e-10 {
		return 0
	}
	return mean / std
}

// sortinoRatio uses bar-to-bar equity returns and downside deviation only.
func sortinoRatio(curve []EquityPoint) float64 {
	if len(curve) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if prev := curve[i-1].Equity; prev > 0 {
			returns = append(returns, (curve[i].Equity-prev)/prev)
		}
	}
	if len(returns) == 0 {
		return 0
	}
	avg, _ := meanStd(returns)

	downsideVariance := 0.0
	downsideCount := 0
	for _, r := range returns {
		if r < 0 {
			downsideVariance += r * r
			downsideCount++
		}
	}
	if downsideCount == 0 {
		if avg > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return avg / math.Sqrt(downsideVariance/float64(downsideCount))
}

// annualizedReturn compounds the equity change over the curve's time span.
func annualizedReturn(curve []EquityPoint) float64 {
	if len(curve) < 2 {
		return 0
	}
	first, last := curve[0], curve[len(curve)-1]
	years := last.Timestamp.Sub(first.Timestamp).Hours() / (24 * 365.25)
	if years <= 0 || first.Equity <= 0 || last.Equity <= 0 {
		return 0
	}
	return math.Pow(last.Equity/first.Equity, 1/years) - 1
}

func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}
