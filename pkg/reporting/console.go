package reporting

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ducminhle1904/dca-ladder-backtest/internal/backtest"
	"github.com/ducminhle1904/dca-ladder-backtest/internal/position"
)

// DefaultConsoleReporter renders results as tables.
type DefaultConsoleReporter struct {
	// MaxTrades limits the trade table; 0 hides it, negative shows all.
	MaxTrades int
}

func NewDefaultConsoleReporter() *DefaultConsoleReporter {
	return &DefaultConsoleReporter{MaxTrades: 20}
}

func ratio(v float64) string {
	if math.IsInf(v, 1) {
		return "∞"
	}
	return fmt.Sprintf("%.2f", v)
}

// OutputResults prints the summary, exit reasons and recent trades.
func (r *DefaultConsoleReporter) OutputResults(w io.Writer, result *backtest.BacktestResult, s backtest.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("📊 BACKTEST RESULTS %s %s", result.Symbol, result.Interval))
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"Run", result.RunID},
		{"Period", fmt.Sprintf("%s → %s (%d bars)", result.StartTime.Format(timeLayout), result.EndTime.Format(timeLayout), result.Bars)},
		{"💰 Initial Balance", fmt.Sprintf("$%.2f", result.InitialBalance)},
		{"💰 Final Balance", fmt.Sprintf("$%.2f", result.FinalBalance)},
		{"💰 Final Equity", fmt.Sprintf("$%.2f", result.FinalEquity)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"📈 Total Return", fmt.Sprintf("%.2f%%", s.TotalReturn*100)},
		{"📈 Annualized Return", fmt.Sprintf("%.2f%%", s.AnnualizedReturn*100)},
		{"📉 Max Drawdown", fmt.Sprintf("%.2f%%", s.MaxDrawdown*100)},
		{"📊 Sharpe Ratio", ratio(s.SharpeRatio)},
		{"📊 Sortino Ratio", ratio(s.SortinoRatio)},
		{"📊 Calmar Ratio", ratio(s.CalmarRatio)},
		{"💹 Profit Factor", ratio(s.ProfitFactor)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"🔄 Total Trades", fmt.Sprintf("%d (%d hedge)", s.TotalTrades, s.HedgeTrades)},
		{"✅ Winning Trades", fmt.Sprintf("%d (%.1f%%)", s.WinningTrades, s.WinRate)},
		{"❌ Losing Trades", s.LosingTrades},
		{"💸 Fees", fmt.Sprintf("$%.2f", s.TotalFees)},
		{"➕ Avg / Max DCA", fmt.Sprintf("%.2f / %d", s.AvgDCACount, s.MaxDCACount)},
		{"⏱ Avg Hold", s.AvgHoldDuration.String()},
		{"⚠️ Warnings", s.Warnings},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 20, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, Align: text.AlignRight},
	})
	t.Render()

	if len(s.ExitReasons) > 0 {
		r.renderExitReasons(w, s)
	}
	if r.MaxTrades != 0 && len(result.Trades) > 0 {
		r.renderTrades(w, result)
	}
}

func (r *DefaultConsoleReporter) renderExitReasons(w io.Writer, s backtest.Summary) {
	reasons := make([]position.ExitReason, 0, len(s.ExitReasons))
	for k := range s.ExitReasons {
		reasons = append(reasons, k)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("EXIT REASONS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Reason", "Count"})
	for _, k := range reasons {
		t.AppendRow(table.Row{string(k), s.ExitReasons[k]})
	}
	t.Render()
}

func (r *DefaultConsoleReporter) renderTrades(w io.Writer, result *backtest.BacktestResult) {
	doc := NewResultDocument(result, backtest.Summary{}, false)
	trades := doc.Trades
	title := "TRADES"
	if r.MaxTrades > 0 && len(trades) > r.MaxTrades {
		trades = trades[len(trades)-r.MaxTrades:]
		title = fmt.Sprintf("LAST %d OF %d TRADES", r.MaxTrades, len(doc.Trades))
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Side", "Entry", "Exit", "Avg", "Exit Px", "DCA", "PnL", "PnL %", "Reason"})
	for _, tr := range trades {
		side := tr.Side
		if tr.Hedge {
			side = "H-" + strings.ToLower(side)
		}
		t.AppendRow(table.Row{
			tr.ID,
			side,
			tr.EntryTime.Format(timeLayout),
			tr.ExitTime.Format(timeLayout),
			fmt.Sprintf("%.4f", tr.AveragePrice),
			fmt.Sprintf("%.4f", tr.AverageExit),
			tr.DCACount,
			fmt.Sprintf("%.2f", tr.PnL),
			fmt.Sprintf("%.2f%%", tr.PnLPercent),
			tr.ExitReason,
		})
	}
	t.Render()
}

// OutputBatch prints one row per batch job.
func OutputBatch(w io.Writer, results []backtest.JobResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("BATCH RESULTS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Job", "Trades", "Win %", "Net Profit", "Return %", "Max DD %", "PF", "Duration", "Error"})
	for _, res := range results {
		if res.Error != nil {
			t.AppendRow(table.Row{res.ID, "", "", "", "", "", "", res.Duration.Round(time.Millisecond), res.Error.Error()})
			continue
		}
		s := res.Summary
		t.AppendRow(table.Row{
			res.ID,
			s.TotalTrades,
			fmt.Sprintf("%.1f", s.WinRate),
			fmt.Sprintf("%.2f", s.NetProfit),
			fmt.Sprintf("%.2f", s.TotalReturn*100),
			fmt.Sprintf("%.2f", s.MaxDrawdown*100),
			ratio(s.ProfitFactor),
			res.Duration.Round(time.Millisecond),
			"",
		})
	}
	t.Render()
}
