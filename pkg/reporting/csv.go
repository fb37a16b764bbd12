package reporting

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/ducminhle1904/dca-ladder-backtest/internal/backtest"
)

const timeLayout = "2006-01-02 15:04:05"

func ftoa(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func writeCSVFile(path string, header []string, rows [][]string) error {
	if err := EnsureDirectoryExists(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}

// WriteTradesCSV writes one row per closed trade, ordered by trade ID.
func WriteTradesCSV(r *backtest.BacktestResult, path string) error {
	doc := NewResultDocument(r, backtest.Summary{}, false)

	rows := make([][]string, 0, len(doc.Trades))
	for _, t := range doc.Trades {
		rows = append(rows, []string{
			strconv.Itoa(t.ID),
			t.Side,
			strconv.FormatBool(t.Hedge),
			t.EntryTime.Format(timeLayout),
			t.ExitTime.Format(timeLayout),
			ftoa(t.AveragePrice, 8),
			ftoa(t.AverageExit, 8),
			ftoa(t.Quantity, 8),
			ftoa(t.Investment, 2),
			ftoa(t.Fees, 4),
			ftoa(t.PnL, 4),
			ftoa(t.PnLPercent, 2),
			strconv.Itoa(t.DCACount),
			t.ExitReason,
			strconv.Itoa(t.LinkedTradeID),
		})
	}
	return writeCSVFile(path, []string{
		"ID", "Side", "Hedge", "Entry_Time", "Exit_Time", "Avg_Entry", "Avg_Exit",
		"Quantity", "Investment", "Fees", "PnL", "PnL_%", "DCA_Count", "Exit_Reason", "Linked_ID",
	}, rows)
}

// WriteEquityCSV writes the per-bar equity curve.
func WriteEquityCSV(r *backtest.BacktestResult, path string) error {
	rows := make([][]string, 0, len(r.EquityCurve))
	for _, p := range r.EquityCurve {
		rows = append(rows, []string{
			p.Timestamp.Format(timeLayout),
			ftoa(p.Balance, 4),
			ftoa(p.Equity, 4),
			ftoa(p.Drawdown*100, 4),
		})
	}
	return writeCSVFile(path, []string{"Timestamp", "Balance", "Equity", "Drawdown_%"}, rows)
}
