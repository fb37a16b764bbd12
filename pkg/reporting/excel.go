package reporting

import (
	"fmt"
	"math"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/dca-ladder-backtest/internal/backtest"
	"github.com/ducminhle1904/dca-ladder-backtest/internal/position"
)

// Sheet names of the workbook.
const (
	SummarySheet  = "Summary"
	TradesSheet   = "Trades"
	EquitySheet   = "Equity"
	WarningsSheet = "Warnings"
)

var lightBorder = []excelize.Border{
	{Type: "left", Color: "E0E0E0", Style: 1},
	{Type: "right", Color: "E0E0E0", Style: 1},
	{Type: "bottom", Color: "E0E0E0", Style: 1},
}

// WriteXLSX writes the run to an Excel workbook.
func WriteXLSX(r *backtest.BacktestResult, s backtest.Summary, path string) error {
	if err := EnsureDirectoryExists(path); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	fx := excelize.NewFile()
	defer fx.Close()

	if err := fx.SetSheetName(fx.GetSheetName(0), SummarySheet); err != nil {
		return err
	}
	for _, name := range []string{TradesSheet, EquitySheet, WarningsSheet} {
		if _, err := fx.NewSheet(name); err != nil {
			return err
		}
	}

	styles, err := createExcelStyles(fx)
	if err != nil {
		return err
	}

	if err := writeSummarySheet(fx, r, s, styles); err != nil {
		return err
	}
	if err := writeTradesSheet(fx, r, styles); err != nil {
		return err
	}
	if err := writeEquitySheet(fx, r, styles); err != nil {
		return err
	}
	if err := writeWarningsSheet(fx, r, styles); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func createExcelStyles(fx *excelize.File) (ExcelStyles, error) {
	var styles ExcelStyles
	var err error

	// Dark slate header, white text
	styles.HeaderStyle, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return styles, err
	}

	styles.TitleStyle, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14, Color: "2F4F4F"},
	})
	if err != nil {
		return styles, err
	}

	styles.CurrencyStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    7,
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    lightBorder,
	})
	if err != nil {
		return styles, err
	}

	priceFmt := "0.00000000"
	styles.PriceStyle, err = fx.NewStyle(&excelize.Style{
		CustomNumFmt: &priceFmt,
		Alignment:    &excelize.Alignment{Horizontal: "right"},
		Border:       lightBorder,
	})
	if err != nil {
		return styles, err
	}

	styles.PercentStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    10,
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    lightBorder,
	})
	if err != nil {
		return styles, err
	}

	styles.RedCurrencyStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    7,
		Font:      &excelize.Font{Color: "FF0000"},
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    lightBorder,
	})
	if err != nil {
		return styles, err
	}

	styles.GreenCurrencyStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    7,
		Font:      &excelize.Font{Color: "008000"},
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    lightBorder,
	})
	if err != nil {
		return styles, err
	}

	styles.BaseStyle, err = fx.NewStyle(&excelize.Style{Border: lightBorder})
	if err != nil {
		return styles, err
	}

	dateFmt := "yyyy-mm-dd hh:mm:ss"
	styles.DateStyle, err = fx.NewStyle(&excelize.Style{
		CustomNumFmt: &dateFmt,
		Border:       lightBorder,
	})
	return styles, err
}

func writeHeader(fx *excelize.File, sheet string, row int, headers []string, style int) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(len(headers), row)
	return fx.SetCellStyle(sheet, first, last, style)
}

// writeRow writes values from column A with one style per column.
func writeRow(fx *excelize.File, sheet string, row int, values []interface{}, styles []int) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
		if i < len(styles) && styles[i] != 0 {
			if err := fx.SetCellStyle(sheet, cell, cell, styles[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func cellRatio(v float64) interface{} {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return "∞"
	}
	return v
}

func writeSummarySheet(fx *excelize.File, r *backtest.BacktestResult, s backtest.Summary, st ExcelStyles) error {
	sheet := SummarySheet
	fx.SetColWidth(sheet, "A", "A", 24)
	fx.SetColWidth(sheet, "B", "B", 26)

	if err := fx.SetCellValue(sheet, "A1", fmt.Sprintf("📊 BACKTEST %s %s", r.Symbol, r.Interval)); err != nil {
		return err
	}
	fx.SetCellStyle(sheet, "A1", "A1", st.TitleStyle)

	rows := []struct {
		label string
		value interface{}
		style int
	}{
		{"Run ID", r.RunID, st.BaseStyle},
		{"Start", r.StartTime, st.DateStyle},
		{"End", r.EndTime, st.DateStyle},
		{"Bars", r.Bars, st.BaseStyle},
		{"Initial Balance", r.InitialBalance, st.CurrencyStyle},
		{"Final Balance", r.FinalBalance, st.CurrencyStyle},
		{"Final Equity", r.FinalEquity, st.CurrencyStyle},
		{"Net Profit", s.NetProfit, pnlStyle(s.NetProfit, st)},
		{"Total Return", s.TotalReturn, st.PercentStyle},
		{"Annualized Return", s.AnnualizedReturn, st.PercentStyle},
		{"Max Drawdown", s.MaxDrawdown, st.PercentStyle},
		{"Sharpe Ratio", s.SharpeRatio, st.BaseStyle},
		{"Sortino Ratio", cellRatio(s.SortinoRatio), st.BaseStyle},
		{"Calmar Ratio", cellRatio(s.CalmarRatio), st.BaseStyle},
		{"Profit Factor", cellRatio(s.ProfitFactor), st.BaseStyle},
		{"Total Trades", s.TotalTrades, st.BaseStyle},
		{"Hedge Trades", s.HedgeTrades, st.BaseStyle},
		{"Winning Trades", s.WinningTrades, st.BaseStyle},
		{"Losing Trades", s.LosingTrades, st.BaseStyle},
		{"Win Rate", s.WinRate / 100, st.PercentStyle},
		{"Total Fees", s.TotalFees, st.CurrencyStyle},
		{"Avg DCA Count", s.AvgDCACount, st.BaseStyle},
		{"Max DCA Count", s.MaxDCACount, st.BaseStyle},
		{"Avg Hold", s.AvgHoldDuration.String(), st.BaseStyle},
		{"Warnings", s.Warnings, st.BaseStyle},
	}

	if err := writeHeader(fx, sheet, 3, []string{"Metric", "Value"}, st.HeaderStyle); err != nil {
		return err
	}
	row := 4
	for _, item := range rows {
		if err := writeRow(fx, sheet, row, []interface{}{item.label, item.value}, []int{st.BaseStyle, item.style}); err != nil {
			return err
		}
		row++
	}

	reasons := make([]position.ExitReason, 0, len(s.ExitReasons))
	for k := range s.ExitReasons {
		reasons = append(reasons, k)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })

	row++
	if err := writeHeader(fx, sheet, row, []string{"Exit Reason", "Count"}, st.HeaderStyle); err != nil {
		return err
	}
	for _, k := range reasons {
		row++
		if err := writeRow(fx, sheet, row, []interface{}{string(k), s.ExitReasons[k]}, []int{st.BaseStyle, st.BaseStyle}); err != nil {
			return err
		}
	}
	return nil
}

func pnlStyle(v float64, st ExcelStyles) int {
	if v < 0 {
		return st.RedCurrencyStyle
	}
	return st.GreenCurrencyStyle
}

func writeTradesSheet(fx *excelize.File, r *backtest.BacktestResult, st ExcelStyles) error {
	sheet := TradesSheet
	headers := []string{"ID", "Side", "Hedge", "Entry Time", "Exit Time", "Avg Entry", "Avg Exit",
		"Quantity", "Investment", "Fees", "PnL", "PnL %", "DCA", "Exit Reason", "Linked"}
	widths := []float64{6, 8, 8, 20, 20, 14, 14, 14, 14, 10, 12, 10, 6, 18, 8}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		fx.SetColWidth(sheet, col, col, w)
	}
	if err := writeHeader(fx, sheet, 1, headers, st.HeaderStyle); err != nil {
		return err
	}

	doc := NewResultDocument(r, backtest.Summary{}, false)
	for i, t := range doc.Trades {
		values := []interface{}{
			t.ID, t.Side, t.Hedge, t.EntryTime, t.ExitTime, t.AveragePrice, t.AverageExit,
			t.Quantity, t.Investment, t.Fees, t.PnL, t.PnLPercent / 100, t.DCACount, t.ExitReason, t.LinkedTradeID,
		}
		styles := []int{
			st.BaseStyle, st.BaseStyle, st.BaseStyle, st.DateStyle, st.DateStyle, st.PriceStyle, st.PriceStyle,
			st.PriceStyle, st.CurrencyStyle, st.CurrencyStyle, pnlStyle(t.PnL, st), st.PercentStyle,
			st.BaseStyle, st.BaseStyle, st.BaseStyle,
		}
		if err := writeRow(fx, sheet, i+2, values, styles); err != nil {
			return err
		}
	}

	if len(doc.Trades) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(headers), len(doc.Trades)+1)
		if err := fx.AutoFilter(sheet, "A1:"+last, []excelize.AutoFilterOptions{}); err != nil {
			return err
		}
	}
	return fx.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeEquitySheet(fx *excelize.File, r *backtest.BacktestResult, st ExcelStyles) error {
	sheet := EquitySheet
	fx.SetColWidth(sheet, "A", "A", 20)
	fx.SetColWidth(sheet, "B", "D", 14)
	if err := writeHeader(fx, sheet, 1, []string{"Timestamp", "Balance", "Equity", "Drawdown"}, st.HeaderStyle); err != nil {
		return err
	}
	styles := []int{st.DateStyle, st.CurrencyStyle, st.CurrencyStyle, st.PercentStyle}
	for i, p := range r.EquityCurve {
		if err := writeRow(fx, sheet, i+2, []interface{}{p.Timestamp, p.Balance, p.Equity, p.Drawdown}, styles); err != nil {
			return err
		}
	}
	return nil
}

func writeWarningsSheet(fx *excelize.File, r *backtest.BacktestResult, st ExcelStyles) error {
	sheet := WarningsSheet
	fx.SetColWidth(sheet, "A", "A", 8)
	fx.SetColWidth(sheet, "B", "B", 20)
	fx.SetColWidth(sheet, "C", "C", 18)
	fx.SetColWidth(sheet, "D", "D", 60)
	if err := writeHeader(fx, sheet, 1, []string{"Bar", "Timestamp", "Site", "Message"}, st.HeaderStyle); err != nil {
		return err
	}
	styles := []int{st.BaseStyle, st.DateStyle, st.BaseStyle, st.BaseStyle}
	for i, w := range r.Warnings {
		if err := writeRow(fx, sheet, i+2, []interface{}{w.BarIndex, w.Timestamp, w.Site, w.Message}, styles); err != nil {
			return err
		}
	}
	return nil
}
