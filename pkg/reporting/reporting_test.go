package reporting

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/dca-ladder-backtest/internal/backtest"
	"github.com/ducminhle1904/dca-ladder-backtest/internal/position"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/types"
)

func sampleResult() *backtest.BacktestResult {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return &backtest.BacktestResult{
		RunID:          "run-1",
		Symbol:         "BTCUSDT",
		Interval:       "60",
		InitialBalance: 10000,
		FinalBalance:   10040,
		FinalEquity:    10040,
		StartTime:      t0,
		EndTime:        t0.Add(2 * time.Hour),
		Bars:           3,
		Trades: []position.Trade{
			{
				ID: 2, Side: types.SideShort, Hedge: true, LinkedTradeID: 1,
				AveragePrice: 96, AverageExitPrice: 96, TotalQuantity: 5, TotalInvestment: 480,
				ExitReason: position.ExitEndOfData, EntryTime: t0.Add(time.Hour), ExitTime: t0.Add(2 * time.Hour),
			},
			{
				ID: 1, Side: types.SideLong, AveragePrice: 100, AverageExitPrice: 104, TotalQuantity: 10,
				TotalInvestment: 1000, GrossPnL: 40, PnL: 40, PnLPercent: 4, LinkedTradeID: 2,
				ExitReason: position.ExitTakeProfit, EntryTime: t0, ExitTime: t0.Add(time.Hour),
				Entries: []position.Entry{{Price: 100, Quantity: 10}},
				Exits:   []position.Exit{{Price: 104, Quantity: 10}},
			},
		},
		EquityCurve: []backtest.EquityPoint{
			{Timestamp: t0, Balance: 10000, Equity: 10000},
			{Timestamp: t0.Add(time.Hour), Balance: 10040, Equity: 10030, Drawdown: 0.001},
			{Timestamp: t0.Add(2 * time.Hour), Balance: 10040, Equity: 10040},
		},
		Warnings: []backtest.Warning{
			{BarIndex: 1, Timestamp: t0.Add(time.Hour), Site: backtest.SiteDCALevel, Message: "ATR unavailable, using 3% spacing"},
		},
	}
}

func TestResultDocumentOrdersTradesAndNullsInfinity(t *testing.T) {
	r := sampleResult()
	s := backtest.Summarize(r)

	var buf bytes.Buffer
	require.NoError(t, EncodeJSON(&buf, r, s))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	trades := decoded["trades"].([]interface{})
	require.Len(t, trades, 2)
	assert.Equal(t, float64(1), trades[0].(map[string]interface{})["id"])

	summary := decoded["summary"].(map[string]interface{})
	assert.Nil(t, summary["profit_factor"])
	assert.Len(t, decoded["equity"], 3)
	assert.Len(t, decoded["warnings"], 1)
}

func TestReportingManagerWritesAllFormats(t *testing.T) {
	dir := t.TempDir()
	r := sampleResult()
	s := backtest.Summarize(r)

	var out bytes.Buffer
	m := NewReportingManager(ReportingConfig{
		EnableConsole:   true,
		EnableFiles:     true,
		OutputDirectory: dir,
		ExcelEnabled:    true,
		CSVEnabled:      true,
		JSONEnabled:     true,
	}, &out)

	written, err := m.ReportResults(r, s)
	require.NoError(t, err)
	require.Len(t, written, 4)
	for _, p := range written {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}

	assert.Contains(t, out.String(), "BACKTEST RESULTS")
	assert.Contains(t, out.String(), "TAKE_PROFIT")
	assert.Contains(t, out.String(), "∞")

	f, err := os.Open(filepath.Join(dir, "trades.csv"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "TAKE_PROFIT", rows[1][13])

	fx, err := excelize.OpenFile(filepath.Join(dir, "report.xlsx"))
	require.NoError(t, err)
	defer fx.Close()
	assert.Equal(t, []string{SummarySheet, TradesSheet, EquitySheet, WarningsSheet}, fx.GetSheetList())

	tradeRows, err := fx.GetRows(TradesSheet)
	require.NoError(t, err)
	assert.Len(t, tradeRows, 3)

	warnRows, err := fx.GetRows(WarningsSheet)
	require.NoError(t, err)
	require.Len(t, warnRows, 2)
	assert.Equal(t, backtest.SiteDCALevel, warnRows[1][2])
}

func TestDefaultOutputDir(t *testing.T) {
	assert.Equal(t, filepath.Join("results", "BTCUSDT_1h"), DefaultOutputDir(" btcusdt ", "1H"))
	assert.Equal(t, filepath.Join("results", "UNKNOWN_unknown"), DefaultOutputDir("", ""))
}

func TestOutputBatch(t *testing.T) {
	var out bytes.Buffer
	OutputBatch(&out, []backtest.JobResult{
		{ID: "a", Summary: backtest.Summary{TotalTrades: 3, NetProfit: 12.5}},
		{ID: "b", Error: assert.AnError},
	})
	assert.Contains(t, out.String(), "12.50")
	assert.Contains(t, out.String(), assert.AnError.Error())
}
