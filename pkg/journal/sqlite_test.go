package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/dca-ladder-backtest/internal/backtest"
	"github.com/ducminhle1904/dca-ladder-backtest/internal/position"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/config"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/types"
)

func newTestSQLite(t *testing.T) (*SQLiteJournal, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j, path
}

func sampleRun(runID string) *backtest.BacktestResult {
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return &backtest.BacktestResult{
		RunID:          runID,
		Symbol:         "ETHUSDT",
		Interval:       "15",
		InitialBalance: 1000,
		FinalBalance:   1012,
		FinalEquity:    1012,
		StartTime:      t0,
		EndTime:        t0.Add(30 * time.Minute),
		Bars:           3,
		Trades: []position.Trade{
			{ID: 1, Side: types.SideLong, AveragePrice: 98.5, AverageExitPrice: 100, TotalQuantity: 8,
				PnL: 12, DCACount: 1, ExitReason: position.ExitTakeProfit, LinkedTradeID: 2,
				EntryTime: t0, ExitTime: t0.Add(30 * time.Minute)},
			{ID: 2, Side: types.SideShort, Hedge: true, AveragePrice: 97, AverageExitPrice: 100,
				TotalQuantity: 4, ExitReason: position.ExitLinkedClose, LinkedTradeID: 1,
				EntryTime: t0.Add(15 * time.Minute), ExitTime: t0.Add(30 * time.Minute)},
		},
		EquityCurve: []backtest.EquityPoint{
			{Timestamp: t0, Balance: 1000, Equity: 1000},
			{Timestamp: t0.Add(15 * time.Minute), Balance: 1000, Equity: 990, Drawdown: 0.01},
			{Timestamp: t0.Add(30 * time.Minute), Balance: 1012, Equity: 1012},
		},
		Warnings: []backtest.Warning{{BarIndex: 1, Timestamp: t0.Add(15 * time.Minute), Site: backtest.SiteStopLoss, Message: "fallback"}},
	}
}

func TestSQLiteSchemaCreated(t *testing.T) {
	j, path := newTestSQLite(t)
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table'`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())
	for _, table := range []string{"runs", "trades", "equity", "warnings"} {
		assert.True(t, found[table], table)
	}
}

func TestSQLiteSaveAndLoadRun(t *testing.T) {
	j, _ := newTestSQLite(t)
	ctx := context.Background()

	r := sampleRun("uuid-1")
	s := backtest.Summarize(r)
	key, err := j.SaveRun(ctx, config.NewDefaultSettings(), r, s)
	require.NoError(t, err)
	assert.Len(t, key, 26)

	rec, err := j.GetRun(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "uuid-1", rec.RunID)
	assert.Equal(t, "ETHUSDT", rec.Symbol)
	assert.Equal(t, 2, rec.TotalTrades)
	assert.Equal(t, 1, rec.Warnings)
	assert.InDelta(t, 12.0, rec.NetProfit, 1e-9)
	assert.True(t, rec.StartTime.Equal(r.StartTime))
	assert.Contains(t, rec.SettingsJSON, "initial_balance")

	trades, err := j.ListTrades(ctx, key)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, 1, trades[0].TradeID)
	assert.Equal(t, "TAKE_PROFIT", trades[0].ExitReason)
	assert.True(t, trades[1].Hedge)
	assert.Equal(t, 1, trades[1].LinkedTradeID)

	n, err := j.CountEquity(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSQLiteListRunsNewestFirst(t *testing.T) {
	j, _ := newTestSQLite(t)
	ctx := context.Background()

	var keys []string
	for _, id := range []string{"a", "b", "c"} {
		r := sampleRun(id)
		key, err := j.SaveRun(ctx, nil, r, backtest.Summarize(r))
		require.NoError(t, err)
		keys = append(keys, key)
	}

	runs, err := j.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, keys[2], runs[0].ID)
	assert.Equal(t, "c", runs[0].RunID)

	all, err := j.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSQLiteGetRunNotFound(t *testing.T) {
	j, _ := newTestSQLite(t)
	_, err := j.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}
