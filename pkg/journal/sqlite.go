package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ducminhle1904/dca-ladder-backtest/internal/backtest"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/config"
)

// SQLiteJournal stores runs in a SQLite database.
type SQLiteJournal struct {
	db  *sql.DB
	ids *idSource
}

var _ Journal = (*SQLiteJournal)(nil)

// NewSQLite opens (or creates) the database at path and applies Schema.
func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteJournal{db: db, ids: newIDSource()}, nil
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// SaveRun stores the run, its trades, equity curve and warnings in one
// transaction and returns the journal key.
func (j *SQLiteJournal) SaveRun(ctx context.Context, settings *config.StrategySettings, r *backtest.BacktestResult, s backtest.Summary) (string, error) {
	if r == nil {
		return "", errors.New("journal: nil result")
	}
	key, err := j.ids.New()
	if err != nil {
		return "", err
	}

	var settingsJSON []byte
	if settings != nil {
		if settingsJSON, err = json.Marshal(settings); err != nil {
			return "", fmt.Errorf("encode settings: %w", err)
		}
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, run_id, symbol, interval, start_time, end_time, bars, initial_balance, final_balance,
		 final_equity, net_profit, max_drawdown, total_trades, warnings, settings_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key, r.RunID, r.Symbol, r.Interval, millis(r.StartTime), millis(r.EndTime), r.Bars,
		r.InitialBalance, r.FinalBalance, r.FinalEquity, s.NetProfit, s.MaxDrawdown,
		len(r.Trades), len(r.Warnings), string(settingsJSON), time.Now().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	tradeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades
		(id, run_key, trade_id, side, hedge, entry_time, exit_time, average_price, exit_price,
		 quantity, investment, fees, pnl, dca_count, exit_reason, linked_trade_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer tradeStmt.Close()

	for _, t := range r.Trades {
		rowID, err := j.ids.New()
		if err != nil {
			return "", err
		}
		_, err = tradeStmt.ExecContext(ctx,
			rowID, key, t.ID, t.Side.String(), t.Hedge, millis(t.EntryTime), millis(t.ExitTime),
			t.AveragePrice, t.AverageExitPrice, t.TotalQuantity, t.TotalInvestment, t.Fees, t.PnL,
			t.DCACount, string(t.ExitReason), t.LinkedTradeID,
		)
		if err != nil {
			return "", fmt.Errorf("insert trade %d: %w", t.ID, err)
		}
	}

	equityStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO equity (run_key, time, balance, equity, drawdown) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer equityStmt.Close()

	for _, p := range r.EquityCurve {
		if _, err := equityStmt.ExecContext(ctx, key, millis(p.Timestamp), p.Balance, p.Equity, p.Drawdown); err != nil {
			return "", fmt.Errorf("insert equity: %w", err)
		}
	}

	for _, w := range r.Warnings {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO warnings (run_key, bar_index, time, site, message) VALUES (?, ?, ?, ?, ?)`,
			key, w.BarIndex, millis(w.Timestamp), w.Site, w.Message,
		)
		if err != nil {
			return "", fmt.Errorf("insert warning: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return key, nil
}

const runColumns = `id, run_id, symbol, interval, start_time, end_time, bars, initial_balance,
	final_balance, final_equity, net_profit, max_drawdown, total_trades, warnings, settings_json, created_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (RunRecord, error) {
	var rec RunRecord
	var start, end, created int64
	err := row.Scan(&rec.ID, &rec.RunID, &rec.Symbol, &rec.Interval, &start, &end, &rec.Bars,
		&rec.InitialBalance, &rec.FinalBalance, &rec.FinalEquity, &rec.NetProfit, &rec.MaxDrawdown,
		&rec.TotalTrades, &rec.Warnings, &rec.SettingsJSON, &created)
	if err != nil {
		return rec, err
	}
	rec.StartTime = fromMillis(start)
	rec.EndTime = fromMillis(end)
	rec.CreatedAt = fromMillis(created)
	return rec, nil
}

// GetRun loads a run by journal key.
func (j *SQLiteJournal) GetRun(ctx context.Context, key string) (RunRecord, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, key)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, ErrRunNotFound
	}
	return rec, err
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (j *SQLiteJournal) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListTrades returns the trades of a run ordered by trade ID.
func (j *SQLiteJournal) ListTrades(ctx context.Context, key string) ([]TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, run_key, trade_id, side, hedge, entry_time, exit_time, average_price, exit_price,
		       quantity, investment, fees, pnl, dca_count, exit_reason, linked_trade_id
		FROM trades WHERE run_key = ? ORDER BY trade_id`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		var entry, exit int64
		err := rows.Scan(&t.ID, &t.RunKey, &t.TradeID, &t.Side, &t.Hedge, &entry, &exit,
			&t.AveragePrice, &t.ExitPrice, &t.Quantity, &t.Investment, &t.Fees, &t.PnL,
			&t.DCACount, &t.ExitReason, &t.LinkedTradeID)
		if err != nil {
			return nil, err
		}
		t.EntryTime = fromMillis(entry)
		t.ExitTime = fromMillis(exit)
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountEquity returns the number of stored equity points of a run.
func (j *SQLiteJournal) CountEquity(ctx context.Context, key string) (int, error) {
	var n int
	err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM equity WHERE run_key = ?`, key).Scan(&n)
	return n, err
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
