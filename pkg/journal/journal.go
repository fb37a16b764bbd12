// Package journal persists finished backtest runs.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/ducminhle1904/dca-ladder-backtest/internal/backtest"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/config"
)

// ErrRunNotFound is returned when a journal key is unknown.
var ErrRunNotFound = errors.New("journal: run not found")

// RunRecord is one stored run.
type RunRecord struct {
	ID             string    `json:"id"`              // journal key, time sortable
	RunID          string    `json:"run_id"`          // engine run id
	Symbol         string    `json:"symbol"`
	Interval       string    `json:"interval"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Bars           int       `json:"bars"`
	InitialBalance float64   `json:"initial_balance"`
	FinalBalance   float64   `json:"final_balance"`
	FinalEquity    float64   `json:"final_equity"`
	NetProfit      float64   `json:"net_profit"`
	MaxDrawdown    float64   `json:"max_drawdown"`
	TotalTrades    int       `json:"total_trades"`
	Warnings       int       `json:"warnings"`
	SettingsJSON   string    `json:"settings_json"`
	CreatedAt      time.Time `json:"created_at"`
}

// TradeRecord is one stored closed trade.
type TradeRecord struct {
	ID            string    `json:"id"`
	RunKey        string    `json:"run_key"`
	TradeID       int       `json:"trade_id"`
	Side          string    `json:"side"`
	Hedge         bool      `json:"hedge"`
	EntryTime     time.Time `json:"entry_time"`
	ExitTime      time.Time `json:"exit_time"`
	AveragePrice  float64   `json:"average_price"`
	ExitPrice     float64   `json:"exit_price"`
	Quantity      float64   `json:"quantity"`
	Investment    float64   `json:"investment"`
	Fees          float64   `json:"fees"`
	PnL           float64   `json:"pnl"`
	DCACount      int       `json:"dca_count"`
	ExitReason    string    `json:"exit_reason"`
	LinkedTradeID int       `json:"linked_trade_id"`
}

// Journal stores runs.
type Journal interface {
	SaveRun(ctx context.Context, settings *config.StrategySettings, result *backtest.BacktestResult, summary backtest.Summary) (string, error)
	GetRun(ctx context.Context, key string) (RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	ListTrades(ctx context.Context, key string) ([]TradeRecord, error)
	Close() error
}

// Schema creates the journal tables. Times are Unix milliseconds.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	run_id          TEXT NOT NULL,
	symbol          TEXT,
	interval        TEXT,
	start_time      INTEGER,
	end_time        INTEGER,
	bars            INTEGER,
	initial_balance REAL,
	final_balance   REAL,
	final_equity    REAL,
	net_profit      REAL,
	max_drawdown    REAL,
	total_trades    INTEGER,
	warnings        INTEGER,
	settings_json   TEXT,
	created_at      INTEGER
);

CREATE TABLE IF NOT EXISTS trades (
	id              TEXT PRIMARY KEY,
	run_key         TEXT NOT NULL REFERENCES runs(id),
	trade_id        INTEGER,
	side            TEXT,
	hedge           INTEGER,
	entry_time      INTEGER,
	exit_time       INTEGER,
	average_price   REAL,
	exit_price      REAL,
	quantity        REAL,
	investment      REAL,
	fees            REAL,
	pnl             REAL,
	dca_count       INTEGER,
	exit_reason     TEXT,
	linked_trade_id INTEGER
);

CREATE TABLE IF NOT EXISTS equity (
	run_key  TEXT NOT NULL REFERENCES runs(id),
	time     INTEGER,
	balance  REAL,
	equity   REAL,
	drawdown REAL
);

CREATE TABLE IF NOT EXISTS warnings (
	run_key   TEXT NOT NULL REFERENCES runs(id),
	bar_index INTEGER,
	time      INTEGER,
	site      TEXT,
	message   TEXT
);

CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_key);
CREATE INDEX IF NOT EXISTS idx_equity_run ON equity(run_key);
`
