package reporting

import (
	"encoding/json"
	"io"
	"math"
	"os"
	"sort"
	"time"

	"github.com/ducminhle1904/dca-ladder-backtest/internal/backtest"
	"github.com/ducminhle1904/dca-ladder-backtest/internal/position"
)

// ResultDocument is the JSON form of a run, shared by the file reporter and
// the HTTP API.
type ResultDocument struct {
	RunID          string            `json:"run_id"`
	Symbol         string            `json:"symbol,omitempty"`
	Interval       string            `json:"interval,omitempty"`
	InitialBalance float64           `json:"initial_balance"`
	FinalBalance   float64           `json:"final_balance"`
	FinalEquity    float64           `json:"final_equity"`
	StartTime      time.Time         `json:"start_time"`
	EndTime        time.Time         `json:"end_time"`
	Bars           int               `json:"bars"`
	Summary        SummaryDocument   `json:"summary"`
	Trades         []TradeDocument   `json:"trades"`
	Equity         []EquityDocument  `json:"equity,omitempty"`
	Warnings       []WarningDocument `json:"warnings"`
}

// SummaryDocument mirrors backtest.Summary. Non-finite ratios become null.
type SummaryDocument struct {
	TotalTrades      int            `json:"total_trades"`
	WinningTrades    int            `json:"winning_trades"`
	LosingTrades     int            `json:"losing_trades"`
	HedgeTrades      int            `json:"hedge_trades"`
	WinRate          float64        `json:"win_rate"`
	NetProfit        float64        `json:"net_profit"`
	GrossProfit      float64        `json:"gross_profit"`
	GrossLoss        float64        `json:"gross_loss"`
	TotalFees        float64        `json:"total_fees"`
	ProfitFactor     *float64       `json:"profit_factor"`
	TotalReturn      float64        `json:"total_return"`
	MaxDrawdown      float64        `json:"max_drawdown"`
	SharpeRatio      float64        `json:"sharpe_ratio"`
	SortinoRatio     *float64       `json:"sortino_ratio"`
	AnnualizedReturn float64        `json:"annualized_return"`
	CalmarRatio      *float64       `json:"calmar_ratio"`
	AvgDCACount      float64        `json:"avg_dca_count"`
	MaxDCACount      int            `json:"max_dca_count"`
	AvgHoldDuration  string         `json:"avg_hold_duration"`
	ExitReasons      map[string]int `json:"exit_reasons"`
	Warnings         int            `json:"warnings"`
}

// TradeDocument is one closed trade.
type TradeDocument struct {
	ID            int       `json:"id"`
	Side          string    `json:"side"`
	Hedge         bool      `json:"hedge"`
	EntryTime     time.Time `json:"entry_time"`
	ExitTime      time.Time `json:"exit_time"`
	AveragePrice  float64   `json:"average_price"`
	ExitPrice     float64   `json:"exit_price"`
	AverageExit   float64   `json:"average_exit_price"`
	Quantity      float64   `json:"quantity"`
	Investment    float64   `json:"investment"`
	Fees          float64   `json:"fees"`
	GrossPnL      float64   `json:"gross_pnl"`
	PnL           float64   `json:"pnl"`
	PnLPercent    float64   `json:"pnl_percent"`
	DCACount      int       `json:"dca_count"`
	ExitReason    string    `json:"exit_reason"`
	LinkedTradeID int       `json:"linked_trade_id,omitempty"`
	Entries       int       `json:"entries"`
	Exits         int       `json:"exits"`
}

// EquityDocument is one equity curve point.
type EquityDocument struct {
	Timestamp time.Time `json:"timestamp"`
	Balance   float64   `json:"balance"`
	Equity    float64   `json:"equity"`
	Drawdown  float64   `json:"drawdown"`
}

// WarningDocument is one degraded decision.
type WarningDocument struct {
	BarIndex  int       `json:"bar_index"`
	Timestamp time.Time `json:"timestamp"`
	Site      string    `json:"site"`
	Message   string    `json:"message"`
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

// NewSummaryDocument converts a summary.
func NewSummaryDocument(s backtest.Summary) SummaryDocument {
	reasons := make(map[string]int, len(s.ExitReasons))
	for k, v := range s.ExitReasons {
		reasons[string(k)] = v
	}
	return SummaryDocument{
		TotalTrades:      s.TotalTrades,
		WinningTrades:    s.WinningTrades,
		LosingTrades:     s.LosingTrades,
		HedgeTrades:      s.HedgeTrades,
		WinRate:          s.WinRate,
		NetProfit:        s.NetProfit,
		GrossProfit:      s.GrossProfit,
		GrossLoss:        s.GrossLoss,
		TotalFees:        s.TotalFees,
		ProfitFactor:     finite(s.ProfitFactor),
		TotalReturn:      s.TotalReturn,
		MaxDrawdown:      s.MaxDrawdown,
		SharpeRatio:      s.SharpeRatio,
		SortinoRatio:     finite(s.SortinoRatio),
		AnnualizedReturn: s.AnnualizedReturn,
		CalmarRatio:      finite(s.CalmarRatio),
		AvgDCACount:      s.AvgDCACount,
		MaxDCACount:      s.MaxDCACount,
		AvgHoldDuration:  s.AvgHoldDuration.String(),
		ExitReasons:      reasons,
		Warnings:         s.Warnings,
	}
}

// NewTradeDocument converts a trade.
func NewTradeDocument(t position.Trade) TradeDocument {
	return TradeDocument{
		ID:            t.ID,
		Side:          t.Side.String(),
		Hedge:         t.Hedge,
		EntryTime:     t.EntryTime,
		ExitTime:      t.ExitTime,
		AveragePrice:  t.AveragePrice,
		ExitPrice:     t.ExitPrice,
		AverageExit:   t.AverageExitPrice,
		Quantity:      t.TotalQuantity,
		Investment:    t.TotalInvestment,
		Fees:          t.Fees,
		GrossPnL:      t.GrossPnL,
		PnL:           t.PnL,
		PnLPercent:    t.PnLPercent,
		DCACount:      t.DCACount,
		ExitReason:    string(t.ExitReason),
		LinkedTradeID: t.LinkedTradeID,
		Entries:       len(t.Entries),
		Exits:         len(t.Exits),
	}
}

// NewResultDocument converts a run. includeEquity controls whether the
// per-bar curve is embedded.
func NewResultDocument(r *backtest.BacktestResult, s backtest.Summary, includeEquity bool) ResultDocument {
	doc := ResultDocument{
		RunID:          r.RunID,
		Symbol:         r.Symbol,
		Interval:       r.Interval,
		InitialBalance: r.InitialBalance,
		FinalBalance:   r.FinalBalance,
		FinalEquity:    r.FinalEquity,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		Bars:           r.Bars,
		Summary:        NewSummaryDocument(s),
		Trades:         make([]TradeDocument, 0, len(r.Trades)),
		Warnings:       make([]WarningDocument, 0, len(r.Warnings)),
	}
	for _, t := range r.Trades {
		doc.Trades = append(doc.Trades, NewTradeDocument(t))
	}
	sort.SliceStable(doc.Trades, func(i, j int) bool { return doc.Trades[i].ID < doc.Trades[j].ID })

	for _, w := range r.Warnings {
		doc.Warnings = append(doc.Warnings, WarningDocument{
			BarIndex:  w.BarIndex,
			Timestamp: w.Timestamp,
			Site:      w.Site,
			Message:   w.Message,
		})
	}
	if includeEquity {
		doc.Equity = make([]EquityDocument, 0, len(r.EquityCurve))
		for _, p := range r.EquityCurve {
			doc.Equity = append(doc.Equity, EquityDocument{
				Timestamp: p.Timestamp,
				Balance:   p.Balance,
				Equity:    p.Equity,
				Drawdown:  p.Drawdown,
			})
		}
	}
	return doc
}

// EncodeJSON writes the indented document to w.
func EncodeJSON(w io.Writer, r *backtest.BacktestResult, s backtest.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewResultDocument(r, s, true))
}

// WriteJSON writes the full run document to path.
func WriteJSON(r *backtest.BacktestResult, s backtest.Summary, path string) error {
	if err := EnsureDirectoryExists(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeJSON(f, r, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
