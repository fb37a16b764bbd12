package reporting

import (
	"io"

	"github.com/ducminhle1904/dca-ladder-backtest/internal/backtest"
)

// ConsoleReporter renders a run for humans.
type ConsoleReporter interface {
	OutputResults(w io.Writer, result *backtest.BacktestResult, summary backtest.Summary)
}

// FileReporter writes a run to disk.
type FileReporter interface {
	WriteTradesCSV(result *backtest.BacktestResult, path string) error
	WriteEquityCSV(result *backtest.BacktestResult, path string) error
	WriteXLSX(result *backtest.BacktestResult, summary backtest.Summary, path string) error
	WriteJSON(result *backtest.BacktestResult, summary backtest.Summary, path string) error
}

// ExcelStyles holds Excel formatting styles
type ExcelStyles struct {
	HeaderStyle        int
	TitleStyle         int
	CurrencyStyle      int
	PriceStyle         int
	PercentStyle       int
	BaseStyle          int
	RedCurrencyStyle   int
	GreenCurrencyStyle int
	DateStyle          int
}

// ReportingConfig selects the outputs ReportResults produces.
type ReportingConfig struct {
	EnableConsole   bool
	EnableFiles     bool
	OutputDirectory string // empty uses DefaultOutputDir
	ExcelEnabled    bool
	CSVEnabled      bool
	JSONEnabled     bool
}
