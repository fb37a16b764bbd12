package reporting

import (
	"io"
	"path/filepath"

	"github.com/ducminhle1904/dca-ladder-backtest/internal/backtest"
)

// DefaultReporter implements ConsoleReporter and FileReporter.
type DefaultReporter struct {
	console *DefaultConsoleReporter
}

var (
	_ ConsoleReporter = (*DefaultReporter)(nil)
	_ FileReporter    = (*DefaultReporter)(nil)
)

func NewDefaultReporter() *DefaultReporter {
	return &DefaultReporter{console: NewDefaultConsoleReporter()}
}

func (r *DefaultReporter) OutputResults(w io.Writer, result *backtest.BacktestResult, s backtest.Summary) {
	r.console.OutputResults(w, result, s)
}

func (r *DefaultReporter) WriteTradesCSV(result *backtest.BacktestResult, path string) error {
	return WriteTradesCSV(result, path)
}

func (r *DefaultReporter) WriteEquityCSV(result *backtest.BacktestResult, path string) error {
	return WriteEquityCSV(result, path)
}

func (r *DefaultReporter) WriteXLSX(result *backtest.BacktestResult, s backtest.Summary, path string) error {
	return WriteXLSX(result, s, path)
}

func (r *DefaultReporter) WriteJSON(result *backtest.BacktestResult, s backtest.Summary, path string) error {
	return WriteJSON(result, s, path)
}

// ReportingManager writes the outputs selected by its config.
type ReportingManager struct {
	reporter *DefaultReporter
	config   ReportingConfig
	out      io.Writer
}

// NewReportingManager creates a manager printing console output to out.
func NewReportingManager(config ReportingConfig, out io.Writer) *ReportingManager {
	return &ReportingManager{
		reporter: NewDefaultReporter(),
		config:   config,
		out:      out,
	}
}

// OutputDir is where file reports for result are written.
func (m *ReportingManager) OutputDir(result *backtest.BacktestResult) string {
	if m.config.OutputDirectory != "" {
		return m.config.OutputDirectory
	}
	return DefaultOutputDir(result.Symbol, result.Interval)
}

// ReportResults emits every enabled output and returns the written paths.
func (m *ReportingManager) ReportResults(result *backtest.BacktestResult, s backtest.Summary) ([]string, error) {
	if m.config.EnableConsole && m.out != nil {
		m.reporter.OutputResults(m.out, result, s)
	}
	if !m.config.EnableFiles {
		return nil, nil
	}

	dir := m.OutputDir(result)
	var written []string
	if m.config.CSVEnabled {
		tradesPath := filepath.Join(dir, "trades.csv")
		if err := m.reporter.WriteTradesCSV(result, tradesPath); err != nil {
			return written, err
		}
		equityPath := filepath.Join(dir, "equity.csv")
		if err := m.reporter.WriteEquityCSV(result, equityPath); err != nil {
			return written, err
		}
		written = append(written, tradesPath, equityPath)
	}
	if m.config.ExcelEnabled {
		path := filepath.Join(dir, "report.xlsx")
		if err := m.reporter.WriteXLSX(result, s, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if m.config.JSONEnabled {
		path := filepath.Join(dir, "result.json")
		if err := m.reporter.WriteJSON(result, s, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}
