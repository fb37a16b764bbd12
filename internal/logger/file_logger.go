package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger writes levelled, human-readable run logs. One logger per run or
// per process; it is safe for concurrent use.
type Logger struct {
	symbol   string
	interval string
	logFile  *os.File
	logger   *log.Logger
	mu       sync.Mutex
	now      func() time.Time
	minLevel int
}

// LogLevel represents different types of log entries
type LogLevel string

const (
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARN"
	LogLevelError   LogLevel = "ERROR"
	LogLevelTrade   LogLevel = "TRADE"
	LogLevelStatus  LogLevel = "STATUS"
)

func (l LogLevel) rank() int {
	switch l {
	case LogLevelError:
		return 3
	case LogLevelWarning:
		return 2
	case LogLevelTrade:
		return 1
	default:
		return 0
	}
}

// ParseLevel maps a CLI/env level name onto a LogLevel, defaulting to INFO.
func ParseLevel(v string) LogLevel {
	switch LogLevel(v) {
	case LogLevelWarning, "warn", "WARNING", "warning":
		return LogLevelWarning
	case LogLevelError, "error":
		return LogLevelError
	case LogLevelTrade, "trade":
		return LogLevelTrade
	}
	return LogLevelInfo
}

// New creates a logger writing to w.
func New(w io.Writer, symbol, interval string) *Logger {
	return &Logger{
		symbol:   symbol,
		interval: interval,
		logger:   log.New(w, "", 0),
		now:      time.Now,
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(io.Discard, "", "")
}

// NewFileLogger creates a daily log file under dir for the symbol and interval.
func NewFileLogger(dir, symbol, interval string) (*Logger, error) {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filename := fmt.Sprintf("%s_%s_%s.log", symbol, interval, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, filename), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := New(file, symbol, interval)
	l.logFile = file
	return l, nil
}

// SetMinLevel suppresses entries ranked below level.
func (l *Logger) SetMinLevel(level LogLevel) {
	l.mu.Lock()
	l.minLevel = level.rank()
	l.mu.Unlock()
}

// SetClock overrides the timestamp source.
func (l *Logger) SetClock(now func() time.Time) {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
}

// SessionHeader writes the run banner.
func (l *Logger) SessionHeader(runID string, bars int) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logger.Printf(`
================================================================================
🚀 BACKTEST RUN STARTED
================================================================================
Run: %s | Symbol: %s | Interval: %s | Bars: %d
Started: %s
================================================================================
`, runID, l.symbol, l.interval, bars, l.now().Format("2006-01-02 15:04:05"))
}

// Log writes a formatted log entry with the specified level
func (l *Logger) Log(level LogLevel, format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if level.rank() < l.minLevel {
		return
	}
	l.logger.Printf("[%s] [%s] %s", l.now().Format("2006-01-02 15:04:05"), level, fmt.Sprintf(format, args...))
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.Log(LogLevelInfo, format, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(format string, args ...interface{}) {
	l.Log(LogLevelWarning, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.Log(LogLevelError, format, args...)
}

// Trade logs a fill or a closed trade
func (l *Logger) Trade(format string, args ...interface{}) {
	l.Log(LogLevelTrade, format, args...)
}

// Status logs run progress
func (l *Logger) Status(format string, args ...interface{}) {
	l.Log(LogLevelStatus, format, args...)
}

// LogFill logs an entry, re-entry or exit at bar time ts.
func (l *Logger) LogFill(ts time.Time, action, side string, price, qty float64, reason string) {
	l.Trade("%s %s %s %.8f @ $%.4f (%s)", ts.Format(time.RFC3339), action, side, qty, price, reason)
}

// LogTradeClosed logs a completed round trip.
func (l *Logger) LogTradeClosed(id int, side, reason string, avgEntry, exit, pnl, pnlPct float64, dcaCount int) {
	icon := "✅"
	if pnl < 0 {
		icon = "❌"
	}
	l.Trade("%s trade #%d %s closed by %s | avg $%.4f -> $%.4f | P&L $%.2f (%.2f%%) | DCA %d",
		icon, id, side, reason, avgEntry, exit, pnl, pnlPct, dcaCount)
}

// LogRunSummary writes the closing block of a run.
func (l *Logger) LogRunSummary(runID string, trades, warnings int, initial, final float64) {
	l.Status(`==================== RUN SUMMARY ====================
🆔 Run: %s
📊 Trades: %d | ⚠️ Warnings: %d
💰 Balance: $%.2f -> $%.2f`, runID, trades, warnings, initial, final)
}

// Close closes the underlying log file, if any.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		l.logger.Printf("🛑 session ended %s", l.now().Format("2006-01-02 15:04:05"))
		err := l.logFile.Close()
		l.logFile = nil
		return err
	}
	return nil
}
