// Package cli implements the dca-backtest command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ducminhle1904/dca-ladder-backtest/internal/logger"
	"github.com/ducminhle1904/dca-ladder-backtest/internal/notifications"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/config"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/data"
)

const (
	DefaultDataRoot = "data"
	DefaultExchange = "bybit"
	dateLayout      = "2006-01-02"
)

var (
	envFile  string
	logLevel string
	logDir   string
	notify   bool
)

var rootCmd = &cobra.Command{
	Use:   "dca-backtest",
	Short: "Bar-driven backtester for DCA ladders with TP levels, trailing stops and hedges",
	Long: `dca-backtest replays OHLCV candles through a DCA position engine.

It provides tools for:
  - Running a single backtest from a YAML or JSON settings file
  - Running many settings files in parallel
  - Downloading historical klines from Bybit
  - Serving the engine over HTTP`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loadEnvironment(envFile)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "environment file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", envOr("DCA_LOG_LEVEL", "INFO"), "minimum log level (INFO, TRADE, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "write run logs to daily files in this directory instead of stderr")
	rootCmd.PersistentFlags().BoolVar(&notify, "notify", false, "send a Telegram alert when runs finish (TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID)")
}

func loadEnvironment(path string) {
	if path == "" {
		return
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "⚠️  Could not load %s (%v)\n", path, err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newNotifier() notifications.Notifier {
	token, chat := os.Getenv("TELEGRAM_BOT_TOKEN"), os.Getenv("TELEGRAM_CHAT_ID")
	if !notify || token == "" || chat == "" {
		return notifications.Nop{}
	}
	return notifications.NewTelegramNotifier(token, chat)
}

func sendAlert(ctx context.Context, log *logger.Logger, level, message string) {
	if err := newNotifier().SendAlert(ctx, level, message); err != nil {
		log.Warning("notification failed: %v", err)
	}
}

func newLogger(symbol, interval string) (*logger.Logger, error) {
	var (
		l   *logger.Logger
		err error
	)
	if logDir != "" {
		l, err = logger.NewFileLogger(logDir, symbol, interval)
		if err != nil {
			return nil, err
		}
	} else {
		l = logger.New(os.Stderr, symbol, interval)
	}
	l.SetMinLevel(logger.ParseLevel(logLevel))
	return l, nil
}

// loadSettings reads path, or returns the defaults when path is empty.
// Non-empty symbol and interval override the file.
func loadSettings(path, symbol, interval string) (*config.StrategySettings, error) {
	m := config.NewSettingsManager()

	settings := config.NewDefaultSettings()
	if path != "" {
		var err error
		if settings, err = m.LoadSettings(path); err != nil {
			return nil, err
		}
	}
	if symbol != "" {
		settings.Symbol = symbol
	}
	if interval != "" {
		settings.Interval = interval
	}
	if err := m.ValidateSettings(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// dataSelection picks and narrows a candles file.
type dataSelection struct {
	file     string
	root     string
	exchange string
	period   string
	start    string
	end      string
}

func (d *dataSelection) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&d.file, "data", "d", "", "candles CSV (default: located under --data-root)")
	cmd.Flags().StringVar(&d.root, "data-root", DefaultDataRoot, "data root directory")
	cmd.Flags().StringVar(&d.exchange, "exchange", DefaultExchange, "exchange directory under the data root")
	cmd.Flags().StringVar(&d.period, "period", "", "trailing window to keep, e.g. 30d or 720h")
	cmd.Flags().StringVar(&d.start, "start", "", "first day to keep (YYYY-MM-DD)")
	cmd.Flags().StringVar(&d.end, "end", "", "last day to keep (YYYY-MM-DD, inclusive)")
}

func (d *dataSelection) options() (data.LoadOptions, error) {
	var opts data.LoadOptions
	if d.period != "" {
		p, ok := data.ParseTrailingPeriod(d.period)
		if !ok {
			return opts, fmt.Errorf("invalid period %q (use 7d, 30d, 180d or a duration)", d.period)
		}
		opts.Period = p
	}
	if d.start != "" {
		t, err := time.Parse(dateLayout, d.start)
		if err != nil {
			return opts, fmt.Errorf("invalid start date: %w", err)
		}
		opts.Start = t
	}
	if d.end != "" {
		t, err := time.Parse(dateLayout, d.end)
		if err != nil {
			return opts, fmt.Errorf("invalid end date: %w", err)
		}
		opts.End = t.Add(24*time.Hour - time.Nanosecond)
	}
	return opts, nil
}

// resolve returns the explicit file or the one located for symbol and interval.
func (d *dataSelection) resolve(dm *data.DataManager, symbol, interval string) (string, error) {
	if d.file != "" {
		return d.file, nil
	}
	path := dm.FindDataFile(d.root, d.exchange, symbol, interval)
	if path == "" {
		return "", fmt.Errorf("no candles for %s %s under %s/%s (run `dca-backtest fetch` first)",
			symbol, interval, d.root, d.exchange)
	}
	return path, nil
}
