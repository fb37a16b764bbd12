package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ducminhle1904/dca-ladder-backtest/internal/backtest"
	"github.com/ducminhle1904/dca-ladder-backtest/internal/notifications"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/data"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/journal"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/reporting"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one backtest",
	Long: `Run replays one candle series through the engine and reports the result.

Without --data the candles are located under --data-root as
<exchange>/<category>/<SYMBOL>/<interval minutes>/candles.csv.

Example:
  dca-backtest run -c configs/btc_ladder.yaml --period 90d
  dca-backtest run -c configs/btc_ladder.json -d data/btc_1h.csv --console-only`,
	RunE: runSingle,
}

var (
	runSettingsPath string
	runSymbol       string
	runInterval     string
	runData         dataSelection
	runOutputDir    string
	runConsoleOnly  bool
	runNoExcel      bool
	runNoCSV        bool
	runNoJSON       bool
	runJournalPath  string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runSettingsPath, "config", "c", "", "settings file (.yaml or .json); defaults are used when empty")
	runCmd.Flags().StringVar(&runSymbol, "symbol", "", "override the settings symbol")
	runCmd.Flags().StringVar(&runInterval, "interval", "", "override the settings interval")
	runData.register(runCmd)

	runCmd.Flags().StringVarP(&runOutputDir, "output", "o", "", "report directory (default results/<SYMBOL>_<interval>)")
	runCmd.Flags().BoolVar(&runConsoleOnly, "console-only", false, "print the report without writing files")
	runCmd.Flags().BoolVar(&runNoExcel, "no-excel", false, "skip the Excel workbook")
	runCmd.Flags().BoolVar(&runNoCSV, "no-csv", false, "skip the trades and equity CSV files")
	runCmd.Flags().BoolVar(&runNoJSON, "no-json", false, "skip the JSON result")
	runCmd.Flags().StringVar(&runJournalPath, "journal", "", "also record the run in this SQLite journal")
}

func runSingle(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(runSettingsPath, runSymbol, runInterval)
	if err != nil {
		return err
	}

	log, err := newLogger(settings.Symbol, settings.Interval)
	if err != nil {
		return err
	}
	defer log.Close()

	opts, err := runData.options()
	if err != nil {
		return err
	}
	dm := data.NewDataManager(log)
	path, err := runData.resolve(dm, settings.Symbol, settings.Interval)
	if err != nil {
		return err
	}
	candles, err := dm.Load(path, opts)
	if err != nil {
		return fmt.Errorf("load data: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "🎯 %s %s | %d candles from %s\n", settings.Symbol, settings.Interval, len(candles), path)

	result, summary, err := backtest.RunCandles(settings, candles, nil, backtest.WithLogger(log))
	if err != nil {
		sendAlert(cmd.Context(), log, notifications.LevelError, fmt.Sprintf("%s %s failed: %v", settings.Symbol, settings.Interval, err))
		return err
	}
	sendAlert(cmd.Context(), log, notifications.LevelSuccess, fmt.Sprintf("%s %s: %d trades, net %.2f (%.2f%%), max DD %.2f%%",
		settings.Symbol, settings.Interval, summary.TotalTrades, summary.NetProfit, summary.TotalReturn*100, summary.MaxDrawdown*100))

	manager := reporting.NewReportingManager(reporting.ReportingConfig{
		EnableConsole:   true,
		EnableFiles:     !runConsoleOnly,
		OutputDirectory: runOutputDir,
		ExcelEnabled:    !runNoExcel,
		CSVEnabled:      !runNoCSV,
		JSONEnabled:     !runNoJSON,
	}, out)
	written, err := manager.ReportResults(result, summary)
	if err != nil {
		return err
	}
	for _, p := range written {
		fmt.Fprintf(out, "💾 %s\n", p)
	}

	if runJournalPath != "" {
		j, err := journal.NewSQLite(runJournalPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer j.Close()

		key, err := j.SaveRun(context.Background(), settings, result, summary)
		if err != nil {
			return fmt.Errorf("journal run: %w", err)
		}
		fmt.Fprintf(out, "📒 Journal key: %s\n", key)
	}
	return nil
}
