package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ducminhle1904/dca-ladder-backtest/internal/backtest"
	"github.com/ducminhle1904/dca-ladder-backtest/internal/indicators"
	"github.com/ducminhle1904/dca-ladder-backtest/internal/notifications"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/config"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/data"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/journal"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/reporting"
)

var batchCmd = &cobra.Command{
	Use:   "batch <settings>...",
	Short: "Run several settings files in parallel",
	Long: `Batch runs every settings file as an independent backtest on a worker pool
and prints one summary row per file. Files sharing a symbol and interval
share the loaded candles.

Example:
  dca-backtest batch configs/*.yaml --period 180d --workers 4`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

var (
	batchData        dataSelection
	batchWorkers     int
	batchJournalPath string
)

func init() {
	rootCmd.AddCommand(batchCmd)

	batchData.register(batchCmd)
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "parallel runs (0 uses every CPU)")
	batchCmd.Flags().StringVar(&batchJournalPath, "journal", "", "record successful runs in this SQLite journal")
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, err := newLogger("BATCH", "")
	if err != nil {
		return err
	}
	defer log.Close()

	opts, err := batchData.options()
	if err != nil {
		return err
	}
	dm := data.NewDataManager(log)

	jobs := make([]backtest.BacktestJob, 0, len(args))
	settingsByJob := make([]*config.StrategySettings, 0, len(args))
	for _, path := range args {
		settings, err := loadSettings(path, "", "")
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		file, err := batchData.resolve(dm, settings.Symbol, settings.Interval)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		candles, err := dm.Load(file, opts)
		if err != nil {
			return fmt.Errorf("%s: load data: %w", path, err)
		}

		jobs = append(jobs, backtest.BacktestJob{
			ID:       strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			Settings: settings,
			Bars:     indicators.Enrich(candles, indicators.ParamsFromSettings(settings.Indicators)),
		})
		settingsByJob = append(settingsByJob, settings)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "🚀 Running %d backtests\n", len(jobs))

	progress := backtest.NewProgressTracker(len(jobs))
	results := backtest.RunBatch(ctx, jobs, batchWorkers, progress, backtest.WithLogger(log))

	done, total, _, elapsed := progress.GetProgress()
	fmt.Fprintf(out, "✅ %d/%d completed in %s\n", done, total, elapsed.Round(time.Millisecond))
	reporting.OutputBatch(out, results)

	failed := 0
	for _, res := range results {
		if res.Error != nil {
			failed++
		}
	}

	if batchJournalPath != "" {
		j, err := journal.NewSQLite(batchJournalPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer j.Close()

		for _, res := range results {
			if res.Error != nil {
				continue
			}
			key, err := j.SaveRun(ctx, settingsByJob[res.Index], res.Result, res.Summary)
			if err != nil {
				return fmt.Errorf("journal %s: %w", res.ID, err)
			}
			fmt.Fprintf(out, "📒 %s -> %s\n", res.ID, key)
		}
	}

	level := notifications.LevelSuccess
	if failed > 0 {
		level = notifications.LevelWarning
	}
	sendAlert(ctx, log, level, fmt.Sprintf("batch finished: %d/%d runs succeeded in %s",
		len(results)-failed, len(results), elapsed.Round(time.Second)))

	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, len(results))
	}
	return nil
}
