package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ducminhle1904/dca-ladder-backtest/internal/api"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/journal"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the backtest engine over HTTP",
	Long: `Serve exposes the engine as a JSON API:

  POST /api/v1/backtest     run a backtest (inline candles or a file under --data-root)
  GET  /api/v1/generators   list signal generators
  GET  /api/v1/runs         list journaled runs (requires --journal)
  GET  /api/v1/runs/:key    one journaled run with its trades
  GET  /health              health status
  GET  /metrics             Prometheus metrics`,
	RunE: runServe,
}

var (
	serveAddr        string
	serveDataRoot    string
	serveJournalPath string
	serveOrigins     []string
	serveMaxCandles  int
	serveDebug       bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", envOr("DCA_API_ADDR", ":8080"), "listen address")
	serveCmd.Flags().StringVar(&serveDataRoot, "data-root", DefaultDataRoot, "directory data_file requests resolve in (empty disables them)")
	serveCmd.Flags().StringVar(&serveJournalPath, "journal", "", "SQLite journal for runs requested with journal=true")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "cors-origin", nil, "allowed CORS origins (default any)")
	serveCmd.Flags().IntVar(&serveMaxCandles, "max-candles", 500_000, "largest accepted series (0 means unlimited)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "run gin in debug mode")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, err := newLogger("API", "")
	if err != nil {
		return err
	}
	defer log.Close()

	opts := api.Options{
		DataRoot:       serveDataRoot,
		AllowedOrigins: serveOrigins,
		MaxCandles:     serveMaxCandles,
		Logger:         log,
		Release:        !serveDebug,
	}
	if serveJournalPath != "" {
		j, err := journal.NewSQLite(serveJournalPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer j.Close()
		opts.Journal = j
	}

	return api.NewServer(opts).ListenAndServe(ctx, serveAddr)
}
