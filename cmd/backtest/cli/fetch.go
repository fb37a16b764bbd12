package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ducminhle1904/dca-ladder-backtest/pkg/data"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download historical klines from Bybit",
	Long: `Fetch pages Bybit's kline endpoint backwards and stores the candles at
<data-root>/bybit/<category>/<SYMBOL>/<interval minutes>/candles.csv,
where run and batch find them.

BYBIT_API_KEY and BYBIT_API_SECRET are read from the environment when set;
the market endpoint works without them.

Example:
  dca-backtest fetch --symbol BTCUSDT --interval 60 --days 365`,
	RunE: runFetch,
}

var (
	fetchSymbol   string
	fetchInterval string
	fetchCategory string
	fetchDays     int
	fetchStart    string
	fetchEnd      string
	fetchDataRoot string
	fetchOutput   string
	fetchTestnet  bool
	fetchRPS      float64
)

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVarP(&fetchSymbol, "symbol", "s", "", "trading pair, e.g. BTCUSDT (required)")
	fetchCmd.Flags().StringVarP(&fetchInterval, "interval", "i", "60", "Bybit interval code (1, 5, 15, 60, 240, D, W)")
	fetchCmd.Flags().StringVar(&fetchCategory, "category", "linear", "market category (spot, linear, inverse)")
	fetchCmd.Flags().IntVar(&fetchDays, "days", 30, "days of history ending now (ignored with --start)")
	fetchCmd.Flags().StringVar(&fetchStart, "start", "", "first day (YYYY-MM-DD)")
	fetchCmd.Flags().StringVar(&fetchEnd, "end", "", "last day (YYYY-MM-DD, inclusive)")
	fetchCmd.Flags().StringVar(&fetchDataRoot, "data-root", DefaultDataRoot, "data root directory")
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "write to this file instead of the data root layout")
	fetchCmd.Flags().BoolVar(&fetchTestnet, "testnet", false, "use the Bybit testnet")
	fetchCmd.Flags().Float64Var(&fetchRPS, "rps", data.DefaultRequestsPerSecond, "page requests per second (negative disables the limit)")

	fetchCmd.MarkFlagRequired("symbol")
}

func fetchRange() (time.Time, time.Time, error) {
	end := time.Now().UTC()
	if fetchEnd != "" {
		t, err := time.Parse(dateLayout, fetchEnd)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date: %w", err)
		}
		end = t.Add(24*time.Hour - time.Millisecond)
	}

	if fetchStart != "" {
		start, err := time.Parse(dateLayout, fetchStart)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date: %w", err)
		}
		return start, end, nil
	}
	if fetchDays <= 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("--days must be positive, got %d", fetchDays)
	}
	return end.AddDate(0, 0, -fetchDays), end, nil
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	symbol := strings.ToUpper(fetchSymbol)
	start, end, err := fetchRange()
	if err != nil {
		return err
	}

	log, err := newLogger(symbol, fetchInterval)
	if err != nil {
		return err
	}
	defer log.Close()

	source := data.NewBybitSource(data.BybitOptions{
		APIKey:    os.Getenv("BYBIT_API_KEY"),
		APISecret: os.Getenv("BYBIT_API_SECRET"),
		Testnet:   fetchTestnet,

		RequestsPerSecond: fetchRPS,
	}, log)

	candles, err := source.FetchKlines(ctx, data.KlineRequest{
		Category: fetchCategory,
		Symbol:   symbol,
		Interval: fetchInterval,
		Start:    start,
		End:      end,
	})
	if err != nil {
		return err
	}
	if len(candles) == 0 {
		return fmt.Errorf("no klines returned for %s %s", symbol, fetchInterval)
	}

	path := fetchOutput
	if path == "" {
		path = data.CandlePath(fetchDataRoot, DefaultExchange, fetchCategory, symbol, fetchInterval)
	}
	if err := data.SaveCSV(path, candles); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "💾 %d candles (%s → %s) written to %s\n", len(candles),
		candles[0].Timestamp.Format(time.RFC3339), candles[len(candles)-1].Timestamp.Format(time.RFC3339), path)
	return nil
}
