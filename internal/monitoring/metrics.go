package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ducminhle1904/dca-ladder-backtest/internal/backtest"
	"github.com/ducminhle1904/dca-ladder-backtest/internal/position"
)

// Recorder collects backtest metrics on its own registry and implements
// backtest.Observer. One Recorder may observe many runs concurrently.
type Recorder struct {
	registry *prometheus.Registry

	fillsTotal    *prometheus.CounterVec
	tradesTotal   *prometheus.CounterVec
	tradePnL      *prometheus.HistogramVec
	warningsTotal *prometheus.CounterVec
	equity        prometheus.Gauge
	drawdown      prometheus.Gauge
	runsTotal     *prometheus.CounterVec
	runDuration   prometheus.Histogram
}

var _ backtest.Observer = (*Recorder)(nil)

// NewRecorder creates a recorder with a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		fillsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dca_backtest_fills_total",
				Help: "Total number of simulated fills",
			},
			[]string{"side", "action"},
		),
		tradesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dca_backtest_trades_total",
				Help: "Total number of closed trades",
			},
			[]string{"side", "reason", "hedge"},
		),
		tradePnL: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dca_backtest_trade_pnl_percent",
				Help:    "Distribution of net trade P&L as percent of investment",
				Buckets: []float64{-20, -10, -5, -2, -1, 0, 1, 2, 5, 10, 20},
			},
			[]string{"hedge"},
		),
		warningsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dca_backtest_warnings_total",
				Help: "Total number of degraded decisions, by site",
			},
			[]string{"site"},
		),
		equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dca_backtest_equity",
			Help: "Equity after the most recently processed bar",
		}),
		drawdown: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dca_backtest_drawdown_ratio",
			Help: "Drawdown after the most recently processed bar",
		}),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dca_backtest_runs_total",
				Help: "Total number of backtest runs",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dca_backtest_run_duration_seconds",
			Help:    "Wall time of a backtest run",
			Buckets: prometheus.DefBuckets,
		}),
	}

	r.registry.MustRegister(
		r.fillsTotal,
		r.tradesTotal,
		r.tradePnL,
		r.warningsTotal,
		r.equity,
		r.drawdown,
		r.runsTotal,
		r.runDuration,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// OnFill implements backtest.Observer.
func (r *Recorder) OnFill(side, action string, _, _ float64) {
	r.fillsTotal.WithLabelValues(side, action).Inc()
}

// OnTradeClosed implements backtest.Observer.
func (r *Recorder) OnTradeClosed(t position.Trade) {
	hedge := strconv.FormatBool(t.Hedge)
	r.tradesTotal.WithLabelValues(t.Side.String(), string(t.ExitReason), hedge).Inc()
	r.tradePnL.WithLabelValues(hedge).Observe(t.PnLPercent)
}

// OnWarning implements backtest.Observer.
func (r *Recorder) OnWarning(w backtest.Warning) {
	r.warningsTotal.WithLabelValues(w.Site).Inc()
}

// OnEquity implements backtest.Observer.
func (r *Recorder) OnEquity(p backtest.EquityPoint) {
	r.equity.Set(p.Equity)
	r.drawdown.Set(p.Drawdown)
}

// RecordRun records the outcome of a whole run.
func (r *Recorder) RecordRun(d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.runsTotal.WithLabelValues(status).Inc()
	r.runDuration.Observe(d.Seconds())
}
