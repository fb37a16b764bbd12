// Package api exposes the backtest engine over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/ducminhle1904/dca-ladder-backtest/internal/logger"
	"github.com/ducminhle1904/dca-ladder-backtest/internal/monitoring"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/config"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/data"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/journal"
)

// Options configures a Server.
type Options struct {
	DataRoot       string // data_file requests resolve inside this directory
	AllowedOrigins []string
	MaxCandles     int             // 0 means unlimited
	Journal        journal.Journal // optional
	Logger         *logger.Logger
	Release        bool
}

// Server routes HTTP requests to the engine.
type Server struct {
	opts     Options
	router   *gin.Engine
	settings *config.SettingsManager
	data     *data.DataManager
	recorder *monitoring.Recorder
	health   *monitoring.HealthChecker
	log      *logger.Logger
}

// NewServer builds the router. Each server owns its metrics registry.
func NewServer(opts Options) *Server {
	if opts.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	s := &Server{
		opts:     opts,
		router:   gin.New(),
		settings: config.NewSettingsManager(),
		data:     data.NewDataManager(opts.Logger),
		recorder: monitoring.NewRecorder(),
		health:   monitoring.NewHealthChecker(),
		log:      opts.Logger,
	}

	s.router.Use(RequestLogger(s.log))
	s.router.Use(ErrorHandler(s.log))

	s.router.GET("/health", gin.WrapH(s.health))
	s.router.GET("/metrics", gin.WrapH(s.recorder.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/backtest", s.runBacktest)
		v1.GET("/generators", s.listGenerators)
		v1.GET("/runs", s.listRuns)
		v1.GET("/runs/:key", s.getRun)
	}
	return s
}

// Handler returns the router wrapped with CORS handling.
func (s *Server) Handler() http.Handler {
	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(s.router)
}

// Recorder exposes the server's metrics recorder.
func (s *Server) Recorder() *monitoring.Recorder { return s.recorder }

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("🚀 API listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("🛑 Shutting down API server")
		return srv.Shutdown(shutdownCtx)
	}
}
