package api

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ducminhle1904/dca-ladder-backtest/internal/backtest"
	enginerrors "github.com/ducminhle1904/dca-ladder-backtest/internal/errors"
	"github.com/ducminhle1904/dca-ladder-backtest/internal/strategy"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/config"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/data"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/journal"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/reporting"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/types"
)

func abortWithError(c *gin.Context, status int, code string, err error) {
	detail := ErrorDetail{Code: code, Message: err.Error()}
	if ee, ok := enginerrors.AsEngineError(err); ok && len(ee.Context) > 0 {
		detail.Details = ee.Context
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: detail})
}

// runBacktest handles POST /api/v1/backtest
func (s *Server) runBacktest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}

	settings, err := s.decodeSettings(req)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_SETTINGS", err)
		return
	}

	candles, err := s.loadCandles(req)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_DATA", err)
		return
	}

	start := time.Now()
	result, summary, err := backtest.RunCandles(settings, candles, nil,
		backtest.WithObserver(s.recorder), backtest.WithLogger(s.log))
	s.recorder.RecordRun(time.Since(start), err)
	s.health.RecordRun(err)
	if err != nil {
		switch {
		case enginerrors.IsCategory(err, enginerrors.ErrorCategoryConfiguration):
			abortWithError(c, http.StatusBadRequest, "INVALID_SETTINGS", err)
		case enginerrors.IsCategory(err, enginerrors.ErrorCategoryData):
			abortWithError(c, http.StatusUnprocessableEntity, "INVALID_DATA", err)
		default:
			s.log.Error("backtest failed: %v", err)
			abortWithError(c, http.StatusInternalServerError, "ENGINE_ERROR", err)
		}
		return
	}

	resp := BacktestResponse{
		Status: "completed",
		Result: reporting.NewResultDocument(result, summary, req.IncludeEquity),
	}
	if req.Journal && s.opts.Journal != nil {
		key, err := s.opts.Journal.SaveRun(c.Request.Context(), settings, result, summary)
		if err != nil {
			s.log.Error("journal save failed for run %s: %v", result.RunID, err)
			abortWithError(c, http.StatusInternalServerError, "JOURNAL_ERROR", err)
			return
		}
		resp.JournalKey = key
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) decodeSettings(req BacktestRequest) (*config.StrategySettings, error) {
	switch {
	case len(req.Settings) > 0 && req.SettingsYAML != "":
		return nil, errors.New("give either settings or settings_yaml, not both")
	case len(req.Settings) > 0:
		return s.settings.DecodeSettings(req.Settings, config.FormatJSON)
	default:
		return s.settings.DecodeSettings([]byte(req.SettingsYAML), config.FormatYAML)
	}
}

func (s *Server) loadCandles(req BacktestRequest) ([]types.OHLCV, error) {
	var candles []types.OHLCV
	switch {
	case len(req.Candles) > 0 && req.DataFile != "":
		return nil, errors.New("give either candles or data_file, not both")
	case len(req.Candles) > 0:
		candles = make([]types.OHLCV, len(req.Candles))
		for i, cd := range req.Candles {
			candles[i] = cd.toOHLCV()
		}
		if err := data.ValidateData(candles); err != nil {
			return nil, err
		}
	case req.DataFile != "":
		if s.opts.DataRoot == "" {
			return nil, errors.New("data_file is not enabled on this server")
		}
		if !filepath.IsLocal(req.DataFile) {
			return nil, fmt.Errorf("data_file %q must be a relative path inside the data root", req.DataFile)
		}
		loaded, err := s.data.Load(filepath.Join(s.opts.DataRoot, req.DataFile), data.LoadOptions{})
		if err != nil {
			return nil, err
		}
		candles = loaded
	default:
		return nil, errors.New("candles or data_file is required")
	}

	if s.opts.MaxCandles > 0 && len(candles) > s.opts.MaxCandles {
		return nil, fmt.Errorf("%d candles exceeds the limit of %d", len(candles), s.opts.MaxCandles)
	}
	return candles, nil
}

// listGenerators handles GET /api/v1/generators
func (s *Server) listGenerators(c *gin.Context) {
	c.JSON(http.StatusOK, GeneratorsResponse{Generators: strategy.AvailableGenerators()})
}

// listRuns handles GET /api/v1/runs
func (s *Server) listRuns(c *gin.Context) {
	if s.opts.Journal == nil {
		abortWithError(c, http.StatusNotFound, "JOURNAL_DISABLED", errors.New("journal is not configured"))
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	runs, err := s.opts.Journal.ListRuns(c.Request.Context(), limit)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "JOURNAL_ERROR", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// getRun handles GET /api/v1/runs/:key
func (s *Server) getRun(c *gin.Context) {
	if s.opts.Journal == nil {
		abortWithError(c, http.StatusNotFound, "JOURNAL_DISABLED", errors.New("journal is not configured"))
		return
	}
	key := c.Param("key")
	run, err := s.opts.Journal.GetRun(c.Request.Context(), key)
	if errors.Is(err, journal.ErrRunNotFound) {
		abortWithError(c, http.StatusNotFound, "RUN_NOT_FOUND", err)
		return
	}
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "JOURNAL_ERROR", err)
		return
	}
	trades, err := s.opts.Journal.ListTrades(c.Request.Context(), key)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "JOURNAL_ERROR", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run, "trades": trades})
}
