package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/ducminhle1904/dca-ladder-backtest/internal/logger"
	"github.com/ducminhle1904/dca-ladder-backtest/internal/safety"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/types"
)

const (
	// maxKlineLimit is the largest page the kline endpoint returns.
	maxKlineLimit = 1000

	// DefaultRequestsPerSecond stays well inside Bybit's public market limit.
	DefaultRequestsPerSecond = 5
)

// APIError is a non-zero retCode returned by Bybit.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %s (code: %d)", e.Message, e.Code)
}

// retryable reports whether a failed page request is worth repeating:
// transport failures, rate limiting and server-side errors.
func retryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return true
	}
	switch apiErr.Code {
	case 10000, 10006, 10016:
		return true
	}
	return false
}

type klineFunc func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// BybitSource downloads historical klines from Bybit's public market API.
type BybitSource struct {
	fetch   klineFunc
	limit   int
	limiter *safety.RateLimiter
	retry   safety.RetryConfig
	log     *logger.Logger
}

var _ KlineSource = (*BybitSource)(nil)

// BybitOptions configures a BybitSource.
type BybitOptions struct {
	APIKey    string
	APISecret string
	Testnet   bool
	PageSize  int    // 0 uses the endpoint maximum

	// RequestsPerSecond caps page requests; 0 uses DefaultRequestsPerSecond,
	// a negative value disables the cap.
	RequestsPerSecond float64
}

// NewBybitSource creates a source backed by the official Bybit client.
func NewBybitSource(opts BybitOptions, log *logger.Logger) *BybitSource {
	baseURL := bybit_api.MAINNET
	if opts.Testnet {
		baseURL = bybit_api.TESTNET
	}
	client := bybit_api.NewBybitHttpClient(opts.APIKey, opts.APISecret, bybit_api.WithBaseURL(baseURL))

	fetch := func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		return client.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
	}
	src := newBybitSource(fetch, opts.PageSize, log)

	rps := opts.RequestsPerSecond
	if rps == 0 {
		rps = DefaultRequestsPerSecond
	}
	if rps > 0 {
		src.limiter = safety.NewRateLimiter("bybit-kline", 1, rps)
	}
	return src
}

func newBybitSource(fetch klineFunc, pageSize int, log *logger.Logger) *BybitSource {
	if pageSize <= 0 || pageSize > maxKlineLimit {
		pageSize = maxKlineLimit
	}
	return &BybitSource{fetch: fetch, limit: pageSize, retry: safety.DefaultRetryConfig(), log: log}
}

// FetchKlines pages backwards from req.End until req.Start is covered and
// returns the candles in ascending order.
func (s *BybitSource) FetchKlines(ctx context.Context, req KlineRequest) ([]types.OHLCV, error) {
	if req.Symbol == "" || req.Interval == "" {
		return nil, fmt.Errorf("symbol and interval are required")
	}
	if req.Category == "" {
		req.Category = "spot"
	}
	end := req.End
	if end.IsZero() {
		end = time.Now()
	}
	if !req.Start.IsZero() && !req.Start.Before(end) {
		return nil, fmt.Errorf("start %s must be before end %s", req.Start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	var all []types.OHLCV
	for page := 1; ; page++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		params := map[string]interface{}{
			"category": req.Category,
			"symbol":   req.Symbol,
			"interval": req.Interval,
			"limit":    s.limit,
			"end":      end.UnixMilli(),
		}
		if !req.Start.IsZero() {
			params["start"] = req.Start.UnixMilli()
		}

		var candles []types.OHLCV
		err := safety.Retry(ctx, s.retry, retryable, func() error {
			resp, err := s.fetch(ctx, params)
			if err != nil {
				s.log.Warning("kline page %d request failed: %v", page, err)
				return err
			}
			candles, err = parseKlineResponse(resp)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get klines: %w", err)
		}
		if len(candles) == 0 {
			break
		}
		all = append(all, candles...)

		oldest := candles[0].Timestamp
		for _, c := range candles[1:] {
			if c.Timestamp.Before(oldest) {
				oldest = c.Timestamp
			}
		}
		s.log.Status("📥 Page %d: %d klines, oldest %s", page, len(candles), oldest.Format(time.RFC3339))

		if len(candles) < s.limit || req.Start.IsZero() || !oldest.After(req.Start) {
			break
		}
		end = oldest.Add(-time.Millisecond)
	}

	filter := NewDefaultDataFilter()
	all = filter.Normalize(all)
	if !req.Start.IsZero() || !req.End.IsZero() {
		all = filter.FilterByDateRange(all, req.Start, req.End)
	}
	return all, nil
}

// parseKlineResponse decodes a kline ServerResponse. Bybit rows are
// [startTime, open, high, low, close, volume, turnover], newest first.
func parseKlineResponse(response interface{}) ([]types.OHLCV, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return nil, fmt.Errorf("invalid response type %T", response)
	}
	if serverResp.RetCode != 0 {
		return nil, &APIError{Code: serverResp.RetCode, Message: serverResp.RetMsg}
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	var klineResult struct {
		Symbol   string     `json:"symbol"`
		Category string     `json:"category"`
		List     [][]string `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &klineResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal kline result: %w", err)
	}

	candles := make([]types.OHLCV, 0, len(klineResult.List))
	for _, item := range klineResult.List {
		if len(item) < 6 {
			continue
		}
		ms, err := strconv.ParseInt(item[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad kline start time %q: %w", item[0], err)
		}
		var v [5]float64
		for i := range v {
			if v[i], err = strconv.ParseFloat(item[i+1], 64); err != nil {
				return nil, fmt.Errorf("bad kline value %q: %w", item[i+1], err)
			}
		}
		candles = append(candles, types.OHLCV{
			Timestamp: time.UnixMilli(ms).UTC(),
			Open:      v[0],
			High:      v[1],
			Low:       v[2],
			Close:     v[3],
			Volume:    v[4],
		})
	}
	return candles, nil
}
