package api

import (
	"encoding/json"
	"time"

	"github.com/ducminhle1904/dca-ladder-backtest/pkg/reporting"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/types"
)

// BacktestRequest is the body of POST /api/v1/backtest. Settings are
// given either as a JSON object or as YAML text; candles either inline or
// as a data file under the server's data root.
type BacktestRequest struct {
	Settings      json.RawMessage `json:"settings"`
	SettingsYAML  string          `json:"settings_yaml"`
	Candles       []Candle        `json:"candles"`
	DataFile      string          `json:"data_file"`
	IncludeEquity bool            `json:"include_equity"`
	Journal       bool            `json:"journal"`
}

// Candle is one OHLCV row.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

func (c Candle) toOHLCV() types.OHLCV {
	return types.OHLCV{
		Timestamp: c.Timestamp,
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
	}
}

// BacktestResponse is the body returned for a finished run.
type BacktestResponse struct {
	Status     string                   `json:"status"`
	JournalKey string                   `json:"journal_key,omitempty"`
	Result     reporting.ResultDocument `json:"result"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// GeneratorsResponse lists the available signal generators.
type GeneratorsResponse struct {
	Generators []string `json:"generators"`
}
