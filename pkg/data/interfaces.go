package data

import (
	"context"
	"time"

	"github.com/ducminhle1904/dca-ladder-backtest/pkg/types"
)

// DataProvider loads historical candles from a source.
type DataProvider interface {
	// LoadData loads historical data from the specified source
	LoadData(source string) ([]types.OHLCV, error)

	// ValidateData validates the integrity of the loaded data
	ValidateData(data []types.OHLCV) error

	// GetName returns the name of the data provider
	GetName() string
}

// DataCache caches loaded data by source key.
type DataCache interface {
	Get(key string) ([]types.OHLCV, bool)
	Set(key string, data []types.OHLCV)
	Clear()
	Size() int
}

// DataFilter filters and checks candle series.
type DataFilter interface {
	// FilterByPeriod keeps the trailing period ending at the last candle
	FilterByPeriod(data []types.OHLCV, period time.Duration) []types.OHLCV

	// FilterByDateRange keeps candles within [start, end]
	FilterByDateRange(data []types.OHLCV, start, end time.Time) []types.OHLCV

	// ValidateTimeSequence ensures strictly increasing timestamps
	ValidateTimeSequence(data []types.OHLCV) error
}

// KlineSource downloads candles from an exchange.
type KlineSource interface {
	FetchKlines(ctx context.Context, req KlineRequest) ([]types.OHLCV, error)
}

// KlineRequest describes a historical download.
type KlineRequest struct {
	Category string // "spot", "linear", "inverse"
	Symbol   string
	Interval string // exchange interval code, e.g. "60", "D"
	Start    time.Time
	End      time.Time
}

// CSVColumnMapping defines the column positions of a CSV format.
type CSVColumnMapping struct {
	TimestampCol int
	OpenCol      int
	HighCol      int
	LowCol       int
	CloseCol     int
	VolumeCol    int
	MinColumns   int
	DateFormat   string
}

// DefaultCSVFormat is the layout written by WriteCSV and by the fetch command.
var DefaultCSVFormat = CSVColumnMapping{
	TimestampCol: 0,
	OpenCol:      1,
	HighCol:      2,
	LowCol:       3,
	CloseCol:     4,
	VolumeCol:    5,
	MinColumns:   6,
	DateFormat:   "2006-01-02 15:04:05",
}

// FileLocator finds data files in a data root.
type FileLocator interface {
	FindDataFile(dataRoot, exchange, symbol, interval string) string
	ConvertIntervalToMinutes(interval string) string
}
