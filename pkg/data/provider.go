package data

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ducminhle1904/dca-ladder-backtest/internal/logger"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/types"
)

// DataManager combines loading, filtering and locating candle files.
// Filtered series are cached per file version and LoadOptions.
type DataManager struct {
	provider DataProvider
	filter   *DefaultDataFilter
	locator  FileLocator
	cache    DataCache
	log      *logger.Logger
}

// NewDataManager creates a manager backed by the CSV provider and a MemoryCache.
func NewDataManager(log *logger.Logger) *DataManager {
	return NewDataManagerWithProvider(NewCSVProvider(log), NewMemoryCache(DefaultCacheEntries), log)
}

// NewDataManagerWithProvider wires a custom provider. A nil cache disables caching.
func NewDataManagerWithProvider(provider DataProvider, cache DataCache, log *logger.Logger) *DataManager {
	return &DataManager{
		provider: provider,
		filter:   NewDefaultDataFilter(),
		locator:  NewDefaultFileLocator(),
		cache:    cache,
		log:      log,
	}
}

// LoadOptions narrow a loaded series.
type LoadOptions struct {
	Period time.Duration // trailing window, 0 keeps everything
	Start  time.Time
	End    time.Time
}

// Load reads source, normalises ordering, applies opts and validates the result.
func (dm *DataManager) Load(source string, opts LoadOptions) ([]types.OHLCV, error) {
	key, cacheable := "", false
	if dm.cache != nil {
		key, cacheable = loadKey(source, opts)
	}
	if cacheable {
		if cached, ok := dm.cache.Get(key); ok {
			return cached, nil
		}
	}

	dm.log.Info("🔄 Loading historical data from %s", filepath.Base(source))
	candles, err := dm.provider.LoadData(source)
	if err != nil {
		dm.log.Error("Failed to load data from %s: %v", filepath.Base(source), err)
		return nil, err
	}
	candles = dm.filter.Normalize(candles)
	if !opts.Start.IsZero() || !opts.End.IsZero() {
		candles = dm.filter.FilterByDateRange(candles, opts.Start, opts.End)
	}
	candles = dm.filter.FilterByPeriod(candles, opts.Period)

	if err := dm.provider.ValidateData(candles); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	if cacheable {
		dm.cache.Set(key, candles)
	}
	dm.log.Info("✅ Loaded %d candles from %s", len(candles), filepath.Base(source))
	return candles, nil
}

// FindDataFile locates a candles file under dataRoot.
func (dm *DataManager) FindDataFile(dataRoot, exchange, symbol, interval string) string {
	return dm.locator.FindDataFile(dataRoot, exchange, symbol, interval)
}

// ParseTrailingPeriod parses "7d", "30days" or a Go duration such as "168h".
func ParseTrailingPeriod(s string) (time.Duration, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.HasSuffix(s, "days") {
		s = strings.TrimSuffix(s, "days") + "d"
	}
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || n <= 0 {
			return 0, false
		}
		return time.Duration(n) * 24 * time.Hour, true
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d, true
	}
	return 0, false
}
