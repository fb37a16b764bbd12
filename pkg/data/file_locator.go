package data

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultFileLocator resolves data/{exchange}/{category}/{symbol}/{interval}/candles.csv.
type DefaultFileLocator struct{}

func NewDefaultFileLocator() *DefaultFileLocator {
	return &DefaultFileLocator{}
}

// ConvertIntervalToMinutes converts "5m", "1h", "4h" to minute counts.
// Numbers and unknown units are returned unchanged.
func (f *DefaultFileLocator) ConvertIntervalToMinutes(interval string) string {
	if _, err := strconv.Atoi(interval); err == nil {
		return interval
	}

	interval = strings.ToLower(strings.TrimSpace(interval))
	if len(interval) < 2 {
		return interval
	}

	num, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil {
		return interval
	}

	switch interval[len(interval)-1:] {
	case "m":
		return strconv.Itoa(num)
	case "h":
		return strconv.Itoa(num * 60)
	case "d":
		return strconv.Itoa(num * 24 * 60)
	case "w":
		return strconv.Itoa(num * 7 * 24 * 60)
	default:
		return interval
	}
}

// CandlePath is where a series for the given category is stored.
func CandlePath(dataRoot, exchange, category, symbol, interval string) string {
	return filepath.Join(dataRoot, strings.ToLower(exchange), category, strings.ToUpper(symbol),
		NewDefaultFileLocator().ConvertIntervalToMinutes(interval), "candles.csv")
}

// FindDataFile returns the first existing candles file across the
// exchange's categories, or "" when none exists.
func (f *DefaultFileLocator) FindDataFile(dataRoot, exchange, symbol, interval string) string {
	var categories []string
	switch strings.ToLower(exchange) {
	case "bybit":
		categories = []string{"spot", "linear", "inverse"}
	case "binance":
		categories = []string{"spot", "futures"}
	default:
		categories = []string{"spot", "futures", "linear", "inverse"}
	}

	for _, category := range categories {
		path := CandlePath(dataRoot, exchange, category, symbol, interval)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
