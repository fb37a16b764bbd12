package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ducminhle1904/dca-ladder-backtest/internal/logger"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/types"
)

// CSVProvider implements DataProvider for CSV files
type CSVProvider struct {
	format CSVColumnMapping
	log    *logger.Logger
}

// NewCSVProvider creates a CSV provider with the default format. log may be nil.
func NewCSVProvider(log *logger.Logger) *CSVProvider {
	return NewCSVProviderWithFormat(DefaultCSVFormat, log)
}

// NewCSVProviderWithFormat creates a CSV provider with a custom format
func NewCSVProviderWithFormat(format CSVColumnMapping, log *logger.Logger) *CSVProvider {
	return &CSVProvider{format: format, log: log}
}

// GetName returns the name of the data provider
func (p *CSVProvider) GetName() string {
	return "CSV Provider"
}

// LoadData loads historical data from a CSV file
func (p *CSVProvider) LoadData(source string) ([]types.OHLCV, error) {
	file, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", source, err)
	}
	defer file.Close()

	return p.Read(file)
}

// Read parses candles from r. The first row is a header. Malformed rows are
// skipped and logged.
func (p *CSVProvider) Read(r io.Reader) ([]types.OHLCV, error) {
	format := p.format
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var data []types.OHLCV
	lineNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV at line %d: %w", lineNum+1, err)
		}
		lineNum++

		if len(record) < format.MinColumns {
			p.log.Warning("Insufficient columns at line %d (expected %d, got %d), skipping", lineNum, format.MinColumns, len(record))
			continue
		}

		timestamp, err := parseTimestamp(record[format.TimestampCol], format.DateFormat)
		if err != nil {
			p.log.Warning("Invalid timestamp '%s' at line %d, skipping: %v", record[format.TimestampCol], lineNum, err)
			continue
		}

		var values [5]float64
		cols := [5]int{format.OpenCol, format.HighCol, format.LowCol, format.CloseCol, format.VolumeCol}
		bad := false
		for i, col := range cols {
			values[i], err = strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
			if err != nil {
				p.log.Warning("Invalid number '%s' at line %d, skipping: %v", record[col], lineNum, err)
				bad = true
				break
			}
		}
		if bad {
			continue
		}

		candle := types.OHLCV{
			Timestamp: timestamp,
			Open:      values[0],
			High:      values[1],
			Low:       values[2],
			Close:     values[3],
			Volume:    values[4],
		}
		if err := validateCandle(candle); err != nil {
			p.log.Warning("Line %d: %v, skipping", lineNum, err)
			continue
		}
		data = append(data, candle)
	}

	return data, nil
}

// parseTimestamp accepts the layout, RFC3339 or Unix milliseconds.
func parseTimestamp(v, layout string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(layout, v); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognised timestamp")
	}
	return time.UnixMilli(ms).UTC(), nil
}

func validateCandle(c types.OHLCV) error {
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return fmt.Errorf("prices must be positive")
	}
	if c.High < c.Low {
		return fmt.Errorf("high (%.4f) cannot be less than low (%.4f)", c.High, c.Low)
	}
	if c.High < c.Open || c.High < c.Close {
		return fmt.Errorf("high (%.4f) must be >= open (%.4f) and close (%.4f)", c.High, c.Open, c.Close)
	}
	if c.Low > c.Open || c.Low > c.Close {
		return fmt.Errorf("low (%.4f) must be <= open (%.4f) and close (%.4f)", c.Low, c.Open, c.Close)
	}
	return nil
}

// ValidateData validates the integrity of loaded data
func (p *CSVProvider) ValidateData(data []types.OHLCV) error {
	return ValidateData(data)
}

// ValidateData checks prices and strictly increasing timestamps.
func ValidateData(data []types.OHLCV) error {
	if len(data) == 0 {
		return fmt.Errorf("no data provided")
	}
	for i, candle := range data {
		if err := validateCandle(candle); err != nil {
			return fmt.Errorf("invalid price data at index %d: %w", i, err)
		}
		if i > 0 && !candle.Timestamp.After(data[i-1].Timestamp) {
			return fmt.Errorf("invalid timestamp sequence at index %d: timestamps must be strictly increasing", i)
		}
	}
	return nil
}

// WriteCSV writes candles in DefaultCSVFormat.
func WriteCSV(w io.Writer, data []types.OHLCV) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"timestamp", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, c := range data {
		row := []string{
			c.Timestamp.UTC().Format(DefaultCSVFormat.DateFormat),
			strconv.FormatFloat(c.Open, 'f', -1, 64),
			strconv.FormatFloat(c.High, 'f', -1, 64),
			strconv.FormatFloat(c.Low, 'f', -1, 64),
			strconv.FormatFloat(c.Close, 'f', -1, 64),
			strconv.FormatFloat(c.Volume, 'f', -1, 64),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// SaveCSV writes candles to path, creating parent directories.
func SaveCSV(path string, data []types.OHLCV) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteCSV(f, data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
