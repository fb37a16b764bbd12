package strategy

import (
	"fmt"
	"strings"

	"github.com/ducminhle1904/dca-ladder-backtest/pkg/config"
)

// Generator names accepted in settings
const (
	NameRSI         = "rsi"
	NameTrend       = "trend"
	NameAlwaysLong  = "always_long"
	NameAlwaysShort = "always_short"
)

// NewSignalGenerator builds the generator selected by the signal settings.
func NewSignalGenerator(cfg config.SignalSettings) (SignalGenerator, error) {
	switch strings.ToLower(cfg.Name) {
	case NameRSI:
		return NewRSIReversion(cfg.RSIOversold, cfg.RSIOverbought), nil
	case NameTrend:
		return TrendFollow{}, nil
	case NameAlwaysLong:
		return Constant{Action: ActionLong}, nil
	case NameAlwaysShort:
		return Constant{Action: ActionShort}, nil
	default:
		return nil, fmt.Errorf("unknown signal generator: %s (available: %s)", cfg.Name, strings.Join(AvailableGenerators(), ", "))
	}
}

// AvailableGenerators returns the accepted generator names.
func AvailableGenerators() []string {
	return []string{NameRSI, NameTrend, NameAlwaysLong, NameAlwaysShort}
}
