package spacing

import (
	"time"
)

// FallbackPercent is the fixed percentage distance used when an ATR-based
// level is requested but no usable ATR is available.
const FallbackPercent = 3.0

// DCASpacingStrategy computes how far the next re-entry sits from a reference price.
type DCASpacingStrategy interface {
	// Distance returns the absolute price distance from ref. fallback is true
	// when the strategy had to substitute FallbackPercent for missing data.
	Distance(ref float64, context *MarketContext) (distance float64, fallback bool)

	// GetName returns the mode name as used in configuration
	GetName() string

	// GetParameters returns the current strategy parameters
	GetParameters() map[string]interface{}

	// ValidateConfig validates the strategy configuration
	ValidateConfig() error
}

// MarketContext carries the market data a spacing strategy may need.
type MarketContext struct {
	CurrentPrice float64
	ATR          float64 // 0 when the bar has no ATR
	Timestamp    time.Time
}

// Reference selects which entry price the ladder is measured from.
type Reference string

const (
	ReferenceInitial Reference = "initial"
	ReferenceLast    Reference = "last"
)

// SpacingConfig holds configuration for a level calculator
type SpacingConfig struct {
	Mode      string    // "percentage" or "atr"
	Value     float64   // percent for percentage mode, ATR multiple for atr mode
	Reference Reference // defaults to ReferenceInitial
}
