package spacing

import (
	"fmt"
	"strings"
)

const (
	ModePercentage = "percentage"
	ModeATR        = "atr"
)

// CreateSpacingStrategy creates a DCA spacing strategy based on configuration
func CreateSpacingStrategy(config SpacingConfig) (DCASpacingStrategy, error) {
	var strategy DCASpacingStrategy

	switch strings.ToLower(strings.TrimSpace(config.Mode)) {
	case ModePercentage, "percent", "fixed", "":
		strategy = NewFixedPercentageSpacing(config.Value)
	case ModeATR, "volatility_adaptive":
		strategy = NewVolatilityAdaptiveSpacing(config.Value)
	default:
		return nil, fmt.Errorf("unknown spacing mode: %s (supported: %s)", config.Mode, strings.Join(GetAvailableModes(), ", "))
	}

	if err := strategy.ValidateConfig(); err != nil {
		return nil, err
	}
	return strategy, nil
}

// GetAvailableModes returns the accepted mode names.
func GetAvailableModes() []string {
	return []string{ModePercentage, ModeATR}
}

// ParseReference normalises a reference criterion, defaulting to initial.
func ParseReference(v string) (Reference, error) {
	switch Reference(strings.ToLower(strings.TrimSpace(v))) {
	case ReferenceInitial, "":
		return ReferenceInitial, nil
	case ReferenceLast:
		return ReferenceLast, nil
	}
	return "", fmt.Errorf("unknown DCA reference: %s (supported: initial, last)", v)
}
