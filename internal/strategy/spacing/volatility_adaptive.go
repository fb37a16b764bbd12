package spacing

import "fmt"

// VolatilityAdaptiveSpacing spaces levels by a multiple of the current ATR.
// Wider volatility gives wider spacing. Without a usable ATR it degrades to
// FallbackPercent of the reference price for that one computation.
type VolatilityAdaptiveSpacing struct {
	multiplier float64
}

// NewVolatilityAdaptiveSpacing creates an ATR-multiple spacing strategy.
func NewVolatilityAdaptiveSpacing(multiplier float64) *VolatilityAdaptiveSpacing {
	return &VolatilityAdaptiveSpacing{multiplier: multiplier}
}

// Distance implements DCASpacingStrategy.
func (s *VolatilityAdaptiveSpacing) Distance(ref float64, context *MarketContext) (float64, bool) {
	if ref <= 0 {
		return 0, false
	}
	if context == nil || context.ATR <= 0 {
		return ref * FallbackPercent / 100, true
	}
	return context.ATR * s.multiplier, false
}

func (s *VolatilityAdaptiveSpacing) GetName() string { return ModeATR }

func (s *VolatilityAdaptiveSpacing) GetParameters() map[string]interface{} {
	return map[string]interface{}{
		"atr_multiplier":   s.multiplier,
		"fallback_percent": FallbackPercent,
	}
}

func (s *VolatilityAdaptiveSpacing) ValidateConfig() error {
	if s.multiplier <= 0 {
		return fmt.Errorf("ATR multiplier must be positive, got: %.4f", s.multiplier)
	}
	return nil
}
