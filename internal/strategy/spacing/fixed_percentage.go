package spacing

import "fmt"

// FixedPercentageSpacing places each level a constant percentage away from its reference.
type FixedPercentageSpacing struct {
	percent float64
}

// NewFixedPercentageSpacing creates a percentage spacing strategy.
func NewFixedPercentageSpacing(percent float64) *FixedPercentageSpacing {
	return &FixedPercentageSpacing{percent: percent}
}

// Distance implements DCASpacingStrategy.
func (s *FixedPercentageSpacing) Distance(ref float64, _ *MarketContext) (float64, bool) {
	if ref <= 0 {
		return 0, false
	}
	return ref * s.percent / 100, false
}

func (s *FixedPercentageSpacing) GetName() string { return ModePercentage }

func (s *FixedPercentageSpacing) GetParameters() map[string]interface{} {
	return map[string]interface{}{"percent": s.percent}
}

func (s *FixedPercentageSpacing) ValidateConfig() error {
	if s.percent <= 0 || s.percent >= 100 {
		return fmt.Errorf("percentage spacing must be in (0, 100), got: %.4f", s.percent)
	}
	return nil
}
