package spacing

import (
	"fmt"

	"github.com/ducminhle1904/dca-ladder-backtest/pkg/types"
)

// Level is one computed re-entry trigger.
type Level struct {
	Price    float64
	Fallback bool // ATR was unusable and FallbackPercent was applied
}

// Calculator turns a spacing strategy and a reference criterion into trigger prices.
// It is stateless apart from its configuration.
type Calculator struct {
	strategy  DCASpacingStrategy
	reference Reference
}

// NewCalculator builds a calculator from configuration.
func NewCalculator(config SpacingConfig) (*Calculator, error) {
	strategy, err := CreateSpacingStrategy(config)
	if err != nil {
		return nil, err
	}
	ref, err := ParseReference(string(config.Reference))
	if err != nil {
		return nil, err
	}
	return &Calculator{strategy: strategy, reference: ref}, nil
}

// Reference reports the configured reference criterion.
func (c *Calculator) Reference() Reference { return c.reference }

// Strategy exposes the underlying spacing strategy.
func (c *Calculator) Strategy() DCASpacingStrategy { return c.strategy }

// Next returns the trigger one step away from ref. ok is false when ref is
// not positive or the level would be non-positive.
func (c *Calculator) Next(ref float64, side types.Side, context *MarketContext) (Level, bool) {
	if ref <= 0 {
		return Level{}, false
	}
	distance, fallback := c.strategy.Distance(ref, context)
	if distance <= 0 {
		return Level{}, false
	}
	price := ref - side.Sign()*distance
	if price <= 0 {
		return Level{}, false
	}
	return Level{Price: price, Fallback: fallback}, true
}

// Ladder returns up to n levels. With ReferenceInitial every level is k
// distances from ref; with ReferenceLast each level steps from the previous
// one. Generation stops at the first level that would be non-positive.
func (c *Calculator) Ladder(ref float64, side types.Side, n int, context *MarketContext) []Level {
	if ref <= 0 || n <= 0 {
		return nil
	}

	levels := make([]Level, 0, n)
	switch c.reference {
	case ReferenceLast:
		prev := ref
		for i := 0; i < n; i++ {
			lvl, ok := c.Next(prev, side, context)
			if !ok {
				break
			}
			levels = append(levels, lvl)
			prev = lvl.Price
		}
	default:
		distance, fallback := c.strategy.Distance(ref, context)
		if distance <= 0 {
			return nil
		}
		for k := 1; k <= n; k++ {
			price := ref - side.Sign()*float64(k)*distance
			if price <= 0 {
				break
			}
			levels = append(levels, Level{Price: price, Fallback: fallback})
		}
	}
	return levels
}

func (c *Calculator) String() string {
	return fmt.Sprintf("%s(%v, ref=%s)", c.strategy.GetName(), c.strategy.GetParameters(), c.reference)
}
