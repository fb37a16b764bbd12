package hedge

import (
	"fmt"
	"strings"

	"github.com/ducminhle1904/dca-ladder-backtest/internal/numeric"
	"github.com/ducminhle1904/dca-ladder-backtest/internal/position"
)

// TakeProfitRule derives the hedge take-profit price. Each configured mode is
// one implementation.
type TakeProfitRule interface {
	Name() string
	Price(main, hedge *position.Position) (float64, bool)
}

// StopRule derives the hedge stop price.
type StopRule interface {
	Name() string
	Price(main, hedge *position.Position) (float64, bool)
}

const (
	TakeProfitDisabled = "disabled"
	TakeProfitLastDCA  = "last_dca"
	TakeProfitMainStop = "main_stop"
	TakeProfitPercent  = "percent"

	StopDisabled = "disabled"
	StopMainTP   = "main_tp"
	StopPercent  = "percent"
)

// NewTakeProfitRule maps a configured mode onto its rule.
func NewTakeProfitRule(mode string, value float64) (TakeProfitRule, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case TakeProfitDisabled, "":
		return DisabledTakeProfit{}, nil
	case TakeProfitLastDCA:
		return LastDCATakeProfit{}, nil
	case TakeProfitMainStop:
		return MainStopTakeProfit{}, nil
	case TakeProfitPercent:
		if value <= 0 {
			return nil, fmt.Errorf("hedge take-profit percent must be positive, got: %.4f", value)
		}
		return PercentTakeProfit{Percent: value}, nil
	}
	return nil, fmt.Errorf("unknown hedge take-profit mode: %s (supported: disabled, last_dca, main_stop, percent)", mode)
}

// NewStopRule maps a configured mode onto its rule.
func NewStopRule(mode string, value float64) (StopRule, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case StopDisabled, "":
		return DisabledStop{}, nil
	case StopMainTP:
		n := int(value)
		if float64(n) != value || n < 1 || n > position.MaxRungs {
			return nil, fmt.Errorf("hedge stop main_tp level must be 1..%d, got: %v", position.MaxRungs, value)
		}
		return MainRungStop{Level: n}, nil
	case StopPercent:
		if value <= 0 {
			return nil, fmt.Errorf("hedge stop percent must be positive, got: %.4f", value)
		}
		return PercentStop{Percent: value}, nil
	}
	return nil, fmt.Errorf("unknown hedge stop mode: %s (supported: disabled, main_tp, percent)", mode)
}

// DisabledTakeProfit never yields a price.
type DisabledTakeProfit struct{}

func (DisabledTakeProfit) Name() string { return TakeProfitDisabled }
func (DisabledTakeProfit) Price(_, _ *position.Position) (float64, bool) {
	return 0, false
}

// LastDCATakeProfit targets the deepest planned re-entry level of the main position.
type LastDCATakeProfit struct{}

func (LastDCATakeProfit) Name() string { return TakeProfitLastDCA }
func (LastDCATakeProfit) Price(main, hedge *position.Position) (float64, bool) {
	price, ok := main.LastDCALevel()
	if !ok {
		return 0, false
	}
	return favorableOnly(hedge, price)
}

// MainStopTakeProfit targets the main position's stop price.
type MainStopTakeProfit struct{}

func (MainStopTakeProfit) Name() string { return TakeProfitMainStop }
func (MainStopTakeProfit) Price(main, hedge *position.Position) (float64, bool) {
	price, ok := main.StopPrice()
	if !ok {
		return 0, false
	}
	return favorableOnly(hedge, price)
}

// PercentTakeProfit sits Percent away from the hedge average, in its favour.
type PercentTakeProfit struct{ Percent float64 }

func (PercentTakeProfit) Name() string { return TakeProfitPercent }
func (r PercentTakeProfit) Price(_, hedge *position.Position) (float64, bool) {
	avg := hedge.AveragePrice()
	if avg <= 0 {
		return 0, false
	}
	return numeric.ApplyPercent(avg, r.Percent, hedge.Side().Sign()), true
}

// DisabledStop never yields a price.
type DisabledStop struct{}

func (DisabledStop) Name() string { return StopDisabled }
func (DisabledStop) Price(_, _ *position.Position) (float64, bool) {
	return 0, false
}

// MainRungStop uses the main position's Level-th take-profit price (1-based).
type MainRungStop struct{ Level int }

func (MainRungStop) Name() string { return StopMainTP }
func (r MainRungStop) Price(main, hedge *position.Position) (float64, bool) {
	price, ok := main.RungPrice(r.Level - 1)
	if !ok {
		return 0, false
	}
	return adverseOnly(hedge, price)
}

// PercentStop sits Percent away from the hedge average, against it.
type PercentStop struct{ Percent float64 }

func (PercentStop) Name() string { return StopPercent }
func (r PercentStop) Price(_, hedge *position.Position) (float64, bool) {
	avg := hedge.AveragePrice()
	if avg <= 0 {
		return 0, false
	}
	return numeric.ApplyPercent(avg, r.Percent, -hedge.Side().Sign()), true
}

// favorableOnly rejects a target that is not beyond the hedge average in its favour.
func favorableOnly(hedge *position.Position, price float64) (float64, bool) {
	avg := hedge.AveragePrice()
	if price <= 0 || avg <= 0 || hedge.Side().Sign()*(price-avg) <= 0 {
		return 0, false
	}
	return price, true
}

func adverseOnly(hedge *position.Position, price float64) (float64, bool) {
	avg := hedge.AveragePrice()
	if price <= 0 || avg <= 0 || hedge.Side().Sign()*(price-avg) >= 0 {
		return 0, false
	}
	return price, true
}
