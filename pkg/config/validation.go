package config

import (
	"fmt"
	"strings"

	enginerrors "github.com/ducminhle1904/dca-ladder-backtest/internal/errors"
)

// SettingsValidator checks a StrategySettings value once, before a run starts.
type SettingsValidator struct{}

// NewSettingsValidator creates a new validator
func NewSettingsValidator() *SettingsValidator {
	return &SettingsValidator{}
}

// Validate implements Validator. The first failure is returned as a
// configuration error carrying the offending field path.
func (v *SettingsValidator) Validate(s *StrategySettings) error {
	if s == nil {
		return enginerrors.NewConfigurationError("", "settings are nil")
	}

	checks := []func(*StrategySettings) error{
		v.validateAccount,
		v.validateEntry,
		v.validateSizing,
		v.validateTakeProfit,
		v.validateStopLoss,
		v.validateTrailing,
		v.validateDCA,
		v.validateHedge,
		v.validateIndicators,
		v.validateExecution,
	}
	for _, check := range checks {
		if err := check(s); err != nil {
			return err
		}
	}
	return nil
}

func fail(field, format string, args ...interface{}) error {
	return enginerrors.NewConfigurationError(field, fmt.Sprintf(format, args...))
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return nil
		}
	}
	return fail(field, "unknown value %q (supported: %s)", value, strings.Join(allowed, ", "))
}

func (v *SettingsValidator) validateAccount(s *StrategySettings) error {
	if s.InitialBalance <= 0 {
		return fail("initial_balance", "initial balance must be positive, got: %.2f", s.InitialBalance)
	}
	if s.FeeRate < 0 || s.FeeRate > MaxFeeRate {
		return fail("fee_rate", "fee rate must be between 0 and %.2f, got: %.6f", MaxFeeRate, s.FeeRate)
	}
	if s.SlippagePercent < 0 || s.SlippagePercent >= MaxSlippagePercent {
		return fail("slippage_percent", "slippage must be in [0, %.0f), got: %.4f", MaxSlippagePercent, s.SlippagePercent)
	}
	if s.Leverage <= 0 || s.Leverage > MaxLeverage {
		return fail("leverage", "leverage must be in (0, %.0f], got: %.2f", MaxLeverage, s.Leverage)
	}
	return nil
}

func (v *SettingsValidator) validateEntry(s *StrategySettings) error {
	if err := oneOf("entry.mode", s.Entry.Mode, EntryLongOnly, EntryShortOnly, EntryBoth); err != nil {
		return err
	}
	if s.Entry.WindowSize <= 0 {
		return fail("entry.window_size", "window size must be positive, got: %d", s.Entry.WindowSize)
	}
	if err := oneOf("signal.name", s.Signal.Name, "rsi", "trend", "always_long", "always_short"); err != nil {
		return err
	}
	if strings.EqualFold(s.Signal.Name, "rsi") {
		if s.Signal.RSIOversold <= 0 || s.Signal.RSIOverbought >= 100 || s.Signal.RSIOversold >= s.Signal.RSIOverbought {
			return fail("signal.rsi_oversold", "RSI thresholds must satisfy 0 < oversold < overbought < 100, got: %.1f/%.1f",
				s.Signal.RSIOversold, s.Signal.RSIOverbought)
		}
	}
	return nil
}

func (v *SettingsValidator) validateSizing(s *StrategySettings) error {
	if err := oneOf("sizing.mode", s.Sizing.Mode, SizingQuantity, SizingAmount, SizingBalancePercent); err != nil {
		return err
	}
	if s.Sizing.Value <= 0 {
		return fail("sizing.value", "sizing value must be positive, got: %.4f", s.Sizing.Value)
	}
	if strings.EqualFold(s.Sizing.Mode, SizingBalancePercent) && s.Sizing.Value > 100 {
		return fail("sizing.value", "balance percent must be at most 100, got: %.2f", s.Sizing.Value)
	}
	if s.Sizing.DCAMultiplier <= 0 {
		return fail("sizing.dca_multiplier", "DCA multiplier must be positive, got: %.4f", s.Sizing.DCAMultiplier)
	}
	return nil
}

func (v *SettingsValidator) validateTakeProfit(s *StrategySettings) error {
	levels := s.TakeProfit.Levels
	if len(levels) > MaxTPLevels {
		return fail("take_profit.levels", "at most %d take-profit levels are supported, got: %d", MaxTPLevels, len(levels))
	}
	prev := 0.0
	for i, l := range levels {
		field := fmt.Sprintf("take_profit.levels[%d]", i)
		if l.Percent <= 0 {
			return fail(field+".percent", "take-profit percent must be positive, got: %.4f", l.Percent)
		}
		if l.Percent <= prev {
			return fail(field+".percent", "take-profit levels must be strictly ascending, got: %.4f after %.4f", l.Percent, prev)
		}
		if l.Ratio <= 0 || l.Ratio > 1 {
			return fail(field+".ratio", "take-profit ratio must be in (0, 1], got: %.4f", l.Ratio)
		}
		prev = l.Percent
	}
	if total := s.TotalTPRatio(); total > 1+RatioTolerance && !s.TrailingStop.Enabled {
		return fail("take_profit.levels", "take-profit ratios sum to %.2f%% which exceeds 100%% without a trailing stop", total*100)
	}
	return nil
}

func (v *SettingsValidator) validateStopLoss(s *StrategySettings) error {
	if err := oneOf("stop_loss.mode", s.StopLoss.Mode, StopLossNone, StopLossPercent, StopLossATR); err != nil {
		return err
	}
	switch strings.ToLower(s.StopLoss.Mode) {
	case StopLossPercent:
		if s.StopLoss.Value <= 0 || s.StopLoss.Value >= 100 {
			return fail("stop_loss.value", "stop-loss percent must be in (0, 100), got: %.4f", s.StopLoss.Value)
		}
	case StopLossATR:
		if s.StopLoss.Value <= 0 {
			return fail("stop_loss.value", "stop-loss ATR multiple must be positive, got: %.4f", s.StopLoss.Value)
		}
	}
	return nil
}

func (v *SettingsValidator) validateTrailing(s *StrategySettings) error {
	t := s.TrailingStop
	if !t.Enabled {
		return nil
	}
	if t.ActivationLevel < 1 || t.ActivationLevel > len(s.TakeProfit.Levels) {
		return fail("trailing_stop.activation_level", "activation level must be between 1 and the number of take-profit levels (%d), got: %d",
			len(s.TakeProfit.Levels), t.ActivationLevel)
	}
	if err := oneOf("trailing_stop.offset_mode", t.OffsetMode, "percent", "ladder_spacing"); err != nil {
		return err
	}
	if strings.EqualFold(t.OffsetMode, "ladder_spacing") && len(s.TakeProfit.Levels) < MaxTPLevels {
		return fail("trailing_stop.offset_mode", "ladder_spacing needs %d take-profit levels, got: %d", MaxTPLevels, len(s.TakeProfit.Levels))
	}
	if t.Value < 0 {
		return fail("trailing_stop.value", "trailing offset must not be negative, got: %.4f", t.Value)
	}
	return nil
}

func (v *SettingsValidator) validateDCA(s *StrategySettings) error {
	d := s.DCA
	if d.MaxCount < 0 {
		return fail("dca.max_count", "max re-entries must not be negative, got: %d", d.MaxCount)
	}
	if d.MaxCount == 0 {
		return nil
	}
	if err := oneOf("dca.mode", d.Mode, "percentage", "atr"); err != nil {
		return err
	}
	if d.Value <= 0 {
		return fail("dca.value", "DCA offset must be positive, got: %.4f", d.Value)
	}
	if strings.EqualFold(d.Mode, "percentage") && d.Value >= 100 {
		return fail("dca.value", "DCA percentage must be below 100, got: %.4f", d.Value)
	}
	return oneOf("dca.reference", d.Reference, "initial", "last")
}

func (v *SettingsValidator) validateHedge(s *StrategySettings) error {
	h := s.Hedge
	if !h.Enabled {
		return nil
	}
	if h.Trigger < 1 {
		return fail("hedge.trigger", "hedge trigger must be at least 1, got: %d", h.Trigger)
	}
	if h.Trigger >= s.DCA.MaxCount {
		return fail("hedge.trigger", "hedge trigger (%d) must be below dca.max_count (%d)", h.Trigger, s.DCA.MaxCount)
	}
	if err := oneOf("hedge.size_mode", h.SizeMode, "percent_of_main", "fixed"); err != nil {
		return err
	}
	if h.SizeValue <= 0 {
		return fail("hedge.size_value", "hedge size must be positive, got: %.4f", h.SizeValue)
	}
	if err := oneOf("hedge.tp_mode", h.TPMode, "disabled", "last_dca", "main_stop", "percent"); err != nil {
		return err
	}
	if strings.EqualFold(h.TPMode, "percent") && h.TPValue <= 0 {
		return fail("hedge.tp_value", "hedge take-profit percent must be positive, got: %.4f", h.TPValue)
	}
	if strings.EqualFold(h.TPMode, "main_stop") && strings.EqualFold(s.StopLoss.Mode, StopLossNone) {
		return fail("hedge.tp_mode", "main_stop needs a main stop-loss")
	}
	if err := oneOf("hedge.sl_mode", h.SLMode, "disabled", "main_tp", "percent"); err != nil {
		return err
	}
	switch strings.ToLower(h.SLMode) {
	case "main_tp":
		n := int(h.SLValue)
		if float64(n) != h.SLValue || n < 1 || n > len(s.TakeProfit.Levels) {
			return fail("hedge.sl_value", "main_tp level must be between 1 and %d, got: %v", len(s.TakeProfit.Levels), h.SLValue)
		}
	case "percent":
		if h.SLValue <= 0 {
			return fail("hedge.sl_value", "hedge stop percent must be positive, got: %.4f", h.SLValue)
		}
	}
	if h.PyramidingLimit < 0 {
		return fail("hedge.pyramiding_limit", "pyramiding limit must not be negative, got: %d", h.PyramidingLimit)
	}
	return nil
}

func (v *SettingsValidator) validateIndicators(s *StrategySettings) error {
	ind := s.Indicators
	periods := map[string]int{
		"indicators.atr_period":        ind.ATRPeriod,
		"indicators.rsi_period":        ind.RSIPeriod,
		"indicators.supertrend_period": ind.SuperTrendPeriod,
	}
	for _, field := range []string{"indicators.atr_period", "indicators.rsi_period", "indicators.supertrend_period"} {
		if periods[field] < MinIndicatorPeriod {
			return fail(field, "period must be at least %d, got: %d", MinIndicatorPeriod, periods[field])
		}
	}
	if ind.SuperTrendMultiplier <= 0 {
		return fail("indicators.supertrend_multiplier", "multiplier must be positive, got: %.4f", ind.SuperTrendMultiplier)
	}
	return nil
}

func (v *SettingsValidator) validateExecution(s *StrategySettings) error {
	e := s.Execution
	if err := oneOf("execution.exit_priority", e.ExitPriority, ExitPriorityStopFirst, ExitPriorityTakeProfitFirst); err != nil {
		return err
	}
	if e.MinQuantity < 0 {
		return fail("execution.min_quantity", "minimum quantity must not be negative, got: %.8f", e.MinQuantity)
	}
	if e.QtyStep < 0 {
		return fail("execution.qty_step", "quantity step must not be negative, got: %.8f", e.QtyStep)
	}
	return nil
}
