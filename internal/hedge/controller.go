// Package hedge manages the opposite-side position opened once the main
// position has re-entered a configured number of times.
package hedge

import (
	"fmt"
	"strings"
	"time"

	"github.com/ducminhle1904/dca-ladder-backtest/internal/numeric"
	"github.com/ducminhle1904/dca-ladder-backtest/internal/position"
)

// SizeMode selects how the hedge quantity is derived.
type SizeMode string

const (
	SizePercentOfMain SizeMode = "percent_of_main"
	SizeFixed         SizeMode = "fixed"
)

// ParseSizeMode normalises a configured size mode.
func ParseSizeMode(v string) (SizeMode, error) {
	switch SizeMode(strings.ToLower(strings.TrimSpace(v))) {
	case SizePercentOfMain, "":
		return SizePercentOfMain, nil
	case SizeFixed:
		return SizeFixed, nil
	}
	return "", fmt.Errorf("unknown hedge size mode: %s (supported: percent_of_main, fixed)", v)
}

// Config is the resolved hedge configuration.
type Config struct {
	Enabled bool
	Trigger int // main dca_count that opens the hedge

	SizeMode  SizeMode
	SizeValue float64 // percent of main quantity, or quote investment for SizeFixed

	TakeProfit TakeProfitRule
	StopLoss   StopRule

	PyramidingLimit int // max hedge re-entries

	CloseMainOnHedgeTP        bool
	CloseHedgeOnMainTrendExit bool
}

// Controller owns at most one live hedge position.
type Controller struct {
	cfg      Config
	opts     position.Options
	leverage float64

	hedge     *position.Position
	triggered bool
	detached  bool // hedge outlived the main it was opened for

	tpPrice float64
	hasTP   bool
}

// NewController creates a controller. Nil rules are treated as disabled.
func NewController(cfg Config, opts position.Options, leverage float64) *Controller {
	if cfg.TakeProfit == nil {
		cfg.TakeProfit = DisabledTakeProfit{}
	}
	if cfg.StopLoss == nil {
		cfg.StopLoss = DisabledStop{}
	}
	if leverage <= 0 {
		leverage = 1
	}
	return &Controller{cfg: cfg, opts: opts, leverage: leverage}
}

// Config returns the resolved configuration.
func (c *Controller) Config() Config { return c.cfg }

// Enabled reports whether hedging is configured at all.
func (c *Controller) Enabled() bool { return c.cfg.Enabled }

// Position returns the live hedge, or nil.
func (c *Controller) Position() *position.Position { return c.hedge }

// OnMainOpened starts a new main-position lifetime.
func (c *Controller) OnMainOpened() { c.triggered = false }

// OnMainClosed detaches a hedge still open when its main closes. A detached
// hedge keeps its last exits, takes no further entries and is replaced by
// the next main's hedge.
func (c *Controller) OnMainClosed() {
	if c.hedge != nil {
		c.detached = true
	}
}

// Detached reports whether the live hedge belongs to a main that has closed.
func (c *Controller) Detached() bool { return c.hedge != nil && c.detached }

// ShouldTrigger reports whether the main position just reached the trigger count.
// A detached hedge does not block the current main's own hedge.
func (c *Controller) ShouldTrigger(main *position.Position) bool {
	return c.cfg.Enabled && !c.triggered && (c.hedge == nil || c.detached) &&
		main != nil && main.IsOpen() && main.DCACount() == c.cfg.Trigger
}

// Size returns quantity and investment for a hedge fill at price. mainQty is
// the quantity the percentage applies to.
func (c *Controller) Size(mainQty, price float64) (qty, investment float64) {
	switch c.cfg.SizeMode {
	case SizeFixed:
		investment = c.cfg.SizeValue
		qty = numeric.QuantityFromInvestment(investment, price, c.leverage)
	default:
		qty = mainQty * c.cfg.SizeValue / 100
		investment = numeric.InvestmentFromQuantity(qty, price, c.leverage)
	}
	if c.opts.QuantityStep > 0 {
		qty = numeric.RoundDownToStep(qty, c.opts.QuantityStep)
		investment = numeric.InvestmentFromQuantity(qty, price, c.leverage)
	}
	return qty, investment
}

// Open creates the hedge opposite to main at price. The latch is set even if
// sizing fails so the same lifetime never retries.
func (c *Controller) Open(main *position.Position, price float64, ts time.Time) (*position.Position, error) {
	if c.hedge != nil {
		return nil, fmt.Errorf("hedge already live: %w", position.ErrInvalidStateTransition)
	}
	c.triggered = true

	qty, investment := c.Size(main.RemainingQuantity(), price)
	h := position.New(c.opts)
	if err := h.Open(main.Side().Opposite(), price, qty, investment, ts, position.EntryHedge); err != nil {
		return nil, err
	}
	c.hedge = h
	c.Refresh(main)
	return h, nil
}

// AddEntry pyramids the hedge alongside a main re-entry of mainFillQty.
// It returns false without error once the hedge re-entry cap is reached.
func (c *Controller) AddEntry(main *position.Position, mainFillQty, price float64, ts time.Time) (bool, error) {
	if c.hedge == nil || c.detached || !c.hedge.IsOpen() {
		return false, nil
	}
	if c.hedge.DCACount() >= c.cfg.PyramidingLimit {
		return false, nil
	}

	qty, investment := c.Size(mainFillQty, price)
	if err := c.hedge.AddEntry(price, qty, investment, ts, position.EntryHedge); err != nil {
		return false, err
	}
	c.Refresh(main)
	return true, nil
}

// Refresh recomputes the hedge exits from the current main and hedge state.
// Exits of a detached hedge stay frozen.
func (c *Controller) Refresh(main *position.Position) {
	if c.hedge == nil || c.detached {
		return
	}
	c.tpPrice, c.hasTP = c.cfg.TakeProfit.Price(main, c.hedge)
	if stop, ok := c.cfg.StopLoss.Price(main, c.hedge); ok {
		c.hedge.SetStopPrice(stop)
	} else {
		c.hedge.SetStopPrice(0)
	}
}

// TakeProfitPrice returns the current hedge target.
func (c *Controller) TakeProfitPrice() (float64, bool) { return c.tpPrice, c.hasTP }

// StopPrice returns the current hedge stop.
func (c *Controller) StopPrice() (float64, bool) {
	if c.hedge == nil {
		return 0, false
	}
	return c.hedge.StopPrice()
}

// Close closes the live hedge and releases it.
func (c *Controller) Close(price float64, ts time.Time, reason position.ExitReason) (position.Trade, error) {
	if c.hedge == nil {
		return position.Trade{}, fmt.Errorf("close hedge: %w", position.ErrNoOpenPosition)
	}
	trade, err := c.hedge.Close(price, ts, reason)
	if err != nil {
		return position.Trade{}, err
	}
	trade.Hedge = true
	c.hedge = nil
	c.detached = false
	c.hasTP = false
	return trade, nil
}
