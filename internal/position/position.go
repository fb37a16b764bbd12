// Package position implements the single-side position lifecycle used by the
// backtest engine: entries and re-entries, the take-profit ladder, an optional
// stop, the trailing-stop sub-machine, and the final close into a Trade.
package position

import (
	"fmt"
	"math"
	"time"

	"github.com/ducminhle1904/dca-ladder-backtest/internal/numeric"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/types"
)

// Options are the execution parameters a position needs for its own math.
type Options struct {
	FeeRate      float64 // fraction of notional charged on every fill
	MinQuantity  float64 // minimum contract size; smaller residuals count as dust
	QuantityStep float64 // ladder exit quantities are floored to this step
}

// Position tracks one side of exposure. It is not safe for concurrent use;
// a backtest run owns its positions exclusively.
type Position struct {
	opts  Options
	state State
	side  types.Side

	entries   []Entry
	exits     []Exit
	exitedQty float64

	ladder   []Rung
	dcaPlan  []float64
	dcaQueue []float64

	stopPrice float64
	hasStop   bool

	trailing *TrailingStop
}

// New returns a FLAT position.
func New(opts Options) *Position {
	return &Position{opts: opts, state: StateFlat}
}

// Open records the initial fill. FLAT -> OPEN.
func (p *Position) Open(side types.Side, price, qty, investment float64, ts time.Time, reason EntryReason) error {
	if p.state != StateFlat {
		return transitionError("open", p.state)
	}
	if price <= 0 || qty <= 0 {
		return fmt.Errorf("open at %.8f x %.8f: %w", price, qty, ErrInvalidEntry)
	}

	p.side = side
	p.state = StateOpen
	p.entries = append(p.entries, Entry{
		Price:      price,
		Quantity:   qty,
		Investment: investment,
		Fee:        price * qty * p.opts.FeeRate,
		Timestamp:  ts,
		Reason:     reason,
		Index:      0,
	})
	return nil
}

// AddEntry appends a re-entry to an OPEN position.
func (p *Position) AddEntry(price, qty, investment float64, ts time.Time, reason EntryReason) error {
	if p.state != StateOpen {
		return transitionError("add entry", p.state)
	}
	if price <= 0 || qty <= 0 {
		return fmt.Errorf("add entry at %.8f x %.8f: %w", price, qty, ErrInvalidEntry)
	}

	p.entries = append(p.entries, Entry{
		Price:      price,
		Quantity:   qty,
		Investment: investment,
		Fee:        price * qty * p.opts.FeeRate,
		Timestamp:  ts,
		Reason:     reason,
		Index:      len(p.entries),
	})
	return nil
}

// PartialExit fires ladder rung rungIndex at exitPrice and returns the gross
// P&L of the exited quantity. The quantity is the rung ratio of the total
// entered quantity, capped at what remains.
func (p *Position) PartialExit(rungIndex int, exitPrice float64, ts time.Time) (float64, error) {
	if p.state != StateOpen {
		return 0, transitionError("partial exit", p.state)
	}
	if rungIndex < 0 || rungIndex >= len(p.ladder) {
		return 0, fmt.Errorf("partial exit rung %d of %d: %w", rungIndex, len(p.ladder), ErrInvalidStateTransition)
	}
	rung := &p.ladder[rungIndex]
	if rung.Fired {
		return 0, fmt.Errorf("rung %d already fired: %w", rungIndex, ErrInvalidStateTransition)
	}
	remaining := p.RemainingQuantity()
	if remaining <= 0 {
		return 0, fmt.Errorf("partial exit rung %d with nothing remaining: %w", rungIndex, ErrInvalidStateTransition)
	}
	if exitPrice <= 0 {
		return 0, fmt.Errorf("partial exit at %.8f: %w", exitPrice, ErrInvalidEntry)
	}

	qty := p.TotalQuantity() * rung.Ratio
	if p.opts.QuantityStep > 0 {
		qty = numeric.RoundDownToStep(qty, p.opts.QuantityStep)
	}
	if qty > remaining {
		qty = remaining
	}

	residual := remaining - qty
	if residual <= numeric.Tolerance {
		qty = remaining
	} else if p.firedRatio()+rung.Ratio >= 1-numeric.Tolerance && residual < p.dustThreshold() {
		qty = remaining
	}

	rung.Fired = true
	rung.FiredAt = ts

	if qty <= 0 {
		return 0, nil
	}

	pnl := p.side.Sign() * (exitPrice - p.AveragePrice()) * qty
	p.recordExit(Exit{
		Price:     exitPrice,
		Quantity:  qty,
		PnL:       pnl,
		Fee:       exitPrice * qty * p.opts.FeeRate,
		Timestamp: ts,
		Reason:    ExitTakeProfit,
		Rung:      rungIndex,
	})
	return pnl, nil
}

// Close exits all remaining quantity and produces the Trade. OPEN -> CLOSED.
// A position whose ladder already drained it can still be closed; no
// further exit is recorded in that case.
func (p *Position) Close(exitPrice float64, ts time.Time, reason ExitReason) (Trade, error) {
	if p.state != StateOpen {
		return Trade{}, transitionError("close", p.state)
	}

	if remaining := p.RemainingQuantity(); remaining > 0 {
		if exitPrice <= 0 {
			return Trade{}, fmt.Errorf("close at %.8f: %w", exitPrice, ErrInvalidEntry)
		}
		p.recordExit(Exit{
			Price:     exitPrice,
			Quantity:  remaining,
			PnL:       p.side.Sign() * (exitPrice - p.AveragePrice()) * remaining,
			Fee:       exitPrice * remaining * p.opts.FeeRate,
			Timestamp: ts,
			Reason:    reason,
			Rung:      FinalExit,
		})
	}

	p.state = StateClosed
	if p.trailing != nil {
		p.trailing.deactivate()
	}
	return p.buildTrade(exitPrice, ts, reason), nil
}

func (p *Position) buildTrade(exitPrice float64, ts time.Time, reason ExitReason) Trade {
	var exitNotional, exitQty, fees float64
	for _, x := range p.exits {
		exitNotional += x.Price * x.Quantity
		exitQty += x.Quantity
		fees += x.Fee
	}
	for _, e := range p.entries {
		fees += e.Fee
	}

	avg := p.AveragePrice()
	avgExit := 0.0
	if exitQty > 0 {
		avgExit = exitNotional / exitQty
	}
	gross := p.side.Sign() * (avgExit - avg) * exitQty
	net := gross - fees
	investment := p.TotalInvestment()
	pct := 0.0
	if investment > 0 {
		pct = net / investment * 100
	}

	return Trade{
		Side:             p.side,
		Entries:          p.Entries(),
		Exits:            p.Exits(),
		TotalQuantity:    p.TotalQuantity(),
		AveragePrice:     avg,
		ExitPrice:        exitPrice,
		AverageExitPrice: avgExit,
		ExitReason:       reason,
		EntryTime:        p.entries[0].Timestamp,
		ExitTime:         ts,
		TotalInvestment:  investment,
		Fees:             fees,
		GrossPnL:         gross,
		PnL:              net,
		PnLPercent:       pct,
		DCACount:         p.DCACount(),
	}
}

func (p *Position) recordExit(x Exit) {
	p.exits = append(p.exits, x)
	p.exitedQty += x.Quantity
}

func (p *Position) firedRatio() float64 {
	sum := 0.0
	for _, r := range p.ladder {
		if r.Fired {
			sum += r.Ratio
		}
	}
	return sum
}

func (p *Position) dustThreshold() float64 {
	threshold := math.Max(p.opts.MinQuantity, numeric.Tolerance)
	if p.opts.QuantityStep > 0 {
		threshold = math.Max(threshold, p.opts.QuantityStep*float64(len(p.ladder)))
	}
	return threshold
}

// State returns the lifecycle state.
func (p *Position) State() State { return p.state }

// IsOpen is shorthand for State() == StateOpen.
func (p *Position) IsOpen() bool { return p.state == StateOpen }

// Side returns the side of the position. Meaningless while FLAT.
func (p *Position) Side() types.Side { return p.side }

// AveragePrice is Σ(price·qty)/Σqty over all entries, 0 without entries.
func (p *Position) AveragePrice() float64 {
	if len(p.entries) == 0 {
		return 0
	}
	prices := make([]float64, len(p.entries))
	qtys := make([]float64, len(p.entries))
	for i, e := range p.entries {
		prices[i] = e.Price
		qtys[i] = e.Quantity
	}
	return numeric.WeightedAverage(prices, qtys)
}

// TotalQuantity is the sum of all entered quantity.
func (p *Position) TotalQuantity() float64 {
	sum := 0.0
	for _, e := range p.entries {
		sum += e.Quantity
	}
	return sum
}

// ExitedQuantity is the sum of all exited quantity.
func (p *Position) ExitedQuantity() float64 { return p.exitedQty }

// RemainingQuantity is entered minus exited, never negative.
func (p *Position) RemainingQuantity() float64 {
	return numeric.ClampNonNegative(p.TotalQuantity() - p.exitedQty)
}

// TotalInvestment is the sum of entry investments.
func (p *Position) TotalInvestment() float64 {
	sum := 0.0
	for _, e := range p.entries {
		sum += e.Investment
	}
	return sum
}

// DCACount is the number of re-entries.
func (p *Position) DCACount() int {
	if len(p.entries) == 0 {
		return 0
	}
	return len(p.entries) - 1
}

// UnrealizedPnL marks the remaining quantity against price.
func (p *Position) UnrealizedPnL(price float64) float64 {
	remaining := p.RemainingQuantity()
	if remaining <= 0 || price <= 0 {
		return 0
	}
	return p.side.Sign() * (price - p.AveragePrice()) * remaining
}

// OpenPnL is the net result if the remaining quantity were closed at price:
// cash from exits so far plus the marked remainder, minus entry cost and fees.
func (p *Position) OpenPnL(price float64) float64 {
	if len(p.entries) == 0 {
		return 0
	}
	var entryNotional, exitNotional, fees float64
	for _, e := range p.entries {
		entryNotional += e.Price * e.Quantity
		fees += e.Fee
	}
	for _, x := range p.exits {
		exitNotional += x.Price * x.Quantity
		fees += x.Fee
	}
	mark := 0.0
	if price > 0 {
		mark = p.RemainingQuantity() * price
	}
	return p.side.Sign()*(exitNotional+mark-entryNotional) - fees
}

// LastEntry returns the most recent fill.
func (p *Position) LastEntry() (Entry, bool) {
	if len(p.entries) == 0 {
		return Entry{}, false
	}
	return p.entries[len(p.entries)-1], true
}

// Entries returns a copy of the entry history.
func (p *Position) Entries() []Entry {
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Exits returns a copy of the exit history.
func (p *Position) Exits() []Exit {
	out := make([]Exit, len(p.exits))
	copy(out, p.exits)
	return out
}
