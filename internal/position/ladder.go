package position

import "fmt"

// SetLadder installs the take-profit ladder. At most three rungs.
func (p *Position) SetLadder(rungs []Rung) error {
	if len(rungs) > MaxRungs {
		return fmt.Errorf("ladder has %d rungs, max %d: %w", len(rungs), MaxRungs, ErrInvalidEntry)
	}
	p.ladder = make([]Rung, len(rungs))
	copy(p.ladder, rungs)
	return nil
}

// MaxRungs is the ladder depth.
const MaxRungs = 3

// RepriceLadder moves unfired rungs to new prices; fired rungs keep theirs.
func (p *Position) RepriceLadder(prices []float64) {
	for i := range p.ladder {
		if i >= len(prices) {
			return
		}
		if !p.ladder[i].Fired {
			p.ladder[i].Price = prices[i]
		}
	}
}

// Ladder returns a copy of the ladder.
func (p *Position) Ladder() []Rung {
	out := make([]Rung, len(p.ladder))
	copy(out, p.ladder)
	return out
}

// RungPrice returns the price of rung i (0-based).
func (p *Position) RungPrice(i int) (float64, bool) {
	if i < 0 || i >= len(p.ladder) {
		return 0, false
	}
	return p.ladder[i].Price, true
}

// SetStopPrice sets the protective stop.
func (p *Position) SetStopPrice(price float64) {
	if price <= 0 {
		p.stopPrice, p.hasStop = 0, false
		return
	}
	p.stopPrice, p.hasStop = price, true
}

// StopPrice returns the stop and whether one is set.
func (p *Position) StopPrice() (float64, bool) { return p.stopPrice, p.hasStop }

// SetDCAPlan installs a freshly computed re-entry ladder as both the plan and the queue.
func (p *Position) SetDCAPlan(levels []float64) {
	p.dcaPlan = append([]float64(nil), levels...)
	p.dcaQueue = append([]float64(nil), levels...)
}

// RebuildDCAQueue replaces the pending levels, keeping the consumed part of the plan.
func (p *Position) RebuildDCAQueue(levels []float64) {
	consumed := len(p.dcaPlan) - len(p.dcaQueue)
	if consumed < 0 {
		consumed = 0
	}
	p.dcaPlan = append(append([]float64(nil), p.dcaPlan[:consumed]...), levels...)
	p.dcaQueue = append([]float64(nil), levels...)
}

// NextDCALevel peeks at the front of the queue.
func (p *Position) NextDCALevel() (float64, bool) {
	if len(p.dcaQueue) == 0 {
		return 0, false
	}
	return p.dcaQueue[0], true
}

// PopDCALevel consumes the front of the queue.
func (p *Position) PopDCALevel() (float64, bool) {
	lvl, ok := p.NextDCALevel()
	if ok {
		p.dcaQueue = p.dcaQueue[1:]
	}
	return lvl, ok
}

// PendingDCALevels returns a copy of the unconsumed queue.
func (p *Position) PendingDCALevels() []float64 {
	return append([]float64(nil), p.dcaQueue...)
}

// LastDCALevel is the deepest level of the plan.
func (p *Position) LastDCALevel() (float64, bool) {
	if len(p.dcaPlan) == 0 {
		return 0, false
	}
	return p.dcaPlan[len(p.dcaPlan)-1], true
}

// ActivateTrailing attaches a trailing stop. Only the first activation counts.
func (p *Position) ActivateTrailing(t *TrailingStop) bool {
	if p.trailing != nil || t == nil || p.state != StateOpen {
		return false
	}
	p.trailing = t
	return true
}

// Trailing returns the attached trailing stop, or nil.
func (p *Position) Trailing() *TrailingStop { return p.trailing }
