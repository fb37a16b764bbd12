package position

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ducminhle1904/dca-ladder-backtest/pkg/types"
)

// TrailingOffsetMode selects how the trailing distance is fixed at activation.
type TrailingOffsetMode string

const (
	// TrailingOffsetPercent uses activationPrice · value%.
	TrailingOffsetPercent TrailingOffsetMode = "percent"
	// TrailingOffsetLadderSpacing uses |TP3 - TP2| of the position's ladder.
	TrailingOffsetLadderSpacing TrailingOffsetMode = "ladder_spacing"
)

// ParseTrailingOffsetMode normalises a configured offset mode.
func ParseTrailingOffsetMode(v string) (TrailingOffsetMode, error) {
	switch TrailingOffsetMode(strings.ToLower(strings.TrimSpace(v))) {
	case TrailingOffsetPercent, "":
		return TrailingOffsetPercent, nil
	case TrailingOffsetLadderSpacing:
		return TrailingOffsetLadderSpacing, nil
	}
	return "", fmt.Errorf("unknown trailing offset mode: %s (supported: percent, ladder_spacing)", v)
}

// TrailingOffset computes the fixed offset for an activation.
func TrailingOffset(mode TrailingOffsetMode, value, activationPrice float64, ladder []Rung) float64 {
	switch mode {
	case TrailingOffsetLadderSpacing:
		if len(ladder) < 3 {
			return 0
		}
		return math.Abs(ladder[2].Price - ladder[1].Price)
	default:
		if activationPrice <= 0 {
			return 0
		}
		return activationPrice * value / 100
	}
}

// TrailingStop ratchets a stop behind the best price seen since activation.
// The stop never moves against the position.
type TrailingStop struct {
	side           types.Side
	activationRung int
	activatedAt    time.Time
	offset         float64
	extreme        float64
	stop           float64
	armed          bool
	active         bool
}

// NewTrailingStop activates at price on the bar stamped ts. A non-positive
// offset leaves it disarmed until a later bar improves the extreme.
func NewTrailingStop(side types.Side, activationRung int, price, offset float64, ts time.Time) *TrailingStop {
	return &TrailingStop{
		side:           side,
		activationRung: activationRung,
		activatedAt:    ts,
		offset:         offset,
		extreme:        price,
		stop:           price - side.Sign()*offset,
		armed:          offset > 0,
		active:         true,
	}
}

// Update feeds the favourable extreme of a bar. It returns true if the stop moved.
func (t *TrailingStop) Update(price float64, ts time.Time) bool {
	if !t.active || price <= 0 {
		return false
	}
	if t.side.Sign()*(price-t.extreme) <= 0 {
		return false
	}

	t.extreme = price
	if ts.After(t.activatedAt) {
		t.armed = true
	}

	candidate := t.extreme - t.side.Sign()*t.offset
	if t.side.Sign()*(candidate-t.stop) > 0 {
		t.stop = candidate
		return true
	}
	return false
}

// Hit reports whether the adverse extreme of a bar crosses the stop.
func (t *TrailingStop) Hit(adverse float64) bool {
	if !t.active || !t.armed {
		return false
	}
	if t.side == types.SideShort {
		return adverse >= t.stop
	}
	return adverse <= t.stop
}

func (t *TrailingStop) deactivate() { t.active = false }

func (t *TrailingStop) StopPrice() float64 { return t.stop }
func (t *TrailingStop) ExtremePrice() float64 { return t.extreme }
func (t *TrailingStop) Offset() float64 { return t.offset }
func (t *TrailingStop) ActivationRung() int { return t.activationRung }
func (t *TrailingStop) ActivatedAt() time.Time { return t.activatedAt }
func (t *TrailingStop) Armed() bool { return t.armed }
func (t *TrailingStop) Active() bool { return t.active }
