package strategy

import (
	"fmt"

	"github.com/ducminhle1904/dca-ladder-backtest/pkg/types"
)

// SignalGenerator decides, once per bar while flat, whether to open a position.
// Implementations must be pure functions of the window so that independent
// runs never share state.
type SignalGenerator interface {
	// Evaluate inspects the bar window ending at the current bar
	Evaluate(window []types.Bar) (Signal, error)

	// Name returns the name of the generator
	Name() string
}

// SignalAction represents the entry direction a generator asks for
type SignalAction int

const (
	ActionNone SignalAction = iota
	ActionLong
	ActionShort
)

func (a SignalAction) String() string {
	switch a {
	case ActionNone:
		return "NONE"
	case ActionLong:
		return "LONG"
	case ActionShort:
		return "SHORT"
	default:
		return "UNKNOWN"
	}
}

// Signal represents one entry decision
type Signal struct {
	Action SignalAction
	Reason string
}

// None is the empty decision.
func None(reason string) Signal { return Signal{Action: ActionNone, Reason: reason} }

// Long asks for a long entry.
func Long(reason string) Signal { return Signal{Action: ActionLong, Reason: reason} }

// Short asks for a short entry.
func Short(reason string) Signal { return Signal{Action: ActionShort, Reason: reason} }

// Side maps the action to a position side; ok is false for ActionNone.
func (s Signal) Side() (types.Side, bool) {
	switch s.Action {
	case ActionLong:
		return types.SideLong, true
	case ActionShort:
		return types.SideShort, true
	default:
		return types.SideLong, false
	}
}

func (s Signal) String() string {
	if s.Reason == "" {
		return s.Action.String()
	}
	return fmt.Sprintf("%s (%s)", s.Action, s.Reason)
}

func lastBar(window []types.Bar) (types.Bar, bool) {
	if len(window) == 0 {
		return types.Bar{}, false
	}
	return window[len(window)-1], true
}
