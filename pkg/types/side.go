package types

import (
	"fmt"
	"strings"
)

// Side is the direction of an exposure.
type Side int

const (
	SideLong Side = iota
	SideShort
)

func (s Side) String() string {
	if s == SideShort {
		return "SHORT"
	}
	return "LONG"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideShort {
		return SideLong
	}
	return SideShort
}

// Sign is +1 for long and -1 for short, used in P&L math.
func (s Side) Sign() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// ParseSide accepts "long"/"short" in any case.
func ParseSide(v string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "long", "buy":
		return SideLong, nil
	case "short", "sell":
		return SideShort, nil
	}
	return SideLong, fmt.Errorf("unknown side: %q", v)
}
