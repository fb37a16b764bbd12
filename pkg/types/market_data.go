package types

import "time"

// OHLCV is one raw candle as delivered by a data source.
type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

// TrendState is the precomputed trend direction attached to a bar.
type TrendState int

const (
	TrendUnknown TrendState = iota
	TrendUp
	TrendDown
)

func (t TrendState) String() string {
	switch t {
	case TrendUp:
		return "UP"
	case TrendDown:
		return "DOWN"
	default:
		return "UNKNOWN"
	}
}

// Opposes reports whether the trend runs against a position on the given side.
func (t TrendState) Opposes(side Side) bool {
	switch side {
	case SideLong:
		return t == TrendDown
	case SideShort:
		return t == TrendUp
	}
	return false
}

// Bar is a candle plus the optional indicators populated by the data layer.
// Nil indicator pointers mean "not available" and are never filled in lazily.
type Bar struct {
	OHLCV
	RSI   *float64
	ATR   *float64
	Trend TrendState
}

// NewBar wraps a raw candle without indicators.
func NewBar(c OHLCV) Bar {
	return Bar{OHLCV: c}
}

// ATRValue returns the bar's ATR and whether it is usable (present and positive).
func (b Bar) ATRValue() (float64, bool) {
	if b.ATR == nil || *b.ATR <= 0 {
		return 0, false
	}
	return *b.ATR, true
}

// RSIValue returns the bar's RSI and whether it is present.
func (b Bar) RSIValue() (float64, bool) {
	if b.RSI == nil {
		return 0, false
	}
	return *b.RSI, true
}

// AdverseExtreme is the worst price of the bar for a position on side.
func (b Bar) AdverseExtreme(side Side) float64 {
	if side == SideShort {
		return b.High
	}
	return b.Low
}

// FavorableExtreme is the best price of the bar for a position on side.
func (b Bar) FavorableExtreme(side Side) float64 {
	if side == SideShort {
		return b.Low
	}
	return b.High
}

// Candles strips indicators from a bar series.
func Candles(bars []Bar) []OHLCV {
	out := make([]OHLCV, len(bars))
	for i, b := range bars {
		out[i] = b.OHLCV
	}
	return out
}
