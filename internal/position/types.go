package position

import (
	"time"

	"github.com/ducminhle1904/dca-ladder-backtest/pkg/types"
)

// State is the lifecycle state of a Position.
type State int

const (
	StateFlat State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	default:
		return "FLAT"
	}
}

// EntryReason tags why a fill was added.
type EntryReason string

const (
	EntrySignal EntryReason = "SIGNAL"
	EntryDCA    EntryReason = "DCA"
	EntryHedge  EntryReason = "HEDGE"
)

// ExitReason tags why quantity left the position.
type ExitReason string

const (
	ExitTakeProfit      ExitReason = "TAKE_PROFIT"
	ExitStopLoss        ExitReason = "STOP_LOSS"
	ExitTrailingStop    ExitReason = "TRAILING_STOP"
	ExitTrendReversal   ExitReason = "TREND_REVERSAL"
	ExitHedgeTakeProfit ExitReason = "HEDGE_TAKE_PROFIT"
	ExitLinkedClose     ExitReason = "LINKED_CLOSE"
	ExitEndOfData       ExitReason = "END_OF_DATA"
)

// Entry is one fill contributing to the position. Exits never modify it.
type Entry struct {
	Price      float64
	Quantity   float64
	Investment float64
	Fee        float64
	Timestamp  time.Time
	Reason     EntryReason
	Index      int // 0 for the initial entry, n for the n-th re-entry
}

// FinalExit is the Rung value of an Exit produced by Close.
const FinalExit = -1

// Exit is one reduction of the position.
type Exit struct {
	Price     float64
	Quantity  float64
	PnL       float64 // gross, against the average price at exit time
	Fee       float64
	Timestamp time.Time
	Reason    ExitReason
	Rung      int // ladder index, or FinalExit
}

// Rung is one take-profit ladder step. Ratio is a fraction of the total
// entered quantity.
type Rung struct {
	Price   float64
	Ratio   float64
	Fired   bool
	FiredAt time.Time
}

// Trade is the immutable record of a closed position.
type Trade struct {
	ID               int
	Side             types.Side
	Hedge            bool
	Entries          []Entry
	Exits            []Exit
	TotalQuantity    float64
	AveragePrice     float64
	ExitPrice        float64
	AverageExitPrice float64
	ExitReason       ExitReason
	EntryTime        time.Time
	ExitTime         time.Time
	TotalInvestment  float64
	Fees             float64
	GrossPnL         float64
	PnL              float64 // net of fees
	PnLPercent       float64 // PnL relative to TotalInvestment
	DCACount         int
	LinkedTradeID    int // 0 when not linked
}

// Duration is the holding time of the trade.
func (t Trade) Duration() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}

// IsWin reports a positive net result.
func (t Trade) IsWin() bool {
	return t.PnL > 0
}
