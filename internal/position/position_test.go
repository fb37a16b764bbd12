package position

import (
	"errors"
	"testing"
	"time"

	"github.com/ducminhle1904/dca-ladder-backtest/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(h int) time.Time { return t0.Add(time.Duration(h) * time.Hour) }

func openLong(t *testing.T, price, qty float64) *Position {
	t.Helper()
	p := New(Options{})
	require.NoError(t, p.Open(types.SideLong, price, qty, price*qty, at(0), EntrySignal))
	return p
}

func TestEntrylessAccessors(t *testing.T) {
	p := New(Options{})

	assert.Equal(t, StateFlat, p.State())
	assert.Equal(t, 0.0, p.AveragePrice())
	assert.Equal(t, 0.0, p.RemainingQuantity())
	assert.Equal(t, 0.0, p.UnrealizedPnL(100))
	assert.Equal(t, 0.0, p.OpenPnL(100))
	assert.Equal(t, 0.0, p.TotalInvestment())
	assert.Equal(t, 0, p.DCACount())
	assert.Empty(t, p.Entries())
	_, ok := p.LastEntry()
	assert.False(t, ok)
}

func TestOpenValidation(t *testing.T) {
	tests := []struct {
		name  string
		price float64
		qty   float64
	}{
		{"zero price", 0, 1},
		{"negative price", -1, 1},
		{"zero quantity", 100, 0},
		{"negative quantity", 100, -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(Options{})
			err := p.Open(types.SideLong, tt.price, tt.qty, 100, at(0), EntrySignal)
			assert.ErrorIs(t, err, ErrInvalidEntry)
			assert.Equal(t, StateFlat, p.State())
		})
	}
}

func TestStateTransitions(t *testing.T) {
	t.Run("add entry on flat", func(t *testing.T) {
		p := New(Options{})
		err := p.AddEntry(100, 1, 100, at(0), EntryDCA)
		assert.ErrorIs(t, err, ErrNoOpenPosition)
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
	})

	t.Run("open twice", func(t *testing.T) {
		p := openLong(t, 100, 1)
		err := p.Open(types.SideLong, 100, 1, 100, at(1), EntrySignal)
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
	})

	t.Run("close closed", func(t *testing.T) {
		p := openLong(t, 100, 1)
		_, err := p.Close(101, at(1), ExitStopLoss)
		require.NoError(t, err)

		_, err = p.Close(101, at(2), ExitStopLoss)
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
		assert.Equal(t, StateClosed, p.State())
	})

	t.Run("close flat", func(t *testing.T) {
		_, err := New(Options{}).Close(100, at(0), ExitStopLoss)
		assert.ErrorIs(t, err, ErrNoOpenPosition)
	})

	t.Run("add entry after close", func(t *testing.T) {
		p := openLong(t, 100, 1)
		_, err := p.Close(99, at(1), ExitStopLoss)
		require.NoError(t, err)
		assert.ErrorIs(t, p.AddEntry(98, 1, 98, at(2), EntryDCA), ErrInvalidStateTransition)
	})

	t.Run("refire rung", func(t *testing.T) {
		p := openLong(t, 100, 10)
		require.NoError(t, p.SetLadder([]Rung{{Price: 101, Ratio: 0.3}, {Price: 102, Ratio: 0.3}}))

		_, err := p.PartialExit(0, 101, at(1))
		require.NoError(t, err)
		_, err = p.PartialExit(0, 101, at(2))
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
		assert.InDelta(t, 7.0, p.RemainingQuantity(), 1e-9)
	})

	t.Run("rung out of range", func(t *testing.T) {
		p := openLong(t, 100, 10)
		_, err := p.PartialExit(2, 101, at(1))
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
	})
}

func TestAveragePriceAndDCA(t *testing.T) {
	p := New(Options{})
	require.NoError(t, p.Open(types.SideLong, 100, 10, 1000, at(0), EntrySignal))
	require.NoError(t, p.AddEntry(97, 10, 970, at(1), EntryDCA))

	assert.InDelta(t, 98.5, p.AveragePrice(), 1e-9)
	assert.Equal(t, 1, p.DCACount())
	assert.InDelta(t, 1970.0, p.TotalInvestment(), 1e-9)
	assert.InDelta(t, 20.0, p.RemainingQuantity(), 1e-9)

	last, ok := p.LastEntry()
	require.True(t, ok)
	assert.Equal(t, 1, last.Index)
	assert.Equal(t, EntryDCA, last.Reason)
}

func TestAveragePriceOrderIndependent(t *testing.T) {
	fills := []struct{ price, qty float64 }{{100, 1}, {95, 2}, {90, 4}, {85, 0.5}}

	forward := New(Options{})
	require.NoError(t, forward.Open(types.SideLong, fills[0].price, fills[0].qty, 1, at(0), EntrySignal))
	for _, f := range fills[1:] {
		require.NoError(t, forward.AddEntry(f.price, f.qty, 1, at(1), EntryDCA))
	}

	backward := New(Options{})
	last := fills[len(fills)-1]
	require.NoError(t, backward.Open(types.SideLong, last.price, last.qty, 1, at(0), EntrySignal))
	for i := len(fills) - 2; i >= 0; i-- {
		require.NoError(t, backward.AddEntry(fills[i].price, fills[i].qty, 1, at(1), EntryDCA))
	}

	assert.InDelta(t, forward.AveragePrice(), backward.AveragePrice(), 1e-9)
	assert.InDelta(t, (100*1+95*2+90*4+85*0.5)/7.5, forward.AveragePrice(), 1e-9)
}

func TestQuantityConservation(t *testing.T) {
	p := openLong(t, 100, 10)
	require.NoError(t, p.SetLadder([]Rung{
		{Price: 102, Ratio: 0.25},
		{Price: 104, Ratio: 0.25},
		{Price: 106, Ratio: 0.25},
	}))

	check := func() {
		entered := p.TotalQuantity()
		assert.InDelta(t, entered, p.RemainingQuantity()+p.ExitedQuantity(), 1e-9)
	}

	check()
	_, err := p.PartialExit(0, 102, at(1))
	require.NoError(t, err)
	check()

	require.NoError(t, p.AddEntry(95, 10, 950, at(2), EntryDCA))
	check()

	_, err = p.PartialExit(1, 104, at(3))
	require.NoError(t, err)
	check()
	// ratios apply to the total entered quantity, 20 after the re-entry
	assert.InDelta(t, 20-2.5-5, p.RemainingQuantity(), 1e-9)

	_, err = p.PartialExit(2, 106, at(4))
	require.NoError(t, err)
	check()

	_, err = p.Close(101, at(5), ExitTrailingStop)
	require.NoError(t, err)
	check()
	assert.Equal(t, 0.0, p.RemainingQuantity())
}

func TestSingleRungExitRealisesFullMove(t *testing.T) {
	p := openLong(t, 100, 10)
	require.NoError(t, p.SetLadder([]Rung{{Price: 104, Ratio: 1}}))

	pnl, err := p.PartialExit(0, 104, at(1))
	require.NoError(t, err)
	assert.InDelta(t, 40.0, pnl, 1e-9)
	assert.Equal(t, 0.0, p.RemainingQuantity())

	trade, err := p.Close(104, at(1), ExitTakeProfit)
	require.NoError(t, err)
	assert.Equal(t, 104.0, trade.ExitPrice)
	assert.InDelta(t, 40.0, trade.GrossPnL, 1e-9)
	assert.InDelta(t, 40.0, trade.PnL, 1e-9)
	assert.InDelta(t, 4.0, trade.PnLPercent, 1e-9)
	assert.Equal(t, 0, trade.DCACount)
	assert.Len(t, trade.Exits, 1)
}

func TestPartialExitLeavesRemainder(t *testing.T) {
	p := openLong(t, 100, 10)
	require.NoError(t, p.SetLadder([]Rung{{Price: 101, Ratio: 0.3}, {Price: 102, Ratio: 0.3}}))

	_, err := p.PartialExit(0, 101, at(1))
	require.NoError(t, err)
	_, err = p.PartialExit(1, 102, at(2))
	require.NoError(t, err)

	assert.InDelta(t, 4.0, p.RemainingQuantity(), 1e-9)
	assert.True(t, p.IsOpen())
}

func TestDustSweep(t *testing.T) {
	p := New(Options{MinQuantity: 0.05, QuantityStep: 0.01})
	require.NoError(t, p.Open(types.SideLong, 100, 1.33, 133, at(0), EntrySignal))
	require.NoError(t, p.SetLadder([]Rung{
		{Price: 101, Ratio: 0.34},
		{Price: 102, Ratio: 0.33},
		{Price: 103, Ratio: 0.33},
	}))

	_, err := p.PartialExit(0, 101, at(1))
	require.NoError(t, err)
	assert.InDelta(t, 0.88, p.RemainingQuantity(), 1e-9)

	_, err = p.PartialExit(1, 102, at(2))
	require.NoError(t, err)
	assert.InDelta(t, 0.45, p.RemainingQuantity(), 1e-9)

	// 0.43 after flooring would leave 0.02 behind; it is swept into this exit
	_, err = p.PartialExit(2, 103, at(3))
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.RemainingQuantity())
	exits := p.Exits()
	assert.InDelta(t, 0.45, exits[2].Quantity, 1e-9)
}

func TestDustNotSweptBelowFullRatio(t *testing.T) {
	p := New(Options{MinQuantity: 5})
	require.NoError(t, p.Open(types.SideLong, 100, 10, 1000, at(0), EntrySignal))
	require.NoError(t, p.SetLadder([]Rung{{Price: 101, Ratio: 0.6}}))

	_, err := p.PartialExit(0, 101, at(1))
	require.NoError(t, err)
	assert.InDelta(t, 4.0, p.RemainingQuantity(), 1e-9, "remainder below 100% ratio stays for the trailing stop")
}

func TestQuantityStepRounding(t *testing.T) {
	p := New(Options{QuantityStep: 0.1})
	require.NoError(t, p.Open(types.SideLong, 100, 1.05, 105, at(0), EntrySignal))
	require.NoError(t, p.SetLadder([]Rung{{Price: 101, Ratio: 0.5}, {Price: 102, Ratio: 0.5}}))

	_, err := p.PartialExit(0, 101, at(1))
	require.NoError(t, err)
	assert.InDelta(t, 0.55, p.RemainingQuantity(), 1e-9)

	_, err = p.PartialExit(1, 102, at(2))
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.RemainingQuantity(), "remainder goes to the last rung")
}

func TestShortPnL(t *testing.T) {
	p := New(Options{})
	require.NoError(t, p.Open(types.SideShort, 100, 2, 200, at(0), EntrySignal))

	assert.InDelta(t, 10.0, p.UnrealizedPnL(95), 1e-9)
	assert.InDelta(t, -4.0, p.UnrealizedPnL(102), 1e-9)

	trade, err := p.Close(90, at(1), ExitTakeProfit)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, trade.PnL, 1e-9)
	assert.Equal(t, types.SideShort, trade.Side)
}

func TestFeesReduceNetPnL(t *testing.T) {
	p := New(Options{FeeRate: 0.001})
	require.NoError(t, p.Open(types.SideLong, 100, 10, 1000, at(0), EntrySignal))

	trade, err := p.Close(110, at(1), ExitTakeProfit)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, trade.GrossPnL, 1e-9)
	assert.InDelta(t, 1.0+1.1, trade.Fees, 1e-9)
	assert.InDelta(t, 100-2.1, trade.PnL, 1e-9)
}

func TestOpenPnLMatchesTradePnL(t *testing.T) {
	p := New(Options{FeeRate: 0.0005})
	require.NoError(t, p.Open(types.SideLong, 100, 10, 1000, at(0), EntrySignal))
	require.NoError(t, p.SetLadder([]Rung{{Price: 110, Ratio: 0.5}}))
	_, err := p.PartialExit(0, 110, at(1))
	require.NoError(t, err)
	require.NoError(t, p.AddEntry(80, 5, 400, at(2), EntryDCA))

	mark := p.OpenPnL(95)
	trade, err := p.Close(95, at(3), ExitStopLoss)
	require.NoError(t, err)

	// closing fee is part of the trade but not of the mark
	closingFee := 95 * 10 * 0.0005
	assert.InDelta(t, mark-closingFee, trade.PnL, 1e-9)
	assert.True(t, errors.Is(transitionError("x", StateClosed), ErrInvalidStateTransition))
}

func TestDCAQueue(t *testing.T) {
	p := openLong(t, 100, 1)
	p.SetDCAPlan([]float64{97, 94, 91})

	lvl, ok := p.NextDCALevel()
	require.True(t, ok)
	assert.Equal(t, 97.0, lvl)

	_, _ = p.PopDCALevel()
	p.RebuildDCAQueue([]float64{93, 90})
	assert.Equal(t, []float64{93, 90}, p.PendingDCALevels())

	deepest, ok := p.LastDCALevel()
	require.True(t, ok)
	assert.Equal(t, 90.0, deepest)

	_, _ = p.PopDCALevel()
	_, _ = p.PopDCALevel()
	_, ok = p.PopDCALevel()
	assert.False(t, ok)
}

func TestRepriceLadderKeepsFiredRungs(t *testing.T) {
	p := openLong(t, 100, 10)
	require.NoError(t, p.SetLadder([]Rung{{Price: 101, Ratio: 0.3}, {Price: 102, Ratio: 0.3}}))
	_, err := p.PartialExit(0, 101, at(1))
	require.NoError(t, err)

	p.RepriceLadder([]float64{99, 100})
	ladder := p.Ladder()
	assert.Equal(t, 101.0, ladder[0].Price)
	assert.Equal(t, 100.0, ladder[1].Price)

	assert.Error(t, p.SetLadder(make([]Rung, 4)))
}
