package hedge

import (
	"testing"
	"time"

	"github.com/ducminhle1904/dca-ladder-backtest/internal/position"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// mainWithDCA opens a long main at 100x10 and adds n re-entries 3% apart.
func mainWithDCA(t *testing.T, n int) *position.Position {
	t.Helper()
	m := position.New(position.Options{})
	require.NoError(t, m.Open(types.SideLong, 100, 10, 1000, start, position.EntrySignal))
	m.SetDCAPlan([]float64{97, 94, 91, 88})
	require.NoError(t, m.SetLadder([]position.Rung{{Price: 102, Ratio: 0.3}, {Price: 104, Ratio: 0.3}, {Price: 106, Ratio: 0.4}}))
	m.SetStopPrice(85)
	for i := 0; i < n; i++ {
		lvl, ok := m.PopDCALevel()
		require.True(t, ok)
		require.NoError(t, m.AddEntry(lvl, 10, lvl*10, start.Add(time.Duration(i+1)*time.Hour), position.EntryDCA))
	}
	return m
}

func newController(t *testing.T, cfg Config) *Controller {
	t.Helper()
	return NewController(cfg, position.Options{}, 1)
}

func TestShouldTriggerOnce(t *testing.T) {
	c := newController(t, Config{Enabled: true, Trigger: 3, SizeMode: SizePercentOfMain, SizeValue: 50})

	assert.False(t, c.ShouldTrigger(mainWithDCA(t, 2)))

	main := mainWithDCA(t, 3)
	require.True(t, c.ShouldTrigger(main))

	h, err := c.Open(main, 91, start.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, types.SideShort, h.Side())
	assert.InDelta(t, 20.0, h.RemainingQuantity(), 1e-9, "50% of 40")
	assert.False(t, c.ShouldTrigger(main))

	_, err = c.Open(main, 91, start)
	assert.ErrorIs(t, err, position.ErrInvalidStateTransition)

	_, err = c.Close(90, start.Add(4*time.Hour), position.ExitTakeProfit)
	require.NoError(t, err)
	assert.False(t, c.ShouldTrigger(main), "latched for the rest of this main lifetime")

	c.OnMainOpened()
	assert.True(t, c.ShouldTrigger(main))
}

func TestDisabledNeverTriggers(t *testing.T) {
	c := newController(t, Config{Enabled: false, Trigger: 0})
	m := mainWithDCA(t, 0)
	assert.False(t, c.ShouldTrigger(m))
}

func TestFixedSizing(t *testing.T) {
	c := NewController(Config{Enabled: true, SizeMode: SizeFixed, SizeValue: 500}, position.Options{}, 2)
	qty, inv := c.Size(40, 100)
	assert.InDelta(t, 10.0, qty, 1e-9)
	assert.InDelta(t, 500.0, inv, 1e-9)
}

func TestTakeProfitRules(t *testing.T) {
	main := mainWithDCA(t, 3)

	tests := []struct {
		name   string
		mode   string
		value  float64
		want   float64
		wantOK bool
	}{
		{"disabled", TakeProfitDisabled, 0, 0, false},
		{"last dca", TakeProfitLastDCA, 0, 88, true},
		{"main stop", TakeProfitMainStop, 0, 85, true},
		{"percent", TakeProfitPercent, 2, 91 * 0.98, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp, err := NewTakeProfitRule(tt.mode, tt.value)
			require.NoError(t, err)
			c := newController(t, Config{Enabled: true, Trigger: 3, SizeValue: 50, TakeProfit: tp})

			_, err = c.Open(main, 91, start)
			require.NoError(t, err)

			price, ok := c.TakeProfitPrice()
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, price, 1e-9)
		})
	}
}

func TestMainStopTakeProfitUnavailableWithoutStop(t *testing.T) {
	main := mainWithDCA(t, 3)
	main.SetStopPrice(0)

	c := newController(t, Config{Enabled: true, Trigger: 3, SizeValue: 50, TakeProfit: MainStopTakeProfit{}})
	_, err := c.Open(main, 91, start)
	require.NoError(t, err)
	_, ok := c.TakeProfitPrice()
	assert.False(t, ok)
}

func TestStopRules(t *testing.T) {
	main := mainWithDCA(t, 3)

	stop, err := NewStopRule(StopMainTP, 2)
	require.NoError(t, err)
	c := newController(t, Config{Enabled: true, Trigger: 3, SizeValue: 50, StopLoss: stop})
	_, err = c.Open(main, 91, start)
	require.NoError(t, err)
	price, ok := c.StopPrice()
	require.True(t, ok)
	assert.Equal(t, 104.0, price)

	pct, err := NewStopRule(StopPercent, 5)
	require.NoError(t, err)
	c = newController(t, Config{Enabled: true, Trigger: 3, SizeValue: 50, StopLoss: pct})
	_, err = c.Open(main, 100, start)
	require.NoError(t, err)
	price, ok = c.StopPrice()
	require.True(t, ok)
	assert.InDelta(t, 105.0, price, 1e-9)
}

func TestRuleConstructionErrors(t *testing.T) {
	_, err := NewTakeProfitRule("moon", 0)
	assert.Error(t, err)
	_, err = NewTakeProfitRule(TakeProfitPercent, 0)
	assert.Error(t, err)
	_, err = NewStopRule(StopMainTP, 4)
	assert.Error(t, err)
	_, err = NewStopRule(StopMainTP, 1.5)
	assert.Error(t, err)
	_, err = NewStopRule("trailing", 1)
	assert.Error(t, err)
	_, err = ParseSizeMode("kelly")
	assert.Error(t, err)
}

func TestPyramidingLimit(t *testing.T) {
	main := mainWithDCA(t, 3)
	c := newController(t, Config{Enabled: true, Trigger: 3, SizeValue: 50, PyramidingLimit: 1})

	_, err := c.AddEntry(main, 10, 91, start)
	require.NoError(t, err, "no hedge yet is a no-op")

	h, err := c.Open(main, 91, start)
	require.NoError(t, err)

	added, err := c.AddEntry(main, 10, 88, start.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, 1, h.DCACount())
	assert.InDelta(t, 25.0, h.RemainingQuantity(), 1e-9)

	added, err = c.AddEntry(main, 10, 85, start.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, added, "cap reached, entry suppressed")
	assert.Equal(t, 1, h.DCACount())
}

func TestCloseMarksHedgeTrade(t *testing.T) {
	main := mainWithDCA(t, 3)
	c := newController(t, Config{Enabled: true, Trigger: 3, SizeValue: 50})
	_, err := c.Open(main, 91, start)
	require.NoError(t, err)

	trade, err := c.Close(89, start.Add(time.Hour), position.ExitTakeProfit)
	require.NoError(t, err)
	assert.True(t, trade.Hedge)
	assert.InDelta(t, 40.0, trade.PnL, 1e-9)
	assert.Nil(t, c.Position())

	_, err = c.Close(89, start, position.ExitTakeProfit)
	assert.ErrorIs(t, err, position.ErrNoOpenPosition)
}

func TestDetachedHedgeKeepsExitsAndYieldsToNextMain(t *testing.T) {
	first := mainWithDCA(t, 3)
	stop, err := NewStopRule(StopMainTP, 1)
	require.NoError(t, err)
	c := newController(t, Config{Enabled: true, Trigger: 3, SizeValue: 50, PyramidingLimit: 5, StopLoss: stop})

	_, err = c.Open(first, 91, start)
	require.NoError(t, err)
	got, ok := c.StopPrice()
	require.True(t, ok)
	assert.Equal(t, 102.0, got)
	assert.False(t, c.Detached())

	c.OnMainClosed()
	assert.True(t, c.Detached())

	next := mainWithDCA(t, 3)
	require.NoError(t, next.SetLadder([]position.Rung{{Price: 95, Ratio: 1}}))
	c.Refresh(next)
	got, _ = c.StopPrice()
	assert.Equal(t, 102.0, got, "exits frozen once detached")

	added, err := c.AddEntry(next, 10, 88, start.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 0, c.Position().DCACount())

	c.OnMainOpened()
	assert.True(t, c.ShouldTrigger(next))
	_, err = c.Open(next, 91, start)
	assert.ErrorIs(t, err, position.ErrInvalidStateTransition, "the detached hedge must be closed first")

	_, err = c.Close(90, start.Add(2*time.Hour), position.ExitLinkedClose)
	require.NoError(t, err)
	assert.False(t, c.Detached())
	_, err = c.Open(next, 91, start.Add(2*time.Hour))
	require.NoError(t, err)
}
