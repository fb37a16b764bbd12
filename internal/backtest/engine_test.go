package backtest

import (
	"testing"
	"time"

	enginerrors "github.com/ducminhle1904/dca-ladder-backtest/internal/errors"
	"github.com/ducminhle1904/dca-ladder-backtest/internal/position"
	"github.com/ducminhle1904/dca-ladder-backtest/internal/strategy"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/config"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func ts(i int) time.Time { return start.Add(time.Duration(i) * time.Hour) }

// bar builds the i-th hourly bar.
func bar(i int, open, high, low, close float64) types.Bar {
	return types.NewBar(types.OHLCV{
		Open: open, High: high, Low: low, Close: close,
		Volume: 1000, Timestamp: ts(i),
	})
}

// testSettings: long-only, quantity 10, no fees, one 4% rung closing everything.
func testSettings() *config.StrategySettings {
	s := config.NewDefaultSettings()
	s.Symbol = "TESTUSDT"
	s.FeeRate = 0
	s.Entry.WindowSize = 1
	s.Sizing = config.SizingSettings{Mode: config.SizingQuantity, Value: 10, DCAMultiplier: 1}
	s.TakeProfit.Levels = []config.TPLevel{{Percent: 4, Ratio: 1}}
	return s
}

func longAt(i int) *strategy.Scripted {
	return strategy.NewScripted().At(ts(i), strategy.Long("test"))
}

func runEngine(t *testing.T, s *config.StrategySettings, gen strategy.SignalGenerator, bars []types.Bar) *BacktestResult {
	t.Helper()
	e, err := NewEngine(s, gen, WithRunID(func() string { return "test-run" }))
	require.NoError(t, err)
	res, err := e.Run(bars)
	require.NoError(t, err)
	return res
}

func TestSingleRungTakeProfit(t *testing.T) {
	bars := []types.Bar{
		bar(0, 100, 100.5, 99.5, 100),
		bar(1, 100, 103, 99, 102),
		bar(2, 102, 104.2, 101, 103),
		bar(3, 103, 103.5, 102, 103),
	}

	res := runEngine(t, testSettings(), longAt(0), bars)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, 1, tr.ID)
	assert.Equal(t, types.SideLong, tr.Side)
	assert.InDelta(t, 100.0, tr.AveragePrice, 1e-9)
	assert.InDelta(t, 104.0, tr.ExitPrice, 1e-9)
	assert.InDelta(t, 40.0, tr.GrossPnL, 1e-9)
	assert.InDelta(t, 40.0, tr.PnL, 1e-9)
	assert.Equal(t, 0, tr.DCACount)
	assert.Equal(t, position.ExitTakeProfit, tr.ExitReason)
	assert.Equal(t, ts(2), tr.ExitTime)

	assert.Equal(t, "test-run", res.RunID)
	assert.InDelta(t, 10040.0, res.FinalBalance, 1e-9)
	require.Len(t, res.EquityCurve, len(bars))
	assert.Empty(t, res.Warnings)
}

func TestOneReEntryAveragesDown(t *testing.T) {
	s := testSettings()
	s.TakeProfit.Levels = []config.TPLevel{{Percent: 10, Ratio: 1}}
	s.DCA = config.DCASettings{MaxCount: 2, Mode: "percentage", Value: 3, Reference: "initial"}

	bars := []types.Bar{
		bar(0, 100, 100.5, 99.5, 100),
		bar(1, 99, 99.5, 96, 97.5),
		bar(2, 97.5, 98, 97.2, 97.8),
	}

	res := runEngine(t, s, longAt(0), bars)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	require.Len(t, tr.Entries, 2)
	assert.InDelta(t, 97.0, tr.Entries[1].Price, 1e-9)
	assert.InDelta(t, 10.0, tr.Entries[1].Quantity, 1e-9)
	assert.InDelta(t, 970.0, tr.Entries[1].Investment, 1e-9)
	assert.InDelta(t, 98.5, tr.AveragePrice, 1e-9)
	assert.Equal(t, 1, tr.DCACount)
	assert.Equal(t, position.ExitEndOfData, tr.ExitReason)
	assert.InDelta(t, 1970.0, tr.TotalInvestment, 1e-9)
	// (97.8 - 98.5) * 20
	assert.InDelta(t, -14.0, tr.PnL, 1e-9)
}

func TestFullLadderMakesTrailingActivationNoOp(t *testing.T) {
	s := testSettings()
	s.TakeProfit.Levels = []config.TPLevel{{Percent: 1, Ratio: 0.3}, {Percent: 2, Ratio: 0.3}, {Percent: 3, Ratio: 0.4}}
	s.TrailingStop = config.TrailingSettings{Enabled: true, ActivationLevel: 3, OffsetMode: "percent", Value: 0.5}

	bars := []types.Bar{
		bar(0, 100, 100.5, 99.5, 100),
		bar(1, 100, 103.5, 99.8, 103),
		bar(2, 103, 104, 102, 103),
	}

	res := runEngine(t, s, longAt(0), bars)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, position.ExitTakeProfit, tr.ExitReason)
	require.Len(t, tr.Exits, 3)

	exited := 0.0
	for i, x := range tr.Exits {
		assert.Equal(t, i, x.Rung)
		exited += x.Quantity
	}
	assert.InDelta(t, 10.0, exited, 1e-9)
	assert.InDelta(t, 3*1+3*2+4*3, tr.GrossPnL, 1e-9)
}

func TestHedgeOpensAtTriggerDepth(t *testing.T) {
	s := testSettings()
	s.DCA = config.DCASettings{MaxCount: 4, Mode: "percentage", Value: 3, Reference: "initial"}
	s.TakeProfit.Levels = []config.TPLevel{{Percent: 1, Ratio: 0.3}, {Percent: 2, Ratio: 0.3}, {Percent: 3, Ratio: 0.4}}
	s.Hedge = config.HedgeSettings{
		Enabled: true, Trigger: 3,
		SizeMode: "percent_of_main", SizeValue: 50,
		TPMode: "disabled", SLMode: "disabled",
	}

	bars := []types.Bar{
		bar(0, 100, 100.5, 99.5, 100),
		bar(1, 97.5, 98, 96.5, 97), // DCA1 at 97
		bar(2, 94.5, 95, 93.5, 94), // DCA2 at 94
		bar(3, 92, 93, 90.5, 91),   // DCA3 at 91, hedge opens
		bar(4, 91, 92, 90.6, 91.5), // nothing
	}

	res := runEngine(t, s, longAt(0), bars)

	hedges := res.HedgeTrades()
	require.Len(t, hedges, 1)
	h := hedges[0]
	assert.Equal(t, types.SideShort, h.Side)
	assert.Equal(t, ts(3), h.EntryTime)
	require.Len(t, h.Entries, 1)
	assert.InDelta(t, 91.0, h.Entries[0].Price, 1e-9)
	assert.InDelta(t, 20.0, h.Entries[0].Quantity, 1e-9) // 50% of 40
	assert.Equal(t, position.EntryHedge, h.Entries[0].Reason)
	assert.Equal(t, position.ExitEndOfData, h.ExitReason)

	mains := res.MainTrades()
	require.Len(t, mains, 1)
	m := mains[0]
	assert.Equal(t, 3, m.DCACount)
	assert.Equal(t, m.ID, h.LinkedTradeID)
	assert.Equal(t, h.ID, m.LinkedTradeID)
	assert.NotEqual(t, m.ID, h.ID)
}

func TestHedgeTakeProfitClosesMain(t *testing.T) {
	s := testSettings()
	s.DCA = config.DCASettings{MaxCount: 4, Mode: "percentage", Value: 3, Reference: "initial"}
	s.TakeProfit.Levels = []config.TPLevel{{Percent: 5, Ratio: 1}}
	s.Hedge = config.HedgeSettings{
		Enabled: true, Trigger: 3,
		SizeMode: "percent_of_main", SizeValue: 50,
		TPMode: "percent", TPValue: 2, SLMode: "disabled",
		CloseMainOnHedgeTP: true,
	}

	bars := []types.Bar{
		bar(0, 100, 100.5, 99.5, 100),
		bar(1, 97.5, 98, 96.5, 97),
		bar(2, 94.5, 95, 93.5, 94),
		bar(3, 92, 93, 90.5, 91),
		bar(4, 91, 91.5, 89, 89.5), // hedge TP at 91*0.98 = 89.18, DCA4 at 88 untouched
		bar(5, 89.5, 90, 89.2, 89.6),
	}

	res := runEngine(t, s, longAt(0), bars)

	require.Len(t, res.Trades, 2)
	h, m := res.Trades[0], res.Trades[1]
	require.True(t, h.Hedge)
	assert.Equal(t, position.ExitHedgeTakeProfit, h.ExitReason)
	assert.InDelta(t, 89.18, h.ExitPrice, 1e-9)
	assert.InDelta(t, (91-89.18)*20, h.GrossPnL, 1e-9)

	assert.False(t, m.Hedge)
	assert.Equal(t, position.ExitLinkedClose, m.ExitReason)
	assert.Equal(t, ts(4), m.ExitTime)
}

// hedgeSettings re-enters once 3% down and hedges half of the main on that re-entry.
func hedgeSettings() *config.StrategySettings {
	s := testSettings()
	s.DCA = config.DCASettings{MaxCount: 2, Mode: "percentage", Value: 3, Reference: "initial"}
	s.Hedge = config.HedgeSettings{
		Enabled: true, Trigger: 1,
		SizeMode: "percent_of_main", SizeValue: 50,
		TPMode: "disabled", SLMode: "disabled",
		PyramidingLimit: 5,
	}
	return s
}

func TestHedgeStaysWithItsOwnMain(t *testing.T) {
	bars := []types.Bar{
		bar(0, 100, 100.5, 99.5, 100),
		bar(1, 98, 98.5, 96.5, 97),    // DCA1 at 97, hedge opens
		bar(2, 97, 103, 96.8, 102.8),  // TP at 98.5*1.04, main re-opens at 102.8
		bar(3, 102, 102.5, 99.5, 100), // DCA1 of the new main at 99.716
		bar(4, 100, 100.5, 99.8, 100.2),
	}

	res := runEngine(t, hedgeSettings(), strategy.Constant{Action: strategy.ActionLong}, bars)

	require.Len(t, res.Trades, 4)
	first, orphan, second, hedge := res.Trades[0], res.Trades[1], res.Trades[2], res.Trades[3]

	assert.Equal(t, position.ExitTakeProfit, first.ExitReason)
	assert.Equal(t, 2, first.LinkedTradeID)

	// the first hedge takes no entries from the second main and makes way for its hedge
	require.True(t, orphan.Hedge)
	assert.Equal(t, 2, orphan.ID)
	assert.Equal(t, first.ID, orphan.LinkedTradeID)
	assert.Len(t, orphan.Entries, 1)
	assert.Equal(t, position.ExitLinkedClose, orphan.ExitReason)
	assert.Equal(t, ts(3), orphan.ExitTime)
	assert.InDelta(t, 99.716, orphan.ExitPrice, 1e-9)

	assert.False(t, second.Hedge)
	assert.Equal(t, 3, second.ID)
	assert.Equal(t, 1, second.DCACount)
	assert.Equal(t, hedge.ID, second.LinkedTradeID)

	require.True(t, hedge.Hedge)
	assert.Equal(t, second.ID, hedge.LinkedTradeID)
	assert.Equal(t, ts(3), hedge.EntryTime)
	require.Len(t, hedge.Entries, 1)
	assert.InDelta(t, 99.716, hedge.Entries[0].Price, 1e-9)
	assert.InDelta(t, 10.0, hedge.Entries[0].Quantity, 1e-9)
	assert.Empty(t, res.Warnings)
}

func TestHedgeExitPriority(t *testing.T) {
	bars := []types.Bar{
		bar(0, 100, 100.5, 99.5, 100),
		bar(1, 98, 98.5, 96.5, 97), // hedge short at 97: stop 98.94, target 95.06
		bar(2, 97, 99.5, 94.5, 97), // touches both
	}

	tests := []struct {
		priority string
		want     position.ExitReason
		exit     float64
	}{
		{config.ExitPriorityStopFirst, position.ExitStopLoss, 98.94},
		{config.ExitPriorityTakeProfitFirst, position.ExitHedgeTakeProfit, 95.06},
	}
	for _, tt := range tests {
		t.Run(tt.priority, func(t *testing.T) {
			s := hedgeSettings()
			s.TakeProfit.Levels = []config.TPLevel{{Percent: 10, Ratio: 1}}
			s.Hedge.TPMode, s.Hedge.TPValue = "percent", 2
			s.Hedge.SLMode, s.Hedge.SLValue = "percent", 2
			s.Execution.ExitPriority = tt.priority

			res := runEngine(t, s, longAt(0), bars)
			hedges := res.HedgeTrades()
			require.Len(t, hedges, 1)
			assert.Equal(t, tt.want, hedges[0].ExitReason)
			assert.InDelta(t, tt.exit, hedges[0].ExitPrice, 1e-9)
			assert.Equal(t, ts(2), hedges[0].ExitTime)
		})
	}
}

func TestHedgePyramidingCapRecordsWarning(t *testing.T) {
	s := hedgeSettings()
	s.TakeProfit.Levels = []config.TPLevel{{Percent: 10, Ratio: 1}}
	s.Hedge.PyramidingLimit = 0

	bars := []types.Bar{
		bar(0, 100, 100.5, 99.5, 100),
		bar(1, 98, 98.5, 96.5, 97),   // DCA1, hedge opens
		bar(2, 96, 96.5, 93.8, 94.2), // DCA2, hedge re-entry capped
	}

	res := runEngine(t, s, longAt(0), bars)

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, SiteHedgeCap, res.Warnings[0].Site)
	assert.Equal(t, 2, res.Warnings[0].BarIndex)
	hedges := res.HedgeTrades()
	require.Len(t, hedges, 1)
	assert.Len(t, hedges[0].Entries, 1)
}

func TestTrailingStartsFromActivationBarExtreme(t *testing.T) {
	s := testSettings()
	s.TakeProfit.Levels = []config.TPLevel{{Percent: 1, Ratio: 0.5}, {Percent: 20, Ratio: 0.5}}
	s.TrailingStop = config.TrailingSettings{Enabled: true, ActivationLevel: 1, OffsetMode: "percent", Value: 1}

	bars := []types.Bar{
		bar(0, 100, 100.5, 99.5, 100),
		bar(1, 100, 110, 99.8, 109), // TP1 at 101, rally to 110 after it: stop 110 - 1.01
		bar(2, 105, 105, 104, 104.4),
	}

	res := runEngine(t, s, longAt(0), bars)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, position.ExitTrailingStop, tr.ExitReason)
	assert.InDelta(t, 108.99, tr.ExitPrice, 1e-9)
	assert.Equal(t, ts(2), tr.ExitTime)
}

func TestATRFallbackWarnings(t *testing.T) {
	s := testSettings()
	s.TakeProfit.Levels = []config.TPLevel{{Percent: 10, Ratio: 1}}
	s.DCA = config.DCASettings{MaxCount: 1, Mode: "atr", Value: 2, Reference: "initial"}
	s.StopLoss = config.StopLossSettings{Mode: config.StopLossATR, Value: 3}

	bars := []types.Bar{
		bar(0, 100, 100.5, 99.5, 100),
		bar(1, 100, 100.2, 97.5, 98), // DCA at 97 not reached, stop at 97 not reached
		bar(2, 98, 98.5, 96.9, 97.2), // stop first at 97
	}

	res := runEngine(t, s, longAt(0), bars)

	require.Len(t, res.Warnings, 2)
	sites := []string{res.Warnings[0].Site, res.Warnings[1].Site}
	assert.ElementsMatch(t, []string{SiteStopLoss, SiteDCALevel}, sites)
	for _, w := range res.Warnings {
		assert.Equal(t, 0, w.BarIndex)
		assert.Equal(t, ts(0), w.Timestamp)
	}

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, position.ExitStopLoss, tr.ExitReason)
	assert.InDelta(t, 97.0, tr.ExitPrice, 1e-9)
	assert.Equal(t, 0, tr.DCACount)
}

func TestATRStopUsesBarATR(t *testing.T) {
	s := testSettings()
	s.StopLoss = config.StopLossSettings{Mode: config.StopLossATR, Value: 2}

	b0 := bar(0, 100, 100.5, 99.5, 100)
	atr := 1.5
	b0.ATR = &atr
	bars := []types.Bar{b0, bar(1, 100, 100.2, 96.9, 97.5)}

	res := runEngine(t, s, longAt(0), bars)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, position.ExitStopLoss, res.Trades[0].ExitReason)
	assert.InDelta(t, 97.0, res.Trades[0].ExitPrice, 1e-9)
	assert.Empty(t, res.Warnings)
}

func TestSameBarTieBreak(t *testing.T) {
	bars := []types.Bar{
		bar(0, 100, 100.5, 99.5, 100),
		bar(1, 100, 105, 97, 101), // touches both the 4% target and the 2% stop
	}

	tests := []struct {
		priority string
		want     position.ExitReason
		exit     float64
	}{
		{config.ExitPriorityStopFirst, position.ExitStopLoss, 98},
		{config.ExitPriorityTakeProfitFirst, position.ExitTakeProfit, 104},
	}
	for _, tt := range tests {
		t.Run(tt.priority, func(t *testing.T) {
			s := testSettings()
			s.StopLoss = config.StopLossSettings{Mode: config.StopLossPercent, Value: 2}
			s.Execution.ExitPriority = tt.priority

			res := runEngine(t, s, longAt(0), bars)
			require.Len(t, res.Trades, 1)
			assert.Equal(t, tt.want, res.Trades[0].ExitReason)
			assert.InDelta(t, tt.exit, res.Trades[0].ExitPrice, 1e-9)
		})
	}
}

func TestTrendExitFallsThroughToEntry(t *testing.T) {
	s := testSettings()
	s.Entry.Mode = config.EntryBoth
	s.TrendExit.Enabled = true

	b1 := bar(1, 100, 100.5, 98.5, 99)
	b1.Trend = types.TrendDown
	bars := []types.Bar{
		bar(0, 100, 100.5, 99.5, 100),
		b1,
		bar(2, 99, 99.5, 98, 98.5),
	}
	gen := longAt(0).At(ts(1), strategy.Short("trend flipped"))

	res := runEngine(t, s, gen, bars)

	require.Len(t, res.Trades, 2)
	assert.Equal(t, position.ExitTrendReversal, res.Trades[0].ExitReason)
	assert.InDelta(t, 99.0, res.Trades[0].ExitPrice, 1e-9)

	assert.Equal(t, types.SideShort, res.Trades[1].Side)
	assert.Equal(t, ts(1), res.Trades[1].EntryTime)
	assert.Equal(t, 2, res.Trades[1].ID)
}

func TestEntryModeFiltersSignals(t *testing.T) {
	s := testSettings()
	s.Entry.Mode = config.EntryLongOnly

	bars := []types.Bar{bar(0, 100, 100.5, 99.5, 100), bar(1, 100, 100.5, 99.5, 100)}
	gen := strategy.NewScripted().At(ts(0), strategy.Short("nope"))

	res := runEngine(t, s, gen, bars)
	assert.Empty(t, res.Trades)
	assert.InDelta(t, s.InitialBalance, res.FinalBalance, 1e-9)
}

func TestTrailingStopExit(t *testing.T) {
	s := testSettings()
	s.TakeProfit.Levels = []config.TPLevel{{Percent: 1, Ratio: 0.5}, {Percent: 5, Ratio: 0.5}}
	s.TrailingStop = config.TrailingSettings{Enabled: true, ActivationLevel: 1, OffsetMode: "percent", Value: 1}

	bars := []types.Bar{
		bar(0, 100, 100.5, 99.5, 100),
		bar(1, 100, 101.5, 100, 101.2),   // TP1 at 101, trailing activates from 101.5 (stop 100.49)
		bar(2, 102.2, 103, 102.1, 102.5), // extreme 103, stop 101.99
		bar(3, 102.5, 102.8, 101.9, 102), // hit
	}

	res := runEngine(t, s, longAt(0), bars)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, position.ExitTrailingStop, tr.ExitReason)
	assert.InDelta(t, 103-1.01, tr.ExitPrice, 1e-9)
	assert.Equal(t, ts(3), tr.ExitTime)
	require.Len(t, tr.Exits, 2)
	assert.InDelta(t, 5.0, tr.Exits[1].Quantity, 1e-9)
}

func TestReferenceLastRebuildsQueue(t *testing.T) {
	s := testSettings()
	s.TakeProfit.Levels = []config.TPLevel{{Percent: 20, Ratio: 1}}
	s.DCA = config.DCASettings{MaxCount: 2, Mode: "atr", Value: 2, Reference: "last"}

	withATR := func(b types.Bar, atr float64) types.Bar {
		b.ATR = &atr
		return b
	}
	bars := []types.Bar{
		withATR(bar(0, 100, 100.5, 99.5, 100), 5), // plan 90, 80
		withATR(bar(1, 95, 95, 89, 90), 2),        // DCA1 at 90, queue rebuilt to 86
		withATR(bar(2, 90, 90, 85.5, 86.5), 2),    // DCA2 at 86
	}

	res := runEngine(t, s, longAt(0), bars)
	require.Len(t, res.Trades, 1)
	require.Len(t, res.Trades[0].Entries, 3)
	assert.InDelta(t, 90.0, res.Trades[0].Entries[1].Price, 1e-9)
	assert.InDelta(t, 86.0, res.Trades[0].Entries[2].Price, 1e-9)
	assert.Empty(t, res.Warnings)
}

func TestMarginCheckSkipsEntry(t *testing.T) {
	s := testSettings()
	s.InitialBalance = 500 // 10 @ 100 needs 1000

	res := runEngine(t, s, longAt(0), []types.Bar{bar(0, 100, 100.5, 99.5, 100)})

	assert.Empty(t, res.Trades)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, SiteMargin, res.Warnings[0].Site)
}

func TestBalanceEqualsInitialPlusClosedPnL(t *testing.T) {
	s := testSettings()
	s.FeeRate = 0.001
	s.SlippagePercent = 0.1
	s.DCA = config.DCASettings{MaxCount: 3, Mode: "percentage", Value: 2, Reference: "initial"}
	s.TakeProfit.Levels = []config.TPLevel{{Percent: 1, Ratio: 0.5}, {Percent: 2, Ratio: 0.5}}

	closes := []float64{100, 99, 97.5, 96, 97, 98.5, 99.5, 100.5, 101, 99, 98, 100}
	bars := make([]types.Bar, len(closes))
	for i, c := range closes {
		bars[i] = bar(i, c, c+1.2, c-1.2, c)
	}

	res := runEngine(t, s, strategy.Constant{Action: strategy.ActionLong}, bars)

	require.NotEmpty(t, res.Trades)
	sum := 0.0
	for _, tr := range res.Trades {
		sum += tr.PnL
		assert.Greater(t, tr.Fees, 0.0)
	}
	assert.InDelta(t, s.InitialBalance+sum, res.FinalBalance, 1e-6)
	last := res.EquityCurve[len(res.EquityCurve)-1]
	assert.InDelta(t, res.FinalBalance, last.Equity, 1e-6)
	for _, p := range res.EquityCurve {
		assert.GreaterOrEqual(t, p.Drawdown, 0.0)
	}
}

func TestCloseOnFinishDisabledLeavesPositionOpen(t *testing.T) {
	s := testSettings()
	s.Execution.CloseOnFinish = false

	res := runEngine(t, s, longAt(0), []types.Bar{
		bar(0, 100, 100.5, 99.5, 100),
		bar(1, 100, 101, 99, 101),
	})

	assert.Empty(t, res.Trades)
	assert.InDelta(t, s.InitialBalance, res.FinalBalance, 1e-9)
	assert.InDelta(t, s.InitialBalance+10, res.FinalEquity, 1e-9)
}

func TestRunIsDeterministic(t *testing.T) {
	s := testSettings()
	s.DCA = config.DCASettings{MaxCount: 2, Mode: "percentage", Value: 2, Reference: "initial"}
	bars := make([]types.Bar, 30)
	for i := range bars {
		c := 100 + float64(i%7) - float64(i%5)
		bars[i] = bar(i, c, c+2, c-2, c)
	}

	e, err := NewEngine(s, strategy.Constant{Action: strategy.ActionLong}, WithRunID(func() string { return "x" }))
	require.NoError(t, err)
	first, err := e.Run(bars)
	require.NoError(t, err)
	second, err := e.Run(bars)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestInvalidConfiguration(t *testing.T) {
	s := testSettings()
	s.Leverage = 0

	_, err := NewEngine(s, nil)
	require.Error(t, err)
	ee, ok := enginerrors.AsEngineError(err)
	require.True(t, ok)
	assert.Equal(t, enginerrors.ErrorCategoryConfiguration, ee.Category)
	assert.Equal(t, "leverage", ee.Context["field"])
}

func TestRunRejectsBadInput(t *testing.T) {
	e, err := NewEngine(testSettings(), nil)
	require.NoError(t, err)

	_, err = e.Run(nil)
	assert.True(t, enginerrors.IsCategory(err, enginerrors.ErrorCategoryData))

	_, err = e.Run([]types.Bar{bar(1, 1, 1, 1, 1), bar(0, 1, 1, 1, 1)})
	assert.True(t, enginerrors.IsCategory(err, enginerrors.ErrorCategoryData))
}
