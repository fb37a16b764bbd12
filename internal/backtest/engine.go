package backtest

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	enginerrors "github.com/ducminhle1904/dca-ladder-backtest/internal/errors"
	"github.com/ducminhle1904/dca-ladder-backtest/internal/hedge"
	"github.com/ducminhle1904/dca-ladder-backtest/internal/logger"
	"github.com/ducminhle1904/dca-ladder-backtest/internal/numeric"
	"github.com/ducminhle1904/dca-ladder-backtest/internal/position"
	"github.com/ducminhle1904/dca-ladder-backtest/internal/strategy"
	"github.com/ducminhle1904/dca-ladder-backtest/internal/strategy/spacing"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/config"
	"github.com/ducminhle1904/dca-ladder-backtest/pkg/types"
)

// Engine replays bars against one strategy configuration. It holds only
// resolved configuration, so a single Engine can serve concurrent runs.
type Engine struct {
	settings *config.StrategySettings
	signal   strategy.SignalGenerator
	log      *logger.Logger
	observer Observer
	runID    func() string

	spacing      *spacing.Calculator
	trailingMode position.TrailingOffsetMode
	hedgeCfg     hedge.Config
	posOpts      position.Options
	exitPriority string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger routes engine logs to l. A nil logger keeps the default.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithObserver registers an event observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithRunID overrides run ID generation.
func WithRunID(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.runID = fn
		}
	}
}

// NewEngine validates settings and resolves every configured mode. A nil
// signal generator is built from the signal settings.
func NewEngine(settings *config.StrategySettings, signal strategy.SignalGenerator, opts ...Option) (*Engine, error) {
	if settings == nil {
		return nil, enginerrors.NewConfigurationError("", "settings are required")
	}
	s := settings.Clone()
	if err := config.NewSettingsValidator().Validate(s); err != nil {
		return nil, err
	}

	e := &Engine{
		settings:     s,
		signal:       signal,
		log:          logger.Discard(),
		observer:     nopObserver{},
		runID:        uuid.NewString,
		exitPriority: strings.ToLower(s.Execution.ExitPriority),
		posOpts: position.Options{
			FeeRate:      s.FeeRate,
			MinQuantity:  s.Execution.MinQuantity,
			QuantityStep: s.Execution.QtyStep,
		},
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.signal == nil {
		gen, err := strategy.NewSignalGenerator(s.Signal)
		if err != nil {
			return nil, enginerrors.NewConfigurationError("signal.name", err.Error())
		}
		e.signal = gen
	}

	if s.DCA.MaxCount > 0 {
		calc, err := spacing.NewCalculator(spacing.SpacingConfig{
			Mode:      strings.ToLower(s.DCA.Mode),
			Value:     s.DCA.Value,
			Reference: spacing.Reference(strings.ToLower(s.DCA.Reference)),
		})
		if err != nil {
			return nil, enginerrors.NewConfigurationError("dca.mode", err.Error())
		}
		e.spacing = calc
	}

	mode, err := position.ParseTrailingOffsetMode(s.TrailingStop.OffsetMode)
	if err != nil {
		return nil, enginerrors.NewConfigurationError("trailing_stop.offset_mode", err.Error())
	}
	e.trailingMode = mode

	if e.hedgeCfg, err = resolveHedge(s); err != nil {
		return nil, err
	}
	return e, nil
}

func resolveHedge(s *config.StrategySettings) (hedge.Config, error) {
	h := s.Hedge
	if !h.Enabled {
		return hedge.Config{}, nil
	}
	sizeMode, err := hedge.ParseSizeMode(h.SizeMode)
	if err != nil {
		return hedge.Config{}, enginerrors.NewConfigurationError("hedge.size_mode", err.Error())
	}
	tp, err := hedge.NewTakeProfitRule(h.TPMode, h.TPValue)
	if err != nil {
		return hedge.Config{}, enginerrors.NewConfigurationError("hedge.tp_mode", err.Error())
	}
	sl, err := hedge.NewStopRule(h.SLMode, h.SLValue)
	if err != nil {
		return hedge.Config{}, enginerrors.NewConfigurationError("hedge.sl_mode", err.Error())
	}
	return hedge.Config{
		Enabled:                   true,
		Trigger:                   h.Trigger,
		SizeMode:                  sizeMode,
		SizeValue:                 h.SizeValue,
		TakeProfit:                tp,
		StopLoss:                  sl,
		PyramidingLimit:           h.PyramidingLimit,
		CloseMainOnHedgeTP:        h.CloseMainOnHedgeTP,
		CloseHedgeOnMainTrendExit: h.CloseHedgeOnMainTrendExit,
	}, nil
}

// Settings returns a copy of the resolved settings.
func (e *Engine) Settings() *config.StrategySettings { return e.settings.Clone() }

// Run replays bars in order and returns the result. Bars must be in strictly
// increasing time order; indicators are read as given.
func (e *Engine) Run(bars []types.Bar) (*BacktestResult, error) {
	if len(bars) == 0 {
		return nil, enginerrors.NewDataError("backtest", "run", "no bars to replay")
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			return nil, enginerrors.NewDataError("backtest", "run", "bars are not in increasing time order").
				WithContext("bar", i).
				WithContext("timestamp", bars[i].Timestamp.Format(time.RFC3339))
		}
	}

	r := e.newRun(bars)
	e.log.SessionHeader(r.result.RunID, len(bars))

	last := len(bars) - 1
	for i := range bars {
		if err := r.step(i); err != nil {
			e.log.Error("run %s aborted: %v", r.result.RunID, err)
			return nil, err
		}
		if i == last && e.settings.Execution.CloseOnFinish {
			if err := r.closeOut(); err != nil {
				return nil, err
			}
		}
		r.recordEquity()
	}

	res := r.result
	res.FinalBalance = r.balance()
	if n := len(res.EquityCurve); n > 0 {
		res.FinalEquity = res.EquityCurve[n-1].Equity
	}
	e.log.LogRunSummary(res.RunID, len(res.Trades), len(res.Warnings), res.InitialBalance, res.FinalBalance)
	return res, nil
}

// run is the mutable state of one replay.
type run struct {
	e      *Engine
	s      *config.StrategySettings
	bars   []types.Bar
	result *BacktestResult

	realized float64
	peak     float64
	nextID   int

	main        *position.Position
	mainID      int
	mainHedgeID int
	initialQty  float64

	hedge         *hedge.Controller
	hedgeID       int
	hedgeMainID   int
	hedgeDeclined bool

	idx int
	bar types.Bar

	dcaFilled bool
	dcaLevel  float64
	dcaQty    float64
}

func (e *Engine) newRun(bars []types.Bar) *run {
	s := e.settings
	return &run{
		e:    e,
		s:    s,
		bars: bars,
		result: &BacktestResult{
			RunID:          e.runID(),
			Symbol:         s.Symbol,
			Interval:       s.Interval,
			InitialBalance: s.InitialBalance,
			StartTime:      bars[0].Timestamp,
			EndTime:        bars[len(bars)-1].Timestamp,
			Bars:           len(bars),
			Trades:         make([]position.Trade, 0),
			EquityCurve:    make([]EquityPoint, 0, len(bars)),
			Warnings:       make([]Warning, 0),
		},
		peak:  s.InitialBalance,
		hedge: hedge.NewController(e.hedgeCfg, e.posOpts, s.Leverage),
	}
}

func (r *run) step(i int) error {
	r.idx, r.bar = i, r.bars[i]
	r.dcaFilled, r.dcaLevel, r.dcaQty = false, 0, 0

	if err := r.checkTrendExit(); err != nil {
		return err
	}

	exits := []func() error{r.checkStopLoss, r.checkLadder}
	if r.e.exitPriority == config.ExitPriorityTakeProfitFirst {
		exits = []func() error{r.checkLadder, r.checkStopLoss}
	}
	exits = append(exits, r.checkTrailing, r.checkDCA)
	for _, check := range exits {
		if !r.mainOpen() {
			break
		}
		if err := check(); err != nil {
			return err
		}
	}

	if err := r.checkHedge(); err != nil {
		return err
	}
	return r.checkEntry()
}

// 1. trend reversal
func (r *run) checkTrendExit() error {
	if !r.s.TrendExit.Enabled || !r.mainOpen() || !r.bar.Trend.Opposes(r.main.Side()) {
		return nil
	}
	if err := r.closeMain(r.bar.Close, position.ExitTrendReversal); err != nil {
		return err
	}
	if r.e.hedgeCfg.CloseHedgeOnMainTrendExit && r.hedgeLive() {
		return r.closeHedge(r.bar.Close, position.ExitLinkedClose)
	}
	return nil
}

// 2. stop loss
func (r *run) checkStopLoss() error {
	stop, ok := r.main.StopPrice()
	if !ok || !touchedAdverse(r.main.Side(), r.bar, stop) {
		return nil
	}
	return r.closeMain(stop, position.ExitStopLoss)
}

// 3. take-profit ladder, every rung crossed this bar
func (r *run) checkLadder() error {
	side := r.main.Side()
	for i, rung := range r.main.Ladder() {
		if rung.Fired || !touchedFavorable(side, r.bar, rung.Price) {
			continue
		}

		fill := r.exitFill(side, rung.Price)
		before := r.main.ExitedQuantity()
		pnl, err := r.main.PartialExit(i, fill, r.bar.Timestamp)
		if err != nil {
			return r.stateErr("take_profit", err)
		}
		qty := r.main.ExitedQuantity() - before
		r.e.log.LogFill(r.bar.Timestamp, fmt.Sprintf("TP%d", i+1), side.String(), fill, qty, fmt.Sprintf("gross $%.4f", pnl))
		r.e.observer.OnFill(side.String(), string(position.ExitTakeProfit), fill, qty)

		r.maybeActivateTrailing(i+1, rung.Price)

		if r.main.RemainingQuantity() <= 0 {
			return r.closeMain(rung.Price, position.ExitTakeProfit)
		}
	}
	return nil
}

func (r *run) maybeActivateTrailing(level int, price float64) {
	ts := r.s.TrailingStop
	if !ts.Enabled || ts.ActivationLevel != level {
		return
	}
	if r.main.RemainingQuantity() <= 0 {
		r.e.log.Info("trailing activation at TP%d skipped: nothing remaining", level)
		return
	}

	side := r.main.Side()
	offset := position.TrailingOffset(r.e.trailingMode, ts.Value, price, r.main.Ladder())
	t := position.NewTrailingStop(side, level, price, offset, r.bar.Timestamp)
	// the rest of the activation bar is reached after the rung
	t.Update(r.bar.FavorableExtreme(side), r.bar.Timestamp)
	if r.main.ActivateTrailing(t) {
		r.e.log.Info("🎯 trailing stop activated at TP%d: stop $%.4f offset $%.4f", level, t.StopPrice(), offset)
	}
}

// 4. trailing stop; hits are checked from the bar after activation
func (r *run) checkTrailing() error {
	t := r.main.Trailing()
	if t == nil || !t.Active() || !r.bar.Timestamp.After(t.ActivatedAt()) {
		return nil
	}
	side := r.main.Side()
	t.Update(r.bar.FavorableExtreme(side), r.bar.Timestamp)
	if t.Hit(r.bar.AdverseExtreme(side)) {
		return r.closeMain(t.StopPrice(), position.ExitTrailingStop)
	}
	return nil
}

// 5. next re-entry level
func (r *run) checkDCA() error {
	if r.main.DCACount() >= r.s.DCA.MaxCount {
		return nil
	}
	level, ok := r.main.NextDCALevel()
	side := r.main.Side()
	if !ok || !touchedAdverse(side, r.bar, level) {
		return nil
	}
	r.main.PopDCALevel()

	k := r.main.DCACount() + 1
	qty := r.initialQty * math.Pow(r.s.Sizing.DCAMultiplier, float64(k))
	if r.s.Execution.QtyStep > 0 {
		qty = numeric.RoundDownToStep(qty, r.s.Execution.QtyStep)
	}
	price := r.entryFill(side, level)
	investment := numeric.InvestmentFromQuantity(qty, price, r.s.Leverage)

	if qty <= 0 || qty < r.s.Execution.MinQuantity {
		r.warn(SiteEntrySize, "DCA %d at $%.4f skipped: quantity %.8f below minimum", k, level, qty)
		return nil
	}
	if avail := r.availableMargin(); investment > avail {
		r.warn(SiteMargin, "DCA %d at $%.4f skipped: needs $%.2f, available $%.2f", k, level, investment, avail)
		return nil
	}

	if err := r.main.AddEntry(price, qty, investment, r.bar.Timestamp, position.EntryDCA); err != nil {
		return r.stateErr("dca", err)
	}
	r.dcaFilled, r.dcaLevel, r.dcaQty = true, level, qty
	r.e.log.LogFill(r.bar.Timestamp, fmt.Sprintf("DCA%d", k), side.String(), price, qty,
		fmt.Sprintf("avg now $%.4f", r.main.AveragePrice()))
	r.e.observer.OnFill(side.String(), string(position.EntryDCA), price, qty)

	r.installExits()
	if r.e.spacing != nil && r.e.spacing.Reference() == spacing.ReferenceLast {
		r.main.RebuildDCAQueue(r.dcaLevels(price, r.s.DCA.MaxCount-r.main.DCACount()))
	}
	return nil
}

// 6. hedge exits, pyramiding and trigger
func (r *run) checkHedge() error {
	if !r.hedge.Enabled() {
		return nil
	}

	if h := r.hedge.Position(); h != nil {
		attached := !r.hedge.Detached() && r.mainOpen()
		if attached {
			r.hedge.Refresh(r.main)
		}

		exits := []func(bool) (bool, error){r.checkHedgeStop, r.checkHedgeTakeProfit}
		if r.e.exitPriority == config.ExitPriorityTakeProfitFirst {
			exits = []func(bool) (bool, error){r.checkHedgeTakeProfit, r.checkHedgeStop}
		}
		closed := false
		for _, check := range exits {
			var err error
			if closed, err = check(attached); err != nil {
				return err
			}
			if closed {
				break
			}
		}

		if !closed && attached && r.dcaFilled {
			if err := r.pyramidHedge(h.Side()); err != nil {
				return err
			}
		}
	}

	if r.hedgeDeclined || !r.hedge.ShouldTrigger(r.main) {
		return nil
	}
	return r.openHedge()
}

func (r *run) checkHedgeStop(bool) (bool, error) {
	stop, ok := r.hedge.StopPrice()
	if !ok || !touchedAdverse(r.hedge.Position().Side(), r.bar, stop) {
		return false, nil
	}
	return true, r.closeHedge(stop, position.ExitStopLoss)
}

// checkHedgeTakeProfit closes the hedge at its target and, when linked, the
// main it belongs to.
func (r *run) checkHedgeTakeProfit(attached bool) (bool, error) {
	tp, ok := r.hedge.TakeProfitPrice()
	if !ok || !touchedFavorable(r.hedge.Position().Side(), r.bar, tp) {
		return false, nil
	}
	if err := r.closeHedge(tp, position.ExitHedgeTakeProfit); err != nil {
		return true, err
	}
	if attached && r.e.hedgeCfg.CloseMainOnHedgeTP && r.mainOpen() {
		return true, r.closeMain(tp, position.ExitLinkedClose)
	}
	return true, nil
}

func (r *run) pyramidHedge(hside types.Side) error {
	price := r.entryFill(hside, r.dcaLevel)
	_, investment := r.hedge.Size(r.dcaQty, price)
	if avail := r.availableMargin(); investment > avail {
		r.warn(SiteMargin, "hedge re-entry skipped: needs $%.2f, available $%.2f", investment, avail)
		return nil
	}

	added, err := r.hedge.AddEntry(r.main, r.dcaQty, price, r.bar.Timestamp)
	switch {
	case errors.Is(err, position.ErrInvalidEntry):
		r.warn(SiteHedgeSize, "hedge re-entry skipped: %v", err)
		return nil
	case err != nil:
		return r.stateErr("hedge_pyramiding", err)
	case !added:
		r.warn(SiteHedgeCap, "hedge re-entry suppressed: pyramiding limit %d reached", r.e.hedgeCfg.PyramidingLimit)
		return nil
	}

	h := r.hedge.Position()
	last, _ := h.LastEntry()
	r.e.log.LogFill(r.bar.Timestamp, "HEDGE_ADD", hside.String(), last.Price, last.Quantity, "pyramiding")
	r.e.observer.OnFill(hside.String(), string(position.EntryHedge), last.Price, last.Quantity)
	return nil
}

func (r *run) openHedge() error {
	hside := r.main.Side().Opposite()
	ref := r.bar.Close
	if r.dcaFilled {
		ref = r.dcaLevel
	}
	price := r.entryFill(hside, ref)

	// the previous main's hedge makes way for this one
	if r.hedge.Detached() {
		if err := r.closeHedge(ref, position.ExitLinkedClose); err != nil {
			return err
		}
	}

	_, investment := r.hedge.Size(r.main.RemainingQuantity(), price)
	if avail := r.availableMargin(); investment > avail {
		r.hedgeDeclined = true
		r.warn(SiteMargin, "hedge skipped: needs $%.2f, available $%.2f", investment, avail)
		return nil
	}

	h, err := r.hedge.Open(r.main, price, r.bar.Timestamp)
	if errors.Is(err, position.ErrInvalidEntry) {
		r.warn(SiteHedgeSize, "hedge skipped: %v", err)
		return nil
	}
	if err != nil {
		return r.stateErr("hedge_open", err)
	}

	r.hedgeID = r.nextTradeID()
	r.hedgeMainID = r.mainID
	r.mainHedgeID = r.hedgeID

	entry, _ := h.LastEntry()
	r.e.log.LogFill(r.bar.Timestamp, "HEDGE", hside.String(), entry.Price, entry.Quantity,
		fmt.Sprintf("main DCA count %d", r.main.DCACount()))
	r.e.observer.OnFill(hside.String(), string(position.EntryHedge), entry.Price, entry.Quantity)
	return nil
}

// 7. entry while flat
func (r *run) checkEntry() error {
	if r.mainOpen() {
		return nil
	}

	start := r.idx - r.s.Entry.WindowSize + 1
	if start < 0 {
		start = 0
	}
	sig, err := r.e.signal.Evaluate(r.bars[start : r.idx+1])
	if err != nil {
		r.warn(SiteSignal, "%s failed: %v", r.e.signal.Name(), err)
		return nil
	}
	side, ok := sig.Side()
	if !ok || !r.allowed(side) {
		return nil
	}
	return r.openMain(side, sig.Reason)
}

func (r *run) allowed(side types.Side) bool {
	switch strings.ToLower(r.s.Entry.Mode) {
	case config.EntryLongOnly:
		return side == types.SideLong
	case config.EntryShortOnly:
		return side == types.SideShort
	default:
		return true
	}
}

func (r *run) openMain(side types.Side, reason string) error {
	price := r.entryFill(side, r.bar.Close)
	qty, investment := r.initialSize(price)

	if qty <= 0 || qty < r.s.Execution.MinQuantity {
		r.warn(SiteEntrySize, "entry skipped: quantity %.8f below minimum", qty)
		return nil
	}
	if avail := r.availableMargin(); investment > avail {
		r.warn(SiteMargin, "entry skipped: needs $%.2f, available $%.2f", investment, avail)
		return nil
	}

	p := position.New(r.e.posOpts)
	if err := p.Open(side, price, qty, investment, r.bar.Timestamp, position.EntrySignal); err != nil {
		if errors.Is(err, position.ErrInvalidEntry) {
			r.warn(SiteEntrySize, "entry skipped: %v", err)
			return nil
		}
		return r.stateErr("open", err)
	}

	r.main = p
	r.mainID = r.nextTradeID()
	r.mainHedgeID = 0
	r.initialQty = qty
	r.hedgeDeclined = false
	r.hedge.OnMainOpened()

	rungs := make([]position.Rung, len(r.s.TakeProfit.Levels))
	for i, lvl := range r.s.TakeProfit.Levels {
		rungs[i] = position.Rung{Price: numeric.ApplyPercent(price, lvl.Percent, side.Sign()), Ratio: lvl.Ratio}
	}
	if err := p.SetLadder(rungs); err != nil {
		return r.stateErr("open", err)
	}
	p.SetStopPrice(r.stopPrice(price, side))
	if r.e.spacing != nil {
		p.SetDCAPlan(r.dcaLevels(price, r.s.DCA.MaxCount))
	}

	r.e.log.LogFill(r.bar.Timestamp, "OPEN", side.String(), price, qty, reason)
	r.e.observer.OnFill(side.String(), string(position.EntrySignal), price, qty)
	return nil
}

func (r *run) initialSize(price float64) (qty, investment float64) {
	sz := r.s.Sizing
	switch strings.ToLower(sz.Mode) {
	case config.SizingQuantity:
		qty = sz.Value
	case config.SizingBalancePercent:
		qty = numeric.QuantityFromInvestment(r.balance()*sz.Value/100, price, r.s.Leverage)
	default:
		qty = numeric.QuantityFromInvestment(sz.Value, price, r.s.Leverage)
	}
	if r.s.Execution.QtyStep > 0 {
		qty = numeric.RoundDownToStep(qty, r.s.Execution.QtyStep)
	}
	return qty, numeric.InvestmentFromQuantity(qty, price, r.s.Leverage)
}

// installExits re-anchors the unfired rungs and the stop on the current average.
func (r *run) installExits() {
	avg := r.main.AveragePrice()
	side := r.main.Side()

	prices := make([]float64, len(r.s.TakeProfit.Levels))
	for i, lvl := range r.s.TakeProfit.Levels {
		prices[i] = numeric.ApplyPercent(avg, lvl.Percent, side.Sign())
	}
	r.main.RepriceLadder(prices)
	r.main.SetStopPrice(r.stopPrice(avg, side))
	if r.hedgeLive() {
		r.hedge.Refresh(r.main)
	}
}

func (r *run) stopPrice(avg float64, side types.Side) float64 {
	sl := r.s.StopLoss
	var stop float64
	switch strings.ToLower(sl.Mode) {
	case config.StopLossPercent:
		stop = numeric.ApplyPercent(avg, sl.Value, -side.Sign())
	case config.StopLossATR:
		atr, ok := r.bar.ATRValue()
		if !ok {
			r.warn(SiteStopLoss, "ATR unavailable, stop placed %.1f%% from $%.4f", spacing.FallbackPercent, avg)
			stop = numeric.ApplyPercent(avg, spacing.FallbackPercent, -side.Sign())
		} else {
			stop = avg - side.Sign()*atr*sl.Value
		}
	}
	if stop <= 0 {
		return 0
	}
	return stop
}

func (r *run) dcaLevels(ref float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	atr, _ := r.bar.ATRValue()
	levels := r.e.spacing.Ladder(ref, r.main.Side(), n, &spacing.MarketContext{
		CurrentPrice: r.bar.Close,
		ATR:          atr,
		Timestamp:    r.bar.Timestamp,
	})

	prices := make([]float64, len(levels))
	fallback := false
	for i, l := range levels {
		prices[i] = l.Price
		fallback = fallback || l.Fallback
	}
	if fallback {
		r.warn(SiteDCALevel, "ATR unavailable, DCA levels spaced %.1f%% from $%.4f", spacing.FallbackPercent, ref)
	}
	return prices
}

func (r *run) closeMain(price float64, reason position.ExitReason) error {
	side := r.main.Side()
	trade, err := r.main.Close(r.exitFill(side, price), r.bar.Timestamp, reason)
	if err != nil {
		return r.stateErr("close", err)
	}
	trade.ID = r.mainID
	trade.LinkedTradeID = r.mainHedgeID
	r.recordTrade(trade)
	r.hedge.OnMainClosed()
	return nil
}

func (r *run) closeHedge(price float64, reason position.ExitReason) error {
	hside := r.hedge.Position().Side()
	trade, err := r.hedge.Close(r.exitFill(hside, price), r.bar.Timestamp, reason)
	if err != nil {
		return r.stateErr("hedge_close", err)
	}
	trade.ID = r.hedgeID
	trade.LinkedTradeID = r.hedgeMainID
	r.recordTrade(trade)
	return nil
}

// closeOut settles everything still open at the last bar's close.
func (r *run) closeOut() error {
	if r.mainOpen() {
		if err := r.closeMain(r.bar.Close, position.ExitEndOfData); err != nil {
			return err
		}
	}
	if r.hedgeLive() {
		return r.closeHedge(r.bar.Close, position.ExitEndOfData)
	}
	return nil
}

func (r *run) recordTrade(t position.Trade) {
	r.realized += t.PnL
	r.result.Trades = append(r.result.Trades, t)

	side := t.Side.String()
	if t.Hedge {
		side = "HEDGE " + side
	}
	r.e.log.LogTradeClosed(t.ID, side, string(t.ExitReason), t.AveragePrice, t.ExitPrice, t.PnL, t.PnLPercent, t.DCACount)
	r.e.observer.OnTradeClosed(t)
}

func (r *run) recordEquity() {
	balance := r.balance()
	equity := balance
	if r.mainOpen() {
		equity += r.main.OpenPnL(r.bar.Close)
	}
	if r.hedgeLive() {
		equity += r.hedge.Position().OpenPnL(r.bar.Close)
	}
	if equity > r.peak {
		r.peak = equity
	}
	drawdown := 0.0
	if r.peak > 0 {
		drawdown = numeric.ClampNonNegative((r.peak - equity) / r.peak)
	}

	p := EquityPoint{Timestamp: r.bar.Timestamp, Balance: balance, Equity: equity, Drawdown: drawdown}
	r.result.EquityCurve = append(r.result.EquityCurve, p)
	r.e.observer.OnEquity(p)
}

func (r *run) warn(site, format string, args ...interface{}) {
	w := Warning{
		BarIndex:  r.idx,
		Timestamp: r.bar.Timestamp,
		Site:      site,
		Message:   fmt.Sprintf(format, args...),
	}
	r.result.Warnings = append(r.result.Warnings, w)
	r.e.log.Warning("[%s] bar %d %s: %s", site, r.idx, r.bar.Timestamp.Format(time.RFC3339), w.Message)
	r.e.observer.OnWarning(w)
}

func (r *run) stateErr(op string, err error) error {
	return enginerrors.NewStateError("backtest", op, err).
		WithContext("bar", r.idx).
		WithContext("timestamp", r.bar.Timestamp.Format(time.RFC3339))
}

func (r *run) balance() float64 { return r.s.InitialBalance + r.realized }

// availableMargin is the balance not tied up by the open remainder of either position.
func (r *run) availableMargin() float64 {
	used := 0.0
	if r.mainOpen() {
		used += marginInUse(r.main)
	}
	if r.hedgeLive() {
		used += marginInUse(r.hedge.Position())
	}
	return r.balance() - used
}

func marginInUse(p *position.Position) float64 {
	total := p.TotalQuantity()
	if total <= 0 {
		return 0
	}
	return p.TotalInvestment() * p.RemainingQuantity() / total
}

func (r *run) nextTradeID() int {
	r.nextID++
	return r.nextID
}

func (r *run) mainOpen() bool { return r.main != nil && r.main.IsOpen() }

func (r *run) hedgeLive() bool {
	h := r.hedge.Position()
	return h != nil && h.IsOpen()
}

func (r *run) entryFill(side types.Side, price float64) float64 {
	return numeric.ApplyPercent(price, r.s.SlippagePercent, side.Sign())
}

func (r *run) exitFill(side types.Side, price float64) float64 {
	return numeric.ApplyPercent(price, r.s.SlippagePercent, -side.Sign())
}

func touchedFavorable(side types.Side, bar types.Bar, level float64) bool {
	if side == types.SideShort {
		return bar.Low <= level
	}
	return bar.High >= level
}

func touchedAdverse(side types.Side, bar types.Bar, level float64) bool {
	if side == types.SideShort {
		return bar.High >= level
	}
	return bar.Low <= level
}
