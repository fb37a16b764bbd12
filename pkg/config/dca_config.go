package config

// Strategy settings defaults
const (
	DefaultInitialBalance  = 10000.0
	DefaultFeeRate         = 0.0005 // 0.05% per fill
	DefaultSlippagePercent = 0.0
	DefaultLeverage        = 1.0
	DefaultWindowSize      = 50

	DefaultSizingMode     = SizingAmount
	DefaultSizingValue    = 100.0
	DefaultDCAMultiplier  = 1.0
	DefaultDCAMaxCount    = 0
	DefaultDCAMode        = "percentage"
	DefaultDCAValue       = 3.0 // 3%
	DefaultDCAReference   = "initial"
	DefaultSignalName     = "rsi"
	DefaultRSIOversold    = 30.0
	DefaultRSIOverbought  = 70.0
	DefaultStopLossMode   = StopLossNone
	DefaultTrailingMode   = "percent"
	DefaultTrailingValue  = 0.5
	DefaultExitPriority   = ExitPriorityStopFirst
	DefaultHedgeSizeMode  = "percent_of_main"
	DefaultHedgeSizeValue = 50.0

	DefaultATRPeriod            = 14
	DefaultRSIPeriod            = 14
	DefaultSuperTrendPeriod     = 10
	DefaultSuperTrendMultiplier = 3.0

	// Validation bounds
	MaxFeeRate         = 0.1
	MaxSlippagePercent = 10.0
	MaxLeverage        = 125.0
	MaxTPLevels        = 3
	MinIndicatorPeriod = 2
	RatioTolerance     = 1e-9
)

// Enumerations accepted in settings files
const (
	EntryLongOnly  = "long_only"
	EntryShortOnly = "short_only"
	EntryBoth      = "both"

	SizingQuantity       = "quantity"
	SizingAmount         = "amount"
	SizingBalancePercent = "balance_percent"

	StopLossNone    = "none"
	StopLossPercent = "percent"
	StopLossATR     = "atr"

	ExitPriorityStopFirst       = "stop_first"
	ExitPriorityTakeProfitFirst = "take_profit_first"
)

// StrategySettings is the complete, enumerated configuration of one backtest run.
type StrategySettings struct {
	Symbol          string  `json:"symbol" yaml:"symbol"`
	Interval        string  `json:"interval" yaml:"interval"`
	InitialBalance  float64 `json:"initial_balance" yaml:"initial_balance"`
	FeeRate         float64 `json:"fee_rate" yaml:"fee_rate"`
	SlippagePercent float64 `json:"slippage_percent" yaml:"slippage_percent"`
	Leverage        float64 `json:"leverage" yaml:"leverage"`

	Entry        EntrySettings      `json:"entry" yaml:"entry"`
	Signal       SignalSettings     `json:"signal" yaml:"signal"`
	Sizing       SizingSettings     `json:"sizing" yaml:"sizing"`
	TakeProfit   TakeProfitSettings `json:"take_profit" yaml:"take_profit"`
	StopLoss     StopLossSettings   `json:"stop_loss" yaml:"stop_loss"`
	TrailingStop TrailingSettings   `json:"trailing_stop" yaml:"trailing_stop"`
	DCA          DCASettings        `json:"dca" yaml:"dca"`
	Hedge        HedgeSettings      `json:"hedge" yaml:"hedge"`
	TrendExit    TrendExitSettings  `json:"trend_exit" yaml:"trend_exit"`
	Indicators   IndicatorSettings  `json:"indicators" yaml:"indicators"`
	Execution    ExecutionSettings  `json:"execution" yaml:"execution"`
}

// EntrySettings restricts which signals may open a position.
type EntrySettings struct {
	Mode       string `json:"mode" yaml:"mode"`
	WindowSize int    `json:"window_size" yaml:"window_size"`
}

// SignalSettings selects the entry signal generator.
type SignalSettings struct {
	Name          string  `json:"name" yaml:"name"`
	RSIOversold   float64 `json:"rsi_oversold" yaml:"rsi_oversold"`
	RSIOverbought float64 `json:"rsi_overbought" yaml:"rsi_overbought"`
}

// SizingSettings controls the initial entry size and re-entry scaling.
type SizingSettings struct {
	Mode          string  `json:"mode" yaml:"mode"`
	Value         float64 `json:"value" yaml:"value"`
	DCAMultiplier float64 `json:"dca_multiplier" yaml:"dca_multiplier"`
}

// TPLevel is one ladder rung: a percent distance from the average entry and
// the fraction of the total entered quantity it closes.
type TPLevel struct {
	Percent float64 `json:"percent" yaml:"percent"`
	Ratio   float64 `json:"ratio" yaml:"ratio"`
}

// TakeProfitSettings holds the ladder.
type TakeProfitSettings struct {
	Levels []TPLevel `json:"levels" yaml:"levels"`
}

// StopLossSettings holds the protective stop.
type StopLossSettings struct {
	Mode  string  `json:"mode" yaml:"mode"`
	Value float64 `json:"value" yaml:"value"`
}

// TrailingSettings holds the trailing stop.
type TrailingSettings struct {
	Enabled         bool    `json:"enabled" yaml:"enabled"`
	ActivationLevel int     `json:"activation_level" yaml:"activation_level"`
	OffsetMode      string  `json:"offset_mode" yaml:"offset_mode"`
	Value           float64 `json:"value" yaml:"value"`
}

// DCASettings holds the re-entry ladder.
type DCASettings struct {
	MaxCount  int     `json:"max_count" yaml:"max_count"`
	Mode      string  `json:"mode" yaml:"mode"`
	Value     float64 `json:"value" yaml:"value"`
	Reference string  `json:"reference" yaml:"reference"`
}

// HedgeSettings holds the opposite-side sub-position.
type HedgeSettings struct {
	Enabled                   bool    `json:"enabled" yaml:"enabled"`
	Trigger                   int     `json:"trigger" yaml:"trigger"`
	SizeMode                  string  `json:"size_mode" yaml:"size_mode"`
	SizeValue                 float64 `json:"size_value" yaml:"size_value"`
	TPMode                    string  `json:"tp_mode" yaml:"tp_mode"`
	TPValue                   float64 `json:"tp_value" yaml:"tp_value"`
	SLMode                    string  `json:"sl_mode" yaml:"sl_mode"`
	SLValue                   float64 `json:"sl_value" yaml:"sl_value"`
	PyramidingLimit           int     `json:"pyramiding_limit" yaml:"pyramiding_limit"`
	CloseMainOnHedgeTP        bool    `json:"close_main_on_hedge_tp" yaml:"close_main_on_hedge_tp"`
	CloseHedgeOnMainTrendExit bool    `json:"close_hedge_on_main_trend_exit" yaml:"close_hedge_on_main_trend_exit"`
}

// TrendExitSettings toggles the trend-reversal exit.
type TrendExitSettings struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// IndicatorSettings parameterises the indicators the data layer attaches to bars.
type IndicatorSettings struct {
	ATRPeriod            int     `json:"atr_period" yaml:"atr_period"`
	RSIPeriod            int     `json:"rsi_period" yaml:"rsi_period"`
	SuperTrendPeriod     int     `json:"supertrend_period" yaml:"supertrend_period"`
	SuperTrendMultiplier float64 `json:"supertrend_multiplier" yaml:"supertrend_multiplier"`
}

// ExecutionSettings controls fill simulation details.
type ExecutionSettings struct {
	ExitPriority  string  `json:"exit_priority" yaml:"exit_priority"`
	CloseOnFinish bool    `json:"close_on_finish" yaml:"close_on_finish"`
	MinQuantity   float64 `json:"min_quantity" yaml:"min_quantity"`
	QtyStep       float64 `json:"qty_step" yaml:"qty_step"`
}

// NewDefaultSettings returns settings with every default applied.
func NewDefaultSettings() *StrategySettings {
	return &StrategySettings{
		InitialBalance:  DefaultInitialBalance,
		FeeRate:         DefaultFeeRate,
		SlippagePercent: DefaultSlippagePercent,
		Leverage:        DefaultLeverage,
		Entry:           EntrySettings{Mode: EntryLongOnly, WindowSize: DefaultWindowSize},
		Signal: SignalSettings{
			Name:          DefaultSignalName,
			RSIOversold:   DefaultRSIOversold,
			RSIOverbought: DefaultRSIOverbought,
		},
		Sizing: SizingSettings{
			Mode:          DefaultSizingMode,
			Value:         DefaultSizingValue,
			DCAMultiplier: DefaultDCAMultiplier,
		},
		TakeProfit: TakeProfitSettings{Levels: []TPLevel{
			{Percent: 1.0, Ratio: 0.3},
			{Percent: 2.0, Ratio: 0.3},
			{Percent: 3.0, Ratio: 0.4},
		}},
		StopLoss: StopLossSettings{Mode: DefaultStopLossMode},
		TrailingStop: TrailingSettings{
			ActivationLevel: 1,
			OffsetMode:      DefaultTrailingMode,
			Value:           DefaultTrailingValue,
		},
		DCA: DCASettings{
			MaxCount:  DefaultDCAMaxCount,
			Mode:      DefaultDCAMode,
			Value:     DefaultDCAValue,
			Reference: DefaultDCAReference,
		},
		Hedge: HedgeSettings{
			SizeMode:  DefaultHedgeSizeMode,
			SizeValue: DefaultHedgeSizeValue,
			TPMode:    "disabled",
			SLMode:    "disabled",
		},
		Indicators: IndicatorSettings{
			ATRPeriod:            DefaultATRPeriod,
			RSIPeriod:            DefaultRSIPeriod,
			SuperTrendPeriod:     DefaultSuperTrendPeriod,
			SuperTrendMultiplier: DefaultSuperTrendMultiplier,
		},
		Execution: ExecutionSettings{
			ExitPriority:  DefaultExitPriority,
			CloseOnFinish: true,
		},
	}
}

// Clone returns a deep copy.
func (s *StrategySettings) Clone() *StrategySettings {
	c := *s
	c.TakeProfit.Levels = append([]TPLevel(nil), s.TakeProfit.Levels...)
	return &c
}

// TotalTPRatio sums the ladder ratios.
func (s *StrategySettings) TotalTPRatio() float64 {
	sum := 0.0
	for _, l := range s.TakeProfit.Levels {
		sum += l.Ratio
	}
	return sum
}
