package strategy

import (
	"fmt"

	"github.com/tradeforge/backtester/internal/candle"
)

// Combined runs the moving average, RSI, and MACD rules independently on the
// same dataset and trades only when at least two of the three agree on
// direction. Strength is the mean of the three sub-strengths.
type Combined struct {
	dataset *candle.Dataset
	ma      *MACrossover
	rsi     *RSIThreshold
	macd    *MACDCrossover
}

// CombinedSchema declares the union of the sub-strategy parameters under
// prefixed names, with the same bounds and cross-field constraints.
func CombinedSchema() Schema {
	return Schema{
		Params: []ParamSpec{
			{Name: "ma_short", Type: TypeInt, Default: 20, Min: 5, Max: 50, Description: "Period for short moving average"},
			{Name: "ma_long", Type: TypeInt, Default: 50, Min: 20, Max: 200, Description: "Period for long moving average"},
			{Name: "rsi_period", Type: TypeInt, Default: 14, Min: 2, Max: 50, Description: "RSI calculation period"},
			{Name: "rsi_oversold", Type: TypeFloat, Default: 30.0, Min: 10, Max: 40, Description: "RSI oversold threshold"},
			{Name: "rsi_overbought", Type: TypeFloat, Default: 70.0, Min: 60, Max: 90, Description: "RSI overbought threshold"},
			{Name: "macd_fast", Type: TypeInt, Default: 12, Min: 5, Max: 50, Description: "Fast EMA period"},
			{Name: "macd_slow", Type: TypeInt, Default: 26, Min: 10, Max: 100, Description: "Slow EMA period"},
			{Name: "macd_signal", Type: TypeInt, Default: 9, Min: 3, Max: 50, Description: "Signal line period"},
		},
		Cross: []CrossCheck{
			func(ps ParamSet) error {
				if ps.Int("ma_short") >= ps.Int("ma_long") {
					return fmt.Errorf("ma_short (%d) must be less than ma_long (%d)",
						ps.Int("ma_short"), ps.Int("ma_long"))
				}
				return nil
			},
			func(ps ParamSet) error {
				if ps.Float("rsi_oversold") >= ps.Float("rsi_overbought") {
					return fmt.Errorf("rsi_oversold (%g) must be less than rsi_overbought (%g)",
						ps.Float("rsi_oversold"), ps.Float("rsi_overbought"))
				}
				return nil
			},
			func(ps ParamSet) error {
				if ps.Int("macd_fast") >= ps.Int("macd_slow") {
					return fmt.Errorf("macd_fast (%d) must be less than macd_slow (%d)",
						ps.Int("macd_fast"), ps.Int("macd_slow"))
				}
				return nil
			},
		},
	}
}

// NewCombined constructs the strategy and its three sub-strategies from a
// dataset and a validated parameter set.
func NewCombined(ds *candle.Dataset, ps ParamSet) (*Combined, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, fmt.Errorf("%w: no data", candle.ErrInvalidDataset)
	}

	maParams, err := MACrossoverSchema().Validate(map[string]any{
		"short_window": ps.Int("ma_short"),
		"long_window":  ps.Int("ma_long"),
	})
	if err != nil {
		return nil, err
	}
	ma, err := NewMACrossover(ds, maParams)
	if err != nil {
		return nil, err
	}

	rsiParams, err := RSIThresholdSchema().Validate(map[string]any{
		"rsi_period":     ps.Int("rsi_period"),
		"rsi_oversold":   ps.Float("rsi_oversold"),
		"rsi_overbought": ps.Float("rsi_overbought"),
	})
	if err != nil {
		return nil, err
	}
	rsi, err := NewRSIThreshold(ds, rsiParams)
	if err != nil {
		return nil, err
	}

	macdParams, err := MACDCrossoverSchema().Validate(map[string]any{
		"fast_period":   ps.Int("macd_fast"),
		"slow_period":   ps.Int("macd_slow"),
		"signal_period": ps.Int("macd_signal"),
		"use_histogram": false,
	})
	if err != nil {
		return nil, err
	}
	macd, err := NewMACDCrossover(ds, macdParams)
	if err != nil {
		return nil, err
	}

	return &Combined{dataset: ds, ma: ma, rsi: rsi, macd: macd}, nil
}

func (s *Combined) Name() string { return "combined" }

func (s *Combined) WarmupPeriod() int {
	warmup := s.ma.WarmupPeriod()
	if w := s.rsi.WarmupPeriod(); w > warmup {
		warmup = w
	}
	if w := s.macd.WarmupPeriod(); w > warmup {
		warmup = w
	}
	return warmup
}

func (s *Combined) GenerateSignals() ([]Signal, error) {
	maSignals, err := s.ma.GenerateSignals()
	if err != nil {
		return nil, err
	}
	rsiSignals, err := s.rsi.GenerateSignals()
	if err != nil {
		return nil, err
	}
	macdSignals, err := s.macd.GenerateSignals()
	if err != nil {
		return nil, err
	}

	warmup := s.WarmupPeriod()
	signals := make([]Signal, s.dataset.Len())
	for i := range signals {
		signals[i] = Signal{Time: s.dataset.At(i).Timestamp, Action: Hold}

		// No votes count until every sub-strategy's indicators are defined.
		if i < warmup {
			continue
		}

		sub := [3]Signal{maSignals[i], rsiSignals[i], macdSignals[i]}
		var buys, sells int
		var strength float64
		for _, sig := range sub {
			switch sig.Action {
			case Buy:
				buys++
			case Sell:
				sells++
			}
			strength += sig.Strength
		}

		switch {
		case buys >= 2:
			signals[i].Action = Buy
			signals[i].Strength = clampStrength(strength / 3)
			signals[i].Reason = fmt.Sprintf("%d of 3 indicators agree on buy", buys)
		case sells >= 2:
			signals[i].Action = Sell
			signals[i].Strength = clampStrength(strength / 3)
			signals[i].Reason = fmt.Sprintf("%d of 3 indicators agree on sell", sells)
		}
	}
	return signals, nil
}
