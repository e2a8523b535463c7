package strategy

import (
	"fmt"

	"github.com/tradeforge/backtester/internal/candle"
	"github.com/tradeforge/backtester/internal/indicator"
)

// RSIThreshold generates a Buy signal when RSI crosses down into the oversold
// zone and a Sell signal when it crosses up out of the overbought zone.
type RSIThreshold struct {
	dataset    *candle.Dataset
	period     int
	oversold   float64
	overbought float64
}

// RSIThresholdSchema declares the tunable parameters of the RSI threshold
// strategy, including the cross-field requirement that the oversold level
// stays below the overbought level.
func RSIThresholdSchema() Schema {
	return Schema{
		Params: []ParamSpec{
			{Name: "rsi_period", Type: TypeInt, Default: 14, Min: 2, Max: 50, Description: "RSI calculation period"},
			{Name: "rsi_oversold", Type: TypeFloat, Default: 30.0, Min: 10, Max: 40, Description: "RSI oversold threshold"},
			{Name: "rsi_overbought", Type: TypeFloat, Default: 70.0, Min: 60, Max: 90, Description: "RSI overbought threshold"},
		},
		Cross: []CrossCheck{
			func(ps ParamSet) error {
				if ps.Float("rsi_oversold") >= ps.Float("rsi_overbought") {
					return fmt.Errorf("rsi_oversold (%g) must be less than rsi_overbought (%g)",
						ps.Float("rsi_oversold"), ps.Float("rsi_overbought"))
				}
				return nil
			},
		},
	}
}

// NewRSIThreshold constructs the strategy from a dataset and a validated
// parameter set.
func NewRSIThreshold(ds *candle.Dataset, ps ParamSet) (*RSIThreshold, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, fmt.Errorf("%w: no data", candle.ErrInvalidDataset)
	}
	return &RSIThreshold{
		dataset:    ds,
		period:     ps.Int("rsi_period"),
		oversold:   ps.Float("rsi_oversold"),
		overbought: ps.Float("rsi_overbought"),
	}, nil
}

func (s *RSIThreshold) Name() string { return "rsi_threshold" }

func (s *RSIThreshold) WarmupPeriod() int { return s.period }

// strength measures how deep the RSI sits inside the triggering zone,
// signed by trade direction.
func (s *RSIThreshold) strength(rsi float64) float64 {
	if rsi < s.oversold {
		return clampStrength((s.oversold - rsi) / s.oversold)
	}
	if rsi > s.overbought {
		return clampStrength(-(rsi - s.overbought) / (100 - s.overbought))
	}
	return 0
}

func (s *RSIThreshold) GenerateSignals() ([]Signal, error) {
	ds := s.dataset
	rsi := indicator.CalculateRSI(ds.Closes(), s.period)
	if rsi == nil {
		return holdAll(ds), nil
	}

	signals := make([]Signal, ds.Len())
	for i := range signals {
		signals[i] = Signal{Time: ds.At(i).Timestamp, Action: Hold}

		if !indicator.Defined(rsi, i) || !indicator.Defined(rsi, i-1) {
			continue
		}

		switch {
		case rsi[i-1] >= s.oversold && rsi[i] < s.oversold:
			signals[i].Action = Buy
			signals[i].Strength = s.strength(rsi[i])
			signals[i].Reason = fmt.Sprintf("RSI crossed below oversold (%.1f)", s.oversold)
		case rsi[i-1] <= s.overbought && rsi[i] > s.overbought:
			signals[i].Action = Sell
			signals[i].Strength = s.strength(rsi[i])
			signals[i].Reason = fmt.Sprintf("RSI crossed above overbought (%.1f)", s.overbought)
		}
	}
	return signals, nil
}
