package strategy

import (
	"fmt"

	"github.com/tradeforge/backtester/internal/candle"
	"github.com/tradeforge/backtester/internal/indicator"
)

// MACrossover generates a Buy signal on the bar where the short-window mean
// first crosses above the long-window mean, and Sell on the reverse
// crossover. Equality at the crossing bar counts as not yet crossed.
type MACrossover struct {
	dataset     *candle.Dataset
	shortWindow int
	longWindow  int
}

// MACrossoverSchema declares the tunable parameters of the moving average
// crossover strategy.
func MACrossoverSchema() Schema {
	return Schema{
		Params: []ParamSpec{
			{Name: "short_window", Type: TypeInt, Default: 20, Min: 5, Max: 50, Description: "Period for short moving average"},
			{Name: "long_window", Type: TypeInt, Default: 50, Min: 20, Max: 200, Description: "Period for long moving average"},
		},
		Cross: []CrossCheck{
			func(ps ParamSet) error {
				if ps.Int("short_window") >= ps.Int("long_window") {
					return fmt.Errorf("short_window (%d) must be less than long_window (%d)",
						ps.Int("short_window"), ps.Int("long_window"))
				}
				return nil
			},
		},
	}
}

// NewMACrossover constructs the strategy from a dataset and a validated
// parameter set.
func NewMACrossover(ds *candle.Dataset, ps ParamSet) (*MACrossover, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, fmt.Errorf("%w: no data", candle.ErrInvalidDataset)
	}
	return &MACrossover{
		dataset:     ds,
		shortWindow: ps.Int("short_window"),
		longWindow:  ps.Int("long_window"),
	}, nil
}

func (s *MACrossover) Name() string { return "ma_crossover" }

// WarmupPeriod returns the number of bars before the first possible signal:
// both means plus the previous bar needed for crossover detection.
func (s *MACrossover) WarmupPeriod() int { return s.longWindow }

func (s *MACrossover) GenerateSignals() ([]Signal, error) {
	ds := s.dataset
	closes := ds.Closes()

	shortMA := indicator.CalculateSMA(closes, s.shortWindow)
	longMA := indicator.CalculateSMA(closes, s.longWindow)
	if shortMA == nil || longMA == nil {
		return holdAll(ds), nil
	}

	signals := make([]Signal, ds.Len())
	for i := range signals {
		signals[i] = Signal{Time: ds.At(i).Timestamp, Action: Hold}

		if !indicator.Defined(longMA, i) || !indicator.Defined(longMA, i-1) {
			continue
		}

		prevDiff := shortMA[i-1] - longMA[i-1]
		currDiff := shortMA[i] - longMA[i]
		switch {
		case prevDiff <= 0 && currDiff > 0:
			signals[i].Action = Buy
			signals[i].Strength = clampStrength(currDiff / longMA[i])
			signals[i].Reason = "short MA crossed above long MA"
		case prevDiff >= 0 && currDiff < 0:
			signals[i].Action = Sell
			signals[i].Strength = clampStrength(currDiff / longMA[i])
			signals[i].Reason = "short MA crossed below long MA"
		}
	}
	return signals, nil
}
