package strategy

import (
	"fmt"

	"github.com/tradeforge/backtester/internal/candle"
	"github.com/tradeforge/backtester/internal/indicator"
)

// MACDCrossover generates signals on crossovers of the MACD line and its
// signal line. With histogram confirmation enabled, a Buy is only accepted
// while the histogram is rising and a Sell only while it is falling.
type MACDCrossover struct {
	dataset      *candle.Dataset
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
	useHistogram bool
}

// MACDCrossoverSchema declares the tunable parameters of the MACD crossover
// strategy.
func MACDCrossoverSchema() Schema {
	return Schema{
		Params: []ParamSpec{
			{Name: "fast_period", Type: TypeInt, Default: 12, Min: 5, Max: 50, Description: "Fast EMA period"},
			{Name: "slow_period", Type: TypeInt, Default: 26, Min: 10, Max: 100, Description: "Slow EMA period"},
			{Name: "signal_period", Type: TypeInt, Default: 9, Min: 3, Max: 50, Description: "Signal line period"},
			{Name: "use_histogram", Type: TypeBool, Default: true, Description: "Require histogram direction confirmation"},
		},
		Cross: []CrossCheck{
			func(ps ParamSet) error {
				if ps.Int("fast_period") >= ps.Int("slow_period") {
					return fmt.Errorf("fast_period (%d) must be less than slow_period (%d)",
						ps.Int("fast_period"), ps.Int("slow_period"))
				}
				return nil
			},
		},
	}
}

// NewMACDCrossover constructs the strategy from a dataset and a validated
// parameter set.
func NewMACDCrossover(ds *candle.Dataset, ps ParamSet) (*MACDCrossover, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, fmt.Errorf("%w: no data", candle.ErrInvalidDataset)
	}
	return &MACDCrossover{
		dataset:      ds,
		fastPeriod:   ps.Int("fast_period"),
		slowPeriod:   ps.Int("slow_period"),
		signalPeriod: ps.Int("signal_period"),
		useHistogram: ps.Bool("use_histogram"),
	}, nil
}

func (s *MACDCrossover) Name() string { return "macd_crossover" }

func (s *MACDCrossover) WarmupPeriod() int { return s.slowPeriod + s.signalPeriod }

func (s *MACDCrossover) GenerateSignals() ([]Signal, error) {
	ds := s.dataset
	closes := ds.Closes()

	macd := indicator.CalculateMACD(closes, s.fastPeriod, s.slowPeriod, s.signalPeriod)
	if macd == nil {
		return holdAll(ds), nil
	}

	signals := make([]Signal, ds.Len())
	for i := range signals {
		signals[i] = Signal{Time: ds.At(i).Timestamp, Action: Hold}

		if !indicator.Defined(macd.Signal, i) || !indicator.Defined(macd.Signal, i-1) {
			continue
		}

		prevDiff := macd.Line[i-1] - macd.Signal[i-1]
		currDiff := macd.Line[i] - macd.Signal[i]
		histRising := macd.Histogram[i] > macd.Histogram[i-1]
		histFalling := macd.Histogram[i] < macd.Histogram[i-1]

		switch {
		case prevDiff <= 0 && currDiff > 0:
			if s.useHistogram && !histRising {
				continue
			}
			signals[i].Action = Buy
			signals[i].Strength = clampStrength(macd.Histogram[i] / closes[i])
			signals[i].Reason = "MACD crossed above signal line"
		case prevDiff >= 0 && currDiff < 0:
			if s.useHistogram && !histFalling {
				continue
			}
			signals[i].Action = Sell
			signals[i].Strength = clampStrength(macd.Histogram[i] / closes[i])
			signals[i].Reason = "MACD crossed below signal line"
		}
	}
	return signals, nil
}
