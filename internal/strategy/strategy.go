// Package strategy defines the Strategy interface for rule-based trading
// strategies, the parameter schema and validation contract they share, and a
// Registry for looking them up and constructing validated instances.
package strategy

import (
	"errors"
	"time"

	"github.com/tradeforge/backtester/internal/candle"
)

var (
	// ErrInvalidParameter marks a schema violation: a missing value without a
	// default, a failed type coercion, a value outside its bounds, or a failed
	// cross-field constraint.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrStrategyNotFound marks a registry lookup of an unregistered name.
	ErrStrategyNotFound = errors.New("strategy not found")
)

// Action is the direction of a trading signal.
type Action int8

const (
	Buy  Action = 1
	Sell Action = -1
	Hold Action = 0
)

// Signal is one strategy decision, aligned one-to-one with the dataset bar it
// was generated from. Strength is conviction in [-1, 1]; zero for Hold.
type Signal struct {
	Time     time.Time `json:"time"`
	Action   Action    `json:"action"`
	Strength float64   `json:"strength"`
	Reason   string    `json:"reason,omitempty"`
}

// Strategy is the interface for all trading strategies. A strategy is
// constructed from an immutable dataset plus a validated parameter set and
// emits one signal per dataset bar. Bars inside the indicator warm-up window
// are always Hold; a strategy never trades on undefined indicator values.
type Strategy interface {
	Name() string
	WarmupPeriod() int
	GenerateSignals() ([]Signal, error)
}

// holdAll returns an all-Hold signal slice aligned with the dataset, the
// fallback for datasets shorter than a strategy's warm-up window.
func holdAll(ds *candle.Dataset) []Signal {
	signals := make([]Signal, ds.Len())
	for i := range signals {
		signals[i] = Signal{Time: ds.At(i).Timestamp, Action: Hold, Reason: "warming up"}
	}
	return signals
}

// clampStrength bounds a conviction value to [-1, 1].
func clampStrength(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
