package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeforge/backtester/internal/strategy"
)

func makeSignals(actions []strategy.Action) []strategy.Signal {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	signals := make([]strategy.Signal, len(actions))
	for i, a := range actions {
		signals[i] = strategy.Signal{Time: start.AddDate(0, 0, i), Action: a}
	}
	return signals
}

func TestApplyRiskValidatesThresholds(t *testing.T) {
	signals := makeSignals([]strategy.Action{strategy.Hold})
	closes := []float64{100}

	for _, tc := range []struct{ sl, tp float64 }{
		{0, 0.1},
		{1, 0.1},
		{-0.05, 0.1},
		{0.05, 0},
		{0.05, 1},
		{0.05, 1.5},
	} {
		_, err := ApplyRisk(signals, closes, tc.sl, tc.tp)
		assert.ErrorIs(t, err, strategy.ErrInvalidParameter, "sl=%g tp=%g", tc.sl, tc.tp)
	}
}

func TestApplyRiskStopLoss(t *testing.T) {
	// Entry at 100 with 5% stop: the first close at or below 95 must force
	// a Sell even though the strategy holds.
	signals := makeSignals([]strategy.Action{strategy.Buy, strategy.Hold, strategy.Hold, strategy.Hold})
	closes := []float64{100, 98, 94, 96}

	out, err := ApplyRisk(signals, closes, 0.05, 0.5)
	require.NoError(t, err)

	assert.Equal(t, strategy.Buy, out[0].Action)
	assert.Equal(t, strategy.Hold, out[1].Action)
	assert.Equal(t, strategy.Sell, out[2].Action)
	assert.Contains(t, out[2].Reason, "stop-loss")
	assert.Equal(t, strategy.Hold, out[3].Action)
}

func TestApplyRiskOverridesBuySignal(t *testing.T) {
	signals := makeSignals([]strategy.Action{strategy.Buy, strategy.Buy})
	closes := []float64{100, 90}

	out, err := ApplyRisk(signals, closes, 0.05, 0.5)
	require.NoError(t, err)
	assert.Equal(t, strategy.Sell, out[1].Action)
}

func TestApplyRiskTakeProfit(t *testing.T) {
	signals := makeSignals([]strategy.Action{strategy.Buy, strategy.Hold, strategy.Hold})
	closes := []float64{100, 105, 111}

	out, err := ApplyRisk(signals, closes, 0.05, 0.1)
	require.NoError(t, err)

	assert.Equal(t, strategy.Hold, out[1].Action)
	assert.Equal(t, strategy.Sell, out[2].Action)
	assert.Contains(t, out[2].Reason, "take-profit")
}

func TestApplyRiskHonorsStrategySell(t *testing.T) {
	// A strategy Sell inside the thresholds closes the position; a later
	// stop level relative to the old entry must not fire.
	signals := makeSignals([]strategy.Action{strategy.Buy, strategy.Sell, strategy.Hold, strategy.Buy, strategy.Hold})
	closes := []float64{100, 99, 90, 90, 89}

	out, err := ApplyRisk(signals, closes, 0.05, 0.5)
	require.NoError(t, err)

	assert.Equal(t, strategy.Sell, out[1].Action)
	assert.Equal(t, strategy.Hold, out[2].Action, "no position, no stop")
	assert.Equal(t, strategy.Buy, out[3].Action, "re-entry at 90")
	assert.Equal(t, strategy.Hold, out[4].Action, "89 is above the new 85.5 stop")
}

func TestApplyRiskDoesNotMutateInput(t *testing.T) {
	signals := makeSignals([]strategy.Action{strategy.Buy, strategy.Hold})
	closes := []float64{100, 90}

	_, err := ApplyRisk(signals, closes, 0.05, 0.5)
	require.NoError(t, err)
	assert.Equal(t, strategy.Hold, signals[1].Action)
}
