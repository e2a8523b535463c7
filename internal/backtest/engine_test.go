package backtest

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeforge/backtester/internal/candle"
	"github.com/tradeforge/backtester/internal/strategy"
)

func trendDataset(t *testing.T, n int) *candle.Dataset {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]candle.Candle, n)
	for i := range candles {
		price := 100 + 0.3*float64(i) + 12*math.Sin(float64(i)/5)
		candles[i] = candle.Candle{
			Timestamp: start.AddDate(0, 0, i),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    1,
			Symbol:    "BTCUSDT",
			Timeframe: "1d",
		}
	}
	ds, err := candle.NewDataset(candles)
	require.NoError(t, err)
	return ds
}

func testEngine() *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(strategy.NewDefaultRegistry(logger), logger)
}

func baseConfig() RunConfig {
	return RunConfig{
		Strategy: "ma_crossover",
		Params: map[string]any{
			"short_window": 5,
			"long_window":  20,
		},
		InitialCapital: 10000,
		StopLoss:       0.05,
		TakeProfit:     0.10,
		PositionSize:   1.0,
		CommissionRate: 0.001,
	}
}

func TestEngineRun(t *testing.T) {
	ds := trendDataset(t, 150)
	res, err := testEngine().Run(ds, baseConfig())
	require.NoError(t, err)

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "ma_crossover", res.Strategy)
	assert.Equal(t, "BTCUSDT", res.Symbol)
	assert.Len(t, res.Signals, ds.Len())
	assert.Len(t, res.EquityCurve, ds.Len())

	// Warm-up bars never trade.
	for i := 0; i < 20; i++ {
		assert.Equal(t, strategy.Hold, res.Signals[i].Action, "bar %d", i)
	}

	// Every Buy transition into a position appears exactly once in the
	// ledger, with a non-zero exit.
	var entries int
	holding := false
	for _, sig := range res.Signals {
		switch sig.Action {
		case strategy.Buy:
			if !holding {
				entries++
				holding = true
			}
		case strategy.Sell:
			holding = false
		}
	}
	assert.Equal(t, entries, len(res.Trades))
	for _, tr := range res.Trades {
		assert.False(t, tr.ExitTime.IsZero())
		assert.False(t, tr.ExitTime.Before(tr.EntryTime))
	}
	assert.Equal(t, len(res.Trades), res.Metrics.TradeCount)
}

func TestEngineRunIsDeterministic(t *testing.T) {
	ds := trendDataset(t, 150)
	e := testEngine()

	first, err := e.Run(ds, baseConfig())
	require.NoError(t, err)
	second, err := e.Run(ds, baseConfig())
	require.NoError(t, err)

	assert.Equal(t, first.Metrics, second.Metrics)
	assert.Equal(t, first.Signals, second.Signals)
	assert.Equal(t, first.Trades, second.Trades)
	assert.Equal(t, first.EquityCurve, second.EquityCurve)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestEngineRunErrors(t *testing.T) {
	ds := trendDataset(t, 150)
	e := testEngine()

	t.Run("unknown strategy", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Strategy = "momentum"
		_, err := e.Run(ds, cfg)
		assert.ErrorIs(t, err, strategy.ErrStrategyNotFound)
	})

	t.Run("bad scalar", func(t *testing.T) {
		cfg := baseConfig()
		cfg.PositionSize = 2
		_, err := e.Run(ds, cfg)
		assert.ErrorIs(t, err, strategy.ErrInvalidParameter)
	})

	t.Run("bad stop loss", func(t *testing.T) {
		cfg := baseConfig()
		cfg.StopLoss = 1.5
		_, err := e.Run(ds, cfg)
		assert.ErrorIs(t, err, strategy.ErrInvalidParameter)
	})

	t.Run("bad strategy params", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Params = map[string]any{"short_window": 30, "long_window": 20}
		_, err := e.Run(ds, cfg)
		assert.ErrorIs(t, err, strategy.ErrInvalidParameter)
	})

	t.Run("nil dataset", func(t *testing.T) {
		_, err := e.Run(nil, baseConfig())
		assert.ErrorIs(t, err, candle.ErrInvalidDataset)
	})
}

func TestEngineRunWithoutRiskOverlay(t *testing.T) {
	ds := trendDataset(t, 150)
	cfg := baseConfig()
	cfg.StopLoss = 0
	cfg.TakeProfit = 0

	res, err := testEngine().Run(ds, cfg)
	require.NoError(t, err)

	// No overlay means no stop-loss or take-profit exit reasons.
	for _, tr := range res.Trades {
		assert.NotContains(t, tr.ExitReason, "stop-loss")
		assert.NotContains(t, tr.ExitReason, "take-profit")
	}
}

func TestEngineSweep(t *testing.T) {
	ds := trendDataset(t, 150)
	e := testEngine()

	grid := []map[string]any{
		{"short_window": 5, "long_window": 20},
		{"short_window": 10, "long_window": 30},
		{"short_window": 15, "long_window": 40},
	}

	results, err := e.Sweep(context.Background(), ds, baseConfig(), grid, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, res := range results {
		require.NotNil(t, res, "result %d", i)
		assert.Equal(t, grid[i], res.Params)
	}

	best := BestBy(results, func(m Metrics) float64 { return m.TotalReturn })
	require.NotNil(t, best)
	for _, res := range results {
		assert.GreaterOrEqual(t, best.Metrics.TotalReturn, res.Metrics.TotalReturn)
	}
}

func TestEngineSweepPropagatesErrors(t *testing.T) {
	ds := trendDataset(t, 150)
	e := testEngine()

	grid := []map[string]any{
		{"short_window": 5, "long_window": 20},
		{"short_window": 50, "long_window": 20}, // cross-field violation
	}

	_, err := e.Sweep(context.Background(), ds, baseConfig(), grid, 2)
	assert.ErrorIs(t, err, strategy.ErrInvalidParameter)
}

func TestEngineSweepEmptyGrid(t *testing.T) {
	ds := trendDataset(t, 150)
	results, err := testEngine().Sweep(context.Background(), ds, baseConfig(), nil, 2)
	require.NoError(t, err)
	assert.Nil(t, results)
}
