package db

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeforge/backtester/internal/backtest"
	"github.com/tradeforge/backtester/internal/candle"
	"github.com/tradeforge/backtester/internal/db/conf"
)

func testCandles(n int) []candle.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]candle.Candle, n)
	for i := range candles {
		price := 100.0 + float64(i)
		candles[i] = candle.Candle{
			Timestamp: start.AddDate(0, 0, i),
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    10,
			Symbol:    "BTCUSDT",
			Timeframe: "1d",
			Source:    "test",
		}
	}
	return candles
}

func testResult(strategy string, ranAt time.Time) *backtest.Result {
	return &backtest.Result{
		ID:        "run-" + strategy + "-" + ranAt.Format("20060102150405"),
		Strategy:  strategy,
		Symbol:    "BTCUSDT",
		Timeframe: "1d",
		Params:    map[string]any{"short_window": 5},
		RanAt:     ranAt,
		Trades: []backtest.Trade{
			{EntryTime: ranAt, ExitTime: ranAt.Add(time.Hour), EntryPrice: 100, ExitPrice: 110, Shares: 1, Return: 0.1, Side: "long"},
		},
		Metrics: backtest.Metrics{
			TotalReturn:  0.1,
			SharpeRatio:  1.5,
			MaxDrawdown:  -0.05,
			WinRate:      1,
			ProfitFactor: math.Inf(1),
			TradeCount:   1,
		},
	}
}

func TestPostgresCandleRoundTrip(t *testing.T) {
	cfg, cleanup := conf.NewTestConfig(t)
	defer cleanup()
	store := NewPostgresFromDB(cfg.DB)

	ctx := context.Background()
	candles := testCandles(5)
	require.NoError(t, store.SaveCandles(ctx, candles))

	got, err := store.GetCandles(ctx, "BTCUSDT", "1d",
		candles[0].Timestamp, candles[4].Timestamp.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, candles[0].Close, got[0].Close)
	assert.True(t, got[0].Timestamp.Equal(candles[0].Timestamp))

	// Upsert: saving again with changed closes replaces rows.
	candles[2].Close = 999
	candles[2].High = 1000
	require.NoError(t, store.SaveCandles(ctx, candles))

	got, err = store.GetCandles(ctx, "BTCUSDT", "1d",
		candles[0].Timestamp, candles[4].Timestamp.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, 999.0, got[2].Close)
}

func TestPostgresRejectsInvalidCandle(t *testing.T) {
	cfg, cleanup := conf.NewTestConfig(t)
	defer cleanup()
	store := NewPostgresFromDB(cfg.DB)

	bad := testCandles(1)
	bad[0].Close = -1
	assert.Error(t, store.SaveCandles(context.Background(), bad))
}

func TestPostgresResultSummaries(t *testing.T) {
	cfg, cleanup := conf.NewTestConfig(t)
	defer cleanup()
	store := NewPostgresFromDB(cfg.DB)

	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveResult(ctx, testResult("ma_crossover", base)))
	require.NoError(t, store.SaveResult(ctx, testResult("rsi_threshold", base.Add(time.Hour))))

	all, err := store.GetResultSummaries(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "rsi_threshold", all[0].Strategy, "newest first")

	filtered, err := store.GetResultSummaries(ctx, "ma_crossover", 10)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.InDelta(t, 0.1, filtered[0].TotalReturn, 1e-12)
	assert.Equal(t, 1, filtered[0].TradeCount)
}
