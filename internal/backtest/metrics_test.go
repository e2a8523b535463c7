package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeCurve(totals []float64) []EquityPoint {
	times := makeTimes(len(totals))
	curve := make([]EquityPoint, len(totals))
	for i, v := range totals {
		curve[i] = EquityPoint{Time: times[i], Cash: v, Total: v}
	}
	return curve
}

func makeTrade(entry, exit float64, durationDays int) Trade {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return Trade{
		EntryTime:  start,
		ExitTime:   start.AddDate(0, 0, durationDays),
		EntryPrice: entry,
		ExitPrice:  exit,
		Shares:     10,
		Return:     (exit - entry) / entry,
		Side:       "long",
	}
}

func TestComputeMetricsFlatCurve(t *testing.T) {
	m := ComputeMetrics(makeCurve([]float64{10000, 10000, 10000, 10000}), nil, 10000, 0, 252)

	assert.Zero(t, m.TotalReturn)
	assert.Zero(t, m.AnnualizedReturn)
	assert.Zero(t, m.SharpeRatio)
	assert.Zero(t, m.SortinoRatio)
	assert.Zero(t, m.MaxDrawdown)
	assert.Zero(t, m.WinRate)
	assert.Zero(t, m.ProfitFactor)
	assert.Zero(t, m.TradeCount)
}

func TestComputeMetricsEmptyCurve(t *testing.T) {
	m := ComputeMetrics(nil, nil, 10000, 0, 252)
	assert.Zero(t, m.TotalReturn)
	assert.Zero(t, m.MaxDrawdown)
}

func TestComputeMetricsTotalReturn(t *testing.T) {
	m := ComputeMetrics(makeCurve([]float64{10000, 10500, 11000}), nil, 10000, 0, 252)
	assert.InDelta(t, 0.10, m.TotalReturn, 1e-12)
}

func TestComputeMetricsMaxDrawdown(t *testing.T) {
	m := ComputeMetrics(makeCurve([]float64{100, 120, 90, 110}), nil, 100, 0, 252)
	assert.InDelta(t, -0.25, m.MaxDrawdown, 1e-12)
}

func TestComputeMetricsSharpe(t *testing.T) {
	// Period returns 0.1, -0.1, 0.1: mean 1/30, sample std 0.11547.
	m := ComputeMetrics(makeCurve([]float64{100, 110, 99, 108.9}), nil, 100, 0, 252)

	assert.InDelta(t, (1.0/30)*252, m.AnnualizedReturn, 1e-9)
	wantSharpe := m.AnnualizedReturn / (0.115470053837925 * math.Sqrt(252))
	assert.InDelta(t, wantSharpe, m.SharpeRatio, 1e-6)

	// A single negative return is not enough for a downside deviation.
	assert.Zero(t, m.SortinoRatio)
}

func TestComputeMetricsSortino(t *testing.T) {
	// Two distinct negative returns give a nonzero downside deviation.
	m := ComputeMetrics(makeCurve([]float64{100, 110, 99, 84.15, 92.565}), nil, 100, 0, 252)
	assert.NotZero(t, m.SortinoRatio)
}

func TestComputeMetricsProfitFactor(t *testing.T) {
	t.Run("winners and no losers is infinite", func(t *testing.T) {
		trades := []Trade{makeTrade(100, 110, 1)}
		m := ComputeMetrics(makeCurve([]float64{10000, 11000}), trades, 10000, 0, 252)
		assert.True(t, math.IsInf(m.ProfitFactor, 1))
		assert.Equal(t, 1.0, m.WinRate)
	})

	t.Run("mixed trades", func(t *testing.T) {
		trades := []Trade{
			makeTrade(100, 120, 1), // +0.20
			makeTrade(100, 90, 1),  // -0.10
		}
		m := ComputeMetrics(makeCurve([]float64{10000, 10800}), trades, 10000, 0, 252)
		assert.InDelta(t, 2.0, m.ProfitFactor, 1e-12)
		assert.InDelta(t, 0.5, m.WinRate, 1e-12)
	})

	t.Run("empty ledger", func(t *testing.T) {
		m := ComputeMetrics(makeCurve([]float64{10000, 10000}), nil, 10000, 0, 252)
		assert.Zero(t, m.WinRate)
		assert.Zero(t, m.ProfitFactor)
	})
}

func TestComputeMetricsConsecutiveRuns(t *testing.T) {
	trades := []Trade{
		makeTrade(100, 110, 1),
		makeTrade(100, 90, 1),
		makeTrade(100, 95, 1),
		makeTrade(100, 105, 1),
		makeTrade(100, 99, 1),
		makeTrade(100, 98, 1),
		makeTrade(100, 97, 1),
	}
	m := ComputeMetrics(makeCurve([]float64{10000, 10000}), trades, 10000, 0, 252)

	assert.Equal(t, 3, m.MaxConsecutiveLosses)
	assert.Equal(t, 1, m.MaxConsecutiveWins)
	assert.Equal(t, 7, m.TradeCount)
}

func TestComputeMetricsCommissionAndAverages(t *testing.T) {
	trades := []Trade{
		makeTrade(100, 110, 2),
		makeTrade(110, 99, 4),
	}
	m := ComputeMetrics(makeCurve([]float64{10000, 10000}), trades, 10000, 0.01, 252)

	// Each trade: shares * (entry + exit) * rate.
	want := 10*(100+110)*0.01 + 10*(110+99)*0.01
	assert.InDelta(t, want, m.CommissionPaid, 1e-9)

	assert.Equal(t, 3*24*time.Hour, m.AvgTradeDuration)
	assert.InDelta(t, (0.10-0.10)/2, m.AvgProfitPerTrade, 1e-12)
}

func TestPeriodReturnsOmitFirstBar(t *testing.T) {
	returns := periodReturns(makeCurve([]float64{100, 110, 121}))
	require.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[0], 1e-12)
	assert.InDelta(t, 0.10, returns[1], 1e-12)
}
