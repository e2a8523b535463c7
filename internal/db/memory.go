package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tradeforge/backtester/internal/backtest"
	"github.com/tradeforge/backtester/internal/candle"
)

// Memory is an in-process Storage for tests and runs without a database.
type Memory struct {
	mu      sync.RWMutex
	candles map[string][]candle.Candle
	results []*backtest.Result
}

func NewMemory() *Memory {
	return &Memory{candles: make(map[string][]candle.Candle)}
}

func candleKey(symbol, timeframe string) string {
	return symbol + "|" + timeframe
}

func (m *Memory) SaveCandles(ctx context.Context, candles []candle.Candle) error {
	for i := range candles {
		if err := candles[i].Validate(); err != nil {
			return fmt.Errorf("invalid candle at index %d: %w", i, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range candles {
		key := candleKey(c.Symbol, c.Timeframe)

		// Upsert on timestamp+source, mirroring the postgres conflict key.
		replaced := false
		for i, existing := range m.candles[key] {
			if existing.Timestamp.Equal(c.Timestamp) && existing.Source == c.Source {
				m.candles[key][i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			m.candles[key] = append(m.candles[key], c)
		}
	}
	for key := range m.candles {
		sort.Slice(m.candles[key], func(i, j int) bool {
			return m.candles[key][i].Timestamp.Before(m.candles[key][j].Timestamp)
		})
	}
	return nil
}

func (m *Memory) GetCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []candle.Candle
	for _, c := range m.candles[candleKey(symbol, timeframe)] {
		if !c.Timestamp.Before(start) && c.Timestamp.Before(end) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Memory) SaveResult(ctx context.Context, res *backtest.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *res
	m.results = append(m.results, &cp)
	return nil
}

func (m *Memory) GetResultSummaries(ctx context.Context, strategy string, limit int) ([]ResultSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	sorted := make([]*backtest.Result, len(m.results))
	copy(sorted, m.results)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RanAt.After(sorted[j].RanAt) })

	var summaries []ResultSummary
	for _, r := range sorted {
		if strategy != "" && r.Strategy != strategy {
			continue
		}
		summaries = append(summaries, ResultSummary{
			ID:               r.ID,
			Strategy:         r.Strategy,
			Symbol:           r.Symbol,
			Timeframe:        r.Timeframe,
			RanAt:            r.RanAt,
			TotalReturn:      r.Metrics.TotalReturn,
			AnnualizedReturn: r.Metrics.AnnualizedReturn,
			SharpeRatio:      r.Metrics.SharpeRatio,
			MaxDrawdown:      r.Metrics.MaxDrawdown,
			WinRate:          r.Metrics.WinRate,
			TradeCount:       r.Metrics.TradeCount,
		})
		if len(summaries) == limit {
			break
		}
	}
	return summaries, nil
}

func (m *Memory) Close() error { return nil }
