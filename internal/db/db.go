// Package db persists candles and backtest results.
package db

import (
	"context"
	"time"

	"github.com/tradeforge/backtester/internal/backtest"
	"github.com/tradeforge/backtester/internal/candle"
)

// ResultSummary is the scalar slice of a stored backtest result, used for
// listing past runs without loading full curves and ledgers.
type ResultSummary struct {
	ID               string    `json:"id"`
	Strategy         string    `json:"strategy"`
	Symbol           string    `json:"symbol"`
	Timeframe        string    `json:"timeframe"`
	RanAt            time.Time `json:"ran_at"`
	TotalReturn      float64   `json:"total_return"`
	AnnualizedReturn float64   `json:"annualized_return"`
	SharpeRatio      float64   `json:"sharpe_ratio"`
	MaxDrawdown      float64   `json:"max_drawdown"`
	WinRate          float64   `json:"win_rate"`
	TradeCount       int       `json:"trade_count"`
}

// Storage is the interface for all persistent storage.
type Storage interface {
	SaveCandles(ctx context.Context, candles []candle.Candle) error
	GetCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error)
	SaveResult(ctx context.Context, res *backtest.Result) error
	GetResultSummaries(ctx context.Context, strategy string, limit int) ([]ResultSummary, error)
	Close() error
}
