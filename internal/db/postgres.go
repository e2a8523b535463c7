package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/tradeforge/backtester/internal/backtest"
	"github.com/tradeforge/backtester/internal/candle"
)

type txKey struct{}

// WithTransaction adds a transaction to the context.
func WithTransaction(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// GetTransaction retrieves a transaction from context, or returns nil if not present.
func GetTransaction(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return nil
}

// Postgres stores candles and backtest results in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres connects with the given DSN and verifies the connection.
func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

// NewPostgresFromDB wraps an existing connection, used by tests.
func NewPostgresFromDB(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) GetDB() *sql.DB { return p.db }

func (p *Postgres) Close() error { return p.db.Close() }

// executeWithTransaction executes a function with proper transaction
// management. If a transaction exists in context, it uses that. Otherwise, it
// creates a new one.
func (p *Postgres) executeWithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	if tx := GetTransaction(ctx); tx != nil {
		return fn(tx)
	}

	tx, err := p.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if fnErr := fn(tx); fnErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction rollback failed: %w (original error: %v)", rbErr, fnErr)
		}
		return fnErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("transaction commit failed: %w", commitErr)
	}
	return nil
}

// queryWithTransaction executes a query using the transaction from context if available.
func (p *Postgres) queryWithTransaction(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if tx := GetTransaction(ctx); tx != nil {
		return tx.QueryContext(ctx, query, args...)
	}
	return p.db.QueryContext(ctx, query, args...)
}

// SaveCandles upserts a candle batch, validating every candle first.
func (p *Postgres) SaveCandles(ctx context.Context, candles []candle.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	for i := range candles {
		if err := candles[i].Validate(); err != nil {
			return fmt.Errorf("invalid candle at index %d for %s %s at %s: %w",
				i, candles[i].Symbol, candles[i].Timeframe, candles[i].Timestamp, err)
		}
	}

	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO candles (symbol, timeframe, timestamp, open, high, low, close, volume, source)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (symbol, timeframe, timestamp, source) DO UPDATE SET
				open=EXCLUDED.open, high=EXCLUDED.high, low=EXCLUDED.low,
				close=EXCLUDED.close, volume=EXCLUDED.volume`)
		if err != nil {
			return fmt.Errorf("failed to prepare candle insert: %w", err)
		}
		defer stmt.Close()

		for i, c := range candles {
			if _, err := stmt.ExecContext(ctx,
				c.Symbol, c.Timeframe, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume, c.Source); err != nil {
				return fmt.Errorf("failed to save candle at index %d (%s %s at %s): %w",
					i, c.Symbol, c.Timeframe, c.Timestamp, err)
			}
		}
		return nil
	})
}

// GetCandles retrieves candles in [start, end), ordered by timestamp.
func (p *Postgres) GetCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error) {
	rows, err := p.queryWithTransaction(ctx, `
		SELECT timestamp, open, high, low, close, volume, symbol, timeframe, source
		FROM candles
		WHERE symbol=$1 AND timeframe=$2 AND timestamp >= $3 AND timestamp < $4
		ORDER BY timestamp ASC`,
		symbol, timeframe, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	var candles []candle.Candle
	for rows.Next() {
		var c candle.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Symbol, &c.Timeframe, &c.Source); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		c.Timestamp = c.Timestamp.UTC()
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// SaveResult stores one backtest run. Scalar columns carry the always-finite
// metrics for querying; the full sanitized metrics and the trade ledger go
// into JSONB columns.
func (p *Postgres) SaveResult(ctx context.Context, res *backtest.Result) error {
	params, err := json.Marshal(res.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	metrics, err := json.Marshal(res.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	trades, err := json.Marshal(res.Trades)
	if err != nil {
		return fmt.Errorf("failed to marshal trades: %w", err)
	}
	if res.Params == nil {
		params = []byte(`{}`)
	}
	if res.Trades == nil {
		trades = []byte(`[]`)
	}

	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO backtest_results
				(id, strategy, symbol, timeframe, ran_at,
				 total_return, annualized_return, sharpe_ratio, max_drawdown, win_rate, trade_count,
				 params, metrics, trades)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
			res.ID, res.Strategy, res.Symbol, res.Timeframe, res.RanAt,
			res.Metrics.TotalReturn, res.Metrics.AnnualizedReturn, res.Metrics.SharpeRatio,
			res.Metrics.MaxDrawdown, res.Metrics.WinRate, res.Metrics.TradeCount,
			params, metrics, trades)
		if err != nil {
			return fmt.Errorf("failed to save backtest result %s: %w", res.ID, err)
		}
		return nil
	})
}

// GetResultSummaries lists stored runs, newest first. An empty strategy name
// matches every strategy.
func (p *Postgres) GetResultSummaries(ctx context.Context, strategy string, limit int) ([]ResultSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := p.queryWithTransaction(ctx, `
		SELECT id, strategy, symbol, timeframe, ran_at,
		       total_return, annualized_return, sharpe_ratio, max_drawdown, win_rate, trade_count
		FROM backtest_results
		WHERE ($1 = '' OR strategy = $1)
		ORDER BY ran_at DESC
		LIMIT $2`,
		strategy, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest results: %w", err)
	}
	defer rows.Close()

	var summaries []ResultSummary
	for rows.Next() {
		var s ResultSummary
		if err := rows.Scan(&s.ID, &s.Strategy, &s.Symbol, &s.Timeframe, &s.RanAt,
			&s.TotalReturn, &s.AnnualizedReturn, &s.SharpeRatio, &s.MaxDrawdown, &s.WinRate, &s.TradeCount); err != nil {
			return nil, fmt.Errorf("failed to scan backtest result: %w", err)
		}
		s.RanAt = s.RanAt.UTC()
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
