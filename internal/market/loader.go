// Package market assembles backtest-ready datasets from storage and
// exchanges.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tradeforge/backtester/internal/candle"
	"github.com/tradeforge/backtester/internal/db"
	"github.com/tradeforge/backtester/internal/exchange"
	"github.com/tradeforge/backtester/internal/tfutils"
)

// fetchChunk bounds one exchange request to stay under API limits.
const fetchChunk = 14 * 24 * time.Hour

// Loader resolves a dataset request through three layers: the in-process
// cache, the candle store, and finally the exchange. Downloaded candles are
// processed onto the timeframe grid and written back to the store.
type Loader struct {
	store  db.Storage
	exch   exchange.Exchange
	cache  *candle.DatasetCache
	logger *slog.Logger
}

func NewLoader(store db.Storage, exch exchange.Exchange, cache *candle.DatasetCache, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{store: store, exch: exch, cache: cache, logger: logger}
}

func cacheKey(symbol, timeframe string, from, to time.Time) string {
	return fmt.Sprintf("%s|%s|%d|%d", symbol, timeframe, from.Unix(), to.Unix())
}

// GetDataset returns an immutable dataset covering [from, to).
func (l *Loader) GetDataset(ctx context.Context, symbol, timeframe string, from, to time.Time) (*candle.Dataset, error) {
	if !tfutils.IsValidTimeframe(timeframe) {
		return nil, fmt.Errorf("%w: unsupported timeframe %q", candle.ErrInvalidDataset, timeframe)
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: empty time range [%s, %s)", candle.ErrInvalidDataset, from, to)
	}

	key := cacheKey(symbol, timeframe, from, to)
	if l.cache != nil {
		if ds, ok := l.cache.Get(key); ok {
			l.logger.Debug("dataset cache hit", "symbol", symbol, "timeframe", timeframe)
			return ds, nil
		}
	}

	candles, err := l.loadCandles(ctx, symbol, timeframe, from, to)
	if err != nil {
		return nil, err
	}

	ds, err := candle.NewDataset(candle.Process(candles, symbol, timeframe, from, to))
	if err != nil {
		return nil, err
	}

	if l.cache != nil {
		l.cache.Put(key, ds)
	}
	return ds, nil
}

func (l *Loader) loadCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]candle.Candle, error) {
	if l.store != nil {
		stored, err := l.store.GetCandles(ctx, symbol, timeframe, from, to)
		if err != nil {
			return nil, fmt.Errorf("loading candles from storage: %w", err)
		}
		if len(stored) > 0 {
			l.logger.Info("loaded candles from storage",
				"symbol", symbol, "timeframe", timeframe, "count", len(stored))
			return stored, nil
		}
	}

	if l.exch == nil {
		return nil, fmt.Errorf("%w: no candles for %s %s in [%s, %s)",
			candle.ErrInvalidDataset, symbol, timeframe, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	fetched, err := l.fetchChunked(ctx, symbol, timeframe, from, to)
	if err != nil {
		return nil, err
	}
	if len(fetched) == 0 {
		return nil, fmt.Errorf("%w: %s returned no candles for %s %s",
			candle.ErrInvalidDataset, l.exch.Name(), symbol, timeframe)
	}

	processed := candle.Process(fetched, symbol, timeframe, from, to)
	if l.store != nil && len(processed) > 0 {
		if err := l.store.SaveCandles(ctx, processed); err != nil {
			return nil, fmt.Errorf("saving fetched candles: %w", err)
		}
		l.logger.Info("saved fetched candles",
			"symbol", symbol, "timeframe", timeframe, "count", len(processed))
	}
	return processed, nil
}

// fetchChunked downloads the range in bounded windows so a long backfill
// does not exceed exchange request limits.
func (l *Loader) fetchChunked(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]candle.Candle, error) {
	var all []candle.Candle
	for curr := from; curr.Before(to); {
		next := curr.Add(fetchChunk)
		if next.After(to) {
			next = to
		}

		chunk, err := l.exch.FetchCandles(ctx, symbol, timeframe, curr, next)
		if err != nil {
			return nil, fmt.Errorf("fetching candles %s to %s: %w",
				curr.Format(time.RFC3339), next.Format(time.RFC3339), err)
		}
		l.logger.Debug("fetched candle chunk",
			"symbol", symbol, "from", curr, "to", next, "count", len(chunk))
		all = append(all, chunk...)
		curr = next
	}
	return all, nil
}
