package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	wallex "github.com/wallexchange/wallex-go"

	"github.com/tradeforge/backtester/internal/candle"
	"github.com/tradeforge/backtester/internal/tfutils"
)

// WallexExchange fetches candles from the Wallex market data API.
type WallexExchange struct {
	client *wallex.Client
	logger *slog.Logger
}

func NewWallexExchange(apiKey string, logger *slog.Logger) *WallexExchange {
	if logger == nil {
		logger = slog.Default()
	}
	return &WallexExchange{
		client: wallex.New(wallex.ClientOptions{APIKey: apiKey}),
		logger: logger,
	}
}

func (w *WallexExchange) Name() string { return "wallex" }

// retry wraps a function with retry logic for transient errors, using
// exponential backoff capped at 5 minutes.
func (w *WallexExchange) retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	backoff := delay
	var lastErr error
	for i := 1; i <= attempts; i++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		w.logger.Warn("wallex request failed",
			"attempt", i, "max_attempts", attempts, "backoff", backoff, "error", lastErr)
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 5*time.Minute {
			backoff *= 2
			if backoff > 5*time.Minute {
				backoff = 5 * time.Minute
			}
		}
	}
	return errors.Join(errors.New("all retry attempts failed"), lastErr)
}

// FetchCandles downloads candles in [start, end], validating each and
// skipping malformed entries.
func (w *WallexExchange) FetchCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error) {
	if !tfutils.IsValidTimeframe(timeframe) {
		return nil, fmt.Errorf("unsupported timeframe: %s", timeframe)
	}

	resolution := NormalizeTimeframe(timeframe)
	wireSymbol := NormalizeSymbol(symbol)

	var wallexCandles []*wallex.Candle
	err := w.retry(ctx, 3, 2*time.Second, func() error {
		var err error
		wallexCandles, err = w.client.Candles(wireSymbol, resolution, start, end)
		if err != nil {
			return fmt.Errorf("fetching candles: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("FetchCandles %s %s: %w", symbol, timeframe, err)
	}

	duration := tfutils.GetTimeframeDuration(timeframe)

	var candles []candle.Candle
	for _, wc := range wallexCandles {
		open, _ := strconv.ParseFloat(string(wc.Open), 64)
		high, _ := strconv.ParseFloat(string(wc.High), 64)
		low, _ := strconv.ParseFloat(string(wc.Low), 64)
		close, _ := strconv.ParseFloat(string(wc.Close), 64)
		volume, _ := strconv.ParseFloat(string(wc.Volume), 64)

		c := candle.Candle{
			Timestamp: wc.Timestamp.UTC().Truncate(duration),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
			Symbol:    symbol,
			Timeframe: timeframe,
			Source:    w.Name(),
		}
		if err := c.Validate(); err != nil {
			w.logger.Debug("skipping invalid candle", "symbol", symbol, "timestamp", wc.Timestamp, "error", err)
			continue
		}
		candles = append(candles, c)
	}

	return candles, nil
}

// FetchLatestCandles fetches the most recent count candles.
func (w *WallexExchange) FetchLatestCandles(ctx context.Context, symbol, timeframe string, count int) ([]candle.Candle, error) {
	duration := tfutils.GetTimeframeDuration(timeframe)
	if duration == 0 {
		return nil, fmt.Errorf("unsupported timeframe: %s", timeframe)
	}
	end := time.Now().UTC()
	start := end.Add(-duration * time.Duration(count))
	return w.FetchCandles(ctx, symbol, timeframe, start, end)
}
