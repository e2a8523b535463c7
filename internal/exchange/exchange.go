// Package exchange fetches historical candles from external price sources.
package exchange

import (
	"context"
	"strings"
	"time"

	"github.com/tradeforge/backtester/internal/candle"
)

// Exchange is the interface for all supported candle sources.
type Exchange interface {
	Name() string
	FetchCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error)
}

// NormalizeSymbol converts a dashed symbol ("BTC-USDT") to the exchange wire
// format ("BTCUSDT").
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "-", ""))
}

// NormalizeTimeframe maps our timeframe names to the exchange's resolution
// strings.
func NormalizeTimeframe(timeframe string) string {
	switch timeframe {
	case "1m":
		return "1"
	case "5m":
		return "5"
	case "15m":
		return "15"
	case "30m":
		return "30"
	case "1h":
		return "60"
	case "4h":
		return "240"
	case "1d":
		return "1D"
	default:
		return timeframe
	}
}
