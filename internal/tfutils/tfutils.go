// Package tfutils
package tfutils

import (
	"errors"
	"time"
)

// ParseTimeframe parses a timeframe string (e.g., "5m", "1h") to time.Duration
func ParseTimeframe(timeframe string) (time.Duration, error) {
	d := GetTimeframeDuration(timeframe)
	if d == 0 {
		return 0, errors.New("unsupported timeframe")
	}
	return d, nil
}

// GetTimeframeDuration returns the duration for a given timeframe, or 0 when
// the timeframe is not supported.
func GetTimeframeDuration(timeframe string) time.Duration {
	switch timeframe {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return 0
	}
}

// IsValidTimeframe reports whether the given timeframe is supported.
func IsValidTimeframe(timeframe string) bool {
	return GetTimeframeDuration(timeframe) != 0
}

// PeriodsPerYear returns the number of trading periods per year for a
// timeframe, used to annualize per-bar return statistics. Daily bars use the
// conventional 252 trading days; intraday timeframes scale from it.
func PeriodsPerYear(timeframe string) float64 {
	d := GetTimeframeDuration(timeframe)
	if d == 0 {
		return 252
	}
	if d >= 24*time.Hour {
		return 252
	}
	return 252 * float64(24*time.Hour) / float64(d)
}

// GetSupportedTimeframes returns all supported timeframes
func GetSupportedTimeframes() []string {
	return []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d"}
}
