// Package candle
package candle

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tradeforge/backtester/internal/tfutils"
)

// ErrInvalidDataset marks any structural problem with OHLCV input: empty
// series, malformed bars, duplicate or out-of-order timestamps.
var ErrInvalidDataset = errors.New("invalid dataset")

type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Source    string    `json:"source"`
}

// Validate checks if a candle has valid data
func (c *Candle) Validate() error {
	if c.Timestamp.IsZero() {
		return errors.New("candle timestamp is zero")
	}
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return errors.New("candle prices must be positive")
	}
	if c.High < c.Low {
		return errors.New("candle high cannot be less than low")
	}
	if c.Open < c.Low || c.Open > c.High {
		return errors.New("candle open price must be between high and low")
	}
	if c.Close < c.Low || c.Close > c.High {
		return errors.New("candle close price must be between high and low")
	}
	if c.Volume < 0 {
		return errors.New("candle volume cannot be negative")
	}
	return nil
}

// Dataset is an immutable, time-ordered series of candles. The engine only
// ever reads it, so a single Dataset may back many concurrent backtests.
type Dataset struct {
	candles []Candle
}

// NewDataset validates and wraps a candle series. The input must be non-empty,
// every candle must pass Validate, and timestamps must be strictly
// increasing. The slice is copied; later mutation of the caller's slice does
// not affect the Dataset.
func NewDataset(candles []Candle) (*Dataset, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: empty candle series", ErrInvalidDataset)
	}
	cp := make([]Candle, len(candles))
	copy(cp, candles)
	for i := range cp {
		if err := cp[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: candle at index %d (%s): %v",
				ErrInvalidDataset, i, cp[i].Timestamp.Format(time.RFC3339), err)
		}
		if i > 0 && !cp[i].Timestamp.After(cp[i-1].Timestamp) {
			return nil, fmt.Errorf("%w: timestamps not strictly increasing at index %d",
				ErrInvalidDataset, i)
		}
	}
	return &Dataset{candles: cp}, nil
}

// Len returns the number of candles in the dataset.
func (d *Dataset) Len() int { return len(d.candles) }

// At returns the candle at index i.
func (d *Dataset) At(i int) Candle { return d.candles[i] }

// Closes returns a copy of the close price series.
func (d *Dataset) Closes() []float64 {
	closes := make([]float64, len(d.candles))
	for i, c := range d.candles {
		closes[i] = c.Close
	}
	return closes
}

// Times returns a copy of the timestamp series.
func (d *Dataset) Times() []time.Time {
	times := make([]time.Time, len(d.candles))
	for i, c := range d.candles {
		times[i] = c.Timestamp
	}
	return times
}

// Candles returns a copy of the underlying series.
func (d *Dataset) Candles() []Candle {
	cp := make([]Candle, len(d.candles))
	copy(cp, d.candles)
	return cp
}

// Process sorts, de-duplicates, trims to [start, to) and fills gaps with
// synthetic flat candles so the result is a contiguous series on the
// timeframe grid. Synthetic candles carry the previous close and zero volume.
func Process(candles []Candle, symbol, timeframe string, start, to time.Time) []Candle {
	if len(candles) == 0 {
		return candles
	}

	duration := tfutils.GetTimeframeDuration(timeframe)

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})

	// Truncate to the timeframe grid, first occurrence wins.
	candleMap := make(map[time.Time]Candle)
	for _, c := range candles {
		c.Timestamp = c.Timestamp.Truncate(duration)
		if _, exists := candleMap[c.Timestamp]; !exists {
			candleMap[c.Timestamp] = c
		}
	}

	// Trim to requested range (exclusive upper bound).
	var trimmed []Candle
	for ts, c := range candleMap {
		if (ts.Equal(start) || ts.After(start)) && ts.Before(to) {
			trimmed = append(trimmed, c)
		}
	}
	sort.Slice(trimmed, func(i, j int) bool {
		return trimmed[i].Timestamp.Before(trimmed[j].Timestamp)
	})
	if len(trimmed) == 0 {
		return trimmed
	}

	var complete []Candle
	currentTime := trimmed[0].Timestamp
	lastTime := trimmed[len(trimmed)-1].Timestamp
	basePrice := trimmed[0].Close

	i := 0
	for !currentTime.After(lastTime) && currentTime.Before(to) {
		if i < len(trimmed) && trimmed[i].Timestamp.Equal(currentTime) {
			complete = append(complete, trimmed[i])
			basePrice = trimmed[i].Close
			i++
		} else {
			complete = append(complete, Candle{
				Timestamp: currentTime,
				Open:      basePrice,
				High:      basePrice,
				Low:       basePrice,
				Close:     basePrice,
				Volume:    0,
				Symbol:    symbol,
				Timeframe: timeframe,
				Source:    "synthetic",
			})
		}
		currentTime = currentTime.Add(duration)
	}

	return complete
}
