package indicator

import "math"

// MACDResult holds the MACD line, its signal line, and the histogram
// (line minus signal), all aligned with the input price series.
type MACDResult struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// CalculateMACD computes the MACD line as EMA(fast) - EMA(slow), a signal
// line as the EMA of the MACD line over signalPeriod, and their difference as
// the histogram. Line values are NaN before index slowPeriod-1; signal and
// histogram values are NaN before index slowPeriod+signalPeriod-2.
func CalculateMACD(prices []float64, fastPeriod, slowPeriod, signalPeriod int) *MACDResult {
	if fastPeriod <= 0 || slowPeriod <= 0 || signalPeriod <= 0 {
		return nil
	}
	if len(prices) < slowPeriod {
		return nil
	}

	fast := CalculateEMA(prices, fastPeriod)
	slow := CalculateEMA(prices, slowPeriod)

	n := len(prices)
	line := make([]float64, n)
	signal := make([]float64, n)
	hist := make([]float64, n)
	for i := 0; i < n; i++ {
		if Defined(fast, i) && Defined(slow, i) {
			line[i] = fast[i] - slow[i]
		} else {
			line[i] = math.NaN()
		}
		signal[i] = math.NaN()
		hist[i] = math.NaN()
	}

	// Signal line is the EMA of the defined portion of the MACD line,
	// seeded with the SMA of its first signalPeriod values.
	start := slowPeriod - 1
	seedEnd := start + signalPeriod // exclusive
	if seedEnd > n {
		return &MACDResult{Line: line, Signal: signal, Histogram: hist}
	}
	var sum float64
	for i := start; i < seedEnd; i++ {
		sum += line[i]
	}
	signal[seedEnd-1] = sum / float64(signalPeriod)
	alpha := 2.0 / float64(signalPeriod+1)
	for i := seedEnd; i < n; i++ {
		signal[i] = alpha*line[i] + (1-alpha)*signal[i-1]
	}
	for i := seedEnd - 1; i < n; i++ {
		hist[i] = line[i] - signal[i]
	}

	return &MACDResult{Line: line, Signal: signal, Histogram: hist}
}
