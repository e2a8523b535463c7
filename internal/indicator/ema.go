package indicator

import "math"

// CalculateEMA returns the exponential moving average of prices over the
// given period, seeded with the SMA of the first period values. The first
// period-1 positions are NaN.
func CalculateEMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return nil
	}
	ema := make([]float64, len(prices))
	for i := 0; i < period-1; i++ {
		ema[i] = math.NaN()
	}
	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	ema[period-1] = sum / float64(period)

	alpha := 2.0 / float64(period+1)
	for i := period; i < len(prices); i++ {
		ema[i] = alpha*prices[i] + (1-alpha)*ema[i-1]
	}
	return ema
}
