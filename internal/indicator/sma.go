package indicator

import "math"

// CalculateSMA returns the simple moving average of prices over the given
// period. The first period-1 positions are NaN.
func CalculateSMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return nil
	}
	sma := make([]float64, len(prices))
	for i := 0; i < period-1; i++ {
		sma[i] = math.NaN()
	}
	var sum float64
	for i, p := range prices {
		sum += p
		if i >= period {
			sum -= prices[i-period]
		}
		if i >= period-1 {
			sma[i] = sum / float64(period)
		}
	}
	return sma
}
