package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateRSI(t *testing.T) {
	tests := []struct {
		name     string
		prices   []float64
		period   int
		expected []float64
		isNil    bool
	}{
		{
			name:   "Basic RSI calculation",
			prices: []float64{10, 11, 12, 11, 10, 9, 10, 11, 12, 13, 14, 13, 12, 11, 12},
			period: 5,
			expected: []float64{
				math.NaN(), math.NaN(), math.NaN(), math.NaN(),
				50.00, 38.10, 52.29, 62.92, 71.00, 77.21, 82.02, 64.90, 51.47, 40.89, 52.97,
			},
		},
		{
			name:   "All increasing prices",
			prices: []float64{10, 11, 12, 13, 14, 15, 16, 17, 18, 19},
			period: 3,
			expected: []float64{
				math.NaN(), math.NaN(),
				100, 100, 100, 100, 100, 100, 100, 100,
			},
		},
		{
			name:   "All decreasing prices",
			prices: []float64{20, 19, 18, 17, 16, 15, 14, 13, 12, 11},
			period: 3,
			expected: []float64{
				math.NaN(), math.NaN(),
				0, 0, 0, 0, 0, 0, 0, 0,
			},
		},
		{
			name:   "Flat prices map zero loss to 100",
			prices: []float64{10, 10, 10, 10, 10, 10, 10, 10},
			period: 3,
			expected: []float64{
				math.NaN(), math.NaN(),
				100, 100, 100, 100, 100, 100,
			},
		},
		{
			name:     "Insufficient data",
			prices:   []float64{10, 11, 12},
			period:   5,
			expected: nil,
			isNil:    true,
		},
		{
			name:     "Invalid period",
			prices:   []float64{10, 11, 12, 13, 14},
			period:   0,
			expected: nil,
			isNil:    true,
		},
		{
			name:     "Empty prices",
			prices:   []float64{},
			period:   5,
			expected: nil,
			isNil:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateRSI(tt.prices, tt.period)

			if tt.isNil {
				assert.Nil(t, result)
				return
			}

			assert.Equal(t, len(tt.expected), len(result), "RSI array length mismatch")

			for i := 0; i < len(tt.expected); i++ {
				if math.IsNaN(tt.expected[i]) {
					assert.True(t, math.IsNaN(result[i]), "Expected NaN at index %d", i)
				} else {
					assert.InDelta(t, tt.expected[i], result[i], 0.01, "RSI mismatch at index %d", i)
				}
			}
		})
	}
}

func TestRSINeverNaNAfterWarmup(t *testing.T) {
	// Zero-average-loss stretches must resolve to 100, not NaN.
	prices := []float64{10, 10, 10, 11, 12, 12, 12, 13}
	period := 3

	result := CalculateRSI(prices, period)
	for i := period - 1; i < len(result); i++ {
		assert.False(t, math.IsNaN(result[i]), "unexpected NaN at index %d", i)
	}
}

func BenchmarkCalculateRSI(b *testing.B) {
	prices := make([]float64, 1000)
	for i := range prices {
		prices[i] = float64(i % 100)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		CalculateRSI(prices, 14)
	}
}
