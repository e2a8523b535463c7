// Package indicator provides the technical indicator series used by the
// strategies. All functions return slices aligned one-to-one with the input
// price series; positions inside an indicator's warm-up window hold NaN.
package indicator

import "math"

// Defined reports whether the indicator value at index i exists and is
// outside its warm-up window.
func Defined(series []float64, i int) bool {
	return i >= 0 && i < len(series) && !math.IsNaN(series[i])
}
