package analytics

import "math"

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdDev returns the sample standard deviation (n-1 denominator).
// It is zero for fewer than two values.
func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sumSquares float64
	for _, v := range values {
		diff := v - m
		sumSquares += diff * diff
	}
	variance := sumSquares / float64(len(values)-1)
	return math.Sqrt(variance)
}

func meanAbsoluteError(actual []float64, predicted []float64) float64 {
	n := len(actual)
	if n == 0 || len(predicted) != n {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(actual[i] - predicted[i])
	}
	return sum / float64(n)
}
