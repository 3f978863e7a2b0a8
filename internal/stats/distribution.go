package stats

import (
	"DelayBench/internal/model"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Describe computes the distribution statistics of samples. Variance and
// standard deviation use the sample (n-1) estimator; a single sample has zero
// spread. An empty sample yields min=+Inf, max=-Inf and zero elsewhere.
func Describe(samples []float64) model.DistributionStats {
	if len(samples) == 0 {
		return model.DistributionStats{
			Min: model.Inf(1),
			Max: model.Inf(-1),
		}
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	mean := stat.Mean(sorted, nil)
	variance := 0.0
	if len(sorted) > 1 {
		variance = stat.Variance(sorted, nil)
	}
	stdDev := math.Sqrt(variance)

	return model.DistributionStats{
		Min:                    model.Float(sorted[0]),
		Max:                    model.Float(sorted[len(sorted)-1]),
		Mean:                   model.Float(mean),
		Median:                 model.Float(median(sorted)),
		StdDev:                 model.Float(stdDev),
		Variance:               model.Float(variance),
		CoefficientOfVariation: model.Float(CV(stdDev, mean)),
	}
}

// DescribeInts is Describe over integer delays.
func DescribeInts(samples []int64) model.DistributionStats {
	return Describe(Floats(samples))
}

// CV returns stdDev/mean, or +Inf when the mean is exactly zero.
func CV(stdDev, mean float64) float64 {
	if mean == 0 {
		return math.Inf(1)
	}
	return stdDev / mean
}

// StdDev returns the sample standard deviation of values together with their
// mean. Fewer than two values have zero spread.
func StdDev(values []float64) (stdDev, mean float64) {
	if len(values) == 0 {
		return 0, 0
	}
	if len(values) == 1 {
		return 0, values[0]
	}
	mean, variance := stat.MeanVariance(values, nil)
	return math.Sqrt(variance), mean
}

// Floats converts integer delays to float64 samples.
func Floats(values []int64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}

// median of an ascending slice; the mean of the two middle values when even.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
