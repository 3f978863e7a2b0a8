package stats

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribeEmpty(t *testing.T) {
	d := Describe(nil)
	assert.True(t, math.IsInf(float64(d.Min), 1))
	assert.True(t, math.IsInf(float64(d.Max), -1))
	assert.Zero(t, float64(d.Mean))
	assert.Zero(t, float64(d.Median))
	assert.Zero(t, float64(d.StdDev))
	assert.Zero(t, float64(d.Variance))
	assert.Zero(t, float64(d.CoefficientOfVariation))
}

func TestDescribeSingleSample(t *testing.T) {
	d := DescribeInts([]int64{42})
	assert.Equal(t, 42.0, float64(d.Min))
	assert.Equal(t, 42.0, float64(d.Max))
	assert.Equal(t, 42.0, float64(d.Median))
	assert.Zero(t, float64(d.StdDev))
	assert.Zero(t, float64(d.CoefficientOfVariation))
}

func TestDescribeKnownValues(t *testing.T) {
	d := DescribeInts([]int64{4, 1, 3, 2})
	assert.Equal(t, 1.0, float64(d.Min))
	assert.Equal(t, 4.0, float64(d.Max))
	assert.Equal(t, 2.5, float64(d.Mean))
	assert.Equal(t, 2.5, float64(d.Median))
	// Sample variance of {1,2,3,4} is 5/3.
	assert.InDelta(t, 5.0/3.0, float64(d.Variance), 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/3.0), float64(d.StdDev), 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/3.0)/2.5, float64(d.CoefficientOfVariation), 1e-12)
}

func TestDescribeZeroMeanUsesInfinityCV(t *testing.T) {
	d := DescribeInts([]int64{-5, 5})
	assert.Zero(t, float64(d.Mean))
	assert.True(t, math.IsInf(float64(d.CoefficientOfVariation), 1))
}

func TestDescribeDoesNotReorderInput(t *testing.T) {
	in := []float64{3, 1, 2}
	Describe(in)
	assert.Equal(t, []float64{3, 1, 2}, in)
}

func TestDescribeInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(50)
		samples := make([]int64, n)
		for j := range samples {
			samples[j] = rng.Int63n(20000) - 5000
		}
		d := DescribeInts(samples)
		require.LessOrEqual(t, float64(d.Min), float64(d.Mean)+1e-9)
		require.LessOrEqual(t, float64(d.Mean), float64(d.Max)+1e-9)
		require.InDelta(t, float64(d.Variance), float64(d.StdDev)*float64(d.StdDev), 1e-6*math.Max(1, float64(d.Variance)))
		if d.Mean != 0 {
			require.InDelta(t, float64(d.StdDev)/float64(d.Mean), float64(d.CoefficientOfVariation), 1e-9)
		} else {
			require.True(t, math.IsInf(float64(d.CoefficientOfVariation), 1))
		}
	}
}

func TestStdDev(t *testing.T) {
	sd, mean := StdDev([]float64{10, 12, 14})
	assert.Equal(t, 12.0, mean)
	assert.InDelta(t, 2.0, sd, 1e-12)
	assert.InDelta(t, 2.0/12.0, CV(sd, mean), 1e-12)

	sd, mean = StdDev([]float64{9})
	assert.Zero(t, sd)
	assert.Equal(t, 9.0, mean)

	sd, mean = StdDev(nil)
	assert.Zero(t, sd)
	assert.Zero(t, mean)
	assert.True(t, math.IsInf(CV(sd, mean), 1))
}

func TestDescribeEvenMedianAveragesMiddlePair(t *testing.T) {
	d := Describe([]float64{20, 1, 10, 2})
	assert.Equal(t, 6.0, float64(d.Median))
	assert.Equal(t, 8.25, float64(d.Mean))
}
