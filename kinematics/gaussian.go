package kinematics

import (
	"gonum.org/v1/gonum/floats"
	"math"
)

// truncate is the number of standard deviations covered by the kernel
const truncate = 4.0

// gaussianKernel returns the normalised weights of a gaussian kernel with
// the given radius
func gaussianKernel(sigma float64, radius int) []float64 {

	weights := make([]float64, 2*radius+1)
	variance := sigma * sigma

	for i := -radius; i <= radius; i++ {
		x := float64(i)
		weights[i+radius] = math.Exp(-0.5 * x * x / variance)
	}

	floats.Scale(1/floats.Sum(weights), weights)
	return weights
}

// reflectIndex maps an out of range index back into [0, n) by mirroring
// about the array edges, the edge sample being repeated (d c b a | a b c d |
// d c b a)
func reflectIndex(i, n int) int {

	period := 2 * n
	i %= period

	if i < 0 {
		i += period
	}

	if i >= n {
		i = period - 1 - i
	}

	return i
}

// GaussianFilter1D smooths x with a gaussian kernel of standard deviation
// sigma measured in samples.  The kernel is truncated at four standard
// deviations and the input is extended by reflection at both ends.  A sigma
// of zero or less returns a copy of x.
func GaussianFilter1D(x []float64, sigma float64) []float64 {

	out := make([]float64, len(x))

	if len(x) == 0 || sigma <= 0 {
		copy(out, x)
		return out
	}

	radius := int(truncate*sigma + 0.5)
	weights := gaussianKernel(sigma, radius)
	n := len(x)

	for i := range x {
		var sum float64

		for k := -radius; k <= radius; k++ {
			sum += weights[k+radius] * x[reflectIndex(i+k, n)]
		}

		out[i] = sum
	}

	return out
}
