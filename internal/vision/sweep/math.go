package sweep

import (
	"gonum.org/v1/gonum/stat"
)

// MeanStddev calculates the mean and sample standard deviation of a slice.
// Returns (0, 0) for empty slices and a zero deviation for one sample.
func MeanStddev(xs []float64) (mean float64, stddev float64) {
	switch len(xs) {
	case 0:
		return 0, 0
	case 1:
		return xs[0], 0
	}
	return stat.MeanStdDev(xs, nil)
}
