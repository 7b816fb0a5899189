package l4matching

import (
	"errors"
	"fmt"
	"math/bits"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/featurebench/internal/vision"
)

var (
	// ErrMetricMismatch is returned when a metric is applied to descriptors
	// of the wrong representation (L2 on bit strings or Hamming on floats).
	ErrMetricMismatch = errors.New("metric does not match descriptor representation")

	// ErrRowLength is returned when descriptor rows differ in length.
	ErrRowLength = errors.New("descriptor rows differ in length")
)

// Hamming returns the number of differing bits between two bit strings.
func Hamming(a, b []byte) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d bytes", ErrRowLength, len(a), len(b))
	}
	n := 0
	for i := range a {
		n += bits.OnesCount8(a[i] ^ b[i])
	}
	return float64(n), nil
}

// L2 returns the Euclidean distance between two float vectors.
func L2(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d values", ErrRowLength, len(a), len(b))
	}
	return floats.Distance(a, b, 2), nil
}

// checkBlocks verifies both blocks share the representation the metric needs.
func checkBlocks(query, reference vision.Descriptors, metric vision.Metric) error {
	wantBinary := metric == vision.MetricHamming
	for _, d := range []vision.Descriptors{query, reference} {
		if d.Empty() {
			continue
		}
		if d.IsBinary() != wantBinary {
			return fmt.Errorf("%w: %s on %s descriptors", ErrMetricMismatch, metric, representation(d))
		}
	}
	return nil
}

func representation(d vision.Descriptors) string {
	if d.IsBinary() {
		return "binary"
	}
	return "float"
}

// rowDistance measures query row qi against reference row ri.
func rowDistance(query, reference vision.Descriptors, metric vision.Metric, qi, ri int) (float64, error) {
	if metric == vision.MetricHamming {
		return Hamming(query.Binary[qi], reference.Binary[ri])
	}
	return L2(query.Float[qi], reference.Float[ri])
}
