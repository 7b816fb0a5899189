package l3keypoints

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/featurebench/internal/vision"
)

// SizeStats summarises the support-region diameters of a keypoint set.
type SizeStats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// ComputeSizeStats returns the size statistics of kps. An empty input
// yields the zero value.
func ComputeSizeStats(kps []vision.Keypoint) SizeStats {
	if len(kps) == 0 {
		return SizeStats{}
	}
	sizes := make([]float64, len(kps))
	for i, kp := range kps {
		sizes[i] = kp.Size
	}
	return SizeStats{
		Count: len(sizes),
		Mean:  stat.Mean(sizes, nil),
		Min:   floats.Min(sizes),
		Max:   floats.Max(sizes),
	}
}
