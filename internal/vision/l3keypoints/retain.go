package l3keypoints

import (
	"slices"

	"github.com/banshee-data/featurebench/internal/vision"
)

// RetainBest keeps the strongest n keypoints.
//
// When hasResponse is false the detector carries no response score and its
// output is assumed to be ordered best-first, so the sequence is first cut
// to its leading n entries. A score pass always follows: the n-th largest
// response becomes the cutoff and every keypoint scoring at least that much
// survives, so ties at the cutoff can return more than n keypoints.
// Survivors keep their input order. n <= 0 retains nothing.
func RetainBest(kps []vision.Keypoint, n int, hasResponse bool) []vision.Keypoint {
	idx := RetainIndices(kps, n, hasResponse)
	out := make([]vision.Keypoint, len(idx))
	for i, j := range idx {
		out[i] = kps[j]
	}
	return out
}

// RetainBestWithDescriptors applies RetainBest and drops the matching rows
// of an aligned descriptor block.
func RetainBestWithDescriptors(kps []vision.Keypoint, desc vision.Descriptors, n int, hasResponse bool) ([]vision.Keypoint, vision.Descriptors, error) {
	if err := desc.CheckAligned(kps); err != nil {
		return nil, vision.Descriptors{}, err
	}
	idx := RetainIndices(kps, n, hasResponse)
	out := make([]vision.Keypoint, len(idx))
	for i, j := range idx {
		out[i] = kps[j]
	}
	return out, desc.Select(idx), nil
}

// RetainIndices returns the input positions surviving RetainBest, ascending.
func RetainIndices(kps []vision.Keypoint, n int, hasResponse bool) []int {
	if n <= 0 {
		return []int{}
	}

	limit := len(kps)
	if !hasResponse && n < limit {
		limit = n
	}

	idx := make([]int, limit)
	for i := range idx {
		idx[i] = i
	}
	if n >= limit {
		return idx
	}

	responses := make([]float64, limit)
	for i := 0; i < limit; i++ {
		responses[i] = kps[i].Response
	}
	slices.SortFunc(responses, func(a, b float64) int {
		switch {
		case a > b:
			return -1
		case a < b:
			return 1
		}
		return 0
	})
	cutoff := responses[n-1]

	kept := idx[:0]
	for _, i := range idx {
		if kps[i].Response >= cutoff {
			kept = append(kept, i)
		}
	}
	return kept
}
