package l4matching

import (
	"slices"

	"github.com/banshee-data/featurebench/internal/vision"
)

// BruteForce is an exhaustive searcher: every query row is compared with
// every reference row. Equal distances are ordered by reference index.
type BruteForce struct{}

// Search implements vision.Searcher.
func (BruteForce) Search(query, reference vision.Descriptors, metric vision.Metric, k int) ([][]vision.Neighbor, error) {
	if err := checkBlocks(query, reference, metric); err != nil {
		return nil, err
	}
	out := make([][]vision.Neighbor, query.Rows())
	if k <= 0 || reference.Empty() {
		return out, nil
	}
	all := make([]int, reference.Rows())
	for i := range all {
		all[i] = i
	}
	for qi := range out {
		nb, err := nearest(query, reference, metric, qi, all, k)
		if err != nil {
			return nil, err
		}
		out[qi] = nb
	}
	return out, nil
}

// nearest ranks the candidate reference rows for query row qi and returns
// the k closest.
func nearest(query, reference vision.Descriptors, metric vision.Metric, qi int, candidates []int, k int) ([]vision.Neighbor, error) {
	scored := make([]vision.Neighbor, 0, len(candidates))
	for _, ri := range candidates {
		d, err := rowDistance(query, reference, metric, qi, ri)
		if err != nil {
			return nil, err
		}
		scored = append(scored, vision.Neighbor{Index: ri, Distance: d})
	}
	slices.SortFunc(scored, func(a, b vision.Neighbor) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return a.Index - b.Index
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}
