package l4matching

import (
	"errors"
	"fmt"

	"github.com/banshee-data/featurebench/internal/vision"
)

// DefaultRatio is the KNN distance-ratio threshold.
const DefaultRatio = 0.8

// Result is the outcome of one match attempt between two frames.
type Result struct {
	Matches []vision.Match
	// Candidates is the number of query rows that received at least one
	// neighbour from the searcher.
	Candidates int
	// EmptyDescriptors is set when either side had no descriptor rows.
	EmptyDescriptors bool
}

// Selector retrieves candidates through a Searcher and applies the NN or
// KNN acceptance policy.
type Selector struct {
	kind     vision.SelectorKind
	ratio    float64
	searcher vision.Searcher
}

// NewSelector builds a Selector. ratio applies to SelectorKNN only and must
// lie in (0, 1].
func NewSelector(kind vision.SelectorKind, ratio float64, searcher vision.Searcher) (*Selector, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown selector %q", kind)
	}
	if ratio <= 0 || ratio > 1 {
		return nil, fmt.Errorf("ratio threshold %v must be in (0, 1]", ratio)
	}
	if searcher == nil {
		return nil, errors.New("nil searcher")
	}
	return &Selector{kind: kind, ratio: ratio, searcher: searcher}, nil
}

// Kind returns the selection policy.
func (s *Selector) Kind() vision.SelectorKind { return s.kind }

// Select matches the current frame's descriptors against the previous
// frame's. For every current row the searcher returns the closest previous
// rows under the metric implied by desc. Match.Prev indexes prev and
// Match.Curr indexes curr.
func (s *Selector) Select(prev, curr vision.Descriptors, desc vision.DescriptorKind) (Result, error) {
	if prev.Empty() || curr.Empty() {
		return Result{Matches: []vision.Match{}, EmptyDescriptors: true}, nil
	}

	k := s.kind.K()
	neighbors, err := s.searcher.Search(curr, prev, desc.Metric(), k)
	if err != nil {
		return Result{}, fmt.Errorf("searching %d descriptors against %d: %w", curr.Rows(), prev.Rows(), err)
	}
	if len(neighbors) != curr.Rows() {
		return Result{}, fmt.Errorf("searcher returned %d result rows for %d queries", len(neighbors), curr.Rows())
	}

	res := Result{Matches: make([]vision.Match, 0, len(neighbors))}
	for qi, nb := range neighbors {
		if len(nb) == 0 {
			continue
		}
		res.Candidates++
		for _, n := range nb {
			if n.Index < 0 || n.Index >= prev.Rows() {
				return Result{}, fmt.Errorf("searcher returned reference index %d outside [0,%d)", n.Index, prev.Rows())
			}
		}

		switch s.kind {
		case vision.SelectorNN:
			res.Matches = append(res.Matches, vision.Match{Prev: nb[0].Index, Curr: qi, Distance: nb[0].Distance})
		case vision.SelectorKNN:
			if curr.Rows() < 2 || prev.Rows() < 2 || len(nb) < 2 {
				continue
			}
			if PassesRatio(nb[0].Distance, nb[1].Distance, s.ratio) {
				res.Matches = append(res.Matches, vision.Match{Prev: nb[0].Index, Curr: qi, Distance: nb[0].Distance})
			}
		}
	}
	return res, nil
}

// PassesRatio reports whether the best distance d1 is clearly better than
// the second-best d2: d1 < ratio*d2.
func PassesRatio(d1, d2, ratio float64) bool {
	return d1 < ratio*d2
}
