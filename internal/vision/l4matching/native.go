package l4matching

import (
	"fmt"

	"github.com/banshee-data/featurebench/internal/vision"
)

// NativeSearcher returns the in-process searcher for kind: exhaustive
// search for MAT_BF and hashed approximate search for MAT_FLANN.
func NativeSearcher(kind vision.MatcherKind) (vision.Searcher, error) {
	switch kind {
	case vision.MatcherBruteForce:
		return BruteForce{}, nil
	case vision.MatcherFLANN:
		return NewLSH(), nil
	}
	return nil, fmt.Errorf("unknown matcher %q", kind)
}

// WithNativeSearch wraps a backend so that candidate search uses the
// in-process searchers while detection and extraction stay with b.
func WithNativeSearch(b vision.Backend) vision.Backend {
	return nativeSearch{Backend: b}
}

type nativeSearch struct {
	vision.Backend
}

func (n nativeSearch) Name() string { return n.Backend.Name() + "+native-search" }

func (nativeSearch) Searcher(kind vision.MatcherKind) (vision.Searcher, error) {
	return NativeSearcher(kind)
}
