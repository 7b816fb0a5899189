package vision

import (
	"fmt"
	"strings"
)

// DetectorKind names a keypoint detector.
type DetectorKind string

const (
	DetectorShiTomasi DetectorKind = "SHITOMASI"
	DetectorHarris    DetectorKind = "HARRIS"
	DetectorFAST      DetectorKind = "FAST"
	DetectorBRISK     DetectorKind = "BRISK"
	DetectorORB       DetectorKind = "ORB"
	DetectorAKAZE     DetectorKind = "AKAZE"
	DetectorSIFT      DetectorKind = "SIFT"
)

// AllDetectors is the full supported enumeration in sweep order.
var AllDetectors = []DetectorKind{
	DetectorShiTomasi, DetectorHarris, DetectorFAST, DetectorBRISK,
	DetectorORB, DetectorAKAZE, DetectorSIFT,
}

// HasResponse reports whether keypoints from this detector carry a
// meaningful response score. Detectors without one emit keypoints already
// ordered by descending quality.
func (k DetectorKind) HasResponse() bool {
	return k != DetectorShiTomasi
}

// Valid reports whether k is a supported detector.
func (k DetectorKind) Valid() bool {
	for _, d := range AllDetectors {
		if d == k {
			return true
		}
	}
	return false
}

// DescriptorKind names a descriptor extractor.
type DescriptorKind string

const (
	DescriptorBRISK DescriptorKind = "BRISK"
	DescriptorBRIEF DescriptorKind = "BRIEF"
	DescriptorORB   DescriptorKind = "ORB"
	DescriptorFREAK DescriptorKind = "FREAK"
	DescriptorAKAZE DescriptorKind = "AKAZE"
	DescriptorSIFT  DescriptorKind = "SIFT"
)

// AllDescriptors is the full supported enumeration in sweep order.
var AllDescriptors = []DescriptorKind{
	DescriptorBRISK, DescriptorBRIEF, DescriptorORB,
	DescriptorFREAK, DescriptorAKAZE, DescriptorSIFT,
}

// Binary reports whether descriptors of this kind are bit strings.
func (k DescriptorKind) Binary() bool {
	return k != DescriptorSIFT
}

// Metric returns the distance metric implied by the descriptor kind.
func (k DescriptorKind) Metric() Metric {
	if k.Binary() {
		return MetricHamming
	}
	return MetricL2
}

// Valid reports whether k is a supported descriptor.
func (k DescriptorKind) Valid() bool {
	for _, d := range AllDescriptors {
		if d == k {
			return true
		}
	}
	return false
}

// MatcherKind selects the nearest-neighbour search strategy.
type MatcherKind string

const (
	MatcherBruteForce MatcherKind = "MAT_BF"
	MatcherFLANN      MatcherKind = "MAT_FLANN"
)

// Valid reports whether k is a supported matcher.
func (k MatcherKind) Valid() bool {
	return k == MatcherBruteForce || k == MatcherFLANN
}

// SelectorKind selects the match acceptance policy.
type SelectorKind string

const (
	SelectorNN  SelectorKind = "SEL_NN"
	SelectorKNN SelectorKind = "SEL_KNN"
)

// Valid reports whether k is a supported selector.
func (k SelectorKind) Valid() bool {
	return k == SelectorNN || k == SelectorKNN
}

// K returns how many neighbours the selector needs per query descriptor.
func (k SelectorKind) K() int {
	if k == SelectorKNN {
		return 2
	}
	return 1
}

// Metric is a descriptor distance function.
type Metric int

const (
	MetricHamming Metric = iota
	MetricL2
)

func (m Metric) String() string {
	switch m {
	case MetricHamming:
		return "hamming"
	case MetricL2:
		return "l2"
	}
	return fmt.Sprintf("metric(%d)", int(m))
}

// Compatible returns ErrIncompatibleConfiguration when the descriptor cannot
// be computed on keypoints produced by the detector. AKAZE descriptors need
// AKAZE keypoint metadata, and ORB descriptors cannot be computed on SIFT
// keypoints.
func Compatible(det DetectorKind, desc DescriptorKind) error {
	if desc == DescriptorAKAZE && det != DetectorAKAZE {
		return fmt.Errorf("%w: %s descriptors require %s keypoints, got %s",
			ErrIncompatibleConfiguration, desc, DetectorAKAZE, det)
	}
	if desc == DescriptorORB && det == DetectorSIFT {
		return fmt.Errorf("%w: %s descriptors cannot use %s keypoints",
			ErrIncompatibleConfiguration, desc, det)
	}
	return nil
}

// ParseDetectors parses a comma-separated detector list such as "SIFT,ORB".
// Names are case-insensitive. Returns nil, nil for an empty string.
func ParseDetectors(s string) ([]DetectorKind, error) {
	names := splitList(s)
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]DetectorKind, 0, len(names))
	for _, n := range names {
		k := DetectorKind(n)
		if !k.Valid() {
			return nil, fmt.Errorf("unknown detector %q", n)
		}
		out = append(out, k)
	}
	return out, nil
}

// ParseDescriptors parses a comma-separated descriptor list such as "BRISK,SIFT".
// Names are case-insensitive. Returns nil, nil for an empty string.
func ParseDescriptors(s string) ([]DescriptorKind, error) {
	names := splitList(s)
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]DescriptorKind, 0, len(names))
	for _, n := range names {
		k := DescriptorKind(n)
		if !k.Valid() {
			return nil, fmt.Errorf("unknown descriptor %q", n)
		}
		out = append(out, k)
	}
	return out, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
