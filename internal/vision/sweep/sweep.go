// Package sweep enumerates benchmark configurations and formats sweep
// results. It includes the detector × descriptor × limit cartesian
// product, retention-limit list parsing, summary statistics and CSV output.
package sweep

import (
	"errors"
	"fmt"
	"iter"

	"github.com/banshee-data/featurebench/internal/vision"
)

// ErrEmptySweep is returned by Validate when every detector/descriptor
// pair is excluded.
var ErrEmptySweep = errors.New("sweep has no compatible detector/descriptor pairs")

// Sweep describes the configuration space of one benchmark run.
// Detectors and Descriptors are crossed in their given order; Limits forms
// the innermost dimension. An empty Limits list runs without retention.
type Sweep struct {
	Detectors   []vision.DetectorKind
	Descriptors []vision.DescriptorKind
	Matcher     vision.MatcherKind
	Selector    vision.SelectorKind
	ROI         bool
	Limits      []int
}

// Full returns the sweep over every supported detector and descriptor.
func Full(matcher vision.MatcherKind, selector vision.SelectorKind, roi bool, limits []int) Sweep {
	return Sweep{
		Detectors:   append([]vision.DetectorKind(nil), vision.AllDetectors...),
		Descriptors: append([]vision.DescriptorKind(nil), vision.AllDescriptors...),
		Matcher:     matcher,
		Selector:    selector,
		ROI:         roi,
		Limits:      limits,
	}
}

// Validate checks the sweep dimensions.
func (s Sweep) Validate() error {
	if len(s.Detectors) == 0 {
		return errors.New("sweep has no detectors")
	}
	if len(s.Descriptors) == 0 {
		return errors.New("sweep has no descriptors")
	}
	for _, d := range s.Detectors {
		if !d.Valid() {
			return fmt.Errorf("unknown detector %q", d)
		}
	}
	for _, d := range s.Descriptors {
		if !d.Valid() {
			return fmt.Errorf("unknown descriptor %q", d)
		}
	}
	if !s.Matcher.Valid() {
		return fmt.Errorf("unknown matcher %q", s.Matcher)
	}
	if !s.Selector.Valid() {
		return fmt.Errorf("unknown selector %q", s.Selector)
	}
	for _, n := range s.Limits {
		if n < 1 {
			return fmt.Errorf("retention limit %d must be positive", n)
		}
	}
	if s.Count() == 0 {
		return ErrEmptySweep
	}
	return nil
}

// Configurations yields every compatible configuration in sweep order.
// The sequence is lazy and may be ranged over any number of times.
func (s Sweep) Configurations() iter.Seq[vision.Configuration] {
	limits := s.Limits
	if len(limits) == 0 {
		limits = []int{0}
	}
	return func(yield func(vision.Configuration) bool) {
		for _, det := range s.Detectors {
			for _, desc := range s.Descriptors {
				if vision.Compatible(det, desc) != nil {
					continue
				}
				for _, n := range limits {
					c := vision.Configuration{
						Detector:   det,
						Descriptor: desc,
						Matcher:    s.Matcher,
						Selector:   s.Selector,
						ROI:        s.ROI,
						Limit:      n,
					}
					if !yield(c) {
						return
					}
				}
			}
		}
	}
}

// Excluded yields the detector/descriptor pairs skipped by the
// compatibility rule, in sweep order.
func (s Sweep) Excluded() iter.Seq2[vision.DetectorKind, vision.DescriptorKind] {
	return func(yield func(vision.DetectorKind, vision.DescriptorKind) bool) {
		for _, det := range s.Detectors {
			for _, desc := range s.Descriptors {
				if vision.Compatible(det, desc) == nil {
					continue
				}
				if !yield(det, desc) {
					return
				}
			}
		}
	}
}

// Count returns the number of configurations Configurations yields.
func (s Sweep) Count() int {
	n := 0
	for range s.Configurations() {
		n++
	}
	return n
}
