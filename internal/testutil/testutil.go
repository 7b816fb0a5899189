// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files: assertion shorthands, synthetic frame sequences and a
// deterministic in-process vision backend.
package testutil

import (
	"testing"

	"github.com/banshee-data/featurebench/internal/vision"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertMatchesInRange fails the test if any match index falls outside the
// previous or current keypoint counts.
func AssertMatchesInRange(t testing.TB, matches []vision.Match, prevCount, curCount int) {
	t.Helper()
	for i, m := range matches {
		if m.Prev < 0 || m.Prev >= prevCount {
			t.Errorf("match %d: previous index %d outside [0,%d)", i, m.Prev, prevCount)
		}
		if m.Curr < 0 || m.Curr >= curCount {
			t.Errorf("match %d: current index %d outside [0,%d)", i, m.Curr, curCount)
		}
	}
}
