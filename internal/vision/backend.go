package vision

import (
	"errors"
	"image"
	"io"
)

var (
	// ErrIncompatibleConfiguration marks a detector/descriptor pair excluded
	// by Compatible. Reaching a pipeline with such a pair is a programming
	// error.
	ErrIncompatibleConfiguration = errors.New("incompatible detector/descriptor configuration")

	// ErrUnsupported is returned by a Backend that cannot provide a
	// capability for the requested kind.
	ErrUnsupported = errors.New("unsupported by vision backend")
)

// Detector finds keypoints in a grayscale image.
type Detector interface {
	Detect(img *image.Gray) ([]Keypoint, error)
}

// Extractor computes one descriptor row per keypoint. Implementations may
// drop keypoints they cannot describe; the returned keypoints and
// descriptor block are always aligned row-for-row.
type Extractor interface {
	Extract(img *image.Gray, kps []Keypoint) ([]Keypoint, Descriptors, error)
}

// Searcher returns, for every query row, up to k nearest rows of the
// reference block ordered by ascending distance.
type Searcher interface {
	Search(query, reference Descriptors, metric Metric, k int) ([][]Neighbor, error)
}

// Backend resolves the capability variants for each supported kind.
// Every call returns a fresh instance owned by the caller; instances that
// implement io.Closer must be closed by the caller.
type Backend interface {
	Name() string
	Detector(kind DetectorKind) (Detector, error)
	Extractor(kind DescriptorKind) (Extractor, error)
	Searcher(kind MatcherKind) (Searcher, error)
}

// CloseIfCloser closes v when it holds releasable resources.
func CloseIfCloser(v any) error {
	if c, ok := v.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
