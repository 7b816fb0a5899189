package vision

import (
	"fmt"
	"image"
)

// KeypointTag is detector-specific metadata that some extractors need
// (AKAZE reads the class id and octave written by its own detector).
// The benchmark never interprets it.
type KeypointTag struct {
	Angle   float64
	Octave  int
	ClassID int
}

// Keypoint is a point of interest produced by a detector.
type Keypoint struct {
	X, Y     float64
	Size     float64 // support-region diameter
	Response float64 // zero when the detector has no response score
	Tag      KeypointTag
}

// Pt returns the keypoint position rounded down to integer pixels.
func (k Keypoint) Pt() image.Point {
	return image.Pt(int(k.X), int(k.Y))
}

// Descriptors is an ordered block of descriptor rows, one per keypoint.
// Exactly one of Binary and Float is populated, according to the
// descriptor kind that produced it.
type Descriptors struct {
	Binary [][]byte
	Float  [][]float64
}

// Rows returns the number of descriptor rows.
func (d Descriptors) Rows() int {
	if d.Binary != nil {
		return len(d.Binary)
	}
	return len(d.Float)
}

// Empty reports whether the block has no rows.
func (d Descriptors) Empty() bool { return d.Rows() == 0 }

// IsBinary reports whether the block holds bit-string descriptors.
func (d Descriptors) IsBinary() bool { return d.Binary != nil }

// Select returns a block holding only the given rows, in the given order.
func (d Descriptors) Select(rows []int) Descriptors {
	var out Descriptors
	if d.Binary != nil {
		out.Binary = make([][]byte, len(rows))
		for i, r := range rows {
			out.Binary[i] = d.Binary[r]
		}
		return out
	}
	if d.Float != nil {
		out.Float = make([][]float64, len(rows))
		for i, r := range rows {
			out.Float[i] = d.Float[r]
		}
	}
	return out
}

// CheckAligned returns an error unless the block has one row per keypoint.
func (d Descriptors) CheckAligned(kps []Keypoint) error {
	if d.Rows() != len(kps) {
		return fmt.Errorf("descriptor block has %d rows for %d keypoints", d.Rows(), len(kps))
	}
	return nil
}

// Neighbor is one search result: a row of the reference block and its
// distance to the query row.
type Neighbor struct {
	Index    int
	Distance float64
}

// Match is an accepted correspondence between the previous frame (Prev)
// and the current frame (Curr), both as keypoint indices.
type Match struct {
	Prev     int
	Curr     int
	Distance float64
}

// Configuration is one benchmark setting. Limit <= 0 disables retention.
type Configuration struct {
	Detector   DetectorKind   `json:"detector"`
	Descriptor DescriptorKind `json:"descriptor"`
	Matcher    MatcherKind    `json:"matcher"`
	Selector   SelectorKind   `json:"selector"`
	ROI        bool           `json:"roi"`
	Limit      int            `json:"limit,omitempty"`
}

// Validate checks every kind and the detector/descriptor compatibility.
func (c Configuration) Validate() error {
	if !c.Detector.Valid() {
		return fmt.Errorf("unknown detector %q", c.Detector)
	}
	if !c.Descriptor.Valid() {
		return fmt.Errorf("unknown descriptor %q", c.Descriptor)
	}
	if !c.Matcher.Valid() {
		return fmt.Errorf("unknown matcher %q", c.Matcher)
	}
	if !c.Selector.Valid() {
		return fmt.Errorf("unknown selector %q", c.Selector)
	}
	return Compatible(c.Detector, c.Descriptor)
}

func (c Configuration) String() string {
	s := fmt.Sprintf("%s/%s/%s/%s", c.Detector, c.Descriptor, c.Matcher, c.Selector)
	if c.ROI {
		s += "/roi"
	}
	if c.Limit > 0 {
		s += fmt.Sprintf("/n=%d", c.Limit)
	}
	return s
}
