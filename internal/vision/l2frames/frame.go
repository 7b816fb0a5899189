// Package l2frames owns Layer 2 (Frames) of the benchmark data model.
//
// Responsibilities: the per-frame record carried through a configuration
// run and the sliding window holding the last frames for matching.
// Key types: Frame, Window.
//
// Dependency rule: L2 may depend on L1 and the vision root package, but
// never on L3+.
package l2frames

import (
	"fmt"
	"image"

	"github.com/banshee-data/featurebench/internal/ringbuf"
	"github.com/banshee-data/featurebench/internal/vision"
)

// DefaultWindowSize is the number of frames held for matching.
const DefaultWindowSize = 2

// Frame is one processed camera frame. Matches are populated only on the
// newer side of a match attempt and refer to the previous frame.
type Frame struct {
	Index       int
	Image       *image.Gray
	Keypoints   []vision.Keypoint
	Descriptors vision.Descriptors
	Matches     []vision.Match
}

// NewFrame wraps a decoded image.
func NewFrame(index int, img *image.Gray) *Frame {
	return &Frame{Index: index, Image: img}
}

// Validate checks that descriptors and matches are consistent with the
// frame's keypoints. prev is the frame the matches refer to and may be nil
// when the frame has none.
func (f *Frame) Validate(prev *Frame) error {
	if f.Descriptors.Rows() != 0 || len(f.Keypoints) != 0 {
		if err := f.Descriptors.CheckAligned(f.Keypoints); err != nil {
			return fmt.Errorf("frame %d: %w", f.Index, err)
		}
	}
	if len(f.Matches) == 0 {
		return nil
	}
	if prev == nil {
		return fmt.Errorf("frame %d has %d matches but no previous frame", f.Index, len(f.Matches))
	}
	for _, m := range f.Matches {
		if m.Curr < 0 || m.Curr >= len(f.Keypoints) {
			return fmt.Errorf("frame %d: match current index %d outside [0,%d)", f.Index, m.Curr, len(f.Keypoints))
		}
		if m.Prev < 0 || m.Prev >= len(prev.Keypoints) {
			return fmt.Errorf("frame %d: match previous index %d outside [0,%d)", f.Index, m.Prev, len(prev.Keypoints))
		}
	}
	return nil
}

// Window is the sliding window of recent frames. It owns its ring buffer;
// a Window is never shared between configurations.
type Window struct {
	buf *ringbuf.RingBuffer[*Frame]
}

// NewWindow returns an empty window holding up to size frames.
func NewWindow(size int) (*Window, error) {
	buf, err := ringbuf.New[*Frame](size)
	if err != nil {
		return nil, fmt.Errorf("frame window: %w", err)
	}
	return &Window{buf: buf}, nil
}

// Push appends f as the current frame, dropping the oldest frame when full.
func (w *Window) Push(f *Frame) {
	w.buf.Insert(f)
}

// Current returns the most recently pushed frame.
func (w *Window) Current() (*Frame, error) {
	return w.buf.Head(0)
}

// Previous returns the frame pushed before Current.
func (w *Window) Previous() (*Frame, error) {
	return w.buf.Head(1)
}

// Back returns the frame pushed offset frames before Current.
func (w *Window) Back(offset int) (*Frame, error) {
	return w.buf.Head(offset)
}

// Ready reports whether the window holds enough frames to match.
func (w *Window) Ready() bool {
	return w.buf.Size() > 1
}

// Len returns the number of frames held.
func (w *Window) Len() int { return w.buf.Size() }

// Cap returns the window size.
func (w *Window) Cap() int { return w.buf.Capacity() }

// Frames returns the held frames, oldest first.
func (w *Window) Frames() []*Frame {
	return w.buf.All()
}

// Reset empties the window.
func (w *Window) Reset() {
	w.buf.Reset()
}
