package l3keypoints

import (
	"fmt"

	"github.com/banshee-data/featurebench/internal/vision"
)

// ROI is an axis-aligned rectangle in image pixel coordinates.
// A point lies inside when X <= x < X+Width and Y <= y < Y+Height.
type ROI struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DefaultROI is the preceding-vehicle region used for the KITTI sequence.
var DefaultROI = ROI{X: 535, Y: 180, Width: 180, Height: 150}

// Validate rejects degenerate rectangles.
func (r ROI) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("roi %dx%d must have positive width and height", r.Width, r.Height)
	}
	if r.X < 0 || r.Y < 0 {
		return fmt.Errorf("roi origin (%d,%d) must be non-negative", r.X, r.Y)
	}
	return nil
}

// Contains reports whether the keypoint centre falls inside the rectangle.
func (r ROI) Contains(kp vision.Keypoint) bool {
	return kp.X >= float64(r.X) && kp.X < float64(r.X+r.Width) &&
		kp.Y >= float64(r.Y) && kp.Y < float64(r.Y+r.Height)
}

// Filter returns the keypoints inside the rectangle, preserving order.
func (r ROI) Filter(kps []vision.Keypoint) []vision.Keypoint {
	out := make([]vision.Keypoint, 0, len(kps))
	for _, kp := range kps {
		if r.Contains(kp) {
			out = append(out, kp)
		}
	}
	return out
}

func (r ROI) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.Width, r.Height)
}
