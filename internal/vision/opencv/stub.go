//go:build !opencv
// +build !opencv

package opencv

import (
	"fmt"

	"github.com/banshee-data/featurebench/internal/vision"
)

// Enabled reports whether OpenCV support is compiled in.
const Enabled = false

// New is a stub implementation when OpenCV support is disabled.
// Build with -tags=opencv to enable the OpenCV backend.
func New() (vision.Backend, error) {
	return nil, fmt.Errorf("OpenCV support not enabled: rebuild with -tags=opencv to enable the OpenCV backend")
}
