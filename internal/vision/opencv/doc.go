// Package opencv is the OpenCV-backed vision.Backend. Detection, extraction
// and candidate search run in OpenCV through gocv.
//
// The implementation is compiled only with the opencv build tag, which
// needs OpenCV 4 and its headers installed:
//
//	go build -tags=opencv ./...
//
// Without the tag New returns an error and the rest of the module builds
// and tests without cgo.
//
// HARRIS keypoints and the BRIEF and FREAK descriptors live in OpenCV's
// contrib modules, which gocv's core package does not bind; requesting them
// yields vision.ErrUnsupported.
package opencv
