package testutil

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync/atomic"

	"github.com/banshee-data/featurebench/internal/vision"
)

// Blob is a single bright pixel in a synthetic scene. Intensity doubles as
// its identity: the synthetic detector reports it as the response and the
// synthetic extractor derives the descriptor from it.
type Blob struct {
	X, Y      int
	Intensity uint8
}

// Scene renders blobs onto a black w×h image, shifted right by dx pixels.
// Blobs shifted outside the image are dropped.
func Scene(w, h, dx int, blobs []Blob) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for _, b := range blobs {
		x := b.X + dx
		if x < 0 || x >= w || b.Y < 0 || b.Y >= h {
			continue
		}
		img.SetGray(x, b.Y, color.Gray{Y: b.Intensity})
	}
	return img
}

// Sequence renders n frames of the same blobs moving step pixels per frame.
func Sequence(w, h, n, step int, blobs []Blob) []*image.Gray {
	out := make([]*image.Gray, n)
	for i := range out {
		out[i] = Scene(w, h, i*step, blobs)
	}
	return out
}

// GridBlobs returns n blobs laid out on a grid inside rect with distinct
// intensities starting at 10.
func GridBlobs(rect image.Rectangle, n int) []Blob {
	out := make([]Blob, 0, n)
	cols := max(rect.Dx()/8, 1)
	for i := 0; i < n && i < 245; i++ {
		out = append(out, Blob{
			X:         rect.Min.X + 4 + (i%cols)*8,
			Y:         rect.Min.Y + 4 + (i/cols)*8,
			Intensity: uint8(10 + i),
		})
	}
	return out
}

// SyntheticBackend is a deterministic vision.Backend for tests. Its
// detector reports every non-black pixel as a keypoint; its extractors
// derive descriptors from pixel intensity, so the same blob gets the same
// descriptor in every frame. Search is delegated to Search.
type SyntheticBackend struct {
	// Search supplies the searcher for each matcher kind.
	Search func(vision.MatcherKind) (vision.Searcher, error)

	// Unsupported lists detector or descriptor kinds the backend refuses
	// with vision.ErrUnsupported.
	Unsupported map[string]bool

	// FailDetectAt makes every detector fail on its n-th call (1-based)
	// when positive.
	FailDetectAt int

	// DropKeypoints makes extractors return one descriptor row fewer than
	// keypoints, breaking alignment.
	DropKeypoints bool

	opened   atomic.Int64
	closed   atomic.Int64
	maxLive  atomic.Int64
	liveNow  atomic.Int64
	detected atomic.Int64
}

// Name implements vision.Backend.
func (b *SyntheticBackend) Name() string { return "synthetic" }

// Detector implements vision.Backend.
func (b *SyntheticBackend) Detector(kind vision.DetectorKind) (vision.Detector, error) {
	if b.Unsupported[string(kind)] {
		return nil, fmt.Errorf("%s: %w", kind, vision.ErrUnsupported)
	}
	b.track()
	return &syntheticDetector{backend: b, kind: kind}, nil
}

// Extractor implements vision.Backend.
func (b *SyntheticBackend) Extractor(kind vision.DescriptorKind) (vision.Extractor, error) {
	if b.Unsupported[string(kind)] {
		return nil, fmt.Errorf("%s: %w", kind, vision.ErrUnsupported)
	}
	return syntheticExtractor{binary: kind.Binary(), drop: b.DropKeypoints}, nil
}

// Searcher implements vision.Backend.
func (b *SyntheticBackend) Searcher(kind vision.MatcherKind) (vision.Searcher, error) {
	if b.Search == nil {
		return nil, errors.New("synthetic backend has no searcher")
	}
	return b.Search(kind)
}

// Opened returns how many detectors have been handed out.
func (b *SyntheticBackend) Opened() int { return int(b.opened.Load()) }

// Closed returns how many detectors have been closed.
func (b *SyntheticBackend) Closed() int { return int(b.closed.Load()) }

// MaxLive returns the largest number of detectors open at the same time.
func (b *SyntheticBackend) MaxLive() int { return int(b.maxLive.Load()) }

// Detections returns the total number of Detect calls.
func (b *SyntheticBackend) Detections() int { return int(b.detected.Load()) }

func (b *SyntheticBackend) track() {
	b.opened.Add(1)
	live := b.liveNow.Add(1)
	for {
		cur := b.maxLive.Load()
		if live <= cur || b.maxLive.CompareAndSwap(cur, live) {
			return
		}
	}
}

type syntheticDetector struct {
	backend *SyntheticBackend
	kind    vision.DetectorKind
	calls   int
	closed  bool
}

func (d *syntheticDetector) Detect(img *image.Gray) ([]vision.Keypoint, error) {
	d.calls++
	d.backend.detected.Add(1)
	if d.backend.FailDetectAt > 0 && d.calls == d.backend.FailDetectAt {
		return nil, fmt.Errorf("synthetic %s detector failed on call %d", d.kind, d.calls)
	}
	if img == nil {
		return nil, errors.New("nil image")
	}
	var out []vision.Keypoint
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := img.GrayAt(x, y).Y
			if v == 0 {
				continue
			}
			kp := vision.Keypoint{
				X:    float64(x),
				Y:    float64(y),
				Size: float64(v%7 + 1),
			}
			if d.kind.HasResponse() {
				kp.Response = float64(v)
			}
			out = append(out, kp)
		}
	}
	return out, nil
}

func (d *syntheticDetector) Close() error {
	if d.closed {
		return errors.New("detector closed twice")
	}
	d.closed = true
	d.backend.closed.Add(1)
	d.backend.liveNow.Add(-1)
	return nil
}

type syntheticExtractor struct {
	binary bool
	drop   bool
}

func (e syntheticExtractor) Extract(img *image.Gray, kps []vision.Keypoint) ([]vision.Keypoint, vision.Descriptors, error) {
	out := append([]vision.Keypoint(nil), kps...)
	var desc vision.Descriptors
	if e.binary {
		desc.Binary = make([][]byte, 0, len(kps))
	} else {
		desc.Float = make([][]float64, 0, len(kps))
	}
	for _, kp := range kps {
		v := img.GrayAt(int(kp.X), int(kp.Y)).Y
		if e.binary {
			desc.Binary = append(desc.Binary, []byte{v, v ^ 0x5a, ^v, v >> 1})
		} else {
			desc.Float = append(desc.Float, []float64{float64(v), float64(v) / 2})
		}
	}
	if e.drop && len(kps) > 0 {
		if e.binary {
			desc.Binary = desc.Binary[:len(desc.Binary)-1]
		} else {
			desc.Float = desc.Float[:len(desc.Float)-1]
		}
	}
	return out, desc, nil
}
