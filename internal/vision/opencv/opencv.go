//go:build opencv
// +build opencv

package opencv

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/banshee-data/featurebench/internal/vision"
)

// Enabled reports whether OpenCV support is compiled in.
const Enabled = true

// Shi-Tomasi parameters: corners are searched over 4×4 blocks with no
// overlap between neighbouring corners.
const (
	shiTomasiBlockSize  = 4
	shiTomasiMaxOverlap = 0.0
	shiTomasiQuality    = 0.01
)

// Backend creates OpenCV collaborators. Every call returns fresh OpenCV
// objects; callers must close them via vision.CloseIfCloser.
type Backend struct{}

// New returns the OpenCV backend.
func New() (vision.Backend, error) {
	return Backend{}, nil
}

// Name implements vision.Backend.
func (Backend) Name() string { return "opencv" }

// Detector implements vision.Backend.
func (Backend) Detector(kind vision.DetectorKind) (vision.Detector, error) {
	switch kind {
	case vision.DetectorShiTomasi:
		return shiTomasi{}, nil
	case vision.DetectorFAST:
		d := gocv.NewFastFeatureDetector()
		return &featureDetector{detect: d.Detect, close: d.Close}, nil
	case vision.DetectorBRISK:
		d := gocv.NewBRISK()
		return &featureDetector{detect: d.Detect, close: d.Close}, nil
	case vision.DetectorORB:
		d := gocv.NewORB()
		return &featureDetector{detect: d.Detect, close: d.Close}, nil
	case vision.DetectorAKAZE:
		d := gocv.NewAKAZE()
		return &featureDetector{detect: d.Detect, close: d.Close}, nil
	case vision.DetectorSIFT:
		d := gocv.NewSIFT()
		return &featureDetector{detect: d.Detect, close: d.Close}, nil
	case vision.DetectorHarris:
		return nil, fmt.Errorf("%s detector: %w", kind, vision.ErrUnsupported)
	}
	return nil, fmt.Errorf("unknown detector %q", kind)
}

// Extractor implements vision.Backend.
func (Backend) Extractor(kind vision.DescriptorKind) (vision.Extractor, error) {
	switch kind {
	case vision.DescriptorBRISK:
		e := gocv.NewBRISK()
		return &featureExtractor{compute: e.Compute, close: e.Close}, nil
	case vision.DescriptorORB:
		e := gocv.NewORB()
		return &featureExtractor{compute: e.Compute, close: e.Close}, nil
	case vision.DescriptorAKAZE:
		e := gocv.NewAKAZE()
		return &featureExtractor{compute: e.Compute, close: e.Close}, nil
	case vision.DescriptorSIFT:
		e := gocv.NewSIFT()
		return &featureExtractor{compute: e.Compute, close: e.Close}, nil
	case vision.DescriptorBRIEF, vision.DescriptorFREAK:
		return nil, fmt.Errorf("%s extractor: %w", kind, vision.ErrUnsupported)
	}
	return nil, fmt.Errorf("unknown descriptor %q", kind)
}

// Searcher implements vision.Backend.
func (Backend) Searcher(kind vision.MatcherKind) (vision.Searcher, error) {
	switch kind {
	case vision.MatcherBruteForce:
		return bfSearcher{}, nil
	case vision.MatcherFLANN:
		m := gocv.NewFlannBasedMatcher()
		return &flannSearcher{matcher: &m}, nil
	}
	return nil, fmt.Errorf("unknown matcher %q", kind)
}

type shiTomasi struct{}

func (shiTomasi) Detect(img *image.Gray) ([]vision.Keypoint, error) {
	mat, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		return nil, fmt.Errorf("converting frame: %w", err)
	}
	defer mat.Close()

	corners := gocv.NewMat()
	defer corners.Close()

	minDistance := (1 - shiTomasiMaxOverlap) * shiTomasiBlockSize
	maxCorners := int(float64(mat.Rows()*mat.Cols()) / max(1.0, minDistance))
	gocv.GoodFeaturesToTrack(mat, &corners, maxCorners, shiTomasiQuality, minDistance)

	out := make([]vision.Keypoint, 0, corners.Rows())
	for i := 0; i < corners.Rows(); i++ {
		p := corners.GetVecfAt(i, 0)
		out = append(out, vision.Keypoint{
			X:    float64(p[0]),
			Y:    float64(p[1]),
			Size: shiTomasiBlockSize,
		})
	}
	return out, nil
}

// featureDetector adapts any gocv Feature2D detector.
type featureDetector struct {
	detect func(gocv.Mat) []gocv.KeyPoint
	close  func() error
	closed bool
}

func (d *featureDetector) Detect(img *image.Gray) ([]vision.Keypoint, error) {
	if d.closed {
		return nil, errors.New("detector closed")
	}
	mat, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		return nil, fmt.Errorf("converting frame: %w", err)
	}
	defer mat.Close()
	return fromKeyPoints(d.detect(mat)), nil
}

func (d *featureDetector) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.close()
}

// featureExtractor adapts any gocv Feature2D descriptor extractor.
type featureExtractor struct {
	compute func(src, mask gocv.Mat, kps []gocv.KeyPoint) ([]gocv.KeyPoint, gocv.Mat)
	close   func() error
	closed  bool
}

func (e *featureExtractor) Extract(img *image.Gray, kps []vision.Keypoint) ([]vision.Keypoint, vision.Descriptors, error) {
	if e.closed {
		return nil, vision.Descriptors{}, errors.New("extractor closed")
	}
	if len(kps) == 0 {
		return nil, vision.Descriptors{}, nil
	}
	mat, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		return nil, vision.Descriptors{}, fmt.Errorf("converting frame: %w", err)
	}
	defer mat.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	outKps, desc := e.compute(mat, mask, toKeyPoints(kps))
	defer desc.Close()

	block, err := matToDescriptors(desc)
	if err != nil {
		return nil, vision.Descriptors{}, err
	}
	return fromKeyPoints(outKps), block, nil
}

func (e *featureExtractor) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.close()
}

// bfSearcher runs exhaustive search with the norm matching the metric.
type bfSearcher struct{}

func (bfSearcher) Search(query, reference vision.Descriptors, metric vision.Metric, k int) ([][]vision.Neighbor, error) {
	norm := gocv.NormHamming
	if metric == vision.MetricL2 {
		norm = gocv.NormL2
	}
	if query.IsBinary() != (metric == vision.MetricHamming) || reference.IsBinary() != query.IsBinary() {
		return nil, fmt.Errorf("metric %s does not fit the descriptor blocks", metric)
	}

	q, err := descriptorsToMat(query, false)
	if err != nil {
		return nil, err
	}
	defer q.Close()
	r, err := descriptorsToMat(reference, false)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	m := gocv.NewBFMatcherWithParams(norm, false)
	defer m.Close()
	return fromDMatches(m.KnnMatch(q, r, k), query.Rows()), nil
}

// flannSearcher runs approximate search. FLANN's KD-trees need floating
// point rows, so binary blocks are widened to float32 and compared under
// L2.
type flannSearcher struct {
	matcher *gocv.FlannBasedMatcher
}

func (f *flannSearcher) Search(query, reference vision.Descriptors, _ vision.Metric, k int) ([][]vision.Neighbor, error) {
	if f.matcher == nil {
		return nil, errors.New("searcher closed")
	}
	q, err := descriptorsToMat(query, true)
	if err != nil {
		return nil, err
	}
	defer q.Close()
	r, err := descriptorsToMat(reference, true)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return fromDMatches(f.matcher.KnnMatch(q, r, k), query.Rows()), nil
}

func (f *flannSearcher) Close() error {
	if f.matcher == nil {
		return nil
	}
	err := f.matcher.Close()
	f.matcher = nil
	return err
}
