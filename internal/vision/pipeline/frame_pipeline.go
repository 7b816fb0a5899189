package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/featurebench/internal/timeutil"
	"github.com/banshee-data/featurebench/internal/vision"
	"github.com/banshee-data/featurebench/internal/vision/l1images"
	"github.com/banshee-data/featurebench/internal/vision/l2frames"
	"github.com/banshee-data/featurebench/internal/vision/l3keypoints"
	"github.com/banshee-data/featurebench/internal/vision/l4matching"
	"github.com/banshee-data/featurebench/internal/vision/sweep"
)

// State is the lifecycle position of a FramePipeline.
type State int

const (
	StateEmpty State = iota
	StateFilling
	StateMatching
	StateDone
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateFilling:
		return "filling"
	case StateMatching:
		return "matching"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ErrPipelineDone is returned by Process after Finish.
var ErrPipelineDone = errors.New("pipeline already finished")

// Options are the settings shared by every configuration of a sweep.
type Options struct {
	ROI        l3keypoints.ROI
	Ratio      float64
	WindowSize int
	Clock      timeutil.Clock
}

// DefaultOptions returns the default ROI, ratio and two-frame window.
func DefaultOptions() Options {
	return Options{
		ROI:        l3keypoints.DefaultROI,
		Ratio:      l4matching.DefaultRatio,
		WindowSize: l2frames.DefaultWindowSize,
		Clock:      timeutil.RealClock{},
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ROI == (l3keypoints.ROI{}) {
		o.ROI = d.ROI
	}
	if o.Ratio == 0 {
		o.Ratio = d.Ratio
	}
	if o.WindowSize == 0 {
		o.WindowSize = d.WindowSize
	}
	if o.Clock == nil {
		o.Clock = d.Clock
	}
	return o
}

// FramePipeline processes the frames of one configuration in order. It owns
// its frame window and its collaborator instances; it is not safe for
// concurrent use.
type FramePipeline struct {
	cfg  vision.Configuration
	opts Options

	detector  vision.Detector
	extractor vision.Extractor
	searcher  vision.Searcher
	selector  *l4matching.Selector

	window *l2frames.Window
	state  State
}

// NewFramePipeline resolves the collaborators for cfg from backend.
//
// It panics when cfg pairs a descriptor with a detector it cannot be
// computed on: such configurations are filtered by the sweep and reaching
// here is a programming error. Other invalid settings and backend
// failures are returned as errors.
func NewFramePipeline(cfg vision.Configuration, backend vision.Backend, opts Options) (*FramePipeline, error) {
	if err := vision.Compatible(cfg.Detector, cfg.Descriptor); err != nil {
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	if cfg.ROI {
		if err := opts.ROI.Validate(); err != nil {
			return nil, err
		}
	}

	window, err := l2frames.NewWindow(opts.WindowSize)
	if err != nil {
		return nil, err
	}

	p := &FramePipeline{cfg: cfg, opts: opts, window: window, state: StateEmpty}
	if p.detector, err = backend.Detector(cfg.Detector); err != nil {
		return nil, fmt.Errorf("%s detector: %w", cfg.Detector, err)
	}
	if p.extractor, err = backend.Extractor(cfg.Descriptor); err != nil {
		p.Close()
		return nil, fmt.Errorf("%s extractor: %w", cfg.Descriptor, err)
	}
	if p.searcher, err = backend.Searcher(cfg.Matcher); err != nil {
		p.Close()
		return nil, fmt.Errorf("%s searcher: %w", cfg.Matcher, err)
	}
	if p.selector, err = l4matching.NewSelector(cfg.Selector, opts.Ratio, p.searcher); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// Config returns the configuration being run.
func (p *FramePipeline) Config() vision.Configuration { return p.cfg }

// State returns the current lifecycle state.
func (p *FramePipeline) State() State { return p.state }

// Window exposes the frame window for inspection.
func (p *FramePipeline) Window() *l2frames.Window { return p.window }

// Process runs one frame through the pipeline. The frame is pushed into
// the window before its keypoints are computed; matching runs only once
// the window holds at least two frames and compares the previous frame
// against the one just pushed.
func (p *FramePipeline) Process(ctx context.Context, img l1images.Image) (sweep.FrameResult, error) {
	res := sweep.FrameResult{Frame: img.Index, PrevFrame: -1}
	if p.state == StateDone {
		return res, ErrPipelineDone
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	p.window.Push(l2frames.NewFrame(img.Index, img.Gray))
	if p.window.Ready() {
		p.state = StateMatching
	} else {
		p.state = StateFilling
	}
	res.State = p.state.String()

	cur, err := p.window.Current()
	if err != nil {
		return res, err
	}

	sw := timeutil.Start(p.opts.Clock)
	kps, err := p.detector.Detect(cur.Image)
	res.DetectTime = sw.Elapsed()
	if err != nil {
		return res, fmt.Errorf("detecting keypoints: %w", err)
	}
	res.Detected = len(kps)

	if p.cfg.ROI {
		kps = p.opts.ROI.Filter(kps)
	}
	res.AfterROI = len(kps)
	res.KeypointSize = l3keypoints.ComputeSizeStats(kps)

	if p.cfg.Limit > 0 {
		kps = l3keypoints.RetainBest(kps, p.cfg.Limit, p.cfg.Detector.HasResponse())
	}
	res.Retained = len(kps)

	sw = timeutil.Start(p.opts.Clock)
	kps, desc, err := p.extractor.Extract(cur.Image, kps)
	res.ExtractTime = sw.Elapsed()
	if err != nil {
		return res, fmt.Errorf("extracting descriptors: %w", err)
	}
	if err := desc.CheckAligned(kps); err != nil {
		return res, fmt.Errorf("extracting descriptors: %w", err)
	}
	cur.Keypoints = kps
	cur.Descriptors = desc
	res.Described = len(kps)

	if p.window.Ready() {
		prev, err := p.window.Previous()
		if err != nil {
			return res, err
		}
		sw = timeutil.Start(p.opts.Clock)
		m, err := p.selector.Select(prev.Descriptors, cur.Descriptors, p.cfg.Descriptor)
		res.MatchTime = sw.Elapsed()
		if err != nil {
			return res, fmt.Errorf("matching frame %d against %d: %w", cur.Index, prev.Index, err)
		}
		cur.Matches = m.Matches
		if err := cur.Validate(prev); err != nil {
			return res, err
		}
		res.MatchAttempted = true
		res.PrevFrame = prev.Index
		res.Candidates = m.Candidates
		res.Matches = len(m.Matches)
		res.EmptyDescriptors = m.EmptyDescriptors
	}

	tracef("%s frame=%d state=%s detected=%d roi=%d retained=%d described=%d matches=%d",
		p.cfg, res.Frame, res.State, res.Detected, res.AfterROI, res.Retained, res.Described, res.Matches)
	return res, nil
}

// Finish marks the source as exhausted.
func (p *FramePipeline) Finish() {
	p.state = StateDone
}

// Run feeds every frame of src through the pipeline, stopping at the end of
// the sequence. A frame that cannot be loaded or processed abandons the
// remaining frames; the failure is recorded on the result.
func (p *FramePipeline) Run(ctx context.Context, src l1images.Source) sweep.ConfigResult {
	start := p.opts.Clock.Now()
	out := sweep.ConfigResult{Config: p.cfg}
	defer p.Finish()

	for i := 0; ; i++ {
		img, err := src.Load(ctx, i)
		if errors.Is(err, l1images.ErrEndOfSequence) {
			break
		}
		if err != nil {
			out.Err = fmt.Errorf("loading frame %d: %w", i, err)
			break
		}
		res, err := p.Process(ctx, img)
		if err != nil {
			out.Frames = append(out.Frames, res)
			out.Err = fmt.Errorf("frame %d: %w", i, err)
			break
		}
		out.Frames = append(out.Frames, res)
	}
	out.Elapsed = p.opts.Clock.Since(start)
	return out
}

// Close releases collaborator resources.
func (p *FramePipeline) Close() error {
	var errs []error
	for _, c := range []any{p.detector, p.extractor, p.searcher} {
		if c == nil {
			continue
		}
		if err := vision.CloseIfCloser(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func elapsedMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
