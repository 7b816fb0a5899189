package pipeline

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/featurebench/internal/testutil"
	"github.com/banshee-data/featurebench/internal/timeutil"
	"github.com/banshee-data/featurebench/internal/vision"
	"github.com/banshee-data/featurebench/internal/vision/l1images"
	"github.com/banshee-data/featurebench/internal/vision/l3keypoints"
	"github.com/banshee-data/featurebench/internal/vision/l4matching"
)

var testROI = l3keypoints.ROI{X: 0, Y: 0, Width: 32, Height: 32}

// testFrames renders n 64×64 frames with 30 static blobs, 16 of which lie
// inside testROI.
func testFrames(n int) []*image.Gray {
	blobs := testutil.GridBlobs(image.Rect(0, 0, 64, 64), 30)
	return testutil.Sequence(64, 64, n, 0, blobs)
}

func testOptions() Options {
	return Options{ROI: testROI, Ratio: 0.8, WindowSize: 2}
}

func newBackend() *testutil.SyntheticBackend {
	return &testutil.SyntheticBackend{Search: l4matching.NativeSearcher}
}

func fastBrief(roi bool, limit int) vision.Configuration {
	return vision.Configuration{
		Detector:   vision.DetectorFAST,
		Descriptor: vision.DescriptorBRIEF,
		Matcher:    vision.MatcherBruteForce,
		Selector:   vision.SelectorNN,
		ROI:        roi,
		Limit:      limit,
	}
}

func TestFramePipeline_ThreeFrameWindow(t *testing.T) {
	p, err := NewFramePipeline(fastBrief(false, 0), newBackend(), testOptions())
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, StateEmpty, p.State())

	ctx := context.Background()
	frames := testFrames(3)

	r0, err := p.Process(ctx, l1images.Image{Index: 0, Gray: frames[0]})
	require.NoError(t, err)
	assert.Equal(t, StateFilling, p.State())
	assert.False(t, r0.MatchAttempted)
	assert.Equal(t, -1, r0.PrevFrame)
	assert.Equal(t, "filling", r0.State)
	assert.Equal(t, 30, r0.Described)

	r1, err := p.Process(ctx, l1images.Image{Index: 1, Gray: frames[1]})
	require.NoError(t, err)
	assert.Equal(t, StateMatching, p.State())
	assert.True(t, r1.MatchAttempted)
	assert.Equal(t, 0, r1.PrevFrame)
	assert.Equal(t, 30, r1.Matches)

	cur, err := p.Window().Current()
	require.NoError(t, err)
	for _, m := range cur.Matches {
		assert.Equal(t, m.Prev, m.Curr, "static scene matches each blob to itself")
		assert.Zero(t, m.Distance)
	}

	r2, err := p.Process(ctx, l1images.Image{Index: 2, Gray: frames[2]})
	require.NoError(t, err)
	assert.True(t, r2.MatchAttempted)
	assert.Equal(t, 1, r2.PrevFrame)

	prev, err := p.Window().Previous()
	require.NoError(t, err)
	assert.Equal(t, 1, prev.Index)
	_, err = p.Window().Back(2)
	assert.Error(t, err, "frame 0 must have left the window")
	assert.Equal(t, 2, p.Window().Len())
}

func TestFramePipeline_ROIAndRetention(t *testing.T) {
	frames := testFrames(1)
	tests := []struct {
		name     string
		cfg      vision.Configuration
		roi      int
		retained int
	}{
		{"no roi no limit", fastBrief(false, 0), 30, 30},
		{"roi", fastBrief(true, 0), 16, 16},
		{"roi and limit", fastBrief(true, 5), 16, 5},
		{"limit above count", fastBrief(true, 50), 16, 16},
		{"shi-tomasi truncates", vision.Configuration{
			Detector: vision.DetectorShiTomasi, Descriptor: vision.DescriptorBRISK,
			Matcher: vision.MatcherBruteForce, Selector: vision.SelectorNN, Limit: 7,
		}, 30, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewFramePipeline(tt.cfg, newBackend(), testOptions())
			require.NoError(t, err)
			defer p.Close()

			res, err := p.Process(context.Background(), l1images.Image{Gray: frames[0]})
			require.NoError(t, err)
			assert.Equal(t, 30, res.Detected)
			assert.Equal(t, tt.roi, res.AfterROI)
			assert.Equal(t, tt.retained, res.Retained)
			assert.Equal(t, tt.retained, res.Described)
			assert.Equal(t, tt.roi, res.KeypointSize.Count, "size stats are taken before retention")
		})
	}
}

func TestFramePipeline_RetainsStrongestResponses(t *testing.T) {
	p, err := NewFramePipeline(fastBrief(false, 3), newBackend(), testOptions())
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Process(context.Background(), l1images.Image{Gray: testFrames(1)[0]})
	require.NoError(t, err)
	cur, err := p.Window().Current()
	require.NoError(t, err)
	require.Len(t, cur.Keypoints, 3)
	for _, kp := range cur.Keypoints {
		// Intensities run from 10 to 39.
		assert.GreaterOrEqual(t, kp.Response, 37.0)
	}
}

func TestFramePipeline_KNN(t *testing.T) {
	cfg := fastBrief(false, 0)
	cfg.Selector = vision.SelectorKNN
	p, err := NewFramePipeline(cfg, newBackend(), testOptions())
	require.NoError(t, err)
	defer p.Close()

	res := p.Run(context.Background(), l1images.StaticSource{Frames: testFrames(2)})
	require.NoError(t, res.Err)
	require.Len(t, res.Frames, 2)
	assert.Equal(t, 30, res.Frames[1].Matches)
	assert.Equal(t, StateDone, p.State())
}

func TestFramePipeline_EmptyFrame(t *testing.T) {
	p, err := NewFramePipeline(fastBrief(true, 0), newBackend(), testOptions())
	require.NoError(t, err)
	defer p.Close()

	blank := image.NewGray(image.Rect(0, 0, 64, 64))
	res := p.Run(context.Background(), l1images.StaticSource{Frames: []*image.Gray{blank, blank}})
	require.NoError(t, res.Err)
	require.Len(t, res.Frames, 2)
	assert.True(t, res.Frames[1].MatchAttempted)
	assert.True(t, res.Frames[1].EmptyDescriptors)
	assert.Zero(t, res.Frames[1].Matches)
}

func TestNewFramePipeline_IncompatiblePanics(t *testing.T) {
	cfg := fastBrief(false, 0)
	cfg.Descriptor = vision.DescriptorAKAZE
	assert.Panics(t, func() {
		_, _ = NewFramePipeline(cfg, newBackend(), testOptions())
	})
}

func TestNewFramePipeline_Errors(t *testing.T) {
	t.Run("invalid configuration", func(t *testing.T) {
		cfg := fastBrief(false, 0)
		cfg.Matcher = "MAT_NOPE"
		_, err := NewFramePipeline(cfg, newBackend(), testOptions())
		assert.Error(t, err)
	})

	t.Run("invalid roi", func(t *testing.T) {
		opts := testOptions()
		opts.ROI = l3keypoints.ROI{X: 0, Y: 0, Width: -1, Height: 4}
		_, err := NewFramePipeline(fastBrief(true, 0), newBackend(), opts)
		assert.Error(t, err)
	})

	t.Run("unsupported extractor closes detector", func(t *testing.T) {
		b := newBackend()
		b.Unsupported = map[string]bool{"BRIEF": true}
		_, err := NewFramePipeline(fastBrief(false, 0), b, testOptions())
		assert.ErrorIs(t, err, vision.ErrUnsupported)
		assert.Equal(t, 1, b.Opened())
		assert.Equal(t, 1, b.Closed())
	})

	t.Run("bad ratio", func(t *testing.T) {
		opts := testOptions()
		opts.Ratio = 1.5
		_, err := NewFramePipeline(fastBrief(false, 0), newBackend(), opts)
		assert.Error(t, err)
	})
}

func TestFramePipeline_CollaboratorFailureAbortsRun(t *testing.T) {
	b := newBackend()
	b.FailDetectAt = 2
	p, err := NewFramePipeline(fastBrief(false, 0), b, testOptions())
	require.NoError(t, err)

	res := p.Run(context.Background(), l1images.StaticSource{Frames: testFrames(4)})
	require.Error(t, res.Err)
	assert.Contains(t, res.ErrString(), "frame 1")
	assert.Len(t, res.Frames, 2)
	assert.Equal(t, 2, b.Detections(), "frames after the failure are not processed")

	require.NoError(t, p.Close())
	assert.Equal(t, 1, b.Closed())
}

func TestFramePipeline_MisalignedDescriptors(t *testing.T) {
	b := newBackend()
	b.DropKeypoints = true
	p, err := NewFramePipeline(fastBrief(false, 0), b, testOptions())
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Process(context.Background(), l1images.Image{Gray: testFrames(1)[0]})
	assert.ErrorContains(t, err, "extracting descriptors")
}

func TestFramePipeline_ProcessAfterFinish(t *testing.T) {
	p, err := NewFramePipeline(fastBrief(false, 0), newBackend(), testOptions())
	require.NoError(t, err)
	defer p.Close()

	p.Finish()
	_, err = p.Process(context.Background(), l1images.Image{Gray: testFrames(1)[0]})
	assert.ErrorIs(t, err, ErrPipelineDone)
}

func TestFramePipeline_Cancelled(t *testing.T) {
	p, err := NewFramePipeline(fastBrief(false, 0), newBackend(), testOptions())
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := p.Run(ctx, l1images.StaticSource{Frames: testFrames(2)})
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Empty(t, res.Frames)
}

func TestFramePipeline_Timings(t *testing.T) {
	opts := testOptions()
	opts.Clock = timeutil.NewSteppingClock(time.Unix(0, 0), time.Millisecond)
	p, err := NewFramePipeline(fastBrief(false, 0), newBackend(), opts)
	require.NoError(t, err)
	defer p.Close()

	res := p.Run(context.Background(), l1images.StaticSource{Frames: testFrames(2)})
	require.NoError(t, res.Err)

	first, second := res.Frames[0], res.Frames[1]
	assert.Equal(t, time.Millisecond, first.DetectTime)
	assert.Equal(t, time.Millisecond, first.ExtractTime)
	assert.Zero(t, first.MatchTime)
	assert.Equal(t, time.Millisecond, second.MatchTime)
	// Run start plus five stopwatch starts.
	assert.Equal(t, 6*time.Millisecond, res.Elapsed)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "empty", StateEmpty.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "state(9)", State(9).String())
}
