package pipeline

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/featurebench/internal/vision"
	"github.com/banshee-data/featurebench/internal/vision/l1images"
	"github.com/banshee-data/featurebench/internal/vision/sweep"
)

func testSweep() sweep.Sweep {
	return sweep.Sweep{
		Detectors:   []vision.DetectorKind{vision.DetectorShiTomasi, vision.DetectorFAST, vision.DetectorSIFT},
		Descriptors: []vision.DescriptorKind{vision.DescriptorBRISK, vision.DescriptorORB, vision.DescriptorSIFT},
		Matcher:     vision.MatcherBruteForce,
		Selector:    vision.SelectorKNN,
		ROI:         true,
		Limits:      []int{5, 50},
	}
}

func configsOf(results []sweep.ConfigResult) []vision.Configuration {
	out := make([]vision.Configuration, len(results))
	for i, r := range results {
		out[i] = r.Config
	}
	return out
}

func TestRunner_RunsEveryConfigurationInOrder(t *testing.T) {
	for _, workers := range []int{1, 4} {
		b := newBackend()
		r := NewRunner(b, l1images.StaticSource{Frames: testFrames(3)}, testOptions())
		r.Workers = workers
		sw := testSweep()

		var streamed []vision.Configuration
		results, err := r.Run(context.Background(), sw, func(res sweep.ConfigResult) error {
			streamed = append(streamed, res.Config)
			return nil
		})
		require.NoError(t, err)

		var want []vision.Configuration
		for c := range sw.Configurations() {
			want = append(want, c)
		}
		// SIFT keypoints cannot feed ORB descriptors.
		require.Len(t, want, 16)
		if diff := cmp.Diff(want, configsOf(results)); diff != "" {
			t.Errorf("workers=%d results out of order (-want +got):\n%s", workers, diff)
		}
		if diff := cmp.Diff(want, streamed); diff != "" {
			t.Errorf("workers=%d streamed out of order (-want +got):\n%s", workers, diff)
		}

		for _, res := range results {
			require.NoError(t, res.Err)
			assert.Len(t, res.Frames, 3)
			assert.Equal(t, 2, res.MatchAttempts())
		}
		assert.Equal(t, b.Opened(), b.Closed())
		assert.LessOrEqual(t, b.MaxLive(), workers)

		state := r.State()
		assert.Equal(t, RunStatusComplete, state.Status)
		assert.Equal(t, 16, state.Total)
		assert.Equal(t, 16, state.Completed)
		assert.Zero(t, state.Failed)
		assert.NotNil(t, state.CompletedAt)
	}
}

func TestRunner_FailedConfigurationDoesNotStopSweep(t *testing.T) {
	b := newBackend()
	b.Unsupported = map[string]bool{"FAST": true}
	r := NewRunner(b, l1images.StaticSource{Frames: testFrames(2)}, testOptions())

	sw := testSweep()
	sw.Detectors = []vision.DetectorKind{vision.DetectorShiTomasi, vision.DetectorFAST, vision.DetectorSIFT}
	sw.Descriptors = []vision.DescriptorKind{vision.DescriptorBRISK}
	sw.Limits = []int{10}

	results, err := r.Run(context.Background(), sw, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, vision.ErrUnsupported)
	assert.Empty(t, results[1].Frames)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, 1, r.State().Failed)
}

func TestRunner_StopOnError(t *testing.T) {
	b := newBackend()
	b.Unsupported = map[string]bool{"FAST": true}
	r := NewRunner(b, l1images.StaticSource{Frames: testFrames(2)}, testOptions())
	r.StopOnError = true

	sw := testSweep()
	sw.Detectors = []vision.DetectorKind{vision.DetectorShiTomasi, vision.DetectorFAST, vision.DetectorSIFT}
	sw.Descriptors = []vision.DescriptorKind{vision.DescriptorBRISK}
	sw.Limits = []int{10}

	results, err := r.Run(context.Background(), sw, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, vision.ErrUnsupported)
	require.GreaterOrEqual(t, len(results), 2)
	assert.ErrorIs(t, results[1].Err, vision.ErrUnsupported)
	assert.Equal(t, RunStatusError, r.State().Status)
	assert.NotEmpty(t, r.State().Error)
}

func TestRunner_ResultFuncError(t *testing.T) {
	r := NewRunner(newBackend(), l1images.StaticSource{Frames: testFrames(2)}, testOptions())
	boom := errors.New("disk full")

	_, err := r.Run(context.Background(), testSweep(), func(sweep.ConfigResult) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, RunStatusError, r.State().Status)
}

func TestRunner_Cancelled(t *testing.T) {
	r := NewRunner(newBackend(), l1images.StaticSource{Frames: testFrames(2)}, testOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := r.Run(ctx, testSweep(), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestRunner_InvalidSweep(t *testing.T) {
	r := NewRunner(newBackend(), l1images.StaticSource{}, testOptions())
	sw := testSweep()
	sw.Limits = []int{0}

	_, err := r.Run(context.Background(), sw, nil)
	assert.Error(t, err)
	assert.Equal(t, RunStatusIdle, r.State().Status)
}

func TestRunner_EmptySweep(t *testing.T) {
	r := NewRunner(newBackend(), l1images.StaticSource{Frames: testFrames(2)}, testOptions())
	sw := testSweep()
	sw.Detectors = []vision.DetectorKind{vision.DetectorSIFT}
	sw.Descriptors = []vision.DescriptorKind{vision.DescriptorAKAZE}

	results, err := r.Run(context.Background(), sw, nil)
	assert.ErrorIs(t, err, sweep.ErrEmptySweep)
	assert.Empty(t, results)
	assert.Equal(t, RunStatusIdle, r.State().Status)
}

func TestRunner_Logging(t *testing.T) {
	var ops, diag bytes.Buffer
	SetLogWriters(&ops, &diag, nil)
	t.Cleanup(func() { SetLogWriters(nil, nil, nil) })

	b := newBackend()
	b.Unsupported = map[string]bool{"FAST": true}
	r := NewRunner(b, l1images.StaticSource{Frames: testFrames(2)}, testOptions())
	sw := testSweep()
	sw.Detectors = []vision.DetectorKind{vision.DetectorFAST, vision.DetectorSIFT}
	sw.Limits = []int{10}

	_, err := r.Run(context.Background(), sw, nil)
	require.NoError(t, err)
	assert.Contains(t, ops.String(), "[pipeline] ")
	assert.Contains(t, ops.String(), "1 incompatible pairs skipped")
	assert.Contains(t, ops.String(), "unsupported by vision backend")
	assert.Contains(t, diag.String(), "skipping incompatible pair SIFT/ORB")
}
