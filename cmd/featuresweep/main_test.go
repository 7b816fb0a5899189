package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"image"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/featurebench/internal/config"
	"github.com/banshee-data/featurebench/internal/fsutil"
	"github.com/banshee-data/featurebench/internal/testutil"
	"github.com/banshee-data/featurebench/internal/vision"
	"github.com/banshee-data/featurebench/internal/vision/l1images"
	"github.com/banshee-data/featurebench/internal/vision/l3keypoints"
	"github.com/banshee-data/featurebench/internal/vision/l4matching"
	"github.com/banshee-data/featurebench/internal/vision/storage/sqlite"
	"github.com/banshee-data/featurebench/internal/vision/sweep"
)

func TestParseFlags_Defaults(t *testing.T) {
	o, err := parseFlags(nil, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfigPath, o.configPath)
	assert.False(t, o.auto)
	assert.False(t, o.knn)
	assert.Zero(t, o.workers)
}

func TestParseFlags_Errors(t *testing.T) {
	_, err := parseFlags([]string{"-h"}, io.Discard)
	assert.True(t, errors.Is(err, flag.ErrHelp))

	_, err = parseFlags([]string{"-workers", "many"}, io.Discard)
	assert.Error(t, err)

	_, err = parseFlags([]string{"stray"}, io.Discard)
	assert.Error(t, err)
}

func TestApplyOverrides(t *testing.T) {
	o, err := parseFlags([]string{
		"-d", "fast,orb", "-e", "brief", "-l", "10:30:10", "-a", "-flann", "-knn",
		"-ratio", "0.7", "-images", "/data/seq", "-workers", "3", "-csv", "out/s.csv",
	}, io.Discard)
	require.NoError(t, err)

	cfg := config.EmptyBenchConfig()
	require.NoError(t, applyOverrides(cfg, o))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []vision.DetectorKind{vision.DetectorFAST, vision.DetectorORB}, cfg.GetDetectors())
	assert.Equal(t, []vision.DescriptorKind{vision.DescriptorBRIEF}, cfg.GetDescriptors())
	assert.Equal(t, []int{10, 20, 30}, cfg.GetRetentionLimits())
	assert.False(t, cfg.GetROIEnabled())
	assert.Equal(t, vision.MatcherFLANN, cfg.GetMatcher())
	assert.Equal(t, vision.SelectorKNN, cfg.GetSelector())
	assert.Equal(t, 0.7, cfg.GetRatioThreshold())
	assert.Equal(t, "/data/seq", cfg.GetImages().Dir)
	assert.Equal(t, l1images.DefaultSequence.Prefix, cfg.GetImages().Prefix)
	assert.Equal(t, 3, cfg.GetWorkers())
	assert.Equal(t, "out/s.csv", cfg.GetSummaryCSV())
}

func TestApplyOverrides_Auto(t *testing.T) {
	o, err := parseFlags([]string{"-auto"}, io.Discard)
	require.NoError(t, err)
	cfg := config.EmptyBenchConfig()
	require.NoError(t, applyOverrides(cfg, o))

	assert.Equal(t, vision.AllDetectors, cfg.GetDetectors())
	assert.Equal(t, vision.AllDescriptors, cfg.GetDescriptors())
	assert.Equal(t, vision.SelectorKNN, cfg.GetSelector())
	assert.Equal(t, 35, cfg.Sweep().Count())
}

func TestApplyOverrides_AutoReplacesExplicitKinds(t *testing.T) {
	o, err := parseFlags([]string{"-d", "SIFT", "-e", "ORB", "-auto"}, io.Discard)
	require.NoError(t, err)
	cfg := config.EmptyBenchConfig()
	require.NoError(t, applyOverrides(cfg, o))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, vision.AllDetectors, cfg.GetDetectors())
	assert.Equal(t, vision.AllDescriptors, cfg.GetDescriptors())
	assert.Equal(t, 35, cfg.Sweep().Count())
}

func TestApplyOverrides_BadValues(t *testing.T) {
	tests := []struct {
		args  []string
		field string
	}{
		{[]string{"-d", "SURF"}, "detectors"},
		{[]string{"-e", "HOG"}, "descriptors"},
		{[]string{"-l", "0"}, "retention_limits"},
		{[]string{"-l", "ten"}, "retention_limits"},
		{[]string{"-l", ","}, "retention_limits"},
		{[]string{"-l", " , "}, "retention_limits"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			o, err := parseFlags(tt.args, io.Discard)
			require.NoError(t, err)
			err = applyOverrides(config.EmptyBenchConfig(), o)
			var cfgErr *config.ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("missing default falls back", func(t *testing.T) {
		o, err := parseFlags(nil, io.Discard)
		require.NoError(t, err)
		cfg, err := loadConfig(fsutil.NewMemoryFileSystem(), o)
		require.NoError(t, err)
		assert.Equal(t, []vision.DetectorKind{vision.DetectorShiTomasi}, cfg.GetDetectors())
	})

	t.Run("missing explicit path fails", func(t *testing.T) {
		o, err := parseFlags([]string{"-config", "mine.json"}, io.Discard)
		require.NoError(t, err)
		_, err = loadConfig(fsutil.NewMemoryFileSystem(), o)
		assert.Error(t, err)
	})

	t.Run("file then flags", func(t *testing.T) {
		fs := fsutil.NewMemoryFileSystem()
		require.NoError(t, fs.WriteFile("bench.json", []byte(`{"detectors":["ORB"],"workers":2}`), 0o644))
		o, err := parseFlags([]string{"-config", "bench.json", "-e", "ORB"}, io.Discard)
		require.NoError(t, err)
		cfg, err := loadConfig(fs, o)
		require.NoError(t, err)
		assert.Equal(t, []vision.DetectorKind{vision.DetectorORB}, cfg.GetDetectors())
		assert.Equal(t, []vision.DescriptorKind{vision.DescriptorORB}, cfg.GetDescriptors())
		assert.Equal(t, 2, cfg.GetWorkers())
	})

	t.Run("no compatible pair is a config error", func(t *testing.T) {
		o, err := parseFlags([]string{"-d", "SIFT", "-e", "AKAZE"}, io.Discard)
		require.NoError(t, err)
		_, err = loadConfig(fsutil.NewMemoryFileSystem(), o)
		var cfgErr *config.ConfigError
		require.True(t, errors.As(err, &cfgErr), "got %v", err)
		assert.Equal(t, "descriptors", cfgErr.Field)
	})

	t.Run("invalid flag value is a config error", func(t *testing.T) {
		o, err := parseFlags([]string{"-ratio", "1.5"}, io.Discard)
		require.NoError(t, err)
		_, err = loadConfig(fsutil.NewMemoryFileSystem(), o)
		assert.True(t, config.IsConfigError(err), "got %v", err)
	})
}

func TestRun_WritesOutputs(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	dbPath := filepath.Join(t.TempDir(), "bench.db")

	o, err := parseFlags([]string{
		"-d", "FAST,SIFT", "-e", "BRISK,ORB", "-knn", "-workers", "2",
		"-csv", "results/summary.csv", "-raw", "results/frames.csv",
		"-chart", "results/chart.html", "-plot", "results/matches.png", "-db", dbPath,
	}, io.Discard)
	require.NoError(t, err)
	cfg, err := loadConfig(fs, o)
	require.NoError(t, err)
	roi := testROI()
	cfg.ROI = &roi

	blobs := testutil.GridBlobs(image.Rect(0, 0, 64, 64), 20)
	source := l1images.StaticSource{Frames: testutil.Sequence(64, 64, 3, 0, blobs)}
	backend := &testutil.SyntheticBackend{Search: l4matching.NativeSearcher}

	require.NoError(t, run(context.Background(), fs, cfg, backend, source))

	summary := readCSV(t, fs, "results/summary.csv")
	require.Len(t, summary, 4, "header plus FAST/BRISK, FAST/ORB, SIFT/BRISK")
	assert.Equal(t, sweep.SummaryHeader, summary[0])

	frames := readCSV(t, fs, "results/frames.csv")
	assert.Len(t, frames, 1+3*3)

	assert.True(t, fs.Exists("results/chart.html"))
	assert.True(t, fs.Exists("results/matches.png"))

	store, err := sqlite.Open(dbPath)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, sqlite.RunStatusComplete, runs[0].Status)
	assert.Equal(t, "synthetic", runs[0].Backend)
	stored, err := store.ListResults(runs[0].RunID)
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	assert.Equal(t, backend.Opened(), backend.Closed())
}

func TestRun_StopOnError(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	o, err := parseFlags([]string{"-d", "HARRIS", "-stop-on-error", "-csv", "s.csv"}, io.Discard)
	require.NoError(t, err)
	cfg, err := loadConfig(fs, o)
	require.NoError(t, err)

	backend := &testutil.SyntheticBackend{
		Search:      l4matching.NativeSearcher,
		Unsupported: map[string]bool{"HARRIS": true},
	}
	source := l1images.StaticSource{Frames: testutil.Sequence(8, 8, 2, 0, nil)}
	err = run(context.Background(), fs, cfg, backend, source)
	assert.ErrorIs(t, err, vision.ErrUnsupported)
	assert.Len(t, readCSV(t, fs, "s.csv"), 2, "the failed configuration is still reported")
}

func testROI() l3keypoints.ROI {
	return l3keypoints.ROI{X: 0, Y: 0, Width: 32, Height: 32}
}

func readCSV(t *testing.T, fs fsutil.FileSystem, path string) [][]string {
	t.Helper()
	data, err := fs.ReadFile(path)
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	return rows
}
