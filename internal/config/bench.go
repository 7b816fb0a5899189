package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/featurebench/internal/fsutil"
	"github.com/banshee-data/featurebench/internal/vision"
	"github.com/banshee-data/featurebench/internal/vision/l1images"
	"github.com/banshee-data/featurebench/internal/vision/l3keypoints"
	"github.com/banshee-data/featurebench/internal/vision/l4matching"
	"github.com/banshee-data/featurebench/internal/vision/sweep"
)

// DefaultConfigPath is the path to the canonical benchmark defaults file.
const DefaultConfigPath = "config/bench.defaults.json"

// maxConfigSize is the largest config file LoadBenchConfig accepts.
const maxConfigSize = 1 * 1024 * 1024

// Backend names accepted by the "backend" field.
const (
	BackendNative = "native"
	BackendOpenCV = "opencv"
)

// ConfigError reports an invalid or missing configuration value. It aborts
// a run before any frame is processed.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func configErrorf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// BenchConfig is the root benchmark configuration. Nil fields fall back to
// the defaults returned by the Get* accessors, so partial files are safe.
type BenchConfig struct {
	// Sweep dimensions
	Detectors       []string `json:"detectors,omitempty"`
	Descriptors     []string `json:"descriptors,omitempty"`
	Matcher         *string  `json:"matcher,omitempty"`
	Selector        *string  `json:"selector,omitempty"`
	RetentionLimits []int    `json:"retention_limits,omitempty"`
	RatioThreshold  *float64 `json:"ratio_threshold,omitempty"`

	// Region of interest
	ROIEnabled *bool              `json:"roi_enabled,omitempty"`
	ROI        *l3keypoints.ROI   `json:"roi,omitempty"`
	Images     *l1images.Sequence `json:"images,omitempty"`

	// Execution
	Backend     *string `json:"backend,omitempty"`
	Workers     *int    `json:"workers,omitempty"`
	WindowSize  *int    `json:"window_size,omitempty"`
	StopOnError *bool   `json:"stop_on_error,omitempty"`

	// Outputs; an empty path disables the output.
	SummaryCSV *string `json:"summary_csv,omitempty"`
	RawCSV     *string `json:"raw_csv,omitempty"`
	ChartHTML  *string `json:"chart_html,omitempty"`
	PlotPNG    *string `json:"plot_png,omitempty"`
	Database   *string `json:"database,omitempty"`
}

// EmptyBenchConfig returns a BenchConfig with all fields unset.
func EmptyBenchConfig() *BenchConfig {
	return &BenchConfig{}
}

// LoadBenchConfig loads a BenchConfig from a JSON file on disk.
func LoadBenchConfig(path string) (*BenchConfig, error) {
	return LoadBenchConfigFS(fsutil.OSFileSystem{}, path)
}

// LoadBenchConfigFS loads a BenchConfig through fs. The file must have a
// .json extension and be under 1MB. The loaded config is validated.
func LoadBenchConfigFS(fs fsutil.FileSystem, path string) (*BenchConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := fs.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigSize)
	}

	data, err := fs.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyBenchConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents. Panics if the file
// cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *BenchConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadBenchConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks every set field. Errors are *ConfigError.
func (c *BenchConfig) Validate() error {
	if _, err := vision.ParseDetectors(joinNames(c.Detectors)); err != nil {
		return configErrorf("detectors", "%v", err)
	}
	if _, err := vision.ParseDescriptors(joinNames(c.Descriptors)); err != nil {
		return configErrorf("descriptors", "%v", err)
	}
	if c.Matcher != nil && !vision.MatcherKind(*c.Matcher).Valid() {
		return configErrorf("matcher", "unknown matcher %q (want %s or %s)", *c.Matcher, vision.MatcherBruteForce, vision.MatcherFLANN)
	}
	if c.Selector != nil && !vision.SelectorKind(*c.Selector).Valid() {
		return configErrorf("selector", "unknown selector %q (want %s or %s)", *c.Selector, vision.SelectorNN, vision.SelectorKNN)
	}
	for _, n := range c.RetentionLimits {
		if n < 1 {
			return configErrorf("retention_limits", "limit %d must be a positive integer", n)
		}
	}
	if c.Sweep().Count() == 0 {
		return configErrorf("descriptors", "no descriptor in [%s] is compatible with detectors [%s]",
			joinNames(c.Descriptors), joinNames(c.Detectors))
	}
	if c.RatioThreshold != nil && (*c.RatioThreshold <= 0 || *c.RatioThreshold > 1) {
		return configErrorf("ratio_threshold", "must be in (0, 1], got %v", *c.RatioThreshold)
	}
	if c.ROI != nil {
		if err := c.ROI.Validate(); err != nil {
			return configErrorf("roi", "%v", err)
		}
	}
	if c.Images != nil {
		if err := c.Images.Validate(); err != nil {
			return configErrorf("images", "%v", err)
		}
	}
	if c.Backend != nil && *c.Backend != BackendNative && *c.Backend != BackendOpenCV {
		return configErrorf("backend", "unknown backend %q (want %s or %s)", *c.Backend, BackendNative, BackendOpenCV)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return configErrorf("workers", "must be at least 1, got %d", *c.Workers)
	}
	if c.WindowSize != nil && *c.WindowSize < 2 {
		return configErrorf("window_size", "must be at least 2, got %d", *c.WindowSize)
	}
	return nil
}

func joinNames(names []string) string {
	return strings.Join(names, ",")
}

// GetDetectors returns the detector list or the default (SHITOMASI).
func (c *BenchConfig) GetDetectors() []vision.DetectorKind {
	kinds, err := vision.ParseDetectors(joinNames(c.Detectors))
	if err != nil || len(kinds) == 0 {
		return []vision.DetectorKind{vision.DetectorShiTomasi}
	}
	return kinds
}

// GetDescriptors returns the descriptor list or the default (BRISK).
func (c *BenchConfig) GetDescriptors() []vision.DescriptorKind {
	kinds, err := vision.ParseDescriptors(joinNames(c.Descriptors))
	if err != nil || len(kinds) == 0 {
		return []vision.DescriptorKind{vision.DescriptorBRISK}
	}
	return kinds
}

// GetMatcher returns the matcher or the default (MAT_BF).
func (c *BenchConfig) GetMatcher() vision.MatcherKind {
	if c.Matcher == nil {
		return vision.MatcherBruteForce
	}
	return vision.MatcherKind(*c.Matcher)
}

// GetSelector returns the selector or the default (SEL_NN).
func (c *BenchConfig) GetSelector() vision.SelectorKind {
	if c.Selector == nil {
		return vision.SelectorNN
	}
	return vision.SelectorKind(*c.Selector)
}

// GetRetentionLimits returns the retention limits; empty disables retention.
func (c *BenchConfig) GetRetentionLimits() []int {
	return append([]int(nil), c.RetentionLimits...)
}

// GetRatioThreshold returns the KNN ratio threshold or the default (0.8).
func (c *BenchConfig) GetRatioThreshold() float64 {
	if c.RatioThreshold == nil {
		return l4matching.DefaultRatio
	}
	return *c.RatioThreshold
}

// GetROIEnabled returns whether the ROI filter runs (default true).
func (c *BenchConfig) GetROIEnabled() bool {
	if c.ROIEnabled == nil {
		return true
	}
	return *c.ROIEnabled
}

// GetROI returns the ROI rectangle or the default.
func (c *BenchConfig) GetROI() l3keypoints.ROI {
	if c.ROI == nil {
		return l3keypoints.DefaultROI
	}
	return *c.ROI
}

// GetImages returns the image sequence or the default.
func (c *BenchConfig) GetImages() l1images.Sequence {
	if c.Images == nil {
		return l1images.DefaultSequence
	}
	return *c.Images
}

// GetBackend returns the vision backend name or the default (native).
func (c *BenchConfig) GetBackend() string {
	if c.Backend == nil {
		return BackendNative
	}
	return *c.Backend
}

// GetWorkers returns the worker count or the default (1).
func (c *BenchConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}

// GetWindowSize returns the frame window size or the default (2).
func (c *BenchConfig) GetWindowSize() int {
	if c.WindowSize == nil {
		return 2
	}
	return *c.WindowSize
}

// GetStopOnError returns whether a failed configuration stops the sweep
// (default false).
func (c *BenchConfig) GetStopOnError() bool {
	if c.StopOnError == nil {
		return false
	}
	return *c.StopOnError
}

// GetSummaryCSV returns the summary CSV path, "" when disabled.
func (c *BenchConfig) GetSummaryCSV() string { return deref(c.SummaryCSV) }

// GetRawCSV returns the raw CSV path, "" when disabled.
func (c *BenchConfig) GetRawCSV() string { return deref(c.RawCSV) }

// GetChartHTML returns the HTML chart path, "" when disabled.
func (c *BenchConfig) GetChartHTML() string { return deref(c.ChartHTML) }

// GetPlotPNG returns the PNG plot path, "" when disabled.
func (c *BenchConfig) GetPlotPNG() string { return deref(c.PlotPNG) }

// GetDatabase returns the SQLite database path, "" when disabled.
func (c *BenchConfig) GetDatabase() string { return deref(c.Database) }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Sweep builds the configuration sweep described by c.
func (c *BenchConfig) Sweep() sweep.Sweep {
	return sweep.Sweep{
		Detectors:   c.GetDetectors(),
		Descriptors: c.GetDescriptors(),
		Matcher:     c.GetMatcher(),
		Selector:    c.GetSelector(),
		ROI:         c.GetROIEnabled(),
		Limits:      c.GetRetentionLimits(),
	}
}
