package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/banshee-data/featurebench/internal/config"
	"github.com/banshee-data/featurebench/internal/vision"
	"github.com/banshee-data/featurebench/internal/vision/sweep"
)

// cliOptions holds the parsed command line. Zero values mean "not given":
// the config file value (or its default) is kept.
type cliOptions struct {
	configPath string

	detectors   string
	descriptors string
	limits      string
	noROI       bool
	knn         bool
	flann       bool
	auto        bool
	ratio       float64

	images      string
	backend     string
	workers     int
	stopOnError bool

	summaryCSV string
	rawCSV     string
	chartHTML  string
	plotPNG    string
	database   string

	diagLog  bool
	traceLog bool
	version  bool
}

func parseFlags(args []string, output io.Writer) (*cliOptions, error) {
	o := &cliOptions{}
	fs := flag.NewFlagSet("featuresweep", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&o.configPath, "config", config.DefaultConfigPath, "Benchmark config JSON file")

	// Sweep dimensions
	fs.StringVar(&o.detectors, "d", "", "Detector kind or comma-separated list (SHITOMASI,HARRIS,FAST,BRISK,ORB,AKAZE,SIFT)")
	fs.StringVar(&o.descriptors, "e", "", "Descriptor kind or comma-separated list (BRISK,BRIEF,ORB,FREAK,AKAZE,SIFT)")
	fs.StringVar(&o.limits, "l", "", "Keep the N strongest keypoints: N, a list (10,50) or a range (10:50:10)")
	fs.BoolVar(&o.noROI, "a", false, "Keep keypoints outside the region of interest")
	fs.BoolVar(&o.knn, "knn", false, "Use k-nearest-neighbour selection with the distance-ratio test")
	fs.BoolVar(&o.flann, "flann", false, "Use FLANN-style approximate search instead of brute force")
	fs.BoolVar(&o.auto, "auto", false, "Sweep every detector and descriptor (implies -knn)")
	fs.Float64Var(&o.ratio, "ratio", 0, "KNN distance-ratio threshold (default from config, 0.8)")

	// Execution
	fs.StringVar(&o.images, "images", "", "Directory holding the image sequence")
	fs.StringVar(&o.backend, "backend", "", "Vision backend: native (OpenCV features, Go search) or opencv")
	fs.IntVar(&o.workers, "workers", 0, "Configurations to run concurrently")
	fs.BoolVar(&o.stopOnError, "stop-on-error", false, "Stop the sweep at the first failed configuration")

	// Outputs
	fs.StringVar(&o.summaryCSV, "csv", "", "Summary CSV output path")
	fs.StringVar(&o.rawCSV, "raw", "", "Per-frame CSV output path")
	fs.StringVar(&o.chartHTML, "chart", "", "HTML bar chart output path")
	fs.StringVar(&o.plotPNG, "plot", "", "PNG matches-per-frame plot output path")
	fs.StringVar(&o.database, "db", "", "SQLite database to record the run in")

	// Logging
	fs.BoolVar(&o.diagLog, "log-diag", false, "Log per-configuration summaries")
	fs.BoolVar(&o.traceLog, "log-trace", false, "Log every frame")
	fs.BoolVar(&o.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return o, nil
}

// applyOverrides copies every given flag onto cfg. Malformed flag values
// are reported as *config.ConfigError.
func applyOverrides(cfg *config.BenchConfig, o *cliOptions) error {
	if o.detectors != "" {
		kinds, err := vision.ParseDetectors(o.detectors)
		if err != nil {
			return &config.ConfigError{Field: "detectors", Reason: err.Error()}
		}
		cfg.Detectors = kindNames(kinds)
	}
	if o.descriptors != "" {
		kinds, err := vision.ParseDescriptors(o.descriptors)
		if err != nil {
			return &config.ConfigError{Field: "descriptors", Reason: err.Error()}
		}
		cfg.Descriptors = kindNames(kinds)
	}
	// -auto replaces any -d/-e choice with the full enumeration.
	if o.auto {
		cfg.Detectors = kindNames(vision.AllDetectors)
		cfg.Descriptors = kindNames(vision.AllDescriptors)
		knn := string(vision.SelectorKNN)
		cfg.Selector = &knn
	}
	if o.limits != "" {
		limits, err := sweep.ParseLimits(o.limits)
		if err != nil {
			return &config.ConfigError{Field: "retention_limits", Reason: err.Error()}
		}
		cfg.RetentionLimits = limits
	}
	if o.noROI {
		off := false
		cfg.ROIEnabled = &off
	}
	if o.knn {
		knn := string(vision.SelectorKNN)
		cfg.Selector = &knn
	}
	if o.flann {
		flann := string(vision.MatcherFLANN)
		cfg.Matcher = &flann
	}
	if o.ratio != 0 {
		r := o.ratio
		cfg.RatioThreshold = &r
	}
	if o.images != "" {
		seq := cfg.GetImages()
		seq.Dir = o.images
		cfg.Images = &seq
	}
	if o.backend != "" {
		b := o.backend
		cfg.Backend = &b
	}
	if o.workers != 0 {
		w := o.workers
		cfg.Workers = &w
	}
	if o.stopOnError {
		stop := true
		cfg.StopOnError = &stop
	}
	setPath(&cfg.SummaryCSV, o.summaryCSV)
	setPath(&cfg.RawCSV, o.rawCSV)
	setPath(&cfg.ChartHTML, o.chartHTML)
	setPath(&cfg.PlotPNG, o.plotPNG)
	setPath(&cfg.Database, o.database)
	return nil
}

func setPath(dst **string, v string) {
	if v != "" {
		*dst = &v
	}
}

func kindNames[K ~string](kinds []K) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
