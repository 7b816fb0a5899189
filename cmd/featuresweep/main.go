// Command featuresweep benchmarks keypoint detector, descriptor and matcher
// combinations over an image sequence. Every configuration runs the frames
// through its own two-frame window; per-frame and per-configuration results
// are written as CSV, optionally charted and recorded in SQLite.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/featurebench/internal/config"
	"github.com/banshee-data/featurebench/internal/fsutil"
	"github.com/banshee-data/featurebench/internal/timeutil"
	"github.com/banshee-data/featurebench/internal/version"
	"github.com/banshee-data/featurebench/internal/vision"
	"github.com/banshee-data/featurebench/internal/vision/l1images"
	"github.com/banshee-data/featurebench/internal/vision/l4matching"
	"github.com/banshee-data/featurebench/internal/vision/opencv"
	"github.com/banshee-data/featurebench/internal/vision/pipeline"
	"github.com/banshee-data/featurebench/internal/vision/report"
	"github.com/banshee-data/featurebench/internal/vision/storage/sqlite"
	"github.com/banshee-data/featurebench/internal/vision/sweep"
)

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
	if opts.version {
		fmt.Println(version.String("featuresweep"))
		return
	}

	cfg, err := loadConfig(fsutil.OSFileSystem{}, opts)
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	var diag, trace io.Writer
	if opts.diagLog {
		diag = os.Stderr
	}
	if opts.traceLog {
		trace = os.Stderr
	}
	pipeline.SetLogWriters(os.Stderr, diag, trace)

	backend, err := newBackend(cfg.GetBackend())
	if err != nil {
		log.Fatalf("failed to create %s backend: %v", cfg.GetBackend(), err)
	}
	source, err := l1images.NewSequenceSource(cfg.GetImages(), nil)
	if err != nil {
		log.Fatalf("failed to open image sequence: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, fsutil.OSFileSystem{}, cfg, backend, source); err != nil {
		log.Fatalf("sweep failed: %v", err)
	}
}

// loadConfig reads the config file and applies flag overrides. A missing
// file at the default path falls back to built-in defaults.
func loadConfig(fs fsutil.FileSystem, opts *cliOptions) (*config.BenchConfig, error) {
	cfg, err := config.LoadBenchConfigFS(fs, opts.configPath)
	if err != nil {
		if opts.configPath != config.DefaultConfigPath || fs.Exists(opts.configPath) {
			return nil, err
		}
		log.Printf("no config at %s, using built-in defaults", opts.configPath)
		cfg = config.EmptyBenchConfig()
	}
	if err := applyOverrides(cfg, opts); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newBackend resolves a backend name. "native" keeps OpenCV for detection
// and extraction and runs candidate search in Go.
func newBackend(name string) (vision.Backend, error) {
	b, err := opencv.New()
	if err != nil {
		return nil, err
	}
	switch name {
	case config.BackendOpenCV:
		return b, nil
	case config.BackendNative:
		return l4matching.WithNativeSearch(b), nil
	}
	return nil, fmt.Errorf("unknown backend %q", name)
}

// run executes the sweep described by cfg and writes every enabled output.
func run(ctx context.Context, fs fsutil.FileSystem, cfg *config.BenchConfig, backend vision.Backend, source l1images.Source) error {
	sw := cfg.Sweep()
	log.Printf("featuresweep %s: %d configurations on %s backend, %d frames",
		version.Version, sw.Count(), backend.Name(), source.Len())

	csvOut, closeCSV, err := openCSV(fs, cfg.GetSummaryCSV(), cfg.GetRawCSV())
	if err != nil {
		return err
	}
	defer closeCSV()

	var store *sqlite.Store
	var runRec *sqlite.RunRecord
	if path := cfg.GetDatabase(); path != "" {
		if store, err = sqlite.Open(path); err != nil {
			return fmt.Errorf("opening result database: %w", err)
		}
		defer store.Close()
		request, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		runRec = &sqlite.RunRecord{
			Backend: backend.Name(),
			Version: version.Version,
			GitSHA:  version.GitSHA,
			Request: request,
		}
		if err := store.InsertRun(runRec); err != nil {
			return err
		}
		log.Printf("recording run %s in %s", runRec.RunID, path)
	}

	runner := pipeline.NewRunner(backend, source, pipeline.Options{
		ROI:        cfg.GetROI(),
		Ratio:      cfg.GetRatioThreshold(),
		WindowSize: cfg.GetWindowSize(),
		Clock:      timeutil.RealClock{},
	})
	runner.Workers = cfg.GetWorkers()
	runner.StopOnError = cfg.GetStopOnError()

	position := 0
	results, runErr := runner.Run(ctx, sw, func(res sweep.ConfigResult) error {
		if csvOut != nil {
			if err := csvOut.WriteResult(res); err != nil {
				return err
			}
		}
		if store != nil {
			if err := store.InsertResult(runRec.RunID, position, res); err != nil {
				return err
			}
		}
		position++
		logResult(res)
		return nil
	})

	if store != nil {
		status, msg := sqlite.RunStatusComplete, ""
		if runErr != nil {
			status, msg = sqlite.RunStatusError, runErr.Error()
		}
		if err := store.CompleteRun(runRec.RunID, status, timeutil.RealClock{}.Now(), msg); err != nil {
			log.Printf("failed to complete run record: %v", err)
		}
	}
	if csvOut != nil {
		if err := csvOut.Flush(); err != nil {
			return fmt.Errorf("writing CSV: %w", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	title := fmt.Sprintf("Feature tracking sweep (%s)", backend.Name())
	if path := cfg.GetChartHTML(); path != "" {
		if err := report.WriteChart(fs, path, title, results); err != nil {
			return err
		}
		log.Printf("chart written to %s", path)
	}
	if path := cfg.GetPlotPNG(); path != "" {
		if err := report.WritePlot(fs, path, title, results); err != nil {
			return err
		}
		log.Printf("plot written to %s", path)
	}

	state := runner.State()
	log.Printf("sweep complete: %d configurations, %d failed", state.Completed, state.Failed)
	return nil
}

// openCSV creates the enabled CSV outputs and writes their headers. The
// returned writer is nil when both paths are empty.
func openCSV(fs fsutil.FileSystem, summaryPath, rawPath string) (*sweep.CSVWriter, func(), error) {
	var files []io.WriteCloser
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}
	create := func(path string) (io.Writer, error) {
		if path == "" {
			return nil, nil
		}
		f, err := fsutil.CreateOutput(fs, path)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
		return f, nil
	}

	summary, err := create(summaryPath)
	if err != nil {
		return nil, closeAll, err
	}
	raw, err := create(rawPath)
	if err != nil {
		closeAll()
		return nil, func() {}, err
	}
	if summary == nil && raw == nil {
		return nil, closeAll, nil
	}
	w := sweep.NewCSVWriter(summary, raw)
	if err := w.WriteHeaders(); err != nil {
		closeAll()
		return nil, func() {}, err
	}
	return w, closeAll, nil
}

func logResult(res sweep.ConfigResult) {
	if res.Err != nil {
		log.Printf("%-40s failed: %v", res.Config, res.Err)
		return
	}
	s := res.Summarise()
	log.Printf("%-40s keypoints=%6.1f matches=%6.1f±%-5.1f detect=%6.2fms extract=%6.2fms",
		res.Config, s.KeypointsMean, s.MatchesMean, s.MatchesStd, s.DetectMeanMs, s.ExtractMeanMs)
}
