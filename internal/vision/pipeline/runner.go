package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/featurebench/internal/vision"
	"github.com/banshee-data/featurebench/internal/vision/l1images"
	"github.com/banshee-data/featurebench/internal/vision/sweep"
)

// RunStatus represents the current state of a sweep run.
type RunStatus string

const (
	RunStatusIdle     RunStatus = "idle"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusError    RunStatus = "error"
)

// RunState is a snapshot of sweep progress.
type RunState struct {
	Status      RunStatus  `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Total       int        `json:"total"`
	Completed   int        `json:"completed"`
	Failed      int        `json:"failed"`
	Error       string     `json:"error,omitempty"`
}

// ResultFunc receives each finished configuration, in sweep order.
// Returning an error stops the sweep.
type ResultFunc func(sweep.ConfigResult) error

// Runner executes a sweep, building one FramePipeline per configuration.
// Every configuration owns its window and collaborators; the frame source
// is shared and must be safe for concurrent use when Workers > 1.
type Runner struct {
	Backend vision.Backend
	Source  l1images.Source
	Options Options

	// Workers bounds how many configurations run at once (default 1).
	Workers int
	// StopOnError ends the sweep at the first failed configuration.
	StopOnError bool

	mu    sync.RWMutex
	state RunState
}

// NewRunner creates a sequential runner.
func NewRunner(backend vision.Backend, source l1images.Source, opts Options) *Runner {
	return &Runner{
		Backend: backend,
		Source:  source,
		Options: opts,
		Workers: 1,
		state:   RunState{Status: RunStatusIdle},
	}
}

// State returns a snapshot of the current progress.
func (r *Runner) State() RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Run executes every configuration of sw and returns the results in sweep
// order. A configuration whose collaborators fail is recorded with its
// error and the sweep continues, unless StopOnError is set. Run returns an
// error for an invalid sweep, a cancelled context, a failing ResultFunc or,
// with StopOnError, the first failed configuration.
func (r *Runner) Run(ctx context.Context, sw sweep.Sweep, onResult ResultFunc) ([]sweep.ConfigResult, error) {
	if err := sw.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sweep: %w", err)
	}

	var configs []vision.Configuration
	for c := range sw.Configurations() {
		configs = append(configs, c)
	}

	clock := r.Options.withDefaults().Clock
	started := clock.Now()
	r.mu.Lock()
	r.state = RunState{Status: RunStatusRunning, StartedAt: &started, Total: len(configs)}
	r.mu.Unlock()
	skipped := 0
	for det, desc := range sw.Excluded() {
		diagf("skipping incompatible pair %s/%s", det, desc)
		skipped++
	}
	opsf("sweep started: %d configurations, %d incompatible pairs skipped, %d workers", len(configs), skipped, r.workers())

	results := make([]sweep.ConfigResult, len(configs))
	done := make([]bool, len(configs))
	next := 0
	var emitMu sync.Mutex

	// emit records result i and forwards every consecutive finished result
	// to onResult.
	emit := func(i int, res sweep.ConfigResult) error {
		emitMu.Lock()
		defer emitMu.Unlock()
		results[i] = res
		done[i] = true
		r.mu.Lock()
		r.state.Completed++
		if res.Err != nil {
			r.state.Failed++
		}
		r.mu.Unlock()
		for next < len(results) && done[next] {
			if onResult != nil {
				if err := onResult(results[next]); err != nil {
					return fmt.Errorf("handling result for %s: %w", results[next].Config, err)
				}
			}
			next++
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers())
	for i, cfg := range configs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res := r.runConfig(gctx, cfg)
			if err := emit(i, res); err != nil {
				return err
			}
			if res.Err != nil && r.StopOnError {
				return fmt.Errorf("configuration %s: %w", cfg, res.Err)
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	completed := clock.Now()
	r.mu.Lock()
	r.state.CompletedAt = &completed
	if err != nil {
		r.state.Status = RunStatusError
		r.state.Error = err.Error()
	} else {
		r.state.Status = RunStatusComplete
	}
	state := r.state
	r.mu.Unlock()

	opsf("sweep %s: %d/%d configurations, %d failed", state.Status, state.Completed, state.Total, state.Failed)
	if err != nil {
		return results[:next], err
	}
	return results, nil
}

func (r *Runner) workers() int {
	if r.Workers < 1 {
		return 1
	}
	return r.Workers
}

// runConfig builds and runs one pipeline. Construction failures, such as
// a backend lacking a capability, are returned on the result.
func (r *Runner) runConfig(ctx context.Context, cfg vision.Configuration) sweep.ConfigResult {
	p, err := NewFramePipeline(cfg, r.Backend, r.Options)
	if err != nil {
		opsf("%s: %v", cfg, err)
		return sweep.ConfigResult{Config: cfg, Err: err}
	}
	defer func() {
		if err := p.Close(); err != nil {
			opsf("%s: closing collaborators: %v", cfg, err)
		}
	}()

	res := p.Run(ctx, r.Source)
	if res.Err != nil {
		opsf("%s: aborted after %d frames: %v", cfg, len(res.Frames), res.Err)
		return res
	}
	s := res.Summarise()
	diagf("%s: frames=%d attempts=%d matches=%.1f±%.1f keypoints=%.1f elapsed=%.1fms",
		cfg, s.Frames, s.MatchAttempts, s.MatchesMean, s.MatchesStd, s.KeypointsMean, elapsedMs(res.Elapsed))
	return res
}
