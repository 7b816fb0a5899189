package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/featurebench/internal/vision"
	"github.com/banshee-data/featurebench/internal/vision/sweep"
)

// Run statuses stored in bench_runs.status.
const (
	RunStatusRunning  = "running"
	RunStatusComplete = "complete"
	RunStatusError    = "error"
)

// RunRecord is one persisted sweep invocation.
type RunRecord struct {
	RunID       string          `json:"run_id"`
	Status      string          `json:"status"`
	Backend     string          `json:"backend"`
	Version     string          `json:"version,omitempty"`
	GitSHA      string          `json:"git_sha,omitempty"`
	Request     json.RawMessage `json:"request,omitempty"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// ResultRecord is one persisted configuration result.
type ResultRecord struct {
	RunID    string               `json:"run_id"`
	Position int                  `json:"position"`
	Config   vision.Configuration `json:"config"`
	Summary  sweep.Summary        `json:"summary"`
	Elapsed  time.Duration        `json:"elapsed_ns"`
	Error    string               `json:"error,omitempty"`
	Frames   []sweep.FrameResult  `json:"frames,omitempty"`
}

// Store provides persistence for benchmark runs.
type Store struct {
	db *sql.DB
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
}

// Open opens or creates the database at path and applies pending
// migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	// One writer; pragmas then apply to the only connection.
	db.SetMaxOpenConns(1)
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("executing %q: %w", p, err)
		}
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SchemaVersion returns the applied migration version.
func (s *Store) SchemaVersion() (uint, error) {
	v, dirty, err := migrateVersion(s.db)
	if err != nil {
		return 0, err
	}
	if dirty {
		return v, fmt.Errorf("schema version %d is dirty", v)
	}
	return v, nil
}

// InsertRun records a run when a sweep starts. An empty RunID is replaced
// with a new UUID; the record is updated in place.
func (s *Store) InsertRun(rec *RunRecord) error {
	if rec.RunID == "" {
		rec.RunID = uuid.New().String()
	}
	if rec.Status == "" {
		rec.Status = RunStatusRunning
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO bench_runs (
				run_id, status, backend, version, git_sha, request, error, started_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.RunID, rec.Status, rec.Backend,
			nullStr(rec.Version), nullStr(rec.GitSHA), nullJSON(rec.Request), nullStr(rec.Error),
			rec.StartedAt.UTC().Format(time.RFC3339Nano),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", rec.RunID, err)
	}
	return nil
}

// CompleteRun sets the final status of a run.
func (s *Store) CompleteRun(runID, status string, completedAt time.Time, errMsg string) error {
	var result sql.Result
	err := retryOnBusy(func() error {
		var err error
		result, err = s.db.Exec(`
			UPDATE bench_runs SET status = ?, completed_at = ?, error = ?
			WHERE run_id = ?`,
			status, completedAt.UTC().Format(time.RFC3339Nano), nullStr(errMsg), runID,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("completing run %s: %w", runID, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// InsertResult records the result at position of a run.
func (s *Store) InsertResult(runID string, position int, res sweep.ConfigResult) error {
	framesJSON, err := json.Marshal(res.Frames)
	if err != nil {
		return fmt.Errorf("encoding frames: %w", err)
	}
	sum := res.Summarise()
	c := res.Config
	err = retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO bench_results (
				run_id, position, detector, descriptor, matcher, selector, roi, retention_limit,
				frames, match_attempts, keypoints_mean, keypoints_std, matches_mean, matches_std,
				size_mean, detect_ms, extract_ms, match_ms, total_matches, elapsed_ms,
				error, frames_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, position, string(c.Detector), string(c.Descriptor), string(c.Matcher), string(c.Selector),
			c.ROI, c.Limit,
			sum.Frames, sum.MatchAttempts, sum.KeypointsMean, sum.KeypointsStd, sum.MatchesMean, sum.MatchesStd,
			sum.SizeMean, sum.DetectMeanMs, sum.ExtractMeanMs, sum.MatchMeanMs, sum.TotalMatches,
			durationMs(res.Elapsed),
			nullStr(res.ErrString()), string(framesJSON),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("inserting result %d of run %s: %w", position, runID, err)
	}
	return nil
}

// GetRun returns a single run by id.
func (s *Store) GetRun(runID string) (*RunRecord, error) {
	var rec RunRecord
	var version, gitSHA, request, errMsg, completedAt sql.NullString
	var startedAt string
	err := s.db.QueryRow(`
		SELECT run_id, status, backend, version, git_sha, request, error, started_at, completed_at
		FROM bench_runs WHERE run_id = ?`, runID).Scan(
		&rec.RunID, &rec.Status, &rec.Backend, &version, &gitSHA, &request, &errMsg,
		&startedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	rec.Version = version.String
	rec.GitSHA = gitSHA.String
	rec.Error = errMsg.String
	rec.Request = jsonOrNil(request)
	if rec.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("parsing started_at for run %s: %w", runID, err)
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing completed_at for run %s: %w", runID, err)
		}
		rec.CompletedAt = &t
	}
	return &rec, nil
}

// ListRuns returns every run, newest first.
func (s *Store) ListRuns() ([]RunRecord, error) {
	rows, err := s.db.Query(`SELECT run_id FROM bench_runs ORDER BY started_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]RunRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.GetRun(id)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

// ListResults returns the results of a run in sweep order.
func (s *Store) ListResults(runID string) ([]ResultRecord, error) {
	rows, err := s.db.Query(`
		SELECT position, detector, descriptor, matcher, selector, roi, retention_limit,
		       frames, match_attempts, keypoints_mean, keypoints_std, matches_mean, matches_std,
		       size_mean, detect_ms, extract_ms, match_ms, total_matches, elapsed_ms,
		       error, frames_json
		FROM bench_results
		WHERE run_id = ?
		ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []ResultRecord
	for rows.Next() {
		r := ResultRecord{RunID: runID}
		var det, desc, matcher, selector string
		var elapsedMs float64
		var errMsg, framesJSON sql.NullString
		if err := rows.Scan(
			&r.Position, &det, &desc, &matcher, &selector, &r.Config.ROI, &r.Config.Limit,
			&r.Summary.Frames, &r.Summary.MatchAttempts, &r.Summary.KeypointsMean, &r.Summary.KeypointsStd,
			&r.Summary.MatchesMean, &r.Summary.MatchesStd, &r.Summary.SizeMean,
			&r.Summary.DetectMeanMs, &r.Summary.ExtractMeanMs, &r.Summary.MatchMeanMs,
			&r.Summary.TotalMatches, &elapsedMs, &errMsg, &framesJSON,
		); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Config.Detector = vision.DetectorKind(det)
		r.Config.Descriptor = vision.DescriptorKind(desc)
		r.Config.Matcher = vision.MatcherKind(matcher)
		r.Config.Selector = vision.SelectorKind(selector)
		r.Elapsed = time.Duration(elapsedMs * float64(time.Millisecond))
		r.Error = errMsg.String
		if raw := jsonOrNil(framesJSON); raw != nil {
			if err := json.Unmarshal(raw, &r.Frames); err != nil {
				return nil, fmt.Errorf("decoding frames of result %d: %w", r.Position, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// retryOnBusy retries fn while SQLite reports the database as locked.
func retryOnBusy(fn func() error) error {
	const attempts = 5
	delay := 10 * time.Millisecond
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !isBusy(err) {
			return err
		}
		time.Sleep(delay)
		delay *= 2
	}
	return err
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// nullStr returns nil for empty strings, pointer to string otherwise.
func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullJSON treats nil or empty JSON as NULL.
func nullJSON(data json.RawMessage) *string {
	if len(data) == 0 {
		return nil
	}
	s := string(data)
	return &s
}

// jsonOrNil converts a sql.NullString to json.RawMessage, returning nil for NULL values.
func jsonOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
