package sweep

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// SummaryHeader is the column layout of the summary CSV, one row per
// configuration.
var SummaryHeader = []string{
	"detector", "descriptor", "matcher", "selector", "roi", "limit",
	"frames", "match_attempts", "total_matches",
	"keypoints_mean", "keypoints_stddev", "matches_mean", "matches_stddev",
	"keypoint_size_mean", "detect_ms_mean", "extract_ms_mean", "match_ms_mean",
	"empty_descriptor_frames", "elapsed_ms", "error",
}

// RawHeader is the column layout of the raw CSV, one row per frame.
var RawHeader = []string{
	"detector", "descriptor", "matcher", "selector", "roi", "limit",
	"frame", "state", "detected", "after_roi", "retained", "described",
	"match_attempted", "prev_frame", "candidates", "matches", "empty_descriptors",
	"size_mean", "size_min", "size_max",
	"detect_ms", "extract_ms", "match_ms",
}

// CSVWriter wraps csv.Writer with methods for sweep output. Either writer
// may be nil to skip that file.
type CSVWriter struct {
	Summary *csv.Writer
	Raw     *csv.Writer
}

// NewCSVWriter creates a new CSVWriter with the given summary and raw writers.
func NewCSVWriter(summary, raw io.Writer) *CSVWriter {
	c := &CSVWriter{}
	if summary != nil {
		c.Summary = csv.NewWriter(summary)
	}
	if raw != nil {
		c.Raw = csv.NewWriter(raw)
	}
	return c
}

// WriteHeaders writes the headers to both CSV files.
func (c *CSVWriter) WriteHeaders() error {
	if c.Summary != nil {
		if err := c.Summary.Write(SummaryHeader); err != nil {
			return fmt.Errorf("writing summary header: %w", err)
		}
	}
	if c.Raw != nil {
		if err := c.Raw.Write(RawHeader); err != nil {
			return fmt.Errorf("writing raw header: %w", err)
		}
	}
	return nil
}

// WriteResult writes the summary row and every raw frame row of r.
func (c *CSVWriter) WriteResult(r ConfigResult) error {
	if c.Raw != nil {
		for _, f := range r.Frames {
			if err := c.Raw.Write(rawRow(r, f)); err != nil {
				return fmt.Errorf("writing raw row: %w", err)
			}
		}
	}
	if c.Summary != nil {
		if err := c.Summary.Write(summaryRow(r)); err != nil {
			return fmt.Errorf("writing summary row: %w", err)
		}
	}
	return c.Flush()
}

// Flush flushes both writers and reports the first error.
func (c *CSVWriter) Flush() error {
	for _, w := range []*csv.Writer{c.Summary, c.Raw} {
		if w == nil {
			continue
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return err
		}
	}
	return nil
}

func configCols(r ConfigResult) []string {
	return []string{
		string(r.Config.Detector),
		string(r.Config.Descriptor),
		string(r.Config.Matcher),
		string(r.Config.Selector),
		strconv.FormatBool(r.Config.ROI),
		strconv.Itoa(r.Config.Limit),
	}
}

func summaryRow(r ConfigResult) []string {
	s := r.Summarise()
	return append(configCols(r),
		strconv.Itoa(s.Frames),
		strconv.Itoa(s.MatchAttempts),
		strconv.Itoa(s.TotalMatches),
		fmt.Sprintf("%.3f", s.KeypointsMean),
		fmt.Sprintf("%.3f", s.KeypointsStd),
		fmt.Sprintf("%.3f", s.MatchesMean),
		fmt.Sprintf("%.3f", s.MatchesStd),
		fmt.Sprintf("%.3f", s.SizeMean),
		fmt.Sprintf("%.3f", s.DetectMeanMs),
		fmt.Sprintf("%.3f", s.ExtractMeanMs),
		fmt.Sprintf("%.3f", s.MatchMeanMs),
		strconv.Itoa(s.EmptyFrames),
		fmt.Sprintf("%.3f", durationMs(r.Elapsed)),
		r.ErrString(),
	)
}

func rawRow(r ConfigResult, f FrameResult) []string {
	return append(configCols(r),
		strconv.Itoa(f.Frame),
		f.State,
		strconv.Itoa(f.Detected),
		strconv.Itoa(f.AfterROI),
		strconv.Itoa(f.Retained),
		strconv.Itoa(f.Described),
		strconv.FormatBool(f.MatchAttempted),
		strconv.Itoa(f.PrevFrame),
		strconv.Itoa(f.Candidates),
		strconv.Itoa(f.Matches),
		strconv.FormatBool(f.EmptyDescriptors),
		fmt.Sprintf("%.3f", f.KeypointSize.Mean),
		fmt.Sprintf("%.3f", f.KeypointSize.Min),
		fmt.Sprintf("%.3f", f.KeypointSize.Max),
		fmt.Sprintf("%.3f", durationMs(f.DetectTime)),
		fmt.Sprintf("%.3f", durationMs(f.ExtractTime)),
		fmt.Sprintf("%.3f", durationMs(f.MatchTime)),
	)
}
