package sweep

import (
	"time"

	"github.com/banshee-data/featurebench/internal/vision"
	"github.com/banshee-data/featurebench/internal/vision/l3keypoints"
)

// FrameResult records what happened to one frame of one configuration.
type FrameResult struct {
	Frame int    `json:"frame"`
	State string `json:"state"`

	Detected  int `json:"detected"`
	AfterROI  int `json:"after_roi"`
	Retained  int `json:"retained"`
	Described int `json:"described"`

	// PrevFrame is the frame matched against, or -1 when no match was attempted.
	PrevFrame        int  `json:"prev_frame"`
	MatchAttempted   bool `json:"match_attempted"`
	Candidates       int  `json:"candidates"`
	Matches          int  `json:"matches"`
	EmptyDescriptors bool `json:"empty_descriptors,omitempty"`

	KeypointSize l3keypoints.SizeStats `json:"keypoint_size"`

	DetectTime  time.Duration `json:"detect_ns"`
	ExtractTime time.Duration `json:"extract_ns"`
	MatchTime   time.Duration `json:"match_ns"`
}

// ConfigResult holds every frame result of one configuration. Err is set
// when a collaborator failed and the remaining frames were abandoned.
type ConfigResult struct {
	Config  vision.Configuration `json:"config"`
	Frames  []FrameResult        `json:"frames"`
	Err     error                `json:"-"`
	Elapsed time.Duration        `json:"elapsed_ns"`
}

// ErrString returns the abort error text, or "" when the run completed.
func (r ConfigResult) ErrString() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// MatchAttempts returns the number of frames on which matching ran.
func (r ConfigResult) MatchAttempts() int {
	n := 0
	for _, f := range r.Frames {
		if f.MatchAttempted {
			n++
		}
	}
	return n
}

// Summary aggregates the per-frame counts of a configuration.
type Summary struct {
	Frames         int
	MatchAttempts  int
	KeypointsMean  float64
	KeypointsStd   float64
	MatchesMean    float64
	MatchesStd     float64
	SizeMean       float64
	DetectMeanMs   float64
	ExtractMeanMs  float64
	MatchMeanMs    float64
	TotalMatches   int
	EmptyFrames    int
}

// Summarise computes the Summary of r. Match statistics cover only frames
// where matching ran.
func (r ConfigResult) Summarise() Summary {
	s := Summary{Frames: len(r.Frames)}
	var kps, sizes, detect, extract, matches, matchMs []float64
	for _, f := range r.Frames {
		kps = append(kps, float64(f.Described))
		if f.KeypointSize.Count > 0 {
			sizes = append(sizes, f.KeypointSize.Mean)
		}
		detect = append(detect, durationMs(f.DetectTime))
		extract = append(extract, durationMs(f.ExtractTime))
		if f.EmptyDescriptors {
			s.EmptyFrames++
		}
		if !f.MatchAttempted {
			continue
		}
		s.MatchAttempts++
		s.TotalMatches += f.Matches
		matches = append(matches, float64(f.Matches))
		matchMs = append(matchMs, durationMs(f.MatchTime))
	}
	s.KeypointsMean, s.KeypointsStd = MeanStddev(kps)
	s.MatchesMean, s.MatchesStd = MeanStddev(matches)
	s.SizeMean, _ = MeanStddev(sizes)
	s.DetectMeanMs, _ = MeanStddev(detect)
	s.ExtractMeanMs, _ = MeanStddev(extract)
	s.MatchMeanMs, _ = MeanStddev(matchMs)
	return s
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
