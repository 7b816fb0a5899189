// Package l1images owns Layer 1 (Images) of the benchmark data model.
//
// Responsibilities: locating, decoding and grayscale-converting the input
// frame sequence. Key types: Source, SequenceSource, Image.
//
// Dependency rule: L1 depends on nothing above it.
package l1images

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"

	"github.com/disintegration/gift"

	"github.com/banshee-data/featurebench/internal/fsutil"
)

// ErrEndOfSequence is returned by Load for indices past the last frame.
var ErrEndOfSequence = errors.New("end of image sequence")

// Image is one decoded grayscale frame.
type Image struct {
	Index int
	Path  string
	Gray  *image.Gray
}

// Source supplies frames by position, starting at 0.
type Source interface {
	Load(ctx context.Context, index int) (Image, error)
	Len() int
}

// Sequence describes an indexed, zero-padded image sequence on disk:
// <Dir>/<Prefix><index padded to Width><Ext> for Start <= index <= End.
type Sequence struct {
	Dir    string `json:"dir"`
	Prefix string `json:"prefix"`
	Width  int    `json:"width"`
	Ext    string `json:"ext"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
}

// DefaultSequence is the ten-frame KITTI camera sequence.
var DefaultSequence = Sequence{
	Dir:    "images",
	Prefix: "KITTI/2011_09_26/image_00/data/000000",
	Width:  4,
	Ext:    ".png",
	Start:  0,
	End:    9,
}

// Validate checks the sequence bounds.
func (s Sequence) Validate() error {
	if s.Start < 0 {
		return fmt.Errorf("sequence start %d must be non-negative", s.Start)
	}
	if s.End < s.Start {
		return fmt.Errorf("sequence end %d is before start %d", s.End, s.Start)
	}
	if s.Width < 0 {
		return fmt.Errorf("sequence width %d must be non-negative", s.Width)
	}
	return nil
}

// Path returns the file path of the frame with the given sequence number.
func (s Sequence) Path(number int) string {
	name := fmt.Sprintf("%s%0*d%s", s.Prefix, s.Width, number, s.Ext)
	return filepath.Join(s.Dir, name)
}

// SequenceSource loads a Sequence through a FileSystem. Load index 0 maps to
// the sequence's Start number.
type SequenceSource struct {
	seq Sequence
	fs  fsutil.FileSystem
}

// NewSequenceSource validates seq and returns a source reading from fs.
// A nil fs reads from the host filesystem.
func NewSequenceSource(seq Sequence, fs fsutil.FileSystem) (*SequenceSource, error) {
	if err := seq.Validate(); err != nil {
		return nil, err
	}
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	return &SequenceSource{seq: seq, fs: fs}, nil
}

// Len returns the number of frames in the sequence.
func (s *SequenceSource) Len() int {
	return s.seq.End - s.seq.Start + 1
}

// Load reads, decodes and grayscale-converts frame index. It is safe for
// concurrent use.
func (s *SequenceSource) Load(ctx context.Context, index int) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}
	if index < 0 {
		return Image{}, fmt.Errorf("frame index %d must be non-negative", index)
	}
	if index >= s.Len() {
		return Image{}, ErrEndOfSequence
	}

	path := s.seq.Path(s.seq.Start + index)
	f, err := s.fs.Open(path)
	if err != nil {
		return Image{}, fmt.Errorf("opening frame %d: %w", index, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return Image{}, fmt.Errorf("decoding frame %s: %w", path, err)
	}
	return Image{Index: index, Path: path, Gray: ToGray(img)}, nil
}

// ToGray converts img to 8-bit grayscale. Gray inputs are returned as is.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	g := gift.New(gift.Grayscale())
	dst := image.NewGray(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}

// StaticSource serves frames already held in memory.
type StaticSource struct {
	Frames []*image.Gray
}

// Len returns the number of frames.
func (s StaticSource) Len() int { return len(s.Frames) }

// Load returns frame index.
func (s StaticSource) Load(ctx context.Context, index int) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}
	if index < 0 {
		return Image{}, fmt.Errorf("frame index %d must be non-negative", index)
	}
	if index >= len(s.Frames) {
		return Image{}, ErrEndOfSequence
	}
	return Image{Index: index, Gray: s.Frames[index]}, nil
}
