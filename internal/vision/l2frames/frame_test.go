package l2frames

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/featurebench/internal/ringbuf"
	"github.com/banshee-data/featurebench/internal/vision"
)

func TestWindow_SlidesOverFrames(t *testing.T) {
	w, err := NewWindow(DefaultWindowSize)
	require.NoError(t, err)
	assert.Equal(t, 2, w.Cap())
	assert.False(t, w.Ready())

	_, err = w.Current()
	assert.ErrorIs(t, err, ringbuf.ErrIndexOutOfRange)

	f1, f2, f3 := NewFrame(1, nil), NewFrame(2, nil), NewFrame(3, nil)

	w.Push(f1)
	assert.False(t, w.Ready())
	cur, err := w.Current()
	require.NoError(t, err)
	assert.Same(t, f1, cur)
	_, err = w.Previous()
	assert.ErrorIs(t, err, ringbuf.ErrIndexOutOfRange)

	w.Push(f2)
	assert.True(t, w.Ready())
	prev, err := w.Previous()
	require.NoError(t, err)
	assert.Same(t, f1, prev)

	w.Push(f3)
	assert.Equal(t, 2, w.Len())
	prev, err = w.Previous()
	require.NoError(t, err)
	assert.Same(t, f2, prev)
	cur, err = w.Current()
	require.NoError(t, err)
	assert.Same(t, f3, cur)
	_, err = w.Back(2)
	assert.ErrorIs(t, err, ringbuf.ErrIndexOutOfRange, "frame 1 must no longer be reachable")

	assert.Equal(t, []*Frame{f2, f3}, w.Frames())

	w.Reset()
	assert.Zero(t, w.Len())
	assert.False(t, w.Ready())
}

func TestNewWindow_InvalidSize(t *testing.T) {
	_, err := NewWindow(0)
	assert.Error(t, err)
}

func TestFrame_Validate(t *testing.T) {
	prev := &Frame{
		Index:       0,
		Keypoints:   []vision.Keypoint{{}, {}},
		Descriptors: vision.Descriptors{Binary: [][]byte{{1}, {2}}},
	}
	cur := &Frame{
		Index:       1,
		Keypoints:   []vision.Keypoint{{}, {}, {}},
		Descriptors: vision.Descriptors{Binary: [][]byte{{1}, {2}, {3}}},
		Matches:     []vision.Match{{Prev: 1, Curr: 2}},
	}
	require.NoError(t, prev.Validate(nil))
	require.NoError(t, cur.Validate(prev))

	assert.Error(t, cur.Validate(nil))

	bad := *cur
	bad.Matches = []vision.Match{{Prev: 2, Curr: 0}}
	assert.Error(t, bad.Validate(prev))

	bad.Matches = []vision.Match{{Prev: 0, Curr: 3}}
	assert.Error(t, bad.Validate(prev))

	misaligned := &Frame{Keypoints: []vision.Keypoint{{}}, Descriptors: vision.Descriptors{}}
	assert.Error(t, misaligned.Validate(nil))

	assert.NoError(t, NewFrame(4, nil).Validate(nil))
}
