package vision

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompatible(t *testing.T) {
	for _, det := range AllDetectors {
		for _, desc := range AllDescriptors {
			err := Compatible(det, desc)
			excluded := (desc == DescriptorAKAZE && det != DetectorAKAZE) ||
				(desc == DescriptorORB && det == DetectorSIFT)
			if excluded {
				if !errors.Is(err, ErrIncompatibleConfiguration) {
					t.Errorf("Compatible(%s, %s) = %v, want ErrIncompatibleConfiguration", det, desc, err)
				}
				continue
			}
			if err != nil {
				t.Errorf("Compatible(%s, %s) = %v, want nil", det, desc, err)
			}
		}
	}
}

func TestDescriptorMetric(t *testing.T) {
	for _, desc := range AllDescriptors {
		want := MetricHamming
		if desc == DescriptorSIFT {
			want = MetricL2
		}
		assert.Equal(t, want, desc.Metric(), desc)
	}
}

func TestHasResponse(t *testing.T) {
	for _, det := range AllDetectors {
		assert.Equal(t, det != DetectorShiTomasi, det.HasResponse(), det)
	}
	// Unknown kinds default to the score-based retention path.
	assert.True(t, DetectorKind("NEWDET").HasResponse())
}

func TestSelectorK(t *testing.T) {
	assert.Equal(t, 1, SelectorNN.K())
	assert.Equal(t, 2, SelectorKNN.K())
}

func TestParseDetectors(t *testing.T) {
	got, err := ParseDetectors(" sift, ORB ,,fast")
	require.NoError(t, err)
	assert.Equal(t, []DetectorKind{DetectorSIFT, DetectorORB, DetectorFAST}, got)

	got, err = ParseDetectors("")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParseDetectors("SIFT,SURF")
	assert.ErrorContains(t, err, "SURF")
}

func TestParseDescriptors(t *testing.T) {
	got, err := ParseDescriptors("brief,akaze")
	require.NoError(t, err)
	assert.Equal(t, []DescriptorKind{DescriptorBRIEF, DescriptorAKAZE}, got)

	_, err = ParseDescriptors("HOG")
	assert.Error(t, err)
}

func TestDescriptors(t *testing.T) {
	var empty Descriptors
	assert.True(t, empty.Empty())
	assert.False(t, empty.IsBinary())

	b := Descriptors{Binary: [][]byte{{1}, {2}, {3}}}
	assert.Equal(t, 3, b.Rows())
	assert.True(t, b.IsBinary())
	assert.Equal(t, [][]byte{{3}, {1}}, b.Select([]int{2, 0}).Binary)
	require.NoError(t, b.CheckAligned(make([]Keypoint, 3)))
	assert.Error(t, b.CheckAligned(make([]Keypoint, 2)))

	f := Descriptors{Float: [][]float64{{0.5}, {1.5}}}
	assert.Equal(t, 2, f.Rows())
	assert.False(t, f.IsBinary())
	assert.Equal(t, [][]float64{{1.5}}, f.Select([]int{1}).Float)

	assert.True(t, empty.Select(nil).Empty())
}

func TestConfiguration(t *testing.T) {
	c := Configuration{
		Detector:   DetectorFAST,
		Descriptor: DescriptorBRIEF,
		Matcher:    MatcherBruteForce,
		Selector:   SelectorKNN,
		ROI:        true,
		Limit:      50,
	}
	require.NoError(t, c.Validate())
	assert.Equal(t, "FAST/BRIEF/MAT_BF/SEL_KNN/roi/n=50", c.String())

	bad := c
	bad.Descriptor = DescriptorAKAZE
	assert.ErrorIs(t, bad.Validate(), ErrIncompatibleConfiguration)

	bad = c
	bad.Matcher = "MAT_X"
	assert.True(t, strings.Contains(bad.Validate().Error(), "matcher"))

	bad = c
	bad.Selector = ""
	assert.Error(t, bad.Validate())
}

type closer struct{ closed bool }

func (c *closer) Close() error { c.closed = true; return nil }

func TestCloseIfCloser(t *testing.T) {
	c := &closer{}
	require.NoError(t, CloseIfCloser(c))
	assert.True(t, c.closed)
	assert.NoError(t, CloseIfCloser(struct{}{}))
}
