//go:build opencv
// +build opencv

package opencv

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/banshee-data/featurebench/internal/vision"
)

func toKeyPoints(kps []vision.Keypoint) []gocv.KeyPoint {
	out := make([]gocv.KeyPoint, len(kps))
	for i, kp := range kps {
		out[i] = gocv.KeyPoint{
			X:        kp.X,
			Y:        kp.Y,
			Size:     kp.Size,
			Angle:    kp.Tag.Angle,
			Response: kp.Response,
			Octave:   kp.Tag.Octave,
			ClassID:  kp.Tag.ClassID,
		}
	}
	return out
}

func fromKeyPoints(kps []gocv.KeyPoint) []vision.Keypoint {
	out := make([]vision.Keypoint, len(kps))
	for i, kp := range kps {
		out[i] = vision.Keypoint{
			X:        kp.X,
			Y:        kp.Y,
			Size:     kp.Size,
			Response: kp.Response,
			Tag: vision.KeypointTag{
				Angle:   kp.Angle,
				Octave:  kp.Octave,
				ClassID: kp.ClassID,
			},
		}
	}
	return out
}

// matToDescriptors copies an 8-bit or 32-bit float descriptor matrix.
func matToDescriptors(m gocv.Mat) (vision.Descriptors, error) {
	rows, cols := m.Rows(), m.Cols()
	switch m.Type() {
	case gocv.MatTypeCV8U:
		out := vision.Descriptors{Binary: make([][]byte, rows)}
		for r := 0; r < rows; r++ {
			row := make([]byte, cols)
			for c := 0; c < cols; c++ {
				row[c] = m.GetUCharAt(r, c)
			}
			out.Binary[r] = row
		}
		return out, nil
	case gocv.MatTypeCV32F:
		out := vision.Descriptors{Float: make([][]float64, rows)}
		for r := 0; r < rows; r++ {
			row := make([]float64, cols)
			for c := 0; c < cols; c++ {
				row[c] = float64(m.GetFloatAt(r, c))
			}
			out.Float[r] = row
		}
		return out, nil
	}
	if m.Empty() {
		return vision.Descriptors{}, nil
	}
	return vision.Descriptors{}, fmt.Errorf("unsupported descriptor matrix type %v", m.Type())
}

// descriptorsToMat builds a rows×cols matrix from a block. Binary rows
// become CV_8U unless asFloat is set; float rows are always CV_32F.
func descriptorsToMat(d vision.Descriptors, asFloat bool) (gocv.Mat, error) {
	rows := d.Rows()
	if rows == 0 {
		return gocv.NewMat(), nil
	}
	if d.IsBinary() {
		cols := len(d.Binary[0])
		typ := gocv.MatTypeCV8U
		if asFloat {
			typ = gocv.MatTypeCV32F
		}
		m := gocv.NewMatWithSize(rows, cols, typ)
		for r, row := range d.Binary {
			if len(row) != cols {
				m.Close()
				return gocv.Mat{}, fmt.Errorf("descriptor row %d has %d bytes, want %d", r, len(row), cols)
			}
			for c, v := range row {
				if asFloat {
					m.SetFloatAt(r, c, float32(v))
				} else {
					m.SetUCharAt(r, c, v)
				}
			}
		}
		return m, nil
	}

	cols := len(d.Float[0])
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV32F)
	for r, row := range d.Float {
		if len(row) != cols {
			m.Close()
			return gocv.Mat{}, fmt.Errorf("descriptor row %d has %d values, want %d", r, len(row), cols)
		}
		for c, v := range row {
			m.SetFloatAt(r, c, float32(v))
		}
	}
	return m, nil
}

// fromDMatches converts KnnMatch output into one neighbour list per query
// row, nearest first.
func fromDMatches(matches [][]gocv.DMatch, queryRows int) [][]vision.Neighbor {
	out := make([][]vision.Neighbor, queryRows)
	for _, list := range matches {
		for _, m := range list {
			if m.QueryIdx < 0 || m.QueryIdx >= queryRows {
				continue
			}
			out[m.QueryIdx] = append(out[m.QueryIdx], vision.Neighbor{Index: m.TrainIdx, Distance: m.Distance})
		}
	}
	for i := range out {
		if out[i] == nil {
			out[i] = []vision.Neighbor{}
		}
	}
	return out
}
