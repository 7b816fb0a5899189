package report

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/featurebench/internal/fsutil"
	"github.com/banshee-data/featurebench/internal/vision/sweep"
)

// maxLegendEntries caps the legend; lines beyond it are still drawn.
const maxLegendEntries = 12

// WritePlot renders accepted matches per frame, one line per
// configuration, as a PNG at path.
func WritePlot(fs fsutil.FileSystem, path, title string, results []sweep.ConfigResult) error {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Accepted matches"
	p.Add(plotter.NewGrid())

	lines := 0
	for _, r := range results {
		pts := make(plotter.XYs, 0, len(r.Frames))
		for _, f := range r.Frames {
			if f.MatchAttempted {
				pts = append(pts, plotter.XY{X: float64(f.Frame), Y: float64(f.Matches)})
			}
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(lines)
		line.Dashes = plotutil.Dashes(lines / len(plotutil.DefaultColors))
		line.Width = vg.Points(1)
		p.Add(line)
		if lines < maxLegendEntries {
			p.Legend.Add(r.Config.String(), line)
		}
		lines++
	}
	if lines == 0 {
		return fmt.Errorf("no match attempts to plot")
	}
	p.Legend.Top = true

	wt, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("rendering plot: %w", err)
	}
	f, err := fsutil.CreateOutput(fs, path)
	if err != nil {
		return err
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("writing plot %s: %w", path, err)
	}
	return f.Close()
}
