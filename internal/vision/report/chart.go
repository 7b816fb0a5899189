package report

import (
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/featurebench/internal/fsutil"
	"github.com/banshee-data/featurebench/internal/vision/sweep"
)

// AssetsHost is where the rendered HTML loads echarts from.
var AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// WriteChart renders a bar chart of mean keypoints and mean accepted
// matches per configuration to path. Configurations that processed no
// frames are left out.
func WriteChart(fs fsutil.FileSystem, path, title string, results []sweep.ConfigResult) error {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	labels := make([]string, 0, len(results))
	keypoints := make([]opts.BarData, 0, len(results))
	matches := make([]opts.BarData, 0, len(results))
	for _, r := range results {
		if len(r.Frames) == 0 {
			continue
		}
		s := r.Summarise()
		labels = append(labels, r.Config.String())
		keypoints = append(keypoints, opts.BarData{Value: round1(s.KeypointsMean)})
		matches = append(matches, opts.BarData{Value: round1(s.MatchesMean)})
	}
	if len(labels) == 0 {
		return fmt.Errorf("no configuration results to chart")
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "720px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("%d configurations", len(labels))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: 60, Interval: "0"}}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	bar.SetXAxis(labels).
		AddSeries("mean keypoints", keypoints).
		AddSeries("mean matches", matches,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.SetAssetsHost(AssetsHost)
	page.AddCharts(bar)

	f, err := fsutil.CreateOutput(fs, path)
	if err != nil {
		return err
	}
	if err := page.Render(f); err != nil {
		f.Close()
		return fmt.Errorf("render error: %w", err)
	}
	return f.Close()
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
