// Package report renders sweep results as charts: an interactive HTML bar
// chart of per-configuration means (go-echarts) and a PNG line plot of
// accepted matches per frame (gonum/plot). Files are written through
// fsutil.FileSystem so tests can render into memory.
package report
