package dataset

import (
	"fmt"
	"path/filepath"
)

// Layout names the files of one scale and hierarchy under a data root.
type Layout struct {
	Dir   string
	Scale int
}

// NewLayout returns the layout of <dataDir>/<scale>_<hierarchy>.
func NewLayout(dataDir string, scale int, h Hierarchy) Layout {
	return Layout{
		Dir:   filepath.Join(dataDir, fmt.Sprintf("%d_%s", scale, h)),
		Scale: scale,
	}
}

// BasePath is the prim hierarchy shared by every variant.
func (l Layout) BasePath() string {
	return filepath.Join(l.Dir, "base_scene.jsonl")
}

// JSONLPath is the JSON Lines property table.
func (l Layout) JSONLPath() string {
	return filepath.Join(l.Dir, "properties.jsonl")
}

// ParquetPath is the Parquet property table for a compression codec.
func (l Layout) ParquetPath(compression string) string {
	return filepath.Join(l.Dir, fmt.Sprintf("properties_%s_%d.parquet", compression, l.Scale))
}

// ResultsPath is where a run's result collection is saved.
func (l Layout) ResultsPath() string {
	return filepath.Join(l.Dir, "benchmark_results.json")
}

// ReportPath is where the markdown report is written.
func (l Layout) ReportPath() string {
	return filepath.Join(l.Dir, "benchmark_report.md")
}

// MetricsPath is where the Prometheus textfile is written.
func (l Layout) MetricsPath() string {
	return filepath.Join(l.Dir, "benchmark_metrics.prom")
}
