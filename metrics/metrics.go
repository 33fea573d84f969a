// Package metrics exports benchmark results as Prometheus gauges in the
// node_exporter textfile format.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/weiihann/propbench/results"
)

var labels = []string{"test", "format", "scale", "hierarchy"}

// Exporter holds the gauges of one results collection.
type Exporter struct {
	registry *prometheus.Registry

	mean     *prometheus.GaugeVec
	std      *prometheus.GaugeVec
	min      *prometheus.GaugeVec
	max      *prometheus.GaugeVec
	runs     *prometheus.GaugeVec
	memory   *prometheus.GaugeVec
	fileSize *prometheus.GaugeVec
}

// New registers the benchmark gauges on a private registry.
func New() *Exporter {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	gauge := func(name, help string) *prometheus.GaugeVec {
		return factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "propbench",
			Subsystem: "scenario",
			Name:      name,
			Help:      help,
		}, labels)
	}

	return &Exporter{
		registry: reg,
		mean:     gauge("mean_seconds", "Mean trial duration in seconds"),
		std:      gauge("std_seconds", "Sample standard deviation of trial durations in seconds"),
		min:      gauge("min_seconds", "Fastest trial duration in seconds"),
		max:      gauge("max_seconds", "Slowest trial duration in seconds"),
		runs:     gauge("runs", "Number of trials aggregated"),
		memory:   gauge("memory_bytes", "Average resident memory delta per trial in bytes"),
		fileSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "propbench",
			Name:      "file_size_bytes",
			Help:      "On-disk size of a variant's data file in bytes",
		}, labels),
	}
}

// Registry returns the registry holding the gauges.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Record sets the gauges from every record and file size in c.
func (e *Exporter) Record(c *results.Collection) {
	scale := strconv.Itoa(c.Scale)

	for _, fs := range c.FileSizes() {
		e.fileSize.WithLabelValues("file_size", fs.Variant, scale, c.Hierarchy).Set(float64(fs.Bytes))
	}

	for _, r := range c.Results() {
		lv := []string{r.Scenario, r.Variant, scale, c.Hierarchy}

		if r.Timing != nil {
			e.mean.WithLabelValues(lv...).Set(r.Timing.Mean)
			e.std.WithLabelValues(lv...).Set(r.Timing.StdDev)
			e.min.WithLabelValues(lv...).Set(r.Timing.Min)
			e.max.WithLabelValues(lv...).Set(r.Timing.Max)
			e.runs.WithLabelValues(lv...).Set(float64(r.Timing.RunCount))
		}
		if r.Memory != nil {
			e.memory.WithLabelValues(lv...).Set(float64(r.Memory.CurrentBytes))
		}
	}
}

// WriteTextfile writes the gauges of c to path. The file is replaced
// atomically.
func WriteTextfile(path string, c *results.Collection) error {
	e := New()
	e.Record(c)

	return prometheus.WriteToTextfile(path, e.registry)
}
