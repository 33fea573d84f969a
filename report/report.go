// Package report formats benchmark results into comparison tables.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/weiihann/propbench/probe"
	"github.com/weiihann/propbench/results"
)

// Generate writes a markdown report for the collection: a file size table
// followed by one comparison table per measured scenario.
func Generate(w io.Writer, c *results.Collection) error {
	records := c.Results()
	if len(records) == 0 && len(c.FileSizes()) == 0 {
		return fmt.Errorf("no results to report")
	}

	fmt.Fprintln(w, "## Benchmark Results")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Scale: %d prims, hierarchy: %s, run: %s (%s)\n",
		c.Scale, c.Hierarchy, c.RunID, c.TestRun)
	fmt.Fprintln(w)

	writeFileSizes(w, c.FileSizes())

	for _, scenario := range scenarios(records) {
		var rows []results.Record
		for _, r := range records {
			if r.Scenario == scenario && r.Timing != nil {
				rows = append(rows, r)
			}
		}
		if len(rows) == 0 {
			continue
		}

		writeScenario(w, scenario, rows)
	}

	return nil
}

// GenerateJSON writes the collection in its serialized form to w.
func GenerateJSON(w io.Writer, c *results.Collection) error {
	data, err := c.Serialize()
	if err != nil {
		return err
	}

	_, err = w.Write(data)
	return err
}

// scenarios returns scenario names in order of first appearance.
func scenarios(records []results.Record) []string {
	seen := make(map[string]struct{})

	var names []string
	for _, r := range records {
		if _, ok := seen[r.Scenario]; ok {
			continue
		}
		seen[r.Scenario] = struct{}{}
		names = append(names, r.Scenario)
	}

	return names
}

func writeFileSizes(w io.Writer, sizes []results.FileSize) {
	if len(sizes) == 0 {
		return
	}

	smallest := int64(math.MaxInt64)
	for _, s := range sizes {
		if s.Bytes > 0 && s.Bytes < smallest {
			smallest = s.Bytes
		}
	}

	fmt.Fprintln(w, "### File Size")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Format | Size | Relative |")
	fmt.Fprintln(w, "|--------|------|----------|")

	for _, s := range sizes {
		rel := 1.0
		if smallest != math.MaxInt64 && s.Bytes > 0 {
			rel = float64(s.Bytes) / float64(smallest)
		}

		fmt.Fprintf(w, "| %s | %s | %.2fx |\n", s.Variant, formatBytes(s.Bytes), rel)
	}

	fmt.Fprintln(w)
}

func writeScenario(w io.Writer, scenario string, rows []results.Record) {
	fastest := rows[0]
	for _, r := range rows[1:] {
		if r.Timing.Mean < fastest.Timing.Mean {
			fastest = r
		}
	}

	fmt.Fprintf(w, "### %s\n", title(scenario))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Format | Mean | Range | Memory | Details | Speedup |")
	fmt.Fprintln(w, "|--------|------|-------|--------|---------|---------|")

	for _, r := range rows {
		speedup := 1.0
		if fastest.Timing.Mean > 0 {
			speedup = r.Timing.Mean / fastest.Timing.Mean
		}

		mem := "-"
		if r.Memory != nil {
			mem = formatBytes(r.Memory.PeakBytes)
		}

		fmt.Fprintf(w, "| %s | %s ± %s | %s..%s | %s | %s | %.2fx |\n",
			r.Variant,
			formatSeconds(r.Timing.Mean),
			formatSeconds(r.Timing.StdDev),
			formatSeconds(r.Timing.Min),
			formatSeconds(r.Timing.Max),
			mem,
			details(&r),
			speedup,
		)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Fastest: **%s** (%s)\n", fastest.Variant, formatSeconds(fastest.Timing.Mean))
	fmt.Fprintln(w)

	writeProbes(w, rows)
}

// writeProbes renders the per-probe averages across trials. Labels are
// taken from the first trial of the first record that has any.
func writeProbes(w io.Writer, rows []results.Record) {
	var labels []string

	type line struct {
		variant string
		times   []float64
		mems    []float64
	}

	var lines []line

	for _, r := range rows {
		runs, ok := probeRuns(r.Extra["detailed_probes"])
		if !ok || len(runs) == 0 || len(runs[0]) == 0 {
			continue
		}
		if labels == nil {
			for _, s := range runs[0] {
				labels = append(labels, s.Label)
			}
		}

		l := line{
			variant: r.Variant,
			times:   make([]float64, len(labels)),
			mems:    make([]float64, len(labels)),
		}
		for _, run := range runs {
			for i, s := range run {
				if i >= len(labels) {
					break
				}
				l.times[i] += s.ElapsedSinceStart / float64(len(runs))
				l.mems[i] += float64(s.DeltaSinceStart) / float64(len(runs))
			}
		}

		lines = append(lines, l)
	}

	if len(lines) == 0 {
		return
	}

	fmt.Fprintln(w, "Probe averages (elapsed, memory delta):")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "| Format | %s |\n", strings.Join(labels, " | "))
	fmt.Fprintf(w, "|--------|%s\n", strings.Repeat("---|", len(labels)))

	for _, l := range lines {
		cells := make([]string, len(labels))
		for i := range labels {
			cells[i] = fmt.Sprintf("%.4fs %+.2f MB", l.times[i], l.mems[i]/(1024*1024))
		}
		fmt.Fprintf(w, "| %s | %s |\n", l.variant, strings.Join(cells, " | "))
	}

	fmt.Fprintln(w)
}

// probeRuns accepts detailed probes as built in memory or as reloaded from
// a results file.
func probeRuns(v any) ([][]probe.Sample, bool) {
	switch p := v.(type) {
	case [][]probe.Sample:
		return p, true
	case json.RawMessage:
		var runs [][]probe.Sample
		if err := json.Unmarshal(p, &runs); err != nil {
			return nil, false
		}
		return runs, true
	default:
		return nil, false
	}
}

func details(r *results.Record) string {
	var parts []string

	if n, ok := r.ExtraFloat("prim_count"); ok && n > 0 {
		parts = append(parts, fmt.Sprintf("%d prims", int64(n)))
	}
	if us, ok := r.ExtraFloat("time_per_prim_us"); ok && us > 0 {
		parts = append(parts, fmt.Sprintf("%.2f µs/prim", us))
	}
	if n, ok := r.ExtraFloat("property_count"); ok && n > 0 {
		parts = append(parts, fmt.Sprintf("%d props", int64(n)))
	}
	if p99, ok := r.ExtraFloat("p99_seconds"); ok && r.Timing.RunCount > 1 {
		parts = append(parts, "p99 "+formatSeconds(p99))
	}

	if len(parts) == 0 {
		return "-"
	}

	return strings.Join(parts, ", ")
}

func title(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}

	return strings.Join(words, " ")
}

func formatSeconds(s float64) string {
	if s < 1 {
		return fmt.Sprintf("%.2fms", s*1000)
	}

	return fmt.Sprintf("%.2fs", s)
}

func formatBytes(b int64) string {
	if b == 0 {
		return "-"
	}

	sign := ""
	if b < 0 {
		sign = "-"
		b = -b
	}

	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(b)
	unit := 0

	for size >= 1024 && unit < len(units)-1 {
		size /= 1024
		unit++
	}

	formatted := fmt.Sprintf("%.1f", size)
	formatted = strings.TrimRight(formatted, "0")
	formatted = strings.TrimRight(formatted, ".")

	return sign + formatted + " " + units[unit]
}
