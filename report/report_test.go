package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/weiihann/propbench/probe"
	"github.com/weiihann/propbench/results"
	"github.com/weiihann/propbench/stats"
)

func sampleCollection(t *testing.T) *results.Collection {
	t.Helper()

	c := results.New(1000, "flat")
	c.AddFileSize("parquet_zstd", 512*1024)
	c.AddFileSize("jsonl", 2*1024*1024)

	records := []results.Record{
		{
			Scenario: "file_size",
			Variant:  "parquet_zstd",
			Extra:    map[string]any{"size_bytes": int64(512 * 1024)},
		},
		{
			Scenario: "single_property_traversal",
			Variant:  "parquet_zstd",
			Timing:   &stats.Timing{Mean: 0.5, StdDev: 0.01, Min: 0.49, Max: 0.51, RunCount: 5},
			Memory:   &probe.MemorySummary{CurrentBytes: 1024 * 1024, PeakBytes: 1024 * 1024},
			Extra: map[string]any{
				"prim_count":       int64(1000),
				"time_per_prim_us": 500.0,
				"detailed_probes": [][]probe.Sample{
					{{Label: "start"}, {Label: "finished", ElapsedSinceStart: 0.4, DeltaSinceStart: 2 * 1024 * 1024}},
					{{Label: "start"}, {Label: "finished", ElapsedSinceStart: 0.6}},
				},
			},
		},
		{
			Scenario: "single_property_traversal",
			Variant:  "jsonl",
			Timing:   &stats.Timing{Mean: 1.0, StdDev: 0.1, Min: 0.9, Max: 1.1, RunCount: 5},
			Memory:   &probe.MemorySummary{},
		},
	}
	for _, r := range records {
		if err := c.AddResult(r); err != nil {
			t.Fatalf("AddResult failed: %v", err)
		}
	}

	return c
}

func TestGenerate(t *testing.T) {
	var buf bytes.Buffer
	if err := Generate(&buf, sampleCollection(t)); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	output := buf.String()

	for _, want := range []string{
		"Scale: 1000 prims, hierarchy: flat",
		"### File Size",
		"| parquet_zstd | 512 KB | 1.00x |",
		"| jsonl | 2 MB | 4.00x |",
		"### Single Property Traversal",
		"| parquet_zstd | 500.00ms ± 10.00ms | 490.00ms..510.00ms | 1 MB | 1000 prims, 500.00 µs/prim | 1.00x |",
		"| jsonl | 1.00s ± 100.00ms | 900.00ms..1.10s | - | - | 2.00x |",
		"Fastest: **parquet_zstd** (500.00ms)",
		"| Format | start | finished |",
		"| parquet_zstd | 0.0000s +0.00 MB | 0.5000s +1.00 MB |",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q\n%s", want, output)
		}
	}
}

func TestGenerateFromReloadedResults(t *testing.T) {
	data, err := sampleCollection(t).Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	c, err := results.Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	var buf bytes.Buffer
	if err := Generate(&buf, c); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !strings.Contains(buf.String(), "| parquet_zstd | 0.0000s +0.00 MB | 0.5000s +1.00 MB |") {
		t.Errorf("probe table not rendered from reloaded results:\n%s", buf.String())
	}
}

func TestGenerateEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Generate(&buf, results.New(10, "flat")); err == nil {
		t.Error("expected error for empty results")
	}
}

func TestGenerateJSON(t *testing.T) {
	c := sampleCollection(t)

	var buf bytes.Buffer
	if err := GenerateJSON(&buf, c); err != nil {
		t.Fatalf("GenerateJSON failed: %v", err)
	}

	parsed, err := results.Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("output is not a results file: %v", err)
	}

	if len(parsed.Results()) != 3 {
		t.Fatalf("expected 3 results, got %d", len(parsed.Results()))
	}
	if parsed.RunID != c.RunID {
		t.Errorf("run id = %q, want %q", parsed.RunID, c.RunID)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input int64
		want  string
	}{
		{0, "-"},
		{512, "512 B"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{-1536, "-1.5 KB"},
		{1048576, "1 MB"},
		{1073741824, "1 GB"},
	}

	for _, tt := range tests {
		got := formatBytes(tt.input)
		if got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		input float64
		want  string
	}{
		{0, "0.00ms"},
		{0.5, "500.00ms"},
		{0.999, "999.00ms"},
		{1, "1.00s"},
		{1.5, "1.50s"},
		{60, "60.00s"},
	}

	for _, tt := range tests {
		got := formatSeconds(tt.input)
		if got != tt.want {
			t.Errorf("formatSeconds(%g) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTitle(t *testing.T) {
	if got := title("multi_property_traversal"); got != "Multi Property Traversal" {
		t.Errorf("title = %q", got)
	}
}
