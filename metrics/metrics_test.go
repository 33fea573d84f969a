package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/propbench/probe"
	"github.com/weiihann/propbench/results"
	"github.com/weiihann/propbench/stats"
)

func collection(t *testing.T) *results.Collection {
	t.Helper()

	c := results.New(1000, "deep")
	c.AddFileSize("parquet_zstd", 4096)
	c.AddFileSize("jsonl", 16384)

	require.NoError(t, c.AddResult(results.Record{
		Scenario: "file_size",
		Variant:  "jsonl",
		Extra:    map[string]any{"size_bytes": int64(16384)},
	}))
	require.NoError(t, c.AddResult(results.Record{
		Scenario: "initial_load_cold",
		Variant:  "parquet_zstd",
		Timing:   &stats.Timing{Mean: 0.2, StdDev: 0.02, Min: 0.18, Max: 0.23, RunCount: 5},
		Memory:   &probe.MemorySummary{CurrentBytes: 2048, PeakBytes: 2048},
	}))

	return c
}

func TestRecord(t *testing.T) {
	e := New()
	e.Record(collection(t))

	assert.InDelta(t, 0.2, testutil.ToFloat64(e.mean.WithLabelValues("initial_load_cold", "parquet_zstd", "1000", "deep")), 1e-12)
	assert.InDelta(t, 0.23, testutil.ToFloat64(e.max.WithLabelValues("initial_load_cold", "parquet_zstd", "1000", "deep")), 1e-12)
	assert.Equal(t, 5.0, testutil.ToFloat64(e.runs.WithLabelValues("initial_load_cold", "parquet_zstd", "1000", "deep")))
	assert.Equal(t, 2048.0, testutil.ToFloat64(e.memory.WithLabelValues("initial_load_cold", "parquet_zstd", "1000", "deep")))
	assert.Equal(t, 16384.0, testutil.ToFloat64(e.fileSize.WithLabelValues("file_size", "jsonl", "1000", "deep")))

	// Records without timing do not create timing series.
	assert.Equal(t, 1, testutil.CollectAndCount(e.mean))
	assert.Equal(t, 2, testutil.CollectAndCount(e.fileSize))
}

func TestWriteTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "benchmark_metrics.prom")

	require.NoError(t, WriteTextfile(path, collection(t)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "# TYPE propbench_scenario_mean_seconds gauge")
	assert.Contains(t, out, "# TYPE propbench_file_size_bytes gauge")
	assert.Contains(t, out, `propbench_scenario_memory_bytes{format="parquet_zstd",hierarchy="deep",scale="1000",test="initial_load_cold"} 2048`)
	assert.Contains(t, out, `propbench_file_size_bytes{format="jsonl",hierarchy="deep",scale="1000",test="file_size"} 16384`)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
