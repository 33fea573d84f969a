package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/weiihann/propbench/dataset"
	"github.com/weiihann/propbench/scenario"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "suite.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}

	if !reflect.DeepEqual(cfg.Scales, []int{1000, 10000, 100000}) {
		t.Errorf("scales = %v", cfg.Scales)
	}

	want := []string{"parquet_zstd", "parquet_snappy", "duckdb_zstd", "duckdb_snappy", "jsonl"}
	if got := cfg.VariantNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("variants = %v, want %v", got, want)
	}

	specs, err := cfg.Specs()
	if err != nil {
		t.Fatalf("Specs failed: %v", err)
	}
	if len(specs) != len(scenario.Defaults()) {
		t.Errorf("expected every scenario by default, got %d", len(specs))
	}

	// The default compressions must not alias the package default.
	cfg.Dataset.Compressions[0] = "gzip"
	if dataset.DefaultCompressions[0] != "zstd" {
		t.Error("DefaultConfig shares its compression slice")
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
data_dir: /tmp/bench
scales: [500]
hierarchies: [deep]
dataset:
  seed: 7
  compressions: [lz4]
variants: [parquet_lz4, jsonl]
scenarios:
  - name: random_access
    trials: 2
    timeout: 30s
  - name: initial_load_cold
  - name: file_size
    enabled: false
output:
  metrics: false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DataDir != "/tmp/bench" {
		t.Errorf("data_dir = %q", cfg.DataDir)
	}
	if cfg.Dataset.Seed != 7 {
		t.Errorf("seed = %d", cfg.Dataset.Seed)
	}
	// Unset fields keep their defaults.
	if cfg.Dataset.PayloadSize != dataset.DefaultPayloadSize {
		t.Errorf("payload_size = %d", cfg.Dataset.PayloadSize)
	}
	if !cfg.Output.Report || cfg.Output.Metrics {
		t.Errorf("output = %+v", cfg.Output)
	}

	hs, err := cfg.HierarchyList()
	if err != nil {
		t.Fatalf("HierarchyList failed: %v", err)
	}
	if !reflect.DeepEqual(hs, []dataset.Hierarchy{dataset.Deep}) {
		t.Errorf("hierarchies = %v", hs)
	}

	specs, err := cfg.Specs()
	if err != nil {
		t.Fatalf("Specs failed: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 enabled scenarios, got %d", len(specs))
	}

	ra := specs[0]
	if ra.Name != scenario.RandomAccess || ra.Trials != 2 || ra.Warmup != 1 || ra.Timeout != 30*time.Second {
		t.Errorf("random_access spec = %+v", ra)
	}
	if specs[1].Name != scenario.InitialLoadCold || specs[1].Trials != 5 {
		t.Errorf("initial_load_cold spec = %+v", specs[1])
	}

	opts := cfg.WriteOptions(500, dataset.Deep, true)
	if opts.Scale != 500 || opts.Seed != 7 || !opts.Force || opts.DataDir != "/tmp/bench" {
		t.Errorf("write options = %+v", opts)
	}
}

func TestSpecsWarmupOverride(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
scenarios:
  - name: random_access
    warmup: 0
  - name: sequential_access
  - name: initial_load_cold
    warmup: 2
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	specs, err := cfg.Specs()
	if err != nil {
		t.Fatalf("Specs failed: %v", err)
	}
	if len(specs) != 3 {
		t.Fatalf("expected 3 scenarios, got %d", len(specs))
	}

	if specs[0].Warmup != 0 {
		t.Errorf("random_access warmup = %d, want 0", specs[0].Warmup)
	}
	if specs[1].Warmup != 1 {
		t.Errorf("sequential_access warmup = %d, want default 1", specs[1].Warmup)
	}
	if specs[2].Warmup != 2 {
		t.Errorf("initial_load_cold warmup = %d, want 2", specs[2].Warmup)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	if _, err := Load(writeConfig(t, "scales: [oops")); err == nil {
		t.Error("expected parse error")
	}

	_, err := Load(writeConfig(t, "scales: [0]\nhierarchies: [spiral]\n"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"scale 0 must be positive", "unknown hierarchy"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"empty data_dir", func(c *Config) { c.DataDir = "" }, "data_dir is required"},
		{"no scales", func(c *Config) { c.Scales = nil }, "at least one scale"},
		{"no hierarchies", func(c *Config) { c.Hierarchies = nil }, "at least one hierarchy"},
		{"bad payload", func(c *Config) { c.Dataset.PayloadSize = 0 }, "payload_size"},
		{"bad row group", func(c *Config) { c.Dataset.RowGroupSize = -1 }, "row_group_size"},
		{"bad compression", func(c *Config) { c.Dataset.Compressions = []string{"brotli"} }, "unknown compression"},
		{"bad variant", func(c *Config) { c.Variants = []string{"usdc"} }, "unknown variant"},
		{"unknown scenario", func(c *Config) {
			c.Scenarios = []ScenarioConfig{{Name: "cold_start"}}
		}, "unknown scenario"},
		{"negative trials", func(c *Config) {
			c.Scenarios = []ScenarioConfig{{Name: scenario.RandomAccess, Trials: -1}}
		}, "trials must not be negative"},
		{"negative warmup", func(c *Config) {
			warmup := -1
			c.Scenarios = []ScenarioConfig{{Name: scenario.RandomAccess, Warmup: &warmup}}
		}, "warmup must not be negative"},
		{"duplicate scenario", func(c *Config) {
			c.Scenarios = []ScenarioConfig{{Name: scenario.FileSize}, {Name: scenario.FileSize}}
		}, "duplicate scenario"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
