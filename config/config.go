// Package config loads the benchmark suite configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/weiihann/propbench/dataset"
	"github.com/weiihann/propbench/layer"
	"github.com/weiihann/propbench/scenario"
)

// Config is the complete suite configuration.
type Config struct {
	// DataDir holds one directory per scale and hierarchy.
	DataDir string `yaml:"data_dir"`

	// Scales are the prim counts to benchmark.
	Scales []int `yaml:"scales"`

	// Hierarchies are the scene layouts to benchmark: flat, deep.
	Hierarchies []string `yaml:"hierarchies"`

	// Dataset configures test data generation.
	Dataset DatasetConfig `yaml:"dataset"`

	// Variants are the data-access strategies to compare. Empty selects
	// every variant the configured compressions produce.
	Variants []string `yaml:"variants"`

	// Scenarios overrides the default scenario list. Empty runs them all.
	Scenarios []ScenarioConfig `yaml:"scenarios"`

	// Output selects the artifacts written next to the data.
	Output OutputConfig `yaml:"output"`
}

// DatasetConfig configures test data generation.
type DatasetConfig struct {
	Seed         int64    `yaml:"seed"`
	PayloadSize  int      `yaml:"payload_size"`
	Compressions []string `yaml:"compressions"`
	RowGroupSize int      `yaml:"row_group_size"`
}

// ScenarioConfig overrides how one scenario runs. Zero trials and timeout
// keep the scenario's defaults.
type ScenarioConfig struct {
	Name    string        `yaml:"name"`
	Trials  int           `yaml:"trials"`
	Timeout time.Duration `yaml:"timeout"`

	// Warmup keeps the scenario's default when unset; 0 disables warm-up.
	Warmup *int `yaml:"warmup"`

	// Enabled defaults to true.
	Enabled *bool `yaml:"enabled"`
}

// OutputConfig selects output artifacts.
type OutputConfig struct {
	Results bool `yaml:"results"`
	Report  bool `yaml:"report"`
	Metrics bool `yaml:"metrics"`
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir:     "benchmark_data",
		Scales:      []int{1000, 10000, 100000},
		Hierarchies: []string{string(dataset.Flat), string(dataset.Deep)},
		Dataset: DatasetConfig{
			Seed:         dataset.DefaultSeed,
			PayloadSize:  dataset.DefaultPayloadSize,
			Compressions: append([]string(nil), dataset.DefaultCompressions...),
			RowGroupSize: dataset.DefaultRowGroupSize,
		},
		Output: OutputConfig{
			Results: true,
			Report:  true,
			Metrics: true,
		},
	}
}

// HierarchyList returns the parsed hierarchies.
func (c *Config) HierarchyList() ([]dataset.Hierarchy, error) {
	out := make([]dataset.Hierarchy, 0, len(c.Hierarchies))
	for _, h := range c.Hierarchies {
		parsed, err := dataset.ParseHierarchy(h)
		if err != nil {
			return nil, err
		}
		out = append(out, parsed)
	}

	return out, nil
}

// VariantNames returns the variants to benchmark.
func (c *Config) VariantNames() []string {
	if len(c.Variants) > 0 {
		return append([]string(nil), c.Variants...)
	}

	return layer.DefaultVariants(c.Dataset.Compressions)
}

// Specs returns the enabled scenarios with overrides applied, in
// configured order.
func (c *Config) Specs() ([]scenario.Spec, error) {
	if len(c.Scenarios) == 0 {
		return scenario.Defaults(), nil
	}

	var specs []scenario.Spec
	for _, sc := range c.Scenarios {
		spec, err := scenario.Lookup(sc.Name)
		if err != nil {
			return nil, err
		}
		if sc.Enabled != nil && !*sc.Enabled {
			continue
		}

		if sc.Trials > 0 {
			spec.Trials = sc.Trials
		}
		if sc.Warmup != nil {
			spec.Warmup = *sc.Warmup
		}
		if sc.Timeout > 0 {
			spec.Timeout = sc.Timeout
		}

		specs = append(specs, spec)
	}

	return specs, nil
}

// WriteOptions returns the data generation options for one configuration.
func (c *Config) WriteOptions(scale int, h dataset.Hierarchy, force bool) dataset.WriteOptions {
	return dataset.WriteOptions{
		Config: dataset.Config{
			Scale:       scale,
			Hierarchy:   h,
			Seed:        c.Dataset.Seed,
			PayloadSize: c.Dataset.PayloadSize,
		},
		DataDir:      c.DataDir,
		Compressions: c.Dataset.Compressions,
		RowGroupSize: c.Dataset.RowGroupSize,
		Force:        force,
	}
}
