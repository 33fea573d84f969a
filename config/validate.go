package config

import (
	"errors"
	"fmt"

	"github.com/weiihann/propbench/dataset"
	"github.com/weiihann/propbench/layer"
	"github.com/weiihann/propbench/scenario"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}

	if len(c.Scales) == 0 {
		errs = append(errs, errors.New("at least one scale is required"))
	}
	for _, s := range c.Scales {
		if s <= 0 {
			errs = append(errs, fmt.Errorf("scale %d must be positive", s))
		}
	}

	if len(c.Hierarchies) == 0 {
		errs = append(errs, errors.New("at least one hierarchy is required"))
	}
	for _, h := range c.Hierarchies {
		if _, err := dataset.ParseHierarchy(h); err != nil {
			errs = append(errs, err)
		}
	}

	if err := c.Dataset.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("dataset: %w", err))
	}

	for _, v := range c.Variants {
		if _, err := layer.ParseVariant(v); err != nil {
			errs = append(errs, fmt.Errorf("variants: %w", err))
		}
	}

	seen := make(map[string]struct{})
	for i, sc := range c.Scenarios {
		if err := sc.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("scenarios[%d]: %w", i, err))
		}
		if _, ok := seen[sc.Name]; ok {
			errs = append(errs, fmt.Errorf("scenarios[%d]: duplicate scenario %q", i, sc.Name))
		}
		seen[sc.Name] = struct{}{}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the dataset configuration.
func (c *DatasetConfig) Validate() error {
	var errs []error

	if c.PayloadSize <= 0 {
		errs = append(errs, errors.New("payload_size must be positive"))
	}

	if c.RowGroupSize <= 0 {
		errs = append(errs, errors.New("row_group_size must be positive"))
	}

	for _, comp := range c.Compressions {
		if _, err := dataset.Codec(comp); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks one scenario override.
func (c *ScenarioConfig) Validate() error {
	var errs []error

	if _, err := scenario.Lookup(c.Name); err != nil {
		errs = append(errs, err)
	}

	if c.Trials < 0 {
		errs = append(errs, errors.New("trials must not be negative"))
	}

	if c.Warmup != nil && *c.Warmup < 0 {
		errs = append(errs, errors.New("warmup must not be negative"))
	}

	if c.Timeout < 0 {
		errs = append(errs, errors.New("timeout must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
