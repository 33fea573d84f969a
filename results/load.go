package results

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/weiihann/propbench/errs"
	"github.com/weiihann/propbench/probe"
	"github.com/weiihann/propbench/stats"
)

// Load reads a collection previously written by Save.
func Load(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, errs.Wrap(err, path)
	}

	return c, nil
}

// Parse decodes the wire form. File-size order is preserved and extra
// values are kept as raw JSON, so the collection serializes back to the
// same bytes.
func Parse(data []byte) (*Collection, error) {
	var top struct {
		TestRun   string                       `json:"test_run"`
		RunID     string                       `json:"run_id"`
		Scale     int                          `json:"scale"`
		Hierarchy string                       `json:"hierarchy"`
		FileSizes json.RawMessage              `json:"file_sizes"`
		Results   []map[string]json.RawMessage `json:"results"`
	}

	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}

	c := &Collection{
		TestRun:   top.TestRun,
		RunID:     top.RunID,
		Scale:     top.Scale,
		Hierarchy: top.Hierarchy,
		sizeIdx:   make(map[string]int),
	}

	if err := c.parseFileSizes(top.FileSizes); err != nil {
		return nil, err
	}

	for i, raw := range top.Results {
		r, err := parseRecord(raw)
		if err != nil {
			return nil, errs.Wrapf(err, "result %d", i)
		}
		c.records = append(c.records, r)
	}

	return c, nil
}

func (c *Collection) parseFileSizes(raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("file_sizes: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("file_sizes: expected object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("file_sizes: %w", err)
		}
		variant, _ := tok.(string)

		var size int64
		if err := dec.Decode(&size); err != nil {
			return fmt.Errorf("file_sizes[%s]: %w", variant, err)
		}

		c.AddFileSize(variant, size)
	}

	return nil
}

func parseRecord(raw map[string]json.RawMessage) (Record, error) {
	var r Record

	if err := decodeField(raw, "test", &r.Scenario); err != nil {
		return r, err
	}
	if err := decodeField(raw, "format", &r.Variant); err != nil {
		return r, err
	}

	var (
		mean, std, lo, hi *float64
		runCount          *int
		current, peak     *int64
	)

	fields := []struct {
		key string
		dst any
	}{
		{"mean_seconds", &mean},
		{"std_seconds", &std},
		{"min_seconds", &lo},
		{"max_seconds", &hi},
		{"run_count", &runCount},
		{"current_memory_bytes", &current},
		{"peak_memory_bytes", &peak},
	}
	for _, f := range fields {
		if err := decodeField(raw, f.key, f.dst); err != nil {
			return r, err
		}
	}

	if mean != nil && std != nil && lo != nil && hi != nil && runCount != nil {
		r.Timing = &stats.Timing{Mean: *mean, StdDev: *std, Min: *lo, Max: *hi, RunCount: *runCount}
	}

	if current != nil && peak != nil {
		r.Memory = &probe.MemorySummary{CurrentBytes: *current, PeakBytes: *peak}
	}

	for k, v := range raw {
		if _, ok := reservedKeys[k]; ok {
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]any)
		}
		r.Extra[k] = v
	}

	return r, nil
}

func decodeField(raw map[string]json.RawMessage, key string, dst any) error {
	v, ok := raw[key]
	if !ok {
		return nil
	}

	if err := json.Unmarshal(v, dst); err != nil {
		return fmt.Errorf("field %s: %w", key, err)
	}

	return nil
}
