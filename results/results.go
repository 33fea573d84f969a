// Package results accumulates benchmark records and file sizes for one run
// and serializes them in the format consumed by reporting.
package results

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/weiihann/propbench/errs"
	"github.com/weiihann/propbench/probe"
	"github.com/weiihann/propbench/stats"
)

// TimestampFormat is the ISO-8601 layout used for test_run.
const TimestampFormat = "2006-01-02T15:04:05.000000Z07:00"

// Fixed record fields. Extra keys may not reuse them.
var reservedKeys = map[string]struct{}{
	"test":                 {},
	"format":               {},
	"mean_seconds":         {},
	"std_seconds":          {},
	"min_seconds":          {},
	"max_seconds":          {},
	"run_count":            {},
	"current_memory_bytes": {},
	"peak_memory_bytes":    {},
}

// Record is the aggregate of one scenario and variant. Timing and Memory
// are nil when the scenario produced none.
type Record struct {
	Scenario string
	Variant  string
	Timing   *stats.Timing
	Memory   *probe.MemorySummary
	Extra    map[string]any
}

// ExtraFloat returns a numeric extra value.
func (r *Record) ExtraFloat(key string) (float64, bool) {
	switch v := r.Extra[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case json.RawMessage:
		var f float64
		if err := json.Unmarshal(v, &f); err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// FileSize is the on-disk size of one variant's data file.
type FileSize struct {
	Variant string
	Bytes   int64
}

// Collection holds every record and file size of one run. It is owned by
// the driver and passed explicitly to whatever needs it.
type Collection struct {
	TestRun   string
	RunID     string
	Scale     int
	Hierarchy string

	sizes   []FileSize
	sizeIdx map[string]int
	records []Record
}

// New creates an empty collection stamped with the current time and a
// fresh run id.
func New(scale int, hierarchy string) *Collection {
	return &Collection{
		TestRun:   time.Now().UTC().Format(TimestampFormat),
		RunID:     uuid.NewString(),
		Scale:     scale,
		Hierarchy: hierarchy,
		sizeIdx:   make(map[string]int),
	}
}

// AddFileSize records the size of a variant's file. A repeated variant
// overwrites its size but keeps its original position.
func (c *Collection) AddFileSize(variant string, size int64) {
	if c.sizeIdx == nil {
		c.sizeIdx = make(map[string]int)
	}

	if i, ok := c.sizeIdx[variant]; ok {
		c.sizes[i].Bytes = size
		return
	}

	c.sizeIdx[variant] = len(c.sizes)
	c.sizes = append(c.sizes, FileSize{Variant: variant, Bytes: size})
}

// FileSize returns the recorded size of a variant.
func (c *Collection) FileSize(variant string) (int64, bool) {
	i, ok := c.sizeIdx[variant]
	if !ok {
		return 0, false
	}

	return c.sizes[i].Bytes, true
}

// FileSizes returns the recorded sizes in first-insertion order.
func (c *Collection) FileSizes() []FileSize {
	out := make([]FileSize, len(c.sizes))
	copy(out, c.sizes)

	return out
}

// AddResult appends a copy of r. Records are never deduplicated, and later
// changes to r's timing, memory or extra map do not reach the stored copy.
func (c *Collection) AddResult(r Record) error {
	for k := range r.Extra {
		if _, ok := reservedKeys[k]; ok {
			return fmt.Errorf("%s/%s: %w: %q", r.Scenario, r.Variant, errs.ErrReservedKey, k)
		}
	}

	c.records = append(c.records, r.clone())

	return nil
}

// Results returns copies of the records in insertion order.
func (c *Collection) Results() []Record {
	out := make([]Record, len(c.records))
	for i, r := range c.records {
		out[i] = r.clone()
	}

	return out
}

func (r Record) clone() Record {
	if r.Timing != nil {
		t := *r.Timing
		r.Timing = &t
	}
	if r.Memory != nil {
		m := *r.Memory
		r.Memory = &m
	}
	r.Extra = maps.Clone(r.Extra)

	return r
}

// MarshalJSON renders the compact wire form. Object keys are written in a
// fixed order so equal collections serialize to identical bytes.
func (c *Collection) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')
	writeField(&buf, "test_run", c.TestRun, true)
	writeField(&buf, "run_id", c.RunID, false)
	writeField(&buf, "scale", c.Scale, false)
	writeField(&buf, "hierarchy", c.Hierarchy, false)

	buf.WriteString(`,"file_sizes":{`)
	for i, fs := range c.sizes {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeField(&buf, fs.Variant, fs.Bytes, true)
	}
	buf.WriteString(`},"results":[`)

	for i := range c.records {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeRecord(&buf, &c.records[i]); err != nil {
			return nil, err
		}
	}
	buf.WriteString("]}")

	return buf.Bytes(), nil
}

// Serialize renders the indented wire form written to disk.
func (c *Collection) Serialize() ([]byte, error) {
	compact, err := c.MarshalJSON()
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return nil, fmt.Errorf("indent results: %w", err)
	}
	out.WriteByte('\n')

	return out.Bytes(), nil
}

func writeRecord(buf *bytes.Buffer, r *Record) error {
	buf.WriteByte('{')
	writeField(buf, "test", r.Scenario, true)
	writeField(buf, "format", r.Variant, false)

	if t := r.Timing; t != nil {
		writeField(buf, "mean_seconds", t.Mean, false)
		writeField(buf, "std_seconds", t.StdDev, false)
		writeField(buf, "min_seconds", t.Min, false)
		writeField(buf, "max_seconds", t.Max, false)
		writeField(buf, "run_count", t.RunCount, false)
	} else {
		for _, k := range []string{"mean_seconds", "std_seconds", "min_seconds", "max_seconds", "run_count"} {
			writeField(buf, k, nil, false)
		}
	}

	if m := r.Memory; m != nil {
		writeField(buf, "current_memory_bytes", m.CurrentBytes, false)
		writeField(buf, "peak_memory_bytes", m.PeakBytes, false)
	} else {
		writeField(buf, "current_memory_bytes", nil, false)
		writeField(buf, "peak_memory_bytes", nil, false)
	}

	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v, err := json.Marshal(r.Extra[k])
		if err != nil {
			return fmt.Errorf("%s/%s: encode %q: %w", r.Scenario, r.Variant, k, err)
		}

		buf.WriteByte(',')
		writeKey(buf, k)
		buf.Write(v)
	}

	buf.WriteByte('}')

	return nil
}

// writeField writes "key":value. Values are limited to strings, numbers and
// nil, none of which can fail to encode.
func writeField(buf *bytes.Buffer, key string, value any, first bool) {
	if !first {
		buf.WriteByte(',')
	}
	writeKey(buf, key)

	v, _ := json.Marshal(value)
	buf.Write(v)
}

func writeKey(buf *bytes.Buffer, key string) {
	k, _ := json.Marshal(key)
	buf.Write(k)
	buf.WriteByte(':')
}

// Save writes the collection to path atomically: a temp file in the same
// directory is written, synced and renamed over the target.
func (c *Collection) Save(path string) error {
	data, err := c.Serialize()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}
