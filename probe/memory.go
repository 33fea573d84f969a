package probe

import (
	"fmt"

	"github.com/prometheus/procfs"

	"github.com/weiihann/propbench/errs"
)

// ProcessMemory reads the resident set size of the current process. It
// prefers /proc and falls back to the getrusage high-water mark where /proc
// is not mounted.
type ProcessMemory struct {
	proc    procfs.Proc
	hasProc bool
}

// NewProcessMemory resolves the memory source once, so that per-probe reads
// stay cheap.
func NewProcessMemory() *ProcessMemory {
	m := &ProcessMemory{}

	if p, err := procfs.Self(); err == nil {
		if _, err := p.Stat(); err == nil {
			m.proc = p
			m.hasProc = true
		}
	}

	return m
}

// ResidentBytes implements MemoryReader.
func (m *ProcessMemory) ResidentBytes() (int64, error) {
	if m.hasProc {
		stat, err := m.proc.Stat()
		if err != nil {
			return 0, fmt.Errorf("read /proc stat: %w", err)
		}

		return int64(stat.ResidentMemory()), nil
	}

	return rusageMaxRSS()
}

// StaticMemory is a MemoryReader returning fixed values in order, repeating
// the last one. It is used where memory must be deterministic.
type StaticMemory struct {
	Values []int64
	next   int
}

// ResidentBytes implements MemoryReader.
func (m *StaticMemory) ResidentBytes() (int64, error) {
	if len(m.Values) == 0 {
		return 0, errs.ErrMeasurementUnavailable
	}

	v := m.Values[min(m.next, len(m.Values)-1)]
	m.next++

	return v, nil
}

// Unavailable is a MemoryReader for platforms without instrumentation.
type Unavailable struct{}

// ResidentBytes implements MemoryReader.
func (Unavailable) ResidentBytes() (int64, error) {
	return 0, errs.ErrMeasurementUnavailable
}
