// Package probe records elapsed time and resident memory at labeled
// checkpoints inside one operation, excluding the cost of its own memory
// reads from the reported timings.
package probe

import (
	"errors"
	"io"
	"os"
	"time"
)

var (
	// ErrTrackerActive is returned by Start on a session already running.
	ErrTrackerActive = errors.New("tracker already started")

	// ErrTrackerFinalized is returned when a stopped session is reused.
	ErrTrackerFinalized = errors.New("tracker already finalized")

	// ErrTrackerNotActive is returned by Probe and Stop outside a session.
	ErrTrackerNotActive = errors.New("tracker not started")
)

// Sample is one checkpoint measurement. Elapsed values are in seconds,
// memory values in bytes.
type Sample struct {
	Label             string  `json:"label"`
	ElapsedSinceStart float64 `json:"elapsed_since_start"`
	ElapsedSinceLast  float64 `json:"elapsed_since_last"`
	TotalMemoryBytes  int64   `json:"total_memory_bytes"`
	DeltaSinceStart   int64   `json:"delta_since_start"`
	DeltaSinceLast    int64   `json:"delta_since_last"`
}

// MemorySummary approximates current and peak usage with the end-of-session
// delta; both fields carry the same value.
type MemorySummary struct {
	CurrentBytes int64 `json:"current_bytes"`
	PeakBytes    int64 `json:"peak_bytes"`
}

// Summary is computed once when the session stops. Its values are not
// overhead-corrected.
type Summary struct {
	TotalElapsed float64
	MemoryDelta  int64
	Memory       MemorySummary
}

// Clock supplies timestamps. The default clock is time.Now, whose values
// carry a monotonic reading.
type Clock interface {
	Now() time.Time
}

// MemoryReader returns the resident memory of the current process.
type MemoryReader interface {
	ResidentBytes() (int64, error)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config controls a Tracker. Zero values select the system clock, the
// process memory reader and stderr.
type Config struct {
	Name    string
	Clock   Clock
	Memory  MemoryReader
	Output  io.Writer
	Verbose bool
}

type state int

const (
	stateUnstarted state = iota
	stateActive
	stateFinalized
)

// Tracker is a single measurement session. It moves from unstarted to
// active on Start and to finalized on Stop, and is owned by one goroutine.
type Tracker struct {
	cfg Config

	state state

	startTime   time.Time
	startMemory int64
	lastTime    time.Time
	lastMemory  int64
	memoryOK    bool

	// overhead is the summed cost of every memory read taken so far.
	overhead time.Duration

	samples []Sample
	summary Summary
}

// New creates an unstarted Tracker.
func New(cfg Config) *Tracker {
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	if cfg.Memory == nil {
		cfg.Memory = NewProcessMemory()
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.Name == "" {
		cfg.Name = "measurement"
	}

	return &Tracker{cfg: cfg}
}

// Name returns the session name.
func (t *Tracker) Name() string {
	return t.cfg.Name
}

// Start begins the session.
func (t *Tracker) Start() error {
	switch t.state {
	case stateActive:
		return ErrTrackerActive
	case stateFinalized:
		return ErrTrackerFinalized
	}

	t.startTime = t.cfg.Clock.Now()
	t.startMemory, t.memoryOK = t.readMemory()
	t.lastTime = t.startTime
	t.lastMemory = t.startMemory
	t.overhead = 0
	t.state = stateActive

	return nil
}

// Probe records a checkpoint.
//
// The memory read is bracketed by two clock reads and its cost is added to
// the running overhead before elapsed-since-start is computed, so the value
// also excludes the cost of this probe's own read. Elapsed-since-last is
// anchored on the end of the previous probe and needs no correction.
func (t *Tracker) Probe(label string) (Sample, error) {
	if t.state != stateActive {
		if t.state == stateFinalized {
			return Sample{}, ErrTrackerFinalized
		}
		return Sample{}, ErrTrackerNotActive
	}

	before := t.cfg.Clock.Now()
	current, ok := t.readMemory()
	after := t.cfg.Clock.Now()

	t.overhead += after.Sub(before)

	s := Sample{
		Label:             label,
		ElapsedSinceStart: (before.Sub(t.startTime) - t.overhead).Seconds(),
		ElapsedSinceLast:  before.Sub(t.lastTime).Seconds(),
	}

	if ok && t.memoryOK {
		s.TotalMemoryBytes = current
		s.DeltaSinceStart = current - t.startMemory
		s.DeltaSinceLast = current - t.lastMemory
		t.lastMemory = current
	}

	t.samples = append(t.samples, s)
	t.lastTime = after

	return s, nil
}

// Stop finalizes the session and returns its whole-session summary. No
// sample is recorded. When verbose and at least one probe was taken, a
// table of all probes is written to the configured output.
func (t *Tracker) Stop() (Summary, error) {
	if t.state != stateActive {
		if t.state == stateFinalized {
			return t.summary, ErrTrackerFinalized
		}
		return Summary{}, ErrTrackerNotActive
	}

	end := t.cfg.Clock.Now()
	endMemory, ok := t.readMemory()

	t.summary.TotalElapsed = end.Sub(t.startTime).Seconds()
	if ok && t.memoryOK {
		t.summary.MemoryDelta = endMemory - t.startMemory
	}

	clamped := max(0, t.summary.MemoryDelta)
	t.summary.Memory = MemorySummary{CurrentBytes: clamped, PeakBytes: clamped}
	t.state = stateFinalized

	if t.cfg.Verbose && len(t.samples) > 0 {
		WriteTable(t.cfg.Output, t.cfg.Name, t.samples, t.summary)
	}

	return t.summary, nil
}

// Samples returns a copy of the recorded probes in capture order.
func (t *Tracker) Samples() []Sample {
	out := make([]Sample, len(t.samples))
	copy(out, t.samples)

	return out
}

// Overhead returns the total time spent reading memory so far.
func (t *Tracker) Overhead() time.Duration {
	return t.overhead
}

func (t *Tracker) readMemory() (int64, bool) {
	v, err := t.cfg.Memory.ResidentBytes()
	if err != nil {
		return 0, false
	}

	return v, true
}
