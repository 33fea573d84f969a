// Package harness runs benchmark trials in isolated worker processes and
// hands each trial's probes back to the parent through a one-shot channel.
package harness

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/weiihann/propbench/probe"
)

// Request tells a worker which operation to run against which data.
type Request struct {
	Scenario  string            `json:"scenario"`
	Variant   string            `json:"variant"`
	BasePath  string            `json:"base_path,omitempty"`
	LayerPath string            `json:"layer_path,omitempty"`
	Scale     int               `json:"scale"`
	Hierarchy string            `json:"hierarchy"`
	Trial     int               `json:"trial"`
	Warmup    bool              `json:"warmup,omitempty"`
	Verbose   bool              `json:"verbose,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
}

// Envelope is the single message a worker writes to stdout: either the
// ordered probes of a completed trial, or the failure that stopped it.
type Envelope struct {
	OK     bool           `json:"ok"`
	Probes []probe.Sample `json:"probes,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Trial is the parent's view of one completed trial.
type Trial struct {
	Index  int
	PID    int
	Probes []probe.Sample
	Extra  map[string]any
	Wall   time.Duration
}

// Final returns the last probe of the trial.
func (t *Trial) Final() (probe.Sample, bool) {
	if len(t.Probes) == 0 {
		return probe.Sample{}, false
	}

	return t.Probes[len(t.Probes)-1], true
}

// ExtraInt returns an integer extra value reported by the worker.
func (t *Trial) ExtraInt(key string) (int64, bool) {
	switch v := t.Extra[key].(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}

// TrialError reports the trial that aborted a scenario.
type TrialError struct {
	Scenario string
	Variant  string
	Trial    int
	Warmup   bool
	PID      int
	Stderr   string
	Err      error
}

func (e *TrialError) Error() string {
	kind := "trial"
	if e.Warmup {
		kind = "warm-up trial"
	}

	msg := fmt.Sprintf("%s/%s %s %d: %v", e.Scenario, e.Variant, kind, e.Trial, e.Err)
	if e.Stderr != "" {
		msg += "\nstderr: " + e.Stderr
	}

	return msg
}

func (e *TrialError) Unwrap() error {
	return e.Err
}
