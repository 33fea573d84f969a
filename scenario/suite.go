package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/weiihann/propbench/dataset"
	"github.com/weiihann/propbench/errs"
	"github.com/weiihann/propbench/harness"
	"github.com/weiihann/propbench/layer"
	"github.com/weiihann/propbench/probe"
	"github.com/weiihann/propbench/results"
	"github.com/weiihann/propbench/stats"
)

// Status is the result of one scenario and variant.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Outcome reports how one scenario and variant ended.
type Outcome struct {
	Scenario string
	Variant  string
	Status   Status
	Err      error
}

// ErrPrimCountMismatch fails a traversal that did not read every prim.
var ErrPrimCountMismatch = errors.New("prim count mismatch")

// Suite runs scenarios for one scale and hierarchy.
type Suite struct {
	Runner    *harness.Runner
	Logger    *slog.Logger
	Layout    dataset.Layout
	Scale     int
	Hierarchy dataset.Hierarchy
	Variants  []string
	Scenarios []Spec
	Verbose   bool
}

// Run executes every scenario against every variant, strictly one trial
// at a time, and adds each aggregate to c. A failed scenario does not stop
// the ones after it.
func (s *Suite) Run(ctx context.Context, c *results.Collection) []Outcome {
	var outcomes []Outcome

	for _, spec := range s.Scenarios {
		for _, variant := range s.Variants {
			if ctx.Err() != nil {
				return outcomes
			}

			var o Outcome
			if spec.Operation == nil {
				v, err := layer.ParseVariant(variant)
				if err == nil && v.Kind == layer.KindDuckDB {
					// Shares its file with the parquet variant.
					continue
				}
				o = s.fileSize(c, spec, variant)
			} else {
				o = s.measure(ctx, c, spec, variant)
			}

			s.log(ctx, o)
			outcomes = append(outcomes, o)
		}
	}

	return outcomes
}

func (s *Suite) log(ctx context.Context, o Outcome) {
	attrs := []any{
		slog.String("scenario", o.Scenario),
		slog.String("variant", o.Variant),
		slog.String("status", string(o.Status)),
	}

	switch o.Status {
	case StatusFailed:
		s.Logger.ErrorContext(ctx, "scenario failed", append(attrs, slog.String("error", o.Err.Error()))...)
	case StatusSkipped:
		s.Logger.WarnContext(ctx, "scenario skipped", append(attrs, slog.String("reason", o.Err.Error()))...)
	default:
		s.Logger.InfoContext(ctx, "scenario passed", attrs...)
	}
}

func outcome(spec Spec, variant string, err error) Outcome {
	o := Outcome{Scenario: spec.Name, Variant: variant, Status: StatusPassed, Err: err}

	switch {
	case err == nil:
	case errs.IsSkip(err):
		o.Status = StatusSkipped
	default:
		o.Status = StatusFailed
	}

	return o
}

func (s *Suite) fileSize(c *results.Collection, spec Spec, variant string) Outcome {
	path, err := layer.Resolve(s.Layout, variant)
	if err != nil {
		return outcome(spec, variant, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return outcome(spec, variant, errs.Wrapf(err, "stat %s", path))
	}

	size := info.Size()
	c.AddFileSize(variant, size)

	err = c.AddResult(results.Record{
		Scenario: spec.Name,
		Variant:  variant,
		Extra: map[string]any{
			"size_bytes": size,
			"size_mb":    float64(size) / (1024 * 1024),
		},
	})

	return outcome(spec, variant, err)
}

func (s *Suite) measure(ctx context.Context, c *results.Collection, spec Spec, variant string) Outcome {
	if _, err := os.Stat(s.Layout.BasePath()); err != nil {
		return outcome(spec, variant, errs.NewMissingInput(s.Layout.BasePath()))
	}

	layerPath, err := layer.Resolve(s.Layout, variant)
	if err != nil {
		return outcome(spec, variant, err)
	}

	req := harness.Request{
		Scenario:  spec.Name,
		Variant:   variant,
		BasePath:  s.Layout.BasePath(),
		LayerPath: layerPath,
		Scale:     s.Scale,
		Hierarchy: string(s.Hierarchy),
		Verbose:   s.Verbose,
	}

	s.Logger.InfoContext(ctx, "running scenario",
		slog.String("scenario", spec.Name),
		slog.String("variant", variant),
		slog.Int("trials", spec.Trials),
		slog.Int("warmup", spec.Warmup),
		slog.Duration("timeout", spec.Timeout),
	)

	trials, err := s.Runner.RunTrials(ctx, req, harness.Plan{
		Trials:  spec.Trials,
		Warmup:  spec.Warmup,
		Timeout: spec.Timeout,
	})
	if err != nil {
		return outcome(spec, variant, err)
	}

	rec, primCount, err := Aggregate(spec.Name, variant, trials)
	if err != nil {
		return outcome(spec, variant, err)
	}

	if err := c.AddResult(rec); err != nil {
		return outcome(spec, variant, err)
	}

	if spec.Traversal && primCount != int64(s.Scale) {
		return outcome(spec, variant, fmt.Errorf("%w: read %d prims, expected %d",
			ErrPrimCountMismatch, primCount, s.Scale))
	}

	return outcome(spec, variant, nil)
}

// Aggregate reduces trials to one record. A trial's total is its last
// probe; trials without probes contribute nothing. Extras reported by the
// last trial are carried over, with time_per_prim_us derived from
// prim_count and, when property_count is reported, total_accesses and
// time_per_access_us. The returned count is -1 when no trial reported one.
func Aggregate(scenario, variant string, trials []harness.Trial) (results.Record, int64, error) {
	var (
		times     []float64
		deltas    []float64
		detailed  [][]probe.Sample
		primCount int64 = -1
		propCount int64 = -1
		last      map[string]any
	)

	for i := range trials {
		t := &trials[i]

		final, ok := t.Final()
		if !ok {
			continue
		}

		times = append(times, final.ElapsedSinceStart)
		deltas = append(deltas, float64(final.DeltaSinceStart))
		detailed = append(detailed, t.Probes)
		last = t.Extra

		if n, ok := t.ExtraInt("prim_count"); ok {
			primCount = n
		}
		if n, ok := t.ExtraInt("property_count"); ok {
			propCount = n
		}
	}

	timing, err := stats.Compute(times)
	if err != nil {
		return results.Record{}, primCount, errs.Wrapf(err, "%s/%s", scenario, variant)
	}

	avg, _ := stats.Mean(deltas)
	mem := probe.MemorySummary{CurrentBytes: int64(avg), PeakBytes: int64(avg)}

	q, err := stats.Percentiles(times, stats.DefaultAccuracy)
	if err != nil {
		return results.Record{}, primCount, errs.Wrapf(err, "%s/%s", scenario, variant)
	}

	extra := make(map[string]any, len(last)+6)
	for k, v := range last {
		extra[k] = v
	}

	extra["detailed_probes"] = detailed
	extra["p50_seconds"] = q.P50
	extra["p90_seconds"] = q.P90
	extra["p99_seconds"] = q.P99

	if primCount >= 0 {
		extra["prim_count"] = primCount

		perPrim := 0.0
		if primCount > 0 {
			perPrim = timing.Mean / float64(primCount) * 1e6
		}
		extra["time_per_prim_us"] = perPrim

		if propCount >= 0 {
			accesses := primCount * propCount

			perAccess := 0.0
			if accesses > 0 {
				perAccess = timing.Mean / float64(accesses) * 1e6
			}
			extra["total_accesses"] = accesses
			extra["time_per_access_us"] = perAccess
		}
	}

	return results.Record{
		Scenario: scenario,
		Variant:  variant,
		Timing:   &timing,
		Memory:   &mem,
		Extra:    extra,
	}, primCount, nil
}

// Summarize counts outcomes by status.
func Summarize(outcomes []Outcome) (passed, skipped, failed int) {
	for _, o := range outcomes {
		switch o.Status {
		case StatusPassed:
			passed++
		case StatusSkipped:
			skipped++
		case StatusFailed:
			failed++
		}
	}

	return passed, skipped, failed
}
