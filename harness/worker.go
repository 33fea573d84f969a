package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"

	"github.com/weiihann/propbench/errs"
	"github.com/weiihann/propbench/probe"
)

// SetupFunc prepares a trial's inputs outside the timed region. Its result
// is handed to the matching RunFunc.
type SetupFunc func(ctx context.Context, req Request) (any, error)

// RunFunc performs the measured work of one trial. It must take its own
// probes on tr; the returned map is attached to the trial as extra values.
type RunFunc func(ctx context.Context, tr *probe.Tracker, req Request, fixture any) (map[string]any, error)

// Operation is a named unit of work a worker can execute.
type Operation struct {
	Setup SetupFunc
	Run   RunFunc
}

// Registry maps scenario names to the operations workers run for them.
type Registry map[string]Operation

// Worker executes exactly one request per process.
type Worker struct {
	Registry Registry
	Logger   *slog.Logger

	// Memory overrides the tracker's memory reader.
	Memory probe.MemoryReader
}

// Serve reads one Request from in, runs it and writes one Envelope to out.
// Failures inside the operation are reported in the envelope; the returned
// error only covers failures to talk to the parent.
func (w *Worker) Serve(ctx context.Context, in io.Reader, out, diag io.Writer) error {
	var req Request

	env := Envelope{}
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		env.Error = fmt.Sprintf("decode request: %v", err)
	} else {
		env = w.execute(ctx, req, diag)
	}

	if err := json.NewEncoder(out).Encode(env); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	return nil
}

func (w *Worker) execute(ctx context.Context, req Request, diag io.Writer) (env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			env = Envelope{Error: fmt.Sprintf("panic: %v\n%s", r, debug.Stack())}
		}
	}()

	op, ok := w.Registry[req.Scenario]
	if !ok {
		return Envelope{Error: fmt.Sprintf("%v: %q", errs.ErrUnknownScenario, req.Scenario)}
	}

	logger := w.logger().With(
		slog.String("scenario", req.Scenario),
		slog.String("variant", req.Variant),
		slog.Int("trial", req.Trial),
	)

	var fixture any

	if op.Setup != nil {
		f, err := op.Setup(ctx, req)
		if err != nil {
			return Envelope{Error: fmt.Sprintf("setup: %v", err)}
		}
		fixture = f
	}

	tr := probe.New(probe.Config{
		Name:    fmt.Sprintf("%s %s trial %d", req.Scenario, req.Variant, req.Trial),
		Memory:  w.Memory,
		Output:  diag,
		Verbose: req.Verbose,
	})

	if err := tr.Start(); err != nil {
		return Envelope{Error: err.Error()}
	}

	extra, err := op.Run(ctx, tr, req, fixture)
	if err != nil {
		return Envelope{Error: err.Error()}
	}

	if _, err := tr.Stop(); err != nil {
		return Envelope{Error: err.Error()}
	}

	logger.Debug("operation complete", slog.Int("probes", len(tr.Samples())))

	return Envelope{
		OK:     true,
		Probes: tr.Samples(),
		Extra:  extra,
	}
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return w.Logger
}
