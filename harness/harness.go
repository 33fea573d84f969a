package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/weiihann/propbench/errs"
)

// maxStderr bounds how much worker stderr is kept for error messages.
const maxStderr = 64 * 1024

// Plan holds the trial counts and the per-trial bound for one scenario.
type Plan struct {
	Trials  int
	Warmup  int
	Timeout time.Duration
}

// Runner launches worker processes, one per trial, and never runs two at
// once.
type Runner struct {
	Command CommandConfig
	Logger  *slog.Logger

	// Stderr, when set, also receives the workers' stderr as it is written.
	Stderr io.Writer
}

// NewRunner creates a Runner that spawns workers with the given command.
func NewRunner(command CommandConfig, logger *slog.Logger) *Runner {
	return &Runner{
		Command: command,
		Logger:  logger,
	}
}

// RunTrials runs the warm-up trials, discarding them, then the measured
// trials in order. The first failed or timed-out trial aborts the scenario.
func (r *Runner) RunTrials(ctx context.Context, req Request, plan Plan) ([]Trial, error) {
	logger := r.Logger.With(
		slog.String("scenario", req.Scenario),
		slog.String("variant", req.Variant),
	)

	for i := 1; i <= plan.Warmup; i++ {
		wreq := req
		wreq.Trial = i
		wreq.Warmup = true

		if _, err := r.RunTrial(ctx, wreq, plan.Timeout); err != nil {
			return nil, err
		}
	}

	trials := make([]Trial, 0, plan.Trials)

	for i := 1; i <= plan.Trials; i++ {
		treq := req
		treq.Trial = i
		treq.Warmup = false

		trial, err := r.RunTrial(ctx, treq, plan.Timeout)
		if err != nil {
			return nil, err
		}

		if final, ok := trial.Final(); ok {
			logger.InfoContext(ctx, "trial complete",
				slog.Int("trial", i),
				slog.Int("of", plan.Trials),
				slog.Float64("elapsed_s", final.ElapsedSinceStart),
				slog.Int64("delta_bytes", final.DeltaSinceStart),
			)
		}

		trials = append(trials, *trial)
	}

	return trials, nil
}

type handoff struct {
	env Envelope
	err error
}

// RunTrial spawns one worker, sends it req and waits up to timeout for its
// result. On timeout or cancellation the worker's process group is killed
// and reaped before returning; any output it produced is discarded.
func (r *Runner) RunTrial(ctx context.Context, req Request, timeout time.Duration) (*Trial, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create result pipe: %w", err)
	}
	defer pr.Close()

	args := make([]string, 0, len(r.Command.ExtraArgs))
	args = append(args, r.Command.ExtraArgs...)

	cmd := exec.Command(r.Command.Binary, args...)
	if len(r.Command.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Command.Env...)
	}

	stderr := &limitedBuffer{limit: maxStderr}

	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = pw
	cmd.Stderr = stderr
	if r.Stderr != nil {
		cmd.Stderr = io.MultiWriter(stderr, r.Stderr)
	}
	cmd.WaitDelay = time.Second
	setProcessGroup(cmd)

	logger := r.Logger.With(
		slog.String("scenario", req.Scenario),
		slog.String("variant", req.Variant),
		slog.Int("trial", req.Trial),
		slog.Bool("warmup", req.Warmup),
	)

	start := time.Now()

	if err := cmd.Start(); err != nil {
		pw.Close()
		return nil, r.trialError(req, 0, "", fmt.Errorf("%w: start worker: %v", errs.ErrTrialFailure, err))
	}

	// The parent's copy of the write end must be closed so the reader sees
	// EOF when the worker exits.
	pw.Close()

	pid := cmd.Process.Pid
	logger.Debug("worker started", slog.Int("pid", pid))

	results := make(chan handoff, 1)
	go func() {
		var env Envelope

		dec := json.NewDecoder(pr)
		dec.UseNumber()
		err := dec.Decode(&env)
		results <- handoff{env: env, err: err}

		_, _ = io.Copy(io.Discard, pr)
	}()

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
	}()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	abort := func(cause error) (*Trial, error) {
		killProcessGroup(cmd)
		<-exited
		logger.Warn("worker terminated",
			slog.Int("pid", pid),
			slog.String("reason", cause.Error()),
		)

		return nil, r.trialError(req, pid, stderr.String(), cause)
	}

	var h handoff

	select {
	case h = <-results:
	case <-deadline:
		return abort(fmt.Errorf("%w after %s", errs.ErrTrialTimeout, timeout))
	case <-ctx.Done():
		return abort(ctx.Err())
	}

	var waitErr error

	select {
	case waitErr = <-exited:
	case <-deadline:
		return abort(fmt.Errorf("%w: worker did not exit after reporting", errs.ErrTrialTimeout))
	case <-ctx.Done():
		return abort(ctx.Err())
	}

	wall := time.Since(start)

	if h.err != nil {
		cause := fmt.Errorf("%w: no result from worker: %v", errs.ErrTrialFailure, h.err)
		if waitErr != nil {
			cause = fmt.Errorf("%w: worker exited: %v", errs.ErrTrialFailure, waitErr)
		}

		return nil, r.trialError(req, pid, stderr.String(), cause)
	}

	if !h.env.OK {
		return nil, r.trialError(req, pid, stderr.String(),
			fmt.Errorf("%w: %s", errs.ErrTrialFailure, h.env.Error))
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			logger.Warn("worker exited abnormally after reporting",
				slog.Int("exit_code", exitErr.ExitCode()),
			)
		}
	}

	logger.Debug("worker finished",
		slog.Int("pid", pid),
		slog.Duration("wall_time", wall),
		slog.Int("probes", len(h.env.Probes)),
	)

	return &Trial{
		Index:  req.Trial,
		PID:    pid,
		Probes: h.env.Probes,
		Extra:  h.env.Extra,
		Wall:   wall,
	}, nil
}

func (r *Runner) trialError(req Request, pid int, stderr string, err error) error {
	return &TrialError{
		Scenario: req.Scenario,
		Variant:  req.Variant,
		Trial:    req.Trial,
		Warmup:   req.Warmup,
		PID:      pid,
		Stderr:   stderr,
		Err:      err,
	}
}

// limitedBuffer keeps the first limit bytes written to it and drops the
// rest.
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
			b.truncated = true
		} else {
			b.buf.Write(p)
		}
	} else if len(p) > 0 {
		b.truncated = true
	}

	return len(p), nil
}

func (b *limitedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + "\n[truncated]"
	}

	return b.buf.String()
}
