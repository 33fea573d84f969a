package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/propbench/errs"
	"github.com/weiihann/propbench/probe"
)

const (
	workerEnv  = "PROPBENCH_HARNESS_WORKER"
	sleeperEnv = "PROPBENCH_HARNESS_SLEEPER"
)

// TestMain lets the test binary double as a worker and as a long-lived
// grandchild process.
func TestMain(m *testing.M) {
	switch {
	case os.Getenv(sleeperEnv) != "":
		time.Sleep(time.Hour)
		os.Exit(0)

	case os.Getenv(workerEnv) != "":
		w := &Worker{
			Registry: testRegistry(),
			Memory:   &probe.StaticMemory{Values: []int64{1000, 2000}},
		}
		if err := w.Serve(context.Background(), os.Stdin, os.Stdout, os.Stderr); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}

	os.Exit(m.Run())
}

func testRegistry() Registry {
	return Registry{
		"sleep": {
			Run: func(_ context.Context, tr *probe.Tracker, req Request, _ any) (map[string]any, error) {
				ms, _ := strconv.Atoi(req.Params["ms"])
				time.Sleep(time.Duration(ms) * time.Millisecond)

				if _, err := tr.Probe("slept"); err != nil {
					return nil, err
				}

				return map[string]any{"prim_count": 7}, nil
			},
		},
		"record": {
			Run: func(_ context.Context, tr *probe.Tracker, req Request, _ any) (map[string]any, error) {
				f, err := os.OpenFile(req.Params["log"], os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
				if err != nil {
					return nil, err
				}
				defer f.Close()

				if _, err := fmt.Fprintf(f, "%d %t\n", req.Trial, req.Warmup); err != nil {
					return nil, err
				}

				_, err = tr.Probe("recorded")
				return nil, err
			},
		},
		"fixture": {
			Setup: func(context.Context, Request) (any, error) {
				return []string{"/World/B", "/World/A"}, nil
			},
			Run: func(_ context.Context, tr *probe.Tracker, _ Request, fixture any) (map[string]any, error) {
				paths := fixture.([]string)
				_, err := tr.Probe("used_fixture")

				return map[string]any{"first": paths[0]}, err
			},
		},
		"fail": {
			Run: func(context.Context, *probe.Tracker, Request, any) (map[string]any, error) {
				return nil, errors.New("boom")
			},
		},
		"setup_fail": {
			Setup: func(context.Context, Request) (any, error) {
				return nil, errors.New("cannot prepare")
			},
			Run: func(context.Context, *probe.Tracker, Request, any) (map[string]any, error) {
				return nil, nil
			},
		},
		"panic": {
			Run: func(context.Context, *probe.Tracker, Request, any) (map[string]any, error) {
				panic("kaboom")
			},
		},
		"crash": {
			Run: func(context.Context, *probe.Tracker, Request, any) (map[string]any, error) {
				fmt.Fprintln(os.Stderr, "dying")
				os.Exit(3)
				return nil, nil
			},
		},
		"hang": {
			Run: func(_ context.Context, _ *probe.Tracker, req Request, _ any) (map[string]any, error) {
				if pidFile := req.Params["child_pid_file"]; pidFile != "" {
					child := exec.Command(os.Args[0])
					child.Env = append(os.Environ(), sleeperEnv+"=1")
					if err := child.Start(); err != nil {
						return nil, err
					}
					pid := strconv.Itoa(child.Process.Pid)
					if err := os.WriteFile(pidFile, []byte(pid), 0o644); err != nil {
						return nil, err
					}
				}

				time.Sleep(time.Hour)
				return nil, nil
			},
		},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRunner(t *testing.T) *Runner {
	t.Helper()

	exe, err := os.Executable()
	require.NoError(t, err)

	return NewRunner(CommandConfig{
		Binary: exe,
		Env:    []string{workerEnv + "=1"},
	}, testLogger())
}

func TestRunTrialSuccess(t *testing.T) {
	r := testRunner(t)

	trial, err := r.RunTrial(context.Background(), Request{
		Scenario: "sleep",
		Variant:  "jsonl",
		Trial:    1,
		Params:   map[string]string{"ms": "20"},
	}, 10*time.Second)
	require.NoError(t, err)

	require.Len(t, trial.Probes, 1)
	s := trial.Probes[0]
	assert.Equal(t, "slept", s.Label)
	assert.GreaterOrEqual(t, s.ElapsedSinceStart, 0.015)
	assert.Equal(t, int64(2000), s.TotalMemoryBytes)
	assert.Equal(t, int64(1000), s.DeltaSinceStart)

	n, ok := trial.ExtraInt("prim_count")
	require.True(t, ok)
	assert.Equal(t, int64(7), n)

	assert.Equal(t, 1, trial.Index)
	assert.Positive(t, trial.PID)
	assert.NotEqual(t, os.Getpid(), trial.PID)
}

func TestRunTrialForwardsVerboseTable(t *testing.T) {
	r := testRunner(t)
	var diag bytes.Buffer
	r.Stderr = &diag

	_, err := r.RunTrial(context.Background(), Request{
		Scenario: "sleep",
		Variant:  "jsonl",
		Trial:    2,
		Verbose:  true,
		Params:   map[string]string{"ms": "1"},
	}, 10*time.Second)
	require.NoError(t, err)

	out := diag.String()
	assert.Contains(t, out, "Performance Measurement: sleep jsonl trial 2")
	assert.Contains(t, out, "slept")

	diag.Reset()
	_, err = r.RunTrial(context.Background(), Request{
		Scenario: "sleep",
		Variant:  "jsonl",
		Trial:    3,
		Params:   map[string]string{"ms": "1"},
	}, 10*time.Second)
	require.NoError(t, err)
	assert.NotContains(t, diag.String(), "Performance Measurement")
}

func TestRunTrialSetupRunsBeforeOperation(t *testing.T) {
	trial, err := testRunner(t).RunTrial(context.Background(), Request{Scenario: "fixture"}, 10*time.Second)
	require.NoError(t, err)

	assert.Equal(t, "/World/B", trial.Extra["first"])
	require.Len(t, trial.Probes, 1)
	assert.Equal(t, "used_fixture", trial.Probes[0].Label)
}

func TestRunTrialFailures(t *testing.T) {
	tests := []struct {
		scenario string
		contains string
	}{
		{scenario: "fail", contains: "boom"},
		{scenario: "setup_fail", contains: "cannot prepare"},
		{scenario: "panic", contains: "kaboom"},
		{scenario: "crash", contains: "dying"},
		{scenario: "missing", contains: "unknown scenario"},
	}

	r := testRunner(t)

	for _, tt := range tests {
		t.Run(tt.scenario, func(t *testing.T) {
			_, err := r.RunTrial(context.Background(), Request{
				Scenario: tt.scenario,
				Variant:  "parquet_zstd",
				Trial:    2,
			}, 10*time.Second)
			require.Error(t, err)

			assert.ErrorIs(t, err, errs.ErrTrialFailure)
			assert.True(t, errs.IsTrialError(err))
			assert.Contains(t, err.Error(), tt.contains)

			var te *TrialError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.scenario, te.Scenario)
			assert.Equal(t, "parquet_zstd", te.Variant)
			assert.Equal(t, 2, te.Trial)
		})
	}
}

func TestRunTrialTimeout(t *testing.T) {
	r := testRunner(t)

	start := time.Now()
	_, err := r.RunTrial(context.Background(), Request{Scenario: "hang"}, 300*time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrTrialTimeout)
	assert.NotErrorIs(t, err, errs.ErrTrialFailure)
	assert.Less(t, elapsed, 10*time.Second)
}

func TestRunTrialContextCancel(t *testing.T) {
	r := testRunner(t)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	_, err := r.RunTrial(ctx, Request{Scenario: "hang"}, time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunTrialsDiscardsWarmup(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "trials.log")
	r := testRunner(t)

	trials, err := r.RunTrials(context.Background(), Request{
		Scenario: "record",
		Params:   map[string]string{"log": logPath},
	}, Plan{Trials: 3, Warmup: 2, Timeout: 10 * time.Second})
	require.NoError(t, err)

	require.Len(t, trials, 3)
	for i, tr := range trials {
		assert.Equal(t, i+1, tr.Index)
	}

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"1 true",
		"2 true",
		"1 false",
		"2 false",
		"3 false",
	}, strings.Split(strings.TrimSpace(string(data)), "\n"))
}

func TestRunTrialsAbortOnFirstFailure(t *testing.T) {
	r := testRunner(t)

	trials, err := r.RunTrials(context.Background(), Request{Scenario: "fail"},
		Plan{Trials: 3, Timeout: 10 * time.Second})
	require.Error(t, err)
	assert.Nil(t, trials)

	var te *TrialError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 1, te.Trial)
	assert.False(t, te.Warmup)

	_, err = r.RunTrials(context.Background(), Request{Scenario: "fail"},
		Plan{Trials: 3, Warmup: 1, Timeout: 10 * time.Second})
	require.ErrorAs(t, err, &te)
	assert.True(t, te.Warmup)
	assert.Contains(t, err.Error(), "warm-up trial 1")
}

func TestLimitedBuffer(t *testing.T) {
	b := &limitedBuffer{limit: 5}

	n, err := b.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = b.Write([]byte("defgh"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	assert.Equal(t, "abcde\n[truncated]", b.String())
}

func TestResolveWorker(t *testing.T) {
	exe, err := os.Executable()
	require.NoError(t, err)

	cfg, err := ResolveWorker(exe)
	require.NoError(t, err)
	assert.Equal(t, []string{WorkerSubcommand}, cfg.ExtraArgs)
	assert.True(t, filepath.IsAbs(cfg.Binary))

	_, err = ResolveWorker(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
