// Package main provides the CLI entry point for propbench, a benchmark
// harness comparing data-access strategies for per-prim scene properties.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/weiihann/propbench/config"
	"github.com/weiihann/propbench/harness"
	"github.com/weiihann/propbench/scenario"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// app carries state shared by every subcommand once flags are parsed.
type app struct {
	logger     *slog.Logger
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	a := &app{logger: slog.New(slog.NewTextHandler(os.Stderr, nil))}

	root := &cobra.Command{
		Use:   "propbench",
		Short: "Benchmark data-access strategies for scene properties",
		Long: `Propbench generates deterministic property datasets, loads them through
several storage variants (JSON Lines, Parquet, DuckDB over Parquet) and
measures load, lookup and traversal costs, running every trial in its own
worker process.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), a.logLevel, a.logFormat)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "",
		"Path to a YAML suite configuration")
	flags.StringVar(&a.logLevel, "log-level", "info",
		"Log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "text",
		"Log format: text, json")

	root.AddCommand(
		newGenerateCmd(a),
		newRunCmd(a),
		newReportCmd(a),
		newWorkerCmd(a),
	)

	return root
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}

	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q (want text or json)", format)
	}
}

// loadConfig returns the file configuration, or the defaults when no file
// was given.
func (a *app) loadConfig() (*config.Config, error) {
	if a.configPath == "" {
		return config.DefaultConfig(), nil
	}

	return config.Load(a.configPath)
}

func newWorkerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:    harness.WorkerSubcommand,
		Short:  "Run a single trial read from stdin",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := &harness.Worker{
				Registry: scenario.Registry(),
				Logger:   a.logger,
			}

			return w.Serve(cmd.Context(), os.Stdin, os.Stdout, os.Stderr)
		},
	}
}
