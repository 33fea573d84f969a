package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weiihann/propbench/config"
	"github.com/weiihann/propbench/dataset"
	"github.com/weiihann/propbench/harness"
	"github.com/weiihann/propbench/metrics"
	"github.com/weiihann/propbench/report"
	"github.com/weiihann/propbench/results"
	"github.com/weiihann/propbench/scenario"
)

// Per-configuration status printed in the batch summary.
const (
	statusSuccess        = "SUCCESS"
	statusGenerateFailed = "GENERATE_FAILED"
	statusTestsFailed    = "TESTS_FAILED"
	statusReportFailed   = "REPORT_FAILED"
)

type runOptions struct {
	variants     []string
	filter       string
	skipGenerate bool
	force        bool
	verbose      bool
	workerBin    string
}

type configResult struct {
	name    string
	status  string
	dir     string
	passed  int
	skipped int
	failed  int
}

func newRunCmd(a *app) *cobra.Command {
	var (
		data dataFlags
		opts runOptions
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the benchmark suite across scales and hierarchies",
		Long: `Generate test data (unless --skip-generate), run every enabled scenario
against every variant with one worker process per trial, and write the
results, a markdown report and a Prometheus textfile next to the data.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if err := data.apply(cmd, cfg); err != nil {
				return err
			}
			if cmd.Flags().Changed("variants") {
				cfg.Variants = opts.variants
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			return runSuite(cmd.Context(), a.logger, cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, opts)
		},
	}

	data.bind(cmd)

	flags := cmd.Flags()
	flags.StringSliceVar(&opts.variants, "variants", nil,
		"Variants to benchmark (default: every generated variant)")
	flags.StringVar(&opts.filter, "filter", "",
		"Run only scenarios whose name contains this string")
	flags.BoolVar(&opts.skipGenerate, "skip-generate", false,
		"Skip test data generation (use existing files)")
	flags.BoolVar(&opts.force, "force", false,
		"Regenerate test data files that already exist")
	flags.BoolVar(&opts.verbose, "verbose", false,
		"Print the probe table of every trial")
	flags.StringVar(&opts.workerBin, "worker-bin", "",
		"Binary to run trials with (default: this executable)")

	return cmd
}

func runSuite(
	ctx context.Context,
	logger *slog.Logger,
	out io.Writer,
	diag io.Writer,
	cfg *config.Config,
	opts runOptions,
) error {
	command, err := workerCommand(opts.workerBin)
	if err != nil {
		return err
	}

	specs, err := cfg.Specs()
	if err != nil {
		return err
	}
	specs = filterSpecs(specs, opts.filter)
	if len(specs) == 0 {
		return fmt.Errorf("no scenario matches filter %q", opts.filter)
	}

	hierarchies, err := cfg.HierarchyList()
	if err != nil {
		return err
	}

	runner := harness.NewRunner(command, logger)
	if opts.verbose {
		runner.Stderr = diag
	}
	variants := cfg.VariantNames()

	logger.InfoContext(ctx, "starting benchmark suite",
		slog.Any("scales", cfg.Scales),
		slog.Any("hierarchies", cfg.Hierarchies),
		slog.Any("variants", variants),
		slog.Int("scenarios", len(specs)),
		slog.Int("configurations", len(cfg.Scales)*len(hierarchies)),
	)

	var summary []configResult

	for _, scale := range cfg.Scales {
		for _, h := range hierarchies {
			layout := dataset.NewLayout(cfg.DataDir, scale, h)
			res := configResult{name: fmt.Sprintf("%d_%s", scale, h), dir: layout.Dir}
			log := logger.With(slog.String("config", res.name))

			if !opts.skipGenerate {
				if err := generate(ctx, log, cfg, scale, h, opts.force); err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					log.ErrorContext(ctx, "generation failed", slog.String("error", err.Error()))
					res.status = statusGenerateFailed
					summary = append(summary, res)
					continue
				}
			}

			suite := &scenario.Suite{
				Runner:    runner,
				Logger:    log,
				Layout:    layout,
				Scale:     scale,
				Hierarchy: h,
				Variants:  variants,
				Scenarios: specs,
				Verbose:   opts.verbose,
			}

			collection := results.New(scale, string(h))
			outcomes := suite.Run(ctx, collection)
			if ctx.Err() != nil {
				return ctx.Err()
			}

			res.passed, res.skipped, res.failed = scenario.Summarize(outcomes)
			res.status = statusSuccess
			if res.failed > 0 {
				res.status = statusTestsFailed
			}

			if err := writeOutputs(cfg.Output, layout, collection); err != nil {
				log.ErrorContext(ctx, "writing outputs failed", slog.String("error", err.Error()))
				if res.status == statusSuccess {
					res.status = statusReportFailed
				}
			}

			summary = append(summary, res)
		}
	}

	printSummary(out, summary)

	for _, r := range summary {
		if r.status != statusSuccess {
			return errors.New("benchmark suite had failures")
		}
	}

	return nil
}

func workerCommand(bin string) (harness.CommandConfig, error) {
	if bin != "" {
		return harness.ResolveWorker(bin)
	}

	return harness.WorkerCommand()
}

func filterSpecs(specs []scenario.Spec, filter string) []scenario.Spec {
	if filter == "" {
		return specs
	}

	var out []scenario.Spec
	for _, s := range specs {
		if strings.Contains(s.Name, filter) {
			out = append(out, s)
		}
	}

	return out
}

func writeOutputs(output config.OutputConfig, layout dataset.Layout, c *results.Collection) error {
	var errs []error

	if output.Results {
		if err := c.Save(layout.ResultsPath()); err != nil {
			errs = append(errs, fmt.Errorf("save results: %w", err))
		}
	}

	if output.Report {
		if err := writeReport(layout.ReportPath(), c); err != nil {
			errs = append(errs, fmt.Errorf("write report: %w", err))
		}
	}

	if output.Metrics {
		if err := metrics.WriteTextfile(layout.MetricsPath(), c); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}

	return errors.Join(errs...)
}

func writeReport(path string, c *results.Collection) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := report.Generate(f, c); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}

	return f.Close()
}

func printSummary(w io.Writer, summary []configResult) {
	var ok, failed []configResult
	for _, r := range summary {
		if r.status == statusSuccess {
			ok = append(ok, r)
		} else {
			failed = append(failed, r)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintln(w, "BENCHMARK SUITE SUMMARY")
	fmt.Fprintln(w, strings.Repeat("=", 60))

	fmt.Fprintf(w, "\nSuccessful: %d/%d\n", len(ok), len(summary))
	for _, r := range ok {
		fmt.Fprintf(w, "  - %s: %d passed, %d skipped (%s)\n", r.name, r.passed, r.skipped, r.dir)
	}

	if len(failed) > 0 {
		fmt.Fprintf(w, "\nFailed: %d/%d\n", len(failed), len(summary))
		for _, r := range failed {
			fmt.Fprintf(w, "  - %s: %s (%d passed, %d skipped, %d failed)\n",
				r.name, r.status, r.passed, r.skipped, r.failed)
		}
	}

	fmt.Fprintln(w)
}
