package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/weiihann/propbench/dataset"
	"github.com/weiihann/propbench/report"
	"github.com/weiihann/propbench/results"
)

func newReportCmd(a *app) *cobra.Command {
	var (
		dataDir    string
		scale      int
		hierarchy  string
		output     string
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a saved results file",
		Long: `Load benchmark_results.json for one scale and hierarchy and render it as
a markdown report. With --json the results are printed unchanged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("data-dir") {
				cfg.DataDir = dataDir
			}

			h, err := dataset.ParseHierarchy(hierarchy)
			if err != nil {
				return err
			}

			layout := dataset.NewLayout(cfg.DataDir, scale, h)

			c, err := results.Load(layout.ResultsPath())
			if err != nil {
				return err
			}

			if outputJSON {
				return report.GenerateJSON(cmd.OutOrStdout(), c)
			}

			if output == "-" {
				return report.Generate(cmd.OutOrStdout(), c)
			}

			if output == "" {
				output = layout.ReportPath()
			}
			if err := writeReport(output, c); err != nil {
				return fmt.Errorf("write report: %w", err)
			}

			a.logger.InfoContext(cmd.Context(), "report written", slog.String("path", output))

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&dataDir, "data-dir", "benchmark_data",
		"Directory holding one subdirectory per scale and hierarchy")
	flags.IntVar(&scale, "scale", 1000,
		"Prim count of the results to render")
	flags.StringVar(&hierarchy, "hierarchy", string(dataset.Flat),
		"Hierarchy of the results to render: flat, deep")
	flags.StringVarP(&output, "output", "o", "",
		"Report path, or - for stdout (default: next to the results)")
	flags.BoolVar(&outputJSON, "json", false,
		"Print the results as JSON instead of markdown")

	return cmd
}
