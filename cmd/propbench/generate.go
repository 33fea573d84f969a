package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/weiihann/propbench/config"
	"github.com/weiihann/propbench/dataset"
)

// dataFlags are the dataset settings shared by generate and run. Flags set
// on the command line override the configuration file.
type dataFlags struct {
	dataDir      string
	scales       []int
	hierarchies  []string
	seed         int64
	payloadSize  int
	compressions []string
	rowGroupSize int
}

func (f *dataFlags) bind(cmd *cobra.Command) {
	defaults := config.DefaultConfig()

	flags := cmd.Flags()
	flags.StringVar(&f.dataDir, "data-dir", defaults.DataDir,
		"Directory holding one subdirectory per scale and hierarchy")
	flags.IntSliceVar(&f.scales, "scales", defaults.Scales,
		"Prim counts to benchmark")
	flags.StringSliceVar(&f.hierarchies, "hierarchies", defaults.Hierarchies,
		"Scene hierarchies: flat, deep")
	flags.Int64Var(&f.seed, "seed", defaults.Dataset.Seed,
		"Random seed for data generation")
	flags.IntVar(&f.payloadSize, "payload-size", defaults.Dataset.PayloadSize,
		"Length of the payload property in bytes")
	flags.StringSliceVar(&f.compressions, "compressions", defaults.Dataset.Compressions,
		"Parquet compressions to generate: zstd, snappy, lz4, gzip, none")
	flags.IntVar(&f.rowGroupSize, "row-group-size", defaults.Dataset.RowGroupSize,
		"Rows per Parquet row group")
}

func (f *dataFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("data-dir") {
		cfg.DataDir = f.dataDir
	}
	if flags.Changed("scales") {
		cfg.Scales = f.scales
	}
	if flags.Changed("hierarchies") {
		cfg.Hierarchies = f.hierarchies
	}
	if flags.Changed("seed") {
		cfg.Dataset.Seed = f.seed
	}
	if flags.Changed("payload-size") {
		cfg.Dataset.PayloadSize = f.payloadSize
	}
	if flags.Changed("compressions") {
		cfg.Dataset.Compressions = f.compressions
	}
	if flags.Changed("row-group-size") {
		cfg.Dataset.RowGroupSize = f.rowGroupSize
	}

	return cfg.Validate()
}

func newGenerateCmd(a *app) *cobra.Command {
	var (
		data  dataFlags
		force bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate test data for every scale and hierarchy",
		Long: `Write the base scene, the JSON Lines property file and one Parquet file
per compression for every configured scale and hierarchy. Existing files
are kept unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if err := data.apply(cmd, cfg); err != nil {
				return err
			}

			hierarchies, err := cfg.HierarchyList()
			if err != nil {
				return err
			}

			for _, scale := range cfg.Scales {
				for _, h := range hierarchies {
					if err := generate(cmd.Context(), a.logger, cfg, scale, h, force); err != nil {
						return err
					}
				}
			}

			return nil
		},
	}

	data.bind(cmd)
	cmd.Flags().BoolVar(&force, "force", false,
		"Regenerate files that already exist")

	return cmd
}

func generate(
	ctx context.Context,
	logger *slog.Logger,
	cfg *config.Config,
	scale int,
	h dataset.Hierarchy,
	force bool,
) error {
	logger.InfoContext(ctx, "generating test data",
		slog.Int("scale", scale),
		slog.String("hierarchy", string(h)),
		slog.Int64("seed", cfg.Dataset.Seed),
	)

	summary, err := dataset.WriteAll(ctx, logger, cfg.WriteOptions(scale, h, force))
	if err != nil {
		return fmt.Errorf("generate %d_%s: %w", scale, h, err)
	}

	logger.InfoContext(ctx, "test data ready",
		slog.String("dir", summary.Dir),
		slog.Int("rows", summary.Rows),
		slog.Int("written", len(summary.Written)),
		slog.Int("kept", len(summary.Skipped)),
	)

	return nil
}
