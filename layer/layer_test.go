package layer

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/propbench/dataset"
	"github.com/weiihann/propbench/errs"
)

const testScale = 600

func writeData(t *testing.T) (dataset.Layout, dataset.Config) {
	t.Helper()

	dir := t.TempDir()
	cfg := dataset.Config{Scale: testScale, Hierarchy: dataset.Deep, Seed: 11, PayloadSize: 24}

	_, err := dataset.WriteAll(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)),
		dataset.WriteOptions{
			Config:       cfg,
			DataDir:      dir,
			Compressions: []string{"zstd", "snappy"},
		})
	require.NoError(t, err)

	return dataset.NewLayout(dir, testScale, dataset.Deep), cfg
}

func TestParseVariant(t *testing.T) {
	tests := []struct {
		name    string
		want    Variant
		wantErr bool
	}{
		{name: "jsonl", want: Variant{Name: "jsonl", Kind: KindJSONL}},
		{name: "parquet_zstd", want: Variant{Name: "parquet_zstd", Kind: KindParquet, Compression: "zstd"}},
		{name: "duckdb_snappy", want: Variant{Name: "duckdb_snappy", Kind: KindDuckDB, Compression: "snappy"}},
		{name: "usdc", wantErr: true},
		{name: "parquet_", wantErr: true},
		{name: "parquet_bogus", wantErr: true},
		{name: "csv_zstd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVariant(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, errs.ErrUnknownVariant)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultVariants(t *testing.T) {
	assert.Equal(t,
		[]string{"parquet_zstd", "parquet_snappy", "duckdb_zstd", "duckdb_snappy", "jsonl"},
		DefaultVariants([]string{"zstd", "snappy"}))
}

func TestResolveMissingInputIsSkip(t *testing.T) {
	layout := dataset.NewLayout(t.TempDir(), 10, dataset.Flat)

	_, err := Resolve(layout, "parquet_zstd")
	require.Error(t, err)
	assert.True(t, errs.IsSkip(err))
	assert.Contains(t, err.Error(), "properties_zstd_10.parquet")

	_, err = Open(context.Background(), "jsonl", layout.JSONLPath())
	assert.ErrorIs(t, err, errs.ErrMissingInput)

	_, err = LoadBase(layout.BasePath())
	assert.ErrorIs(t, err, errs.ErrMissingInput)
}

func TestLoadBase(t *testing.T) {
	layout, cfg := writeData(t)

	base, err := LoadBase(layout.BasePath())
	require.NoError(t, err)

	want := dataset.BuildPrims(dataset.Paths(cfg.Scale, cfg.Hierarchy))
	assert.Equal(t, want, base.Prims)
	assert.Equal(t, len(want), base.Len())
	assert.Equal(t, "/World", base.Paths()[0])
}

func TestVariantsReadGeneratedRows(t *testing.T) {
	layout, cfg := writeData(t)

	var rows []dataset.PropertyRow
	require.NoError(t, dataset.NewGenerator(cfg).Each(func(_ int, r *dataset.PropertyRow) error {
		rows = append(rows, *r)
		return nil
	}))

	for _, name := range []string{"jsonl", "parquet_zstd", "parquet_snappy", "duckdb_zstd"} {
		t.Run(name, func(t *testing.T) {
			path, err := Resolve(layout, name)
			require.NoError(t, err)

			l, err := Open(context.Background(), name, path)
			require.NoError(t, err)
			defer l.Close()

			assert.Equal(t, name, l.Variant())

			_, err = l.Get(rows[0].Path, "cost")
			assert.ErrorIs(t, err, ErrNotComposed)

			require.NoError(t, l.Compose(context.Background()))
			assert.Equal(t, testScale, l.Len())

			assert.True(t, l.Has(rows[0].Path))
			assert.False(t, l.Has("/World"))
			assert.False(t, l.Has("/World/Zone_0"))

			// Reverse order crosses block boundaries on every step.
			for i := len(rows) - 1; i >= 0; i-- {
				r := rows[i]
				for _, prop := range []string{"temperature", "lifespan", "is_active", "supplier_id"} {
					got, err := l.Get(r.Path, prop)
					require.NoError(t, err, "%s %s", r.Path, prop)

					want, _ := r.Value(prop)
					assert.Equal(t, want, got, "%s %s", r.Path, prop)
				}
			}

			_, err = l.Get("/World/Nowhere", "cost")
			assert.ErrorIs(t, err, ErrPrimNotFound)

			_, err = l.Get(rows[0].Path, "colour")
			assert.ErrorIs(t, err, ErrUnknownProperty)
		})
	}
}

func TestOpenRejectsUnknownVariant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := Open(context.Background(), "usdc", path)
	assert.ErrorIs(t, err, errs.ErrUnknownVariant)
}
