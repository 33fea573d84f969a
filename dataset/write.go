package dataset

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultRowGroupSize keeps row groups small so that loading is
	// progressive.
	DefaultRowGroupSize = 50

	writeBatch = 1024
)

// DefaultCompressions are the Parquet codecs generated when none are
// configured.
var DefaultCompressions = []string{"zstd", "snappy"}

// Codec returns the parquet-go codec for a compression name.
func Codec(name string) (compress.Codec, error) {
	switch name {
	case "snappy":
		return &parquet.Snappy, nil
	case "zstd":
		return &parquet.Zstd, nil
	case "lz4":
		return &parquet.Lz4Raw, nil
	case "gzip":
		return &parquet.Gzip, nil
	case "none", "uncompressed":
		return &parquet.Uncompressed, nil
	default:
		return nil, fmt.Errorf("unknown compression %q", name)
	}
}

// WriteOptions controls WriteAll.
type WriteOptions struct {
	Config
	DataDir      string
	Compressions []string
	RowGroupSize int

	// Force regenerates files that already exist.
	Force bool
}

// Summary reports what WriteAll produced.
type Summary struct {
	Dir     string
	Rows    int
	Written []string
	Skipped []string
}

type fileTask struct {
	path  string
	write func(w io.Writer) error
}

// WriteAll writes the base hierarchy and every variant file for one scale
// and hierarchy. Files are written concurrently, each from its own replay
// of the generator, and appear under their final name only once complete.
func WriteAll(ctx context.Context, logger *slog.Logger, opts WriteOptions) (Summary, error) {
	if opts.Seed == 0 {
		opts.Seed = DefaultSeed
	}
	if opts.RowGroupSize <= 0 {
		opts.RowGroupSize = DefaultRowGroupSize
	}
	if len(opts.Compressions) == 0 {
		opts.Compressions = DefaultCompressions
	}

	layout := NewLayout(opts.DataDir, opts.Scale, opts.Hierarchy)
	summary := Summary{Dir: layout.Dir, Rows: opts.Scale}

	if err := os.MkdirAll(layout.Dir, 0o755); err != nil {
		return summary, fmt.Errorf("create data directory: %w", err)
	}

	tasks := []fileTask{
		{path: layout.BasePath(), write: func(w io.Writer) error {
			return writeBase(ctx, w, opts.Config)
		}},
		{path: layout.JSONLPath(), write: func(w io.Writer) error {
			return writeJSONL(ctx, w, opts.Config)
		}},
	}

	for _, comp := range opts.Compressions {
		codec, err := Codec(comp)
		if err != nil {
			return summary, err
		}

		tasks = append(tasks, fileTask{
			path: layout.ParquetPath(comp),
			write: func(w io.Writer) error {
				return writeParquet(ctx, w, opts.Config, codec, opts.RowGroupSize)
			},
		})
	}

	written := make([]bool, len(tasks))
	g, ctx := errgroup.WithContext(ctx)

	for i, task := range tasks {
		if !opts.Force {
			if _, err := os.Stat(task.path); err == nil {
				logger.InfoContext(ctx, "keeping existing file", slog.String("path", task.path))
				continue
			}
		}

		g.Go(func() error {
			if err := writeFileAtomic(task.path, task.write); err != nil {
				return fmt.Errorf("write %s: %w", filepath.Base(task.path), err)
			}

			if info, err := os.Stat(task.path); err == nil {
				logger.InfoContext(ctx, "wrote file",
					slog.String("path", task.path),
					slog.Float64("size_mb", float64(info.Size())/(1024*1024)),
				)
			}

			written[i] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}

	for i, task := range tasks {
		if written[i] {
			summary.Written = append(summary.Written, task.path)
		} else {
			summary.Skipped = append(summary.Skipped, task.path)
		}
	}

	return summary, nil
}

func writeBase(ctx context.Context, w io.Writer, cfg Config) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	for i, prim := range BuildPrims(Paths(cfg.Scale, cfg.Hierarchy)) {
		if i%writeBatch == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		if err := enc.Encode(prim); err != nil {
			return fmt.Errorf("encode prim: %w", err)
		}
	}

	return nil
}

func writeJSONL(ctx context.Context, w io.Writer, cfg Config) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	return NewGenerator(cfg).Each(func(i int, row *PropertyRow) error {
		if i%writeBatch == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("encode row %d: %w", i, err)
		}

		return nil
	})
}

func writeParquet(ctx context.Context, w io.Writer, cfg Config, codec compress.Codec, rowGroupSize int) error {
	pw := parquet.NewGenericWriter[PropertyRow](w,
		parquet.Compression(codec),
		parquet.MaxRowsPerRowGroup(int64(rowGroupSize)),
	)

	batch := make([]PropertyRow, 0, writeBatch)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := pw.Write(batch); err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
		batch = batch[:0]

		return ctx.Err()
	}

	err := NewGenerator(cfg).Each(func(_ int, row *PropertyRow) error {
		batch = append(batch, *row)
		if len(batch) == cap(batch) {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := flush(); err != nil {
		return err
	}

	if err := pw.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}

	return nil
}

// writeFileAtomic writes through a buffered temp file in the target
// directory and renames it into place.
func writeFileAtomic(path string, write func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	fail := func(err error) error {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	bw := bufio.NewWriterSize(tmp, 1<<20)
	if err := write(bw); err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(fmt.Errorf("flush: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("sync: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}
