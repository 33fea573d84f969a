package layer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/weiihann/propbench/dataset"
)

// parquetBlock is how many rows one seek decodes. Reads within the cached
// block do not touch the file.
const parquetBlock = 256

type pathRow struct {
	Path string `parquet:"path"`
}

// parquetLayer indexes the path column on Compose and decodes rows on
// demand, one block at a time.
type parquetLayer struct {
	name   string
	file   *os.File
	reader *parquet.GenericReader[dataset.PropertyRow]
	index  map[string]int64

	block      []dataset.PropertyRow
	blockStart int64
	blockLen   int
}

func openParquet(name, path string) (*parquetLayer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return &parquetLayer{
		name:       name,
		file:       f,
		reader:     parquet.NewGenericReader[dataset.PropertyRow](f, parquet.ReadBufferSize(1024*1024)),
		block:      make([]dataset.PropertyRow, parquetBlock),
		blockStart: -1,
	}, nil
}

func (l *parquetLayer) Variant() string { return l.name }

func (l *parquetLayer) Compose(ctx context.Context) error {
	paths := parquet.NewGenericReader[pathRow](l.file)
	defer paths.Close()

	l.index = make(map[string]int64, paths.NumRows())
	buf := make([]pathRow, 4096)

	var row int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := paths.Read(buf)
		for i := 0; i < n; i++ {
			l.index[buf[i].Path] = row
			row++
		}

		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read path column: %w", err)
		}
	}

	return nil
}

func (l *parquetLayer) Has(path string) bool {
	_, ok := l.index[path]
	return ok
}

func (l *parquetLayer) Get(path, prop string) (any, error) {
	if l.index == nil {
		return nil, ErrNotComposed
	}

	i, ok := l.index[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPrimNotFound, path)
	}

	row, err := l.row(i)
	if err != nil {
		return nil, err
	}

	v, ok := row.Value(prop)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProperty, prop)
	}

	return v, nil
}

func (l *parquetLayer) row(i int64) (*dataset.PropertyRow, error) {
	if l.blockStart >= 0 && i >= l.blockStart && i < l.blockStart+int64(l.blockLen) {
		return &l.block[i-l.blockStart], nil
	}

	start := i - i%parquetBlock
	l.blockStart = -1

	if err := l.reader.SeekToRow(start); err != nil {
		return nil, fmt.Errorf("seek to row %d: %w", start, err)
	}

	n, err := l.reader.Read(l.block)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read rows at %d: %w", start, err)
	}
	if int64(n) <= i-start {
		return nil, fmt.Errorf("row %d: %w", i, io.ErrUnexpectedEOF)
	}

	l.blockStart = start
	l.blockLen = n

	return &l.block[i-start], nil
}

func (l *parquetLayer) Len() int { return len(l.index) }

func (l *parquetLayer) Close() error {
	if err := l.reader.Close(); err != nil {
		l.file.Close()
		return err
	}

	return l.file.Close()
}
