package layer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/weiihann/propbench/dataset"
)

// jsonlLayer decodes the whole JSON Lines table into memory on Compose.
type jsonlLayer struct {
	name  string
	file  *os.File
	rows  []dataset.PropertyRow
	index map[string]int
}

func openJSONL(name, path string) (*jsonlLayer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	return &jsonlLayer{name: name, file: f}, nil
}

func (l *jsonlLayer) Variant() string { return l.name }

func (l *jsonlLayer) Compose(ctx context.Context) error {
	if _, err := l.file.Seek(0, 0); err != nil {
		return fmt.Errorf("rewind: %w", err)
	}

	l.rows = l.rows[:0]
	l.index = make(map[string]int)

	sc := bufio.NewScanner(l.file)
	sc.Buffer(make([]byte, 64*1024), 16<<20)

	for line := 1; sc.Scan(); line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		var row dataset.PropertyRow
		if err := json.Unmarshal(sc.Bytes(), &row); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		l.index[row.Path] = len(l.rows)
		l.rows = append(l.rows, row)
	}

	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", l.file.Name(), err)
	}

	return nil
}

func (l *jsonlLayer) Has(path string) bool {
	_, ok := l.index[path]
	return ok
}

func (l *jsonlLayer) Get(path, prop string) (any, error) {
	if l.index == nil {
		return nil, ErrNotComposed
	}

	i, ok := l.index[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPrimNotFound, path)
	}

	v, ok := l.rows[i].Value(prop)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProperty, prop)
	}

	return v, nil
}

func (l *jsonlLayer) Len() int { return len(l.rows) }

func (l *jsonlLayer) Close() error {
	return l.file.Close()
}
