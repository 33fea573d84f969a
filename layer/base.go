package layer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/weiihann/propbench/dataset"
	"github.com/weiihann/propbench/errs"
)

// Base is the prim hierarchy every property layer is composed against.
type Base struct {
	Prims []dataset.Prim
}

// LoadBase reads a base scene written by the dataset package.
func LoadBase(path string) (*Base, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.NewMissingInput(path)
		}
		return nil, fmt.Errorf("open base scene: %w", err)
	}
	defer f.Close()

	b := &Base{}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)

	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}

		var p dataset.Prim
		if err := json.Unmarshal(sc.Bytes(), &p); err != nil {
			return nil, fmt.Errorf("base scene line %d: %w", line, err)
		}
		b.Prims = append(b.Prims, p)
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read base scene: %w", err)
	}

	return b, nil
}

// Len returns the number of prims, ancestors included.
func (b *Base) Len() int {
	return len(b.Prims)
}

// Paths returns every prim path in traversal order.
func (b *Base) Paths() []string {
	out := make([]string, len(b.Prims))
	for i, p := range b.Prims {
		out[i] = p.Path
	}

	return out
}
