// Package layer implements the property-access strategies under
// comparison. Each variant opens one property file, composes it against
// the prim hierarchy and answers per-prim property reads.
package layer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/weiihann/propbench/dataset"
	"github.com/weiihann/propbench/errs"
)

var (
	// ErrPrimNotFound is returned by Get for a path the layer has no row for.
	ErrPrimNotFound = errors.New("prim not found")

	// ErrUnknownProperty is returned by Get for a property outside the
	// generated schema.
	ErrUnknownProperty = errors.New("unknown property")

	// ErrNotComposed is returned by reads before Compose.
	ErrNotComposed = errors.New("layer not composed")
)

// Layer is an opened property file.
type Layer interface {
	// Variant returns the variant name, such as parquet_zstd.
	Variant() string

	// Compose indexes the layer so that prims can be resolved by path.
	Compose(ctx context.Context) error

	// Has reports whether the layer holds properties for path.
	Has(path string) bool

	// Get reads one property of one prim.
	Get(path, prop string) (any, error)

	// Len returns the number of prims with properties.
	Len() int

	Close() error
}

// Kind is the access strategy of a variant.
type Kind string

const (
	KindJSONL   Kind = "jsonl"
	KindParquet Kind = "parquet"
	KindDuckDB  Kind = "duckdb"
)

// Variant is a parsed variant name.
type Variant struct {
	Name        string
	Kind        Kind
	Compression string
}

// ParseVariant splits a name such as duckdb_zstd into its strategy and
// compression.
func ParseVariant(name string) (Variant, error) {
	if name == string(KindJSONL) {
		return Variant{Name: name, Kind: KindJSONL}, nil
	}

	kind, comp, ok := strings.Cut(name, "_")
	if !ok || comp == "" {
		return Variant{}, fmt.Errorf("%w: %q", errs.ErrUnknownVariant, name)
	}

	switch Kind(kind) {
	case KindParquet, KindDuckDB:
	default:
		return Variant{}, fmt.Errorf("%w: %q", errs.ErrUnknownVariant, name)
	}

	if _, err := dataset.Codec(comp); err != nil {
		return Variant{}, fmt.Errorf("%w: %q: %v", errs.ErrUnknownVariant, name, err)
	}

	return Variant{Name: name, Kind: Kind(kind), Compression: comp}, nil
}

// DefaultVariants returns the variants compared for a set of Parquet
// compressions: every Parquet file read directly and through DuckDB, plus
// the JSON Lines baseline.
func DefaultVariants(compressions []string) []string {
	var out []string
	for _, c := range compressions {
		out = append(out, "parquet_"+c)
	}
	for _, c := range compressions {
		out = append(out, "duckdb_"+c)
	}

	return append(out, string(KindJSONL))
}

// Path returns the data file a variant reads in layout.
func (v Variant) Path(layout dataset.Layout) string {
	if v.Kind == KindJSONL {
		return layout.JSONLPath()
	}

	return layout.ParquetPath(v.Compression)
}

// Resolve returns the existing data file of a variant, or a missing-input
// error naming the file.
func Resolve(layout dataset.Layout, name string) (string, error) {
	v, err := ParseVariant(name)
	if err != nil {
		return "", err
	}

	path := v.Path(layout)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", errs.NewMissingInput(path)
		}
		return "", errs.Wrapf(err, "stat %s", path)
	}

	return path, nil
}

// Open opens the property file at path with the strategy of the named
// variant. The file is not indexed until Compose.
func Open(ctx context.Context, name, path string) (Layer, error) {
	v, err := ParseVariant(name)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errs.NewMissingInput(path)
		}
		return nil, errs.Wrapf(err, "stat %s", path)
	}

	switch v.Kind {
	case KindJSONL:
		return openJSONL(name, path)
	case KindParquet:
		return openParquet(name, path)
	default:
		return openDuckDB(ctx, name, path)
	}
}

func checkProperty(prop string) error {
	if !dataset.IsProperty(prop) {
		return fmt.Errorf("%w: %q", ErrUnknownProperty, prop)
	}

	return nil
}
