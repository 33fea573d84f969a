// Package scenario defines the benchmarked operations and the driver that
// runs them across variants and records their statistics.
package scenario

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/weiihann/propbench/dataset"
	"github.com/weiihann/propbench/errs"
	"github.com/weiihann/propbench/harness"
	"github.com/weiihann/propbench/layer"
	"github.com/weiihann/propbench/probe"
)

// Scenario names.
const (
	FileSize                = "file_size"
	InitialLoadCold         = "initial_load_cold"
	SinglePropertyCold      = "single_property_cold"
	SinglePropertyTraversal = "single_property_traversal"
	MultiPropertyTraversal  = "multi_property_traversal"
	RandomAccess            = "random_access"
	SequentialAccess        = "sequential_access"
)

const (
	loadTimeout      = 60 * time.Second
	traversalTimeout = 120 * time.Second

	// warmReads is how many times a warm property read is repeated.
	warmReads = 50

	// shuffleSeed fixes the random access order across trials and runs.
	shuffleSeed = 42
)

// Spec describes how a scenario is run.
type Spec struct {
	Name    string
	Trials  int
	Warmup  int
	Timeout time.Duration

	// Traversal scenarios must read a property from every prim.
	Traversal bool

	// Operation is nil for scenarios measured by the driver itself.
	Operation *harness.Operation
}

// Defaults returns every scenario in run order.
func Defaults() []Spec {
	return []Spec{
		{Name: FileSize},
		{
			Name: InitialLoadCold, Trials: 5, Timeout: loadTimeout,
			Operation: &harness.Operation{Run: initialLoad},
		},
		{
			Name: SinglePropertyCold, Trials: 5, Timeout: loadTimeout,
			Operation: &harness.Operation{Run: singlePropertyCold},
		},
		{
			Name: SinglePropertyTraversal, Trials: 5, Timeout: traversalTimeout, Traversal: true,
			Operation: &harness.Operation{Run: singlePropertyTraversal},
		},
		{
			Name: MultiPropertyTraversal, Trials: 5, Timeout: traversalTimeout, Traversal: true,
			Operation: &harness.Operation{Run: multiPropertyTraversal},
		},
		{
			Name: RandomAccess, Trials: 3, Warmup: 1, Timeout: traversalTimeout, Traversal: true,
			Operation: &harness.Operation{Setup: shuffledPaths, Run: accessInOrder},
		},
		{
			Name: SequentialAccess, Trials: 3, Warmup: 1, Timeout: traversalTimeout, Traversal: true,
			Operation: &harness.Operation{Setup: basePaths, Run: accessInOrder},
		},
	}
}

// Lookup returns the default spec of a scenario.
func Lookup(name string) (Spec, error) {
	for _, s := range Defaults() {
		if s.Name == name {
			return s, nil
		}
	}

	return Spec{}, fmt.Errorf("%w: %q", errs.ErrUnknownScenario, name)
}

// Registry returns the operations a worker can run.
func Registry() harness.Registry {
	reg := harness.Registry{}
	for _, s := range Defaults() {
		if s.Operation != nil {
			reg[s.Name] = *s.Operation
		}
	}

	return reg
}

// TargetPrim is the prim read by single-prim scenarios: the middle prim of
// a flat scene, or a fixed component of a deep one.
func TargetPrim(scale int, h dataset.Hierarchy) string {
	if h == dataset.Deep {
		return "/World/Zone_0/Level_5/Room_0/Component_0"
	}

	return fmt.Sprintf("/World/Prim_%d", scale/2)
}

func chunkSize(scale int) int {
	return max(1, scale/10)
}

func mark(tr *probe.Tracker, label string) error {
	_, err := tr.Probe(label)
	return err
}

func openLayer(ctx context.Context, req harness.Request) (layer.Layer, error) {
	return layer.Open(ctx, req.Variant, req.LayerPath)
}

func initialLoad(ctx context.Context, tr *probe.Tracker, req harness.Request, _ any) (map[string]any, error) {
	if err := mark(tr, "start"); err != nil {
		return nil, err
	}

	if _, err := layer.LoadBase(req.BasePath); err != nil {
		return nil, err
	}
	if err := mark(tr, "base_layer_loaded"); err != nil {
		return nil, err
	}

	l, err := openLayer(ctx, req)
	if err != nil {
		return nil, err
	}
	defer l.Close()

	if err := mark(tr, "sublayer_added"); err != nil {
		return nil, err
	}

	if err := l.Compose(ctx); err != nil {
		return nil, err
	}
	if err := mark(tr, "composition_complete"); err != nil {
		return nil, err
	}

	return nil, nil
}

func singlePropertyCold(ctx context.Context, tr *probe.Tracker, req harness.Request, _ any) (map[string]any, error) {
	if err := mark(tr, "start"); err != nil {
		return nil, err
	}

	if _, err := layer.LoadBase(req.BasePath); err != nil {
		return nil, err
	}
	if err := mark(tr, "base_layer_loaded"); err != nil {
		return nil, err
	}

	l, err := openLayer(ctx, req)
	if err != nil {
		return nil, err
	}
	defer l.Close()

	if err := l.Compose(ctx); err != nil {
		return nil, err
	}
	if err := mark(tr, "sublayer_composition"); err != nil {
		return nil, err
	}

	target := TargetPrim(req.Scale, dataset.Hierarchy(req.Hierarchy))
	if _, err := l.Get(target, "payload"); err != nil {
		return nil, err
	}
	if err := mark(tr, "property_read_cold"); err != nil {
		return nil, err
	}

	for i := 0; i < warmReads; i++ {
		if _, err := l.Get(target, "payload"); err != nil {
			return nil, err
		}
	}
	if err := mark(tr, fmt.Sprintf("property_read_warm_%dx", warmReads)); err != nil {
		return nil, err
	}

	return map[string]any{"target_prim": target}, nil
}

func singlePropertyTraversal(ctx context.Context, tr *probe.Tracker, req harness.Request, _ any) (map[string]any, error) {
	if err := mark(tr, "start"); err != nil {
		return nil, err
	}

	base, err := layer.LoadBase(req.BasePath)
	if err != nil {
		return nil, err
	}
	if err := mark(tr, "base_layer_loaded"); err != nil {
		return nil, err
	}

	l, err := openLayer(ctx, req)
	if err != nil {
		return nil, err
	}
	defer l.Close()

	if err := l.Compose(ctx); err != nil {
		return nil, err
	}
	if err := mark(tr, "stage_loaded"); err != nil {
		return nil, err
	}

	chunk := chunkSize(req.Scale)
	count, visited := 0, 0

	for _, p := range base.Prims {
		if l.Has(p.Path) {
			if _, err := l.Get(p.Path, "payload"); err != nil {
				return nil, err
			}
			count++
		}

		visited++
		if visited%chunk == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := mark(tr, fmt.Sprintf("traversal_%d", count)); err != nil {
				return nil, err
			}
		}
	}

	if visited == 0 {
		return nil, fmt.Errorf("no prims visited in %s", req.BasePath)
	}

	if err := mark(tr, "finished"); err != nil {
		return nil, err
	}

	return map[string]any{"prim_count": count}, nil
}

func multiPropertyTraversal(ctx context.Context, tr *probe.Tracker, req harness.Request, _ any) (map[string]any, error) {
	if err := mark(tr, "start"); err != nil {
		return nil, err
	}

	base, err := layer.LoadBase(req.BasePath)
	if err != nil {
		return nil, err
	}

	l, err := openLayer(ctx, req)
	if err != nil {
		return nil, err
	}
	defer l.Close()

	if err := l.Compose(ctx); err != nil {
		return nil, err
	}
	if err := mark(tr, "stage_loaded"); err != nil {
		return nil, err
	}

	chunk := chunkSize(req.Scale)
	primCount, visited := 0, 0

	for _, p := range base.Prims {
		if l.Has(p.Path) {
			for _, prop := range dataset.MultiProperties {
				if _, err := l.Get(p.Path, prop); err != nil {
					return nil, err
				}
			}
			primCount++
		}

		visited++
		if visited%chunk == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			pct := min(100, visited*100/max(1, req.Scale))
			if err := mark(tr, fmt.Sprintf("traversal_%dpct", pct)); err != nil {
				return nil, err
			}
		}
	}

	if visited > 0 {
		if err := mark(tr, "finished"); err != nil {
			return nil, err
		}
	}

	return map[string]any{
		"prim_count":     primCount,
		"property_count": len(dataset.MultiProperties),
	}, nil
}

// basePaths lists every prim in traversal order, outside the timed region.
func basePaths(_ context.Context, req harness.Request) (any, error) {
	base, err := layer.LoadBase(req.BasePath)
	if err != nil {
		return nil, err
	}

	return base.Paths(), nil
}

// shuffledPaths lists every prim in a fixed pseudo-random order, outside
// the timed region.
func shuffledPaths(ctx context.Context, req harness.Request) (any, error) {
	v, err := basePaths(ctx, req)
	if err != nil {
		return nil, err
	}

	paths := v.([]string)
	rng := rand.New(rand.NewSource(shuffleSeed))
	rng.Shuffle(len(paths), func(i, j int) {
		paths[i], paths[j] = paths[j], paths[i]
	})

	return paths, nil
}

// accessInOrder reads one property from every prim in the order prepared
// by setup.
func accessInOrder(ctx context.Context, tr *probe.Tracker, req harness.Request, fixture any) (map[string]any, error) {
	paths, ok := fixture.([]string)
	if !ok {
		return nil, fmt.Errorf("setup produced %T, want []string", fixture)
	}

	if err := mark(tr, "start"); err != nil {
		return nil, err
	}

	l, err := openLayer(ctx, req)
	if err != nil {
		return nil, err
	}
	defer l.Close()

	if err := l.Compose(ctx); err != nil {
		return nil, err
	}
	if err := mark(tr, "stage_loaded"); err != nil {
		return nil, err
	}

	chunk := chunkSize(req.Scale)
	count := 0

	for i, p := range paths {
		if l.Has(p) {
			if _, err := l.Get(p, "temperature"); err != nil {
				return nil, err
			}
			count++
		}

		if (i+1)%chunk == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := mark(tr, fmt.Sprintf("access_%d", count)); err != nil {
				return nil, err
			}
		}
	}

	if err := mark(tr, "finished"); err != nil {
		return nil, err
	}

	return map[string]any{"prim_count": count}, nil
}
