// Package dataset generates deterministic benchmark data: a prim hierarchy
// and one property row per leaf prim, written in every variant format.
package dataset

import (
	"fmt"
	"math/rand"
	"strings"
)

// Hierarchy selects the shape of generated prim paths.
type Hierarchy string

const (
	// Flat places every prim directly under /World.
	Flat Hierarchy = "flat"
	// Deep nests prims as /World/Zone/Level/Room/Component.
	Deep Hierarchy = "deep"
)

// ParseHierarchy validates a hierarchy name.
func ParseHierarchy(s string) (Hierarchy, error) {
	switch Hierarchy(s) {
	case Flat, Deep:
		return Hierarchy(s), nil
	default:
		return "", fmt.Errorf("unknown hierarchy %q (want flat or deep)", s)
	}
}

const (
	// DefaultPayloadSize is the length of the payload string per prim.
	DefaultPayloadSize = 1000

	// DefaultSeed seeds generation when none is configured.
	DefaultSeed = 42

	deepLevels = 10
	deepRooms  = 10
)

// Config controls data generation.
type Config struct {
	Scale       int
	Hierarchy   Hierarchy
	Seed        int64
	PayloadSize int
}

// Generator produces the same rows for the same Config.
type Generator struct {
	cfg   Config
	rng   *rand.Rand
	paths []string
}

// NewGenerator creates a Generator from the given Config.
func NewGenerator(cfg Config) *Generator {
	if cfg.PayloadSize <= 0 {
		cfg.PayloadSize = DefaultPayloadSize
	}

	return &Generator{
		cfg:   cfg,
		paths: Paths(cfg.Scale, cfg.Hierarchy),
	}
}

// Paths returns the leaf prim paths for n prims. Deep hierarchies that do
// not divide evenly are padded under /World/Extra.
func Paths(n int, h Hierarchy) []string {
	paths := make([]string, 0, n)

	if h != Deep {
		for i := 0; i < n; i++ {
			paths = append(paths, fmt.Sprintf("/World/Prim_%d", i))
		}
		return paths
	}

	zones := max(1, n/1000)
	perRoom := max(1, n/(zones*deepLevels*deepRooms))

fill:
	for z := 0; z < zones; z++ {
		for l := 0; l < deepLevels; l++ {
			for r := 0; r < deepRooms; r++ {
				for c := 0; c < perRoom; c++ {
					if len(paths) >= n {
						break fill
					}
					paths = append(paths,
						fmt.Sprintf("/World/Zone_%d/Level_%d/Room_%d/Component_%d", z, l, r, c))
				}
			}
		}
	}

	for len(paths) < n {
		paths = append(paths, fmt.Sprintf("/World/Extra/Prim_%d", len(paths)))
	}

	return paths
}

// Prim is one node of the scene hierarchy.
type Prim struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// BuildPrims expands leaf paths into the full prim tree in depth-first
// order, emitting each ancestor before its first descendant.
func BuildPrims(leaves []string) []Prim {
	seen := make(map[string]struct{}, len(leaves))
	prims := make([]Prim, 0, len(leaves)+len(leaves)/10+1)

	for _, leaf := range leaves {
		for i := 1; i < len(leaf); i++ {
			if leaf[i] != '/' {
				continue
			}
			parent := leaf[:i]
			if _, ok := seen[parent]; !ok {
				seen[parent] = struct{}{}
				prims = append(prims, Prim{Path: parent, Type: "Xform"})
			}
		}

		if _, ok := seen[leaf]; !ok {
			seen[leaf] = struct{}{}
			prims = append(prims, Prim{Path: leaf, Type: "Xform"})
		}
	}

	return prims
}

// Paths returns the leaf paths the generator emits rows for.
func (g *Generator) Paths() []string {
	return g.paths
}

// Each calls fn once per leaf prim, in path order. Every call replays the
// same rows. A row is reused between calls to fn and must not be retained.
func (g *Generator) Each(fn func(i int, row *PropertyRow) error) error {
	var row PropertyRow

	g.rng = rand.New(rand.NewSource(g.cfg.Seed))

	for i, p := range g.paths {
		g.fill(&row, p)
		if err := fn(i, &row); err != nil {
			return err
		}
	}

	return nil
}

func (g *Generator) fill(row *PropertyRow, path string) {
	r := g.rng

	row.Path = path
	row.Cost = g.uniform(100, 10000)
	row.CarbonA1 = g.uniform(0, 100)
	row.CarbonA2 = g.uniform(0, 50)
	row.CarbonA3 = g.uniform(0, 200)
	row.CarbonA4 = g.uniform(0, 30)
	row.CarbonA5 = g.uniform(0, 20)
	row.Weight = g.uniform(1, 1000)
	row.Temperature = g.uniform(-20, 60)
	row.Pressure = g.uniform(90000, 110000)
	row.VelocityX = r.NormFloat64()
	row.VelocityY = r.NormFloat64()
	row.VelocityZ = r.NormFloat64()
	row.Stress = g.uniform(0, 500)
	row.Strain = g.uniform(0, 0.01)
	row.Efficiency = g.uniform(0.5, 1.0)
	row.Lifespan = int64(1 + r.Intn(49))
	row.IsActive = r.Intn(2) == 1
	row.SupplierID = fmt.Sprintf("SUP-%d", 1000+r.Intn(9000))
	row.MaterialCode = g.letters(upper, 3) + "-" + fmt.Sprint(100+r.Intn(900))
	row.InstallDate = fmt.Sprintf("20%02d-%02d-%02d", 20+r.Intn(6), 1+r.Intn(12), 1+r.Intn(28))
	row.Payload = g.letters(alnum, g.cfg.PayloadSize)
}

const (
	upper = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	alnum = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func (g *Generator) letters(alphabet string, n int) string {
	var b strings.Builder
	b.Grow(n)

	for i := 0; i < n; i++ {
		b.WriteByte(alphabet[g.rng.Intn(len(alphabet))])
	}

	return b.String()
}
