package biome

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"terrainstream/internal/config"
	"terrainstream/internal/noise"
)

// window is the half-width, in cells, of the site neighbourhood scanned per sample.
const window = 2

// Site is the jittered seed point of one grid cell.
type Site struct {
	X, Z  float64
	Biome ID
}

// Classifier assigns biome blends to world positions. It is a pure function
// of its seed and config and is safe for concurrent use.
type Classifier struct {
	table       *Table
	cellSize    float64
	jitter      float64
	jitterSeedX int64
	jitterSeedZ int64
	temperature *noise.Field
	moisture    *noise.Field
}

// NewClassifier builds a classifier for a world seed.
func NewClassifier(seed int64, cfg config.BiomesConfig, table *Table) (*Classifier, error) {
	if table == nil || table.Len() == 0 {
		return nil, fmt.Errorf("biome: classifier needs a non-empty table")
	}
	if cfg.CellSize <= 0 {
		return nil, fmt.Errorf("biome: cell size must be positive")
	}
	// Sites outside the scanned window are at least window cells away, which
	// only stays invisible while every band fits inside that margin.
	if limit := config.MaxBlendBandWidth(cfg.CellSize); table.maxBand() > limit {
		return nil, fmt.Errorf("%w: biome blend band %.1f exceeds %.1f for cell size %.1f",
			config.ErrInvalidConfiguration, table.maxBand(), limit, cfg.CellSize)
	}

	climate := func(salt uint64) (*noise.Field, error) {
		return noise.New(noise.Params{
			Seed:        noise.DeriveSeed(seed, salt),
			Kind:        noise.KindSimplex,
			Frequency:   cfg.ClimateFrequency,
			Octaves:     3,
			Persistence: 0.5,
			Lacunarity:  2,
		})
	}
	temperature, err := climate(0x7e)
	if err != nil {
		return nil, fmt.Errorf("biome: temperature field: %w", err)
	}
	moisture, err := climate(0x30)
	if err != nil {
		return nil, fmt.Errorf("biome: moisture field: %w", err)
	}

	return &Classifier{
		table:       table,
		cellSize:    cfg.CellSize,
		jitter:      cfg.Jitter,
		jitterSeedX: noise.DeriveSeed(seed, 0x1a),
		jitterSeedZ: noise.DeriveSeed(seed, 0x1b),
		temperature: temperature,
		moisture:    moisture,
	}, nil
}

func (c *Classifier) Table() *Table {
	return c.table
}

// Site returns the seed point of cell (gx, gz).
func (c *Classifier) Site(gx, gz int) Site {
	jx := 0.5 + (noise.Unit(gx, gz, c.jitterSeedX)-0.5)*c.jitter
	jz := 0.5 + (noise.Unit(gx, gz, c.jitterSeedZ)-0.5)*c.jitter
	x := (float64(gx) + jx) * c.cellSize
	z := (float64(gz) + jz) * c.cellSize
	return Site{
		X:     x,
		Z:     z,
		Biome: c.table.nearestClimate(c.temperature.Evaluate(x, z), c.moisture.Evaluate(x, z)),
	}
}

// Climate reports the temperature and moisture at a world position.
func (c *Classifier) Climate(x, z float64) (temperature, moisture float64) {
	return c.temperature.Evaluate(x, z), c.moisture.Evaluate(x, z)
}

// Describe summarises the biome situation at (x, z) for debug overlays: the
// dominant biome, the local climate and every weight, largest first.
func (c *Classifier) Describe(x, z float64) string {
	blend := c.Classify(x, z)
	temperature, moisture := c.Climate(x, z)

	var sb strings.Builder
	fmt.Fprintf(&sb, "position (%.1f, %.1f)\n", x, z)
	fmt.Fprintf(&sb, "dominant %s\n", c.name(blend.Dominant))
	fmt.Fprintf(&sb, "climate temperature=%.3f moisture=%.3f\n", temperature, moisture)
	sb.WriteString("weights")

	weights := append([]Weight(nil), blend.Weights...)
	sort.SliceStable(weights, func(i, j int) bool { return weights[i].Value > weights[j].Value })
	for _, w := range weights {
		fmt.Fprintf(&sb, "\n  %s: %.1f%%", c.name(w.Biome), w.Value*100)
	}
	return sb.String()
}

func (c *Classifier) name(id ID) string {
	if def, ok := c.table.Get(id); ok && def.Name != "" {
		return def.Name
	}
	return fmt.Sprintf("biome %d", id)
}

// Classify returns the biome blend at (x, z).
func (c *Classifier) Classify(x, z float64) Blend {
	return c.Lattice(x, z, x, z).Classify(x, z)
}

// Lattice precomputes every site needed to classify points inside the given
// rectangle.
func (c *Classifier) Lattice(minX, minZ, maxX, maxZ float64) *Lattice {
	gx0 := c.cell(minX) - window
	gz0 := c.cell(minZ) - window
	gx1 := c.cell(maxX) + window
	gz1 := c.cell(maxZ) + window

	l := &Lattice{
		c:     c,
		gx0:   gx0,
		gz0:   gz0,
		w:     gx1 - gx0 + 1,
		h:     gz1 - gz0 + 1,
		dists: make([]float64, c.table.Len()),
	}
	l.sites = make([]Site, l.w*l.h)
	for gz := gz0; gz <= gz1; gz++ {
		for gx := gx0; gx <= gx1; gx++ {
			l.sites[(gz-gz0)*l.w+(gx-gx0)] = c.Site(gx, gz)
		}
	}
	return l
}

func (c *Classifier) cell(v float64) int {
	return int(math.Floor(v / c.cellSize))
}

// Lattice is a cache of sites over a rectangle. It is not safe for
// concurrent use; give each goroutine its own.
type Lattice struct {
	c     *Classifier
	gx0   int
	gz0   int
	w, h  int
	sites []Site
	dists []float64
}

func (l *Lattice) site(gx, gz int) Site {
	ix, iz := gx-l.gx0, gz-l.gz0
	if ix < 0 || iz < 0 || ix >= l.w || iz >= l.h {
		return l.c.Site(gx, gz)
	}
	return l.sites[iz*l.w+ix]
}

// Classify returns the biome blend at (x, z).
//
// d_b is the distance to the nearest site of biome b. The dominant biome has
// the smallest d_b; every other biome sits (d_b-d_dominant)/2 from the region
// boundary and keeps a smoothstep share while that is under half its band.
func (l *Lattice) Classify(x, z float64) Blend {
	table := l.c.table
	for i := range l.dists {
		l.dists[i] = math.Inf(1)
	}

	gx, gz := l.c.cell(x), l.c.cell(z)
	for dz := -window; dz <= window; dz++ {
		for dx := -window; dx <= window; dx++ {
			s := l.site(gx+dx, gz+dz)
			i := table.index[s.Biome]
			if d := math.Hypot(s.X-x, s.Z-z); d < l.dists[i] {
				l.dists[i] = d
			}
		}
	}

	dom := 0
	for i := 1; i < len(l.dists); i++ {
		if l.dists[i] < l.dists[dom] {
			dom = i
		}
	}

	weights := make([]Weight, 0, 2)
	total := 0.0
	for i, d := range l.dists {
		raw := 1.0
		if i != dom {
			if math.IsInf(d, 1) {
				continue
			}
			edge := (d - l.dists[dom]) / 2
			raw = 1 - smoothstep(0, table.defs[i].BlendBand/2, edge)
		}
		if raw <= 0 {
			continue
		}
		weights = append(weights, Weight{Biome: table.defs[i].ID, Value: raw})
		total += raw
	}
	for i := range weights {
		weights[i].Value /= total
	}
	return Blend{Dominant: table.defs[dom].ID, Weights: weights}
}

func smoothstep(edge0, edge1, x float64) float64 {
	t := (x - edge0) / (edge1 - edge0)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return t * t * (3 - 2*t)
}
