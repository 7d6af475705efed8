// Package biome holds the biome variant table and the classifier that
// partitions the world plane into blended biome regions.
package biome

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	"terrainstream/internal/config"
)

// ID identifies a biome. Lower ids win ties.
type ID int

type CurveKind string

const (
	CurveLinear  CurveKind = "linear"
	CurvePower   CurveKind = "power"
	CurveTerrace CurveKind = "terrace"
	CurveRidged  CurveKind = "ridged"
)

// Curve reshapes a [0,1] noise sample before it is scaled into a height.
type Curve struct {
	Kind     CurveKind
	Exponent float64
	Steps    int
}

// Apply maps n in [0,1] to [0,1].
func (c Curve) Apply(n float64) float64 {
	switch c.Kind {
	case CurvePower:
		return math.Pow(n, c.Exponent)
	case CurveTerrace:
		v := n * float64(c.Steps)
		step := math.Floor(v)
		frac := v - step
		return (step + frac*frac*frac*frac) / float64(c.Steps)
	case CurveRidged:
		return 1 - math.Abs(2*n-1)
	default:
		return n
	}
}

// Definition is one row of the biome table.
type Definition struct {
	ID           ID
	Name         string
	BaseHeight   float64
	Amplitude    float64
	Curve        Curve
	BlendBand    float64 // world units over which this biome bleeds into a neighbour
	Color        color.NRGBA
	Temperature  float64
	Moisture     float64
	TreeDensity  float64
	GrassDensity float64
}

// Height evaluates the biome's height function for a noise sample.
func (d Definition) Height(n float64) float64 {
	return d.BaseHeight + d.Amplitude*d.Curve.Apply(n)
}

// Table is an immutable, id-ordered set of biome definitions.
type Table struct {
	defs  []Definition
	index map[ID]int
}

// NewTable builds a table from config rows.
func NewTable(rows []config.BiomeConfig) (*Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: biome table is empty", config.ErrInvalidConfiguration)
	}
	defs := make([]Definition, 0, len(rows))
	for _, row := range rows {
		rgb, err := config.ParseColor(row.Color)
		if err != nil {
			return nil, fmt.Errorf("%w: biome %d: %w", config.ErrInvalidConfiguration, row.ID, err)
		}
		kind := CurveKind(row.Curve.Kind)
		if kind == "" {
			kind = CurveLinear
		}
		defs = append(defs, Definition{
			ID:           ID(row.ID),
			Name:         row.Name,
			BaseHeight:   row.BaseHeight,
			Amplitude:    row.Amplitude,
			Curve:        Curve{Kind: kind, Exponent: row.Curve.Exponent, Steps: row.Curve.Steps},
			BlendBand:    row.BlendBandWidth,
			Color:        color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 0xff},
			Temperature:  row.Temperature,
			Moisture:     row.Moisture,
			TreeDensity:  row.TreeDensity,
			GrassDensity: row.GrassDensity,
		})
	}
	return newTable(defs)
}

func newTable(defs []Definition) (*Table, error) {
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	t := &Table{defs: defs, index: make(map[ID]int, len(defs))}
	for i, d := range defs {
		if _, dup := t.index[d.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate biome id %d", config.ErrInvalidConfiguration, d.ID)
		}
		if d.BlendBand <= 0 {
			return nil, fmt.Errorf("%w: biome %d blend band must be positive", config.ErrInvalidConfiguration, d.ID)
		}
		t.index[d.ID] = i
	}
	return t, nil
}

func (t *Table) Len() int {
	return len(t.defs)
}

// Get returns the definition for id.
func (t *Table) Get(id ID) (Definition, bool) {
	i, ok := t.index[id]
	if !ok {
		return Definition{}, false
	}
	return t.defs[i], true
}

// Definitions returns the rows in ascending id order.
func (t *Table) Definitions() []Definition {
	out := make([]Definition, len(t.defs))
	copy(out, t.defs)
	return out
}

func (t *Table) maxBand() float64 {
	band := 0.0
	for _, d := range t.defs {
		band = max(band, d.BlendBand)
	}
	return band
}

// nearestClimate picks the biome whose climate centroid is closest to
// (temperature, moisture). Equal distances resolve to the lower id.
func (t *Table) nearestClimate(temperature, moisture float64) ID {
	best := t.defs[0].ID
	bestDist := math.Inf(1)
	for _, d := range t.defs {
		dt := d.Temperature - temperature
		dm := d.Moisture - moisture
		if dist := dt*dt + dm*dm; dist < bestDist {
			best, bestDist = d.ID, dist
		}
	}
	return best
}

// Fold returns the weighted sum of fn over the biomes in b.
func (t *Table) Fold(b Blend, fn func(Definition) float64) float64 {
	sum := 0.0
	for _, w := range b.Weights {
		if d, ok := t.Get(w.Biome); ok {
			sum += w.Value * fn(d)
		}
	}
	return sum
}

// Height blends each biome's height function for noise sample n.
func (t *Table) Height(b Blend, n float64) float64 {
	return t.Fold(b, func(d Definition) float64 { return d.Height(n) })
}

// Color blends biome colours channel by channel.
func (t *Table) Color(b Blend) color.NRGBA {
	r := t.Fold(b, func(d Definition) float64 { return float64(d.Color.R) })
	g := t.Fold(b, func(d Definition) float64 { return float64(d.Color.G) })
	bl := t.Fold(b, func(d Definition) float64 { return float64(d.Color.B) })
	return color.NRGBA{R: channel(r), G: channel(g), B: channel(bl), A: 0xff}
}

func channel(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(255, v))))
}
