// Package terrain turns noise and biome classification into chunk heightmaps.
package terrain

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"

	"terrainstream/internal/biome"
	"terrainstream/internal/config"
	"terrainstream/internal/noise"
	"terrainstream/internal/world"
)

// Generator produces heightmaps whose every value is a pure function of the
// world seed and world position. It is safe for concurrent use.
type Generator struct {
	seed       int64
	layout     world.Layout
	field      *noise.Field
	classifier *biome.Classifier
	table      *biome.Table
	logger     *log.Logger
}

// NewGenerator builds the noise field, biome table and classifier described
// by cfg.
func NewGenerator(cfg *config.Config, logger *log.Logger) (*Generator, error) {
	field, err := noise.New(noise.ParamsFromConfig(cfg.World.Seed, cfg.Noise))
	if err != nil {
		return nil, fmt.Errorf("terrain: height field: %w", err)
	}
	table, err := biome.NewTable(cfg.Biomes.Table)
	if err != nil {
		return nil, fmt.Errorf("terrain: %w", err)
	}
	classifier, err := biome.NewClassifier(cfg.World.Seed, cfg.Biomes, table)
	if err != nil {
		return nil, fmt.Errorf("terrain: %w", err)
	}
	layout := world.Layout{ChunkSize: cfg.World.ChunkSize, Resolution: cfg.World.Resolution}
	return New(cfg.World.Seed, layout, field, classifier, logger), nil
}

func New(seed int64, layout world.Layout, field *noise.Field, classifier *biome.Classifier, logger *log.Logger) *Generator {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Generator{
		seed:       seed,
		layout:     layout,
		field:      field,
		classifier: classifier,
		table:      classifier.Table(),
		logger:     logger,
	}
}

func (g *Generator) Table() *biome.Table {
	return g.table
}

func (g *Generator) Layout() world.Layout {
	return g.layout
}

// HeightAt is the terrain height function sampled by Generate.
func (g *Generator) HeightAt(x, z float64) float64 {
	return g.table.Height(g.classifier.Classify(x, z), g.field.Evaluate(x, z))
}

// Generate builds the heightmap of req.Coord.
func (g *Generator) Generate(ctx context.Context, req world.Request) (*world.Heightmap, error) {
	if req.Seed != g.seed {
		return nil, fmt.Errorf("%w: request seed %d does not match generator seed %d",
			world.ErrGenerationFailure, req.Seed, g.seed)
	}
	started := time.Now()

	r := g.layout.Resolution
	c := req.Coord
	baseX, baseZ := c.X*r, c.Z*r
	hm := world.NewHeightmap(g.layout, c)

	lattice := g.classifier.Lattice(
		g.layout.Vertex(baseX-1), g.layout.Vertex(baseZ-1),
		g.layout.Vertex(baseX+r+1), g.layout.Vertex(baseZ+r+1),
	)

	// Heights on a grid padded by one vertex so edge normals see their true
	// neighbours.
	w := r + 3
	padded := make([]float64, w*w)
	for pj := 0; pj < w; pj++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: chunk %v: %w", world.ErrGenerationFailure, c, err)
		}
		z := g.layout.Vertex(baseZ + pj - 1)
		for pi := 0; pi < w; pi++ {
			x := g.layout.Vertex(baseX + pi - 1)
			h := g.table.Height(lattice.Classify(x, z), g.field.Evaluate(x, z))
			if math.IsNaN(h) || math.IsInf(h, 0) {
				return nil, fmt.Errorf("%w: chunk %v: non-finite height at (%.2f,%.2f)",
					world.ErrGenerationFailure, c, x, z)
			}
			padded[pj*w+pi] = h
		}
	}

	n := r + 1
	step := g.layout.Step()
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			p := (j+1)*w + (i + 1)
			hm.Heights[j*n+i] = padded[p]
			hm.Normals[j*n+i] = surfaceNormal(padded[p-1], padded[p+1], padded[p-w], padded[p+w], step)
		}
	}

	for j := 0; j < r; j++ {
		z := (g.layout.Vertex(baseZ+j) + g.layout.Vertex(baseZ+j+1)) / 2
		for i := 0; i < r; i++ {
			x := (g.layout.Vertex(baseX+i) + g.layout.Vertex(baseX+i+1)) / 2
			hm.Biomes[j*r+i] = lattice.Classify(x, z)
		}
	}

	hm.Props = g.scatter(req, hm)
	g.logger.Printf("chunk %v generated in %s (%d props)", c, time.Since(started).Round(time.Microsecond), len(hm.Props))
	return hm, nil
}

// surfaceNormal crosses the central-difference tangents along z and x.
// A degenerate result falls back to straight up.
func surfaceNormal(left, right, down, up, step float64) mgl32.Vec3 {
	tx := mgl64.Vec3{2 * step, right - left, 0}
	tz := mgl64.Vec3{0, up - down, 2 * step}
	normal := tz.Cross(tx)
	if normal.Len() < 1e-12 {
		return mgl32.Vec3{0, 1, 0}
	}
	normal = normal.Normalize()
	return mgl32.Vec3{float32(normal.X()), float32(normal.Y()), float32(normal.Z())}
}
