// Package navgrid samples streamed terrain into a coarse walkability grid for
// agents. Unresolved terrain stays Unknown instead of reading as height zero.
package navgrid

import (
	"errors"
	"fmt"
	"math"

	"terrainstream/internal/biome"
	"terrainstream/internal/world"
)

// SpawnClearance lifts spawned agents above the ground.
const SpawnClearance = 0.5

// Terrain is the read side of the chunk store.
type Terrain interface {
	HeightAt(x, z float64) (world.Height, error)
	BiomeAt(x, z float64) (biome.Blend, error)
}

type Cell uint8

const (
	CellUnknown Cell = iota
	CellWalkable
	CellBlocked
)

func (c Cell) String() string {
	switch c {
	case CellWalkable:
		return "walkable"
	case CellBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Profile constrains what an agent may traverse.
type Profile struct {
	// MaxSlope is the steepest rise per unit of horizontal run.
	MaxSlope float64
	// Avoid lists biomes the agent refuses to enter when dominant.
	Avoid []biome.ID
}

func DefaultProfile() Profile {
	return Profile{MaxSlope: 1}
}

func (p Profile) avoids(id biome.ID) bool {
	for _, a := range p.Avoid {
		if a == id {
			return true
		}
	}
	return false
}

// Grid is a row-major walkability grid; row j lies at MinZ + j*Spacing.
type Grid struct {
	MinX, MinZ float64
	Spacing    float64
	Width      int
	Depth      int
	Cells      []Cell
	Heights    []float64
	Fallback   int // cells that read a permanently failed chunk's fallback surface
}

func (g *Grid) At(i, j int) Cell {
	if i < 0 || j < 0 || i >= g.Width || j >= g.Depth {
		return CellUnknown
	}
	return g.Cells[j*g.Width+i]
}

// Count returns how many cells hold c.
func (g *Grid) Count(c Cell) int {
	n := 0
	for _, cell := range g.Cells {
		if cell == c {
			n++
		}
	}
	return n
}

// Sample queries t at every grid point.
func Sample(t Terrain, minX, minZ, spacing float64, width, depth int, p Profile) (*Grid, error) {
	if spacing <= 0 || width < 1 || depth < 1 {
		return nil, fmt.Errorf("navgrid: invalid grid %dx%d at spacing %v", width, depth, spacing)
	}
	g := &Grid{
		MinX:    minX,
		MinZ:    minZ,
		Spacing: spacing,
		Width:   width,
		Depth:   depth,
		Cells:   make([]Cell, width*depth),
		Heights: make([]float64, width*depth),
	}

	for j := 0; j < depth; j++ {
		for i := 0; i < width; i++ {
			x := minX + float64(i)*spacing
			z := minZ + float64(j)*spacing
			idx := j*width + i

			h, err := t.HeightAt(x, z)
			if errors.Is(err, world.ErrNotLoaded) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("navgrid: height at (%.2f,%.2f): %w", x, z, err)
			}
			g.Heights[idx] = h.Value
			g.Cells[idx] = CellWalkable
			if h.Fallback {
				g.Fallback++
			}

			b, err := t.BiomeAt(x, z)
			if err == nil && p.avoids(b.Dominant) {
				g.Cells[idx] = CellBlocked
			}
		}
	}

	// A cell is blocked when the climb to any resolved 4-neighbour is too steep.
	blocked := make([]bool, len(g.Cells))
	for j := 0; j < depth; j++ {
		for i := 0; i < width; i++ {
			idx := j*width + i
			if g.Cells[idx] != CellWalkable {
				continue
			}
			for _, d := range [...][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				ni, nj := i+d[0], j+d[1]
				if g.At(ni, nj) == CellUnknown {
					continue
				}
				if math.Abs(g.Heights[nj*width+ni]-g.Heights[idx])/spacing > p.MaxSlope {
					blocked[idx] = true
					break
				}
			}
		}
	}
	for idx, b := range blocked {
		if b {
			g.Cells[idx] = CellBlocked
		}
	}
	return g, nil
}

// SpawnHeight returns the elevation at which to place an agent at (x, z).
// It fails with world.ErrNotLoaded until the terrain there is resolved.
func SpawnHeight(t Terrain, x, z float64) (float64, error) {
	h, err := t.HeightAt(x, z)
	if err != nil {
		return 0, fmt.Errorf("spawn at (%.2f,%.2f): %w", x, z, err)
	}
	return h.Value + SpawnClearance, nil
}
