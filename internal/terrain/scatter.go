package terrain

import (
	"github.com/go-gl/mathgl/mgl32"

	"terrainstream/internal/noise"
	"terrainstream/internal/world"
)

const (
	treeChance  = 0.08
	grassChance = 0.25
)

// scatter places vegetation on the chunk from the per-chunk sub-seed. Every
// cell draws the same number of values so placement depends only on the
// seed, the coordinate and the cell's dominant biome.
func (g *Generator) scatter(req world.Request, hm *world.Heightmap) []world.Prop {
	rng := noise.NewRNG(req.Coord.X, req.Coord.Z, world.ChunkSeed(req.Seed, req.Coord))
	r := hm.Resolution
	var props []world.Prop
	for j := 0; j < r; j++ {
		for i := 0; i < r; i++ {
			roll := rng.Float64()
			jx, jz := rng.Float64(), rng.Float64()
			scale := float32(0.8 + 0.4*rng.Float64())

			def, ok := g.table.Get(hm.Biome(i, j).Dominant)
			if !ok {
				continue
			}
			var kind world.PropKind
			switch {
			case roll < def.TreeDensity*treeChance:
				kind = world.PropTree
			case roll < def.TreeDensity*treeChance+def.GrassDensity*grassChance:
				kind = world.PropGrass
			default:
				continue
			}
			x := hm.OriginX + (float64(i)+jx)*hm.Step
			z := hm.OriginZ + (float64(j)+jz)*hm.Step
			props = append(props, world.Prop{
				Kind:  kind,
				Pos:   mgl32.Vec3{float32(x), float32(hm.Sample(x, z)), float32(z)},
				Scale: scale,
			})
		}
	}
	return props
}
