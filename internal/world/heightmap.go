package world

import (
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"

	"terrainstream/internal/biome"
)

type PropKind uint8

const (
	PropTree PropKind = iota + 1
	PropGrass
)

func (k PropKind) String() string {
	switch k {
	case PropTree:
		return "tree"
	case PropGrass:
		return "grass"
	default:
		return "unknown"
	}
}

// Prop is a vegetation instance resting on the terrain surface.
type Prop struct {
	Kind  PropKind
	Pos   mgl32.Vec3
	Scale float32
}

// Heightmap is the generated content of one chunk. It is immutable once
// handed to the store.
//
// Heights and Normals hold (R+1)*(R+1) vertices and Biomes holds R*R cells,
// all row-major with z as the row.
type Heightmap struct {
	Coord      ChunkCoord
	Resolution int
	Step       float64
	OriginX    float64
	OriginZ    float64
	Heights    []float64
	Normals    []mgl32.Vec3
	Biomes     []biome.Blend
	Props      []Prop
}

// NewHeightmap allocates empty grids for chunk c.
func NewHeightmap(layout Layout, c ChunkCoord) *Heightmap {
	r := layout.Resolution
	ox, oz := layout.Origin(c)
	return &Heightmap{
		Coord:      c,
		Resolution: r,
		Step:       layout.Step(),
		OriginX:    ox,
		OriginZ:    oz,
		Heights:    make([]float64, (r+1)*(r+1)),
		Normals:    make([]mgl32.Vec3, (r+1)*(r+1)),
		Biomes:     make([]biome.Blend, r*r),
	}
}

// FlatHeightmap is a level surface at height h made of a single biome.
func FlatHeightmap(layout Layout, c ChunkCoord, h float64, id biome.ID) *Heightmap {
	hm := NewHeightmap(layout, c)
	up := mgl32.Vec3{0, 1, 0}
	for i := range hm.Heights {
		hm.Heights[i] = h
		hm.Normals[i] = up
	}
	pure := biome.Pure(id)
	for i := range hm.Biomes {
		hm.Biomes[i] = pure
	}
	return hm
}

// Vertices is the number of vertices along one edge.
func (h *Heightmap) Vertices() int {
	return h.Resolution + 1
}

func (h *Heightmap) Height(i, j int) float64 {
	return h.Heights[j*(h.Resolution+1)+i]
}

func (h *Heightmap) Normal(i, j int) mgl32.Vec3 {
	return h.Normals[j*(h.Resolution+1)+i]
}

func (h *Heightmap) Biome(i, j int) biome.Blend {
	return h.Biomes[j*h.Resolution+i]
}

// Sample bilinearly interpolates the height at world position (x, z).
// Positions outside the chunk clamp to its edge.
func (h *Heightmap) Sample(x, z float64) float64 {
	u := h.local(x, h.OriginX)
	v := h.local(z, h.OriginZ)
	i0 := min(int(u), h.Resolution-1)
	j0 := min(int(v), h.Resolution-1)
	fx := u - float64(i0)
	fz := v - float64(j0)

	h00 := h.Height(i0, j0)
	h10 := h.Height(i0+1, j0)
	h01 := h.Height(i0, j0+1)
	h11 := h.Height(i0+1, j0+1)
	top := h00 + (h10-h00)*fx
	bottom := h01 + (h11-h01)*fx
	return top + (bottom-top)*fz
}

// BiomeAt returns the blend of the cell containing world position (x, z).
func (h *Heightmap) BiomeAt(x, z float64) biome.Blend {
	i := min(int(h.local(x, h.OriginX)), h.Resolution-1)
	j := min(int(h.local(z, h.OriginZ)), h.Resolution-1)
	return h.Biome(i, j)
}

// local converts a world coordinate into fractional vertex units clamped to [0, R].
func (h *Heightmap) local(w, origin float64) float64 {
	u := (w - origin) / h.Step
	return math.Max(0, math.Min(float64(h.Resolution), u))
}

// SizeBytes estimates the memory held by the heightmap.
func (h *Heightmap) SizeBytes() int64 {
	size := int64(unsafe.Sizeof(*h))
	size += int64(len(h.Heights)) * 8
	size += int64(len(h.Normals)) * int64(unsafe.Sizeof(mgl32.Vec3{}))
	size += int64(len(h.Biomes)) * int64(unsafe.Sizeof(biome.Blend{}))
	for _, b := range h.Biomes {
		size += int64(cap(b.Weights)) * int64(unsafe.Sizeof(biome.Weight{}))
	}
	size += int64(len(h.Props)) * int64(unsafe.Sizeof(Prop{}))
	return size
}
