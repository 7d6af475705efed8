package world

import (
	"fmt"
	"math"
)

// ChunkCoord identifies a chunk in global chunk space.
type ChunkCoord struct {
	X int
	Z int
}

func (c ChunkCoord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Z)
}

// Chebyshev returns max(|dx|, |dz|) between two chunk coordinates.
func Chebyshev(a, b ChunkCoord) int {
	return max(absInt(a.X-b.X), absInt(a.Z-b.Z))
}

// ChunkSeed combines the world seed with a chunk coordinate into a per-chunk
// sub-seed for chunk-local randomness.
func ChunkSeed(seed int64, c ChunkCoord) int64 {
	h := uint64(seed) ^ 0x9e3779b97f4a7c15
	h ^= uint64(uint32(c.X)) * 0xbf58476d1ce4e5b9
	h ^= uint64(uint32(c.Z)) << 32
	h = (h ^ (h >> 31)) * 0x94d049bb133111eb
	return int64(h ^ (h >> 29))
}

// Layout fixes the geometry shared by every chunk of a world.
type Layout struct {
	ChunkSize  float64
	Resolution int
}

// Step is the world distance between adjacent grid vertices.
func (l Layout) Step() float64 {
	return l.ChunkSize / float64(l.Resolution)
}

// Vertex returns the world coordinate of global vertex index n. Adjacent
// chunks address their shared edge with the same index, so the edge
// coordinates are bit-identical on both sides.
func (l Layout) Vertex(n int) float64 {
	return float64(n) * l.Step()
}

// Origin returns the world position of vertex (0, 0) of chunk c.
func (l Layout) Origin(c ChunkCoord) (x, z float64) {
	return l.Vertex(c.X * l.Resolution), l.Vertex(c.Z * l.Resolution)
}

// ChunkOf returns the chunk containing world position (x, z).
func (l Layout) ChunkOf(x, z float64) ChunkCoord {
	return ChunkCoord{
		X: int(math.Floor(x / l.ChunkSize)),
		Z: int(math.Floor(z / l.ChunkSize)),
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
