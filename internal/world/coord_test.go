package world

import (
	"math"
	"testing"

	"terrainstream/internal/biome"
)

func TestLayoutChunkOfHandlesNegativeCoordinates(t *testing.T) {
	layout := Layout{ChunkSize: 64, Resolution: 32}
	tests := []struct {
		x, z float64
		want ChunkCoord
	}{
		{0, 0, ChunkCoord{0, 0}},
		{63.999, 64, ChunkCoord{0, 1}},
		{-0.001, -64, ChunkCoord{-1, -1}},
		{-64.5, 130, ChunkCoord{-2, 2}},
	}
	for _, tt := range tests {
		if got := layout.ChunkOf(tt.x, tt.z); got != tt.want {
			t.Fatalf("ChunkOf(%v,%v) = %v, want %v", tt.x, tt.z, got, tt.want)
		}
	}
}

func TestLayoutSharedEdgesAreIdentical(t *testing.T) {
	layout := Layout{ChunkSize: 100, Resolution: 3}
	for cx := -5; cx <= 5; cx++ {
		left := NewHeightmap(layout, ChunkCoord{X: cx})
		right := NewHeightmap(layout, ChunkCoord{X: cx + 1})
		edge := left.OriginX + float64(layout.Resolution)*left.Step
		if got := layout.Vertex((cx+1)*layout.Resolution); got != right.OriginX {
			t.Fatalf("vertex index and origin disagree for chunk %d: %v vs %v", cx+1, got, right.OriginX)
		}
		if math.Abs(edge-right.OriginX) > 1e-9 {
			t.Fatalf("chunk %d edge %v does not meet neighbour origin %v", cx, edge, right.OriginX)
		}
	}
}

func TestChebyshev(t *testing.T) {
	if d := Chebyshev(ChunkCoord{0, 0}, ChunkCoord{3, -5}); d != 5 {
		t.Fatalf("distance = %d, want 5", d)
	}
	if d := Chebyshev(ChunkCoord{-2, 4}, ChunkCoord{-2, 4}); d != 0 {
		t.Fatalf("distance = %d, want 0", d)
	}
}

func TestChunkSeedVariesPerChunk(t *testing.T) {
	seen := map[int64]ChunkCoord{}
	for x := -8; x <= 8; x++ {
		for z := -8; z <= 8; z++ {
			c := ChunkCoord{X: x, Z: z}
			seed := ChunkSeed(42, c)
			if prev, dup := seen[seed]; dup {
				t.Fatalf("chunks %v and %v share sub-seed %d", prev, c, seed)
			}
			seen[seed] = c
			if ChunkSeed(42, c) != seed {
				t.Fatalf("sub-seed for %v is not stable", c)
			}
		}
	}
	if ChunkSeed(42, ChunkCoord{1, 2}) == ChunkSeed(43, ChunkCoord{1, 2}) {
		t.Fatalf("world seed should change the sub-seed")
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateUnloaded, StateGenerating, true},
		{StateGenerating, StateReady, true},
		{StateGenerating, StateFailed, true},
		{StateFailed, StateUnloaded, true},
		{StateFailed, StateUnloading, true},
		{StateReady, StateUnloading, true},
		{StateReady, StateGenerating, false},
		{StateGenerating, StateUnloading, false},
		{StateUnloading, StateReady, false},
		{StateUnloaded, StateReady, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Fatalf("CanTransition(%v,%v) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestFlatHeightmapIsLevel(t *testing.T) {
	hm := FlatHeightmap(Layout{ChunkSize: 64, Resolution: 8}, ChunkCoord{X: -3, Z: 2}, 12.5, 4)
	for _, x := range []float64{-192, -170.3, -129} {
		if got := hm.Sample(x, 150); got != 12.5 {
			t.Fatalf("flat sample at x=%v = %v", x, got)
		}
	}
	if b := hm.BiomeAt(-150, 140); b.Dominant != biome.ID(4) || b.Sum() != 1 {
		t.Fatalf("unexpected fallback biome %v", b)
	}
	if n := hm.Normal(3, 3); n.Y() != 1 {
		t.Fatalf("flat normal = %v, want up", n)
	}
}
