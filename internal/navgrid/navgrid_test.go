package navgrid

import (
	"errors"
	"math"
	"testing"

	"terrainstream/internal/biome"
	"terrainstream/internal/world"
)

// fakeTerrain resolves x >= 0 with height f(x, z) and reports the rest as
// not loaded.
type fakeTerrain struct {
	f        func(x, z float64) float64
	biome    biome.ID
	fallback bool
}

func (t fakeTerrain) HeightAt(x, z float64) (world.Height, error) {
	if x < 0 {
		return world.Height{}, world.ErrNotLoaded
	}
	return world.Height{Value: t.f(x, z), Fallback: t.fallback}, nil
}

func (t fakeTerrain) BiomeAt(x, z float64) (biome.Blend, error) {
	if x < 0 {
		return biome.Blend{}, world.ErrNotLoaded
	}
	return biome.Pure(t.biome), nil
}

func TestSampleMarksUnloadedTerrainUnknown(t *testing.T) {
	terrain := fakeTerrain{f: func(x, z float64) float64 { return 2 }}
	g, err := Sample(terrain, -4, 0, 1, 8, 2, DefaultProfile())
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	for j := 0; j < 2; j++ {
		for i := 0; i < 8; i++ {
			want := CellWalkable
			if i < 4 {
				want = CellUnknown
			}
			if got := g.At(i, j); got != want {
				t.Fatalf("cell (%d,%d) = %v, want %v", i, j, got, want)
			}
		}
	}
	if g.Heights[0] != 0 || g.Count(CellUnknown) != 8 {
		t.Fatalf("unknown cells should carry no height: %+v", g)
	}
}

func TestSampleBlocksSteepCells(t *testing.T) {
	cliff := func(x, z float64) float64 {
		if x >= 3 {
			return 10
		}
		return 0
	}
	g, err := Sample(fakeTerrain{f: cliff}, 0, 0, 1, 6, 1, DefaultProfile())
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	want := []Cell{CellWalkable, CellWalkable, CellBlocked, CellBlocked, CellWalkable, CellWalkable}
	for i, w := range want {
		if got := g.At(i, 0); got != w {
			t.Fatalf("cell %d = %v, want %v", i, got, w)
		}
	}
}

func TestSampleAvoidsBiomesAndCountsFallback(t *testing.T) {
	terrain := fakeTerrain{f: func(x, z float64) float64 { return 0 }, biome: 2, fallback: true}
	g, err := Sample(terrain, 0, 0, 2, 3, 3, Profile{MaxSlope: 1, Avoid: []biome.ID{2}})
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if g.Count(CellBlocked) != 9 || g.Fallback != 9 {
		t.Fatalf("blocked=%d fallback=%d, want 9 and 9", g.Count(CellBlocked), g.Fallback)
	}
	if _, err := Sample(terrain, 0, 0, 0, 3, 3, DefaultProfile()); err == nil {
		t.Fatalf("zero spacing should be rejected")
	}
}

func TestSpawnHeightWaitsForTerrain(t *testing.T) {
	terrain := fakeTerrain{f: func(x, z float64) float64 { return x / 2 }}

	if _, err := SpawnHeight(terrain, -1, 0); !errors.Is(err, world.ErrNotLoaded) {
		t.Fatalf("spawn on unloaded terrain should fail with ErrNotLoaded, got %v", err)
	}
	h, err := SpawnHeight(terrain, 8, 3)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if math.Abs(h-4.5) > 1e-12 {
		t.Fatalf("spawn height = %v, want 4.5", h)
	}
}
