package preview

import (
	"context"
	"image/color"
	"image/png"
	"os"
	"testing"

	"terrainstream/internal/biome"
	"terrainstream/internal/config"
	"terrainstream/internal/world"
)

var layout = world.Layout{ChunkSize: 64, Resolution: 8}

func testTable(t *testing.T) *biome.Table {
	t.Helper()
	table, err := biome.NewTable(config.DefaultBiomes())
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	return table
}

func TestRenderChunkShadesBiomeColour(t *testing.T) {
	table := testTable(t)
	hm := world.FlatHeightmap(layout, world.ChunkCoord{X: 1, Z: 2}, 0, 0)
	img := RenderChunk(hm, table)

	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 8 {
		t.Fatalf("unexpected bounds %v", b)
	}
	def, _ := table.Get(0)
	got := img.NRGBAAt(3, 3)
	if got.R > def.Color.R || got.G > def.Color.G || got.B > def.Color.B {
		t.Fatalf("shading brightened the base colour: %v vs %v", got, def.Color)
	}
	if got == (color.NRGBA{A: 255}) {
		t.Fatalf("flat lit terrain should not render black")
	}
	if img.NRGBAAt(0, 0) != img.NRGBAAt(7, 7) {
		t.Fatalf("flat single-biome chunk should render uniformly")
	}
}

func TestRenderRegionStitchesChunks(t *testing.T) {
	table := testTable(t)
	gen := world.GeneratorFunc(func(ctx context.Context, req world.Request) (*world.Heightmap, error) {
		id := biome.ID(0)
		if req.Coord.X > 0 {
			id = 3
		}
		return world.FlatHeightmap(layout, req.Coord, 0, id), nil
	})

	img, err := RenderRegion(context.Background(), gen, 42, table, world.ChunkCoord{X: 0, Z: -1}, world.ChunkCoord{X: 1, Z: 0})
	if err != nil {
		t.Fatalf("render region: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 16 {
		t.Fatalf("unexpected bounds %v", b)
	}
	if img.NRGBAAt(2, 2) == img.NRGBAAt(12, 2) {
		t.Fatalf("chunks with different biomes rendered identically")
	}
	if _, err := RenderRegion(context.Background(), gen, 42, table, world.ChunkCoord{X: 1}, world.ChunkCoord{X: 0}); err == nil {
		t.Fatalf("inverted region should fail")
	}
}

func TestSaveChunkPreviewWritesPNG(t *testing.T) {
	table := testTable(t)
	hm := world.FlatHeightmap(layout, world.ChunkCoord{X: -2, Z: 5}, 0, 1)

	path, err := SaveChunkPreview(hm, table, t.TempDir(), 4)
	if err != nil {
		t.Fatalf("save preview: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open preview: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 32 {
		t.Fatalf("upscaled preview bounds %v, want 32x32", b)
	}
}
