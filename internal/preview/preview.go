// Package preview renders heightmaps to PNG images for inspection.
package preview

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/draw"

	"terrainstream/internal/biome"
	"terrainstream/internal/world"
)

const ambientLight = 0.2

var (
	background = color.NRGBA{R: 10, G: 10, B: 18, A: 255}
	sun        = mgl32.Vec3{-0.4, 0.8, -0.45}.Normalize()
)

// RenderChunk draws one pixel per grid cell: the cell's blended biome colour
// lit by its averaged normal.
func RenderChunk(hm *world.Heightmap, table *biome.Table) *image.NRGBA {
	r := hm.Resolution
	img := image.NewNRGBA(image.Rect(0, 0, r, r))
	for j := 0; j < r; j++ {
		for i := 0; i < r; i++ {
			normal := hm.Normal(i, j).Add(hm.Normal(i+1, j)).Add(hm.Normal(i, j+1)).Add(hm.Normal(i+1, j+1))
			img.SetNRGBA(i, j, shade(table.Color(hm.Biome(i, j)), normal))
		}
	}
	return img
}

func shade(base color.NRGBA, normal mgl32.Vec3) color.NRGBA {
	light := float32(0)
	if normal.Len() > 0 {
		light = max(0, normal.Normalize().Dot(sun))
	}
	intensity := ambientLight + (1-ambientLight)*light
	scale := func(c uint8) uint8 {
		return uint8(min(255, float32(c)*intensity))
	}
	return color.NRGBA{R: scale(base.R), G: scale(base.G), B: scale(base.B), A: 255}
}

// Upscale enlarges img by an integer factor without smoothing.
func Upscale(img image.Image, factor int) *image.NRGBA {
	if factor < 1 {
		factor = 1
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// RenderRegion generates every chunk in the inclusive rectangle [lo, hi] and
// stitches their renders, z growing downwards.
func RenderRegion(ctx context.Context, gen world.Generator, seed int64, table *biome.Table, lo, hi world.ChunkCoord) (*image.NRGBA, error) {
	if hi.X < lo.X || hi.Z < lo.Z {
		return nil, fmt.Errorf("preview: empty region %v..%v", lo, hi)
	}
	var img *image.NRGBA
	for cz := lo.Z; cz <= hi.Z; cz++ {
		for cx := lo.X; cx <= hi.X; cx++ {
			c := world.ChunkCoord{X: cx, Z: cz}
			hm, err := gen.Generate(ctx, world.Request{Seed: seed, Coord: c, Attempt: 1})
			if err != nil {
				return nil, fmt.Errorf("preview: generate %v: %w", c, err)
			}
			r := hm.Resolution
			if img == nil {
				img = image.NewNRGBA(image.Rect(0, 0, (hi.X-lo.X+1)*r, (hi.Z-lo.Z+1)*r))
				draw.Draw(img, img.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)
			}
			at := image.Pt((cx-lo.X)*r, (cz-lo.Z)*r)
			tile := RenderChunk(hm, table)
			draw.Draw(img, tile.Bounds().Add(at), tile, image.Point{}, draw.Src)
		}
	}
	return img, nil
}

// SaveChunkPreview writes chunk_<x>_<z>.png for hm into outputDir and returns its path.
func SaveChunkPreview(hm *world.Heightmap, table *biome.Table, outputDir string, factor int) (string, error) {
	if hm == nil {
		return "", fmt.Errorf("heightmap is nil")
	}
	path := filepath.Join(outputDir, fmt.Sprintf("chunk_%d_%d.png", hm.Coord.X, hm.Coord.Z))
	return path, Save(Upscale(RenderChunk(hm, table), factor), path)
}

// Save encodes img as PNG at path, creating parent directories.
func Save(img image.Image, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create preview dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create preview: %w", err)
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("encode preview: %w", err)
	}
	return nil
}
