package main

import (
	"context"
	"flag"
	"log"
	"os"

	"terrainstream/internal/config"
	"terrainstream/internal/preview"
	"terrainstream/internal/terrain"
	"terrainstream/internal/world"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "path to terrain configuration file (JSON or YAML)")
		minX    = flag.Int("minx", -2, "first chunk X")
		minZ    = flag.Int("minz", -2, "first chunk Z")
		maxX    = flag.Int("maxx", 2, "last chunk X")
		maxZ    = flag.Int("maxz", 2, "last chunk Z")
		scale   = flag.Int("scale", 2, "pixel upscale factor")
		output  = flag.String("out", "terrain.png", "output PNG path")
		seed    = flag.Int64("seed", 0, "override the configured world seed (0 keeps it)")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *seed != 0 {
		cfg.World.Seed = *seed
	}

	logger := log.New(os.Stdout, "terrainpreview ", log.LstdFlags)
	gen, err := terrain.NewGenerator(cfg, logger)
	if err != nil {
		log.Fatalf("initialise generator: %v", err)
	}

	lo := world.ChunkCoord{X: *minX, Z: *minZ}
	hi := world.ChunkCoord{X: *maxX, Z: *maxZ}
	img, err := preview.RenderRegion(context.Background(), gen, cfg.World.Seed, gen.Table(), lo, hi)
	if err != nil {
		log.Fatalf("render region: %v", err)
	}
	if err := preview.Save(preview.Upscale(img, *scale), *output); err != nil {
		log.Fatalf("save preview: %v", err)
	}
	logger.Printf("wrote %s (%v..%v, seed %d)", *output, lo, hi, cfg.World.Seed)
}
