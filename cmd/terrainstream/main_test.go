package main

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"terrainstream/internal/config"
	"terrainstream/internal/stream"
	"terrainstream/internal/telemetry"
)

func TestScriptedObserverPaths(t *testing.T) {
	start := time.Now().Add(-2 * time.Second)

	line, err := scriptedObserver("line", 10, 0, start)
	if err != nil {
		t.Fatalf("line: %v", err)
	}
	if x, z := line.Position(); x < 20 || z != 0 {
		t.Fatalf("line observer at (%v,%v), want x >= 20 on the x axis", x, z)
	}

	circle, err := scriptedObserver("circle", 10, 50, start)
	if err != nil {
		t.Fatalf("circle: %v", err)
	}
	x, z := circle.Position()
	if r := math.Hypot(x, z); math.Abs(r-50) > 1e-9 {
		t.Fatalf("circle observer at radius %v, want 50", r)
	}

	for _, bad := range []struct {
		pattern string
		speed   float64
		radius  float64
	}{
		{"zigzag", 1, 1},
		{"line", -1, 1},
		{"circle", 1, 0},
	} {
		if _, err := scriptedObserver(bad.pattern, bad.speed, bad.radius, start); err == nil {
			t.Fatalf("%+v should be rejected", bad)
		}
	}
}

func TestRunStreamsAndJournals(t *testing.T) {
	cfg := config.Default()
	cfg.World.Resolution = 4
	cfg.Streaming.LoadDistance = 1
	cfg.Streaming.UnloadDistance = 2
	cfg.Streaming.TickRate = config.Duration(5 * time.Millisecond)
	cfg.Telemetry.Path = filepath.Join(t.TempDir(), "journal.db")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	still := stream.ObserverFunc(func() (float64, float64) { return 0, 0 })
	if err := run(ctx, cfg, still, 0); err != nil {
		t.Fatalf("run: %v", err)
	}

	journal, err := telemetry.Open(cfg.Telemetry.Path)
	if err != nil {
		t.Fatalf("reopen journal: %v", err)
	}
	defer journal.Close()

	ticks, err := journal.Ticks()
	if err != nil {
		t.Fatalf("ticks: %v", err)
	}
	if len(ticks) == 0 || ticks[0].Requested != 9 {
		t.Fatalf("first tick should request the 3x3 neighbourhood, got %+v", ticks)
	}
	events, err := journal.RecentEvents(100)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) == 0 {
		t.Fatalf("expected ready events in the journal")
	}
}
