package stream

import (
	"context"
	"errors"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"terrainstream/internal/world"
)

var layout = world.Layout{ChunkSize: 64, Resolution: 32}

func noopLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func flatGenerator() world.GeneratorFunc {
	return func(ctx context.Context, req world.Request) (*world.Heightmap, error) {
		return world.FlatHeightmap(layout, req.Coord, 1, 0), nil
	}
}

func newTestScheduler(t *testing.T, gen world.Generator) (*Scheduler, *world.Store) {
	t.Helper()
	store, err := world.NewStore(context.Background(), world.Options{
		Seed:         42,
		Layout:       layout,
		Workers:      4,
		RetryLimit:   1,
		RetryBackoff: time.Millisecond,
		Logger:       noopLogger(),
	}, gen)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	s, err := New(store, Options{LoadDistance: 3, UnloadDistance: 5, Logger: noopLogger()})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return s, store
}

// settle ticks at (x, z) until nothing is queued or generating.
func settle(t *testing.T, s *Scheduler, store *world.Store, x, z float64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		s.Tick(time.Now(), x, z)
		st := store.Stats()
		if st.Generating == 0 && st.Queued == 0 && st.InFlight == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("stream did not settle: %+v", st)
		}
		time.Sleep(time.Millisecond)
	}
}

func chunkCenter(cx, cz int) (float64, float64) {
	return float64(cx)*layout.ChunkSize + layout.ChunkSize/2, float64(cz)*layout.ChunkSize + layout.ChunkSize/2
}

func TestDesiredOrdersNearestFirst(t *testing.T) {
	center := world.ChunkCoord{X: 2, Z: -1}
	got := Desired(center, 3)
	if len(got) != 49 {
		t.Fatalf("got %d chunks, want 49", len(got))
	}
	if got[0] != center {
		t.Fatalf("first chunk = %v, want the centre", got[0])
	}
	for i := 1; i < len(got); i++ {
		if world.Chebyshev(got[i-1], center) > world.Chebyshev(got[i], center) {
			t.Fatalf("chunks out of distance order at %d: %v then %v", i, got[i-1], got[i])
		}
	}
	if Desired(center, -1) != nil {
		t.Fatalf("negative distance should yield nothing")
	}
}

func TestObserverMovementLoadsAndUnloadsWithHysteresis(t *testing.T) {
	s, store := newTestScheduler(t, flatGenerator())

	x, z := chunkCenter(0, 0)
	first := s.Tick(time.Now(), x, z)
	if len(first.Requested) != 49 {
		t.Fatalf("initial tick requested %d chunks, want 49", len(first.Requested))
	}
	settle(t, s, store, x, z)
	if st := store.Stats(); st.Ready != 49 {
		t.Fatalf("ready = %d, want 49", st.Ready)
	}

	x, z = chunkCenter(4, 0)
	moved := s.Tick(time.Now(), x, z)

	if len(moved.Unloaded) != 14 {
		t.Fatalf("unloaded %d chunks, want 14: %v", len(moved.Unloaded), moved.Unloaded)
	}
	for _, c := range moved.Unloaded {
		if c.X > -2 {
			t.Fatalf("chunk %v is within the unload distance but was unloaded", c)
		}
	}
	if len(moved.Requested) != 28 {
		t.Fatalf("requested %d chunks, want 28: %v", len(moved.Requested), moved.Requested)
	}
	for _, c := range moved.Requested {
		if c.X < 4 || c.X > 7 {
			t.Fatalf("unexpected request %v", c)
		}
	}
	if st, ok := store.Status(world.ChunkCoord{X: 2, Z: 0}); !ok || st != world.StateReady {
		t.Fatalf("chunk (2,0) should stay ready, got %v tracked=%v", st, ok)
	}
	if _, ok := store.Status(world.ChunkCoord{X: -2, Z: 0}); ok {
		t.Fatalf("chunk (-2,0) should be gone")
	}
	if _, err := store.HeightAt(-2*64+1, 1); !errors.Is(err, world.ErrNotLoaded) {
		t.Fatalf("unloaded chunk should read as not loaded, got %v", err)
	}
}

func TestOscillationAcrossBoundaryDoesNotThrash(t *testing.T) {
	s, store := newTestScheduler(t, flatGenerator())

	x0, z0 := chunkCenter(0, 0)
	x1, z1 := chunkCenter(1, 0)
	settle(t, s, store, x0, z0)
	settle(t, s, store, x1, z1)

	for i := 0; i < 10; i++ {
		x, z := x0, z0
		if i%2 == 1 {
			x, z = x1, z1
		}
		r := s.Tick(time.Now(), x, z)
		if len(r.Requested) != 0 || len(r.Unloaded) != 0 {
			t.Fatalf("oscillation %d caused churn: requested %v unloaded %v", i, r.Requested, r.Unloaded)
		}
	}
}

func TestGeneratingChunkIsUnloadedAfterItFinishes(t *testing.T) {
	gate := make(chan struct{})
	gen := world.GeneratorFunc(func(ctx context.Context, req world.Request) (*world.Heightmap, error) {
		if req.Coord.X < 0 {
			<-gate
		}
		return world.FlatHeightmap(layout, req.Coord, 1, 0), nil
	})
	s, store := newTestScheduler(t, gen)

	x, z := chunkCenter(0, 0)
	s.Tick(time.Now(), x, z)

	x, z = chunkCenter(9, 0)
	r := s.Tick(time.Now(), x, z)
	for _, c := range r.Unloaded {
		if c.X < 0 {
			t.Fatalf("chunk %v was unloaded while generating", c)
		}
	}

	close(gate)
	settle(t, s, store, x, z)
	s.Tick(time.Now(), x, z)
	for _, c := range store.Coords() {
		if world.Chebyshev(c, world.ChunkCoord{X: 9, Z: 0}) > 5 {
			t.Fatalf("chunk %v outside the unload distance survived", c)
		}
	}
}

func TestRunFollowsObserverUntilCancelled(t *testing.T) {
	s, store := newTestScheduler(t, flatGenerator())

	var ticks atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())
	observer := ObserverFunc(func() (float64, float64) { return chunkCenter(0, 0) })

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, observer, time.Millisecond, func(TickReport) {
			if ticks.Add(1) >= 50 {
				cancel()
			}
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("run returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not stop")
	}
	if st := store.Stats(); st.Tracked != 49 {
		t.Fatalf("tracked = %d, want 49", st.Tracked)
	}
}

func TestRunWaitsForInFlightGenerations(t *testing.T) {
	var started, finished atomic.Int64
	blocking := world.GeneratorFunc(func(ctx context.Context, req world.Request) (*world.Heightmap, error) {
		started.Add(1)
		<-ctx.Done()
		finished.Add(1)
		return nil, ctx.Err()
	})
	s, store := newTestScheduler(t, blocking)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	observer := ObserverFunc(func() (float64, float64) { return chunkCenter(0, 0) })

	var ticks atomic.Int64
	err := s.Run(ctx, observer, time.Millisecond, func(TickReport) {
		if ticks.Add(1) >= 5 && started.Load() > 0 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("run returned %v, want context.Canceled", err)
	}
	if started.Load() == 0 || finished.Load() != started.Load() {
		t.Fatalf("run returned with generations still running: started=%d finished=%d",
			started.Load(), finished.Load())
	}
	if st := store.Stats(); st.InFlight != 0 {
		t.Fatalf("in-flight = %d after run, want 0", st.InFlight)
	}
}

func TestNewRejectsInvertedDistances(t *testing.T) {
	store, err := world.NewStore(context.Background(), world.Options{Layout: layout, Workers: 1}, flatGenerator())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()
	if _, err := New(store, Options{LoadDistance: 3, UnloadDistance: 3}); err == nil {
		t.Fatalf("equal distances should be rejected")
	}
}
