// Package stream keeps the set of loaded chunks centred on a moving observer.
package stream

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"terrainstream/internal/config"
	"terrainstream/internal/world"
)

// Observer reports the world position the stream follows.
type Observer interface {
	Position() (x, z float64)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func() (x, z float64)

func (f ObserverFunc) Position() (float64, float64) {
	return f()
}

type Options struct {
	LoadDistance   int
	UnloadDistance int
	Logger         *log.Logger
}

func OptionsFromConfig(cfg config.StreamingConfig, logger *log.Logger) Options {
	return Options{
		LoadDistance:   cfg.LoadDistance,
		UnloadDistance: cfg.UnloadDistance,
		Logger:         logger,
	}
}

// TickReport summarises one scheduler tick.
type TickReport struct {
	Center     world.ChunkCoord
	Moved      bool
	Completed  int
	Requested  []world.ChunkCoord
	Unloaded   []world.ChunkCoord
	Dispatched int
}

// Scheduler decides which chunks to load and unload each tick. It is the
// single owner of its store: Tick and Run must not run concurrently.
type Scheduler struct {
	store  *world.Store
	opts   Options
	logger *log.Logger

	center    world.ChunkCoord
	hasCenter bool
}

func New(store *world.Store, opts Options) (*Scheduler, error) {
	if store == nil {
		return nil, fmt.Errorf("stream: scheduler needs a store")
	}
	if opts.LoadDistance < 0 || opts.UnloadDistance <= opts.LoadDistance {
		return nil, fmt.Errorf("%w: unload distance %d must exceed load distance %d",
			config.ErrInvalidConfiguration, opts.UnloadDistance, opts.LoadDistance)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Scheduler{store: store, opts: opts, logger: logger}, nil
}

// Desired lists every chunk within Chebyshev distance of center, nearest
// first, ties ordered by z then x.
func Desired(center world.ChunkCoord, distance int) []world.ChunkCoord {
	if distance < 0 {
		return nil
	}
	side := 2*distance + 1
	out := make([]world.ChunkCoord, 0, side*side)
	for dz := -distance; dz <= distance; dz++ {
		for dx := -distance; dx <= distance; dx++ {
			out = append(out, world.ChunkCoord{X: center.X + dx, Z: center.Z + dz})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return world.Chebyshev(out[i], center) < world.Chebyshev(out[j], center)
	})
	return out
}

// Tick applies finished work, then loads chunks within the load distance of
// the observer at (x, z) and unloads tracked chunks beyond the unload
// distance. Chunks still generating are revisited on later ticks.
func (s *Scheduler) Tick(now time.Time, x, z float64) TickReport {
	report := TickReport{Completed: s.store.Drain(now)}

	center := s.store.Layout().ChunkOf(x, z)
	report.Center = center
	report.Moved = !s.hasCenter || center != s.center
	s.center, s.hasCenter = center, true

	for _, c := range Desired(center, s.opts.LoadDistance) {
		if s.store.RequestLoad(c) {
			report.Requested = append(report.Requested, c)
		}
	}
	for _, c := range s.store.Coords() {
		if world.Chebyshev(c, center) > s.opts.UnloadDistance && s.store.RequestUnload(c) {
			report.Unloaded = append(report.Unloaded, c)
		}
	}
	report.Dispatched = s.store.Dispatch()

	if report.Moved {
		st := s.store.Stats()
		s.logger.Printf("observer entered chunk %v: %d requested, %d unloaded, %d ready, %s resident",
			center, len(report.Requested), len(report.Unloaded), st.Ready, humanize.Bytes(uint64(max(st.ResidentBytes, 0))))
	}
	return report
}

// Run ticks at interval, following observer, until ctx is cancelled. onTick,
// when set, sees every report on the scheduler goroutine. On cancellation Run
// closes the store and returns once every in-flight generation has returned.
func (s *Scheduler) Run(ctx context.Context, observer Observer, interval time.Duration, onTick func(TickReport)) error {
	if interval <= 0 {
		return fmt.Errorf("stream: tick interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	step := func(now time.Time) {
		x, z := observer.Position()
		report := s.Tick(now, x, z)
		if onTick != nil {
			onTick(report)
		}
	}

	step(time.Now())
	for {
		select {
		case <-ctx.Done():
			if err := s.store.Close(); err != nil {
				s.logger.Printf("closing chunk store: %v", err)
			}
			return ctx.Err()
		case now := <-ticker.C:
			step(now)
		}
	}
}
