package world

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"terrainstream/internal/biome"
	"terrainstream/internal/config"
	"terrainstream/internal/worker"
)

// Generator produces the content of one chunk. Implementations must be pure
// functions of the request and safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Heightmap, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (*Heightmap, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (*Heightmap, error) {
	return f(ctx, req)
}

// Request is one generation job.
type Request struct {
	Seed    int64
	Coord   ChunkCoord
	Attempt int
	Ticket  uuid.UUID
}

// Options configure a Store.
type Options struct {
	Seed             int64
	Layout           Layout
	FallbackHeight   float64
	FallbackBiome    biome.ID
	Workers          int
	RetryLimit       int
	RetryBackoff     time.Duration
	MaxRetryBackoff  time.Duration
	CompletionBuffer int
	Logger           *log.Logger
}

// OptionsFromConfig maps the world and streaming sections onto store options.
func OptionsFromConfig(cfg *config.Config, logger *log.Logger) Options {
	fallbackBiome := biome.ID(0)
	if len(cfg.Biomes.Table) > 0 {
		fallbackBiome = biome.ID(cfg.Biomes.Table[0].ID)
		for _, b := range cfg.Biomes.Table[1:] {
			fallbackBiome = min(fallbackBiome, biome.ID(b.ID))
		}
	}
	return Options{
		Seed:             cfg.World.Seed,
		Layout:           Layout{ChunkSize: cfg.World.ChunkSize, Resolution: cfg.World.Resolution},
		FallbackHeight:   cfg.World.FallbackHeight,
		FallbackBiome:    fallbackBiome,
		Workers:          cfg.Streaming.Workers,
		RetryLimit:       cfg.Streaming.RetryLimit,
		RetryBackoff:     cfg.Streaming.RetryBackoff.Duration(),
		MaxRetryBackoff:  cfg.Streaming.MaxRetryBackoff.Duration(),
		CompletionBuffer: cfg.Streaming.CompletionBuffer,
		Logger:           logger,
	}
}

// Height is a terrain query result. Fallback is set when the chunk failed
// permanently and Value is the configured fallback height.
type Height struct {
	Value    float64
	Fallback bool
}

type entry struct {
	coord     ChunkCoord
	state     State
	ticket    uuid.UUID
	attempts  int
	retryAt   time.Time
	permanent bool
	lastErr   error
	resident  *resident
}

type completion struct {
	coord  ChunkCoord
	ticket uuid.UUID
	data   *Heightmap
	err    error
	took   time.Duration
}

// view is the immutable read-side map published after each visible change.
type view struct {
	chunks map[ChunkCoord]*resident
}

// Store owns the lifecycle of every chunk.
//
// RequestLoad, RequestUnload, CompleteGeneration, FailGeneration, Drain,
// Dispatch, Subscribe, Status and Coords belong to a single owner goroutine.
// HeightAt, BiomeAt, Acquire and Stats may be called from anywhere.
type Store struct {
	opts      Options
	generator Generator
	logger    *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	pool   *worker.Pool

	entries   map[ChunkCoord]*entry
	listeners []Listener

	completions chan completion
	released    *worker.Queue[ChunkCoord]
	view        atomic.Pointer[view]
	metrics     storeMetrics
	closeOnce   sync.Once
}

func NewStore(ctx context.Context, opts Options, generator Generator) (*Store, error) {
	if generator == nil {
		return nil, errors.New("world: store needs a generator")
	}
	if opts.Layout.ChunkSize <= 0 || opts.Layout.Resolution < 1 {
		return nil, fmt.Errorf("%w: chunk size %v and resolution %d must be positive",
			config.ErrInvalidConfiguration, opts.Layout.ChunkSize, opts.Layout.Resolution)
	}
	if opts.Workers < 1 {
		return nil, fmt.Errorf("%w: store needs at least one worker", config.ErrInvalidConfiguration)
	}
	if opts.RetryLimit < 0 || opts.RetryBackoff < 0 {
		return nil, fmt.Errorf("%w: retry limit and backoff cannot be negative", config.ErrInvalidConfiguration)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Store{
		opts:        opts,
		generator:   generator,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		pool:        worker.NewPool(ctx, opts.Workers),
		entries:     make(map[ChunkCoord]*entry),
		completions: make(chan completion, max(opts.CompletionBuffer, opts.Workers)),
		released:    worker.NewQueue[ChunkCoord](),
	}
	s.view.Store(&view{chunks: map[ChunkCoord]*resident{}})
	return s, nil
}

func (s *Store) Layout() Layout {
	return s.opts.Layout
}

// Subscribe registers a listener for lifecycle events.
func (s *Store) Subscribe(l Listener) {
	s.listeners = append(s.listeners, l)
}

// RequestLoad starts generation of an untracked chunk. It reports false when
// the chunk is already tracked in any state.
func (s *Store) RequestLoad(coord ChunkCoord) bool {
	if _, ok := s.entries[coord]; ok {
		return false
	}
	e := &entry{coord: coord, state: StateUnloaded}
	s.entries[coord] = e
	s.metrics.states[StateUnloaded].Add(1)
	s.startGeneration(e)
	return true
}

func (s *Store) startGeneration(e *entry) {
	s.setState(e, StateGenerating)
	e.ticket = uuid.New()
	req := Request{
		Seed:    s.opts.Seed,
		Coord:   e.coord,
		Attempt: e.attempts + 1,
		Ticket:  e.ticket,
	}
	s.pool.Submit(s.task(req))
}

func (s *Store) task(req Request) worker.Task {
	return func(ctx context.Context) {
		started := time.Now()
		data, err := s.runGenerator(ctx, req)
		c := completion{
			coord:  req.Coord,
			ticket: req.Ticket,
			data:   data,
			err:    err,
			took:   time.Since(started),
		}
		select {
		case s.completions <- c:
		case <-ctx.Done():
		}
	}
}

func (s *Store) runGenerator(ctx context.Context, req Request) (data *Heightmap, err error) {
	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = fmt.Errorf("%w: chunk %v panicked: %v", ErrGenerationFailure, req.Coord, r)
		}
	}()
	data, err = s.generator.Generate(ctx, req)
	if err != nil {
		if !errors.Is(err, ErrGenerationFailure) {
			err = fmt.Errorf("%w: chunk %v: %w", ErrGenerationFailure, req.Coord, err)
		}
		return nil, err
	}
	if err := s.checkPayload(req.Coord, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Store) checkPayload(coord ChunkCoord, data *Heightmap) error {
	if data == nil {
		return fmt.Errorf("%w: chunk %v: generator returned no heightmap", ErrGenerationFailure, coord)
	}
	r := s.opts.Layout.Resolution
	if data.Resolution != r || len(data.Heights) != (r+1)*(r+1) ||
		len(data.Normals) != (r+1)*(r+1) || len(data.Biomes) != r*r {
		return fmt.Errorf("%w: chunk %v: heightmap grids do not match resolution %d",
			ErrGenerationFailure, coord, r)
	}
	return nil
}

// Dispatch hands queued generation jobs to free workers in FIFO order.
func (s *Store) Dispatch() int {
	return s.pool.Dispatch()
}

// Drain applies finished generations, finalises unloads whose last handle
// was released and restarts failed chunks whose backoff elapsed. It returns
// the number of completions applied.
func (s *Store) Drain(now time.Time) int {
	applied := 0
drain:
	for {
		select {
		case c := <-s.completions:
			s.apply(c, now)
			applied++
		default:
			break drain
		}
	}

	for _, coord := range s.released.Drain(0) {
		if e, ok := s.entries[coord]; ok && e.state == StateUnloading && e.resident.holders() == 0 {
			s.remove(e)
		}
	}

	s.retryDue(now)
	return applied
}

func (s *Store) apply(c completion, now time.Time) {
	e, ok := s.entries[c.coord]
	if !ok || e.state != StateGenerating || e.ticket != c.ticket {
		s.metrics.staleDropped.Add(1)
		s.logger.Printf("dropping stale completion for chunk %v (ticket %s)", c.coord, c.ticket)
		return
	}
	if c.err != nil {
		s.fail(e, c.err, now)
		return
	}
	s.metrics.generateTime.Add(int64(c.took))
	s.complete(e, c.data)
}

// CompleteGeneration moves a generating chunk to Ready with data.
func (s *Store) CompleteGeneration(coord ChunkCoord, data *Heightmap) error {
	e, ok := s.entries[coord]
	if !ok || e.state != StateGenerating {
		return fmt.Errorf("complete chunk %v: chunk is not generating", coord)
	}
	if err := s.checkPayload(coord, data); err != nil {
		return err
	}
	s.complete(e, data)
	return nil
}

func (s *Store) complete(e *entry, data *Heightmap) {
	attempt := e.attempts + 1
	e.resident = newResident(e.coord, data, false, s.released)
	e.attempts = 0
	e.lastErr = nil
	s.setState(e, StateReady)

	size := data.SizeBytes()
	s.metrics.generated.Add(1)
	s.metrics.residentBytes.Add(size)
	s.publish(e.coord, e.resident)
	s.logger.Printf("chunk %v ready on attempt %d (%s resident)", e.coord, attempt, humanize.Bytes(uint64(size)))
	s.emit(Event{Kind: EventReady, Coord: e.coord, Attempt: attempt})
}

// FailGeneration records a failed attempt. The chunk retries after an
// exponential backoff from now, or becomes permanently failed once the retry
// limit is spent.
func (s *Store) FailGeneration(coord ChunkCoord, cause error, now time.Time) error {
	e, ok := s.entries[coord]
	if !ok || e.state != StateGenerating {
		return fmt.Errorf("fail chunk %v: chunk is not generating", coord)
	}
	s.fail(e, cause, now)
	return nil
}

func (s *Store) fail(e *entry, cause error, now time.Time) {
	if !errors.Is(cause, ErrGenerationFailure) {
		cause = fmt.Errorf("%w: %w", ErrGenerationFailure, cause)
	}
	e.attempts++
	e.lastErr = cause
	s.setState(e, StateFailed)
	s.metrics.failures.Add(1)

	if e.attempts > s.opts.RetryLimit {
		e.permanent = true
		data := FlatHeightmap(s.opts.Layout, e.coord, s.opts.FallbackHeight, s.opts.FallbackBiome)
		e.resident = newResident(e.coord, data, true, s.released)
		s.metrics.permanent.Add(1)
		s.metrics.residentBytes.Add(data.SizeBytes())
		s.publish(e.coord, e.resident)
		s.logger.Printf("chunk %v failed permanently after %d attempts, serving fallback height %.2f: %v",
			e.coord, e.attempts, s.opts.FallbackHeight, cause)
		s.emit(Event{
			Kind:      EventFailed,
			Coord:     e.coord,
			Attempt:   e.attempts,
			Permanent: true,
			Err:       fmt.Errorf("%w: %w", ErrPermanentFailure, cause),
		})
		return
	}

	delay := s.backoff(e.attempts)
	e.retryAt = now.Add(delay)
	s.logger.Printf("chunk %v attempt %d failed, retrying in %s: %v", e.coord, e.attempts, delay, cause)
	s.emit(Event{Kind: EventFailed, Coord: e.coord, Attempt: e.attempts, Err: cause})
}

func (s *Store) backoff(attempt int) time.Duration {
	delay := s.opts.RetryBackoff
	ceiling := s.opts.MaxRetryBackoff
	for i := 1; i < attempt; i++ {
		if ceiling > 0 && delay >= ceiling {
			break
		}
		if delay > math.MaxInt64/2 {
			delay = math.MaxInt64
			break
		}
		delay *= 2
	}
	if ceiling > 0 && delay > ceiling {
		delay = ceiling
	}
	return delay
}

func (s *Store) retryDue(now time.Time) {
	var due []*entry
	for _, e := range s.entries {
		if e.state == StateFailed && !e.permanent && !now.Before(e.retryAt) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return coordLess(due[i].coord, due[j].coord) })
	for _, e := range due {
		s.setState(e, StateUnloaded)
		s.metrics.retries.Add(1)
		s.startGeneration(e)
	}
}

// RequestUnload retires a Ready or Failed chunk. Reads see ErrNotLoaded at
// once; the payload is freed when the last handle is released. Generating
// chunks are left alone and reported as false.
func (s *Store) RequestUnload(coord ChunkCoord) bool {
	e, ok := s.entries[coord]
	if !ok {
		return false
	}
	if e.state != StateReady && e.state != StateFailed {
		return false
	}
	s.setState(e, StateUnloading)
	s.unpublish(coord)
	s.emit(Event{Kind: EventUnloading, Coord: coord})

	if e.resident == nil || e.resident.retire() {
		s.remove(e)
		return true
	}
	s.logger.Printf("chunk %v unloading, waiting on %d handle(s)", coord, e.resident.holders())
	return true
}

func (s *Store) remove(e *entry) {
	delete(s.entries, e.coord)
	s.metrics.states[e.state].Add(-1)
	if e.resident != nil {
		s.metrics.residentBytes.Add(-e.resident.data.SizeBytes())
	}
	s.metrics.removed.Add(1)
	s.emit(Event{Kind: EventRemoved, Coord: e.coord})
}

func (s *Store) setState(e *entry, to State) {
	if !CanTransition(e.state, to) {
		panic(fmt.Sprintf("world: illegal transition %v -> %v for chunk %v", e.state, to, e.coord))
	}
	s.metrics.move(e.state, to)
	e.state = to
}

func (s *Store) publish(coord ChunkCoord, r *resident) {
	old := s.view.Load().chunks
	next := make(map[ChunkCoord]*resident, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[coord] = r
	s.view.Store(&view{chunks: next})
}

func (s *Store) unpublish(coord ChunkCoord) {
	old := s.view.Load().chunks
	if _, ok := old[coord]; !ok {
		return
	}
	next := make(map[ChunkCoord]*resident, len(old))
	for k, v := range old {
		if k != coord {
			next[k] = v
		}
	}
	s.view.Store(&view{chunks: next})
}

func (s *Store) emit(ev Event) {
	for _, l := range s.listeners {
		l(ev)
	}
}

// Status returns the lifecycle state of coord and whether it is tracked.
func (s *Store) Status(coord ChunkCoord) (State, bool) {
	e, ok := s.entries[coord]
	if !ok {
		return StateUnloaded, false
	}
	return e.state, true
}

// Coords lists every tracked chunk, ordered by z then x.
func (s *Store) Coords() []ChunkCoord {
	out := make([]ChunkCoord, 0, len(s.entries))
	for c := range s.entries {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return coordLess(out[i], out[j]) })
	return out
}

// LastError returns the most recent generation error recorded for coord.
func (s *Store) LastError(coord ChunkCoord) error {
	if e, ok := s.entries[coord]; ok {
		return e.lastErr
	}
	return nil
}

// Acquire returns a counted handle to a published chunk.
func (s *Store) Acquire(coord ChunkCoord) (*Handle, error) {
	r := s.view.Load().chunks[coord]
	if r == nil || !r.acquire() {
		return nil, ErrNotLoaded
	}
	return &Handle{r: r}, nil
}

// HeightAt interpolates the terrain height at world position (x, z).
func (s *Store) HeightAt(x, z float64) (Height, error) {
	r := s.view.Load().chunks[s.opts.Layout.ChunkOf(x, z)]
	if r == nil {
		return Height{}, ErrNotLoaded
	}
	return Height{Value: r.data.Sample(x, z), Fallback: r.fallback}, nil
}

// BiomeAt returns the biome blend of the grid cell containing (x, z).
func (s *Store) BiomeAt(x, z float64) (biome.Blend, error) {
	r := s.view.Load().chunks[s.opts.Layout.ChunkOf(x, z)]
	if r == nil {
		return biome.Blend{}, ErrNotLoaded
	}
	return r.data.BiomeAt(x, z), nil
}

func (s *Store) Stats() Stats {
	st := s.metrics.snapshot()
	st.Queued = s.pool.Pending()
	st.InFlight = s.pool.InFlight()
	return st
}

// Close stops dispatching, cancels running generations and waits for the
// workers to return.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.pool.Wait()
	})
	return err
}

func coordLess(a, b ChunkCoord) bool {
	if a.Z != b.Z {
		return a.Z < b.Z
	}
	return a.X < b.X
}
