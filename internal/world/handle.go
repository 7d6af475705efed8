package world

import (
	"sync"

	"terrainstream/internal/worker"
)

// resident is a published chunk payload together with its reader refcount.
type resident struct {
	coord    ChunkCoord
	data     *Heightmap
	fallback bool
	notify   *worker.Queue[ChunkCoord]

	mu       sync.Mutex
	refs     int
	retiring bool
}

func newResident(coord ChunkCoord, data *Heightmap, fallback bool, notify *worker.Queue[ChunkCoord]) *resident {
	return &resident{coord: coord, data: data, fallback: fallback, notify: notify}
}

func (r *resident) acquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.retiring {
		return false
	}
	r.refs++
	return true
}

func (r *resident) release() {
	r.mu.Lock()
	r.refs--
	last := r.refs == 0 && r.retiring
	r.mu.Unlock()
	if last {
		r.notify.Enqueue(r.coord)
	}
}

// retire blocks new acquisitions and reports whether the payload is already idle.
func (r *resident) retire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retiring = true
	return r.refs == 0
}

func (r *resident) holders() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refs
}

// Handle is a counted read reference to a chunk payload. The payload stays
// resident until every handle is released, even if the chunk is unloaded in
// the meantime.
type Handle struct {
	r    *resident
	once sync.Once
}

func (h *Handle) Coord() ChunkCoord {
	return h.r.coord
}

// Heightmap returns the chunk payload. Callers must not modify it.
func (h *Handle) Heightmap() *Heightmap {
	return h.r.data
}

// Fallback reports whether the payload is the flat surface of a permanently
// failed chunk.
func (h *Handle) Fallback() bool {
	return h.r.fallback
}

// Release drops the reference. Further calls are no-ops.
func (h *Handle) Release() {
	h.once.Do(h.r.release)
}
