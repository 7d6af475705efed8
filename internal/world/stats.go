package world

import (
	"sync/atomic"
	"time"
)

// storeMetrics accumulates counters readable from any goroutine.
type storeMetrics struct {
	states        [stateCount]atomic.Int64
	generated     atomic.Int64
	failures      atomic.Int64
	retries       atomic.Int64
	permanent     atomic.Int64
	removed       atomic.Int64
	staleDropped  atomic.Int64
	residentBytes atomic.Int64
	generateTime  atomic.Int64
}

// Stats is a point-in-time copy of the store counters.
type Stats struct {
	Tracked       int
	Generating    int
	Ready         int
	Failed        int
	Unloading     int
	Queued        int
	InFlight      int
	Generated     int64
	Failures      int64
	Retries       int64
	Permanent     int64
	Removed       int64
	StaleDropped  int64
	ResidentBytes int64
	// MeanGenerate is the average wall time of successful generations.
	MeanGenerate time.Duration
}

func (m *storeMetrics) move(from, to State) {
	m.states[from].Add(-1)
	m.states[to].Add(1)
}

func (m *storeMetrics) snapshot() Stats {
	s := Stats{
		Generating:    int(m.states[StateGenerating].Load()),
		Ready:         int(m.states[StateReady].Load()),
		Failed:        int(m.states[StateFailed].Load()),
		Unloading:     int(m.states[StateUnloading].Load()),
		Generated:     m.generated.Load(),
		Failures:      m.failures.Load(),
		Retries:       m.retries.Load(),
		Permanent:     m.permanent.Load(),
		Removed:       m.removed.Load(),
		StaleDropped:  m.staleDropped.Load(),
		ResidentBytes: m.residentBytes.Load(),
	}
	s.Tracked = s.Generating + s.Ready + s.Failed + s.Unloading + int(m.states[StateUnloaded].Load())
	if s.Generated > 0 {
		s.MeanGenerate = time.Duration(m.generateTime.Load() / s.Generated)
	}
	return s
}
