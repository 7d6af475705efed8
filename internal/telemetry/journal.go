// Package telemetry journals chunk lifecycle events and per-tick streaming
// statistics to SQLite so a session can be inspected after the fact.
package telemetry

import (
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"terrainstream/internal/stream"
	"terrainstream/internal/world"
)

// EventRecord is one row of chunk_events.
type EventRecord struct {
	Tick      int64  `db:"tick"`
	Kind      string `db:"kind"`
	ChunkX    int    `db:"chunk_x"`
	ChunkZ    int    `db:"chunk_z"`
	Attempt   int    `db:"attempt"`
	Permanent bool   `db:"permanent"`
	Error     string `db:"error"`
}

// TickRecord is one row of tick_stats.
type TickRecord struct {
	Tick          int64 `db:"tick"`
	At            int64 `db:"at_unix_ms"`
	CenterX       int   `db:"center_x"`
	CenterZ       int   `db:"center_z"`
	Requested     int   `db:"requested"`
	Unloaded      int   `db:"unloaded"`
	Completed     int   `db:"completed"`
	Ready         int   `db:"ready"`
	Generating    int   `db:"generating"`
	Failed        int   `db:"failed"`
	ResidentBytes int64 `db:"resident_bytes"`
}

// Journal buffers store events between ticks and writes them together with
// the tick's statistics in one transaction.
type Journal struct {
	conn *sqlx.DB

	mu      sync.Mutex
	pending []EventRecord
	tick    int64
}

// Open opens or creates the journal database at path.
func Open(path string) (*Journal, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	j := &Journal{conn: conn}
	if err := j.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return j, nil
}

func (j *Journal) Close() error {
	return j.conn.Close()
}

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunk_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		kind TEXT NOT NULL,
		chunk_x INTEGER NOT NULL,
		chunk_z INTEGER NOT NULL,
		attempt INTEGER NOT NULL,
		permanent INTEGER NOT NULL,
		error TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tick_stats (
		tick INTEGER PRIMARY KEY,
		at_unix_ms INTEGER NOT NULL,
		center_x INTEGER NOT NULL,
		center_z INTEGER NOT NULL,
		requested INTEGER NOT NULL,
		unloaded INTEGER NOT NULL,
		completed INTEGER NOT NULL,
		ready INTEGER NOT NULL,
		generating INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		resident_bytes INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunk_events_tick ON chunk_events(tick);
	CREATE INDEX IF NOT EXISTS idx_chunk_events_coord ON chunk_events(chunk_x, chunk_z);
	`
	_, err := j.conn.Exec(schema)
	return err
}

// Observe records a store event against the current tick. It satisfies
// world.Listener.
func (j *Journal) Observe(ev world.Event) {
	rec := EventRecord{
		Kind:      ev.Kind.String(),
		ChunkX:    ev.Coord.X,
		ChunkZ:    ev.Coord.Z,
		Attempt:   ev.Attempt,
		Permanent: ev.Permanent,
	}
	if ev.Err != nil {
		rec.Error = ev.Err.Error()
	}

	j.mu.Lock()
	rec.Tick = j.tick
	j.pending = append(j.pending, rec)
	j.mu.Unlock()
}

// Flush writes the buffered events and one tick_stats row, then advances the
// tick counter.
func (j *Journal) Flush(at time.Time, report stream.TickReport, stats world.Stats) error {
	j.mu.Lock()
	events := j.pending
	j.pending = nil
	tick := j.tick
	j.tick++
	j.mu.Unlock()

	tx, err := j.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.NamedExec(`INSERT INTO chunk_events
			(tick, kind, chunk_x, chunk_z, attempt, permanent, error)
			VALUES (:tick, :kind, :chunk_x, :chunk_z, :attempt, :permanent, :error)`, e)
		if err != nil {
			return fmt.Errorf("insert chunk event: %w", err)
		}
	}

	row := TickRecord{
		Tick:          tick,
		At:            at.UnixMilli(),
		CenterX:       report.Center.X,
		CenterZ:       report.Center.Z,
		Requested:     len(report.Requested),
		Unloaded:      len(report.Unloaded),
		Completed:     report.Completed,
		Ready:         stats.Ready,
		Generating:    stats.Generating,
		Failed:        stats.Failed,
		ResidentBytes: stats.ResidentBytes,
	}
	_, err = tx.NamedExec(`INSERT OR REPLACE INTO tick_stats
		(tick, at_unix_ms, center_x, center_z, requested, unloaded, completed, ready, generating, failed, resident_bytes)
		VALUES (:tick, :at_unix_ms, :center_x, :center_z, :requested, :unloaded, :completed, :ready, :generating, :failed, :resident_bytes)`, row)
	if err != nil {
		return fmt.Errorf("insert tick stats: %w", err)
	}

	return tx.Commit()
}

// RecentEvents returns the most recent limit events, newest first.
func (j *Journal) RecentEvents(limit int) ([]EventRecord, error) {
	var events []EventRecord
	err := j.conn.Select(&events,
		"SELECT tick, kind, chunk_x, chunk_z, attempt, permanent, error FROM chunk_events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}

// Ticks returns every recorded tick in order.
func (j *Journal) Ticks() ([]TickRecord, error) {
	var ticks []TickRecord
	err := j.conn.Select(&ticks, "SELECT * FROM tick_stats ORDER BY tick")
	return ticks, err
}
