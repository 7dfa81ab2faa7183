// Package persistence provides SQLite-based colony state storage.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/confinement/internal/agents"
	"github.com/talgya/confinement/internal/engine"
	"github.com/talgya/confinement/internal/entrapment"
)

// keepSnapshots is how many compressed snapshots are retained.
const keepSnapshots = 5

// DB wraps a SQLite connection for colony state persistence.
type DB struct {
	conn  *sqlx.DB
	runID string
}

// Open opens or creates a SQLite database at the given path. Each Open
// starts a new run ID that tags everything written through it.
func Open(path string) (*DB, error) {
	return open(path, true)
}

// Inspect opens an existing database for reporting without starting a run.
func Inspect(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return open(path, false)
}

func open(path string, register bool) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer; keeps :memory: databases on a single connection too.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, runID: uuid.NewString()}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if !register {
		return db, nil
	}
	if err := db.SaveMeta("run_id", db.runID); err != nil {
		conn.Close()
		return nil, fmt.Errorf("save run id: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// RunID identifies this process's writes.
func (db *DB) RunID() string {
	return db.runID
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		health REAL NOT NULL,
		cell INTEGER NOT NULL,
		fall_ticks INTEGER NOT NULL,
		born_tick INTEGER NOT NULL,
		alive INTEGER NOT NULL,
		spawned INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS statuses (
		agent_id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		reachable INTEGER NOT NULL,
		can_reach_sleep INTEGER NOT NULL,
		can_reach_meal INTEGER NOT NULL,
		can_reach_sanitation INTEGER NOT NULL,
		last_shown TEXT NOT NULL,
		updated_tick INTEGER NOT NULL,
		evaluations INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seq INTEGER NOT NULL,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS notices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		agent_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		visible INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		raw_size INTEGER NOT NULL,
		data BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_notices_agent ON notices(agent_id);
	CREATE INDEX IF NOT EXISTS idx_agents_alive ON agents(alive);
	`
	_, err := db.conn.Exec(schema)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SaveAgents writes all agents to the database (full replace).
func (db *DB) SaveAgents(agentList []agents.Agent) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM agents"); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO agents
		(id, name, health, cell, fall_ticks, born_tick, alive, spawned)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range agentList {
		_, err := stmt.Exec(
			uint64(a.ID), a.Name, a.Health, int(a.Position), a.FallTicks,
			a.BornTick, boolInt(a.Alive), boolInt(a.Spawned),
		)
		if err != nil {
			return fmt.Errorf("insert agent %d: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

// SaveStatuses writes the checker's cached statuses (full replace).
func (db *DB) SaveStatuses(statuses []entrapment.Status) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM statuses"); err != nil {
		return err
	}
	for _, st := range statuses {
		_, err := tx.Exec(`INSERT INTO statuses
			(agent_id, name, reachable, can_reach_sleep, can_reach_meal,
			 can_reach_sanitation, last_shown, updated_tick, evaluations)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uint64(st.Agent), st.Name, st.Reachable,
			boolInt(st.CanReachSleep), boolInt(st.CanReachMeal), boolInt(st.CanReachSanitation),
			st.LastShown.String(), st.UpdatedTick, st.Evaluations,
		)
		if err != nil {
			return fmt.Errorf("insert status %d: %w", st.Agent, err)
		}
	}

	return tx.Commit()
}

// SaveEvents appends the events this run has not saved yet, tracked by
// sequence number. Notification events are also recorded as notices.
func (db *DB) SaveEvents(events []engine.Event) error {
	key := "events_through:" + db.runID
	through, err := db.metaUint(key)
	if err != nil {
		return err
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	last := through
	for _, e := range events {
		if e.Seq <= through {
			continue
		}
		_, err := tx.Exec(
			"INSERT INTO events (seq, tick, description, category) VALUES (?, ?, ?, ?)",
			e.Seq, e.Tick, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
		if n, ok := noticeFromEvent(e); ok {
			_, err := tx.Exec(
				"INSERT INTO notices (run_id, tick, agent_id, name, kind, visible) VALUES (?, ?, ?, ?, ?, ?)",
				db.runID, n.Tick, uint64(n.AgentID), n.Name, n.Kind.String(), boolInt(n.Visible),
			)
			if err != nil {
				return err
			}
		}
		last = max(last, e.Seq)
	}
	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, strconv.FormatUint(last, 10),
	); err != nil {
		return err
	}

	return tx.Commit()
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// metaUint reads a numeric meta value; a missing key reads as 0.
func (db *DB) metaUint(key string) (uint64, error) {
	v, err := db.GetMeta(key)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(v, 10, 64)
}

// HasWorldState reports whether a snapshot has been saved before.
func (db *DB) HasWorldState() bool {
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM snapshots"); err != nil {
		return false
	}
	return n > 0
}

// SaveWorldState performs a full save of the colony. The simulation is read
// under its read lock; the database writes happen after it is released.
func (db *DB) SaveWorldState(sim *engine.Simulation) error {
	sim.RLock()
	snap := CaptureSnapshot(sim)
	statuses := sim.Checker.Snapshot().Statuses
	events := append([]engine.Event(nil), sim.Events...)
	sim.RUnlock()

	slog.Info("saving world state", "tick", snap.Tick, "agents", len(snap.Agents), "statuses", len(statuses))

	if err := db.SaveAgents(snap.Agents); err != nil {
		return fmt.Errorf("save agents: %w", err)
	}
	if err := db.SaveStatuses(statuses); err != nil {
		return fmt.Errorf("save statuses: %w", err)
	}
	if err := db.SaveEvents(events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	if err := db.SaveSnapshot(snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if err := db.SaveMeta("last_tick", strconv.FormatUint(snap.Tick, 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	slog.Info("world state saved", "tick", snap.Tick, "run_id", db.runID)
	return nil
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT seq, tick, description, category FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}
