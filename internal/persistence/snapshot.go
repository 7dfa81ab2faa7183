package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/confinement/internal/agents"
	"github.com/talgya/confinement/internal/engine"
	"github.com/talgya/confinement/internal/world"
)

// ErrNoSnapshot is returned by LoadSnapshot on an empty database.
var ErrNoSnapshot = errors.New("no snapshot saved")

// Snapshot is everything needed to resume a colony: the carved map, the
// population and the buildings. Entrapment statuses are not part of it;
// the checker rebuilds them within one cycle.
type Snapshot struct {
	Version     int                 `json:"version"`
	Tick        uint64              `json:"tick"`
	Radius      int                 `json:"radius"`
	Layout      []byte              `json:"layout"`
	NextAgentID agents.AgentID      `json:"next_agent_id"`
	Agents      []agents.Agent      `json:"agents"`
	Assignables []agents.Assignable `json:"assignables"`
	Stats       engine.SimStats     `json:"stats"`
}

// CaptureSnapshot copies the colony state. The caller holds the
// simulation's read lock.
func CaptureSnapshot(sim *engine.Simulation) Snapshot {
	snap := Snapshot{
		Version:     1,
		Tick:        sim.LastTick,
		Radius:      sim.Map.Radius,
		Layout:      sim.Map.Layout(),
		NextAgentID: sim.Spawner.NextID(),
		Agents:      make([]agents.Agent, 0, len(sim.Agents)),
		Stats:       sim.Stats,
	}
	for _, a := range sim.Agents {
		snap.Agents = append(snap.Agents, *a)
	}
	for _, it := range sim.Registry.All() {
		snap.Assignables = append(snap.Assignables, *it)
	}
	return snap
}

// Map rebuilds the terrain.
func (s Snapshot) Map() (*world.Map, error) {
	m := world.NewMap(s.Radius)
	if err := m.ApplyLayout(s.Layout); err != nil {
		return nil, fmt.Errorf("apply layout: %w", err)
	}
	return m, nil
}

// Population returns fresh agent records.
func (s Snapshot) Population() []*agents.Agent {
	out := make([]*agents.Agent, len(s.Agents))
	for i := range s.Agents {
		a := s.Agents[i]
		out[i] = &a
	}
	return out
}

// Registry rebuilds the building registry.
func (s Snapshot) Registry() *agents.Registry {
	reg := agents.NewRegistry()
	items := make([]*agents.Assignable, len(s.Assignables))
	for i := range s.Assignables {
		it := s.Assignables[i]
		items[i] = &it
	}
	reg.Restore(items)
	return reg
}

// SaveSnapshot stores snap as zstd-compressed JSON and prunes old ones.
func (db *DB) SaveSnapshot(snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	data := enc.EncodeAll(raw, nil)
	enc.Close()

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT INTO snapshots (run_id, tick, raw_size, data) VALUES (?, ?, ?, ?)",
		db.runID, snap.Tick, len(raw), data,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(
		"DELETE FROM snapshots WHERE id NOT IN (SELECT id FROM snapshots ORDER BY id DESC LIMIT ?)",
		keepSnapshots,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadSnapshot returns the newest snapshot.
func (db *DB) LoadSnapshot() (Snapshot, error) {
	var snap Snapshot
	var data []byte
	err := db.conn.Get(&data, "SELECT data FROM snapshots ORDER BY id DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return snap, ErrNoSnapshot
	}
	if err != nil {
		return snap, err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return snap, err
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return snap, fmt.Errorf("decompress snapshot: %w", err)
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return snap, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// SnapshotInfo describes a stored snapshot without decoding it.
type SnapshotInfo struct {
	ID         int64  `db:"id"`
	RunID      string `db:"run_id"`
	Tick       uint64 `db:"tick"`
	RawSize    int64  `db:"raw_size"`
	StoredSize int64  `db:"stored_size"`
}

// Snapshots lists the stored snapshots, newest first.
func (db *DB) Snapshots() ([]SnapshotInfo, error) {
	var out []SnapshotInfo
	err := db.conn.Select(&out,
		"SELECT id, run_id, tick, raw_size, length(data) AS stored_size FROM snapshots ORDER BY id DESC")
	return out, err
}
