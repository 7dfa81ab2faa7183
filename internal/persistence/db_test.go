package persistence

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/talgya/confinement/internal/agents"
	"github.com/talgya/confinement/internal/config"
	"github.com/talgya/confinement/internal/engine"
	"github.com/talgya/confinement/internal/entrapment"
	"github.com/talgya/confinement/internal/world"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "colony.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// confinedColony returns a simulation in which the first colonist has been
// walled in long enough for the notice to show.
func confinedColony(t *testing.T) *engine.Simulation {
	t.Helper()
	m := world.NewMap(8)
	for _, c := range m.Within(m.CellOf(world.HexCoord{}), 4) {
		m.SetTerrain(c, world.TerrainOpen)
	}
	spawner := agents.NewSpawner(3)
	var pop []*agents.Agent
	for _, at := range []world.HexCoord{{}, {Q: 3}, {Q: -3}, {R: 3}, {R: -3}} {
		pop = append(pop, spawner.Spawn(m.CellOf(at), 0))
	}
	reg := agents.NewRegistry()
	reg.Place(agents.SlotToilet, m.CellOf(world.HexCoord{Q: 2, R: 1}), 0)

	sim, err := engine.NewSimulation(m, pop, reg, spawner, engine.Options{
		Seed:       3,
		Colony:     config.Colony{FallTicks: 3},
		Entrapment: entrapment.DefaultConfig(),
	})
	if err != nil {
		t.Fatalf("NewSimulation: %v", err)
	}
	if _, err := sim.Collapse(pop[0].ID, 1); err != nil {
		t.Fatalf("Collapse: %v", err)
	}
	for tick := uint64(1); tick <= 12; tick++ {
		sim.TickMinute(tick, time.Second)
	}
	if !sim.Board.Shown(pop[0].ID, entrapment.StateConfined) {
		t.Fatalf("setup: colonist not confined; summary=%q", sim.Board.Summary())
	}
	return sim
}

func TestSaveAndLoadWorldState(t *testing.T) {
	db := openTestDB(t)
	sim := confinedColony(t)

	if db.HasWorldState() {
		t.Fatal("fresh database reports saved state")
	}
	if err := db.SaveWorldState(sim); err != nil {
		t.Fatalf("SaveWorldState: %v", err)
	}
	if !db.HasWorldState() {
		t.Fatal("HasWorldState=false after save")
	}

	snap, err := db.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if snap.Tick != 12 || snap.NextAgentID != 6 {
		t.Fatalf("tick=%d next=%d want 12 6", snap.Tick, snap.NextAgentID)
	}
	m, err := snap.Map()
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if diff := cmp.Diff(sim.Map.Layout(), m.Layout()); diff != "" {
		t.Fatalf("layout mismatch (-want +got):\n%s", diff)
	}
	var want []agents.Agent
	for _, a := range sim.Agents {
		want = append(want, *a)
	}
	if diff := cmp.Diff(want, snap.Agents); diff != "" {
		t.Fatalf("agents mismatch (-want +got):\n%s", diff)
	}
	if got := snap.Registry().Preferred(1, agents.SlotToilet); len(got) != 1 {
		t.Fatalf("restored toilets=%d want=1", len(got))
	}

	if tick, err := db.GetMeta("last_tick"); err != nil || tick != "12" {
		t.Fatalf("last_tick=%q err=%v", tick, err)
	}
	if id, _ := db.GetMeta("run_id"); id != db.RunID() {
		t.Fatalf("run_id=%q want=%q", id, db.RunID())
	}
}

func TestStatusesAndNotices(t *testing.T) {
	db := openTestDB(t)
	sim := confinedColony(t)
	if err := db.SaveWorldState(sim); err != nil {
		t.Fatalf("SaveWorldState: %v", err)
	}

	statuses, err := db.LatestStatuses()
	if err != nil {
		t.Fatalf("LatestStatuses: %v", err)
	}
	if len(statuses) != 5 {
		t.Fatalf("statuses=%d want=5", len(statuses))
	}
	first := statuses[0]
	if first.AgentID != 1 || first.Reachable != 1 || first.LastShown != "confined" || first.CanReachSanitation {
		t.Fatalf("least-reach status=%+v", first)
	}

	counts, err := db.NoticeCounts()
	if err != nil {
		t.Fatalf("NoticeCounts: %v", err)
	}
	if diff := cmp.Diff(map[string]int{"confined": 1}, counts); diff != "" {
		t.Fatalf("counts mismatch (-want +got):\n%s", diff)
	}
	notices, err := db.RecentNotices(10)
	if err != nil {
		t.Fatalf("RecentNotices: %v", err)
	}
	if len(notices) != 1 || notices[0].AgentID != 1 || !notices[0].Visible || notices[0].RunID != db.RunID() {
		t.Fatalf("notices=%+v", notices)
	}

	// A second save of the same events must not duplicate them.
	before, _ := db.RecentEvents(100)
	if err := db.SaveWorldState(sim); err != nil {
		t.Fatalf("second SaveWorldState: %v", err)
	}
	after, _ := db.RecentEvents(100)
	if len(after) != len(before) {
		t.Fatalf("events after resave=%d want=%d", len(after), len(before))
	}
}

func TestSnapshotsArePruned(t *testing.T) {
	db := openTestDB(t)
	for tick := uint64(1); tick <= keepSnapshots+2; tick++ {
		if err := db.SaveSnapshot(Snapshot{Version: 1, Tick: tick, Radius: 2, Layout: world.NewMap(2).Layout()}); err != nil {
			t.Fatalf("SaveSnapshot: %v", err)
		}
	}
	infos, err := db.Snapshots()
	if err != nil {
		t.Fatalf("Snapshots: %v", err)
	}
	if len(infos) != keepSnapshots || infos[0].Tick != keepSnapshots+2 {
		t.Fatalf("snapshots=%d newest=%d", len(infos), infos[0].Tick)
	}
	if infos[0].StoredSize <= 0 || infos[0].RawSize <= 0 {
		t.Fatalf("sizes not recorded: %+v", infos[0])
	}
}

func TestLoadSnapshotEmpty(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.LoadSnapshot(); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("err=%v want ErrNoSnapshot", err)
	}
}
