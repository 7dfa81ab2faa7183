package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/talgya/confinement/internal/agents"
	"github.com/talgya/confinement/internal/config"
	"github.com/talgya/confinement/internal/engine"
	"github.com/talgya/confinement/internal/entrapment"
	"github.com/talgya/confinement/internal/persistence"
	"github.com/talgya/confinement/internal/world"
)

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colony.db")
	db, err := persistence.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	m := world.NewMap(6)
	for _, c := range m.Within(m.CellOf(world.HexCoord{}), 4) {
		m.SetTerrain(c, world.TerrainOpen)
	}
	spawner := agents.NewSpawner(9)
	var pop []*agents.Agent
	for _, at := range []world.HexCoord{{}, {Q: 3}, {Q: -3}, {R: 3}, {R: -3}} {
		pop = append(pop, spawner.Spawn(m.CellOf(at), 0))
	}
	sim, err := engine.NewSimulation(m, pop, agents.NewRegistry(), spawner, engine.Options{
		Seed:       9,
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
	if err := db.SaveWorldState(sim); err != nil {
		t.Fatalf("SaveWorldState: %v", err)
	}
	db.Close()

	ro, err := persistence.Inspect(path)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	defer ro.Close()

	var buf bytes.Buffer
	if err := writeReport(&buf, ro, 3, 5); err != nil {
		t.Fatalf("writeReport: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Last save: tick 12",
		"5 colonists evaluated",
		"confined shown for " + pop[0].Name,
		"Snapshots:",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
	// Only the three least-reaching colonists are listed.
	if n := strings.Count(out, " reach "); n != 3 {
		t.Fatalf("status lines=%d want=3:\n%s", n, out)
	}
}

func TestInspectMissingDatabase(t *testing.T) {
	if _, err := persistence.Inspect(filepath.Join(t.TempDir(), "absent.db")); err == nil {
		t.Fatalf("expected error for a missing database")
	}
}
