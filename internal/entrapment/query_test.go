package entrapment

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/talgya/confinement/internal/agents"
	"github.com/talgya/confinement/internal/world"
)

func TestBuildQueryUsesFirstUsable(t *testing.T) {
	reg := agents.NewRegistry()
	a := agent(7)

	broken := reg.Place(agents.SlotBed, 11, a.ID)
	broken.Destroyed = true
	reg.Place(agents.SlotBed, 12, a.ID)
	reg.Place(agents.SlotBed, 13, 0) // communal, after own
	reg.Place(agents.SlotMessTable, 20, 8)
	off := reg.Place(agents.SlotToilet, 30, 0)
	off.Disabled = true
	reg.Place(agents.SlotToilet, 31, 0)
	reg.Place(agents.SlotToilet, 32, a.ID)

	q, ok := BuildQuery(a, reg)
	if !ok {
		t.Fatal("navigable agent should yield a query")
	}
	want := Query{
		SleepCell:       12,
		MealCell:        world.NoCell, // table belongs to someone else
		SanitationCells: []world.Cell{32, 31},
	}
	if diff := cmp.Diff(want, q); diff != "" {
		t.Fatalf("query mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildQuerySkipsIncapacitated(t *testing.T) {
	a := agent(1)
	a.Health = agents.IncapacitatedHealth / 2
	if _, ok := BuildQuery(a, agents.NewRegistry()); ok {
		t.Fatal("incapacitated agent must not be queried")
	}
	a = agent(2)
	a.Alive = false
	if _, ok := BuildQuery(a, agents.NewRegistry()); ok {
		t.Fatal("dead agent must not be queried")
	}
}
