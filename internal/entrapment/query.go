package entrapment

import (
	"github.com/talgya/confinement/internal/agents"
	"github.com/talgya/confinement/internal/world"
)

// Assignments resolves which buildings an agent may use.
type Assignments interface {
	Preferred(owner agents.AgentID, slot agents.Slot) []*agents.Assignable
}

// Oracle answers reachability questions for one agent. ok is false when the
// agent cannot be evaluated right now.
type Oracle interface {
	QueryReachability(a *agents.Agent, q Query) (r Reach, ok bool)
}

// BuildQuery collects the cells of the agent's usable bed, mess table and
// toilets. Bed and table reduce to the first usable building; every usable
// toilet is kept. ok is false when the agent cannot navigate at all, which
// is a skip rather than an error.
func BuildQuery(a *agents.Agent, assigned Assignments) (Query, bool) {
	if !a.CanNavigate() {
		return Query{}, false
	}
	return Query{
		SleepCell:       firstUsable(assigned.Preferred(a.ID, agents.SlotBed)),
		MealCell:        firstUsable(assigned.Preferred(a.ID, agents.SlotMessTable)),
		SanitationCells: usableCells(assigned.Preferred(a.ID, agents.SlotToilet)),
	}, true
}

func firstUsable(items []*agents.Assignable) world.Cell {
	for _, item := range items {
		if item.Usable() {
			return item.Cell
		}
	}
	return world.NoCell
}

func usableCells(items []*agents.Assignable) []world.Cell {
	var cells []world.Cell
	for _, item := range items {
		if item.Usable() {
			cells = append(cells, item.Cell)
		}
	}
	return cells
}
