// Package navigation answers reachability questions on the colony map: how
// many cells an agent can walk to, and which of a set of targets it can get
// to.
package navigation

import (
	"slices"

	"github.com/talgya/confinement/internal/agents"
	"github.com/talgya/confinement/internal/entrapment"
	"github.com/talgya/confinement/internal/world"
)

// Navigator flood-fills the map from a start cell. Buffers are reused across
// queries; a visit stamp replaces clearing them each time.
type Navigator struct {
	m *world.Map

	stamp []uint32 // Per-cell stamp of the query that last visited it
	gen   uint32
	queue []world.Cell
}

var _ entrapment.Oracle = (*Navigator)(nil)

// NewNavigator creates a navigator for m.
func NewNavigator(m *world.Map) *Navigator {
	return &Navigator{
		m:     m,
		stamp: make([]uint32, m.CellCount()+1),
		queue: make([]world.Cell, 0, m.CellCount()/4+1),
	}
}

// Flood visits every cell reachable from start through passable cells and
// returns how many there are. The start cell always counts, even when it is
// not passable itself (an agent caught in fresh rock). Reached reports
// results until the next Flood.
func (n *Navigator) Flood(start world.Cell) int {
	n.next()
	n.queue = n.queue[:0]
	if !n.m.Valid(start) {
		return 0
	}

	n.queue = append(n.queue, start)
	n.stamp[start] = n.gen
	for head := 0; head < len(n.queue); head++ {
		for _, nb := range n.m.Neighbors(n.queue[head]) {
			if nb == world.NoCell || n.stamp[nb] == n.gen || !n.m.Passable(nb) {
				continue
			}
			n.stamp[nb] = n.gen
			n.queue = append(n.queue, nb)
		}
	}
	return len(n.queue)
}

// Reached reports whether the last Flood got to cell.
func (n *Navigator) Reached(cell world.Cell) bool {
	return n.m.Valid(cell) && n.stamp[cell] == n.gen
}

// Region returns the cells visited by the last Flood in visiting order.
func (n *Navigator) Region() []world.Cell {
	return slices.Clone(n.queue)
}

// QueryReachability floods from the agent's position and checks the query
// targets. Unassigned targets (NoCell, or no toilets at all) count as
// reachable: there is nothing the agent is cut off from.
func (n *Navigator) QueryReachability(a *agents.Agent, q entrapment.Query) (entrapment.Reach, bool) {
	if !a.CanNavigate() || !n.m.Valid(a.Position) {
		return entrapment.Reach{}, false
	}

	r := entrapment.Reach{Reachable: n.Flood(a.Position)}
	r.CanReachSleep = q.SleepCell == world.NoCell || n.Reached(q.SleepCell)
	r.CanReachMeal = q.MealCell == world.NoCell || n.Reached(q.MealCell)
	r.CanReachSanitation = len(q.SanitationCells) == 0
	for _, c := range q.SanitationCells {
		if n.Reached(c) {
			r.CanReachSanitation = true
			break
		}
	}
	return r, true
}

// Resize rebinds the navigator to a map of a different size.
func (n *Navigator) Resize(m *world.Map) {
	n.m = m
	if need := m.CellCount() + 1; cap(n.stamp) < need {
		n.stamp = make([]uint32, need)
		n.gen = 0
	} else {
		n.stamp = n.stamp[:need]
	}
}

func (n *Navigator) next() {
	n.gen++
	if n.gen == 0 {
		// Wrapped: old stamps could collide.
		clear(n.stamp)
		n.gen = 1
	}
}
