// Population dynamics: founding, daily deaths and recovery, arrivals.
package engine

import (
	"fmt"
	"math/rand"

	"github.com/talgya/confinement/internal/agents"
	"github.com/talgya/confinement/internal/config"
	"github.com/talgya/confinement/internal/navigation"
	"github.com/talgya/confinement/internal/world"
)

// minColony is the population floor below which refugees arrive.
const minColony = 5

// SettleColony founds a colony on a fresh map: colonists are spawned in the
// cavern connected to the origin, each with their own bed and mess table,
// plus a few communal toilets.
func SettleColony(m *world.Map, spawner *agents.Spawner, reg *agents.Registry, cfg config.Colony, seed int64) []*agents.Agent {
	rng := rand.New(rand.NewSource(seed + 400))
	hall := homeCavern(navigation.NewNavigator(m), m)
	if len(hall) == 0 {
		return nil
	}

	colonists := spawner.SpawnPopulation(cfg.Population, hall, 0)
	for _, a := range colonists {
		assignQuarters(reg, a, hall, rng)
	}
	for i := 0; i < cfg.CommunalToilets; i++ {
		reg.Place(agents.SlotToilet, hall[rng.Intn(len(hall))], 0)
	}
	return colonists
}

// homeCavern returns the open cells connected to the origin, or every open
// cell when the origin itself is buried.
func homeCavern(nav *navigation.Navigator, m *world.Map) []world.Cell {
	origin := m.CellOf(world.HexCoord{})
	if m.Passable(origin) {
		nav.Flood(origin)
		return nav.Region()
	}
	return m.OpenCells()
}

func assignQuarters(reg *agents.Registry, a *agents.Agent, cells []world.Cell, rng *rand.Rand) {
	reg.Place(agents.SlotBed, cells[rng.Intn(len(cells))], a.ID)
	reg.Place(agents.SlotMessTable, cells[rng.Intn(len(cells))], a.ID)
}

// processPopulation handles daily deaths, recovery and arrivals.
func (s *Simulation) processPopulation(tick uint64) {
	s.pruneDeparted()
	s.processDeaths(tick)
	s.processRecovery()

	alive := 0
	for _, a := range s.Agents {
		if a.Live() {
			alive++
		}
	}
	arrivals := s.colony.ArrivalsPerDay
	if alive+arrivals < minColony {
		arrivals = minColony - alive
	}
	if arrivals > 0 {
		s.addArrivals(tick, arrivals, "arrival")
	}
}

// processDeaths kills colonists who spent the day incapacitated.
func (s *Simulation) processDeaths(tick uint64) {
	for _, a := range s.Agents {
		if !a.Live() || a.Health >= agents.IncapacitatedHealth {
			continue
		}
		a.Alive = false
		a.Health = 0
		s.Stats.Dead++
		released := s.Registry.Release(a.ID)
		s.emit(Event{
			Tick:        tick,
			Description: fmt.Sprintf("%s has died of their injuries", a.Name),
			Category:    "death",
			Meta:        map[string]any{"agent_id": a.ID, "released": released},
		})
	}
}

func (s *Simulation) processRecovery() {
	for _, a := range s.Agents {
		if a.Live() {
			a.Health = min(a.Health+s.colony.RecoveryPerDay, 1)
		}
	}
}

// addArrivals spawns count colonists in the home cavern with fresh quarters.
func (s *Simulation) addArrivals(tick uint64, count int, category string) []*agents.Agent {
	hall := homeCavern(s.Navigator, s.Map)
	if len(hall) == 0 {
		return nil
	}
	arrived := s.Spawner.SpawnPopulation(count, hall, tick)
	for _, a := range arrived {
		assignQuarters(s.Registry, a, hall, s.rng)
		s.addAgent(a)
	}
	s.Stats.Arrivals += len(arrived)
	s.emit(Event{
		Tick:        tick,
		Description: fmt.Sprintf("%d new colonists arrive", len(arrived)),
		Category:    category,
		Meta:        map[string]any{"count": len(arrived)},
	})
	return arrived
}

// pruneDeparted drops dead and removed colonists from the roster once the
// checker has purged them, so per-tick loops only walk the colony. Their
// history stays in the event log and the notices table.
func (s *Simulation) pruneDeparted() int {
	kept := s.Agents[:0]
	pruned := 0
	for _, a := range s.Agents {
		if a.Live() {
			kept = append(kept, a)
			continue
		}
		if _, cached := s.Checker.Status(a.ID); cached {
			kept = append(kept, a)
			continue
		}
		delete(s.AgentIndex, a.ID)
		pruned++
	}
	clear(s.Agents[len(kept):])
	s.Agents = kept
	if pruned > 0 {
		s.log.Debug("pruned departed colonists", "count", pruned, "remaining", len(kept))
	}
	return pruned
}

// addAgent registers a new agent in all indexes.
func (s *Simulation) addAgent(a *agents.Agent) {
	s.Agents = append(s.Agents, a)
	s.AgentIndex[a.ID] = a
}
