package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/confinement/internal/agents"
	"github.com/talgya/confinement/internal/world"
)

// Intervention limits.
const (
	MaxDigRadius      = 4
	MaxSpawnCount     = 20
	MaxCollapseRadius = 4
)

// Outcome describes what a terrain intervention changed.
type Outcome struct {
	Description string
	Cells       int // Cells opened by a dig or sealed by a collapse
}

// Dig opens every non-bedrock cell within radius of a colonist, freeing
// them from whatever pocket they are in.
func (s *Simulation) Dig(id agents.AgentID, radius int) (Outcome, error) {
	if radius < 1 || radius > MaxDigRadius {
		return Outcome{}, fmt.Errorf("dig radius must be 1-%d", MaxDigRadius)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.liveAgent(id)
	if err != nil {
		return Outcome{}, err
	}
	opened := 0
	for _, c := range s.Map.Within(a.Position, radius) {
		if !s.Map.Passable(c) && s.Map.SetTerrain(c, world.TerrainOpen) {
			opened++
		}
	}

	desc := fmt.Sprintf("Miners dig out the caverns around %s (%d cells opened)", a.Name, opened)
	s.emit(Event{
		Tick:        s.LastTick,
		Description: desc,
		Category:    "gardener",
		Meta:        map[string]any{"agent_id": a.ID, "radius": radius, "opened": opened},
	})
	slog.Info("dig intervention", "agent", a.ID, "name", a.Name, "radius", radius, "opened", opened)
	return Outcome{Description: desc, Cells: opened}, nil
}

// Collapse seals the ring of cells at exactly radius around a colonist,
// cutting them off from the rest of the colony.
func (s *Simulation) Collapse(id agents.AgentID, radius int) (Outcome, error) {
	if radius < 1 || radius > MaxCollapseRadius {
		return Outcome{}, fmt.Errorf("collapse radius must be 1-%d", MaxCollapseRadius)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.liveAgent(id)
	if err != nil {
		return Outcome{}, err
	}
	center, _ := s.Map.CoordOf(a.Position)
	var ring []world.Cell
	for _, c := range s.Map.Within(a.Position, radius) {
		coord, _ := s.Map.CoordOf(c)
		if world.Distance(center, coord) == radius {
			ring = append(ring, c)
		}
	}
	sealed := 0
	for _, c := range ring {
		if s.Map.Passable(c) && s.Map.SetTerrain(c, world.TerrainRock) {
			sealed++
		}
	}
	destroyed := s.Registry.DestroyAt(ring)

	desc := fmt.Sprintf("A ring of rock closes around %s (%d cells sealed)", a.Name, sealed)
	s.emit(Event{
		Tick:        s.LastTick,
		Description: desc,
		Category:    "gardener",
		Meta:        map[string]any{"agent_id": a.ID, "radius": radius, "sealed": sealed, "destroyed": destroyed},
	})
	slog.Info("collapse intervention", "agent", a.ID, "radius", radius, "sealed", sealed)
	return Outcome{Description: desc, Cells: sealed}, nil
}

// SpawnColonists brings count new colonists into the home cavern.
func (s *Simulation) SpawnColonists(count int) ([]agents.AgentID, error) {
	if count < 1 || count > MaxSpawnCount {
		return nil, fmt.Errorf("spawn count must be 1-%d", MaxSpawnCount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	arrived := s.addArrivals(s.LastTick, count, "gardener")
	if len(arrived) == 0 {
		return nil, fmt.Errorf("no open cavern to spawn into")
	}
	ids := make([]agents.AgentID, len(arrived))
	for i, a := range arrived {
		ids[i] = a.ID
	}
	s.updateStats()
	return ids, nil
}

// RemoveAgent despawns a colonist and frees their buildings.
func (s *Simulation) RemoveAgent(id agents.AgentID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.liveAgent(id)
	if err != nil {
		return "", err
	}
	a.Spawned = false
	released := s.Registry.Release(a.ID)

	desc := fmt.Sprintf("%s leaves the colony", a.Name)
	s.emit(Event{
		Tick:        s.LastTick,
		Description: desc,
		Category:    "gardener",
		Meta:        map[string]any{"agent_id": a.ID, "released": released},
	})
	s.updateStats()
	return desc, nil
}

func (s *Simulation) liveAgent(id agents.AgentID) (*agents.Agent, error) {
	a, ok := s.AgentIndex[id]
	if !ok {
		return nil, fmt.Errorf("agent %d not found", id)
	}
	if !a.Live() {
		return nil, fmt.Errorf("agent %d is not part of the colony", id)
	}
	return a, nil
}
