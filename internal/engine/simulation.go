// Simulation ties together the colony systems and runs them each tick.
package engine

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/talgya/confinement/internal/agents"
	"github.com/talgya/confinement/internal/config"
	"github.com/talgya/confinement/internal/entrapment"
	"github.com/talgya/confinement/internal/navigation"
	"github.com/talgya/confinement/internal/notify"
	"github.com/talgya/confinement/internal/world"
)

// maxEvents is how many recent events are kept in memory.
const maxEvents = 1000

// Simulation holds the complete colony state. Mutating methods take the
// write lock; readers outside the tick loop wrap their access in
// RLock/RUnlock.
type Simulation struct {
	mu sync.RWMutex

	Map        *world.Map
	Agents     []*agents.Agent
	AgentIndex map[agents.AgentID]*agents.Agent
	Registry   *agents.Registry
	Spawner    *agents.Spawner
	Events     []Event // Most recent last, capped at maxEvents
	LastTick   uint64  // Most recent tick processed
	Stats      SimStats

	Navigator *navigation.Navigator
	Board     *notify.Board
	Checker   *entrapment.Checker

	colony config.Colony
	rng    *rand.Rand
	log    *slog.Logger

	eventSeq uint64

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// Event is a notable occurrence in the colony.
type Event struct {
	Seq         uint64         `json:"seq"` // Assigned on emit, increasing
	Tick        uint64         `json:"tick"`
	Description string         `json:"description"`
	Category    string         `json:"category"` // "notification", "cave_in", "tunnel", "death", "arrival", "gardener"
	Meta        map[string]any `json:"meta,omitempty"`
}

// SimStats tracks aggregate colony statistics.
type SimStats struct {
	Population int `json:"population"`
	Dead       int `json:"dead"`
	Arrivals   int `json:"arrivals"`
	CaveIns    int `json:"cave_ins"`
	Tunnels    int `json:"tunnels"`
	Falling    int `json:"falling"`
	Confined   int `json:"confined"`
	Trapped    int `json:"trapped"`
	OpenCells  int `json:"open_cells"`
}

// Options configure a new Simulation.
type Options struct {
	Seed       int64
	Colony     config.Colony
	Entrapment entrapment.Config
	Logger     *slog.Logger
}

// NewSimulation wires a simulation around an existing map, population and
// registry.
func NewSimulation(m *world.Map, ag []*agents.Agent, reg *agents.Registry, spawner *agents.Spawner, opts Options) (*Simulation, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = agents.NewRegistry()
	}
	if spawner == nil {
		spawner = agents.NewSpawner(opts.Seed)
	}

	index := make(map[agents.AgentID]*agents.Agent, len(ag))
	for _, a := range ag {
		index[a.ID] = a
	}

	s := &Simulation{
		Map:        m,
		Agents:     ag,
		AgentIndex: index,
		Registry:   reg,
		Spawner:    spawner,
		Navigator:  navigation.NewNavigator(m),
		colony:     opts.Colony,
		rng:        rand.New(rand.NewSource(opts.Seed + 500)),
		log:        logger,
		subs:       make(map[int]chan Event),
	}
	s.Board = notify.NewBoard(func() uint64 { return s.LastTick }, s.onNotice, logger.With("component", "notify"))

	checker, err := entrapment.NewChecker(opts.Entrapment, entrapment.Deps{
		Population:  s,
		Oracle:      s.Navigator,
		Assignments: s.Registry,
		Notifier:    s.Board,
	}, logger.With("component", "entrapment"))
	if err != nil {
		return nil, fmt.Errorf("create checker: %w", err)
	}
	s.Checker = checker
	s.updateStats()
	return s, nil
}

// RLock acquires the read lock for observers.
func (s *Simulation) RLock() { s.mu.RLock() }

// RUnlock releases the read lock.
func (s *Simulation) RUnlock() { s.mu.RUnlock() }

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastTick
}

// LiveAgents returns the spawned, living colonists. It is called by the
// checker from inside TickMinute, so it does not lock.
func (s *Simulation) LiveAgents() []*agents.Agent {
	live := make([]*agents.Agent, 0, len(s.Agents))
	for _, a := range s.Agents {
		if a.Live() {
			live = append(live, a)
		}
	}
	return live
}

// TickMinute runs every tick: agents wander or keep falling, the caverns
// shift, then the entrapment checker evaluates its batch.
func (s *Simulation) TickMinute(tick uint64, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastTick = tick
	for _, a := range s.Agents {
		if !a.Live() {
			continue
		}
		if a.Falling() {
			a.FallTicks--
			continue
		}
		if a.CanNavigate() && s.rng.Float64() < s.colony.WanderChance {
			s.wander(a)
		}
	}

	if s.rng.Float64() < s.colony.CaveInChance {
		if open := s.Map.OpenCells(); len(open) > 0 {
			s.caveIn(open[s.rng.Intn(len(open))], s.colony.CaveInRadius, "cave_in")
		}
	}
	if s.rng.Float64() < s.colony.TunnelChance {
		s.tunnel()
	}

	s.Checker.OnTick(elapsed)
	s.updateStats()
}

// TickDay runs every sim-day: deaths, recovery, arrivals and the daily report.
func (s *Simulation) TickDay(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.processPopulation(tick)
	s.updateStats()

	eventCounts := make(map[string]int)
	for _, e := range s.Events {
		eventCounts[e.Category]++
	}

	s.log.Info("daily report",
		"tick", tick,
		"time", SimTime(tick),
		"alive", s.Stats.Population,
		"dead", s.Stats.Dead,
		"confined", s.Stats.Confined,
		"trapped", s.Stats.Trapped,
		"open_cells", s.Stats.OpenCells,
		"events_cave_in", eventCounts["cave_in"],
		"events_notification", eventCounts["notification"],
	)
	if summary := s.Board.Summary(); summary != "" {
		s.log.Info("colony notifications", "summary", summary)
	}
}

// wander moves a to a random passable neighbour, if any.
func (s *Simulation) wander(a *agents.Agent) {
	var options []world.Cell
	for _, nb := range s.Map.Neighbors(a.Position) {
		if nb != world.NoCell && s.Map.Passable(nb) {
			options = append(options, nb)
		}
	}
	if len(options) > 0 {
		a.Position = options[s.rng.Intn(len(options))]
	}
}

// caveIn fills every cell within radius of center with rock. Buildings on
// those cells are destroyed; colonists caught are thrown to the nearest open
// cell outside the rubble and fall.
func (s *Simulation) caveIn(center world.Cell, radius int, category string) int {
	disk := s.Map.Within(center, radius)
	filled := 0
	for _, c := range disk {
		if s.Map.Passable(c) && s.Map.SetTerrain(c, world.TerrainRock) {
			filled++
		}
	}
	if filled == 0 {
		return 0
	}
	destroyed := s.Registry.DestroyAt(disk)

	caught := 0
	for _, a := range s.Agents {
		if !a.Live() || s.Map.Passable(a.Position) {
			continue
		}
		if to, ok := s.nearestOpen(a.Position, radius+2); ok {
			a.Position = to
		}
		a.FallTicks = s.colony.FallTicks
		a.Health = max(a.Health-s.colony.InjuryOnFall, 0)
		caught++
	}

	s.Stats.CaveIns++
	coord, _ := s.Map.CoordOf(center)
	s.emit(Event{
		Tick:        s.LastTick,
		Description: fmt.Sprintf("The caverns collapse around (%d,%d): %d cells buried, %d colonists caught", coord.Q, coord.R, filled, caught),
		Category:    category,
		Meta: map[string]any{
			"q": coord.Q, "r": coord.R, "radius": radius,
			"cells": filled, "caught": caught, "destroyed": destroyed,
		},
	})
	return filled
}

// tunnel opens one rock cell next to an open one.
func (s *Simulation) tunnel() bool {
	n := s.Map.CellCount()
	for i := 0; i < 32; i++ {
		c := world.Cell(1 + s.rng.Intn(n))
		if s.Map.Terrain(c) != world.TerrainRock {
			continue
		}
		for _, nb := range s.Map.Neighbors(c) {
			if nb != world.NoCell && s.Map.Passable(nb) {
				s.Map.SetTerrain(c, world.TerrainOpen)
				s.Stats.Tunnels++
				coord, _ := s.Map.CoordOf(c)
				s.emit(Event{
					Tick:        s.LastTick,
					Description: fmt.Sprintf("A tunnel breaks through at (%d,%d)", coord.Q, coord.R),
					Category:    "tunnel",
					Meta:        map[string]any{"q": coord.Q, "r": coord.R},
				})
				return true
			}
		}
	}
	return false
}

// nearestOpen searches outward from c, ring by ring, for a passable cell.
func (s *Simulation) nearestOpen(c world.Cell, limit int) (world.Cell, bool) {
	origin, ok := s.Map.CoordOf(c)
	if !ok {
		return world.NoCell, false
	}
	for r := 1; r <= limit; r++ {
		for _, cand := range s.Map.Within(c, r) {
			coord, _ := s.Map.CoordOf(cand)
			if world.Distance(origin, coord) == r && s.Map.Passable(cand) {
				return cand, true
			}
		}
	}
	return world.NoCell, false
}

// onNotice records board changes as events.
func (s *Simulation) onNotice(n notify.Notice) {
	desc := fmt.Sprintf("%s is %s", n.Name, n.Kind)
	if !n.Visible {
		desc = fmt.Sprintf("%s is no longer %s", n.Name, n.Kind)
	}
	s.emit(Event{
		Tick:        n.Tick,
		Description: desc,
		Category:    "notification",
		Meta: map[string]any{
			"agent_id": n.AgentID,
			"name":     n.Name,
			"kind":     n.Kind.String(),
			"visible":  n.Visible,
		},
	})
}

func (s *Simulation) updateStats() {
	st := SimStats{
		Dead:     s.Stats.Dead,
		Arrivals: s.Stats.Arrivals,
		CaveIns:  s.Stats.CaveIns,
		Tunnels:  s.Stats.Tunnels,
	}
	for _, a := range s.Agents {
		if a.Live() {
			st.Population++
			if a.Falling() {
				st.Falling++
			}
		}
	}
	st.Confined = s.Board.Count(entrapment.StateConfined)
	st.Trapped = s.Board.Count(entrapment.StateTrapped)
	st.OpenCells = s.Map.TerrainCounts()[world.TerrainOpen]
	s.Stats = st
}
