// Agent spawning: creates colonists with names and starting health.
package agents

import (
	"math/rand"

	"github.com/talgya/confinement/internal/world"
)

// Spawner creates agents for the simulation.
type Spawner struct {
	rng    *rand.Rand
	nextID AgentID
}

// NewSpawner creates an agent spawner with the given seed.
func NewSpawner(seed int64) *Spawner {
	return &Spawner{
		rng:    rand.New(rand.NewSource(seed + 300)),
		nextID: 1,
	}
}

// SetNextID sets the next agent ID to be issued (used when restoring a world).
func (s *Spawner) SetNextID(id AgentID) {
	s.nextID = id
}

// NextID returns the ID the next spawned agent will receive.
func (s *Spawner) NextID() AgentID {
	return s.nextID
}

// SpawnPopulation creates count colonists scattered over the given cells.
func (s *Spawner) SpawnPopulation(count int, cells []world.Cell, tick uint64) []*Agent {
	if len(cells) == 0 {
		return nil
	}
	agents := make([]*Agent, 0, count)
	for i := 0; i < count; i++ {
		agents = append(agents, s.Spawn(cells[s.rng.Intn(len(cells))], tick))
	}
	return agents
}

// Spawn creates a single live colonist standing at cell.
func (s *Spawner) Spawn(cell world.Cell, tick uint64) *Agent {
	id := s.nextID
	s.nextID++

	return &Agent{
		ID:       id,
		Name:     s.generateName(),
		Position: cell,
		Health:   0.7 + s.rng.Float32()*0.3,
		BornTick: tick,
		Alive:    true,
		Spawned:  true,
	}
}

func (s *Spawner) generateName() string {
	first := firstNames[s.rng.Intn(len(firstNames))]
	last := lastNames[s.rng.Intn(len(lastNames))]
	return first + " " + last
}

var firstNames = []string{
	"Ada", "Bram", "Calla", "Doran", "Elara", "Finn", "Greta", "Hugo",
	"Iris", "Jasper", "Kira", "Leif", "Mira", "Nils", "Olwen", "Petra",
	"Quinn", "Runa", "Stellan", "Thea", "Ulric", "Vera", "Wren", "Yara",
}

var lastNames = []string{
	"Deepwell", "Stoneheart", "Ashford", "Copperfield", "Holloway",
	"Redforge", "Millward", "Thatcher", "Farrow", "Brightwater",
	"Ironhand", "Dawnridge", "Embercroft", "Riverstone",
}
