// Package agents provides the colonist data model, spawning, and the
// ownership registry that maps colonists to the beds, tables and toilets
// assigned to them.
package agents

import (
	"fmt"

	"github.com/talgya/confinement/internal/world"
)

// AgentID is a unique identifier for an agent. IDs are issued once by the
// Spawner and never reused, so an ID denotes exactly one colonist for the
// whole lifetime of a world.
type AgentID uint64

// IncapacitatedHealth is the health below which an agent can no longer move
// on its own.
const IncapacitatedHealth = 0.1

// Agent is a colonist.
type Agent struct {
	ID   AgentID `json:"id"`
	Name string  `json:"name"`

	Position world.Cell `json:"position"`
	Health   float32    `json:"health"` // 0.0–1.0

	// FallTicks counts down while the agent is tumbling after a cave-in.
	// A falling agent has no pathing.
	FallTicks uint8 `json:"fall_ticks,omitempty"`

	// Metadata
	BornTick uint64 `json:"born_tick"`
	Alive    bool   `json:"alive"`
	Spawned  bool   `json:"spawned"`
}

// Live reports whether the agent is part of the live population.
func (a *Agent) Live() bool {
	return a != nil && a.Alive && a.Spawned
}

// Falling reports whether the agent is in the middle of a fall.
func (a *Agent) Falling() bool {
	return a.FallTicks > 0
}

// CanNavigate reports whether the agent has any navigation capability.
func (a *Agent) CanNavigate() bool {
	return a.Live() && a.Health >= IncapacitatedHealth
}

func (a *Agent) String() string {
	return fmt.Sprintf("%s#%d", a.Name, a.ID)
}
