package entrapment

import (
	"fmt"

	"github.com/talgya/confinement/internal/agents"
	"github.com/talgya/confinement/internal/world"
)

// Query describes the places one agent needs to get to. A NoCell entry means
// nothing of that kind is assigned. Queries are built per evaluation and not
// retained.
type Query struct {
	SleepCell       world.Cell
	MealCell        world.Cell
	SanitationCells []world.Cell
}

// Reach is the oracle's answer to a Query.
type Reach struct {
	Reachable          int  `json:"reachable"` // Distinct cells the agent can get to
	CanReachSleep      bool `json:"can_reach_sleep"`
	CanReachMeal       bool `json:"can_reach_meal"`
	CanReachSanitation bool `json:"can_reach_sanitation"`
}

// Status is the cached entrapment record of one agent.
type Status struct {
	Agent agents.AgentID `json:"agent_id"`
	Name  string         `json:"name"`
	Reach

	// LastShown is the last classification computed for the agent; the
	// visible notification only follows it once it repeats.
	LastShown State `json:"last_shown"`

	UpdatedTick uint64 `json:"updated_tick"`
	Evaluations uint64 `json:"evaluations"`

	live bool // Set during the population refresh sweep only
}

// TrappedScore counts how many of bed, table and toilets are out of reach
// (0–3). Higher means more deprived.
func (s *Status) TrappedScore() int {
	score := 0
	for _, ok := range [3]bool{s.CanReachSleep, s.CanReachMeal, s.CanReachSanitation} {
		if !ok {
			score++
		}
	}
	return score
}

func (s *Status) String() string {
	return fmt.Sprintf("%s#%d reach=%d bed=%t mess=%t toilet=%t last=%s",
		s.Name, s.Agent, s.Reachable, s.CanReachSleep, s.CanReachMeal,
		s.CanReachSanitation, s.LastShown)
}
