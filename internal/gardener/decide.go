package gardener

import (
	"fmt"
	"slices"
)

// Policy tunes how eagerly the gardener digs colonists out.
type Policy struct {
	// Patience is how long a notice may stand at WATCH level before a rescue.
	Patience uint64
	// Cooldown is how long an agent is left alone after being dug out.
	Cooldown uint64
	// ConfinedRadius and TrappedRadius are the dig radii per notice kind.
	ConfinedRadius int
	TrappedRadius  int
}

// DefaultPolicy returns the stock rescue policy.
func DefaultPolicy() Policy {
	return Policy{
		Patience:       120,
		Cooldown:       240,
		ConfinedRadius: 2,
		TrappedRadius:  3,
	}
}

// Decision is the gardener's chosen action for one cycle.
type Decision struct {
	Action       string        `json:"action"` // "none" or "dig"
	Rationale    string        `json:"rationale"`
	Intervention *Intervention `json:"intervention"`
	Target       *Notice       `json:"target,omitempty"`
}

// Intervention is the payload for POST /api/v1/intervention.
type Intervention struct {
	Type        string `json:"type"`
	AgentID     uint64 `json:"agent_id,omitempty"`
	Radius      int    `json:"radius,omitempty"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

// Decide picks at most one rescue: the longest-standing notice whose agent
// was not dug out recently. Trapped colonists go before confined ones.
func Decide(snap *ColonySnapshot, health *ColonyHealth, mem *CycleMemory, p Policy) *Decision {
	if health.CrisisLevel == LevelHealthy {
		return &Decision{Action: "none", Rationale: "no colonist is confined or trapped"}
	}

	tick := snap.Status.Tick
	candidates := slices.Clone(snap.Notifications.Active)
	slices.SortStableFunc(candidates, func(a, b Notice) int {
		if (a.Kind == "trapped") != (b.Kind == "trapped") {
			if a.Kind == "trapped" {
				return -1
			}
			return 1
		}
		switch {
		case a.Tick < b.Tick:
			return -1
		case a.Tick > b.Tick:
			return 1
		}
		return 0
	})

	for _, n := range candidates {
		if mem.RescuedRecently(n.AgentID, tick, p.Cooldown) {
			continue
		}
		waited := uint64(0)
		if tick > n.Tick {
			waited = tick - n.Tick
		}
		if health.CrisisLevel == LevelWatch && waited < p.Patience {
			continue
		}
		radius := p.ConfinedRadius
		if n.Kind == "trapped" {
			radius = p.TrappedRadius
		}
		target := n
		return &Decision{
			Action:    "dig",
			Rationale: fmt.Sprintf("%s has been %s for %d ticks (crisis %s)", n.Name, n.Kind, waited, health.CrisisLevel),
			Intervention: &Intervention{
				Type:    "dig",
				AgentID: n.AgentID,
				Radius:  radius,
			},
			Target: &target,
		}
	}
	return &Decision{Action: "none", Rationale: "every flagged colonist is recent or was dug out lately"}
}
