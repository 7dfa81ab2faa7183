package gardener

import (
	"fmt"
	"log/slog"
)

// Gardener ties the observe, triage, decide and act steps together.
type Gardener struct {
	Observer *Observer
	Actor    *Actor
	Memory   *CycleMemory
	Policy   Policy
	Log      *slog.Logger
}

// RunCycle executes one observe, decide, act cycle and records it.
func (g *Gardener) RunCycle() (*Decision, error) {
	log := g.Log
	if log == nil {
		log = slog.Default()
	}

	snap, err := g.Observer.Observe()
	if err != nil {
		return nil, fmt.Errorf("observe: %w", err)
	}
	health := Triage(snap)
	log.Info("observation complete",
		"tick", snap.Status.Tick,
		"population", health.Population,
		"confined", health.Confined,
		"trapped", health.Trapped,
		"crisis", health.CrisisLevel,
	)

	decision := Decide(snap, health, g.Memory, g.Policy)
	log.Info("decision made", "action", decision.Action, "rationale", decision.Rationale)

	rec := CycleRecord{
		Tick:        snap.Status.Tick,
		Action:      decision.Action,
		CrisisLevel: health.CrisisLevel,
		Affected:    health.AffectedFraction,
		Rationale:   decision.Rationale,
	}
	if decision.Target != nil {
		rec.AgentID = decision.Target.AgentID
		rec.Name = decision.Target.Name
	}

	if decision.Action == "dig" && decision.Intervention != nil {
		rescue, err := g.Actor.Act(decision.Intervention)
		if err != nil {
			return decision, fmt.Errorf("act: %w", err)
		}
		rec.Opened = rescue.Cells
		log.Info("intervention executed",
			"type", decision.Intervention.Type,
			"agent", decision.Intervention.AgentID,
			"radius", decision.Intervention.Radius,
			"opened", rescue.Cells,
			"details", rescue.Details,
		)
	}

	g.Memory.Record(rec)
	g.Memory.Save()
	return decision, nil
}
