package entrapment

import (
	"github.com/talgya/confinement/internal/agents"
)

// Pacer walks a periodically refreshed roster of live agents a slice per
// tick, plus any agents deferred for an immediate recheck.
type Pacer struct {
	cycleTicks int
	cursor     int // -1 forces a refresh
	roster     []*agents.Agent
	recheck    []*agents.Agent
}

// NewPacer creates a pacer that covers the population once every cycleTicks
// ticks.
func NewPacer(cycleTicks int) *Pacer {
	return &Pacer{
		cycleTicks: max(1, cycleTicks),
		cursor:     -1,
		roster:     make([]*agents.Agent, 0, 64),
		recheck:    make([]*agents.Agent, 0, 8),
	}
}

// NeedsRefresh reports whether the cursor has run off the roster (or was
// reset) and the roster must be rebuilt before the next batch.
func (p *Pacer) NeedsRefresh() bool {
	return p.cursor < 0 || p.cursor >= len(p.roster)
}

// Reset replaces the roster and rewinds the cursor.
func (p *Pacer) Reset(roster []*agents.Agent) {
	p.roster = append(p.roster[:0], roster...)
	p.cursor = 0
}

// Invalidate forces a roster refresh on the next tick.
func (p *Pacer) Invalidate() {
	p.cursor = -1
}

// Len returns the roster size.
func (p *Pacer) Len() int {
	return len(p.roster)
}

// Step returns how many roster members are taken per tick.
func (p *Pacer) Step() int {
	return 1 + max(0, len(p.roster)-1)/p.cycleTicks
}

// Defer queues an agent for evaluation at the start of the next batch.
func (p *Pacer) Defer(a *agents.Agent) {
	p.recheck = append(p.recheck, a)
}

// Pending returns the number of agents queued for recheck.
func (p *Pacer) Pending() int {
	return len(p.recheck)
}

// Next returns this tick's batch: deferred agents first, then the next Step
// roster members. The cursor advances by Step even past the end of the
// roster; that only means a refresh is due. Each agent appears at most once.
func (p *Pacer) Next() []*agents.Agent {
	step := p.Step()
	batch := make([]*agents.Agent, 0, len(p.recheck)+step)
	seen := make(map[agents.AgentID]struct{}, len(p.recheck)+step)

	add := func(a *agents.Agent) {
		if a == nil {
			return
		}
		if _, dup := seen[a.ID]; dup {
			return
		}
		seen[a.ID] = struct{}{}
		batch = append(batch, a)
	}

	for _, a := range p.recheck {
		add(a)
	}
	p.recheck = p.recheck[:0]

	if p.cursor >= 0 {
		end := min(p.cursor+step, len(p.roster))
		for i := p.cursor; i < end; i++ {
			add(p.roster[i])
		}
		p.cursor += step
	}
	return batch
}
