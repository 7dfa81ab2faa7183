package entrapment

import (
	"log/slog"
	"slices"
	"time"

	"github.com/talgya/confinement/internal/agents"
)

// Population enumerates the agents currently spawned and alive.
type Population interface {
	LiveAgents() []*agents.Agent
}

// Notifier shows or hides the notification of one kind for an agent. Calls
// are fire-and-forget and must be idempotent.
type Notifier interface {
	SetNotification(a *agents.Agent, kind State, visible bool)
}

// Forgetter is optionally implemented by a Notifier that keeps per-agent
// state; it is told when an agent leaves the cache.
type Forgetter interface {
	Forget(id agents.AgentID)
}

// Deps are the collaborators of a Checker.
type Deps struct {
	Population  Population
	Oracle      Oracle
	Assignments Assignments
	Notifier    Notifier
}

// Stats are running counters exposed for observation.
type Stats struct {
	Ticks     uint64 `json:"ticks"`
	Evaluated uint64 `json:"evaluated"`
	Skipped   uint64 `json:"skipped"`
	Deferred  uint64 `json:"deferred"`
	Refreshes uint64 `json:"refreshes"`
	Purged    uint64 `json:"purged"`
}

// Snapshot is a point-in-time copy of the checker state.
type Snapshot struct {
	Tick          uint64   `json:"tick"`
	MostReachable int      `json:"most_reachable"`
	Threshold     int      `json:"threshold"`
	Roster        int      `json:"roster"`
	Step          int      `json:"step"`
	Pending       int      `json:"pending"`
	Stats         Stats    `json:"stats"`
	Statuses      []Status `json:"statuses"`
}

// Checker runs the paced entrapment evaluation. It is driven from a single
// tick callback and is not safe for concurrent use.
type Checker struct {
	cfg   Config
	deps  Deps
	cache *Cache
	pacer *Pacer
	log   *slog.Logger

	tick          uint64
	mostReachable int
	stats         Stats
}

// NewChecker creates a checker. A nil logger uses slog.Default().
func NewChecker(cfg Config, deps Deps, logger *slog.Logger) (*Checker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		cfg:   cfg,
		deps:  deps,
		cache: NewCache(),
		pacer: NewPacer(cfg.CycleTicks),
		log:   logger,
	}, nil
}

// Config returns the tunables in use.
func (c *Checker) Config() Config {
	return c.cfg
}

type evaluation struct {
	agent  *agents.Agent
	status *Status
}

// OnTick evaluates this tick's batch and updates notifications. elapsed is
// the time since the previous tick; the pacing is tick-based so it is only
// logged.
func (c *Checker) OnTick(elapsed time.Duration) {
	c.tick++
	c.stats.Ticks++

	if c.pacer.NeedsRefresh() {
		c.refresh()
	}

	batch := c.pacer.Next()
	evaluated := make([]evaluation, 0, len(batch))
	for _, a := range batch {
		if st := c.evaluate(a); st != nil {
			evaluated = append(evaluated, evaluation{agent: a, status: st})
		}
	}

	c.mostReachable = c.cache.MostReachable()
	for _, e := range evaluated {
		c.classify(e.agent, e.status)
	}

	if len(batch) > 0 {
		c.log.Debug("entrapment tick",
			"tick", c.tick,
			"elapsed", elapsed,
			"batch", len(batch),
			"evaluated", len(evaluated),
			"most_reachable", c.mostReachable,
		)
	}
}

// refresh rebuilds the roster from the population and drops cache entries
// of agents that are gone.
func (c *Checker) refresh() {
	var roster []*agents.Agent
	for _, a := range c.deps.Population.LiveAgents() {
		if a.Live() {
			roster = append(roster, a)
		}
	}

	c.cache.BeginSweep()
	for _, a := range roster {
		c.cache.MarkLive(a.ID)
	}
	for _, id := range c.cache.Purge() {
		c.stats.Purged++
		c.log.Debug("removing agent from entrapment cache", "agent_id", id)
		if f, ok := c.deps.Notifier.(Forgetter); ok {
			f.Forget(id)
		}
	}

	c.pacer.Reset(roster)
	c.stats.Refreshes++
}

// evaluate queries the oracle for one agent and stores the answer. It
// returns nil when the agent cannot be evaluated this tick.
func (c *Checker) evaluate(a *agents.Agent) *Status {
	if !a.Live() {
		c.skip(a, "not live")
		return nil
	}
	q, ok := BuildQuery(a, c.deps.Assignments)
	if !ok {
		c.skip(a, "cannot navigate")
		return nil
	}
	r, ok := c.deps.Oracle.QueryReachability(a, q)
	if !ok {
		c.skip(a, "no reachability data")
		return nil
	}
	c.stats.Evaluated++
	return c.cache.Upsert(a, r, c.tick)
}

func (c *Checker) skip(a *agents.Agent, reason string) {
	c.stats.Skipped++
	c.log.Debug("entrapment check skipped", "agent", a.Name, "agent_id", a.ID, "reason", reason)
}

// classify applies the raw classification with one-cycle hysteresis: a
// result that differs from the last one is only remembered and rechecked
// next tick; a repeated result is pushed to the notifier.
func (c *Checker) classify(a *agents.Agent, st *Status) {
	// Falling agents have no pathing; leave them as they are.
	if !a.Live() || a.Falling() {
		return
	}

	state := c.cfg.Classify(st, c.mostReachable)
	switch state {
	case StateConfined:
		c.log.Debug("agent is confined", "agent", a.Name, "reachable", st.Reachable, "most_reachable", c.mostReachable)
	case StateTrapped:
		c.log.Debug("agent is trapped", "agent", a.Name, "bed", st.CanReachSleep, "mess", st.CanReachMeal, "toilet", st.CanReachSanitation)
	}

	if state != st.LastShown {
		// Keep the current notification, check again next tick.
		c.pacer.Defer(a)
		c.stats.Deferred++
		st.LastShown = state
		return
	}

	n := c.deps.Notifier
	n.SetNotification(a, StateConfined, state == StateConfined)
	n.SetNotification(a, StateTrapped, state == StateTrapped)
}

// Status returns a copy of the cached record of an agent.
func (c *Checker) Status(id agents.AgentID) (Status, bool) {
	st := c.cache.Get(id)
	if st == nil {
		return Status{}, false
	}
	return *st, true
}

// Snapshot copies the checker state, statuses sorted by agent ID.
func (c *Checker) Snapshot() Snapshot {
	statuses := make([]Status, 0, c.cache.Len())
	c.cache.Each(func(st *Status) {
		statuses = append(statuses, *st)
	})
	slices.SortFunc(statuses, func(a, b Status) int {
		switch {
		case a.Agent < b.Agent:
			return -1
		case a.Agent > b.Agent:
			return 1
		}
		return 0
	})
	return Snapshot{
		Tick:          c.tick,
		MostReachable: c.mostReachable,
		Threshold:     Threshold(c.mostReachable),
		Roster:        c.pacer.Len(),
		Step:          c.pacer.Step(),
		Pending:       c.pacer.Pending(),
		Stats:         c.stats,
		Statuses:      statuses,
	}
}

// Stats returns the running counters.
func (c *Checker) Stats() Stats {
	return c.stats
}
