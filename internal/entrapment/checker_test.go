package entrapment

import (
	"testing"
	"time"

	"github.com/talgya/confinement/internal/agents"
)

type fakePopulation struct {
	agents []*agents.Agent
	calls  int
}

func (p *fakePopulation) LiveAgents() []*agents.Agent {
	p.calls++
	var live []*agents.Agent
	for _, a := range p.agents {
		if a.Live() {
			live = append(live, a)
		}
	}
	return live
}

type fakeOracle struct {
	reach   map[agents.AgentID]Reach
	queries map[agents.AgentID]int
}

func (o *fakeOracle) QueryReachability(a *agents.Agent, q Query) (Reach, bool) {
	o.queries[a.ID]++
	r, ok := o.reach[a.ID]
	return r, ok
}

type noAssignments struct{}

func (noAssignments) Preferred(agents.AgentID, agents.Slot) []*agents.Assignable { return nil }

type recordingNotifier struct {
	visible   map[agents.AgentID]map[State]bool
	calls     int
	forgotten []agents.AgentID
}

func (n *recordingNotifier) SetNotification(a *agents.Agent, kind State, visible bool) {
	n.calls++
	if n.visible[a.ID] == nil {
		n.visible[a.ID] = make(map[State]bool)
	}
	n.visible[a.ID][kind] = visible
}

func (n *recordingNotifier) Forget(id agents.AgentID) {
	n.forgotten = append(n.forgotten, id)
	delete(n.visible, id)
}

func (n *recordingNotifier) shown(id agents.AgentID) State {
	switch {
	case n.visible[id][StateConfined]:
		return StateConfined
	case n.visible[id][StateTrapped]:
		return StateTrapped
	}
	return StateNone
}

type harness struct {
	pop      *fakePopulation
	oracle   *fakeOracle
	notifier *recordingNotifier
	checker  *Checker
}

func newHarness(t *testing.T, cfg Config, n int) *harness {
	t.Helper()
	h := &harness{
		pop:      &fakePopulation{agents: makeRoster(n)},
		oracle:   &fakeOracle{reach: make(map[agents.AgentID]Reach), queries: make(map[agents.AgentID]int)},
		notifier: &recordingNotifier{visible: make(map[agents.AgentID]map[State]bool)},
	}
	for _, a := range h.pop.agents {
		h.oracle.reach[a.ID] = Reach{Reachable: 100, CanReachSleep: true, CanReachMeal: true, CanReachSanitation: true}
	}
	c, err := NewChecker(cfg, Deps{
		Population:  h.pop,
		Oracle:      h.oracle,
		Assignments: noAssignments{},
		Notifier:    h.notifier,
	}, nil)
	if err != nil {
		t.Fatalf("NewChecker: %v", err)
	}
	h.checker = c
	return h
}

func (h *harness) ticks(n int) {
	for i := 0; i < n; i++ {
		h.checker.OnTick(time.Second)
	}
}

func TestNewCheckerRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CycleTicks = 0
	if _, err := NewChecker(cfg, Deps{}, nil); err == nil {
		t.Fatal("expected config error")
	}
}

func TestCheckerHysteresisNeedsTwoObservations(t *testing.T) {
	h := newHarness(t, DefaultConfig(), 2)
	h.oracle.reach[2] = Reach{Reachable: 3, CanReachSleep: true, CanReachMeal: true, CanReachSanitation: true}

	// Tick 1 evaluates agent 1, tick 2 evaluates agent 2 for the first time.
	h.ticks(2)
	if got := h.notifier.shown(2); got != StateNone {
		t.Fatalf("after first observation shown=%s want=none", got)
	}
	st, ok := h.checker.Status(2)
	if !ok || st.LastShown != StateConfined {
		t.Fatalf("LastShown=%s ok=%t want=confined", st.LastShown, ok)
	}

	// Tick 3 rechecks agent 2 immediately and shows the notification.
	h.ticks(1)
	if got := h.notifier.shown(2); got != StateConfined {
		t.Fatalf("after recheck shown=%s want=confined", got)
	}
	if h.oracle.queries[2] != 2 {
		t.Fatalf("agent 2 queried %d times want=2", h.oracle.queries[2])
	}
}

func TestCheckerClearsAfterTwoObservations(t *testing.T) {
	h := newHarness(t, DefaultConfig(), 2)
	h.oracle.reach[2] = Reach{Reachable: 50}

	h.ticks(3) // agent 2 trapped: deferred on tick 2, shown on tick 3
	if got := h.notifier.shown(2); got != StateTrapped {
		t.Fatalf("shown=%s want=trapped", got)
	}

	h.oracle.reach[2] = Reach{Reachable: 50, CanReachSleep: true, CanReachMeal: true, CanReachSanitation: true}
	h.ticks(1) // tick 4 sees the change once
	if got := h.notifier.shown(2); got != StateTrapped {
		t.Fatalf("cleared too early: shown=%s", got)
	}
	if h.checker.Snapshot().Pending != 1 {
		t.Fatal("change should be queued for recheck")
	}
	h.ticks(1)
	if got := h.notifier.shown(2); got != StateNone {
		t.Fatalf("shown=%s want=none", got)
	}
}

func TestCheckerSingleTickNoiseIsDamped(t *testing.T) {
	h := newHarness(t, DefaultConfig(), 1)
	h.oracle.reach[1] = Reach{Reachable: 100}

	h.ticks(1) // trapped observed once, deferred
	h.oracle.reach[1] = Reach{Reachable: 100, CanReachSleep: true, CanReachMeal: true, CanReachSanitation: true}
	h.ticks(2) // recheck sees none (deferred again), then none repeats

	if got := h.notifier.shown(1); got != StateNone {
		t.Fatalf("noise leaked into display: shown=%s", got)
	}
	if h.notifier.visible[1][StateTrapped] {
		t.Fatal("trapped notification was shown for a single noisy tick")
	}
}

func TestCheckerBaselineUsesWholeCache(t *testing.T) {
	h := newHarness(t, DefaultConfig(), 3)
	h.oracle.reach[1] = Reach{Reachable: 95, CanReachSleep: true, CanReachMeal: true, CanReachSanitation: true}
	h.oracle.reach[3] = Reach{Reachable: 9, CanReachSleep: true, CanReachMeal: true, CanReachSanitation: true}

	h.ticks(4)
	snap := h.checker.Snapshot()
	if snap.MostReachable != 100 || snap.Threshold != 10 {
		t.Fatalf("baseline=%d threshold=%d want=100/10", snap.MostReachable, snap.Threshold)
	}
	if got := h.notifier.shown(3); got != StateConfined {
		t.Fatalf("agent 3 shown=%s want=confined", got)
	}
}

func TestCheckerSkipsUnavailableAgents(t *testing.T) {
	h := newHarness(t, DefaultConfig(), 3)
	delete(h.oracle.reach, 1)     // oracle has nothing
	h.pop.agents[1].Health = 0.01 // incapacitated
	h.pop.agents[2].FallTicks = 5 // mid-fall
	h.oracle.reach[3] = Reach{Reachable: 100}

	h.ticks(3)
	if _, ok := h.checker.Status(1); ok {
		t.Fatal("agent without oracle data must not be cached")
	}
	if _, ok := h.checker.Status(2); ok {
		t.Fatal("incapacitated agent must not be cached")
	}
	if h.oracle.queries[2] != 0 {
		t.Fatalf("incapacitated agent queried %d times", h.oracle.queries[2])
	}
	st, ok := h.checker.Status(3)
	if !ok {
		t.Fatal("falling agent should still be queried")
	}
	if st.LastShown != StateNone || h.checker.Snapshot().Pending != 0 {
		t.Fatalf("falling agent classification touched: last=%s", st.LastShown)
	}
	if stats := h.checker.Stats(); stats.Skipped != 2 {
		t.Fatalf("Skipped=%d want=2", stats.Skipped)
	}
}

func TestCheckerPurgesDepartedAgents(t *testing.T) {
	h := newHarness(t, DefaultConfig(), 4)
	h.ticks(4)
	if n := h.checker.Snapshot().Statuses; len(n) != 4 {
		t.Fatalf("cached=%d want=4", len(n))
	}

	h.pop.agents[1].Alive = false   // dies
	h.pop.agents[2].Spawned = false // despawns

	h.ticks(1) // refresh happens here
	snap := h.checker.Snapshot()
	if len(snap.Statuses) != 2 {
		t.Fatalf("cached=%d want=2 after refresh", len(snap.Statuses))
	}
	for _, st := range snap.Statuses {
		if st.Agent == 2 || st.Agent == 3 {
			t.Fatalf("departed agent %d still cached", st.Agent)
		}
	}
	if len(h.notifier.forgotten) != 2 || snap.Stats.Purged != 2 {
		t.Fatalf("forgotten=%v purged=%d", h.notifier.forgotten, snap.Stats.Purged)
	}

	before := h.oracle.queries[2]
	h.ticks(30)
	if h.oracle.queries[2] != before {
		t.Fatal("departed agent evaluated after purge")
	}
}

func TestCheckerStaleEntriesSurviveUntilRefresh(t *testing.T) {
	h := newHarness(t, DefaultConfig(), 2)
	h.ticks(2)
	h.pop.agents[0].Alive = false
	if _, ok := h.checker.Status(1); !ok {
		t.Fatal("entry should remain until the next refresh")
	}
	h.ticks(1) // cursor past end: refresh
	if _, ok := h.checker.Status(1); ok {
		t.Fatal("entry should be gone after refresh")
	}
}

func TestCheckerTwentyAgentCycle(t *testing.T) {
	h := newHarness(t, DefaultConfig(), 20)
	h.ticks(10)
	snap := h.checker.Snapshot()
	if snap.Step != 2 {
		t.Fatalf("Step=%d want=2", snap.Step)
	}
	if len(snap.Statuses) != 20 {
		t.Fatalf("covered=%d want=20 in 10 ticks", len(snap.Statuses))
	}
	if snap.Stats.Refreshes != 1 {
		t.Fatalf("Refreshes=%d want=1", snap.Stats.Refreshes)
	}
	h.ticks(1)
	if got := h.checker.Stats().Refreshes; got != 2 {
		t.Fatalf("Refreshes=%d want=2 on tick 11", got)
	}
}
