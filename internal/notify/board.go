// Package notify keeps the colony notification board: which colonists are
// currently flagged as confined or trapped, and a log of every change.
package notify

import (
	"cmp"
	"log/slog"
	"slices"
	"strings"

	"github.com/talgya/confinement/internal/agents"
	"github.com/talgya/confinement/internal/entrapment"
)

// Notice is one shown notification, or the record of one being shown or
// hidden when passed to a Sink.
type Notice struct {
	Tick    uint64           `json:"tick"`
	AgentID agents.AgentID   `json:"agent_id"`
	Name    string           `json:"name"`
	Kind    entrapment.State `json:"kind"`
	Visible bool             `json:"visible"`
}

// Sink receives every visibility change.
type Sink func(Notice)

type key struct {
	id   agents.AgentID
	kind entrapment.State
}

// Board implements entrapment.Notifier. Like the checker it is driven from
// the tick callback; readers must hold the same lock as the writer.
type Board struct {
	active map[key]Notice
	now    func() uint64
	sink   Sink
	log    *slog.Logger
}

var (
	_ entrapment.Notifier  = (*Board)(nil)
	_ entrapment.Forgetter = (*Board)(nil)
)

// NewBoard creates a board. now supplies the tick stamped on notices; sink
// may be nil.
func NewBoard(now func() uint64, sink Sink, logger *slog.Logger) *Board {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = func() uint64 { return 0 }
	}
	return &Board{
		active: make(map[key]Notice),
		now:    now,
		sink:   sink,
		log:    logger,
	}
}

// SetNotification shows or hides the notice of kind for a. Repeating the
// current visibility does nothing.
func (b *Board) SetNotification(a *agents.Agent, kind entrapment.State, visible bool) {
	if a == nil || kind == entrapment.StateNone {
		return
	}
	k := key{a.ID, kind}
	prev, shown := b.active[k]
	if shown == visible {
		return
	}

	n := Notice{Tick: b.now(), AgentID: a.ID, Name: a.Name, Kind: kind, Visible: visible}
	if visible {
		b.active[k] = n
		b.log.Info("notification shown", "agent", a.ID, "name", a.Name, "kind", kind)
	} else {
		delete(b.active, k)
		b.log.Info("notification cleared", "agent", a.ID, "name", a.Name, "kind", kind,
			"shown_ticks", n.Tick-prev.Tick)
	}
	if b.sink != nil {
		b.sink(n)
	}
}

// Forget drops every notice for id without emitting changes. Used when the
// colonist has left the population.
func (b *Board) Forget(id agents.AgentID) {
	for _, kind := range []entrapment.State{entrapment.StateConfined, entrapment.StateTrapped} {
		if _, ok := b.active[key{id, kind}]; ok {
			delete(b.active, key{id, kind})
			b.log.Debug("notification forgotten", "agent", id, "kind", kind)
		}
	}
}

// Shown reports whether the notice of kind is visible for id.
func (b *Board) Shown(id agents.AgentID, kind entrapment.State) bool {
	_, ok := b.active[key{id, kind}]
	return ok
}

// Active returns the visible notices, confined first, each kind ordered by
// agent ID.
func (b *Board) Active() []Notice {
	out := make([]Notice, 0, len(b.active))
	for _, n := range b.active {
		out = append(out, n)
	}
	slices.SortFunc(out, func(x, y Notice) int {
		if c := cmp.Compare(x.Kind, y.Kind); c != 0 {
			return c
		}
		return cmp.Compare(x.AgentID, y.AgentID)
	})
	return out
}

// Count returns how many notices of kind are visible.
func (b *Board) Count(kind entrapment.State) int {
	n := 0
	for k := range b.active {
		if k.kind == kind {
			n++
		}
	}
	return n
}

// Summary renders the colony-wide message, one line per kind:
//
//	Confined: Ada Deepwell, Bram Farrow
//	Trapped: Iris Holloway
//
// It is empty when nothing is shown.
func (b *Board) Summary() string {
	var sb strings.Builder
	var names []string
	var current entrapment.State
	flush := func() {
		if len(names) == 0 {
			return
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		title := current.String()
		sb.WriteString(strings.ToUpper(title[:1]) + title[1:] + ": " + strings.Join(names, ", "))
		names = names[:0]
	}
	for _, n := range b.Active() {
		if n.Kind != current {
			flush()
			current = n.Kind
		}
		names = append(names, n.Name)
	}
	flush()
	return sb.String()
}
