package agents

import (
	"slices"

	"github.com/talgya/confinement/internal/world"
)

// Slot is the kind of ownable an agent can be assigned.
type Slot uint8

const (
	SlotBed Slot = iota
	SlotMessTable
	SlotToilet
)

// SlotName returns a human-readable slot name.
func SlotName(s Slot) string {
	switch s {
	case SlotBed:
		return "bed"
	case SlotMessTable:
		return "mess_table"
	case SlotToilet:
		return "toilet"
	default:
		return "unknown"
	}
}

// Assignable is a building that can be owned by a colonist. Owner 0 marks a
// communal building anyone may use.
type Assignable struct {
	ID        uint64     `json:"id"`
	Slot      Slot       `json:"slot"`
	Cell      world.Cell `json:"cell"`
	Owner     AgentID    `json:"owner,omitempty"`
	Destroyed bool       `json:"destroyed,omitempty"`
	Disabled  bool       `json:"disabled,omitempty"` // Reserved or switched off
}

// Usable reports whether the building can currently be used at all.
func (a *Assignable) Usable() bool {
	return a != nil && !a.Destroyed && !a.Disabled && a.Cell != world.NoCell
}

// Registry tracks every assignable building in placement order.
type Registry struct {
	items  []*Assignable
	nextID uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{nextID: 1}
}

// Place adds a new building at cell owned by owner (0 = communal).
func (r *Registry) Place(slot Slot, cell world.Cell, owner AgentID) *Assignable {
	a := &Assignable{ID: r.nextID, Slot: slot, Cell: cell, Owner: owner}
	r.nextID++
	r.items = append(r.items, a)
	return a
}

// Restore re-adds previously saved buildings, keeping their IDs.
func (r *Registry) Restore(items []*Assignable) {
	for _, a := range items {
		r.items = append(r.items, a)
		if a.ID >= r.nextID {
			r.nextID = a.ID + 1
		}
	}
}

// All returns every building in placement order.
func (r *Registry) All() []*Assignable {
	return r.items
}

// Preferred returns the buildings of the given slot that owner may use:
// the ones assigned to them first, then communal ones, each in placement order.
func (r *Registry) Preferred(owner AgentID, slot Slot) []*Assignable {
	var own, communal []*Assignable
	for _, a := range r.items {
		if a.Slot != slot {
			continue
		}
		switch a.Owner {
		case owner:
			own = append(own, a)
		case 0:
			communal = append(communal, a)
		}
	}
	return append(own, communal...)
}

// Release unassigns everything owned by owner, e.g. when they leave the colony.
func (r *Registry) Release(owner AgentID) int {
	n := 0
	for _, a := range r.items {
		if a.Owner == owner && owner != 0 {
			a.Owner = 0
			n++
		}
	}
	return n
}

// DestroyAt marks every building standing on the given cells as destroyed.
func (r *Registry) DestroyAt(cells []world.Cell) int {
	n := 0
	for _, a := range r.items {
		if !a.Destroyed && slices.Contains(cells, a.Cell) {
			a.Destroyed = true
			n++
		}
	}
	return n
}
