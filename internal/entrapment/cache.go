package entrapment

import (
	"github.com/talgya/confinement/internal/agents"
)

// Cache stores one Status per live agent across ticks. Records live in a
// slot arena; slots of removed agents are recycled, and the record with the
// highest reach is tracked so the colony baseline is usually O(1).
type Cache struct {
	slots []*Status
	index map[agents.AgentID]int
	free  []int

	best int // Slot holding the highest reach, -1 when unknown
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		index: make(map[agents.AgentID]int, 64),
		best:  -1,
	}
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	return len(c.index)
}

// Get returns the record of an agent, or nil if none is cached. The pointer
// is owned by the cache and must not be kept past the current tick.
func (c *Cache) Get(id agents.AgentID) *Status {
	if i, ok := c.index[id]; ok {
		return c.slots[i]
	}
	return nil
}

// Upsert stores a fresh oracle answer for an agent. New records start with
// LastShown = StateNone; existing ones keep their LastShown.
func (c *Cache) Upsert(a *agents.Agent, r Reach, tick uint64) *Status {
	i, ok := c.index[a.ID]
	if !ok {
		i = c.alloc()
		*c.slots[i] = Status{Agent: a.ID, live: true}
		c.index[a.ID] = i
	}
	st := c.slots[i]
	st.Name = a.Name
	st.Reach = r
	st.UpdatedTick = tick
	st.Evaluations++

	switch {
	case c.best < 0:
	case c.best == i:
		// The holder may have dropped; find out lazily.
		c.best = -1
	case r.Reachable >= c.slots[c.best].Reachable:
		c.best = i
	}
	return st
}

// MostReachable returns the highest reach across every cached record.
func (c *Cache) MostReachable() int {
	if c.best < 0 {
		most := -1
		for _, i := range c.index {
			if r := c.slots[i].Reachable; r > most {
				most = r
				c.best = i
			}
		}
		if most < 0 {
			return 0
		}
	}
	return c.slots[c.best].Reachable
}

// Each calls fn for every cached record in no particular order.
func (c *Cache) Each(fn func(*Status)) {
	for _, i := range c.index {
		fn(c.slots[i])
	}
}

// BeginSweep marks every record as not seen. Follow with MarkLive for each
// live agent and then Purge.
func (c *Cache) BeginSweep() {
	for _, i := range c.index {
		c.slots[i].live = false
	}
}

// MarkLive flags the record of a live agent, if there is one.
func (c *Cache) MarkLive(id agents.AgentID) {
	if i, ok := c.index[id]; ok {
		c.slots[i].live = true
	}
}

// Purge drops every record not marked since BeginSweep and returns the IDs
// that were removed.
func (c *Cache) Purge() []agents.AgentID {
	var removed []agents.AgentID
	for id, i := range c.index {
		if c.slots[i].live {
			continue
		}
		delete(c.index, id)
		c.free = append(c.free, i)
		if c.best == i {
			c.best = -1
		}
		removed = append(removed, id)
	}
	return removed
}

func (c *Cache) alloc() int {
	if n := len(c.free); n > 0 {
		i := c.free[n-1]
		c.free = c.free[:n-1]
		return i
	}
	c.slots = append(c.slots, &Status{})
	return len(c.slots) - 1
}
