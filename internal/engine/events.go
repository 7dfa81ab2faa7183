package engine

// subscriberBuffer is the channel depth per subscriber; slow readers drop
// events rather than stall the tick loop.
const subscriberBuffer = 64

// EmitEvent records an event and fans it out to subscribers.
func (s *Simulation) EmitEvent(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.Tick == 0 {
		e.Tick = s.LastTick
	}
	s.emit(e)
}

// emit appends to the event log; the caller holds the write lock.
func (s *Simulation) emit(e Event) {
	s.eventSeq++
	e.Seq = s.eventSeq
	s.Events = append(s.Events, e)
	if len(s.Events) > maxEvents {
		s.Events = s.Events[len(s.Events)-maxEvents:]
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a new event listener.
func (s *Simulation) Subscribe() (int, <-chan Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextSub++
	ch := make(chan Event, subscriberBuffer)
	s.subs[s.nextSub] = ch
	return s.nextSub, ch
}

// Unsubscribe removes a listener and closes its channel.
func (s *Simulation) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

// RecentEvents returns up to limit of the newest events, optionally only
// those of one category.
func (s *Simulation) RecentEvents(limit int, category string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.Events
	if category != "" {
		var filtered []Event
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	start := max(len(events)-limit, 0)
	return append([]Event(nil), events[start:]...)
}
