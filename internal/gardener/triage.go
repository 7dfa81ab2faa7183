package gardener

// Crisis levels, most severe first.
const (
	LevelCritical = "CRITICAL"
	LevelWarning  = "WARNING"
	LevelWatch    = "WATCH"
	LevelHealthy  = "HEALTHY"
)

// ColonyHealth holds derived diagnostic signals computed from a snapshot.
type ColonyHealth struct {
	Population       int
	Confined         int
	Trapped          int
	AffectedFraction float64 // (confined + trapped) / population
	OldestNotice     uint64  // Ticks the longest-standing notice has been up
	CrisisLevel      string
}

// Triage computes a ColonyHealth from the snapshot's data.
func Triage(snap *ColonySnapshot) *ColonyHealth {
	h := &ColonyHealth{Population: snap.Status.Stats.Population}

	for _, n := range snap.Notifications.Active {
		switch n.Kind {
		case "confined":
			h.Confined++
		case "trapped":
			h.Trapped++
		}
		if snap.Status.Tick >= n.Tick {
			h.OldestNotice = max(h.OldestNotice, snap.Status.Tick-n.Tick)
		}
	}
	if h.Population > 0 {
		h.AffectedFraction = float64(h.Confined+h.Trapped) / float64(h.Population)
	}

	trappedFraction := 0.0
	if h.Population > 0 {
		trappedFraction = float64(h.Trapped) / float64(h.Population)
	}

	switch {
	case trappedFraction > 0.2 || h.AffectedFraction > 0.3:
		h.CrisisLevel = LevelCritical
	case h.Trapped > 0 || h.AffectedFraction > 0.1:
		h.CrisisLevel = LevelWarning
	case h.Confined > 0:
		h.CrisisLevel = LevelWatch
	default:
		h.CrisisLevel = LevelHealthy
	}
	return h
}
