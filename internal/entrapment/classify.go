package entrapment

// Threshold is the reach below which an agent is confined relative to the
// colony: roughly 10% of the best reach, rounded.
func Threshold(mostReachable int) int {
	return (mostReachable + 5) / 10
}

// Classify computes the raw classification of a status against the colony
// baseline. It has no side effects; hysteresis is applied by the Checker.
func (c Config) Classify(st *Status, mostReachable int) State {
	confined := (mostReachable > c.ConfinedFloor && st.Reachable < c.ConfinedFloor) ||
		st.Reachable < Threshold(mostReachable)
	trapped := st.TrappedScore() > 1

	switch {
	case c.PreferTrapped && trapped:
		return StateTrapped
	case confined:
		return StateConfined
	case trapped:
		return StateTrapped
	default:
		return StateNone
	}
}
