// Package entrapment decides which colonists are confined to a tiny part of
// the colony or cut off from their bed, table and toilets, and keeps the
// matching notifications up to date.
//
// The work is paced: each tick only a slice of the population is re-queried,
// so a full pass over the colony takes Config.CycleTicks ticks regardless of
// its size. A changed classification has to be observed twice in a row
// before the visible notification follows it.
package entrapment

import "fmt"

// State is the classification of one agent.
type State uint8

const (
	StateNone     State = iota // Free to move and can reach its needs
	StateConfined              // Reaches only a small fraction of the colony
	StateTrapped               // Cannot reach at least two of bed, table and toilet
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateConfined:
		return "confined"
	case StateTrapped:
		return "trapped"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// ParseState is the inverse of State.String.
func ParseState(s string) (State, error) {
	switch s {
	case "none", "":
		return StateNone, nil
	case "confined":
		return StateConfined, nil
	case "trapped":
		return StateTrapped, nil
	}
	return StateNone, fmt.Errorf("unknown entrapment state %q", s)
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
