package entrapment

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid entrapment config")

// Config holds the tunables of the checker.
type Config struct {
	// ConfinedFloor is the absolute reach below which an agent counts as
	// confined, provided the best agent in the colony reaches more than it.
	ConfinedFloor int `yaml:"confined_floor" json:"confined_floor"`

	// CycleTicks is the number of ticks one pass over the population is
	// spread across.
	CycleTicks int `yaml:"cycle_ticks" json:"cycle_ticks"`

	// PreferTrapped reports agents that are both confined and trapped as
	// trapped instead of confined.
	PreferTrapped bool `yaml:"prefer_trapped" json:"prefer_trapped"`
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	return Config{
		ConfinedFloor: 8,
		CycleTicks:    15,
	}
}

// Validate checks the tunables.
func (c Config) Validate() error {
	if c.CycleTicks < 1 {
		return fmt.Errorf("%w: cycle_ticks=%d, need at least 1", ErrInvalidConfig, c.CycleTicks)
	}
	if c.ConfinedFloor < 0 {
		return fmt.Errorf("%w: confined_floor=%d, must not be negative", ErrInvalidConfig, c.ConfinedFloor)
	}
	return nil
}
