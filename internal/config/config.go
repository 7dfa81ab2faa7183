// Package config loads the colony tuning file. Omitted keys keep their
// defaults; secrets come from the environment only.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/confinement/internal/entrapment"
	"github.com/talgya/confinement/internal/world"
)

// Config is the full runtime configuration of a colony run.
type Config struct {
	Seed     int64   `yaml:"seed"`
	DBPath   string  `yaml:"db_path"`
	APIPort  int     `yaml:"api_port"`
	Speed    float64 `yaml:"speed"`
	TickMs   int     `yaml:"tick_ms"`
	SaveEach uint64  `yaml:"save_every_ticks"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	World      World             `yaml:"world"`
	Colony     Colony            `yaml:"colony"`
	Entrapment entrapment.Config `yaml:"entrapment"`

	// From WORLDSIM_ADMIN_KEY / WORLDSIM_RELAY_KEY.
	AdminKey string `yaml:"-"`
	RelayKey string `yaml:"-"`
}

// World controls map generation.
type World struct {
	Radius     int     `yaml:"radius"`
	OpenLevel  float64 `yaml:"open_level"`
	CoreRadius int     `yaml:"core_radius"`
}

// Colony controls the population and the hazards that reshape the caverns.
type Colony struct {
	Population      int     `yaml:"population"`
	CommunalToilets int     `yaml:"communal_toilets"`
	ArrivalsPerDay  int     `yaml:"arrivals_per_day"`
	WanderChance    float64 `yaml:"wander_chance"`  // Per agent per tick
	CaveInChance    float64 `yaml:"cave_in_chance"` // Per tick
	CaveInRadius    int     `yaml:"cave_in_radius"` // Ring sealed around the epicentre
	TunnelChance    float64 `yaml:"tunnel_chance"`  // Per tick
	FallTicks       uint8   `yaml:"fall_ticks"`     // Ticks a displaced agent tumbles
	InjuryOnFall    float32 `yaml:"injury_on_fall"` // Health lost when caught in a cave-in
	RecoveryPerDay  float32 `yaml:"recovery_per_day"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Seed:      42,
		DBPath:    "data/colony.db",
		APIPort:   8080,
		Speed:     1,
		TickMs:    1000,
		SaveEach:  1440,
		LogLevel:  "info",
		LogFormat: "text",
		World: World{
			Radius:     24,
			OpenLevel:  0.48,
			CoreRadius: 4,
		},
		Colony: Colony{
			Population:      40,
			CommunalToilets: 3,
			ArrivalsPerDay:  1,
			WanderChance:    0.3,
			CaveInChance:    0.01,
			CaveInRadius:    2,
			TunnelChance:    0.02,
			FallTicks:       3,
			InjuryOnFall:    0.2,
			RecoveryPerDay:  0.1,
		},
		Entrapment: entrapment.DefaultConfig(),
	}
}

// Load reads the YAML file at path over the defaults. An empty path yields
// the defaults. Environment secrets are applied in both cases.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	cfg.AdminKey = os.Getenv("WORLDSIM_ADMIN_KEY")
	cfg.RelayKey = os.Getenv("WORLDSIM_RELAY_KEY")
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks ranges that would make the simulation meaningless.
func (c Config) Validate() error {
	var errs []error
	if c.World.Radius < 2 {
		errs = append(errs, fmt.Errorf("world.radius=%d, need at least 2", c.World.Radius))
	}
	if c.World.CoreRadius < 0 || c.World.CoreRadius >= c.World.Radius {
		errs = append(errs, fmt.Errorf("world.core_radius=%d must be in [0, radius)", c.World.CoreRadius))
	}
	if c.Colony.Population < 0 {
		errs = append(errs, fmt.Errorf("colony.population=%d must not be negative", c.Colony.Population))
	}
	for name, p := range map[string]float64{
		"wander_chance":  c.Colony.WanderChance,
		"cave_in_chance": c.Colony.CaveInChance,
		"tunnel_chance":  c.Colony.TunnelChance,
	} {
		if p < 0 || p > 1 {
			errs = append(errs, fmt.Errorf("colony.%s=%g must be within [0, 1]", name, p))
		}
	}
	if c.Speed < 0 {
		errs = append(errs, fmt.Errorf("speed=%g must not be negative", c.Speed))
	}
	if c.TickMs <= 0 {
		errs = append(errs, fmt.Errorf("tick_ms=%d must be positive", c.TickMs))
	}
	if err := c.Entrapment.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// GenConfig converts the world section to generator parameters.
func (c Config) GenConfig() world.GenConfig {
	return world.GenConfig{
		Radius:     c.World.Radius,
		Seed:       c.Seed,
		OpenLevel:  c.World.OpenLevel,
		CoreRadius: c.World.CoreRadius,
	}
}

// Interval is the real-time tick interval at speed 1.
func (c Config) Interval() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}
