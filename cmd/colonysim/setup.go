package main

import (
	"fmt"

	"github.com/talgya/confinement/internal/config"
	"github.com/talgya/confinement/internal/logging"
)

// loadConfig reads the tuning file and installs the global logger.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		return cfg, err
	}
	if rootFlags.logLevel != "" {
		cfg.LogLevel = rootFlags.logLevel
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return cfg, fmt.Errorf("log level: %w", err)
	}
	logging.Init(level, cfg.LogFormat)
	return cfg, nil
}
