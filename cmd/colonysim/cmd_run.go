package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/confinement/internal/agents"
	"github.com/talgya/confinement/internal/api"
	"github.com/talgya/confinement/internal/config"
	"github.com/talgya/confinement/internal/engine"
	"github.com/talgya/confinement/internal/logging"
	"github.com/talgya/confinement/internal/persistence"
	"github.com/talgya/confinement/internal/world"
)

var runFlags struct {
	fresh bool
	port  int
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the colony with its HTTP API",
	RunE:  runColony,
}

func init() {
	f := runCmd.Flags()
	f.BoolVar(&runFlags.fresh, "fresh", false, "Ignore saved snapshots and settle a new colony")
	f.IntVar(&runFlags.port, "port", 0, "Override the API port")
}

func runColony(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runFlags.port > 0 {
		cfg.APIPort = runFlags.port
	}
	log := logging.New("colonysim")

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("database opened", "path", cfg.DBPath, "run_id", db.RunID())

	sim, startTick, err := buildSimulation(cfg, db, log)
	if err != nil {
		return err
	}

	eng := engine.NewEngine(startTick, cfg.Interval())
	eng.SetSpeed(cfg.Speed)
	eng.SaveEvery = cfg.SaveEach
	eng.OnTick = sim.TickMinute
	eng.OnDay = sim.TickDay
	eng.OnSave = func(tick uint64) {
		if err := db.SaveWorldState(sim); err != nil {
			log.Error("periodic save failed", "tick", tick, "error", err)
			return
		}
		log.Info("colony saved", "tick", tick, "sim_time", engine.SimTime(tick))
	}

	srv := &api.Server{
		Sim:      sim,
		Eng:      eng,
		DB:       db,
		Port:     cfg.APIPort,
		AdminKey: cfg.AdminKey,
		RelayKey: cfg.RelayKey,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(gctx) })
	g.Go(func() error { return srv.Start(gctx) })

	log.Info("colony running",
		"tick", startTick,
		"sim_time", engine.SimTime(startTick),
		"population", len(sim.Agents),
		"port", cfg.APIPort,
	)

	runErr := g.Wait()
	if err := db.SaveWorldState(sim); err != nil {
		log.Error("final save failed", "error", err)
		runErr = errors.Join(runErr, err)
	} else {
		log.Info("final state saved", "tick", sim.CurrentTick())
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// buildSimulation resumes from the newest snapshot or settles a new colony.
func buildSimulation(cfg config.Config, db *persistence.DB, log *slog.Logger) (*engine.Simulation, uint64, error) {
	opts := engine.Options{
		Seed:       cfg.Seed,
		Colony:     cfg.Colony,
		Entrapment: cfg.Entrapment,
		Logger:     log,
	}

	if !runFlags.fresh {
		snap, err := db.LoadSnapshot()
		switch {
		case err == nil:
			m, err := snap.Map()
			if err != nil {
				return nil, 0, err
			}
			spawner := agents.NewSpawner(cfg.Seed + int64(snap.Tick))
			spawner.SetNextID(snap.NextAgentID)
			sim, err := engine.NewSimulation(m, snap.Population(), snap.Registry(), spawner, opts)
			if err != nil {
				return nil, 0, err
			}
			sim.LastTick = snap.Tick
			sim.Stats.Dead = snap.Stats.Dead
			sim.Stats.Arrivals = snap.Stats.Arrivals
			sim.Stats.CaveIns = snap.Stats.CaveIns
			sim.Stats.Tunnels = snap.Stats.Tunnels
			log.Info("colony restored",
				"tick", snap.Tick,
				"sim_time", engine.SimTime(snap.Tick),
				"agents", len(snap.Agents),
				"buildings", len(snap.Assignables),
			)
			return sim, snap.Tick, nil
		case !errors.Is(err, persistence.ErrNoSnapshot):
			return nil, 0, fmt.Errorf("load snapshot: %w", err)
		}
	}

	log.Info("generating caverns", "radius", cfg.World.Radius, "seed", cfg.Seed)
	m := world.Generate(cfg.GenConfig())
	for t, c := range m.TerrainCounts() {
		log.Debug("terrain", "type", world.TerrainName(t), "count", c)
	}

	spawner := agents.NewSpawner(cfg.Seed)
	reg := agents.NewRegistry()
	pop := engine.SettleColony(m, spawner, reg, cfg.Colony, cfg.Seed)
	sim, err := engine.NewSimulation(m, pop, reg, spawner, opts)
	if err != nil {
		return nil, 0, err
	}
	log.Info("colony settled", "colonists", len(pop), "buildings", len(reg.All()))
	return sim, 0, nil
}
