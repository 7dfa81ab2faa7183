// Command gardener runs the colony steward.
// It polls the colony API and digs out colonists who stay confined or trapped.
package main

import (
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/confinement/internal/gardener"
	"github.com/talgya/confinement/internal/logging"
)

func main() {
	level, err := logging.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = slog.LevelInfo
	}
	logging.Init(level, envOrDefault("LOG_FORMAT", "text"))
	log := logging.New("gardener")

	apiURL := envOrDefault("WORLDSIM_API_URL", "http://localhost:8080")
	adminKey := os.Getenv("WORLDSIM_ADMIN_KEY")
	intervalMin := envIntOrDefault("GARDENER_INTERVAL", 10)
	memoryPath := envOrDefault("GARDENER_MEMORY", "gardener_memory.json")

	if adminKey == "" {
		log.Error("WORLDSIM_ADMIN_KEY is required")
		os.Exit(1)
	}

	interval := time.Duration(intervalMin) * time.Minute
	log.Info("gardener starting", "api_url", apiURL, "interval", interval)

	g := &gardener.Gardener{
		Observer: gardener.NewObserver(apiURL),
		Actor:    gardener.NewActor(apiURL, adminKey),
		Memory:   gardener.LoadMemory(memoryPath),
		Policy:   gardener.DefaultPolicy(),
		Log:      log,
	}

	log.Info("waiting for colony API...")
	waitForAPI(log, apiURL)

	runCycle(log, g)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			runCycle(log, g)
		case sig := <-sigCh:
			log.Info("received signal, shutting down", "signal", sig)
			return
		}
	}
}

func runCycle(log *slog.Logger, g *gardener.Gardener) {
	if _, err := g.RunCycle(); err != nil {
		log.Error("gardener cycle failed", "error", err)
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

// waitForAPI polls the status endpoint with exponential backoff until it
// responds. Exits after 5 minutes if the API never becomes ready.
func waitForAPI(log *slog.Logger, apiURL string) {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)

	for {
		resp, err := http.Get(apiURL + "/api/v1/status")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				log.Info("colony API is ready")
				return
			}
		}
		if time.Now().After(deadline) {
			log.Error("colony API did not become ready within 5 minutes")
			os.Exit(1)
		}
		log.Info("colony API not ready, retrying", "backoff", backoff)
		time.Sleep(backoff)
		backoff = min(backoff*2, maxBackoff)
	}
}
