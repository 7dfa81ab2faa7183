// Package api provides the HTTP API for observing the colony.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/confinement/internal/agents"
	"github.com/talgya/confinement/internal/engine"
	"github.com/talgya/confinement/internal/entrapment"
	"github.com/talgya/confinement/internal/notify"
	"github.com/talgya/confinement/internal/persistence"
	"github.com/talgya/confinement/internal/world"
)

const (
	maxSSEConns = 2
	maxWSConns  = 16
)

// Server serves the colony state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	DB       *persistence.DB // Optional; snapshot and history need it
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.
	RelayKey string // Bearer token for the SSE and WebSocket feeds. Empty = feeds disabled.

	// Interventions per client per hour; 0 uses the default.
	InterventionsPerHour int

	// Active feed connection counts (atomic).
	sseConns int32
	wsConns  int32

	upgrader websocket.Upgrader
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	perHour := s.InterventionsPerHour
	if perHour <= 0 {
		perHour = 60
	}
	interventionLimiter := NewRateLimiter(perHour, time.Hour)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4 * 1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return true }, // Feed is bearer-protected
	}

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/agent/", s.handleAgentDetail)
	mux.HandleFunc("/api/v1/notifications", s.handleNotifications)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/map", s.handleMap)
	mux.HandleFunc("/api/v1/history", s.handleHistory)

	// Streaming endpoints (GET, require the relay key).
	mux.HandleFunc("/api/v1/stream", s.handleStream)
	mux.HandleFunc("/api/v1/ws", s.handleWS)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(s.handleSnapshot))
	mux.HandleFunc("/api/v1/intervention", RateLimitMiddleware(interventionLimiter, s.adminOnly(s.handleIntervention)))

	return corsMiddleware(mux)
}

// Start serves the API until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "relay_auth", s.RelayKey != "")

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("HTTP API stopped")
	return nil
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearer extracts the bearer token of a request.
func bearer(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(auth, "Bearer "), true
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no WORLDSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if token, ok := bearer(r); !ok || token != s.AdminKey {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.Sim.RLock()
	tick := s.Sim.LastTick
	stats := s.Sim.Stats
	snap := s.Sim.Checker.Snapshot()
	cfg := s.Sim.Checker.Config()
	summary := s.Sim.Board.Summary()
	s.Sim.RUnlock()

	writeJSON(w, map[string]any{
		"name":     "Colony",
		"tick":     tick,
		"sim_time": engine.SimTime(tick),
		"speed":    s.Eng.Speed(),
		"running":  s.Eng.Running(),
		"stats":    stats,
		"entrapment": map[string]any{
			"most_reachable": snap.MostReachable,
			"threshold":      snap.Threshold,
			"roster":         snap.Roster,
			"step":           snap.Step,
			"pending":        snap.Pending,
			"cached":         len(snap.Statuses),
			"counters":       snap.Stats,
			"config":         cfg,
		},
		"notifications": summary,
	})
}

type agentSummary struct {
	ID        agents.AgentID   `json:"id"`
	Name      string           `json:"name"`
	Q         int              `json:"q"`
	R         int              `json:"r"`
	Health    float32          `json:"health"`
	Falling   bool             `json:"falling"`
	Reachable *int             `json:"reachable,omitempty"` // Omitted until first evaluated
	Shown     entrapment.State `json:"shown"`
}

// summarize describes a colonist; the caller holds the read lock.
func (s *Server) summarize(a *agents.Agent) agentSummary {
	coord, _ := s.Sim.Map.CoordOf(a.Position)
	out := agentSummary{
		ID:      a.ID,
		Name:    a.Name,
		Q:       coord.Q,
		R:       coord.R,
		Health:  a.Health,
		Falling: a.Falling(),
	}
	if st, ok := s.Sim.Checker.Status(a.ID); ok {
		reach := st.Reachable
		out.Reachable = &reach
	}
	switch {
	case s.Sim.Board.Shown(a.ID, entrapment.StateConfined):
		out.Shown = entrapment.StateConfined
	case s.Sim.Board.Shown(a.ID, entrapment.StateTrapped):
		out.Shown = entrapment.StateTrapped
	}
	return out
}

// handleAgents lists live colonists, optionally only those with a shown
// notice of ?state=confined|trapped.
func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	filter := entrapment.StateNone
	if q := r.URL.Query().Get("state"); q != "" {
		st, err := entrapment.ParseState(q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		filter = st
	}

	s.Sim.RLock()
	result := make([]agentSummary, 0, len(s.Sim.Agents))
	for _, a := range s.Sim.Agents {
		if !a.Live() {
			continue
		}
		if filter != entrapment.StateNone && !s.Sim.Board.Shown(a.ID, filter) {
			continue
		}
		result = append(result, s.summarize(a))
	}
	s.Sim.RUnlock()

	writeJSON(w, result)
}

// handleAgentDetail serves GET /api/v1/agent/{id}.
func (s *Server) handleAgentDetail(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/v1/agent/")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid agent id", http.StatusBadRequest)
		return
	}

	s.Sim.RLock()
	defer s.Sim.RUnlock()

	a, ok := s.Sim.AgentIndex[agents.AgentID(id)]
	if !ok {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}

	type building struct {
		ID     uint64 `json:"id"`
		Slot   string `json:"slot"`
		Q      int    `json:"q"`
		R      int    `json:"r"`
		Usable bool   `json:"usable"`
		Own    bool   `json:"own"`
	}
	var buildings []building
	for _, slot := range []agents.Slot{agents.SlotBed, agents.SlotMessTable, agents.SlotToilet} {
		for _, it := range s.Sim.Registry.Preferred(a.ID, slot) {
			coord, _ := s.Sim.Map.CoordOf(it.Cell)
			buildings = append(buildings, building{
				ID:     it.ID,
				Slot:   agents.SlotName(it.Slot),
				Q:      coord.Q,
				R:      coord.R,
				Usable: it.Usable(),
				Own:    it.Owner == a.ID,
			})
		}
	}

	resp := map[string]any{
		"agent":     s.summarize(a),
		"alive":     a.Alive,
		"spawned":   a.Spawned,
		"born_tick": a.BornTick,
		"buildings": buildings,
	}
	if st, ok := s.Sim.Checker.Status(a.ID); ok {
		resp["status"] = st
		resp["trapped_score"] = st.TrappedScore()
	}
	writeJSON(w, resp)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	s.Sim.RLock()
	active := s.Sim.Board.Active()
	summary := s.Sim.Board.Summary()
	s.Sim.RUnlock()

	if active == nil {
		active = []notify.Notice{}
	}
	writeJSON(w, map[string]any{
		"summary": summary,
		"active":  active,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	writeJSON(w, s.Sim.RecentEvents(limit, r.URL.Query().Get("category")))
}

// handleMap returns every cell for the hex map renderer plus colonist
// positions.
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	type cellEntry struct {
		Q       int    `json:"q"`
		R       int    `json:"r"`
		Terrain string `json:"terrain"`
	}

	s.Sim.RLock()
	m := s.Sim.Map
	cells := make([]cellEntry, 0, m.CellCount())
	for c := world.Cell(1); int(c) <= m.CellCount(); c++ {
		coord, _ := m.CoordOf(c)
		cells = append(cells, cellEntry{Q: coord.Q, R: coord.R, Terrain: world.TerrainName(m.Terrain(c))})
	}
	colonists := make([]agentSummary, 0, len(s.Sim.Agents))
	for _, a := range s.Sim.Agents {
		if a.Live() {
			colonists = append(colonists, s.summarize(a))
		}
	}
	radius := m.Radius
	s.Sim.RUnlock()

	writeJSON(w, map[string]any{
		"radius": radius,
		"cells":  cells,
		"agents": colonists,
	})
}

// handleHistory reports saved notification history from the database.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	counts, err := s.DB.NoticeCounts()
	if err != nil {
		slog.Error("notice counts failed", "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	recent, err := s.DB.RecentNotices(50)
	if err != nil {
		slog.Error("recent notices failed", "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"run_id": s.DB.RunID(),
		"counts": counts,
		"recent": recent,
	})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	if err := s.DB.SaveWorldState(s.Sim); err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"tick":    s.Sim.CurrentTick(),
		"message": "snapshot saved",
	})
}

// InterventionRequest is the body of POST /api/v1/intervention.
type InterventionRequest struct {
	Type        string         `json:"type"`
	AgentID     agents.AgentID `json:"agent_id,omitempty"`
	Radius      int            `json:"radius,omitempty"`
	Count       int            `json:"count,omitempty"`
	Description string         `json:"description,omitempty"`
	Category    string         `json:"category,omitempty"`
}

// InterventionResponse is the reply to a successful intervention.
type InterventionResponse struct {
	Success bool   `json:"success"`
	Details string `json:"details"`
	Cells   int    `json:"cells,omitempty"` // Opened by dig, sealed by collapse
}

func (s *Server) handleIntervention(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req InterventionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var (
		desc  string
		cells int
		err   error
	)
	switch req.Type {
	case "event":
		if req.Description == "" {
			http.Error(w, "description required for event type", http.StatusBadRequest)
			return
		}
		cat := req.Category
		if cat == "" {
			cat = "intervention"
		}
		s.Sim.EmitEvent(engine.Event{Description: req.Description, Category: cat})
		desc = "event injected"

	case "dig", "collapse":
		var out engine.Outcome
		if req.Type == "dig" {
			out, err = s.Sim.Dig(req.AgentID, req.Radius)
		} else {
			out, err = s.Sim.Collapse(req.AgentID, req.Radius)
		}
		desc, cells = out.Description, out.Cells

	case "spawn":
		var ids []agents.AgentID
		ids, err = s.Sim.SpawnColonists(req.Count)
		if err == nil {
			desc = fmt.Sprintf("%d colonists arrived (ids %v)", len(ids), ids)
		}

	case "remove":
		desc, err = s.Sim.RemoveAgent(req.AgentID)

	default:
		http.Error(w, "unknown intervention type (use: event, dig, collapse, spawn, remove)", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, InterventionResponse{Success: true, Details: desc, Cells: cells})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Debug("write json failed", "error", err)
	}
}
