package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/confinement/internal/engine"
	"github.com/talgya/confinement/internal/notify"
)

// relayAuthorized checks the relay key from the Authorization header, or
// the "key" query parameter for browsers that cannot set headers on a
// WebSocket handshake.
func (s *Server) relayAuthorized(w http.ResponseWriter, r *http.Request) bool {
	if s.RelayKey == "" {
		http.Error(w, "streaming disabled (no relay key)", http.StatusForbidden)
		return false
	}
	token, ok := bearer(r)
	if !ok {
		token = r.URL.Query().Get("key")
	}
	if token != s.RelayKey {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

// acquire bumps a connection counter unless it is at limit.
func acquire(counter *int32, limit int32) bool {
	if atomic.AddInt32(counter, 1) > limit {
		atomic.AddInt32(counter, -1)
		return false
	}
	return true
}

// handleStream provides an SSE endpoint for real-time event streaming.
// Requires bearer token auth and limits concurrent connections.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !s.relayAuthorized(w, r) {
		return
	}
	if !acquire(&s.sseConns, maxSSEConns) {
		http.Error(w, "too many SSE connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.sseConns, -1)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	subID, ch := s.Sim.Subscribe()
	defer s.Sim.Unsubscribe(subID)

	// Catch-up: the last 50 events.
	for _, e := range s.Sim.RecentEvents(50, "") {
		writeSSEEvent(w, e)
	}
	flusher.Flush()

	slog.Info("SSE client connected", "sub_id", subID)

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			writeSSEEvent(w, e)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			slog.Info("SSE client disconnected", "sub_id", subID)
			return
		}
	}
}

// writeSSEEvent writes a single event in SSE format.
func writeSSEEvent(w http.ResponseWriter, e engine.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", e.Seq, e.Category, data)
}

const (
	wsPingEvery   = 30 * time.Second
	wsReadTimeout = 2 * wsPingEvery
)

// FeedMessage is one WebSocket frame of the notification feed.
type FeedMessage struct {
	Type   string          `json:"type"` // "NOTICES" on connect, then "NOTICE" per change
	Tick   uint64          `json:"tick"`
	Active []notify.Notice `json:"active,omitempty"`
	Event  *engine.Event   `json:"event,omitempty"`
}

// handleWS serves the notification feed over WebSocket: the active board
// first, then every notification event as it happens.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.relayAuthorized(w, r) {
		return
	}
	if !acquire(&s.wsConns, maxWSConns) {
		http.Error(w, "too many feed connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.wsConns, -1)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	subID, ch := s.Sim.Subscribe()
	defer s.Sim.Unsubscribe(subID)

	s.Sim.RLock()
	hello := FeedMessage{Type: "NOTICES", Tick: s.Sim.LastTick, Active: s.Sim.Board.Active()}
	s.Sim.RUnlock()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Writer goroutine.
	writeErr := make(chan error, 1)
	go func() {
		send := func(m FeedMessage) error {
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			return conn.WriteJSON(m)
		}
		if err := send(hello); err != nil {
			writeErr <- err
			return
		}
		ping := time.NewTicker(wsPingEvery)
		defer ping.Stop()
		for {
			select {
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					writeErr <- err
					return
				}
			case <-ctx.Done():
				writeErr <- ctx.Err()
				return
			case e, ok := <-ch:
				if !ok {
					writeErr <- nil
					return
				}
				if e.Category != "notification" {
					continue
				}
				if err := send(FeedMessage{Type: "NOTICE", Tick: e.Tick, Event: &e}); err != nil {
					writeErr <- err
					return
				}
			}
		}
	}()

	slog.Info("feed client connected", "sub_id", subID)

	// Reader loop: only watches for the client going away. Pongs keep the
	// deadline moving.
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})
	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	cancel()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

	// Best-effort wait for the writer to stop so it doesn't outlive conn.
	select {
	case <-writeErr:
	case <-time.After(500 * time.Millisecond):
	}
	slog.Info("feed client disconnected", "sub_id", subID)
}
