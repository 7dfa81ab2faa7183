package gardener

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func snapshot(tick uint64, population int, notices ...Notice) *ColonySnapshot {
	snap := &ColonySnapshot{}
	snap.Status.Tick = tick
	snap.Status.Stats.Population = population
	snap.Notifications.Active = notices
	return snap
}

func TestTriageLevels(t *testing.T) {
	cases := []struct {
		name    string
		snap    *ColonySnapshot
		want    string
		oldest  uint64
		trapped int
	}{
		{"healthy", snapshot(100, 20), LevelHealthy, 0, 0},
		{"watch", snapshot(100, 20, Notice{Tick: 40, AgentID: 1, Kind: "confined"}), LevelWatch, 60, 0},
		{"warning", snapshot(100, 20, Notice{Tick: 90, AgentID: 1, Kind: "trapped"}), LevelWarning, 10, 1},
		{"critical", snapshot(100, 4,
			Notice{Tick: 90, AgentID: 1, Kind: "trapped"},
			Notice{Tick: 95, AgentID: 2, Kind: "confined"},
		), LevelCritical, 10, 1},
	}
	for _, tc := range cases {
		h := Triage(tc.snap)
		if h.CrisisLevel != tc.want {
			t.Fatalf("%s: level=%s want=%s", tc.name, h.CrisisLevel, tc.want)
		}
		if h.OldestNotice != tc.oldest {
			t.Fatalf("%s: oldest=%d want=%d", tc.name, h.OldestNotice, tc.oldest)
		}
		if h.Trapped != tc.trapped {
			t.Fatalf("%s: trapped=%d want=%d", tc.name, h.Trapped, tc.trapped)
		}
	}
}

func TestDecidePrefersTrappedThenOldest(t *testing.T) {
	snap := snapshot(500, 20,
		Notice{Tick: 100, AgentID: 1, Name: "Ada", Kind: "confined"},
		Notice{Tick: 300, AgentID: 2, Name: "Bram", Kind: "trapped"},
		Notice{Tick: 200, AgentID: 3, Name: "Calla", Kind: "trapped"},
	)
	d := Decide(snap, Triage(snap), &CycleMemory{}, DefaultPolicy())
	if d.Action != "dig" || d.Intervention == nil {
		t.Fatalf("decision=%+v want dig", d)
	}
	if d.Intervention.AgentID != 3 || d.Intervention.Radius != 3 {
		t.Fatalf("target=%d radius=%d want=3/3", d.Intervention.AgentID, d.Intervention.Radius)
	}
}

func TestDecideWaitsAtWatchLevel(t *testing.T) {
	p := DefaultPolicy()
	snap := snapshot(100, 20, Notice{Tick: 50, AgentID: 1, Kind: "confined"})
	if d := Decide(snap, Triage(snap), &CycleMemory{}, p); d.Action != "none" {
		t.Fatalf("action=%s want none before patience runs out", d.Action)
	}

	snap.Status.Tick = 50 + p.Patience
	d := Decide(snap, Triage(snap), &CycleMemory{}, p)
	if d.Action != "dig" || d.Intervention.Radius != p.ConfinedRadius {
		t.Fatalf("decision=%+v want dig radius %d", d, p.ConfinedRadius)
	}
}

func TestDecideSkipsRecentRescues(t *testing.T) {
	p := DefaultPolicy()
	mem := &CycleMemory{}
	mem.Record(CycleRecord{Tick: 400, Action: "dig", AgentID: 2})

	snap := snapshot(500, 20,
		Notice{Tick: 300, AgentID: 2, Kind: "trapped"},
		Notice{Tick: 350, AgentID: 4, Kind: "confined"},
	)
	d := Decide(snap, Triage(snap), mem, p)
	if d.Action != "dig" || d.Intervention.AgentID != 4 {
		t.Fatalf("decision=%+v want dig for agent 4", d)
	}

	snap.Status.Tick = 400 + p.Cooldown
	d = Decide(snap, Triage(snap), mem, p)
	if d.Intervention == nil || d.Intervention.AgentID != 2 {
		t.Fatalf("decision=%+v want agent 2 once the cooldown expires", d)
	}
}

func TestMemoryPersistsAndTrims(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	mem := LoadMemory(path)
	for i := 0; i < maxRecords+5; i++ {
		mem.Record(CycleRecord{Tick: uint64(i), Action: "none"})
	}
	mem.Save()

	back := LoadMemory(path)
	if len(back.Records) != maxRecords {
		t.Fatalf("records=%d want=%d", len(back.Records), maxRecords)
	}
	if back.Records[0].Tick != 5 {
		t.Fatalf("first tick=%d want=5", back.Records[0].Tick)
	}
}

// fakeColony serves the endpoints the gardener reads and records interventions.
type fakeColony struct {
	refuse   bool
	mu       sync.Mutex
	status   map[string]any
	notices  []Notice
	received []Intervention
	auth     []string
}

func (f *fakeColony) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(f.status)
	})
	mux.HandleFunc("/api/v1/notifications", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"summary": "", "active": f.notices})
	})
	mux.HandleFunc("/api/v1/intervention", func(w http.ResponseWriter, r *http.Request) {
		var iv Intervention
		if err := json.NewDecoder(r.Body).Decode(&iv); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.received = append(f.received, iv)
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		f.mu.Unlock()
		if f.refuse {
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "details": "no such pocket"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "details": "dug", "cells": 6})
	})
	return mux
}

func TestRunCycleDigsOutTrappedColonist(t *testing.T) {
	colony := &fakeColony{
		status: map[string]any{
			"tick":  720,
			"stats": map[string]any{"population": 10, "trapped": 1},
		},
		notices: []Notice{{Tick: 700, AgentID: 7, Name: "Ada", Kind: "trapped"}},
	}
	srv := httptest.NewServer(colony.handler())
	defer srv.Close()

	g := &Gardener{
		Observer: NewObserver(srv.URL),
		Actor:    NewActor(srv.URL, "secret"),
		Memory:   LoadMemory(""),
		Policy:   DefaultPolicy(),
	}
	d, err := g.RunCycle()
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if d.Action != "dig" {
		t.Fatalf("action=%s want dig", d.Action)
	}
	if len(colony.received) != 1 || colony.received[0].AgentID != 7 || colony.received[0].Type != "dig" {
		t.Fatalf("received=%+v", colony.received)
	}
	if colony.auth[0] != "Bearer secret" {
		t.Fatalf("auth=%q", colony.auth[0])
	}
	if !g.Memory.RescuedRecently(7, 720, 10) {
		t.Fatalf("rescue not remembered")
	}
	if got := g.Memory.Records[0].Opened; got != 6 {
		t.Fatalf("opened=%d want=6", got)
	}

	// Second cycle sees the same notice but is within cooldown.
	d, err = g.RunCycle()
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if d.Action != "none" || len(colony.received) != 1 {
		t.Fatalf("action=%s interventions=%d want none/1", d.Action, len(colony.received))
	}
}

func TestRunCycleObserveError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	g := &Gardener{
		Observer: NewObserver(srv.URL),
		Actor:    NewActor(srv.URL, "k"),
		Memory:   LoadMemory(""),
		Policy:   DefaultPolicy(),
	}
	if _, err := g.RunCycle(); err == nil {
		t.Fatalf("expected error for missing endpoints")
	}
	if len(g.Memory.Records) != 0 {
		t.Fatalf("failed cycle was recorded")
	}
}

func TestRunCycleRefusedRescueIsNotRemembered(t *testing.T) {
	colony := &fakeColony{
		refuse: true,
		status: map[string]any{
			"tick":  720,
			"stats": map[string]any{"population": 10, "trapped": 1},
		},
		notices: []Notice{{Tick: 700, AgentID: 7, Name: "Ada", Kind: "trapped"}},
	}
	srv := httptest.NewServer(colony.handler())
	defer srv.Close()

	g := &Gardener{
		Observer: NewObserver(srv.URL),
		Actor:    NewActor(srv.URL, "secret"),
		Memory:   LoadMemory(""),
		Policy:   DefaultPolicy(),
	}
	_, err := g.RunCycle()
	if !errors.Is(err, ErrRescueRefused) {
		t.Fatalf("err=%v want ErrRescueRefused", err)
	}
	if g.Memory.RescuedRecently(7, 720, 240) {
		t.Fatalf("refused rescue was remembered")
	}
}

func TestActRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewActor(srv.URL, "wrong").Act(&Intervention{Type: "dig", AgentID: 1, Radius: 2})
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("err=%v want a 401 error", err)
	}
}
