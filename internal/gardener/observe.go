// Package gardener implements the colony steward.
// It observes the colony via the API, decides on a rescue by fixed rules,
// and acts via the admin intervention endpoint.
package gardener

import (
	"fmt"
	"net/http"
)

// ColonySnapshot holds all data collected during an observation cycle.
type ColonySnapshot struct {
	Status        ColonyStatus  `json:"status"`
	Notifications Notifications `json:"notifications"`
}

// ColonyStatus mirrors GET /api/v1/status.
type ColonyStatus struct {
	Tick    uint64  `json:"tick"`
	SimTime string  `json:"sim_time"`
	Speed   float64 `json:"speed"`
	Running bool    `json:"running"`
	Stats   struct {
		Population int `json:"population"`
		Dead       int `json:"dead"`
		Falling    int `json:"falling"`
		Confined   int `json:"confined"`
		Trapped    int `json:"trapped"`
		OpenCells  int `json:"open_cells"`
	} `json:"stats"`
	Entrapment struct {
		MostReachable int `json:"most_reachable"`
		Threshold     int `json:"threshold"`
		Pending       int `json:"pending"`
	} `json:"entrapment"`
}

// Notice mirrors one active notice from GET /api/v1/notifications.
type Notice struct {
	Tick    uint64 `json:"tick"` // When it was shown
	AgentID uint64 `json:"agent_id"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
}

// Notifications mirrors GET /api/v1/notifications.
type Notifications struct {
	Summary string   `json:"summary"`
	Active  []Notice `json:"active"`
}

// Observer fetches colony state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{BaseURL: baseURL, HTTPClient: newHTTPClient()}
}

// Observe fetches the status and notification endpoints.
func (o *Observer) Observe() (*ColonySnapshot, error) {
	snap := &ColonySnapshot{}
	if err := o.get("/api/v1/status", &snap.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if err := o.get("/api/v1/notifications", &snap.Notifications); err != nil {
		return nil, fmt.Errorf("fetch notifications: %w", err)
	}
	return snap, nil
}

func (o *Observer) get(path string, target any) error {
	req, err := http.NewRequest(http.MethodGet, o.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return doJSON(o.HTTPClient, req, target)
}
