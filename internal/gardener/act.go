package gardener

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrRescueRefused is returned when the colony accepted the request but
// reported that the intervention did not happen.
var ErrRescueRefused = errors.New("intervention refused")

// Rescue is what a dig changed in the colony.
type Rescue struct {
	Details string `json:"details"`
	Cells   int    `json:"cells"` // Cells opened around the colonist
}

// Actor posts interventions to the admin endpoint.
type Actor struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// NewActor creates an Actor that authenticates with adminKey.
func NewActor(baseURL, adminKey string) *Actor {
	return &Actor{BaseURL: baseURL, AdminKey: adminKey, HTTPClient: newHTTPClient()}
}

// Act sends iv and returns the reported outcome. A reply with success=false
// is an error, so a failed rescue is never remembered as done.
func (a *Actor) Act(iv *Intervention) (*Rescue, error) {
	body, err := json.Marshal(iv)
	if err != nil {
		return nil, fmt.Errorf("marshal intervention: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, a.BaseURL+"/api/v1/intervention", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.AdminKey)

	var reply struct {
		Success bool `json:"success"`
		Rescue
	}
	if err := doJSON(a.HTTPClient, req, &reply); err != nil {
		return nil, err
	}
	if !reply.Success {
		return nil, fmt.Errorf("%w: %s for agent %d: %s", ErrRescueRefused, iv.Type, iv.AgentID, reply.Details)
	}
	return &reply.Rescue, nil
}
