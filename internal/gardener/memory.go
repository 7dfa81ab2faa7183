package gardener

import (
	"encoding/json"
	"log/slog"
	"os"
)

const maxRecords = 50

// CycleRecord captures what happened in a single gardener cycle.
type CycleRecord struct {
	Tick        uint64  `json:"tick"`
	Action      string  `json:"action"`
	CrisisLevel string  `json:"crisis_level"`
	Affected    float64 `json:"affected_fraction"`
	AgentID     uint64  `json:"agent_id,omitempty"`
	Name        string  `json:"name,omitempty"`
	Opened      int     `json:"opened,omitempty"` // Cells the dig opened
	Rationale   string  `json:"rationale,omitempty"`
}

// CycleMemory manages a ring of recent gardener cycle records.
type CycleMemory struct {
	Records []CycleRecord `json:"records"`

	path string
}

// LoadMemory reads the memory file from disk. Returns empty memory if not found.
func LoadMemory(path string) *CycleMemory {
	data, err := os.ReadFile(path)
	if err != nil {
		return &CycleMemory{path: path}
	}
	var mem CycleMemory
	if err := json.Unmarshal(data, &mem); err != nil {
		slog.Warn("gardener memory corrupted, starting fresh", "error", err)
		return &CycleMemory{path: path}
	}
	mem.path = path
	return &mem
}

// Save writes the memory to disk. A memory without a path is kept in RAM only.
func (m *CycleMemory) Save() {
	if m.path == "" {
		return
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		slog.Error("failed to marshal gardener memory", "error", err)
		return
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		slog.Error("failed to write gardener memory", "error", err)
	}
}

// Record adds a cycle record, trimming to maxRecords.
func (m *CycleMemory) Record(r CycleRecord) {
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// RescuedRecently reports whether the agent was dug out within the last
// `within` ticks before tick.
func (m *CycleMemory) RescuedRecently(agentID, tick, within uint64) bool {
	for _, r := range m.Records {
		if r.Action != "dig" || r.AgentID != agentID {
			continue
		}
		if r.Tick <= tick && tick-r.Tick < within {
			return true
		}
	}
	return false
}
