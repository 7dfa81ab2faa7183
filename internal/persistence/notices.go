package persistence

import (
	"github.com/talgya/confinement/internal/agents"
	"github.com/talgya/confinement/internal/engine"
	"github.com/talgya/confinement/internal/entrapment"
	"github.com/talgya/confinement/internal/notify"
)

// StatusRow is a saved entrapment status.
type StatusRow struct {
	AgentID            uint64 `db:"agent_id" json:"agent_id"`
	Name               string `db:"name" json:"name"`
	Reachable          int    `db:"reachable" json:"reachable"`
	CanReachSleep      bool   `db:"can_reach_sleep" json:"can_reach_sleep"`
	CanReachMeal       bool   `db:"can_reach_meal" json:"can_reach_meal"`
	CanReachSanitation bool   `db:"can_reach_sanitation" json:"can_reach_sanitation"`
	LastShown          string `db:"last_shown" json:"last_shown"`
	UpdatedTick        uint64 `db:"updated_tick" json:"updated_tick"`
	Evaluations        uint64 `db:"evaluations" json:"evaluations"`
}

// NoticeRow is one recorded notification change.
type NoticeRow struct {
	RunID   string `db:"run_id" json:"run_id"`
	Tick    uint64 `db:"tick" json:"tick"`
	AgentID uint64 `db:"agent_id" json:"agent_id"`
	Name    string `db:"name" json:"name"`
	Kind    string `db:"kind" json:"kind"`
	Visible bool   `db:"visible" json:"visible"`
}

// LatestStatuses returns the statuses of the last save, least reach first.
func (db *DB) LatestStatuses() ([]StatusRow, error) {
	var rows []StatusRow
	err := db.conn.Select(&rows, `SELECT agent_id, name, reachable, can_reach_sleep,
		can_reach_meal, can_reach_sanitation, last_shown, updated_tick, evaluations
		FROM statuses ORDER BY reachable ASC, agent_id ASC`)
	return rows, err
}

// NoticeCounts returns how many times each kind of notification was shown.
func (db *DB) NoticeCounts() (map[string]int, error) {
	var rows []struct {
		Kind  string `db:"kind"`
		Count int    `db:"n"`
	}
	err := db.conn.Select(&rows,
		"SELECT kind, COUNT(*) AS n FROM notices WHERE visible = 1 GROUP BY kind")
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Kind] = r.Count
	}
	return counts, nil
}

// RecentNotices returns the newest notification changes first.
func (db *DB) RecentNotices(limit int) ([]NoticeRow, error) {
	var rows []NoticeRow
	err := db.conn.Select(&rows,
		"SELECT run_id, tick, agent_id, name, kind, visible FROM notices ORDER BY id DESC LIMIT ?",
		limit,
	)
	return rows, err
}

// noticeFromEvent recovers the board change carried by a notification event.
func noticeFromEvent(e engine.Event) (notify.Notice, bool) {
	if e.Category != "notification" || e.Meta == nil {
		return notify.Notice{}, false
	}
	id, ok := e.Meta["agent_id"].(agents.AgentID)
	if !ok {
		return notify.Notice{}, false
	}
	kindName, _ := e.Meta["kind"].(string)
	kind, err := entrapment.ParseState(kindName)
	if err != nil || kind == entrapment.StateNone {
		return notify.Notice{}, false
	}
	visible, _ := e.Meta["visible"].(bool)
	name, _ := e.Meta["name"].(string)
	return notify.Notice{Tick: e.Tick, AgentID: id, Name: name, Kind: kind, Visible: visible}, true
}
