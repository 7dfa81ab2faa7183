// Package world provides the hex cell grid the colony lives in.
// Uses axial coordinates (q, r) for the hex grid and a dense cell index for
// everything that needs a compact location handle.
package world

// HexCoord represents a position on the hex grid using axial coordinates.
// The third cube coordinate s is derived: s = -q - r.
type HexCoord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// S returns the implicit third cube coordinate.
func (h HexCoord) S() int {
	return -h.Q - h.R
}

// Cell is a dense index into a Map. NoCell (0) is never a real location, so a
// zero Cell means "nothing assigned" wherever cells are stored.
type Cell int

// NoCell is the sentinel for "no location".
const NoCell Cell = 0

// Terrain types for cells.
type Terrain uint8

const (
	TerrainOpen    Terrain = iota // Walkable floor
	TerrainRock                   // Solid, can be dug out or collapse back
	TerrainBedrock                // Map rim, never changes
)

// HexNeighborDirections defines the six neighbor offsets in axial coordinates.
var HexNeighborDirections = [6]HexCoord{
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
}

// Neighbors returns the six adjacent hex coordinates.
func (h HexCoord) Neighbors() [6]HexCoord {
	var result [6]HexCoord
	for i, dir := range HexNeighborDirections {
		result[i] = HexCoord{Q: h.Q + dir.Q, R: h.R + dir.R}
	}
	return result
}

// Distance returns the hex distance between two coordinates.
func Distance(a, b HexCoord) int {
	dq := abs(a.Q - b.Q)
	dr := abs(a.R - b.R)
	ds := abs(a.S() - b.S())
	// Max of the three absolute differences in cube coordinates.
	return max(dq, dr, ds)
}

// TerrainName returns a human-readable name for a terrain type.
func TerrainName(t Terrain) string {
	switch t {
	case TerrainOpen:
		return "Open"
	case TerrainRock:
		return "Rock"
	case TerrainBedrock:
		return "Bedrock"
	default:
		return "Unknown"
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
