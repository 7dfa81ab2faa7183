package world

import "fmt"

// Map holds the complete hex grid. Cells are numbered 1..CellCount in a fixed
// order derived from the radius, so the same radius always yields the same
// numbering.
type Map struct {
	Radius int `json:"radius"`

	coords  []HexCoord // cell → coord, index 0 unused
	terrain []Terrain  // cell → terrain, index 0 unused
	index   map[HexCoord]Cell
}

// NewMap creates a map of the given radius with every cell set to rock and the
// outer ring set to bedrock.
// A hex grid of radius R contains hexes where max(|q|, |r|, |s|) <= R.
func NewMap(radius int) *Map {
	size := 3*radius*(radius+1) + 1
	m := &Map{
		Radius:  radius,
		coords:  make([]HexCoord, 1, size+1),
		terrain: make([]Terrain, 1, size+1),
		index:   make(map[HexCoord]Cell, size),
	}
	for q := -radius; q <= radius; q++ {
		for r := -radius; r <= radius; r++ {
			coord := HexCoord{Q: q, R: r}
			if !m.InBounds(coord) {
				continue
			}
			t := TerrainRock
			if ring(coord) == radius {
				t = TerrainBedrock
			}
			m.index[coord] = Cell(len(m.coords))
			m.coords = append(m.coords, coord)
			m.terrain = append(m.terrain, t)
		}
	}
	return m
}

// InBounds returns true if the coordinate is within the map radius.
func (m *Map) InBounds(coord HexCoord) bool {
	return ring(coord) <= m.Radius
}

// CellOf returns the cell at coord, or NoCell if out of bounds.
func (m *Map) CellOf(coord HexCoord) Cell {
	return m.index[coord]
}

// CoordOf returns the coordinate of a cell. ok is false for NoCell and
// out-of-range indices.
func (m *Map) CoordOf(c Cell) (HexCoord, bool) {
	if !m.Valid(c) {
		return HexCoord{}, false
	}
	return m.coords[c], true
}

// Valid reports whether c names a real cell of this map.
func (m *Map) Valid(c Cell) bool {
	return c > NoCell && int(c) < len(m.coords)
}

// Terrain returns the terrain of a cell; invalid cells read as bedrock.
func (m *Map) Terrain(c Cell) Terrain {
	if !m.Valid(c) {
		return TerrainBedrock
	}
	return m.terrain[c]
}

// SetTerrain changes a cell. Bedrock cells are immutable; the return value
// reports whether anything changed.
func (m *Map) SetTerrain(c Cell, t Terrain) bool {
	if !m.Valid(c) || m.terrain[c] == TerrainBedrock || m.terrain[c] == t {
		return false
	}
	m.terrain[c] = t
	return true
}

// Passable reports whether agents can stand in and move through the cell.
func (m *Map) Passable(c Cell) bool {
	return m.Terrain(c) == TerrainOpen
}

// Neighbors returns the six neighbouring cells; entries outside the map are
// NoCell.
func (m *Map) Neighbors(c Cell) [6]Cell {
	var result [6]Cell
	coord, ok := m.CoordOf(c)
	if !ok {
		return result
	}
	for i, n := range coord.Neighbors() {
		result[i] = m.index[n]
	}
	return result
}

// Within returns every cell whose distance from center is at most radius.
func (m *Map) Within(center Cell, radius int) []Cell {
	origin, ok := m.CoordOf(center)
	if !ok {
		return nil
	}
	var cells []Cell
	for dq := -radius; dq <= radius; dq++ {
		for dr := max(-radius, -dq-radius); dr <= min(radius, -dq+radius); dr++ {
			if c := m.index[HexCoord{Q: origin.Q + dq, R: origin.R + dr}]; c != NoCell {
				cells = append(cells, c)
			}
		}
	}
	return cells
}

// OpenCells lists all passable cells in index order.
func (m *Map) OpenCells() []Cell {
	var cells []Cell
	for i := 1; i < len(m.terrain); i++ {
		if m.terrain[i] == TerrainOpen {
			cells = append(cells, Cell(i))
		}
	}
	return cells
}

// CellCount returns the total number of cells in the map.
func (m *Map) CellCount() int {
	return len(m.coords) - 1
}

// Layout returns the terrain of every cell in index order, one byte per cell.
func (m *Map) Layout() []byte {
	out := make([]byte, len(m.terrain)-1)
	for i := 1; i < len(m.terrain); i++ {
		out[i-1] = byte(m.terrain[i])
	}
	return out
}

// ApplyLayout restores terrain previously captured with Layout.
func (m *Map) ApplyLayout(layout []byte) error {
	if len(layout) != m.CellCount() {
		return fmt.Errorf("layout has %d cells, map has %d", len(layout), m.CellCount())
	}
	for i, b := range layout {
		if Terrain(b) > TerrainBedrock {
			return fmt.Errorf("cell %d: unknown terrain %d", i+1, b)
		}
		m.terrain[i+1] = Terrain(b)
	}
	return nil
}

// TerrainCounts returns a summary of terrain type distribution.
func (m *Map) TerrainCounts() map[Terrain]int {
	counts := make(map[Terrain]int)
	for i := 1; i < len(m.terrain); i++ {
		counts[m.terrain[i]]++
	}
	return counts
}

// String returns a summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(radius=%d, cells=%d)", m.Radius, m.CellCount())
}

func ring(h HexCoord) int {
	return max(abs(h.Q), abs(h.R), abs(h.S()))
}
