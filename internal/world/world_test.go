package world

import "testing"

func TestNewMapNumbering(t *testing.T) {
	m := NewMap(2)
	if got, want := m.CellCount(), 19; got != want {
		t.Fatalf("CellCount=%d want=%d", got, want)
	}
	for c := Cell(1); int(c) <= m.CellCount(); c++ {
		coord, ok := m.CoordOf(c)
		if !ok {
			t.Fatalf("CoordOf(%d) not ok", c)
		}
		if back := m.CellOf(coord); back != c {
			t.Fatalf("CellOf(CoordOf(%d))=%d", c, back)
		}
	}
	if _, ok := m.CoordOf(NoCell); ok {
		t.Fatal("NoCell must not resolve to a coordinate")
	}
	if m.CellOf(HexCoord{Q: 5, R: 5}) != NoCell {
		t.Fatal("out of bounds coord must map to NoCell")
	}
}

func TestBedrockRimIsImmutable(t *testing.T) {
	m := NewMap(3)
	rim := m.CellOf(HexCoord{Q: 3, R: 0})
	if m.Terrain(rim) != TerrainBedrock {
		t.Fatalf("rim terrain=%s want=Bedrock", TerrainName(m.Terrain(rim)))
	}
	if m.SetTerrain(rim, TerrainOpen) {
		t.Fatal("bedrock must not change")
	}
	inner := m.CellOf(HexCoord{Q: 1, R: 0})
	if !m.SetTerrain(inner, TerrainOpen) || !m.Passable(inner) {
		t.Fatal("inner rock should open")
	}
}

func TestWithinCountsHexDisk(t *testing.T) {
	m := NewMap(5)
	center := m.CellOf(HexCoord{})
	for radius, want := range []int{1, 7, 19, 37} {
		if got := len(m.Within(center, radius)); got != want {
			t.Errorf("Within(r=%d)=%d want=%d", radius, got, want)
		}
	}
}

func TestNeighborsAtEdge(t *testing.T) {
	m := NewMap(1)
	edge := m.CellOf(HexCoord{Q: 1, R: 0})
	missing := 0
	for _, n := range m.Neighbors(edge) {
		if n == NoCell {
			missing++
		}
	}
	if missing != 3 {
		t.Fatalf("edge cell missing neighbours=%d want=3", missing)
	}
}

func TestLayoutRoundTrip(t *testing.T) {
	m := Generate(SmallTestConfig())
	layout := m.Layout()

	other := NewMap(m.Radius)
	if err := other.ApplyLayout(layout); err != nil {
		t.Fatalf("ApplyLayout: %v", err)
	}
	for c := Cell(1); int(c) <= m.CellCount(); c++ {
		if m.Terrain(c) != other.Terrain(c) {
			t.Fatalf("cell %d terrain mismatch", c)
		}
	}
	if err := other.ApplyLayout(layout[:3]); err == nil {
		t.Fatal("short layout must be rejected")
	}
}

func TestGenerateOpensCore(t *testing.T) {
	cfg := SmallTestConfig()
	m := Generate(cfg)
	core := m.CellOf(HexCoord{})
	for _, c := range m.Within(core, cfg.CoreRadius) {
		if !m.Passable(c) {
			coord, _ := m.CoordOf(c)
			t.Fatalf("core cell %v not open", coord)
		}
	}
	if Generate(cfg).String() != m.String() {
		t.Fatal("same seed should yield the same map size")
	}
}
