// Colony generation using layered simplex noise.
// Carves open caverns out of solid rock; the origin core is always open so the
// colony has a starting hall.
package world

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds map generation parameters.
type GenConfig struct {
	Radius     int     // Hex grid radius
	Seed       int64   // Random seed (0 = random)
	OpenLevel  float64 // Noise level above which rock is carved open (0.0–1.0)
	CoreRadius int     // Radius of the always-open hall around the origin
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Radius:     24,
		Seed:       0,
		OpenLevel:  0.48,
		CoreRadius: 4,
	}
}

// SmallTestConfig returns a tiny map for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Radius:     6,
		Seed:       42,
		OpenLevel:  0.5,
		CoreRadius: 2,
	}
}

// Generate creates a complete map with caverns carved out.
func Generate(cfg GenConfig) *Map {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	// Two noise layers: broad caverns and fine tunnels.
	caveNoise := opensimplex.NewNormalized(seed)
	tunnelNoise := opensimplex.NewNormalized(seed + 1)

	m := NewMap(cfg.Radius)
	core := m.CellOf(HexCoord{})

	for c := Cell(1); int(c) <= m.CellCount(); c++ {
		if m.Terrain(c) == TerrainBedrock {
			continue
		}
		coord, _ := m.CoordOf(c)

		// Hex axial → cartesian: x = q + r*0.5, y = r * sqrt(3)/2
		x := float64(coord.Q) + float64(coord.R)*0.5
		y := float64(coord.R) * math.Sqrt(3.0) / 2.0

		cave := octaveNoise(caveNoise, x, y, 3, 0.09, 0.5)
		tunnel := octaveNoise(tunnelNoise, x, y, 2, 0.25, 0.5)
		level := cave*0.75 + tunnel*0.25

		if level > cfg.OpenLevel || Distance(coord, HexCoord{}) <= cfg.CoreRadius {
			m.SetTerrain(c, TerrainOpen)
		}
	}

	// The core must exist even on degenerate configs.
	m.SetTerrain(core, TerrainOpen)
	return m
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
