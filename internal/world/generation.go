// Procedural terrain using layered simplex noise.
// Water (low elevation) and peaks (high elevation) are blocked; everything in
// between is buildable land.
package world

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds terrain generation parameters.
type GenConfig struct {
	Width       int
	Height      int
	Seed        int64   // Random seed (0 = random)
	SeaLevel    float64 // Elevation below which cells are water (0.0–1.0)
	MountainLvl float64 // Elevation above which cells are impassable peaks (0.0–1.0)
	Frequency   float64 // Base noise frequency per cell
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:       1024,
		Height:      786,
		Seed:        0,
		SeaLevel:    0.30,
		MountainLvl: 0.78,
		Frequency:   0.006,
	}
}

// SmallTestConfig returns a tiny map for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Width:       64,
		Height:      48,
		Seed:        42,
		SeaLevel:    0.30,
		MountainLvl: 0.78,
		Frequency:   0.05,
	}
}

// Generate creates a terrain grid from noise.
func Generate(cfg GenConfig) *Grid {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	freq := cfg.Frequency
	if freq <= 0 {
		freq = DefaultGenConfig().Frequency
	}

	elevNoise := opensimplex.NewNormalized(seed)

	g := NewGrid(cfg.Width, cfg.Height)
	cx := float64(cfg.Width) / 2
	cy := float64(cfg.Height) / 2
	maxDist := math.Hypot(cx, cy)

	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			elev := octaveNoise(elevNoise, float64(x), float64(y), 4, freq, 0.5)

			// Continental shaping: lower the edges so the map is ringed by water.
			dist := math.Hypot(float64(x)-cx, float64(y)-cy) / maxDist
			falloff := 1.0 - math.Pow(dist, 3.5)
			if falloff < 0 {
				falloff = 0
			}
			elev *= falloff

			g.Set(x, y, elev < cfg.SeaLevel || elev > cfg.MountainLvl)
		}
	}

	return g
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
