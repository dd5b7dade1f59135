package mapgen

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/civforge/server/internal/world"
)

const (
	radiusJitter = 0.35 // max relative radius change from coastline noise
	coastFreq    = 1.6  // noise frequency around a continent's rim

	grasslandBelow = 0.49
	plainsBelow    = 0.58
	hillsAbove     = 0.62
	forestAbove    = 0.57
)

// Continents stamps one noisy circular blob per continent, each in its own
// horizontal band, then assigns terrain.
func Continents(g *world.Grid, s *Settings, rng *rand.Rand) error {
	band := float64(g.Width) / float64(s.Continents)
	for i := 0; i < s.Continents; i++ {
		cx := band*(float64(i)+0.5) + (rng.Float64()-0.5)*band*0.2
		cy := float64(g.Height)/2 + (rng.Float64()-0.5)*float64(g.Height)*0.2
		radius := math.Min(band, float64(g.Height)) * 0.36
		stamp(g, cx, cy, radius, opensimplex.New(s.Seed+int64(i)*7919))
	}
	assignTerrain(g, s.Seed)
	return nil
}

// Archipelago stamps three smaller islands per requested continent at
// random positions.
func Archipelago(g *world.Grid, s *Settings, rng *rand.Rand) error {
	n := s.Continents * 3
	radius := math.Sqrt(float64(g.Width*g.Height)/float64(n)) * 0.28
	for i := 0; i < n; i++ {
		cx := radius + 1 + rng.Float64()*(float64(g.Width)-2*radius-2)
		cy := radius + 1 + rng.Float64()*(float64(g.Height)-2*radius-2)
		stamp(g, cx, cy, radius, opensimplex.New(s.Seed+int64(i)*7919))
	}
	assignTerrain(g, s.Seed)
	return nil
}

// stamp unions a blob into the grid's land. The outer ring of the map
// always stays ocean.
func stamp(g *world.Grid, cx, cy, radius float64, noise opensimplex.Noise) {
	reach := int(radius*(1+radiusJitter)) + 1
	for y := int(cy) - reach; y <= int(cy)+reach; y++ {
		for x := int(cx) - reach; x <= int(cx)+reach; x++ {
			if x < 1 || y < 1 || x >= g.Width-1 || y >= g.Height-1 {
				continue
			}
			dx, dy := float64(x)-cx, float64(y)-cy
			ang := math.Atan2(dy, dx)
			// Sampling on a circle keeps the coastline continuous at ±π.
			delta := noise.Eval2(math.Cos(ang)*coastFreq, math.Sin(ang)*coastFreq)
			if math.Hypot(dx, dy) <= radius*(1+radiusJitter*delta) {
				g.MustAt(world.Pos{X: x, Y: y}).Terrain = world.TerrainGrassland
			}
		}
	}
}

// assignTerrain picks land terrain, hills and forests from three independent
// noise fields.
func assignTerrain(g *world.Grid, seed int64) {
	climate := opensimplex.NewNormalized(seed + 101)
	hills := opensimplex.NewNormalized(seed + 202)
	forest := opensimplex.NewNormalized(seed + 303)

	for i := range g.Tiles {
		t := &g.Tiles[i]
		if !t.IsLand() {
			continue
		}
		p := g.PosOf(i)
		x, y := float64(p.X), float64(p.Y)
		switch c := octaveNoise(climate, x, y, 3, 0.08, 0.5); {
		case c < grasslandBelow:
			t.Terrain = world.TerrainGrassland
		case c < plainsBelow:
			t.Terrain = world.TerrainPlains
		default:
			t.Terrain = world.TerrainDesert
		}
		t.Hilled = octaveNoise(hills, x, y, 2, 0.15, 0.5) > hillsAbove
		t.Forested = t.Terrain != world.TerrainDesert && octaveNoise(forest, x, y, 3, 0.1, 0.5) > forestAbove
	}
}

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
