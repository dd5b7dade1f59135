package mapgen

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/civforge/server/internal/data"
	"github.com/civforge/server/internal/world"
)

const (
	candidatesPerPoint = 20
	reseedAttempts     = 60
	foodPerStart       = 2
)

func allowed(t *world.Tile, r *data.Resource) bool {
	if !t.IsLand() || t.Resource != "" {
		return false
	}
	return t.Terrain != world.TerrainDesert || r.AllowDesert
}

// PoissonResources spreads each resource with a Poisson-disc frontier:
// new placements grow from existing ones at a random angle and a distance
// between one and two spacings, and are rejected when closer than the
// spacing to a placement of the same resource.
func PoissonResources(g *world.Grid, cat *data.Catalog, rng *rand.Rand) error {
	land := landCount(g)
	for _, r := range cat.Resources.All() {
		if r.Frequency <= 0 {
			continue
		}
		target := land / r.Frequency
		if target < 1 {
			target = 1
		}
		spread(g, r, target, rng)
	}
	return nil
}

func spread(g *world.Grid, r *data.Resource, target int, rng *rand.Rand) {
	spacing := math.Max(r.Spacing, 1)
	var placed, active []world.Pos

	farEnough := func(p world.Pos) bool {
		for _, q := range placed {
			if world.Distance(p, q) < spacing {
				return false
			}
		}
		return true
	}
	place := func(p world.Pos) {
		g.MustAt(p).Resource = r.ID
		placed = append(placed, p)
		active = append(active, p)
	}

	for len(placed) < target {
		if len(active) == 0 {
			// Frontier exhausted: start a new cluster somewhere random.
			ok := false
			for i := 0; i < reseedAttempts; i++ {
				p := world.Pos{X: rng.Intn(g.Width), Y: rng.Intn(g.Height)}
				if allowed(g.MustAt(p), r) && farEnough(p) {
					place(p)
					ok = true
					break
				}
			}
			if !ok {
				return
			}
			continue
		}

		i := rng.Intn(len(active))
		from := active[i]
		grew := false
		for k := 0; k < candidatesPerPoint; k++ {
			ang := rng.Float64() * 2 * math.Pi
			dist := spacing * (1 + rng.Float64())
			p := world.Pos{
				X: from.X + int(math.Round(math.Cos(ang)*dist)),
				Y: from.Y + int(math.Round(math.Sin(ang)*dist)),
			}
			if g.InBounds(p) && allowed(g.MustAt(p), r) && farEnough(p) {
				place(p)
				grew = true
				break
			}
		}
		if !grew {
			active[i] = active[len(active)-1]
			active = active[:len(active)-1]
		}
	}
}

// guaranteeFood makes sure every start has at least two food resources in
// the ring around it, adding them where missing.
func guaranteeFood(g *world.Grid, cat *data.Catalog, starts []world.Pos, rng *rand.Rand) error {
	var foods []*data.Resource
	for _, r := range cat.Resources.All() {
		if r.FoodBonus {
			foods = append(foods, r)
		}
	}
	if len(foods) == 0 {
		return nil
	}
	for _, s := range starts {
		ring := g.Within(s, startRing)[1:]
		have := 0
		for _, p := range ring {
			if r := cat.Resources.Get(g.MustAt(p).Resource); r != nil && r.FoodBonus {
				have++
			}
		}
		rng.Shuffle(len(ring), func(i, j int) { ring[i], ring[j] = ring[j], ring[i] })
		for _, p := range ring {
			if have >= foodPerStart {
				break
			}
			r := foods[rng.Intn(len(foods))]
			if allowed(g.MustAt(p), r) {
				g.MustAt(p).Resource = r.ID
				have++
			}
		}
		if have < foodPerStart {
			return fmt.Errorf("%w: no room for food resources around %s", ErrInfeasible, s)
		}
	}
	return nil
}
