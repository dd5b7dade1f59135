package pathfind

import (
	"math/rand"
	"testing"

	"github.com/civforge/server/internal/world"
	"github.com/civforge/server/internal/world/worldtest"
)

func plains(w, h int) *world.Grid {
	g := world.NewGrid(w, h)
	for i := range g.Tiles {
		g.Tiles[i].Terrain = world.TerrainPlains
	}
	return g
}

func TestShortestPathOpenGrid(t *testing.T) {
	g := plains(5, 5)
	tests := []struct {
		from, to world.Pos
	}{
		{world.Pos{X: 0, Y: 0}, world.Pos{X: 4, Y: 4}},
		{world.Pos{X: 0, Y: 0}, world.Pos{X: 4, Y: 1}},
		{world.Pos{X: 2, Y: 4}, world.Pos{X: 2, Y: 0}},
		{world.Pos{X: 4, Y: 0}, world.Pos{X: 0, Y: 3}},
	}
	for _, tt := range tests {
		path, ok := FindPath(Query{Grid: g}, tt.from, tt.to)
		if !ok {
			t.Fatalf("%v -> %v: no path", tt.from, tt.to)
		}
		if want := world.Chebyshev(tt.from, tt.to); Cost(g, path) != want {
			t.Errorf("%v -> %v: cost %d, want %d", tt.from, tt.to, Cost(g, path), want)
		}
		if path.Destination() != tt.to {
			t.Errorf("destination %v, want %v", path.Destination(), tt.to)
		}
		prev := tt.from
		for _, p := range path.Points {
			if world.Chebyshev(prev, p) != 1 {
				t.Fatalf("non-adjacent step %v -> %v", prev, p)
			}
			prev = p
		}
	}
}

func TestForestCostsTwo(t *testing.T) {
	g := plains(5, 3)
	// Forest wall down column 2 except the bottom row.
	g.MustAt(world.Pos{X: 2, Y: 0}).Forested = true
	g.MustAt(world.Pos{X: 2, Y: 1}).Forested = true

	path, ok := FindPath(Query{Grid: g}, world.Pos{X: 0, Y: 0}, world.Pos{X: 4, Y: 0})
	if !ok {
		t.Fatal("no path")
	}
	if c := Cost(g, path); c != 4 {
		t.Fatalf("cost = %d, want 4 around the forest", c)
	}
}

func TestTargetSurroundedByOcean(t *testing.T) {
	g := plains(5, 5)
	center := world.Pos{X: 2, Y: 2}
	for _, n := range g.Neighbors(center) {
		g.MustAt(n).Terrain = world.TerrainOcean
	}
	if _, ok := FindPath(Query{Grid: g}, world.Pos{X: 0, Y: 0}, center); ok {
		t.Fatal("found a path to an island across ocean")
	}
	if _, ok := FindPath(Query{Grid: g}, world.Pos{X: 0, Y: 0}, world.Pos{X: 2, Y: 1}); ok {
		t.Fatal("found a path onto ocean")
	}
}

func TestMaskHidesTiles(t *testing.T) {
	g := plains(3, 3)
	q := Query{
		Grid:    g,
		Visible: func(p world.Pos) bool { return p.X != 1 },
	}
	if _, ok := FindPath(q, world.Pos{X: 0, Y: 1}, world.Pos{X: 2, Y: 1}); ok {
		t.Fatal("path crossed a hidden column")
	}
}

func TestForUnitSeaDomain(t *testing.T) {
	s, ctx := worldtest.New(5, 3)
	for x := 0; x < 5; x++ {
		worldtest.Ocean(s, world.Pos{X: x, Y: 1})
	}
	p := worldtest.Player(s, ctx, "alice", "rome")
	galley := worldtest.Unit(s, ctx, p, "galley", world.Pos{X: 0, Y: 1})

	q, err := ForUnit(s, galley, false)
	if err != nil {
		t.Fatal(err)
	}
	path, ok := FindPath(q, world.Pos{X: 0, Y: 1}, world.Pos{X: 4, Y: 1})
	if !ok || path.Len() != 4 {
		t.Fatalf("sea path = %v %v, want 4 steps", path.Points, ok)
	}
	if _, ok := FindPath(q, world.Pos{X: 0, Y: 1}, world.Pos{X: 4, Y: 0}); ok {
		t.Fatal("galley routed onto land")
	}
}

// dijkstra returns the cheapest entry cost from src to every tile.
func dijkstra(g *world.Grid, src world.Pos) []int {
	const inf = 1 << 30
	dist := make([]int, len(g.Tiles))
	done := make([]bool, len(g.Tiles))
	for i := range dist {
		dist[i] = inf
	}
	dist[g.Index(src)] = 0
	for {
		best := -1
		for i, d := range dist {
			if !done[i] && d < inf && (best < 0 || d < dist[best]) {
				best = i
			}
		}
		if best < 0 {
			return dist
		}
		done[best] = true
		for _, n := range g.Neighbors(g.PosOf(best)) {
			if !g.At(n).IsLand() {
				continue
			}
			if d := dist[best] + g.EntryCost(n); d < dist[g.Index(n)] {
				dist[g.Index(n)] = d
			}
		}
	}
}

func TestHeuristicKeepsPathsOptimal(t *testing.T) {
	g := plains(16, 12)
	rng := rand.New(rand.NewSource(7))
	for i := range g.Tiles {
		if rng.Intn(3) == 0 {
			g.Tiles[i].Forested = true
		}
	}
	from := world.Pos{X: 0, Y: 0}
	dist := dijkstra(g, from)
	for i := range g.Tiles {
		to := g.PosOf(i)
		if to == from {
			continue
		}
		if h := heuristic(to, from); h > float64(dijkstra(g, to)[g.Index(from)]) {
			t.Fatalf("heuristic %v -> %v = %v overestimates", to, from, h)
		}
		path, ok := FindPath(Query{Grid: g}, from, to)
		if !ok {
			t.Fatalf("%v: no path", to)
		}
		if c := Cost(g, path); c != dist[i] {
			t.Fatalf("%v: cost %d, cheapest is %d", to, c, dist[i])
		}
	}
}
