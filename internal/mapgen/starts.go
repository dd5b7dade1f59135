package mapgen

import (
	"fmt"
	"math"
	"sort"

	"github.com/civforge/server/internal/data"
	"github.com/civforge/server/internal/world"
)

const (
	tilesPerPlayer = 100 // continent capacity consumed by each assigned player
	startRing      = 2
	hillBonus      = 3
	centerWeight   = 4
	crowdPenalty   = 40.0
	highValue      = 2 // ring tiles below this quality do not count
)

type component struct {
	tiles []world.Pos
}

// landComponents returns the 8-connected land masses in row-major order of
// their first tile.
func landComponents(g *world.Grid) []component {
	seen := make([]bool, len(g.Tiles))
	var out []component
	for i := range g.Tiles {
		if seen[i] || !g.Tiles[i].IsLand() {
			continue
		}
		var c component
		queue := []world.Pos{g.PosOf(i)}
		seen[i] = true
		for len(queue) > 0 {
			p := queue[0]
			queue = queue[1:]
			c.tiles = append(c.tiles, p)
			for _, n := range g.Neighbors(p) {
				j := g.Index(n)
				if !seen[j] && g.Tiles[j].IsLand() {
					seen[j] = true
					queue = append(queue, n)
				}
			}
		}
		out = append(out, c)
	}
	return out
}

// chooseStarts picks one starting tile per slot. Each player goes to the
// continent with the most remaining capacity; within it the best scoring
// tile at least MinStartDistance from earlier starts wins.
func chooseStarts(g *world.Grid, cat *data.Catalog, s *Settings) ([]world.Pos, error) {
	var comps []component
	for _, c := range landComponents(g) {
		if len(c.tiles) >= s.MinContinentTiles {
			comps = append(comps, c)
		}
	}
	if len(comps) == 0 {
		return nil, fmt.Errorf("%w: no continent with at least %d tiles", ErrInfeasible, s.MinContinentTiles)
	}

	quality := tileQuality(g, cat)
	assigned := make([]int, len(comps))
	starts := make([]world.Pos, 0, len(s.Slots))
	for range s.Slots {
		order := make([]int, len(comps))
		for i := range order {
			order[i] = i
		}
		capacity := func(i int) int { return len(comps[i].tiles) - tilesPerPlayer*assigned[i] }
		sort.SliceStable(order, func(a, b int) bool { return capacity(order[a]) > capacity(order[b]) })

		placed := false
		for _, ci := range order {
			if p, ok := bestStart(g, comps[ci], quality, starts, s.MinStartDistance); ok {
				starts = append(starts, p)
				assigned[ci]++
				placed = true
				break
			}
		}
		if !placed {
			return nil, fmt.Errorf("%w: no room for player %d with start distance %d", ErrInfeasible, len(starts)+1, s.MinStartDistance)
		}
	}
	return starts, nil
}

func bestStart(g *world.Grid, c component, quality []int, starts []world.Pos, minDist int) (world.Pos, bool) {
	var (
		best      world.Pos
		bestScore = math.Inf(-1)
		found     bool
	)
	for _, p := range c.tiles {
		score, ok := startScore(g, p, quality, starts, minDist)
		if ok && score > bestScore {
			best, bestScore, found = p, score, true
		}
	}
	return best, found
}

func startScore(g *world.Grid, p world.Pos, quality []int, starts []world.Pos, minDist int) (float64, bool) {
	penalty := 0.0
	for _, o := range starts {
		d := world.Chebyshev(p, o)
		if d < minDist {
			return 0, false
		}
		penalty += crowdPenalty / float64(d)
	}
	t := g.MustAt(p)
	score := float64(quality[g.Index(p)] * centerWeight)
	if t.Hilled {
		score += hillBonus
	}
	for _, q := range g.Within(p, startRing)[1:] {
		if v := quality[g.Index(q)]; v >= highValue {
			score += float64(v)
		}
	}
	return score - penalty, true
}

// tileQuality rates each tile for settling by terrain class, 0 for ocean.
func tileQuality(g *world.Grid, cat *data.Catalog) []int {
	out := make([]int, len(g.Tiles))
	for i := range g.Tiles {
		t := &g.Tiles[i]
		if !t.IsLand() {
			continue
		}
		if ty := cat.Terrain.Get(t.Terrain.String()); ty != nil {
			out[i] = ty.Quality
		}
	}
	return out
}
