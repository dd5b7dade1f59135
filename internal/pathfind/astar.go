package pathfind

import (
	"container/heap"

	"github.com/civforge/server/internal/core/ecs"
	"github.com/civforge/server/internal/world"
)

// Query describes the terrain a search runs over.
type Query struct {
	Grid *world.Grid
	// Passable reports whether a tile may be entered. Nil means land only.
	Passable func(world.Pos) bool
	// Visible masks out tiles the mover cannot see. Nil means no mask.
	Visible func(world.Pos) bool
}

// ForUnit builds the query for moving a specific unit. With masked set, the
// owner's unexplored tiles are never expanded.
func ForUnit(s *world.State, unit ecs.Handle, masked bool) (Query, error) {
	u, err := s.Units.Lookup(unit)
	if err != nil {
		return Query{}, err
	}
	domain := s.Domain(u.Kind)
	owner := u.Owner
	q := Query{
		Grid:     s.Grid,
		Passable: func(p world.Pos) bool { return s.Passable(domain, owner, p) },
	}
	if masked {
		q.Visible = s.VisibleMask(owner)
	}
	return q, nil
}

func (q Query) open(p world.Pos) bool {
	t := q.Grid.At(p)
	if t == nil {
		return false
	}
	if q.Visible != nil && !q.Visible(p) {
		return false
	}
	if q.Passable != nil {
		return q.Passable(p)
	}
	return t.IsLand()
}

// FindPath runs A* over the 8-connected grid. The returned path excludes
// from and includes to. ok is false when no path exists.
func FindPath(q Query, from, to world.Pos) (path world.Path, ok bool) {
	if !q.Grid.InBounds(from) || !q.open(to) {
		return world.Path{}, false
	}
	if from == to {
		return world.Path{}, true
	}

	open := &nodeHeap{}
	heap.Init(open)
	var seq uint64
	heap.Push(open, &node{p: from, g: 0, f: heuristic(from, to), seq: seq})

	came := make(map[world.Pos]world.Pos)
	gScore := map[world.Pos]float64{from: 0}
	closed := make(map[world.Pos]struct{})

	for open.Len() > 0 {
		cur := heap.Pop(open).(*node)
		if cur.p == to {
			return world.Path{Points: reconstruct(came, from, to)}, true
		}
		if _, done := closed[cur.p]; done {
			continue
		}
		closed[cur.p] = struct{}{}

		for _, d := range world.Dirs8 {
			np := cur.p.Add(d[0], d[1])
			if _, done := closed[np]; done {
				continue
			}
			if !q.open(np) {
				continue
			}
			tentG := gScore[cur.p] + float64(q.Grid.EntryCost(np))
			if old, ok := gScore[np]; ok && tentG >= old {
				continue
			}
			gScore[np] = tentG
			came[np] = cur.p
			seq++
			heap.Push(open, &node{p: np, g: tentG, f: tentG + heuristic(np, to), seq: seq})
		}
	}
	return world.Path{}, false
}

// Cost sums the entry costs along a path.
func Cost(g *world.Grid, path world.Path) int {
	total := 0
	for _, p := range path.Points {
		total += g.EntryCost(p)
	}
	return total
}

// heuristic is Chebyshev distance, used in place of Euclidean distance.
// Diagonal steps cost 1, so Euclidean distance overestimates and A* would
// stop returning cheapest paths. Keep it Chebyshev.
func heuristic(a, b world.Pos) float64 {
	return float64(world.Chebyshev(a, b))
}

func reconstruct(came map[world.Pos]world.Pos, from, to world.Pos) []world.Pos {
	var path []world.Pos
	for cur := to; cur != from; cur = came[cur] {
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// --- Priority queue ---

type node struct {
	p    world.Pos
	g, f float64
	seq  uint64
}

type nodeHeap []*node

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].f != h[j].f {
		return h[i].f < h[j].f
	}
	return h[i].seq < h[j].seq
}
func (h nodeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x interface{}) { *h = append(*h, x.(*node)) }
func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
