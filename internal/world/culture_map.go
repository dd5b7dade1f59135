package world

import "github.com/civforge/server/internal/core/ecs"

// CultureBonus scales the one-time bonus a tile receives when a city's
// influence first reaches it: (radius - distance) * CultureBonus.
const CultureBonus = 5

// PropagateCulture adds perTurn culture to the city and walks breadth-first
// from its tile out to its culture radius, accumulating the owner's amount
// on every visited tile and recomputing tile owners.
func (s *State) PropagateCulture(ctx *Context, city ecs.Handle, perTurn int) {
	c, ok := s.Cities.Get(city)
	if !ok {
		return
	}
	owner := c.Owner
	c.Culture.Add(owner, perTurn)
	center := c.Pos
	radius := c.CultureRadius()

	affected := make(map[ecs.Handle]struct{})
	seen := map[Pos]struct{}{center: {}}
	queue := []Pos{center}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		t := s.Grid.At(p)
		dist := RoundedDistance(center, p)

		t.Culture.Add(owner, perTurn)
		if !t.influencedBy(city) {
			t.Influence = append(t.Influence, city)
			if bonus := radius - dist; bonus > 0 {
				t.Culture.Add(owner, bonus*CultureBonus)
			}
		}
		s.recomputeTileOwner(ctx, p, t, affected)

		for _, n := range s.Grid.Neighbors(p) {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			if RoundedDistance(center, n) <= radius {
				queue = append(queue, n)
			}
		}
	}
	for player := range affected {
		s.RecomputeVisibility(ctx, player)
	}
}

// RemoveCityInfluence walks the city's reach in reverse, dropping it from
// every tile's contributor set. Tiles left with no contributor lose their
// owner.
func (s *State) RemoveCityInfluence(ctx *Context, city ecs.Handle) {
	c, ok := s.Cities.Get(city)
	if !ok {
		return
	}
	affected := make(map[ecs.Handle]struct{})
	// Radius can only have grown since influence was added, so the current
	// reach covers every tile the city ever touched.
	for _, p := range s.Grid.Within(c.Pos, c.CultureRadius()) {
		t := s.Grid.At(p)
		if t.removeInfluence(city) {
			s.recomputeTileOwnerExcluding(ctx, p, t, affected, city)
		}
	}
	for player := range affected {
		s.RecomputeVisibility(ctx, player)
	}
}

func (s *State) recomputeTileOwner(ctx *Context, p Pos, t *Tile, affected map[ecs.Handle]struct{}) {
	s.recomputeTileOwnerExcluding(ctx, p, t, affected, ecs.Nil)
}

// recomputeTileOwnerExcluding picks the contributor with the strictly
// greatest amount. On a tie the incumbent keeps the tile if it is among the
// leaders, otherwise the lowest handle wins.
func (s *State) recomputeTileOwnerExcluding(ctx *Context, p Pos, t *Tile, affected map[ecs.Handle]struct{}, skip ecs.Handle) {
	var leaders []ecs.Handle
	best := -1
	counted := make(map[ecs.Handle]struct{}, len(t.Influence))
	for _, ch := range t.Influence {
		if ch == skip {
			continue
		}
		c, ok := s.Cities.Get(ch)
		if !ok {
			continue
		}
		if _, dup := counted[c.Owner]; dup {
			continue
		}
		counted[c.Owner] = struct{}{}
		amt := t.Culture.Get(c.Owner)
		switch {
		case amt > best:
			best = amt
			leaders = append(leaders[:0], c.Owner)
		case amt == best:
			leaders = append(leaders, c.Owner)
		}
	}

	next := ecs.Nil
	switch len(leaders) {
	case 0:
	case 1:
		next = leaders[0]
	default:
		next = leaders[0]
		for _, l := range leaders {
			if l == t.Owner {
				next = l
				break
			}
			if l < next {
				next = l
			}
		}
	}
	if next == t.Owner {
		return
	}
	old := t.Owner
	t.Owner = next
	if !old.IsNil() {
		affected[old] = struct{}{}
	}
	if !next.IsNil() {
		affected[next] = struct{}{}
	}
	if !t.WorkedBy.IsNil() {
		if wc, ok := s.Cities.Get(t.WorkedBy); ok && wc.Owner != next && wc.Pos != p {
			wc.Worked = removePos(wc.Worked, p)
			ctx.Dirty.City(t.WorkedBy)
			t.WorkedBy = ecs.Nil
		}
	}
	ctx.Dirty.Tile(p)
}

func removePos(list []Pos, p Pos) []Pos {
	for i, v := range list {
		if v == p {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
