package world

import (
	"sort"

	"github.com/civforge/server/internal/core/ecs"
)

// RouteAt returns the trade route containing p.
func (s *State) RouteAt(p Pos) (ecs.Handle, bool) {
	h, ok := s.routeAt[p]
	return h, ok
}

// AddTradeNode joins p to the trade network. Adjacent routes are merged by
// folding the smallest into the largest until one remains. Adding a tile
// that is already a member does nothing.
func (s *State) AddTradeNode(ctx *Context, p Pos) ecs.Handle {
	if h, ok := s.routeAt[p]; ok {
		return h
	}
	if !s.Grid.InBounds(p) {
		return ecs.Nil
	}

	var adjacent []ecs.Handle
	for _, n := range s.Grid.Neighbors(p) {
		rh, ok := s.routeAt[n]
		if !ok {
			continue
		}
		dup := false
		for _, a := range adjacent {
			if a == rh {
				dup = true
				break
			}
		}
		if !dup {
			adjacent = append(adjacent, rh)
		}
	}

	var acc ecs.Handle
	switch len(adjacent) {
	case 0:
		acc = s.Routes.Insert(newTradeRoute())
	case 1:
		acc = adjacent[0]
	default:
		acc = s.mergeRoutes(adjacent)
	}

	r, _ := s.Routes.Get(acc)
	r.Tiles[p] = struct{}{}
	s.routeAt[p] = acc
	if ch, ok := s.cityAt[p]; ok {
		r.Cities[ch] = struct{}{}
	}
	ctx.Dirty.Tile(p)
	return acc
}

// mergeRoutes folds the smallest route into the largest, repeatedly, and
// returns the survivor.
func (s *State) mergeRoutes(routes []ecs.Handle) ecs.Handle {
	size := func(h ecs.Handle) int {
		r, _ := s.Routes.Get(h)
		return len(r.Tiles)
	}
	pending := append([]ecs.Handle(nil), routes...)
	for len(pending) > 1 {
		sort.SliceStable(pending, func(i, j int) bool { return size(pending[i]) < size(pending[j]) })
		smallest := pending[0]
		acc := pending[len(pending)-1]
		src, _ := s.Routes.Get(smallest)
		dst, _ := s.Routes.Get(acc)
		for t := range src.Tiles {
			dst.Tiles[t] = struct{}{}
			s.routeAt[t] = acc
		}
		for c := range src.Cities {
			dst.Cities[c] = struct{}{}
		}
		s.Routes.Erase(smallest)
		pending = pending[1:]
	}
	return pending[0]
}

// RemoveTradeNode takes p out of its route. The route is not re-split when
// this disconnects it; an emptied route is erased.
func (s *State) RemoveTradeNode(ctx *Context, p Pos) {
	rh, ok := s.routeAt[p]
	if !ok {
		return
	}
	delete(s.routeAt, p)
	r, ok := s.Routes.Get(rh)
	if !ok {
		return
	}
	delete(r.Tiles, p)
	if ch, ok := s.cityAt[p]; ok {
		delete(r.Cities, ch)
	}
	if len(r.Tiles) == 0 {
		s.Routes.Erase(rh)
	}
	ctx.Dirty.Tile(p)
}

// RouteResources returns the resources available on a route, keyed by the
// player owning the producing tile.
func (s *State) RouteResources(route ecs.Handle) map[ecs.Handle][]string {
	r, ok := s.Routes.Get(route)
	if !ok {
		return nil
	}
	found := make(map[ecs.Handle]map[string]struct{})
	for p := range r.Tiles {
		t := s.Grid.At(p)
		if t == nil || t.Resource == "" || t.Owner.IsNil() {
			continue
		}
		res := s.Catalog.Resources.Get(t.Resource)
		if res == nil {
			continue
		}
		if res.Improvement != "" && !t.HasImprovement(res.Improvement) {
			continue
		}
		if found[t.Owner] == nil {
			found[t.Owner] = make(map[string]struct{})
		}
		found[t.Owner][res.ID] = struct{}{}
	}
	out := make(map[ecs.Handle][]string, len(found))
	for owner, set := range found {
		list := make([]string, 0, len(set))
		for id := range set {
			list = append(list, id)
		}
		sort.Strings(list)
		out[owner] = list
	}
	return out
}

// PropagateResources recomputes every city's resource access: each route's
// resources are computed once and handed to the cities on it whose owner
// matches the producing tile's owner.
func (s *State) PropagateResources(ctx *Context) {
	next := make(map[ecs.Handle][]string)
	for rh, r := range s.Routes.All() {
		if len(r.Cities) == 0 {
			continue
		}
		byOwner := s.RouteResources(rh)
		for ch := range r.Cities {
			c, ok := s.Cities.Get(ch)
			if !ok {
				continue
			}
			next[ch] = mergeSorted(next[ch], byOwner[c.Owner])
		}
	}
	for ch, c := range s.Cities.All() {
		res := next[ch]
		if !equalStrings(c.Resources, res) {
			c.Resources = res
			ctx.Dirty.City(ch)
		}
	}
}

func mergeSorted(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	set := make(map[string]struct{}, len(a)+len(b))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		set[v] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
