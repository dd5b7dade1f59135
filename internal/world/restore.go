package world

import "github.com/civforge/server/internal/core/ecs"

// NewTradeRoute returns an empty route for bulk loading.
func NewTradeRoute() TradeRoute { return newTradeRoute() }

// Reindex rebuilds every derived index (stacks, city and route lookups,
// route city sets) from the entity stores. Used after bulk loading a save.
func (s *State) Reindex() {
	s.Stacks = ecs.NewStore[Stack]()
	s.stacks = make(map[stackKey]ecs.Handle)
	s.stacksByPos = make(map[Pos][]ecs.Handle)
	s.cityAt = make(map[Pos]ecs.Handle)
	s.routeAt = make(map[Pos]ecs.Handle)
	s.kills = ecs.NewDeferredQueue()

	for h, u := range s.Units.All() {
		s.stackAdd(u.Owner, u.Pos, h)
	}
	for h, c := range s.Cities.All() {
		s.cityAt[c.Pos] = h
	}
	for rh, r := range s.Routes.All() {
		r.Cities = make(map[ecs.Handle]struct{})
		for p := range r.Tiles {
			s.routeAt[p] = rh
			if ch, ok := s.cityAt[p]; ok {
				r.Cities[ch] = struct{}{}
			}
		}
	}
}
