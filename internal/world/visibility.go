package world

import "github.com/civforge/server/internal/core/ecs"

// cityVision is how far a city sees beyond its culture border.
const cityVision = 2

// RevealAround marks tiles within radius of center Visible for player.
func (s *State) RevealAround(ctx *Context, player ecs.Handle, center Pos, radius int) {
	pl, ok := s.Players.Get(player)
	if !ok {
		return
	}
	changed := false
	for _, p := range s.Grid.Within(center, radius) {
		i := s.Grid.Index(p)
		if pl.Visibility[i] != Visible {
			pl.Visibility[i] = Visible
			changed = true
		}
	}
	if changed {
		ctx.Dirty.Visibility(player)
	}
}

// RecomputeVisibility fogs everything the player saw and re-reveals what
// its units, cities and territory see now. Hidden tiles stay hidden unless
// revealed.
func (s *State) RecomputeVisibility(ctx *Context, player ecs.Handle) {
	pl, ok := s.Players.Get(player)
	if !ok {
		return
	}
	prev := make([]Visibility, len(pl.Visibility))
	copy(prev, pl.Visibility)
	for i, v := range pl.Visibility {
		if v == Visible {
			pl.Visibility[i] = Fogged
		}
	}
	for i := range s.Grid.Tiles {
		if s.Grid.Tiles[i].Owner == player {
			pl.Visibility[i] = Visible
		}
	}
	for _, ch := range pl.Cities {
		if c, ok := s.Cities.Get(ch); ok {
			for _, p := range s.Grid.Within(c.Pos, cityVision) {
				pl.Visibility[s.Grid.Index(p)] = Visible
			}
		}
	}
	for _, u := range s.Units.All() {
		if u.Owner != player || !u.Alive() {
			continue
		}
		for _, p := range s.Grid.Within(u.Pos, s.sight(u.Kind)) {
			pl.Visibility[s.Grid.Index(p)] = Visible
		}
	}
	for i := range prev {
		if prev[i] != pl.Visibility[i] {
			ctx.Dirty.Visibility(player)
			return
		}
	}
}

// VisibleMask returns a predicate that hides tiles the player never saw.
// Used as the pathfinder mask for player-issued paths.
func (s *State) VisibleMask(player ecs.Handle) func(Pos) bool {
	pl, ok := s.Players.Get(player)
	if !ok {
		return nil
	}
	vis := pl.Visibility
	return func(p Pos) bool {
		return vis[s.Grid.Index(p)] != Hidden
	}
}
