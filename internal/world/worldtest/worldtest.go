// Package worldtest builds small game states for tests.
package worldtest

import (
	"github.com/civforge/server/internal/core/ecs"
	"github.com/civforge/server/internal/core/event"
	"github.com/civforge/server/internal/data/datatest"
	"github.com/civforge/server/internal/world"
)

// New returns a width×height all-grassland state and a context seeded with 1.
func New(width, height int) (*world.State, *world.Context) {
	g := world.NewGrid(width, height)
	for i := range g.Tiles {
		g.Tiles[i].Terrain = world.TerrainGrassland
	}
	return world.NewState(datatest.Catalog(), g), world.NewContext(1, event.NewBus(), nil)
}

// Player adds a player with the given civ.
func Player(s *world.State, ctx *world.Context, name, civ string) ecs.Handle {
	return s.AddPlayer(ctx, world.NewPlayer(name, civ, false))
}

// Ocean turns the listed tiles to ocean.
func Ocean(s *world.State, tiles ...world.Pos) {
	for _, p := range tiles {
		s.Grid.MustAt(p).Terrain = world.TerrainOcean
	}
}

// Unit spawns a unit and panics on error.
func Unit(s *world.State, ctx *world.Context, owner ecs.Handle, kind string, p world.Pos) ecs.Handle {
	h, err := s.CreateUnit(ctx, owner, kind, p)
	if err != nil {
		panic(err)
	}
	return h
}

// City founds a city and panics on error.
func City(s *world.State, ctx *world.Context, owner ecs.Handle, p world.Pos) ecs.Handle {
	h, err := s.FoundCity(ctx, owner, p, "")
	if err != nil {
		panic(err)
	}
	return h
}

// CheckStacks verifies that stacks partition the live units by owner and
// position. It returns a description of the first violation, "" if none.
func CheckStacks(s *world.State) string {
	seen := make(map[ecs.Handle]bool)
	for sh, st := range s.Stacks.All() {
		if len(st.Units) == 0 {
			return "empty stack " + sh.String()
		}
		if got, ok := s.StackFor(st.Owner, st.Pos); !ok || got != sh {
			return "stack not indexed " + sh.String()
		}
		for _, uh := range st.Units {
			u, ok := s.Units.Get(uh)
			if !ok {
				return "stale unit in stack " + uh.String()
			}
			if u.Owner != st.Owner || u.Pos != st.Pos {
				return "unit in wrong stack " + uh.String()
			}
			if seen[uh] {
				return "unit in two stacks " + uh.String()
			}
			seen[uh] = true
		}
	}
	if len(seen) != s.Units.Len() {
		return "unstacked units"
	}
	return ""
}
