package handler

import (
	"github.com/civforge/server/internal/combat"
	"github.com/civforge/server/internal/core/ecs"
	"github.com/civforge/server/internal/world"
)

// FollowPath walks a unit along its stored path while it has moves. A step
// onto enemy units attacks them when the owners are at war and stops the
// walk otherwise. Whatever is left of the path continues next turn.
func FollowPath(d *Deps, h ecs.Handle) ([]*combat.Combat, error) {
	s := d.State
	var fights []*combat.Combat
	for {
		u, ok := s.Units.Get(h)
		if !ok || s.KillPending(h) || u.Moves <= 0 {
			return fights, nil
		}
		next, ok := u.Path.Next()
		if !ok {
			return fights, nil
		}

		if enemies := s.EnemyUnitsAt(u.Owner, next); len(enemies) > 0 {
			u.Path = world.Path{}
			c, err := attack(d, h, next)
			if c != nil {
				fights = append(fights, c)
			}
			return fights, err
		}

		if err := s.MoveUnit(d.Ctx, h, next); err != nil {
			if u, ok := s.Units.Get(h); ok {
				u.Path = world.Path{}
			}
			return fights, err
		}
		if u, ok := s.Units.Get(h); ok {
			u.Path.PopNextPoint()
		}
	}
}

func attack(d *Deps, h ecs.Handle, target world.Pos) (*combat.Combat, error) {
	s := d.State
	u, _ := s.Units.Get(h)
	if world.Chebyshev(u.Pos, target) != 1 {
		return nil, world.ErrNotAdjacent
	}
	if uk := s.Catalog.Units.Get(u.Kind); uk == nil || uk.Strength <= 0 {
		return nil, world.ErrNoCapability
	}
	def, ok := combat.BestDefender(s, h, target)
	if !ok {
		return nil, nil
	}
	du, _ := s.Units.Get(def)
	if !s.AtWar(u.Owner, du.Owner) {
		return nil, world.ErrEnemyPresent
	}
	return combat.Resolve(d.Ctx, s, h, def)
}
