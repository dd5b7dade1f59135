package world

import (
	"fmt"

	"github.com/civforge/server/internal/core/ecs"
	"github.com/civforge/server/internal/data"
)

// EntryCost is the movement cost of entering a tile.
func (g *Grid) EntryCost(p Pos) int {
	if t := g.At(p); t != nil && t.Forested {
		return 2
	}
	return 1
}

// Domain returns the movement domain of a unit kind.
func (s *State) Domain(kind string) string {
	if uk := s.Catalog.Units.Get(kind); uk != nil && uk.Domain != "" {
		return uk.Domain
	}
	return data.DomainLand
}

// Passable reports whether a unit of the given domain may stand on p.
// Sea units may enter their owner's coastal cities.
func (s *State) Passable(domain string, owner ecs.Handle, p Pos) bool {
	t := s.Grid.At(p)
	if t == nil {
		return false
	}
	if domain == data.DomainSea {
		if t.IsLand() {
			ch, ok := s.cityAt[p]
			if !ok {
				return false
			}
			c, _ := s.Cities.Get(ch)
			return c.Owner == owner
		}
		return true
	}
	return t.IsLand()
}

// MoveUnit moves a unit one step to an adjacent tile. Land units stepping
// onto an ocean tile board a friendly transport there; stepping off a
// transport onto land unloads them. Entering an undefended enemy city at
// war captures it.
func (s *State) MoveUnit(ctx *Context, h ecs.Handle, to Pos) error {
	u, err := s.Units.Lookup(h)
	if err != nil {
		return err
	}
	if s.kills.Pending(h) {
		return ecs.ErrInvalidHandle
	}
	if _, err := s.Grid.Lookup(to); err != nil {
		return err
	}
	if Chebyshev(u.Pos, to) != 1 {
		return fmt.Errorf("%w: %s -> %s", ErrNotAdjacent, u.Pos, to)
	}
	if u.Moves <= 0 {
		return ErrNoMoves
	}
	if len(s.EnemyUnitsAt(u.Owner, to)) > 0 {
		return ErrEnemyPresent
	}
	owner := u.Owner
	domain := s.Domain(u.Kind)

	var boardOnto ecs.Handle
	if !s.Passable(domain, owner, to) {
		if domain != data.DomainLand {
			return ErrImpassable
		}
		t, ok := s.transportAt(owner, to)
		if !ok {
			return ErrImpassable
		}
		boardOnto = t
	}

	if ch, ok := s.cityAt[to]; ok {
		c, _ := s.Cities.Get(ch)
		if c.Owner != owner {
			if !s.AtWar(owner, c.Owner) {
				return fmt.Errorf("city %q: %w", c.Name, ErrWrongOwner)
			}
			uk := s.Catalog.Units.Get(u.Kind)
			if uk == nil || uk.Strength <= 0 || domain != data.DomainLand {
				return fmt.Errorf("city %q: %w", c.Name, ErrNoCapability)
			}
			if err := s.CaptureCity(ctx, ch, owner); err != nil {
				return err
			}
			u, _ = s.Units.Get(h)
		}
	}

	cost := s.Grid.EntryCost(to)
	u.Moves -= cost
	if u.Moves < 0 {
		u.Moves = 0
	}
	u.Fortified = false
	u.Skipping = false

	if !u.Carrier.IsNil() && boardOnto != u.Carrier {
		s.unboard(h, u)
	}
	s.relocate(ctx, h, to)
	if !boardOnto.IsNil() {
		if err := s.board(h, boardOnto); err != nil {
			return err
		}
	}
	s.RevealAround(ctx, owner, to, s.sight(u.Kind))
	return nil
}

// BoardCargo loads a land unit onto an adjacent or co-located transport.
func (s *State) BoardCargo(ctx *Context, unit, transport ecs.Handle) error {
	u, err := s.Units.Lookup(unit)
	if err != nil {
		return err
	}
	t, err := s.Units.Lookup(transport)
	if err != nil {
		return err
	}
	if u.Owner != t.Owner {
		return ErrWrongOwner
	}
	if s.Domain(u.Kind) != data.DomainLand {
		return ErrImpassable
	}
	if Chebyshev(u.Pos, t.Pos) > 1 {
		return ErrNotAdjacent
	}
	if u.Carrier == transport {
		return nil
	}
	c, ok := t.AsCargo()
	if !ok {
		return ErrNotACarrier
	}
	if len(c.Units) >= c.Capacity {
		return ErrCarrierFull
	}
	if u.Pos != t.Pos && u.Moves <= 0 {
		return ErrNoMoves
	}

	// All checks passed; nothing below fails.
	if u.Pos != t.Pos {
		u.Moves = 0
	}
	if !u.Carrier.IsNil() {
		s.unboard(unit, u)
	}
	c.Units = append(c.Units, unit)
	u.Carrier = transport
	s.relocate(ctx, unit, t.Pos)
	ctx.Dirty.Unit(transport)
	return nil
}

func (s *State) board(unit, transport ecs.Handle) error {
	t, ok := s.Units.Get(transport)
	if !ok {
		return ecs.ErrInvalidHandle
	}
	c, ok := t.AsCargo()
	if !ok {
		return ErrNotACarrier
	}
	if len(c.Units) >= c.Capacity {
		return ErrCarrierFull
	}
	c.Units = append(c.Units, unit)
	u, _ := s.Units.Get(unit)
	u.Carrier = transport
	return nil
}

func (s *State) unboard(unit ecs.Handle, u *Unit) {
	if t, ok := s.Units.Get(u.Carrier); ok {
		if c, ok := t.AsCargo(); ok {
			c.Units = removeHandle(c.Units, unit)
		}
	}
	u.Carrier = ecs.Nil
}

// transportAt finds a friendly transport with free space on p.
func (s *State) transportAt(owner ecs.Handle, p Pos) (ecs.Handle, bool) {
	sh, ok := s.stacks[stackKey{owner, p}]
	if !ok {
		return ecs.Nil, false
	}
	st, _ := s.Stacks.Get(sh)
	for _, uh := range st.Units {
		u, ok := s.Units.Get(uh)
		if !ok {
			continue
		}
		if c, ok := u.AsCargo(); ok && len(c.Units) < c.Capacity {
			return uh, true
		}
	}
	return ecs.Nil, false
}

// Teleport relocates a unit without rule checks. Used by combat advances.
func (s *State) Teleport(ctx *Context, h ecs.Handle, to Pos) {
	u, ok := s.Units.Get(h)
	if !ok {
		return
	}
	if !u.Carrier.IsNil() {
		s.unboard(h, u)
	}
	s.relocate(ctx, h, to)
	s.RevealAround(ctx, u.Owner, to, s.sight(u.Kind))
}

func (s *State) sight(kind string) int {
	if uk := s.Catalog.Units.Get(kind); uk != nil && uk.Sight > 0 {
		return uk.Sight
	}
	return 1
}
