package handler

import (
	"github.com/civforge/server/internal/core/ecs"
	"github.com/civforge/server/internal/core/event"
	"github.com/civforge/server/internal/world"
)

// Replicate sends every dirty entity to the players allowed to see it, then
// resets the dirty set. Units and cities are filtered by the viewer's
// current visibility; private player state goes to its owner only.
func (l *Lobby) Replicate(s *world.State, d *world.Dirty) {
	if d.Empty() {
		return
	}
	viewers := l.Connected()
	if d.Global {
		l.Broadcast(BuildGlobalPacket(s))
	}
	for _, v := range viewers {
		if _, ok := d.Vision[v]; ok {
			for _, b := range BuildVisibilityPackets(s, v) {
				l.SendTo(v, b)
			}
		}
	}
	tiles := world.SortedTiles(d.Tiles)
	for _, v := range viewers {
		pl, ok := s.Players.Get(v)
		if !ok {
			continue
		}
		for _, p := range tiles {
			if pl.SeenAt(s.Grid.Index(p)) != world.Hidden {
				l.SendTo(v, BuildTilePacket(s, v, p))
			}
		}
	}
	for _, h := range world.SortedHandles(d.Units) {
		u, ok := s.Units.Get(h)
		if !ok {
			continue
		}
		data := BuildUnitPacket(h, u)
		for _, v := range viewers {
			if canSee(s, v, u.Owner, u.Pos) {
				l.SendTo(v, data)
			}
		}
	}
	for _, h := range d.Removed {
		l.Broadcast(BuildUnitRemovedPacket(h))
	}
	for _, h := range world.SortedHandles(d.Cities) {
		c, ok := s.Cities.Get(h)
		if !ok {
			continue
		}
		for _, v := range viewers {
			if v == c.Owner || seenBy(s, v, c.Pos) {
				l.SendTo(v, BuildCityPacket(h, c, v))
			}
		}
	}
	for _, h := range d.Razed {
		l.Broadcast(BuildCityRemovedPacket(h))
	}
	for _, h := range world.SortedHandles(d.Players) {
		if p, ok := s.Players.Get(h); ok {
			l.SendTo(h, BuildPlayerPacket(h, p))
		}
	}
	d.Reset()
}

// SubscribeEvents forwards combat results to both participants.
func (l *Lobby) SubscribeEvents(bus *event.Bus) {
	event.Subscribe(bus, func(ev event.CombatResolved) {
		data := BuildCombatPacket(ev)
		l.SendTo(ev.AttackerOwner, data)
		if ev.DefenderOwner != ev.AttackerOwner {
			l.SendTo(ev.DefenderOwner, data)
		}
	})
}

func canSee(s *world.State, viewer, owner ecs.Handle, p world.Pos) bool {
	if viewer == owner {
		return true
	}
	pl, ok := s.Players.Get(viewer)
	return ok && pl.SeenAt(s.Grid.Index(p)) == world.Visible
}

func seenBy(s *world.State, viewer ecs.Handle, p world.Pos) bool {
	pl, ok := s.Players.Get(viewer)
	return ok && pl.SeenAt(s.Grid.Index(p)) != world.Hidden
}
