package worldtest

import (
	"fmt"

	"github.com/civforge/server/internal/core/ecs"
	"github.com/civforge/server/internal/world"
)

// Diff compares two states whose stores were filled in the same order, such
// as a game and its reloaded save. Handles are matched by position and every
// reference is translated before comparing. It returns one line per
// difference, nil when the states match.
func Diff(orig, got *world.State) []string {
	var out []string
	add := func(format string, args ...any) { out = append(out, fmt.Sprintf(format, args...)) }
	same := func(what string, g, w any) {
		if gs, ws := fmt.Sprintf("%+v", g), fmt.Sprintf("%+v", w); gs != ws {
			add("%s:\n got %s\nwant %s", what, gs, ws)
		}
	}

	if got.Turn != orig.Turn || got.Era != orig.Era || got.MapSeed != orig.MapSeed || got.Generators != orig.Generators {
		add("globals: turn %d era %d seed %d gens %v", got.Turn, got.Era, got.MapSeed, got.Generators)
	}
	if got.Grid.Width != orig.Grid.Width || got.Grid.Height != orig.Grid.Height {
		add("grid %dx%d, want %dx%d", got.Grid.Width, got.Grid.Height, orig.Grid.Width, orig.Grid.Height)
		return out
	}

	pm, ok1 := pair(orig.Players, got.Players)
	cm, ok2 := pair(orig.Cities, got.Cities)
	um, ok3 := pair(orig.Units, got.Units)
	if !ok1 || !ok2 || !ok3 {
		add("entity counts: players %d/%d cities %d/%d units %d/%d",
			got.Players.Len(), orig.Players.Len(), got.Cities.Len(), orig.Cities.Len(), got.Units.Len(), orig.Units.Len())
		return out
	}
	remap := func(h ecs.Handle) ecs.Handle { return pm[h] }

	if got.Me != pm[orig.Me] {
		add("Me = %v, want %v", got.Me, pm[orig.Me])
	}
	if len(got.Slots) != len(orig.Slots) {
		add("slots = %d, want %d", len(got.Slots), len(orig.Slots))
	} else {
		for i, ls := range orig.Slots {
			ls.Player = pm[ls.Player]
			same(fmt.Sprintf("slot %d", i), got.Slots[i], ls)
		}
	}

	for h, p := range orig.Players.All() {
		want := *p
		want.Capital = cm[p.Capital]
		want.Cities = translate(cm, p.Cities)
		want.AtWar = make(map[ecs.Handle]bool)
		for o, war := range p.AtWar {
			want.AtWar[pm[o]] = war
		}
		gp, _ := got.Players.Get(pm[h])
		same("player "+p.Name, *gp, want)
	}

	for h, c := range orig.Cities.All() {
		want := *c
		want.Owner, want.Founder = pm[c.Owner], pm[c.Founder]
		want.Culture.Remap(remap)
		gc, _ := got.Cities.Get(cm[h])
		if (gc.Build == nil) != (c.Build == nil) || (c.Build != nil && *gc.Build != *c.Build) {
			add("city %s build = %+v, want %+v", c.Name, gc.Build, c.Build)
		}
		g := *gc
		g.Build, want.Build = nil, nil
		same("city "+c.Name, g, want)
	}

	for h, u := range orig.Units.All() {
		want := *u
		want.Owner, want.Carrier = pm[u.Owner], um[u.Carrier]
		gu, _ := got.Units.Get(um[h])
		if world.CapabilityName(gu.Ability) != world.CapabilityName(u.Ability) {
			add("unit %s capability %q", u.Kind, world.CapabilityName(gu.Ability))
			continue
		}
		switch a := u.Ability.(type) {
		case *world.Worker:
			gw, _ := gu.AsWorker()
			if (gw.Task == nil) != (a.Task == nil) || (a.Task != nil && fmt.Sprintf("%+v", *gw.Task) != fmt.Sprintf("%+v", *a.Task)) {
				add("unit %v worker task = %+v, want %+v", h, gw.Task, a.Task)
			}
		case *world.Cargo:
			gcg, _ := gu.AsCargo()
			same("cargo", gcg.Units, translate(um, a.Units))
		}
		g := *gu
		g.Ability, want.Ability = nil, nil
		same("unit "+u.Kind, g, want)
	}

	for i := range orig.Grid.Tiles {
		want := orig.Grid.Tiles[i]
		want.Culture.Remap(remap)
		want.Owner = pm[want.Owner]
		want.WorkedBy = cm[want.WorkedBy]
		want.Influence = translate(cm, want.Influence)
		same(fmt.Sprintf("tile %v", orig.Grid.PosOf(i)), got.Grid.Tiles[i], want)
	}

	if got.Routes.Len() != orig.Routes.Len() {
		add("routes = %d, want %d", got.Routes.Len(), orig.Routes.Len())
	}
	for h, r := range orig.Routes.All() {
		for p := range r.Tiles {
			gh, ok := got.RouteAt(p)
			if !ok {
				add("tile %v lost its route", p)
				continue
			}
			gr, _ := got.Routes.Get(gh)
			if len(gr.Tiles) != len(r.Tiles) || len(gr.Cities) != len(r.Cities) {
				add("route %v: %d tiles %d cities, want %d %d", h, len(gr.Tiles), len(gr.Cities), len(r.Tiles), len(r.Cities))
			}
		}
	}

	if msg := CheckStacks(got); msg != "" {
		add("%s", msg)
	}
	for h, c := range orig.Cities.All() {
		if gh, ok := got.CityAt(c.Pos); !ok || gh != cm[h] {
			add("city index at %v = %v, want %v", c.Pos, gh, cm[h])
		}
	}
	return out
}

// pair matches handles of two stores by iteration order.
func pair[T any](a, b *ecs.Store[T]) (map[ecs.Handle]ecs.Handle, bool) {
	ha, hb := a.Handles(), b.Handles()
	if len(ha) != len(hb) {
		return nil, false
	}
	m := map[ecs.Handle]ecs.Handle{ecs.Nil: ecs.Nil}
	for i := range ha {
		m[ha[i]] = hb[i]
	}
	return m, true
}

func translate(m map[ecs.Handle]ecs.Handle, hs []ecs.Handle) []ecs.Handle {
	if hs == nil {
		return nil
	}
	out := make([]ecs.Handle, len(hs))
	for i, h := range hs {
		out[i] = m[h]
	}
	return out
}
