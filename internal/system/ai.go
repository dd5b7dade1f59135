package system

import (
	"fmt"
	"sort"

	"github.com/civforge/server/internal/core/ecs"
	"github.com/civforge/server/internal/data"
	"github.com/civforge/server/internal/handler"
	"github.com/civforge/server/internal/pathfind"
	"github.com/civforge/server/internal/scripting"
	"github.com/civforge/server/internal/world"
)

const (
	siteRadius     = 4
	siteCandidates = 5
)

// aiContext packs what a player knows into the controller's input.
func (s *PlayerSystem) aiContext(h ecs.Handle, pl *world.Player, turn int) scripting.AIContext {
	st := s.deps.State
	cat := st.Catalog
	ctx := scripting.AIContext{
		Controller: pl.AI,
		Player:     uint64(h),
		Turn:       turn,
		Gold:       pl.Gold,
		TaxRate:    pl.TaxRate,
		Research:   pl.Research.Tech,
		Available:  availableTechs(st, pl),
	}

	for _, ch := range pl.Cities {
		c, ok := st.Cities.Get(ch)
		if !ok {
			continue
		}
		ac := scripting.AICity{ID: uint64(ch), X: c.Pos.X, Y: c.Pos.Y, Pop: c.Population}
		if c.Build != nil {
			ac.Build = c.Build.ID
			if uk := cat.Units.Get(c.Build.ID); uk != nil && c.Build.Kind == world.BuildUnit && uk.Capability == data.CapFoundCity {
				ctx.Settlers++
			}
		}
		for _, uh := range st.UnitsAt(c.Pos) {
			u, _ := st.Units.Get(uh)
			if u.Owner == h {
				if uk := cat.Units.Get(u.Kind); uk != nil && uk.Strength > 0 {
					ac.Defenders++
				}
			}
		}
		coastal := false
		for _, n := range st.Grid.Neighbors(c.Pos) {
			if !st.Grid.At(n).IsLand() {
				coastal = true
				break
			}
		}
		for _, uk := range cat.Units.All() {
			if !pl.HasTech(uk.RequiresTech) {
				continue
			}
			if uk.RequiresResource != "" && !c.HasResource(uk.RequiresResource) {
				continue
			}
			if st.Domain(uk.ID) == data.DomainSea && !coastal {
				continue
			}
			ac.Units = append(ac.Units, scripting.BuildOption{
				ID:       uk.ID,
				Cost:     uk.Cost,
				Strength: uk.Strength,
				Founds:   uk.Capability == data.CapFoundCity,
				Worker:   uk.Capability == data.CapBuildImprovement,
			})
		}
		for _, b := range cat.Buildings.All() {
			if pl.HasTech(b.RequiresTech) && !c.HasBuilding(b.ID) {
				ac.Buildings = append(ac.Buildings, scripting.BuildOption{ID: b.ID, Cost: b.Cost})
			}
		}
		ctx.Cities = append(ctx.Cities, ac)
	}

	for _, uh := range st.UnitsOf(h) {
		u, ok := st.Units.Get(uh)
		if !ok || st.KillPending(uh) {
			continue
		}
		uk := cat.Units.Get(u.Kind)
		if uk == nil {
			continue
		}
		au := scripting.AIUnit{
			ID:        uint64(uh),
			Kind:      u.Kind,
			X:         u.Pos.X,
			Y:         u.Pos.Y,
			Moves:     u.Moves,
			Strength:  uk.Strength,
			Health:    u.Health,
			Fortified: u.Fortified,
			HasPath:   !u.Path.Empty(),
			SiteX:     -1,
			SiteY:     -1,
			HomeX:     -1,
			HomeY:     -1,
		}
		if c, ok := st.CityAt(u.Pos); ok {
			city, _ := st.Cities.Get(c)
			au.InCity = city != nil && city.Owner == h
		}
		if u.CanFoundCity() {
			au.CanFound = true
			ctx.Settlers++
			if p, ok := s.findSite(h, uh, u); ok {
				au.SiteX, au.SiteY = p.X, p.Y
			}
		}
		if w, ok := u.AsWorker(); ok {
			au.Worker = true
			au.Busy = w.Task != nil
			au.Suggest = suggestImprovement(st, pl, h, u.Pos)
		}
		if home, ok := nearestCity(st, pl, u.Pos); ok {
			au.HomeX, au.HomeY = home.X, home.Y
		}
		ctx.Units = append(ctx.Units, au)
	}

	for uh, u := range st.Units.All() {
		if u.Owner == h || !pl.AtWarWith(u.Owner) || st.KillPending(uh) {
			continue
		}
		if pl.SeenAt(st.Grid.Index(u.Pos)) != world.Visible {
			continue
		}
		str := 0.0
		if uk := cat.Units.Get(u.Kind); uk != nil {
			str = uk.Strength * u.Health
		}
		ctx.Enemies = append(ctx.Enemies, scripting.AIEnemy{
			ID: uint64(uh), Owner: uint64(u.Owner), X: u.Pos.X, Y: u.Pos.Y, Strength: str,
		})
	}
	return ctx
}

// availableTechs lists unknown techs whose prerequisites are all known,
// cheapest first.
func availableTechs(st *world.State, pl *world.Player) []string {
	type cand struct {
		id   string
		cost int
	}
	var cands []cand
	for _, t := range st.Catalog.Techs.All() {
		if pl.Techs[t.ID] {
			continue
		}
		ok := true
		for _, pre := range t.Prereqs {
			if !pl.Techs[pre] {
				ok = false
				break
			}
		}
		if ok {
			cands = append(cands, cand{t.ID, t.Cost})
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].cost != cands[j].cost {
			return cands[i].cost < cands[j].cost
		}
		return cands[i].id < cands[j].id
	})
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.id
	}
	return out
}

// findSite picks the best reachable tile near a settler to found a city on.
func (s *PlayerSystem) findSite(owner, unit ecs.Handle, u *world.Unit) (world.Pos, bool) {
	st := s.deps.State
	pl, _ := st.Players.Get(owner)
	type site struct {
		p     world.Pos
		score int
	}
	var sites []site
	for _, p := range st.Grid.Within(u.Pos, siteRadius) {
		if pl.SeenAt(st.Grid.Index(p)) == world.Hidden || st.CanFoundCity(p) != nil {
			continue
		}
		if t := st.Grid.At(p); !t.Owner.IsNil() && t.Owner != owner {
			continue
		}
		score := -2 * world.Chebyshev(u.Pos, p)
		for _, n := range st.Grid.Within(p, 1) {
			y := st.TileYield(n)
			score += 3*y.Food + 2*y.Production + y.Commerce
		}
		sites = append(sites, site{p, score})
	}
	sort.Slice(sites, func(i, j int) bool {
		if sites[i].score != sites[j].score {
			return sites[i].score > sites[j].score
		}
		return st.Grid.Index(sites[i].p) < st.Grid.Index(sites[j].p)
	})
	q, err := pathfind.ForUnit(st, unit, true)
	if err != nil {
		return world.Pos{}, false
	}
	for i, c := range sites {
		if i == siteCandidates {
			break
		}
		if c.p == u.Pos {
			return c.p, true
		}
		if _, ok := pathfind.FindPath(q, u.Pos, c.p); ok {
			return c.p, true
		}
	}
	return world.Pos{}, false
}

// suggestImprovement picks what a worker standing on p should build: the
// tile's resource improvement, then a road, then a yield improvement on a
// worked tile.
func suggestImprovement(st *world.State, pl *world.Player, owner ecs.Handle, p world.Pos) string {
	t := st.Grid.At(p)
	if t == nil || !t.IsLand() || t.Owner != owner {
		return ""
	}
	cat := st.Catalog
	if t.Resource != "" {
		if r := cat.Resources.Get(t.Resource); r != nil && r.Improvement != "" && !t.HasImprovement(r.Improvement) {
			if imp := cat.Improvements.Get(r.Improvement); imp != nil && pl.HasTech(imp.RequiresTech) && (!imp.RequiresHills || t.Hilled) {
				return imp.ID
			}
		}
	}
	if road := cat.Road(); road != nil && !t.HasImprovement(road.ID) && pl.HasTech(road.RequiresTech) {
		return road.ID
	}
	if t.WorkedBy.IsNil() {
		return ""
	}
	for _, imp := range cat.Improvements.All() {
		if imp.Road || t.HasImprovement(imp.ID) || !pl.HasTech(imp.RequiresTech) {
			continue
		}
		if imp.RequiresHills && !t.Hilled {
			continue
		}
		if t.Hilled && imp.Production > 0 || !t.Hilled && imp.Food > 0 {
			return imp.ID
		}
	}
	return ""
}

func nearestCity(st *world.State, pl *world.Player, p world.Pos) (world.Pos, bool) {
	best, bestDist := world.Pos{}, -1
	for _, ch := range pl.Cities {
		c, ok := st.Cities.Get(ch)
		if !ok {
			continue
		}
		if d := world.Chebyshev(p, c.Pos); bestDist < 0 || d < bestDist {
			best, bestDist = c.Pos, d
		}
	}
	return best, bestDist >= 0
}

// toCommand converts a controller command into the command a human client
// would send.
func toCommand(ac scripting.AICommand) (handler.Command, error) {
	unit := ecs.Handle(ac.Unit)
	switch ac.Type {
	case "set_research":
		return handler.SetResearch{Tech: ac.ID}, nil
	case "set_tax":
		return handler.SetEconomy{TaxRate: ac.TaxRate}, nil
	case "set_build":
		kind := world.BuildUnit
		switch ac.Kind {
		case "unit":
		case "building":
			kind = world.BuildBuilding
		default:
			return nil, fmt.Errorf("build kind %q", ac.Kind)
		}
		return handler.SetBuild{City: ecs.Handle(ac.City), Kind: kind, ID: ac.ID}, nil
	case "move":
		return handler.MoveUnits{Units: []ecs.Handle{unit}, Target: world.Pos{X: ac.X, Y: ac.Y}}, nil
	case "found_city":
		return handler.UnitAction{Unit: unit, Action: handler.ActionFoundCity}, nil
	case "worker_task":
		return handler.UnitAction{Unit: unit, Action: handler.ActionWorkerTask, Improvement: ac.Improvement}, nil
	case "fortify":
		return handler.UnitAction{Unit: unit, Action: handler.ActionFortify}, nil
	case "skip":
		return handler.UnitAction{Unit: unit, Action: handler.ActionSkip}, nil
	}
	return nil, fmt.Errorf("unknown ai command %q", ac.Type)
}
