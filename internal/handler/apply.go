package handler

import (
	"go.uber.org/zap"

	"github.com/civforge/server/internal/core/ecs"
	"github.com/civforge/server/internal/pathfind"
	"github.com/civforge/server/internal/world"
)

const maxTaxRate = 100

func (c ComputePath) apply(d *Deps, player ecs.Handle) (Result, error) {
	s := d.State
	u, err := ownedUnit(s, player, c.Unit)
	if err != nil {
		return Result{}, err
	}
	if _, err := s.Grid.Lookup(c.Target); err != nil {
		return Result{}, rejectErr(err)
	}
	q, err := pathfind.ForUnit(s, c.Unit, true)
	if err != nil {
		return Result{}, rejectErr(err)
	}
	path, ok := pathfind.FindPath(q, u.Pos, c.Target)
	if !ok {
		return Result{}, reject("no path to %s", c.Target)
	}
	return Result{Path: path}, nil
}

func (c MoveUnits) apply(d *Deps, player ecs.Handle) (Result, error) {
	s := d.State
	if len(c.Units) == 0 {
		return Result{}, reject("no units")
	}
	if _, err := s.Grid.Lookup(c.Target); err != nil {
		return Result{}, rejectErr(err)
	}
	for _, h := range c.Units {
		if _, err := ownedUnit(s, player, h); err != nil {
			return Result{}, err
		}
	}

	var res Result
	moved := 0
	for _, h := range c.Units {
		u, ok := s.Units.Get(h)
		if !ok || s.KillPending(h) {
			continue
		}
		q, err := pathfind.ForUnit(s, h, true)
		if err != nil {
			continue
		}
		path, ok := pathfind.FindPath(q, u.Pos, c.Target)
		if !ok {
			d.Log.Debug("no path", zap.Stringer("unit", h), zap.Stringer("target", c.Target))
			continue
		}
		u.Path = path
		u.Fortified = false
		u.Skipping = false
		fights, err := FollowPath(d, h)
		res.Combats = append(res.Combats, fights...)
		if err != nil {
			d.Log.Debug("move stopped", zap.Stringer("unit", h), zap.Error(err))
		}
		moved++
		if p, ok := s.Units.Get(h); ok && res.Path.Empty() {
			res.Path = p.Path
		}
	}
	if moved == 0 {
		return res, reject("no path to %s", c.Target)
	}
	return res, nil
}

func (c SetBuild) apply(d *Deps, player ecs.Handle) (Result, error) {
	s := d.State
	pl, err := actingPlayer(s, player)
	if err != nil {
		return Result{}, err
	}
	city, err := ownedCity(s, player, c.City)
	if err != nil {
		return Result{}, err
	}
	task := &world.BuildTask{Kind: c.Kind, ID: c.ID}
	switch c.Kind {
	case world.BuildUnit:
		uk := s.Catalog.Units.Get(c.ID)
		if uk == nil {
			return Result{}, reject("unknown unit %q", c.ID)
		}
		if !pl.HasTech(uk.RequiresTech) {
			return Result{}, reject("%s requires %s", uk.ID, uk.RequiresTech)
		}
		if uk.RequiresResource != "" && !city.HasResource(uk.RequiresResource) {
			return Result{}, reject("%s requires %s", uk.ID, uk.RequiresResource)
		}
		task.Cost = uk.Cost
	case world.BuildBuilding:
		b := s.Catalog.Buildings.Get(c.ID)
		if b == nil {
			return Result{}, reject("unknown building %q", c.ID)
		}
		if !pl.HasTech(b.RequiresTech) {
			return Result{}, reject("%s requires %s", b.ID, b.RequiresTech)
		}
		if city.HasBuilding(b.ID) {
			return Result{}, reject("%s already built", b.ID)
		}
		task.Cost = b.Cost
	default:
		return Result{}, reject("bad build kind %d", c.Kind)
	}
	if city.Build != nil && city.Build.Kind == task.Kind && city.Build.ID == task.ID {
		return Result{}, nil
	}
	city.Build = task
	d.Ctx.Dirty.City(c.City)
	return Result{City: c.City}, nil
}

func (c SetResearch) apply(d *Deps, player ecs.Handle) (Result, error) {
	s := d.State
	pl, err := actingPlayer(s, player)
	if err != nil {
		return Result{}, err
	}
	tech := s.Catalog.Techs.Get(c.Tech)
	if tech == nil {
		return Result{}, reject("unknown tech %q", c.Tech)
	}
	if pl.Techs[tech.ID] {
		return Result{}, reject("%s already known", tech.ID)
	}
	for _, pre := range tech.Prereqs {
		if !pl.Techs[pre] {
			return Result{}, reject("%s requires %s", tech.ID, pre)
		}
	}
	if pl.Research.Tech != tech.ID {
		pl.Research = world.Research{Tech: tech.ID}
	}
	d.Ctx.Dirty.Player(player)
	return Result{}, nil
}

func (c SetEconomy) apply(d *Deps, player ecs.Handle) (Result, error) {
	pl, err := actingPlayer(d.State, player)
	if err != nil {
		return Result{}, err
	}
	if c.TaxRate < 0 || c.TaxRate > maxTaxRate {
		return Result{}, reject("tax rate %d out of range", c.TaxRate)
	}
	pl.TaxRate = c.TaxRate
	d.Ctx.Dirty.Player(player)
	return Result{}, nil
}

func (c UnitAction) apply(d *Deps, player ecs.Handle) (Result, error) {
	s := d.State
	u, err := ownedUnit(s, player, c.Unit)
	if err != nil {
		return Result{}, err
	}
	switch c.Action {
	case ActionFortify:
		u.Fortified = true
		u.Path = world.Path{}
		u.Moves = 0
	case ActionSkip:
		u.Skipping = true
		u.Moves = 0
	case ActionFoundCity:
		if !u.CanFoundCity() {
			return Result{}, rejectErr(world.ErrNoCapability)
		}
		if u.Moves <= 0 {
			return Result{}, rejectErr(world.ErrNoMoves)
		}
		city, err := s.FoundCity(d.Ctx, player, u.Pos, c.Name)
		if err != nil {
			return Result{}, rejectErr(err)
		}
		s.KillUnit(d.Ctx, c.Unit)
		return Result{City: city}, nil
	case ActionWorkerTask:
		if err := startWorkerTask(d, player, c.Unit, u, c.Improvement); err != nil {
			return Result{}, err
		}
	case ActionBoard:
		if err := s.BoardCargo(d.Ctx, c.Unit, c.Transport); err != nil {
			return Result{}, rejectErr(err)
		}
	default:
		return Result{}, reject("unknown action %d", c.Action)
	}
	d.Ctx.Dirty.Unit(c.Unit)
	return Result{}, nil
}

func startWorkerTask(d *Deps, player, h ecs.Handle, u *world.Unit, improvement string) error {
	s := d.State
	w, ok := u.AsWorker()
	if !ok {
		return rejectErr(world.ErrNoCapability)
	}
	imp := s.Catalog.Improvements.Get(improvement)
	if imp == nil {
		return reject("unknown improvement %q", improvement)
	}
	pl, err := actingPlayer(s, player)
	if err != nil {
		return err
	}
	if !pl.HasTech(imp.RequiresTech) {
		return reject("%s requires %s", imp.ID, imp.RequiresTech)
	}
	t := s.Grid.At(u.Pos)
	if !t.IsLand() {
		return rejectErr(world.ErrNotLand)
	}
	if imp.RequiresHills && !t.Hilled {
		return reject("%s requires hills", imp.ID)
	}
	if t.HasImprovement(imp.ID) {
		return reject("%s already built", imp.ID)
	}
	if !t.Owner.IsNil() && t.Owner != player {
		return rejectErr(world.ErrWrongOwner)
	}
	w.Task = &world.WorkerTask{Improvement: imp.ID, TurnsLeft: imp.Turns}
	u.Moves = 0
	u.Path = world.Path{}
	d.Ctx.Dirty.Unit(h)
	return nil
}

func (c Diplomacy) apply(d *Deps, player ecs.Handle) (Result, error) {
	if _, err := actingPlayer(d.State, player); err != nil {
		return Result{}, err
	}
	if err := d.State.SetWar(d.Ctx, player, c.Other, c.War); err != nil {
		return Result{}, rejectErr(err)
	}
	return Result{}, nil
}

func (c SetWorkedTiles) apply(d *Deps, player ecs.Handle) (Result, error) {
	if _, err := ownedCity(d.State, player, c.City); err != nil {
		return Result{}, err
	}
	if err := d.State.SetWorkedTiles(d.Ctx, c.City, c.Tiles); err != nil {
		return Result{}, rejectErr(err)
	}
	return Result{City: c.City}, nil
}
