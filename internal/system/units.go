package system

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/civforge/server/internal/core/ecs"
	coresys "github.com/civforge/server/internal/core/system"
	"github.com/civforge/server/internal/handler"
	"github.com/civforge/server/internal/world"
)

const (
	healBase      = 0.10
	healTerritory = 0.15
	healCity      = 0.20
)

// UnitSystem runs end-of-turn upkeep for every unit: capability tasks,
// healing, movement reset, then continuing stored paths.
type UnitSystem struct {
	deps *handler.Deps
}

func NewUnitSystem(deps *handler.Deps) *UnitSystem {
	return &UnitSystem{deps: deps}
}

func (s *UnitSystem) Phase() coresys.Phase { return coresys.PhaseUnits }

func (s *UnitSystem) Update(_ int) {
	st := s.deps.State
	for _, h := range st.Units.Handles() {
		if st.KillPending(h) {
			continue
		}
		guard(s.deps.Log, "unit", h, func() error { return s.upkeep(h) })
	}
}

func (s *UnitSystem) upkeep(h ecs.Handle) error {
	st := s.deps.State
	ctx := s.deps.Ctx
	u, ok := st.Units.Get(h)
	if !ok {
		return nil
	}
	kind := st.Catalog.Units.Get(u.Kind)
	if kind == nil {
		return fmt.Errorf("%w: %q", world.ErrUnknownKind, u.Kind)
	}

	if w, ok := u.AsWorker(); ok && w.Task != nil {
		s.progressTask(h, u, w)
	}
	if u.Health < 1 && u.Carrier.IsNil() {
		u.Health += s.healRate(u)
		if u.Health > 1 {
			u.Health = 1
		}
	}
	u.Moves = kind.Moves
	u.Skipping = false
	ctx.Dirty.Unit(h)

	if !u.Path.Empty() {
		if _, err := handler.FollowPath(s.deps, h); err != nil {
			s.deps.Log.Debug("path interrupted", zap.Stringer("unit", h), zap.Error(err))
		}
	}
	return nil
}

func (s *UnitSystem) healRate(u *world.Unit) float64 {
	st := s.deps.State
	if c, ok := st.CityAt(u.Pos); ok {
		if city, _ := st.Cities.Get(c); city != nil && city.Owner == u.Owner {
			return healCity
		}
	}
	if t := st.Grid.At(u.Pos); t != nil && t.Owner == u.Owner {
		return healTerritory
	}
	return healBase
}

// progressTask counts a worker's improvement down and builds it on the last
// turn. Roads join the trade network.
func (s *UnitSystem) progressTask(h ecs.Handle, u *world.Unit, w *world.Worker) {
	st := s.deps.State
	ctx := s.deps.Ctx
	w.Task.TurnsLeft--
	if w.Task.TurnsLeft > 0 {
		return
	}
	id := w.Task.Improvement
	w.Task = nil
	t := st.Grid.At(u.Pos)
	if t == nil || !t.AddImprovement(id) {
		return
	}
	ctx.Dirty.Tile(u.Pos)
	if imp := st.Catalog.Improvements.Get(id); imp != nil && imp.Road {
		st.AddTradeNode(ctx, u.Pos)
	}
	s.deps.Log.Debug("improvement built",
		zap.String("improvement", id),
		zap.Stringer("pos", u.Pos),
		zap.Stringer("worker", h),
	)
}
