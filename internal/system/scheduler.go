package system

import (
	"go.uber.org/zap"

	coresys "github.com/civforge/server/internal/core/system"
	"github.com/civforge/server/internal/handler"
	"github.com/civforge/server/internal/scripting"
	"github.com/civforge/server/internal/world"
)

// Scheduler advances the game one turn at a time through the fixed phase
// order: units, trade, cities, players, culture, cleanup. Deferred kills are
// drained between systems.
type Scheduler struct {
	runner *coresys.Runner
	state  *world.State
	ctx    *world.Context
	cities *CitySystem
	log    *zap.Logger
}

func NewScheduler(disp *handler.Dispatcher, ai *scripting.Engine) *Scheduler {
	d := disp.Deps()
	s := &Scheduler{
		runner: coresys.NewRunner(),
		state:  d.State,
		ctx:    d.Ctx,
		cities: NewCitySystem(d.State, d.Ctx, d.Log),
		log:    d.Log,
	}
	s.runner.Register(NewUnitSystem(d))
	s.runner.Register(NewTradeSystem(d.State, d.Ctx))
	s.runner.Register(s.cities)
	s.runner.Register(NewPlayerSystem(disp, ai))
	s.runner.Register(NewCultureSystem(d.State, d.Ctx, d.Log))
	s.runner.Register(NewCleanupSystem(d.State, d.Ctx))
	s.runner.OnSettle(func() { d.State.DrainKills(d.Ctx) })
	return s
}

// AdvanceTurn processes one full turn and increments the turn counter.
// Returns coresys.ErrTurnInProgress when called re-entrantly.
func (s *Scheduler) AdvanceTurn() error {
	turn := s.state.Turn
	if err := s.runner.RunTurn(turn); err != nil {
		return err
	}
	s.state.Turn++
	s.ctx.Dirty.Global = true
	s.log.Info("turn advanced", zap.Int("turn", s.state.Turn))
	return nil
}

// InProgress reports whether a turn is being processed.
func (s *Scheduler) InProgress() bool { return s.runner.InProgress() }

// RecomputeCities refreshes cached city yields, for example after a load.
func (s *Scheduler) RecomputeCities() {
	for _, h := range s.state.Cities.Handles() {
		s.cities.Recompute(h)
	}
}
