package system

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/civforge/server/internal/core/ecs"
	"github.com/civforge/server/internal/core/event"
	coresys "github.com/civforge/server/internal/core/system"
	"github.com/civforge/server/internal/handler"
	"github.com/civforge/server/internal/scripting"
	"github.com/civforge/server/internal/world"
)

const (
	freeUnitsBase    = 2
	freeUnitsPerCity = 2
	unitUpkeep       = 1
	scorePerCity     = 5
	scorePerTech     = 2
)

// PlayerSystem settles each player's economy and research, then lets AI
// players issue their commands through the dispatcher like a human would.
type PlayerSystem struct {
	deps *handler.Deps
	disp *handler.Dispatcher
	ai   *scripting.Engine // nil = AI players idle
}

func NewPlayerSystem(disp *handler.Dispatcher, ai *scripting.Engine) *PlayerSystem {
	return &PlayerSystem{deps: disp.Deps(), disp: disp, ai: ai}
}

func (s *PlayerSystem) Phase() coresys.Phase { return coresys.PhasePlayers }

func (s *PlayerSystem) Update(turn int) {
	st := s.deps.State
	for _, h := range st.Players.Handles() {
		pl, ok := st.Players.Get(h)
		if !ok || pl.Defeated {
			continue
		}
		guard(s.deps.Log, "player", h, func() error { return s.settle(h, pl) })
		if !pl.Human && s.ai != nil {
			guard(s.deps.Log, "player", h, func() error { return s.runAI(h, turn) })
		}
	}
}

func (s *PlayerSystem) settle(h ecs.Handle, pl *world.Player) error {
	st := s.deps.State
	ctx := s.deps.Ctx
	cat := st.Catalog

	revenue, science, expenses, pop := 0, 0, 0, 0
	for _, ch := range pl.Cities {
		c, ok := st.Cities.Get(ch)
		if !ok {
			continue
		}
		gold := c.Yield.Commerce * pl.TaxRate / 100
		sci := c.Yield.Commerce - gold
		goldPct, sciPct := 100, 100
		for _, id := range c.Buildings {
			if b := cat.Buildings.Get(id); b != nil {
				goldPct += b.GoldPercent
				sciPct += b.SciencePercent
				expenses += b.Upkeep
			}
		}
		revenue += gold * goldPct / 100
		science += sci * sciPct / 100
		pop += c.Population
	}
	units := len(st.UnitsOf(h))
	if paid := units - freeUnitsBase - freeUnitsPerCity*len(pl.Cities); paid > 0 {
		expenses += paid * unitUpkeep
	}

	pl.Revenue = revenue
	pl.Expenses = expenses
	pl.Science = science
	pl.Gold += revenue - expenses
	if pl.Gold < 0 {
		s.deps.Log.Warn("treasury empty",
			zap.String("player", pl.Name),
			zap.Int("deficit", -pl.Gold),
		)
		pl.Gold = 0
	}
	ctx.Dirty.Player(h)

	err := s.research(h, pl)

	techs := 0
	for _, known := range pl.Techs {
		if known {
			techs++
		}
	}
	pl.Score = pop + scorePerCity*len(pl.Cities) + scorePerTech*techs
	return err
}

func (s *PlayerSystem) research(h ecs.Handle, pl *world.Player) error {
	st := s.deps.State
	ctx := s.deps.Ctx
	if pl.Research.Tech == "" {
		return nil
	}
	tech := st.Catalog.Techs.Get(pl.Research.Tech)
	if tech == nil {
		id := pl.Research.Tech
		pl.Research = world.Research{}
		return fmt.Errorf("%w: tech %q", world.ErrUnknownKind, id)
	}
	pl.Research.Progress += pl.Science
	if pl.Research.Progress < tech.Cost {
		return nil
	}
	pl.Techs[tech.ID] = true
	pl.Research = world.Research{}
	if tech.Era > st.Era {
		st.Era = tech.Era
		ctx.Dirty.Global = true
	}
	event.Emit(ctx.Bus, event.TechUnlocked{Player: h, Tech: tech.ID})
	s.deps.Log.Info("tech unlocked", zap.String("player", pl.Name), zap.String("tech", tech.ID))
	return nil
}

// runAI asks the player's controller for commands and executes them. A
// rejected command is logged and the rest still run.
func (s *PlayerSystem) runAI(h ecs.Handle, turn int) error {
	pl, ok := s.deps.State.Players.Get(h)
	if !ok {
		return nil
	}
	cmds := s.ai.RunPlayerAI(s.aiContext(h, pl, turn))
	for _, ac := range cmds {
		cmd, err := toCommand(ac)
		if err != nil {
			s.deps.Log.Warn("bad ai command", zap.String("player", pl.Name), zap.Error(err))
			continue
		}
		if _, err := s.disp.Execute(h, cmd); err != nil {
			s.deps.Log.Debug("ai command rejected",
				zap.String("type", ac.Type),
				zap.Stringer("player", h),
				zap.Error(err),
			)
		}
	}
	return nil
}
