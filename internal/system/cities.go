package system

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/civforge/server/internal/core/ecs"
	coresys "github.com/civforge/server/internal/core/system"
	"github.com/civforge/server/internal/world"
)

const (
	foodPerCitizen  = 2
	baseHappiness   = 4
	granaryKeep     = 50 // percent of the food box kept on growth
	structureRepair = 0.25
)

// cityCenter is the minimum yield of a city's own tile.
var cityCenter = world.Yield{Food: 2, Production: 1, Commerce: 1}

// CitySystem grows cities, advances production and recomputes happiness.
type CitySystem struct {
	state *world.State
	ctx   *world.Context
	log   *zap.Logger
}

func NewCitySystem(state *world.State, ctx *world.Context, log *zap.Logger) *CitySystem {
	return &CitySystem{state: state, ctx: ctx, log: log}
}

func (s *CitySystem) Phase() coresys.Phase { return coresys.PhaseCities }

func (s *CitySystem) Update(turn int) {
	for _, h := range s.state.Cities.Handles() {
		guard(s.log, "city", h, func() error { return s.update(h, turn) })
	}
}

func (s *CitySystem) update(h ecs.Handle, turn int) error {
	c, ok := s.state.Cities.Get(h)
	if !ok {
		return nil
	}
	s.ctx.Dirty.City(h)

	s.Recompute(h)
	if c.Unhappy <= c.Happy || c.Yield.Food < foodPerCitizen*c.Population {
		c.Food += c.Yield.Food - foodPerCitizen*c.Population
	}
	switch {
	case c.Food >= c.GrowthThreshold():
		c.Population++
		if s.storesFood(c) {
			c.Food = c.Food * granaryKeep / 100
		} else {
			c.Food = 0
		}
		s.state.AutoAssignTiles(h)
		s.log.Debug("city grew", zap.String("city", c.Name), zap.Int("pop", c.Population))
	case c.Food < 0:
		c.Food = 0
		if c.Population > 1 {
			c.Population--
			s.state.AutoAssignTiles(h)
			s.log.Debug("city starved", zap.String("city", c.Name), zap.Int("pop", c.Population))
		}
	}

	if c.Health < 1 {
		c.Health = min(1, c.Health+structureRepair)
	}
	return s.produce(h, c, turn)
}

// produce adds this turn's production to the build task and completes it.
// A malformed task is dropped.
func (s *CitySystem) produce(h ecs.Handle, c *world.City, turn int) error {
	task := c.Build
	if task == nil {
		return nil
	}
	if task.Cost <= 0 {
		c.Build = nil
		return fmt.Errorf("city %q: build task %s with cost %d", c.Name, task.ID, task.Cost)
	}
	task.Progress += c.Yield.Production
	if task.Progress < task.Cost {
		return nil
	}
	owner, pos, name := c.Owner, c.Pos, c.Name
	c.Build = nil
	switch task.Kind {
	case world.BuildUnit:
		// CreateUnit may grow the unit store; c is not used past this point.
		if _, err := s.state.CreateUnit(s.ctx, owner, task.ID, pos); err != nil {
			return fmt.Errorf("city %q: %w", name, err)
		}
	case world.BuildBuilding:
		if s.state.Catalog.Buildings.Get(task.ID) == nil {
			return fmt.Errorf("city %q: %w: building %q", name, world.ErrUnknownKind, task.ID)
		}
		if !c.HasBuilding(task.ID) {
			c.Buildings = append(c.Buildings, task.ID)
			sort.Strings(c.Buildings)
		}
	default:
		return fmt.Errorf("city %q: bad build kind %d", name, task.Kind)
	}
	s.log.Info("build completed",
		zap.String("city", name),
		zap.String("kind", task.Kind.String()),
		zap.String("id", task.ID),
		zap.Int("turn", turn),
	)
	return nil
}

// Recompute refreshes a city's cached yield and happiness.
func (s *CitySystem) Recompute(h ecs.Handle) {
	c, ok := s.state.Cities.Get(h)
	if !ok {
		return
	}
	cat := s.state.Catalog

	center := s.state.TileYield(c.Pos)
	center.Food = max(center.Food, cityCenter.Food)
	center.Production = max(center.Production, cityCenter.Production)
	center.Commerce = max(center.Commerce, cityCenter.Commerce)
	y := center
	for _, p := range c.Worked {
		y = y.Add(s.state.TileYield(p))
	}

	happy := baseHappiness
	prodPct := 100
	for _, id := range c.Buildings {
		b := cat.Buildings.Get(id)
		if b == nil {
			continue
		}
		y.Food += b.Food
		happy += b.Happiness
		prodPct += b.ProductionPercent
	}
	for _, id := range c.Resources {
		if r := cat.Resources.Get(id); r != nil {
			happy += r.Happiness
		}
	}
	y.Production = y.Production * prodPct / 100

	c.Yield = y
	c.Happy = happy
	c.Unhappy = c.Population
}

// storesFood reports whether any building in the city adds food; those
// keep part of the food box when the city grows.
func (s *CitySystem) storesFood(c *world.City) bool {
	for _, id := range c.Buildings {
		if b := s.state.Catalog.Buildings.Get(id); b != nil && b.Food > 0 {
			return true
		}
	}
	return false
}
