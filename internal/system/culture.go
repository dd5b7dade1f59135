package system

import (
	"go.uber.org/zap"

	coresys "github.com/civforge/server/internal/core/system"
	"github.com/civforge/server/internal/world"
)

// baseCulture is what every city produces before buildings.
const baseCulture = 1

// CultureSystem spreads each city's culture over its radius.
type CultureSystem struct {
	state *world.State
	ctx   *world.Context
	log   *zap.Logger
}

func NewCultureSystem(state *world.State, ctx *world.Context, log *zap.Logger) *CultureSystem {
	return &CultureSystem{state: state, ctx: ctx, log: log}
}

func (s *CultureSystem) Phase() coresys.Phase { return coresys.PhaseCulture }

func (s *CultureSystem) Update(_ int) {
	for _, h := range s.state.Cities.Handles() {
		c, ok := s.state.Cities.Get(h)
		if !ok {
			continue
		}
		perTurn := baseCulture
		for _, id := range c.Buildings {
			if b := s.state.Catalog.Buildings.Get(id); b != nil {
				perTurn += b.Culture
			}
		}
		before := c.CultureLevel()
		guard(s.log, "city", h, func() error {
			s.state.PropagateCulture(s.ctx, h, perTurn)
			return nil
		})
		if c.CultureLevel() != before {
			s.ctx.Dirty.City(h)
		}
	}
}
