package system

import (
	coresys "github.com/civforge/server/internal/core/system"
	"github.com/civforge/server/internal/world"
)

// TradeSystem pushes connected resources to the cities on each route.
type TradeSystem struct {
	state *world.State
	ctx   *world.Context
}

func NewTradeSystem(state *world.State, ctx *world.Context) *TradeSystem {
	return &TradeSystem{state: state, ctx: ctx}
}

func (s *TradeSystem) Phase() coresys.Phase { return coresys.PhaseTrade }

func (s *TradeSystem) Update(_ int) {
	s.state.PropagateResources(s.ctx)
}
