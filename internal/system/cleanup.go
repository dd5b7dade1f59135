package system

import (
	coresys "github.com/civforge/server/internal/core/system"
	"github.com/civforge/server/internal/world"
)

// CleanupSystem erases units killed during the turn.
type CleanupSystem struct {
	state *world.State
	ctx   *world.Context
}

func NewCleanupSystem(state *world.State, ctx *world.Context) *CleanupSystem {
	return &CleanupSystem{state: state, ctx: ctx}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ int) {
	s.state.DrainKills(s.ctx)
}
