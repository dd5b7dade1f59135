package handler

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/civforge/server/internal/core/ecs"
	"github.com/civforge/server/internal/world"
)

// ErrRejected wraps every command failure. A rejected command changes
// nothing and never stops the game loop.
var ErrRejected = errors.New("command rejected")

// Deps holds shared dependencies injected into all command handlers.
type Deps struct {
	State *world.State
	Ctx   *world.Context
	Log   *zap.Logger
}

func reject(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRejected, fmt.Sprintf(format, args...))
}

func rejectErr(err error) error {
	if err == nil || errors.Is(err, ErrRejected) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrRejected, err)
}

// actingPlayer checks the issuing player still exists and is in the game.
func actingPlayer(s *world.State, player ecs.Handle) (*world.Player, error) {
	p, err := s.Players.Lookup(player)
	if err != nil {
		return nil, rejectErr(err)
	}
	if p.Defeated {
		return nil, reject("player %s is defeated", player)
	}
	return p, nil
}

// ownedUnit resolves a unit the player may command.
func ownedUnit(s *world.State, player, unit ecs.Handle) (*world.Unit, error) {
	u, err := s.Units.Lookup(unit)
	if err != nil || s.KillPending(unit) {
		return nil, rejectErr(ecs.ErrInvalidHandle)
	}
	if u.Owner != player {
		return nil, rejectErr(world.ErrWrongOwner)
	}
	return u, nil
}

// ownedCity resolves a city the player may command.
func ownedCity(s *world.State, player, city ecs.Handle) (*world.City, error) {
	c, err := s.Cities.Lookup(city)
	if err != nil {
		return nil, rejectErr(err)
	}
	if c.Owner != player {
		return nil, rejectErr(world.ErrWrongOwner)
	}
	return c, nil
}
