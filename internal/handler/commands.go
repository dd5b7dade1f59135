package handler

import (
	"github.com/civforge/server/internal/combat"
	"github.com/civforge/server/internal/core/ecs"
	"github.com/civforge/server/internal/world"
)

// Command is a player action. The set is closed: every command type lives
// in this package and is applied by the Dispatcher.
type Command interface {
	apply(d *Deps, player ecs.Handle) (Result, error)
}

// Result carries what a command produced besides its state changes.
type Result struct {
	Path    world.Path
	City    ecs.Handle
	Combats []*combat.Combat
}

// ComputePath asks for the path a unit would take, without moving it.
type ComputePath struct {
	Unit   ecs.Handle
	Target world.Pos
}

// MoveUnits sends units toward a target. The path is stored on each unit
// and walked as far as its moves allow; the rest continues next turn.
// A step onto enemy units at war is an attack.
type MoveUnits struct {
	Units  []ecs.Handle
	Target world.Pos
}

// SetBuild replaces a city's build task.
type SetBuild struct {
	City ecs.Handle
	Kind world.BuildKind
	ID   string
}

// SetResearch picks the tech being researched.
type SetResearch struct {
	Tech string
}

// SetEconomy sets the percentage of commerce converted to gold.
type SetEconomy struct {
	TaxRate int
}

// Action is a unit action kind.
type Action uint8

const (
	ActionFortify Action = iota + 1
	ActionSkip
	ActionFoundCity
	ActionWorkerTask
	ActionBoard
)

func (a Action) String() string {
	switch a {
	case ActionFortify:
		return "fortify"
	case ActionSkip:
		return "skip"
	case ActionFoundCity:
		return "found_city"
	case ActionWorkerTask:
		return "worker_task"
	case ActionBoard:
		return "board"
	default:
		return "unknown"
	}
}

// ParseAction maps an action name to its kind, 0 if unknown.
func ParseAction(name string) Action {
	for a := ActionFortify; a <= ActionBoard; a++ {
		if a.String() == name {
			return a
		}
	}
	return 0
}

// UnitAction runs a unit ability.
type UnitAction struct {
	Unit        ecs.Handle
	Action      Action
	Improvement string     // ActionWorkerTask
	Transport   ecs.Handle // ActionBoard
	Name        string     // ActionFoundCity, "" for the next civ name
}

// Diplomacy declares war on or makes peace with another player.
type Diplomacy struct {
	Other ecs.Handle
	War   bool
}

// SetWorkedTiles overrides the tiles a city works.
type SetWorkedTiles struct {
	City  ecs.Handle
	Tiles []world.Pos
}
