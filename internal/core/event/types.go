package event

import "github.com/civforge/server/internal/core/ecs"

// CombatResolved is broadcast once per finished engagement.
type CombatResolved struct {
	Attacker       ecs.Handle
	Defender       ecs.Handle
	AttackerOwner  ecs.Handle
	DefenderOwner  ecs.Handle
	AttackerWon    bool
	Rounds         int
	AttackerHealth float64
	DefenderHealth float64
	CollateralHits int
	X, Y           int
}

type CityFounded struct {
	City  ecs.Handle
	Owner ecs.Handle
	Name  string
}

type CityCaptured struct {
	City     ecs.Handle
	OldOwner ecs.Handle
	NewOwner ecs.Handle
}

type TechUnlocked struct {
	Player ecs.Handle
	Tech   string
}

type PlayerDefeated struct {
	Player ecs.Handle
}
