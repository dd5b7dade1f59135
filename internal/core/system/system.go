package system

// Phase defines execution ordering within a single turn.
type Phase int

const (
	PhaseUnits   Phase = iota // 0: unit upkeep (moves, healing, capability tasks)
	PhaseTrade                // 1: trade network resource propagation
	PhaseCities               // 2: growth, production, happiness
	PhasePlayers              // 3: economy, research, AI turns
	PhaseCulture              // 4: culture propagation, tile ownership
	PhaseCleanup              // 5: drain deferred removals
)

func (p Phase) String() string {
	switch p {
	case PhaseUnits:
		return "units"
	case PhaseTrade:
		return "trade"
	case PhaseCities:
		return "cities"
	case PhasePlayers:
		return "players"
	case PhaseCulture:
		return "culture"
	case PhaseCleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}

// System is the interface every turn system implements.
type System interface {
	Phase() Phase
	Update(turn int)
}
