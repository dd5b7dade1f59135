package world

import "github.com/civforge/server/internal/core/ecs"

// Visibility is the tri-state fog of war value of a tile for one player.
type Visibility uint8

const (
	Hidden  Visibility = iota // never seen
	Fogged                    // seen before, not currently in sight
	Visible                   // in sight this turn
)

// Research tracks the tech currently being researched.
type Research struct {
	Tech     string
	Progress int
}

// Player is one civilization.
// Accessed only from the game loop goroutine, no locks.
type Player struct {
	Name    string // username
	Civ     string // catalog civilization ID
	Human   bool
	AI      string // Lua controller function, "" for none
	Slot    int    // lobby slot index
	Capital ecs.Handle
	Cities  []ecs.Handle

	Visibility []Visibility // one entry per grid tile
	Techs      map[string]bool
	Research   Research
	AtWar      map[ecs.Handle]bool

	Gold     int
	TaxRate  int // percent of commerce converted to gold, rest to science
	Revenue  int // last turn gold income
	Expenses int // last turn upkeep
	Science  int // last turn science output
	Score    int

	CityNameIdx int
	Defeated    bool
}

func NewPlayer(name, civ string, human bool) Player {
	return Player{
		Name:    name,
		Civ:     civ,
		Human:   human,
		Techs:   make(map[string]bool),
		AtWar:   make(map[ecs.Handle]bool),
		TaxRate: 50,
	}
}

func (p *Player) HasTech(id string) bool {
	return id == "" || p.Techs[id]
}

func (p *Player) AtWarWith(other ecs.Handle) bool {
	return p.AtWar[other]
}

// SeenAt returns the player's visibility of tile i.
func (p *Player) SeenAt(i int) Visibility {
	if i < 0 || i >= len(p.Visibility) {
		return Hidden
	}
	return p.Visibility[i]
}

func (p *Player) removeCity(city ecs.Handle) {
	for i, c := range p.Cities {
		if c == city {
			p.Cities = append(p.Cities[:i], p.Cities[i+1:]...)
			break
		}
	}
	if p.Capital == city {
		p.Capital = ecs.Nil
		if len(p.Cities) > 0 {
			p.Capital = p.Cities[0]
		}
	}
}
