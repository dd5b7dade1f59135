package world

import "github.com/civforge/server/internal/core/ecs"

// Capability is a unit's special ability. Sealed: only the types in this
// file implement it.
type Capability interface {
	capability() string
}

// FoundCity lets a unit settle a new city, consuming the unit.
type FoundCity struct{}

// Worker builds tile improvements.
type Worker struct {
	Task *WorkerTask
}

// WorkerTask is an improvement under construction at the worker's tile.
type WorkerTask struct {
	Improvement string
	TurnsLeft   int
}

// Cargo carries land units across water.
type Cargo struct {
	Capacity int
	Units    []ecs.Handle
}

func (FoundCity) capability() string { return "found_city" }
func (*Worker) capability() string   { return "worker" }
func (*Cargo) capability() string    { return "cargo" }

// CapabilityName returns the catalog capability string, "" for nil.
func CapabilityName(c Capability) string {
	if c == nil {
		return ""
	}
	return c.capability()
}

// Unit is one military or civilian unit.
type Unit struct {
	Kind      string // catalog unit ID
	Owner     ecs.Handle
	Pos       Pos
	Health    float64 // 0..1
	Moves     int     // movement points left this turn
	Fortified bool
	Skipping  bool
	Path      Path
	Ability   Capability
	Carrier   ecs.Handle // transport this unit is aboard, Nil when not boarded
}

func (u *Unit) Alive() bool { return u.Health > 0 }

// AsWorker returns the unit's worker capability if it has one.
func (u *Unit) AsWorker() (*Worker, bool) {
	w, ok := u.Ability.(*Worker)
	return w, ok
}

func (u *Unit) AsCargo() (*Cargo, bool) {
	c, ok := u.Ability.(*Cargo)
	return c, ok
}

func (u *Unit) CanFoundCity() bool {
	_, ok := u.Ability.(FoundCity)
	return ok
}

// Path is a sequence of tiles to walk, excluding the start and including
// the target.
type Path struct {
	Points []Pos
}

func (p *Path) Len() int { return len(p.Points) }

func (p *Path) Empty() bool { return len(p.Points) == 0 }

// Next returns the next tile without consuming it.
func (p *Path) Next() (Pos, bool) {
	if len(p.Points) == 0 {
		return Pos{}, false
	}
	return p.Points[0], true
}

// PopNextPoint consumes and returns the next tile.
func (p *Path) PopNextPoint() (Pos, bool) {
	if len(p.Points) == 0 {
		return Pos{}, false
	}
	n := p.Points[0]
	p.Points = p.Points[1:]
	return n, true
}

// Destination returns the final tile. Panics on an empty path.
func (p *Path) Destination() Pos {
	if len(p.Points) == 0 {
		panic("world: Destination of empty path")
	}
	return p.Points[len(p.Points)-1]
}

// Stack is the set of one player's units on one tile.
type Stack struct {
	Owner ecs.Handle
	Pos   Pos
	Units []ecs.Handle
}

// TradeRoute is a connected component of trade-relevant tiles.
type TradeRoute struct {
	Tiles  map[Pos]struct{}
	Cities map[ecs.Handle]struct{}
}

func newTradeRoute() TradeRoute {
	return TradeRoute{
		Tiles:  make(map[Pos]struct{}),
		Cities: make(map[ecs.Handle]struct{}),
	}
}
