package world

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/civforge/server/internal/core/ecs"
	"github.com/civforge/server/internal/core/event"
	"github.com/civforge/server/internal/data"
)

var (
	ErrUnknownKind  = errors.New("unknown catalog id")
	ErrOccupied     = errors.New("tile already has a city")
	ErrTooClose     = errors.New("too close to another city")
	ErrNotLand      = errors.New("tile is not land")
	ErrNoMoves      = errors.New("no movement left")
	ErrNotAdjacent  = errors.New("tile not adjacent")
	ErrImpassable   = errors.New("tile impassable for unit")
	ErrEnemyPresent = errors.New("enemy units on tile")
	ErrCarrierFull  = errors.New("transport is full")
	ErrNotACarrier  = errors.New("unit cannot carry cargo")
	ErrWrongOwner   = errors.New("entity owned by another player")
	ErrNoCapability = errors.New("unit lacks capability")
)

const (
	// MinCityDistance is the minimum Chebyshev distance between two cities.
	MinCityDistance  = 2
	startingCityName = "Capital"
)

// LobbySlot maps a lobby seat to the player occupying it.
type LobbySlot struct {
	Slot   int
	Player ecs.Handle
	Human  bool
	Civ    string
	Name   string
}

type stackKey struct {
	owner ecs.Handle
	pos   Pos
}

// State owns every entity of one game instance.
// Accessed only from the simulation goroutine, no locks.
type State struct {
	Catalog *data.Catalog
	Grid    *Grid

	Players *ecs.Store[Player]
	Cities  *ecs.Store[City]
	Units   *ecs.Store[Unit]
	Stacks  *ecs.Store[Stack]
	Routes  *ecs.Store[TradeRoute]

	Turn       int
	Era        int
	Me         ecs.Handle // the human-controlled player
	Slots      []LobbySlot
	MapSeed    int64
	Generators [2]string // terrain and resource generator names

	stacks      map[stackKey]ecs.Handle
	stacksByPos map[Pos][]ecs.Handle
	cityAt      map[Pos]ecs.Handle
	routeAt     map[Pos]ecs.Handle
	kills       *ecs.DeferredQueue
}

func NewState(cat *data.Catalog, grid *Grid) *State {
	return &State{
		Catalog:     cat,
		Grid:        grid,
		Players:     ecs.NewStore[Player](),
		Cities:      ecs.NewStore[City](),
		Units:       ecs.NewStore[Unit](),
		Stacks:      ecs.NewStore[Stack](),
		Routes:      ecs.NewStore[TradeRoute](),
		stacks:      make(map[stackKey]ecs.Handle),
		stacksByPos: make(map[Pos][]ecs.Handle),
		cityAt:      make(map[Pos]ecs.Handle),
		routeAt:     make(map[Pos]ecs.Handle),
		kills:       ecs.NewDeferredQueue(),
	}
}

// ---------- Players ----------

// AddPlayer inserts a player with a fully hidden visibility map.
func (s *State) AddPlayer(ctx *Context, p Player) ecs.Handle {
	if len(p.Visibility) != len(s.Grid.Tiles) {
		p.Visibility = make([]Visibility, len(s.Grid.Tiles))
	}
	if p.Techs == nil {
		p.Techs = make(map[string]bool)
	}
	if p.AtWar == nil {
		p.AtWar = make(map[ecs.Handle]bool)
	}
	h := s.Players.Insert(p)
	ctx.Dirty.Player(h)
	return h
}

// SetWar updates both sides of a war relation.
func (s *State) SetWar(ctx *Context, a, b ecs.Handle, war bool) error {
	if a == b {
		return fmt.Errorf("player cannot be at war with itself")
	}
	pa, err := s.Players.Lookup(a)
	if err != nil {
		return err
	}
	pb, err := s.Players.Lookup(b)
	if err != nil {
		return err
	}
	if war {
		pa.AtWar[b] = true
		pb.AtWar[a] = true
	} else {
		delete(pa.AtWar, b)
		delete(pb.AtWar, a)
	}
	ctx.Dirty.Player(a)
	ctx.Dirty.Player(b)
	return nil
}

// AtWar reports whether two players are at war. Unowned sides never are.
func (s *State) AtWar(a, b ecs.Handle) bool {
	p, ok := s.Players.Get(a)
	if !ok {
		return false
	}
	return p.AtWarWith(b)
}

// ---------- Units ----------

// CreateUnit spawns a unit of the given catalog kind at pos.
func (s *State) CreateUnit(ctx *Context, owner ecs.Handle, kind string, pos Pos) (ecs.Handle, error) {
	uk := s.Catalog.Units.Get(kind)
	if uk == nil {
		return ecs.Nil, fmt.Errorf("%w: unit %q", ErrUnknownKind, kind)
	}
	if !s.Players.Contains(owner) {
		return ecs.Nil, ecs.ErrInvalidHandle
	}
	if _, err := s.Grid.Lookup(pos); err != nil {
		return ecs.Nil, err
	}
	u := Unit{
		Kind:    kind,
		Owner:   owner,
		Pos:     pos,
		Health:  1,
		Moves:   uk.Moves,
		Ability: newCapability(uk),
	}
	h := s.Units.Insert(u)
	s.stackAdd(owner, pos, h)
	ctx.Dirty.Unit(h)
	s.RevealAround(ctx, owner, pos, uk.Sight)
	return h, nil
}

func newCapability(uk *data.UnitKind) Capability {
	switch uk.Capability {
	case data.CapFoundCity:
		return FoundCity{}
	case data.CapBuildImprovement:
		return &Worker{}
	case data.CapCarryCargo:
		return &Cargo{Capacity: uk.CargoCapacity}
	default:
		return nil
	}
}

// KillUnit schedules a unit for removal at the next drain. Cargo aboard a
// transport dies with it. The unit stays in the store until then.
func (s *State) KillUnit(ctx *Context, h ecs.Handle) {
	u, ok := s.Units.Get(h)
	if !ok || s.kills.Pending(h) {
		return
	}
	u.Health = 0
	s.kills.Push(h)
	if c, ok := u.AsCargo(); ok {
		for _, passenger := range c.Units {
			s.KillUnit(ctx, passenger)
		}
	}
	ctx.Dirty.Unit(h)
}

// KillPending reports whether h is queued for removal.
func (s *State) KillPending(h ecs.Handle) bool { return s.kills.Pending(h) }

// DrainKills erases every unit queued by KillUnit. Must only be called while
// no phase is iterating the unit store.
func (s *State) DrainKills(ctx *Context) {
	if s.kills.Len() == 0 {
		return
	}
	owners := make(map[ecs.Handle]struct{})
	s.kills.Drain(func(h ecs.Handle) {
		u, ok := s.Units.Get(h)
		if !ok {
			return
		}
		if !u.Carrier.IsNil() {
			if t, ok := s.Units.Get(u.Carrier); ok {
				if c, ok := t.AsCargo(); ok {
					c.Units = removeHandle(c.Units, h)
				}
			}
		}
		s.stackRemove(u.Owner, u.Pos, h)
		owners[u.Owner] = struct{}{}
		s.Units.Erase(h)
		ctx.Dirty.UnitRemoved(h)
	})
	for owner := range owners {
		s.RecomputeVisibility(ctx, owner)
		s.checkDefeated(ctx, owner)
	}
}

// relocate moves a unit without rule checks, keeping stacks consistent.
func (s *State) relocate(ctx *Context, h ecs.Handle, to Pos) {
	u, ok := s.Units.Get(h)
	if !ok || u.Pos == to {
		return
	}
	from := u.Pos
	u.Pos = to
	s.OnUnitMoved(h, u.Owner, from, to)
	ctx.Dirty.Unit(h)
	if c, ok := u.AsCargo(); ok {
		for _, passenger := range c.Units {
			s.relocate(ctx, passenger, to)
		}
	}
}

// UnitsOf returns the live units owned by player.
func (s *State) UnitsOf(player ecs.Handle) []ecs.Handle {
	var out []ecs.Handle
	for h, u := range s.Units.All() {
		if u.Owner == player {
			out = append(out, h)
		}
	}
	return out
}

// ---------- Stacks ----------

// OnUnitMoved moves a unit from the (owner, from) stack to the (owner, to)
// stack, deleting the old stack once empty and creating the new one lazily.
func (s *State) OnUnitMoved(unit, owner ecs.Handle, from, to Pos) {
	s.stackRemove(owner, from, unit)
	s.stackAdd(owner, to, unit)
}

// StacksAt returns the stacks on a tile, empty when unoccupied.
func (s *State) StacksAt(p Pos) []ecs.Handle {
	return s.stacksByPos[p]
}

// StackFor returns the owner's stack at p, if any.
func (s *State) StackFor(owner ecs.Handle, p Pos) (ecs.Handle, bool) {
	h, ok := s.stacks[stackKey{owner, p}]
	return h, ok
}

// UnitsAt returns every unit on a tile across all owners.
func (s *State) UnitsAt(p Pos) []ecs.Handle {
	var out []ecs.Handle
	for _, sh := range s.stacksByPos[p] {
		if st, ok := s.Stacks.Get(sh); ok {
			out = append(out, st.Units...)
		}
	}
	return out
}

// EnemyUnitsAt reports whether a player at war with owner has living units on p.
func (s *State) EnemyUnitsAt(owner ecs.Handle, p Pos) []ecs.Handle {
	var out []ecs.Handle
	for _, sh := range s.stacksByPos[p] {
		st, ok := s.Stacks.Get(sh)
		if !ok || st.Owner == owner {
			continue
		}
		for _, uh := range st.Units {
			if u, ok := s.Units.Get(uh); ok && u.Alive() && !s.kills.Pending(uh) {
				out = append(out, uh)
			}
		}
	}
	return out
}

func (s *State) stackAdd(owner ecs.Handle, p Pos, unit ecs.Handle) {
	key := stackKey{owner, p}
	sh, ok := s.stacks[key]
	if !ok {
		sh = s.Stacks.Insert(Stack{Owner: owner, Pos: p})
		s.stacks[key] = sh
		s.stacksByPos[p] = append(s.stacksByPos[p], sh)
	}
	st, _ := s.Stacks.Get(sh)
	st.Units = append(st.Units, unit)
}

func (s *State) stackRemove(owner ecs.Handle, p Pos, unit ecs.Handle) {
	key := stackKey{owner, p}
	sh, ok := s.stacks[key]
	if !ok {
		return
	}
	st, _ := s.Stacks.Get(sh)
	st.Units = removeHandle(st.Units, unit)
	if len(st.Units) > 0 {
		return
	}
	s.Stacks.Erase(sh)
	delete(s.stacks, key)
	list := removeHandle(s.stacksByPos[p], sh)
	if len(list) == 0 {
		delete(s.stacksByPos, p)
	} else {
		s.stacksByPos[p] = list
	}
}

// ---------- Cities ----------

// CityAt returns the city on a tile.
func (s *State) CityAt(p Pos) (ecs.Handle, bool) {
	h, ok := s.cityAt[p]
	return h, ok
}

// CanFoundCity validates a city site.
func (s *State) CanFoundCity(p Pos) error {
	t, err := s.Grid.Lookup(p)
	if err != nil {
		return err
	}
	if !t.IsLand() {
		return ErrNotLand
	}
	if _, ok := s.cityAt[p]; ok {
		return ErrOccupied
	}
	for _, c := range s.Cities.All() {
		if Chebyshev(c.Pos, p) < MinCityDistance {
			return ErrTooClose
		}
	}
	return nil
}

// FoundCity creates a city at p for owner. The first city becomes capital.
func (s *State) FoundCity(ctx *Context, owner ecs.Handle, p Pos, name string) (ecs.Handle, error) {
	if err := s.CanFoundCity(p); err != nil {
		return ecs.Nil, err
	}
	pl, err := s.Players.Lookup(owner)
	if err != nil {
		return ecs.Nil, err
	}
	if name == "" {
		name = s.nextCityName(pl)
	}
	h := s.Cities.Insert(City{
		Name:       name,
		Pos:        p,
		Owner:      owner,
		Founder:    owner,
		Founded:    s.Turn,
		Population: 1,
		Health:     1,
	})
	pl.Cities = append(pl.Cities, h)
	if pl.Capital.IsNil() {
		pl.Capital = h
	}
	s.cityAt[p] = h
	s.AddTradeNode(ctx, p)
	s.AutoAssignTiles(h)
	s.PropagateCulture(ctx, h, 0)
	s.RevealAround(ctx, owner, p, 2)
	ctx.Dirty.City(h)
	ctx.Dirty.Player(owner)
	ctx.Dirty.Tile(p)
	event.Emit(ctx.Bus, event.CityFounded{City: h, Owner: owner, Name: name})
	return h, nil
}

func (s *State) nextCityName(pl *Player) string {
	civ := s.Catalog.Civs.Get(pl.Civ)
	if civ == nil || len(civ.CityNames) == 0 {
		pl.CityNameIdx++
		if pl.CityNameIdx == 1 {
			return startingCityName
		}
		return fmt.Sprintf("City %d", pl.CityNameIdx)
	}
	name := civ.CityNames[pl.CityNameIdx%len(civ.CityNames)]
	if n := pl.CityNameIdx / len(civ.CityNames); n > 0 {
		name = fmt.Sprintf("%s %d", name, n+1)
	}
	pl.CityNameIdx++
	return name
}

// CaptureCity transfers a city to a new owner.
func (s *State) CaptureCity(ctx *Context, city, newOwner ecs.Handle) error {
	c, err := s.Cities.Lookup(city)
	if err != nil {
		return err
	}
	np, err := s.Players.Lookup(newOwner)
	if err != nil {
		return err
	}
	old := c.Owner
	if old == newOwner {
		return nil
	}
	if op, ok := s.Players.Get(old); ok {
		op.removeCity(city)
		ctx.Dirty.Player(old)
	}
	c.Owner = newOwner
	c.Build = nil
	if c.Population > 1 {
		c.Population--
	}
	np.Cities = append(np.Cities, city)
	if np.Capital.IsNil() {
		np.Capital = city
	}
	s.RevealAround(ctx, newOwner, c.Pos, 2)
	ctx.Dirty.City(city)
	ctx.Dirty.Player(newOwner)
	event.Emit(ctx.Bus, event.CityCaptured{City: city, OldOwner: old, NewOwner: newOwner})
	ctx.Log.Info("city captured",
		zap.String("city", c.Name),
		zap.Stringer("from", old),
		zap.Stringer("to", newOwner))
	s.checkDefeated(ctx, old)
	return nil
}

// DestroyCity removes a city, its culture contribution and its trade node.
func (s *State) DestroyCity(ctx *Context, city ecs.Handle) {
	c, ok := s.Cities.Get(city)
	if !ok {
		return
	}
	owner := c.Owner
	pos := c.Pos
	s.RemoveCityInfluence(ctx, city)
	for _, p := range c.Worked {
		if t := s.Grid.At(p); t != nil && t.WorkedBy == city {
			t.WorkedBy = ecs.Nil
		}
	}
	if t := s.Grid.At(pos); t != nil {
		t.WorkedBy = ecs.Nil
	}
	if pl, ok := s.Players.Get(owner); ok {
		pl.removeCity(city)
		ctx.Dirty.Player(owner)
	}
	s.RemoveTradeNode(ctx, pos)
	delete(s.cityAt, pos)
	s.Cities.Erase(city)
	ctx.Dirty.CityRemoved(city)
	ctx.Dirty.Tile(pos)
	s.checkDefeated(ctx, owner)
}

// AutoAssignTiles picks the best unworked tiles around a city, one per
// population point, unless the player set them manually.
func (s *State) AutoAssignTiles(city ecs.Handle) {
	c, ok := s.Cities.Get(city)
	if !ok {
		return
	}
	if t := s.Grid.At(c.Pos); t != nil {
		t.WorkedBy = city
	}
	if c.Manual && len(c.Worked) <= c.Population {
		return
	}
	for _, p := range c.Worked {
		if t := s.Grid.At(p); t != nil && t.WorkedBy == city {
			t.WorkedBy = ecs.Nil
		}
	}
	c.Worked = c.Worked[:0]
	c.Manual = false
	cands := s.Grid.Within(c.Pos, 2)[1:]
	for len(c.Worked) < c.Population {
		best, bestScore := Pos{}, -1
		for _, p := range cands {
			t := s.Grid.At(p)
			if t.WorkedBy != ecs.Nil || (!t.Owner.IsNil() && t.Owner != c.Owner) {
				continue
			}
			y := s.TileYield(p)
			score := 3*y.Food + 2*y.Production + y.Commerce
			if score > bestScore {
				best, bestScore = p, score
			}
		}
		if bestScore < 0 {
			break
		}
		s.Grid.At(best).WorkedBy = city
		c.Worked = append(c.Worked, best)
	}
}

// SetWorkedTiles replaces a city's worked tiles with a manual selection.
func (s *State) SetWorkedTiles(ctx *Context, city ecs.Handle, tiles []Pos) error {
	c, err := s.Cities.Lookup(city)
	if err != nil {
		return err
	}
	if len(tiles) > c.Population {
		return fmt.Errorf("city %q can work %d tiles, got %d", c.Name, c.Population, len(tiles))
	}
	for _, p := range tiles {
		t, err := s.Grid.Lookup(p)
		if err != nil {
			return err
		}
		if RoundedDistance(c.Pos, p) > 2 || p == c.Pos {
			return fmt.Errorf("tile %s outside city radius", p)
		}
		if !t.WorkedBy.IsNil() && t.WorkedBy != city {
			return fmt.Errorf("tile %s already worked", p)
		}
		if !t.Owner.IsNil() && t.Owner != c.Owner {
			return fmt.Errorf("tile %s %w", p, ErrWrongOwner)
		}
	}
	for _, p := range c.Worked {
		if t := s.Grid.At(p); t != nil && t.WorkedBy == city {
			t.WorkedBy = ecs.Nil
		}
	}
	c.Worked = append(c.Worked[:0], tiles...)
	for _, p := range tiles {
		s.Grid.At(p).WorkedBy = city
	}
	c.Manual = true
	ctx.Dirty.City(city)
	return nil
}

// TileYield is the base yield of a tile from terrain, features, resource
// and improvements.
func (s *State) TileYield(p Pos) Yield {
	t := s.Grid.At(p)
	if t == nil {
		return Yield{}
	}
	var y Yield
	if ty := s.Catalog.Terrain.Get(t.Terrain.String()); ty != nil {
		y = Yield{ty.Food, ty.Production, ty.Gold}
	}
	if t.Hilled {
		if ty := s.Catalog.Terrain.Get("hills"); ty != nil {
			y = y.Add(Yield{ty.Food, ty.Production, ty.Gold})
		}
	}
	if t.Forested {
		if ty := s.Catalog.Terrain.Get("forest"); ty != nil {
			y = y.Add(Yield{ty.Food, ty.Production, ty.Gold})
		}
	}
	if t.Resource != "" {
		if r := s.Catalog.Resources.Get(t.Resource); r != nil {
			y = y.Add(Yield{r.Food, r.Production, r.Gold})
		}
	}
	for _, id := range t.Improvements {
		if imp := s.Catalog.Improvements.Get(id); imp != nil {
			y = y.Add(Yield{imp.Food, imp.Production, imp.Gold})
		}
	}
	if y.Food < 0 {
		y.Food = 0
	}
	if y.Production < 0 {
		y.Production = 0
	}
	return y
}

// checkDefeated marks a player with neither cities nor units as defeated.
func (s *State) checkDefeated(ctx *Context, player ecs.Handle) {
	pl, ok := s.Players.Get(player)
	if !ok || pl.Defeated || len(pl.Cities) > 0 {
		return
	}
	for _, u := range s.Units.All() {
		if u.Owner == player {
			return
		}
	}
	pl.Defeated = true
	ctx.Dirty.Player(player)
	event.Emit(ctx.Bus, event.PlayerDefeated{Player: player})
	ctx.Log.Info("player defeated", zap.String("name", pl.Name))
}

func removeHandle(list []ecs.Handle, h ecs.Handle) []ecs.Handle {
	for i, v := range list {
		if v == h {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
