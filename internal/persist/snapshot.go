package persist

import (
	"fmt"
	"sort"

	"github.com/civforge/server/internal/core/ecs"
	"github.com/civforge/server/internal/data"
	"github.com/civforge/server/internal/world"
)

// Serialized IDs are dense per entity kind and start at 1; 0 means none.
// They are assigned in store iteration order at save time and mapped to
// fresh handles on load, so they never collide with live handles.

type posDoc struct {
	X int `bson:"x"`
	Y int `bson:"y"`
}

type cultureDoc struct {
	Player uint32 `bson:"p"`
	Amount int    `bson:"a"`
}

type slotDoc struct {
	Slot   int    `bson:"slot"`
	Player uint32 `bson:"player"`
	Human  bool   `bson:"human"`
	Civ    string `bson:"civ"`
	Name   string `bson:"name"`
}

type playerDoc struct {
	ID          uint32   `bson:"id"`
	Name        string   `bson:"name"`
	Civ         string   `bson:"civ"`
	Human       bool     `bson:"human"`
	AI          string   `bson:"ai"`
	Slot        int      `bson:"slot"`
	Capital     uint32   `bson:"capital"`
	Cities      []uint32 `bson:"cities"`
	Visibility  []byte   `bson:"visibility"`
	Techs       []string `bson:"techs"`
	Research    string   `bson:"research"`
	Progress    int      `bson:"progress"`
	AtWar       []uint32 `bson:"at_war"`
	Gold        int      `bson:"gold"`
	TaxRate     int      `bson:"tax_rate"`
	Revenue     int      `bson:"revenue"`
	Expenses    int      `bson:"expenses"`
	Science     int      `bson:"science"`
	Score       int      `bson:"score"`
	CityNameIdx int      `bson:"city_name_idx"`
	Defeated    bool     `bson:"defeated"`
}

type buildDoc struct {
	Kind     int    `bson:"kind"`
	ID       string `bson:"id"`
	Cost     int    `bson:"cost"`
	Progress int    `bson:"progress"`
}

type cityDoc struct {
	ID         uint32       `bson:"id"`
	Name       string       `bson:"name"`
	Pos        posDoc       `bson:"pos"`
	Owner      uint32       `bson:"owner"`
	Founder    uint32       `bson:"founder"`
	Founded    int          `bson:"founded"`
	Population int          `bson:"population"`
	Food       int          `bson:"food"`
	Build      *buildDoc    `bson:"build,omitempty"`
	Buildings  []string     `bson:"buildings"`
	Worked     []posDoc     `bson:"worked"`
	Manual     bool         `bson:"manual"`
	Culture    []cultureDoc `bson:"culture"`
	Resources  []string     `bson:"resources"`
	Yield      [3]int       `bson:"yield"`
	Happy      int          `bson:"happy"`
	Unhappy    int          `bson:"unhappy"`
	Health     float64      `bson:"health"`
}

type unitDoc struct {
	ID         uint32   `bson:"id"`
	Kind       string   `bson:"kind"`
	Owner      uint32   `bson:"owner"`
	Pos        posDoc   `bson:"pos"`
	Health     float64  `bson:"health"`
	Moves      int      `bson:"moves"`
	Fortified  bool     `bson:"fortified"`
	Skipping   bool     `bson:"skipping"`
	Path       []posDoc `bson:"path"`
	Carrier    uint32   `bson:"carrier"`
	Capability string   `bson:"capability"`
	Task       string   `bson:"task,omitempty"`
	TaskTurns  int      `bson:"task_turns,omitempty"`
	Capacity   int      `bson:"capacity,omitempty"`
	Cargo      []uint32 `bson:"cargo,omitempty"`
}

type tileDoc struct {
	Terrain      int          `bson:"t"`
	Forested     bool         `bson:"f,omitempty"`
	Hilled       bool         `bson:"h,omitempty"`
	Resource     string       `bson:"r,omitempty"`
	Improvements []string     `bson:"i,omitempty"`
	Culture      []cultureDoc `bson:"c,omitempty"`
	Owner        uint32       `bson:"o,omitempty"`
	WorkedBy     uint32       `bson:"w,omitempty"`
	Influence    []uint32     `bson:"n,omitempty"`
}

type routeDoc struct {
	Tiles []posDoc `bson:"tiles"`
}

type snapshot struct {
	Turn       int         `bson:"turn"`
	Era        int         `bson:"era"`
	Width      int         `bson:"width"`
	Height     int         `bson:"height"`
	MapSeed    int64       `bson:"map_seed"`
	Generators []string    `bson:"generators"`
	Me         uint32      `bson:"me"`
	Slots      []slotDoc   `bson:"slots"`
	Players    []playerDoc `bson:"players"`
	Cities     []cityDoc   `bson:"cities"`
	Units      []unitDoc   `bson:"units"`
	Tiles      []tileDoc   `bson:"tiles"`
	Routes     []routeDoc  `bson:"routes"`
}

// idTable assigns serialized IDs to live handles at save time.
type idTable map[ecs.Handle]uint32

func (t idTable) of(h ecs.Handle) uint32 {
	if h.IsNil() {
		return 0
	}
	return t[h]
}

func (t idTable) list(hs []ecs.Handle) []uint32 {
	out := make([]uint32, 0, len(hs))
	for _, h := range hs {
		if id := t.of(h); id != 0 {
			out = append(out, id)
		}
	}
	return out
}

func assignIDs[T any](s *ecs.Store[T]) idTable {
	t := make(idTable, s.Len())
	var next uint32
	for h := range s.All() {
		next++
		t[h] = next
	}
	return t
}

func toPosDoc(p world.Pos) posDoc { return posDoc{p.X, p.Y} }
func (p posDoc) pos() world.Pos  { return world.Pos{X: p.X, Y: p.Y} }

func posDocs(ps []world.Pos) []posDoc {
	out := make([]posDoc, len(ps))
	for i, p := range ps {
		out[i] = toPosDoc(p)
	}
	return out
}

func cultureDocs(c *world.Culture, players idTable) []cultureDoc {
	entries := c.Entries()
	out := make([]cultureDoc, 0, len(entries))
	for _, e := range entries {
		out = append(out, cultureDoc{Player: players.of(e.Player), Amount: e.Amount})
	}
	return out
}

func takeSnapshot(s *world.State) *snapshot {
	players := assignIDs(s.Players)
	cities := assignIDs(s.Cities)
	units := assignIDs(s.Units)

	snap := &snapshot{
		Turn:       s.Turn,
		Era:        s.Era,
		Width:      s.Grid.Width,
		Height:     s.Grid.Height,
		MapSeed:    s.MapSeed,
		Generators: []string{s.Generators[0], s.Generators[1]},
		Me:         players.of(s.Me),
	}
	for _, ls := range s.Slots {
		snap.Slots = append(snap.Slots, slotDoc{
			Slot: ls.Slot, Player: players.of(ls.Player), Human: ls.Human, Civ: ls.Civ, Name: ls.Name,
		})
	}

	for h, p := range s.Players.All() {
		d := playerDoc{
			ID:          players[h],
			Name:        p.Name,
			Civ:         p.Civ,
			Human:       p.Human,
			AI:          p.AI,
			Slot:        p.Slot,
			Capital:     cities.of(p.Capital),
			Cities:      cities.list(p.Cities),
			Visibility:  make([]byte, len(p.Visibility)),
			Research:    p.Research.Tech,
			Progress:    p.Research.Progress,
			Gold:        p.Gold,
			TaxRate:     p.TaxRate,
			Revenue:     p.Revenue,
			Expenses:    p.Expenses,
			Science:     p.Science,
			Score:       p.Score,
			CityNameIdx: p.CityNameIdx,
			Defeated:    p.Defeated,
		}
		for i, v := range p.Visibility {
			d.Visibility[i] = byte(v)
		}
		for id, known := range p.Techs {
			if known {
				d.Techs = append(d.Techs, id)
			}
		}
		sort.Strings(d.Techs)
		var wars []ecs.Handle
		for o, war := range p.AtWar {
			if war {
				wars = append(wars, o)
			}
		}
		d.AtWar = players.list(wars)
		sort.Slice(d.AtWar, func(i, j int) bool { return d.AtWar[i] < d.AtWar[j] })
		snap.Players = append(snap.Players, d)
	}

	for h, c := range s.Cities.All() {
		d := cityDoc{
			ID:         cities[h],
			Name:       c.Name,
			Pos:        toPosDoc(c.Pos),
			Owner:      players.of(c.Owner),
			Founder:    players.of(c.Founder),
			Founded:    c.Founded,
			Population: c.Population,
			Food:       c.Food,
			Buildings:  c.Buildings,
			Worked:     posDocs(c.Worked),
			Manual:     c.Manual,
			Culture:    cultureDocs(&c.Culture, players),
			Resources:  c.Resources,
			Yield:      [3]int{c.Yield.Food, c.Yield.Production, c.Yield.Commerce},
			Happy:      c.Happy,
			Unhappy:    c.Unhappy,
			Health:     c.Health,
		}
		if b := c.Build; b != nil {
			d.Build = &buildDoc{Kind: int(b.Kind), ID: b.ID, Cost: b.Cost, Progress: b.Progress}
		}
		snap.Cities = append(snap.Cities, d)
	}

	for h, u := range s.Units.All() {
		d := unitDoc{
			ID:         units[h],
			Kind:       u.Kind,
			Owner:      players.of(u.Owner),
			Pos:        toPosDoc(u.Pos),
			Health:     u.Health,
			Moves:      u.Moves,
			Fortified:  u.Fortified,
			Skipping:   u.Skipping,
			Path:       posDocs(u.Path.Points),
			Carrier:    units.of(u.Carrier),
			Capability: world.CapabilityName(u.Ability),
		}
		switch c := u.Ability.(type) {
		case *world.Worker:
			if c.Task != nil {
				d.Task = c.Task.Improvement
				d.TaskTurns = c.Task.TurnsLeft
			}
		case *world.Cargo:
			d.Capacity = c.Capacity
			d.Cargo = units.list(c.Units)
		}
		snap.Units = append(snap.Units, d)
	}

	snap.Tiles = make([]tileDoc, len(s.Grid.Tiles))
	for i := range s.Grid.Tiles {
		t := &s.Grid.Tiles[i]
		snap.Tiles[i] = tileDoc{
			Terrain:      int(t.Terrain),
			Forested:     t.Forested,
			Hilled:       t.Hilled,
			Resource:     t.Resource,
			Improvements: t.Improvements,
			Culture:      cultureDocs(&t.Culture, players),
			Owner:        players.of(t.Owner),
			WorkedBy:     cities.of(t.WorkedBy),
			Influence:    cities.list(t.Influence),
		}
	}

	for _, r := range s.Routes.All() {
		tiles := make([]world.Pos, 0, len(r.Tiles))
		for p := range r.Tiles {
			tiles = append(tiles, p)
		}
		sort.Slice(tiles, func(i, j int) bool {
			return s.Grid.Index(tiles[i]) < s.Grid.Index(tiles[j])
		})
		snap.Routes = append(snap.Routes, routeDoc{Tiles: posDocs(tiles)})
	}
	return snap
}

// idConverter maps serialized IDs back to the handles allocated on load.
type idConverter struct {
	players map[uint32]ecs.Handle
	cities  map[uint32]ecs.Handle
	units   map[uint32]ecs.Handle
}

func resolve(m map[uint32]ecs.Handle, kind string, id uint32) (ecs.Handle, error) {
	if id == 0 {
		return ecs.Nil, nil
	}
	h, ok := m[id]
	if !ok {
		return ecs.Nil, fmt.Errorf("%w: dangling %s id %d", ErrMalformedSave, kind, id)
	}
	return h, nil
}

func (c *idConverter) player(id uint32) (ecs.Handle, error) { return resolve(c.players, "player", id) }
func (c *idConverter) city(id uint32) (ecs.Handle, error)   { return resolve(c.cities, "city", id) }
func (c *idConverter) unit(id uint32) (ecs.Handle, error)   { return resolve(c.units, "unit", id) }

func (c *idConverter) list(fn func(uint32) (ecs.Handle, error), ids []uint32) ([]ecs.Handle, error) {
	out := make([]ecs.Handle, 0, len(ids))
	for _, id := range ids {
		h, err := fn(id)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func (c *idConverter) culture(docs []cultureDoc) (world.Culture, error) {
	var out world.Culture
	for _, d := range docs {
		p, err := c.player(d.Player)
		if err != nil {
			return out, err
		}
		if d.Amount < 0 {
			return out, fmt.Errorf("%w: negative culture", ErrMalformedSave)
		}
		out.Add(p, d.Amount)
	}
	return out, nil
}

// restore builds a fresh State from a snapshot. Nothing is returned unless
// every reference resolves.
func restore(snap *snapshot, cat *data.Catalog) (*world.State, error) {
	if snap.Width <= 0 || snap.Height <= 0 || snap.Width > world.MaxMapSide || snap.Height > world.MaxMapSide ||
		len(snap.Tiles) != snap.Width*snap.Height {
		return nil, fmt.Errorf("%w: grid %dx%d with %d tiles", ErrMalformedSave, snap.Width, snap.Height, len(snap.Tiles))
	}
	grid := world.NewGrid(snap.Width, snap.Height)
	s := world.NewState(cat, grid)
	s.Turn = snap.Turn
	s.Era = snap.Era
	s.MapSeed = snap.MapSeed
	copy(s.Generators[:], snap.Generators)

	conv := &idConverter{
		players: make(map[uint32]ecs.Handle, len(snap.Players)),
		cities:  make(map[uint32]ecs.Handle, len(snap.Cities)),
		units:   make(map[uint32]ecs.Handle, len(snap.Units)),
	}
	// Allocate every handle first so forward references resolve.
	for _, d := range snap.Players {
		conv.players[d.ID] = s.Players.Insert(world.Player{})
	}
	for _, d := range snap.Cities {
		conv.cities[d.ID] = s.Cities.Insert(world.City{})
	}
	for _, d := range snap.Units {
		conv.units[d.ID] = s.Units.Insert(world.Unit{})
	}
	if len(conv.players) != len(snap.Players) || len(conv.cities) != len(snap.Cities) || len(conv.units) != len(snap.Units) {
		return nil, fmt.Errorf("%w: duplicate entity ids", ErrMalformedSave)
	}

	if err := restorePlayers(s, snap, conv); err != nil {
		return nil, err
	}
	if err := restoreCities(s, snap, conv); err != nil {
		return nil, err
	}
	if err := restoreUnits(s, snap, conv); err != nil {
		return nil, err
	}
	if err := restoreTiles(s, snap, conv); err != nil {
		return nil, err
	}
	for _, rd := range snap.Routes {
		r := world.NewTradeRoute()
		for _, p := range rd.Tiles {
			if !grid.InBounds(p.pos()) {
				return nil, fmt.Errorf("%w: route tile %s", ErrMalformedSave, p.pos())
			}
			r.Tiles[p.pos()] = struct{}{}
		}
		s.Routes.Insert(r)
	}

	var err error
	if s.Me, err = conv.player(snap.Me); err != nil {
		return nil, err
	}
	for _, sd := range snap.Slots {
		p, err := conv.player(sd.Player)
		if err != nil {
			return nil, err
		}
		s.Slots = append(s.Slots, world.LobbySlot{Slot: sd.Slot, Player: p, Human: sd.Human, Civ: sd.Civ, Name: sd.Name})
	}
	s.Reindex()
	return s, nil
}

func restorePlayers(s *world.State, snap *snapshot, conv *idConverter) error {
	for _, d := range snap.Players {
		h := conv.players[d.ID]
		p := world.NewPlayer(d.Name, d.Civ, d.Human)
		p.AI = d.AI
		p.Slot = d.Slot
		var err error
		if p.Capital, err = conv.city(d.Capital); err != nil {
			return err
		}
		if p.Cities, err = conv.list(conv.city, d.Cities); err != nil {
			return err
		}
		if len(d.Visibility) != len(s.Grid.Tiles) {
			return fmt.Errorf("%w: player %q visibility size %d", ErrMalformedSave, d.Name, len(d.Visibility))
		}
		p.Visibility = make([]world.Visibility, len(d.Visibility))
		for i, v := range d.Visibility {
			if v > byte(world.Visible) {
				return fmt.Errorf("%w: visibility value %d", ErrMalformedSave, v)
			}
			p.Visibility[i] = world.Visibility(v)
		}
		for _, t := range d.Techs {
			p.Techs[t] = true
		}
		p.Research = world.Research{Tech: d.Research, Progress: d.Progress}
		wars, err := conv.list(conv.player, d.AtWar)
		if err != nil {
			return err
		}
		for _, o := range wars {
			p.AtWar[o] = true
		}
		p.Gold = d.Gold
		p.TaxRate = d.TaxRate
		p.Revenue = d.Revenue
		p.Expenses = d.Expenses
		p.Science = d.Science
		p.Score = d.Score
		p.CityNameIdx = d.CityNameIdx
		p.Defeated = d.Defeated
		dst, _ := s.Players.Get(h)
		*dst = p
	}
	return nil
}

func restoreCities(s *world.State, snap *snapshot, conv *idConverter) error {
	for _, d := range snap.Cities {
		h := conv.cities[d.ID]
		if !s.Grid.InBounds(d.Pos.pos()) {
			return fmt.Errorf("%w: city %q at %s", ErrMalformedSave, d.Name, d.Pos.pos())
		}
		c := world.City{
			Name:       d.Name,
			Pos:        d.Pos.pos(),
			Founded:    d.Founded,
			Population: d.Population,
			Food:       d.Food,
			Buildings:  d.Buildings,
			Manual:     d.Manual,
			Resources:  d.Resources,
			Yield:      world.Yield{Food: d.Yield[0], Production: d.Yield[1], Commerce: d.Yield[2]},
			Happy:      d.Happy,
			Unhappy:    d.Unhappy,
			Health:     d.Health,
		}
		if d.Owner == 0 {
			return fmt.Errorf("%w: city %q has no owner", ErrMalformedSave, d.Name)
		}
		var err error
		if c.Owner, err = conv.player(d.Owner); err != nil {
			return err
		}
		if c.Founder, err = conv.player(d.Founder); err != nil {
			return err
		}
		if c.Culture, err = conv.culture(d.Culture); err != nil {
			return err
		}
		for _, p := range d.Worked {
			c.Worked = append(c.Worked, p.pos())
		}
		if b := d.Build; b != nil {
			c.Build = &world.BuildTask{Kind: world.BuildKind(b.Kind), ID: b.ID, Cost: b.Cost, Progress: b.Progress}
		}
		dst, _ := s.Cities.Get(h)
		*dst = c
	}
	return nil
}

func restoreUnits(s *world.State, snap *snapshot, conv *idConverter) error {
	for _, d := range snap.Units {
		h := conv.units[d.ID]
		if !s.Grid.InBounds(d.Pos.pos()) {
			return fmt.Errorf("%w: unit at %s", ErrMalformedSave, d.Pos.pos())
		}
		if d.Owner == 0 {
			return fmt.Errorf("%w: unit %d has no owner", ErrMalformedSave, d.ID)
		}
		if s.Catalog.Units.Get(d.Kind) == nil {
			return fmt.Errorf("%w: unknown unit kind %q", ErrMalformedSave, d.Kind)
		}
		u := world.Unit{
			Kind:      d.Kind,
			Pos:       d.Pos.pos(),
			Health:    d.Health,
			Moves:     d.Moves,
			Fortified: d.Fortified,
			Skipping:  d.Skipping,
		}
		var err error
		if u.Owner, err = conv.player(d.Owner); err != nil {
			return err
		}
		if u.Carrier, err = conv.unit(d.Carrier); err != nil {
			return err
		}
		for _, p := range d.Path {
			u.Path.Points = append(u.Path.Points, p.pos())
		}
		switch d.Capability {
		case "":
		case world.CapabilityName(world.FoundCity{}):
			u.Ability = world.FoundCity{}
		case world.CapabilityName(&world.Worker{}):
			w := &world.Worker{}
			if d.Task != "" {
				w.Task = &world.WorkerTask{Improvement: d.Task, TurnsLeft: d.TaskTurns}
			}
			u.Ability = w
		case world.CapabilityName(&world.Cargo{}):
			cargo, err := conv.list(conv.unit, d.Cargo)
			if err != nil {
				return err
			}
			u.Ability = &world.Cargo{Capacity: d.Capacity, Units: cargo}
		default:
			return fmt.Errorf("%w: capability %q", ErrMalformedSave, d.Capability)
		}
		dst, _ := s.Units.Get(h)
		*dst = u
	}
	return nil
}

func restoreTiles(s *world.State, snap *snapshot, conv *idConverter) error {
	for i, d := range snap.Tiles {
		if d.Terrain < 0 || d.Terrain > int(world.TerrainDesert) {
			return fmt.Errorf("%w: terrain %d", ErrMalformedSave, d.Terrain)
		}
		t := &s.Grid.Tiles[i]
		t.Terrain = world.Terrain(d.Terrain)
		t.Forested = d.Forested
		t.Hilled = d.Hilled
		t.Resource = d.Resource
		t.Improvements = d.Improvements
		var err error
		if t.Culture, err = conv.culture(d.Culture); err != nil {
			return err
		}
		if t.Owner, err = conv.player(d.Owner); err != nil {
			return err
		}
		if t.WorkedBy, err = conv.city(d.WorkedBy); err != nil {
			return err
		}
		if t.Influence, err = conv.list(conv.city, d.Influence); err != nil {
			return err
		}
	}
	return nil
}
