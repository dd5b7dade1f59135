package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// DefaultController is the Lua function driving AI players that name none.
const DefaultController = "run_player_ai"

// BuildOption is something a city may start producing.
type BuildOption struct {
	ID       string
	Cost     int
	Strength float64
	Founds   bool // the unit can found cities
	Worker   bool
}

// AICity is the AI's view of one of its cities.
type AICity struct {
	ID        uint64
	X, Y      int
	Pop       int
	Build     string // "" = idle
	Defenders int
	Units     []BuildOption
	Buildings []BuildOption
}

// AIUnit is the AI's view of one of its units.
type AIUnit struct {
	ID        uint64
	Kind      string
	X, Y      int
	Moves     int
	Strength  float64
	Health    float64
	Fortified bool
	HasPath   bool
	InCity    bool
	CanFound  bool
	SiteX     int // best nearby city site, -1 = none
	SiteY     int
	HomeX     int // nearest own city, -1 = none
	HomeY     int
	Worker    bool
	Busy      bool   // worker task in progress
	Suggest   string // improvement worth building here
}

// AIEnemy is a visible unit belonging to a player at war.
type AIEnemy struct {
	ID       uint64
	Owner    uint64
	X, Y     int
	Strength float64
}

// AIContext holds pre-packed data for one player's AI turn.
type AIContext struct {
	Controller string // Lua function, "" = DefaultController
	Player     uint64
	Turn       int
	Gold       int
	TaxRate    int
	Research   string
	Available  []string // techs whose prerequisites are met
	Settlers   int      // settlers alive or queued
	Cities     []AICity
	Units      []AIUnit
	Enemies    []AIEnemy
}

// AICommand is a single action returned by Lua AI.
type AICommand struct {
	Type        string // "set_research", "set_build", "set_tax", "move", "found_city", "worker_task", "fortify", "skip"
	Unit        uint64
	City        uint64
	X, Y        int
	Kind        string // "unit" or "building" for set_build
	ID          string // unit, building or tech id
	Improvement string
	TaxRate     int
}

// RunPlayerAI calls the player's Lua controller with ctx and returns a list
// of commands.
func (e *Engine) RunPlayerAI(ctx AIContext) []AICommand {
	name := ctx.Controller
	if name == "" {
		name = DefaultController
	}
	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		e.log.Warn("lua controller not found", zap.String("name", name))
		return nil
	}

	t := e.vm.NewTable()
	t.RawSetString("player", lua.LNumber(ctx.Player))
	t.RawSetString("turn", lua.LNumber(ctx.Turn))
	t.RawSetString("gold", lua.LNumber(ctx.Gold))
	t.RawSetString("tax_rate", lua.LNumber(ctx.TaxRate))
	t.RawSetString("research", lua.LString(ctx.Research))
	t.RawSetString("available", lStrings(e.vm, ctx.Available))
	t.RawSetString("settlers", lua.LNumber(ctx.Settlers))

	cities := e.vm.NewTable()
	for i, c := range ctx.Cities {
		row := e.vm.NewTable()
		row.RawSetString("id", lua.LNumber(c.ID))
		row.RawSetString("x", lua.LNumber(c.X))
		row.RawSetString("y", lua.LNumber(c.Y))
		row.RawSetString("pop", lua.LNumber(c.Pop))
		row.RawSetString("build", lua.LString(c.Build))
		row.RawSetString("defenders", lua.LNumber(c.Defenders))
		row.RawSetString("units", e.options(c.Units))
		row.RawSetString("buildings", e.options(c.Buildings))
		cities.RawSetInt(i+1, row)
	}
	t.RawSetString("cities", cities)

	units := e.vm.NewTable()
	for i, u := range ctx.Units {
		row := e.vm.NewTable()
		row.RawSetString("id", lua.LNumber(u.ID))
		row.RawSetString("kind", lua.LString(u.Kind))
		row.RawSetString("x", lua.LNumber(u.X))
		row.RawSetString("y", lua.LNumber(u.Y))
		row.RawSetString("moves", lua.LNumber(u.Moves))
		row.RawSetString("strength", lua.LNumber(u.Strength))
		row.RawSetString("health", lua.LNumber(u.Health))
		row.RawSetString("fortified", lua.LBool(u.Fortified))
		row.RawSetString("has_path", lua.LBool(u.HasPath))
		row.RawSetString("in_city", lua.LBool(u.InCity))
		row.RawSetString("can_found", lua.LBool(u.CanFound))
		row.RawSetString("site_x", lua.LNumber(u.SiteX))
		row.RawSetString("site_y", lua.LNumber(u.SiteY))
		row.RawSetString("home_x", lua.LNumber(u.HomeX))
		row.RawSetString("home_y", lua.LNumber(u.HomeY))
		row.RawSetString("worker", lua.LBool(u.Worker))
		row.RawSetString("busy", lua.LBool(u.Busy))
		row.RawSetString("suggest", lua.LString(u.Suggest))
		units.RawSetInt(i+1, row)
	}
	t.RawSetString("units", units)

	enemies := e.vm.NewTable()
	for i, en := range ctx.Enemies {
		row := e.vm.NewTable()
		row.RawSetString("id", lua.LNumber(en.ID))
		row.RawSetString("owner", lua.LNumber(en.Owner))
		row.RawSetString("x", lua.LNumber(en.X))
		row.RawSetString("y", lua.LNumber(en.Y))
		row.RawSetString("strength", lua.LNumber(en.Strength))
		enemies.RawSetInt(i+1, row)
	}
	t.RawSetString("enemies", enemies)

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua controller error", zap.String("name", name), zap.Error(err), zap.Uint64("player", ctx.Player))
		return nil
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		return nil
	}

	var cmds []AICommand
	rt.ForEach(func(_, v lua.LValue) {
		if row, ok := v.(*lua.LTable); ok {
			cmds = append(cmds, AICommand{
				Type:        lStr(row, "type"),
				Unit:        uint64(lua.LVAsNumber(row.RawGetString("unit"))),
				City:        uint64(lua.LVAsNumber(row.RawGetString("city"))),
				X:           lInt(row, "x"),
				Y:           lInt(row, "y"),
				Kind:        lStr(row, "kind"),
				ID:          lStr(row, "id"),
				Improvement: lStr(row, "improvement"),
				TaxRate:     lInt(row, "tax_rate"),
			})
		}
	})
	return cmds
}

func (e *Engine) options(opts []BuildOption) *lua.LTable {
	t := e.vm.NewTable()
	for i, o := range opts {
		row := e.vm.NewTable()
		row.RawSetString("id", lua.LString(o.ID))
		row.RawSetString("cost", lua.LNumber(o.Cost))
		row.RawSetString("strength", lua.LNumber(o.Strength))
		row.RawSetString("founds", lua.LBool(o.Founds))
		row.RawSetString("worker", lua.LBool(o.Worker))
		t.RawSetInt(i+1, row)
	}
	return t
}
