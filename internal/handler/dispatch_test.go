package handler_test

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/civforge/server/internal/core/ecs"
	"github.com/civforge/server/internal/handler"
	"github.com/civforge/server/internal/net/packet"
	"github.com/civforge/server/internal/world"
	"github.com/civforge/server/internal/world/worldtest"
)

func setup(t *testing.T) (*handler.Dispatcher, *world.State, ecs.Handle, ecs.Handle) {
	t.Helper()
	s, ctx := worldtest.New(10, 10)
	a := worldtest.Player(s, ctx, "Alice", "rome")
	b := worldtest.Player(s, ctx, "Bob", "egypt")
	d := handler.NewDispatcher(&handler.Deps{State: s, Ctx: ctx, Log: zap.NewNop()})
	return d, s, a, b
}

func TestForeignUnitRejected(t *testing.T) {
	d, s, a, b := setup(t)
	u := worldtest.Unit(s, d.Deps().Ctx, b, "warrior", world.Pos{X: 5, Y: 5})

	cmds := []handler.Command{
		handler.MoveUnits{Units: []ecs.Handle{u}, Target: world.Pos{X: 6, Y: 5}},
		handler.UnitAction{Unit: u, Action: handler.ActionFortify},
		handler.ComputePath{Unit: u, Target: world.Pos{X: 6, Y: 5}},
	}
	for _, cmd := range cmds {
		if _, err := d.Execute(a, cmd); !errors.Is(err, handler.ErrRejected) {
			t.Errorf("%T: err = %v, want rejection", cmd, err)
		}
	}
	got, _ := s.Units.Get(u)
	if got.Pos != (world.Pos{X: 5, Y: 5}) || got.Fortified {
		t.Errorf("unit changed by rejected commands: %+v", got)
	}
}

func TestUnknownPlayerRejected(t *testing.T) {
	d, _, _, _ := setup(t)
	_, err := d.Execute(ecs.NewHandle(40, 1), handler.SetEconomy{TaxRate: 10})
	if !errors.Is(err, handler.ErrRejected) {
		t.Fatalf("err = %v, want rejection", err)
	}
}

func TestFoundCityAction(t *testing.T) {
	d, s, a, _ := setup(t)
	p := world.Pos{X: 4, Y: 4}
	settler := worldtest.Unit(s, d.Deps().Ctx, a, "settler", p)

	var res handler.Result
	var err error
	d.Enqueue(a, handler.UnitAction{Unit: settler, Action: handler.ActionFoundCity, Name: "Roma"},
		func(r handler.Result, e error) { res, err = r, e })
	if n := d.Drain(); n != 1 {
		t.Fatalf("drained %d commands", n)
	}
	if err != nil {
		t.Fatalf("found city: %v", err)
	}
	c, ok := s.Cities.Get(res.City)
	if !ok || c.Name != "Roma" || c.Pos != p {
		t.Fatalf("city = %+v", c)
	}
	if s.Units.Contains(settler) {
		t.Error("settler survived founding")
	}
	if h, ok := s.CityAt(p); !ok || h != res.City {
		t.Error("city not indexed at its tile")
	}
}

func TestWorkerTask(t *testing.T) {
	d, s, a, b := setup(t)
	ctx := d.Deps().Ctx
	w := worldtest.Unit(s, ctx, a, "worker", world.Pos{X: 2, Y: 2})

	if _, err := d.Execute(a, handler.UnitAction{Unit: w, Action: handler.ActionWorkerTask, Improvement: "farm"}); err != nil {
		t.Fatalf("farm: %v", err)
	}
	u, _ := s.Units.Get(w)
	wk, _ := u.AsWorker()
	if wk.Task == nil || wk.Task.Improvement != "farm" || wk.Task.TurnsLeft != 5 {
		t.Fatalf("task = %+v", wk.Task)
	}
	if u.Moves != 0 {
		t.Errorf("moves = %d, want 0", u.Moves)
	}

	worldtest.City(s, ctx, b, world.Pos{X: 8, Y: 8})
	enemyLand := worldtest.Unit(s, ctx, a, "worker", world.Pos{X: 8, Y: 7})
	tests := []struct {
		name string
		unit ecs.Handle
		imp  string
	}{
		{"unknown improvement", w, "canal"},
		{"foreign territory", enemyLand, "road"},
		{"not a worker", worldtest.Unit(s, ctx, a, "warrior", world.Pos{X: 1, Y: 1}), "road"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Execute(a, handler.UnitAction{Unit: tt.unit, Action: handler.ActionWorkerTask, Improvement: tt.imp})
			if !errors.Is(err, handler.ErrRejected) {
				t.Errorf("err = %v, want rejection", err)
			}
		})
	}
}

func TestSetEconomyRange(t *testing.T) {
	d, s, a, _ := setup(t)
	if _, err := d.Execute(a, handler.SetEconomy{TaxRate: 70}); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Execute(a, handler.SetEconomy{TaxRate: 101}); !errors.Is(err, handler.ErrRejected) {
		t.Errorf("err = %v, want rejection", err)
	}
	p, _ := s.Players.Get(a)
	if p.TaxRate != 70 {
		t.Errorf("tax = %d, want 70", p.TaxRate)
	}
}

func TestSetResearchPrereqs(t *testing.T) {
	d, s, a, _ := setup(t)
	if _, err := d.Execute(a, handler.SetResearch{Tech: "writing"}); !errors.Is(err, handler.ErrRejected) {
		t.Errorf("writing without pottery: err = %v", err)
	}
	if _, err := d.Execute(a, handler.SetResearch{Tech: "pottery"}); err != nil {
		t.Fatal(err)
	}
	p, _ := s.Players.Get(a)
	if p.Research.Tech != "pottery" {
		t.Errorf("research = %q", p.Research.Tech)
	}
}

func TestMoveOntoEnemyNeedsWar(t *testing.T) {
	d, s, a, b := setup(t)
	ctx := d.Deps().Ctx
	att := worldtest.Unit(s, ctx, a, "warrior", world.Pos{X: 3, Y: 3})
	worldtest.Unit(s, ctx, b, "warrior", world.Pos{X: 4, Y: 3})
	move := handler.MoveUnits{Units: []ecs.Handle{att}, Target: world.Pos{X: 4, Y: 3}}

	res, _ := d.Execute(a, move)
	if len(res.Combats) != 0 {
		t.Fatal("attacked without war")
	}
	if u, _ := s.Units.Get(att); u.Pos != (world.Pos{X: 3, Y: 3}) {
		t.Fatalf("attacker moved to %s", u.Pos)
	}

	if _, err := d.Execute(a, handler.Diplomacy{Other: b, War: true}); err != nil {
		t.Fatal(err)
	}
	res, err := d.Execute(a, move)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Combats) != 1 || !res.Combats[0].Finished {
		t.Fatalf("combats = %+v", res.Combats)
	}
}

func TestDecodeCommand(t *testing.T) {
	want := handler.MoveUnits{
		Units:  []ecs.Handle{ecs.NewHandle(3, 1), ecs.NewHandle(7, 2)},
		Target: world.Pos{X: 12, Y: 9},
	}
	data := handler.EncodeCommand(want)
	r := packet.NewReader(data)
	got, err := handler.DecodeCommand(r.Opcode(), r)
	if err != nil {
		t.Fatal(err)
	}
	mv, ok := got.(handler.MoveUnits)
	if !ok || len(mv.Units) != 2 || mv.Units[1] != want.Units[1] || mv.Target != want.Target {
		t.Fatalf("decoded %+v", got)
	}

	short := packet.NewReader(data[:len(data)-3])
	if _, err := handler.DecodeCommand(short.Opcode(), short); !errors.Is(err, packet.ErrShortPacket) {
		t.Errorf("short packet: err = %v", err)
	}
	if _, err := handler.DecodeCommand(packet.S_OPCODE_GLOBAL, packet.NewReader([]byte{packet.S_OPCODE_GLOBAL})); err == nil {
		t.Error("server opcode decoded as command")
	}
}

func TestBadActionRejected(t *testing.T) {
	d, s, a, _ := setup(t)
	u := worldtest.Unit(s, d.Deps().Ctx, a, "warrior", world.Pos{X: 1, Y: 1})
	_, err := d.Execute(a, handler.UnitAction{Unit: u, Action: handler.Action(99)})
	if !errors.Is(err, handler.ErrRejected) {
		t.Fatalf("err = %v", err)
	}
}
