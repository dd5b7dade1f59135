package combat

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/civforge/server/internal/core/ecs"
	"github.com/civforge/server/internal/world"
	"github.com/civforge/server/internal/world/worldtest"
)

type arena struct {
	s        *world.State
	ctx      *world.Context
	red, blu ecs.Handle
}

func newArena(t *testing.T) *arena {
	t.Helper()
	s, ctx := worldtest.New(6, 6)
	a := &arena{s: s, ctx: ctx}
	a.red = worldtest.Player(s, ctx, "red", "rome")
	a.blu = worldtest.Player(s, ctx, "blue", "egypt")
	if err := s.SetWar(ctx, a.red, a.blu, true); err != nil {
		t.Fatal(err)
	}
	return a
}

func TestSimulateDeterministic(t *testing.T) {
	run := func() *Combat {
		a := newArena(t)
		att := worldtest.Unit(a.s, a.ctx, a.red, "horseman", world.Pos{X: 1, Y: 1})
		def := worldtest.Unit(a.s, a.ctx, a.blu, "archer", world.Pos{X: 2, Y: 1})
		c, err := New(a.s, att, def)
		if err != nil {
			t.Fatal(err)
		}
		c.Simulate(rand.New(rand.NewSource(42)))
		return c
	}
	first, second := run(), run()
	if len(first.Rounds) == 0 {
		t.Fatal("no rounds simulated")
	}
	if !reflect.DeepEqual(first.Rounds, second.Rounds) {
		t.Fatal("same seed produced different round sequences")
	}
	if first.AttackerWon != second.AttackerWon {
		t.Fatal("same seed produced different winners")
	}
	last := first.Rounds[len(first.Rounds)-1]
	if last.AttackerHealth > 0 && last.DefenderHealth > 0 {
		t.Fatal("combat ended with both sides alive")
	}
}

func TestZeroStrengthDecidesImmediately(t *testing.T) {
	a := newArena(t)
	att := worldtest.Unit(a.s, a.ctx, a.red, "warrior", world.Pos{X: 1, Y: 1})
	settler := worldtest.Unit(a.s, a.ctx, a.blu, "settler", world.Pos{X: 2, Y: 1})

	c, err := Resolve(a.ctx, a.s, att, settler)
	if err != nil {
		t.Fatal(err)
	}
	if !c.AttackerWon || len(c.Rounds) != 0 {
		t.Fatalf("won=%v rounds=%d, want immediate win", c.AttackerWon, len(c.Rounds))
	}
	if !a.s.KillPending(settler) {
		t.Fatal("defender not queued for removal")
	}
	a.s.DrainKills(a.ctx)
	u, _ := a.s.Units.Get(att)
	if u.Pos != (world.Pos{X: 2, Y: 1}) {
		t.Fatalf("attacker at %v, want to advance to (2,1)", u.Pos)
	}

	b := newArena(t)
	worker := worldtest.Unit(b.s, b.ctx, b.red, "worker", world.Pos{X: 1, Y: 1})
	def := worldtest.Unit(b.s, b.ctx, b.blu, "warrior", world.Pos{X: 2, Y: 1})
	c, err = Resolve(b.ctx, b.s, worker, def)
	if err != nil {
		t.Fatal(err)
	}
	if c.AttackerWon || c.Attacker.Health != 0 {
		t.Fatal("zero-strength attacker survived")
	}
}

func TestBonusesByRole(t *testing.T) {
	a := newArena(t)
	spear := worldtest.Unit(a.s, a.ctx, a.red, "spearman", world.Pos{X: 1, Y: 1})
	horse := worldtest.Unit(a.s, a.ctx, a.blu, "horseman", world.Pos{X: 2, Y: 1})
	archer := worldtest.Unit(a.s, a.ctx, a.blu, "archer", world.Pos{X: 2, Y: 2})

	c, _ := New(a.s, spear, horse)
	if c.Attacker.Percent != 100 {
		t.Fatalf("spearman vs mounted = %d%%, want 100", c.Attacker.Percent)
	}
	c, _ = New(a.s, horse, spear)
	if c.Defender.Percent != 100 {
		t.Fatalf("spearman defending vs mounted = %d%%, want 100", c.Defender.Percent)
	}
	c, _ = New(a.s, spear, archer)
	if c.Defender.Percent != 25 {
		t.Fatalf("archer defending vs melee = %d%%, want 25", c.Defender.Percent)
	}
	c, _ = New(a.s, archer, spear)
	if c.Attacker.Percent != 0 {
		t.Fatalf("archer defense-only bonus applied on attack: %d%%", c.Attacker.Percent)
	}

	tile := a.s.Grid.MustAt(world.Pos{X: 2, Y: 1})
	tile.Hilled = true
	hu, _ := a.s.Units.Get(horse)
	hu.Fortified = true
	c, _ = New(a.s, spear, horse)
	if c.Defender.Percent != 50 {
		t.Fatalf("hills+fortified = %d%%, want 50", c.Defender.Percent)
	}
	if want := 4 * 1.5; c.Defender.Strength != want {
		t.Fatalf("defender strength = %v, want %v", c.Defender.Strength, want)
	}
}

func TestCollateralDamage(t *testing.T) {
	a := newArena(t)
	cat := worldtest.Unit(a.s, a.ctx, a.red, "catapult", world.Pos{X: 1, Y: 1})
	target := world.Pos{X: 2, Y: 1}
	var stack []ecs.Handle
	for i := 0; i < 6; i++ {
		stack = append(stack, worldtest.Unit(a.s, a.ctx, a.blu, "warrior", target))
	}
	def, ok := BestDefender(a.s, cat, target)
	if !ok {
		t.Fatal("no defender found")
	}
	c, err := Resolve(a.ctx, a.s, cat, def)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Collateral) != 4 {
		t.Fatalf("collateral hits = %d, want 4", len(c.Collateral))
	}
	hit := 0
	for _, h := range stack {
		if h == def {
			continue
		}
		u, _ := a.s.Units.Get(h)
		if u.Health < 1 {
			hit++
			if u.Health < collateralHealthFloor {
				t.Fatalf("collateral pushed health to %v", u.Health)
			}
		}
	}
	if hit != 4 {
		t.Fatalf("damaged bystanders = %d, want 4", hit)
	}
	if c.AttackerWon {
		if _, ok := a.s.Units.Get(cat); !ok {
			t.Fatal("winner vanished")
		}
		u, _ := a.s.Units.Get(cat)
		if u.Pos != (world.Pos{X: 1, Y: 1}) {
			t.Fatal("attacker advanced into an occupied tile")
		}
	}
}

func TestCaptureUndefendedCity(t *testing.T) {
	a := newArena(t)
	city := worldtest.City(a.s, a.ctx, a.blu, world.Pos{X: 3, Y: 3})
	guard := worldtest.Unit(a.s, a.ctx, a.blu, "settler", world.Pos{X: 3, Y: 3})
	att := worldtest.Unit(a.s, a.ctx, a.red, "warrior", world.Pos{X: 2, Y: 3})

	if _, err := Resolve(a.ctx, a.s, att, guard); err != nil {
		t.Fatal(err)
	}
	a.s.DrainKills(a.ctx)
	c, _ := a.s.Cities.Get(city)
	if c.Owner != a.red {
		t.Fatalf("city owner = %v, want attacker %v", c.Owner, a.red)
	}
}
