package world_test

import (
	"errors"
	"testing"

	"github.com/civforge/server/internal/core/ecs"
	"github.com/civforge/server/internal/world"
	"github.com/civforge/server/internal/world/worldtest"
)

func TestStacksFollowUnits(t *testing.T) {
	s, ctx := worldtest.New(6, 6)
	p1 := worldtest.Player(s, ctx, "alice", "rome")
	p2 := worldtest.Player(s, ctx, "bob", "egypt")

	a := worldtest.Unit(s, ctx, p1, "warrior", world.Pos{X: 1, Y: 1})
	b := worldtest.Unit(s, ctx, p1, "warrior", world.Pos{X: 1, Y: 1})
	c := worldtest.Unit(s, ctx, p2, "warrior", world.Pos{X: 1, Y: 1})

	if got := len(s.StacksAt(world.Pos{X: 1, Y: 1})); got != 2 {
		t.Fatalf("stacks at (1,1) = %d, want 2", got)
	}
	if got := len(s.StacksAt(world.Pos{X: 4, Y: 4})); got != 0 {
		t.Fatalf("stacks at empty tile = %d, want 0", got)
	}
	if msg := worldtest.CheckStacks(s); msg != "" {
		t.Fatal(msg)
	}

	if err := s.MoveUnit(ctx, a, world.Pos{X: 2, Y: 1}); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, ok := s.StackFor(p1, world.Pos{X: 2, Y: 1}); !ok {
		t.Fatal("no stack created at destination")
	}
	if msg := worldtest.CheckStacks(s); msg != "" {
		t.Fatal(msg)
	}

	s.KillUnit(ctx, b)
	if !s.Units.Contains(b) {
		t.Fatal("kill erased the unit before drain")
	}
	s.DrainKills(ctx)
	if s.Units.Contains(b) {
		t.Fatal("unit still live after drain")
	}
	if _, ok := s.StackFor(p1, world.Pos{X: 1, Y: 1}); ok {
		t.Fatal("empty stack not deleted")
	}
	if _, ok := s.StackFor(p2, world.Pos{X: 1, Y: 1}); !ok {
		t.Fatal("other owner's stack was removed")
	}
	if msg := worldtest.CheckStacks(s); msg != "" {
		t.Fatal(msg)
	}
	_ = c
}

func TestMoveUnitRules(t *testing.T) {
	s, ctx := worldtest.New(5, 3)
	worldtest.Ocean(s, world.Pos{X: 3, Y: 0}, world.Pos{X: 3, Y: 1}, world.Pos{X: 3, Y: 2})
	p1 := worldtest.Player(s, ctx, "alice", "rome")
	u := worldtest.Unit(s, ctx, p1, "warrior", world.Pos{X: 2, Y: 1})

	tests := []struct {
		name string
		to   world.Pos
		want error
	}{
		{"off map", world.Pos{X: 2, Y: -1}, world.ErrOutOfBounds},
		{"not adjacent", world.Pos{X: 0, Y: 1}, world.ErrNotAdjacent},
		{"ocean without transport", world.Pos{X: 3, Y: 1}, world.ErrImpassable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.MoveUnit(ctx, u, tt.to); !errors.Is(err, tt.want) {
				t.Fatalf("MoveUnit(%v) = %v, want %v", tt.to, err, tt.want)
			}
		})
	}

	if err := s.MoveUnit(ctx, u, world.Pos{X: 1, Y: 1}); err != nil {
		t.Fatalf("move: %v", err)
	}
	if err := s.MoveUnit(ctx, u, world.Pos{X: 2, Y: 1}); !errors.Is(err, world.ErrNoMoves) {
		t.Fatalf("second move = %v, want ErrNoMoves", err)
	}
	if err := s.MoveUnit(ctx, ecs.NewHandle(99, 1), world.Pos{X: 2, Y: 1}); !errors.Is(err, ecs.ErrInvalidHandle) {
		t.Fatalf("stale handle = %v, want ErrInvalidHandle", err)
	}
}

func TestTransportCarriesCargo(t *testing.T) {
	s, ctx := worldtest.New(6, 3)
	worldtest.Ocean(s, world.Pos{X: 2, Y: 1}, world.Pos{X: 3, Y: 1}, world.Pos{X: 4, Y: 1})
	p1 := worldtest.Player(s, ctx, "alice", "rome")
	galley := worldtest.Unit(s, ctx, p1, "galley", world.Pos{X: 2, Y: 1})
	w := worldtest.Unit(s, ctx, p1, "warrior", world.Pos{X: 1, Y: 1})

	if err := s.MoveUnit(ctx, w, world.Pos{X: 2, Y: 1}); err != nil {
		t.Fatalf("boarding move: %v", err)
	}
	wu, _ := s.Units.Get(w)
	if wu.Carrier != galley {
		t.Fatalf("carrier = %v, want %v", wu.Carrier, galley)
	}
	if err := s.MoveUnit(ctx, galley, world.Pos{X: 3, Y: 1}); err != nil {
		t.Fatalf("galley move: %v", err)
	}
	wu, _ = s.Units.Get(w)
	if wu.Pos != (world.Pos{X: 3, Y: 1}) {
		t.Fatalf("cargo at %v, want (3,1)", wu.Pos)
	}
	if msg := worldtest.CheckStacks(s); msg != "" {
		t.Fatal(msg)
	}

	// A full transport next door refuses the warrior and leaves it aboard.
	full := worldtest.Unit(s, ctx, p1, "galley", world.Pos{X: 4, Y: 1})
	for _, p := range []world.Pos{{X: 4, Y: 0}, {X: 5, Y: 1}} {
		if err := s.BoardCargo(ctx, worldtest.Unit(s, ctx, p1, "warrior", p), full); err != nil {
			t.Fatalf("filling galley from %v: %v", p, err)
		}
	}
	moves := wu.Moves
	if err := s.BoardCargo(ctx, w, full); !errors.Is(err, world.ErrCarrierFull) {
		t.Fatalf("boarding full galley: err = %v, want ErrCarrierFull", err)
	}
	wu, _ = s.Units.Get(w)
	if wu.Carrier != galley || wu.Moves != moves || wu.Pos != (world.Pos{X: 3, Y: 1}) {
		t.Fatalf("rejected boarding changed the warrior: %+v", wu)
	}
	gu, _ := s.Units.Get(galley)
	if c, _ := gu.AsCargo(); len(c.Units) != 1 || c.Units[0] != w {
		t.Fatalf("galley cargo = %v, want [%v]", c.Units, w)
	}
	if err := s.MoveUnit(ctx, galley, world.Pos{X: 2, Y: 1}); err != nil {
		t.Fatalf("galley move back: %v", err)
	}
	if wu, _ = s.Units.Get(w); wu.Pos != (world.Pos{X: 2, Y: 1}) {
		t.Fatalf("cargo left behind at %v", wu.Pos)
	}
	if msg := worldtest.CheckStacks(s); msg != "" {
		t.Fatal(msg)
	}

	s.KillUnit(ctx, galley)
	s.DrainKills(ctx)
	if s.Units.Contains(w) {
		t.Fatal("cargo survived its transport")
	}
}

func TestFoundCity(t *testing.T) {
	s, ctx := worldtest.New(8, 8)
	p1 := worldtest.Player(s, ctx, "alice", "rome")
	worldtest.Ocean(s, world.Pos{X: 7, Y: 7})

	c := worldtest.City(s, ctx, p1, world.Pos{X: 3, Y: 3})
	city, _ := s.Cities.Get(c)
	if city.Name != "Rome" {
		t.Fatalf("name = %q, want Rome", city.Name)
	}
	pl, _ := s.Players.Get(p1)
	if pl.Capital != c {
		t.Fatal("first city is not the capital")
	}
	if owner := s.Grid.MustAt(world.Pos{X: 4, Y: 3}).Owner; owner != p1 {
		t.Fatalf("adjacent tile owner = %v, want %v", owner, p1)
	}
	if _, ok := s.RouteAt(world.Pos{X: 3, Y: 3}); !ok {
		t.Fatal("city tile not on the trade network")
	}

	for _, tt := range []struct {
		pos  world.Pos
		want error
	}{
		{world.Pos{X: 3, Y: 3}, world.ErrOccupied},
		{world.Pos{X: 4, Y: 4}, world.ErrTooClose},
		{world.Pos{X: 7, Y: 7}, world.ErrNotLand},
		{world.Pos{X: 9, Y: 0}, world.ErrOutOfBounds},
	} {
		if _, err := s.FoundCity(ctx, p1, tt.pos, ""); !errors.Is(err, tt.want) {
			t.Errorf("FoundCity(%v) = %v, want %v", tt.pos, err, tt.want)
		}
	}
}

func TestCultureTieKeepsIncumbent(t *testing.T) {
	s, ctx := worldtest.New(7, 3)
	p1 := worldtest.Player(s, ctx, "alice", "rome")
	p2 := worldtest.Player(s, ctx, "bob", "egypt")
	shared := world.Pos{X: 3, Y: 1}

	a := worldtest.City(s, ctx, p1, world.Pos{X: 2, Y: 1})
	if got := s.Grid.MustAt(shared).Owner; got != p1 {
		t.Fatalf("owner before rival = %v, want %v", got, p1)
	}
	b := worldtest.City(s, ctx, p2, world.Pos{X: 4, Y: 1})

	for i := 0; i < 3; i++ {
		s.PropagateCulture(ctx, a, 4)
		s.PropagateCulture(ctx, b, 4)
	}
	tile := s.Grid.MustAt(shared)
	if tile.Culture.Get(p1) != tile.Culture.Get(p2) {
		t.Fatalf("amounts differ: %d vs %d", tile.Culture.Get(p1), tile.Culture.Get(p2))
	}
	if tile.Owner != p1 {
		t.Fatalf("owner flipped on tie: got %v, want %v", tile.Owner, p1)
	}

	s.PropagateCulture(ctx, b, 1)
	if tile.Owner != p2 {
		t.Fatalf("owner = %v, want %v after strict lead", tile.Owner, p2)
	}

	s.DestroyCity(ctx, b)
	if tile.Owner != p1 {
		t.Fatalf("owner = %v, want %v after rival destroyed", tile.Owner, p1)
	}
	s.DestroyCity(ctx, a)
	if !tile.Owner.IsNil() {
		t.Fatalf("owner = %v, want none without contributors", tile.Owner)
	}
}

func TestCultureLevel(t *testing.T) {
	var c world.City
	for _, tt := range []struct {
		add, level int
	}{
		{0, 0}, {9, 0}, {1, 1}, {89, 1}, {10, 2}, {400, 3},
	} {
		c.Culture.Add(ecs.NewHandle(0, 1), tt.add)
		if got := c.CultureLevel(); got != tt.level {
			t.Fatalf("total %d: level %d, want %d", c.Culture.Total(), got, tt.level)
		}
	}
}

func TestTradeNetworkMerge(t *testing.T) {
	s, ctx := worldtest.New(8, 3)
	row := func(x int) world.Pos { return world.Pos{X: x, Y: 1} }

	r1 := s.AddTradeNode(ctx, row(0))
	if got := s.AddTradeNode(ctx, row(1)); got != r1 {
		t.Fatal("adjacent tile started a new route")
	}
	r2 := s.AddTradeNode(ctx, row(3))
	if r2 == r1 {
		t.Fatal("disconnected tile joined an existing route")
	}
	if s.Routes.Len() != 2 {
		t.Fatalf("routes = %d, want 2", s.Routes.Len())
	}

	merged := s.AddTradeNode(ctx, row(2))
	if s.Routes.Len() != 1 {
		t.Fatalf("routes after merge = %d, want 1", s.Routes.Len())
	}
	again := s.AddTradeNode(ctx, row(2))
	if again != merged || s.Routes.Len() != 1 {
		t.Fatal("re-adding a member changed the network")
	}
	r, _ := s.Routes.Get(merged)
	if len(r.Tiles) != 4 {
		t.Fatalf("tiles = %d, want 4", len(r.Tiles))
	}
	for x := 0; x < 4; x++ {
		if h, _ := s.RouteAt(row(x)); h != merged {
			t.Fatalf("tile %d routed to %v, want %v", x, h, merged)
		}
	}

	s.RemoveTradeNode(ctx, row(2))
	if s.Routes.Len() != 1 {
		t.Fatal("removal re-split the route")
	}
	if len(r.Tiles) != 3 {
		t.Fatalf("tiles after removal = %d, want 3", len(r.Tiles))
	}
}

func TestResourcesReachCities(t *testing.T) {
	s, ctx := worldtest.New(8, 3)
	p1 := worldtest.Player(s, ctx, "alice", "rome")
	c := worldtest.City(s, ctx, p1, world.Pos{X: 1, Y: 1})

	wheat := s.Grid.MustAt(world.Pos{X: 2, Y: 1})
	wheat.Resource = "wheat"
	wheat.AddImprovement("road")
	s.AddTradeNode(ctx, world.Pos{X: 2, Y: 1})

	s.PropagateResources(ctx)
	city, _ := s.Cities.Get(c)
	if city.HasResource("wheat") {
		t.Fatal("resource counted without its improvement")
	}

	wheat.AddImprovement("farm")
	s.PropagateResources(ctx)
	if !city.HasResource("wheat") {
		t.Fatalf("resources = %v, want wheat", city.Resources)
	}
}

func TestCaptureCity(t *testing.T) {
	s, ctx := worldtest.New(8, 8)
	p1 := worldtest.Player(s, ctx, "alice", "rome")
	p2 := worldtest.Player(s, ctx, "bob", "egypt")
	rome := worldtest.City(s, ctx, p1, world.Pos{X: 2, Y: 2})
	worldtest.City(s, ctx, p2, world.Pos{X: 6, Y: 6})
	worldtest.Unit(s, ctx, p2, "warrior", world.Pos{X: 3, Y: 2})

	if err := s.CaptureCity(ctx, rome, p2); err != nil {
		t.Fatalf("CaptureCity: %v", err)
	}
	c, _ := s.Cities.Get(rome)
	if c.Owner != p2 {
		t.Fatalf("owner = %v, want %v", c.Owner, p2)
	}
	if h, ok := s.CityAt(world.Pos{X: 2, Y: 2}); !ok || h != rome {
		t.Fatalf("CityAt lost the captured city")
	}
	alice, _ := s.Players.Get(p1)
	if len(alice.Cities) != 0 || !alice.Capital.IsNil() {
		t.Fatalf("loser keeps cities %v capital %v", alice.Cities, alice.Capital)
	}
	if !alice.Defeated {
		t.Fatalf("player without cities or units not defeated")
	}
	bob, _ := s.Players.Get(p2)
	if len(bob.Cities) != 2 || bob.Capital == rome {
		t.Fatalf("winner cities %v capital %v", bob.Cities, bob.Capital)
	}

	if err := s.CaptureCity(ctx, rome, ecs.NewHandle(99, 1)); !errors.Is(err, ecs.ErrInvalidHandle) {
		t.Fatalf("capture by unknown player: %v", err)
	}
}
