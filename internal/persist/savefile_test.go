package persist

import (
	"errors"
	"math/bits"
	"testing"

	"github.com/civforge/server/internal/data/datatest"
	"github.com/civforge/server/internal/world"
	"github.com/civforge/server/internal/world/worldtest"
)

// sampleGame builds a state touching every persisted field.
func sampleGame(t *testing.T) *world.State {
	t.Helper()
	s, ctx := worldtest.New(12, 10)
	worldtest.Ocean(s, world.Pos{X: 11, Y: 0}, world.Pos{X: 11, Y: 1}, world.Pos{X: 10, Y: 0})
	s.Grid.MustAt(world.Pos{X: 4, Y: 4}).Forested = true
	s.Grid.MustAt(world.Pos{X: 5, Y: 5}).Hilled = true
	s.Grid.MustAt(world.Pos{X: 3, Y: 3}).Resource = "wheat"
	s.MapSeed = 42
	s.Generators = [2]string{"continents", "poisson"}
	s.Turn = 17
	s.Era = 1

	alice := s.AddPlayer(ctx, world.NewPlayer("alice", "rome", true))
	bob := s.AddPlayer(ctx, world.NewPlayer("bob", "egypt", false))
	if err := s.SetWar(ctx, alice, bob, true); err != nil {
		t.Fatalf("SetWar: %v", err)
	}
	s.Me = alice
	s.Slots = []world.LobbySlot{
		{Slot: 0, Player: alice, Human: true, Civ: "rome", Name: "alice"},
		{Slot: 1, Player: bob, Civ: "egypt", Name: "bob"},
	}
	pa, _ := s.Players.Get(alice)
	pa.Techs["pottery"] = true
	pa.Research = world.Research{Tech: "writing", Progress: 12}
	pa.Gold = 33
	pa.Score = 9
	pb, _ := s.Players.Get(bob)
	pb.AI = "run_player_ai"

	rome := worldtest.City(s, ctx, alice, world.Pos{X: 3, Y: 4})
	c, _ := s.Cities.Get(rome)
	c.Population = 3
	c.Food = 7
	c.Build = &world.BuildTask{Kind: world.BuildBuilding, ID: "granary", Cost: 40, Progress: 11}
	c.Buildings = []string{"monument"}
	s.AutoAssignTiles(rome)
	for i := 0; i < 4; i++ {
		s.PropagateCulture(ctx, rome, 3)
	}
	worldtest.City(s, ctx, bob, world.Pos{X: 8, Y: 7})

	for _, p := range []world.Pos{{X: 4, Y: 4}, {X: 5, Y: 4}} {
		s.Grid.MustAt(p).AddImprovement("road")
		s.AddTradeNode(ctx, p)
	}
	s.PropagateResources(ctx)

	worker := worldtest.Unit(s, ctx, alice, "worker", world.Pos{X: 2, Y: 4})
	u, _ := s.Units.Get(worker)
	w, _ := u.AsWorker()
	w.Task = &world.WorkerTask{Improvement: "farm", TurnsLeft: 3}

	warrior := worldtest.Unit(s, ctx, alice, "warrior", world.Pos{X: 10, Y: 1})
	u, _ = s.Units.Get(warrior)
	u.Path = world.Path{Points: []world.Pos{{X: 9, Y: 2}, {X: 8, Y: 3}}}
	u.Health = 0.6
	galley := worldtest.Unit(s, ctx, alice, "galley", world.Pos{X: 11, Y: 1})
	if err := s.BoardCargo(ctx, warrior, galley); err != nil {
		t.Fatalf("BoardCargo: %v", err)
	}
	worldtest.Unit(s, ctx, bob, "settler", world.Pos{X: 7, Y: 7})
	spear := worldtest.Unit(s, ctx, bob, "spearman", world.Pos{X: 8, Y: 7})
	u, _ = s.Units.Get(spear)
	u.Fortified = true
	return s
}

func TestRoundTrip(t *testing.T) {
	orig := sampleGame(t)
	blob, err := Encode(orig, "autosave")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, hdr, err := Decode(blob, datatest.Catalog())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if hdr.Name != "autosave" || hdr.Turn != 17 {
		t.Fatalf("header = %+v", hdr)
	}
	for _, d := range worldtest.Diff(orig, got) {
		t.Error(d)
	}
}

func TestDecodeRejectsCorruption(t *testing.T) {
	blob, err := Encode(sampleGame(t), "slot1")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	flip := func(i int) []byte {
		b := append([]byte(nil), blob...)
		b[i] ^= 0xFF
		return b
	}
	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", blob[:HeaderSize-1]},
		{"bad magic", flip(0)},
		{"bad version", flip(4)},
		{"truncated body", blob[:len(blob)-5]},
		{"body bit flip", flip(HeaderSize + 10)},
		{"checksum bit flip", flip(20)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, _, err := Decode(tc.data, datatest.Catalog())
			if !errors.Is(err, ErrMalformedSave) {
				t.Fatalf("err = %v, want ErrMalformedSave", err)
			}
			if s != nil {
				t.Fatal("state returned with error")
			}
		})
	}
}

func TestRestoreRejectsBadSnapshot(t *testing.T) {
	// Squares to zero in int arithmetic, matching an empty tile list.
	const wrap = 1 << (bits.UintSize / 2)
	cases := []struct {
		name string
		edit func(*snapshot)
	}{
		{"dangling owner", func(s *snapshot) { s.Units[0].Owner = 99 }},
		{"short tiles", func(s *snapshot) { s.Tiles = s.Tiles[1:] }},
		{"oversized grid", func(s *snapshot) { s.Width = world.MaxMapSide + 1 }},
		{"overflowing grid", func(s *snapshot) { s.Width, s.Height, s.Tiles = wrap, wrap, nil }},
		{"ownerless unit", func(s *snapshot) { s.Units[0].Owner = 0 }},
		{"ownerless city", func(s *snapshot) { s.Cities[0].Owner = 0 }},
		{"unknown unit kind", func(s *snapshot) { s.Units[1].Kind = "zeppelin" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snap := takeSnapshot(sampleGame(t))
			tc.edit(snap)
			if _, err := restore(snap, datatest.Catalog()); !errors.Is(err, ErrMalformedSave) {
				t.Fatalf("err = %v, want ErrMalformedSave", err)
			}
		})
	}
}

func TestReadHeader(t *testing.T) {
	blob, err := Encode(sampleGame(t), "a very long save name that is still well under the eighty byte header field")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	h, err := ReadHeader(blob)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.Turn != 17 || h.Version != SaveVersion || int(h.Payload) != len(blob)-HeaderSize {
		t.Fatalf("header = %+v", h)
	}
}
