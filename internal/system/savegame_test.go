package system_test

import (
	"testing"

	"go.uber.org/zap"

	"github.com/civforge/server/internal/core/event"
	"github.com/civforge/server/internal/data/datatest"
	"github.com/civforge/server/internal/handler"
	"github.com/civforge/server/internal/mapgen"
	"github.com/civforge/server/internal/persist"
	"github.com/civforge/server/internal/system"
	"github.com/civforge/server/internal/world"
	"github.com/civforge/server/internal/world/worldtest"
)

func TestGeneratedGameSurvivesSave(t *testing.T) {
	settings := mapgen.Settings{
		Width:             80,
		Height:            50,
		Continents:        2,
		Seed:              20240611,
		Terrain:           "continents",
		Resources:         "poisson",
		MinContinentTiles: 120,
		MinStartDistance:  8,
		SettlerUnit:       "settler",
		EscortUnit:        "warrior",
		Slots: []mapgen.Slot{
			{Name: "ann", Civ: "rome", Human: true},
			{Name: "ben", Civ: "egypt"},
			{Name: "cai", Civ: "china"},
		},
	}
	ctx := world.NewContext(settings.Seed, event.NewBus(), zap.NewNop())
	s, err := mapgen.Generate(datatest.Catalog(), settings, ctx)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	disp := handler.NewDispatcher(&handler.Deps{State: s, Ctx: ctx, Log: zap.NewNop()})

	for _, slot := range s.Slots {
		for _, h := range s.UnitsOf(slot.Player) {
			u, _ := s.Units.Get(h)
			if u.Kind != "settler" {
				continue
			}
			cmd := handler.UnitAction{Unit: h, Action: handler.ActionFoundCity, Name: slot.Name + "polis"}
			if _, err := disp.Execute(slot.Player, cmd); err != nil {
				t.Fatalf("%s founds city: %v", slot.Name, err)
			}
		}
	}
	if s.Cities.Len() != len(settings.Slots) {
		t.Fatalf("cities = %d, want %d", s.Cities.Len(), len(settings.Slots))
	}

	sched := system.NewScheduler(disp, nil)
	for i := 0; i < 2; i++ {
		if err := sched.AdvanceTurn(); err != nil {
			t.Fatalf("AdvanceTurn: %v", err)
		}
	}

	blob, err := persist.Encode(s, "generated")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, hdr, err := persist.Decode(blob, datatest.Catalog())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if hdr.Turn != uint32(s.Turn) || got.Turn != 2 {
		t.Fatalf("header turn %d, state turn %d", hdr.Turn, got.Turn)
	}
	diffs := worldtest.Diff(s, got)
	for i, d := range diffs {
		if i == 20 {
			t.Fatalf("%d more differences", len(diffs)-i)
		}
		t.Error(d)
	}
}
