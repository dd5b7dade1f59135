package scripting

import (
	"testing"

	"go.uber.org/zap"
)

func TestDefaultAI(t *testing.T) {
	e, err := NewEngine("../../scripts", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if !e.HasAI("") {
		t.Fatal("run_player_ai not loaded")
	}

	cmds := e.RunPlayerAI(AIContext{
		Player:    1,
		TaxRate:   60,
		Available: []string{"pottery"},
		Cities: []AICity{{
			ID: 10, X: 3, Y: 3, Pop: 1,
			Units: []BuildOption{
				{ID: "warrior", Cost: 10, Strength: 1},
				{ID: "spearman", Cost: 35, Strength: 4},
			},
		}},
		Units: []AIUnit{
			{ID: 20, Kind: "settler", X: 5, Y: 5, Moves: 1, CanFound: true, SiteX: 5, SiteY: 5, HomeX: -1},
			{ID: 21, Kind: "warrior", X: 3, Y: 3, Moves: 1, Strength: 1, Health: 1, InCity: true, SiteX: -1, HomeX: 3, HomeY: 3},
		},
	})

	want := []AICommand{
		{Type: "set_research", ID: "pottery"},
		{Type: "set_build", City: 10, Kind: "unit", ID: "spearman"},
		{Type: "found_city", Unit: 20},
		{Type: "fortify", Unit: 21},
	}
	if len(cmds) != len(want) {
		t.Fatalf("got %d commands %+v, want %d", len(cmds), cmds, len(want))
	}
	for i := range want {
		if cmds[i] != want[i] {
			t.Errorf("cmd %d = %+v, want %+v", i, cmds[i], want[i])
		}
	}
}

func TestAIAttacksWeakerNeighbour(t *testing.T) {
	e, err := NewEngine("../../scripts", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	cmds := e.RunPlayerAI(AIContext{
		TaxRate: 60,
		Units: []AIUnit{
			{ID: 7, Kind: "spearman", X: 2, Y: 2, Moves: 1, Strength: 4, Health: 1, SiteX: -1, HomeX: -1},
		},
		Enemies: []AIEnemy{{ID: 9, Owner: 2, X: 3, Y: 3, Strength: 1}},
	})
	if len(cmds) != 1 || cmds[0].Type != "move" || cmds[0].X != 3 || cmds[0].Y != 3 {
		t.Fatalf("cmds = %+v", cmds)
	}
}

func TestScriptErrorYieldsNoCommands(t *testing.T) {
	e, err := NewEngineFromSource(`function run_player_ai(ctx) error("boom") end`, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if cmds := e.RunPlayerAI(AIContext{}); cmds != nil {
		t.Fatalf("cmds = %+v", cmds)
	}
}

func TestMissingController(t *testing.T) {
	e, err := NewEngineFromSource(`x = 1`, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if e.HasAI("") {
		t.Error("HasAI with no controller")
	}
	if cmds := e.RunPlayerAI(AIContext{}); cmds != nil {
		t.Fatalf("cmds = %+v", cmds)
	}
}
