package data

import (
	"strings"
	"testing"
)

func TestLoadShippedCatalog(t *testing.T) {
	c, err := LoadCatalog("../../data/yaml")
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if c.Units.Get("settler") == nil || c.Units.Get("warrior") == nil {
		t.Fatalf("starting units missing from catalog")
	}
	if c.Units.Get("settler").Capability != CapFoundCity {
		t.Fatalf("settler capability = %q", c.Units.Get("settler").Capability)
	}
	if c.Road() == nil {
		t.Fatalf("no road improvement")
	}
	if c.Civs.Count() < 4 {
		t.Fatalf("need at least 4 civilizations, got %d", c.Civs.Count())
	}
	for _, id := range []string{"ocean", "grassland", "plains", "desert", "hills", "forest"} {
		if c.Terrain.Get(id) == nil {
			t.Fatalf("terrain %q missing", id)
		}
	}
}

func TestNewCatalogRejectsBadReferences(t *testing.T) {
	tests := []struct {
		name    string
		units   []UnitKind
		techs   []Tech
		wantErr string
	}{
		{
			name:    "unknown tech on unit",
			units:   []UnitKind{{ID: "a", Moves: 1, RequiresTech: "nope"}},
			wantErr: "unknown tech",
		},
		{
			name:    "zero moves",
			units:   []UnitKind{{ID: "a"}},
			wantErr: "moves must be positive",
		},
		{
			name:    "unknown prereq",
			techs:   []Tech{{ID: "x", Prereqs: []string{"y"}}},
			wantErr: "unknown prereq",
		},
		{
			name:    "duplicate id",
			units:   []UnitKind{{ID: "a", Moves: 1}, {ID: "a", Moves: 1}},
			wantErr: "duplicate id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.units, nil, nil, nil, tt.techs, nil, nil)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCatalogDefaultsDomain(t *testing.T) {
	c, err := NewCatalog([]UnitKind{{ID: "a", Moves: 1}}, nil, nil, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	if got := c.Units.Get("a").Domain; got != DomainLand {
		t.Fatalf("domain = %q, want land", got)
	}
}
