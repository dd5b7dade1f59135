package data

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Unit categories referenced by combat bonuses.
const (
	CategoryMelee    = "melee"
	CategoryMounted  = "mounted"
	CategoryRanged   = "ranged"
	CategorySiege    = "siege"
	CategoryCivilian = "civilian"
	CategoryNaval    = "naval"
)

// Unit capabilities. A unit kind carries at most one.
const (
	CapFoundCity        = "found_city"
	CapBuildImprovement = "build_improvement"
	CapCarryCargo       = "carry_cargo"
)

// Movement domains.
const (
	DomainLand = "land"
	DomainSea  = "sea"
)

// Bonus is a percent modifier against a unit category.
type Bonus struct {
	VsCategory  string `yaml:"vs_category"`
	Percent     int    `yaml:"percent"`
	OnlyAttack  bool   `yaml:"only_attack"`
	OnlyDefense bool   `yaml:"only_defense"`
}

// UnitKind holds static data for a unit type.
type UnitKind struct {
	ID               string  `yaml:"id"`
	Name             string  `yaml:"name"`
	Strength         float64 `yaml:"strength"`
	Moves            int     `yaml:"moves"`
	Category         string  `yaml:"category"`
	Domain           string  `yaml:"domain"`
	Sight            int     `yaml:"sight"`
	Cost             int     `yaml:"cost"`
	MaxCollateral    int     `yaml:"max_collateral"`
	CargoCapacity    int     `yaml:"cargo_capacity"`
	Capability       string  `yaml:"capability"`
	RequiresTech     string  `yaml:"requires_tech"`
	RequiresResource string  `yaml:"requires_resource"`
	Bonuses          []Bonus `yaml:"bonuses"`
}

// Building holds static data for a city building.
type Building struct {
	ID                string `yaml:"id"`
	Name              string `yaml:"name"`
	Cost              int    `yaml:"cost"`
	Upkeep            int    `yaml:"upkeep"`
	RequiresTech      string `yaml:"requires_tech"`
	Culture           int    `yaml:"culture"`
	Happiness         int    `yaml:"happiness"`
	Food              int    `yaml:"food"`
	DefensePercent    int    `yaml:"defense_percent"`
	ProductionPercent int    `yaml:"production_percent"`
	GoldPercent       int    `yaml:"gold_percent"`
	SciencePercent    int    `yaml:"science_percent"`
}

// Resource holds static data for a map resource.
type Resource struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Food        int     `yaml:"food"`
	Production  int     `yaml:"production"`
	Gold        int     `yaml:"gold"`
	Improvement string  `yaml:"improvement"` // improvement that connects it to the trade network
	AllowDesert bool    `yaml:"allow_desert"`
	FoodBonus   bool    `yaml:"food_bonus"` // guaranteed near starting locations
	Happiness   int     `yaml:"happiness"`
	Spacing     float64 `yaml:"spacing"`   // minimum distance between two placements
	Frequency   int     `yaml:"frequency"` // roughly one placement per N land tiles
}

// Improvement holds static data for a worker-built tile improvement.
type Improvement struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	Turns         int    `yaml:"turns"`
	Food          int    `yaml:"food"`
	Production    int    `yaml:"production"`
	Gold          int    `yaml:"gold"`
	Road          bool   `yaml:"road"`
	RequiresHills bool   `yaml:"requires_hills"`
	RequiresTech  string `yaml:"requires_tech"`
}

// Tech holds static data for a technology.
type Tech struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Cost    int      `yaml:"cost"`
	Era     int      `yaml:"era"`
	Prereqs []string `yaml:"prereqs"`
}

// Civilization holds static data for a playable civilization.
type Civilization struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	Leader    string   `yaml:"leader"`
	CityNames []string `yaml:"city_names"`
}

// TerrainYield holds base yields and defense for a terrain class or feature.
type TerrainYield struct {
	ID             string `yaml:"id"`
	Food           int    `yaml:"food"`
	Production     int    `yaml:"production"`
	Gold           int    `yaml:"gold"`
	DefensePercent int    `yaml:"defense_percent"`
	Quality        int    `yaml:"quality"` // starting-location desirability
}

type identified interface {
	UnitKind | Building | Resource | Improvement | Tech | Civilization | TerrainYield
}

// Table holds reference rows indexed by ID, preserving file order.
type Table[T identified] struct {
	byID  map[string]*T
	order []*T
}

func newTable[T identified](rows []T, id func(*T) string) (*Table[T], error) {
	t := &Table[T]{byID: make(map[string]*T, len(rows)), order: make([]*T, 0, len(rows))}
	for i := range rows {
		row := &rows[i]
		key := id(row)
		if key == "" {
			return nil, fmt.Errorf("row %d: missing id", i)
		}
		if _, dup := t.byID[key]; dup {
			return nil, fmt.Errorf("duplicate id %q", key)
		}
		t.byID[key] = row
		t.order = append(t.order, row)
	}
	return t, nil
}

// Get returns the row with the given ID, or nil.
func (t *Table[T]) Get(id string) *T {
	if t == nil {
		return nil
	}
	return t.byID[id]
}

func (t *Table[T]) Count() int {
	if t == nil {
		return 0
	}
	return len(t.order)
}

// All returns rows in file order.
func (t *Table[T]) All() []*T {
	if t == nil {
		return nil
	}
	return t.order
}

// Catalog bundles every reference table the simulation consults.
type Catalog struct {
	Units        *Table[UnitKind]
	Buildings    *Table[Building]
	Resources    *Table[Resource]
	Improvements *Table[Improvement]
	Techs        *Table[Tech]
	Civs         *Table[Civilization]
	Terrain      *Table[TerrainYield]
}

type catalogFile struct {
	Units        []UnitKind     `yaml:"units"`
	Buildings    []Building     `yaml:"buildings"`
	Resources    []Resource     `yaml:"resources"`
	Improvements []Improvement  `yaml:"improvements"`
	Techs        []Tech         `yaml:"techs"`
	Civs         []Civilization `yaml:"civilizations"`
	Terrain      []TerrainYield `yaml:"terrain"`
}

// LoadCatalog reads every table file from dir. The files share one schema;
// each contributes whichever top-level lists it defines.
func LoadCatalog(dir string) (*Catalog, error) {
	var merged catalogFile
	for _, name := range []string{"units.yaml", "buildings.yaml", "resources.yaml", "improvements.yaml", "techs.yaml", "civilizations.yaml", "terrain.yaml"} {
		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var f catalogFile
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		merged.Units = append(merged.Units, f.Units...)
		merged.Buildings = append(merged.Buildings, f.Buildings...)
		merged.Resources = append(merged.Resources, f.Resources...)
		merged.Improvements = append(merged.Improvements, f.Improvements...)
		merged.Techs = append(merged.Techs, f.Techs...)
		merged.Civs = append(merged.Civs, f.Civs...)
		merged.Terrain = append(merged.Terrain, f.Terrain...)
	}
	return NewCatalog(merged.Units, merged.Buildings, merged.Resources, merged.Improvements, merged.Techs, merged.Civs, merged.Terrain)
}

// NewCatalog builds a catalog from in-memory rows and validates references.
func NewCatalog(units []UnitKind, buildings []Building, resources []Resource, improvements []Improvement, techs []Tech, civs []Civilization, terrain []TerrainYield) (*Catalog, error) {
	c := &Catalog{}
	var err error
	if c.Units, err = newTable(units, func(u *UnitKind) string { return u.ID }); err != nil {
		return nil, fmt.Errorf("units: %w", err)
	}
	if c.Buildings, err = newTable(buildings, func(b *Building) string { return b.ID }); err != nil {
		return nil, fmt.Errorf("buildings: %w", err)
	}
	if c.Resources, err = newTable(resources, func(r *Resource) string { return r.ID }); err != nil {
		return nil, fmt.Errorf("resources: %w", err)
	}
	if c.Improvements, err = newTable(improvements, func(i *Improvement) string { return i.ID }); err != nil {
		return nil, fmt.Errorf("improvements: %w", err)
	}
	if c.Techs, err = newTable(techs, func(t *Tech) string { return t.ID }); err != nil {
		return nil, fmt.Errorf("techs: %w", err)
	}
	if c.Civs, err = newTable(civs, func(cv *Civilization) string { return cv.ID }); err != nil {
		return nil, fmt.Errorf("civilizations: %w", err)
	}
	if c.Terrain, err = newTable(terrain, func(ty *TerrainYield) string { return ty.ID }); err != nil {
		return nil, fmt.Errorf("terrain: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) validate() error {
	for _, u := range c.Units.All() {
		if u.Moves <= 0 {
			return fmt.Errorf("unit %s: moves must be positive", u.ID)
		}
		if u.Domain == "" {
			u.Domain = DomainLand
		}
		if u.RequiresTech != "" && c.Techs.Get(u.RequiresTech) == nil {
			return fmt.Errorf("unit %s: unknown tech %q", u.ID, u.RequiresTech)
		}
	}
	for _, r := range c.Resources.All() {
		if r.Improvement != "" && c.Improvements.Get(r.Improvement) == nil {
			return fmt.Errorf("resource %s: unknown improvement %q", r.ID, r.Improvement)
		}
	}
	for _, t := range c.Techs.All() {
		for _, p := range t.Prereqs {
			if c.Techs.Get(p) == nil {
				return fmt.Errorf("tech %s: unknown prereq %q", t.ID, p)
			}
		}
	}
	for _, b := range c.Buildings.All() {
		if b.RequiresTech != "" && c.Techs.Get(b.RequiresTech) == nil {
			return fmt.Errorf("building %s: unknown tech %q", b.ID, b.RequiresTech)
		}
	}
	return nil
}

// Road returns the first improvement flagged as a road, or nil.
func (c *Catalog) Road() *Improvement {
	for _, imp := range c.Improvements.All() {
		if imp.Road {
			return imp
		}
	}
	return nil
}
