// Package mapgen builds a new game world: land, terrain, starting
// locations, resources and the initial players with their units.
package mapgen

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"github.com/civforge/server/internal/config"
	"github.com/civforge/server/internal/core/ecs"
	"github.com/civforge/server/internal/data"
	"github.com/civforge/server/internal/world"
)

// ErrInfeasible means the settings cannot produce a playable map.
var ErrInfeasible = errors.New("map generation infeasible")

// Slot is one player seat to create.
type Slot struct {
	Name  string
	Civ   string
	Human bool
	AI    string
}

// Settings drive one generation run.
type Settings struct {
	Width             int
	Height            int
	Continents        int
	Seed              int64
	Terrain           string // terrain generator name
	Resources         string // resource generator name
	MinContinentTiles int
	MinStartDistance  int
	SettlerUnit       string
	EscortUnit        string
	Slots             []Slot
}

// FromConfig copies the [game] section.
func FromConfig(g config.GameConfig) Settings {
	s := Settings{
		Width:             g.Width,
		Height:            g.Height,
		Continents:        g.Continents,
		Seed:              g.Seed,
		Terrain:           g.TerrainGenerator,
		Resources:         g.ResourceGenerator,
		MinContinentTiles: g.MinContinentTiles,
		MinStartDistance:  g.MinStartDistance,
		SettlerUnit:       g.SettlerUnit,
		EscortUnit:        g.EscortUnit,
	}
	for _, sl := range g.Slots {
		s.Slots = append(s.Slots, Slot{Name: sl.Name, Civ: sl.Civ, Human: sl.Human, AI: sl.AI})
	}
	return s
}

// TerrainFunc fills the grid with land and terrain.
type TerrainFunc func(g *world.Grid, s *Settings, rng *rand.Rand) error

// ResourceFunc places resources on the grid.
type ResourceFunc func(g *world.Grid, cat *data.Catalog, rng *rand.Rand) error

var (
	terrainGenerators = map[string]TerrainFunc{
		"continents":  Continents,
		"archipelago": Archipelago,
	}
	resourceGenerators = map[string]ResourceFunc{
		"poisson": PoissonResources,
		"none":    func(*world.Grid, *data.Catalog, *rand.Rand) error { return nil },
	}
)

// RegisterTerrain adds a terrain generator. Not safe for concurrent use.
func RegisterTerrain(name string, fn TerrainFunc) { terrainGenerators[name] = fn }

// RegisterResources adds a resource generator. Not safe for concurrent use.
func RegisterResources(name string, fn ResourceFunc) { resourceGenerators[name] = fn }

// Generators lists registered generator names, sorted.
func Generators() (terrain, resources []string) {
	for k := range terrainGenerators {
		terrain = append(terrain, k)
	}
	for k := range resourceGenerators {
		resources = append(resources, k)
	}
	sort.Strings(terrain)
	sort.Strings(resources)
	return terrain, resources
}

func (s *Settings) validate(cat *data.Catalog) error {
	if s.Width < 8 || s.Height < 8 || s.Width > world.MaxMapSide || s.Height > world.MaxMapSide {
		return fmt.Errorf("%w: map %dx%d", ErrInfeasible, s.Width, s.Height)
	}
	if s.Continents < 1 {
		return fmt.Errorf("%w: %d continents", ErrInfeasible, s.Continents)
	}
	if len(s.Slots) == 0 {
		return fmt.Errorf("%w: no players", ErrInfeasible)
	}
	for _, sl := range s.Slots {
		if cat.Civs.Get(sl.Civ) == nil {
			return fmt.Errorf("%w: civilization %q", world.ErrUnknownKind, sl.Civ)
		}
	}
	for _, id := range []string{s.SettlerUnit, s.EscortUnit} {
		if cat.Units.Get(id) == nil {
			return fmt.Errorf("%w: unit %q", world.ErrUnknownKind, id)
		}
	}
	if cat.Units.Get(s.SettlerUnit).Capability != data.CapFoundCity {
		return fmt.Errorf("settler unit %q cannot found cities", s.SettlerUnit)
	}
	return nil
}

// Generate runs the full pipeline. On error no state is returned.
func Generate(cat *data.Catalog, s Settings, ctx *world.Context) (*world.State, error) {
	if err := s.validate(cat); err != nil {
		return nil, err
	}
	terrain, ok := terrainGenerators[s.Terrain]
	if !ok {
		return nil, fmt.Errorf("unknown terrain generator %q", s.Terrain)
	}
	resources, ok := resourceGenerators[s.Resources]
	if !ok {
		return nil, fmt.Errorf("unknown resource generator %q", s.Resources)
	}

	rng := rand.New(rand.NewSource(s.Seed))
	grid := world.NewGrid(s.Width, s.Height)
	if err := terrain(grid, &s, rng); err != nil {
		return nil, err
	}
	starts, err := chooseStarts(grid, cat, &s)
	if err != nil {
		return nil, err
	}
	if err := resources(grid, cat, rng); err != nil {
		return nil, err
	}
	if err := guaranteeFood(grid, cat, starts, rng); err != nil {
		return nil, err
	}

	state := world.NewState(cat, grid)
	state.MapSeed = s.Seed
	state.Generators = [2]string{s.Terrain, s.Resources}
	if err := seed(state, ctx, &s, starts); err != nil {
		return nil, err
	}
	ctx.Log.Info("map generated",
		zap.Int("width", s.Width),
		zap.Int("height", s.Height),
		zap.Int64("seed", s.Seed),
		zap.String("terrain", s.Terrain),
		zap.String("resources", s.Resources),
		zap.Int("land", landCount(grid)),
		zap.Int("players", len(s.Slots)),
	)
	return state, nil
}

// seed creates one player per slot with a settler and an escort at its start.
func seed(state *world.State, ctx *world.Context, s *Settings, starts []world.Pos) error {
	state.Me = ecs.Nil
	for i, sl := range s.Slots {
		p := world.NewPlayer(sl.Name, sl.Civ, sl.Human)
		p.Slot = i
		p.AI = sl.AI
		h := state.AddPlayer(ctx, p)
		for _, kind := range []string{s.SettlerUnit, s.EscortUnit} {
			if _, err := state.CreateUnit(ctx, h, kind, starts[i]); err != nil {
				return fmt.Errorf("seed %s for %s: %w", kind, sl.Name, err)
			}
		}
		state.Slots = append(state.Slots, world.LobbySlot{
			Slot: i, Player: h, Human: sl.Human, Civ: sl.Civ, Name: sl.Name,
		})
		if sl.Human && state.Me.IsNil() {
			state.Me = h
		}
	}
	return nil
}

func landCount(g *world.Grid) int {
	n := 0
	for i := range g.Tiles {
		if g.Tiles[i].IsLand() {
			n++
		}
	}
	return n
}
