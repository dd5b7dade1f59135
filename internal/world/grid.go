package world

import (
	"errors"
	"fmt"
	"math"

	"github.com/civforge/server/internal/core/ecs"
)

// ErrOutOfBounds is returned when a position lies outside the grid.
var ErrOutOfBounds = errors.New("position out of bounds")

// MaxMapSide bounds both grid dimensions. It keeps coordinates in a u16 on
// the wire and a single snapshot row well inside one frame.
const MaxMapSide = 512

// Pos is a tile coordinate.
type Pos struct {
	X, Y int
}

func (p Pos) Add(dx, dy int) Pos { return Pos{p.X + dx, p.Y + dy} }

func (p Pos) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Distance is the straight-line distance between two tiles.
func Distance(a, b Pos) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// Chebyshev is the 8-connected step count between two tiles.
func Chebyshev(a, b Pos) int {
	dx := abs(a.X - b.X)
	dy := abs(a.Y - b.Y)
	if dx > dy {
		return dx
	}
	return dy
}

// Dirs8 lists the eight neighbour offsets, orthogonal first.
var Dirs8 = [8][2]int{
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
	{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
}

// Terrain is the base terrain class of a tile.
type Terrain uint8

const (
	TerrainOcean Terrain = iota
	TerrainGrassland
	TerrainPlains
	TerrainDesert
)

// String returns the catalog ID of the terrain.
func (t Terrain) String() string {
	switch t {
	case TerrainOcean:
		return "ocean"
	case TerrainGrassland:
		return "grassland"
	case TerrainPlains:
		return "plains"
	case TerrainDesert:
		return "desert"
	default:
		return "unknown"
	}
}

// Tile is one grid cell.
type Tile struct {
	Terrain      Terrain
	Forested     bool
	Hilled       bool
	Resource     string // catalog resource ID, "" for none
	Improvements []string
	Culture      Culture
	Owner        ecs.Handle   // player with the strongest reaching culture
	WorkedBy     ecs.Handle   // city working this tile
	Influence    []ecs.Handle // cities whose culture currently reaches this tile
}

func (t *Tile) IsLand() bool { return t.Terrain != TerrainOcean }

func (t *Tile) HasImprovement(id string) bool {
	for _, imp := range t.Improvements {
		if imp == id {
			return true
		}
	}
	return false
}

// AddImprovement records id once.
func (t *Tile) AddImprovement(id string) bool {
	if t.HasImprovement(id) {
		return false
	}
	t.Improvements = append(t.Improvements, id)
	return true
}

func (t *Tile) influencedBy(city ecs.Handle) bool {
	for _, c := range t.Influence {
		if c == city {
			return true
		}
	}
	return false
}

func (t *Tile) removeInfluence(city ecs.Handle) bool {
	for i, c := range t.Influence {
		if c == city {
			t.Influence = append(t.Influence[:i], t.Influence[i+1:]...)
			return true
		}
	}
	return false
}

// Grid is the rectangular tile map, row-major.
type Grid struct {
	Width  int
	Height int
	Tiles  []Tile
}

func NewGrid(width, height int) *Grid {
	return &Grid{
		Width:  width,
		Height: height,
		Tiles:  make([]Tile, width*height),
	}
}

func (g *Grid) InBounds(p Pos) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < g.Width && p.Y < g.Height
}

// Index returns the flat index of an in-bounds position.
func (g *Grid) Index(p Pos) int { return p.Y*g.Width + p.X }

// PosOf is the inverse of Index.
func (g *Grid) PosOf(i int) Pos { return Pos{i % g.Width, i / g.Width} }

// At returns the tile at p, or nil when p is off the map.
func (g *Grid) At(p Pos) *Tile {
	if !g.InBounds(p) {
		return nil
	}
	return &g.Tiles[g.Index(p)]
}

// Lookup is At with an error for command validation.
func (g *Grid) Lookup(p Pos) (*Tile, error) {
	t := g.At(p)
	if t == nil {
		return nil, fmt.Errorf("%w: %s", ErrOutOfBounds, p)
	}
	return t, nil
}

// MustAt panics on out-of-bounds access. Generator code only: an
// out-of-range position there is a setup bug.
func (g *Grid) MustAt(p Pos) *Tile {
	t := g.At(p)
	if t == nil {
		panic(fmt.Sprintf("grid access out of bounds: %s in %dx%d", p, g.Width, g.Height))
	}
	return t
}

// Neighbors returns the in-bounds 8-neighbours of p.
func (g *Grid) Neighbors(p Pos) []Pos {
	out := make([]Pos, 0, 8)
	for _, d := range Dirs8 {
		n := p.Add(d[0], d[1])
		if g.InBounds(n) {
			out = append(out, n)
		}
	}
	return out
}

// Within returns every in-bounds tile whose rounded distance from center is
// at most radius, center first.
func (g *Grid) Within(center Pos, radius int) []Pos {
	out := []Pos{center}
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			p := center.Add(dx, dy)
			if !g.InBounds(p) {
				continue
			}
			if RoundedDistance(center, p) <= radius {
				out = append(out, p)
			}
		}
	}
	return out
}

// RoundedDistance is Distance rounded to the nearest integer.
func RoundedDistance(a, b Pos) int {
	return int(math.Round(Distance(a, b)))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
