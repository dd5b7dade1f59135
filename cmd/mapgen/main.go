// Command mapgen previews generated maps as ASCII without starting a server.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/civforge/server/internal/config"
	"github.com/civforge/server/internal/core/event"
	"github.com/civforge/server/internal/data"
	"github.com/civforge/server/internal/mapgen"
	"github.com/civforge/server/internal/world"
)

func main() {
	var (
		cfgPath    = flag.String("config", config.Path(), "server config to take [game] settings from")
		seed       = flag.Int64("seed", 0, "override the map seed")
		width      = flag.Int("width", 0, "override the map width")
		height     = flag.Int("height", 0, "override the map height")
		continents = flag.Int("continents", 0, "override the continent count")
		terrain    = flag.String("terrain", "", "terrain generator name")
		resources  = flag.String("resources", "", "resource generator name")
		statsOnly  = flag.Bool("stats", false, "print statistics only")
		list       = flag.Bool("list", false, "list registered generators and exit")
	)
	flag.Parse()

	if *list {
		t, r := mapgen.Generators()
		fmt.Printf("terrain:   %v\nresources: %v\n", t, r)
		return
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fatal("load config: %v", err)
	}
	cat, err := data.LoadCatalog(cfg.Game.DataDir)
	if err != nil {
		fatal("load catalog: %v", err)
	}

	s := mapgen.FromConfig(cfg.Game)
	if *seed != 0 {
		s.Seed = *seed
	}
	if *width > 0 {
		s.Width = *width
	}
	if *height > 0 {
		s.Height = *height
	}
	if *continents > 0 {
		s.Continents = *continents
	}
	if *terrain != "" {
		s.Terrain = *terrain
	}
	if *resources != "" {
		s.Resources = *resources
	}

	state, err := mapgen.Generate(cat, s, world.NewContext(s.Seed, event.NewBus(), zap.NewNop()))
	if err != nil {
		fatal("generate: %v", err)
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	if !*statsOnly {
		render(out, state)
		fmt.Fprintln(out)
	}
	stats(out, state)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "mapgen: "+format+"\n", args...)
	os.Exit(1)
}

// glyph picks one character per tile. Resources win over terrain features.
func glyph(t *world.Tile) byte {
	if t.Resource != "" {
		return '$'
	}
	switch {
	case t.Terrain == world.TerrainOcean:
		return '~'
	case t.Hilled:
		return '^'
	case t.Forested:
		return '&'
	}
	switch t.Terrain {
	case world.TerrainGrassland:
		return '"'
	case world.TerrainPlains:
		return '.'
	case world.TerrainDesert:
		return ':'
	}
	return '?'
}

func render(w io.Writer, s *world.State) {
	g := s.Grid
	row := make([]byte, g.Width)

	starts := make(map[world.Pos]byte)
	for _, u := range s.Units.All() {
		p, _ := s.Players.Get(u.Owner)
		if p != nil && p.Slot < 10 {
			starts[u.Pos] = byte('0' + p.Slot)
		}
	}

	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			pos := world.Pos{X: x, Y: y}
			if c, ok := starts[pos]; ok {
				row[x] = c
				continue
			}
			row[x] = glyph(g.At(pos))
		}
		fmt.Fprintf(w, "%s\n", row)
	}
	fmt.Fprintln(w, `~ ocean  " grassland  . plains  : desert  ^ hills  & forest  $ resource  0-9 start`)
}

func stats(w io.Writer, s *world.State) {
	g := s.Grid
	terrain := make(map[string]int)
	res := make(map[string]int)
	land := 0
	for i := range g.Tiles {
		t := &g.Tiles[i]
		name := t.Terrain.String()
		switch {
		case !t.IsLand():
		case t.Hilled:
			name = "hills"
		case t.Forested:
			name = "forest"
		}
		terrain[name]++
		if t.IsLand() {
			land++
		}
		if t.Resource != "" {
			res[t.Resource]++
		}
	}

	fmt.Fprintf(w, "seed %d  %dx%d  generators %s/%s\n", s.MapSeed, g.Width, g.Height, s.Generators[0], s.Generators[1])
	fmt.Fprintf(w, "land %d of %d tiles (%.1f%%)\n", land, len(g.Tiles), 100*float64(land)/float64(len(g.Tiles)))
	printCounts(w, "terrain", terrain)
	printCounts(w, "resources", res)

	fmt.Fprintln(w, "starts:")
	for h, p := range s.Players.All() {
		for _, u := range s.Units.All() {
			if u.Owner == h && s.Catalog.Units.Get(u.Kind).Capability == data.CapFoundCity {
				fmt.Fprintf(w, "  %d %-10s %-8s %v\n", p.Slot, p.Name, p.Civ, u.Pos)
				break
			}
		}
	}
}

func printCounts(w io.Writer, title string, m map[string]int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-10s %5d\n", k, m[k])
	}
}
