package world

import (
	"testing"

	"github.com/civforge/server/internal/core/ecs"
)

func TestGridBounds(t *testing.T) {
	g := NewGrid(4, 3)
	if g.At(Pos{4, 0}) != nil || g.At(Pos{0, -1}) != nil {
		t.Fatal("At returned a tile off the map")
	}
	if _, err := g.Lookup(Pos{9, 9}); err == nil {
		t.Fatal("Lookup off the map succeeded")
	}
	defer func() {
		if recover() == nil {
			t.Fatal("MustAt did not panic")
		}
	}()
	g.MustAt(Pos{-1, 0})
}

func TestGridNeighbors(t *testing.T) {
	g := NewGrid(4, 3)
	if n := len(g.Neighbors(Pos{0, 0})); n != 3 {
		t.Fatalf("corner neighbours = %d, want 3", n)
	}
	if n := len(g.Neighbors(Pos{1, 1})); n != 8 {
		t.Fatalf("interior neighbours = %d, want 8", n)
	}
}

func TestCultureValueSorted(t *testing.T) {
	var c Culture
	c.Add(ecs.NewHandle(3, 1), 5)
	c.Add(ecs.NewHandle(1, 1), 2)
	c.Add(ecs.NewHandle(3, 1), 1)
	c.Add(ecs.NewHandle(2, 1), -4)

	e := c.Entries()
	if len(e) != 2 {
		t.Fatalf("entries = %d, want 2", len(e))
	}
	if e[0].Player > e[1].Player {
		t.Fatal("entries not sorted by player")
	}
	if got := c.Get(ecs.NewHandle(3, 1)); got != 6 {
		t.Fatalf("amount = %d, want 6", got)
	}
	if c.Total() != 8 {
		t.Fatalf("total = %d, want 8", c.Total())
	}
}

func TestPathPop(t *testing.T) {
	p := Path{Points: []Pos{{1, 0}, {2, 0}}}
	if p.Destination() != (Pos{2, 0}) {
		t.Fatal("wrong destination")
	}
	n, _ := p.PopNextPoint()
	if n != (Pos{1, 0}) || p.Len() != 1 {
		t.Fatal("PopNextPoint did not consume the first point")
	}
	p.PopNextPoint()
	if _, ok := p.PopNextPoint(); ok {
		t.Fatal("pop on empty path succeeded")
	}
}
