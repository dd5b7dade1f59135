package world

import (
	"sort"

	"github.com/civforge/server/internal/core/ecs"
)

// Dirty collects entities changed since the last replication flush.
type Dirty struct {
	Global  bool
	Units   map[ecs.Handle]struct{}
	Cities  map[ecs.Handle]struct{}
	Players map[ecs.Handle]struct{}
	Tiles   map[Pos]struct{}
	Removed []ecs.Handle // units erased since the last flush
	Razed   []ecs.Handle // cities erased since the last flush
	Vision  map[ecs.Handle]struct{}
}

func NewDirty() *Dirty {
	d := &Dirty{}
	d.Reset()
	return d
}

func (d *Dirty) Reset() {
	d.Global = false
	d.Units = make(map[ecs.Handle]struct{})
	d.Cities = make(map[ecs.Handle]struct{})
	d.Players = make(map[ecs.Handle]struct{})
	d.Tiles = make(map[Pos]struct{})
	d.Removed = nil
	d.Razed = nil
	d.Vision = make(map[ecs.Handle]struct{})
}

// Nil-safe so tests and tools can run operations without replication.

func (d *Dirty) Unit(h ecs.Handle) {
	if d != nil {
		d.Units[h] = struct{}{}
	}
}

func (d *Dirty) City(h ecs.Handle) {
	if d != nil {
		d.Cities[h] = struct{}{}
	}
}

func (d *Dirty) Player(h ecs.Handle) {
	if d != nil {
		d.Players[h] = struct{}{}
	}
}

func (d *Dirty) Tile(p Pos) {
	if d != nil {
		d.Tiles[p] = struct{}{}
	}
}

func (d *Dirty) Visibility(player ecs.Handle) {
	if d != nil {
		d.Vision[player] = struct{}{}
	}
}

func (d *Dirty) UnitRemoved(h ecs.Handle) {
	if d == nil {
		return
	}
	delete(d.Units, h)
	d.Removed = append(d.Removed, h)
}

func (d *Dirty) CityRemoved(h ecs.Handle) {
	if d == nil {
		return
	}
	delete(d.Cities, h)
	d.Razed = append(d.Razed, h)
}

func (d *Dirty) Empty() bool {
	return !d.Global && len(d.Units) == 0 && len(d.Cities) == 0 && len(d.Players) == 0 &&
		len(d.Tiles) == 0 && len(d.Removed) == 0 && len(d.Razed) == 0 && len(d.Vision) == 0
}

// SortedHandles returns the keys of a dirty set in handle order.
func SortedHandles(m map[ecs.Handle]struct{}) []ecs.Handle {
	out := make([]ecs.Handle, 0, len(m))
	for h := range m {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SortedTiles returns dirty tile positions in row-major order.
func SortedTiles(m map[Pos]struct{}) []Pos {
	out := make([]Pos, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}
