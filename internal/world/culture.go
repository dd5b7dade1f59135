package world

import (
	"sort"

	"github.com/civforge/server/internal/core/ecs"
)

// CultureEntry is one player's accumulated amount.
type CultureEntry struct {
	Player ecs.Handle
	Amount int
}

// Culture is a sparse player→amount accumulator. Entries are kept sorted by
// player handle so serialization is stable; only the association matters.
type Culture struct {
	entries []CultureEntry
}

func (c *Culture) find(player ecs.Handle) (int, bool) {
	i := sort.Search(len(c.entries), func(i int) bool { return c.entries[i].Player >= player })
	return i, i < len(c.entries) && c.entries[i].Player == player
}

// Get returns the player's amount, 0 if absent.
func (c *Culture) Get(player ecs.Handle) int {
	if i, ok := c.find(player); ok {
		return c.entries[i].Amount
	}
	return 0
}

// Add accumulates a non-negative amount. Negative amounts are ignored:
// culture never decreases.
func (c *Culture) Add(player ecs.Handle, amount int) {
	if amount <= 0 || player.IsNil() {
		return
	}
	i, ok := c.find(player)
	if ok {
		c.entries[i].Amount += amount
		return
	}
	c.entries = append(c.entries, CultureEntry{})
	copy(c.entries[i+1:], c.entries[i:])
	c.entries[i] = CultureEntry{Player: player, Amount: amount}
}

// Total sums every player's amount.
func (c *Culture) Total() int {
	n := 0
	for _, e := range c.entries {
		n += e.Amount
	}
	return n
}

func (c *Culture) Len() int { return len(c.entries) }

// Entries returns a copy of the entries.
func (c *Culture) Entries() []CultureEntry {
	out := make([]CultureEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Remap rewrites player handles, used when loading a save.
func (c *Culture) Remap(fn func(ecs.Handle) ecs.Handle) {
	old := c.entries
	c.entries = nil
	for _, e := range old {
		c.Add(fn(e.Player), e.Amount)
	}
}
