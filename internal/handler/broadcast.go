package handler

import (
	"github.com/civforge/server/internal/core/ecs"
	"github.com/civforge/server/internal/core/event"
	"github.com/civforge/server/internal/net/packet"
	"github.com/civforge/server/internal/world"
)

// terrainHidden marks a tile the receiving player has never seen.
const terrainHidden = 0xFF

const (
	tileForested = 1 << iota
	tileHilled
)

// BuildGlobalPacket serializes the turn, era and player roster.
func BuildGlobalPacket(s *world.State) []byte {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_GLOBAL)
	w.WriteD(int32(s.Turn))
	w.WriteC(byte(s.Era))
	handles := s.Players.Handles()
	w.WriteC(byte(len(handles)))
	for _, h := range handles {
		p, _ := s.Players.Get(h)
		w.WriteQ(uint64(h))
		w.WriteS(p.Name)
		w.WriteS(p.Civ)
		w.WriteBool(p.Human)
		w.WriteBool(p.Defeated)
		w.WriteD(int32(p.Score))
	}
	return w.Bytes()
}

// maxChunk bounds a grid snapshot packet so it fits in one frame with room
// for the chunk header.
const maxChunk = 60000

// rowChunks splits a per-row grid encoding into packets of whole rows:
//
//	opcode width u16 height u16 firstRow u16 rowCount u16 rows...
func rowChunks(opcode byte, g *world.Grid, writeRow func(w *packet.Writer, y int)) [][]byte {
	var out [][]byte
	var rows [][]byte
	first, size := 0, 0
	flush := func() {
		w := packet.NewWriterWithOpcode(opcode)
		w.WriteH(uint16(g.Width))
		w.WriteH(uint16(g.Height))
		w.WriteH(uint16(first))
		w.WriteH(uint16(len(rows)))
		for _, r := range rows {
			w.WriteBytes(r)
		}
		out = append(out, w.Bytes())
		first += len(rows)
		rows, size = nil, 0
	}
	for y := 0; y < g.Height; y++ {
		rw := packet.NewWriter()
		writeRow(rw, y)
		if len(rows) > 0 && size+rw.Len() > maxChunk {
			flush()
		}
		rows = append(rows, rw.Bytes())
		size += rw.Len()
	}
	if len(rows) > 0 || len(out) == 0 {
		flush()
	}
	return out
}

// BuildTilesPackets serializes the whole grid as seen by viewer, split into
// row ranges. Tiles the viewer never saw are sent as hidden.
func BuildTilesPackets(s *world.State, viewer ecs.Handle) [][]byte {
	pl, _ := s.Players.Get(viewer)
	g := s.Grid
	return rowChunks(packet.S_OPCODE_TILES, g, func(w *packet.Writer, y int) {
		for x := 0; x < g.Width; x++ {
			i := y*g.Width + x
			writeTile(w, &g.Tiles[i], seen(pl, i))
		}
	})
}

// BuildTilePacket serializes a single tile delta.
func BuildTilePacket(s *world.State, viewer ecs.Handle, p world.Pos) []byte {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_TILE)
	writePos(w, p)
	pl, _ := s.Players.Get(viewer)
	writeTile(w, s.Grid.MustAt(p), seen(pl, s.Grid.Index(p)))
	return w.Bytes()
}

func seen(pl *world.Player, i int) bool {
	return pl == nil || pl.SeenAt(i) != world.Hidden
}

func writeTile(w *packet.Writer, t *world.Tile, visible bool) {
	if !visible {
		w.WriteC(terrainHidden)
		return
	}
	w.WriteC(byte(t.Terrain))
	var flags byte
	if t.Forested {
		flags |= tileForested
	}
	if t.Hilled {
		flags |= tileHilled
	}
	w.WriteC(flags)
	w.WriteS(t.Resource)
	w.WriteC(byte(len(t.Improvements)))
	for _, imp := range t.Improvements {
		w.WriteS(imp)
	}
	w.WriteQ(uint64(t.Owner))
}

// BuildVisibilityPackets serializes one player's fog-of-war map in the same
// row-range layout as the tile snapshot.
func BuildVisibilityPackets(s *world.State, player ecs.Handle) [][]byte {
	pl, ok := s.Players.Get(player)
	g := s.Grid
	return rowChunks(packet.S_OPCODE_VISIBILITY, g, func(w *packet.Writer, y int) {
		for x := 0; x < g.Width; x++ {
			v := world.Hidden
			if ok {
				v = pl.SeenAt(y*g.Width + x)
			}
			w.WriteC(byte(v))
		}
	})
}

// BuildUnitPacket serializes one unit.
func BuildUnitPacket(h ecs.Handle, u *world.Unit) []byte {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_UNIT)
	w.WriteQ(uint64(h))
	w.WriteS(u.Kind)
	w.WriteQ(uint64(u.Owner))
	writePos(w, u.Pos)
	w.WriteRatio(u.Health)
	w.WriteC(byte(u.Moves))
	w.WriteBool(u.Fortified)
	w.WriteBool(u.Skipping)
	w.WriteQ(uint64(u.Carrier))
	w.WriteS(world.CapabilityName(u.Ability))
	switch c := u.Ability.(type) {
	case *world.Worker:
		if c.Task != nil {
			w.WriteS(c.Task.Improvement)
			w.WriteC(byte(c.Task.TurnsLeft))
		} else {
			w.WriteS("")
			w.WriteC(0)
		}
	case *world.Cargo:
		w.WriteC(byte(len(c.Units)))
		for _, p := range c.Units {
			w.WriteQ(uint64(p))
		}
	}
	return w.Bytes()
}

func BuildUnitRemovedPacket(h ecs.Handle) []byte {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_UNIT_REMOVED)
	w.WriteQ(uint64(h))
	return w.Bytes()
}

func BuildCityRemovedPacket(h ecs.Handle) []byte {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_CITY_REMOVED)
	w.WriteQ(uint64(h))
	return w.Bytes()
}

// BuildCityPacket serializes one city. Production and resource details are
// only included for the owner.
func BuildCityPacket(h ecs.Handle, c *world.City, viewer ecs.Handle) []byte {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_CITY)
	w.WriteQ(uint64(h))
	w.WriteS(c.Name)
	w.WriteQ(uint64(c.Owner))
	writePos(w, c.Pos)
	w.WriteH(uint16(c.Population))
	w.WriteC(byte(c.CultureLevel()))
	owner := viewer == c.Owner
	w.WriteBool(owner)
	if !owner {
		return w.Bytes()
	}
	w.WriteH(uint16(c.Food))
	w.WriteH(uint16(c.GrowthThreshold()))
	if c.Build != nil {
		w.WriteC(byte(c.Build.Kind))
		w.WriteS(c.Build.ID)
		w.WriteH(uint16(c.Build.Progress))
		w.WriteH(uint16(c.Build.Cost))
	} else {
		w.WriteC(0xFF)
	}
	w.WriteC(byte(len(c.Buildings)))
	for _, b := range c.Buildings {
		w.WriteS(b)
	}
	w.WriteC(byte(len(c.Resources)))
	for _, r := range c.Resources {
		w.WriteS(r)
	}
	w.WriteC(byte(len(c.Worked)))
	for _, p := range c.Worked {
		writePos(w, p)
	}
	w.WriteH(uint16(c.Yield.Food))
	w.WriteH(uint16(c.Yield.Production))
	w.WriteH(uint16(c.Yield.Commerce))
	w.WriteC(byte(c.Happy))
	w.WriteC(byte(c.Unhappy))
	return w.Bytes()
}

// BuildPlayerPacket serializes a player's private state for its owner.
func BuildPlayerPacket(h ecs.Handle, p *world.Player) []byte {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_PLAYER)
	w.WriteQ(uint64(h))
	w.WriteD(int32(p.Gold))
	w.WriteC(byte(p.TaxRate))
	w.WriteD(int32(p.Revenue))
	w.WriteD(int32(p.Expenses))
	w.WriteD(int32(p.Science))
	w.WriteS(p.Research.Tech)
	w.WriteH(uint16(p.Research.Progress))
	techs := sortedKeys(p.Techs)
	w.WriteC(byte(len(techs)))
	for _, t := range techs {
		w.WriteS(t)
	}
	wars := world.SortedHandles(warSet(p.AtWar))
	w.WriteC(byte(len(wars)))
	for _, o := range wars {
		w.WriteQ(uint64(o))
	}
	w.WriteQ(uint64(p.Capital))
	w.WriteD(int32(p.Score))
	return w.Bytes()
}

// BuildCombatPacket summarizes a finished engagement.
func BuildCombatPacket(ev event.CombatResolved) []byte {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_COMBAT)
	w.WriteQ(uint64(ev.Attacker))
	w.WriteQ(uint64(ev.Defender))
	w.WriteBool(ev.AttackerWon)
	w.WriteH(uint16(ev.Rounds))
	w.WriteRatio(ev.AttackerHealth)
	w.WriteRatio(ev.DefenderHealth)
	w.WriteC(byte(ev.CollateralHits))
	w.WriteD(int32(ev.X))
	w.WriteD(int32(ev.Y))
	return w.Bytes()
}

// BuildPathPacket answers a compute-path request.
func BuildPathPacket(unit ecs.Handle, path world.Path) []byte {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_PATH)
	w.WriteQ(uint64(unit))
	w.WriteH(uint16(path.Len()))
	for _, p := range path.Points {
		writePos(w, p)
	}
	return w.Bytes()
}

// BuildRejectedPacket tells the client a command was refused.
func BuildRejectedPacket(opcode byte, reason string) []byte {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_REJECTED)
	w.WriteC(opcode)
	w.WriteS(reason)
	return w.Bytes()
}

func warSet(m map[ecs.Handle]bool) map[ecs.Handle]struct{} {
	out := make(map[ecs.Handle]struct{}, len(m))
	for h, v := range m {
		if v {
			out[h] = struct{}{}
		}
	}
	return out
}
