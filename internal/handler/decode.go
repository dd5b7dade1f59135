package handler

import (
	"fmt"

	"github.com/civforge/server/internal/core/ecs"
	"github.com/civforge/server/internal/net/packet"
	"github.com/civforge/server/internal/world"
)

const maxUnitsPerMove = 64

// DecodeCommand parses a client command packet. The reader is positioned
// after the opcode.
func DecodeCommand(opcode byte, r *packet.Reader) (Command, error) {
	var cmd Command
	switch opcode {
	case packet.C_OPCODE_COMPUTE_PATH:
		cmd = ComputePath{Unit: readHandle(r), Target: readPos(r)}
	case packet.C_OPCODE_MOVE_UNITS:
		n := int(r.ReadC())
		if n > maxUnitsPerMove {
			return nil, fmt.Errorf("move of %d units exceeds %d", n, maxUnitsPerMove)
		}
		units := make([]ecs.Handle, 0, n)
		for i := 0; i < n; i++ {
			units = append(units, readHandle(r))
		}
		cmd = MoveUnits{Units: units, Target: readPos(r)}
	case packet.C_OPCODE_SET_BUILD:
		cmd = SetBuild{City: readHandle(r), Kind: world.BuildKind(r.ReadC()), ID: r.ReadS()}
	case packet.C_OPCODE_SET_RESEARCH:
		cmd = SetResearch{Tech: r.ReadS()}
	case packet.C_OPCODE_SET_ECONOMY:
		cmd = SetEconomy{TaxRate: int(r.ReadC())}
	case packet.C_OPCODE_UNIT_ACTION:
		cmd = UnitAction{
			Unit:        readHandle(r),
			Action:      Action(r.ReadC()),
			Improvement: r.ReadS(),
			Transport:   readHandle(r),
			Name:        r.ReadS(),
		}
	case packet.C_OPCODE_DIPLOMACY:
		cmd = Diplomacy{Other: readHandle(r), War: r.ReadC() != 0}
	case packet.C_OPCODE_WORKED_TILES:
		c := SetWorkedTiles{City: readHandle(r)}
		n := int(r.ReadC())
		for i := 0; i < n; i++ {
			c.Tiles = append(c.Tiles, readPos(r))
		}
		cmd = c
	default:
		return nil, fmt.Errorf("opcode %d is not a command", opcode)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// EncodeCommand is the inverse of DecodeCommand, used by clients and tools.
func EncodeCommand(cmd Command) []byte {
	var w *packet.Writer
	switch c := cmd.(type) {
	case ComputePath:
		w = packet.NewWriterWithOpcode(packet.C_OPCODE_COMPUTE_PATH)
		w.WriteQ(uint64(c.Unit))
		writePos(w, c.Target)
	case MoveUnits:
		w = packet.NewWriterWithOpcode(packet.C_OPCODE_MOVE_UNITS)
		w.WriteC(byte(len(c.Units)))
		for _, u := range c.Units {
			w.WriteQ(uint64(u))
		}
		writePos(w, c.Target)
	case SetBuild:
		w = packet.NewWriterWithOpcode(packet.C_OPCODE_SET_BUILD)
		w.WriteQ(uint64(c.City))
		w.WriteC(byte(c.Kind))
		w.WriteS(c.ID)
	case SetResearch:
		w = packet.NewWriterWithOpcode(packet.C_OPCODE_SET_RESEARCH)
		w.WriteS(c.Tech)
	case SetEconomy:
		w = packet.NewWriterWithOpcode(packet.C_OPCODE_SET_ECONOMY)
		w.WriteC(byte(c.TaxRate))
	case UnitAction:
		w = packet.NewWriterWithOpcode(packet.C_OPCODE_UNIT_ACTION)
		w.WriteQ(uint64(c.Unit))
		w.WriteC(byte(c.Action))
		w.WriteS(c.Improvement)
		w.WriteQ(uint64(c.Transport))
		w.WriteS(c.Name)
	case Diplomacy:
		w = packet.NewWriterWithOpcode(packet.C_OPCODE_DIPLOMACY)
		w.WriteQ(uint64(c.Other))
		w.WriteBool(c.War)
	case SetWorkedTiles:
		w = packet.NewWriterWithOpcode(packet.C_OPCODE_WORKED_TILES)
		w.WriteQ(uint64(c.City))
		w.WriteC(byte(len(c.Tiles)))
		for _, p := range c.Tiles {
			writePos(w, p)
		}
	default:
		return nil
	}
	return w.Bytes()
}

func readHandle(r *packet.Reader) ecs.Handle {
	return ecs.Handle(r.ReadQ())
}

func readPos(r *packet.Reader) world.Pos {
	x := int(r.ReadD())
	y := int(r.ReadD())
	return world.Pos{X: x, Y: y}
}

func writePos(w *packet.Writer, p world.Pos) {
	w.WriteD(int32(p.X))
	w.WriteD(int32(p.Y))
}
