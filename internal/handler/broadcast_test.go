package handler_test

import (
	"bytes"
	"testing"

	"github.com/civforge/server/internal/core/ecs"
	"github.com/civforge/server/internal/handler"
	"github.com/civforge/server/internal/net"
	"github.com/civforge/server/internal/net/packet"
	"github.com/civforge/server/internal/world"
	"github.com/civforge/server/internal/world/worldtest"
)

// readChunk parses a grid snapshot chunk header.
func readChunk(t *testing.T, b []byte, opcode byte) (*packet.Reader, int, int) {
	t.Helper()
	r := packet.NewReader(b)
	if r.Opcode() != opcode {
		t.Fatalf("opcode = %d, want %d", r.Opcode(), opcode)
	}
	r.ReadH()
	r.ReadH()
	first := int(r.ReadH())
	rows := int(r.ReadH())
	return r, first, rows
}

func TestLargeGridSnapshotFitsFrames(t *testing.T) {
	s, _ := worldtest.New(world.MaxMapSide, 200)
	for i := range s.Grid.Tiles {
		tile := &s.Grid.Tiles[i]
		if i%3 == 0 {
			tile.Resource = "incense"
		}
		if i%5 == 0 {
			tile.Improvements = []string{"road", "farm"}
		}
	}

	chunks := handler.BuildTilesPackets(s, ecs.Nil) // nil viewer sees everything
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want the grid split", len(chunks))
	}

	var stream bytes.Buffer
	for _, c := range chunks {
		if err := net.WriteFrame(&stream, c); err != nil {
			t.Fatalf("WriteFrame(%d bytes): %v", len(c), err)
		}
	}

	next, tiles := 0, 0
	for i, want := range chunks {
		got, err := net.ReadFrame(&stream)
		if err != nil {
			t.Fatalf("ReadFrame %d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("chunk %d differs after framing", i)
		}
		r, first, rows := readChunk(t, got, packet.S_OPCODE_TILES)
		if first != next {
			t.Fatalf("chunk %d starts at row %d, want %d", i, first, next)
		}
		next += rows
		for n := 0; n < rows*s.Grid.Width; n++ {
			want := &s.Grid.Tiles[tiles]
			if terrain := r.ReadC(); terrain != byte(want.Terrain) {
				t.Fatalf("tile %d terrain = %d", tiles, terrain)
			}
			r.ReadC()
			if res := r.ReadS(); res != want.Resource {
				t.Fatalf("tile %d resource = %q, want %q", tiles, res, want.Resource)
			}
			for k := int(r.ReadC()); k > 0; k-- {
				r.ReadS()
			}
			r.ReadQ()
			tiles++
		}
		if r.Remaining() != 0 || r.Err() != nil {
			t.Fatalf("chunk %d: %d bytes left, err %v", i, r.Remaining(), r.Err())
		}
	}
	if next != s.Grid.Height || tiles != len(s.Grid.Tiles) {
		t.Fatalf("covered %d rows and %d tiles", next, tiles)
	}
}

func TestVisibilitySnapshotRows(t *testing.T) {
	s, ctx := worldtest.New(world.MaxMapSide, world.MaxMapSide)
	a := worldtest.Player(s, ctx, "Alice", "rome")
	s.RevealAround(ctx, a, world.Pos{X: 3, Y: 3}, 2)

	chunks := handler.BuildVisibilityPackets(s, a)
	rows := 0
	for _, c := range chunks {
		if len(c) > net.MaxPayload {
			t.Fatalf("chunk of %d bytes exceeds a frame", len(c))
		}
		r, first, n := readChunk(t, c, packet.S_OPCODE_VISIBILITY)
		if first != rows {
			t.Fatalf("chunk starts at row %d, want %d", first, rows)
		}
		if r.Remaining() != n*s.Grid.Width {
			t.Fatalf("chunk carries %d bytes for %d rows", r.Remaining(), n)
		}
		rows += n
	}
	if rows != s.Grid.Height {
		t.Fatalf("covered %d rows, want %d", rows, s.Grid.Height)
	}
	first := chunks[0]
	if v := world.Visibility(first[9+3*s.Grid.Width+3]); v != world.Visible {
		t.Fatalf("revealed tile = %v, want visible", v)
	}
}
