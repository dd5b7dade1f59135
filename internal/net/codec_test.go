package net

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/civforge/server/internal/net/packet"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payloads := [][]byte{{0x01}, []byte("hello"), bytes.Repeat([]byte{7}, 4000)}
	for _, p := range payloads {
		if err := WriteFrame(&buf, p); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	for i, want := range payloads {
		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame %d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("frame %d = %d bytes, want %d", i, len(got), len(want))
		}
	}
	if _, err := ReadFrame(&buf); err == nil {
		t.Fatalf("ReadFrame on empty buffer should fail")
	}
}

func TestWriteFrameLimit(t *testing.T) {
	var buf bytes.Buffer
	full := bytes.Repeat([]byte{0xAB}, MaxPayload)
	if err := WriteFrame(&buf, full); err != nil {
		t.Fatalf("WriteFrame at limit: %v", err)
	}
	got, err := ReadFrame(&buf)
	if err != nil || !bytes.Equal(got, full) {
		t.Fatalf("ReadFrame at limit: %d bytes, err %v", len(got), err)
	}

	err = WriteFrame(&buf, make([]byte, MaxPayload+1))
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("oversize err = %v, want ErrFrameTooLarge", err)
	}
	if err := WriteFrame(&buf, nil); err == nil {
		t.Fatalf("empty payload accepted")
	}
	if buf.Len() != 0 {
		t.Fatalf("refused frames wrote %d bytes", buf.Len())
	}
}

func TestReadFrameRejectsBadLength(t *testing.T) {
	cases := []struct {
		name string
		raw  []byte
	}{
		{"empty payload", []byte{2, 0}},
		{"shorter than header", []byte{1, 0}},
		{"truncated payload", []byte{10, 0, 1, 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ReadFrame(bytes.NewReader(tc.raw)); err == nil {
				t.Fatalf("ReadFrame(%v) should fail", tc.raw)
			}
		})
	}
}

func TestWriterReader(t *testing.T) {
	w := packet.NewWriterWithOpcode(packet.C_OPCODE_JOIN)
	w.WriteC(3)
	w.WriteH(0xBEEF)
	w.WriteD(-42)
	w.WriteQ(1<<40 | 9)
	w.WriteS("Re\u0301mi")
	w.WriteBool(true)

	r := packet.NewReader(w.Bytes())
	if r.Opcode() != packet.C_OPCODE_JOIN {
		t.Fatalf("opcode = %d", r.Opcode())
	}
	if v := r.ReadC(); v != 3 {
		t.Fatalf("ReadC = %d", v)
	}
	if v := r.ReadH(); v != 0xBEEF {
		t.Fatalf("ReadH = %x", v)
	}
	if v := r.ReadD(); v != -42 {
		t.Fatalf("ReadD = %d", v)
	}
	if v := r.ReadQ(); v != 1<<40|9 {
		t.Fatalf("ReadQ = %d", v)
	}
	if v := r.ReadS(); v != "R\u00e9mi" {
		t.Fatalf("ReadS = %q, want NFC form", v)
	}
	if v := r.ReadC(); v != 1 {
		t.Fatalf("bool byte = %d", v)
	}
	if err := r.Err(); err != nil {
		t.Fatalf("Err = %v", err)
	}
	r.ReadD()
	if r.Err() == nil {
		t.Fatalf("read past end should set Err")
	}
}

// startSession consumes the version announcement so Start returns.
func startSession(t *testing.T, limiter *rate.Limiter) (*Session, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() { client.Close() })
	sess := NewSession(server, 1, 4, 4, limiter, zap.NewNop())

	version := make(chan []byte, 1)
	go func() {
		b, _ := ReadFrame(client)
		version <- b
	}()
	sess.Start()
	b := <-version
	if len(b) != 3 || b[0] != packet.S_OPCODE_VERSION {
		t.Fatalf("version frame = %v", b)
	}
	if v := binary.LittleEndian.Uint16(b[1:]); v != packet.ProtocolVersion {
		t.Fatalf("protocol = %d, want %d", v, packet.ProtocolVersion)
	}
	return sess, client
}

func TestSessionQueuesFrames(t *testing.T) {
	sess, client := startSession(t, nil)
	defer sess.Close()

	if err := WriteFrame(client, []byte{packet.C_OPCODE_END_TURN}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	select {
	case got := <-sess.InQueue:
		if len(got) != 1 || got[0] != packet.C_OPCODE_END_TURN {
			t.Fatalf("queued %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("frame never reached InQueue")
	}

	w := packet.NewWriterWithOpcode(packet.S_OPCODE_REJECTED)
	w.WriteS("no")
	sess.Send(w.Bytes())
	sess.FlushOutput()
	got, err := ReadFrame(client)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, w.Bytes()) {
		t.Fatalf("client got %v, want %v", got, w.Bytes())
	}
}

func TestSessionRateLimitDisconnects(t *testing.T) {
	sess, client := startSession(t, rate.NewLimiter(rate.Every(time.Hour), 1))

	if err := WriteFrame(client, []byte{packet.C_OPCODE_END_TURN}); err != nil {
		t.Fatalf("first frame: %v", err)
	}
	<-sess.InQueue
	WriteFrame(client, []byte{packet.C_OPCODE_END_TURN})

	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("session not closed after exceeding the rate")
	}
	if !sess.IsClosed() {
		t.Fatalf("IsClosed = false")
	}
}

func TestSessionDropsOversizePacket(t *testing.T) {
	sess, client := startSession(t, nil)
	defer sess.Close()

	big := make([]byte, MaxPayload+10)
	big[0] = packet.S_OPCODE_TILES
	small := []byte{packet.S_OPCODE_GLOBAL, 1}
	sess.Send(big)
	sess.Send(small)
	sess.FlushOutput()

	got, err := ReadFrame(client)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, small) {
		t.Fatalf("client got %d bytes, want the packet after the dropped one", len(got))
	}
	if sess.IsClosed() {
		t.Fatalf("session closed by an oversize packet")
	}
}
