package persist

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pierrec/lz4/v4"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/crypto/blake2b"

	"github.com/civforge/server/internal/data"
	"github.com/civforge/server/internal/world"
)

// ErrMalformedSave covers every corrupt or truncated save.
var ErrMalformedSave = errors.New("malformed save")

const (
	HeaderSize  = 128
	SaveVersion = 1
	maxNameLen  = 80
)

var saveMagic = [4]byte{'C', 'I', 'V', 'S'}

// Header is the fixed-size prefix of a save file.
//
//	magic[4] version u16 reserved u16 turn u32 payload u32 blake2b-256[32] name[80]
type Header struct {
	Version  uint16
	Turn     uint32
	Payload  uint32
	Checksum [32]byte
	Name     string
}

func (h *Header) marshal() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], saveMagic[:])
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.Turn)
	binary.LittleEndian.PutUint32(buf[12:16], h.Payload)
	copy(buf[16:48], h.Checksum[:])
	copy(buf[48:], h.Name)
	return buf
}

// ReadHeader parses and validates the header without touching the body.
func ReadHeader(b []byte) (Header, error) {
	var h Header
	if len(b) < HeaderSize {
		return h, fmt.Errorf("%w: %d bytes, header needs %d", ErrMalformedSave, len(b), HeaderSize)
	}
	if !bytes.Equal(b[0:4], saveMagic[:]) {
		return h, fmt.Errorf("%w: bad magic %q", ErrMalformedSave, b[0:4])
	}
	h.Version = binary.LittleEndian.Uint16(b[4:6])
	if h.Version != SaveVersion {
		return h, fmt.Errorf("%w: version %d", ErrMalformedSave, h.Version)
	}
	h.Turn = binary.LittleEndian.Uint32(b[8:12])
	h.Payload = binary.LittleEndian.Uint32(b[12:16])
	copy(h.Checksum[:], b[16:48])
	h.Name = strings.TrimRight(string(b[48:HeaderSize]), "\x00")
	return h, nil
}

// Encode serializes the full game state under the given save name.
func Encode(s *world.State, name string) ([]byte, error) {
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	raw, err := bson.Marshal(takeSnapshot(s))
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	var body bytes.Buffer
	zw := lz4.NewWriter(&body)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}

	h := Header{
		Version:  SaveVersion,
		Turn:     uint32(s.Turn),
		Payload:  uint32(body.Len()),
		Checksum: blake2b.Sum256(body.Bytes()),
		Name:     name,
	}
	out := make([]byte, 0, HeaderSize+body.Len())
	out = append(out, h.marshal()...)
	return append(out, body.Bytes()...), nil
}

// Decode rebuilds a game state from a save. The returned state is brand new;
// on error nothing is returned.
func Decode(b []byte, cat *data.Catalog) (*world.State, Header, error) {
	h, err := ReadHeader(b)
	if err != nil {
		return nil, h, err
	}
	body := b[HeaderSize:]
	if uint32(len(body)) != h.Payload {
		return nil, h, fmt.Errorf("%w: payload %d bytes, header says %d", ErrMalformedSave, len(body), h.Payload)
	}
	if blake2b.Sum256(body) != h.Checksum {
		return nil, h, fmt.Errorf("%w: checksum mismatch", ErrMalformedSave)
	}

	raw, err := io.ReadAll(lz4.NewReader(bytes.NewReader(body)))
	if err != nil {
		return nil, h, fmt.Errorf("%w: decompress: %v", ErrMalformedSave, err)
	}
	var snap snapshot
	if err := bson.Unmarshal(raw, &snap); err != nil {
		return nil, h, fmt.Errorf("%w: decode: %v", ErrMalformedSave, err)
	}
	if uint32(snap.Turn) != h.Turn {
		return nil, h, fmt.Errorf("%w: header turn %d, body turn %d", ErrMalformedSave, h.Turn, snap.Turn)
	}
	s, err := restore(&snap, cat)
	if err != nil {
		return nil, h, err
	}
	return s, h, nil
}
