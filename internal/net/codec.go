package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frames carry a 2-byte little-endian length that counts itself, so the
// largest payload is 65535-2 bytes. Snapshot packets larger than that are
// split by their builders.
const (
	frameHeader = 2
	MaxPayload  = 0xFFFF - frameHeader
)

var ErrFrameTooLarge = errors.New("frame payload too large")

// ReadFrame reads one frame and returns its payload.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [frameHeader]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	total := int(binary.LittleEndian.Uint16(header[:]))
	n := total - frameHeader
	if n <= 0 {
		return nil, fmt.Errorf("invalid frame length: %d", total)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload (%d bytes): %w", n, err)
	}
	return payload, nil
}

// WriteFrame writes data as one frame with a single Write call. Empty or
// oversized payloads are refused before anything reaches w.
func WriteFrame(w io.Writer, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("write frame: empty payload")
	}
	if len(data) > MaxPayload {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrFrameTooLarge, len(data), MaxPayload)
	}
	buf := make([]byte, frameHeader+len(data))
	binary.LittleEndian.PutUint16(buf, uint16(len(buf)))
	copy(buf[frameHeader:], data)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
