package packet

import "errors"

var ErrShortPacket = errors.New("packet truncated")

// Client opcodes.
const (
	C_OPCODE_VERSION      byte = 1
	C_OPCODE_JOIN         byte = 2
	C_OPCODE_COMPUTE_PATH byte = 10
	C_OPCODE_MOVE_UNITS   byte = 11
	C_OPCODE_SET_BUILD    byte = 12
	C_OPCODE_SET_RESEARCH byte = 13
	C_OPCODE_SET_ECONOMY  byte = 14
	C_OPCODE_UNIT_ACTION  byte = 15
	C_OPCODE_DIPLOMACY    byte = 16
	C_OPCODE_WORKED_TILES byte = 17
	C_OPCODE_END_TURN     byte = 18
	C_OPCODE_QUIT         byte = 19
)

// Server opcodes.
const (
	S_OPCODE_VERSION      byte = 101
	S_OPCODE_JOINED       byte = 102
	S_OPCODE_GLOBAL       byte = 103
	S_OPCODE_TILES        byte = 104
	S_OPCODE_VISIBILITY   byte = 105
	S_OPCODE_UNIT         byte = 106
	S_OPCODE_UNIT_REMOVED byte = 107
	S_OPCODE_CITY         byte = 108
	S_OPCODE_PLAYER       byte = 109
	S_OPCODE_COMBAT       byte = 110
	S_OPCODE_PATH         byte = 111
	S_OPCODE_REJECTED     byte = 112
	S_OPCODE_TILE         byte = 113
	S_OPCODE_CITY_REMOVED byte = 114
)

// ProtocolVersion is checked during the handshake.
const ProtocolVersion = 3
