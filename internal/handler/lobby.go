package handler

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/civforge/server/internal/core/ecs"
	"github.com/civforge/server/internal/net"
	"github.com/civforge/server/internal/net/packet"
)

// Lobby binds network sessions to human player slots and tracks who has
// ended the turn. Game loop goroutine only.
type Lobby struct {
	disp      *Dispatcher
	bySession map[uint64]ecs.Handle
	sessions  map[ecs.Handle]*net.Session
	ended     map[ecs.Handle]bool
	log       *zap.Logger
}

func NewLobby(disp *Dispatcher, log *zap.Logger) *Lobby {
	return &Lobby{
		disp:      disp,
		bySession: make(map[uint64]ecs.Handle),
		sessions:  make(map[ecs.Handle]*net.Session),
		ended:     make(map[ecs.Handle]bool),
		log:       log,
	}
}

// Join binds sess to a human slot by index. The username must match the
// slot when the slot was named at game creation.
func (l *Lobby) Join(sess *net.Session, name string, slot int) (ecs.Handle, error) {
	s := l.disp.deps.State
	for _, ls := range s.Slots {
		if ls.Slot != slot {
			continue
		}
		if !ls.Human {
			return ecs.Nil, reject("slot %d is AI-controlled", slot)
		}
		if ls.Name != "" && ls.Name != name {
			return ecs.Nil, reject("slot %d belongs to %s", slot, ls.Name)
		}
		if _, taken := l.sessions[ls.Player]; taken {
			return ecs.Nil, reject("slot %d already joined", slot)
		}
		l.bySession[sess.ID] = ls.Player
		l.sessions[ls.Player] = sess
		sess.Name = name
		l.log.Info("player joined", zap.String("name", name), zap.Int("slot", slot))
		return ls.Player, nil
	}
	return ecs.Nil, reject("no slot %d", slot)
}

// Leave unbinds a session. The player stays in the game.
func (l *Lobby) Leave(sessionID uint64) {
	p, ok := l.bySession[sessionID]
	if !ok {
		return
	}
	delete(l.bySession, sessionID)
	delete(l.sessions, p)
	delete(l.ended, p)
}

// PlayerOf returns the player bound to a session.
func (l *Lobby) PlayerOf(sessionID uint64) (ecs.Handle, bool) {
	p, ok := l.bySession[sessionID]
	return p, ok
}

// Session returns the connection of a player, if connected.
func (l *Lobby) Session(player ecs.Handle) (*net.Session, bool) {
	sess, ok := l.sessions[player]
	return sess, ok
}

// Connected lists joined players in handle order.
func (l *Lobby) Connected() []ecs.Handle {
	out := make([]ecs.Handle, 0, len(l.sessions))
	for p := range l.sessions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// EndTurn records that a player is done for this turn.
func (l *Lobby) EndTurn(player ecs.Handle) { l.ended[player] = true }

// ReadyToAdvance reports whether every connected player ended the turn.
func (l *Lobby) ReadyToAdvance() bool {
	if len(l.sessions) == 0 {
		return false
	}
	for p := range l.sessions {
		if !l.ended[p] {
			return false
		}
	}
	return true
}

// ResetTurn clears end-turn flags after a turn has run.
func (l *Lobby) ResetTurn() {
	l.ended = make(map[ecs.Handle]bool)
}

// Broadcast sends data to every connected player.
func (l *Lobby) Broadcast(data []byte) {
	for _, sess := range l.sessions {
		sess.Send(data)
	}
}

// SendTo sends data to one player if connected.
func (l *Lobby) SendTo(player ecs.Handle, data []byte) {
	if sess, ok := l.sessions[player]; ok {
		sess.Send(data)
	}
}

// Flush pushes buffered output of every session to its writer goroutine.
func (l *Lobby) Flush() {
	for _, sess := range l.sessions {
		sess.FlushOutput()
	}
}

// RegisterAll registers every client packet handler.
func RegisterAll(reg *packet.Registry, lobby *Lobby) {
	reg.Register(packet.C_OPCODE_VERSION,
		[]packet.SessionState{packet.StateHandshake},
		func(sess any, r *packet.Reader) error {
			return handleVersion(sess.(*net.Session), r)
		},
	)
	reg.Register(packet.C_OPCODE_JOIN,
		[]packet.SessionState{packet.StateVersionOK},
		func(sess any, r *packet.Reader) error {
			return lobby.handleJoin(sess.(*net.Session), r)
		},
	)

	inGame := []packet.SessionState{packet.StateInGame}
	for _, op := range []byte{
		packet.C_OPCODE_COMPUTE_PATH,
		packet.C_OPCODE_MOVE_UNITS,
		packet.C_OPCODE_SET_BUILD,
		packet.C_OPCODE_SET_RESEARCH,
		packet.C_OPCODE_SET_ECONOMY,
		packet.C_OPCODE_UNIT_ACTION,
		packet.C_OPCODE_DIPLOMACY,
		packet.C_OPCODE_WORKED_TILES,
	} {
		op := op
		reg.Register(op, inGame, func(sess any, r *packet.Reader) error {
			return lobby.handleCommand(sess.(*net.Session), op, r)
		})
	}
	reg.Register(packet.C_OPCODE_END_TURN, inGame,
		func(sess any, r *packet.Reader) error {
			if p, ok := lobby.PlayerOf(sess.(*net.Session).ID); ok {
				lobby.EndTurn(p)
			}
			return nil
		},
	)
	reg.Register(packet.C_OPCODE_QUIT, inGame,
		func(sess any, r *packet.Reader) error {
			s := sess.(*net.Session)
			lobby.Leave(s.ID)
			s.Close()
			return nil
		},
	)
}

func handleVersion(sess *net.Session, r *packet.Reader) error {
	v := r.ReadH()
	if err := r.Err(); err != nil {
		return err
	}
	if v != packet.ProtocolVersion {
		sess.Send(BuildRejectedPacket(packet.C_OPCODE_VERSION, fmt.Sprintf("protocol %d, want %d", v, packet.ProtocolVersion)))
		return fmt.Errorf("protocol version %d", v)
	}
	sess.SetState(packet.StateVersionOK)
	return nil
}

func (l *Lobby) handleJoin(sess *net.Session, r *packet.Reader) error {
	name := r.ReadS()
	slot := int(r.ReadC())
	if err := r.Err(); err != nil {
		return err
	}
	player, err := l.Join(sess, name, slot)
	if err != nil {
		sess.Send(BuildRejectedPacket(packet.C_OPCODE_JOIN, err.Error()))
		return err
	}
	sess.SetState(packet.StateInGame)

	s := l.disp.deps.State
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_JOINED)
	w.WriteQ(uint64(player))
	w.WriteC(byte(slot))
	sess.Send(w.Bytes())
	sess.Send(BuildGlobalPacket(s))
	for _, b := range BuildTilesPackets(s, player) {
		sess.Send(b)
	}
	for _, b := range BuildVisibilityPackets(s, player) {
		sess.Send(b)
	}
	if p, ok := s.Players.Get(player); ok {
		sess.Send(BuildPlayerPacket(player, p))
	}
	for h, c := range s.Cities.All() {
		sess.Send(BuildCityPacket(h, c, player))
	}
	for h, u := range s.Units.All() {
		sess.Send(BuildUnitPacket(h, u))
	}
	return nil
}

// handleCommand decodes a command and queues it for the next drain. The
// reply goes back to the issuing session only.
func (l *Lobby) handleCommand(sess *net.Session, opcode byte, r *packet.Reader) error {
	player, ok := l.PlayerOf(sess.ID)
	if !ok {
		return fmt.Errorf("session %d not joined", sess.ID)
	}
	cmd, err := DecodeCommand(opcode, r)
	if err != nil {
		sess.Send(BuildRejectedPacket(opcode, err.Error()))
		return err
	}
	l.disp.Enqueue(player, cmd, func(res Result, err error) {
		if err != nil {
			sess.Send(BuildRejectedPacket(opcode, err.Error()))
			return
		}
		if cp, ok := cmd.(ComputePath); ok {
			sess.Send(BuildPathPacket(cp.Unit, res.Path))
		}
	})
	return nil
}
