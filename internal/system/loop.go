package system

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	coresys "github.com/civforge/server/internal/core/system"
	"github.com/civforge/server/internal/handler"
	"github.com/civforge/server/internal/net"
	"github.com/civforge/server/internal/net/packet"
)

// LoopConfig tunes the game loop.
type LoopConfig struct {
	Interval    time.Duration // pause between cycles
	MaxPerCycle int           // packets drained per session per cycle
	TurnTimeout time.Duration // 0 waits for every connected human
}

// Loop is the single goroutine that owns the game state. Each cycle it
// accepts sessions, drains their packets, runs queued commands, advances
// the turn when everyone is done and replicates what changed.
type Loop struct {
	server   *net.Server // nil when sessions are added by hand
	registry *packet.Registry
	lobby    *handler.Lobby
	disp     *handler.Dispatcher
	sched    *Scheduler
	autosave *Autosave // nil disables saving
	sessions map[uint64]*net.Session
	cfg      LoopConfig
	started  time.Time // when the current turn began
	log      *zap.Logger
}

func NewLoop(server *net.Server, registry *packet.Registry, lobby *handler.Lobby, disp *handler.Dispatcher, sched *Scheduler, autosave *Autosave, cfg LoopConfig) *Loop {
	if cfg.MaxPerCycle < 1 {
		cfg.MaxPerCycle = 1
	}
	return &Loop{
		server:   server,
		registry: registry,
		lobby:    lobby,
		disp:     disp,
		sched:    sched,
		autosave: autosave,
		sessions: make(map[uint64]*net.Session),
		cfg:      cfg,
		started:  time.Now(),
		log:      disp.Deps().Log,
	}
}

// AddSession registers a session accepted outside the server.
func (l *Loop) AddSession(sess *net.Session) {
	l.sessions[sess.ID] = sess
}

// Run cycles until ctx is done, then writes a final save.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return l.shutdown()
		case now := <-ticker.C:
			l.Cycle(now)
		}
	}
}

func (l *Loop) shutdown() error {
	for _, sess := range l.sessions {
		sess.FlushOutput()
		sess.Close()
	}
	if l.autosave == nil {
		return nil
	}
	return l.autosave.SaveNow()
}

// Cycle runs one loop iteration.
func (l *Loop) Cycle(now time.Time) {
	l.acceptSessions()
	l.drainSessions()
	l.disp.Drain()

	if l.shouldAdvance(now) {
		if err := l.sched.AdvanceTurn(); err != nil {
			if !errors.Is(err, coresys.ErrTurnInProgress) {
				l.log.Error("turn failed", zap.Error(err))
			}
		} else {
			l.lobby.ResetTurn()
			l.started = now
			if l.autosave != nil {
				l.autosave.AfterTurn()
			}
		}
	}

	d := l.disp.Deps()
	d.Ctx.Bus.Flush()
	l.lobby.Replicate(d.State, d.Ctx.Dirty)
	l.lobby.Flush()
}

func (l *Loop) shouldAdvance(now time.Time) bool {
	if l.lobby.ReadyToAdvance() {
		return true
	}
	if !l.hasHumans() {
		return true
	}
	return l.cfg.TurnTimeout > 0 && len(l.lobby.Connected()) > 0 && now.Sub(l.started) >= l.cfg.TurnTimeout
}

func (l *Loop) hasHumans() bool {
	st := l.disp.Deps().State
	for _, ls := range st.Slots {
		if !ls.Human {
			continue
		}
		if p, ok := st.Players.Get(ls.Player); ok && !p.Defeated {
			return true
		}
	}
	return false
}

func (l *Loop) acceptSessions() {
	if l.server == nil {
		return
	}
	for {
		select {
		case sess := <-l.server.NewSessions():
			l.sessions[sess.ID] = sess
		case id := <-l.server.DeadSessions():
			l.drop(id)
		default:
			return
		}
	}
}

func (l *Loop) drainSessions() {
	for id, sess := range l.sessions {
		l.drainOne(sess)
		if sess.IsClosed() {
			sess.FlushOutput()
			l.drop(id)
			if l.server != nil {
				l.server.NotifyDead(id)
			}
		}
	}
}

// drainOne dispatches up to MaxPerCycle packets from one session. Packets a
// closing session sent before disconnecting are still handled.
func (l *Loop) drainOne(sess *net.Session) {
	for i := 0; i < l.cfg.MaxPerCycle; i++ {
		select {
		case data := <-sess.InQueue:
			if err := l.registry.Dispatch(sess, sess.State(), data); err != nil {
				l.log.Debug("packet dispatch error",
					zap.Uint64("session", sess.ID),
					zap.Error(err),
				)
			}
		default:
			return
		}
	}
}

func (l *Loop) drop(id uint64) {
	if _, ok := l.sessions[id]; !ok {
		return
	}
	l.lobby.Leave(id)
	delete(l.sessions, id)
	l.log.Info("session removed", zap.Uint64("session", id))
}
