package net

import (
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Server accepts TCP connections and creates Sessions.
// New/dead sessions are communicated to the game loop via channels.
type Server struct {
	listener net.Listener
	nextID   atomic.Uint64
	newConns chan *Session
	deadCh   chan uint64 // session IDs of dead sessions
	inSize   int
	outSize  int
	pktRate  rate.Limit
	pktBurst int
	readTO   time.Duration
	writeTO  time.Duration
	log      *zap.Logger
	closeCh  chan struct{}
}

// NewServer listens on bindAddr. pktRate limits packets per second per
// session, 0 disables the limit.
func NewServer(bindAddr string, inSize, outSize int, pktRate float64, pktBurst int, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		listener: ln,
		newConns: make(chan *Session, 64),
		deadCh:   make(chan uint64, 64),
		inSize:   inSize,
		outSize:  outSize,
		pktRate:  rate.Limit(pktRate),
		pktBurst: pktBurst,
		log:      log,
		closeCh:  make(chan struct{}),
	}
	return s, nil
}

// SetTimeouts applies to sessions accepted afterwards.
func (s *Server) SetTimeouts(read, write time.Duration) {
	s.readTO = read
	s.writeTO = write
}

// AcceptLoop runs in its own goroutine. It accepts connections, creates
// sessions, sends the version packet, and pushes them onto the newConns channel.
func (s *Server) AcceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return // server shutting down
			default:
			}
			s.log.Error("accept failed", zap.Error(err))
			continue
		}

		id := s.nextID.Add(1)
		var lim *rate.Limiter
		if s.pktRate > 0 {
			lim = rate.NewLimiter(s.pktRate, s.pktBurst)
		}
		sess := NewSession(conn, id, s.inSize, s.outSize, lim, s.log)
		sess.SetTimeouts(s.readTO, s.writeTO)
		sess.Start()

		s.log.Info("client connected", zap.Uint64("session", id), zap.String("ip", sess.IP))

		select {
		case s.newConns <- sess:
		default:
			s.log.Warn("connection queue full, rejecting")
			sess.Close()
		}
	}
}

// NewSessions returns the channel of newly connected sessions.
func (s *Server) NewSessions() <-chan *Session {
	return s.newConns
}

// NotifyDead reports a dead session ID to the game loop.
func (s *Server) NotifyDead(sessionID uint64) {
	select {
	case s.deadCh <- sessionID:
	default:
	}
}

// DeadSessions returns the channel of dead session IDs.
func (s *Server) DeadSessions() <-chan uint64 {
	return s.deadCh
}

// Shutdown stops accepting new connections.
func (s *Server) Shutdown() {
	close(s.closeCh)
	s.listener.Close()
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
