// Package core implements the session protocol of the messenger server: the
// accept/dispatch event loop, the challenge–response handshake and the
// action router that relays envelopes between connected clients.
package core

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/gomessenger/internal/common"
	"github.com/dmitrijs2005/gomessenger/internal/logging"
	"github.com/dmitrijs2005/gomessenger/internal/proto"
	"github.com/dmitrijs2005/gomessenger/internal/server/registry"
	"github.com/dmitrijs2005/gomessenger/internal/server/users"
)

// handshakeTimeout bounds how long a pending connection may take to
// authenticate before it is retired.
const handshakeTimeout = 60 * time.Second

// maxMalformed is how many undecodable frames a connection may send before
// it is retired instead of answered with 400.
const maxMalformed = 3

type connState int

const (
	stateConnected connState = iota
	stateChallengeSent
	stateAuthenticated
)

// conn is the per-connection session state. After creation it is touched
// only by the dispatch goroutine.
type conn struct {
	id    string
	c     *proto.Conn
	state connState

	// name is set once the connection is authenticated.
	name string

	// handshake scratch: the claimed identity and the digest we expect.
	pendingName string
	pendingKey  string
	expected    []byte

	malformed int
	closed    bool
}

// event is one readiness notification: a decoded envelope or a read error
// from one connection.
type event struct {
	cl  *conn
	env proto.Envelope
	err error
}

// Server is the session core. All session and routing state is owned by the
// dispatch goroutine; other goroutines interact through channels.
type Server struct {
	addr     string
	maxFrame int
	b        proto.Builder
	store    users.Store
	reg      *registry.Registry
	log      logging.Logger

	handlers map[proto.Action]handlerFunc

	ln      net.Listener
	events  chan event
	joins   chan *conn
	refresh chan struct{}

	// live connections, authenticated or not; dispatch goroutine only
	conns map[*conn]struct{}
}

func NewServer(addr string, maxFrame int, keys proto.Keys, store users.Store, reg *registry.Registry, log logging.Logger) *Server {
	s := &Server{
		addr:     addr,
		maxFrame: maxFrame,
		b:        proto.NewBuilder(keys),
		store:    store,
		reg:      reg,
		log:      log.With("module", "core"),
		events:   make(chan event),
		joins:    make(chan *conn),
		refresh:  make(chan struct{}),
		conns:    make(map[*conn]struct{}),
	}
	s.handlers = s.buildHandlers()
	return s
}

// Listen opens the listening socket. Split from Serve so callers can learn
// the bound address before serving (tests bind port 0).
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	return nil
}

// Addr returns the bound listen address. Valid after Listen.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Run listens and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.Serve(ctx)
	return nil
}

// Serve accepts connections and dispatches their envelopes until ctx is
// cancelled. On cancellation it stops accepting and dispatching but does not
// close live sessions.
func (s *Server) Serve(ctx context.Context) {
	go s.acceptLoop(ctx)

	s.log.Info(ctx, "server started", "addr", s.ln.Addr().String())
	s.dispatch(ctx)
}

// BroadcastRefresh asks the dispatch goroutine to push a 205 envelope to
// every session, telling clients to re-fetch user and contact lists.
func (s *Server) BroadcastRefresh(ctx context.Context) {
	select {
	case s.refresh <- struct{}{}:
	case <-ctx.Done():
	}
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.ln.Close()

	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()

	for {
		nc, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			s.log.Error(ctx, "accept failed", "error", err)
			return
		}

		cl := &conn{
			id: uuid.NewString(),
			c:  proto.NewConn(nc, s.maxFrame),
		}
		// unauthenticated connections may not linger
		_ = cl.c.SetReadDeadline(time.Now().Add(handshakeTimeout))

		select {
		case s.joins <- cl:
		case <-ctx.Done():
			cl.c.Close()
			return
		}
	}
}

// readLoop feeds one connection's envelopes into the event channel, one at a
// time. The channel is unbuffered, so the next envelope is not read until
// the dispatcher has consumed the previous one: a chatty client cannot get
// more than one envelope per dispatch cycle.
func (s *Server) readLoop(ctx context.Context, cl *conn) {
	for {
		env, err := cl.c.Receive()

		select {
		case s.events <- event{cl: cl, env: env, err: err}:
		case <-ctx.Done():
			return
		}

		if err != nil && !errors.Is(err, common.ErrMalformedMessage) {
			// framing or connection is gone; the dispatcher retires us
			return
		}
	}
}

// dispatch is the single-threaded heart of the server: every handshake step
// and every routed envelope runs here, so no session state needs locking.
func (s *Server) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.log.Info(ctx, "server stopping", "sessions", s.reg.Len())
			return

		case cl := <-s.joins:
			s.conns[cl] = struct{}{}
			s.log.Debug(ctx, "connection accepted", "conn", cl.id, "peer", cl.c.RemoteAddr())
			go s.readLoop(ctx, cl)

		case <-s.refresh:
			s.broadcastRefresh(ctx)

		case ev := <-s.events:
			if ev.cl.closed {
				continue
			}
			s.handleEvent(ctx, ev)
		}
	}
}

func (s *Server) handleEvent(ctx context.Context, ev event) {
	cl := ev.cl

	if ev.err != nil {
		if errors.Is(ev.err, common.ErrMalformedMessage) {
			// before authentication a garbled frame ends the session: an
			// issued challenge must not survive for a later retry
			if cl.state == stateChallengeSent {
				cl.expected = nil
				s.rejectChallenge(ctx, cl, s.log.With("conn", cl.id))
				return
			}
			if cl.state != stateAuthenticated {
				s.reply(ctx, cl, s.b.BadRequest(proto.TextBadRequest))
				s.retire(ctx, cl)
				return
			}
			cl.malformed++
			s.log.Warn(ctx, "malformed envelope", "conn", cl.id, "count", cl.malformed)
			if cl.malformed >= maxMalformed {
				s.retire(ctx, cl)
				return
			}
			s.reply(ctx, cl, s.b.BadRequest(proto.TextBadRequest))
			return
		}
		// timeout of a pending handshake, reset, or oversized frame
		s.log.Debug(ctx, "connection failed", "conn", cl.id, "error", ev.err)
		s.retire(ctx, cl)
		return
	}

	if cl.state == stateAuthenticated {
		s.route(ctx, cl, ev.env)
		return
	}
	s.handshakeStep(ctx, cl, ev.env)
}

// reply sends a response envelope; a failed send retires the connection.
func (s *Server) reply(ctx context.Context, cl *conn, env proto.Envelope) {
	if err := cl.c.Send(env); err != nil {
		s.log.Debug(ctx, "send failed", "conn", cl.id, "error", err)
		s.retire(ctx, cl)
	}
}

// retire removes a connection from all tables and closes it. Safe to call
// more than once per connection.
func (s *Server) retire(ctx context.Context, cl *conn) {
	if cl.closed {
		return
	}
	cl.closed = true

	if cl.name != "" {
		s.reg.Unbind(ctx, cl.name)
		s.log.Info(ctx, "session closed", "user", cl.name)
	}
	delete(s.conns, cl)
	cl.c.Close()
}

// retireName retires the session currently bound to name, if any.
func (s *Server) retireName(ctx context.Context, name string) {
	target, ok := s.reg.Lookup(name)
	if !ok {
		return
	}
	for cl := range s.conns {
		if cl.c == target {
			s.retire(ctx, cl)
			return
		}
	}
	// connection not tracked (should not happen); unbind directly
	s.reg.Unbind(ctx, name)
	target.Close()
}

func (s *Server) broadcastRefresh(ctx context.Context) {
	for name, c := range s.reg.All() {
		if err := c.Send(s.b.Refresh()); err != nil {
			s.log.Debug(ctx, "refresh push failed", "user", name, "error", err)
			s.retireName(ctx, name)
		}
	}
}
