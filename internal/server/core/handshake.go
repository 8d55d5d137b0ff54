package core

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/dmitrijs2005/gomessenger/internal/cryptox"
	"github.com/dmitrijs2005/gomessenger/internal/logging"
	"github.com/dmitrijs2005/gomessenger/internal/proto"
)

// newNonce is a test seam for deterministic handshake tests.
var newNonce = cryptox.NewNonce

// handshakeStep advances the per-connection authentication state machine:
//
//	connected --presence--> challenge-sent --511 digest--> authenticated
//
// Any failure after the presence claim ends in a 400 reply and a closed
// connection; a fresh TCP connection is required for another attempt.
func (s *Server) handshakeStep(ctx context.Context, cl *conn, env proto.Envelope) {
	switch cl.state {
	case stateConnected:
		s.handlePresence(ctx, cl, env)
	case stateChallengeSent:
		s.verifyChallenge(ctx, cl, env)
	}
}

func (s *Server) handlePresence(ctx context.Context, cl *conn, env proto.Envelope) {
	if s.b.Action(env) != proto.ActionPresence {
		// only presence is allowed before authentication
		s.reply(ctx, cl, s.b.BadRequest(proto.TextUnauthorized))
		return
	}

	name, pubkey, ok := s.b.PresenceUser(env)
	if !ok {
		s.reply(ctx, cl, s.b.BadRequest(proto.TextBadRequest))
		return
	}

	log := s.log.With("conn", cl.id, "user", name)
	log.Debug(ctx, "presence received")

	if s.reg.Bound(name) {
		log.Warn(ctx, "presence for a taken name")
		s.reply(ctx, cl, s.b.BadRequest(proto.TextNameTaken))
		s.retire(ctx, cl)
		return
	}

	known, err := s.store.CheckUser(ctx, name)
	if err != nil {
		log.Error(ctx, "store check failed", "error", err)
		s.reply(ctx, cl, s.b.BadRequest(proto.TextBadRequest))
		s.retire(ctx, cl)
		return
	}
	if !known {
		log.Warn(ctx, "presence for unregistered user")
		s.reply(ctx, cl, s.b.BadRequest(proto.TextUserNotRegistered))
		s.retire(ctx, cl)
		return
	}

	hash, err := s.store.GetPasswordHash(ctx, name)
	if err != nil {
		log.Error(ctx, "store hash lookup failed", "error", err)
		s.reply(ctx, cl, s.b.BadRequest(proto.TextBadRequest))
		s.retire(ctx, cl)
		return
	}

	nonce, err := newNonce()
	if err != nil {
		log.Error(ctx, "nonce generation failed", "error", err)
		s.retire(ctx, cl)
		return
	}

	cl.pendingName = name
	cl.pendingKey = pubkey
	cl.expected = cryptox.ChallengeDigest(hash, nonce)
	cl.state = stateChallengeSent

	s.reply(ctx, cl, s.b.AuthData(nonce))
}

func (s *Server) verifyChallenge(ctx context.Context, cl *conn, env proto.Envelope) {
	log := s.log.With("conn", cl.id, "user", cl.pendingName)

	// the challenge is single-use whatever the outcome
	expected := cl.expected
	cl.expected = nil

	code, ok := s.b.ResponseCode(env)
	if !ok || code != proto.CodeAuthData {
		s.rejectChallenge(ctx, cl, log)
		return
	}

	digest, err := base64.StdEncoding.DecodeString(s.b.Data(env))
	if err != nil {
		s.rejectChallenge(ctx, cl, log)
		return
	}

	if !cryptox.DigestsEqual(expected, digest) {
		s.rejectChallenge(ctx, cl, log)
		return
	}

	if err := s.reg.Bind(cl.pendingName, cl.c); err != nil {
		// name was claimed while the challenge was in flight
		log.Warn(ctx, "name bound during challenge")
		s.reply(ctx, cl, s.b.BadRequest(proto.TextNameTaken))
		s.retire(ctx, cl)
		return
	}

	cl.state = stateAuthenticated
	cl.name = cl.pendingName
	_ = cl.c.SetReadDeadline(time.Time{})

	host, port := cl.c.PeerHostPort()
	if err := s.store.Login(ctx, cl.name, host, port, cl.pendingKey); err != nil {
		// the session stays up; presence bookkeeping is best-effort
		log.Error(ctx, "login record failed", "error", err)
	}

	log.Info(ctx, "session authenticated", "peer", cl.c.RemoteAddr())
	s.reply(ctx, cl, s.b.OK())
}

func (s *Server) rejectChallenge(ctx context.Context, cl *conn, log logging.Logger) {
	log.Warn(ctx, "challenge failed")
	s.reply(ctx, cl, s.b.BadRequest(proto.TextWrongPassword))
	s.retire(ctx, cl)
}
