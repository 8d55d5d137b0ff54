package core

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gomessenger/internal/common"
	"github.com/dmitrijs2005/gomessenger/internal/proto"
)

type handlerFunc func(ctx context.Context, cl *conn, env proto.Envelope)

// buildHandlers resolves the action dispatch table once at startup. Adding
// an action means adding an enum value and one entry here.
func (s *Server) buildHandlers() map[proto.Action]handlerFunc {
	return map[proto.Action]handlerFunc{
		proto.ActionMessage:          s.handleMessage,
		proto.ActionExit:             s.handleExit,
		proto.ActionGetContacts:      s.handleGetContacts,
		proto.ActionAddContact:       s.handleAddContact,
		proto.ActionRemoveContact:    s.handleRemoveContact,
		proto.ActionUsersRequest:     s.handleUsersRequest,
		proto.ActionPublicKeyRequest: s.handlePublicKeyRequest,
	}
}

// route dispatches one envelope from an authenticated session. Exactly one
// envelope is processed per readiness event; see readLoop.
func (s *Server) route(ctx context.Context, cl *conn, env proto.Envelope) {
	h, ok := s.handlers[s.b.Action(env)]
	if !ok {
		s.reply(ctx, cl, s.b.BadRequest(proto.TextBadRequest))
		return
	}
	h(ctx, cl, env)
}

// claims verifies that the name an envelope claims to act as matches the
// session actually bound to the connection. Every privileged action is
// checked; a mismatch is answered with 400 and the connection stays open.
func (s *Server) claims(ctx context.Context, cl *conn, name string) bool {
	if name == cl.name && name != "" {
		return true
	}
	s.log.Warn(ctx, "identity mismatch", "session", cl.name, "claimed", name)
	s.reply(ctx, cl, s.b.BadRequest(proto.TextUnauthorized))
	return false
}

// handleMessage relays a private message. Delivery to the recipient is
// best-effort: a dead recipient is retired but the sender still gets its
// 200 acknowledgment.
func (s *Server) handleMessage(ctx context.Context, cl *conn, env proto.Envelope) {
	from, to := s.b.From(env), s.b.To(env)
	if !s.claims(ctx, cl, from) {
		return
	}
	if to == "" || s.b.MessageText(env) == "" {
		s.reply(ctx, cl, s.b.BadRequest(proto.TextBadRequest))
		return
	}

	rc, ok := s.reg.Lookup(to)
	if !ok {
		s.reply(ctx, cl, s.b.BadRequest(proto.TextUserNotRegistered))
		return
	}

	if err := s.store.ProcessMessage(ctx, from, to); err != nil {
		// counters are bookkeeping; never block delivery on them
		s.log.Error(ctx, "message stats failed", "error", err)
	}

	if err := rc.Send(env); err != nil {
		s.log.Warn(ctx, "recipient unreachable", "to", to,
			"error", errors.Join(common.ErrRecipientUnavailable, err))
		s.retireName(ctx, to)
	} else {
		s.log.Debug(ctx, "message relayed", "from", from, "to", to)
	}

	s.reply(ctx, cl, s.b.OK())
}

func (s *Server) handleExit(ctx context.Context, cl *conn, env proto.Envelope) {
	if !s.claims(ctx, cl, s.b.AccountName(env)) {
		return
	}
	s.retire(ctx, cl)
}

func (s *Server) handleGetContacts(ctx context.Context, cl *conn, env proto.Envelope) {
	if !s.claims(ctx, cl, s.b.User(env)) {
		return
	}

	list, err := s.store.ListContacts(ctx, cl.name)
	if err != nil {
		s.log.Error(ctx, "contact list failed", "user", cl.name, "error", err)
		s.reply(ctx, cl, s.b.BadRequest(proto.TextBadRequest))
		return
	}
	s.reply(ctx, cl, s.b.ListResponse(list))
}

func (s *Server) handleAddContact(ctx context.Context, cl *conn, env proto.Envelope) {
	if !s.claims(ctx, cl, s.b.User(env)) {
		return
	}
	contact := s.b.AccountName(env)
	if contact == "" {
		s.reply(ctx, cl, s.b.BadRequest(proto.TextBadRequest))
		return
	}

	if err := s.store.AddContact(ctx, cl.name, contact); err != nil {
		s.log.Error(ctx, "add contact failed", "user", cl.name, "error", err)
		s.reply(ctx, cl, s.b.BadRequest(proto.TextBadRequest))
		return
	}
	s.reply(ctx, cl, s.b.OK())
}

func (s *Server) handleRemoveContact(ctx context.Context, cl *conn, env proto.Envelope) {
	if !s.claims(ctx, cl, s.b.User(env)) {
		return
	}
	contact := s.b.AccountName(env)
	if contact == "" {
		s.reply(ctx, cl, s.b.BadRequest(proto.TextBadRequest))
		return
	}

	if err := s.store.RemoveContact(ctx, cl.name, contact); err != nil {
		s.log.Error(ctx, "remove contact failed", "user", cl.name, "error", err)
		s.reply(ctx, cl, s.b.BadRequest(proto.TextBadRequest))
		return
	}
	s.reply(ctx, cl, s.b.OK())
}

func (s *Server) handleUsersRequest(ctx context.Context, cl *conn, env proto.Envelope) {
	if !s.claims(ctx, cl, s.b.AccountName(env)) {
		return
	}

	list, err := s.store.ListUsers(ctx)
	if err != nil {
		s.log.Error(ctx, "user list failed", "error", err)
		s.reply(ctx, cl, s.b.BadRequest(proto.TextBadRequest))
		return
	}
	s.reply(ctx, cl, s.b.ListResponse(list))
}

func (s *Server) handlePublicKeyRequest(ctx context.Context, cl *conn, env proto.Envelope) {
	target := s.b.AccountName(env)
	if target == "" {
		s.reply(ctx, cl, s.b.BadRequest(proto.TextBadRequest))
		return
	}

	pubkey, err := s.store.GetPublicKey(ctx, target)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		s.log.Error(ctx, "public key lookup failed", "target", target, "error", err)
		s.reply(ctx, cl, s.b.BadRequest(proto.TextBadRequest))
		return
	}
	if pubkey == "" {
		s.reply(ctx, cl, s.b.BadRequest(proto.TextNoPublicKey))
		return
	}
	s.reply(ctx, cl, s.b.AuthData(pubkey))
}
