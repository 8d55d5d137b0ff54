// Package registry holds the shared table mapping authenticated usernames to
// their live connections. It is one of only two pieces of cross-connection
// state in the server (the other is the user store) and is safe for
// concurrent use.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gomessenger/internal/common"
	"github.com/dmitrijs2005/gomessenger/internal/logging"
	"github.com/dmitrijs2005/gomessenger/internal/proto"
	"github.com/dmitrijs2005/gomessenger/internal/server/users"
)

type Registry struct {
	mu       sync.Mutex
	sessions map[string]*proto.Conn
	store    users.Store
	log      logging.Logger
}

func New(store users.Store, log logging.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*proto.Conn),
		store:    store,
		log:      log.With("module", "registry"),
	}
}

// Bind claims name for c. A name already bound is never replaced: the
// original session stays and Bind fails with common.ErrNameTaken.
func (r *Registry) Bind(name string, c *proto.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[name]; ok {
		return fmt.Errorf("%w: %s", common.ErrNameTaken, name)
	}
	r.sessions[name] = c
	return nil
}

// Unbind removes name and records the logout in the user store while still
// holding the registry lock, so a user is never routable-but-logged-out or
// logged-out-but-routable. Unbinding an unknown name is a no-op.
func (r *Registry) Unbind(ctx context.Context, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[name]; !ok {
		return
	}
	delete(r.sessions, name)

	if err := r.store.Logout(ctx, name); err != nil {
		r.log.Error(ctx, "logout failed", "user", name, "error", err)
	}
}

// Bound reports whether name currently has a session.
func (r *Registry) Bound(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[name]
	return ok
}

// Lookup resolves name to its live connection.
func (r *Registry) Lookup(name string) (*proto.Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.sessions[name]
	return c, ok
}

// All returns a snapshot of the live sessions.
func (r *Registry) All() map[string]*proto.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := make(map[string]*proto.Conn, len(r.sessions))
	for name, c := range r.sessions {
		snapshot[name] = c
	}
	return snapshot
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
