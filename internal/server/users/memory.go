package users

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/gomessenger/internal/common"
)

type memoryUser struct {
	passwordHash []byte
	pubkey       string
	lastLoginAt  time.Time
	sent         int
	received     int
	contacts     map[string]struct{}
}

// MemoryStore is an in-memory Store used in tests and for DSN-less runs.
type MemoryStore struct {
	mu      sync.Mutex
	users   map[string]*memoryUser
	active  map[string]ActiveUser
	history []LoginEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[string]*memoryUser),
		active: make(map[string]ActiveUser),
	}
}

func (s *MemoryStore) CheckUser(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[name]
	return ok, nil
}

func (s *MemoryStore) GetPasswordHash(_ context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[name]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %s", common.ErrStore, common.ErrNotFound, name)
	}
	return u.passwordHash, nil
}

func (s *MemoryStore) GetPublicKey(_ context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[name]
	if !ok {
		return "", fmt.Errorf("%w: %w: %s", common.ErrStore, common.ErrNotFound, name)
	}
	return u.pubkey, nil
}

func (s *MemoryStore) Login(_ context.Context, name, addr string, port int, publicKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[name]
	if !ok {
		return fmt.Errorf("%w: %w: %s", common.ErrStore, common.ErrNotFound, name)
	}
	now := time.Now()
	u.lastLoginAt = now
	if publicKey != "" {
		u.pubkey = publicKey
	}
	s.active[name] = ActiveUser{Name: name, Addr: addr, Port: port, LoginAt: now}
	s.history = append(s.history, LoginEvent{Name: name, Addr: addr, Port: port, At: now})
	return nil
}

func (s *MemoryStore) Logout(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, name)
	return nil
}

func (s *MemoryStore) AddContact(_ context.Context, owner, contact string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[owner]
	if !ok {
		return fmt.Errorf("%w: %w: %s", common.ErrStore, common.ErrNotFound, owner)
	}
	if _, ok := s.users[contact]; !ok {
		// the original silently ignores unknown contacts
		return nil
	}
	u.contacts[contact] = struct{}{}
	return nil
}

func (s *MemoryStore) RemoveContact(_ context.Context, owner, contact string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[owner]; ok {
		delete(u.contacts, contact)
	}
	return nil
}

func (s *MemoryStore) ListContacts(_ context.Context, owner string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[owner]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %s", common.ErrStore, common.ErrNotFound, owner)
	}
	list := make([]string, 0, len(u.contacts))
	for c := range u.contacts {
		list = append(list, c)
	}
	sort.Strings(list)
	return list, nil
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]string, 0, len(s.users))
	for n := range s.users {
		list = append(list, n)
	}
	sort.Strings(list)
	return list, nil
}

func (s *MemoryStore) ProcessMessage(_ context.Context, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[from]; ok {
		u.sent++
	}
	if u, ok := s.users[to]; ok {
		u.received++
	}
	return nil
}

func (s *MemoryStore) RegisterUser(_ context.Context, name string, passwordHash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[name]; ok {
		return fmt.Errorf("%w: user %s already exists", common.ErrStore, name)
	}
	s.users[name] = &memoryUser{
		passwordHash: passwordHash,
		contacts:     make(map[string]struct{}),
	}
	return nil
}

func (s *MemoryStore) RemoveUser(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, name)
	delete(s.active, name)
	for _, u := range s.users {
		delete(u.contacts, name)
	}
	return nil
}

func (s *MemoryStore) ActiveUsers(_ context.Context) ([]ActiveUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]ActiveUser, 0, len(s.active))
	for _, a := range s.active {
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func (s *MemoryStore) LoginHistory(_ context.Context, name string) ([]LoginEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "" {
		return append([]LoginEvent{}, s.history...), nil
	}
	list := []LoginEvent{}
	for _, e := range s.history {
		if e.Name == name {
			list = append(list, e)
		}
	}
	return list, nil
}

func (s *MemoryStore) MessageHistory(_ context.Context) ([]MessageStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]MessageStats, 0, len(s.users))
	for n, u := range s.users {
		list = append(list, MessageStats{Name: n, Sent: u.sent, Received: u.received})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
