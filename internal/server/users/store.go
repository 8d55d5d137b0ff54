// Package users is the persistence collaborator of the messenger core:
// accounts, credentials, contact edges, presence and history records.
package users

import (
	"context"
	"time"
)

// ActiveUser is a row of the live-session table.
type ActiveUser struct {
	Name    string
	Addr    string
	Port    int
	LoginAt time.Time
}

// LoginEvent is one historical login record.
type LoginEvent struct {
	Name string
	Addr string
	Port int
	At   time.Time
}

// MessageStats counts envelopes relayed for one user.
type MessageStats struct {
	Name     string
	Sent     int
	Received int
}

// Store is the contract the session core calls into. Implementations must be
// safe for concurrent use; all failures wrap common.ErrStore, lookups of
// unknown users additionally match common.ErrNotFound.
type Store interface {
	// CheckUser reports whether an account exists.
	CheckUser(ctx context.Context, name string) (bool, error)

	// GetPasswordHash returns the stored credential for the challenge
	// exchange.
	GetPasswordHash(ctx context.Context, name string) ([]byte, error)

	// GetPublicKey returns the stored public key, or empty if the user has
	// never presented one.
	GetPublicKey(ctx context.Context, name string) (string, error)

	// Login records a successful handshake: refreshes last-seen and the
	// public key, marks the user active, appends to login history.
	Login(ctx context.Context, name, addr string, port int, publicKey string) error

	// Logout removes the user from the active table.
	Logout(ctx context.Context, name string) error

	AddContact(ctx context.Context, owner, contact string) error
	RemoveContact(ctx context.Context, owner, contact string) error
	ListContacts(ctx context.Context, owner string) ([]string, error)
	ListUsers(ctx context.Context) ([]string, error)

	// ProcessMessage bumps the sender's sent counter and the recipient's
	// received counter.
	ProcessMessage(ctx context.Context, from, to string) error

	// Account management (server operator surface).
	RegisterUser(ctx context.Context, name string, passwordHash []byte) error
	RemoveUser(ctx context.Context, name string) error

	// Reporting.
	ActiveUsers(ctx context.Context) ([]ActiveUser, error)
	LoginHistory(ctx context.Context, name string) ([]LoginEvent, error)
	MessageHistory(ctx context.Context) ([]MessageStats, error)

	Close() error
}
