// Package common defines shared constants and sentinel errors used across
// client and server layers of the messenger. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Generic lookup error (repository level).
	ErrNotFound = errors.New("not found")

	// Wire-level errors.
	ErrMalformedMessage = errors.New("malformed message")
	ErrFrameTooLarge    = errors.New("frame too large")

	// Handshake errors; the handshake aborts and the connection is closed.
	ErrNameTaken         = errors.New("name already taken")
	ErrUserNotRegistered = errors.New("user not registered")
	ErrWrongPassword     = errors.New("wrong password")

	// Routing errors; the connection stays open.
	ErrUnauthorizedAction   = errors.New("unauthorized action")
	ErrRecipientUnavailable = errors.New("recipient unavailable")

	// Transport errors.
	ErrConnectionLost    = errors.New("connection lost")
	ErrServerUnreachable = errors.New("server unreachable")

	// Persistence errors; all UserStore failures wrap this value.
	ErrStore = errors.New("store error")
)

// Ports below 1024 are privileged and refused on both ends.
const (
	MinPort = 1024
	MaxPort = 65535
)

// ErrInvalidPort reports a configured TCP port outside the allowed range.
type ErrInvalidPort struct {
	Port int
}

func (e *ErrInvalidPort) Error() string {
	return fmt.Sprintf("invalid port %d: must be between %d and %d", e.Port, MinPort, MaxPort)
}
