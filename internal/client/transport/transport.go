// Package transport maintains the client's session with the messenger
// server: dialing with retries, the authentication handshake, request
// round-trips, and a background receiver for incoming messages.
package transport

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/gomessenger/internal/client/config"
	"github.com/dmitrijs2005/gomessenger/internal/common"
	"github.com/dmitrijs2005/gomessenger/internal/cryptox"
	"github.com/dmitrijs2005/gomessenger/internal/logging"
	"github.com/dmitrijs2005/gomessenger/internal/proto"
)

const (
	// handshakeReadTimeout bounds each read while authenticating.
	handshakeReadTimeout = 10 * time.Second
	// requestReadTimeout bounds the wait for a response envelope.
	requestReadTimeout = 5 * time.Second
	// receiverPoll is how long the background receiver holds the socket
	// per tick; requests share the same socket and must get a turn.
	receiverPoll = 500 * time.Millisecond
	// receiverIdle is the pause between receiver ticks.
	receiverIdle = 1 * time.Second
)

// Client is a live, authenticated session. All request methods share one
// socket with the background receiver and are safe for concurrent use.
type Client struct {
	b    proto.Builder
	log  logging.Logger
	name string

	mu sync.Mutex // serializes socket access between requests and the receiver
	c  *proto.Conn

	closed atomic.Bool

	incoming chan proto.Envelope
	refresh  chan struct{}
	lost     chan struct{}
	lostOnce sync.Once
	done     chan struct{}
}

// Dial connects to the server, authenticates as name, and starts the
// background receiver. Connection attempts are retried per the config;
// when the server stays unreachable the error wraps
// common.ErrServerUnreachable. Authentication failures map to
// common.ErrNameTaken, common.ErrUserNotRegistered or
// common.ErrWrongPassword.
func Dial(ctx context.Context, cfg *config.Config, name, password, pubkey string, log logging.Logger) (*Client, error) {

	endpoint := cfg.ServerEndpoint()
	log = log.With("module", "transport")

	var nc net.Conn
	var err error
	d := &net.Dialer{}
	for attempt := 1; ; attempt++ {
		nc, err = d.DialContext(ctx, "tcp", endpoint)
		if err == nil {
			break
		}
		log.Warn(ctx, "connect failed", "endpoint", endpoint, "attempt", attempt, "error", err)
		if attempt >= cfg.ReconnectAttempts {
			return nil, fmt.Errorf("%s: %w", endpoint, common.ErrServerUnreachable)
		}
		select {
		case <-time.After(cfg.ReconnectInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c := &Client{
		b:        proto.NewBuilder(proto.DefaultKeys()),
		log:      log,
		name:     name,
		c:        proto.NewConn(nc, cfg.MaxFrameLength),
		incoming: make(chan proto.Envelope, 16),
		refresh:  make(chan struct{}, 1),
		lost:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	if err := c.handshake(name, password, pubkey); err != nil {
		c.c.Close()
		return nil, err
	}
	log.Info(ctx, "authenticated", "user", name)

	go c.receiver(ctx)
	return c, nil
}

func (c *Client) handshake(name, password, pubkey string) error {
	if err := c.c.Send(c.b.Presence(name, pubkey)); err != nil {
		return err
	}

	challenge, err := c.readReply(handshakeReadTimeout)
	if err != nil {
		return err
	}
	code, ok := c.b.ResponseCode(challenge)
	if !ok || code != proto.CodeAuthData {
		if code == proto.CodeBadRequest {
			return c.replyError(challenge)
		}
		return fmt.Errorf("unexpected handshake reply: %v", challenge)
	}

	digest := cryptox.ChallengeDigest(cryptox.PasswordHash(password, name), c.b.Data(challenge))
	if err := c.c.Send(c.b.AuthData(base64.StdEncoding.EncodeToString(digest))); err != nil {
		return err
	}

	verdict, err := c.readReply(handshakeReadTimeout)
	if err != nil {
		return err
	}
	switch code, _ := c.b.ResponseCode(verdict); code {
	case proto.CodeOK:
		return nil
	case proto.CodeBadRequest:
		return c.replyError(verdict)
	default:
		return fmt.Errorf("unexpected handshake reply: %v", verdict)
	}
}

func (c *Client) readReply(timeout time.Duration) (proto.Envelope, error) {
	if err := c.c.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	return c.c.Receive()
}

// replyError maps server 400 texts back to the client-side sentinels.
func (c *Client) replyError(e proto.Envelope) error {
	switch text := c.b.ErrorText(e); text {
	case proto.TextNameTaken:
		return common.ErrNameTaken
	case proto.TextUserNotRegistered:
		return common.ErrUserNotRegistered
	case proto.TextWrongPassword:
		return common.ErrWrongPassword
	case proto.TextUnauthorized:
		return common.ErrUnauthorizedAction
	case proto.TextNoPublicKey:
		return common.ErrNotFound
	default:
		return fmt.Errorf("server error: %s", text)
	}
}

// request sends env and waits for the next response envelope. Incoming
// chat messages that arrive while waiting are routed to the Incoming
// channel instead of being dropped.
func (c *Client) request(env proto.Envelope) (proto.Envelope, error) {
	if c.closed.Load() {
		return nil, common.ErrConnectionLost
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.c.Send(env); err != nil {
		c.markLost()
		return nil, err
	}

	deadline := time.Now().Add(requestReadTimeout)
	for {
		if err := c.c.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
		reply, err := c.c.Receive()
		if err != nil {
			if proto.IsTimeout(err) {
				return nil, fmt.Errorf("no response from server: %w", err)
			}
			c.markLost()
			return nil, common.ErrConnectionLost
		}
		if code, ok := c.b.ResponseCode(reply); ok {
			if code == proto.CodeRefresh {
				c.signalRefresh()
				continue
			}
			return reply, nil
		}
		if c.b.Action(reply) == proto.ActionMessage {
			c.deliver(reply)
			continue
		}
		c.log.Warn(context.Background(), "unexpected envelope", "envelope", reply)
	}
}

// receiver polls the socket for server-initiated envelopes: chat messages
// and refresh notifications. It shares the socket with request via the
// mutex, holding it only for short reads.
func (c *Client) receiver(ctx context.Context) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(receiverIdle):
		}
		if c.closed.Load() {
			return
		}

		c.mu.Lock()
		if c.closed.Load() {
			c.mu.Unlock()
			return
		}
		env, err := c.readReply(receiverPoll)
		c.mu.Unlock()

		if err != nil {
			if proto.IsTimeout(err) {
				continue
			}
			c.log.Warn(ctx, "connection lost", "error", err)
			c.markLost()
			return
		}

		if code, ok := c.b.ResponseCode(env); ok {
			if code == proto.CodeRefresh {
				c.signalRefresh()
			}
			continue
		}
		if c.b.Action(env) == proto.ActionMessage {
			c.deliver(env)
		}
	}
}

func (c *Client) deliver(env proto.Envelope) {
	select {
	case c.incoming <- env:
	default:
		c.log.Warn(context.Background(), "incoming queue full, dropping message")
	}
}

func (c *Client) signalRefresh() {
	select {
	case c.refresh <- struct{}{}:
	default:
	}
}

func (c *Client) markLost() {
	c.closed.Store(true)
	c.lostOnce.Do(func() {
		close(c.lost)
		c.c.Close()
	})
}

// Name returns the authenticated account name.
func (c *Client) Name() string { return c.name }

// Incoming delivers chat messages pushed by the server.
func (c *Client) Incoming() <-chan proto.Envelope { return c.incoming }

// RefreshEvents fires when the server asks clients to re-fetch user and
// contact lists.
func (c *Client) RefreshEvents() <-chan struct{} { return c.refresh }

// Lost is closed when the connection dies underneath the session.
func (c *Client) Lost() <-chan struct{} { return c.lost }

// SendMessage routes text to another user through the server. Messaging an
// offline or unknown user returns common.ErrRecipientUnavailable.
func (c *Client) SendMessage(to, text string) error {
	reply, err := c.request(c.b.Message(c.name, to, text))
	if err != nil {
		return err
	}
	switch code, _ := c.b.ResponseCode(reply); code {
	case proto.CodeOK:
		return nil
	case proto.CodeBadRequest:
		if c.b.ErrorText(reply) == proto.TextUserNotRegistered {
			return common.ErrRecipientUnavailable
		}
		return c.replyError(reply)
	default:
		return fmt.Errorf("unexpected response code %d", code)
	}
}

// Contacts fetches the caller's contact list.
func (c *Client) Contacts() ([]string, error) {
	return c.requestList(c.b.GetContacts(c.name))
}

// Users fetches the list of all registered users.
func (c *Client) Users() ([]string, error) {
	return c.requestList(c.b.UsersRequest(c.name))
}

func (c *Client) requestList(env proto.Envelope) ([]string, error) {
	reply, err := c.request(env)
	if err != nil {
		return nil, err
	}
	switch code, _ := c.b.ResponseCode(reply); code {
	case proto.CodeList:
		return c.b.ListInfo(reply), nil
	case proto.CodeBadRequest:
		return nil, c.replyError(reply)
	default:
		return nil, fmt.Errorf("unexpected response code %d", code)
	}
}

// AddContact adds contact to the caller's contact list.
func (c *Client) AddContact(contact string) error {
	return c.simpleRequest(c.b.AddContact(c.name, contact))
}

// RemoveContact removes contact from the caller's contact list.
func (c *Client) RemoveContact(contact string) error {
	return c.simpleRequest(c.b.RemoveContact(c.name, contact))
}

func (c *Client) simpleRequest(env proto.Envelope) error {
	reply, err := c.request(env)
	if err != nil {
		return err
	}
	switch code, _ := c.b.ResponseCode(reply); code {
	case proto.CodeOK:
		return nil
	case proto.CodeBadRequest:
		return c.replyError(reply)
	default:
		return fmt.Errorf("unexpected response code %d", code)
	}
}

// PublicKey fetches another user's public key. common.ErrNotFound is
// returned when the user never presented one.
func (c *Client) PublicKey(user string) (string, error) {
	reply, err := c.request(c.b.PublicKeyRequest(user))
	if err != nil {
		return "", err
	}
	switch code, _ := c.b.ResponseCode(reply); code {
	case proto.CodeAuthData:
		return c.b.Data(reply), nil
	case proto.CodeBadRequest:
		return "", c.replyError(reply)
	default:
		return "", fmt.Errorf("unexpected response code %d", code)
	}
}

// Close announces departure to the server and tears down the session.
// Safe to call more than once.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.mu.Lock()
	// best effort; the server unbinds on socket close anyway
	_ = c.c.Send(c.b.Exit(c.name))
	err := c.c.Close()
	c.mu.Unlock()

	select {
	case <-c.done:
	case <-time.After(2 * receiverIdle):
	}
	return err
}
