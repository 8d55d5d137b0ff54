package cli

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gomessenger/internal/common"
	"github.com/dmitrijs2005/gomessenger/internal/proto"
)

type fakeSession struct {
	name     string
	contacts []string
	users    []string
	keys     map[string]string
	sent     [][2]string
	sendErr  error
	incoming chan proto.Envelope
	refresh  chan struct{}
	lost     chan struct{}
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		name:     "alice",
		keys:     map[string]string{},
		incoming: make(chan proto.Envelope, 1),
		refresh:  make(chan struct{}, 1),
		lost:     make(chan struct{}),
	}
}

func (f *fakeSession) Name() string { return f.name }

func (f *fakeSession) SendMessage(to, text string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, [2]string{to, text})
	return nil
}

func (f *fakeSession) Contacts() ([]string, error) { return f.contacts, nil }

func (f *fakeSession) AddContact(contact string) error {
	f.contacts = append(f.contacts, contact)
	return nil
}

func (f *fakeSession) RemoveContact(contact string) error {
	kept := f.contacts[:0]
	for _, c := range f.contacts {
		if c != contact {
			kept = append(kept, c)
		}
	}
	f.contacts = kept
	return nil
}

func (f *fakeSession) Users() ([]string, error) { return f.users, nil }

func (f *fakeSession) PublicKey(user string) (string, error) {
	key, ok := f.keys[user]
	if !ok {
		return "", common.ErrNotFound
	}
	return key, nil
}

func (f *fakeSession) Incoming() <-chan proto.Envelope { return f.incoming }
func (f *fakeSession) RefreshEvents() <-chan struct{}  { return f.refresh }
func (f *fakeSession) Lost() <-chan struct{}           { return f.lost }
func (f *fakeSession) Close() error                    { return nil }

func newTestApp(input string, sess session) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	return &App{
		sess:   sess,
		b:      proto.NewBuilder(proto.DefaultKeys()),
		reader: bufio.NewReader(strings.NewReader(input)),
		out:    &out,
	}, &out
}

func TestApp_Message(t *testing.T) {
	sess := newFakeSession()
	app, _ := newTestApp("bob\nhello there\n", sess)

	require.NoError(t, app.Message(context.Background()))
	require.Len(t, sess.sent, 1)
	assert.Equal(t, [2]string{"bob", "hello there"}, sess.sent[0])
}

func TestApp_Message_RecipientOffline(t *testing.T) {
	sess := newFakeSession()
	sess.sendErr = common.ErrRecipientUnavailable
	app, out := newTestApp("bob\nhello\n", sess)

	require.NoError(t, app.Message(context.Background()))
	assert.Contains(t, out.String(), "not online")
}

func TestApp_Contacts(t *testing.T) {
	sess := newFakeSession()
	app, out := newTestApp("", sess)

	require.NoError(t, app.Contacts(context.Background()))
	assert.Contains(t, out.String(), "empty")

	sess.contacts = []string{"bob", "carol"}
	require.NoError(t, app.Contacts(context.Background()))
	assert.Contains(t, out.String(), "bob, carol")
}

func TestApp_AddRemoveContact(t *testing.T) {
	sess := newFakeSession()

	app, _ := newTestApp("bob\n", sess)
	require.NoError(t, app.AddContact(context.Background()))
	assert.Equal(t, []string{"bob"}, sess.contacts)

	app, _ = newTestApp("bob\n", sess)
	require.NoError(t, app.RemoveContact(context.Background()))
	assert.Empty(t, sess.contacts)
}

func TestApp_Users(t *testing.T) {
	sess := newFakeSession()
	sess.users = []string{"alice", "bob"}
	app, out := newTestApp("", sess)

	require.NoError(t, app.Users(context.Background()))
	assert.Contains(t, out.String(), "alice, bob")
}

func TestApp_PublicKey(t *testing.T) {
	sess := newFakeSession()
	sess.keys["bob"] = "BOB-KEY"

	app, out := newTestApp("bob\n", sess)
	require.NoError(t, app.PublicKey(context.Background()))
	assert.Contains(t, out.String(), "BOB-KEY")

	app, out = newTestApp("carol\n", sess)
	require.NoError(t, app.PublicKey(context.Background()))
	assert.Contains(t, out.String(), "no public key")
}

// syncBuffer makes bytes.Buffer safe to read while watchEvents writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestApp_WatchEvents_PrintsIncoming(t *testing.T) {
	sess := newFakeSession()
	app, _ := newTestApp("", sess)
	out := &syncBuffer{}
	app.out = out

	b := proto.NewBuilder(proto.DefaultKeys())
	sess.incoming <- b.Message("bob", "alice", "hi alice")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.watchEvents(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "bob: hi alice")
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
