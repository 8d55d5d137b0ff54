package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubExec struct {
	calls []string
	fail  bool
}

func (s *stubExec) record(name string) error {
	s.calls = append(s.calls, name)
	if s.fail {
		return errors.New("boom")
	}
	return nil
}

func (s *stubExec) Help()                               { s.calls = append(s.calls, "help") }
func (s *stubExec) Message(context.Context) error       { return s.record("message") }
func (s *stubExec) Contacts(context.Context) error      { return s.record("contacts") }
func (s *stubExec) AddContact(context.Context) error    { return s.record("add") }
func (s *stubExec) RemoveContact(context.Context) error { return s.record("del") }
func (s *stubExec) Users(context.Context) error         { return s.record("users") }
func (s *stubExec) PublicKey(context.Context) error     { return s.record("key") }

func runScript(t *testing.T, script string, stub *stubExec) string {
	t.Helper()
	var out bytes.Buffer
	runREPL(context.Background(), stub, bufio.NewScanner(strings.NewReader(script)), &out)
	return out.String()
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	stub := &stubExec{}
	runScript(t, "help\nmessage\ncontacts\nadd\ndel\nusers\nkey\nexit\n", stub)

	assert.Equal(t, []string{"help", "message", "contacts", "add", "del", "users", "key"}, stub.calls)
}

func TestRunREPL_ShortAlias(t *testing.T) {
	stub := &stubExec{}
	runScript(t, "m\nquit\n", stub)

	assert.Equal(t, []string{"message"}, stub.calls)
}

func TestRunREPL_UnknownCommand(t *testing.T) {
	stub := &stubExec{}
	out := runScript(t, "dance\nexit\n", stub)

	assert.Contains(t, out, "Unknown command")
	assert.Empty(t, stub.calls)
}

func TestRunREPL_BlankLinesIgnored(t *testing.T) {
	stub := &stubExec{}
	runScript(t, "\n\nusers\nexit\n", stub)

	assert.Equal(t, []string{"users"}, stub.calls)
}

func TestRunREPL_HandlerErrorReported(t *testing.T) {
	stub := &stubExec{fail: true}
	out := runScript(t, "users\nexit\n", stub)

	assert.Contains(t, out, "Command failed")
}

func TestRunREPL_ExitsOnEOF(t *testing.T) {
	stub := &stubExec{}
	runScript(t, "users\n", stub) // no exit, scanner hits EOF

	assert.Equal(t, []string{"users"}, stub.calls)
}
