package proto

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gomessenger/internal/common"
)

func pipeConns(t *testing.T, max int) (*Conn, *Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return NewConn(a, max), NewConn(b, max)
}

func TestConn_SendReceive(t *testing.T) {
	left, right := pipeConns(t, 0)
	b := NewBuilder(DefaultKeys())

	go func() {
		_ = left.Send(b.Message("alice", "bob", "hello"))
	}()

	e, err := right.Receive()
	require.NoError(t, err)
	assert.Equal(t, ActionMessage, b.Action(e))
	assert.Equal(t, "hello", b.MessageText(e))
}

func TestConn_Receive_ReassemblesPartialFrames(t *testing.T) {
	a, raw := net.Pipe()
	defer a.Close()
	defer raw.Close()

	c := NewConn(a, 0)
	payload := `{"action":"message","from":"alice","to":"bob","message_text":"split"}`

	go func() {
		raw.Write([]byte(payload[:20]))
		time.Sleep(10 * time.Millisecond)
		raw.Write([]byte(payload[20:]))
	}()

	b := NewBuilder(DefaultKeys())
	e, err := c.Receive()
	require.NoError(t, err)
	assert.Equal(t, "split", b.MessageText(e))
}

func TestConn_Receive_SplitsCoalescedFrames(t *testing.T) {
	a, raw := net.Pipe()
	defer a.Close()
	defer raw.Close()

	c := NewConn(a, 0)

	go func() {
		raw.Write([]byte(`{"response":200}{"response":400,"error":"bad request"}`))
	}()

	b := NewBuilder(DefaultKeys())

	e1, err := c.Receive()
	require.NoError(t, err)
	code, _ := b.ResponseCode(e1)
	assert.Equal(t, CodeOK, code)

	e2, err := c.Receive()
	require.NoError(t, err)
	code, _ = b.ResponseCode(e2)
	assert.Equal(t, CodeBadRequest, code)
}

func TestConn_Receive_MalformedJSON(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"invalid json", `{"action":`+"\x00"+`}`},
		{"array not object", `["a","b"]`},
		{"scalar not object", `42 `},
		{"null not object", `null `},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a, raw := net.Pipe()
			defer a.Close()
			defer raw.Close()

			c := NewConn(a, 0)
			go func() { raw.Write([]byte(tc.payload)) }()

			_, err := c.Receive()
			assert.ErrorIs(t, err, common.ErrMalformedMessage)
		})
	}
}

func TestConn_Receive_FrameTooLarge(t *testing.T) {
	a, raw := net.Pipe()
	defer a.Close()
	defer raw.Close()

	c := NewConn(a, 64)

	go func() {
		raw.Write([]byte(`{"message_text":"` + strings.Repeat("a", 100)))
	}()

	_, err := c.Receive()
	assert.ErrorIs(t, err, common.ErrFrameTooLarge)
}

func TestConn_Receive_OversizedCompleteValue(t *testing.T) {
	a, raw := net.Pipe()
	defer a.Close()
	defer raw.Close()

	c := NewConn(a, 64)
	payload := `{"message_text":"` + strings.Repeat("a", 100) + `"}{"response":200}`

	// a value that parses but exceeds the limit is still rejected
	go func() { raw.Write([]byte(payload)) }()

	_, err := c.Receive()
	assert.ErrorIs(t, err, common.ErrFrameTooLarge)

	// framing survives: the next envelope is intact
	b := NewBuilder(DefaultKeys())
	e, err := c.Receive()
	require.NoError(t, err)
	code, _ := b.ResponseCode(e)
	assert.Equal(t, CodeOK, code)
}

func TestConn_Receive_FinalEnvelopeBeforeClose(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	b := NewBuilder(DefaultKeys())

	go func() {
		nc, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			return
		}
		// write the parting envelope and close immediately so the
		// reader sees the data and EOF in the same read
		_ = NewConn(nc, 0).Send(b.Exit("alice"))
		nc.Close()
	}()

	nc, err := ln.Accept()
	require.NoError(t, err)
	defer nc.Close()

	c := NewConn(nc, 0)

	e, err := c.Receive()
	require.NoError(t, err)
	assert.Equal(t, ActionExit, b.Action(e))

	_, err = c.Receive()
	assert.ErrorIs(t, err, common.ErrConnectionLost)
}

func TestConn_Send_FrameTooLarge(t *testing.T) {
	left, _ := pipeConns(t, 32)
	b := NewBuilder(DefaultKeys())

	err := left.Send(b.Message("alice", "bob", strings.Repeat("a", 100)))
	assert.ErrorIs(t, err, common.ErrFrameTooLarge)
}

func TestConn_Receive_Timeout_IsSoft(t *testing.T) {
	left, _ := pipeConns(t, 0)

	require.NoError(t, left.SetReadDeadline(time.Now().Add(20*time.Millisecond)))

	_, err := left.Receive()
	require.Error(t, err)
	assert.True(t, IsTimeout(err), "deadline expiry must surface as a timeout")
	assert.NotErrorIs(t, err, common.ErrConnectionLost)
}

func TestConn_Receive_PeerClosed(t *testing.T) {
	a, raw := net.Pipe()
	defer a.Close()

	c := NewConn(a, 0)
	raw.Close()

	_, err := c.Receive()
	assert.ErrorIs(t, err, common.ErrConnectionLost)
	assert.False(t, IsTimeout(err))
}

func TestConn_PeerHostPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := net.Dial("tcp", ln.Addr().String())
		if err == nil {
			defer conn.Close()
			time.Sleep(50 * time.Millisecond)
		}
	}()

	nc, err := ln.Accept()
	require.NoError(t, err)
	defer nc.Close()

	host, port := NewConn(nc, 0).PeerHostPort()
	assert.Equal(t, "127.0.0.1", host)
	assert.Greater(t, port, 0)
}
