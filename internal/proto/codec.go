package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/dmitrijs2005/gomessenger/internal/common"
)

// DefaultMaxFrameLength bounds a single envelope on the wire.
const DefaultMaxFrameLength = 10240

// Conn frames Envelopes over a stream socket: one UTF-8 JSON object per
// logical send, at most max bytes each. Receive buffers partial reads until
// a complete JSON value is available, so envelopes split across TCP segments
// are reassembled instead of dropped.
//
// Writes are serialized by an internal mutex. Reads are not: a Conn expects
// a single reader at a time (the server's per-connection reader goroutine,
// or the client holding its socket lock).
type Conn struct {
	nc  net.Conn
	max int
	buf []byte

	wmu sync.Mutex
}

func NewConn(nc net.Conn, maxFrameLength int) *Conn {
	if maxFrameLength <= 0 {
		maxFrameLength = DefaultMaxFrameLength
	}
	return &Conn{nc: nc, max: maxFrameLength}
}

// Send serializes e and writes it as a single frame.
func (c *Conn) Send(e Envelope) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrMalformedMessage, err)
	}
	if len(b) > c.max {
		return fmt.Errorf("%w: %d bytes, limit %d", common.ErrFrameTooLarge, len(b), c.max)
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	if _, err := c.nc.Write(b); err != nil {
		return fmt.Errorf("%w: %v", common.ErrConnectionLost, err)
	}
	return nil
}

// Receive reads one envelope, looping socket reads until a complete JSON
// value is buffered.
//
// Errors:
//   - common.ErrMalformedMessage: invalid JSON or a non-object value. The
//     read buffer is reset because framing is lost past that point.
//   - common.ErrFrameTooLarge: no complete value within the frame limit,
//     or a decoded value that exceeded it.
//   - common.ErrConnectionLost: peer closed or reset the connection.
//   - net.Error with Timeout(): the read deadline expired; buffered partial
//     data is kept for the next call.
func (c *Conn) Receive() (Envelope, error) {
	chunk := make([]byte, 4096)

	for {
		if len(c.buf) > 0 {
			e, n, err := decodeOne(c.buf)
			switch {
			case err == nil:
				c.buf = append(c.buf[:0:0], c.buf[n:]...)
				if n > c.max {
					return nil, fmt.Errorf("%w: %d bytes, limit %d", common.ErrFrameTooLarge, n, c.max)
				}
				return e, nil
			case errors.Is(err, errIncompleteFrame):
				// fall through to read more
			default:
				c.buf = nil
				return nil, err
			}
		}

		if len(c.buf) >= c.max {
			c.buf = nil
			return nil, fmt.Errorf("%w: no value within %d bytes", common.ErrFrameTooLarge, c.max)
		}

		n, err := c.nc.Read(chunk)
		c.buf = append(c.buf, chunk[:n]...)
		if err != nil {
			if n > 0 {
				// the final read may carry a complete envelope together
				// with EOF; drain it before surfacing the error
				continue
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", common.ErrConnectionLost, err)
		}
	}
}

// IsTimeout reports whether err is a soft read-deadline expiry rather than
// a dead connection.
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

var errIncompleteFrame = errors.New("incomplete frame")

// decodeOne decodes the first JSON value in buf into an Envelope and reports
// how many bytes it consumed.
func decodeOne(buf []byte) (Envelope, int, error) {
	dec := json.NewDecoder(bytes.NewReader(buf))

	var m map[string]any
	err := dec.Decode(&m)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, 0, errIncompleteFrame
		}
		return nil, 0, fmt.Errorf("%w: %v", common.ErrMalformedMessage, err)
	}
	if m == nil {
		// "null" decodes without error but is not a mapping
		return nil, 0, fmt.Errorf("%w: value is not an object", common.ErrMalformedMessage)
	}
	return Envelope(m), int(dec.InputOffset()), nil
}

// SetReadDeadline bounds the next Receive.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.nc.SetReadDeadline(t)
}

func (c *Conn) Close() error {
	return c.nc.Close()
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}

// PeerHostPort splits the peer address into host and numeric port.
// Returns empty host and zero port if the address cannot be parsed.
func (c *Conn) PeerHostPort() (string, int) {
	addr := c.nc.RemoteAddr()
	if addr == nil {
		return "", 0
	}
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), 0
	}
	var port int
	fmt.Sscanf(portStr, "%d", &port)
	return host, port
}
