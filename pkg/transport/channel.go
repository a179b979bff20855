package transport

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/backkem/v2g/pkg/v2gtp"
	"github.com/pion/logging"
)

// Channel carries encoded messages between the two parties of a session.
type Channel interface {
	// ReadMessage blocks until the next encoded message arrives.
	// It returns io.EOF when the peer closes the channel.
	ReadMessage() ([]byte, error)

	// WriteMessage sends one encoded message.
	WriteMessage(data []byte) error

	// Close closes the channel.
	Close() error
}

// ConnConfig configures a Conn.
type ConnConfig struct {
	// MaxPayload limits the size of received and sent messages.
	// Default: v2gtp.DefaultMaxPayload
	MaxPayload int

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Conn frames encoded messages as V2GTP over a net.Conn.
// Reads are buffered so that packet-oriented connections, which deliver a
// whole frame per Read, and byte streams both work.
type Conn struct {
	conn       net.Conn
	reader     *v2gtp.Reader
	maxPayload int
	log        logging.LeveledLogger

	writeMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

// NewConn wraps conn.
func NewConn(conn net.Conn, config ConnConfig) *Conn {
	if config.MaxPayload <= 0 {
		config.MaxPayload = v2gtp.DefaultMaxPayload
	}

	c := &Conn{
		conn:       conn,
		maxPayload: config.MaxPayload,
	}
	buffered := bufio.NewReaderSize(conn, v2gtp.HeaderSize+config.MaxPayload)
	c.reader = v2gtp.NewReader(buffered, config.MaxPayload)

	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("transport")
	}
	return c
}

// ReadMessage reads the next EXI frame and returns its payload.
func (c *Conn) ReadMessage() ([]byte, error) {
	f, err := c.reader.ReadFrame()
	if err != nil {
		if c.isClosed() {
			return nil, ErrClosed
		}
		if err != io.EOF && c.log != nil {
			c.log.Warnf("read from %s failed: %v", c.conn.RemoteAddr(), err)
		}
		return nil, err
	}
	if f.Type != v2gtp.PayloadEXI {
		if c.log != nil {
			c.log.Warnf("dropping %s frame from %s", f.Type, c.conn.RemoteAddr())
		}
		return nil, ErrUnexpectedPayload
	}
	if c.log != nil {
		c.log.Tracef("received %d bytes from %s", len(f.Payload), c.conn.RemoteAddr())
	}
	return f.Payload, nil
}

// WriteMessage writes data as one EXI frame.
func (c *Conn) WriteMessage(data []byte) error {
	if c.isClosed() {
		return ErrClosed
	}
	if len(data) > c.maxPayload {
		return ErrMessageTooLarge
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.conn.Write(v2gtp.Encode(data)); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return ErrClosed
		}
		return err
	}
	if c.log != nil {
		c.log.Tracef("sent %d bytes to %s", len(data), c.conn.RemoteAddr())
	}
	return nil
}

// Close closes the underlying connection. Closing twice is a no-op.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	return c.conn.Close()
}

// LocalAddr returns the local network address.
func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Verify Conn implements Channel.
var _ Channel = (*Conn)(nil)
