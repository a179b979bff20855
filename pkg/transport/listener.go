package transport

import (
	"context"
	"net"
	"sync"

	"github.com/pion/logging"
)

// DefaultDialNetwork is the network used by Dial.
const DefaultDialNetwork = "tcp"

// ConnHandler serves one accepted connection. The connection is closed
// when the handler returns.
type ConnHandler func(c *Conn)

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	// Listener is an optional pre-existing listener to use.
	// If nil, a new TCP listener is created using ListenAddr.
	Listener net.Listener

	// ListenAddr is the address to listen on (e.g., ":15118").
	// Ignored if Listener is provided.
	ListenAddr string

	// Handler is called in its own goroutine for each accepted connection.
	// Required.
	Handler ConnHandler

	// Conn configures the framed connections handed to Handler.
	Conn ConnConfig

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Listener accepts connections and serves each one with a ConnHandler.
type Listener struct {
	listener net.Listener
	handler  ConnHandler
	connCfg  ConnConfig
	closeCh  chan struct{}
	wg       sync.WaitGroup
	log      logging.LeveledLogger

	connsMu sync.Mutex
	conns   map[*Conn]struct{}

	mu      sync.RWMutex
	started bool
	closed  bool
}

// NewListener creates a listener with the given configuration.
func NewListener(config ListenerConfig) (*Listener, error) {
	if config.Handler == nil {
		return nil, ErrNoHandler
	}
	if config.Conn.LoggerFactory == nil {
		config.Conn.LoggerFactory = config.LoggerFactory
	}

	l := &Listener{
		listener: config.Listener,
		handler:  config.Handler,
		connCfg:  config.Conn,
		closeCh:  make(chan struct{}),
		conns:    make(map[*Conn]struct{}),
	}
	if config.LoggerFactory != nil {
		l.log = config.LoggerFactory.NewLogger("transport-listener")
	}

	if l.listener == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = ":0" // Use ephemeral port
		}
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, err
		}
		l.listener = listener
	}
	return l, nil
}

// Start begins accepting connections.
func (l *Listener) Start() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if l.started {
		l.mu.Unlock()
		return ErrAlreadyStarted
	}
	l.started = true
	l.mu.Unlock()

	if l.log != nil {
		l.log.Infof("listening on %s", l.listener.Addr())
	}

	l.wg.Add(1)
	go l.acceptLoop()
	return nil
}

// Stop closes the listener and every open connection, then waits for the
// handlers to return.
func (l *Listener) Stop() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.closed = true
	l.mu.Unlock()

	if l.log != nil {
		l.log.Info("stopping listener")
	}

	close(l.closeCh)
	err := l.listener.Close()

	l.connsMu.Lock()
	for c := range l.conns {
		_ = c.Close()
	}
	l.connsMu.Unlock()

	l.wg.Wait()
	return err
}

// Addr returns the address the listener is bound to.
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// ConnCount returns the number of connections being served.
func (l *Listener) ConnCount() int {
	l.connsMu.Lock()
	defer l.connsMu.Unlock()
	return len(l.conns)
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			select {
			case <-l.closeCh:
				return
			default:
			}
			if l.log != nil {
				l.log.Warnf("accept failed: %v", err)
			}
			return
		}

		l.wg.Add(1)
		go l.serve(conn)
	}
}

func (l *Listener) serve(conn net.Conn) {
	defer l.wg.Done()

	c := NewConn(conn, l.connCfg)
	l.connsMu.Lock()
	select {
	case <-l.closeCh:
		l.connsMu.Unlock()
		_ = c.Close()
		return
	default:
	}
	l.conns[c] = struct{}{}
	l.connsMu.Unlock()

	defer func() {
		_ = c.Close()
		l.connsMu.Lock()
		delete(l.conns, c)
		l.connsMu.Unlock()
	}()

	if l.log != nil {
		l.log.Debugf("serving %s", conn.RemoteAddr())
	}
	l.handler(c)
}

// Dial connects to addr over TCP and returns a framed connection.
func Dial(ctx context.Context, addr string, config ConnConfig) (*Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, DefaultDialNetwork, addr)
	if err != nil {
		return nil, err
	}
	return NewConn(conn, config), nil
}
