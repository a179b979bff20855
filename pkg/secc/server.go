package secc

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/backkem/v2g/pkg/exi"
	"github.com/backkem/v2g/pkg/grammar"
	"github.com/backkem/v2g/pkg/message"
	"github.com/backkem/v2g/pkg/session"
	"github.com/backkem/v2g/pkg/transport"
	"github.com/pion/logging"
)

// ServerConfig configures a Server.
type ServerConfig struct {
	// Station describes what the charging station offers.
	Station Config

	// Listener is an optional pre-existing listener to use.
	Listener net.Listener

	// ListenAddr is the TCP address to listen on when Listener is nil.
	ListenAddr string

	// MaxSessions limits the number of live and paused sessions.
	// Default: session.DefaultMaxSessions
	MaxSessions int

	// Secure marks sessions as running over an authenticated transport.
	Secure bool

	// Rand is the session identifier source (default: crypto/rand).
	Rand io.Reader

	// Resolver supplies the schemas (default: grammar.Default).
	Resolver *grammar.Resolver

	// Options are the codec grammar options (default: strict).
	Options grammar.Options

	// Metrics observes codec operations. Optional.
	Metrics exi.Metrics

	// Observer is subscribed to every session. Optional.
	Observer session.Listener

	// Conn configures framing on accepted connections.
	Conn transport.ConnConfig

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Server accepts EV connections and runs one session per connection.
type Server struct {
	manager  *session.Manager
	handlers *handlers
	codec    *message.Codec
	listener *transport.Listener
	secure   bool
	log      logging.LeveledLogger
}

// NewServer creates a server. Call Start to accept connections.
func NewServer(config ServerConfig) (*Server, error) {
	codec, err := message.NewCodec(exi.CodecConfig[*message.Message]{
		Resolver:      config.Resolver,
		Options:       config.Options,
		Metrics:       config.Metrics,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}

	s := &Server{secure: config.Secure, codec: codec}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("secc-server")
	}

	// Handlers resolve paused sessions through the manager created below.
	s.handlers = newHandlers(config.Station, resumerFunc(func(id session.ID) (*session.Session, string, bool) {
		return s.manager.FindPaused(id)
	}), config.LoggerFactory)
	registry, err := s.handlers.registry()
	if err != nil {
		return nil, err
	}

	s.manager, err = session.NewManager(session.ManagerConfig{
		Session: session.Config{
			Registry:      registry,
			Codec:         codec,
			Rand:          config.Rand,
			LoggerFactory: config.LoggerFactory,
		},
		MaxSessions: config.MaxSessions,
		Listener:    config.Observer,
	})
	if err != nil {
		return nil, err
	}

	if config.Conn.LoggerFactory == nil {
		config.Conn.LoggerFactory = config.LoggerFactory
	}
	s.listener, err = transport.NewListener(transport.ListenerConfig{
		Listener:      config.Listener,
		ListenAddr:    config.ListenAddr,
		Handler:       s.serveConn,
		Conn:          config.Conn,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

type resumerFunc func(id session.ID) (*session.Session, string, bool)

func (f resumerFunc) FindPaused(id session.ID) (*session.Session, string, bool) {
	return f(id)
}

// Start begins accepting connections.
func (s *Server) Start() error {
	return s.listener.Start()
}

// Stop closes every connection and terminates every session.
func (s *Server) Stop() error {
	err := s.listener.Stop()
	return errors.Join(err, s.manager.Close("server stopped"))
}

// Addr returns the listening address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Manager returns the session manager.
func (s *Server) Manager() *session.Manager {
	return s.manager
}

func (s *Server) serveConn(c *transport.Conn) {
	if err := s.Serve(c); err != nil && s.log != nil {
		s.log.Warnf("connection %s: %v", c.RemoteAddr(), err)
	}
}

// Serve runs one session over ch until it pauses or terminates, or ch
// fails. A session that is still active when ch fails is terminated
// unsuccessfully; a paused one stays available for resumption.
func (s *Server) Serve(ch transport.Channel) error {
	sess, err := s.manager.NewSession(s.secure)
	if err != nil {
		return err
	}

	for {
		data, err := ch.ReadMessage()
		if err != nil {
			s.abort(sess, err)
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		reply, err := sess.HandleWire(data)
		if err != nil {
			s.replyFailure(ch, sess, err)
			return err
		}
		if reply != nil {
			if err := ch.WriteMessage(reply); err != nil {
				s.abort(sess, err)
				return fmt.Errorf("write: %w", err)
			}
		}
		if sess.Status() != session.StatusActive {
			return nil
		}
	}
}

func (s *Server) abort(sess *session.Session, cause error) {
	if sess.Status() != session.StatusActive {
		return
	}
	_ = sess.Terminate(fmt.Sprintf("connection lost: %v", cause), false)
}

// replyFailure answers a request that arrived out of order with
// FAILED_SequenceError before the connection closes.
func (s *Server) replyFailure(ch transport.Channel, sess *session.Session, cause error) {
	var unexpected *session.UnexpectedMessageError
	if !errors.As(cause, &unexpected) {
		return
	}
	res := s.handlers.sequenceError(unexpected.Type)
	if res == nil || res.Type.Phase() != sess.Phase() {
		return
	}
	res.SessionID = sess.ID()
	data, err := s.codec.Encode(res, sess.Phase())
	if err == nil {
		err = ch.WriteMessage(data)
	}
	if err != nil && s.log != nil {
		s.log.Warnf("session %s: sequence error reply: %v", sess.ID(), err)
	}
}
