package session

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/pion/logging"
)

// DefaultMaxSessions is the default maximum number of tracked sessions.
const DefaultMaxSessions = 16

// Manager tracks the sessions of one process. It creates sessions, keeps
// paused ones for resumption and drops terminated ones. Every session it
// creates shares the process-wide registry and codec.
//
// The Manager also remembers the last identifier it saw so that a new
// session never reuses the identifier of the one before it.
type Manager struct {
	template    Config
	maxSessions int
	log         logging.LeveledLogger

	listener Listener
	lastID   atomic.Uint64

	mu     sync.RWMutex
	live   map[*Session]struct{}
	paused map[string]*Session
}

// ManagerConfig configures the session manager.
type ManagerConfig struct {
	// Session is the template for new sessions. Its Registry is required;
	// PreviousID is managed by the Manager.
	Session Config

	// MaxSessions limits the number of live and paused sessions.
	// Default: DefaultMaxSessions (16)
	MaxSessions int

	// Listener is subscribed to every session after the manager itself,
	// typically a metrics collector. Optional.
	Listener Listener
}

// NewManager creates a new session manager.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.Session.Registry == nil {
		return nil, ErrNoRegistry
	}
	if config.MaxSessions <= 0 {
		config.MaxSessions = DefaultMaxSessions
	}

	m := &Manager{
		template:    config.Session,
		maxSessions: config.MaxSessions,
		live:        make(map[*Session]struct{}),
		paused:      make(map[string]*Session),
		listener:    config.Listener,
	}
	if config.Session.LoggerFactory != nil {
		m.log = config.Session.LoggerFactory.NewLogger("session-manager")
	}
	return m, nil
}

// NewSession creates and tracks a session. secure is copied into the
// session's Secure flag.
// Returns ErrSessionTableFull if the manager is at capacity.
func (m *Manager) NewSession(secure bool) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.live)+len(m.paused) >= m.maxSessions {
		return nil, ErrSessionTableFull
	}

	cfg := m.template
	cfg.Secure = secure
	cfg.PreviousID = IDFromValue(m.lastID.Load())
	cfg.onAssign = m.remember
	s, err := New(cfg)
	if err != nil {
		return nil, err
	}

	s.Subscribe(&managerListener{m: m, s: s})
	if m.listener != nil {
		s.Subscribe(m.listener)
	}
	m.live[s] = struct{}{}

	if m.log != nil {
		m.log.Debugf("session created, %d live", len(m.live))
	}
	return s, nil
}

// Resume reactivates the paused session holding token and returns it.
// Returns ErrSessionNotFound if no paused session matches.
func (m *Manager) Resume(token string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.paused[token]
	if ok {
		delete(m.paused, token)
		m.live[s] = struct{}{}
	}
	m.mu.Unlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	if err := s.Resume(); err != nil {
		return nil, err
	}
	if m.log != nil {
		m.log.Infof("session %s resumed", s.ID())
	}
	return s, nil
}

// FindPaused returns the paused session with identifier id.
func (m *Manager) FindPaused(id ID) (*Session, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for token, s := range m.paused {
		if s.ID() == id {
			return s, token, true
		}
	}
	return nil, "", false
}

// Find returns the live session with identifier id.
func (m *Manager) Find(id ID) (*Session, bool) {
	if id.IsZero() {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for s := range m.live {
		if s.ID() == id {
			return s, true
		}
	}
	return nil, false
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.live)
}

// PausedCount returns the number of paused sessions.
func (m *Manager) PausedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.paused)
}

// IsFull returns true if no more sessions can be created.
func (m *Manager) IsFull() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.live)+len(m.paused) >= m.maxSessions
}

// ForEach calls fn for each live session.
// The callback should return true to continue.
func (m *Manager) ForEach(fn func(*Session) bool) {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.live))
	for s := range m.live {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		if !fn(s) {
			return
		}
	}
}

// Close terminates every live and paused session with reason.
func (m *Manager) Close(reason string) error {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.live)+len(m.paused))
	for s := range m.live {
		sessions = append(sessions, s)
	}
	for _, s := range m.paused {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Terminate(reason, true); err != nil && !errors.Is(err, ErrInvalidState) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// remember records the last identifier assigned in this process.
func (m *Manager) remember(id ID) {
	if !id.IsZero() {
		m.lastID.Store(id.Value())
	}
}

// LastID returns the last identifier assigned to a managed session.
func (m *Manager) LastID() ID {
	return IDFromValue(m.lastID.Load())
}

// managerListener moves one session between the manager's tables.
type managerListener struct {
	m *Manager
	s *Session
}

func (l *managerListener) OnPause(ev PauseEvent) error {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	delete(l.m.live, l.s)
	l.m.paused[ev.Token] = l.s
	return nil
}

func (l *managerListener) OnTerminate(ev TerminationEvent) error {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	delete(l.m.live, l.s)
	for token, s := range l.m.paused {
		if s == l.s {
			delete(l.m.paused, token)
		}
	}
	if l.m.log != nil {
		l.m.log.Debugf("session %s removed, %d live", ev.SessionID, len(l.m.live))
	}
	return nil
}
