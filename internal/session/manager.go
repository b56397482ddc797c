package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/campus-skillshare/backend/internal/conversations"
	"github.com/campus-skillshare/backend/internal/identity"
	"github.com/campus-skillshare/backend/internal/presence"
	"github.com/campus-skillshare/backend/internal/reconciler"
	"github.com/campus-skillshare/backend/internal/repositories"
	"go.uber.org/zap"
)

var (
	// ErrClosed is returned by Open after CloseAll.
	ErrClosed = errors.New("session manager closed")
	// ErrEnded is returned by Open for a session that was already closed.
	ErrEnded = errors.New("session ended")
	// ErrExpired is returned by Open for an identity whose token has expired.
	ErrExpired = errors.New("session expired")
)

// Deps is what every session is built from.
type Deps struct {
	Users         repositories.UserRepository
	Relationships repositories.RelationshipRepository
	Conversations repositories.ConversationRepository
	Reconciler    *reconciler.Reconciler
	Journal       conversations.Journal
	Logger        *zap.Logger
	ToastTimeout  time.Duration
	AfterFunc     presence.AfterFunc
	// Expire schedules the close of a session at its token's expiry. time.AfterFunc
	// when nil.
	Expire presence.AfterFunc
	Now    func() time.Time
}

// Manager keeps one Session per live session id. Sessions open on sign-in (or on
// first use of a token issued before a restart) and close on sign-out or when the
// token expires. A closed session id is never reopened.
type Manager struct {
	deps   Deps
	logger *zap.Logger
	ctx    context.Context
	stop   context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
	timers   map[string]presence.Timer
	ended    map[string]time.Time // session id -> token expiry, zero if unknown
	closed   bool
}

func NewManager(deps Deps) *Manager {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	deps.Logger = deps.Logger.Named("session")
	if deps.Expire == nil {
		deps.Expire = func(d time.Duration, f func()) presence.Timer { return time.AfterFunc(d, f) }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Manager{
		deps:     deps,
		logger:   deps.Logger,
		ctx:      ctx,
		stop:     stop,
		sessions: make(map[string]*Session),
		timers:   make(map[string]presence.Timer),
		ended:    make(map[string]time.Time),
	}
}

// Attach follows the provider's sign-in and sign-out events.
func (m *Manager) Attach(p identity.Provider) (detach func()) {
	return p.OnAuthStateChanged(func(e identity.AuthEvent) {
		switch e.Kind {
		case identity.SignedIn:
			if _, err := m.Open(e.Identity); err != nil {
				m.logger.Warn("open session", zap.String("uid", e.Identity.UID), zap.Error(err))
			}
		case identity.SignedOut:
			m.Close(e.Identity.SessionID)
		}
	})
}

// Open returns the session for id, starting it if needed. It refuses ids that were
// closed before and identities that have already expired.
func (m *Manager) Open(id identity.Identity) (*Session, error) {
	m.mu.Lock()
	if s, err := m.lookupLocked(id); s != nil || err != nil {
		m.mu.Unlock()
		return s, err
	}
	m.mu.Unlock()

	if !id.ExpiresAt.IsZero() && !id.ExpiresAt.After(m.deps.Now()) {
		return nil, ErrExpired
	}

	s := newSession(id, m.deps)
	if err := s.start(m.ctx); err != nil {
		s.Close()
		return nil, err
	}

	m.mu.Lock()
	if existing, err := m.lookupLocked(id); existing != nil || err != nil {
		m.mu.Unlock()
		s.Close()
		return existing, err
	}
	m.sessions[id.SessionID] = s
	if !id.ExpiresAt.IsZero() {
		sessionID := id.SessionID
		m.timers[sessionID] = m.deps.Expire(id.ExpiresAt.Sub(m.deps.Now()), func() {
			if m.Close(sessionID) {
				m.logger.Debug("session expired", zap.String("session", sessionID))
			}
		})
	}
	m.mu.Unlock()

	m.logger.Debug("session opened", zap.String("uid", id.UID), zap.String("session", id.SessionID))
	return s, nil
}

func (m *Manager) lookupLocked(id identity.Identity) (*Session, error) {
	if m.closed {
		return nil, ErrClosed
	}
	if _, gone := m.ended[id.SessionID]; gone {
		return nil, ErrEnded
	}
	if s, ok := m.sessions[id.SessionID]; ok {
		return s, nil
	}
	return nil, nil
}

// Get returns a session that is already open.
func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// Close ends one session and keeps it from being reopened. It reports whether the
// session was open.
func (m *Manager) Close(sessionID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	var expiresAt time.Time
	if ok {
		expiresAt = s.Identity().ExpiresAt
	}
	m.mu.Unlock()
	return m.end(sessionID, expiresAt)
}

func (m *Manager) end(sessionID string, expiresAt time.Time) bool {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	if t, scheduled := m.timers[sessionID]; scheduled {
		t.Stop()
		delete(m.timers, sessionID)
	}
	m.pruneEndedLocked()
	m.ended[sessionID] = expiresAt
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.Close()
	m.logger.Debug("session closed", zap.String("session", sessionID))
	return true
}

// pruneEndedLocked forgets ended sessions whose tokens have expired; Verify refuses
// those tokens on its own.
func (m *Manager) pruneEndedLocked() {
	now := m.deps.Now()
	for id, exp := range m.ended {
		if !exp.IsZero() && exp.Before(now) {
			delete(m.ended, id)
		}
	}
}

// CloseAll ends every session and refuses new ones.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	m.closed = true
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
	open := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		open = append(open, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range open {
		s.Close()
	}
	m.stop()
}

// Len is the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
