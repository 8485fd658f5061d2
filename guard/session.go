package guard

import (
	"sync"
	"time"
)

// State is the login state a session is in.
type State int

const (
	StateAnonymous State = iota
	StatePendingMFA
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StatePendingMFA:
		return "pending_mfa"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// Session is the server-side record behind a session cookie. User and
// PendingUser are never both set.
type Session struct {
	User        string    `json:"user,omitempty"`
	PendingUser string    `json:"pending_user,omitempty"`
	CSRFToken   string    `json:"csrf_token,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`

	// regenerate asks the transport to drop the current session ID and
	// issue a fresh one when the session is saved.
	regenerate bool
}

// State derives the login state from the session keys.
func (s *Session) State() State {
	switch {
	case s.User != "":
		return StateAuthenticated
	case s.PendingUser != "":
		return StatePendingMFA
	default:
		return StateAnonymous
	}
}

// Reset clears every key and marks the session for a new identifier, so
// nothing from a pre-login session carries over.
func (s *Session) Reset() {
	s.User = ""
	s.PendingUser = ""
	s.CSRFToken = ""
	s.regenerate = true
}

// Regenerate reports whether Reset was called since the session was loaded.
func (s *Session) Regenerate() bool {
	return s.regenerate
}

func (s *Session) empty() bool {
	return s.User == "" && s.PendingUser == "" && s.CSRFToken == ""
}

// SessionStore maps opaque session identifiers to session records.
type SessionStore interface {
	// Get retrieves a session by ID. Returns false if the session does not
	// exist or has expired.
	Get(id string) (Session, bool)
	// Put creates or updates the session stored under id.
	Put(id string, session Session)
	// Delete removes a session by ID.
	Delete(id string)
}

// MemorySessionStore is a thread-safe in-memory SessionStore.
// Sessions are lost on server restart.
type MemorySessionStore struct {
	mu       sync.RWMutex
	data     map[string]Session
	clock    Clock
	stopOnce sync.Once
	stopCh   chan struct{}
}

var _ SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore creates an in-memory session store and starts a
// background sweep of expired sessions. A nil clock uses SystemClock. Call
// Close to stop the sweep.
func NewMemorySessionStore(clock Clock) *MemorySessionStore {
	if clock == nil {
		clock = SystemClock
	}
	s := &MemorySessionStore{
		data:   make(map[string]Session),
		clock:  clock,
		stopCh: make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// Close stops the background cleanup goroutine.
func (s *MemorySessionStore) Close() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *MemorySessionStore) Get(id string) (Session, bool) {
	s.mu.RLock()
	session, ok := s.data[id]
	s.mu.RUnlock()
	if !ok {
		return Session{}, false
	}
	if expired(session, s.clock.Now()) {
		s.Delete(id)
		return Session{}, false
	}
	return session, true
}

func (s *MemorySessionStore) Put(id string, session Session) {
	session.regenerate = false
	s.mu.Lock()
	s.data[id] = session
	s.mu.Unlock()
}

func (s *MemorySessionStore) Delete(id string) {
	s.mu.Lock()
	delete(s.data, id)
	s.mu.Unlock()
}

// Len returns the number of stored sessions, including expired ones the
// sweep has not reached yet.
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *MemorySessionStore) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweepExpired()
		}
	}
}

// sweepExpired removes every expired session and returns how many it
// dropped.
func (s *MemorySessionStore) sweepExpired() int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, session := range s.data {
		if expired(session, now) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

func expired(s Session, now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
