package guard

import (
	"log/slog"
	"sync"
	"time"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/authlab/storage"
)

const (
	sessionBucket     = "__sessions"
	sessionRecordType = "SESSION"
	cleanupInterval   = 5 * time.Minute
)

// SealedSessionStore keeps sessions in a storage.Repository, sealed with
// AES-256-GCM under a key held in a memguard enclave. Sessions survive a
// restart when the repository is persistent.
type SealedSessionStore struct {
	repo     storage.Repository
	sealer   *storage.Sealer
	clock    Clock
	logger   *slog.Logger
	stopOnce sync.Once
	stopCh   chan struct{}
}

var _ SessionStore = (*SealedSessionStore)(nil)

// NewSealedSessionStore creates a session store backed by repo and starts a
// background sweep of expired sessions. Call Close to stop it.
func NewSealedSessionStore(repo storage.Repository, key *memguard.Enclave, clock Clock, logger *slog.Logger) *SealedSessionStore {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &SealedSessionStore{
		repo:   repo,
		sealer: storage.NewSealer(key, "session"),
		clock:  clock,
		logger: logger.With("component", "sessions"),
		stopCh: make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// Close stops the background cleanup goroutine.
func (s *SealedSessionStore) Close() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *SealedSessionStore) Get(id string) (Session, bool) {
	session, err := s.open(id)
	if err != nil {
		return Session{}, false
	}
	if expired(session, s.clock.Now()) {
		s.Delete(id)
		return Session{}, false
	}
	return session, true
}

func (s *SealedSessionStore) Put(id string, session Session) {
	env, err := s.sealer.SealJSON(id, session, 0)
	if err != nil {
		s.logger.Error("sealing session", "error", err)
		return
	}
	if err := s.repo.Put(sessionBucket, sessionRecordType, id, env); err != nil {
		s.logger.Error("storing session", "error", err)
	}
}

func (s *SealedSessionStore) Delete(id string) {
	_ = s.repo.Delete(sessionBucket, sessionRecordType, id)
}

func (s *SealedSessionStore) open(id string) (Session, error) {
	env, err := s.repo.Get(sessionBucket, sessionRecordType, id)
	if err != nil {
		return Session{}, err
	}
	var session Session
	if err := s.sealer.OpenJSON(id, env, &session); err != nil {
		return Session{}, err
	}
	return session, nil
}

func (s *SealedSessionStore) cleanupLoop() {
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

// sweepExpired removes expired sessions and any record that no longer
// opens under the current key.
func (s *SealedSessionStore) sweepExpired() {
	ids, err := s.repo.List(sessionBucket, sessionRecordType)
	if err != nil {
		return
	}
	now := s.clock.Now()
	removed := 0
	for _, id := range ids {
		session, err := s.open(id)
		if err != nil || expired(session, now) {
			s.Delete(id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("swept sessions", "removed", removed)
	}
}
