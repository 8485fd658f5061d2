package guard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// SessionCookieName is the cookie that carries the signed session ID.
	SessionCookieName = "authlab_session"
	sessionIssuer     = "authlab"
)

type contextKey int

const sessionKey contextKey = iota

// SessionManager binds a SessionStore to HTTP requests. The client holds an
// HS256-signed token whose jti is the session ID; the record itself never
// leaves the server.
type SessionManager struct {
	store  SessionStore
	key    *memguard.Enclave
	ttl    time.Duration
	clock  Clock
	logger *slog.Logger
}

// NewSessionManager creates a manager that signs cookies with the key held
// in signingKey.
func NewSessionManager(store SessionStore, signingKey *memguard.Enclave, ttl time.Duration, clock Clock, logger *slog.Logger) *SessionManager {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		store:  store,
		key:    signingKey,
		ttl:    ttl,
		clock:  clock,
		logger: logger.With("component", "sessions"),
	}
}

// SessionFromContext returns the session loaded by SessionManager.Middleware.
func SessionFromContext(ctx context.Context) *Session {
	st, _ := ctx.Value(sessionKey).(*sessionState)
	if st == nil {
		return nil
	}
	return &st.session
}

type sessionState struct {
	id        string
	stored    bool
	hadCookie bool
	session   Session
	original  Session
	committed bool
}

// Middleware loads the caller's session (or starts an empty one) into the
// request context and saves it before the first byte of the response is
// written.
func (m *SessionManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := m.load(r)
		sw := &sessionWriter{ResponseWriter: w, commit: func() { m.commit(w, r, st) }}
		next.ServeHTTP(sw, r.WithContext(context.WithValue(r.Context(), sessionKey, st)))
		sw.commitOnce()
	})
}

func (m *SessionManager) load(r *http.Request) *sessionState {
	st := &sessionState{}
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return st
	}
	st.hadCookie = true
	id, err := m.parse(cookie.Value)
	if err != nil {
		m.logger.Debug("rejecting session cookie", "error", err)
		return st
	}
	if session, ok := m.store.Get(id); ok {
		st.id = id
		st.stored = true
		st.session = session
		st.original = session
	}
	return st
}

func (m *SessionManager) commit(w http.ResponseWriter, r *http.Request, st *sessionState) {
	if st.committed {
		return
	}
	st.committed = true
	s := &st.session

	if s.regenerate && st.stored {
		m.store.Delete(st.id)
		st.stored = false
		st.id = ""
	}
	if s.empty() {
		if st.stored {
			m.store.Delete(st.id)
		}
		if st.hadCookie {
			clearSessionCookie(w, r)
		}
		return
	}
	if st.stored && *s == st.original {
		return
	}

	newID := st.id == ""
	if newID {
		st.id = uuid.NewString()
		s.ExpiresAt = m.clock.Now().Add(m.ttl)
	}
	m.store.Put(st.id, *s)
	if !newID {
		return
	}
	token, err := m.sign(st.id, s.ExpiresAt)
	if err != nil {
		m.logger.Error("signing session cookie", "error", err)
		return
	}
	writeSessionCookie(w, r, token, s.ExpiresAt)
}

func (m *SessionManager) sign(id string, expiresAt time.Time) (string, error) {
	buf, err := m.key.Open()
	if err != nil {
		return "", err
	}
	defer buf.Destroy()

	claims := jwt.RegisteredClaims{
		ID:        id,
		Issuer:    sessionIssuer,
		IssuedAt:  jwt.NewNumericDate(m.clock.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(buf.Bytes())
}

func (m *SessionManager) parse(raw string) (string, error) {
	buf, err := m.key.Open()
	if err != nil {
		return "", err
	}
	defer buf.Destroy()

	var claims jwt.RegisteredClaims
	_, err = jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return buf.Bytes(), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.clock.Now),
	)
	if err != nil {
		return "", err
	}
	if claims.ID == "" {
		return "", errors.New("session token has no id")
	}
	return claims.ID, nil
}

// sessionWriter saves the session just before the response is committed.
type sessionWriter struct {
	http.ResponseWriter
	commit func()
	done   bool
}

func (w *sessionWriter) commitOnce() {
	if !w.done {
		w.done = true
		w.commit()
	}
}

func (w *sessionWriter) WriteHeader(status int) {
	w.commitOnce()
	w.ResponseWriter.WriteHeader(status)
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	w.commitOnce()
	return w.ResponseWriter.Write(b)
}

func (w *sessionWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func writeSessionCookie(w http.ResponseWriter, r *http.Request, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   RequestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
		Expires:  expiresAt,
	})
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   RequestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

// RequestIsSecure reports whether the request arrived over TLS directly or
// through a proxy that says so.
func RequestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}
