package guard

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
)

const (
	// CSRFFormField carries the token on browser-rendered forms.
	CSRFFormField = "csrf_token"
	// CSRFHeader carries the token on JSON API requests.
	CSRFHeader = "X-CSRF-Token"

	csrfTokenBytes = 32
)

func newCSRFToken() string {
	b := make([]byte, csrfTokenBytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// EnsureCSRFToken returns the session's token, creating one on first use.
func EnsureCSRFToken(s *Session) string {
	if s.CSRFToken == "" {
		s.CSRFToken = newCSRFToken()
	}
	return s.CSRFToken
}

// RotateCSRFToken replaces the session's token and returns the new one.
func RotateCSRFToken(s *Session) string {
	s.CSRFToken = newCSRFToken()
	return s.CSRFToken
}

// ValidCSRFToken reports whether presented matches the session's token.
// Both must be non-empty.
func ValidCSRFToken(s *Session, presented string) bool {
	if s.CSRFToken == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.CSRFToken), []byte(presented)) == 1
}

// CheckCSRF validates presented against the session. On mismatch the token
// is rotated, a csrf_bad record is audited for username and ErrCSRF is
// returned. It never consumes rate-limit budget.
func (g *Guard) CheckCSRF(ctx context.Context, s *Session, c Caller, presented, username string, userExists bool) error {
	if ValidCSRFToken(s, presented) {
		return nil
	}
	RotateCSRFToken(s)
	g.Audit(ctx, c, optionalName(username), userExists, c.denialResult(), string(CodeCSRF), nil)
	return ErrCSRF
}
