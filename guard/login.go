package guard

import (
	"context"
	"strings"

	"github.com/jmcleod/authlab/internal/passhash"
)

// Login runs the password step. CSRF is checked first, then the attempt is
// rate limited on the login bucket before the identity is looked up, so
// unknown usernames spend budget too. Unknown users and wrong passwords
// both return ErrInvalidCredentials.
//
// On success the returned state is StateAuthenticated, or StatePendingMFA
// when the identity has MFA enabled.
func (g *Guard) Login(ctx context.Context, s *Session, c Caller, username, password, csrf string) (State, error) {
	username = strings.TrimSpace(username)

	if err := g.CheckCSRF(ctx, s, c, csrf, username, false); err != nil {
		return s.State(), err
	}
	if err := g.throttle(ctx, c, g.settings.LoginBucket, username, false); err != nil {
		return s.State(), err
	}

	id, ok := g.dir.Lookup(username)
	if !ok {
		g.Audit(ctx, c, optionalName(username), false, resultInvalid, "no_user", nil)
		return s.State(), ErrInvalidCredentials
	}
	if !passhash.Verify(id.PasswordHash, password) {
		g.Audit(ctx, c, optionalName(username), true, resultInvalid, "bad_password", nil)
		return s.State(), ErrInvalidCredentials
	}

	if id.MFAEnabled {
		s.User = ""
		s.PendingUser = id.Username
		g.Audit(ctx, c, optionalName(username), true, "mfa_required", "mfa_required", nil)
		return StatePendingMFA, nil
	}

	s.Reset()
	s.User = id.Username
	g.Audit(ctx, c, optionalName(username), true, resultSuccess, "success", nil)
	return StateAuthenticated, nil
}

// VerifyMFA runs the one-time code step for the session's pending identity.
// A wrong code keeps the pending state, rotates the CSRF token and returns
// ErrMFABad. If the pending identity can no longer do MFA the pending state
// is dropped and ErrNoPendingLogin is returned.
func (g *Guard) VerifyMFA(ctx context.Context, s *Session, c Caller, code, csrf string) error {
	pending := s.PendingUser
	if pending == "" {
		return ErrNoPendingLogin
	}

	if err := g.CheckCSRF(ctx, s, c, csrf, pending, true); err != nil {
		return err
	}
	if err := g.throttle(ctx, c, g.settings.MFABucket, pending, true); err != nil {
		return err
	}

	id, ok := g.dir.Lookup(pending)
	if !ok || !id.mfaCapable() {
		s.PendingUser = ""
		g.Audit(ctx, c, optionalName(pending), ok, resultInvalid, "mfa_abandoned", nil)
		return ErrNoPendingLogin
	}

	if g.checkCode(id, code) {
		s.Reset()
		s.User = id.Username
		g.Audit(ctx, c, optionalName(pending), true, resultSuccess, "mfa_ok", nil)
		return nil
	}

	RotateCSRFToken(s)
	g.Audit(ctx, c, optionalName(pending), true, resultInvalid, string(CodeMFABad), nil)
	return ErrMFABad
}

func (g *Guard) checkCode(id Identity, code string) bool {
	secret, err := id.MFASecret.Open()
	if err != nil {
		g.logger.Error("opening mfa secret", "user", id.Username, "error", err)
		return false
	}
	defer secret.Destroy()
	return VerifyTOTP(secret.String(), code, g.clock.Now(), g.settings.MFAWindow)
}

// CancelMFA abandons a pending login. CSRF is required so a third-party page
// cannot reset someone's login.
func (g *Guard) CancelMFA(ctx context.Context, s *Session, c Caller, csrf string) error {
	pending := s.PendingUser
	if pending == "" {
		return ErrNoPendingLogin
	}
	if err := g.CheckCSRF(ctx, s, c, csrf, pending, true); err != nil {
		return err
	}
	s.PendingUser = ""
	g.Audit(ctx, c, optionalName(pending), g.known(pending), resultInvalid, "mfa_abandoned", nil)
	return nil
}

// Logout clears an authenticated session after a CSRF check. A failed check
// leaves the user logged in with a rotated token.
func (g *Guard) Logout(ctx context.Context, s *Session, c Caller, csrf string) error {
	user := s.User
	if user == "" {
		return ErrUnauthorized
	}
	if err := g.CheckCSRF(ctx, s, c, csrf, user, true); err != nil {
		return err
	}
	g.Audit(ctx, c, optionalName(user), true, "logout", "ok", nil)
	s.Reset()
	return nil
}
