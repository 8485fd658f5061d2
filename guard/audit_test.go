package guard

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/authlab/audit"
)

func TestAudit_SinkFailureDoesNotChangeDecisions(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	failing := audit.SinkFunc(func(context.Context, audit.Record) error {
		return errors.New("disk full")
	})
	f := newFixture(t, fixtureOpts{
		mfa:      true,
		settings: func(s *Settings) { s.MaxAttempts = 2 },
		sink:     failing,
		opts:     []Option{WithLogger(slog.New(slog.NewTextHandler(&logs, nil)))},
	})

	t.Run("Login", func(t *testing.T) {
		s := &Session{}
		state, err := f.g.Login(ctx, s, testCaller(), "admin", testPassword, EnsureCSRFToken(s))
		require.NoError(t, err)
		assert.Equal(t, StatePendingMFA, state)
		assert.Equal(t, "admin", s.PendingUser)

		err = f.g.VerifyMFA(ctx, s, testCaller(), "abcdef", EnsureCSRFToken(s))
		require.ErrorIs(t, err, ErrMFABad)
		assert.Equal(t, StatePendingMFA, s.State())

		require.NoError(t, f.g.VerifyMFA(ctx, s, testCaller(), codeAt(t, f.clock.Now()), s.CSRFToken))
		assert.Equal(t, StateAuthenticated, s.State())
		assert.Equal(t, "admin", s.User)
	})

	t.Run("InvalidCredentials", func(t *testing.T) {
		s := &Session{}
		_, err := f.g.Login(ctx, s, Caller{IP: "198.51.100.9", Route: "/login"}, "alice", "wrong", EnsureCSRFToken(s))
		require.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Equal(t, StateAnonymous, s.State())
	})

	t.Run("ThrottleDenial", func(t *testing.T) {
		c := Caller{IP: "192.0.2.44", Route: "/api/v1/products"}
		require.NoError(t, f.g.Throttle(ctx, c, "api_products", "alice"))
		require.NoError(t, f.g.Throttle(ctx, c, "api_products", "alice"))
		err := f.g.Throttle(ctx, c, "api_products", "alice")
		require.ErrorIs(t, err, ErrRateLimited)
		assert.Positive(t, RetryAfterOf(err))

		f.clock.Advance(11 * time.Second)
		assert.NoError(t, f.g.Throttle(ctx, c, "api_products", "alice"))
	})

	// Every decision still reached the healthy sink, and each failure was logged.
	assert.Equal(t, []string{"mfa_required", "mfa_bad", "mfa_ok", "bad_password", "ratelimited"}, f.sink.reasons())
	assert.Contains(t, logs.String(), "audit append failed")
	assert.Contains(t, logs.String(), "disk full")
}
