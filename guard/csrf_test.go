package guard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureCSRFToken_Idempotent(t *testing.T) {
	var s Session
	tok := EnsureCSRFToken(&s)
	assert.Len(t, tok, 64)
	assert.Regexp(t, `^[0-9a-f]{64}$`, tok)
	assert.Equal(t, tok, EnsureCSRFToken(&s))
	assert.Equal(t, tok, s.CSRFToken)
}

func TestValidCSRFToken(t *testing.T) {
	var s Session
	assert.False(t, ValidCSRFToken(&s, ""), "no token on either side")
	assert.False(t, ValidCSRFToken(&s, "abc"), "no token in session")

	tok := EnsureCSRFToken(&s)
	assert.False(t, ValidCSRFToken(&s, ""))
	assert.False(t, ValidCSRFToken(&s, tok[:63]))
	assert.False(t, ValidCSRFToken(&s, tok+"0"))
	assert.True(t, ValidCSRFToken(&s, tok))
}

func TestCheckCSRF_HeaderMismatchRotates(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	var s Session
	s.User = "admin"
	stored := EnsureCSRFToken(&s)

	c := Caller{IP: "198.51.100.1", Route: "/api/v1/guestbook/messages"}
	err := f.g.CheckCSRF(context.Background(), &s, c, "not-the-token", s.User, true)
	require.ErrorIs(t, err, ErrCSRF)
	assert.Equal(t, CodeCSRF, CodeOf(err))
	assert.Equal(t, 400, CodeOf(err).Status())

	next := EnsureCSRFToken(&s)
	assert.NotEqual(t, stored, next, "token must rotate after a mismatch")
	assert.Equal(t, "admin", s.User, "a CSRF failure never logs the user out")

	rec := f.sink.last()
	assert.Equal(t, "invalid", rec.Result)
	assert.Equal(t, "csrf_bad", rec.Reason)
	assert.Equal(t, "198.51.100.1", rec.IP)
	require.NotNil(t, rec.Username)
	assert.Equal(t, "admin", *rec.Username)
}

func TestCheckCSRF_ValidTokenIsStable(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	var s Session
	tok := EnsureCSRFToken(&s)

	require.NoError(t, f.g.CheckCSRF(context.Background(), &s, testCaller(), tok, "", false))
	assert.Equal(t, tok, s.CSRFToken, "success never rotates")
	assert.Empty(t, f.sink.records(), "passing checks are not audited")
}

func TestCheckCSRF_RotatedTokenRejectsReplay(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	var s Session
	old := EnsureCSRFToken(&s)
	RotateCSRFToken(&s)

	err := f.g.CheckCSRF(context.Background(), &s, testCaller(), old, "", false)
	assert.ErrorIs(t, err, ErrCSRF)
}

func TestCheckCSRF_TagOverridesResult(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	s := Session{User: "admin"}
	EnsureCSRFToken(&s)

	c := Caller{IP: "198.51.100.1", Route: "/api/v1/guestbook/messages", Tag: "api_guestbook"}
	require.ErrorIs(t, f.g.CheckCSRF(context.Background(), &s, c, "", s.User, true), ErrCSRF)
	assert.Equal(t, "api_guestbook", f.sink.last().Result)
	assert.Equal(t, "csrf_bad", f.sink.last().Reason)
}
