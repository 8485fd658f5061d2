package api

import (
	"net/http"

	"github.com/jmcleod/authlab/audit"
	"github.com/jmcleod/authlab/guard"
)

// Session binds the authenticated identity to the cookie session and hands
// out the CSRF token JSON clients must echo in X-CSRF-Token.
func (a *API) Session(w http.ResponseWriter, r *http.Request) {
	c := a.caller(r, "")
	user, s, ok := a.authenticate(w, r, c)
	if !ok {
		return
	}

	if s.User != user {
		// Binding a new identity starts a fresh session so a planted
		// pre-auth cookie never inherits it.
		s.Reset()
		s.User = user
	}
	token := guard.EnsureCSRFToken(s)

	a.guard.Audit(r.Context(), c, audit.Name(user), true, "api_session", "ok", nil)
	writeJSON(w, http.StatusOK, SessionResponse{User: user, CSRFToken: token})
}
