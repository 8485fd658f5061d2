package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/jmcleod/authlab/guard"
)

const (
	msgInvalidSession = "Invalid session"
	msgInvalidCreds   = "Invalid credentials"
	msgInvalidCode    = "Invalid one-time code"
	msgTooMany        = "Too many attempts, try again later"
)

func (wb *Web) LoginPage(w http.ResponseWriter, r *http.Request) {
	s := sessionOf(r)
	wb.render(w, http.StatusOK, "login", view{Title: "Sign in", CSRFToken: guard.EnsureCSRFToken(s)})
}

// Login runs the password step and sends the browser on to the dashboard
// or the MFA form.
func (wb *Web) Login(w http.ResponseWriter, r *http.Request) {
	s := sessionOf(r)
	c := wb.guard.Caller(r)
	state, err := wb.guard.Login(r.Context(), s, c,
		r.PostFormValue("username"), r.PostFormValue("password"), r.PostFormValue(guard.CSRFFormField))
	if err != nil {
		status, msg := failure(w, err)
		wb.render(w, status, "login", view{Title: "Sign in", Error: msg, CSRFToken: guard.EnsureCSRFToken(s)})
		return
	}
	if state == guard.StatePendingMFA {
		redirectSeeOther(w, r, "/mfa")
		return
	}
	redirectSeeOther(w, r, "/dashboard")
}

func (wb *Web) MFAPage(w http.ResponseWriter, r *http.Request) {
	s := sessionOf(r)
	if s.PendingUser == "" {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	wb.render(w, http.StatusOK, "mfa", view{Title: "One-time code", CSRFToken: guard.EnsureCSRFToken(s)})
}

func (wb *Web) VerifyMFA(w http.ResponseWriter, r *http.Request) {
	s := sessionOf(r)
	c := wb.guard.Caller(r)
	err := wb.guard.VerifyMFA(r.Context(), s, c, r.PostFormValue("code"), r.PostFormValue(guard.CSRFFormField))
	switch {
	case err == nil:
		redirectSeeOther(w, r, "/dashboard")
	case errors.Is(err, guard.ErrNoPendingLogin):
		redirectSeeOther(w, r, "/login")
	default:
		status, msg := failure(w, err)
		wb.render(w, status, "mfa", view{Title: "One-time code", Error: msg, CSRFToken: guard.EnsureCSRFToken(s)})
	}
}

// CancelMFA abandons the pending login and returns to the login form.
func (wb *Web) CancelMFA(w http.ResponseWriter, r *http.Request) {
	s := sessionOf(r)
	err := wb.guard.CancelMFA(r.Context(), s, wb.guard.Caller(r), r.PostFormValue(guard.CSRFFormField))
	if errors.Is(err, guard.ErrCSRF) {
		wb.render(w, http.StatusBadRequest, "mfa", view{Title: "One-time code", Error: msgInvalidSession, CSRFToken: guard.EnsureCSRFToken(s)})
		return
	}
	redirectSeeOther(w, r, "/login")
}

func (wb *Web) Dashboard(w http.ResponseWriter, r *http.Request) {
	user, s, _, ok := wb.requireUser(w, r)
	if !ok {
		return
	}
	wb.render(w, http.StatusOK, "dashboard", view{Title: "Dashboard", User: user, CSRFToken: guard.EnsureCSRFToken(s)})
}

// Logout needs a valid form token. On a mismatch the user stays on the
// dashboard with a fresh token.
func (wb *Web) Logout(w http.ResponseWriter, r *http.Request) {
	s := sessionOf(r)
	user := s.User
	err := wb.guard.Logout(r.Context(), s, wb.guard.Caller(r), r.PostFormValue(guard.CSRFFormField))
	switch {
	case err == nil, errors.Is(err, guard.ErrUnauthorized):
		redirectSeeOther(w, r, "/login")
	default:
		wb.render(w, http.StatusBadRequest, "dashboard", view{
			Title: "Dashboard", User: user, Error: msgInvalidSession, CSRFToken: guard.EnsureCSRFToken(s),
		})
	}
}

// failure maps a guard error to a status and message, setting Retry-After
// for rate-limit denials.
func failure(w http.ResponseWriter, err error) (int, string) {
	code := guard.CodeOf(err)
	switch code {
	case guard.CodeCSRF:
		return code.Status(), msgInvalidSession
	case guard.CodeRateLimited:
		w.Header().Set("Retry-After", strconv.Itoa(guard.RetryAfterOf(err)))
		return code.Status(), msgTooMany
	case guard.CodeMFABad:
		return code.Status(), msgInvalidCode
	default:
		return http.StatusUnauthorized, msgInvalidCreds
	}
}
