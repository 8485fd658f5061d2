package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jmcleod/authlab/audit"
	"github.com/jmcleod/authlab/guard"
	"github.com/jmcleod/authlab/labstore"
)

const (
	guestbookTag = "api_guestbook"
	maxBodyBytes = 64 << 10
)

// ListMessages returns guestbook messages newest first.
func (a *API) ListMessages(w http.ResponseWriter, r *http.Request) {
	c := a.caller(r, guestbookTag)
	user, _, ok := a.authenticate(w, r, c)
	if !ok {
		return
	}

	limit, offset := parsePagination(r)
	msgs, total, err := a.guestbook.List(limit, offset)
	if err != nil {
		a.logger.Error("listing guestbook", "error", err)
		writeError(w, CodeServerError, nil)
		return
	}

	page := newPage(msgs, total, offset, limit)
	a.guard.Audit(r.Context(), c, audit.Name(user), true, guestbookTag, "list",
		map[string]any{"count": page.Count, "total": total})
	writeJSON(w, http.StatusOK, page)
}

// PostMessage appends a guestbook message. Checks run in order: session,
// X-CSRF-Token, rate limit, content type, non-empty message.
func (a *API) PostMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := a.caller(r, guestbookTag)
	user, s, ok := a.authenticate(w, r, c)
	if !ok {
		return
	}

	if err := a.guard.CheckCSRF(ctx, s, c, r.Header.Get(guard.CSRFHeader), user, true); err != nil {
		writeGuardError(w, err)
		return
	}
	if err := a.guard.Throttle(ctx, c, a.buckets.Guestbook, user); err != nil {
		writeGuardError(w, err)
		return
	}

	if !isJSON(r) {
		a.guard.Audit(ctx, c, audit.Name(user), true, guestbookTag, string(CodeBadJSON), nil)
		writeError(w, CodeBadJSON, nil)
		return
	}

	// A malformed body or a non-string message counts as empty. A body over
	// the limit is rejected rather than read as empty.
	var body map[string]any
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body)
	if maxErr := (*http.MaxBytesError)(nil); errors.As(err, &maxErr) {
		a.guard.Audit(ctx, c, audit.Name(user), true, guestbookTag, string(CodeBadJSON),
			map[string]any{"limit": maxErr.Limit})
		writeError(w, CodeBadJSON, nil)
		return
	}
	text, _ := body["message"].(string)

	msg, err := a.guestbook.Post(user, text)
	if errors.Is(err, labstore.ErrEmptyMessage) {
		a.guard.Audit(ctx, c, audit.Name(user), true, guestbookTag, string(CodeEmpty), nil)
		writeError(w, CodeEmpty, nil)
		return
	}
	if err != nil {
		a.logger.Error("posting guestbook message", "error", err)
		writeError(w, CodeServerError, nil)
		return
	}

	a.guard.Audit(ctx, c, audit.Name(user), true, guestbookTag, "created",
		map[string]any{"len": utf8.RuneCountInString(msg.Message)})
	w.Header().Set("Location", "/api/v1/guestbook/messages/"+strconv.FormatInt(msg.ID, 10))
	writeJSON(w, http.StatusCreated, msg)
}

// isJSON accepts application/json and any +json media type.
func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
