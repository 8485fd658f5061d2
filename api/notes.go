package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/authlab/audit"
	"github.com/jmcleod/authlab/labstore"
)

const notesTag = "api_notes"

// ListNotes pages the caller's own notes.
func (a *API) ListNotes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := a.caller(r, notesTag)
	user, _, ok := a.authenticate(w, r, c)
	if !ok {
		return
	}
	if err := a.guard.Throttle(ctx, c, a.buckets.Notes, user); err != nil {
		writeGuardError(w, err)
		return
	}

	q := r.URL.Query()
	owner := strings.ToLower(user)
	limit, offset := parsePagination(r)
	sortBy := lowerOr(q.Get("sort_by"), "title")
	sortDir := lowerOr(q.Get("sort_dir"), "asc")

	notes, total, err := a.store.ListNotes(ctx, labstore.NoteQuery{
		Owner: owner, SortBy: sortBy, SortDir: sortDir, Limit: limit, Offset: offset,
	})
	if err != nil {
		a.writeStoreError(w, err)
		return
	}

	items := make([]NoteSummary, len(notes))
	for i, n := range notes {
		items[i] = NoteSummary{ID: n.ID, Title: n.Title}
	}

	params := url.Values{"sort_by": {sortBy}, "sort_dir": {sortDir}}
	if link := pageLinks("/api/v1/notes", params, offset, limit, total); link != "" {
		w.Header().Set("Link", link)
	}

	a.guard.Audit(ctx, c, audit.Name(user), true, notesTag, "list", map[string]any{
		"user":   owner,
		"sort":   sortBy + ":" + sortDir,
		"limit":  limit,
		"offset": offset,
		"count":  len(items),
		"total":  total,
	})
	writeJSON(w, http.StatusOK, newPage(items, total, offset, limit))
}

// GetNote returns one of the caller's notes. Foreign and missing notes get
// the same 404.
func (a *API) GetNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := a.caller(r, notesTag)
	user, _, ok := a.authenticate(w, r, c)
	if !ok {
		return
	}
	if err := a.guard.Throttle(ctx, c, a.buckets.Notes, user); err != nil {
		writeGuardError(w, err)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "noteID"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, CodeNotFound, nil)
		return
	}

	note, err := a.store.OwnedNote(ctx, id, strings.ToLower(user))
	if errors.Is(err, labstore.ErrNotFound) {
		a.guard.Audit(ctx, c, audit.Name(user), true, notesTag, "detail_masked_404", map[string]any{"note_id": id})
		writeError(w, CodeNotFound, nil)
		return
	}
	if err != nil {
		a.writeStoreError(w, err)
		return
	}

	a.guard.Audit(ctx, c, audit.Name(user), true, notesTag, "detail_ok", map[string]any{"note_id": id})
	writeJSON(w, http.StatusOK, NoteDetail{ID: note.ID, Title: note.Title, Body: note.Body})
}

func lowerOr(v, def string) string {
	if v = strings.ToLower(strings.TrimSpace(v)); v == "" {
		return def
	}
	return v
}

// writeStoreError maps labstore errors to envelopes and logs anything
// unexpected.
func (a *API) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, labstore.ErrInvalidSortBy):
		writeError(w, CodeInvalidSortBy, nil)
	case errors.Is(err, labstore.ErrInvalidSortDir):
		writeError(w, CodeInvalidSortDir, nil)
	case errors.Is(err, labstore.ErrNotFound):
		writeError(w, CodeNotFound, nil)
	default:
		a.logger.Error("lab store query failed", "error", err)
		writeError(w, CodeServerError, nil)
	}
}
