package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/authlab/guard"
	"github.com/jmcleod/authlab/labstore"
)

// surfaceReason picks the audit reason for the mode a surface runs in.
func surfaceReason(m guard.Mode, poc, safe string) string {
	if m.Unsafe() {
		return poc
	}
	return safe
}

// Search reflects q back into the page. In poc mode it is not escaped.
func (wb *Web) Search(w http.ResponseWriter, r *http.Request) {
	user, _, c, ok := wb.requireUser(w, r)
	if !ok {
		return
	}
	q := r.URL.Query().Get("q")
	mode := wb.guard.Modes().ReflectedXSS()
	wb.guard.RecordSurface(r.Context(), c, user, guard.SurfaceReflectedXSS,
		surfaceReason(mode, "reflected_poc", "reflected_safe"), map[string]any{"q": q})
	wb.render(w, http.StatusOK, "search", view{Title: "Search", User: user, Mode: mode, Query: q})
}

// Guestbook lists stored messages. In poc mode they are rendered as raw
// markup.
func (wb *Web) Guestbook(w http.ResponseWriter, r *http.Request) {
	user, s, c, ok := wb.requireUser(w, r)
	if !ok {
		return
	}
	msgs, err := wb.guestbook.All()
	if err != nil {
		wb.serverError(w, "listing guestbook", err)
		return
	}
	mode := wb.guard.Modes().StoredXSS()
	wb.guard.RecordSurface(r.Context(), c, user, guard.SurfaceStoredXSS,
		surfaceReason(mode, "stored_poc", "stored_safe"), map[string]any{"count": len(msgs)})
	wb.renderGuestbook(w, http.StatusOK, user, guard.EnsureCSRFToken(s), msgs, "")
}

// PostGuestbook stores the message as submitted and redirects back.
func (wb *Web) PostGuestbook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, s, c, ok := wb.requireUser(w, r)
	if !ok {
		return
	}

	if err := wb.guard.CheckCSRF(ctx, s, c, r.PostFormValue(guard.CSRFFormField), user, true); err != nil {
		wb.guestbookError(w, http.StatusBadRequest, user, s, msgInvalidSession)
		return
	}

	msg, err := wb.guestbook.Post(user, r.PostFormValue("message"))
	if errors.Is(err, labstore.ErrEmptyMessage) {
		wb.guestbookError(w, http.StatusBadRequest, user, s, "Message required")
		return
	}
	if err != nil {
		wb.serverError(w, "posting guestbook message", err)
		return
	}

	wb.guard.RecordSurface(ctx, c, user, guard.SurfaceStoredXSS, "stored_raw",
		map[string]any{"len": utf8.RuneCountInString(msg.Message)})
	redirectSeeOther(w, r, "/guestbook")
}

func (wb *Web) guestbookError(w http.ResponseWriter, status int, user string, s *guard.Session, msg string) {
	msgs, err := wb.guestbook.All()
	if err != nil {
		wb.serverError(w, "listing guestbook", err)
		return
	}
	wb.renderGuestbook(w, status, user, guard.EnsureCSRFToken(s), msgs, msg)
}

func (wb *Web) renderGuestbook(w http.ResponseWriter, status int, user, token string, msgs []labstore.Message, errMsg string) {
	wb.render(w, status, "guestbook", view{
		Title:     "Guestbook",
		User:      user,
		CSRFToken: token,
		Error:     errMsg,
		Mode:      wb.guard.Modes().StoredXSS(),
		Messages:  msgs,
		MaxLen:    wb.maxMsgLen,
	})
}

// Products searches by name. In poc mode q is spliced into the SQL.
func (wb *Web) Products(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _, c, ok := wb.requireUser(w, r)
	if !ok {
		return
	}
	q := r.URL.Query().Get("q")
	mode := wb.guard.Modes().SQLi()

	results, err := wb.store.SearchProducts(ctx, q, mode)
	wb.guard.RecordSurface(ctx, c, user, guard.SurfaceSQLi,
		surfaceReason(mode, "concat_raw", "param_safe"), map[string]any{"q": q})
	if err != nil {
		// A broken injected query is an expected lab outcome, not a crash.
		wb.logger.Warn("product search failed", "mode", mode, "error", err)
		wb.render(w, http.StatusInternalServerError, "products", view{
			Title: "Products", User: user, Mode: mode, Query: q, Error: "Query failed",
		})
		return
	}
	wb.render(w, http.StatusOK, "products", view{Title: "Products", User: user, Mode: mode, Query: q, Products: results})
}

// Notes lists the caller's own notes.
func (wb *Web) Notes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _, c, ok := wb.requireUser(w, r)
	if !ok {
		return
	}
	notes, err := wb.store.NotesByOwner(ctx, strings.ToLower(user))
	if err != nil {
		wb.serverError(w, "listing notes", err)
		return
	}
	mode := wb.guard.Modes().IDOR()
	wb.guard.RecordSurface(ctx, c, user, guard.SurfaceIDOR,
		surfaceReason(mode, "index_poc", "index_safe"), map[string]any{"count": len(notes)})
	wb.render(w, http.StatusOK, "notes", view{Title: "My notes", User: user, Mode: mode, Notes: notes})
}

// Note shows a note by id. Only safe mode checks the owner.
func (wb *Web) Note(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _, c, ok := wb.requireUser(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "noteID"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	note, err := wb.store.Note(ctx, id)
	if err != nil && !errors.Is(err, labstore.ErrNotFound) {
		wb.serverError(w, "fetching note", err)
		return
	}
	found := err == nil
	mode := wb.guard.Modes().IDOR()

	if mode.Unsafe() {
		if !found {
			http.NotFound(w, r)
			return
		}
		wb.guard.RecordSurface(ctx, c, user, guard.SurfaceIDOR, "no_owner_check",
			map[string]any{"note_id": id, "owner": note.Owner})
		wb.render(w, http.StatusOK, "note", view{Title: note.Title, User: user, Mode: mode, Note: note})
		return
	}

	if !found || note.Owner != strings.ToLower(user) {
		wb.guard.RecordSurface(ctx, c, user, guard.SurfaceIDOR, "blocked_404", map[string]any{"note_id": id})
		http.NotFound(w, r)
		return
	}
	wb.guard.RecordSurface(ctx, c, user, guard.SurfaceIDOR, "owner_enforced",
		map[string]any{"note_id": id, "owner": note.Owner})
	wb.render(w, http.StatusOK, "note", view{Title: note.Title, User: user, Mode: mode, Note: note})
}

func (wb *Web) serverError(w http.ResponseWriter, msg string, err error) {
	wb.logger.Error(msg, "error", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
