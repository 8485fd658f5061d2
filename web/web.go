// Package web serves the lab's HTML pages: the login and MFA flow, the
// dashboard, and the four training surfaces whose escaping or access checks
// follow the configured vulnerability modes.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/authlab/guard"
	"github.com/jmcleod/authlab/labstore"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var pageNames = []string{
	"login", "mfa", "dashboard", "search", "guestbook", "products", "notes", "note",
}

// Web holds the dependencies of the HTML handlers.
type Web struct {
	guard     *guard.Guard
	store     *labstore.Store
	guestbook *labstore.Guestbook
	maxMsgLen int
	pages     map[string]*template.Template
	static    http.Handler
	logger    *slog.Logger
}

// Option configures a Web.
type Option func(*Web)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Web) { w.logger = logger }
}

// New parses the embedded templates.
func New(g *guard.Guard, store *labstore.Store, gb *labstore.Guestbook, maxMsgLen int, opts ...Option) (*Web, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	funcs := template.FuncMap{
		// raw marks s as trusted markup. Only the poc surfaces use it.
		"raw": func(s string) template.HTML { return template.HTML(s) },
	}
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", name, err)
		}
		pages[name] = t
	}

	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("loading embedded static assets: %w", err)
	}

	w := &Web{
		guard:     g,
		store:     store,
		guestbook: gb,
		maxMsgLen: maxMsgLen,
		pages:     pages,
		static:    http.StripPrefix("/static/", http.FileServer(http.FS(sub))),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "web")
	return w, nil
}

// Router returns the HTML routes. Sessions are expected to be loaded by
// guard.SessionManager further up the chain.
func (wb *Web) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	})
	r.Handle("/static/*", wb.static)

	r.Get("/login", wb.LoginPage)
	r.Post("/login", wb.Login)
	r.Get("/mfa", wb.MFAPage)
	r.Post("/mfa", wb.VerifyMFA)
	r.Post("/mfa/cancel", wb.CancelMFA)
	r.Get("/dashboard", wb.Dashboard)
	r.Post("/logout", wb.Logout)

	r.Get("/search", wb.Search)
	r.Get("/guestbook", wb.Guestbook)
	r.Post("/guestbook", wb.PostGuestbook)
	r.Get("/products", wb.Products)
	r.Get("/notes", wb.Notes)
	r.Get("/note/{noteID:[0-9]+}", wb.Note)

	return r
}

// view is the data every page template receives. Pages read the fields
// they need.
type view struct {
	Title     string
	User      string
	CSRFToken string
	Error     string
	Mode      guard.Mode
	Query     string
	MaxLen    int
	Products  []labstore.Product
	Messages  []labstore.Message
	Notes     []labstore.Note
	Note      labstore.Note
}

// Unsafe reports whether the page is served in poc mode.
func (v view) Unsafe() bool { return v.Mode.Unsafe() }

// render executes page into a buffer first so a template error never
// leaves a half-written response.
func (wb *Web) render(w http.ResponseWriter, status int, page string, v view) {
	t, ok := wb.pages[page]
	if !ok {
		wb.logger.Error("unknown page", "page", page)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", v); err != nil {
		wb.logger.Error("rendering page", "page", page, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func sessionOf(r *http.Request) *guard.Session {
	if s := guard.SessionFromContext(r.Context()); s != nil {
		return s
	}
	return &guard.Session{}
}

// requireUser returns the authenticated identity or redirects to /login.
func (wb *Web) requireUser(w http.ResponseWriter, r *http.Request) (string, *guard.Session, guard.Caller, bool) {
	s := sessionOf(r)
	c := wb.guard.Caller(r)
	user, err := wb.guard.Authenticate(r.Context(), s, c)
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return "", nil, c, false
	}
	return user, s, c, true
}

func redirectSeeOther(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}
