// Package api serves the lab's JSON API under /api/v1. Every handler goes
// through guard for authentication, CSRF and rate limiting, and answers
// failures with the {"error":{"code","message"}} envelope.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/jmcleod/authlab/guard"
	"github.com/jmcleod/authlab/labstore"
)

//go:embed openapi.yaml
var openapiSpec []byte

// Buckets names the rate-limit bucket of each throttled resource.
type Buckets struct {
	Products  string
	Notes     string
	Guestbook string
}

// API holds the dependencies needed by the REST handlers.
type API struct {
	guard     *guard.Guard
	store     *labstore.Store
	guestbook *labstore.Guestbook
	buckets   Buckets
	logger    *slog.Logger
}

// Option configures the API instance.
type Option func(*API)

func WithLogger(logger *slog.Logger) Option {
	return func(a *API) { a.logger = logger }
}

// New creates a new API instance.
func New(g *guard.Guard, store *labstore.Store, gb *labstore.Guestbook, buckets Buckets, opts ...Option) *API {
	a := &API{
		guard:     g,
		store:     store,
		guestbook: gb,
		buckets:   buckets,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "api")
	return a
}

// Router returns a chi.Router with all API routes mounted. Sessions are
// expected to be loaded by guard.SessionManager further up the chain.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(SecurityHeaders)
	r.Use(a.recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, CodeNotFound, nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, CodeMethodNotAllowed, nil)
	})

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Get("/auth/session", a.Session)

	r.Get("/guestbook/messages", a.ListMessages)
	r.Post("/guestbook/messages", a.PostMessage)

	r.Get("/notes", a.ListNotes)
	r.Get("/notes/{noteID}", a.GetNote)

	r.Get("/products", a.ListProducts)

	return r
}

// sessionOf returns the request's session. Without session middleware the
// caller gets a throwaway empty session, which can only authenticate via
// the dev bearer key.
func sessionOf(r *http.Request) *guard.Session {
	if s := guard.SessionFromContext(r.Context()); s != nil {
		return s
	}
	return &guard.Session{}
}

// authenticate resolves the caller's identity or writes the 401 envelope.
func (a *API) authenticate(w http.ResponseWriter, r *http.Request, c guard.Caller) (string, *guard.Session, bool) {
	s := sessionOf(r)
	user, err := a.guard.Authenticate(r.Context(), s, c)
	if err != nil {
		writeGuardError(w, err)
		return "", nil, false
	}
	return user, s, true
}

// caller builds the audit context for r with tag as the denial result.
func (a *API) caller(r *http.Request, tag string) guard.Caller {
	c := a.guard.Caller(r)
	c.Tag = tag
	return c
}
