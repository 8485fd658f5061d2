package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmcleod/authlab/api"
	"github.com/jmcleod/authlab/audit"
	"github.com/jmcleod/authlab/config"
	"github.com/jmcleod/authlab/guard"
	"github.com/jmcleod/authlab/labstore"
	"github.com/jmcleod/authlab/storage"
	bboltstorage "github.com/jmcleod/authlab/storage/bbolt"
	"github.com/jmcleod/authlab/storage/memory"
	"github.com/jmcleod/authlab/web"
)

// app is the assembled lab: every store, sink and router the server needs.
type app struct {
	handler http.Handler
	closers []func() error
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newApp wires a validated configuration into a handler. Metrics are
// registered on reg and served from it.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg *prometheus.Registry) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	modes, err := cfg.Modes()
	if err != nil {
		return nil, err
	}
	proxies, err := guard.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}
	secrets, err := cfg.Seal()
	if err != nil {
		return nil, err
	}

	file := audit.NewFileSink(cfg.LogDir, audit.DefaultFileOptions())
	a.closers = append(a.closers, file.Close)
	sinks := audit.Multi{
		file,
		audit.NewMetricsSink(reg, func(ev audit.AlertEvent) {
			logger.Warn("audit alert", "type", ev.Type, "message", ev.Message, "count", ev.Count, "threshold", ev.Threshold)
		}),
	}
	if cfg.AuditWebhookURL != "" {
		wh := audit.NewWebhookSink(cfg.AuditWebhookURL, cfg.AuditWebhookAuth, logger.With("component", "audit-webhook"))
		sinks = append(sinks, wh)
		a.closers = append(a.closers, wh.Close)
	}

	store, err := labstore.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening lab database: %w", err)
	}
	a.closers = append(a.closers, store.Close)
	if sum, err := store.Summary(ctx); err != nil {
		return nil, fmt.Errorf("reading lab database: %w", err)
	} else if sum.Products == 0 {
		logger.Info("lab database is empty, seeding", "path", cfg.DBPath)
		if err := store.Reset(ctx); err != nil {
			return nil, fmt.Errorf("seeding lab database: %w", err)
		}
	}

	var (
		stateRepo    storage.Repository
		sessionStore guard.SessionStore
	)
	if cfg.StateDB != "" {
		repo, err := bboltstorage.NewRepositoryFromFile(cfg.StateDB, nil)
		if err != nil {
			return nil, fmt.Errorf("opening state database: %w", err)
		}
		a.closers = append(a.closers, repo.Close)
		sealed := guard.NewSealedSessionStore(repo, secrets.SessionStoreKey, nil, logger)
		a.closers = append(a.closers, func() error { sealed.Close(); return nil })
		stateRepo, sessionStore = repo, sealed
	} else {
		mem := guard.NewMemorySessionStore(nil)
		a.closers = append(a.closers, func() error { mem.Close(); return nil })
		stateRepo, sessionStore = memory.NewRepository(), mem
	}
	gb := labstore.NewGuestbook(stateRepo, secrets.GuestbookKey, cfg.MaxMsgLen)

	g := guard.New(cfg.GuardSettings(secrets), cfg.Directory(secrets), modes,
		guard.WithAuditSink(sinks),
		guard.WithTrustedProxies(proxies),
		guard.WithLogger(logger),
	)
	sessions := guard.NewSessionManager(sessionStore, secrets.SessionCookieKey, cfg.SessionTTL, nil, logger)

	apiHandler := api.New(g, store, gb, api.Buckets{
		Products:  cfg.APIProductsBucket,
		Notes:     cfg.APINotesBucket,
		Guestbook: cfg.APIGuestbookBucket,
	}, api.WithLogger(logger))
	webHandler, err := web.New(g, store, gb, cfg.MaxMsgLen, web.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			http.Error(w, "lab database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	r.Group(func(r chi.Router) {
		r.Use(sessions.Middleware)
		r.Mount("/api/v1", apiHandler.Router())
		r.With(api.SecurityHeaders).Mount("/", webHandler.Router())
	})

	logger.Info("lab configured",
		"env", cfg.AppEnv,
		"dev_mode", cfg.DevMode,
		"xss_r", modes.ReflectedXSS(),
		"xss_s", modes.StoredXSS(),
		"sqli", modes.SQLi(),
		"idor", modes.IDOR(),
		"state_db", cfg.StateDB != "",
	)
	a.handler = r
	return a, nil
}
