// Package guard gates lab requests: session authentication with an optional
// development bearer key, CSRF tokens, fixed-window rate limiting, the
// password and TOTP login state machine, and the read-only registry of
// vulnerability modes. Every decision is appended to an audit.Sink.
package guard

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/authlab/audit"
)

const (
	resultInvalid = "invalid"
	resultDenied  = "denied"
	resultSuccess = "success"
)

// Settings are the immutable inputs of a Guard.
type Settings struct {
	WindowSeconds int
	MaxAttempts   int
	// MFAWindow is the number of adjacent TOTP steps accepted on each side.
	MFAWindow   uint
	LoginBucket string
	MFABucket   string

	// DevMode enables the bearer bypass for DevAPIKey. Configuration must
	// refuse DevMode in production before a Guard is built.
	DevMode   bool
	DevAPIKey *memguard.Enclave
	// AdminIdentity is the identity granted to dev key callers.
	AdminIdentity string
}

// Caller describes the request a decision is made for.
type Caller struct {
	IP    string
	Route string
	// Authorization is the raw Authorization header.
	Authorization string
	// Tag overrides the audit result of CSRF and rate-limit denials, e.g.
	// "api_products" for API handlers.
	Tag string
}

// denialResult is the audit result for a CSRF or rate-limit denial.
func (c Caller) denialResult() string {
	if c.Tag != "" {
		return c.Tag
	}
	return resultInvalid
}

// Guard makes and audits access decisions. It is safe for concurrent use;
// the Session passed to each call must not be shared across goroutines.
type Guard struct {
	settings       Settings
	dir            Directory
	modes          Modes
	limiter        *RateLimiter
	clock          Clock
	sink           audit.Sink
	logger         *slog.Logger
	trustedProxies []netip.Prefix
}

// Option configures a Guard.
type Option func(*Guard)

func WithClock(c Clock) Option {
	return func(g *Guard) { g.clock = c }
}

// WithAuditSink sets where decisions are recorded. Defaults to audit.Discard.
func WithAuditSink(s audit.Sink) Option {
	return func(g *Guard) { g.sink = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) { g.logger = l }
}

// WithRateLimiter shares a limiter between guards. Defaults to a private one.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(g *Guard) { g.limiter = rl }
}

// WithTrustedProxies lists the peers whose forwarding headers Caller honours.
func WithTrustedProxies(p []netip.Prefix) Option {
	return func(g *Guard) { g.trustedProxies = p }
}

// New builds a Guard over dir with the given settings and modes.
func New(settings Settings, dir Directory, modes Modes, opts ...Option) *Guard {
	g := &Guard{
		settings: settings,
		dir:      dir,
		modes:    modes,
		clock:    SystemClock,
		sink:     audit.Discard,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.limiter == nil {
		g.limiter = NewRateLimiter()
	}
	if g.settings.AdminIdentity == "" {
		g.settings.AdminIdentity = "admin"
	}
	g.logger = g.logger.With("component", "guard")
	return g
}

// Modes returns the vulnerability modes in effect.
func (g *Guard) Modes() Modes { return g.modes }

// Caller extracts the decision context from r.
func (g *Guard) Caller(r *http.Request) Caller {
	return Caller{
		IP:            ClientIP(r, g.trustedProxies),
		Route:         r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
	}
}

// Authenticate returns the identity behind the request. A logged-in session
// wins without further checks. Otherwise, in dev mode, a matching bearer key
// yields the admin identity. Anything else is ErrUnauthorized.
func (g *Guard) Authenticate(ctx context.Context, s *Session, c Caller) (string, error) {
	if s != nil && s.User != "" {
		return s.User, nil
	}
	if g.devKeyMatches(c.Authorization) {
		admin := g.settings.AdminIdentity
		g.Audit(ctx, c, audit.Name(admin), true, "api_auth", "dev_api_key", nil)
		return admin, nil
	}
	g.Audit(ctx, c, nil, false, resultDenied, string(CodeUnauthorized), nil)
	return "", ErrUnauthorized
}

func (g *Guard) devKeyMatches(authorization string) bool {
	if !g.settings.DevMode || g.settings.DevAPIKey == nil {
		return false
	}
	presented, ok := strings.CutPrefix(authorization, "Bearer ")
	if !ok {
		return false
	}
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return false
	}
	key, err := g.settings.DevAPIKey.Open()
	if err != nil {
		g.logger.Error("opening dev api key", "error", err)
		return false
	}
	defer key.Destroy()
	return subtle.ConstantTimeCompare(key.Bytes(), []byte(presented)) == 1
}

// Throttle admits one attempt on bucket for the caller and identity. A
// denial is audited and returned as *RateLimitError.
func (g *Guard) Throttle(ctx context.Context, c Caller, bucket, identity string) error {
	return g.throttle(ctx, c, bucket, identity, identity != "" && g.known(identity))
}

func (g *Guard) throttle(ctx context.Context, c Caller, bucket, identity string, userExists bool) error {
	key := RateKey(bucket, c.IP, identity)
	allowed, retryAfter := g.limiter.Admit(key, g.settings.WindowSeconds, g.settings.MaxAttempts, g.clock.Now().Unix())
	if allowed {
		return nil
	}
	g.Audit(ctx, c, optionalName(identity), userExists, c.denialResult(), string(CodeRateLimited),
		map[string]any{"retry_after": retryAfter})
	return &RateLimitError{RetryAfter: retryAfter}
}

func (g *Guard) known(username string) bool {
	_, ok := g.dir.Lookup(username)
	return ok
}

// Audit appends one record. Sink failures are logged and otherwise ignored.
func (g *Guard) Audit(ctx context.Context, c Caller, username *string, userExists bool, result, reason string, meta map[string]any) {
	ip := c.IP
	if ip == "" {
		ip = unknownIP
	}
	rec := audit.Record{
		TS:         audit.Timestamp(g.clock.Now()),
		IP:         ip,
		Username:   username,
		UserExists: userExists,
		Result:     result,
		Reason:     reason,
		Route:      c.Route,
		Meta:       meta,
	}
	if err := g.sink.Append(ctx, rec); err != nil {
		g.logger.Warn("audit append failed", "error", err, "result", result, "reason", reason)
	}
}

// RecordSurface audits a request on a vulnerability surface together with
// the mode that served it.
func (g *Guard) RecordSurface(ctx context.Context, c Caller, user string, surface Surface, reason string, meta map[string]any) {
	m := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		m[k] = v
	}
	m["mode"] = string(g.modes.Of(surface))
	g.Audit(ctx, c, optionalName(user), user != "", surface.AuditResult(), reason, m)
}

func optionalName(username string) *string {
	if username == "" {
		return nil
	}
	return audit.Name(username)
}
