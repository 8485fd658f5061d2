package config

import (
	"encoding/base32"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jmcleod/authlab/guard"
	"github.com/jmcleod/authlab/internal/passhash"
)

var (
	ErrMissingSecret  = errors.New("required secret is not set")
	ErrDevModeInProd  = errors.New("DEV_MODE must be off when APP_ENV=prod")
	ErrInvalidSetting = errors.New("invalid setting")
)

// Validate reports every problem at once. The server refuses to start on
// any error.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(key, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalidSetting, key, fmt.Sprintf(format, args...)))
	}

	if c.SecretKey == "" {
		errs = append(errs, fmt.Errorf("%w: SECRET_KEY", ErrMissingSecret))
	}
	if c.AdminPasswordHash == "" {
		errs = append(errs, fmt.Errorf("%w: ADMIN_PWHASH", ErrMissingSecret))
	} else if _, err := passhash.Parse(c.AdminPasswordHash); err != nil {
		invalid("ADMIN_PWHASH", "%v", err)
	}
	if c.AdminMFAEnabled {
		if c.AdminMFASecret == "" {
			errs = append(errs, fmt.Errorf("%w: ADMIN_MFA_SECRET (ADMIN_MFA_ENABLED=true)", ErrMissingSecret))
		} else if !validBase32(c.AdminMFASecret) {
			invalid("ADMIN_MFA_SECRET", "not base32")
		}
	}

	switch c.AppEnv {
	case EnvDev, EnvProd:
	default:
		invalid("APP_ENV", "%q, want dev or prod", c.AppEnv)
	}
	if c.DevMode {
		if c.AppEnv == EnvProd {
			errs = append(errs, ErrDevModeInProd)
		}
		if c.DevAPIKey == "" {
			errs = append(errs, fmt.Errorf("%w: DEV_API_KEY (DEV_MODE=true)", ErrMissingSecret))
		}
	}

	if c.WindowSec < 1 {
		invalid("WINDOW_SEC", "%d, want >= 1", c.WindowSec)
	}
	if c.MaxAttempts < 1 {
		invalid("MAX_ATTEMPTS", "%d, want >= 1", c.MaxAttempts)
	}
	if c.MaxMsgLen < 1 {
		invalid("MAX_MSG_LEN", "%d, want >= 1", c.MaxMsgLen)
	}
	if c.SessionTTL <= 0 {
		invalid("SESSION_TTL", "%s, want > 0", c.SessionTTL)
	}
	for key, bucket := range map[string]string{
		"RATE_BUCKET":          c.RateBucket,
		"MFA_BUCKET":           c.MFABucket,
		"API_PRODUCTS_BUCKET":  c.APIProductsBucket,
		"API_NOTES_BUCKET":     c.APINotesBucket,
		"API_GUESTBOOK_BUCKET": c.APIGuestbookBucket,
	} {
		if bucket == "" {
			invalid(key, "empty")
		}
	}

	if _, err := c.Modes(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidSetting, err))
	}
	if _, err := guard.ParseTrustedProxies(c.TrustedProxies); err != nil {
		invalid("TRUSTED_PROXIES", "%v", err)
	}
	if _, err := c.SlogLevel(); err != nil {
		invalid("LOG_LEVEL", "%v", err)
	}
	if c.AuditWebhookURL != "" {
		if u, err := url.Parse(c.AuditWebhookURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			invalid("AUDIT_WEBHOOK_URL", "%q is not an http(s) URL", c.AuditWebhookURL)
		}
	}
	if c.AuditWebhookAuth != "" && !strings.Contains(c.AuditWebhookAuth, ":") {
		invalid("AUDIT_WEBHOOK_AUTH", "want \"Header: value\"")
	}

	return errors.Join(errs...)
}

// Modes parses the four surface toggles.
func (c *Config) Modes() (guard.Modes, error) {
	states := []struct {
		key, value string
	}{
		{"XSS_R_STATE", c.ReflectedXSSState},
		{"XSS_S_STATE", c.StoredXSSState},
		{"SQLI_STATE", c.SQLiState},
		{"IDOR_STATE", c.IDORState},
	}
	modes := make([]guard.Mode, len(states))
	for i, s := range states {
		m, err := guard.ParseMode(s.value)
		if err != nil {
			return guard.Modes{}, fmt.Errorf("%s: %w", s.key, err)
		}
		modes[i] = m
	}
	return guard.NewModes(modes[0], modes[1], modes[2], modes[3]), nil
}

// SlogLevel parses LOG_LEVEL.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(c.LogLevel))
	return lvl, err
}

func validBase32(s string) bool {
	s = strings.ToUpper(strings.TrimSpace(s))
	if n := len(s) % 8; n != 0 {
		s += strings.Repeat("=", 8-n)
	}
	_, err := base32.StdEncoding.DecodeString(s)
	return err == nil && s != ""
}
