package config

import (
	"fmt"
	"strings"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/authlab/guard"
	"github.com/jmcleod/authlab/internal/util"
)

// AdminUsername is the single provisioned identity.
const AdminUsername = "admin"

// Key derivation purposes for SECRET_KEY.
const (
	PurposeSessionCookie = "session-cookie"
	PurposeSessionStore  = "session-store"
	PurposeGuestbook     = "guestbook"
)

// Secrets holds every key material the running server needs, each in its
// own enclave.
type Secrets struct {
	SessionCookieKey *memguard.Enclave
	SessionStoreKey  *memguard.Enclave
	GuestbookKey     *memguard.Enclave
	AdminMFASecret   *memguard.Enclave // nil unless MFA is enabled
	DevAPIKey        *memguard.Enclave // nil unless DEV_MODE is on
}

// Seal derives per-purpose keys from SECRET_KEY and moves the remaining
// secrets into enclaves. The plaintext fields of c are cleared.
func (c *Config) Seal() (*Secrets, error) {
	master := []byte(c.SecretKey)
	defer util.WipeBytes(master)

	s := &Secrets{}
	for purpose, dst := range map[string]**memguard.Enclave{
		PurposeSessionCookie: &s.SessionCookieKey,
		PurposeSessionStore:  &s.SessionStoreKey,
		PurposeGuestbook:     &s.GuestbookKey,
	} {
		key, err := util.DeriveKey(master, purpose)
		if err != nil {
			return nil, fmt.Errorf("deriving %s key: %w", purpose, err)
		}
		*dst = memguard.NewEnclave(key)
	}

	if c.AdminMFAEnabled && c.AdminMFASecret != "" {
		s.AdminMFASecret = memguard.NewEnclave([]byte(strings.ToUpper(strings.TrimSpace(c.AdminMFASecret))))
	}
	if c.DevMode && c.DevAPIKey != "" {
		s.DevAPIKey = memguard.NewEnclave([]byte(c.DevAPIKey))
	}

	c.SecretKey = ""
	c.AdminMFASecret = ""
	c.DevAPIKey = ""
	return s, nil
}

// Directory provisions the admin identity.
func (c *Config) Directory(s *Secrets) guard.StaticDirectory {
	return guard.NewStaticDirectory(guard.Identity{
		Username:     AdminUsername,
		PasswordHash: c.AdminPasswordHash,
		MFAEnabled:   c.AdminMFAEnabled,
		MFASecret:    s.AdminMFASecret,
	})
}

// GuardSettings maps the rate-limit, MFA and dev-mode keys.
func (c *Config) GuardSettings(s *Secrets) guard.Settings {
	return guard.Settings{
		WindowSeconds: c.WindowSec,
		MaxAttempts:   c.MaxAttempts,
		MFAWindow:     c.MFAWindow,
		LoginBucket:   c.RateBucket,
		MFABucket:     c.MFABucket,
		DevMode:       c.DevMode,
		DevAPIKey:     s.DevAPIKey,
		AdminIdentity: AdminUsername,
	}
}
