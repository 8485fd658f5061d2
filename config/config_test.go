package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/authlab/guard"
)

// pbkdf2:sha256 hash of "correct horse".
const testHash = "pbkdf2:sha256:1000$NaClNaCl$0c5447c8fef936184ff4a7e6050570dc344c4e5a654710f69b4fd7e82508a568"

func clearEnv(t *testing.T) {
	t.Helper()
	for k := range defaults {
		key := strings.ToUpper(k)
		if _, ok := os.LookupEnv(key); ok {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}

func validConfig() *Config {
	return &Config{
		AppEnv:             EnvDev,
		SecretKey:          "super-secret",
		AdminPasswordHash:  testHash,
		WindowSec:          10,
		MaxAttempts:        2,
		RateBucket:         "default",
		MFAWindow:          1,
		MFABucket:          "login_mfa",
		APIProductsBucket:  "api_products",
		APINotesBucket:     "api_notes",
		APIGuestbookBucket: "api_gb",
		ReflectedXSSState:  "safe",
		StoredXSSState:     "safe",
		SQLiState:          "safe",
		IDORState:          "safe",
		MaxMsgLen:          500,
		SessionTTL:         12 * time.Hour,
		LogLevel:           "info",
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, EnvDev, cfg.AppEnv)
	assert.Equal(t, 10, cfg.WindowSec)
	assert.Equal(t, 2, cfg.MaxAttempts)
	assert.Equal(t, "default", cfg.RateBucket)
	assert.Equal(t, uint(1), cfg.MFAWindow)
	assert.Equal(t, "login_mfa", cfg.MFABucket)
	assert.Equal(t, "api_gb", cfg.APIGuestbookBucket)
	assert.Equal(t, 500, cfg.MaxMsgLen)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "logs", cfg.LogDir)
	assert.Equal(t, "authlab.db", cfg.DBPath)
	assert.Empty(t, cfg.TrustedProxies)
	assert.False(t, cfg.DevMode)

	// Required secrets are missing.
	err = cfg.Validate()
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestLoad_EnvFileAndEnvironment(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"SECRET_KEY=from-file\n"+
			"ADMIN_PWHASH="+testHash+"\n"+
			"MAX_ATTEMPTS=5\n"+
			"SQLI_STATE=poc\n"+
			"TRUSTED_PROXIES=10.0.0.0/8,127.0.0.1\n"+
			"SESSION_TTL=30m\n"), 0o600))

	t.Setenv("MAX_ATTEMPTS", "7")
	t.Setenv("APP_ENV", "DEV")

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.SecretKey)
	assert.Equal(t, 7, cfg.MaxAttempts, "environment wins over the file")
	assert.Equal(t, "poc", cfg.SQLiState)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.TrustedProxies)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, EnvDev, cfg.AppEnv)
	require.NoError(t, cfg.Validate())

	modes, err := cfg.Modes()
	require.NoError(t, err)
	assert.Equal(t, guard.ModePoC, modes.SQLi())
	assert.Equal(t, guard.ModeSafe, modes.IDOR())
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"valid", func(*Config) {}, nil},
		{"missing secret key", func(c *Config) { c.SecretKey = "" }, ErrMissingSecret},
		{"missing admin hash", func(c *Config) { c.AdminPasswordHash = "" }, ErrMissingSecret},
		{"plaintext admin hash", func(c *Config) { c.AdminPasswordHash = "hunter2" }, ErrInvalidSetting},
		{"mfa without secret", func(c *Config) { c.AdminMFAEnabled = true }, ErrMissingSecret},
		{"mfa bad secret", func(c *Config) { c.AdminMFAEnabled = true; c.AdminMFASecret = "not base32!" }, ErrInvalidSetting},
		{"mfa ok", func(c *Config) { c.AdminMFAEnabled = true; c.AdminMFASecret = "JBSWY3DPEHPK3PXP" }, nil},
		{"dev mode in prod", func(c *Config) { c.AppEnv = EnvProd; c.DevMode = true; c.DevAPIKey = "k" }, ErrDevModeInProd},
		{"dev mode without key", func(c *Config) { c.DevMode = true }, ErrMissingSecret},
		{"dev mode ok", func(c *Config) { c.DevMode = true; c.DevAPIKey = "k" }, nil},
		{"prod without dev mode", func(c *Config) { c.AppEnv = EnvProd }, nil},
		{"unknown env", func(c *Config) { c.AppEnv = "staging" }, ErrInvalidSetting},
		{"bad mode", func(c *Config) { c.IDORState = "on" }, ErrInvalidSetting},
		{"zero window", func(c *Config) { c.WindowSec = 0 }, ErrInvalidSetting},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }, ErrInvalidSetting},
		{"empty bucket", func(c *Config) { c.MFABucket = "" }, ErrInvalidSetting},
		{"bad proxies", func(c *Config) { c.TrustedProxies = []string{"nope"} }, ErrInvalidSetting},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, ErrInvalidSetting},
		{"bad webhook url", func(c *Config) { c.AuditWebhookURL = "ftp://x" }, ErrInvalidSetting},
		{"bad webhook auth", func(c *Config) { c.AuditWebhookURL = "https://x"; c.AuditWebhookAuth = "token" }, ErrInvalidSetting},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidate_ReportsEverything(t *testing.T) {
	c := validConfig()
	c.SecretKey = ""
	c.AppEnv = EnvProd
	c.DevMode = true
	err := c.Validate()
	assert.ErrorIs(t, err, ErrMissingSecret)
	assert.ErrorIs(t, err, ErrDevModeInProd)
}

func TestSeal(t *testing.T) {
	c := validConfig()
	c.AdminMFAEnabled = true
	c.AdminMFASecret = "jbswy3dpehpk3pxp"
	c.DevMode = true
	c.DevAPIKey = "dev-key"

	s, err := c.Seal()
	require.NoError(t, err)
	assert.Empty(t, c.SecretKey)
	assert.Empty(t, c.DevAPIKey)

	cookie, err := s.SessionCookieKey.Open()
	require.NoError(t, err)
	defer cookie.Destroy()
	store, err := s.SessionStoreKey.Open()
	require.NoError(t, err)
	defer store.Destroy()
	assert.Len(t, cookie.Bytes(), 32)
	assert.NotEqual(t, cookie.Bytes(), store.Bytes(), "purposes derive distinct keys")

	mfa, err := s.AdminMFASecret.Open()
	require.NoError(t, err)
	defer mfa.Destroy()
	assert.Equal(t, "JBSWY3DPEHPK3PXP", mfa.String())

	dir := c.Directory(s)
	id, ok := dir.Lookup(AdminUsername)
	require.True(t, ok)
	assert.True(t, id.MFAEnabled)
	assert.Equal(t, testHash, id.PasswordHash)

	settings := c.GuardSettings(s)
	assert.True(t, settings.DevMode)
	assert.NotNil(t, settings.DevAPIKey)
	assert.Equal(t, "default", settings.LoginBucket)
	assert.Equal(t, AdminUsername, settings.AdminIdentity)
}

func TestSeal_RequiresSecretKey(t *testing.T) {
	c := validConfig()
	c.SecretKey = ""
	_, err := c.Seal()
	assert.Error(t, err)
}
