// Package config loads the lab's process configuration from the environment
// and an optional dotenv file. It is read once at startup; Validate refuses
// any configuration the guard must not run with.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvDev  = "dev"
	EnvProd = "prod"
)

// Config mirrors the environment keys. Secrets are only held here until
// Seal moves them into enclaves.
type Config struct {
	AppEnv  string `mapstructure:"app_env"`
	DevMode bool   `mapstructure:"dev_mode"`

	SecretKey         string `mapstructure:"secret_key"`
	AdminPasswordHash string `mapstructure:"admin_pwhash"`
	AdminMFAEnabled   bool   `mapstructure:"admin_mfa_enabled"`
	AdminMFASecret    string `mapstructure:"admin_mfa_secret"`
	DevAPIKey         string `mapstructure:"dev_api_key"`

	WindowSec   int    `mapstructure:"window_sec"`
	MaxAttempts int    `mapstructure:"max_attempts"`
	RateBucket  string `mapstructure:"rate_bucket"`
	MFAWindow   uint   `mapstructure:"mfa_window"`
	MFABucket   string `mapstructure:"mfa_bucket"`

	APIProductsBucket  string `mapstructure:"api_products_bucket"`
	APINotesBucket     string `mapstructure:"api_notes_bucket"`
	APIGuestbookBucket string `mapstructure:"api_guestbook_bucket"`

	ReflectedXSSState string `mapstructure:"xss_r_state"`
	StoredXSSState    string `mapstructure:"xss_s_state"`
	SQLiState         string `mapstructure:"sqli_state"`
	IDORState         string `mapstructure:"idor_state"`

	MaxMsgLen      int           `mapstructure:"max_msg_len"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	TrustedProxies []string      `mapstructure:"trusted_proxies"`

	LogDir   string `mapstructure:"log_dir"`
	LogLevel string `mapstructure:"log_level"`
	DBPath   string `mapstructure:"db_path"`
	StateDB  string `mapstructure:"state_db"`

	AuditWebhookURL  string `mapstructure:"audit_webhook_url"`
	AuditWebhookAuth string `mapstructure:"audit_webhook_auth"`
}

var defaults = map[string]any{
	"app_env":              EnvDev,
	"dev_mode":             false,
	"secret_key":           "",
	"admin_pwhash":         "",
	"admin_mfa_enabled":    false,
	"admin_mfa_secret":     "",
	"dev_api_key":          "",
	"window_sec":           10,
	"max_attempts":         2,
	"rate_bucket":          "default",
	"mfa_window":           1,
	"mfa_bucket":           "login_mfa",
	"api_products_bucket":  "api_products",
	"api_notes_bucket":     "api_notes",
	"api_guestbook_bucket": "api_gb",
	"xss_r_state":          "safe",
	"xss_s_state":          "safe",
	"sqli_state":           "safe",
	"idor_state":           "safe",
	"max_msg_len":          500,
	"session_ttl":          "12h",
	"trusted_proxies":      "",
	"log_dir":              "logs",
	"log_level":            "info",
	"db_path":              "authlab.db",
	"state_db":             "",
	"audit_webhook_url":    "",
	"audit_webhook_auth":   "",
}

// Load reads defaults, then envFile if it exists, then the process
// environment, which wins over the file. An empty envFile skips the file.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading %s: %w", envFile, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("checking %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	return &cfg, nil
}
