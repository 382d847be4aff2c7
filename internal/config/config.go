package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when no -config flag is given.
const DefaultConfigPath = "config.yml"

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port     int    `yaml:"port"`
	DSN      string `yaml:"dsn"` // MySQL DSN
	RedisURL string `yaml:"redis_url"`
	Env      string `yaml:"env"` // "development" | "production"

	JWTSecret      string   `yaml:"jwt_secret"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	Site  SiteConfig  `yaml:"site"`
	Mail  MailConfig  `yaml:"mail"`
	Watch WatchConfig `yaml:"watch"`
}

// SiteConfig names the deployment and anchors activation/unsubscribe links.
type SiteConfig struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
}

// MailConfig holds mail provider settings.
type MailConfig struct {
	Enable    bool   `yaml:"enable"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	User      string `yaml:"user"`
	Pass      string `yaml:"pass"`
	From      string `yaml:"from"`
	ReplyTo   string `yaml:"reply_to"`
	UseResend bool   `yaml:"use_resend"`
	ResendKey string `yaml:"resend_key"`
}

// WatchConfig tunes watch lifecycle behaviour.
type WatchConfig struct {
	// ConfirmAnonymous requires anonymous email watchers to click an
	// activation link before they receive notifications.
	ConfirmAnonymous *bool `yaml:"confirm_anonymous"`
	// UnactivatedTTLDays controls how long unactivated anonymous watches
	// are kept before the cleanup job purges them.
	UnactivatedTTLDays int `yaml:"unactivated_ttl_days"`
}

// ConfirmAnonymousWatches reports whether anonymous watches start inactive.
func (c *AppConfig) ConfirmAnonymousWatches() bool {
	if c.Watch.ConfirmAnonymous == nil {
		return true
	}
	return *c.Watch.ConfirmAnonymous
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool { return c.Env == "development" }

// Load reads the YAML config file, applies environment overrides and
// defaults. A missing file is not an error; env vars alone can configure
// the service.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required (config `dsn` or env TIDINGS_DSN)")
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("TIDINGS_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := os.Getenv("TIDINGS_DSN"); v != "" {
		cfg.DSN = v
	}
	if v := os.Getenv("TIDINGS_REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("TIDINGS_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("TIDINGS_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("TIDINGS_SITE_URL"); v != "" {
		cfg.Site.BaseURL = v
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Port == 0 {
		cfg.Port = 2333
	}
	if cfg.RedisURL == "" {
		cfg.RedisURL = "redis://localhost:6379/0"
	}
	if cfg.Env == "" {
		cfg.Env = "production"
	}
	if cfg.Site.Name == "" {
		cfg.Site.Name = "Tidings"
	}
	if cfg.Mail.Port == 0 {
		cfg.Mail.Port = 587
	}
	if cfg.Watch.UnactivatedTTLDays == 0 {
		cfg.Watch.UnactivatedTTLDays = 14
	}
}
