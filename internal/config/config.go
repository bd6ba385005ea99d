// Package config loads process configuration in layers:
// struct defaults, then an optional YAML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar points at an optional YAML config file.
const ConfigPathEnvVar = "CONFIG_PATH"

type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Database    DatabaseConfig    `koanf:"database"`
	Log         LogConfig         `koanf:"log"`
	Gemini      GeminiConfig      `koanf:"gemini"`
	Google      GoogleConfig      `koanf:"google"`
	SMTP        SMTPConfig        `koanf:"smtp"`
	Scan        ScanConfig        `koanf:"scan"`
	Leaderboard LeaderboardConfig `koanf:"leaderboard"`
	Captcha     CaptchaConfig     `koanf:"captcha"`
	Seed        SeedConfig        `koanf:"seed"`
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	SiteURL       string `koanf:"site_url"`
	SessionSecret string `koanf:"session_secret"`
	GinMode       string `koanf:"gin_mode"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

type GeminiConfig struct {
	APIKey  string        `koanf:"api_key"`
	Model   string        `koanf:"model"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

type GoogleConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
}

// Enabled reports whether Google sign-in is configured.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type SMTPConfig struct {
	Host string `koanf:"host"`
	Port string `koanf:"port"`
	User string `koanf:"user"`
	Pass string `koanf:"pass"`
	From string `koanf:"from"`
}

type ScanConfig struct {
	RequestsPerMinute int `koanf:"requests_per_minute"`
	Burst             int `koanf:"burst"`
	MaxImageBytes     int `koanf:"max_image_bytes"`
	MaxDimension      int `koanf:"max_dimension"`
}

type LeaderboardConfig struct {
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

type CaptchaConfig struct {
	Enabled bool `koanf:"enabled"`
}

type SeedConfig struct {
	Enabled       bool   `koanf:"enabled"`
	AdminEmail    string `koanf:"admin_email"`
	AdminPassword string `koanf:"admin_password"`
	DemoUsers     bool   `koanf:"demo_users"`
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:          8080,
			SiteURL:       "http://localhost:8080",
			SessionSecret: "secret_key_change_me",
			GinMode:       "debug",
		},
		Database: DatabaseConfig{
			URL:             "host=localhost user=postgres password=postgres dbname=greentera port=5432 sslmode=disable TimeZone=Asia/Jakarta",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Gemini: GeminiConfig{
			Model:   "gemini-2.5-flash",
			BaseURL: "https://generativelanguage.googleapis.com/v1beta",
			Timeout: 30 * time.Second,
		},
		Scan: ScanConfig{
			RequestsPerMinute: 10,
			Burst:             3,
			MaxImageBytes:     8 << 20,
			MaxDimension:      1024,
		},
		Leaderboard: LeaderboardConfig{
			CacheTTL: time.Minute,
		},
		Seed: SeedConfig{
			Enabled:       true,
			AdminEmail:    "admin@greentera.id",
			AdminPassword: "admin123",
		},
	}
}

// Load builds the configuration. Precedence: env > file > defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range []string{"config.yaml", "config.yml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envMappings maps the flat environment names this service has always used
// onto koanf paths. Unknown variables are dropped.
var envMappings = map[string]string{
	"port":           "server.port",
	"site_url":       "server.site_url",
	"session_secret": "server.session_secret",
	"gin_mode":       "server.gin_mode",

	"database_url":               "database.url",
	"database_max_open_conns":    "database.max_open_conns",
	"database_max_idle_conns":    "database.max_idle_conns",
	"database_conn_max_lifetime": "database.conn_max_lifetime",

	"log_level":  "log.level",
	"log_format": "log.format",
	"log_caller": "log.caller",

	"gemini_api_key":  "gemini.api_key",
	"gemini_model":    "gemini.model",
	"gemini_base_url": "gemini.base_url",
	"gemini_timeout":  "gemini.timeout",

	"google_client_id":     "google.client_id",
	"google_client_secret": "google.client_secret",

	"smtp_host": "smtp.host",
	"smtp_port": "smtp.port",
	"smtp_user": "smtp.user",
	"smtp_pass": "smtp.pass",
	"smtp_from": "smtp.from",

	"scan_requests_per_minute": "scan.requests_per_minute",
	"scan_burst":               "scan.burst",
	"scan_max_image_bytes":     "scan.max_image_bytes",
	"scan_max_dimension":       "scan.max_dimension",

	"leaderboard_cache_ttl": "leaderboard.cache_ttl",
	"captcha_enabled":       "captcha.enabled",

	"seed_enabled":        "seed.enabled",
	"seed_admin_email":    "seed.admin_email",
	"seed_admin_password": "seed.admin_password",
	"seed_demo_users":     "seed.demo_users",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.Server.GinMode == "release" && len(c.Server.SessionSecret) < 32 {
		errs = append(errs, errors.New("server.session_secret must be at least 32 characters in release mode"))
	}
	if c.Scan.RequestsPerMinute <= 0 || c.Scan.Burst <= 0 {
		errs = append(errs, errors.New("scan.requests_per_minute and scan.burst must be positive"))
	}
	if c.Scan.MaxImageBytes <= 0 || c.Scan.MaxDimension <= 0 {
		errs = append(errs, errors.New("scan.max_image_bytes and scan.max_dimension must be positive"))
	}
	return errors.Join(errs...)
}
