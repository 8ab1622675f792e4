package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the runtime configuration for the application.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Store    StoreConfig    `yaml:"store"`
	Upload   UploadConfig   `yaml:"upload"`
	Logging  LoggingConfig  `yaml:"logging"`
	Session  SessionConfig  `yaml:"session"`
}

// ServerConfig configures the HTTP server runtime behavior.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig contains the relational database connection settings
// used by the account service.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	UseMock         bool          `yaml:"use_mock"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// StoreConfig locates the persisted site document.
type StoreConfig struct {
	Path   string `yaml:"path"`
	Backup bool   `yaml:"backup"`
}

// UploadConfig controls where uploaded files land and how they are addressed.
type UploadConfig struct {
	Dir           string `yaml:"dir"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// LoggingConfig selects the log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SessionConfig controls the browser session cookie.
type SessionConfig struct {
	Lifetime     time.Duration `yaml:"lifetime"`
	CookieName   string        `yaml:"cookie_name"`
	CookieDomain string        `yaml:"cookie_domain"`
	CookieSecure bool          `yaml:"cookie_secure"`
}

// Load builds a Config from the environment, optionally overlaid on a
// YAML file named by CONFIG_FILE. Environment variables win over file
// values so deployments can override a checked-in base config.
func Load() (Config, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	overlayEnv(&cfg)

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return Config{}, fmt.Errorf("server address must not be empty")
	}
	if strings.TrimSpace(cfg.Store.Path) == "" {
		return Config{}, fmt.Errorf("store path must not be empty")
	}

	return cfg, nil
}

func defaults() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{
			URL: "file:data/darkhaven.db?_pragma=busy_timeout(5000)",
		},
		Store:  StoreConfig{Path: "data/darkhaven.json", Backup: true},
		Upload: UploadConfig{Dir: "data/files", PublicBaseURL: ""},
		Logging: LoggingConfig{
			Level: "info",
		},
		Session: SessionConfig{
			Lifetime:   12 * time.Hour,
			CookieName: "darkhaven_session",
		},
	}
}

func overlayFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func overlayEnv(cfg *Config) {
	cfg.Server.Addr = firstNonEmpty(
		os.Getenv("SERVER_ADDR"),
		os.Getenv("ADDR"),
		cfg.Server.Addr,
	)
	cfg.Database.URL = firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("DB_URL"),
		cfg.Database.URL,
	)
	cfg.Database.UseMock = parseBoolWithDefault(os.Getenv("DATABASE_USE_MOCK"), cfg.Database.UseMock)
	cfg.Database.MaxIdleConns = parseIntWithDefault(os.Getenv("DATABASE_MAX_IDLE_CONNS"), cfg.Database.MaxIdleConns)
	cfg.Database.MaxOpenConns = parseIntWithDefault(os.Getenv("DATABASE_MAX_OPEN_CONNS"), cfg.Database.MaxOpenConns)
	cfg.Database.ConnMaxLifetime = parseDurationWithDefault(os.Getenv("DATABASE_CONN_MAX_LIFETIME"), cfg.Database.ConnMaxLifetime)
	cfg.Database.ConnMaxIdleTime = parseDurationWithDefault(os.Getenv("DATABASE_CONN_MAX_IDLE_TIME"), cfg.Database.ConnMaxIdleTime)
	cfg.Store.Path = firstNonEmpty(os.Getenv("STORE_PATH"), cfg.Store.Path)
	cfg.Store.Backup = parseBoolWithDefault(os.Getenv("STORE_BACKUP"), cfg.Store.Backup)
	cfg.Upload.Dir = firstNonEmpty(os.Getenv("UPLOAD_DIR"), cfg.Upload.Dir)
	cfg.Upload.PublicBaseURL = firstNonEmpty(os.Getenv("PUBLIC_BASE_URL"), cfg.Upload.PublicBaseURL)
	cfg.Logging.Level = firstNonEmpty(os.Getenv("LOG_LEVEL"), cfg.Logging.Level)
	cfg.Session.Lifetime = parseDurationWithDefault(os.Getenv("SESSION_LIFETIME"), cfg.Session.Lifetime)
	cfg.Session.CookieName = firstNonEmpty(os.Getenv("SESSION_COOKIE_NAME"), cfg.Session.CookieName)
	cfg.Session.CookieDomain = firstNonEmpty(os.Getenv("SESSION_COOKIE_DOMAIN"), cfg.Session.CookieDomain)
	cfg.Session.CookieSecure = parseBoolWithDefault(os.Getenv("SESSION_COOKIE_SECURE"), cfg.Session.CookieSecure)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func parseIntWithDefault(value string, def int) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func parseDurationWithDefault(value string, def time.Duration) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func parseBoolWithDefault(value string, def bool) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return parsed
}
