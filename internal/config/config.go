package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config keeps runtime settings for the service.
type Config struct {
	Addr        string `yaml:"addr"`
	DatabaseURL string `yaml:"database_url"`
	JWTSecret   string `yaml:"jwt_secret"`
	JWTIssuer   string `yaml:"jwt_issuer"`
	LogLevel    string `yaml:"log_level"`

	DBMaxOpenConns int `yaml:"db_max_open_conns"`

	InvitationTTL           time.Duration `yaml:"invitation_ttl"`
	InvitationSweepInterval time.Duration `yaml:"invitation_sweep_interval"`
	// InvitationSweepAt is an optional daily HH:MM; it wins over the interval.
	InvitationSweepAt string `yaml:"invitation_sweep_at"`
}

func defaults() Config {
	return Config{
		Addr:                    ":8080",
		DatabaseURL:             "taskshare.db",
		JWTIssuer:               "taskshare",
		LogLevel:                "info",
		DBMaxOpenConns:          10,
		InvitationTTL:           7 * 24 * time.Hour,
		InvitationSweepInterval: time.Hour,
	}
}

// Load reads the optional YAML file at path, then applies environment
// overrides. Missing values fall back to defaults.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Addr, "ADDR")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.JWTIssuer, "JWT_ISSUER")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.InvitationSweepAt, "INVITATION_SWEEP_AT")

	if raw := env("DB_MAX_OPEN_CONNS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return fmt.Errorf("DB_MAX_OPEN_CONNS must be a positive integer, got %q", raw)
		}
		cfg.DBMaxOpenConns = n
	}
	if err := setDuration(&cfg.InvitationTTL, "INVITATION_TTL"); err != nil {
		return err
	}
	return setDuration(&cfg.InvitationSweepInterval, "INVITATION_SWEEP_INTERVAL")
}

func (c Config) validate() error {
	if c.InvitationTTL <= 0 {
		return errors.New("invitation ttl must be positive")
	}
	if c.InvitationSweepInterval <= 0 {
		return errors.New("invitation sweep interval must be positive")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// RequireSecret fails when no JWT secret is configured.
func (c Config) RequireSecret() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return level, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func setString(dst *string, key string) {
	if v := env(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	raw := env(key)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fmt.Errorf("%s must be a positive duration, got %q", key, raw)
	}
	*dst = d
	return nil
}
