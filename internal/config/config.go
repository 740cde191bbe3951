// Package config builds the server's runtime settings.
//
// Sources are layered, later ones winning:
//
//	defaults → JSON file (-config / CONFIG) → environment → command-line flags
//
// The result is one explicit *Config that main hands to every component;
// nothing else reads the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

type Config struct {
	Port        int
	DBPath      string
	JWTSecret   string
	TokenTTL    time.Duration
	StoryTTL    time.Duration
	SweepAt     string // "HH:MM", UTC
	LogLevel    string
	CORSOrigins []string
	GitHub      GitHubConfig
	Media       MediaConfig
}

// GitHubConfig enables "Sign in with GitHub" when ClientID is set.
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

// MediaConfig selects the S3 media delegate when Bucket is set.
type MediaConfig struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
	MaxBytes      int64
}

// LoadDefaults fills in development defaults. JWTSecret is left empty on
// purpose: Validate refuses to start without one.
func (c *Config) LoadDefaults() {
	c.Port = 8080
	c.DBPath = "data/storyline.db"
	c.TokenTTL = 24 * time.Hour
	c.StoryTTL = 24 * time.Hour
	c.SweepAt = "00:00"
	c.LogLevel = "info"
	c.CORSOrigins = []string{"http://localhost:3000"}
	c.Media.Region = "us-east-1"
	c.Media.MaxBytes = 50 << 20
}

// Load applies every layer. args are the command-line arguments without the
// program name; getenv is os.Getenv outside of tests.
func Load(args []string, getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if path := configPath(args, getenv); path != "" {
		if err := parseJSON(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := parseEnv(cfg, getenv); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}

	if cfg.GitHub.CallbackURL == "" {
		cfg.GitHub.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}

	return cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT secret must be at least 16 characters (set JWT_SECRET)"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token TTL must be positive"))
	}
	if c.StoryTTL <= 0 {
		errs = append(errs, errors.New("story TTL must be positive"))
	}
	if _, _, err := c.SweepClock(); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Media.MaxBytes <= 0 {
		errs = append(errs, errors.New("media max bytes must be positive"))
	}
	if c.GitHub.ClientID != "" && c.GitHub.ClientSecret == "" {
		errs = append(errs, errors.New("GitHub client secret is required when a client ID is set"))
	}

	return errors.Join(errs...)
}

// SweepClock parses SweepAt.
func (c *Config) SweepClock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", c.SweepAt)
	if err != nil {
		return 0, 0, fmt.Errorf("sweep time %q must be HH:MM", c.SweepAt)
	}
	return t.Hour(), t.Minute(), nil
}

// SlogLevel returns the configured level, falling back to Info.
func (c *Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func (c *Config) GitHubEnabled() bool { return c.GitHub.ClientID != "" }

func (c *Config) MediaEnabled() bool { return c.Media.Bucket != "" }

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return level, nil
}
