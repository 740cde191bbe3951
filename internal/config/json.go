package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Duration accepts both "90s"-style strings and integer nanoseconds in JSON.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	default:
		return fmt.Errorf("invalid duration %s", b)
	}
}

// fileConfig is the JSON shape of Config. It is pre-filled from the current
// Config so keys missing from the file keep their earlier value.
type fileConfig struct {
	Port        int      `json:"port"`
	DBPath      string   `json:"db_path"`
	JWTSecret   string   `json:"jwt_secret"`
	TokenTTL    Duration `json:"token_ttl"`
	StoryTTL    Duration `json:"story_ttl"`
	SweepAt     string   `json:"sweep_at"`
	LogLevel    string   `json:"log_level"`
	CORSOrigins []string `json:"cors_origins"`
	GitHub      struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
		CallbackURL  string `json:"callback_url"`
	} `json:"github"`
	Media struct {
		Bucket        string `json:"bucket"`
		Region        string `json:"region"`
		Endpoint      string `json:"endpoint"`
		AccessKey     string `json:"access_key"`
		SecretKey     string `json:"secret_key"`
		PublicBaseURL string `json:"public_base_url"`
		MaxBytes      int64  `json:"max_bytes"`
	} `json:"media"`
}

func parseJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	fc := fileConfig{
		Port:        cfg.Port,
		DBPath:      cfg.DBPath,
		JWTSecret:   cfg.JWTSecret,
		TokenTTL:    Duration(cfg.TokenTTL),
		StoryTTL:    Duration(cfg.StoryTTL),
		SweepAt:     cfg.SweepAt,
		LogLevel:    cfg.LogLevel,
		CORSOrigins: cfg.CORSOrigins,
	}
	fc.GitHub.ClientID = cfg.GitHub.ClientID
	fc.GitHub.ClientSecret = cfg.GitHub.ClientSecret
	fc.GitHub.CallbackURL = cfg.GitHub.CallbackURL
	fc.Media.Bucket = cfg.Media.Bucket
	fc.Media.Region = cfg.Media.Region
	fc.Media.Endpoint = cfg.Media.Endpoint
	fc.Media.AccessKey = cfg.Media.AccessKey
	fc.Media.SecretKey = cfg.Media.SecretKey
	fc.Media.PublicBaseURL = cfg.Media.PublicBaseURL
	fc.Media.MaxBytes = cfg.Media.MaxBytes

	if err := json.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.Port = fc.Port
	cfg.DBPath = fc.DBPath
	cfg.JWTSecret = fc.JWTSecret
	cfg.TokenTTL = time.Duration(fc.TokenTTL)
	cfg.StoryTTL = time.Duration(fc.StoryTTL)
	cfg.SweepAt = fc.SweepAt
	cfg.LogLevel = fc.LogLevel
	cfg.CORSOrigins = fc.CORSOrigins
	cfg.GitHub = GitHubConfig{
		ClientID:     fc.GitHub.ClientID,
		ClientSecret: fc.GitHub.ClientSecret,
		CallbackURL:  fc.GitHub.CallbackURL,
	}
	cfg.Media = MediaConfig{
		Bucket:        fc.Media.Bucket,
		Region:        fc.Media.Region,
		Endpoint:      fc.Media.Endpoint,
		AccessKey:     fc.Media.AccessKey,
		SecretKey:     fc.Media.SecretKey,
		PublicBaseURL: fc.Media.PublicBaseURL,
		MaxBytes:      fc.Media.MaxBytes,
	}
	return nil
}
