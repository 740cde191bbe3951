package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseEnv overlays environment variables that are set and non-empty.
func parseEnv(cfg *Config, getenv func(string) string) error {
	strs := map[string]*string{
		"DB_PATH":              &cfg.DBPath,
		"JWT_SECRET":           &cfg.JWTSecret,
		"SWEEP_AT":             &cfg.SweepAt,
		"LOG_LEVEL":            &cfg.LogLevel,
		"GITHUB_CLIENT_ID":     &cfg.GitHub.ClientID,
		"GITHUB_CLIENT_SECRET": &cfg.GitHub.ClientSecret,
		"GITHUB_CALLBACK_URL":  &cfg.GitHub.CallbackURL,
		"MEDIA_BUCKET":         &cfg.Media.Bucket,
		"MEDIA_REGION":         &cfg.Media.Region,
		"MEDIA_ENDPOINT":       &cfg.Media.Endpoint,
		"MEDIA_ACCESS_KEY":     &cfg.Media.AccessKey,
		"MEDIA_SECRET_KEY":     &cfg.Media.SecretKey,
		"MEDIA_PUBLIC_URL":     &cfg.Media.PublicBaseURL,
	}
	for key, dst := range strs {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: PORT %q: %w", v, err)
		}
		cfg.Port = port
	}

	durations := map[string]*time.Duration{
		"TOKEN_TTL": &cfg.TokenTTL,
		"STORY_TTL": &cfg.StoryTTL,
	}
	for key, dst := range durations {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("config: %s %q: %w", key, v, err)
			}
			*dst = d
		}
	}

	if v := getenv("MEDIA_MAX_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: MEDIA_MAX_BYTES %q: %w", v, err)
		}
		cfg.Media.MaxBytes = n
	}

	if v := getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
