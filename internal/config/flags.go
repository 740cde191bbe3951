package config

import (
	"flag"
	"io"
	"strings"
)

// parseFlags applies command-line flags on top of everything else. Only
// flags that are explicitly passed change the config.
//
//	-config string     JSON config file
//	-port int          HTTP port
//	-db string         SQLite database path
//	-jwt-secret string HMAC secret for access tokens
//	-story-ttl dur     story lifetime
//	-sweep-at HH:MM    daily sweep time, UTC
//	-log-level string  debug, info, warn, error
//	-cors string       comma-separated allowed origins
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("storyline", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.String("config", "", "JSON config file")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "HMAC secret for access tokens")
	fs.DurationVar(&cfg.StoryTTL, "story-ttl", cfg.StoryTTL, "story lifetime")
	fs.StringVar(&cfg.SweepAt, "sweep-at", cfg.SweepAt, "daily sweep time (HH:MM, UTC)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	cors := fs.String("cors", strings.Join(cfg.CORSOrigins, ","), "comma-separated allowed origins")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "cors" {
			cfg.CORSOrigins = splitList(*cors)
		}
	})
	return nil
}

// configPath finds the JSON file before the full flag parse, since the file
// is applied beneath the flags.
func configPath(args []string, getenv func(string) string) string {
	for i, arg := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") || name != "config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return getenv("CONFIG")
}
