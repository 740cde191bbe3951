// Package main is the entry point for the storyline API server.
//
// The main package stays small. Its job is to:
//  1. Read configuration (defaults, JSON file, env vars, flags)
//  2. Create dependencies (logger, database, media delegate, metrics)
//  3. Start the application
//
// All actual logic lives in imported packages (internal/server,
// internal/service, etc.).
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sakif/storyline/internal/config"
	"github.com/sakif/storyline/internal/media"
	"github.com/sakif/storyline/internal/media/s3store"
	"github.com/sakif/storyline/internal/metrics"
	sqliteRepo "github.com/sakif/storyline/internal/repository/sqlite"
	"github.com/sakif/storyline/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 3. DATABASE ===
	// 0755 = owner can read/write/execute, others can read/execute.
	if dbDir := filepath.Dir(cfg.DBPath); dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", slog.String("path", cfg.DBPath), slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 4. MEDIA DELEGATE ===
	// Without a bucket the server still starts; uploads fail with 502.
	var store media.Store = media.Disabled{}
	if cfg.MediaEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		s3, err := s3store.New(ctx, s3store.Config{
			Bucket:        cfg.Media.Bucket,
			Region:        cfg.Media.Region,
			Endpoint:      cfg.Media.Endpoint,
			AccessKey:     cfg.Media.AccessKey,
			SecretKey:     cfg.Media.SecretKey,
			PublicBaseURL: cfg.Media.PublicBaseURL,
		})
		cancel()
		if err != nil {
			logger.Error("failed to configure media storage", slog.String("error", err.Error()))
			db.Close()
			os.Exit(1)
		}
		store = s3
		logger.Info("media storage configured", slog.String("bucket", cfg.Media.Bucket))
	} else {
		logger.Warn("MEDIA_BUCKET not set, uploads are disabled")
	}

	if !cfg.GitHubEnabled() {
		logger.Info("GitHub login disabled")
	}

	// === 5. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, db, store, metrics.New(), logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		db.Close()
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM and closes the database on return.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
