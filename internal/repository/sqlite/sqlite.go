// Package sqlite implements every repository interface on top of SQLite.
//
// WHY SQLITE FOR A "DOCUMENT STORE"?
// The service layer only needs four things from its store: single-row
// inserts/updates/deletes, UNIQUE constraints to serialize racing writers,
// range queries on timestamps, and one bulk update-by-predicate (the story
// sweep). SQLite gives us all four in-process with zero deployment cost.
// modernc.org/sqlite is a pure-Go port, so no CGO toolchain is needed.
//
// TIMESTAMPS:
// All times are stored as INTEGER unix nanoseconds in UTC. Integer columns
// compare numerically, which keeps `expires_at > ?` exact to the nanosecond
// and independent of how the driver would format a time.Time as text.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/storyline/internal/repository"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// DB wraps a *sql.DB connection pool and implements the repository interfaces.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and brings the schema
// up to date. Use ":memory:" for a throwaway database in tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" is a separate, empty database.
	// Pin the pool to one connection so migrations and queries agree.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a writer holds the lock.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close releases the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping is used by the health endpoint.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// migrate creates the schema. Every statement is idempotent
// (IF NOT EXISTS), so it runs on every startup.
//
// There are no FOREIGN KEY clauses: cascades (a story's views, a post's
// likes/comments/tags) are performed explicitly by the Delete methods.
func (db *DB) migrate() error {
	steps := []struct {
		name string
		sql  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id            TEXT PRIMARY KEY,
				username      TEXT NOT NULL UNIQUE COLLATE NOCASE,
				email         TEXT UNIQUE COLLATE NOCASE,
				password_hash TEXT NOT NULL DEFAULT '',
				github_id     INTEGER UNIQUE,
				bio           TEXT NOT NULL DEFAULT '',
				avatar_id     TEXT NOT NULL DEFAULT '',
				avatar_url    TEXT NOT NULL DEFAULT '',
				created_at    INTEGER NOT NULL,
				updated_at    INTEGER NOT NULL
			);`},
		{"follows", `
			CREATE TABLE IF NOT EXISTS follows (
				follower_id TEXT NOT NULL,
				followed_id TEXT NOT NULL,
				created_at  INTEGER NOT NULL,
				PRIMARY KEY (follower_id, followed_id),
				CHECK (follower_id <> followed_id)
			);
			CREATE INDEX IF NOT EXISTS idx_follows_followed ON follows(followed_id);`},
		{"posts", `
			CREATE TABLE IF NOT EXISTS posts (
				id         TEXT PRIMARY KEY,
				owner_id   TEXT NOT NULL,
				media_id   TEXT NOT NULL,
				media_url  TEXT NOT NULL,
				caption    TEXT NOT NULL DEFAULT '',
				created_at INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_posts_owner_created ON posts(owner_id, created_at);
			CREATE TABLE IF NOT EXISTS post_hashtags (
				post_id TEXT NOT NULL,
				tag     TEXT NOT NULL,
				PRIMARY KEY (post_id, tag)
			);
			CREATE INDEX IF NOT EXISTS idx_post_hashtags_tag ON post_hashtags(tag);`},
		{"stories", `
			CREATE TABLE IF NOT EXISTS stories (
				id         TEXT PRIMARY KEY,
				owner_id   TEXT NOT NULL,
				media_id   TEXT NOT NULL,
				media_url  TEXT NOT NULL,
				caption    TEXT NOT NULL DEFAULT '',
				created_at INTEGER NOT NULL,
				expires_at INTEGER NOT NULL,
				is_active  INTEGER NOT NULL DEFAULT 1
			);
			CREATE INDEX IF NOT EXISTS idx_stories_owner_expires ON stories(owner_id, expires_at);
			CREATE INDEX IF NOT EXISTS idx_stories_active_expires ON stories(is_active, expires_at);
			CREATE TABLE IF NOT EXISTS story_views (
				id        TEXT PRIMARY KEY,
				story_id  TEXT NOT NULL,
				viewer_id TEXT NOT NULL,
				viewed_at INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_story_views_story ON story_views(story_id, viewed_at);`},
		{"likes and comments", `
			CREATE TABLE IF NOT EXISTS likes (
				post_id    TEXT NOT NULL,
				user_id    TEXT NOT NULL,
				created_at INTEGER NOT NULL,
				PRIMARY KEY (post_id, user_id)
			);
			CREATE TABLE IF NOT EXISTS comments (
				id         TEXT PRIMARY KEY,
				post_id    TEXT NOT NULL,
				user_id    TEXT NOT NULL,
				text       TEXT NOT NULL,
				created_at INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_comments_post_created ON comments(post_id, created_at);`},
		{"notifications", `
			CREATE TABLE IF NOT EXISTS notifications (
				id           TEXT PRIMARY KEY,
				recipient_id TEXT NOT NULL,
				type         TEXT NOT NULL,
				from_user_id TEXT NOT NULL,
				post_id      TEXT NOT NULL DEFAULT '',
				story_id     TEXT NOT NULL DEFAULT '',
				created_at   INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, created_at);`},
	}

	for _, step := range steps {
		if _, err := db.conn.Exec(step.sql); err != nil {
			return fmt.Errorf("creating %s tables: %w", step.name, err)
		}
	}

	return nil
}

// =========================================================================
// HELPERS
// =========================================================================

func toUnix(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// uniqueViolation reports whether err is a UNIQUE / PRIMARY KEY constraint
// failure, and if so which column list the driver named
// (e.g. "users.username").
func uniqueViolation(err error) (string, bool) {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return "", false
	}

	msg := sqliteErr.Error()
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
	case sqlite3.SQLITE_CONSTRAINT:
		if !strings.Contains(msg, "UNIQUE constraint failed") {
			return "", false
		}
	default:
		return "", false
	}

	if i := strings.LastIndex(msg, "constraint failed: "); i >= 0 {
		cols := msg[i+len("constraint failed: "):]
		if j := strings.Index(cols, " ("); j >= 0 {
			cols = cols[:j]
		}
		return cols, true
	}
	return "", true
}

// inList is the IN (...) operand for a list of ids bound as one JSON array
// parameter. One bound variable per id would hit SQLite's variable limit
// for users who follow tens of thousands of accounts.
const inList = `(SELECT value FROM json_each(?))`

// idList encodes ids for inList.
func idList(ids []string) (string, error) {
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("sqlite: encoding id list: %w", err)
	}
	return string(b), nil
}

// pageBounds applies the default and maximum page size.
func pageBounds(opts repository.ListOptions) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset = opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// checkAffected turns "0 rows affected" into a NotFound error.
func checkAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
