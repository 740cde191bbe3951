package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/storyline/internal/apperror"
	"github.com/sakif/storyline/internal/model"
	"github.com/sakif/storyline/internal/repository"
)

// COMPILE-TIME INTERFACE CHECK:
// If *DB stops satisfying the interface, the build breaks here rather than at
// some distant call site.
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, email, password_hash, github_id, bio, avatar_id, avatar_url, created_at, updated_at`

// CreateUser inserts a new user. Username and email uniqueness is left to the
// UNIQUE constraints: checking first and inserting second would race.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	var githubID sql.NullInt64
	if user.GitHubID != 0 {
		githubID = sql.NullInt64{Int64: user.GitHubID, Valid: true}
	}

	// Empty emails are stored as NULL so that several GitHub accounts
	// without a public email do not collide on the UNIQUE index.
	var email sql.NullString
	if user.Email != "" {
		email = sql.NullString{String: user.Email, Valid: true}
	}

	var avatarID, avatarURL string
	if user.Avatar != nil {
		avatarID, avatarURL = user.Avatar.ID, user.Avatar.URL
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		email,
		user.PasswordHash,
		githubID,
		user.Bio,
		avatarID,
		avatarURL,
		toUnix(user.CreatedAt),
		toUnix(user.UpdatedAt),
	)
	if err != nil {
		if cols, ok := uniqueViolation(err); ok {
			switch {
			case strings.Contains(cols, "username"):
				return apperror.Conflict("user", "username is already taken")
			case strings.Contains(cols, "email"):
				return apperror.Conflict("user", "email is already registered")
			default:
				return apperror.Conflict("user", "account already exists")
			}
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}

	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByLogin looks a user up by username OR email, case-insensitively
// (both columns are COLLATE NOCASE).
func (db *DB) GetUserByLogin(ctx context.Context, usernameOrEmail string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ? OR email = ? LIMIT 1`,
		usernameOrEmail, usernameOrEmail,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", usernameOrEmail)
		}
		return nil, fmt.Errorf("sqlite: getting user by login: %w", err)
	}
	return u, nil
}

func (db *DB) GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE github_id = ?`, githubID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", fmt.Sprintf("github:%d", githubID))
		}
		return nil, fmt.Errorf("sqlite: getting user by github_id %d: %w", githubID, err)
	}
	return u, nil
}

// SearchUsers returns users whose username starts with prefix,
// case-insensitively, ordered by username.
func (db *DB) SearchUsers(ctx context.Context, prefix string, limit int) ([]model.User, error) {
	limit, _ = pageBounds(repository.ListOptions{Limit: limit})

	// Escape LIKE wildcards so "a_b" matches literally.
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE username LIKE ? ESCAPE '\'
		 ORDER BY username
		 LIMIT ?`,
		escaped+"%", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: searching users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	return users, nil
}

// UpdateAvatar replaces the user's avatar reference. A nil avatar clears it.
func (db *DB) UpdateAvatar(ctx context.Context, userID string, avatar *model.Media) error {
	var id, url string
	if avatar != nil {
		id, url = avatar.ID, avatar.URL
	}

	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET avatar_id = ?, avatar_url = ?, updated_at = ? WHERE id = ?`,
		id, url, toUnix(time.Now()), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating avatar for user %s: %w", userID, err)
	}
	return checkAffected(result, apperror.NotFound("user", userID))
}

func (db *DB) UpdateBio(ctx context.Context, userID, bio string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET bio = ?, updated_at = ? WHERE id = ?`,
		bio, toUnix(time.Now()), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating bio for user %s: %w", userID, err)
	}
	return checkAffected(result, apperror.NotFound("user", userID))
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u                    model.User
		email                sql.NullString
		githubID             sql.NullInt64
		avatarID, avatarURL  string
		createdAt, updatedAt int64
	)
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&email,
		&u.PasswordHash,
		&githubID,
		&u.Bio,
		&avatarID,
		&avatarURL,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	u.Email = email.String
	u.GitHubID = githubID.Int64
	// External avatars (GitHub) have a URL but no delegate id.
	if avatarID != "" || avatarURL != "" {
		u.Avatar = &model.Media{ID: avatarID, URL: avatarURL}
	}
	u.CreatedAt = fromUnix(createdAt)
	u.UpdatedAt = fromUnix(updatedAt)
	return &u, nil
}
