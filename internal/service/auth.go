package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sakif/storyline/internal/apperror"
	"github.com/sakif/storyline/internal/auth"
	"github.com/sakif/storyline/internal/model"
	"github.com/sakif/storyline/internal/repository"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
	MinPasswordLength = 8
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)

// AuthService registers accounts and turns credentials into access tokens.
//
//	AuthHandler → AuthService → UserRepository
//	                          ↘ TokenService (JWT), PasswordService (bcrypt)
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user and the issued token so the handler can set
// the cookie and write the body in one step.
type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// Register creates a password account. Username and email uniqueness are
// decided by the store: of two concurrent registrations for the same name,
// exactly one gets apperror.ErrConflict.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperror.ValidationFailed("password",
				fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes))
		}
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return s.issue(user)
}

// Login accepts a username or an email. Unknown accounts and wrong passwords
// produce the same error so the response does not reveal which accounts
// exist.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, apperror.ValidationFailed("identifier", "username or email and password are required")
	}

	invalid := apperror.Unauthorized("invalid credentials")

	user, err := s.users.GetUserByLogin(ctx, identifier)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, invalid
		}
		return nil, err
	}

	// GitHub-only accounts have no password.
	if user.PasswordHash == "" {
		return nil, invalid
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			s.logger.Warn("failed login", slog.String("userID", user.ID))
			return nil, invalid
		}
		return nil, fmt.Errorf("service/auth: verifying password for %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return s.issue(user)
}

// LoginOrRegisterGitHub runs after the OAuth callback. The GitHub numeric ID
// is the link key; the first login creates the account, later logins find
// it.
//
// The GitHub login becomes the initial username. If it is taken by a
// password account, the GitHub ID is appended. If the GitHub email is taken,
// the new account is created without one.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	existing, err := s.users.GetUserByGitHubID(ctx, ghUser.ID)
	if err == nil {
		s.logger.Info("user authenticated via GitHub", slog.String("userID", existing.ID))
		return s.issue(existing)
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	candidates := []model.User{
		{Username: ghUser.Login, Email: strings.ToLower(ghUser.Email)},
		{Username: fmt.Sprintf("%s_%d", ghUser.Login, ghUser.ID), Email: strings.ToLower(ghUser.Email)},
		{Username: fmt.Sprintf("%s_%d", ghUser.Login, ghUser.ID)},
	}

	var lastErr error
	for _, c := range candidates {
		user := c
		user.GitHubID = ghUser.ID
		if ghUser.AvatarURL != "" {
			user.Avatar = &model.Media{URL: ghUser.AvatarURL}
		}

		lastErr = s.users.CreateUser(ctx, &user)
		if lastErr == nil {
			s.logger.Info("user registered via GitHub",
				slog.String("userID", user.ID),
				slog.String("username", user.Username),
			)
			return s.issue(&user)
		}
		if !errors.Is(lastErr, apperror.ErrConflict) {
			return nil, lastErr
		}
	}

	return nil, lastErr
}

func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.Unauthorized("no user in request")
	}
	return s.users.GetUserByID(ctx, id)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	switch {
	case n < MinUsernameLength || n > MaxUsernameLength:
		return apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d to %d characters", MinUsernameLength, MaxUsernameLength))
	case !usernamePattern.MatchString(username):
		return apperror.ValidationFailed("username",
			"username may only contain letters, digits, '_' and '.'")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return apperror.ValidationFailed("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperror.ValidationFailed("email", "email is not a valid address")
	}
	return nil
}
