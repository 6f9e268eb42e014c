package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/todolist/internal/apperror"
	"github.com/sakif/todolist/internal/auth"
	"github.com/sakif/todolist/internal/model"
	"github.com/sakif/todolist/internal/repository"
	"github.com/sakif/todolist/internal/validate"
)

// BadCredentialsMessage is shown for an unknown email and for a wrong
// password alike, so the form does not reveal which accounts exist.
const BadCredentialsMessage = "These credentials do not match our records."

// RegisterInput is the submitted registration form.
type RegisterInput struct {
	Name                 string
	Email                string
	Password             string
	PasswordConfirmation string
}

// AuthResult bundles the user with a freshly issued session token.
type AuthResult struct {
	User  *model.User
	Token string
}

// AuthService is the business logic layer for signing in:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt)
//
// It never touches cookies or requests; the handler sets the session
// cookie from the returned token.
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

func (s *AuthService) registerRules() validate.RuleSet {
	emailFree := validate.UniqueFunc(func(ctx context.Context, email string) (bool, error) {
		return s.users.EmailTaken(ctx, email, 0)
	})
	return validate.RuleSet{
		validate.Field("name", validate.Required(), validate.String(), validate.Max(255)),
		validate.Field("email",
			validate.Required(), validate.String(), validate.Email(),
			validate.Max(255), validate.Unique(emailFree)),
		validate.Field("password",
			validate.Required(), validate.String(), validate.Min(8), validate.Confirmed()),
	}
}

var loginRules = validate.RuleSet{
	validate.Field("email", validate.Required(), validate.String(), validate.Email()),
	validate.Field("password", validate.Required(), validate.String()),
}

// Register creates an account with the placeholder avatar and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	err := validate.Validate(ctx, s.registerRules(), validate.Input{Values: map[string]string{
		"name":                  in.Name,
		"email":                 in.Email,
		"password":              in.Password,
		"password_confirmation": in.PasswordConfirmation,
	}}, nil)
	if err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperror.ValidationFailed("password", "The password may not be greater than 72 bytes.")
		}
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		AvatarRef:    model.DefaultAvatar,
	}
	if err := s.users.Insert(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: registering %q: %w", in.Email, err)
	}

	s.logger.Info("user registered", slog.Int64("userID", user.ID))

	return s.issue(user)
}

// Login checks email and password. Both "no such email" and "wrong
// password" produce the same field error on email.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	err := validate.Validate(ctx, loginRules, validate.Input{Values: map[string]string{
		"email":    email,
		"password": password,
	}}, nil)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ValidationFailed("email", BadCredentialsMessage)
		}
		return nil, fmt.Errorf("service/auth: looking up %q: %w", email, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Info("failed login", slog.Int64("userID", user.ID))
			return nil, apperror.ValidationFailed("email", BadCredentialsMessage)
		}
		return nil, fmt.Errorf("service/auth: verifying password for user %d: %w", user.ID, err)
	}

	return s.issue(user)
}

// LoginOrRegisterGitHub handles the GitHub OAuth callback.
//
// LOOKUP ORDER:
//  1. An account already linked to this GitHub id signs in.
//  2. Otherwise an account with the same email gets linked, then signs in.
//  3. Otherwise a new account is created from the GitHub profile. It gets
//     a random password, so it can only sign in through GitHub until the
//     user sets one on the profile page.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user, err := s.users.GetUserByGitHubID(ctx, ghUser.ID)
	if err == nil {
		return s.issue(user)
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up GitHub id %d: %w", ghUser.ID, err)
	}

	email := ghUser.Email
	if email == "" {
		email = fmt.Sprintf("%d+%s@users.noreply.github.com", ghUser.ID, ghUser.Login)
	}

	githubID := ghUser.ID
	user, err = s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		user.GitHubID = &githubID
		if err := s.users.UpdateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("service/auth: linking GitHub id %d to user %d: %w", ghUser.ID, user.ID, err)
		}
		s.logger.Info("GitHub account linked", slog.Int64("userID", user.ID), slog.String("login", ghUser.Login))

	case errors.Is(err, apperror.ErrNotFound):
		hash, err := s.randomPasswordHash()
		if err != nil {
			return nil, err
		}
		user = &model.User{
			Name:         ghUser.DisplayName(),
			Email:        email,
			PasswordHash: hash,
			AvatarRef:    model.DefaultAvatar,
			GitHubID:     &githubID,
		}
		if err := s.users.Insert(ctx, user); err != nil {
			return nil, fmt.Errorf("service/auth: creating user for GitHub id %d: %w", ghUser.ID, err)
		}
		s.logger.Info("user registered via GitHub", slog.Int64("userID", user.ID), slog.String("login", ghUser.Login))

	default:
		return nil, fmt.Errorf("service/auth: looking up %q: %w", email, err)
	}

	return s.issue(user)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %d: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// randomPasswordHash hashes 32 random bytes nobody knows.
func (s *AuthService) randomPasswordHash() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("service/auth: generating password: %w", err)
	}
	return s.passwords.Hash(hex.EncodeToString(buf))
}
