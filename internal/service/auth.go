package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/sakif/idea-tracker/internal/apperror"
	"github.com/sakif/idea-tracker/internal/auth"
	"github.com/sakif/idea-tracker/internal/model"
	"github.com/sakif/idea-tracker/internal/policy"
	"github.com/sakif/idea-tracker/internal/repository"
)

const (
	MinPasswordLength = 6
	MaxNameLength     = 100
)

// errBadCredentials is shared by every login failure so the response
// never reveals whether the email exists.
var errBadCredentials = apperror.Unauthenticated("invalid email or password")

// Mirror receives a copy of every self-registered account. See the
// mirror package for the file-backed implementation.
type Mirror interface {
	Append(ctx context.Context, u *model.User) error
}

// AuthService handles registration, login and the owner-only user
// listings.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                                 ↘ TokenService (JWT), PasswordService (bcrypt), Mirror (side files)
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	mirror    Mirror
	logger    *slog.Logger
}

// NewAuthService wires an AuthService. mirror may be nil, in which case
// registrations are only stored in the database.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	mirror Mirror,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		mirror:    mirror,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued token so the handler
// can respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// RegisterInput is the self-registration form. Role may be empty, which
// means customer.
type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
	Role     string
}

// Register creates a customer or developer account and logs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("name must be %d characters or less", MaxNameLength))
	}

	email := model.NormalizeEmail(in.Email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, apperror.ValidationFailed("email", "email is not a valid address")
	}

	if len(in.Password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(in.Password) > auth.MaxPasswordBytes {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes))
	}

	role := model.RoleCustomer
	if raw := strings.TrimSpace(in.Role); raw != "" {
		r, ok := model.ParseRole(raw)
		if !ok || !r.SelfRegistrable() {
			return nil, apperror.ValidationFailed("role", "role must be customer or developer")
		}
		role = r
	}

	// Checked up front for a clean message; the UNIQUE constraint still
	// catches a concurrent registration of the same address.
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, apperror.Conflict("email", "email already registered")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("checking email: %w", err)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("role", string(user.Role)),
	)

	if s.mirror != nil {
		if err := s.mirror.Append(ctx, user); err != nil {
			s.logger.Warn("failed to mirror registration to side file",
				slog.Int64("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return s.issue(user)
}

// Login checks an email/password pair and issues a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetUserByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Info("login failed", slog.Int64("userID", user.ID))
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("verifying password: %w", err)
	}

	return s.issue(user)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(model.Identity{UserID: user.ID, Role: user.Role})
	if err != nil {
		return nil, fmt.Errorf("generating token for user %d: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// ListUsers returns every account. Owner only.
func (s *AuthService) ListUsers(ctx context.Context, caller model.Identity) ([]model.User, error) {
	if !policy.Allows(caller.Role, policy.ActionListUsers) {
		return nil, apperror.Forbidden("only owners can list users")
	}
	users, err := s.users.ListUsers(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// ListDevelopers returns the accounts an idea can be assigned to.
// Owner only.
func (s *AuthService) ListDevelopers(ctx context.Context, caller model.Identity) ([]model.User, error) {
	if !policy.Allows(caller.Role, policy.ActionListDevelopers) {
		return nil, apperror.Forbidden("only owners can list developers")
	}
	devs, err := s.users.ListUsers(ctx, model.RoleDeveloper)
	if err != nil {
		return nil, fmt.Errorf("listing developers: %w", err)
	}
	return devs, nil
}
