package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/alex-rublevsky/rublevsky-studio/internal/domain"
	"github.com/alex-rublevsky/rublevsky-studio/internal/repository"
	apperrors "github.com/alex-rublevsky/rublevsky-studio/pkg/errors"
)

// TokenIssuer creates signed access tokens.
type TokenIssuer interface {
	GenerateAccessToken(userID, email, role string) (string, time.Time, error)
}

// RegisterInput is the request body for account registration.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,max=100"`
}

// LoginInput is the request body for login.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User        *domain.User `json:"user"`
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

func errBadCredentials() error {
	return apperrors.Unauthorized("invalid email or password")
}

// AuthService handles accounts and credentials.
type AuthService struct {
	users      repository.UserRepository
	tokens     TokenIssuer
	logger     *slog.Logger
	bcryptCost int
}

// NewAuthService creates a new auth service.
func NewAuthService(users repository.UserRepository, tokens TokenIssuer, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		logger:     logger,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// Register creates a customer account and signs it in.
func (s *AuthService) Register(ctx context.Context, input *RegisterInput) (*AuthResult, error) {
	user, err := s.createUser(ctx, input.Email, input.Password, input.Name, domain.RoleCustomer)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login verifies credentials. Unknown emails and wrong passwords produce the
// same error.
func (s *AuthService) Login(ctx context.Context, input *LoginInput) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, errBadCredentials()
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		s.logger.WarnContext(ctx, "failed login", slog.String("user_id", user.ID))
		return nil, errBadCredentials()
	}
	if !user.IsActive {
		return nil, apperrors.Forbidden("account is disabled")
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))
	return s.issue(user)
}

// Me returns the account behind an authenticated request.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// CreateAdmin creates a dashboard account.
func (s *AuthService) CreateAdmin(ctx context.Context, email, password, name string) (*domain.User, error) {
	if len(password) < 8 {
		return nil, apperrors.InvalidInput("password must be at least 8 characters")
	}
	return s.createUser(ctx, email, password, name, domain.RoleAdmin)
}

func (s *AuthService) createUser(ctx context.Context, email, password, name, role string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(name),
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user created",
		slog.String("user_id", user.ID),
		slog.String("role", role),
	)
	return user, nil
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{
		User:        user,
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	}, nil
}
