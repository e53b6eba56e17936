package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/msomdec/calendar-api/internal/domain"
)

// MaxPasswordLength is the longest accepted password, in characters.
const MaxPasswordLength = 50

// MaxPageSize caps every listing.
const MaxPageSize = 100

// RegisterInput carries the fields of a local registration.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Image    string
}

// AuthService handles user registration, login, and bearer token resolution.
type AuthService struct {
	users      domain.UserRepository
	tokens     *TokenService
	bcryptCost int
}

// NewAuthService creates a new AuthService.
func NewAuthService(users domain.UserRepository, tokens *TokenService, bcryptCost int) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		bcryptCost: bcryptCost,
	}
}

// Register creates a local account after validating inputs.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	if in.Username == "" {
		return nil, fmt.Errorf("%w: username is required", domain.ErrInvalidInput)
	}
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}
	if in.Password == "" {
		return nil, fmt.Errorf("%w: password is required", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(in.Password) > MaxPasswordLength {
		return nil, fmt.Errorf("%w: password must be at most %d characters", domain.ErrInvalidInput, MaxPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: password is too long", domain.ErrInvalidInput)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:   in.Username,
		Email:      in.Email,
		Image:      in.Image,
		Provider:   domain.ProviderLocal,
		Credential: domain.LocalCredential{PasswordHash: string(hash)},
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// Login verifies credentials and returns a signed access token.
// The identifier is an email; identifiers without "@" are looked up as usernames.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (string, error) {
	user, err := s.lookup(ctx, strings.TrimSpace(identifier))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrUnauthorized
		}
		return "", fmt.Errorf("get user: %w", err)
	}

	hash, ok := user.PasswordHash()
	if !ok {
		return "", domain.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", domain.ErrUnauthorized
	}

	token, _, err := s.tokens.Issue(user)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

func (s *AuthService) lookup(ctx context.Context, identifier string) (*domain.User, error) {
	if identifier == "" {
		return nil, domain.ErrNotFound
	}
	if strings.Contains(identifier, "@") {
		return s.users.GetByEmail(ctx, identifier)
	}
	return s.users.GetByUsername(ctx, identifier)
}

// Authenticate resolves a bearer token to its user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by their ID.
func (s *AuthService) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// ListUsers returns a page of users ordered by id.
func (s *AuthService) ListUsers(ctx context.Context, skip, limit int) ([]domain.User, error) {
	skip, limit = clampPage(skip, limit)
	users, err := s.users.List(ctx, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: %q is not a valid email address", domain.ErrInvalidInput, email)
	}
	return nil
}

// clampPage applies the listing defaults: negative skip is 0, a
// non-positive limit means the maximum page.
func clampPage(skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	return skip, limit
}
