package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/msomdec/calendar-api/internal/domain"
)

// Claims is the payload of an access token.
type Claims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Image    string `json:"image"`
	jwt.RegisteredClaims
}

// UserID returns the subject as a user id.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, domain.ErrUnauthorized
	}
	return id, nil
}

// TokenService issues and verifies HS256 access tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService signing with secret. Tokens expire
// ttl after issue.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock replaces the time source used for issuing and verifying.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// Issue signs a token for user and returns it with its expiry.
func (s *TokenService) Issue(user *domain.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		Username: user.Username,
		Email:    user.Email,
		Image:    user.Image,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks the signature and expiry of token. Every failure is
// reported as domain.ErrUnauthorized.
func (s *TokenService) Verify(token string) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, domain.ErrUnauthorized
	}
	if claims.Subject == "" {
		return nil, domain.ErrUnauthorized
	}
	return &claims, nil
}
