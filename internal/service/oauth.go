package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/msomdec/calendar-api/internal/domain"
	"github.com/msomdec/calendar-api/internal/oauth"
)

// OAuthService runs the provider login flow: it issues states, completes
// callbacks, and maps provider identities onto local accounts.
type OAuthService struct {
	providers *oauth.Registry
	states    domain.OAuthStateStore
	users     domain.UserRepository
	tokens    *TokenService
	stateTTL  time.Duration
	now       func() time.Time
}

// NewOAuthService creates a new OAuthService.
func NewOAuthService(providers *oauth.Registry, states domain.OAuthStateStore, users domain.UserRepository,
	tokens *TokenService, stateTTL time.Duration) *OAuthService {
	return &OAuthService{
		providers: providers,
		states:    states,
		users:     users,
		tokens:    tokens,
		stateTTL:  stateTTL,
		now:       time.Now,
	}
}

// Begin stores a fresh state for the named provider and returns the URL to
// redirect the browser to. Unknown providers are domain.ErrNotFound.
func (s *OAuthService) Begin(ctx context.Context, providerName string) (string, error) {
	provider, ok := s.providers.Get(providerName)
	if !ok {
		return "", domain.ErrNotFound
	}

	state := domain.OAuthState{
		State:     uuid.NewString(),
		Provider:  provider.Name(),
		ExpiresAt: s.now().Add(s.stateTTL),
	}
	if err := s.states.Save(ctx, state); err != nil {
		return "", fmt.Errorf("save state: %w", err)
	}
	return provider.AuthCodeURL(state.State), nil
}

// Complete validates the callback, resolves the account, and returns an
// access token for it.
func (s *OAuthService) Complete(ctx context.Context, providerName, code, state string) (string, error) {
	provider, ok := s.providers.Get(providerName)
	if !ok {
		return "", domain.ErrNotFound
	}
	if code == "" || state == "" {
		return "", fmt.Errorf("%w: missing code or state", domain.ErrProvider)
	}

	pending, err := s.states.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("%w: invalid state", domain.ErrProvider)
		}
		return "", fmt.Errorf("consume state: %w", err)
	}
	if pending.Provider != provider.Name() {
		return "", fmt.Errorf("%w: state was issued for %s", domain.ErrProvider, pending.Provider)
	}
	if !pending.ExpiresAt.After(s.now()) {
		return "", fmt.Errorf("%w: state expired", domain.ErrProvider)
	}

	tok, err := provider.Exchange(ctx, code)
	if err != nil {
		return "", err
	}
	identity, err := provider.Identity(ctx, tok)
	if err != nil {
		return "", err
	}

	user, err := s.ResolveUser(ctx, identity)
	if err != nil {
		return "", err
	}

	token, _, err := s.tokens.Issue(user)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// ResolveUser finds the account for identity: first by provider id, then
// by email (linking the provider), else a new external account is created.
func (s *OAuthService) ResolveUser(ctx context.Context, identity oauth.Identity) (*domain.User, error) {
	if identity.ExternalID == "" || identity.Email == "" {
		return nil, fmt.Errorf("%w: incomplete identity", domain.ErrProvider)
	}

	user, err := s.users.GetByProviderID(ctx, identity.Provider, identity.ExternalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get user by provider id: %w", err)
	}

	user, err = s.users.GetByEmail(ctx, identity.Email)
	switch {
	case err == nil:
		if err := s.users.LinkProvider(ctx, user.ID, identity.Provider, identity.ExternalID); err != nil {
			return nil, fmt.Errorf("link provider: %w", err)
		}
		user.SetProviderID(identity.Provider, identity.ExternalID)
		user.Provider = identity.Provider
		slog.Info("linked provider to existing account", "user_id", user.ID, "provider", identity.Provider)
		return user, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	user = &domain.User{
		Username:   displayName(identity),
		Email:      identity.Email,
		Image:      identity.AvatarURL,
		Provider:   identity.Provider,
		Credential: domain.ExternalCredential{Provider: identity.Provider, ExternalID: identity.ExternalID},
	}
	user.SetProviderID(identity.Provider, identity.ExternalID)
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	slog.Info("created account from provider", "user_id", user.ID, "provider", identity.Provider)
	return user, nil
}

func displayName(identity oauth.Identity) string {
	if name := strings.TrimSpace(identity.Name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(identity.Email, "@")
	return local
}
