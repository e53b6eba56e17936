package service_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/msomdec/calendar-api/internal/domain"
	"github.com/msomdec/calendar-api/internal/oauth"
	"github.com/msomdec/calendar-api/internal/service"
)

// stubProvider hands out a fixed identity for any code except "bad".
type stubProvider struct {
	name     domain.Provider
	identity oauth.Identity
}

func (p *stubProvider) Name() domain.Provider { return p.name }

func (p *stubProvider) AuthCodeURL(state string) string {
	return "https://provider.example.com/authorize?state=" + url.QueryEscape(state)
}

func (p *stubProvider) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	if code == "bad" {
		return nil, fmt.Errorf("%w: exchange rejected", domain.ErrProvider)
	}
	return &oauth2.Token{AccessToken: "t-" + code}, nil
}

func (p *stubProvider) Identity(context.Context, *oauth2.Token) (oauth.Identity, error) {
	return p.identity, nil
}

type oauthFixture struct {
	svc    *service.OAuthService
	auth   *service.AuthService
	github *stubProvider
}

func newOAuthFixture(t *testing.T) oauthFixture {
	t.Helper()
	db := newTestDB(t)
	tokens := service.NewTokenService(testJWTSecret, time.Hour)
	gh := &stubProvider{name: domain.ProviderGitHub, identity: oauth.Identity{
		Provider:   domain.ProviderGitHub,
		ExternalID: "4242",
		Email:      "octo@example.com",
		Name:       "",
		AvatarURL:  "https://avatars.example.com/octo",
	}}
	reg := oauth.NewRegistry(gh)
	return oauthFixture{
		svc:    service.NewOAuthService(reg, db.OAuthStates(), db.Users(), tokens, time.Minute),
		auth:   service.NewAuthService(db.Users(), tokens, 4),
		github: gh,
	}
}

// login runs Begin then Complete and returns the resolved user.
func (f oauthFixture) login(t *testing.T, code string) *domain.User {
	t.Helper()
	ctx := context.Background()

	redirect, err := f.svc.Begin(ctx, "github")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	u, err := url.Parse(redirect)
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}

	token, err := f.svc.Complete(ctx, "github", code, u.Query().Get("state"))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	user, err := f.auth.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	return user
}

func TestOAuthService_CreatesThenReusesAccount(t *testing.T) {
	f := newOAuthFixture(t)

	first := f.login(t, "c1")
	if first.Username != "octo" {
		t.Fatalf("expected username from email local part, got %q", first.Username)
	}
	if first.GitHubID != "4242" || first.Provider != domain.ProviderGitHub {
		t.Fatalf("expected linked github account, got %+v", first)
	}
	if first.Image != "https://avatars.example.com/octo" {
		t.Fatalf("expected avatar as image, got %q", first.Image)
	}
	if _, ok := first.PasswordHash(); ok {
		t.Fatal("provider accounts must not have a password")
	}

	second := f.login(t, "c2")
	if second.ID != first.ID {
		t.Fatalf("expected same account %d, got %d", first.ID, second.ID)
	}
}

func TestOAuthService_LinksExistingEmail(t *testing.T) {
	f := newOAuthFixture(t)
	local := register(t, f.auth, "octocat", "octo@example.com", "pw")

	user := f.login(t, "c1")
	if user.ID != local.ID {
		t.Fatalf("expected link onto account %d, got %d", local.ID, user.ID)
	}
	if user.GitHubID != "4242" || user.Provider != domain.ProviderGitHub {
		t.Fatalf("expected provider linked, got %+v", user)
	}
	if _, err := f.auth.Login(context.Background(), "octo@example.com", "pw"); err != nil {
		t.Fatalf("local password must still work after linking: %v", err)
	}
}

func TestOAuthService_UsesDisplayName(t *testing.T) {
	f := newOAuthFixture(t)
	f.github.identity.Name = "The Octocat"

	if user := f.login(t, "c1"); user.Username != "The Octocat" {
		t.Fatalf("expected display name as username, got %q", user.Username)
	}
}

func TestOAuthService_StateIsSingleUse(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()

	redirect, err := f.svc.Begin(ctx, "github")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	u, _ := url.Parse(redirect)
	state := u.Query().Get("state")

	if _, err := f.svc.Complete(ctx, "github", "c1", state); err != nil {
		t.Fatalf("first Complete: %v", err)
	}
	if _, err := f.svc.Complete(ctx, "github", "c1", state); !errors.Is(err, domain.ErrProvider) {
		t.Fatalf("expected ErrProvider on replay, got %v", err)
	}
}

func TestOAuthService_Failures(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Begin(ctx, "myspace"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown provider Begin: expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Complete(ctx, "myspace", "c", "s"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown provider Complete: expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Complete(ctx, "github", "", "s"); !errors.Is(err, domain.ErrProvider) {
		t.Fatalf("missing code: expected ErrProvider, got %v", err)
	}
	if _, err := f.svc.Complete(ctx, "github", "c", "never-issued"); !errors.Is(err, domain.ErrProvider) {
		t.Fatalf("unknown state: expected ErrProvider, got %v", err)
	}

	redirect, err := f.svc.Begin(ctx, "github")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	u, _ := url.Parse(redirect)
	if _, err := f.svc.Complete(ctx, "github", "bad", u.Query().Get("state")); !errors.Is(err, domain.ErrProvider) {
		t.Fatalf("failed exchange: expected ErrProvider, got %v", err)
	}
}

func TestOAuthService_ResolveUser_IncompleteIdentity(t *testing.T) {
	f := newOAuthFixture(t)

	_, err := f.svc.ResolveUser(context.Background(), oauth.Identity{Provider: domain.ProviderGoogle, ExternalID: "1"})
	if !errors.Is(err, domain.ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
}
