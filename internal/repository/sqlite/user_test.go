package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/msomdec/calendar-api/internal/domain"
)

func localUser(username, email string) *domain.User {
	return &domain.User{
		Username:   username,
		Email:      email,
		Credential: domain.LocalCredential{PasswordHash: "hashedpw"},
	}
}

func TestUserRepository_Create(t *testing.T) {
	repo := newTestDB(t).Users()
	ctx := context.Background()

	user := localUser("test", "test@example.com")
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if user.ID == 0 {
		t.Fatal("expected user ID to be set after create")
	}
	if user.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be set")
	}
	if user.Provider != domain.ProviderLocal {
		t.Fatalf("expected provider local, got %q", user.Provider)
	}
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	repo := newTestDB(t).Users()
	ctx := context.Background()

	if err := repo.Create(ctx, localUser("one", "dup@example.com")); err != nil {
		t.Fatalf("Create user1: %v", err)
	}

	err := repo.Create(ctx, localUser("two", "dup@example.com"))
	if !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestUserRepository_DuplicateUsernameAllowed(t *testing.T) {
	repo := newTestDB(t).Users()
	ctx := context.Background()

	first := localUser("same", "a@example.com")
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create first: %v", err)
	}
	if err := repo.Create(ctx, localUser("same", "b@example.com")); err != nil {
		t.Fatalf("Create second: %v", err)
	}

	found, err := repo.GetByUsername(ctx, "same")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if found.ID != first.ID {
		t.Fatalf("expected oldest account %d, got %d", first.ID, found.ID)
	}
}

func TestUserRepository_GetByID(t *testing.T) {
	repo := newTestDB(t).Users()
	ctx := context.Background()

	user := localUser("byid", "byid@example.com")
	user.Image = "https://img.example.com/a.png"
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create: %v", err)
	}

	found, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	if found.Email != user.Email {
		t.Fatalf("expected email %q, got %q", user.Email, found.Email)
	}
	if found.Image != user.Image {
		t.Fatalf("expected image %q, got %q", user.Image, found.Image)
	}
	hash, ok := found.PasswordHash()
	if !ok || hash != "hashedpw" {
		t.Fatalf("expected local credential with hash, got %#v", found.Credential)
	}
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	repo := newTestDB(t).Users()

	_, err := repo.GetByID(context.Background(), 99999)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_GetByEmail_NotFound(t *testing.T) {
	repo := newTestDB(t).Users()

	_, err := repo.GetByEmail(context.Background(), "nonexistent@example.com")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_ExternalAccount(t *testing.T) {
	repo := newTestDB(t).Users()
	ctx := context.Background()

	user := &domain.User{
		Username:   "octo",
		Email:      "octo@example.com",
		Provider:   domain.ProviderGitHub,
		GitHubID:   "4242",
		Credential: domain.ExternalCredential{Provider: domain.ProviderGitHub, ExternalID: "4242"},
	}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create: %v", err)
	}

	found, err := repo.GetByProviderID(ctx, domain.ProviderGitHub, "4242")
	if err != nil {
		t.Fatalf("GetByProviderID: %v", err)
	}
	if found.ID != user.ID {
		t.Fatalf("expected id %d, got %d", user.ID, found.ID)
	}
	if _, ok := found.PasswordHash(); ok {
		t.Fatal("external account must not have a password")
	}
	cred, ok := found.Credential.(domain.ExternalCredential)
	if !ok || cred.ExternalID != "4242" {
		t.Fatalf("expected external credential, got %#v", found.Credential)
	}

	if _, err := repo.GetByProviderID(ctx, domain.ProviderGoogle, "4242"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other provider, got %v", err)
	}
}

func TestUserRepository_LinkProvider(t *testing.T) {
	repo := newTestDB(t).Users()
	ctx := context.Background()

	user := localUser("linked", "linked@example.com")
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.LinkProvider(ctx, user.ID, domain.ProviderGoogle, "g-1"); err != nil {
		t.Fatalf("LinkProvider: %v", err)
	}

	found, err := repo.GetByProviderID(ctx, domain.ProviderGoogle, "g-1")
	if err != nil {
		t.Fatalf("GetByProviderID: %v", err)
	}
	if found.Provider != domain.ProviderGoogle {
		t.Fatalf("expected provider google, got %q", found.Provider)
	}
	if _, ok := found.PasswordHash(); !ok {
		t.Fatal("linking a provider must keep the local password")
	}

	other := localUser("other", "other@example.com")
	if err := repo.Create(ctx, other); err != nil {
		t.Fatalf("Create other: %v", err)
	}
	err = repo.LinkProvider(ctx, other.ID, domain.ProviderGoogle, "g-1")
	if !errors.Is(err, domain.ErrDuplicateProviderID) {
		t.Fatalf("expected ErrDuplicateProviderID, got %v", err)
	}

	err = repo.LinkProvider(ctx, 99999, domain.ProviderGitHub, "gh-1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_List(t *testing.T) {
	repo := newTestDB(t).Users()
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		if err := repo.Create(ctx, localUser(name, name+"@example.com")); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}

	users, err := repo.List(ctx, 1, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if users[0].Username != "b" || users[1].Username != "c" {
		t.Fatalf("unexpected order: %q, %q", users[0].Username, users[1].Username)
	}

	users, err = repo.List(ctx, 0, 1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != 1 || users[0].Username != "a" {
		t.Fatalf("expected only a, got %+v", users)
	}
}
