package domain

import (
	"context"
	"time"
)

// Provider names an identity source for an account.
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGoogle Provider = "google"
	ProviderGitHub Provider = "github"
)

// External reports whether p is one of the supported external providers.
func (p Provider) External() bool {
	return p == ProviderGoogle || p == ProviderGitHub
}

// Credential is how an account proves its identity at login.
// It is either a LocalCredential or an ExternalCredential.
type Credential interface {
	isCredential()
}

// LocalCredential is a bcrypt password hash.
type LocalCredential struct {
	PasswordHash string
}

// ExternalCredential is an account created through an external provider.
// Such accounts have no password and can only log in through the provider.
type ExternalCredential struct {
	Provider   Provider
	ExternalID string
}

func (LocalCredential) isCredential()    {}
func (ExternalCredential) isCredential() {}

// User represents a registered user of the application.
type User struct {
	ID         int64
	Username   string
	Email      string
	Credential Credential
	GoogleID   string
	GitHubID   string
	Image      string
	Provider   Provider
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PasswordHash returns the local password hash, if the account has one.
func (u *User) PasswordHash() (string, bool) {
	local, ok := u.Credential.(LocalCredential)
	if !ok || local.PasswordHash == "" {
		return "", false
	}
	return local.PasswordHash, true
}

// ProviderID returns the external id linked for provider p, or "".
func (u *User) ProviderID(p Provider) string {
	switch p {
	case ProviderGoogle:
		return u.GoogleID
	case ProviderGitHub:
		return u.GitHubID
	}
	return ""
}

// SetProviderID links an external id for provider p.
func (u *User) SetProviderID(p Provider, externalID string) {
	switch p {
	case ProviderGoogle:
		u.GoogleID = externalID
	case ProviderGitHub:
		u.GitHubID = externalID
	}
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByProviderID(ctx context.Context, provider Provider, externalID string) (*User, error)
	LinkProvider(ctx context.Context, userID int64, provider Provider, externalID string) error
	Update(ctx context.Context, user *User) error
	List(ctx context.Context, offset, limit int) ([]User, error)
}

// RestoreCredential rebuilds the credential variant from persisted columns.
// A stored password hash wins; otherwise the account is external to its
// provider label.
func (u *User) RestoreCredential(passwordHash string, hasPassword bool) {
	if hasPassword {
		u.Credential = LocalCredential{PasswordHash: passwordHash}
		return
	}
	u.Credential = ExternalCredential{Provider: u.Provider, ExternalID: u.ProviderID(u.Provider)}
}
