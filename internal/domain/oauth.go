package domain

import (
	"context"
	"time"
)

// OAuthState is a pending authorization request, keyed by the opaque
// state value sent to the provider.
type OAuthState struct {
	State     string
	Provider  Provider
	ExpiresAt time.Time
}

// OAuthStateStore keeps pending authorization states between the redirect
// and the callback. Consume is single-use: it deletes the state and returns
// ErrNotFound when the state is unknown or already used.
type OAuthStateStore interface {
	Save(ctx context.Context, state OAuthState) error
	Consume(ctx context.Context, state string) (*OAuthState, error)
}
