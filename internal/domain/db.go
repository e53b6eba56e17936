package domain

import "context"

// Database defines lifecycle operations for the underlying database.
// Each implementation (SQLite, Postgres) owns its own migration
// files and strategy, so the backend is swappable at startup.
type Database interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Store bundles the repositories a running server needs from one backend.
type Store interface {
	Database
	Users() UserRepository
	Events() EventRepository
	OAuthStates() OAuthStateStore
}
