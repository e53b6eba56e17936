// Package postgres implements the domain store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/msomdec/calendar-api/internal/domain"
	"github.com/msomdec/calendar-api/internal/repository/postgres/migrations"
)

// DB wraps a pgx connection pool and hands out the repositories built on it.
type DB struct {
	Pool *pgxpool.Pool
}

var _ domain.Store = (*DB)(nil)

// New connects to the database at dsn and verifies the connection.
func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (db *DB) Migrate(ctx context.Context) error {
	return migrations.Run(ctx, db.Pool)
}

// Ping checks that a pooled connection can reach the server.
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

func (db *DB) Close() error {
	db.Pool.Close()
	return nil
}

func (db *DB) Users() domain.UserRepository {
	return &userRepo{pool: db.Pool}
}

func (db *DB) Events() domain.EventRepository {
	return &eventRepo{pool: db.Pool, users: &userRepo{pool: db.Pool}}
}

func (db *DB) OAuthStates() domain.OAuthStateStore {
	return &oauthStateRepo{pool: db.Pool}
}

const uniqueViolationCode = "23505"

// uniqueViolation maps unique constraint failures on users to domain errors.
func uniqueViolation(err error, action string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		switch pgErr.ConstraintName {
		case "users_email_key":
			return domain.ErrDuplicateEmail
		case "users_google_id_key", "users_github_id_key":
			return domain.ErrDuplicateProviderID
		}
	}
	return fmt.Errorf("%s: %w", action, err)
}

func expectOneRow(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// nullable returns nil for empty strings so they are stored as NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
