package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/calendar-api/internal/domain"
)

// oauthStateRepo implements domain.OAuthStateStore using SQLite.
type oauthStateRepo struct {
	db *sql.DB
}

func (r *oauthStateRepo) Save(ctx context.Context, state domain.OAuthState) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO oauth_states (state, provider, expires_at) VALUES (?, ?, ?)`,
		state.State, string(state.Provider), state.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert oauth state: %w", err)
	}

	// Opportunistic sweep; a failed sweep does not affect this request.
	r.db.ExecContext(ctx, `DELETE FROM oauth_states WHERE expires_at < ?`, time.Now().UTC())
	return nil
}

func (r *oauthStateRepo) Consume(ctx context.Context, state string) (*domain.OAuthState, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var (
		s        domain.OAuthState
		provider string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT state, provider, expires_at FROM oauth_states WHERE state = ?`, state,
	).Scan(&s.State, &provider, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get oauth state: %w", err)
	}
	s.Provider = domain.Provider(provider)

	if _, err := tx.ExecContext(ctx, `DELETE FROM oauth_states WHERE state = ?`, state); err != nil {
		return nil, fmt.Errorf("delete oauth state: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &s, nil
}
