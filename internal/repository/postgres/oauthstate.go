package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/msomdec/calendar-api/internal/domain"
)

type oauthStateRepo struct {
	pool *pgxpool.Pool
}

func (r *oauthStateRepo) Save(ctx context.Context, state domain.OAuthState) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO oauth_states (state, provider, expires_at) VALUES ($1, $2, $3)`,
		state.State, string(state.Provider), state.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert oauth state: %w", err)
	}
	// Sweep failures are logged, not returned.
	if n, err := r.sweepExpired(ctx); err != nil {
		slog.Debug("sweep expired oauth states", "error", err)
	} else if n > 0 {
		slog.Debug("swept expired oauth states", "count", n)
	}
	return nil
}

func (r *oauthStateRepo) sweepExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM oauth_states WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("sweep oauth states: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Consume deletes and returns the state in one statement.
func (r *oauthStateRepo) Consume(ctx context.Context, state string) (*domain.OAuthState, error) {
	var (
		s        domain.OAuthState
		provider string
	)
	err := r.pool.QueryRow(ctx,
		`DELETE FROM oauth_states WHERE state = $1 RETURNING state, provider, expires_at`, state,
	).Scan(&s.State, &provider, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("consume oauth state: %w", err)
	}
	s.Provider = domain.Provider(provider)
	return &s, nil
}
