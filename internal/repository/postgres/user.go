package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/msomdec/calendar-api/internal/domain"
)

const userColumns = `u.id, u.username, u.email, u.password_hash, u.image, u.google_id, u.github_id, u.provider, u.created_at, u.updated_at`

type userRepo struct {
	pool *pgxpool.Pool
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u                                     domain.User
		passwordHash, image, googleID, gitHub *string
		provider                              string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &passwordHash, &image, &googleID, &gitHub,
		&provider, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Image = deref(image)
	u.GoogleID = deref(googleID)
	u.GitHubID = deref(gitHub)
	u.Provider = domain.Provider(provider)
	u.RestoreCredential(deref(passwordHash), passwordHash != nil)
	return &u, nil
}

func passwordColumn(u *domain.User) *string {
	if hash, ok := u.PasswordHash(); ok {
		return &hash
	}
	return nil
}

func (r *userRepo) Create(ctx context.Context, user *domain.User) error {
	if user.Provider == "" {
		user.Provider = domain.ProviderLocal
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, image, google_id, github_id, provider)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		user.Username, user.Email, passwordColumn(user), nullable(user.Image),
		nullable(user.GoogleID), nullable(user.GitHubID), string(user.Provider),
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return uniqueViolation(err, "insert user")
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, "query user by id", `WHERE u.id = $1`, id)
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, "query user by username", `WHERE u.username = $1 ORDER BY u.id LIMIT 1`, username)
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "query user by email", `WHERE u.email = $1`, email)
}

func (r *userRepo) GetByProviderID(ctx context.Context, provider domain.Provider, externalID string) (*domain.User, error) {
	column, err := providerColumn(provider)
	if err != nil {
		return nil, err
	}
	return r.getOne(ctx, "query user by provider id", `WHERE u.`+column+` = $1`, externalID)
}

func (r *userRepo) getOne(ctx context.Context, action, where string, arg any) (*domain.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users u `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	return user, nil
}

func (r *userRepo) LinkProvider(ctx context.Context, userID int64, provider domain.Provider, externalID string) error {
	column, err := providerColumn(provider)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET `+column+` = $1, provider = $2, updated_at = NOW() WHERE id = $3`,
		externalID, string(provider), userID,
	)
	if err != nil {
		return uniqueViolation(err, "link provider")
	}
	return expectOneRow(tag)
}

func (r *userRepo) Update(ctx context.Context, user *domain.User) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE users SET username = $1, email = $2, password_hash = $3, image = $4, google_id = $5,
		 github_id = $6, provider = $7, updated_at = NOW() WHERE id = $8
		 RETURNING updated_at`,
		user.Username, user.Email, passwordColumn(user), nullable(user.Image),
		nullable(user.GoogleID), nullable(user.GitHubID), string(user.Provider), user.ID,
	).Scan(&user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return uniqueViolation(err, "update user")
	}
	return nil
}

func (r *userRepo) List(ctx context.Context, offset, limit int) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users u ORDER BY u.id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return collectUsers(rows)
}

func (r *userRepo) listParticipants(ctx context.Context, eventID int64) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users u
		 JOIN event_participants p ON p.user_id = u.id
		 WHERE p.event_id = $1 ORDER BY u.id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return collectUsers(rows)
}

func collectUsers(rows pgx.Rows) ([]domain.User, error) {
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.User, error) {
		u, err := scanUser(row)
		if err != nil {
			return domain.User{}, err
		}
		return *u, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

func providerColumn(provider domain.Provider) (string, error) {
	switch provider {
	case domain.ProviderGoogle:
		return "google_id", nil
	case domain.ProviderGitHub:
		return "github_id", nil
	}
	return "", fmt.Errorf("%w: unsupported provider %q", domain.ErrInvalidInput, provider)
}
