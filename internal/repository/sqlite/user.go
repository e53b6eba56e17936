package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/msomdec/calendar-api/internal/domain"
)

// userColumns expects the users table to be aliased as u.
const userColumns = `u.id, u.username, u.email, u.password_hash, u.image, u.google_id, u.github_id, u.provider, u.created_at, u.updated_at`

// userRepo implements domain.UserRepository using SQLite.
type userRepo struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u                                     domain.User
		passwordHash, image, googleID, gitHub sql.NullString
		provider                              string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &passwordHash, &image, &googleID, &gitHub,
		&provider, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Image = image.String
	u.GoogleID = googleID.String
	u.GitHubID = gitHub.String
	u.Provider = domain.Provider(provider)
	u.RestoreCredential(passwordHash.String, passwordHash.Valid)
	return &u, nil
}

func (r *userRepo) Create(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	hash, hasPassword := user.PasswordHash()
	if user.Provider == "" {
		user.Provider = domain.ProviderLocal
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, image, google_id, github_id, provider, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Username, user.Email, sql.NullString{String: hash, Valid: hasPassword},
		nullString(user.Image), nullString(user.GoogleID), nullString(user.GitHubID),
		string(user.Provider), now, now,
	)
	if err != nil {
		return uniqueViolation(err, "insert user")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, "query user by id", `WHERE u.id = ?`, id)
}

// GetByUsername returns the oldest account with the given username.
// Usernames are not unique.
func (r *userRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, "query user by username", `WHERE u.username = ? ORDER BY u.id LIMIT 1`, username)
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "query user by email", `WHERE u.email = ?`, email)
}

func (r *userRepo) GetByProviderID(ctx context.Context, provider domain.Provider, externalID string) (*domain.User, error) {
	column, err := providerColumn(provider)
	if err != nil {
		return nil, err
	}
	return r.getOne(ctx, "query user by provider id", `WHERE u.`+column+` = ?`, externalID)
}

func (r *userRepo) getOne(ctx context.Context, action, where string, arg any) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u `+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	return user, nil
}

// LinkProvider stores the external id and records the provider as the
// account's most recent login source.
func (r *userRepo) LinkProvider(ctx context.Context, userID int64, provider domain.Provider, externalID string) error {
	column, err := providerColumn(provider)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET `+column+` = ?, provider = ?, updated_at = ? WHERE id = ?`,
		externalID, string(provider), time.Now().UTC(), userID,
	)
	if err != nil {
		return uniqueViolation(err, "link provider")
	}
	return expectOneRow(result)
}

func (r *userRepo) Update(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	hash, hasPassword := user.PasswordHash()

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET username = ?, email = ?, password_hash = ?, image = ?, google_id = ?, github_id = ?,
		 provider = ?, updated_at = ? WHERE id = ?`,
		user.Username, user.Email, sql.NullString{String: hash, Valid: hasPassword},
		nullString(user.Image), nullString(user.GoogleID), nullString(user.GitHubID),
		string(user.Provider), now, user.ID,
	)
	if err != nil {
		return uniqueViolation(err, "update user")
	}
	if err := expectOneRow(result); err != nil {
		return err
	}
	user.UpdatedAt = now
	return nil
}

func (r *userRepo) List(ctx context.Context, offset, limit int) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users u ORDER BY u.id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return collectUsers(rows)
}

// listParticipants returns the users linked to an event, ordered by id.
func (r *userRepo) listParticipants(ctx context.Context, eventID int64) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users u
		 JOIN event_participants p ON p.user_id = u.id
		 WHERE p.event_id = ? ORDER BY u.id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return collectUsers(rows)
}

func collectUsers(rows *sql.Rows) ([]domain.User, error) {
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
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

// uniqueViolation maps SQLite unique constraint failures on users to domain errors.
func uniqueViolation(err error, action string) error {
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		if strings.Contains(msg, "users.email") {
			return domain.ErrDuplicateEmail
		}
		if strings.Contains(msg, "users.google_id") || strings.Contains(msg, "users.github_id") {
			return domain.ErrDuplicateProviderID
		}
	}
	return fmt.Errorf("%s: %w", action, err)
}

func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
