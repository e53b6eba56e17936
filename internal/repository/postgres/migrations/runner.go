package migrations

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FS holds the Postgres schema migrations, applied in filename order.
//
//go:embed *.sql
var FS embed.FS

// Run applies pending migrations, tracking them with their checksums in
// schema_migrations. A recorded migration whose file changed is an error.
func Run(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT PRIMARY KEY,
			checksum   TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	type record struct {
		Filename string
		Checksum string
	}
	rows, err := pool.Query(ctx, "SELECT filename, checksum FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}
	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[record])
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}
	done := make(map[string]string, len(records))
	for _, r := range records {
		done[r.Filename] = r.Checksum
	}

	names, err := fs.Glob(FS, "*.sql")
	if err != nil {
		return fmt.Errorf("list migration files: %w", err)
	}
	for _, name := range names {
		content, err := fs.ReadFile(FS, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		digest := sha256.Sum256(content)
		sum := hex.EncodeToString(digest[:])

		if prev, ok := done[name]; ok {
			if prev != sum {
				return fmt.Errorf("migration %s was modified after it was applied", name)
			}
			continue
		}

		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(content)); err != nil {
				return fmt.Errorf("execute sql: %w", err)
			}
			_, err := tx.Exec(ctx, "INSERT INTO schema_migrations (filename, checksum) VALUES ($1, $2)", name, sum)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		slog.Info("migration applied", "file", name, "backend", "postgres")
	}
	return nil
}
