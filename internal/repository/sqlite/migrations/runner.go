package migrations

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
)

// FS holds the SQLite schema migrations, applied in filename order.
//
//go:embed *.sql
var FS embed.FS

// migration is one embedded script and the digest of its contents.
type migration struct {
	name     string
	sql      string
	checksum string
}

// Run applies pending migrations and records each one in schema_migrations.
// A recorded migration whose file has since changed is an error.
func Run(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT PRIMARY KEY,
			checksum   TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	recorded, err := recordedChecksums(ctx, db)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	all, err := load(FS)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	for _, m := range all {
		if sum, ok := recorded[m.name]; ok {
			if sum != m.checksum {
				return fmt.Errorf("migration %s was modified after it was applied", m.name)
			}
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
		slog.Info("migration applied", "file", m.name, "backend", "sqlite")
	}
	return nil
}

// load reads every .sql file in fsys, sorted by name.
func load(fsys fs.FS) ([]migration, error) {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, err
	}

	out := make([]migration, 0, len(names))
	for _, name := range names {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		sum := sha256.Sum256(content)
		out = append(out, migration{name: name, sql: string(content), checksum: hex.EncodeToString(sum[:])})
	}
	return out, nil
}

func recordedChecksums(ctx context.Context, db *sql.DB) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT filename, checksum FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recorded := make(map[string]string)
	for rows.Next() {
		var name, sum string
		if err := rows.Scan(&name, &sum); err != nil {
			return nil, err
		}
		recorded[name] = sum
	}
	return recorded, rows.Err()
}

func apply(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("execute sql: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (filename, checksum) VALUES (?, ?)", m.name, m.checksum); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}
