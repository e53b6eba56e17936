package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/msomdec/calendar-api/internal/domain"
	"github.com/msomdec/calendar-api/internal/repository/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite connection and hands out the repositories built on it.
type DB struct {
	SqlDB *sql.DB
}

var _ domain.Store = (*DB)(nil)

// New opens the SQLite database at dbPath. Every connection runs in WAL
// mode with foreign keys enforced, since participant rows rely on
// ON DELETE CASCADE.
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite serializes writers.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{SqlDB: db}, nil
}

// dsn appends the connection pragmas understood by modernc.org/sqlite.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// Migrate applies the embedded schema migrations.
func (db *DB) Migrate(ctx context.Context) error {
	return migrations.Run(ctx, db.SqlDB)
}

// Ping checks that the database file is still reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.SqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return db.SqlDB.Close()
}

func (db *DB) Users() domain.UserRepository {
	return &userRepo{db: db.SqlDB}
}

func (db *DB) Events() domain.EventRepository {
	return &eventRepo{db: db.SqlDB, users: &userRepo{db: db.SqlDB}}
}

func (db *DB) OAuthStates() domain.OAuthStateStore {
	return &oauthStateRepo{db: db.SqlDB}
}
