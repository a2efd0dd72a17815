// Package sqlite implements the repository interfaces on an embedded
// SQLite database (modernc.org/sqlite, pure Go, no CGo).
//
// Layout:
//   - users   one row per account, unique username/email/github_id
//   - repos   one row per repo; commits and their comments are stored
//             as a JSON document in the commits column, so a repo is
//             read and written as a single row
//   - follows one row per (follower_id, target_id) edge
//
// Use ":memory:" for a throwaway database in tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/onemployment/api/internal/apperror"
	"github.com/onemployment/api/internal/repository"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and implements repository.Store.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
//
// Pragmas go in the DSN so every pooled connection gets them; a PRAGMA
// run through Exec only reaches whichever connection served it.
func New(dbPath string) (*DB, error) {
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if dbPath != ":memory:" {
		// WAL lets readers proceed while a write is in progress.
		dsn += "&_pragma=journal_mode(WAL)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" is its own empty database, so the
	// pool must never open a second one.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database is reachable. Used by /healthz.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. Every statement is idempotent.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			github_id     INTEGER UNIQUE,
			name          TEXT NOT NULL DEFAULT '',
			bio           TEXT NOT NULL DEFAULT '',
			company       TEXT NOT NULL DEFAULT '',
			location      TEXT NOT NULL DEFAULT '',
			website       TEXT NOT NULL DEFAULT '',
			twitter       TEXT NOT NULL DEFAULT '',
			linkedin      TEXT NOT NULL DEFAULT '',
			github        TEXT NOT NULL DEFAULT '',
			avatar_url    TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS repos (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id),
			name       TEXT NOT NULL,
			summary    TEXT NOT NULL DEFAULT '',
			season     TEXT NOT NULL DEFAULT '',
			readme     TEXT NOT NULL DEFAULT '',
			is_public  INTEGER NOT NULL DEFAULT 1,
			is_pinned  INTEGER NOT NULL DEFAULT 0,
			is_starred INTEGER NOT NULL DEFAULT 0,
			stars      INTEGER NOT NULL DEFAULT 0 CHECK (stars >= 0),
			commits    TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_repos_user_created ON repos(user_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_repos_public_created ON repos(is_public, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating repos table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS follows (
			follower_id TEXT NOT NULL REFERENCES users(id),
			target_id   TEXT NOT NULL REFERENCES users(id),
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (follower_id, target_id)
		);
		CREATE INDEX IF NOT EXISTS idx_follows_target ON follows(target_id);
	`)
	if err != nil {
		return fmt.Errorf("creating follows table: %w", err)
	}

	return nil
}

// translateUnique turns a UNIQUE constraint failure on table.column into
// apperror.Conflict(column). Other errors pass through unchanged.
func translateUnique(err error, table string) error {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return err
	}
	// Message shape: "UNIQUE constraint failed: users.email"
	msg := sqliteErr.Error()
	prefix := table + "."
	if i := strings.Index(msg, prefix); i >= 0 {
		column := msg[i+len(prefix):]
		if j := strings.IndexAny(column, " ,)"); j >= 0 {
			column = column[:j]
		}
		if column == "github_id" {
			column = "github account"
		}
		return apperror.Conflict(column)
	}
	return apperror.Conflict(table)
}
