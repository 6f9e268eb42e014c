// Package sqlite implements the repository interfaces on SQLite.
//
// WHY modernc.org/sqlite?
// It is a pure-Go translation of SQLite, so the binary builds without cgo
// and tests can run against ":memory:" databases with no setup.
//
// QUERY BUILDING:
// Statements are assembled with squirrel so optional clauses (the
// "except this id" part of a uniqueness check, pagination) compose without
// string concatenation. squirrel's default placeholder format is "?",
// which is what SQLite expects.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps the connection pool and implements every repository interface.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and brings the schema up
// to date. Use ":memory:" for tests.
//
// CONNECTION POOL:
// The pool is capped at one connection. PRAGMA foreign_keys is a
// per-connection setting, and an in-memory database exists only inside the
// connection that created it, so a second pooled connection would see
// neither the cascade rule nor the tables. SQLite serializes writers
// anyway, so one connection costs no write throughput.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Required for ON DELETE CASCADE on todos.user_id.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close releases the database. After Close, the DB must not be used.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable. Used by /healthz.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates tables and indexes idempotently.
//
// Emails and titles are compared case-insensitively (COLLATE NOCASE), so
// "Buy milk" and "buy milk" collide on the UNIQUE constraint and in the
// TitleTaken / EmailTaken pre-checks alike.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE COLLATE NOCASE,
			password_hash TEXT NOT NULL,
			avatar_ref    TEXT NOT NULL DEFAULT 'noimage.svg',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS todos (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			title      TEXT NOT NULL UNIQUE COLLATE NOCASE,
			body       TEXT NOT NULL,
			user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_todos_user_created ON todos(user_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating todos table: %w", err)
	}

	// GitHub login was added after the first release; older databases get
	// the column on startup. SQLite cannot add a UNIQUE column in place, so
	// uniqueness comes from a separate index (which allows many NULLs).
	if err := db.addColumnIfNotExists("users", "github_id", "INTEGER"); err != nil {
		return fmt.Errorf("adding github_id to users: %w", err)
	}
	_, err = db.conn.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_github_id ON users(github_id);
	`)
	if err != nil {
		return fmt.Errorf("creating users github_id index: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// SQLite doesn't support "ALTER TABLE ADD COLUMN IF NOT EXISTS", so we check
// pragma_table_info first.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// now returns the timestamp written to created_at / updated_at. Stored in
// UTC so the text representation sorts chronologically.
func now() time.Time {
	return time.Now().UTC()
}

// uniqueViolation reports whether err is a UNIQUE constraint failure and,
// if so, which "table.column" it names.
//
// SQLite reports the column in the message:
//
//	constraint failed: UNIQUE constraint failed: todos.title (2067)
func uniqueViolation(err error) (string, bool) {
	var sqliteErr *sqlitedriver.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return "", false
	}
	msg := sqliteErr.Error()
	if i := strings.Index(msg, "UNIQUE constraint failed: "); i >= 0 {
		col := msg[i+len("UNIQUE constraint failed: "):]
		if j := strings.IndexAny(col, " ,"); j >= 0 {
			col = col[:j]
		}
		return col, true
	}
	return "", true
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// queryRow builds q and runs it as a single-row query.
func (db *DB) queryRow(ctx context.Context, q sq.SelectBuilder) (*sql.Row, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: building query: %w", err)
	}
	return db.conn.QueryRowContext(ctx, query, args...), nil
}

// exec builds q and runs it as a statement.
func (db *DB) exec(ctx context.Context, q sq.Sqlizer) (sql.Result, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: building statement: %w", err)
	}
	return db.conn.ExecContext(ctx, query, args...)
}

// exists runs SELECT EXISTS(...) around q.
func (db *DB) exists(ctx context.Context, q sq.SelectBuilder) (bool, error) {
	inner, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("sqlite: building query: %w", err)
	}
	var found bool
	if err := db.conn.QueryRowContext(ctx, "SELECT EXISTS("+inner+")", args...).Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}
